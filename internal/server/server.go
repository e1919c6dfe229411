package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/martlabs/orderpulse/internal/config"
	"github.com/martlabs/orderpulse/internal/domain"
	"github.com/martlabs/orderpulse/internal/orders"
	"github.com/martlabs/orderpulse/internal/realtime"
)

type Server struct {
	echo       *echo.Echo
	config     *config.Config
	registry   *realtime.Registry
	dispatcher *realtime.Dispatcher
	processor  *orders.Processor
	orders     domain.OrderRepository
	analytics  domain.AnalyticsRepository
	limits     *ConnectionLimits
	db         *pgxpool.Pool
	redis      *goredis.Client
	startTime  time.Time
}

// NewServer wires routes and middleware. redis may be nil; the readiness
// probe then skips the redis check.
func NewServer(
	cfg *config.Config,
	registry *realtime.Registry,
	dispatcher *realtime.Dispatcher,
	processor *orders.Processor,
	orderRepo domain.OrderRepository,
	analytics domain.AnalyticsRepository,
	db *pgxpool.Pool,
	redisClient *goredis.Client,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	srv := &Server{
		echo:       e,
		config:     cfg,
		registry:   registry,
		dispatcher: dispatcher,
		processor:  processor,
		orders:     orderRepo,
		analytics:  analytics,
		limits:     NewConnectionLimits(cfg.WSMaxConnections, cfg.WSMaxPerIP, cfg.WSConnRate, cfg.WSConnBurst),
		db:         db,
		redis:      redisClient,
		startTime:  time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
