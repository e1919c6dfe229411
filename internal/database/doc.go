// Package database implements the storage collaborator on PostgreSQL via
// pgx. Repositories return domain types and map driver errors to the
// sentinel errors in internal/domain.
package database
