package pantry

import (
	"context"
	"database/sql"
	"fmt"
)

// Backend names accepted by NewFactory.
const (
	BackendSQLite     = "sqlite"
	BackendPostgreSQL = "postgresql"
)

// Factory hands out Managers for the configured backend. The SQLite backend
// is single-user and every caller shares one Manager; the PostgreSQL backend
// is multi-tenant and ForUser returns a view scoped to that user.
type Factory struct {
	backend string
	sqlite  *SQLiteManager
	pg      *sql.DB
}

// NewFactory opens the configured backend. For SQLite, connection is the
// database file path; for PostgreSQL it is the connection URL.
func NewFactory(ctx context.Context, backend, connection string) (*Factory, error) {
	switch backend {
	case BackendSQLite:
		m, err := NewSQLite(connection)
		if err != nil {
			return nil, err
		}
		return &Factory{backend: backend, sqlite: m}, nil

	case BackendPostgreSQL:
		db, err := OpenPostgres(ctx, connection)
		if err != nil {
			return nil, err
		}
		if err := SetupPostgresSchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		return &Factory{backend: backend, pg: db}, nil

	default:
		return nil, fmt.Errorf("unknown pantry backend %q", backend)
	}
}

// Backend reports which backend the factory was opened with.
func (f *Factory) Backend() string { return f.backend }

// Local returns the Manager used when no authentication is in play.
// On the PostgreSQL backend this is user 0, a reserved local identity.
func (f *Factory) Local() Manager {
	if f.sqlite != nil {
		return f.sqlite
	}
	return NewPostgres(f.pg, 0)
}

// ForUser returns the Manager for an authenticated user. The SQLite backend
// has no tenancy, so every user shares the single local database.
func (f *Factory) ForUser(userID int64) Manager {
	if f.sqlite != nil {
		return f.sqlite
	}
	return NewPostgres(f.pg, userID)
}

// SeedUser prepares per-user rows (default units) for a new user. A no-op on
// the SQLite backend, which seeds at open time.
func (f *Factory) SeedUser(ctx context.Context, userID int64) error {
	if f.pg == nil {
		return nil
	}
	return NewPostgres(f.pg, userID).SeedUnits(ctx)
}

// Close releases the underlying database handles.
func (f *Factory) Close() error {
	if f.sqlite != nil {
		return f.sqlite.Close()
	}
	return f.pg.Close()
}
