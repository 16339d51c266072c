package store

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var schema embed.FS

// migrateUp applies the embedded migrations that are not yet recorded.
func (s *Store) migrateUp() error {
	m, err := s.migrator()
	if err != nil {
		return err
	}
	// Closing m would close s.db as well.
	switch err := m.Up(); {
	case err == nil:
		return nil
	case errors.Is(err, migrate.ErrNoChange):
		return nil
	default:
		return err
	}
}

// SchemaVersion returns the last applied migration and whether it failed
// half way. A fresh database reports version 0.
func (s *Store) SchemaVersion() (version uint, dirty bool, err error) {
	m, err := s.migrator()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (s *Store) migrator() (*migrate.Migrate, error) {
	src, err := iofs.New(schema, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	drv, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return nil, fmt.Errorf("migrator: %w", err)
	}
	m.Log = migrateLog{log: slog.Default().With("component", "migrate")}
	return m, nil
}

// migrateLog adapts slog to migrate.Logger.
type migrateLog struct{ log *slog.Logger }

func (l migrateLog) Printf(format string, v ...any) { l.log.Debug(fmt.Sprintf(format, v...)) }
func (l migrateLog) Verbose() bool                  { return false }
