package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Schema files for the documents and document_history tables.
//
//go:embed migrations/*.sql
var documentSchema embed.FS

// MigrateDocuments applies pending schema files to the SQLite database at
// dbPath and reports the resulting schema version.
func MigrateDocuments(dbPath string) (uint, error) {
	// The sqlite driver closes the handle it is given, so the store's own
	// single connection stays out of it.
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, fmt.Errorf("open %s for migration: %w", dbPath, err)
	}
	defer db.Close()

	m, err := documentMigrator(db)
	if err != nil {
		return 0, err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply document schema: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("document schema version %d is dirty", version)
	}
	return version, nil
}

func documentMigrator(db *sql.DB) (*migrate.Migrate, error) {
	target, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("sqlite migration target: %w", err)
	}
	src, err := iofs.New(documentSchema, "migrations")
	if err != nil {
		return nil, fmt.Errorf("embedded schema source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", target)
	if err != nil {
		return nil, fmt.Errorf("document migrator: %w", err)
	}
	return m, nil
}
