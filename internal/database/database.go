// Package database opens the relational store that backs the audit trail.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ErrUnsupportedDriver indicates the database URL uses an unsupported driver.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

const (
	sqlitePrefix = "sqlite:///"
	inMemory     = ":memory:"
)

// Database is an open GORM connection.
type Database struct {
	db *gorm.DB
}

// Open connects to the database named by url, one of
// sqlite:///path/to/file.db, sqlite:///:memory:, or a postgres(ql):// DSN.
// The parent directory of a SQLite file is created when missing.
// A nil logger uses slog.Default().
func Open(ctx context.Context, url string, logger *slog.Logger) (Database, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dialector, file, err := dialectorFor(url)
	if err != nil {
		return Database{}, err
	}
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return Database{}, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger(logger)})
	if err != nil {
		return Database{}, fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return Database{}, fmt.Errorf("get underlying db: %w", err)
	}
	// An in-memory SQLite database exists per connection.
	if db.Name() == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return Database{}, fmt.Errorf("ping database: %w", err)
	}
	return Database{db: db}, nil
}

// Dialect reports the driver name, "sqlite" or "postgres".
func (d Database) Dialect() string {
	return d.db.Name()
}

// Session returns a handle bound to ctx.
func (d Database) Session(ctx context.Context) *gorm.DB {
	return d.db.WithContext(ctx)
}

// Migrate creates or alters the tables of the given models.
func (d Database) Migrate(models ...any) error {
	if err := d.db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Transaction runs fn in a transaction that commits only when fn returns nil.
func (d Database) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return d.Session(ctx).Transaction(fn)
}

// Close releases the connection pool.
func (d Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("get underlying db: %w", err)
	}
	return sqlDB.Close()
}

// dialectorFor also returns the SQLite file path when the URL names one.
func dialectorFor(url string) (gorm.Dialector, string, error) {
	if path, ok := strings.CutPrefix(url, sqlitePrefix); ok {
		switch path {
		case "":
			return nil, "", fmt.Errorf("%w: empty sqlite path", ErrUnsupportedDriver)
		case inMemory:
			return sqlite.Open(path), "", nil
		}
		return sqlite.Open(path), path, nil
	}
	if strings.HasPrefix(url, "postgresql://") || strings.HasPrefix(url, "postgres://") {
		return postgres.Open(url), "", nil
	}
	scheme, _, _ := strings.Cut(url, "://")
	return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, scheme)
}
