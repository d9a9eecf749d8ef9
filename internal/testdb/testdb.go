// Package testdb opens migrated in-memory audit databases for tests.
package testdb

import (
	"context"
	"testing"

	"github.com/helixml/semandoc/infrastructure/persistence"
	"github.com/helixml/semandoc/internal/database"
)

// New returns an in-memory SQLite database holding the audit tables.
// It is closed by t.Cleanup.
func New(t *testing.T) database.Database {
	t.Helper()
	db, err := database.Open(context.Background(), "sqlite:///:memory:", nil)
	if err != nil {
		t.Fatalf("open audit database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := persistence.Migrate(db); err != nil {
		t.Fatalf("migrate audit database: %v", err)
	}
	return db
}
