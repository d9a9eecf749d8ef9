// Package persistence stores the audit trail in a relational database.
package persistence

import "github.com/helixml/semandoc/internal/database"

// Migrate creates the audit tables.
func Migrate(db database.Database) error {
	return db.Migrate(&AuditRecordModel{})
}
