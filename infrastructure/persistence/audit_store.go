package persistence

import (
	"context"

	"github.com/helixml/semandoc/domain/audit"
	"github.com/helixml/semandoc/internal/database"
)

// AuditStore implements audit.RecordStore using GORM.
type AuditStore struct {
	records database.Repository[audit.Record, AuditRecordModel]
}

// NewAuditStore creates a new AuditStore.
func NewAuditStore(db database.Database) AuditStore {
	return AuditStore{
		records: database.NewRepository[audit.Record, AuditRecordModel](db, AuditRecordMapper{}, "audit record"),
	}
}

// Save appends records in a single transaction.
func (s AuditStore) Save(ctx context.Context, records ...audit.Record) error {
	return s.records.Insert(ctx, records...)
}

// Recent returns up to limit records, newest first. A non-positive limit
// returns every record.
func (s AuditStore) Recent(ctx context.Context, limit int) ([]audit.Record, error) {
	return s.records.Find(ctx,
		database.Desc("created_at"),
		database.Desc("id"),
		database.Limit(limit),
	)
}

// ForDocument returns the history of one document, oldest first.
func (s AuditStore) ForDocument(ctx context.Context, documentID string) ([]audit.Record, error) {
	return s.records.Find(ctx,
		database.Eq("document_id", documentID),
		database.Asc("id"),
	)
}

// CountByAction counts records of one kind.
func (s AuditStore) CountByAction(ctx context.Context, action audit.Action) (int64, error) {
	return s.records.Count(ctx, database.Eq("action", string(action)))
}
