package persistence

import "time"

// AuditRecordModel is one row of the audit trail.
type AuditRecordModel struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	Action     string    `gorm:"column:action;index;size:32;not null"`
	DocumentID string    `gorm:"column:document_id;index;size:64"`
	Detail     string    `gorm:"column:detail;type:text"`
	CreatedAt  time.Time `gorm:"column:created_at;index"`
}

// TableName returns the table name.
func (AuditRecordModel) TableName() string {
	return "audit_records"
}
