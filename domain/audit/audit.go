// Package audit provides the audit trail of document store mutations.
package audit

import (
	"context"
	"time"
)

// Action is the kind of mutation recorded.
type Action string

// Action values.
const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionImport  Action = "import"
	ActionReset   Action = "reset"
	ActionSave    Action = "save"
	ActionRebuild Action = "rebuild"
)

// Record is one entry of the audit trail.
type Record struct {
	id         int64
	action     Action
	documentID string
	detail     string
	createdAt  time.Time
}

// NewRecord creates an unsaved Record stamped with the current time.
func NewRecord(action Action, documentID, detail string) Record {
	return Record{
		action:     action,
		documentID: documentID,
		detail:     detail,
		createdAt:  time.Now(),
	}
}

// ReconstructRecord rebuilds a Record from persistence.
func ReconstructRecord(id int64, action Action, documentID, detail string, createdAt time.Time) Record {
	return Record{
		id:         id,
		action:     action,
		documentID: documentID,
		detail:     detail,
		createdAt:  createdAt,
	}
}

// ID returns the database identifier, zero before saving.
func (r Record) ID() int64 { return r.id }

// Action returns the recorded action.
func (r Record) Action() Action { return r.action }

// DocumentID returns the affected document, empty for store-wide actions.
func (r Record) DocumentID() string { return r.documentID }

// Detail returns free-form context.
func (r Record) Detail() string { return r.detail }

// CreatedAt returns when the action happened.
func (r Record) CreatedAt() time.Time { return r.createdAt }

// RecordStore persists audit records.
type RecordStore interface {
	Save(ctx context.Context, records ...Record) error
	Recent(ctx context.Context, limit int) ([]Record, error)
	ForDocument(ctx context.Context, documentID string) ([]Record, error)
	CountByAction(ctx context.Context, action Action) (int64, error)
}
