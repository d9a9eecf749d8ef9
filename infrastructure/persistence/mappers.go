package persistence

import "github.com/helixml/semandoc/domain/audit"

// AuditRecordMapper maps between audit.Record and AuditRecordModel.
type AuditRecordMapper struct{}

// ToDomain converts an AuditRecordModel to an audit.Record.
func (AuditRecordMapper) ToDomain(e AuditRecordModel) audit.Record {
	return audit.ReconstructRecord(e.ID, audit.Action(e.Action), e.DocumentID, e.Detail, e.CreatedAt)
}

// ToModel converts an audit.Record to an AuditRecordModel.
func (AuditRecordMapper) ToModel(r audit.Record) AuditRecordModel {
	return AuditRecordModel{
		ID:         r.ID(),
		Action:     string(r.Action()),
		DocumentID: r.DocumentID(),
		Detail:     r.Detail(),
		CreatedAt:  r.CreatedAt(),
	}
}
