package models

import (
	"encoding/json"
	"time"
)

// PermitChangeKind tags one permit change-log entry.
type PermitChangeKind string

const (
	PermitChangeCreated        PermitChangeKind = "created"
	PermitChangeStatus         PermitChangeKind = "status_change"
	PermitChangePayment        PermitChangeKind = "payment_update"
	PermitChangeDocumentUpload PermitChangeKind = "document_upload"
	PermitChangeDetails        PermitChangeKind = "details_update"
)

// PermitChangeLog is one append-only audit entry on a permit. Meta carries
// the structured payload for kinds that record more than a status pair;
// Note stays free text.
type PermitChangeLog struct {
	ID         string           `db:"id" json:"id"`
	PermitID   string           `db:"permit_id" json:"permit_id"`
	Kind       PermitChangeKind `db:"kind" json:"kind"`
	OldStatus  *PermitStatus    `db:"old_status" json:"old_status,omitempty"`
	NewStatus  *PermitStatus    `db:"new_status" json:"new_status,omitempty"`
	Note       string           `db:"note" json:"note"`
	Meta       []byte           `db:"meta" json:"meta,omitempty"`
	UserID     *string          `db:"user_id" json:"user_id,omitempty"`
	UserName   *string          `db:"user_name" json:"user_name,omitempty"`
	Attachment *string          `db:"attachment" json:"attachment,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
}

// ReceiveMeta is the structured payload of a receive_for_inspection entry.
type ReceiveMeta struct {
	ReceivedBy string `json:"received_by"`
}

// ReportMeta is the structured payload of a submit_inspection_report entry.
type ReportMeta struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes,omitempty"`
	Photos   int    `json:"photos,omitempty"`
}

// EncodeMeta marshals a typed meta payload for storage.
func EncodeMeta(v interface{}) []byte {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

// CompanyChangeKind tags one company change-log entry.
type CompanyChangeKind string

const (
	CompanyChangeCreated            CompanyChangeKind = "created"
	CompanyChangeUpdated            CompanyChangeKind = "updated"
	CompanyChangeEngineerChanged    CompanyChangeKind = "engineer_changed"
	CompanyChangeExtensionRequested CompanyChangeKind = "extension_requested"
)

// CompanyChangeLog is one append-only audit entry on a company.
type CompanyChangeLog struct {
	ID         string            `db:"id" json:"id"`
	CompanyID  string            `db:"company_id" json:"company_id"`
	Kind       CompanyChangeKind `db:"kind" json:"kind"`
	Note       string            `db:"note" json:"note"`
	UserID     *string           `db:"user_id" json:"user_id,omitempty"`
	UserName   *string           `db:"user_name" json:"user_name,omitempty"`
	Attachment *string           `db:"attachment" json:"attachment,omitempty"`
	CreatedAt  time.Time         `db:"created_at" json:"created_at"`
}

// EngineerStatusKind tags one engineer status-log entry.
type EngineerStatusKind string

const (
	EngineerStatusCreated          EngineerStatusKind = "created"
	EngineerStatusPublicHealthCert EngineerStatusKind = "public_health_cert_uploaded"
	EngineerStatusTermiteCert      EngineerStatusKind = "termite_cert_uploaded"
)

// EngineerStatusLog is one append-only audit entry on an engineer.
type EngineerStatusLog struct {
	ID         string             `db:"id" json:"id"`
	EngineerID string             `db:"engineer_id" json:"engineer_id"`
	Kind       EngineerStatusKind `db:"kind" json:"kind"`
	Note       string             `db:"note" json:"note"`
	UserID     *string            `db:"user_id" json:"user_id,omitempty"`
	UserName   *string            `db:"user_name" json:"user_name,omitempty"`
	CreatedAt  time.Time          `db:"created_at" json:"created_at"`
}
