package models

import "time"

// InspectorReview is the single review record per permit. Repeated review
// actions overwrite it; ReceivedAt marks the one-time hand-over to the
// inspector for on-site inspection.
type InspectorReview struct {
	ID          string     `db:"id" json:"id"`
	PermitID    string     `db:"permit_id" json:"permit_id"`
	InspectorID string     `db:"inspector_id" json:"inspector_id"`
	Approved    bool       `db:"approved" json:"approved"`
	Comments    string     `db:"comments" json:"comments"`
	ReceivedAt  *time.Time `db:"received_at" json:"received_at,omitempty"`
	ReceivedBy  *string    `db:"received_by" json:"received_by,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
