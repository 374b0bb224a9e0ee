package models

import "time"

// Engineer holds two independent certifications, each represented by the
// presence of a stored certificate file.
type Engineer struct {
	ID                   string    `db:"id" json:"id"`
	Name                 string    `db:"name" json:"name"`
	Email                string    `db:"email" json:"email"`
	Phone                string    `db:"phone" json:"phone"`
	PublicHealthCertFile *string   `db:"public_health_cert_file" json:"public_health_cert_file,omitempty"`
	TermiteCertFile      *string   `db:"termite_cert_file" json:"termite_cert_file,omitempty"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// HasPublicHealthCert reports whether the public-health certificate is on
// file.
func (e *Engineer) HasPublicHealthCert() bool {
	return e.PublicHealthCertFile != nil && *e.PublicHealthCertFile != ""
}

// HasTermiteCert reports whether the termite certificate is on file.
func (e *Engineer) HasTermiteCert() bool {
	return e.TermiteCertFile != nil && *e.TermiteCertFile != ""
}

// EngineerFilter constrains engineer listing queries.
type EngineerFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
