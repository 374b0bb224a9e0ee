package models

import "time"

// Company owns zero or more permits. (Name, Number) is the business identity
// used by upsert during permit intake.
type Company struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Number     string    `db:"number" json:"number"`
	Address    string    `db:"address" json:"address"`
	Phone      string    `db:"phone" json:"phone"`
	Email      string    `db:"email" json:"email"`
	Activities string    `db:"activities" json:"activities"`
	EngineerID *string   `db:"engineer_id" json:"engineer_id,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// CompanyFilter constrains company listing queries.
type CompanyFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CompanyPermitValidity summarises, per permit type, the latest issued
// permit's validity window for the company detail view.
type CompanyPermitValidity struct {
	PermitType PermitType `db:"permit_type" json:"permit_type"`
	PermitNo   string     `db:"permit_no" json:"permit_no"`
	IssueDate  *time.Time `db:"issue_date" json:"issue_date,omitempty"`
	ExpiryDate *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
}
