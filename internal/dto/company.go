package dto

import (
	"github.com/hcsd/permit-clearance-api/internal/models"
)

// CreateCompanyRequest registers a company directly (outside permit intake).
type CreateCompanyRequest struct {
	Name       string   `json:"name" validate:"required"`
	Number     string   `json:"number" validate:"required"`
	Address    string   `json:"address"`
	Phone      string   `json:"phone"`
	Email      string   `json:"email" validate:"omitempty,email"`
	Activities []string `json:"activities"`
	EngineerID string   `json:"engineer_id" validate:"required"`
}

// UpdateCompanyRequest rewrites mutable company fields; changed fields are
// recorded in the company change log.
type UpdateCompanyRequest struct {
	Name       string   `json:"name" validate:"required"`
	Number     string   `json:"number" validate:"required"`
	Address    string   `json:"address"`
	Phone      string   `json:"phone"`
	Email      string   `json:"email" validate:"omitempty,email"`
	Activities []string `json:"activities"`
	EngineerID string   `json:"engineer_id"`
}

// ExtensionRequest asks for a validity extension, carrying the supporting
// attachment.
type ExtensionRequest struct {
	Note       string      `json:"note"`
	Attachment *FileUpload `json:"-"`
}

// CompanyQuery mirrors supported listing filters.
type CompanyQuery struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CompanyListItem is one row of the company list with the activity labels of
// the latest issued pest-control permit.
type CompanyListItem struct {
	Company        models.Company `json:"company"`
	ActivityLabels []string       `json:"activity_labels"`
}

// CompanyDetailResponse aggregates the company view.
type CompanyDetailResponse struct {
	Company    *models.Company                `json:"company"`
	Engineer   *models.Engineer               `json:"engineer,omitempty"`
	Validities []models.CompanyPermitValidity `json:"validities"`
	ChangeLog  []models.CompanyChangeLog      `json:"change_log"`
}
