package dto

import (
	"github.com/hcsd/permit-clearance-api/internal/models"
)

// Certificate kinds accepted by engineer cert uploads.
const (
	CertKindPublicHealth = "public_health"
	CertKindTermite      = "termite"
)

// CreateEngineerRequest registers an engineer. The public-health certificate
// is mandatory; the termite certificate is optional but never accepted
// without a public-health certificate.
type CreateEngineerRequest struct {
	Name             string      `json:"name" validate:"required"`
	Email            string      `json:"email" validate:"required,email"`
	Phone            string      `json:"phone"`
	PublicHealthCert *FileUpload `json:"-"`
	TermiteCert      *FileUpload `json:"-"`
}

// UploadCertRequest attaches a certificate to an existing engineer.
type UploadCertRequest struct {
	Kind string      `json:"kind" validate:"required"`
	File *FileUpload `json:"-"`
}

// EngineerQuery mirrors supported listing filters.
type EngineerQuery struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// EngineerDetailResponse aggregates the engineer view with the status log.
type EngineerDetailResponse struct {
	Engineer          *models.Engineer           `json:"engineer"`
	AllowedActivities []string                   `json:"allowed_activities"`
	StatusLog         []models.EngineerStatusLog `json:"status_log"`
}
