package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hcsd/permit-clearance-api/internal/authz"
	"github.com/hcsd/permit-clearance-api/internal/dto"
	"github.com/hcsd/permit-clearance-api/internal/models"
	appErrors "github.com/hcsd/permit-clearance-api/pkg/errors"
)

type engineerDirectory interface {
	Create(ctx context.Context, engineer *models.Engineer) error
	Update(ctx context.Context, engineer *models.Engineer) error
	GetByID(ctx context.Context, id string) (*models.Engineer, error)
	GetByEmail(ctx context.Context, email string) (*models.Engineer, error)
	List(ctx context.Context, filter models.EngineerFilter) ([]models.Engineer, int, error)
}

type engineerAuditor interface {
	CreateEngineerLog(ctx context.Context, entry *models.EngineerStatusLog) error
	ListEngineerLogs(ctx context.Context, engineerID string) ([]models.EngineerStatusLog, error)
}

// EngineerService manages engineers and their certificate files. The
// public-health certificate is the anchor: no engineer exists without one,
// and a termite certificate is never accepted on its own.
type EngineerService struct {
	engineers engineerDirectory
	audit     engineerAuditor
	files     attachmentFiles
	gate      *authz.Gate
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewEngineerService constructs the service.
func NewEngineerService(engineers engineerDirectory, audit engineerAuditor, files attachmentFiles, gate *authz.Gate, logger *zap.Logger) *EngineerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gate == nil {
		gate = authz.New()
	}
	return &EngineerService{
		engineers: engineers,
		audit:     audit,
		files:     files,
		gate:      gate,
		validate:  validator.New(),
		logger:    logger,
	}
}

func (s *EngineerService) role(actor *models.JWTClaims) (models.UserRole, error) {
	if actor == nil {
		return "", appErrors.ErrUnauthorized
	}
	role, ok := authz.ResolveRole(string(actor.Role))
	if !ok {
		return "", appErrors.ErrForbidden
	}
	return role, nil
}

// Create registers an engineer together with the mandatory public-health
// certificate and, optionally, the termite certificate.
func (s *EngineerService) Create(ctx context.Context, req dto.CreateEngineerRequest, actor *models.JWTClaims) (*models.Engineer, error) {
	role, err := s.role(actor)
	if err != nil {
		return nil, err
	}
	if !s.gate.CanDataEntry(role) {
		return nil, appErrors.ErrForbidden
	}

	details := collectValidationDetails(s.validate.Struct(req))
	if req.PublicHealthCert == nil {
		details = append(details, "public_health_cert: required")
	} else if !allowedDocExt(req.PublicHealthCert.Filename) {
		details = append(details, fmt.Sprintf("public_health_cert: extension not allowed for %s", req.PublicHealthCert.Filename))
	}
	if req.TermiteCert != nil && !allowedDocExt(req.TermiteCert.Filename) {
		details = append(details, fmt.Sprintf("termite_cert: extension not allowed for %s", req.TermiteCert.Filename))
	}
	if err := appErrors.Validation(details); err != nil {
		return nil, err
	}

	if _, err := s.engineers.GetByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	engineer := &models.Engineer{
		ID:    uuid.NewString(),
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	}

	phPath, err := s.saveCert(engineer, dto.CertKindPublicHealth, req.PublicHealthCert)
	if err != nil {
		return nil, err
	}
	engineer.PublicHealthCertFile = &phPath
	if req.TermiteCert != nil {
		termitePath, err := s.saveCert(engineer, dto.CertKindTermite, req.TermiteCert)
		if err != nil {
			return nil, err
		}
		engineer.TermiteCertFile = &termitePath
	}

	if err := s.engineers.Create(ctx, engineer); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create engineer")
	}

	s.log(ctx, engineer.ID, models.EngineerStatusCreated, "engineer registered", actor)
	s.log(ctx, engineer.ID, models.EngineerStatusPublicHealthCert, "public health certificate on file", actor)
	if engineer.TermiteCertFile != nil {
		s.log(ctx, engineer.ID, models.EngineerStatusTermiteCert, "termite certificate on file", actor)
	}
	return engineer, nil
}

// UploadCert attaches or replaces a certificate file on an existing
// engineer.
func (s *EngineerService) UploadCert(ctx context.Context, engineerID string, req dto.UploadCertRequest, actor *models.JWTClaims) (*models.Engineer, error) {
	role, err := s.role(actor)
	if err != nil {
		return nil, err
	}
	if !s.gate.CanDataEntry(role) {
		return nil, appErrors.ErrForbidden
	}
	if req.File == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file: required")
	}
	if !allowedDocExt(req.File.Filename) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file: extension not allowed for %s", req.File.Filename))
	}

	engineer, err := s.loadEngineer(ctx, engineerID)
	if err != nil {
		return nil, err
	}

	switch req.Kind {
	case dto.CertKindPublicHealth:
		path, err := s.saveCert(engineer, dto.CertKindPublicHealth, req.File)
		if err != nil {
			return nil, err
		}
		engineer.PublicHealthCertFile = &path
	case dto.CertKindTermite:
		if !engineer.HasPublicHealthCert() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "termite certificate requires a public health certificate on file")
		}
		path, err := s.saveCert(engineer, dto.CertKindTermite, req.File)
		if err != nil {
			return nil, err
		}
		engineer.TermiteCertFile = &path
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("kind: unknown certificate kind %q", req.Kind))
	}

	if err := s.engineers.Update(ctx, engineer); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrEngineerNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update engineer")
	}

	kind := models.EngineerStatusPublicHealthCert
	note := "public health certificate on file"
	if req.Kind == dto.CertKindTermite {
		kind = models.EngineerStatusTermiteCert
		note = "termite certificate on file"
	}
	s.log(ctx, engineer.ID, kind, note, actor)
	return engineer, nil
}

// List returns engineers matching the filter.
func (s *EngineerService) List(ctx context.Context, query dto.EngineerQuery, actor *models.JWTClaims) ([]models.Engineer, *models.Pagination, error) {
	if _, err := s.role(actor); err != nil {
		return nil, nil, err
	}

	engineers, total, err := s.engineers.List(ctx, models.EngineerFilter{
		Search:    query.Search,
		Page:      query.Page,
		PageSize:  query.PageSize,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list engineers")
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	return engineers, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get assembles the engineer detail view with the certification-derived
// activity set and the status log.
func (s *EngineerService) Get(ctx context.Context, engineerID string, actor *models.JWTClaims) (*dto.EngineerDetailResponse, error) {
	if _, err := s.role(actor); err != nil {
		return nil, err
	}
	engineer, err := s.loadEngineer(ctx, engineerID)
	if err != nil {
		return nil, err
	}
	statusLog, err := s.audit.ListEngineerLogs(ctx, engineer.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status log")
	}
	return &dto.EngineerDetailResponse{
		Engineer:          engineer,
		AllowedActivities: models.AllowedActivitiesFor(engineer.HasPublicHealthCert(), engineer.HasTermiteCert()),
		StatusLog:         statusLog,
	}, nil
}

func (s *EngineerService) loadEngineer(ctx context.Context, id string) (*models.Engineer, error) {
	engineer, err := s.engineers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrEngineerNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load engineer")
	}
	return engineer, nil
}

func (s *EngineerService) saveCert(engineer *models.Engineer, kind string, file *dto.FileUpload) (string, error) {
	path := fmt.Sprintf("engineers/%s/%s_%s", engineer.ID, kind, filepath.Base(file.Filename))
	if _, err := s.files.Save(path, file.Content); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store certificate")
	}
	return path, nil
}

func (s *EngineerService) log(ctx context.Context, engineerID string, kind models.EngineerStatusKind, note string, actor *models.JWTClaims) {
	entry := &models.EngineerStatusLog{
		EngineerID: engineerID,
		Kind:       kind,
		Note:       note,
	}
	if actor != nil {
		entry.UserID = &actor.UserID
		entry.UserName = &actor.FullName
	}
	if err := s.audit.CreateEngineerLog(ctx, entry); err != nil {
		s.logger.Warn("engineer status log", zap.String("engineer_id", engineerID), zap.Error(err))
	}
}
