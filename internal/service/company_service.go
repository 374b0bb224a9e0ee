package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hcsd/permit-clearance-api/internal/authz"
	"github.com/hcsd/permit-clearance-api/internal/dto"
	"github.com/hcsd/permit-clearance-api/internal/models"
	appErrors "github.com/hcsd/permit-clearance-api/pkg/errors"
)

type companyDirectory interface {
	Create(ctx context.Context, company *models.Company) error
	Update(ctx context.Context, company *models.Company) error
	GetByID(ctx context.Context, id string) (*models.Company, error)
	GetByNameNumber(ctx context.Context, name, number string) (*models.Company, error)
	List(ctx context.Context, filter models.CompanyFilter) ([]models.Company, int, error)
	LatestIssuedActivities(ctx context.Context, companyID string) (string, error)
	PermitValidities(ctx context.Context, companyID string) ([]models.CompanyPermitValidity, error)
}

type companyAuditor interface {
	CreateCompanyLog(ctx context.Context, entry *models.CompanyChangeLog) error
	ListCompanyLogs(ctx context.Context, companyID string) ([]models.CompanyChangeLog, error)
}

type attachmentFiles interface {
	Save(filename string, data []byte) (string, error)
}

// CompanyService manages the company register: creation, updates, validity
// views, and extension requests. Every change appends to the company change
// log.
type CompanyService struct {
	companies companyDirectory
	engineers engineerStore
	audit     companyAuditor
	files     attachmentFiles
	gate      *authz.Gate
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewCompanyService constructs the service.
func NewCompanyService(companies companyDirectory, engineers engineerStore, audit companyAuditor, files attachmentFiles, gate *authz.Gate, logger *zap.Logger) *CompanyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gate == nil {
		gate = authz.New()
	}
	return &CompanyService{
		companies: companies,
		engineers: engineers,
		audit:     audit,
		files:     files,
		gate:      gate,
		validate:  validator.New(),
		logger:    logger,
	}
}

func (s *CompanyService) role(actor *models.JWTClaims) (models.UserRole, error) {
	if actor == nil {
		return "", appErrors.ErrUnauthorized
	}
	role, ok := authz.ResolveRole(string(actor.Role))
	if !ok {
		return "", appErrors.ErrForbidden
	}
	return role, nil
}

// Create registers a company. The nominated engineer must hold a
// public-health certificate, and a termite certificate too when the company
// claims termite control.
func (s *CompanyService) Create(ctx context.Context, req dto.CreateCompanyRequest, actor *models.JWTClaims) (*models.Company, error) {
	role, err := s.role(actor)
	if err != nil {
		return nil, err
	}
	if !s.gate.CanDataEntry(role) {
		return nil, appErrors.ErrForbidden
	}
	if err := appErrors.Validation(collectValidationDetails(s.validate.Struct(req))); err != nil {
		return nil, err
	}

	engineer, err := s.loadCertifiedEngineer(ctx, req.EngineerID, req.Activities)
	if err != nil {
		return nil, err
	}

	if _, err := s.companies.GetByNameNumber(ctx, strings.TrimSpace(req.Name), strings.TrimSpace(req.Number)); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "company already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check company")
	}

	company := &models.Company{
		Name:       strings.TrimSpace(req.Name),
		Number:     strings.TrimSpace(req.Number),
		Address:    req.Address,
		Phone:      req.Phone,
		Email:      req.Email,
		Activities: models.JoinActivities(models.NormalizeActivities(req.Activities)),
		EngineerID: &engineer.ID,
	}
	if err := s.companies.Create(ctx, company); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create company")
	}

	s.log(ctx, &models.CompanyChangeLog{
		CompanyID: company.ID,
		Kind:      models.CompanyChangeCreated,
		Note:      "company registered",
	}, actor)
	return company, nil
}

// Update rewrites mutable company fields; each changed field is listed in
// the change-log note, and an engineer swap gets its own entry.
func (s *CompanyService) Update(ctx context.Context, companyID string, req dto.UpdateCompanyRequest, actor *models.JWTClaims) (*models.Company, error) {
	role, err := s.role(actor)
	if err != nil {
		return nil, err
	}
	if !s.gate.CanAdmin(role) {
		return nil, appErrors.ErrForbidden
	}
	if err := appErrors.Validation(collectValidationDetails(s.validate.Struct(req))); err != nil {
		return nil, err
	}

	company, err := s.loadCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	changed := make([]string, 0, 5)
	if company.Name != strings.TrimSpace(req.Name) {
		changed = append(changed, "name")
	}
	if company.Number != strings.TrimSpace(req.Number) {
		changed = append(changed, "number")
	}
	if company.Address != req.Address {
		changed = append(changed, "address")
	}
	if company.Phone != req.Phone {
		changed = append(changed, "phone")
	}
	if company.Email != req.Email {
		changed = append(changed, "email")
	}

	engineerChanged := false
	if req.EngineerID != "" && (company.EngineerID == nil || *company.EngineerID != req.EngineerID) {
		engineer, err := s.loadCertifiedEngineer(ctx, req.EngineerID, req.Activities)
		if err != nil {
			return nil, err
		}
		company.EngineerID = &engineer.ID
		engineerChanged = true
	}

	company.Name = strings.TrimSpace(req.Name)
	company.Number = strings.TrimSpace(req.Number)
	company.Address = req.Address
	company.Phone = req.Phone
	company.Email = req.Email
	if len(req.Activities) > 0 {
		normalized := models.JoinActivities(models.NormalizeActivities(req.Activities))
		if normalized != company.Activities {
			changed = append(changed, "activities")
		}
		company.Activities = normalized
	}

	if err := s.companies.Update(ctx, company); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrCompanyNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update company")
	}

	if len(changed) > 0 {
		s.log(ctx, &models.CompanyChangeLog{
			CompanyID: company.ID,
			Kind:      models.CompanyChangeUpdated,
			Note:      fmt.Sprintf("updated %s", strings.Join(changed, ", ")),
		}, actor)
	}
	if engineerChanged {
		s.log(ctx, &models.CompanyChangeLog{
			CompanyID: company.ID,
			Kind:      models.CompanyChangeEngineerChanged,
			Note:      "supervising engineer changed",
		}, actor)
	}
	return company, nil
}

// RequestExtension records a validity extension request with its supporting
// attachment.
func (s *CompanyService) RequestExtension(ctx context.Context, companyID string, req dto.ExtensionRequest, actor *models.JWTClaims) error {
	role, err := s.role(actor)
	if err != nil {
		return err
	}
	if !s.gate.CanDataEntry(role) {
		return appErrors.ErrForbidden
	}

	company, err := s.loadCompany(ctx, companyID)
	if err != nil {
		return err
	}

	var attachment *string
	if req.Attachment != nil {
		if !allowedDocExt(req.Attachment.Filename) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("attachment: extension not allowed for %s", req.Attachment.Filename))
		}
		path := fmt.Sprintf("companies/%s/extension_%s", company.ID, filepath.Base(req.Attachment.Filename))
		if _, err := s.files.Save(path, req.Attachment.Content); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attachment")
		}
		attachment = &path
	}

	note := strings.TrimSpace(req.Note)
	if note == "" {
		note = "validity extension requested"
	}
	entry := &models.CompanyChangeLog{
		CompanyID:  company.ID,
		Kind:       models.CompanyChangeExtensionRequested,
		Note:       note,
		Attachment: attachment,
	}
	if actor != nil {
		entry.UserID = &actor.UserID
		entry.UserName = &actor.FullName
	}
	if err := s.audit.CreateCompanyLog(ctx, entry); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record extension request")
	}
	return nil
}

// List returns the register with, per company, the activity labels of its
// latest issued pest-control permit.
func (s *CompanyService) List(ctx context.Context, query dto.CompanyQuery, actor *models.JWTClaims) ([]dto.CompanyListItem, *models.Pagination, error) {
	if _, err := s.role(actor); err != nil {
		return nil, nil, err
	}

	companies, total, err := s.companies.List(ctx, models.CompanyFilter{
		Search:    query.Search,
		Page:      query.Page,
		PageSize:  query.PageSize,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list companies")
	}

	items := make([]dto.CompanyListItem, 0, len(companies))
	for _, company := range companies {
		stored, err := s.companies.LatestIssuedActivities(ctx, company.ID)
		if err != nil {
			s.logger.Warn("latest issued activities", zap.String("company_id", company.ID), zap.Error(err))
		}
		labels := activityLabels(models.NormalizeActivities(models.SplitActivities(stored)))
		items = append(items, dto.CompanyListItem{Company: company, ActivityLabels: labels})
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	return items, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get assembles the company detail view with validity windows and the change
// log.
func (s *CompanyService) Get(ctx context.Context, companyID string, actor *models.JWTClaims) (*dto.CompanyDetailResponse, error) {
	if _, err := s.role(actor); err != nil {
		return nil, err
	}
	company, err := s.loadCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	var engineer *models.Engineer
	if company.EngineerID != nil {
		engineer, err = s.engineers.GetByID(ctx, *company.EngineerID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load engineer")
		}
	}

	validities, err := s.companies.PermitValidities(ctx, company.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load validities")
	}
	changeLog, err := s.audit.ListCompanyLogs(ctx, company.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load change log")
	}
	return &dto.CompanyDetailResponse{
		Company:    company,
		Engineer:   engineer,
		Validities: validities,
		ChangeLog:  changeLog,
	}, nil
}

func (s *CompanyService) loadCompany(ctx context.Context, id string) (*models.Company, error) {
	company, err := s.companies.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrCompanyNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load company")
	}
	return company, nil
}

func (s *CompanyService) loadCertifiedEngineer(ctx context.Context, engineerID string, activities []string) (*models.Engineer, error) {
	engineer, err := s.engineers.GetByID(ctx, engineerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrEngineerNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load engineer")
	}
	if !engineer.HasPublicHealthCert() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "engineer lacks public health certificate")
	}
	for _, activity := range activities {
		if activity == models.ActivityTermite && !engineer.HasTermiteCert() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "engineer lacks termite certificate")
		}
	}
	return engineer, nil
}

func collectValidationDetails(err error) []string {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fmt.Sprintf("%s: failed %s validation", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return details
}

func (s *CompanyService) log(ctx context.Context, entry *models.CompanyChangeLog, actor *models.JWTClaims) {
	if actor != nil {
		entry.UserID = &actor.UserID
		entry.UserName = &actor.FullName
	}
	if err := s.audit.CreateCompanyLog(ctx, entry); err != nil {
		s.logger.Warn("company change log", zap.String("company_id", entry.CompanyID), zap.Error(err))
	}
}
