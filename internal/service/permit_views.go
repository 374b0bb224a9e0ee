package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hcsd/permit-clearance-api/internal/dto"
	"github.com/hcsd/permit-clearance-api/internal/models"
	appErrors "github.com/hcsd/permit-clearance-api/pkg/errors"
	"github.com/hcsd/permit-clearance-api/pkg/export"
)

const permitListKeyPattern = "permits:list:*"

type cachedPermitList struct {
	Items      []dto.PermitListItem `json:"items"`
	Pagination models.Pagination    `json:"pagination"`
}

func permitListKey(query dto.PermitQuery) string {
	statuses := make([]string, 0, len(query.Status))
	for _, s := range query.Status {
		statuses = append(statuses, string(s))
	}
	return fmt.Sprintf("permits:list:%s:%s:%s:%s:%d:%d:%s:%s",
		strings.Join(statuses, "+"), query.Type, query.CompanyID, query.Search,
		query.Page, query.PageSize, query.SortBy, query.SortOrder)
}

// List returns the clearance dashboard rows, served from cache when fresh.
func (s *PermitService) List(ctx context.Context, query dto.PermitQuery, actor *models.JWTClaims) ([]dto.PermitListItem, *models.Pagination, error) {
	if _, err := s.role(actor); err != nil {
		return nil, nil, err
	}

	key := permitListKey(query)
	if s.cache != nil {
		start := time.Now()
		var cached cachedPermitList
		err := s.cache.Get(ctx, key, &cached)
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(err == nil, time.Since(start))
		}
		if err == nil {
			return cached.Items, &cached.Pagination, nil
		}
	}

	permits, total, err := s.permits.List(ctx, models.PermitFilter{
		Status:    query.Status,
		Type:      query.Type,
		CompanyID: query.CompanyID,
		Search:    query.Search,
		Page:      query.Page,
		PageSize:  query.PageSize,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list permits")
	}

	companyNames := make(map[string]string)
	items := make([]dto.PermitListItem, 0, len(permits))
	for _, permit := range permits {
		name, ok := companyNames[permit.CompanyID]
		if !ok {
			if company, err := s.companies.GetByID(ctx, permit.CompanyID); err == nil {
				name = company.Name
			}
			companyNames[permit.CompanyID] = name
		}
		items = append(items, dto.PermitListItem{
			ID:          permit.ID,
			PermitNo:    permit.PermitNo,
			PermitType:  permit.Type,
			Status:      permit.Status,
			CompanyID:   permit.CompanyID,
			CompanyName: name,
			CreatedAt:   permit.CreatedAt.Format(time.RFC3339),
		})
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	pagination := models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, cachedPermitList{Items: items, Pagination: pagination}, s.listTTL); err != nil {
			s.logger.Warn("cache permit list", zap.Error(err))
		}
	}
	return items, &pagination, nil
}

// Get assembles the permit detail view: entity, review, split activity
// lists, documents, and the status/detail change histories.
func (s *PermitService) Get(ctx context.Context, permitID string, actor *models.JWTClaims) (*dto.PermitDetailResponse, error) {
	if _, err := s.role(actor); err != nil {
		return nil, err
	}
	permit, err := s.loadPermit(ctx, permitID)
	if err != nil {
		return nil, err
	}
	review, err := s.reviews.GetByPermit(ctx, permit.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review")
	}
	documents, err := s.permits.ListDocuments(ctx, permit.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load documents")
	}
	statusHistory, err := s.audit.ListPermitLogs(ctx, permit.ID, models.PermitChangeCreated, models.PermitChangeStatus)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status history")
	}
	detailHistory, err := s.audit.ListPermitLogs(ctx, permit.ID,
		models.PermitChangeDetails, models.PermitChangePayment, models.PermitChangeDocumentUpload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load detail history")
	}
	return &dto.PermitDetailResponse{
		Permit:               permit,
		Review:               review,
		AllowedActivities:    models.SplitActivities(permit.AllowedActivities),
		RestrictedActivities: models.SplitActivities(permit.RestrictedActivities),
		Documents:            documents,
		StatusHistory:        statusHistory,
		DetailHistory:        detailHistory,
	}, nil
}

// Print renders the clearance certificate. Allowed only once payment has
// completed or the permit is issued.
func (s *PermitService) Print(ctx context.Context, permitID string, actor *models.JWTClaims) ([]byte, error) {
	if _, err := s.role(actor); err != nil {
		return nil, err
	}
	permit, err := s.loadPermit(ctx, permitID)
	if err != nil {
		return nil, err
	}
	if permit.Status != models.StatusPaymentCompleted && permit.Status != models.StatusIssued {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "not ready to be printed")
	}

	company, err := s.companies.GetByID(ctx, permit.CompanyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load company")
	}
	engineerName := ""
	if permit.EngineerID != nil {
		if engineer, err := s.engineers.GetByID(ctx, *permit.EngineerID); err == nil {
			engineerName = engineer.Name
		}
	}

	cert := export.PermitCertificate{
		PermitNo:             permit.PermitNo,
		PermitType:           string(permit.Type),
		CompanyName:          company.Name,
		CompanyNumber:        company.Number,
		EngineerName:         engineerName,
		Status:               string(permit.Status),
		IssueDate:            formatDate(permit.IssueDate),
		ExpiryDate:           formatDate(permit.ExpiryDate),
		AllowedActivities:    activityLabels(models.SplitActivities(permit.AllowedActivities)),
		RestrictedActivities: activityLabels(models.SplitActivities(permit.RestrictedActivities)),
		OtherActivities:      permit.OtherActivities,
	}
	data, err := s.pdf.Render(cert)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificate")
	}
	return data, nil
}

// ExportCSV renders the full permit register for administrators.
func (s *PermitService) ExportCSV(ctx context.Context, actor *models.JWTClaims) ([]byte, error) {
	role, err := s.role(actor)
	if err != nil {
		return nil, err
	}
	if !s.gate.CanAdmin(role) {
		return nil, appErrors.ErrForbidden
	}

	permits, _, err := s.permits.List(ctx, models.PermitFilter{PageSize: 200})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list permits")
	}

	headers := []string{"permit_no", "permit_type", "status", "company", "issue_date", "expiry_date", "allowed_activities"}
	rows := make([]map[string]string, 0, len(permits))
	companyNames := make(map[string]string)
	for _, permit := range permits {
		name, ok := companyNames[permit.CompanyID]
		if !ok {
			if company, err := s.companies.GetByID(ctx, permit.CompanyID); err == nil {
				name = company.Name
			}
			companyNames[permit.CompanyID] = name
		}
		rows = append(rows, map[string]string{
			"permit_no":          permit.PermitNo,
			"permit_type":        string(permit.Type),
			"status":             string(permit.Status),
			"company":            name,
			"issue_date":         formatDate(permit.IssueDate),
			"expiry_date":        formatDate(permit.ExpiryDate),
			"allowed_activities": permit.AllowedActivities,
		})
	}
	data, err := s.csv.Render(export.Dataset{Headers: headers, Rows: rows})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return data, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func activityLabels(codes []string) []string {
	labels := make([]string, 0, len(codes))
	for _, code := range codes {
		if label, ok := models.ActivityLabels[code]; ok {
			labels = append(labels, label)
			continue
		}
		labels = append(labels, code)
	}
	return labels
}
