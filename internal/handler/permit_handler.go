package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hcsd/permit-clearance-api/internal/dto"
	"github.com/hcsd/permit-clearance-api/internal/models"
	"github.com/hcsd/permit-clearance-api/internal/service"
	appErrors "github.com/hcsd/permit-clearance-api/pkg/errors"
	"github.com/hcsd/permit-clearance-api/pkg/response"
	"github.com/hcsd/permit-clearance-api/pkg/storage"
)

// PermitHandler exposes the clearance lifecycle over REST. All mutations go
// through either the intake endpoint or the single action dispatch endpoint.
type PermitHandler struct {
	service     *service.PermitService
	signer      *storage.SignedURLSigner
	files       *storage.LocalStorage
	maxFileSize int64
}

// NewPermitHandler constructs the handler.
func NewPermitHandler(svc *service.PermitService, signer *storage.SignedURLSigner, files *storage.LocalStorage, maxFileSize int64) *PermitHandler {
	return &PermitHandler{service: svc, signer: signer, files: files, maxFileSize: maxFileSize}
}

// Create godoc
// @Summary Submit a permit request
// @Tags Permits
// @Accept multipart/form-data
// @Produce json
// @Param permit_type formData string true "Permit type"
// @Param company_name formData string true "Company name"
// @Param company_number formData string true "Company license number"
// @Param engineer_id formData string true "Supervising engineer ID"
// @Param documents formData file false "Request documents"
// @Success 201 {object} response.Envelope
// @Router /permits [post]
func (h *PermitHandler) Create(c *gin.Context) {
	var req dto.CreatePermitRequest
	if isMultipart(c) {
		req = dto.CreatePermitRequest{
			PermitType: models.PermitType(c.PostForm("permit_type")),
			Company: dto.CompanyIntake{
				Name:    c.PostForm("company_name"),
				Number:  c.PostForm("company_number"),
				Address: c.PostForm("company_address"),
				Phone:   c.PostForm("company_phone"),
				Email:   c.PostForm("company_email"),
			},
			EngineerID:      c.PostForm("engineer_id"),
			OtherActivities: c.PostForm("other_activities"),
			RequestEmail:    c.PostForm("request_email"),
		}
		documents, err := formFiles(c, "documents", h.maxFileSize)
		if err != nil {
			response.Error(c, err)
			return
		}
		req.Documents = documents
	} else if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid permit payload"))
		return
	}

	permit, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, permit)
}

// List godoc
// @Summary List permits
// @Tags Permits
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param type query string false "Permit type"
// @Param company_id query string false "Company ID"
// @Param search query string false "Permit number search"
// @Success 200 {object} response.Envelope
// @Router /permits [get]
func (h *PermitHandler) List(c *gin.Context) {
	items, pagination, err := h.service.List(c.Request.Context(), permitQueryFromContext(c), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Permit detail
// @Tags Permits
// @Produce json
// @Param id path string true "Permit ID"
// @Success 200 {object} response.Envelope
// @Router /permits/{id} [get]
func (h *PermitHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Action godoc
// @Summary Apply a lifecycle action
// @Tags Permits
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Permit ID"
// @Param action formData string true "Action name"
// @Success 200 {object} response.Envelope
// @Router /permits/{id}/actions [post]
func (h *PermitHandler) Action(c *gin.Context) {
	var req dto.PermitActionRequest
	if isMultipart(c) {
		req = dto.PermitActionRequest{
			Action:       models.PermitAction(c.PostForm("action")),
			Link:         c.PostForm("link"),
			Reference:    c.PostForm("reference"),
			Email:        c.PostForm("email"),
			Decision:     c.PostForm("decision"),
			Notes:        c.PostForm("notes"),
			Remarks:      c.PostForm("remarks"),
			RequestEmail: c.PostForm("request_email"),
			IssueDate:    c.PostForm("issue_date"),
			ExpiryDate:   c.PostForm("expiry_date"),
		}
		receipt, err := formFile(c, "receipt", h.maxFileSize)
		if err != nil {
			response.Error(c, err)
			return
		}
		req.Receipt = receipt
		photos, err := formFiles(c, "photos", h.maxFileSize)
		if err != nil {
			response.Error(c, err)
			return
		}
		req.Photos = photos
		documents, err := formFiles(c, "documents", h.maxFileSize)
		if err != nil {
			response.Error(c, err)
			return
		}
		req.Documents = documents
	} else if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid action payload"))
		return
	}

	permit, err := h.service.Action(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, permit, nil)
}

// Delete godoc
// @Summary Delete a permit
// @Tags Permits
// @Param id path string true "Permit ID"
// @Success 204 {object} response.Envelope
// @Router /permits/{id} [delete]
func (h *PermitHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Print godoc
// @Summary Render the clearance certificate PDF
// @Tags Permits
// @Produce application/pdf
// @Param id path string true "Permit ID"
// @Success 200 {file} binary
// @Router /permits/{id}/print [get]
func (h *PermitHandler) Print(c *gin.Context) {
	data, err := h.service.Print(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "permit_"+c.Param("id")+".pdf"))
	c.Data(http.StatusOK, "application/pdf", data)
}

// Export godoc
// @Summary Export the permit register as CSV
// @Tags Permits
// @Produce text/csv
// @Success 200 {file} binary
// @Router /exports/permits [get]
func (h *PermitHandler) Export(c *gin.Context) {
	data, err := h.service.ExportCSV(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="permits.csv"`)
	c.Data(http.StatusOK, "text/csv", data)
}

// DocumentURL godoc
// @Summary Issue a signed download URL for a permit document
// @Tags Permits
// @Produce json
// @Param id path string true "Permit ID"
// @Param docID path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /permits/{id}/documents/{docID}/url [get]
func (h *PermitHandler) DocumentURL(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	docID := c.Param("docID")
	var path string
	if docID == "bundle" && detail.Permit.BundleFile != nil {
		path = *detail.Permit.BundleFile
	} else {
		for _, doc := range detail.Documents {
			if doc.ID == docID {
				path = doc.FilePath
				break
			}
		}
	}
	if path == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "document not found"))
		return
	}

	token, expiresAt, err := h.signer.Generate(detail.Permit.ID, path)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download"))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"url":        "/files/" + token,
		"expires_at": expiresAt.Format(time.RFC3339),
	}, nil)
}

// ServeFile streams a stored file referenced by a signed token. Mounted
// outside the authenticated group; the token is the authorization.
func (h *PermitHandler) ServeFile(c *gin.Context) {
	_, relPath, _, err := h.signer.Parse(c.Param("token"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token"))
		return
	}
	c.File(h.files.Path(relPath))
}

func permitQueryFromContext(c *gin.Context) dto.PermitQuery {
	query := dto.PermitQuery{
		Type:      models.PermitType(c.Query("type")),
		CompanyID: c.Query("company_id"),
		Search:    strings.TrimSpace(c.Query("search")),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if raw := c.Query("status"); raw != "" {
		parts := strings.Split(raw, ",")
		statuses := make([]models.PermitStatus, 0, len(parts))
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				statuses = append(statuses, models.PermitStatus(part))
			}
		}
		query.Status = statuses
	}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "50"))
	return query
}
