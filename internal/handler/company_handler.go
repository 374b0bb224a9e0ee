package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hcsd/permit-clearance-api/internal/dto"
	"github.com/hcsd/permit-clearance-api/internal/service"
	appErrors "github.com/hcsd/permit-clearance-api/pkg/errors"
	"github.com/hcsd/permit-clearance-api/pkg/response"
)

// CompanyHandler exposes the company register over REST.
type CompanyHandler struct {
	service     *service.CompanyService
	maxFileSize int64
}

// NewCompanyHandler constructs the handler.
func NewCompanyHandler(svc *service.CompanyService, maxFileSize int64) *CompanyHandler {
	return &CompanyHandler{service: svc, maxFileSize: maxFileSize}
}

// Create godoc
// @Summary Register a company
// @Tags Companies
// @Accept json
// @Produce json
// @Param payload body dto.CreateCompanyRequest true "Company payload"
// @Success 201 {object} response.Envelope
// @Router /companies [post]
func (h *CompanyHandler) Create(c *gin.Context) {
	var req dto.CreateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid company payload"))
		return
	}
	company, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, company)
}

// Update godoc
// @Summary Update a company
// @Tags Companies
// @Accept json
// @Produce json
// @Param id path string true "Company ID"
// @Param payload body dto.UpdateCompanyRequest true "Company payload"
// @Success 200 {object} response.Envelope
// @Router /companies/{id} [put]
func (h *CompanyHandler) Update(c *gin.Context) {
	var req dto.UpdateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid company payload"))
		return
	}
	company, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, company, nil)
}

// RequestExtension godoc
// @Summary Request a validity extension
// @Tags Companies
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Company ID"
// @Param note formData string false "Request note"
// @Param attachment formData file false "Supporting attachment"
// @Success 204 {object} response.Envelope
// @Router /companies/{id}/extension-requests [post]
func (h *CompanyHandler) RequestExtension(c *gin.Context) {
	req := dto.ExtensionRequest{Note: c.PostForm("note")}
	attachment, err := formFile(c, "attachment", h.maxFileSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	req.Attachment = attachment

	if err := h.service.RequestExtension(c.Request.Context(), c.Param("id"), req, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// List godoc
// @Summary List companies
// @Tags Companies
// @Produce json
// @Param search query string false "Name or number search"
// @Success 200 {object} response.Envelope
// @Router /companies [get]
func (h *CompanyHandler) List(c *gin.Context) {
	query := dto.CompanyQuery{
		Search:    strings.TrimSpace(c.Query("search")),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "50"))

	items, pagination, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Company detail
// @Tags Companies
// @Produce json
// @Param id path string true "Company ID"
// @Success 200 {object} response.Envelope
// @Router /companies/{id} [get]
func (h *CompanyHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}
