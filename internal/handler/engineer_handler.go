package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hcsd/permit-clearance-api/internal/dto"
	"github.com/hcsd/permit-clearance-api/internal/service"
	"github.com/hcsd/permit-clearance-api/pkg/response"
)

// EngineerHandler exposes engineer management over REST.
type EngineerHandler struct {
	service     *service.EngineerService
	maxFileSize int64
}

// NewEngineerHandler constructs the handler.
func NewEngineerHandler(svc *service.EngineerService, maxFileSize int64) *EngineerHandler {
	return &EngineerHandler{service: svc, maxFileSize: maxFileSize}
}

// Create godoc
// @Summary Register an engineer
// @Tags Engineers
// @Accept multipart/form-data
// @Produce json
// @Param name formData string true "Engineer name"
// @Param email formData string true "Engineer email"
// @Param public_health_cert formData file true "Public health certificate"
// @Param termite_cert formData file false "Termite certificate"
// @Success 201 {object} response.Envelope
// @Router /engineers [post]
func (h *EngineerHandler) Create(c *gin.Context) {
	req := dto.CreateEngineerRequest{
		Name:  c.PostForm("name"),
		Email: c.PostForm("email"),
		Phone: c.PostForm("phone"),
	}
	phCert, err := formFile(c, "public_health_cert", h.maxFileSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	req.PublicHealthCert = phCert
	termiteCert, err := formFile(c, "termite_cert", h.maxFileSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	req.TermiteCert = termiteCert

	engineer, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, engineer)
}

// UploadCert godoc
// @Summary Attach a certificate to an engineer
// @Tags Engineers
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Engineer ID"
// @Param kind formData string true "Certificate kind"
// @Param file formData file true "Certificate file"
// @Success 200 {object} response.Envelope
// @Router /engineers/{id}/certificates [post]
func (h *EngineerHandler) UploadCert(c *gin.Context) {
	file, err := formFile(c, "file", h.maxFileSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	req := dto.UploadCertRequest{Kind: c.PostForm("kind"), File: file}

	engineer, err := h.service.UploadCert(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, engineer, nil)
}

// List godoc
// @Summary List engineers
// @Tags Engineers
// @Produce json
// @Param search query string false "Name or email search"
// @Success 200 {object} response.Envelope
// @Router /engineers [get]
func (h *EngineerHandler) List(c *gin.Context) {
	query := dto.EngineerQuery{
		Search:    strings.TrimSpace(c.Query("search")),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "50"))

	engineers, pagination, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, engineers, pagination)
}

// Get godoc
// @Summary Engineer detail
// @Tags Engineers
// @Produce json
// @Param id path string true "Engineer ID"
// @Success 200 {object} response.Envelope
// @Router /engineers/{id} [get]
func (h *EngineerHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}
