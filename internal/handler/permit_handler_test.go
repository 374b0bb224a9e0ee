package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/hcsd/permit-clearance-api/internal/service"
	"github.com/hcsd/permit-clearance-api/pkg/storage"
)

func newPermitHandler(t *testing.T) *PermitHandler {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Minute)
	svc := service.NewPermitService(service.PermitServiceDeps{})
	return NewPermitHandler(svc, signer, files, 1<<20)
}

func TestPermitCreateRequiresAuthentication(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newPermitHandler(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/permits", bytes.NewReader([]byte(`{"permit_type":"pest_control"}`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPermitActionRejectsInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newPermitHandler(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/permits/p1/actions", bytes.NewReader([]byte(`not-json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "p1"}}

	handler.Action(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServeFileWithSignedToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Minute)
	handler := NewPermitHandler(service.NewPermitService(service.PermitServiceDeps{}), signer, files, 1<<20)

	_, err = files.Save("documents/p1/report.pdf", []byte("pdf-bytes"))
	require.NoError(t, err)
	token, _, err := signer.Generate("p1", "documents/p1/report.pdf")
	require.NoError(t, err)

	router := gin.New()
	router.GET("/files/:token", handler.ServeFile)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/files/"+token, nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "pdf-bytes", w.Body.String())

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/files/"+token+"tampered", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPermitQueryParsing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet,
		"/permits?status=order_received,%20review_pending&type=pest_control&page=2&page_size=25&search=PRM", nil)
	c.Request = req

	query := permitQueryFromContext(c)
	require.Len(t, query.Status, 2)
	require.Equal(t, "pest_control", string(query.Type))
	require.Equal(t, 2, query.Page)
	require.Equal(t, 25, query.PageSize)
	require.Equal(t, "PRM", query.Search)
}
