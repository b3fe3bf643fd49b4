package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursework-api/internal/models"
	"github.com/noah-isme/coursework-api/internal/service"
	appErrors "github.com/noah-isme/coursework-api/pkg/errors"
)

type stubValidator struct {
	claims *models.JWTClaims
	err    error
	token  string
}

func (s *stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	s.token = token
	return s.claims, s.err
}

func newGuardedRouter(v TokenValidator, roles ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/guarded", JWT(v), RequireRoles(roles...), func(c *gin.Context) {
		claims, _ := Claims(c)
		c.String(http.StatusOK, claims.Username)
	})
	return r
}

func serve(r *gin.Engine, header string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	r.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestJWTRejectsMissingHeader(t *testing.T) {
	r := newGuardedRouter(&stubValidator{}, models.RoleStudent)

	rec := serve(r, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))

	rec = serve(r, "Token abc")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTRejectsInvalidToken(t *testing.T) {
	r := newGuardedRouter(&stubValidator{err: appErrors.ErrInvalidToken}, models.RoleStudent)

	rec := serve(r, "Bearer bad")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", errorCode(t, rec))
}

func TestRequireRoles(t *testing.T) {
	validator := &stubValidator{claims: &models.JWTClaims{Username: "estudiante", Role: models.RoleStudent}}

	allowed := serve(newGuardedRouter(validator, models.RoleStudent, models.RoleProfessor), "Bearer good")
	assert.Equal(t, http.StatusOK, allowed.Code)
	assert.Equal(t, "estudiante", allowed.Body.String())
	assert.Equal(t, "good", validator.token)

	denied := serve(newGuardedRouter(validator, models.RoleAdmin), "bearer good")
	assert.Equal(t, http.StatusForbidden, denied.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, denied))
}

func TestExtractMetaStampsProcessingTime(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WithResponseMeta())
	var meta map[string]interface{}
	r.GET("/meta", func(c *gin.Context) {
		SetMeta(c, "count", 2)
		meta = ExtractMeta(c)
		c.Status(http.StatusNoContent)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/meta", nil))
	assert.Equal(t, 2, meta["count"])
	assert.Contains(t, meta, "processing_time_ms")
}

func TestMetricsRecordsRoutePattern(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/tasks/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tasks/t-1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `coursework_http_requests_total{method="GET",path="/tasks/:id",status="200"} 1`)
	assert.Contains(t, body, `path="unmatched",status="404"`)
	assert.False(t, strings.Contains(body, "t-1"))
}
