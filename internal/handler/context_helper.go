package handler

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coursework-api/internal/middleware"
	"github.com/noah-isme/coursework-api/internal/models"
	appErrors "github.com/noah-isme/coursework-api/pkg/errors"
)

// timeLayouts are accepted for date query parameters, most specific first.
var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.Claims(c)
	if !ok {
		return nil
	}
	return claims
}

// bindJSON decodes the request body, reporting malformed JSON as a validation error.
func bindJSON(c *gin.Context, dest interface{}, message string) error {
	if err := c.ShouldBindJSON(dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	return nil
}

// timeQuery parses a required date query parameter.
func timeQuery(c *gin.Context, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, appErrors.WithDetails(appErrors.ErrValidation, name+" is required", map[string]string{name: "is required"})
	}
	t, err := parseTime(raw)
	if err != nil {
		return time.Time{}, appErrors.WithDetails(appErrors.ErrValidation, "invalid "+name, map[string]string{name: "must be an ISO-8601 date-time"})
	}
	return t, nil
}

// optionalTimeQuery parses a date query parameter when present.
func optionalTimeQuery(c *gin.Context, name string) (*time.Time, error) {
	if c.Query(name) == "" {
		return nil, nil
	}
	t, err := timeQuery(c, name)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseTime(raw string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", raw)
}

// listMeta returns the response metadata for a collection of n items.
func listMeta(c *gin.Context, n int) map[string]interface{} {
	middleware.SetMeta(c, "count", n)
	return middleware.ExtractMeta(c)
}
