package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/membership-consent-api/internal/middleware"
	"github.com/noah-isme/membership-consent-api/internal/models"
	appErrors "github.com/noah-isme/membership-consent-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		return nil
	}
	return claims
}

// uuidParam reads a path parameter that must hold a uuid and returns it in canonical form.
func uuidParam(c *gin.Context, name string) (string, error) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid "+name)
	}
	return id.String(), nil
}

// scopeQuery reads the optional scope query parameter.
func scopeQuery(c *gin.Context) (string, error) {
	raw := strings.TrimSpace(c.Query("scope"))
	if raw == "" {
		return "", nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scope")
	}
	return id.String(), nil
}
