package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/membership-consent-api/internal/models"
	appErrors "github.com/noah-isme/membership-consent-api/pkg/errors"
)

func TestTokenServiceRoundTrip(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "s3cret", Issuer: "membership-consent-api", Expiration: time.Hour})

	token, expiresAt, err := svc.Issue("user-1", models.RoleAdmin, "ops@example.org", 0)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, "ops@example.org", claims.Email)
}

func TestTokenServiceRejectsForeignTokens(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "s3cret", Issuer: "membership-consent-api"})

	other := NewTokenService(TokenConfig{Secret: "other", Issuer: "membership-consent-api"})
	token, _, err := other.Issue("user-1", models.RoleMember, "", time.Minute)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	wrongIssuer := NewTokenService(TokenConfig{Secret: "s3cret", Issuer: "someone-else"})
	token, _, err = wrongIssuer.Issue("user-1", models.RoleMember, "", time.Minute)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(unsigned)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestTokenServiceRejectsExpiredTokens(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "s3cret"})
	svc.clock = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := svc.Issue("user-1", models.RoleBoard, "", time.Hour)
	require.NoError(t, err)

	svc.clock = func() time.Time { return time.Now().UTC() }
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestTokenServiceIssueValidation(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "s3cret"})
	_, _, err := svc.Issue("", models.RoleAdmin, "", 0)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, _, err = svc.Issue("user-1", models.UserRole("ROOT"), "", 0)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
