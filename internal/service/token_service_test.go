package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sigpae-api/internal/models"
	appErrors "github.com/noah-isme/sigpae-api/pkg/errors"
)

const testSecret = "test-secret"

func signClaims(t *testing.T, method jwt.SigningMethod, key interface{}, claims models.JWTClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims(role models.UserRole) models.JWTClaims {
	return models.JWTClaims{
		UserID:        "user-1",
		Role:          role,
		InstitutionID: "escola-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "sigpae",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestTokenServiceValidateToken(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: testSecret, Issuer: "sigpae"})

	claims, err := svc.ValidateToken(signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims(models.RoleEscola)))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleEscola, claims.Role)
	assert.Equal(t, "escola-1", claims.Actor().InstitutionID)
}

func TestTokenServiceRejects(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: testSecret, Issuer: "sigpae"})

	expired := validClaims(models.RoleDRE)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	noExpiry := validClaims(models.RoleDRE)
	noExpiry.ExpiresAt = nil

	wrongIssuer := validClaims(models.RoleDRE)
	wrongIssuer.Issuer = "other"

	noUser := validClaims(models.RoleDRE)
	noUser.UserID = ""

	sistema := validClaims(models.RoleSistema)

	cases := map[string]string{
		"expired":      signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), expired),
		"no expiry":    signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), noExpiry),
		"wrong issuer": signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), wrongIssuer),
		"wrong secret": signClaims(t, jwt.SigningMethodHS256, []byte("other"), validClaims(models.RoleDRE)),
		"wrong method": signClaims(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims(models.RoleDRE)),
		"no user":      signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), noUser),
		"system role":  signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), sistema),
		"garbage":      "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			var appErr *appErrors.Error
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
		})
	}
}

func TestTokenServiceLeeway(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: testSecret, Leeway: time.Minute})
	claims := validClaims(models.RoleCODAE)
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-30 * time.Second))

	_, err := svc.ValidateToken(signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), claims))
	assert.NoError(t, err)
}
