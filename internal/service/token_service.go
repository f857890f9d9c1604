package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/sigpae-api/internal/models"
	appErrors "github.com/noah-isme/sigpae-api/pkg/errors"
)

var knownRoles = map[models.UserRole]struct{}{
	models.RoleEscola:          {},
	models.RoleDRE:             {},
	models.RoleCODAE:           {},
	models.RoleTerceirizada:    {},
	models.RoleNutrisupervisor: {},
	models.RoleDILOG:           {},
	models.RoleDistribuidor:    {},
}

// TokenConfig holds the shared secret and expectations for role tokens.
type TokenConfig struct {
	Secret string
	Issuer string
	Leeway time.Duration
}

// TokenService validates role tokens issued by the identity provider.
// Tokens are never minted here.
type TokenService struct {
	secret []byte
	opts   []jwt.ParserOption
}

// NewTokenService constructs the validator.
func NewTokenService(cfg TokenConfig) *TokenService {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &TokenService{secret: []byte(cfg.Secret), opts: opts}
}

// ValidateToken parses and checks a bearer token.
func (s *TokenService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, s.opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token has no user")
	}
	if _, ok := knownRoles[claims.Role]; !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, fmt.Sprintf("unknown role %q", claims.Role))
	}
	return claims, nil
}
