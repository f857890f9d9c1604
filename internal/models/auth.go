package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the role token accompanying every request.
type JWTClaims struct {
	UserID        string   `json:"user_id"`
	Role          UserRole `json:"role"`
	InstitutionID string   `json:"institution_id"`
	FullName      string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Actor converts the claims into a workflow actor.
func (c *JWTClaims) Actor() Actor {
	if c == nil {
		return Actor{}
	}
	return Actor{ID: c.UserID, Role: c.Role, InstitutionID: c.InstitutionID, Name: c.FullName}
}
