package service

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims defines the custom claims carried by access tokens issued by the auth service.
type Claims struct {
	UserID uuid.UUID
	Roles  []string
	jwt.RegisteredClaims
}

// TokenVerifier validates access tokens. Issuance belongs to the external auth service.
type TokenVerifier interface {
	// VerifyAccessToken checks the signature and expiry of a token and extracts its claims.
	VerifyAccessToken(tokenString string) (*Claims, error)
}
