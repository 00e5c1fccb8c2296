// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"hotspot/config"
	"hotspot/internal/domain/service"
)

const accessTokenType = "access"

// jwtService verifies HS256 access tokens issued by the external auth service.
type jwtService struct {
	accessSecret []byte        // Secret key used to verify access tokens.
	leeway       time.Duration // Allowed clock skew.
}

// NewJWTService is the constructor for jwtService.
func NewJWTService(cfg *config.Config) (service.TokenVerifier, error) {
	if cfg.SecretKey.Access == "" {
		return nil, errors.New("jwt access secret must be provided")
	}

	return &jwtService{
		accessSecret: []byte(cfg.SecretKey.Access),
		leeway:       30 * time.Second,
	}, nil
}

// VerifyAccessToken checks the signature, expiry and type of an access token and extracts its claims.
func (s *jwtService) VerifyAccessToken(tokenString string) (*service.Claims, error) {
	mapClaims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, mapClaims, func(token *jwt.Token) (any, error) {
		// Ensure the signing method is what we expect.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}

		return s.accessSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
	)
	if err != nil {
		return nil, errors.Wrap(err, "invalid access token")
	}

	if tokenType, _ := mapClaims["type"].(string); tokenType != accessTokenType {
		return nil, errors.Errorf("unexpected token type %q", tokenType)
	}

	subject, err := mapClaims.GetSubject()
	if err != nil {
		return nil, errors.Wrap(err, "read subject")
	}
	userID, err := uuid.Parse(subject)
	if err != nil {
		return nil, errors.Wrap(err, "subject is not a user id")
	}

	claims := &service.Claims{UserID: userID}
	claims.Subject = subject
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat
	}
	if roles, ok := mapClaims["roles"].([]any); ok {
		for _, role := range roles {
			if name, ok := role.(string); ok {
				claims.Roles = append(claims.Roles, name)
			}
		}
	}

	return claims, nil
}
