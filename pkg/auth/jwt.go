package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	apperrors "chat-backend/pkg/errors"
)

// JWTConfig holds JWT validation configuration
type JWTConfig struct {
	SecretKey string
	Issuer    string
	Audience  string
}

// JWTValidator validates HS256 bearer tokens and extracts the subject
type JWTValidator struct {
	config JWTConfig
	parser *jwt.Parser
}

// NewJWTValidator creates a new JWT validator
func NewJWTValidator(config JWTConfig) (*JWTValidator, error) {
	if config.SecretKey == "" {
		return nil, fmt.Errorf("jwt secret key is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}

	return &JWTValidator{
		config: config,
		parser: jwt.NewParser(opts...),
	}, nil
}

// ValidateToken verifies the token signature and claims and returns the
// user ID from the subject claim.
func (v *JWTValidator) ValidateToken(tokenString string) (string, error) {
	token, err := v.parser.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return []byte(v.config.SecretKey), nil
	})
	if err != nil {
		return "", apperrors.NewForbiddenError("invalid token").WithCause(err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", apperrors.NewForbiddenError("token has no subject")
	}

	return subject, nil
}
