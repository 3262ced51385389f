package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jonathan/talent-pipeline/internal/config"
	"github.com/jonathan/talent-pipeline/internal/server/middleware"
)

const tokenIssuer = "talent-pipeline"

// Claims are the API token claims. Subject names the calling client and is
// logged with every job it submits.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTService signs and verifies HS256 bearer tokens for the job API.
type JWTService struct {
	config *config.JWTConfig
	now    func() time.Time
}

func NewJWTService(cfg *config.JWTConfig) *JWTService {
	return &JWTService{config: cfg, now: time.Now}
}

// GenerateToken issues a token for subject that expires after the configured
// number of hours.
func (s *JWTService) GenerateToken(subject string) (string, error) {
	if subject == "" {
		return "", errors.New("token subject is empty")
	}
	issued := s.now()
	ttl := time.Duration(s.config.ExpirationHours) * time.Hour

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
		},
	})
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies signature, issuer and lifetime and returns the claims.
func (s *JWTService) ValidateToken(raw string) (*Claims, error) {
	if raw == "" {
		return nil, errors.New("token string is empty")
	}

	parser := jwt.NewParser(
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	claims := &Claims{}
	if _, err := parser.ParseWithClaims(raw, claims, s.signingKey); err != nil {
		return nil, describeTokenError(err)
	}
	return claims, nil
}

func (s *JWTService) signingKey(*jwt.Token) (any, error) {
	return []byte(s.config.Secret), nil
}

func describeTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("token expired: %w", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("invalid token signature: %w", err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("malformed token: %w", err)
	default:
		return fmt.Errorf("invalid token: %w", err)
	}
}

// AsTokenValidator exposes the service to the auth middleware.
func (s *JWTService) AsTokenValidator() middleware.TokenValidator {
	return tokenValidatorFunc(func(raw string) (middleware.SubjectGetter, error) {
		claims, err := s.ValidateToken(raw)
		if err != nil {
			return nil, err
		}
		return claims, nil
	})
}

type tokenValidatorFunc func(string) (middleware.SubjectGetter, error)

func (f tokenValidatorFunc) ValidateToken(raw string) (middleware.SubjectGetter, error) {
	return f(raw)
}
