package config

import "fmt"

const (
	EnvJWTSecret          = "JWT_SECRET"
	EnvJWTExpirationHours = "JWT_EXPIRATION_HOURS"

	defaultTokenHours = 24
	minSecretLength   = 16
)

// JWTConfig is the HMAC secret shared by the API (which verifies bearer
// tokens) and the token command (which issues them).
type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

// NewJWTConfig reads JWT_SECRET and JWT_EXPIRATION_HOURS. A nil config with a
// nil error means no secret is set and the API is open.
func NewJWTConfig() (*JWTConfig, error) {
	secret := getEnvString(EnvJWTSecret, "")
	if secret == "" {
		return nil, nil
	}
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("%s must be at least %d characters", EnvJWTSecret, minSecretLength)
	}

	hours, err := getEnvInt(EnvJWTExpirationHours, defaultTokenHours)
	if err != nil {
		return nil, err
	}
	if hours < 1 {
		return nil, fmt.Errorf("%s must be at least 1 hour, got: %d", EnvJWTExpirationHours, hours)
	}

	return &JWTConfig{Secret: secret, ExpirationHours: hours}, nil
}
