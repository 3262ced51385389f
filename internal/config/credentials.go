package config

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables holding external service credentials.
const (
	EnvGeminiAPIKey       = "GEMINI_API_KEY"
	EnvSearchAPIKey       = "GOOGLE_SEARCH_API_KEY"
	EnvSearchCX           = "GOOGLE_SEARCH_CX"
	EnvEnrichmentURL      = "ENRICHMENT_API_URL"
	EnvEnrichmentAPIToken = "ENRICHMENT_API_TOKEN"
)

// Credentials are the secrets the pipeline needs to reach external services.
type Credentials struct {
	GeminiAPIKey    string
	SearchAPIKey    string
	SearchCX        string
	EnrichmentURL   string
	EnrichmentToken string
}

// ConfigurationError lists required settings that are missing.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: missing required settings: %s", strings.Join(e.Missing, ", "))
}

// CredentialsFromEnv reads credentials from the environment.
func CredentialsFromEnv() Credentials {
	return Credentials{
		GeminiAPIKey:    strings.TrimSpace(os.Getenv(EnvGeminiAPIKey)),
		SearchAPIKey:    strings.TrimSpace(os.Getenv(EnvSearchAPIKey)),
		SearchCX:        strings.TrimSpace(os.Getenv(EnvSearchCX)),
		EnrichmentURL:   strings.TrimSpace(os.Getenv(EnvEnrichmentURL)),
		EnrichmentToken: strings.TrimSpace(os.Getenv(EnvEnrichmentAPIToken)),
	}
}

// Validate returns *ConfigurationError naming every missing credential.
func (c Credentials) Validate() error {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check(EnvGeminiAPIKey, c.GeminiAPIKey)
	check(EnvSearchAPIKey, c.SearchAPIKey)
	check(EnvSearchCX, c.SearchCX)
	check(EnvEnrichmentURL, c.EnrichmentURL)
	check(EnvEnrichmentAPIToken, c.EnrichmentToken)

	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}
