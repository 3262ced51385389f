// Package llm provides the generation service used by every model-backed pipeline stage:
// a provider-neutral client, structured (schema-validated) generation and the retry policy.
package llm

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for cheap high-volume judgement: screening snippets, query generation
	TierLite ModelTier = "lite"
	// TierStandard is for structured output: profile structuring, scoring
	TierStandard ModelTier = "standard"
	// TierAdvanced is for longer-form reasoning: verification, outreach writing
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	ProviderGemini Provider = "gemini"
)

// DefaultEmbeddingModel is the model used for candidate document embeddings.
const DefaultEmbeddingModel = "text-embedding-004"

// Config holds the model configuration for the application
type Config struct {
	Provider       Provider
	Models         map[ModelTier]string
	EmbeddingModel string
	Temperature    float32
}

// DefaultConfig returns the default configuration (currently Gemini)
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		EmbeddingModel: DefaultEmbeddingModel,
		Temperature:    0.2,
	}
}

// GetModel returns the model for tier. An unconfigured tier borrows the
// standard model, then the lite one.
func (c *Config) GetModel(tier ModelTier) string {
	for _, t := range []ModelTier{tier, TierStandard, TierLite} {
		if model, ok := c.Models[t]; ok {
			return model
		}
	}
	return ""
}

// WithModel returns a copy of c that uses model for tier.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	out := *c
	out.Models = make(map[ModelTier]string, len(c.Models)+1)
	for t, m := range c.Models {
		out.Models[t] = m
	}
	out.Models[tier] = model
	return &out
}
