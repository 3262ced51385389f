package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonathan/talent-pipeline/internal/schemas"
)

// Request is one schema-constrained generation call.
type Request struct {
	Prompt string
	Tier   ModelTier
	// Schema names an embedded schema in package schemas. Empty skips validation.
	Schema string
}

// GenerateStructured calls the model through WithRetry, validates the cleaned
// response against req.Schema and decodes it into out.
//
// Only upstream failures are retried. A response that fails validation is
// returned as *schemas.ValidationError so the calling stage can fall back.
func GenerateStructured(ctx context.Context, client Client, policy RetryPolicy, req Request, out any) error {
	raw, err := WithRetry(ctx, policy, func(ctx context.Context) (string, error) {
		return client.GenerateJSON(ctx, req.Prompt, req.Tier)
	})
	if err != nil {
		return err
	}

	cleaned := CleanJSONBlock(raw)
	if req.Schema != "" {
		if err := schemas.Validate(req.Schema, cleaned); err != nil {
			return err
		}
	}
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", req.Schema, err)
	}
	return nil
}
