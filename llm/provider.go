package llm

import (
	"context"

	"github.com/Conceptual-Machines/musicflow/models"
)

// Provider defines the interface for text-to-music LLM providers
// All providers MUST support structured output (JSON Schema) so track data
// can be parsed reliably
type Provider interface {
	// Generate creates track content using the LLM with structured output
	// The provider MUST enforce the OutputSchema to ensure valid JSON responses
	Generate(ctx context.Context, request *GenerationRequest) (*GenerationResponse, error)

	// Name returns the provider name (e.g., "openai", "gemini")
	Name() string
}

// GenerationRequest contains all parameters needed for generation
type GenerationRequest struct {
	Model        string
	InputArray   []map[string]any
	SystemPrompt string
	// Structured output schema - REQUIRED for reliable JSON parsing
	OutputSchema *OutputSchema
}

// OutputSchema defines the expected JSON output structure
type OutputSchema struct {
	Name        string
	Description string
	Schema      map[string]any // JSON Schema object
}

// GenerationResponse contains the result from the LLM
type GenerationResponse struct {
	Output    models.TrackOutput `json:"output"`
	RawOutput string             `json:"-"` // Raw JSON text output
	Usage     any                `json:"usage"`
}
