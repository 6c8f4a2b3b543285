package llm

import (
	"context"

	"github.com/qualia-lab/qualia/internal/model"
)

// Provider defines the interface for analysis-service backends
type Provider interface {
	// Name returns the provider name
	Name() string

	// Extract sends a coding prompt and returns the validated structured
	// response. A service failure (timeout, rate limit, malformed output)
	// is returned as an error, never as empty content.
	Extract(ctx context.Context, req ExtractRequest) (*ExtractResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// ExtractRequest contains one structured-extraction call
type ExtractRequest struct {
	// Prompt is the full coding prompt (codebook context + segment text)
	Prompt string

	// System overrides the default system prompt (used by prompt-variation studies)
	System string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int

	// Temperature controls sampling
	Temperature float64
}

// ExtractResponse is the validated structured output of one analysis call
type ExtractResponse struct {
	// Applications are codes from the existing codebook applied to quotes
	Applications []AppliedCode `json:"applications"`

	// NewCodes are candidate codes not yet in the codebook
	NewCodes []CandidateCode `json:"new_codes"`

	// Modifications are suggested revisions to existing codes
	Modifications []CodeRevision `json:"modifications"`

	// Memo is an optional short analytical note
	Memo string `json:"memo,omitempty"`

	// Model is the model that produced the response
	Model string `json:"-"`

	// TokensUsed tracks token consumption
	TokensUsed int `json:"-"`
}

// AppliedCode applies an existing code (by name) to an evidentiary quote
type AppliedCode struct {
	CodeName   string  `json:"code_name"`
	Quote      string  `json:"quote"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// CandidateCode proposes a brand-new code
type CandidateCode struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ParentName  string   `json:"parent_name,omitempty"`
	Properties  []string `json:"properties,omitempty"`
	Examples    []string `json:"examples,omitempty"`
	Confidence  float64  `json:"confidence"`
	Reasoning   string   `json:"reasoning,omitempty"`
}

// CodeRevision suggests changes to an existing code, matched by name
type CodeRevision struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Properties  []string `json:"properties,omitempty"`
}

// Config holds analysis-service provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Temperature for sampling
	Temperature float64
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Timeout:     60,
		MaxTokens:   2000,
		Temperature: 0.3,
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(mc model.LLMConfig) Config {
	return Config{
		Provider:    mc.Provider,
		Model:       mc.Model,
		APIKey:      mc.APIKey,
		BaseURL:     mc.BaseURL,
		Timeout:     mc.Timeout,
		MaxTokens:   mc.MaxTokens,
		Temperature: mc.Temperature,
	}
}
