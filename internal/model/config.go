package model

import "time"

// Config is the full runtime configuration, assembled from defaults,
// the config file, QUALIA_* environment variables, and CLI flags.
type Config struct {
	Project     ProjectConfig     `yaml:"project"`
	Coding      CodingConfig      `yaml:"coding"`
	Segmenter   SegmenterConfig   `yaml:"segmenter"`
	LLM         LLMConfig         `yaml:"llm"`
	Cache       CacheConfig       `yaml:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Output      OutputConfig      `yaml:"output"`
}

// ProjectConfig controls where project state lives
type ProjectConfig struct {
	Dir         string `yaml:"dir"`           // Directory holding project state files
	MaxDocBytes int64  `yaml:"max_doc_bytes"` // Documents larger than this are truncated and flagged
}

// CodingConfig controls the constant-comparison loop
type CodingConfig struct {
	Methodology         string  `yaml:"methodology"`
	MaxIterations       int     `yaml:"max_iterations"`
	SaturationThreshold float64 `yaml:"saturation_threshold"` // pct_change below this means saturated
}

// SegmenterConfig controls document segmentation
type SegmenterConfig struct {
	WordBudget int `yaml:"word_budget"` // Target words per paragraph chunk
}

// LLMConfig holds analysis-service provider settings
type LLMConfig struct {
	Provider          string  `yaml:"provider"` // openai, anthropic, ollama
	Model             string  `yaml:"model"`
	APIKey            string  `yaml:"api_key,omitempty"`
	BaseURL           string  `yaml:"base_url,omitempty"`
	Timeout           int     `yaml:"timeout"` // seconds per request
	MaxTokens         int     `yaml:"max_tokens"`
	Temperature       float64 `yaml:"temperature"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // Rate limit on analysis calls
	Burst             int     `yaml:"burst"`
}

// CacheConfig controls the analysis-response cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Dir       string        `yaml:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl"`
}

// ConcurrencyConfig bounds parallel work
type ConcurrencyConfig struct {
	// ReliabilityWorkers parallelizes independent reliability passes.
	// Coding passes themselves are always sequential: segment N's merge
	// must see segment N-1's new codes.
	ReliabilityWorkers int `yaml:"reliability_workers"`
}

// OutputConfig controls terminal output
type OutputConfig struct {
	Verbose bool `yaml:"verbose"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Project: ProjectConfig{
			Dir:         ".qualia",
			MaxDocBytes: 2_000_000,
		},
		Coding: CodingConfig{
			Methodology:         "grounded_theory",
			MaxIterations:       3,
			SaturationThreshold: 0.15,
		},
		Segmenter: SegmenterConfig{
			WordBudget: 500,
		},
		LLM: LLMConfig{
			Provider:          "openai",
			Timeout:           60,
			MaxTokens:         2000,
			Temperature:       0.3,
			RequestsPerSecond: 2,
			Burst:             5,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".qualia/cache",
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			ReliabilityWorkers: 1,
		},
		Output: OutputConfig{},
	}
}
