package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/qualia-lab/qualia/internal/llm"
	"github.com/qualia-lab/qualia/internal/model"
	"github.com/qualia-lab/qualia/internal/store"
	"github.com/qualia-lab/qualia/internal/worker"
	"github.com/spf13/viper"
)

// loadConfig assembles runtime configuration: built-in defaults overlaid
// with the config file and QUALIA_* environment variables. CLI flags are
// applied afterwards by each command.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	err := viper.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	})
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.Output.Verbose = verbose
	return cfg, nil
}

// resolveAPIKey fills cfg.LLM.APIKey from the provider's conventional
// environment variable when the config did not set one
func resolveAPIKey(cfg *model.Config) error {
	switch cfg.LLM.Provider {
	case "openai":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "anthropic", "claude":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
	case "ollama":
		// Ollama doesn't need an API key
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
			cfg.LLM.BaseURL = baseURL
		}
	}
	return nil
}

// buildProvider creates the analysis provider from config
func buildProvider(cfg *model.Config) (llm.Provider, error) {
	if err := resolveAPIKey(cfg); err != nil {
		return nil, err
	}
	return llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
}

// buildLimiter creates the rate limiter for analysis calls. Ollama runs
// locally with no API quota, so its bucket is relaxed; throughput there is
// bounded by inference speed, not the configured rate.
func buildLimiter(cfg *model.Config) *worker.Limiter {
	l := worker.NewLimiter(cfg.LLM.RequestsPerSecond, cfg.LLM.Burst)
	if cfg.LLM.Provider == "ollama" {
		l.SetProviderRate("ollama", 50, 10)
	}
	return l
}

// openProject loads the named project from the store, or creates a fresh
// one when it does not exist yet
func openProject(st store.Store, name string) (*model.ProjectState, error) {
	ids, err := st.List()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if id == name {
			return st.Load(name)
		}
	}
	return &model.ProjectState{
		ID:        name,
		Name:      name,
		CreatedAt: time.Now(),
		Status:    model.StatusPending,
		Artifacts: make(map[string]string),
	}, nil
}
