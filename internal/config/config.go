package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the full daemon configuration, persisted as JSON.
type Config struct {
	DataDir       string `json:"data_dir"`
	LogLevel      string `json:"log_level"`
	ListenAddr    string `json:"listen_addr"`
	MaxConcurrent int    `json:"max_concurrent"`
	MaxToolRounds int    `json:"max_tool_rounds"`
	LLM           struct {
		Provider         string  `json:"provider"`
		BaseURL          string  `json:"base_url"`
		APIKey           string  `json:"api_key"`
		Model            string  `json:"model"`
		MaxTokens        int     `json:"max_tokens"`
		Temperature      float32 `json:"temperature"`
		MaxContextTokens int     `json:"max_context_tokens"`
		OutputReserve    int     `json:"output_reserve"`
	} `json:"llm"`
	CocktailDB struct {
		BaseURL        string `json:"base_url"`
		TimeoutSeconds int    `json:"timeout_seconds"`
	} `json:"cocktaildb"`
	Format struct {
		MaxAttempts int `json:"max_attempts"`
	} `json:"format"`
	Telegram struct {
		Token string `json:"token"`
	} `json:"telegram"`
}

// providerEnvKeys maps a provider name to the environment variable holding
// its API key.
var providerEnvKeys = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"google":    "GOOGLE_API_KEY",
	"grok":      "GROK_API_KEY",
}

// providerBaseURLs holds default endpoints per provider.
var providerBaseURLs = map[string]string{
	"openai":    "https://api.openai.com/v1",
	"anthropic": "https://api.anthropic.com",
	"google":    "https://generativelanguage.googleapis.com/v1beta",
	"grok":      "https://api.x.ai/v1",
}

// providerDefaultModels holds a reasonable default model per provider.
var providerDefaultModels = map[string]string{
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-3-5-haiku-latest",
	"google":    "gemini-2.0-flash",
	"grok":      "grok-3-mini",
}

// Load reads config from path, writing defaults on first run, then applies
// environment overrides (highest precedence).
func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".mixologist"),
		MaxConcurrent: 4,
	}
	cfg.LogLevel = "info"
	cfg.ListenAddr = ":8080"
	cfg.MaxToolRounds = 10
	cfg.LLM.Provider = "openai"
	cfg.LLM.Temperature = 0.7
	cfg.LLM.MaxTokens = 2000
	cfg.LLM.MaxContextTokens = 128000
	cfg.LLM.OutputReserve = 4096
	cfg.CocktailDB.BaseURL = "https://www.thecocktaildb.com/api/json/v1/1"
	cfg.CocktailDB.TimeoutSeconds = 15
	cfg.Format.MaxAttempts = 3

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if provider := os.Getenv("MIXOLOGY_PROVIDER"); provider != "" {
		cfg.LLM.Provider = provider
	}
	if model := os.Getenv("MIXOLOGY_MODEL"); model != "" {
		cfg.LLM.Model = model
	}
	if envKey, ok := providerEnvKeys[cfg.LLM.Provider]; ok {
		if apiKey := os.Getenv(envKey); apiKey != "" {
			cfg.LLM.APIKey = apiKey
		}
	}
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}

	// Fill provider-dependent defaults last so a provider switched via env
	// still gets a matching endpoint and model.
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = providerBaseURLs[cfg.LLM.Provider]
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = providerDefaultModels[cfg.LLM.Provider]
	}

	return cfg, nil
}

// Validate checks the loaded configuration for usability.
func (c *Config) Validate() error {
	if _, ok := providerEnvKeys[c.LLM.Provider]; !ok {
		return fmt.Errorf("unknown llm provider %q (want openai, anthropic, google, or grok)", c.LLM.Provider)
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("no API key for provider %q (set %s or llm.api_key)", c.LLM.Provider, providerEnvKeys[c.LLM.Provider])
	}
	if c.MaxToolRounds <= 0 {
		return fmt.Errorf("max_tool_rounds must be positive, got %d", c.MaxToolRounds)
	}
	return nil
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}
