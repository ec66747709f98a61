package config

import (
	"os"
	"path/filepath"
	"testing"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.json")
}

func TestLoadWritesDefaults(t *testing.T) {
	t.Setenv("MIXOLOGY_PROVIDER", "")
	t.Setenv("MIXOLOGY_MODEL", "")
	t.Setenv("OPENAI_API_KEY", "")

	path := tempConfigPath(t)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written on first run: %v", err)
	}

	if cfg.LLM.Provider != "openai" {
		t.Errorf("default provider = %q", cfg.LLM.Provider)
	}
	if cfg.LLM.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("default base url = %q", cfg.LLM.BaseURL)
	}
	if cfg.LLM.Model == "" {
		t.Error("default model not filled")
	}
	if cfg.MaxToolRounds != 10 {
		t.Errorf("default max_tool_rounds = %d", cfg.MaxToolRounds)
	}
	if cfg.Format.MaxAttempts != 3 {
		t.Errorf("default format.max_attempts = %d", cfg.Format.MaxAttempts)
	}
	if cfg.CocktailDB.BaseURL == "" {
		t.Error("default cocktaildb base url not filled")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MIXOLOGY_PROVIDER", "anthropic")
	t.Setenv("MIXOLOGY_MODEL", "")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

	cfg, err := Load(tempConfigPath(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("provider = %q, want anthropic", cfg.LLM.Provider)
	}
	if cfg.LLM.APIKey != "sk-ant-test" {
		t.Errorf("api key not picked up from env")
	}
	// Provider-dependent defaults follow the env-selected provider.
	if cfg.LLM.BaseURL != "https://api.anthropic.com" {
		t.Errorf("base url = %q", cfg.LLM.BaseURL)
	}
	if cfg.LLM.Model != providerDefaultModels["anthropic"] {
		t.Errorf("model = %q", cfg.LLM.Model)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("MIXOLOGY_PROVIDER", "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load(tempConfigPath(t))
	if err != nil {
		t.Fatal(err)
	}

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation to fail without an API key")
	}

	cfg.LLM.APIKey = "sk-test"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}

	cfg.LLM.Provider = "nonsense"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation to fail for unknown provider")
	}

	cfg.LLM.Provider = "openai"
	cfg.MaxToolRounds = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation to fail for zero max_tool_rounds")
	}
}

func TestGetSetValue(t *testing.T) {
	t.Setenv("MIXOLOGY_PROVIDER", "")
	t.Setenv("OPENAI_API_KEY", "")

	path := tempConfigPath(t)
	if _, err := Load(path); err != nil {
		t.Fatal(err)
	}

	if err := SetValue(path, "llm.model", "gpt-4o"); err != nil {
		t.Fatal(err)
	}
	v, err := GetValue(path, "llm.model")
	if err != nil {
		t.Fatal(err)
	}
	if v != "gpt-4o" {
		t.Errorf("llm.model = %v", v)
	}

	// Numeric keys are coerced.
	if err := SetValue(path, "max_concurrent", "8"); err != nil {
		t.Fatal(err)
	}
	v, err = GetValue(path, "max_concurrent")
	if err != nil {
		t.Fatal(err)
	}
	if v != float64(8) {
		t.Errorf("max_concurrent = %v (%T)", v, v)
	}

	if err := SetValue(path, "max_concurrent", "lots"); err == nil {
		t.Error("expected error setting numeric key to a string")
	}
	if err := SetValue(path, "does.not.exist", "x"); err == nil {
		t.Error("expected error for unknown key")
	}

	// Secrets come back masked.
	if err := SetValue(path, "llm.api_key", "sk-supersecret"); err != nil {
		t.Fatal(err)
	}
	v, err = GetValue(path, "llm.api_key")
	if err != nil {
		t.Fatal(err)
	}
	if v != "***cret" {
		t.Errorf("masked secret = %v", v)
	}
}
