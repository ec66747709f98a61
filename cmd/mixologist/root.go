package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rubenqba/llm-assistant-api/internal/config"
	"github.com/rubenqba/llm-assistant-api/pkg/llm"
	"github.com/rubenqba/llm-assistant-api/pkg/llm/anthropic"
	"github.com/rubenqba/llm-assistant-api/pkg/llm/googleai"
	"github.com/rubenqba/llm-assistant-api/pkg/llm/openai"
	"github.com/rubenqba/llm-assistant-api/pkg/llm/xai"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:          "mixologist",
	Short:        "Conversational cocktail assistant daemon and CLI",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath,
		"config",
		filepath.Join(os.Getenv("HOME"), ".mixologist", "config.json"),
		"config file path",
	)
}

// loadConfig loads the config file or exits. Commands that can run without
// a valid provider (config, task) still need the paths it carries.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// buildProvider constructs the configured LLM backend.
func buildProvider(cfg *config.Config) (llm.Provider, error) {
	llmCfg := &llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	}
	switch cfg.LLM.Provider {
	case "openai":
		return openai.New(llmCfg), nil
	case "anthropic":
		return anthropic.New(llmCfg), nil
	case "google":
		return googleai.New(llmCfg), nil
	case "grok":
		return xai.New(llmCfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
