package config

import (
	"reflect"
	"testing"
)

func TestFlattenUnflattenRoundTrip(t *testing.T) {
	nested := map[string]any{
		"log_level": "info",
		"llm": map[string]any{
			"provider": "openai",
			"model":    "gpt-4o-mini",
		},
		"telegram": map[string]any{
			"token": "bot-123",
		},
	}

	flat := Flatten(nested)
	want := map[string]any{
		"log_level":      "info",
		"llm.provider":   "openai",
		"llm.model":      "gpt-4o-mini",
		"telegram.token": "bot-123",
	}
	if !reflect.DeepEqual(flat, want) {
		t.Errorf("Flatten = %v, want %v", flat, want)
	}

	back := Unflatten(flat)
	if !reflect.DeepEqual(back, nested) {
		t.Errorf("Unflatten = %v, want %v", back, nested)
	}
}

func TestMaskSecrets(t *testing.T) {
	flat := map[string]any{
		"llm.api_key":    "sk-abcdef1234",
		"telegram.token": "ab",
		"llm.model":      "gpt-4o-mini",
	}
	masked := MaskSecrets(flat)

	if masked["llm.api_key"] != "***1234" {
		t.Errorf("api key masked as %v", masked["llm.api_key"])
	}
	if masked["telegram.token"] != "***ab" {
		t.Errorf("short token masked as %v", masked["telegram.token"])
	}
	if masked["llm.model"] != "gpt-4o-mini" {
		t.Errorf("non-secret modified: %v", masked["llm.model"])
	}
}

func TestIsSecretKey(t *testing.T) {
	if !IsSecretKey("llm.api_key") || !IsSecretKey("telegram.token") {
		t.Error("expected secret keys to be recognized")
	}
	if IsSecretKey("llm.model") {
		t.Error("llm.model is not a secret")
	}
}
