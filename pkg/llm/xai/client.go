// Package xai provides an llm.Provider for the xAI (Grok) API, which is
// wire-compatible with the OpenAI chat completions protocol.
package xai

import (
	"github.com/rubenqba/llm-assistant-api/pkg/llm"
	"github.com/rubenqba/llm-assistant-api/pkg/llm/openai"
)

// DefaultBaseURL is the xAI API endpoint.
const DefaultBaseURL = "https://api.x.ai/v1"

// New creates an xAI client. An empty BaseURL defaults to the public xAI
// endpoint; everything else follows the OpenAI-compatible protocol.
func New(config *llm.Config) *openai.Client {
	if config.BaseURL == "" {
		cp := *config
		cp.BaseURL = DefaultBaseURL
		config = &cp
	}
	return openai.New(config)
}
