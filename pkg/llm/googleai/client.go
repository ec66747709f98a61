package googleai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/rubenqba/llm-assistant-api/pkg/llm"
)

// Client implements the llm.Provider interface for the Google Generative
// Language API (Gemini models).
type Client struct {
	config     *llm.Config
	httpClient *http.Client
}

// New creates a new Google AI client with the given configuration.
func New(config *llm.Config) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type generateRequest struct {
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	Contents          []content         `json:"contents"`
	Tools             []requestTools    `json:"tools,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *functionCall     `json:"functionCall,omitempty"`
	FunctionResponse *functionResponse `json:"functionResponse,omitempty"`
}

type functionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type functionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type requestTools struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations"`
}

type functionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type generationConfig struct {
	Temperature      *float32        `json:"temperature,omitempty"`
	MaxOutputTokens  int             `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// toRequest converts generic messages to the Gemini wire format. The Gemini
// API has no tool-call ids; calls and results are paired by function name.
func (c *Client) toRequest(messages []llm.Message, tools []llm.Tool) generateRequest {
	var req generateRequest

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if req.SystemInstruction == nil {
				req.SystemInstruction = &content{}
			}
			req.SystemInstruction.Parts = append(req.SystemInstruction.Parts, part{Text: msg.Content})
		case "assistant":
			var parts []part
			if msg.Content != "" {
				parts = append(parts, part{Text: msg.Content})
			}
			for _, tc := range msg.Tools {
				parts = append(parts, part{FunctionCall: &functionCall{
					Name: tc.Function.Name,
					Args: tc.Function.Arguments,
				}})
			}
			req.Contents = append(req.Contents, content{Role: "model", Parts: parts})
		case "tool":
			name := ""
			if len(msg.Tools) > 0 {
				name = msg.Tools[0].Function.Name
			}
			req.Contents = append(req.Contents, content{
				Role: "user",
				Parts: []part{{FunctionResponse: &functionResponse{
					Name:     name,
					Response: map[string]any{"result": msg.Content},
				}}},
			})
		default:
			req.Contents = append(req.Contents, content{
				Role:  "user",
				Parts: []part{{Text: msg.Content}},
			})
		}
	}

	if len(tools) > 0 {
		decls := make([]functionDeclaration, 0, len(tools))
		for _, t := range tools {
			decls = append(decls, functionDeclaration{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			})
		}
		req.Tools = []requestTools{{FunctionDeclarations: decls}}
	}

	cfg := &generationConfig{}
	if c.config.Temperature != 0 {
		temp := c.config.Temperature
		cfg.Temperature = &temp
	}
	if c.config.MaxTokens > 0 {
		cfg.MaxOutputTokens = c.config.MaxTokens
	}
	if cfg.Temperature != nil || cfg.MaxOutputTokens > 0 {
		req.GenerationConfig = cfg
	}
	return req
}

func (c *Client) post(ctx context.Context, reqBody generateRequest) (*generateResponse, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.config.BaseURL, c.config.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var genResp generateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return &genResp, nil
}

// Complete sends a generateContent request and returns the full response.
func (c *Client) Complete(ctx context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Response, error) {
	genResp, err := c.post(ctx, c.toRequest(messages, tools))
	if err != nil {
		return nil, err
	}

	if len(genResp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	out := &llm.Response{
		Usage: llm.Usage{
			InputTokens:  genResp.UsageMetadata.PromptTokenCount,
			OutputTokens: genResp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  genResp.UsageMetadata.TotalTokenCount,
		},
	}
	for _, p := range genResp.Candidates[0].Content.Parts {
		if p.Text != "" {
			out.Content += p.Text
		}
		if p.FunctionCall != nil {
			// The API supplies no call id; mint one so call and result
			// entries can still be paired downstream.
			out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
				ID:   uuid.New().String(),
				Type: "function",
				Function: llm.FunctionCall{
					Name:      p.FunctionCall.Name,
					Arguments: p.FunctionCall.Args,
				},
			})
		}
	}
	return out, nil
}

// Stream sends a generateContent request and returns a channel of incremental
// deltas. This is a wrapper over Complete that emits the full response as a
// single delta, then closes the channel.
func (c *Client) Stream(ctx context.Context, messages []llm.Message, tools []llm.Tool) (<-chan llm.Delta, error) {
	resp, err := c.Complete(ctx, messages, tools)
	if err != nil {
		return nil, err
	}

	ch := make(chan llm.Delta, 1)
	ch <- llm.Delta{
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	}
	close(ch)

	return ch, nil
}

// CompleteStructured requests JSON output constrained by schema and
// unmarshals it into out.
func (c *Client) CompleteStructured(ctx context.Context, messages []llm.Message, schema llm.Schema, out any) error {
	req := c.toRequest(messages, nil)
	if req.GenerationConfig == nil {
		req.GenerationConfig = &generationConfig{}
	}
	req.GenerationConfig.ResponseMimeType = "application/json"
	req.GenerationConfig.ResponseSchema = schema.Raw

	genResp, err := c.post(ctx, req)
	if err != nil {
		return err
	}

	if len(genResp.Candidates) == 0 {
		return &llm.SchemaError{Schema: schema.Name, Err: fmt.Errorf("no candidates in response")}
	}
	var raw string
	for _, p := range genResp.Candidates[0].Content.Parts {
		raw += p.Text
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return &llm.SchemaError{Schema: schema.Name, Raw: raw, Err: err}
	}
	return nil
}
