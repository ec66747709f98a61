package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rubenqba/llm-assistant-api/pkg/llm"
)

const (
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 2048
)

// Client implements the llm.Provider interface for the Anthropic Messages API.
type Client struct {
	config     *llm.Config
	httpClient *http.Client
}

// New creates a new Anthropic client with the given configuration.
func New(config *llm.Config) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// messagesRequest is the Anthropic messages request body.
type messagesRequest struct {
	Model       string           `json:"model"`
	MaxTokens   int              `json:"max_tokens"`
	System      string           `json:"system,omitempty"`
	Messages    []requestMessage `json:"messages"`
	Tools       []requestTool    `json:"tools,omitempty"`
	ToolChoice  *toolChoice      `json:"tool_choice,omitempty"`
	Temperature *float32         `json:"temperature,omitempty"`
}

type requestMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

// contentBlock covers the text, tool_use, and tool_result block shapes.
type contentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type requestTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type toolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// messagesResponse is the Anthropic messages response body.
type messagesResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// toRequest converts generic messages to the Anthropic wire format. System
// messages become the top-level system parameter; tool-role messages become
// user messages carrying a tool_result block.
func (c *Client) toRequest(messages []llm.Message, tools []llm.Tool) messagesRequest {
	req := messagesRequest{
		Model:     c.config.Model,
		MaxTokens: defaultMaxTokens,
	}
	if c.config.MaxTokens > 0 {
		req.MaxTokens = c.config.MaxTokens
	}
	if c.config.Temperature != 0 {
		temp := c.config.Temperature
		req.Temperature = &temp
	}

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if req.System != "" {
				req.System += "\n\n"
			}
			req.System += msg.Content
		case "tool":
			block := contentBlock{Type: "tool_result", Content: msg.Content}
			if len(msg.Tools) > 0 {
				block.ToolUseID = msg.Tools[0].ID
			}
			req.Messages = append(req.Messages, requestMessage{
				Role:    "user",
				Content: []contentBlock{block},
			})
		case "assistant":
			var blocks []contentBlock
			if msg.Content != "" {
				blocks = append(blocks, contentBlock{Type: "text", Text: msg.Content})
			}
			for _, tc := range msg.Tools {
				blocks = append(blocks, contentBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Function.Name,
					Input: tc.Function.Arguments,
				})
			}
			if len(blocks) == 0 {
				blocks = append(blocks, contentBlock{Type: "text", Text: ""})
			}
			req.Messages = append(req.Messages, requestMessage{Role: "assistant", Content: blocks})
		default:
			req.Messages = append(req.Messages, requestMessage{
				Role:    "user",
				Content: []contentBlock{{Type: "text", Text: msg.Content}},
			})
		}
	}

	for _, t := range tools {
		req.Tools = append(req.Tools, requestTool{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			InputSchema: t.Function.Parameters,
		})
	}
	return req
}

func (c *Client) post(ctx context.Context, reqBody messagesRequest) (*messagesResponse, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := c.config.BaseURL + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.config.APIKey)
	req.Header.Set("anthropic-version", apiVersion)

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

	var msgResp messagesResponse
	if err := json.Unmarshal(respBody, &msgResp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return &msgResp, nil
}

// Complete sends a messages request and returns the full response.
func (c *Client) Complete(ctx context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Response, error) {
	msgResp, err := c.post(ctx, c.toRequest(messages, tools))
	if err != nil {
		return nil, err
	}

	out := &llm.Response{
		Usage: llm.Usage{
			InputTokens:  msgResp.Usage.InputTokens,
			OutputTokens: msgResp.Usage.OutputTokens,
			TotalTokens:  msgResp.Usage.InputTokens + msgResp.Usage.OutputTokens,
		},
	}
	for _, block := range msgResp.Content {
		switch block.Type {
		case "text":
			out.Content += block.Text
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
				ID:   block.ID,
				Type: "function",
				Function: llm.FunctionCall{
					Name:      block.Name,
					Arguments: block.Input,
				},
			})
		}
	}
	return out, nil
}

// Stream sends a messages request and returns a channel of incremental
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

// CompleteStructured requests schema-constrained output by forcing a tool
// whose input schema is the target shape, then unmarshals the tool input
// into out.
func (c *Client) CompleteStructured(ctx context.Context, messages []llm.Message, schema llm.Schema, out any) error {
	req := c.toRequest(messages, nil)
	req.Tools = []requestTool{{
		Name:        schema.Name,
		Description: "Record the response in the required shape.",
		InputSchema: schema.Raw,
	}}
	req.ToolChoice = &toolChoice{Type: "tool", Name: schema.Name}

	msgResp, err := c.post(ctx, req)
	if err != nil {
		return err
	}

	for _, block := range msgResp.Content {
		if block.Type != "tool_use" || block.Name != schema.Name {
			continue
		}
		if err := json.Unmarshal(block.Input, out); err != nil {
			return &llm.SchemaError{Schema: schema.Name, Raw: string(block.Input), Err: err}
		}
		return nil
	}
	return &llm.SchemaError{Schema: schema.Name, Err: fmt.Errorf("no structured block in response")}
}
