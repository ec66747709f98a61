// Package format renders a finished assistant response for the channel it
// will be delivered on: Markdown for web, asterisk styling for WhatsApp,
// and plain numbered segments for SMS.
package format

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/rubenqba/llm-assistant-api/pkg/llm"
)

// Channel identifies a delivery surface with its own formatting rules.
type Channel string

const (
	ChannelWeb      Channel = "web"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// SMSSegmentLimit is the maximum length of one SMS segment, in characters.
const SMSSegmentLimit = 160

// ParseChannel normalizes a wire channel value. Empty defaults to web;
// anything unknown is an error.
func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case "":
		return ChannelWeb, nil
	case ChannelWeb, ChannelSMS, ChannelWhatsApp:
		return Channel(s), nil
	default:
		return "", fmt.Errorf("unknown channel %q", s)
	}
}

// FormattingError reports that a channel formatting pass could not produce
// valid output within its retry budget.
type FormattingError struct {
	Channel Channel
	Err     error
}

func (e *FormattingError) Error() string {
	return fmt.Sprintf("formatting for %s failed: %v", e.Channel, e.Err)
}

func (e *FormattingError) Unwrap() error { return e.Err }

// messagesSchema is the structured-output contract shared by every
// channel pass.
var messagesSchema = llm.Schema{
	Name: "formatted_messages",
	Raw: json.RawMessage(`{
		"type": "object",
		"properties": {
			"messages": {
				"type": "array",
				"items": {"type": "string"},
				"minItems": 1
			}
		},
		"required": ["messages"],
		"additionalProperties": false
	}`),
}

// Router dispatches a response to the formatting pass for its channel.
type Router struct {
	provider llm.Provider
	retry    *RetryPolicy
	logger   *slog.Logger
}

// New creates a Router. A nil retry policy gets the default 3-attempt one.
func New(provider llm.Provider, retry *RetryPolicy, logger *slog.Logger) *Router {
	if retry == nil {
		retry = DefaultRetryPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{provider: provider, retry: retry, logger: logger}
}

// Format renders text for the given channel. SMS output is validated
// segment by segment and retried until every segment fits; the other
// channels take the model's first answer. Failure returns a
// *FormattingError; the caller decides whether to fall back to raw text.
func (r *Router) Format(ctx context.Context, text string, channel Channel) ([]string, error) {
	r.logger.Debug("routing formatting request", "channel", string(channel))
	switch channel {
	case ChannelSMS:
		return r.formatSMS(ctx, text)
	case ChannelWhatsApp:
		return r.formatOnce(ctx, text, ChannelWhatsApp, whatsappPrompt)
	case ChannelWeb, "":
		return r.formatOnce(ctx, text, ChannelWeb, webPrompt)
	default:
		return nil, &FormattingError{Channel: channel, Err: fmt.Errorf("unknown channel")}
	}
}

type formatted struct {
	Messages []string `json:"messages"`
}

func (r *Router) invoke(ctx context.Context, system, text string) ([]string, error) {
	var out formatted
	messages := []llm.Message{
		llm.SystemMessage(system),
		llm.UserMessage(text),
	}
	if err := r.provider.CompleteStructured(ctx, messages, messagesSchema, &out); err != nil {
		return nil, err
	}
	if len(out.Messages) == 0 {
		return nil, fmt.Errorf("empty messages array")
	}
	return out.Messages, nil
}

func (r *Router) formatOnce(ctx context.Context, text string, channel Channel, system string) ([]string, error) {
	segments, err := r.invoke(ctx, system, text)
	if err != nil {
		return nil, &FormattingError{Channel: channel, Err: err}
	}
	return segments, nil
}

// formatSMS re-prompts until every segment fits the 160-character limit,
// bounded by the retry policy.
func (r *Router) formatSMS(ctx context.Context, text string) ([]string, error) {
	var segments []string
	err := r.retry.Execute(ctx, func() error {
		out, err := r.invoke(ctx, smsPrompt, text)
		if err != nil {
			return err
		}
		for i, segment := range out {
			if n := utf8.RuneCountInString(segment); n > SMSSegmentLimit {
				return fmt.Errorf("segment %d is %d characters, limit %d", i+1, n, SMSSegmentLimit)
			}
		}
		segments = out
		return nil
	})
	if err != nil {
		return nil, &FormattingError{Channel: ChannelSMS, Err: err}
	}
	return segments, nil
}
