package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// AnthropicURL is the default Messages API endpoint
const AnthropicURL = "https://api.anthropic.com/v1/messages"

// AnthropicProvider implements the Provider interface for Anthropic's Claude models
type AnthropicProvider struct {
	endpoint string
	apiKey   string
	model    string
	opts     Options
	client   *http.Client
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(endpoint, apiKey, model string, opts Options) *AnthropicProvider {
	if endpoint == "" {
		endpoint = AnthropicURL
	}
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}
	return &AnthropicProvider{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		opts:     opts.withDefaults(),
		client:   &http.Client{},
	}
}

// Name returns the provider name
func (p *AnthropicProvider) Name() string {
	return fmt.Sprintf("Anthropic (%s)", p.model)
}

// Anthropic API structures
type anthropicRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	ID      string                  `json:"id"`
	Type    string                  `json:"type"`
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicStreamEvent struct {
	Type  string `json:"type"` // "message_start", "content_block_delta", "message_stop", "error", ...
	Delta *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *AnthropicProvider) post(ctx context.Context, messages []Message, stream bool) (*http.Response, error) {
	system, rest := splitSystem(messages)
	reqBody := anthropicRequest{
		Model:       p.model,
		System:      system,
		Messages:    rest,
		MaxTokens:   p.opts.MaxTokens,
		Temperature: p.opts.Temperature,
		Stream:      stream,
	}
	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": "2023-06-01",
	}
	return postJSON(ctx, p.client, "Anthropic", p.endpoint, headers, reqBody)
}

// Complete performs a non-streaming request and joins the text blocks
func (p *AnthropicProvider) Complete(ctx context.Context, messages []Message) (string, error) {
	resp, err := p.post(ctx, messages, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var anthropicResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&anthropicResp); err != nil {
		return "", fmt.Errorf("failed to decode Anthropic response: %w", err)
	}

	var text strings.Builder
	for _, block := range anthropicResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return FallbackReply, nil
	}
	return text.String(), nil
}

// Stream opens a streaming request over server-sent events
func (p *AnthropicProvider) Stream(ctx context.Context, messages []Message) (*Stream, error) {
	resp, err := p.post(ctx, messages, true)
	if err != nil {
		return nil, err
	}

	lines := newLineReader(resp.Body)
	recv := func() (string, error) {
		for {
			data, err := lines.nextData()
			if err != nil {
				return "", err
			}

			var event anthropicStreamEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				continue
			}
			switch event.Type {
			case "content_block_delta":
				if event.Delta != nil && event.Delta.Text != "" {
					return event.Delta.Text, nil
				}
			case "message_stop":
				return "", io.EOF
			case "error":
				msg := "unknown error"
				if event.Error != nil {
					msg = event.Error.Type + ": " + event.Error.Message
				}
				return "", fmt.Errorf("anthropic stream error: %s", msg)
			}
		}
	}
	return NewStream(ctx, recv, resp.Body), nil
}
