package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// FallbackReply is returned when a blocking completion carries no text.
const FallbackReply = "抱歉，我没有得到有效的回复。"

// Message is one turn of a conversation sent to a provider
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider defines the interface for chat-completion backends (DeepSeek, OpenAI, Ollama, Claude, Bedrock)
type Provider interface {
	// Complete sends the conversation and returns the full reply
	Complete(ctx context.Context, messages []Message) (string, error)

	// Stream opens an incremental reply. The caller must Close the stream.
	Stream(ctx context.Context, messages []Message) (*Stream, error)

	// Name returns the provider name (for logging)
	Name() string
}

// Config holds common configuration for LLM providers
type Config struct {
	Provider string // "deepseek", "openai", "ollama", "anthropic", "bedrock"

	Temperature float64
	MaxTokens   int

	// DeepSeek-specific
	DeepSeekAPIKey string
	DeepSeekModel  string // e.g., "deepseek-chat"
	DeepSeekURL    string

	// OpenAI-specific
	OpenAIAPIKey string
	OpenAIModel  string // e.g., "gpt-4o-mini"
	OpenAIURL    string // any OpenAI-compatible chat completions endpoint

	// Ollama-specific
	OllamaURL   string
	OllamaModel string

	// Anthropic-specific
	AnthropicAPIKey string
	AnthropicModel  string
	AnthropicURL    string

	// AWS Bedrock-specific
	BedrockRegion string // e.g., "us-east-1"
	BedrockModel  string // e.g., "anthropic.claude-3-5-sonnet-20241022-v2:0"
}

// Options are the sampling parameters shared by all providers.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// DefaultOptions match the parameters the dashboard has always sent.
var DefaultOptions = Options{Temperature: 0.7, MaxTokens: 2000}

func (o Options) withDefaults() Options {
	if o.Temperature == 0 {
		o.Temperature = DefaultOptions.Temperature
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = DefaultOptions.MaxTokens
	}
	return o
}

// APIError is returned when an endpoint answers with a non-success status.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s API returned status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s API returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Retriable reports whether re-sending the same request may succeed.
func (e *APIError) Retriable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 64 << 10

// postJSON marshals body, posts it and converts non-2xx answers into an *APIError.
// The caller owns the returned response body.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body any) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s API: %w", provider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(b)),
		}
	}
	return resp, nil
}

// Stream is a lazy, finite sequence of text fragments from one completion.
// It cannot be restarted. Next returns io.EOF once the reply has ended.
type Stream struct {
	ctx    context.Context
	recv   func() (string, error)
	closer io.Closer

	err       error
	closeOnce sync.Once
	closeErr  error
}

// NewStream wraps a receive function into a Stream. closer may be nil.
func NewStream(ctx context.Context, recv func() (string, error), closer io.Closer) *Stream {
	return &Stream{ctx: ctx, recv: recv, closer: closer}
}

// Next returns the next non-empty fragment. After the first error (including
// io.EOF) every call returns that same error and the transport is closed.
func (s *Stream) Next() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if err := s.ctx.Err(); err != nil {
		return "", s.fail(err)
	}

	chunk, err := s.recv()
	if err != nil {
		if ctxErr := s.ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return "", s.fail(err)
	}
	return chunk, nil
}

func (s *Stream) fail(err error) error {
	s.err = err
	s.Close()
	return err
}

// Close releases the underlying transport. Safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		if s.closer != nil {
			s.closeErr = s.closer.Close()
		}
	})
	return s.closeErr
}

// StreamTo runs a streaming completion and hands each fragment to onChunk in
// arrival order. It returns the concatenated reply once the stream ends.
func StreamTo(ctx context.Context, p Provider, messages []Message, onChunk func(string)) (string, error) {
	stream, err := p.Stream(ctx, messages)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return full.String(), nil
		}
		if err != nil {
			return full.String(), fmt.Errorf("stream error: %w", err)
		}
		full.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}
}

// Ping checks that the provider answers a trivial prompt.
func Ping(ctx context.Context, p Provider) error {
	_, err := p.Complete(ctx, []Message{{Role: RoleUser, Content: "你好"}})
	return err
}

// splitSystem separates system turns (joined) from the rest, for APIs that
// take the system prompt as a dedicated field.
func splitSystem(messages []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}
