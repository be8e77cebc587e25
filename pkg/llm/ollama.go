package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OllamaProvider implements the Provider interface for a local Ollama server
type OllamaProvider struct {
	baseURL string
	model   string
	opts    Options
	client  *http.Client
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(baseURL, model string, opts Options) *OllamaProvider {
	if model == "" {
		model = "qwen2.5"
	}
	return &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		opts:    opts.withDefaults(),
		client:  &http.Client{},
	}
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return fmt.Sprintf("Ollama (%s)", p.model)
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaRequest struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error,omitempty"`
}

func (p *OllamaProvider) post(ctx context.Context, messages []Message, stream bool) (*http.Response, error) {
	reqBody := ollamaRequest{
		Model:    p.model,
		Messages: messages,
		Stream:   stream,
		Options: ollamaOptions{
			Temperature: p.opts.Temperature,
			NumPredict:  p.opts.MaxTokens,
		},
	}
	return postJSON(ctx, p.client, "Ollama", p.baseURL+"/api/chat", nil, reqBody)
}

// Complete performs a non-streaming chat request
func (p *OllamaProvider) Complete(ctx context.Context, messages []Message) (string, error) {
	resp, err := p.post(ctx, messages, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return "", fmt.Errorf("failed to decode Ollama response: %w", err)
	}
	if ollamaResp.Error != "" {
		return "", fmt.Errorf("ollama error: %s", ollamaResp.Error)
	}
	if ollamaResp.Message.Content == "" {
		return FallbackReply, nil
	}
	return ollamaResp.Message.Content, nil
}

// Stream opens a streaming chat request. Ollama answers with one JSON
// object per line; the last one has done=true.
func (p *OllamaProvider) Stream(ctx context.Context, messages []Message) (*Stream, error) {
	resp, err := p.post(ctx, messages, true)
	if err != nil {
		return nil, err
	}

	lines := newLineReader(resp.Body)
	done := false
	recv := func() (string, error) {
		for {
			if done {
				return "", io.EOF
			}
			line, err := lines.next()
			if err != nil {
				return "", err
			}

			var chunk ollamaResponse
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				continue
			}
			if chunk.Error != "" {
				return "", errors.New("ollama error: " + chunk.Error)
			}
			done = chunk.Done
			if chunk.Message.Content != "" {
				return chunk.Message.Content, nil
			}
		}
	}
	return NewStream(ctx, recv, resp.Body), nil
}
