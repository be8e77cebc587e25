package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Default endpoints
const (
	DeepSeekURL = "https://api.deepseek.com/chat/completions"
	OpenAIURL   = "https://api.openai.com/v1/chat/completions"
)

// OpenAIProvider implements the Provider interface for OpenAI-compatible
// chat completion APIs. DeepSeek speaks the same protocol.
type OpenAIProvider struct {
	label    string
	endpoint string
	apiKey   string
	model    string
	opts     Options
	client   *http.Client
}

// NewOpenAIProvider creates a provider for an OpenAI-compatible endpoint
func NewOpenAIProvider(endpoint, apiKey, model string, opts Options) *OpenAIProvider {
	if endpoint == "" {
		endpoint = OpenAIURL
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIProvider{
		label:    "OpenAI",
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		opts:     opts.withDefaults(),
		client:   &http.Client{},
	}
}

// NewDeepSeekProvider creates a provider for the DeepSeek chat API
func NewDeepSeekProvider(endpoint, apiKey, model string, opts Options) *OpenAIProvider {
	if endpoint == "" {
		endpoint = DeepSeekURL
	}
	if model == "" {
		model = "deepseek-chat"
	}
	p := NewOpenAIProvider(endpoint, apiKey, model, opts)
	p.label = "DeepSeek"
	return p
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return fmt.Sprintf("%s (%s)", p.label, p.model)
}

// OpenAI API structures
type openAIRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
}

type openAIChoice struct {
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

func (p *OpenAIProvider) post(ctx context.Context, messages []Message, stream bool) (*http.Response, error) {
	reqBody := openAIRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: p.opts.Temperature,
		MaxTokens:   p.opts.MaxTokens,
		Stream:      stream,
	}
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	if stream {
		headers["Accept"] = "text/event-stream"
	}
	return postJSON(ctx, p.client, p.label, p.endpoint, headers, reqBody)
}

// Complete returns the first choice of a blocking completion
func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message) (string, error) {
	resp, err := p.post(ctx, messages, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var openAIResp openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&openAIResp); err != nil {
		return "", fmt.Errorf("failed to decode %s response: %w", p.label, err)
	}

	if len(openAIResp.Choices) == 0 || openAIResp.Choices[0].Message.Content == "" {
		return FallbackReply, nil
	}
	return openAIResp.Choices[0].Message.Content, nil
}

// Stream opens a streaming completion. The body is a sequence of
// "data: {json}" lines ending with "data: [DONE]".
func (p *OpenAIProvider) Stream(ctx context.Context, messages []Message) (*Stream, error) {
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
			if data == "[DONE]" {
				return "", io.EOF
			}

			var streamResp openAIResponse
			if err := json.Unmarshal([]byte(data), &streamResp); err != nil {
				continue // Skip malformed chunks
			}
			if len(streamResp.Choices) > 0 && streamResp.Choices[0].Delta.Content != "" {
				return streamResp.Choices[0].Delta.Content, nil
			}
		}
	}
	return NewStream(ctx, recv, resp.Body), nil
}
