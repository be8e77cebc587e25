package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func deepseekTestServer(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewDeepSeekProvider(server.URL+"/chat/completions", "sk-test", "", Options{})
}

func TestOpenAICompleteRequestShape(t *testing.T) {
	t.Parallel()

	p := deepseekTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}

		var wireRequest struct {
			Model       string    `json:"model"`
			Messages    []Message `json:"messages"`
			Temperature float64   `json:"temperature"`
			MaxTokens   int       `json:"max_tokens"`
			Stream      bool      `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&wireRequest); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if wireRequest.Model != "deepseek-chat" {
			t.Errorf("model = %q, want deepseek-chat", wireRequest.Model)
		}
		if wireRequest.Temperature != 0.7 || wireRequest.MaxTokens != 2000 {
			t.Errorf("sampling = %v/%d, want 0.7/2000", wireRequest.Temperature, wireRequest.MaxTokens)
		}
		if wireRequest.Stream {
			t.Error("stream should be false for Complete")
		}
		if len(wireRequest.Messages) != 2 || wireRequest.Messages[0].Role != RoleSystem {
			t.Errorf("messages = %+v", wireRequest.Messages)
		}

		fmt.Fprint(w, `{"choices":[{"message":{"content":"你好！"}}],"usage":{"total_tokens":12}}`)
	})

	got, err := p.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "ctx"},
		{Role: RoleUser, Content: "hi"},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "你好！" {
		t.Errorf("Complete() = %q", got)
	}
}

func TestOpenAICompleteFallback(t *testing.T) {
	t.Parallel()

	for name, body := range map[string]string{
		"no choices":    `{"choices":[]}`,
		"empty content": `{"choices":[{"message":{"content":""}}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			p := deepseekTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			})
			got, err := p.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
			if err != nil {
				t.Fatalf("Complete() error = %v", err)
			}
			if got != FallbackReply {
				t.Errorf("Complete() = %q, want fallback", got)
			}
		})
	}
}

func TestOpenAIAPIError(t *testing.T) {
	t.Parallel()

	p := deepseekTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":"rate limited"}`)
	})

	_, err := p.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests || apiErr.Body != `{"error":"rate limited"}` {
		t.Errorf("APIError = %+v", apiErr)
	}
	if !apiErr.Retriable() {
		t.Error("429 should be retriable")
	}
	if apiErr.Provider != "DeepSeek" {
		t.Errorf("Provider = %q", apiErr.Provider)
	}

	_, err = p.Stream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if !errors.As(err, &apiErr) {
		t.Fatalf("Stream() error = %v, want *APIError", err)
	}
}

func TestOpenAIStreamTo(t *testing.T) {
	t.Parallel()

	p := deepseekTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"He\"}}]}\n\n")
		fmt.Fprint(w, "data: {not json}\n\n")
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"llo\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ignored\"}}]}\n\n")
	})

	var chunks []string
	full, err := StreamTo(context.Background(), p, []Message{{Role: RoleUser, Content: "hi"}}, func(c string) {
		chunks = append(chunks, c)
	})
	if err != nil {
		t.Fatalf("StreamTo() error = %v", err)
	}
	if len(chunks) != 2 || chunks[0] != "He" || chunks[1] != "llo" {
		t.Errorf("chunks = %q, want [He llo]", chunks)
	}
	if full != "Hello" {
		t.Errorf("full = %q, want Hello", full)
	}
}

func TestOpenAIStreamEndsOnTransportClose(t *testing.T) {
	t.Parallel()

	p := deepseekTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}")
	})

	stream, err := p.Stream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer stream.Close()

	chunk, err := stream.Next()
	if err != nil || chunk != "partial" {
		t.Fatalf("Next() = %q, %v", chunk, err)
	}
	if _, err := stream.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() error = %v, want io.EOF", err)
	}
	if _, err := stream.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() after end = %v, want io.EOF", err)
	}
}

func TestOpenAIStreamCancel(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	p := deepseekTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"first\"}}]}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := p.Stream(ctx, []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer stream.Close()

	if chunk, err := stream.Next(); err != nil || chunk != "first" {
		t.Fatalf("Next() = %q, %v", chunk, err)
	}

	cancel()
	done := make(chan error, 1)
	go func() {
		_, err := stream.Next()
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Next() after cancel = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Next() did not return after cancel")
	}
}
