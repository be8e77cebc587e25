package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaStream(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s, want /api/chat", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if !req.Stream || req.Options.NumPredict != 2000 {
			t.Errorf("request = %+v", req)
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"数据"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"分析"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))
	t.Cleanup(server.Close)

	p := NewOllamaProvider(server.URL+"/", "", Options{})
	var chunks []string
	full, err := StreamTo(context.Background(), p, []Message{{Role: RoleUser, Content: "hi"}}, func(c string) {
		chunks = append(chunks, c)
	})
	if err != nil {
		t.Fatalf("StreamTo() error = %v", err)
	}
	if full != "数据分析" || len(chunks) != 2 {
		t.Errorf("full = %q, chunks = %q", full, chunks)
	}
}

func TestOllamaStreamError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"a"},"done":false}`)
		fmt.Fprintln(w, `{"error":"model not found"}`)
	}))
	t.Cleanup(server.Close)

	p := NewOllamaProvider(server.URL, "missing", Options{})
	_, err := StreamTo(context.Background(), p, []Message{{Role: RoleUser, Content: "hi"}}, nil)
	if err == nil || !strings.Contains(err.Error(), "model not found") {
		t.Errorf("StreamTo() error = %v", err)
	}
}

func TestOllamaComplete(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"ok"},"done":true}`)
	}))
	t.Cleanup(server.Close)

	p := NewOllamaProvider(server.URL, "", Options{})
	if err := Ping(context.Background(), p); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	got, err := p.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil || got != "ok" {
		t.Errorf("Complete() = %q, %v", got, err)
	}
}
