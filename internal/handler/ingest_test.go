package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/valentinpelus/voiceboard/pkg/adapters"
	"github.com/valentinpelus/voiceboard/pkg/types"
)

func postIngest(t *testing.T, h *IngestHandler, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Ingest(rec, req)
	return rec
}

func TestIngestFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		body        string
		source      string
	}{
		{
			name:        "standard payload",
			contentType: "application/json",
			body:        `{"feedbacks":[{"content":"登录不了","type":"登录问题","date":"2024/5/1"}]}`,
			source:      "standard",
		},
		{
			name:        "bare array",
			contentType: "application/json",
			body:        `[{"content":"登录不了","type":"登录问题","date":"2024-5-1"}]`,
			source:      "array",
		},
		{
			name:        "csv",
			contentType: "text/csv",
			body:        "问题类型,日期,内容\n登录问题,2024/5/1,登录不了\n",
			source:      "csv",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := seededStore()
			h := NewIngestHandler(store, adapters.NewRegistry(nil), 1<<20)

			rec := postIngest(t, h, "/ingest", tt.contentType, tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			resp := decode[IngestResponse](t, rec)
			if resp.Source != tt.source || resp.Mode != "merge" || resp.Added != 1 || resp.Total != 4 {
				t.Errorf("unexpected response: %+v", resp)
			}

			first := store.All()[0]
			if first.Type != types.CategoryAccount || first.Date != "2024-05-01" || first.Product != types.DefaultProduct {
				t.Errorf("record not normalized: %+v", first)
			}
		})
	}
}

func TestIngestReplace(t *testing.T) {
	t.Parallel()
	store := seededStore()
	h := NewIngestHandler(store, adapters.NewRegistry(nil), 1<<20)

	rec := postIngest(t, h, "/ingest?mode=replace", "application/json", `[{"content":"a"},{"content":"b"}]`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if store.Len() != 2 {
		t.Errorf("Len = %d, want 2", store.Len())
	}
	for _, f := range store.All() {
		if f.Status != types.StatusPending || f.ID == "" {
			t.Errorf("ingested record missing defaults: %+v", f)
		}
	}
}

func TestIngestErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		path        string
		contentType string
		body        string
		status      int
		code        string
	}{
		{name: "bad mode", path: "/ingest?mode=append", contentType: "application/json", body: `[]`, status: http.StatusBadRequest, code: CodeValidation},
		{name: "invalid status", path: "/ingest", contentType: "application/json", body: `[{"content":"x","status":"done"}]`, status: http.StatusBadRequest, code: CodeValidation},
		{name: "broken json", path: "/ingest", contentType: "application/json", body: `{"feedbacks":`, status: http.StatusUnsupportedMediaType, code: CodeBadRequest},
		{name: "csv without rows", path: "/ingest", contentType: "text/csv", body: "问题类型,内容\n", status: http.StatusUnprocessableEntity, code: CodeAnalysisFailed},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := seededStore()
			h := NewIngestHandler(store, adapters.NewRegistry(nil), 1<<20)
			expectError(t, postIngest(t, h, tt.path, tt.contentType, tt.body), tt.status, tt.code)
			if store.Len() != 3 {
				t.Error("store changed on rejected ingestion")
			}
		})
	}
}

func TestIngestTooLarge(t *testing.T) {
	t.Parallel()
	h := NewIngestHandler(seededStore(), adapters.NewRegistry(nil), 16)
	rec := postIngest(t, h, "/ingest", "application/json", `[{"content":"this body is longer than sixteen bytes"}]`)
	expectError(t, rec, http.StatusRequestEntityTooLarge, CodeTooLarge)
}
