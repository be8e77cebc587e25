package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/valentinpelus/voiceboard/internal/logger"
	"github.com/valentinpelus/voiceboard/pkg/adapters"
	"github.com/valentinpelus/voiceboard/pkg/csvimport"
	"github.com/valentinpelus/voiceboard/pkg/feedback"
)

// IngestHandler accepts bulk feedback from external collaborators
type IngestHandler struct {
	store    *feedback.Store
	registry *adapters.Registry
	maxBytes int64
}

// NewIngestHandler creates a new ingestion handler
func NewIngestHandler(store *feedback.Store, registry *adapters.Registry, maxBytes int64) *IngestHandler {
	return &IngestHandler{
		store:    store,
		registry: registry,
		maxBytes: maxBytes,
	}
}

// IngestResponse reports what an ingestion did
type IngestResponse struct {
	Source string `json:"source"`
	Mode   string `json:"mode"`
	Added  int    `json:"added"`
	Total  int    `json:"total"`
}

// Ingest handles POST /api/ingest. mode=replace swaps the whole store,
// the default merges the batch in front of the existing records.
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")
	switch mode {
	case "":
		mode = "merge"
	case "merge", "replace":
	default:
		writeError(w, http.StatusBadRequest, CodeValidation, "mode must be merge or replace")
		return
	}

	if r.ContentLength > h.maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, CodeTooLarge, "body exceeds the size limit")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeTooLarge, "body exceeds the size limit")
			return
		}
		logger.Warn("Failed to read ingestion body", "err", err)
		writeError(w, http.StatusBadRequest, CodeBadRequest, "failed to read request body")
		return
	}

	records, source, err := h.registry.DetectAndConvert(r.Header.Get("Content-Type"), body)
	if err != nil {
		logger.Warn("Ingestion rejected", "source", source, "err", err)
		switch {
		case errors.Is(err, adapters.ErrInvalidRecord):
			writeError(w, http.StatusBadRequest, CodeValidation, err.Error())
		case errors.Is(err, csvimport.ErrMalformedCSV), errors.Is(err, csvimport.ErrNoRows):
			writeError(w, http.StatusUnprocessableEntity, CodeAnalysisFailed, err.Error())
		default:
			writeError(w, http.StatusUnsupportedMediaType, CodeBadRequest, err.Error())
		}
		return
	}

	if mode == "replace" {
		h.store.ReplaceAll(records)
	} else {
		h.store.Merge(records)
	}
	total := h.store.Len()
	logger.Info("Feedback ingested", "source", source, "mode", mode, "records", len(records), "total", total)

	writeJSON(w, http.StatusOK, IngestResponse{
		Source: source,
		Mode:   mode,
		Added:  len(records),
		Total:  total,
	})
}
