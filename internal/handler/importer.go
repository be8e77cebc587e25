package handler

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/valentinpelus/voiceboard/internal/logger"
	"github.com/valentinpelus/voiceboard/pkg/csvimport"
	"github.com/valentinpelus/voiceboard/pkg/feedback"
	"github.com/valentinpelus/voiceboard/pkg/slack"
	"github.com/valentinpelus/voiceboard/pkg/types"
)

const previewSampleSize = 5

// ImportHandler serves the CSV import tab
type ImportHandler struct {
	store       *feedback.Store
	staging     *csvimport.Staging
	slackClient *slack.Client
	maxBytes    int64
	now         func() time.Time
	// notified receives a value after every Slack report attempt; nil in production
	notified chan<- error
}

// NewImportHandler creates a new import handler
func NewImportHandler(store *feedback.Store, staging *csvimport.Staging, slackClient *slack.Client, maxBytes int64) *ImportHandler {
	return &ImportHandler{
		store:       store,
		staging:     staging,
		slackClient: slackClient,
		maxBytes:    maxBytes,
		now:         time.Now,
	}
}

// UploadResponse is the preview shown before the user confirms an import
type UploadResponse struct {
	*csvimport.Staged
	Sample []types.Feedback `json:"sample"`
}

// ConfirmResponse reports a merged import
type ConfirmResponse struct {
	Added   int               `json:"added"`
	Total   int               `json:"total"`
	Preview csvimport.Preview `json:"preview"`
}

// Upload handles POST /api/import/csv with a multipart "file" field
func (h *ImportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, CodeTooLarge, "upload exceeds the size limit")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeTooLarge, "upload exceeds the size limit")
			return
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "expected a multipart form upload")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "missing form field \"file\"")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		writeError(w, http.StatusBadRequest, CodeValidation, "only .csv files are supported")
		return
	}

	records, err := csvimport.Parse(file, h.now())
	if err != nil {
		logger.Warn("CSV analysis failed", "file", header.Filename, "err", err)
		writeError(w, http.StatusUnprocessableEntity, CodeAnalysisFailed, err.Error())
		return
	}

	staged := h.staging.Put(header.Filename, records)
	logger.Info("CSV staged for import", "file", header.Filename, "stage", staged.ID, "records", len(records))

	sample := records
	if len(sample) > previewSampleSize {
		sample = sample[:previewSampleSize]
	}
	writeJSON(w, http.StatusCreated, UploadResponse{Staged: staged, Sample: sample})
}

// Confirm handles POST /api/import/{stageID}/confirm
func (h *ImportHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	staged, err := h.staging.Take(chi.URLParam(r, "stageID"))
	if err != nil {
		if errors.Is(err, csvimport.ErrStageNotFound) {
			writeError(w, http.StatusNotFound, CodeNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}

	h.store.Merge(staged.Records)
	total := h.store.Len()
	logger.Info("CSV import confirmed", "file", staged.FileName, "added", len(staged.Records), "total", total)

	if h.slackClient.IsConfigured() {
		report := slack.ImportReport{
			FileName:   staged.FileName,
			Added:      len(staged.Records),
			Total:      total,
			Categories: staged.Preview.Categories,
			Insights:   staged.Preview.Insights,
		}
		go h.sendReport(report)
	}

	writeJSON(w, http.StatusOK, ConfirmResponse{
		Added:   len(staged.Records),
		Total:   total,
		Preview: staged.Preview,
	})
}

func (h *ImportHandler) sendReport(report slack.ImportReport) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, err := h.slackClient.SendImportReport(ctx, report)
	if err != nil {
		logger.Warn("Failed to send import report to Slack", "file", report.FileName, "err", err)
	}
	if h.notified != nil {
		h.notified <- err
	}
}

// Discard handles DELETE /api/import/{stageID}
func (h *ImportHandler) Discard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "stageID")
	if !h.staging.Discard(id) {
		writeError(w, http.StatusNotFound, CodeNotFound, csvimport.ErrStageNotFound.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
