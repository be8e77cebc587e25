package handler

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/valentinpelus/voiceboard/internal/logger"
	"github.com/valentinpelus/voiceboard/pkg/csvimport"
	"github.com/valentinpelus/voiceboard/pkg/feedback"
	"github.com/valentinpelus/voiceboard/pkg/stats"
	"github.com/valentinpelus/voiceboard/pkg/types"
)

// Bulk actions accepted by the management tab
const (
	ActionDelete  = "delete"
	ActionArchive = "archive"
	ActionResolve = "resolve"
	ActionProcess = "process"
)

var actionStatus = map[string]types.Status{
	ActionArchive: types.StatusArchived,
	ActionResolve: types.StatusResolved,
	ActionProcess: types.StatusProcessing,
}

// FeedbackHandler serves the listing and management tabs
type FeedbackHandler struct {
	store *feedback.Store
}

// NewFeedbackHandler creates a new feedback handler
func NewFeedbackHandler(store *feedback.Store) *FeedbackHandler {
	return &FeedbackHandler{store: store}
}

// ListResponse is a filtered page of the store
type ListResponse struct {
	Feedbacks []types.Feedback `json:"feedbacks"`
	Matched   int              `json:"matched"`
	Total     int              `json:"total"`
}

// CreateRequest is the body of POST /api/feedbacks
type CreateRequest struct {
	Type     string         `json:"type" validate:"required"`
	Content  string         `json:"content" validate:"required"`
	Date     string         `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Product  string         `json:"product"`
	Status   types.Status   `json:"status" validate:"omitempty,oneof=pending processing resolved archived"`
	Priority types.Priority `json:"priority" validate:"omitempty,oneof=high medium low"`
}

// BulkRequest is the body of POST /api/feedbacks/bulk
type BulkRequest struct {
	Action string   `json:"action" validate:"required,oneof=delete archive resolve process"`
	IDs    []string `json:"ids" validate:"required,min=1,dive,required"`
}

// BulkResponse reports how many records a bulk action touched
type BulkResponse struct {
	Action   string `json:"action"`
	Affected int    `json:"affected"`
	Total    int    `json:"total"`
}

func filterFromQuery(r *http.Request) (feedback.Filter, bool) {
	q := r.URL.Query()
	f := feedback.Filter{
		Query:   q.Get("q"),
		Status:  q.Get("status"),
		Product: q.Get("product"),
	}
	if f.Status != "" && f.Status != feedback.FilterAll && !types.Status(f.Status).Valid() {
		return f, false
	}
	return f, true
}

// List handles GET /api/feedbacks
func (h *FeedbackHandler) List(w http.ResponseWriter, r *http.Request) {
	f, ok := filterFromQuery(r)
	if !ok {
		writeError(w, http.StatusBadRequest, CodeValidation, "unknown status filter: "+f.Status)
		return
	}

	all := h.store.All()
	matched := f.Apply(all)
	writeJSON(w, http.StatusOK, ListResponse{
		Feedbacks: matched,
		Matched:   len(matched),
		Total:     len(all),
	})
}

// Get handles GET /api/feedbacks/{id}
func (h *FeedbackHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	record, ok := h.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, CodeNotFound, "feedback not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// Create handles POST /api/feedbacks
func (h *FeedbackHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !decodeJSON(w, r, &req) || !validateBody(w, &req) {
		return
	}

	record := types.Feedback{
		ID:       uuid.New().String(),
		Type:     strings.TrimSpace(req.Type),
		Content:  strings.TrimSpace(req.Content),
		Date:     req.Date,
		Product:  strings.TrimSpace(req.Product),
		Status:   req.Status,
		Priority: req.Priority,
	}
	if record.Product == "" {
		record.Product = types.DefaultProduct
	}
	if record.Status == "" {
		record.Status = types.StatusPending
	}

	h.store.Add(record)
	logger.Info("Feedback added", "id", record.ID, "type", record.Type)
	writeJSON(w, http.StatusCreated, record)
}

// Update handles PATCH /api/feedbacks/{id}
func (h *FeedbackHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch types.Patch
	if !decodeJSON(w, r, &patch) || !validateBody(w, &patch) {
		return
	}
	if patch.IsEmpty() {
		writeError(w, http.StatusBadRequest, CodeValidation, "patch sets no field")
		return
	}
	if patch.Date != nil && *patch.Date != "" {
		if _, err := time.Parse("2006-01-02", *patch.Date); err != nil {
			writeError(w, http.StatusBadRequest, CodeValidation, "date must be YYYY-MM-DD")
			return
		}
	}

	if !h.store.Update(id, patch) {
		writeError(w, http.StatusNotFound, CodeNotFound, "feedback not found: "+id)
		return
	}
	record, _ := h.store.Get(id)
	writeJSON(w, http.StatusOK, record)
}

// Delete handles DELETE /api/feedbacks/{id}
func (h *FeedbackHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.store.Remove(id) {
		writeError(w, http.StatusNotFound, CodeNotFound, "feedback not found: "+id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear handles DELETE /api/feedbacks?confirm=true
func (h *FeedbackHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, http.StatusBadRequest, CodeConfirmRequired, "clearing all feedback requires confirm=true")
		return
	}
	removed := h.store.Len()
	h.store.Clear()
	logger.Warn("Feedback store cleared", "removed", removed)
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// Bulk handles POST /api/feedbacks/bulk
func (h *FeedbackHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if !decodeJSON(w, r, &req) || !validateBody(w, &req) {
		return
	}

	var affected int
	if req.Action == ActionDelete {
		affected = h.store.RemoveMany(req.IDs)
	} else {
		affected = h.store.SetStatus(req.IDs, actionStatus[req.Action])
	}
	logger.Info("Bulk action applied", "action", req.Action, "requested", len(req.IDs), "affected", affected)

	writeJSON(w, http.StatusOK, BulkResponse{
		Action:   req.Action,
		Affected: affected,
		Total:    h.store.Len(),
	})
}

// Export handles GET /api/feedbacks/export. A selection (ids) wins over the filter.
func (h *FeedbackHandler) Export(w http.ResponseWriter, r *http.Request) {
	f, ok := filterFromQuery(r)
	if !ok {
		writeError(w, http.StatusBadRequest, CodeValidation, "unknown status filter: "+f.Status)
		return
	}
	records := feedback.ExportSet(h.store.All(), splitList(r.URL.Query()["ids"]), f)

	var buf bytes.Buffer
	if err := csvimport.Export(&buf, records); err != nil {
		logger.Error("CSV export failed", "err", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "failed to export feedback")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="feedbacks.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// Products handles GET /api/products
func (h *FeedbackHandler) Products(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"products": stats.Products(h.store.All())})
}
