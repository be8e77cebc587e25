package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/valentinpelus/voiceboard/internal/assistant"
	"github.com/valentinpelus/voiceboard/internal/logger"
	"github.com/valentinpelus/voiceboard/pkg/llm"
)

// ChatHandler serves the assistant tab
type ChatHandler struct {
	service *assistant.Service
}

// NewChatHandler creates a new chat handler
func NewChatHandler(service *assistant.Service) *ChatHandler {
	return &ChatHandler{service: service}
}

// AskRequest is the body of POST /api/chat/{id}/messages
type AskRequest struct {
	Message string `json:"message" validate:"required"`
	Stream  bool   `json:"stream"`
}

// QuickActions handles GET /api/assistant/quick-actions
func (h *ChatHandler) QuickActions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, assistant.QuickActions())
}

// Ping handles GET /api/assistant/ping
func (h *ChatHandler) Ping(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"provider": h.service.ProviderName(), "ok": true})
}

// Create handles POST /api/chat
func (h *ChatHandler) Create(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, h.service.Create())
}

// History handles GET /api/chat/{id}
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	conv, err := h.service.History(chi.URLParam(r, "id"))
	if err != nil {
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// Delete handles DELETE /api/chat/{id}
func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(chi.URLParam(r, "id")); err != nil {
		writeChatError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reset handles POST /api/chat/{id}/reset
func (h *ChatHandler) Reset(w http.ResponseWriter, r *http.Request) {
	conv, err := h.service.Reset(chi.URLParam(r, "id"))
	if err != nil {
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// Ask handles POST /api/chat/{id}/messages
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if !decodeJSON(w, r, &req) || !validateBody(w, &req) {
		return
	}
	id := chi.URLParam(r, "id")

	if !req.Stream {
		turn, err := h.service.Ask(r.Context(), id, req.Message)
		if err != nil {
			writeChatError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, turn)
		return
	}

	sse := newEventStream(w)
	turn, err := h.service.AskStream(r.Context(), id, req.Message, sse.chunk)
	sse.finish(turn, err)
}

// Retry handles POST /api/chat/{id}/retry; stream=true answers as SSE
func (h *ChatHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	stream, _ := strconv.ParseBool(r.URL.Query().Get("stream"))

	if !stream {
		turn, err := h.service.Retry(r.Context(), id, nil)
		if err != nil {
			writeChatError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, turn)
		return
	}

	sse := newEventStream(w)
	turn, err := h.service.Retry(r.Context(), id, sse.chunk)
	sse.finish(turn, err)
}

// Share handles POST /api/chat/{id}/share
func (h *ChatHandler) Share(w http.ResponseWriter, r *http.Request) {
	link, err := h.service.Share(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"shared": true, "permalink": link})
}

func chatErrorResponse(err error) (int, ErrorResponse) {
	resp := ErrorResponse{Message: err.Error()}
	var apiErr *llm.APIError
	switch {
	case errors.Is(err, assistant.ErrNotFound):
		resp.Error = CodeNotFound
		return http.StatusNotFound, resp
	case errors.Is(err, assistant.ErrBusy),
		errors.Is(err, assistant.ErrNothingToRetry),
		errors.Is(err, assistant.ErrNothingToShare):
		resp.Error = CodeConflict
		return http.StatusConflict, resp
	case errors.Is(err, assistant.ErrEmptyMessage):
		resp.Error = CodeValidation
		return http.StatusBadRequest, resp
	case errors.Is(err, assistant.ErrSlackNotConfigured):
		resp.Error = CodeUnavailable
		return http.StatusServiceUnavailable, resp
	case errors.As(err, &apiErr):
		resp.Error = CodeUpstream
		resp.UpstreamStatus = apiErr.StatusCode
		resp.UpstreamBody = apiErr.Body
		return http.StatusBadGateway, resp
	case errors.Is(err, context.DeadlineExceeded):
		resp.Error = CodeUpstream
		return http.StatusGatewayTimeout, resp
	default:
		resp.Error = CodeUpstream
		return http.StatusBadGateway, resp
	}
}

func writeChatError(w http.ResponseWriter, err error) {
	status, resp := chatErrorResponse(err)
	writeJSON(w, status, resp)
}

// eventStream writes server-sent events. Headers go out with the first chunk so
// failures before any output can still be reported as a plain JSON error.
type eventStream struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
	broken  bool
}

func newEventStream(w http.ResponseWriter) *eventStream {
	return &eventStream{w: w, rc: http.NewResponseController(w)}
}

func (s *eventStream) start() {
	if s.started {
		return
	}
	s.started = true
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
}

func (s *eventStream) send(event string, v interface{}) {
	if s.broken {
		return
	}
	s.start()
	data, err := json.Marshal(v)
	if err != nil {
		logger.Warn("Failed to encode stream event", "event", event, "err", err)
		return
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		s.broken = true
		return
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.broken = true
	}
}

func (s *eventStream) chunk(text string) {
	s.send("chunk", map[string]string{"content": text})
}

func (s *eventStream) finish(turn assistant.Turn, err error) {
	if err == nil {
		s.send("done", turn)
		return
	}
	status, resp := chatErrorResponse(err)
	if !s.started {
		writeJSON(s.w, status, resp)
		return
	}
	s.send("error", resp)
}
