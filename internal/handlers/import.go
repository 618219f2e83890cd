package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/middleware"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/parser"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/pipeline"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/registry"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/streaming"
)

const (
	// maxUploadSize is the largest per-type ceiling plus room for the
	// multipart envelope. registry enforces the per-type limits.
	maxUploadSize = 21 << 20
	// defaultHeartbeat keeps idle SSE connections open through proxies.
	defaultHeartbeat = 15 * time.Second
)

// ImportHandlers handles the parse, commit and event stream requests of an
// import session
type ImportHandlers struct {
	importer  *pipeline.Importer
	hub       *streaming.StreamHub
	heartbeat time.Duration
}

// NewImportHandlers creates import handlers backed by importer. Commit
// progress is streamed through hub.
func NewImportHandlers(importer *pipeline.Importer, hub *streaming.StreamHub) *ImportHandlers {
	return &ImportHandlers{
		importer:  importer,
		hub:       hub,
		heartbeat: defaultHeartbeat,
	}
}

// CommitRequest is the body of POST /api/import/commit.
type CommitRequest struct {
	SessionID      string                  `json:"sessionId"`
	SkipDuplicates bool                    `json:"skipDuplicates"`
	Indexes        []int                   `json:"indexes,omitempty"`
	Categories     map[int]domain.Category `json:"categories,omitempty"`
}

// Parse handles POST /api/import/parse
func (h *ImportHandlers) Parse(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	upload, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "No file uploaded", http.StatusBadRequest)
		return
	}
	defer upload.Close()

	if _, ok := registry.DetectFileType(header.Filename); !ok {
		http.Error(w, registry.UnsupportedMessage, http.StatusBadRequest)
		return
	}

	content, err := io.ReadAll(upload)
	if err != nil {
		http.Error(w, "Failed to read upload", http.StatusBadRequest)
		return
	}
	f, err := parser.NewFile(header.Filename, content)
	if err != nil {
		http.Error(w, "Failed to read upload", http.StatusBadRequest)
		return
	}

	opts := pipeline.ParseOptions{}
	if v := r.URL.Query().Get("categorize"); v != "" {
		opts.Categorize, _ = strconv.ParseBool(v)
	}

	review, err := h.importer.Parse(r.Context(), userID, f, opts)
	if err != nil {
		log.Error("failed to parse import", "user", userID, "file", header.Filename, "err", err)
		http.Error(w, "Failed to parse file", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, review)
}

// Commit handles POST /api/import/commit
func (h *ImportHandlers) Commit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CommitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		http.Error(w, "sessionId is required", http.StatusBadRequest)
		return
	}

	result, err := h.importer.Commit(r.Context(), userID, req.SessionID, pipeline.CommitOptions{
		SkipDuplicates: req.SkipDuplicates,
		Indexes:        req.Indexes,
		Categories:     req.Categories,
	})
	switch {
	case errors.Is(err, pipeline.ErrSessionNotFound):
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	case errors.Is(err, pipeline.ErrInvalidSelection):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		log.Error("failed to commit import", "user", userID, "session", req.SessionID, "err", err)
		http.Error(w, "Failed to commit import", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Events handles GET /api/import/{id}/events. The stream ends after the
// session's complete or error event, or when the client goes away.
func (h *ImportHandlers) Events(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sessionID := r.PathValue("id")
	if _, err := h.importer.Review(userID, sessionID); err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	client := h.hub.Register(r.Context(), sessionID)
	defer h.hub.Unregister(sessionID, client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := writeEvent(w, streaming.NewHeartbeatEvent()); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-client.Events:
			if !ok {
				return
			}
			if err := writeEvent(w, event); err != nil {
				log.Debug("sse client write failed", "session", sessionID, "err", err)
				return
			}
			flusher.Flush()
			if event.Terminal() {
				return
			}
		}
	}
}

// writeEvent writes one SSE frame: the event name and its JSON on a single
// data line.
func writeEvent(w io.Writer, event streaming.SSEEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
	return err
}
