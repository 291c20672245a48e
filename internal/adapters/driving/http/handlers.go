package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/custodia-labs/finplan-core/internal/core/domain"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse represents a simple status response
type StatusResponse struct {
	Status string `json:"status"`
}

// ValueRequest carries the new value of a field
type ValueRequest struct {
	Value any `json:"value"`
}

// EditRequest writes value at a raw document path
type EditRequest struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// ItemFieldRequest writes one column of a list item
type ItemFieldRequest struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// OptionRequest names a multi-select choice
type OptionRequest struct {
	Item string `json:"item"`
}

// maxBodyBytes bounds edit request bodies
const maxBodyBytes = 1 << 20

// Health endpoints

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady pings PostgreSQL and Redis when configured
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	ready := true
	for name, p := range map[string]Pinger{"database": s.db, "redis": s.redisClient} {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", "dependency", name, "error", err)
			checks[name] = "unavailable"
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Form endpoints

func (s *Server) handleGetForm(w http.ResponseWriter, r *http.Request) {
	form, err := s.collections.Form(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// Collection endpoints

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	snap, err := s.collections.Open(r.Context(), r.PathValue("subject"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	view, err := s.collections.View(r.Context(), r.PathValue("subject"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSetField(w http.ResponseWriter, r *http.Request) {
	var req ValueRequest
	if !decodeBody(w, r, &req) {
		return
	}
	subject := r.PathValue("subject")
	s.respondSnapshot(w, r, subject, s.collections.SetField(r.Context(), subject, r.PathValue("key"), req.Value))
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if !decodeBody(w, r, &req) {
		return
	}
	subject := r.PathValue("subject")
	s.respondSnapshot(w, r, subject, s.collections.Edit(r.Context(), subject, req.Path, req.Value))
}

func (s *Server) handleAppendItem(w http.ResponseWriter, r *http.Request) {
	subject := r.PathValue("subject")
	s.respondSnapshot(w, r, subject, s.collections.AppendItem(r.Context(), subject, r.PathValue("key")))
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	subject := r.PathValue("subject")
	s.respondSnapshot(w, r, subject, s.collections.RemoveItem(r.Context(), subject, r.PathValue("key"), index))
}

func (s *Server) handleSetItemField(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	var req ItemFieldRequest
	if !decodeBody(w, r, &req) {
		return
	}
	subject := r.PathValue("subject")
	err := s.collections.SetItemField(r.Context(), subject, r.PathValue("key"), index, req.Field, req.Value)
	s.respondSnapshot(w, r, subject, err)
}

func (s *Server) handleAddOption(w http.ResponseWriter, r *http.Request) {
	var req OptionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	subject := r.PathValue("subject")
	s.respondSnapshot(w, r, subject, s.collections.AddOption(r.Context(), subject, r.PathValue("key"), req.Item))
}

func (s *Server) handleRemoveOption(w http.ResponseWriter, r *http.Request) {
	var req OptionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	subject := r.PathValue("subject")
	s.respondSnapshot(w, r, subject, s.collections.RemoveOption(r.Context(), subject, r.PathValue("key"), req.Item))
}

func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	subject := r.PathValue("subject")
	s.respondSnapshot(w, r, subject, s.collections.SaveDraft(r.Context(), subject))
}

// handleFinalize answers 409 with the validation result when required fields are missing
func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	result, err := s.collections.Finalize(r.Context(), r.PathValue("subject"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !result.Finalized {
		writeJSON(w, http.StatusConflict, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := s.collections.Close(r.Context(), r.PathValue("subject")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if s.notifications == nil {
		writeError(w, http.StatusNotFound, "notifications are not retained")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	recent, err := s.notifications.Recent(r.Context(), r.PathValue("subject"), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if recent == nil {
		recent = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, recent)
}

// Helper functions

// respondSnapshot writes the session state after a successful operation
func (s *Server) respondSnapshot(w http.ResponseWriter, r *http.Request, subject string, err error) {
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	snap, err := s.collections.Get(r.Context(), subject)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSessionLocked),
		errors.Is(err, domain.ErrCollectionCompleted),
		errors.Is(err, domain.ErrSessionNotReady),
		errors.Is(err, domain.ErrSessionClosed),
		errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrUnknownField),
		errors.Is(err, domain.ErrReadOnlyField),
		errors.Is(err, domain.ErrFieldTypeMismatch),
		errors.Is(err, domain.ErrIndexOutOfRange):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func pathIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "index must be a non-negative integer")
		return 0, false
	}
	return index, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
