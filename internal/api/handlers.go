// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stitech/convogate/internal/turn"
)

// chatRequest is the wire form of one user turn. Exactly one of text and
// buttonId must be set.
type chatRequest struct {
	SessionID   string `json:"sessionId"`
	Text        string `json:"text,omitempty"`
	ButtonID    string `json:"buttonId,omitempty"`
	ButtonLabel string `json:"buttonLabel,omitempty"`
	// RequestID deduplicates retries of the same logical request.
	RequestID string `json:"requestId,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGreeting opens or resumes a conversation. A sessionId query
// parameter resumes; absence mints a new session.
func (s *Server) handleGreeting(w http.ResponseWriter, r *http.Request) {
	resp, err := s.engine.StartGreeting(r.Context(), r.URL.Query().Get("sessionId"))
	if err != nil {
		s.logger.Error().Err(err).Msg("greeting failed")
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.SessionID == "" {
		writeBadRequest(w, "sessionId is required")
		return
	}

	raw := turn.RawRequest{
		Text:           req.Text,
		ButtonToken:    req.ButtonID,
		ButtonLabel:    req.ButtonLabel,
		IdempotencyKey: req.RequestID,
	}
	if raw.IdempotencyKey == "" {
		raw.IdempotencyKey = r.Header.Get("X-Request-ID")
	}

	resp, err := s.engine.ProcessTurn(r.Context(), req.SessionID, raw)
	if err != nil {
		if errors.Is(err, turn.ErrMalformedEvent) {
			writeBadRequest(w, "exactly one of text or buttonId is required")
			return
		}
		s.logger.Error().Err(err).
			Str("session_id", req.SessionID).
			Str("request_id", chimw.GetReqID(r.Context())).
			Msg("turn processing failed")
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAuditExport streams the complete flow audit log as CSV.
func (s *Server) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="flow-audit.csv"`)
	if err := s.stream.WriteCSV(r.Context(), w); err != nil {
		// Headers are gone; all we can do is log.
		s.logger.Error().Err(err).Msg("flow audit export failed")
	}
}

// handleSessionAudit returns the newest audit entries for one session.
func (s *Server) handleSessionAudit(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			writeBadRequest(w, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	entries, err := s.stream.Recent(r.Context(), sessionID, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("audit query failed")
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": sessionID,
		"entries":   entries,
	})
}
