package ui

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"merlt/domain/core"
	"merlt/internal/session"
)

// runSessionRequest starts a refinement session
type runSessionRequest struct {
	Query string `json:"query"`
}

// handleRunSession starts a refinement session and streams its state
// transitions as server-sent events. The stream ends with the terminal
// event carrying the final synthesis.
func (a *App) handleRunSession(w http.ResponseWriter, r *http.Request) {
	var req runSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("query is required"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	events, err := a.sessions.RunSession(r.Context(), req.Query, a.producers)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for event := range events {
		writeSSE(w, string(event.Type), event)
		flusher.Flush()
	}
}

// handleGetSession returns the persisted snapshot of a session
func (a *App) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseSessionID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	snapshot, err := a.sessions.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// writeSSE emits one server-sent event with a JSON payload
func writeSSE(w http.ResponseWriter, eventType string, payload session.Event) {
	data, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintf(w, "event: error\ndata: {\"error\":%q}\n\n", err.Error())
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, data)
}
