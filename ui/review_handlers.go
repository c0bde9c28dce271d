package ui

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"merlt/domain/core"
	"merlt/domain/review"
)

// registerEvaluatorRequest is the registration payload. ID is optional; a
// fresh one is minted when omitted.
type registerEvaluatorRequest struct {
	ID                 string  `json:"id,omitempty"`
	Name               string  `json:"name"`
	BaselineCredential float64 `json:"baseline_credential"`
	Category           string  `json:"category"`
	Region             string  `json:"region,omitempty"`
}

// handleRegisterEvaluator registers an evaluator
func (a *App) handleRegisterEvaluator(w http.ResponseWriter, r *http.Request) {
	var req registerEvaluatorRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id := core.EvaluatorID(req.ID)
	if id == "" {
		id = core.EvaluatorID(core.NewID())
	}

	evaluator := review.NewEvaluator(id, req.Name,
		req.BaselineCredential, review.ProfessionalCategory(req.Category), req.Region)

	if err := a.reviews.RegisterEvaluator(r.Context(), evaluator); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusCreated, evaluator)
}

// handleGetEvaluator returns one evaluator with its per-domain trust
func (a *App) handleGetEvaluator(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseEvaluatorID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	evaluator, err := a.reviews.GetEvaluator(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, evaluator)
}

// submitOpinionRequest is the vote payload
type submitOpinionRequest struct {
	EvaluatorID string `json:"evaluator_id"`
	TargetType  string `json:"target_type"`
	Position    string `json:"position"`
	Correction  string `json:"correction,omitempty"`
	Domain      string `json:"domain,omitempty"`
}

// handleSubmitOpinion records a vote and returns the recomputed consensus
func (a *App) handleSubmitOpinion(w http.ResponseWriter, r *http.Request) {
	targetID, err := core.ParseTargetID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var req submitOpinionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	vote := review.Vote{
		EvaluatorID: core.EvaluatorID(req.EvaluatorID),
		TargetID:    targetID,
		TargetType:  review.TargetType(req.TargetType),
		Position:    review.Position(req.Position),
		Correction:  req.Correction,
		Domain:      core.CompetenceDomain(req.Domain),
	}

	result, err := a.reviews.SubmitOpinion(r.Context(), vote)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// handleGetConsensus returns the latest consensus for a target
func (a *App) handleGetConsensus(w http.ResponseWriter, r *http.Request) {
	targetID, err := core.ParseTargetID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := a.reviews.GetConsensus(r.Context(), targetID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleRunBiasAudit runs all detectors over a target's votes and returns
// any findings
func (a *App) handleRunBiasAudit(w http.ResponseWriter, r *http.Request) {
	targetID, err := core.ParseTargetID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	reports, err := a.reviews.RunBiasAudit(r.Context(), targetID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"target_id": targetID,
		"reports":   reports,
	})
}

// handleListBiasReports returns stored reports for a target
func (a *App) handleListBiasReports(w http.ResponseWriter, r *http.Request) {
	targetID, err := core.ParseTargetID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	reports, err := a.reviews.ListBiasReports(r.Context(), targetID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// handleListBiasReportsByTime returns stored reports in a time window.
// Bounds come from ?from= and ?to= as RFC3339; either side may be open.
func (a *App) handleListBiasReportsByTime(w http.ResponseWriter, r *http.Request) {
	var rng core.TimeRange
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		rng.From = core.NewTimestamp(t)
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		rng.To = core.NewTimestamp(t)
	}

	reports, err := a.reviews.ListBiasReportsByTime(r.Context(), rng)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound),
		errors.Is(err, core.ErrEvaluatorNotFound),
		errors.Is(err, core.ErrTargetNotFound),
		errors.Is(err, core.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidVote),
		errors.Is(err, core.ErrUnknownTargetType),
		errors.Is(err, core.ErrValueOutOfDomain):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
