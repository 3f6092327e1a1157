/*
handlers.go - HTTP API handlers for the statement engine

PURPOSE:
  Exposes the admin surface over REST. Handlers parse requests,
  delegate to the engine or the store, and serialize responses.

ENDPOINTS:
  Members:
    GET  /api/members                     List members with balances

  Runs:
    GET  /api/runs/{id}                   Run info
    GET  /api/runs/{id}/statements        Generated statements for a run
    POST /api/runs/{id}/regenerate        Recompute the run's statements
    POST /api/runs/{id}/finalize          Mark the run as sent

ERROR HANDLING:
  Errors map onto HTTP status by kind:
  - 400: invalid template
  - 404: unknown run
  - 409: precondition failed (finalized run, missing template)
  - 500: malformed ledger data, storage failures

SECURITY NOTE:
  No authentication. The admin surface is expected to sit behind the
  club's reverse proxy.

SEE ALSO:
  - dto.go: response shapes
  - server.go: router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/klubkasse/statement-engine/ledger"
	"github.com/klubkasse/statement-engine/statement"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  ledger.Store
	Engine *statement.Engine
	Log    *logrus.Logger
}

func NewHandler(store ledger.Store, engine *statement.Engine, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	return &Handler{Store: store, Engine: engine, Log: log}
}

// =============================================================================
// MEMBERS
// =============================================================================

// ListMembers returns the directory with computed balances.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	balances, err := ledger.ComputeBalance(ctx, h.Store, ledger.BalanceQuery{})
	if err != nil {
		h.writeError(w, err)
		return
	}

	seq, err := h.Store.Members(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer seq.Close()

	members := []MemberDTO{}
	for {
		rec, ok, err := seq.Next()
		if err != nil {
			h.writeError(w, err)
			return
		}
		if !ok {
			break
		}
		m := rec.(ledger.Member)
		members = append(members, MemberDTO{
			ID:      string(m.ID),
			Name:    m.Name,
			Email:   m.Email,
			Balance: balances[m.ID].StringFixed(2),
		})
	}
	h.writeJSON(w, http.StatusOK, members)
}

// =============================================================================
// RUNS
// =============================================================================

// GetRun returns run metadata.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Store.Run(r.Context(), ledger.RunID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, runDTO(run))
}

// ListStatements returns the generated statements for a run.
func (h *Handler) ListStatements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := ledger.RunID(chi.URLParam(r, "id"))

	if _, err := h.Store.Run(ctx, runID); err != nil {
		h.writeError(w, err)
		return
	}

	seq, err := h.Store.Artifacts(ctx, runID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer seq.Close()

	statements := []StatementDTO{}
	for {
		rec, ok, err := seq.Next()
		if err != nil {
			h.writeError(w, err)
			return
		}
		if !ok {
			break
		}
		statements = append(statements, statementDTO(rec.(ledger.StatementArtifact)))
	}
	h.writeJSON(w, http.StatusOK, statements)
}

// Regenerate recomputes the run's statement artifacts.
func (h *Handler) Regenerate(w http.ResponseWriter, r *http.Request) {
	runID := ledger.RunID(chi.URLParam(r, "id"))

	result, err := h.Engine.Regenerate(r.Context(), runID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, RegenerateResponse{Run: string(runID), Result: result})
}

// Finalize marks the run as sent.
func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	runID := ledger.RunID(chi.URLParam(r, "id"))

	if err := h.Engine.Finalize(r.Context(), runID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"run": string(runID), "status": "finalized"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.WithError(err).Error("failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrRunNotFound):
		status = http.StatusNotFound
	case ledger.IsPrecondition(err):
		status = http.StatusConflict
	case ledger.IsTemplate(err):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.Log.WithError(err).Error("request failed")
	}
	h.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
