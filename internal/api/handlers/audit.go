package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ovidijusr/shieldai/internal/pkg/errors"
	"github.com/ovidijusr/shieldai/internal/pkg/logger"
	"github.com/ovidijusr/shieldai/internal/services"
)

// AuditHandler handles audit runs and fix operations
type AuditHandler struct {
	svc *services.AuditService
	log *logger.Logger
}

// NewAuditHandler creates an audit handler
func NewAuditHandler(svc *services.AuditService, log *logger.Logger) *AuditHandler {
	return &AuditHandler{svc: svc, log: log}
}

type runAuditRequest struct {
	Mode string `json:"mode"`
}

// Run starts an audit and returns the completed run
// POST /api/v1/audits
func (h *AuditHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req runAuditRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, errBadJSON(err))
			return
		}
	}
	if req.Mode == "" {
		req.Mode = services.ModeQuick
	}

	run, err := h.svc.Run(r.Context(), req.Mode)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, run)
}

// Get returns a retained audit run
// GET /api/v1/audits/{id}
func (h *AuditHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.GetRun(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// PreviewFix returns the diff and side effects of a finding's fix
// POST /api/v1/audits/{id}/findings/{findingID}/fix/preview
func (h *AuditHandler) PreviewFix(w http.ResponseWriter, r *http.Request) {
	preview, err := h.svc.PreviewFix(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "findingID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, preview)
}

// ApplyFix applies a finding's fix
// POST /api/v1/audits/{id}/findings/{findingID}/fix/apply
func (h *AuditHandler) ApplyFix(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ApplyFix(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "findingID"))
	if err != nil {
		appErr, ok := err.(*errors.AppError)
		if !ok {
			appErr = errors.Internal("Internal server error", err)
		}
		// A failed apply still carries the backup path in its result.
		respondJSON(w, appErr.StatusCode, map[string]interface{}{
			"success": false,
			"code":    appErr.Code,
			"error":   appErr.Message,
			"result":  result,
		})
		return
	}
	respondJSON(w, http.StatusOK, result)
}
