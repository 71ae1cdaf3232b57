package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"civigate/internal/domain/services"
	"civigate/pkg/logger"
)

// ChecklistHandler handles document-preparation checklist endpoints
type ChecklistHandler struct {
	service *services.ChecklistService
	logger  *logger.Logger
}

// NewChecklistHandler creates a new ChecklistHandler
func NewChecklistHandler(service *services.ChecklistService, log *logger.Logger) *ChecklistHandler {
	return &ChecklistHandler{
		service: service,
		logger:  log.WithComponent("checklist-api"),
	}
}

// Get handles GET /api/v1/procedures/{procedureID}/cases/{caseID}/checklist
func (h *ChecklistHandler) Get(w http.ResponseWriter, r *http.Request) {
	procedureID := chi.URLParam(r, "procedureID")
	caseID := chi.URLParam(r, "caseID")

	view, err := h.service.View(r.Context(), procedureID, caseID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load checklist")
		h.respondError(w, http.StatusInternalServerError, "failed to load checklist")
		return
	}

	h.respondJSON(w, http.StatusOK, view)
}

type toggleRequest struct {
	ItemID string `json:"item_id"`
}

// Toggle handles POST .../checklist/toggle
func (h *ChecklistHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	procedureID := chi.URLParam(r, "procedureID")
	caseID := chi.URLParam(r, "caseID")

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ItemID == "" {
		h.respondError(w, http.StatusBadRequest, "item_id is required")
		return
	}

	view, err := h.service.ToggleItem(r.Context(), procedureID, caseID, req.ItemID)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, view)
}

type expandRequest struct {
	ItemID   string `json:"item_id"`
	Expanded bool   `json:"expanded"`
}

// Expand handles POST .../checklist/expand
func (h *ChecklistHandler) Expand(w http.ResponseWriter, r *http.Request) {
	procedureID := chi.URLParam(r, "procedureID")
	caseID := chi.URLParam(r, "caseID")

	var req expandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ItemID == "" {
		h.respondError(w, http.StatusBadRequest, "item_id is required")
		return
	}

	view, err := h.service.ToggleExpansion(r.Context(), procedureID, caseID, req.ItemID, req.Expanded)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, view)
}

func (h *ChecklistHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *ChecklistHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
