package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"civigate/internal/domain/models"
	"civigate/internal/domain/services"
	"civigate/pkg/logger"
)

// ChallengeHandler handles verification challenge endpoints
type ChallengeHandler struct {
	engine *services.ChallengeEngine
	logger *logger.Logger
}

// NewChallengeHandler creates a new ChallengeHandler
func NewChallengeHandler(engine *services.ChallengeEngine, log *logger.Logger) *ChallengeHandler {
	return &ChallengeHandler{
		engine: engine,
		logger: log.WithComponent("challenge-api"),
	}
}

// challengeResponse never carries the code itself
type challengeResponse struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Create handles POST /api/v1/challenge
func (h *ChallengeHandler) Create(w http.ResponseWriter, r *http.Request) {
	ch, err := h.engine.Generate(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to generate challenge")
		h.respondError(w, http.StatusInternalServerError, "failed to generate challenge")
		return
	}

	h.respondJSON(w, http.StatusCreated, challengeResponse{ID: ch.ID, ExpiresAt: ch.ExpiresAt})
}

// Image handles GET /api/v1/challenge/{id}/image
func (h *ChallengeHandler) Image(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ch, err := h.engine.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrChallengeExpired) {
			h.respondError(w, http.StatusNotFound, "challenge expired")
			return
		}
		h.logger.Error().Err(err).Msg("failed to load challenge")
		h.respondError(w, http.StatusInternalServerError, "failed to load challenge")
		return
	}

	img, err := h.engine.Render(ch.Code)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to render challenge")
		h.respondError(w, http.StatusInternalServerError, "failed to render challenge")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(img)
}

type verifyRequest struct {
	Input string `json:"input"`
}

type verifyResponse struct {
	Valid        bool  `json:"valid"`
	RetryAfterMs int64 `json:"retry_after_ms,omitempty"`
}

// Verify handles POST /api/v1/challenge/{id}/verify
func (h *ChallengeHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.engine.Validate(r.Context(), id, req.Input)
	if err != nil {
		if errors.Is(err, models.ErrChallengeExpired) {
			h.respondError(w, http.StatusNotFound, "challenge expired")
			return
		}
		h.logger.Error().Err(err).Msg("failed to validate challenge")
		h.respondError(w, http.StatusInternalServerError, "failed to validate challenge")
		return
	}

	h.respondJSON(w, http.StatusOK, verifyResponse{
		Valid:        result.Valid,
		RetryAfterMs: result.RetryAfter.Milliseconds(),
	})
}

// Reset handles POST /api/v1/challenge/{id}/reset. It force-regenerates
// the challenge without implying the user answered wrongly.
func (h *ChallengeHandler) Reset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ch, err := h.engine.Reset(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to reset challenge")
		h.respondError(w, http.StatusInternalServerError, "failed to reset challenge")
		return
	}

	h.respondJSON(w, http.StatusOK, challengeResponse{ID: ch.ID, ExpiresAt: ch.ExpiresAt})
}

func (h *ChallengeHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *ChallengeHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
