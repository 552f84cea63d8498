package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/spotloo/backend/internal/middleware"
	"github.com/spotloo/backend/internal/models"
	"github.com/spotloo/backend/internal/services"
)

type PointsHandler struct {
	leaderboard *services.Leaderboard
	logger      *slog.Logger
}

func NewPointsHandler(leaderboard *services.Leaderboard, logger *slog.Logger) *PointsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PointsHandler{leaderboard: leaderboard, logger: logger}
}

// Leaderboard returns the top users by points. ?limit= caps the rows.
func (h *PointsHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("limit must be a positive integer"))
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	entries, err := h.leaderboard.Top(ctx, limit)
	if err != nil {
		h.logger.Error("loading leaderboard failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to load leaderboard"))
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(entries))
}

func (h *PointsHandler) MyPoints(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}
	h.writePoints(w, r, userID)
}

func (h *PointsHandler) UserPoints(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "userId")
	if targetID == "" {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Missing userId"))
		return
	}
	h.writePoints(w, r, targetID)
}

func (h *PointsHandler) writePoints(w http.ResponseWriter, r *http.Request, userID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	pts, err := h.leaderboard.UserPoints(ctx, userID)
	if err != nil {
		h.logger.Error("loading user points failed", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to load points"))
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(pts))
}
