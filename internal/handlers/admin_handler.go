package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/spotloo/backend/internal/middleware"
	"github.com/spotloo/backend/internal/models"
	"github.com/spotloo/backend/internal/services"
)

type AdminHandler struct {
	reconciler *services.Reconciler
	reports    services.ReportWriter
	logger     *slog.Logger
}

// NewAdminHandler wires the backfill trigger. reports may be nil.
func NewAdminHandler(reconciler *services.Reconciler, reports services.ReportWriter, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{reconciler: reconciler, reports: reports, logger: logger}
}

// RunBackfill recomputes every user's totals synchronously and returns the
// report.
func (h *AdminHandler) RunBackfill(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	h.logger.Info("backfill triggered", "admin", middleware.GetUserID(r.Context()))
	report, err := h.reconciler.Run(ctx)
	if err != nil {
		h.logger.Error("backfill aborted", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Backfill failed"))
		return
	}

	if h.reports != nil {
		if err := h.reports.WriteReport(ctx, report); err != nil {
			h.logger.Warn("writing backfill report failed", "run_id", report.RunID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(report))
}
