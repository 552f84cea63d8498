package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/spotloo/backend/internal/models"
	"github.com/spotloo/backend/internal/services"
)

// EventsHandler receives Eventarc pushes for document changes. Returning 5xx
// asks the platform to redeliver; everything the reactors reject on purpose is
// acknowledged with 200 so it is not retried.
type EventsHandler struct {
	reactors *services.Reactors
	logger   *slog.Logger
}

func NewEventsHandler(reactors *services.Reactors, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHandler{reactors: reactors, logger: logger}
}

func (h *EventsHandler) BathroomCreated(w http.ResponseWriter, r *http.Request) {
	ev, ok := decodeEvent[models.Bathroom](h, w, r, "bathrooms")
	if !ok {
		return
	}
	res, err := h.reactors.OnBathroomCreated(r.Context(), ev.ID, ev.Value)
	h.respond(w, res, err)
}

func (h *EventsHandler) RatingCreated(w http.ResponseWriter, r *http.Request) {
	ev, ok := decodeEvent[models.Rating](h, w, r, "ratings")
	if !ok {
		return
	}
	res, err := h.reactors.OnRatingCreated(r.Context(), ev.ID, ev.Value)
	h.respond(w, res, err)
}

func (h *EventsHandler) BathroomUpdated(w http.ResponseWriter, r *http.Request) {
	ev, ok := decodeEvent[models.Bathroom](h, w, r, "bathrooms")
	if !ok {
		return
	}
	report, err := h.reactors.OnBathroomUpdated(r.Context(), ev.ID, ev.OldValue, ev.Value)
	if report.Reason != services.SkipNone {
		writeJSON(w, http.StatusOK, models.EventAck{Status: "skipped", Reason: string(report.Reason)})
		return
	}
	if err != nil && report.Failed() == report.Attempted() {
		// Nobody was paid, so a redelivery cannot double-award.
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("validation awards failed"))
		return
	}
	if err != nil {
		h.logger.Error("validation awards partially failed",
			"bathroom_id", ev.ID,
			"failed", report.Failed(),
			"attempted", report.Attempted(),
			"error", err,
		)
	}
	writeJSON(w, http.StatusOK, models.EventAck{Status: "processed"})
}

func (h *EventsHandler) respond(w http.ResponseWriter, res services.AwardResult, err error) {
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("award failed"))
		return
	}
	writeJSON(w, http.StatusOK, models.EventAck{Status: res.Status.String(), Reason: string(res.Reason)})
}

// decodeEvent reads a document event from the body. Bodies without a "value"
// are retried as a CloudEvent structured envelope with the event under
// "data". A missing id is taken from the Ce-Subject header
// (documents/<collection>/<id>).
func decodeEvent[T any](h *EventsHandler, w http.ResponseWriter, r *http.Request, collection string) (models.DocumentEvent[T], bool) {
	var ev models.DocumentEvent[T]
	if r.Method != http.MethodPost {
		h.logger.Warn("rejected non-POST event", "method", r.Method)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return ev, false
	}

	h.logger.Debug("event received",
		"ce_type", r.Header.Get("Ce-Type"),
		"ce_source", r.Header.Get("Ce-Source"),
		"ce_subject", r.Header.Get("Ce-Subject"),
	)

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Warn("failed to read event body", "error", err)
		writeJSON(w, http.StatusOK, models.EventAck{Status: "skipped", Reason: string(services.SkipMalformed)})
		return ev, false
	}

	err = json.Unmarshal(raw, &ev)
	if err == nil && ev.Value == nil {
		var envelope struct {
			Data models.DocumentEvent[T] `json:"data"`
		}
		if json.Unmarshal(raw, &envelope) == nil && envelope.Data.Value != nil {
			ev = envelope.Data
		}
	}
	if err != nil {
		h.logger.Warn("undecodable event body", "collection", collection, "error", err, "bytes", len(raw))
		writeJSON(w, http.StatusOK, models.EventAck{Status: "skipped", Reason: string(services.SkipMalformed)})
		return ev, false
	}

	if ev.ID == "" {
		ev.ID = idFromSubject(r.Header.Get("Ce-Subject"), collection)
	}
	return ev, true
}

func idFromSubject(subject, collection string) string {
	_, rest, found := strings.Cut(subject, "documents/"+collection+"/")
	if !found {
		return ""
	}
	id, _, _ := strings.Cut(rest, "/")
	return id
}
