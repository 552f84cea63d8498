package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/spotloo/backend/internal/models"
)

// SkipReason explains why an event produced no ledger call.
type SkipReason string

const (
	SkipNone            SkipReason = ""
	SkipMalformed       SkipReason = "malformed_event"
	SkipInvalidRating   SkipReason = "invalid_rating"
	SkipBathroomMissing SkipReason = "bathroom_not_found"
	SkipSelfAction      SkipReason = "self_action"
	SkipNoNewValidators SkipReason = "no_new_validators"
)

// AwardResult is what a reactor did with one event.
type AwardResult struct {
	Status AwardStatus
	Reason SkipReason
}

// ValidatorOutcome is the result for one new validator of a bathroom update.
type ValidatorOutcome struct {
	UserID string
	Result AwardResult
	Err    error
}

// ValidationReport collects the outcomes of a bathroom update. Reason is set
// when the whole event was rejected.
type ValidationReport struct {
	BathroomID    string
	Reason        SkipReason
	Outcomes      []ValidatorOutcome
	QuorumReached bool
}

// Attempted is the number of validators the ledger was called for.
func (r ValidationReport) Attempted() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Result.Reason != SkipSelfAction {
			n++
		}
	}
	return n
}

// Failed is the number of validators whose award returned an error.
func (r ValidationReport) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Reactors turn document events into ledger awards. They hold no state.
type Reactors struct {
	Ledger    *Ledger
	Bathrooms BathroomStore
	Points    models.PointValues
	Logger    *slog.Logger
}

func NewReactors(ledger *Ledger, bathrooms BathroomStore, points models.PointValues, logger *slog.Logger) *Reactors {
	return &Reactors{Ledger: ledger, Bathrooms: bathrooms, Points: points, Logger: logger}
}

// OnBathroomCreated awards the creator of a new bathroom.
func (r *Reactors) OnBathroomCreated(ctx context.Context, bathroomID string, b *models.Bathroom) (AwardResult, error) {
	logger := resolveLogger(r.Logger).With("bathroom_id", bathroomID)
	if b == nil {
		logger.Warn("no data associated with bathroom creation event")
		return AwardResult{Reason: SkipMalformed}, nil
	}
	createdBy := strings.TrimSpace(b.CreatedBy)
	if createdBy == "" {
		logger.Warn("bathroom has no creator")
		return AwardResult{Reason: SkipMalformed}, nil
	}
	if strings.TrimSpace(b.Title) == "" || b.Coordinates == nil {
		logger.Error("bathroom missing required fields", "created_by", createdBy)
		return AwardResult{Reason: SkipMalformed}, nil
	}

	status, err := r.Ledger.AwardPoints(ctx, createdBy, r.Points.CreateBathroom, models.ActionBathroom, Metadata{
		"bathroom_id": bathroomID,
		"title":       b.Title,
	})
	if err != nil {
		logger.Error("awarding bathroom creation failed", "created_by", createdBy, "error", err)
		return AwardResult{}, err
	}
	return AwardResult{Status: status}, nil
}

// OnRatingCreated awards the author of a rating, unless they rated their own
// bathroom.
func (r *Reactors) OnRatingCreated(ctx context.Context, ratingID string, rt *models.Rating) (AwardResult, error) {
	logger := resolveLogger(r.Logger).With("rating_id", ratingID)
	if rt == nil {
		logger.Warn("no data associated with rating creation event")
		return AwardResult{Reason: SkipMalformed}, nil
	}
	userID := strings.TrimSpace(rt.UserUID)
	bathroomID := strings.TrimSpace(rt.BathroomID)
	if userID == "" {
		logger.Warn("rating has no user")
		return AwardResult{Reason: SkipMalformed}, nil
	}
	if bathroomID == "" {
		logger.Warn("rating has no bathroom reference")
		return AwardResult{Reason: SkipMalformed}, nil
	}
	if rt.Rating < 1 || rt.Rating > 5 {
		logger.Error("invalid rating value", "rating", rt.Rating)
		return AwardResult{Reason: SkipInvalidRating}, nil
	}

	b, err := r.Bathrooms.GetBathroom(ctx, bathroomID)
	if errors.Is(err, ErrBathroomNotFound) {
		logger.Error("bathroom not found for rating", "bathroom_id", bathroomID)
		return AwardResult{Reason: SkipBathroomMissing}, nil
	}
	if err != nil {
		logger.Error("loading rated bathroom failed", "bathroom_id", bathroomID, "error", err)
		return AwardResult{}, fmt.Errorf("load bathroom %s: %w", bathroomID, err)
	}
	if b.CreatedBy == userID {
		logger.Info("user rated own bathroom, no points", "user_id", userID, "bathroom_id", bathroomID)
		return AwardResult{Reason: SkipSelfAction}, nil
	}

	status, err := r.Ledger.AwardPoints(ctx, userID, r.Points.Rating, models.ActionRating, Metadata{
		"bathroom_id":  bathroomID,
		"rating_id":    ratingID,
		"rating_value": rt.Rating,
	})
	if err != nil {
		logger.Error("awarding rating failed", "user_id", userID, "bathroom_id", bathroomID, "error", err)
		return AwardResult{}, err
	}
	return AwardResult{Status: status}, nil
}

// OnBathroomUpdated awards every user who newly validated the bathroom. Both
// snapshots are required; an event without before is rejected. Each
// validator is awarded concurrently; one failure does not affect the others.
// The returned error joins the individual failures.
func (r *Reactors) OnBathroomUpdated(ctx context.Context, bathroomID string, before, after *models.Bathroom) (ValidationReport, error) {
	report := ValidationReport{BathroomID: bathroomID}
	logger := resolveLogger(r.Logger).With("bathroom_id", bathroomID)
	if after == nil {
		logger.Warn("no data associated with bathroom update event")
		report.Reason = SkipMalformed
		return report, nil
	}
	// Without a previous document every current validator looks new.
	if before == nil {
		logger.Warn("bathroom update event has no previous document")
		report.Reason = SkipMalformed
		return report, nil
	}

	validators := NewValidators(before.Validations, after.Validations)
	if len(validators) == 0 {
		report.Reason = SkipNoNewValidators
		return report, nil
	}
	report.QuorumReached = after.ValidatorCount() >= models.ValidationQuorum

	logger.Info("processing new validations",
		"validators", validators,
		"validation_count", after.ValidatorCount(),
		"quorum_reached", report.QuorumReached,
	)

	report.Outcomes = make([]ValidatorOutcome, len(validators))
	var g errgroup.Group
	for i, userID := range validators {
		report.Outcomes[i].UserID = userID
		if userID == after.CreatedBy {
			logger.Info("user validated own bathroom, no points", "user_id", userID)
			report.Outcomes[i].Result = AwardResult{Reason: SkipSelfAction}
			continue
		}
		g.Go(func() error {
			status, err := r.Ledger.AwardPoints(ctx, userID, r.Points.Validation, models.ActionValidation, Metadata{
				"bathroom_id":      bathroomID,
				"title":            after.Title,
				"validation_count": after.ValidatorCount(),
			})
			if err != nil {
				logger.Error("awarding validation failed", "user_id", userID, "error", err)
			}
			report.Outcomes[i].Result = AwardResult{Status: status}
			report.Outcomes[i].Err = err
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, o := range report.Outcomes {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("validator %s: %w", o.UserID, o.Err))
		}
	}
	return report, errors.Join(errs...)
}

// NewValidators returns, sorted, the users whose validation is true in after
// and was absent or not true in before.
func NewValidators(before, after map[string]bool) []string {
	out := make([]string, 0)
	for userID, ok := range after {
		if ok && !before[userID] {
			out = append(out, userID)
		}
	}
	sort.Strings(out)
	return out
}
