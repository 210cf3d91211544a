// Package mastery applies graded attempts to per-concept retention records
// using the half-life regression model.
package mastery

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/multierr"

	"github.com/example/retention/internal/apperr"
	"github.com/example/retention/internal/database"
	"github.com/example/retention/internal/logger"
	"github.com/example/retention/internal/rtbaseline"
	"github.com/example/retention/internal/spaced_repetition"
	"github.com/example/retention/pkg/models"
)

// AttemptError reports the concepts of one attempt whose update was rolled
// back. The other concepts of the attempt were applied.
type AttemptError struct {
	FailedConceptIDs []int64
	Err              error
}

func (e *AttemptError) Error() string {
	ids := make([]string, len(e.FailedConceptIDs))
	for i, id := range e.FailedConceptIDs {
		ids[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("could not record progress for concepts [%s]: %v", strings.Join(ids, ", "), e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }

// Engine is the mastery update engine.
type Engine struct {
	db       *sqlx.DB
	repo     *database.MasteryRepository
	baseline *rtbaseline.Tracker
	model    *spaced_repetition.HalfLife
	validate *validator.Validate
	modelKey string
	log      *logger.Logger
}

func NewEngine(
	db *sqlx.DB,
	repo *database.MasteryRepository,
	baseline *rtbaseline.Tracker,
	model *spaced_repetition.HalfLife,
	defaultModelKey string,
	baseLog *logger.Logger,
) *Engine {
	return &Engine{
		db:       db,
		repo:     repo,
		baseline: baseline,
		model:    model,
		validate: validator.New(),
		modelKey: defaultModelKey,
		log:      baseLog.With("service", "MasteryEngine"),
	}
}

// ApplyAttempt updates the retention record of every concept in the attempt.
//
// Each concept is read, updated and written in its own transaction, in
// input order. A failure rolls back only that concept; the returned
// *AttemptError names the concepts that were not recorded. Retrying them is
// safe only with the same OccurredAt.
func (e *Engine) ApplyAttempt(ctx context.Context, attempt models.AttemptResult) error {
	if len(attempt.ConceptResults) == 0 {
		return nil
	}
	if err := e.check(ctx, &attempt); err != nil {
		return err
	}

	var (
		failed []int64
		errs   error
	)
	for _, cr := range attempt.ConceptResults {
		err := database.WithTx(ctx, e.db, func(tx *sqlx.Tx) error {
			return e.applyConcept(ctx, tx, &attempt, cr)
		})
		if err != nil {
			e.log.Warn("concept update rolled back",
				"user_id", attempt.UserID,
				"concept_id", cr.ConceptID,
				"modality", attempt.Modality,
				"error", err,
			)
			failed = append(failed, cr.ConceptID)
			errs = multierr.Append(errs, fmt.Errorf("concept %d: %w", cr.ConceptID, err))
		}
	}

	if len(failed) > 0 {
		return &AttemptError{
			FailedConceptIDs: failed,
			Err:              apperr.Store("mastery.ApplyAttempt", errs),
		}
	}

	e.log.Debug("attempt applied",
		"user_id", attempt.UserID,
		"concepts", len(attempt.ConceptResults),
		"item_type", attempt.ItemType,
		"modality", attempt.Modality,
	)
	return nil
}

// check validates the attempt and fills in defaults. Nothing is written
// when it fails.
func (e *Engine) check(ctx context.Context, attempt *models.AttemptResult) error {
	if err := e.validate.StructCtx(ctx, attempt); err != nil {
		return apperr.Invalid("mastery.ApplyAttempt", "%v", err)
	}
	if attempt.OccurredAt.IsZero() {
		return apperr.Invalid("mastery.ApplyAttempt", "occurredAt is required")
	}
	if attempt.ResponseMs != nil && (math.IsNaN(*attempt.ResponseMs) || math.IsInf(*attempt.ResponseMs, 0)) {
		return apperr.Invalid("mastery.ApplyAttempt", "responseMs must be finite")
	}
	if attempt.ModelKey == "" {
		attempt.ModelKey = e.modelKey
	}
	attempt.OccurredAt = attempt.OccurredAt.UTC()
	return nil
}

func (e *Engine) applyConcept(ctx context.Context, tx *sqlx.Tx, attempt *models.AttemptResult, cr models.ConceptResult) error {
	now := attempt.OccurredAt
	key := models.ConceptMasteryKey{
		UserID:    attempt.UserID,
		ConceptID: cr.ConceptID,
		Modality:  attempt.Modality,
		ModelKey:  attempt.ModelKey,
	}

	err := e.repo.EnsureRow(ctx, tx, &models.ConceptMastery{
		UserID:       key.UserID,
		ConceptID:    key.ConceptID,
		Modality:     key.Modality,
		ModelKey:     key.ModelKey,
		Mastery:      e.model.InitialMastery,
		HalfLifeDays: e.model.InitialHalfLife,
		DueAt:        e.model.DueAt(now, e.model.InitialHalfLife),
		UpdatedAt:    now,
	})
	if err != nil {
		return err
	}

	rec, err := e.repo.GetForUpdate(ctx, tx, key)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("mastery row for concept %d vanished after insert", key.ConceptID)
	}

	lag := e.model.LagDays(rec.LastAttemptAt, now)
	rec.Mastery = e.model.NextMastery(rec.Mastery, cr.IsCorrect)
	rec.HalfLifeDays = e.model.NextHalfLife(rec.HalfLifeDays, lag, cr.IsCorrect)
	rec.DueAt = e.model.DueAt(now, rec.HalfLifeDays)

	// An incorrect answer's latency says nothing about automaticity.
	if cr.IsCorrect && attempt.ResponseMs != nil {
		if err := e.updateTiming(ctx, tx, attempt, rec); err != nil {
			return err
		}
	}

	rec.AttemptsCount++
	if cr.IsCorrect {
		rec.CorrectCount++
	}
	rec.LastAttemptAt = &now
	rec.UpdatedAt = now

	return e.repo.Save(ctx, tx, rec)
}

// updateTiming feeds the baseline first, then the concept's own average,
// then normalises one by the other.
func (e *Engine) updateTiming(ctx context.Context, tx *sqlx.Tx, attempt *models.AttemptResult, rec *models.ConceptMastery) error {
	responseMs := *attempt.ResponseMs
	bkey := rtbaseline.Key{
		UserID:   attempt.UserID,
		ItemType: attempt.ItemType,
		Skill:    attempt.Skill,
		Modality: attempt.Modality,
	}

	if err := e.baseline.Observe(ctx, tx, bkey, responseMs, attempt.OccurredAt); err != nil {
		return err
	}

	avg := spaced_repetition.EMA(rec.RtAvgMs, responseMs, e.model.RtBeta)
	rec.RtAvgMs = &avg

	base, err := e.baseline.Read(ctx, tx, bkey)
	if err != nil {
		return err
	}
	if base != nil && *base > 0 {
		norm := avg / *base
		rec.RtNorm = &norm
	} else {
		rec.RtNorm = nil
	}
	return nil
}

// MasteryForConcept returns every record the user has for one concept,
// across modalities and scoring models.
func (e *Engine) MasteryForConcept(ctx context.Context, userID, conceptID int64) ([]models.ConceptMastery, error) {
	rows, err := e.repo.ListForConcept(ctx, userID, conceptID)
	if err != nil {
		return nil, apperr.Store("mastery.MasteryForConcept", err)
	}
	return rows, nil
}
