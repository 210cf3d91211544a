// Package app wires the retention services together from configuration
// and exposes the operations a host application calls.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/multierr"

	"github.com/example/retention/internal/apperr"
	"github.com/example/retention/internal/config"
	"github.com/example/retention/internal/database"
	"github.com/example/retention/internal/excel"
	"github.com/example/retention/internal/learnqueue"
	"github.com/example/retention/internal/logger"
	"github.com/example/retention/internal/mastery"
	"github.com/example/retention/internal/progress"
	"github.com/example/retention/internal/rtbaseline"
	"github.com/example/retention/internal/scheduler"
	"github.com/example/retention/internal/spaced_repetition"
	"github.com/example/retention/pkg/models"
)

// App holds every service of the module over one database.
type App struct {
	DB       *sqlx.DB
	Engine   *mastery.Engine
	Baseline *rtbaseline.Tracker
	Progress *progress.Aggregator
	Forecast *progress.Forecaster
	Queue    *learnqueue.Manager
	Importer *excel.Importer
	Users    *database.UserRepository

	cfg     *config.Config
	mastery *database.MasteryRepository
	log     *logger.Logger
}

// New builds the services over an open database.
func New(db *sqlx.DB, cfg *config.Config, log *logger.Logger) *App {
	model := spaced_repetition.NewHalfLife()

	masteryRepo := database.NewMasteryRepository(db, log)
	conceptRepo := database.NewConceptRepository(db, log)
	baseline := rtbaseline.NewTracker(database.NewRtBaselineRepository(db, log), model.RtBeta, log)

	return &App{
		DB:       db,
		Engine:   mastery.NewEngine(db, masteryRepo, baseline, model, cfg.ModelKey, log),
		Baseline: baseline,
		Progress: progress.NewAggregator(conceptRepo, progress.RulesFromConfig(cfg.Tiers), log),
		Forecast: progress.NewForecaster(masteryRepo, log),
		Queue: learnqueue.NewManager(db,
			database.NewLearnQueueRepository(db, log),
			database.NewLearnSettingsRepository(db, log),
			conceptRepo,
			log,
		),
		Importer: excel.NewImporter(conceptRepo, log),
		Users:    database.NewUserRepository(db, log),
		cfg:      cfg,
		mastery:  masteryRepo,
		log:      log.With("service", "App"),
	}
}

// NewScheduler builds the reminder scheduler for notifier.
func (a *App) NewScheduler(notifier scheduler.Notifier) *scheduler.Scheduler {
	return scheduler.New(notifier, a.Users, a.mastery, scheduler.OptionsFromConfig(a.cfg), a.log)
}

// ImportCatalog loads the configured catalog file, if any.
func (a *App) ImportCatalog(ctx context.Context) error {
	if a.cfg.ImportFile == "" {
		return nil
	}
	ic := excel.DefaultImportConfig()
	ic.FilePath = a.cfg.ImportFile
	ic.LanguageID = a.cfg.ImportLanguageID
	res, err := a.Importer.Import(ctx, ic)
	if err != nil {
		return err
	}
	for _, msg := range res.Errors {
		a.log.Warn("catalog row skipped", "file", ic.FilePath, "reason", msg)
	}
	return nil
}

// ApplyAttempt records a graded attempt.
func (a *App) ApplyAttempt(ctx context.Context, attempt models.AttemptResult) error {
	return a.Engine.ApplyAttempt(ctx, attempt)
}

// RecordLearnAttempt records an attempt made in the learn flow: the
// retention records are updated, correctly answered queue entries are
// marked and the queue is refilled once the chunk is done. Concepts whose
// update was rolled back stay unmarked; the *mastery.AttemptError is
// returned after the rest of the attempt has been handled.
func (a *App) RecordLearnAttempt(ctx context.Context, languageID int64, kind string, attempt models.AttemptResult) error {
	applyErr := a.Engine.ApplyAttempt(ctx, attempt)
	failed := make(map[int64]bool)
	if applyErr != nil {
		var attemptErr *mastery.AttemptError
		if !errors.As(applyErr, &attemptErr) {
			return applyErr
		}
		for _, id := range attemptErr.FailedConceptIDs {
			failed[id] = true
		}
	}

	for _, cr := range attempt.ConceptResults {
		if !cr.IsCorrect || failed[cr.ConceptID] {
			continue
		}
		if err := a.Queue.MarkCorrect(ctx, attempt.UserID, languageID, cr.ConceptID, attempt.Modality); err != nil {
			return multierr.Append(applyErr, err)
		}
	}
	s, err := a.Queue.Settings(ctx, attempt.UserID, languageID)
	if err != nil {
		return multierr.Append(applyErr, err)
	}
	err = a.Queue.EnsureQueue(ctx, attempt.UserID, languageID, kind, s.ChunkSize(kind), a.modelKey(attempt.ModelKey))
	return multierr.Append(applyErr, err)
}

// MasteryForConcept returns every record the user has for a concept.
func (a *App) MasteryForConcept(ctx context.Context, userID, conceptID int64) ([]models.ConceptMastery, error) {
	if userID <= 0 || conceptID <= 0 {
		return nil, apperr.Invalid("app.MasteryForConcept", "ids must be positive")
	}
	return a.Engine.MasteryForConcept(ctx, userID, conceptID)
}

// CefrProgress returns the six CEFR buckets. An empty modelKey selects the
// configured model.
func (a *App) CefrProgress(ctx context.Context, userID, languageID int64, modelKey, mode, modality string) ([]models.CefrBucket, error) {
	return a.Progress.Aggregate(ctx, userID, languageID, a.modelKey(modelKey), mode, modality)
}

// ChunkProgress reports progress through the current learn chunk.
func (a *App) ChunkProgress(ctx context.Context, userID, languageID int64, kind string) (models.ChunkProgress, error) {
	return a.Queue.ChunkProgress(ctx, userID, languageID, kind)
}

// ReviewForecast counts reviews due over the next days under modelKey, or
// the configured model when it is empty.
func (a *App) ReviewForecast(ctx context.Context, userID int64, modelKey string, now time.Time, days int) ([]models.ForecastPoint, error) {
	return a.Forecast.Forecast(ctx, userID, a.modelKey(modelKey), now, days)
}

func (a *App) modelKey(k string) string {
	if k == "" {
		return a.cfg.ModelKey
	}
	return k
}
