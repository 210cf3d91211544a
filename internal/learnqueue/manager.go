// Package learnqueue manages the chunked queue of new concepts a learner is
// introduced to, per user, language and concept kind.
package learnqueue

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/retention/internal/apperr"
	"github.com/example/retention/internal/database"
	"github.com/example/retention/internal/logger"
	"github.com/example/retention/pkg/models"
)

// ConceptSelector picks the concepts that feed the learn flow.
// database.ConceptRepository is the SQL implementation.
type ConceptSelector interface {
	SelectFreshConcepts(ctx context.Context, userID, languageID int64, kind, modelKey string, limit int) ([]int64, error)
	SelectDueConcepts(ctx context.Context, userID, languageID int64, modelKey string, limit int, dueBefore time.Time) ([]int64, error)
}

// Manager owns the learn queues.
type Manager struct {
	db       *sqlx.DB
	repo     *database.LearnQueueRepository
	settings *database.LearnSettingsRepository
	selector ConceptSelector
	now      func() time.Time
	log      *logger.Logger
}

func NewManager(
	db *sqlx.DB,
	repo *database.LearnQueueRepository,
	settings *database.LearnSettingsRepository,
	selector ConceptSelector,
	baseLog *logger.Logger,
) *Manager {
	return &Manager{
		db:       db,
		repo:     repo,
		settings: settings,
		selector: selector,
		now:      func() time.Time { return time.Now().UTC() },
		log:      baseLog.With("service", "LearnQueueManager"),
	}
}

// modalitiesFor lists the entries a concept of kind gets in the queue.
func modalitiesFor(kind string) []string {
	if kind == models.KindVocab {
		return []string{models.ModalityReception, models.ModalityProduction}
	}
	return []string{models.ModalityReception}
}

func checkScope(op string, userID, languageID int64, kind string) error {
	if userID <= 0 || languageID <= 0 {
		return apperr.Invalid(op, "user and language ids must be positive")
	}
	if !models.IsKind(kind) {
		return apperr.Invalid(op, "unknown concept kind %q", kind)
	}
	return nil
}

// EnsureQueue makes sure the queue holds a chunk to work on. A queue with
// any entry not yet answered correctly is left alone. An empty or fully
// correct queue is replaced in one transaction by up to chunkSize fresh
// concepts. chunkSize <= 0 clears the queue. Running out of fresh concepts
// leaves the queue empty.
func (m *Manager) EnsureQueue(ctx context.Context, userID, languageID int64, kind string, chunkSize int, modelKey string) error {
	const op = "learnqueue.EnsureQueue"
	if err := checkScope(op, userID, languageID, kind); err != nil {
		return err
	}

	if chunkSize <= 0 {
		err := database.WithTx(ctx, m.db, func(tx *sqlx.Tx) error {
			if err := m.repo.Lock(ctx, tx, userID, languageID, kind); err != nil {
				return err
			}
			return m.repo.Clear(ctx, tx, userID, languageID, kind)
		})
		if err != nil {
			return apperr.Store(op, err)
		}
		return nil
	}

	snapshot, err := m.repo.List(ctx, nil, userID, languageID, kind)
	if err != nil {
		return apperr.Store(op, err)
	}
	if len(snapshot) > 0 && !allCorrect(snapshot) {
		return nil
	}

	// The selector runs outside the transaction. The replacement below only
	// goes ahead if the queue still matches what the selection was based on.
	ids, err := m.selector.SelectFreshConcepts(ctx, userID, languageID, kind, modelKey, chunkSize)
	if err != nil {
		return apperr.Store(op, err)
	}
	if len(ids) > chunkSize {
		ids = ids[:chunkSize]
	}

	now := m.now()
	var entries []models.LearnQueueEntry
	for _, id := range ids {
		for _, modality := range modalitiesFor(kind) {
			entries = append(entries, models.LearnQueueEntry{
				UserID:     userID,
				LanguageID: languageID,
				ConceptID:  id,
				Kind:       kind,
				Modality:   modality,
				AddedAt:    now,
			})
		}
	}

	replaced := false
	err = database.WithTx(ctx, m.db, func(tx *sqlx.Tx) error {
		if err := m.repo.Lock(ctx, tx, userID, languageID, kind); err != nil {
			return err
		}
		current, err := m.repo.List(ctx, tx, userID, languageID, kind)
		if err != nil {
			return err
		}
		if !sameQueue(current, snapshot) {
			return nil
		}
		if err := m.repo.Clear(ctx, tx, userID, languageID, kind); err != nil {
			return err
		}
		if err := m.repo.Insert(ctx, tx, entries); err != nil {
			return err
		}
		replaced = true
		return nil
	})
	if err != nil {
		return apperr.Store(op, err)
	}

	if replaced {
		m.log.Info("learn queue refilled",
			"user_id", userID,
			"language_id", languageID,
			"kind", kind,
			"concepts", len(ids),
			"entries", len(entries),
		)
	} else {
		m.log.Debug("learn queue changed concurrently, refill skipped",
			"user_id", userID,
			"language_id", languageID,
			"kind", kind,
		)
	}
	return nil
}

// MarkCorrect records that the learner answered one queued concept
// correctly in one modality. Concepts that are not queued are ignored.
func (m *Manager) MarkCorrect(ctx context.Context, userID, languageID, conceptID int64, modality string) error {
	const op = "learnqueue.MarkCorrect"
	if userID <= 0 || languageID <= 0 || conceptID <= 0 {
		return apperr.Invalid(op, "ids must be positive")
	}
	if !models.IsModality(modality) {
		return apperr.Invalid(op, "unknown modality %q", modality)
	}

	kind, err := m.repo.KindOf(ctx, userID, languageID, conceptID)
	if err != nil {
		return apperr.Store(op, err)
	}
	if kind == "" {
		m.log.Debug("concept is not queued", "user_id", userID, "concept_id", conceptID)
		return nil
	}

	at := m.now()
	var marked bool
	err = database.WithTx(ctx, m.db, func(tx *sqlx.Tx) error {
		if err := m.repo.Lock(ctx, tx, userID, languageID, kind); err != nil {
			return err
		}
		ok, err := m.repo.MarkCorrect(ctx, tx, userID, languageID, conceptID, modality, at)
		marked = ok
		return err
	})
	if err != nil {
		return apperr.Store(op, err)
	}
	if !marked {
		m.log.Debug("no queued entry for modality", "concept_id", conceptID, "modality", modality)
	}
	return nil
}

// ChunkProgress reports how many queued concepts are complete. A concept is
// complete when every one of its entries has been answered correctly.
func (m *Manager) ChunkProgress(ctx context.Context, userID, languageID int64, kind string) (models.ChunkProgress, error) {
	const op = "learnqueue.ChunkProgress"
	if err := checkScope(op, userID, languageID, kind); err != nil {
		return models.ChunkProgress{}, err
	}
	entries, err := m.repo.List(ctx, nil, userID, languageID, kind)
	if err != nil {
		return models.ChunkProgress{}, apperr.Store(op, err)
	}
	return computeProgress(entries), nil
}

// Entries lists the current queue.
func (m *Manager) Entries(ctx context.Context, userID, languageID int64, kind string) ([]models.LearnQueueEntry, error) {
	const op = "learnqueue.Entries"
	if err := checkScope(op, userID, languageID, kind); err != nil {
		return nil, err
	}
	entries, err := m.repo.List(ctx, nil, userID, languageID, kind)
	if err != nil {
		return nil, apperr.Store(op, err)
	}
	return entries, nil
}

// Settings returns the user's learn settings, creating the defaults.
func (m *Manager) Settings(ctx context.Context, userID, languageID int64) (*models.LearnSettings, error) {
	if userID <= 0 || languageID <= 0 {
		return nil, apperr.Invalid("learnqueue.Settings", "user and language ids must be positive")
	}
	s, err := m.settings.Get(ctx, userID, languageID)
	if err != nil {
		return nil, apperr.Store("learnqueue.Settings", err)
	}
	return s, nil
}

// UpdateSettings stores new targets. Zero chunk sizes are allowed and turn
// the learn flow for that kind off.
func (m *Manager) UpdateSettings(ctx context.Context, s *models.LearnSettings) error {
	const op = "learnqueue.UpdateSettings"
	if s.UserID <= 0 || s.LanguageID <= 0 {
		return apperr.Invalid(op, "user and language ids must be positive")
	}
	if s.VocabDailyTarget < 0 || s.VocabChunkSize < 0 || s.GrammarDailyTarget < 0 || s.GrammarChunkSize < 0 {
		return apperr.Invalid(op, "targets and chunk sizes must not be negative")
	}
	if err := m.settings.Upsert(ctx, s); err != nil {
		return apperr.Store(op, err)
	}
	return nil
}

// EnsureForSettings ensures the vocab and grammar queues using the chunk
// sizes from the user's settings.
func (m *Manager) EnsureForSettings(ctx context.Context, userID, languageID int64, modelKey string) error {
	s, err := m.Settings(ctx, userID, languageID)
	if err != nil {
		return err
	}
	for _, kind := range []string{models.KindVocab, models.KindGrammar} {
		if err := m.EnsureQueue(ctx, userID, languageID, kind, s.ChunkSize(kind), modelKey); err != nil {
			return err
		}
	}
	return nil
}

// DueForReview returns up to limit concepts whose review is due now, most
// overdue first.
func (m *Manager) DueForReview(ctx context.Context, userID, languageID int64, modelKey string, limit int) ([]int64, error) {
	const op = "learnqueue.DueForReview"
	if userID <= 0 || languageID <= 0 {
		return nil, apperr.Invalid(op, "user and language ids must be positive")
	}
	ids, err := m.selector.SelectDueConcepts(ctx, userID, languageID, modelKey, limit, m.now())
	if err != nil {
		return nil, apperr.Store(op, err)
	}
	return ids, nil
}

func allCorrect(entries []models.LearnQueueEntry) bool {
	for _, e := range entries {
		if !e.CorrectOnce {
			return false
		}
	}
	return true
}

func sameQueue(a, b []models.LearnQueueEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ConceptID != b[i].ConceptID || a[i].Modality != b[i].Modality || a[i].CorrectOnce != b[i].CorrectOnce {
			return false
		}
	}
	return true
}

func computeProgress(entries []models.LearnQueueEntry) models.ChunkProgress {
	complete := make(map[int64]bool)
	for _, e := range entries {
		done, seen := complete[e.ConceptID]
		complete[e.ConceptID] = (done || !seen) && e.CorrectOnce
	}

	p := models.ChunkProgress{TotalConcepts: len(complete)}
	for _, done := range complete {
		if done {
			p.CompletedConcepts++
		}
	}
	return p
}
