package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/retention/internal/logger"
	"github.com/example/retention/pkg/models"
)

// LearnQueueRepository handles database operations for learn queues
type LearnQueueRepository struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewLearnQueueRepository creates a new repository instance
func NewLearnQueueRepository(db *sqlx.DB, baseLog *logger.Logger) *LearnQueueRepository {
	return &LearnQueueRepository{
		db:  db,
		log: baseLog.With("repo", "LearnQueueRepository"),
	}
}

func (r *LearnQueueRepository) q(tx *sqlx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.db
}

// Lock serialises queue writers for one (user, language, kind) on drivers
// with concurrent writers. It must be called inside tx.
func (r *LearnQueueRepository) Lock(ctx context.Context, tx *sqlx.Tx, userID, languageID int64, kind string) error {
	return lockKey(ctx, tx, fmt.Sprintf("learn_queue:%d:%d:%s", userID, languageID, kind))
}

// List returns the queue for one kind, ordered by concept then modality.
func (r *LearnQueueRepository) List(ctx context.Context, tx *sqlx.Tx, userID, languageID int64, kind string) ([]models.LearnQueueEntry, error) {
	q := r.q(tx)
	query := q.Rebind(`
		SELECT user_id, language_id, concept_id, kind, modality, correct_once, added_at, last_attempt_at
		FROM user_learn_queue
		WHERE user_id = ? AND language_id = ? AND kind = ?
		ORDER BY added_at, concept_id, modality
	`)
	var entries []models.LearnQueueEntry
	if err := q.SelectContext(ctx, &entries, query, userID, languageID, kind); err != nil {
		return nil, fmt.Errorf("failed to list learn queue: %w", err)
	}
	return entries, nil
}

// Clear deletes the queue for one kind.
func (r *LearnQueueRepository) Clear(ctx context.Context, tx *sqlx.Tx, userID, languageID int64, kind string) error {
	q := r.q(tx)
	query := q.Rebind(`DELETE FROM user_learn_queue WHERE user_id = ? AND language_id = ? AND kind = ?`)
	if _, err := q.ExecContext(ctx, query, userID, languageID, kind); err != nil {
		return fmt.Errorf("failed to clear learn queue: %w", err)
	}
	return nil
}

// Insert adds entries to the queue.
func (r *LearnQueueRepository) Insert(ctx context.Context, tx *sqlx.Tx, entries []models.LearnQueueEntry) error {
	q := r.q(tx)
	query := q.Rebind(`
		INSERT INTO user_learn_queue (
			user_id, language_id, concept_id, kind, modality,
			correct_once, added_at, last_attempt_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	for _, e := range entries {
		_, err := q.ExecContext(ctx, query,
			e.UserID,
			e.LanguageID,
			e.ConceptID,
			e.Kind,
			e.Modality,
			e.CorrectOnce,
			e.AddedAt,
			e.LastAttemptAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert learn queue entry %d/%s: %w", e.ConceptID, e.Modality, err)
		}
	}
	return nil
}

// MarkCorrect flags one concept-modality entry as answered correctly. It
// returns false when no such entry is queued.
func (r *LearnQueueRepository) MarkCorrect(ctx context.Context, tx *sqlx.Tx, userID, languageID, conceptID int64, modality string, at time.Time) (bool, error) {
	q := r.q(tx)
	query := q.Rebind(`
		UPDATE user_learn_queue
		SET correct_once = ?,
			last_attempt_at = ?
		WHERE user_id = ? AND language_id = ? AND concept_id = ? AND modality = ?
	`)
	result, err := q.ExecContext(ctx, query, true, at, userID, languageID, conceptID, modality)
	if err != nil {
		return false, fmt.Errorf("failed to mark learn queue entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// KindOf returns the kind of the queued entry for a concept, or "" when the
// concept is not queued.
func (r *LearnQueueRepository) KindOf(ctx context.Context, userID, languageID, conceptID int64) (string, error) {
	query := r.db.Rebind(`
		SELECT kind FROM user_learn_queue
		WHERE user_id = ? AND language_id = ? AND concept_id = ?
		LIMIT 1
	`)
	var kinds []string
	if err := r.db.SelectContext(ctx, &kinds, query, userID, languageID, conceptID); err != nil {
		return "", fmt.Errorf("failed to look up learn queue kind: %w", err)
	}
	if len(kinds) == 0 {
		return "", nil
	}
	return kinds[0], nil
}
