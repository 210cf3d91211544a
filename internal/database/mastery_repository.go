package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/retention/internal/logger"
	"github.com/example/retention/pkg/models"
)

const masteryColumns = `user_id, concept_id, modality, model_key, mastery, half_life_days, due_at,
	rt_avg_ms, rt_norm, attempts_count, correct_count, last_attempt_at, updated_at`

// MasteryRepository handles database operations for concept mastery records
type MasteryRepository struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewMasteryRepository creates a new repository instance
func NewMasteryRepository(db *sqlx.DB, baseLog *logger.Logger) *MasteryRepository {
	return &MasteryRepository{
		db:  db,
		log: baseLog.With("repo", "MasteryRepository"),
	}
}

func (r *MasteryRepository) q(tx *sqlx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.db
}

// EnsureRow inserts the record with the given defaults unless it already exists.
func (r *MasteryRepository) EnsureRow(ctx context.Context, tx *sqlx.Tx, defaults *models.ConceptMastery) error {
	q := r.q(tx)
	query := q.Rebind(`
		INSERT INTO user_concept_mastery (` + masteryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL, NULL, 0, 0, NULL, ?)
		ON CONFLICT (user_id, concept_id, modality, model_key) DO NOTHING
	`)
	_, err := q.ExecContext(ctx, query,
		defaults.UserID,
		defaults.ConceptID,
		defaults.Modality,
		defaults.ModelKey,
		defaults.Mastery,
		defaults.HalfLifeDays,
		defaults.DueAt,
		defaults.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create mastery row: %w", err)
	}
	return nil
}

// GetForUpdate reads one record, locking it for the rest of the transaction
// where the driver supports row locks.
func (r *MasteryRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, key models.ConceptMasteryKey) (*models.ConceptMastery, error) {
	q := r.q(tx)
	query := q.Rebind(`
		SELECT ` + masteryColumns + `
		FROM user_concept_mastery
		WHERE user_id = ? AND concept_id = ? AND modality = ? AND model_key = ?` + forUpdate(q))

	var row models.ConceptMastery
	err := q.GetContext(ctx, &row, query, key.UserID, key.ConceptID, key.Modality, key.ModelKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mastery row: %w", err)
	}
	return &row, nil
}

// Save writes every mutable field of the record.
func (r *MasteryRepository) Save(ctx context.Context, tx *sqlx.Tx, m *models.ConceptMastery) error {
	q := r.q(tx)
	query := q.Rebind(`
		UPDATE user_concept_mastery SET
			mastery = ?,
			half_life_days = ?,
			due_at = ?,
			rt_avg_ms = ?,
			rt_norm = ?,
			attempts_count = ?,
			correct_count = ?,
			last_attempt_at = ?,
			updated_at = ?
		WHERE user_id = ? AND concept_id = ? AND modality = ? AND model_key = ?
	`)
	result, err := q.ExecContext(ctx, query,
		m.Mastery,
		m.HalfLifeDays,
		m.DueAt,
		m.RtAvgMs,
		m.RtNorm,
		m.AttemptsCount,
		m.CorrectCount,
		m.LastAttemptAt,
		m.UpdatedAt,
		m.UserID,
		m.ConceptID,
		m.Modality,
		m.ModelKey,
	)
	if err != nil {
		return fmt.Errorf("failed to update mastery row: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("mastery row %d/%s/%s for user %d not found", m.ConceptID, m.Modality, m.ModelKey, m.UserID)
	}
	return nil
}

// ListForConcept returns every modality and model record a user has for one concept.
func (r *MasteryRepository) ListForConcept(ctx context.Context, userID, conceptID int64) ([]models.ConceptMastery, error) {
	query := r.db.Rebind(`
		SELECT ` + masteryColumns + `
		FROM user_concept_mastery
		WHERE user_id = ? AND concept_id = ?
		ORDER BY modality, model_key
	`)
	var rows []models.ConceptMastery
	if err := r.db.SelectContext(ctx, &rows, query, userID, conceptID); err != nil {
		return nil, fmt.Errorf("failed to list mastery for concept: %w", err)
	}
	return rows, nil
}

// ListDueTimes returns the due instant of every record a user has under one model.
func (r *MasteryRepository) ListDueTimes(ctx context.Context, userID int64, modelKey string) ([]time.Time, error) {
	query := r.db.Rebind(`
		SELECT due_at
		FROM user_concept_mastery
		WHERE user_id = ? AND model_key = ?
		ORDER BY due_at
	`)
	var dues []time.Time
	if err := r.db.SelectContext(ctx, &dues, query, userID, modelKey); err != nil {
		return nil, fmt.Errorf("failed to list due times: %w", err)
	}
	return dues, nil
}

// CountDueConcepts counts distinct concepts with at least one record due by before.
func (r *MasteryRepository) CountDueConcepts(ctx context.Context, userID int64, modelKey string, before time.Time) (int, error) {
	query := r.db.Rebind(`
		SELECT COUNT(DISTINCT concept_id)
		FROM user_concept_mastery
		WHERE user_id = ? AND model_key = ? AND due_at <= ?
	`)
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID, modelKey, before.UTC()); err != nil {
		return 0, fmt.Errorf("failed to count due concepts: %w", err)
	}
	return count, nil
}
