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

// ConceptRepository handles database operations for the concept catalog. It
// also serves as the default SQL-backed fresh/due concept selector.
type ConceptRepository struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewConceptRepository creates a new repository instance
func NewConceptRepository(db *sqlx.DB, baseLog *logger.Logger) *ConceptRepository {
	return &ConceptRepository{
		db:  db,
		log: baseLog.With("repo", "ConceptRepository"),
	}
}

// Upsert inserts a concept or refreshes the CEFR level and description of an
// existing one with the same (language, kind, title). It reports whether a
// new row was created.
func (r *ConceptRepository) Upsert(ctx context.Context, c *models.Concept) (bool, error) {
	var existing int64
	err := r.db.GetContext(ctx, &existing, r.db.Rebind(`
		SELECT id FROM concepts WHERE language_id = ? AND kind = ? AND title = ?`),
		c.LanguageID, c.Kind, c.Title)

	switch {
	case err == nil:
		c.ID = existing
		_, err = r.db.ExecContext(ctx, r.db.Rebind(`
			UPDATE concepts SET cefr_level = ?, description = ? WHERE id = ?`),
			c.CefrLevel, c.Description, c.ID)
		if err != nil {
			return false, fmt.Errorf("failed to update concept: %w", err)
		}
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("failed to look up concept: %w", err)
	}

	if r.db.DriverName() == "postgres" {
		err = r.db.QueryRowxContext(ctx, `
			INSERT INTO concepts (language_id, kind, cefr_level, title, description)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			c.LanguageID, c.Kind, c.CefrLevel, c.Title, c.Description,
		).Scan(&c.ID)
		if err != nil {
			return false, fmt.Errorf("failed to create concept: %w", err)
		}
		return true, nil
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO concepts (language_id, kind, cefr_level, title, description)
		VALUES (?, ?, ?, ?, ?)`,
		c.LanguageID, c.Kind, c.CefrLevel, c.Title, c.Description,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create concept: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	c.ID = id
	return true, nil
}

// TierInputs returns, for every CEFR-tagged concept of one kind, the best
// mastery and fastest rtNorm across the user's records. An empty modality
// considers every modality.
func (r *ConceptRepository) TierInputs(ctx context.Context, userID, languageID int64, kind, modelKey, modality string) ([]models.ConceptTierInput, error) {
	join := `m.concept_id = c.id AND m.user_id = ? AND m.model_key = ?`
	args := []interface{}{userID, modelKey}
	if modality != "" {
		join += ` AND m.modality = ?`
		args = append(args, modality)
	}
	args = append(args, languageID, kind)

	query := r.db.Rebind(`
		SELECT
			c.id AS concept_id,
			c.cefr_level AS cefr_level,
			COUNT(m.concept_id) AS records,
			MAX(m.mastery) AS mastery_max,
			MIN(m.rt_norm) AS rt_norm_min
		FROM concepts c
		LEFT JOIN user_concept_mastery m ON ` + join + `
		WHERE c.language_id = ? AND c.kind = ? AND c.cefr_level IS NOT NULL
		GROUP BY c.id, c.cefr_level
		ORDER BY c.cefr_level, c.id
	`)
	var rows []models.ConceptTierInput
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to read concept tier inputs: %w", err)
	}
	return rows, nil
}

// SelectFreshConcepts returns concepts of kind the user has never attempted
// under modelKey and that are not queued, lowest CEFR level first.
func (r *ConceptRepository) SelectFreshConcepts(ctx context.Context, userID, languageID int64, kind, modelKey string, limit int) ([]int64, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := r.db.Rebind(`
		SELECT c.id
		FROM concepts c
		WHERE c.language_id = ? AND c.kind = ?
		AND NOT EXISTS (
			SELECT 1 FROM user_concept_mastery m
			WHERE m.concept_id = c.id AND m.user_id = ? AND m.model_key = ?
		)
		AND NOT EXISTS (
			SELECT 1 FROM user_learn_queue q
			WHERE q.concept_id = c.id AND q.user_id = ? AND q.language_id = ?
		)
		ORDER BY c.cefr_level IS NULL, c.cefr_level, c.id
		LIMIT ?
	`)
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, query, languageID, kind, userID, modelKey, userID, languageID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select fresh concepts: %w", err)
	}
	return ids, nil
}

// SelectDueConcepts returns concepts with a record due by dueBefore, most
// overdue first.
func (r *ConceptRepository) SelectDueConcepts(ctx context.Context, userID, languageID int64, modelKey string, limit int, dueBefore time.Time) ([]int64, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := r.db.Rebind(`
		SELECT m.concept_id
		FROM user_concept_mastery m
		JOIN concepts c ON c.id = m.concept_id
		WHERE m.user_id = ? AND m.model_key = ? AND c.language_id = ? AND m.due_at <= ?
		GROUP BY m.concept_id
		ORDER BY MIN(m.due_at), m.concept_id
		LIMIT ?
	`)
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, query, userID, modelKey, languageID, dueBefore.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select due concepts: %w", err)
	}
	return ids, nil
}
