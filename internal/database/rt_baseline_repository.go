package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/retention/internal/logger"
	"github.com/example/retention/pkg/models"
)

// RtBaselineRepository handles database operations for response-time baselines
type RtBaselineRepository struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewRtBaselineRepository creates a new repository instance
func NewRtBaselineRepository(db *sqlx.DB, baseLog *logger.Logger) *RtBaselineRepository {
	return &RtBaselineRepository{
		db:  db,
		log: baseLog.With("repo", "RtBaselineRepository"),
	}
}

func (r *RtBaselineRepository) q(tx *sqlx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.db
}

// Observe folds one response time into the baseline in a single upsert: the
// first sample seeds it, later samples blend with weight beta.
func (r *RtBaselineRepository) Observe(ctx context.Context, tx *sqlx.Tx, b models.RtBaseline, responseMs, beta float64) error {
	q := r.q(tx)
	query := q.Rebind(`
		INSERT INTO user_rt_baseline (user_id, item_type, skill, modality, rt_avg_ms, samples, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT (user_id, item_type, skill, modality) DO UPDATE SET
			rt_avg_ms = CASE
				WHEN user_rt_baseline.rt_avg_ms IS NULL THEN excluded.rt_avg_ms
				ELSE user_rt_baseline.rt_avg_ms + ? * (excluded.rt_avg_ms - user_rt_baseline.rt_avg_ms)
			END,
			samples = user_rt_baseline.samples + 1,
			updated_at = excluded.updated_at
	`)
	_, err := q.ExecContext(ctx, query,
		b.UserID,
		b.ItemType,
		b.Skill,
		b.Modality,
		responseMs,
		b.UpdatedAt,
		beta,
	)
	if err != nil {
		return fmt.Errorf("failed to update rt baseline: %w", err)
	}
	return nil
}

// Get returns the baseline for one key, or nil when none was recorded.
func (r *RtBaselineRepository) Get(ctx context.Context, tx *sqlx.Tx, userID int64, itemType, skill, modality string) (*models.RtBaseline, error) {
	q := r.q(tx)
	query := q.Rebind(`
		SELECT user_id, item_type, skill, modality, rt_avg_ms, samples, updated_at
		FROM user_rt_baseline
		WHERE user_id = ? AND item_type = ? AND skill = ? AND modality = ?
	`)
	var row models.RtBaseline
	err := q.GetContext(ctx, &row, query, userID, itemType, skill, modality)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rt baseline: %w", err)
	}
	return &row, nil
}
