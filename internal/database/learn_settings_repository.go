package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/retention/internal/logger"
	"github.com/example/retention/pkg/models"
)

// LearnSettingsRepository handles database operations for learn settings
type LearnSettingsRepository struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewLearnSettingsRepository creates a new repository instance
func NewLearnSettingsRepository(db *sqlx.DB, baseLog *logger.Logger) *LearnSettingsRepository {
	return &LearnSettingsRepository{
		db:  db,
		log: baseLog.With("repo", "LearnSettingsRepository"),
	}
}

// Get returns the user's settings, creating the defaults on first use.
func (r *LearnSettingsRepository) Get(ctx context.Context, userID, languageID int64) (*models.LearnSettings, error) {
	def := models.DefaultLearnSettings(userID, languageID)
	def.UpdatedAt = time.Now().UTC()

	insert := r.db.Rebind(`
		INSERT INTO user_learn_settings (
			user_id, language_id,
			vocab_daily_target, vocab_chunk_size,
			grammar_daily_target, grammar_chunk_size,
			updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, language_id) DO NOTHING
	`)
	_, err := r.db.ExecContext(ctx, insert,
		def.UserID, def.LanguageID,
		def.VocabDailyTarget, def.VocabChunkSize,
		def.GrammarDailyTarget, def.GrammarChunkSize,
		def.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create learn settings: %w", err)
	}

	query := r.db.Rebind(`
		SELECT user_id, language_id, vocab_daily_target, vocab_chunk_size,
			grammar_daily_target, grammar_chunk_size, updated_at
		FROM user_learn_settings
		WHERE user_id = ? AND language_id = ?
	`)
	var s models.LearnSettings
	if err := r.db.GetContext(ctx, &s, query, userID, languageID); err != nil {
		return nil, fmt.Errorf("failed to get learn settings: %w", err)
	}
	return &s, nil
}

// Upsert stores the user's settings.
func (r *LearnSettingsRepository) Upsert(ctx context.Context, s *models.LearnSettings) error {
	s.UpdatedAt = time.Now().UTC()
	query := r.db.Rebind(`
		INSERT INTO user_learn_settings (
			user_id, language_id,
			vocab_daily_target, vocab_chunk_size,
			grammar_daily_target, grammar_chunk_size,
			updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, language_id) DO UPDATE SET
			vocab_daily_target = excluded.vocab_daily_target,
			vocab_chunk_size = excluded.vocab_chunk_size,
			grammar_daily_target = excluded.grammar_daily_target,
			grammar_chunk_size = excluded.grammar_chunk_size,
			updated_at = excluded.updated_at
	`)
	_, err := r.db.ExecContext(ctx, query,
		s.UserID, s.LanguageID,
		s.VocabDailyTarget, s.VocabChunkSize,
		s.GrammarDailyTarget, s.GrammarChunkSize,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert learn settings: %w", err)
	}
	return nil
}
