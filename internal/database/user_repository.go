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

// UserRepository handles database operations for reminder recipients
type UserRepository struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewUserRepository creates a new repository instance
func NewUserRepository(db *sqlx.DB, baseLog *logger.Logger) *UserRepository {
	return &UserRepository{
		db:  db,
		log: baseLog.With("repo", "UserRepository"),
	}
}

// Upsert creates the user or updates their notification preferences.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	query := r.db.Rebind(`
		INSERT INTO users (id, telegram_id, notifications_enabled, notification_hour, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			telegram_id = excluded.telegram_id,
			notifications_enabled = excluded.notifications_enabled,
			notification_hour = excluded.notification_hour,
			updated_at = excluded.updated_at
	`)
	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.TelegramID,
		user.NotificationsEnabled,
		user.NotificationHour,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	user.UpdatedAt = now
	return nil
}

// GetByID returns a user by ID, or nil when unknown.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, r.db.Rebind(`
		SELECT id, telegram_id, notifications_enabled, notification_hour, created_at, updated_at
		FROM users WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetUsersForNotification returns users with reminders enabled for the given hour
func (r *UserRepository) GetUsersForNotification(ctx context.Context, hour int) ([]models.User, error) {
	query := r.db.Rebind(`
		SELECT id, telegram_id, notifications_enabled, notification_hour, created_at, updated_at
		FROM users
		WHERE notifications_enabled = ? AND notification_hour = ?
		ORDER BY id
	`)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, true, hour); err != nil {
		return nil, fmt.Errorf("failed to get users for notification: %w", err)
	}
	return users, nil
}
