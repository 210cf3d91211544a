package models

import "time"

// User is a learner who can receive review reminders. Accounts are owned by
// the host application; this row only carries notification preferences.
type User struct {
	ID                   int64     `json:"id" db:"id"`
	TelegramID           *int64    `json:"telegram_id" db:"telegram_id"`
	NotificationsEnabled bool      `json:"notifications_enabled" db:"notifications_enabled"`
	NotificationHour     int       `json:"notification_hour" db:"notification_hour"` // 0-23, UTC
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}
