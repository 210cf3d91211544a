package models

import "time"

// RtBaseline is how fast a user normally answers one class of question.
// Skill is stored as "" when the item has no skill.
type RtBaseline struct {
	UserID    int64     `json:"user_id" db:"user_id"`
	ItemType  string    `json:"item_type" db:"item_type"`
	Skill     string    `json:"skill" db:"skill"`
	Modality  string    `json:"modality" db:"modality"`
	RtAvgMs   *float64  `json:"rt_avg_ms" db:"rt_avg_ms"`
	Samples   int       `json:"samples" db:"samples"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
