package models

import "time"

// LearnQueueEntry is one concept-modality pair being introduced in the
// learn flow.
type LearnQueueEntry struct {
	UserID        int64      `json:"user_id" db:"user_id"`
	LanguageID    int64      `json:"language_id" db:"language_id"`
	ConceptID     int64      `json:"concept_id" db:"concept_id"`
	Kind          string     `json:"kind" db:"kind"`
	Modality      string     `json:"modality" db:"modality"`
	CorrectOnce   bool       `json:"correct_once" db:"correct_once"`
	AddedAt       time.Time  `json:"added_at" db:"added_at"`
	LastAttemptAt *time.Time `json:"last_attempt_at" db:"last_attempt_at"`
}

// ChunkProgress reports how much of the current learn chunk is done.
type ChunkProgress struct {
	TotalConcepts     int `json:"total_concepts"`
	CompletedConcepts int `json:"completed_concepts"`
}
