package models

import "time"

// Interaction modalities a concept can be practised under.
const (
	ModalityReception   = "reception"
	ModalityProduction  = "production"
	ModalityInteraction = "interaction"
	ModalityMediation   = "mediation"
)

// IsModality reports whether m is one of the four modalities.
func IsModality(m string) bool {
	switch m {
	case ModalityReception, ModalityProduction, ModalityInteraction, ModalityMediation:
		return true
	}
	return false
}

// ConceptMasteryKey identifies one retention record.
type ConceptMasteryKey struct {
	UserID    int64  `json:"user_id" db:"user_id"`
	ConceptID int64  `json:"concept_id" db:"concept_id"`
	Modality  string `json:"modality" db:"modality"`
	ModelKey  string `json:"model_key" db:"model_key"`
}

// ConceptMastery is the current retention belief for one concept under one
// modality and one scoring model.
type ConceptMastery struct {
	UserID        int64      `json:"user_id" db:"user_id"`
	ConceptID     int64      `json:"concept_id" db:"concept_id"`
	Modality      string     `json:"modality" db:"modality"`
	ModelKey      string     `json:"model_key" db:"model_key"`
	Mastery       float64    `json:"mastery" db:"mastery"`               // EMA of correctness, 0..1
	HalfLifeDays  float64    `json:"half_life_days" db:"half_life_days"` // 0.25..365
	DueAt         time.Time  `json:"due_at" db:"due_at"`
	RtAvgMs       *float64   `json:"rt_avg_ms" db:"rt_avg_ms"`
	RtNorm        *float64   `json:"rt_norm" db:"rt_norm"` // RtAvgMs relative to the user's baseline
	AttemptsCount int        `json:"attempts_count" db:"attempts_count"`
	CorrectCount  int        `json:"correct_count" db:"correct_count"`
	LastAttemptAt *time.Time `json:"last_attempt_at" db:"last_attempt_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}
