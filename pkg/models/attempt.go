package models

import "time"

// ConceptResult is the graded outcome of one attempt for one concept.
type ConceptResult struct {
	ConceptID int64   `json:"concept_id" validate:"gt=0"`
	IsCorrect bool    `json:"is_correct"`
	Score     float64 `json:"score"`
}

// AttemptResult is one graded practice interaction, produced by the
// evaluation layer. An empty ConceptResults is a no-op.
type AttemptResult struct {
	UserID int64 `json:"user_id" validate:"gt=0"`
	// ModelKey selects the scoring model; empty means the engine default.
	ModelKey       string          `json:"model_key"`
	ConceptResults []ConceptResult `json:"concept_results" validate:"dive"`
	Modality       string          `json:"modality" validate:"required,oneof=reception production interaction mediation"`
	Skill          *string         `json:"skill" validate:"omitempty,oneof=reading writing listening speaking"`
	ItemType       string          `json:"item_type" validate:"required"`
	ResponseMs     *float64        `json:"response_ms" validate:"omitempty,gte=0"`
	OccurredAt     time.Time       `json:"occurred_at"`
}
