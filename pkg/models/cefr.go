package models

// Progress modes for CEFR aggregation.
const (
	ProgressVocab   = "vocab"
	ProgressGrammar = "grammar"
	ProgressBoth    = "both"
)

// CefrBucket counts one CEFR level's concepts by tier. Counts nest:
// Automatic <= Fluent <= Mastered <= Exposed <= Total.
type CefrBucket struct {
	Level          string `json:"level"`
	Total          int    `json:"total"`
	ExposedCount   int    `json:"exposed_count"`
	MasteredCount  int    `json:"mastered_count"`
	FluentCount    int    `json:"fluent_count"`
	AutomaticCount int    `json:"automatic_count"`
}

// Add sums other into b field by field.
func (b *CefrBucket) Add(other CefrBucket) {
	b.Total += other.Total
	b.ExposedCount += other.ExposedCount
	b.MasteredCount += other.MasteredCount
	b.FluentCount += other.FluentCount
	b.AutomaticCount += other.AutomaticCount
}

// ConceptTierInput is one concept's aggregated retention state as read for
// progress views.
type ConceptTierInput struct {
	ConceptID  int64    `db:"concept_id"`
	CefrLevel  string   `db:"cefr_level"`
	Records    int      `db:"records"`
	MasteryMax *float64 `db:"mastery_max"`
	RtNormMin  *float64 `db:"rt_norm_min"`
}
