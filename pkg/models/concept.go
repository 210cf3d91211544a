package models

import "time"

// Concept kinds.
const (
	KindVocab   = "vocab"
	KindGrammar = "grammar"
)

// IsKind reports whether kind is a known concept kind.
func IsKind(kind string) bool {
	return kind == KindVocab || kind == KindGrammar
}

// CefrLevels in ascending order. Progress views always report all six.
var CefrLevels = []string{"A1", "A2", "B1", "B2", "C1", "C2"}

// Concept is a catalog entry: one word or grammar point in a language.
type Concept struct {
	ID          int64     `json:"id" db:"id"`
	LanguageID  int64     `json:"language_id" db:"language_id"`
	Kind        string    `json:"kind" db:"kind"`
	CefrLevel   *string   `json:"cefr_level" db:"cefr_level"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// IsCefrLevel reports whether level is one of A1..C2.
func IsCefrLevel(level string) bool {
	for _, l := range CefrLevels {
		if l == level {
			return true
		}
	}
	return false
}
