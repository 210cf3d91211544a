package models

import "time"

// LearnSettings are a user's per-language learn flow targets.
type LearnSettings struct {
	UserID             int64     `json:"user_id" db:"user_id"`
	LanguageID         int64     `json:"language_id" db:"language_id"`
	VocabDailyTarget   int       `json:"vocab_daily_target" db:"vocab_daily_target"`
	VocabChunkSize     int       `json:"vocab_chunk_size" db:"vocab_chunk_size"`
	GrammarDailyTarget int       `json:"grammar_daily_target" db:"grammar_daily_target"`
	GrammarChunkSize   int       `json:"grammar_chunk_size" db:"grammar_chunk_size"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultLearnSettings returns the settings new users start with.
func DefaultLearnSettings(userID, languageID int64) LearnSettings {
	return LearnSettings{
		UserID:             userID,
		LanguageID:         languageID,
		VocabDailyTarget:   20,
		VocabChunkSize:     5,
		GrammarDailyTarget: 5,
		GrammarChunkSize:   2,
	}
}

// ChunkSize returns the chunk size configured for kind.
func (s LearnSettings) ChunkSize(kind string) int {
	if kind == KindGrammar {
		return s.GrammarChunkSize
	}
	return s.VocabChunkSize
}
