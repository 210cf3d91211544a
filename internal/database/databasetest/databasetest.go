// Package databasetest opens throwaway migrated databases for tests.
package databasetest

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/example/retention/internal/config"
	"github.com/example/retention/internal/database"
	"github.com/example/retention/internal/logger"
	"github.com/example/retention/pkg/models"
)

// OpenMemory opens an in-memory sqlite database with the schema applied.
// It is closed when the test ends.
func OpenMemory(t testing.TB) *sqlx.DB {
	t.Helper()
	db, err := database.Open(context.Background(), config.Database{Type: "sqlite", URL: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// SeedConcept adds a concept to the catalog and returns its ID. An empty
// level leaves the concept untagged.
func SeedConcept(t testing.TB, db *sqlx.DB, languageID int64, kind, level, title string) int64 {
	t.Helper()
	c := &models.Concept{LanguageID: languageID, Kind: kind, Title: title}
	if level != "" {
		c.CefrLevel = &level
	}
	if _, err := database.NewConceptRepository(db, logger.NewNop()).Upsert(context.Background(), c); err != nil {
		t.Fatalf("failed to seed concept %q: %v", title, err)
	}
	return c.ID
}
