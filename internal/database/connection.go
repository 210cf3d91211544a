package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"

	"github.com/example/retention/internal/config"
)

// DB is the process-wide connection opened by Connect.
var DB *sqlx.DB

func init() {
	sqlx.BindDriver("libsql", sqlx.QUESTION)
}

// Connect opens the configured database, applies the schema and stores the
// handle in DB.
func Connect(ctx context.Context, cfg config.Database) (*sqlx.DB, error) {
	db, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	DB = db
	return db, nil
}

// Open opens and migrates a database without touching the global handle.
func Open(ctx context.Context, cfg config.Database) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)

	switch cfg.Type {
	case "postgres":
		db, err = sqlx.ConnectContext(ctx, "postgres", cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	case "turso":
		db, err = sqlx.Open("libsql", cfg.TursoURL+"?authToken="+cfg.TursoAuth)
		if err != nil {
			return nil, fmt.Errorf("failed to open turso database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("turso database ping failed: %w", err)
		}
	default:
		db, err = openSQLite(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
	}

	if err := InitializeSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func openSQLite(ctx context.Context, path string) (*sqlx.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// SQLite doesn't support multiple writers, and every :memory: connection
	// is its own database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// Close closes the global connection.
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

// InitializeSchema creates the tables if they don't exist.
func InitializeSchema(ctx context.Context, db *sqlx.DB) error {
	r := dialect(db.DriverName())
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, r.Replace(stmt)); err != nil {
			return fmt.Errorf("failed to initialize schema: %w\n%s", err, firstLine(stmt))
		}
	}
	return nil
}

func dialect(driver string) *strings.Replacer {
	if driver == "postgres" {
		return strings.NewReplacer(
			"{{serial}}", "BIGSERIAL PRIMARY KEY",
			"{{ts}}", "TIMESTAMPTZ",
			"{{real}}", "DOUBLE PRECISION",
		)
	}
	return strings.NewReplacer(
		"{{serial}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{ts}}", "TIMESTAMP",
		"{{real}}", "REAL",
	)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS concepts (
		id {{serial}},
		language_id BIGINT NOT NULL,
		kind TEXT NOT NULL,
		cefr_level TEXT,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at {{ts}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(language_id, kind, title)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_concepts_language_kind_cefr
		ON concepts (language_id, kind, cefr_level)`,

	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT PRIMARY KEY,
		telegram_id BIGINT UNIQUE,
		notifications_enabled BOOLEAN NOT NULL DEFAULT true,
		notification_hour INTEGER NOT NULL DEFAULT 9,
		created_at {{ts}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at {{ts}} NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS user_concept_mastery (
		user_id BIGINT NOT NULL,
		concept_id BIGINT NOT NULL,
		modality TEXT NOT NULL,
		model_key TEXT NOT NULL,
		mastery {{real}} NOT NULL,
		half_life_days {{real}} NOT NULL,
		due_at {{ts}} NOT NULL,
		rt_avg_ms {{real}},
		rt_norm {{real}},
		attempts_count INTEGER NOT NULL DEFAULT 0,
		correct_count INTEGER NOT NULL DEFAULT 0,
		last_attempt_at {{ts}},
		updated_at {{ts}} NOT NULL,
		PRIMARY KEY (user_id, concept_id, modality, model_key),
		FOREIGN KEY (concept_id) REFERENCES concepts(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_concept_mastery_due
		ON user_concept_mastery (user_id, model_key, due_at)`,

	`CREATE TABLE IF NOT EXISTS user_rt_baseline (
		user_id BIGINT NOT NULL,
		item_type TEXT NOT NULL,
		skill TEXT NOT NULL DEFAULT '',
		modality TEXT NOT NULL,
		rt_avg_ms {{real}},
		samples INTEGER NOT NULL DEFAULT 0,
		updated_at {{ts}} NOT NULL,
		PRIMARY KEY (user_id, item_type, skill, modality)
	)`,

	`CREATE TABLE IF NOT EXISTS user_learn_queue (
		user_id BIGINT NOT NULL,
		language_id BIGINT NOT NULL,
		concept_id BIGINT NOT NULL,
		kind TEXT NOT NULL,
		modality TEXT NOT NULL,
		correct_once BOOLEAN NOT NULL DEFAULT false,
		added_at {{ts}} NOT NULL,
		last_attempt_at {{ts}},
		PRIMARY KEY (user_id, language_id, concept_id, kind, modality),
		FOREIGN KEY (concept_id) REFERENCES concepts(id) ON DELETE CASCADE
	)`,

	`CREATE TABLE IF NOT EXISTS user_learn_settings (
		user_id BIGINT NOT NULL,
		language_id BIGINT NOT NULL,
		vocab_daily_target INTEGER NOT NULL,
		vocab_chunk_size INTEGER NOT NULL,
		grammar_daily_target INTEGER NOT NULL,
		grammar_chunk_size INTEGER NOT NULL,
		updated_at {{ts}} NOT NULL,
		PRIMARY KEY (user_id, language_id)
	)`,
}
