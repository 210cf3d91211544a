// Package rtbaseline tracks how fast each user normally answers each class
// of question, so a concept's response time can be read relative to it.
package rtbaseline

import (
	"context"
	"math"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/retention/internal/apperr"
	"github.com/example/retention/internal/database"
	"github.com/example/retention/internal/logger"
	"github.com/example/retention/pkg/models"
)

// Key identifies one baseline. A nil Skill is its own class.
type Key struct {
	UserID   int64
	ItemType string
	Skill    *string
	Modality string
}

func (k Key) skill() string {
	if k.Skill == nil {
		return ""
	}
	return *k.Skill
}

// Tracker maintains response-time baselines with a fixed-weight EMA. The
// sample count is advisory and never changes the blend weight.
type Tracker struct {
	repo *database.RtBaselineRepository
	beta float64
	log  *logger.Logger
}

func NewTracker(repo *database.RtBaselineRepository, beta float64, baseLog *logger.Logger) *Tracker {
	return &Tracker{
		repo: repo,
		beta: beta,
		log:  baseLog.With("service", "RtBaselineTracker"),
	}
}

// Observe folds one correct answer's response time into the baseline. It
// runs inside tx so it commits or rolls back with the caller's update.
func (t *Tracker) Observe(ctx context.Context, tx *sqlx.Tx, key Key, responseMs float64, at time.Time) error {
	if responseMs < 0 || math.IsNaN(responseMs) || math.IsInf(responseMs, 0) {
		return apperr.Invalid("rtbaseline.Observe", "response time must be a non-negative number, got %v", responseMs)
	}
	if key.ItemType == "" || key.Modality == "" {
		return apperr.Invalid("rtbaseline.Observe", "item type and modality are required")
	}

	row := models.RtBaseline{
		UserID:    key.UserID,
		ItemType:  key.ItemType,
		Skill:     key.skill(),
		Modality:  key.Modality,
		UpdatedAt: at.UTC(),
	}
	return t.repo.Observe(ctx, tx, row, responseMs, t.beta)
}

// Read returns the current baseline in milliseconds, or nil when the user
// has no correct answers of this class yet.
func (t *Tracker) Read(ctx context.Context, tx *sqlx.Tx, key Key) (*float64, error) {
	row, err := t.repo.Get(ctx, tx, key.UserID, key.ItemType, key.skill(), key.Modality)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return row.RtAvgMs, nil
}

// Get returns the whole baseline row, including the sample count.
func (t *Tracker) Get(ctx context.Context, key Key) (*models.RtBaseline, error) {
	return t.repo.Get(ctx, nil, key.UserID, key.ItemType, key.skill(), key.Modality)
}
