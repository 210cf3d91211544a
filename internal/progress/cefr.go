package progress

import (
	"context"

	"github.com/example/retention/internal/apperr"
	"github.com/example/retention/internal/database"
	"github.com/example/retention/internal/logger"
	"github.com/example/retention/pkg/models"
)

// Aggregator builds per-CEFR-level progress counts.
type Aggregator struct {
	concepts *database.ConceptRepository
	rules    TierRules
	log      *logger.Logger
}

func NewAggregator(concepts *database.ConceptRepository, rules TierRules, baseLog *logger.Logger) *Aggregator {
	return &Aggregator{
		concepts: concepts,
		rules:    rules,
		log:      baseLog.With("service", "CefrProgressAggregator"),
	}
}

// Aggregate returns one bucket per CEFR level, A1 through C2, always all
// six. A concept's tier uses its best mastery and fastest rtNorm across the
// selected modality, or across every modality when modality is empty.
func (a *Aggregator) Aggregate(ctx context.Context, userID, languageID int64, modelKey, mode, modality string) ([]models.CefrBucket, error) {
	const op = "progress.Aggregate"
	if userID <= 0 || languageID <= 0 {
		return nil, apperr.Invalid(op, "user and language ids must be positive")
	}
	if modality != "" && !models.IsModality(modality) {
		return nil, apperr.Invalid(op, "unknown modality %q", modality)
	}

	var kinds []string
	switch mode {
	case models.ProgressVocab:
		kinds = []string{models.KindVocab}
	case models.ProgressGrammar:
		kinds = []string{models.KindGrammar}
	case models.ProgressBoth:
		kinds = []string{models.KindVocab, models.KindGrammar}
	default:
		return nil, apperr.Invalid(op, "unknown progress mode %q", mode)
	}

	buckets := emptyBuckets()
	for _, kind := range kinds {
		inputs, err := a.concepts.TierInputs(ctx, userID, languageID, kind, modelKey, modality)
		if err != nil {
			return nil, apperr.Store(op, err)
		}
		kindBuckets := a.bucketize(inputs)
		for i := range buckets {
			buckets[i].Add(kindBuckets[i])
		}
	}

	a.log.Debug("cefr progress aggregated",
		"user_id", userID,
		"language_id", languageID,
		"mode", mode,
		"modality", modality,
	)
	return buckets, nil
}

// bucketize counts each concept into its level. Counting "tier at least X"
// keeps the buckets nested whatever the thresholds are.
func (a *Aggregator) bucketize(inputs []models.ConceptTierInput) []models.CefrBucket {
	buckets := emptyBuckets()
	index := make(map[string]int, len(buckets))
	for i, b := range buckets {
		index[b.Level] = i
	}

	for _, in := range inputs {
		i, ok := index[in.CefrLevel]
		if !ok {
			a.log.Warn("concept has an unknown CEFR level", "concept_id", in.ConceptID, "level", in.CefrLevel)
			continue
		}
		b := &buckets[i]
		b.Total++

		exposed := in.Records > 0
		mastery := 0.0
		if in.MasteryMax != nil {
			mastery = *in.MasteryMax
		}
		tier := Classify(mastery, in.RtNormMin, exposed, a.rules)
		if tier >= Exposed {
			b.ExposedCount++
		}
		if tier >= Mastered {
			b.MasteredCount++
		}
		if tier >= Fluent {
			b.FluentCount++
		}
		if tier >= Automatic {
			b.AutomaticCount++
		}
	}
	return buckets
}

func emptyBuckets() []models.CefrBucket {
	buckets := make([]models.CefrBucket, len(models.CefrLevels))
	for i, level := range models.CefrLevels {
		buckets[i].Level = level
	}
	return buckets
}
