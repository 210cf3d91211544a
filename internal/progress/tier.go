// Package progress turns retention records into learner-facing progress
// views: per-concept tiers, CEFR level buckets and the review forecast.
package progress

import "github.com/example/retention/internal/config"

// Tier is how well a concept is known. Tiers are ordered; every concept in a
// tier also counts toward all lower tiers except NotExposed.
type Tier int

const (
	NotExposed Tier = iota
	Exposed
	Mastered
	Fluent
	Automatic
)

func (t Tier) String() string {
	switch t {
	case NotExposed:
		return "not_exposed"
	case Exposed:
		return "exposed"
	case Mastered:
		return "mastered"
	case Fluent:
		return "fluent"
	case Automatic:
		return "automatic"
	default:
		return "unknown"
	}
}

// TierRules are the thresholds a concept must reach for each tier.
type TierRules struct {
	MasteryMin       float64
	FluencyMin       float64
	FluencyRtNormMax float64
	AutoMin          float64
	AutoRtNormMax    float64
}

// DefaultTierRules are the thresholds used when none are configured.
func DefaultTierRules() TierRules {
	return TierRules{
		MasteryMin:       0.80,
		FluencyMin:       0.85,
		FluencyRtNormMax: 1.00,
		AutoMin:          0.90,
		AutoRtNormMax:    0.80,
	}
}

func RulesFromConfig(t config.Tiers) TierRules {
	return TierRules{
		MasteryMin:       t.MasteryMin,
		FluencyMin:       t.FluencyMin,
		FluencyRtNormMax: t.FluencyRtNormMax,
		AutoMin:          t.AutoMin,
		AutoRtNormMax:    t.AutoRtNormMax,
	}
}

// Classify maps a concept's best mastery and fastest normalised response
// time to a tier. The first matching rule wins. A nil rtNormMin never
// satisfies a speed condition.
func Classify(masteryMax float64, rtNormMin *float64, exposed bool, rules TierRules) Tier {
	if !exposed {
		return NotExposed
	}
	fastUnder := func(limit float64) bool {
		return rtNormMin != nil && *rtNormMin <= limit
	}
	switch {
	case masteryMax >= rules.AutoMin && fastUnder(rules.AutoRtNormMax):
		return Automatic
	case masteryMax >= rules.FluencyMin && fastUnder(rules.FluencyRtNormMax):
		return Fluent
	case masteryMax >= rules.MasteryMin:
		return Mastered
	default:
		return Exposed
	}
}
