package spaced_repetition

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// HalfLife implements the half-life regression retention model: predicted
// recall decays as 2^(-lag/h), and each review stretches or shrinks h.
type HalfLife struct {
	// Weight of the newest answer in the mastery EMA.
	Alpha float64
	// Weight of the newest sample in response-time EMAs.
	RtBeta float64

	InitialMastery  float64
	InitialHalfLife float64 // days
	MinHalfLife     float64 // days
	MaxHalfLife     float64 // days

	// Lag used for the very first attempt at a concept.
	BootstrapLagDays float64

	// Reviews are scheduled when predicted recall falls to this value.
	TargetRetention float64

	// A correct answer with predicted recall at or below this was hard-won.
	HardRecallMax float64
	SuccessHard   float64
	SuccessEasy   float64

	// A failure with lag at or beyond LateFraction*h is a late failure.
	LateFraction float64
	FailLateDiv  float64
	FailEarlyDiv float64
}

// NewHalfLife creates a model with the production defaults.
func NewHalfLife() *HalfLife {
	return &HalfLife{
		Alpha:            0.15,
		RtBeta:           0.12,
		InitialMastery:   0.5,
		InitialHalfLife:  1.5,
		MinHalfLife:      0.25, // 6 hours
		MaxHalfLife:      365,
		BootstrapLagDays: 1.0,
		TargetRetention:  0.75,
		HardRecallMax:    0.9,
		SuccessHard:      1.7,
		SuccessEasy:      1.25,
		LateFraction:     0.5,
		FailLateDiv:      1.7,
		FailEarlyDiv:     1.25,
	}
}

// NextMastery moves mastery toward 1 or 0 by Alpha.
func (h *HalfLife) NextMastery(old float64, correct bool) float64 {
	target := 0.0
	if correct {
		target = 1.0
	}
	return clamp(old+h.Alpha*(target-old), 0, 1)
}

// LagDays is the time since the previous attempt in days, never negative.
func (h *HalfLife) LagDays(last *time.Time, now time.Time) float64 {
	if last == nil {
		return h.BootstrapLagDays
	}
	lag := now.Sub(*last).Hours() / 24
	if lag < 0 {
		return 0
	}
	return lag
}

// PredictedRecall is the probability of recall after lagDays with half-life halfLife.
func (h *HalfLife) PredictedRecall(lagDays, halfLife float64) float64 {
	return math.Pow(2, -lagDays/halfLife)
}

// NextHalfLife returns the half-life after one review.
func (h *HalfLife) NextHalfLife(old, lagDays float64, correct bool) float64 {
	if old <= 0 || math.IsNaN(old) {
		old = h.InitialHalfLife
	}

	next := old
	if correct {
		if h.PredictedRecall(lagDays, old) <= h.HardRecallMax {
			next *= h.SuccessHard
		} else {
			next *= h.SuccessEasy
		}
	} else {
		if lagDays >= h.LateFraction*old {
			next /= h.FailLateDiv
		} else {
			next /= h.FailEarlyDiv
		}
	}
	return clamp(next, h.MinHalfLife, h.MaxHalfLife)
}

// DueLagDays is how long until predicted recall reaches TargetRetention:
// t = h * (-ln R / ln 2), about 0.415*h for R = 0.75.
func (h *HalfLife) DueLagDays(halfLife float64) float64 {
	return halfLife * (-math.Log(h.TargetRetention) / math.Ln2)
}

// DueAt schedules the next review relative to from.
func (h *HalfLife) DueAt(from time.Time, halfLife float64) time.Time {
	return from.Add(time.Duration(h.DueLagDays(halfLife) * float64(day)))
}

// EMA blends sample into prev with weight beta; a nil prev is seeded by sample.
func EMA(prev *float64, sample, beta float64) float64 {
	if prev == nil {
		return sample
	}
	return *prev + beta*(sample-*prev)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
