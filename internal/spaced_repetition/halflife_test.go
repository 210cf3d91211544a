package spaced_repetition

import (
	"math"
	"math/rand"
	"testing"
	"time"
)

const epsilon = 1e-9

func assertFloat(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > epsilon {
		t.Errorf("%s = %.9f, want %.9f (diff %.9f)", name, got, want, math.Abs(got-want))
	}
}

func TestNextMastery(t *testing.T) {
	h := NewHalfLife()
	// 0.5 + 0.15*(1-0.5)
	assertFloat(t, "correct from 0.5", h.NextMastery(0.5, true), 0.575)
	// 0.8 + 0.15*(0-0.8)
	assertFloat(t, "incorrect from 0.8", h.NextMastery(0.8, false), 0.68)
}

func TestMasteryStaysBounded(t *testing.T) {
	h := NewHalfLife()
	rnd := rand.New(rand.NewSource(7))
	m := h.InitialMastery
	for i := 0; i < 10000; i++ {
		m = h.NextMastery(m, rnd.Intn(4) != 0)
		if m < 0 || m > 1 {
			t.Fatalf("step %d: mastery %.17f out of [0,1]", i, m)
		}
	}
	for i := 0; i < 2000; i++ {
		m = h.NextMastery(m, true)
	}
	if m > 1 {
		t.Fatalf("mastery drifted above 1: %.17f", m)
	}
}

func TestLagDays(t *testing.T) {
	h := NewHalfLife()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	assertFloat(t, "no previous attempt", h.LagDays(nil, now), 1.0)

	last := now.Add(-36 * time.Hour)
	assertFloat(t, "36h", h.LagDays(&last, now), 1.5)

	future := now.Add(time.Hour)
	assertFloat(t, "clock skew", h.LagDays(&future, now), 0)
}

func TestNextHalfLife(t *testing.T) {
	h := NewHalfLife()
	tests := []struct {
		name    string
		old     float64
		lag     float64
		correct bool
		want    float64
	}{
		// R = 2^(-1/1.5) = 0.63 <= 0.9
		{"hard-won correct", 1.5, 1.0, true, 2.55},
		// R = 2^(-0.1/10) = 0.993 > 0.9
		{"easy correct", 10, 0.1, true, 12.5},
		// 2 < 0.5*10
		{"early failure", 10, 2, false, 8.0},
		// 6 >= 0.5*10
		{"late failure", 10, 6, false, 10 / 1.7},
		{"saturates high", 300, 200, true, 365},
		{"saturates low", 0.3, 0, false, 0.25},
		{"corrupt half-life resets", 0, 1, true, 2.55},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertFloat(t, "half-life", h.NextHalfLife(tt.old, tt.lag, tt.correct), tt.want)
		})
	}
}

func TestHalfLifeBoundsUnderRepetition(t *testing.T) {
	h := NewHalfLife()

	hl := h.InitialHalfLife
	for i := 0; i < 100; i++ {
		hl = h.NextHalfLife(hl, hl*2, true)
	}
	assertFloat(t, "after many successes", hl, h.MaxHalfLife)

	for i := 0; i < 100; i++ {
		hl = h.NextHalfLife(hl, 0, false)
	}
	assertFloat(t, "after many early failures", hl, h.MinHalfLife)
}

func TestDueLagDays(t *testing.T) {
	h := NewHalfLife()
	// -ln(0.75)/ln(2) = 0.4150374992788438
	assertFloat(t, "due lag for h=1", h.DueLagDays(1), 0.4150374992788438)
	// at the due lag, predicted recall equals the target
	assertFloat(t, "recall at due", h.PredictedRecall(h.DueLagDays(7), 7), h.TargetRetention)
}

func TestDueAtMonotonicInHalfLife(t *testing.T) {
	h := NewHalfLife()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	prev := h.DueAt(from, h.MinHalfLife)
	for hl := h.MinHalfLife + 0.25; hl <= h.MaxHalfLife; hl += 0.25 {
		due := h.DueAt(from, hl)
		if !due.After(prev) {
			t.Fatalf("DueAt(h=%.2f) = %v is not after DueAt(h=%.2f) = %v", hl, due, hl-0.25, prev)
		}
		prev = due
	}
}

func TestEMA(t *testing.T) {
	assertFloat(t, "seed", EMA(nil, 1000, 0.12), 1000)
	prev := 1000.0
	// 1000 + 0.12*(500-1000)
	assertFloat(t, "blend", EMA(&prev, 500, 0.12), 940)
}
