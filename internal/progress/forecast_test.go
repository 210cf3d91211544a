package progress

import (
	"context"
	"testing"
	"time"

	"github.com/example/retention/internal/database"
	"github.com/example/retention/internal/database/databasetest"
	"github.com/example/retention/internal/logger"
	"github.com/example/retention/pkg/models"
)

func TestBucketDueTimes(t *testing.T) {
	now := time.Date(2026, 6, 10, 15, 0, 0, 0, time.UTC)
	dues := []time.Time{
		now.Add(-72 * time.Hour),     // overdue
		now.Add(-time.Minute),        // overdue, same day
		now.Add(time.Hour),           // today
		now.Add(10 * time.Hour),      // tomorrow 01:00
		now.Add(3 * 24 * time.Hour),  // +3
		now.Add(30 * 24 * time.Hour), // beyond the window
	}

	points := BucketDueTimes(dues, now, 7)
	if len(points) != 9 {
		t.Fatalf("got %d points, want overdue + today + 7", len(points))
	}

	want := map[string]int{
		"overdue":    2,
		"today":      1,
		"2026-06-11": 1,
		"2026-06-13": 1,
	}
	for _, p := range points {
		if p.Count != want[p.Key] {
			t.Errorf("%s: count %d, want %d", p.Key, p.Count, want[p.Key])
		}
	}
	if !points[0].Overdue || points[1].Overdue {
		t.Errorf("only the first point should be overdue")
	}
	if points[8].Key != "2026-06-17" {
		t.Errorf("last key = %s, want 2026-06-17", points[8].Key)
	}
}

func TestBucketDueTimesDefaultsWindow(t *testing.T) {
	points := BucketDueTimes(nil, time.Now(), 0)
	if len(points) != DefaultForecastDays+2 {
		t.Errorf("got %d points, want %d", len(points), DefaultForecastDays+2)
	}
}

func TestForecastReadsStoredRecords(t *testing.T) {
	db := databasetest.OpenMemory(t)
	a := databasetest.SeedConcept(t, db, 1, models.KindVocab, "A1", "one")
	b := databasetest.SeedConcept(t, db, 1, models.KindVocab, "A1", "two")
	// due one day after seededAt
	putRecord(t, db, a, models.ModalityReception, 0.6, nil)
	putRecord(t, db, b, models.ModalityProduction, 0.6, nil)

	log := logger.NewNop()
	f := NewForecaster(database.NewMasteryRepository(db, log), log)
	points, err := f.Forecast(context.Background(), 1, "ema_v1", seededAt, 3)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if points[2].Key != "2026-06-02" || points[2].Count != 2 {
		t.Errorf("tomorrow = %+v, want 2 reviews on 2026-06-02", points[2])
	}
}
