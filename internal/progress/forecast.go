package progress

import (
	"context"
	"math"
	"time"

	"github.com/example/retention/internal/apperr"
	"github.com/example/retention/internal/database"
	"github.com/example/retention/internal/logger"
	"github.com/example/retention/pkg/models"
)

// DefaultForecastDays is the number of days shown after today.
const DefaultForecastDays = 14

// Forecaster counts upcoming reviews per day.
type Forecaster struct {
	mastery *database.MasteryRepository
	log     *logger.Logger
}

func NewForecaster(mastery *database.MasteryRepository, baseLog *logger.Logger) *Forecaster {
	return &Forecaster{
		mastery: mastery,
		log:     baseLog.With("service", "ReviewForecast"),
	}
}

// Forecast returns an overdue column, a today column and one column for each
// of the next days. Days are calendar days in now's location. Records due
// after the last column are not counted. days <= 0 uses DefaultForecastDays.
func (f *Forecaster) Forecast(ctx context.Context, userID int64, modelKey string, now time.Time, days int) ([]models.ForecastPoint, error) {
	if userID <= 0 {
		return nil, apperr.Invalid("progress.Forecast", "user id must be positive")
	}
	dues, err := f.mastery.ListDueTimes(ctx, userID, modelKey)
	if err != nil {
		return nil, apperr.Store("progress.Forecast", err)
	}
	return BucketDueTimes(dues, now, days), nil
}

// BucketDueTimes is the pure part of Forecast.
func BucketDueTimes(dues []time.Time, now time.Time, days int) []models.ForecastPoint {
	if days <= 0 {
		days = DefaultForecastDays
	}
	loc := now.Location()
	today := startOfDay(now)

	points := make([]models.ForecastPoint, days+2)
	points[0] = models.ForecastPoint{Key: "overdue", Day: today, Overdue: true}
	for i := 0; i <= days; i++ {
		day := today.AddDate(0, 0, i)
		key := day.Format("2006-01-02")
		if i == 0 {
			key = "today"
		}
		points[i+1] = models.ForecastPoint{Key: key, Day: day}
	}

	for _, due := range dues {
		if due.Before(now) {
			points[0].Count++
			continue
		}
		diff := dayDiff(today, startOfDay(due.In(loc)))
		if diff <= days {
			points[diff+1].Count++
		}
	}
	return points
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// dayDiff counts calendar days between two midnights, which may be 23 or 25
// hours apart across DST changes.
func dayDiff(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Hours() / 24))
}
