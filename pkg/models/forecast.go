package models

import "time"

// ForecastPoint is one column of the review forecast.
type ForecastPoint struct {
	Key     string    `json:"key"` // "overdue", "today" or YYYY-MM-DD
	Day     time.Time `json:"day"`
	Count   int       `json:"count"`
	Overdue bool      `json:"overdue"`
}
