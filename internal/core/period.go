package core

import (
	"fmt"
	"time"
)

// Period is the half-open interval [Start, End).
type Period struct {
	Start time.Time
	End   time.Time
}

func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// MonthPeriod covers [first instant of month, first instant of next month) in UTC.
func MonthPeriod(year, month int) (Period, error) {
	if err := validateYear(year); err != nil {
		return Period{}, err
	}
	if month < 1 || month > 12 {
		return Period{}, &ValidationError{Field: "month", Message: "month must be between 1 and 12"}
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}, nil
}

// YearPeriod covers [Jan 1, Jan 1 of next year) in UTC.
func YearPeriod(year int) (Period, error) {
	if err := validateYear(year); err != nil {
		return Period{}, err
	}
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(1, 0, 0)}, nil
}

func validateYear(year int) error {
	if year < 1900 || year > 9999 {
		return &ValidationError{Field: "year", Message: fmt.Sprintf("year %d out of range (1900-9999)", year)}
	}
	return nil
}

// ExportFilter selects expenses for an export. Zero values mean "no bound".
type ExportFilter struct {
	Start       *time.Time
	End         *time.Time
	CategoryIDs []int64
}
