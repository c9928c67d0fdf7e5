package domain

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// DateWindow is a whole calendar month, StartDay is always 1.
type DateWindow struct {
	Year     int
	Month    time.Month
	StartDay int
	EndDay   int
}

func ResolvePriorMonth(reference time.Time) DateWindow {
	year, month := reference.Year(), reference.Month()
	if month == time.January {
		year--
		month = time.December
	} else {
		month--
	}

	return DateWindow{
		Year:     year,
		Month:    month,
		StartDay: 1,
		EndDay:   DaysIn(year, month),
	}
}

// DaysIn returns the number of days in month, February included.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (w DateWindow) Start() time.Time {
	return time.Date(w.Year, w.Month, w.StartDay, 0, 0, 0, 0, time.UTC)
}

func (w DateWindow) End() time.Time {
	return time.Date(w.Year, w.Month, w.EndDay, 0, 0, 0, 0, time.UTC)
}

func (w DateWindow) StartString() string {
	return w.Start().Format(dateLayout)
}

func (w DateWindow) EndString() string {
	return w.End().Format(dateLayout)
}

func (w DateWindow) Label() string {
	return fmt.Sprintf("%d / %d", int(w.Month), w.Year)
}

// ParseDate parses a YYYY-MM-DD reference date.
func ParseDate(raw string) (time.Time, error) {
	parsed, err := time.ParseInLocation(dateLayout, raw, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: expected YYYY-MM-DD", raw)
	}
	return parsed, nil
}
