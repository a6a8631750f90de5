package trigger

import (
	"fmt"
	"time"
)

// Granularity is the time resolution of scheduled sweeps. It controls both
// the storage prefix depth and the width of one sweep bucket.
type Granularity string

const (
	Minute Granularity = "minute"
	Hour   Granularity = "hour"
	Day    Granularity = "day"
	Month  Granularity = "month"
	Year   Granularity = "year"
)

// Truncate returns the start of the bucket containing t.
func (g Granularity) Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	loc := t.Location()
	switch g {
	case Minute:
		return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc)
	case Hour:
		return time.Date(y, m, d, t.Hour(), 0, 0, 0, loc)
	case Day:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	case Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case Year:
		return time.Date(y, 1, 1, 0, 0, 0, 0, loc)
	}
	return t
}

// Next returns the start of the bucket after t; t must be a bucket start.
// Month and year advance by calendar period, not a fixed duration.
func (g Granularity) Next(t time.Time) time.Time {
	switch g {
	case Minute:
		return t.Add(time.Minute)
	case Hour:
		return t.Add(time.Hour)
	case Day:
		return t.AddDate(0, 0, 1)
	case Month:
		return t.AddDate(0, 1, 0)
	case Year:
		return t.AddDate(1, 0, 0)
	}
	return t
}

// Prev returns the start of the bucket before t; t must be a bucket start.
func (g Granularity) Prev(t time.Time) time.Time {
	switch g {
	case Minute:
		return t.Add(-time.Minute)
	case Hour:
		return t.Add(-time.Hour)
	case Day:
		return t.AddDate(0, 0, -1)
	case Month:
		return t.AddDate(0, -1, 0)
	case Year:
		return t.AddDate(-1, 0, 0)
	}
	return t
}

// Prefix returns the storage prefix of the bucket starting at t, down to this
// granularity's resolution. Components are unpadded, matching window paths.
func (g Granularity) Prefix(t time.Time) string {
	switch g {
	case Minute:
		return fmt.Sprintf("data/%d/%d/%d/%d/%d/", t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute())
	case Hour:
		return fmt.Sprintf("data/%d/%d/%d/%d/", t.Year(), int(t.Month()), t.Day(), t.Hour())
	case Day:
		return fmt.Sprintf("data/%d/%d/%d/", t.Year(), int(t.Month()), t.Day())
	case Month:
		return fmt.Sprintf("data/%d/%d/", t.Year(), int(t.Month()))
	case Year:
		return fmt.Sprintf("data/%d/", t.Year())
	}
	return "data/"
}
