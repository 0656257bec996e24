package visitor

import (
	"strings"
	"time"
)

// DateRange is an inclusive window on entry time.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies within [Start, End].
func (d DateRange) Contains(t time.Time) bool {
	return !t.Before(d.Start) && !t.After(d.End)
}

// Criteria are the list-screen filters, reused by the export pipeline.
type Criteria struct {
	Status Status
	Range  *DateRange
	Search string
}

// Matches reports whether r satisfies every set criterion.
func (c Criteria) Matches(r Record) bool {
	switch c.Status {
	case StatusActive:
		if !r.Active() {
			return false
		}
	case StatusCheckedOut:
		if r.Active() {
			return false
		}
	}
	if c.Range != nil && !c.Range.Contains(r.EntryAt) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(c.Search)); q != "" {
		return strings.Contains(strings.ToLower(r.Name), q) ||
			strings.Contains(strings.ToLower(r.NationalID), q) ||
			strings.Contains(strings.ToLower(r.Company), q) ||
			strings.Contains(r.Phone, q)
	}
	return true
}

// Apply returns the matching records in their original order. The input
// slice is never modified; the result is always a fresh slice.
func (c Criteria) Apply(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if c.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// DayRange returns the local calendar day containing t as an inclusive range
// ending one nanosecond before the next midnight.
func DayRange(t time.Time, loc *time.Location) DateRange {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return DateRange{Start: start, End: start.AddDate(0, 0, 1).Add(-time.Nanosecond)}
}
