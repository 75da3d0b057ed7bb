// Package predict projects future satellite overpass dates from historical
// acquisition timestamps using a fixed revisit cycle.
package predict

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used for every DateSet rendering.
const DateLayout = "2006-01-02"

// Date truncates t to its UTC calendar day (midnight UTC).
func Date(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q: %v", ErrInvalidArgument, s, err)
	}
	return t, nil
}

// FormatDate renders t as YYYY-MM-DD in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// DateSet is a duplicate-free list of calendar dates sorted most recent first.
// Use NewDateSet to build one; the zero value is an empty set.
type DateSet []time.Time

// NewDateSet reduces dates to UTC calendar days, removes duplicates and sorts
// the result descending by date value.
func NewDateSet(dates ...time.Time) DateSet {
	seen := make(map[time.Time]struct{}, len(dates))
	set := make(DateSet, 0, len(dates))
	for _, d := range dates {
		day := Date(d)
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		set = append(set, day)
	}
	sort.Slice(set, func(i, j int) bool {
		return set[i].After(set[j])
	})
	return set
}

// ParseDateSet parses YYYY-MM-DD strings into a DateSet.
func ParseDateSet(values []string) (DateSet, error) {
	dates := make([]time.Time, 0, len(values))
	for _, v := range values {
		d, err := ParseDate(v)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return NewDateSet(dates...), nil
}

// Strings renders the set as YYYY-MM-DD strings, preserving order.
func (s DateSet) Strings() []string {
	out := make([]string, len(s))
	for i, d := range s {
		out[i] = FormatDate(d)
	}
	return out
}

// Contains reports whether the calendar day of t is in the set.
func (s DateSet) Contains(t time.Time) bool {
	day := Date(t)
	for _, d := range s {
		if d.Equal(day) {
			return true
		}
	}
	return false
}

// Union merges s with other and returns a new DateSet.
func (s DateSet) Union(other DateSet) DateSet {
	all := make([]time.Time, 0, len(s)+len(other))
	all = append(all, s...)
	all = append(all, other...)
	return NewDateSet(all...)
}

// After returns the dates strictly later than the calendar day of anchor.
func (s DateSet) After(anchor time.Time) DateSet {
	day := Date(anchor)
	out := make(DateSet, 0, len(s))
	for _, d := range s {
		if d.After(day) {
			out = append(out, d)
		}
	}
	return out
}

// MarshalJSON encodes the set as an array of YYYY-MM-DD strings.
func (s DateSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

// UnmarshalJSON decodes an array of YYYY-MM-DD strings.
func (s *DateSet) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	set, err := ParseDateSet(values)
	if err != nil {
		return err
	}
	*s = set
	return nil
}
