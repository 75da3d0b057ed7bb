package translate

import (
	"fmt"
	"strings"
	"time"
)

// AcquisitionLayout renders the latest acquisition as "YYYY-MM-DD HH:mm:ss".
const AcquisitionLayout = "2006-01-02 15:04:05"

// Earth Engine time formats observed in listImages responses and image
// properties. startTime is RFC3339 with optional fractional seconds.
var eeTimeFormats = []string{
	time.RFC3339Nano,                // "2006-01-02T15:04:05.999999999Z07:00"
	time.RFC3339,                    // "2006-01-02T15:04:05Z07:00"
	"2006-01-02T15:04:05.999999999", // Without timezone
	"2006-01-02T15:04:05",
	AcquisitionLayout,
}

// ParseEETime parses an Earth Engine timestamp string into a time.Time.
// Returns time in UTC.
func ParseEETime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty time string", ErrInvalidDateTime)
	}

	for _, format := range eeTimeFormats {
		t, err := time.Parse(format, s)
		if err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateTime, s)
}

// FormatSTACTime formats a time.Time as RFC3339 for STAC.
func FormatSTACTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// FormatAcquisition renders t in UTC as "YYYY-MM-DD HH:mm:ss".
func FormatAcquisition(t time.Time) string {
	return t.UTC().Format(AcquisitionLayout)
}

// ClockTime returns the "HH:mm:ss" part of a "YYYY-MM-DD HH:mm:ss" string.
func ClockTime(acquisition string) (string, error) {
	t, err := time.Parse(AcquisitionLayout, strings.TrimSpace(acquisition))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDateTime, acquisition)
	}
	return t.Format("15:04:05"), nil
}

// ParseDateTimeInterval parses a datetime parameter which can be:
// - A single RFC3339 datetime: "2023-06-15T14:00:00Z"
// - An open-ended interval: "../2023-06-15T14:00:00Z" or "2023-06-15T14:00:00Z/.."
// - A closed interval: "2023-06-15T14:00:00Z/2023-06-16T14:00:00Z"
// Returns start and end times. Either may be nil for open-ended intervals.
func ParseDateTimeInterval(datetime string) (*time.Time, *time.Time, error) {
	datetime = strings.TrimSpace(datetime)
	if datetime == "" {
		return nil, nil, nil
	}

	if !strings.Contains(datetime, "/") {
		t, err := time.Parse(time.RFC3339, datetime)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidDateTime, err)
		}
		return &t, &t, nil
	}

	parts := strings.Split(datetime, "/")
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("%w: interval must be 'start/end'", ErrInvalidDateTime)
	}

	start, err := parseIntervalBound(parts[0])
	if err != nil {
		return nil, nil, fmt.Errorf("invalid start datetime: %w", err)
	}
	end, err := parseIntervalBound(parts[1])
	if err != nil {
		return nil, nil, fmt.Errorf("invalid end datetime: %w", err)
	}

	if start != nil && end != nil && end.Before(*start) {
		return nil, nil, fmt.Errorf("%w: end is before start", ErrInvalidDateTime)
	}

	return start, end, nil
}

func parseIntervalBound(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == ".." {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDateTime, err)
	}
	return &t, nil
}
