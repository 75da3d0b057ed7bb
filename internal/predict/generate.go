package predict

import (
	"fmt"
	"time"
)

// Constants used by the overpass endpoints.
const (
	DefaultCycleDays  = 16
	DefaultIterations = 10
)

// Generate projects iterations future dates from start, one every cycleDays
// days. The start date itself is not included: the first projected date is
// start + cycleDays. The result is sorted most recent first.
func Generate(start time.Time, cycleDays, iterations int) (DateSet, error) {
	if err := validateCycle(cycleDays, iterations); err != nil {
		return nil, err
	}
	if start.IsZero() {
		return nil, fmt.Errorf("%w: start date is required", ErrInvalidArgument)
	}

	day := Date(start)
	dates := make([]time.Time, 0, iterations)
	for k := 1; k <= iterations; k++ {
		dates = append(dates, day.AddDate(0, 0, k*cycleDays))
	}

	return NewDateSet(dates...), nil
}

func validateCycle(cycleDays, iterations int) error {
	if cycleDays < 1 {
		return fmt.Errorf("%w: cycle days must be positive, got %d", ErrInvalidArgument, cycleDays)
	}
	if iterations < 1 {
		return fmt.Errorf("%w: iterations must be positive, got %d", ErrInvalidArgument, iterations)
	}
	return nil
}
