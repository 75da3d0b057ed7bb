package predict

import (
	"fmt"
	"time"
)

// Merge runs Generate for every start date, unions the projections and keeps
// only the dates strictly after the most recent start date. Dates projected
// from more than one start appear once.
func Merge(starts []time.Time, cycleDays, iterations int) (DateSet, error) {
	if err := validateCycle(cycleDays, iterations); err != nil {
		return nil, err
	}
	if len(starts) == 0 {
		return DateSet{}, nil
	}

	var (
		union  DateSet
		anchor time.Time
	)
	for i, start := range starts {
		projected, err := Generate(start, cycleDays, iterations)
		if err != nil {
			return nil, fmt.Errorf("start date %d: %w", i, err)
		}
		union = union.Union(projected)

		if day := Date(start); day.After(anchor) {
			anchor = day
		}
	}

	return union.After(anchor), nil
}
