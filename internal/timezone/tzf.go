package timezone

import (
	"fmt"

	"github.com/ringsaturn/tzf"
)

// FinderResolver resolves timezones from the embedded timezone-boundary
// dataset, including ocean zones.
type FinderResolver struct {
	finder tzf.F
}

// NewFinderResolver loads the default tzf finder. Loading takes a noticeable
// amount of time and memory, so build one per process.
func NewFinderResolver() (*FinderResolver, error) {
	finder, err := tzf.NewDefaultFinder()
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone finder: %w", err)
	}
	return &FinderResolver{finder: finder}, nil
}

// TimezoneName implements Resolver.
func (r *FinderResolver) TimezoneName(lat, lon float64) string {
	return r.finder.GetTimezoneName(lon, lat)
}
