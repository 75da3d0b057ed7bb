// Package timezone converts UTC acquisition times to the local wall-clock time
// of a geographic point.
package timezone

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
	_ "time/tzdata" // zone rules must not depend on the host's zoneinfo
)

// Layouts used for input parsing and output rendering.
const (
	DateLayout   = "2006-01-02"
	Time24Layout = "15:04:05"
	Time12Layout = "03:04:05 PM"
)

var (
	// ErrLookup is returned when coordinates are out of range or no zone can be
	// resolved for them.
	ErrLookup = errors.New("timezone lookup failed")

	// ErrInvalidArgument is returned for malformed date or time strings.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Resolver maps a coordinate to an IANA timezone identifier. Implementations
// return an empty string when the underlying database has no answer.
type Resolver interface {
	TimezoneName(lat, lon float64) string
}

// LocalTime is a wall-clock time of day in both display formats.
type LocalTime struct {
	Time24 string `json:"time24"`
	Time12 string `json:"time12"`
}

// Converter resolves timezones and renders local dates and times. It is safe
// for concurrent use.
type Converter struct {
	resolver  Resolver
	locations sync.Map // zone name -> *time.Location
}

// NewConverter creates a Converter backed by resolver.
func NewConverter(resolver Resolver) *Converter {
	return &Converter{resolver: resolver}
}

// ValidateCoordinates checks that lat is within [-90,90] and lon within [-180,180].
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: coordinates out of range (lat=%g, lon=%g)", ErrLookup, lat, lon)
	}
	return nil
}

// ResolveTimezone returns the IANA timezone identifier for the coordinate.
// Points the database does not cover fall back to the nautical Etc/GMT zone
// for the longitude.
func (c *Converter) ResolveTimezone(lat, lon float64) (string, error) {
	if err := ValidateCoordinates(lat, lon); err != nil {
		return "", err
	}

	name := c.resolver.TimezoneName(lat, lon)
	if name == "" {
		name = nauticalZone(lon)
	}
	return name, nil
}

// Location returns the *time.Location for the coordinate.
func (c *Converter) Location(lat, lon float64) (*time.Location, error) {
	name, err := c.ResolveTimezone(lat, lon)
	if err != nil {
		return nil, err
	}

	if loc, ok := c.locations.Load(name); ok {
		return loc.(*time.Location), nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown zone %q: %v", ErrLookup, name, err)
	}
	c.locations.Store(name, loc)
	return loc, nil
}

// ToLocalTimeOfDay combines utcDate (YYYY-MM-DD) and utcTime (HH:mm:ss) into a
// UTC instant and renders its local wall-clock time at the coordinate.
func (c *Converter) ToLocalTimeOfDay(lat, lon float64, utcDate, utcTime string) (LocalTime, error) {
	local, err := c.toLocal(lat, lon, utcDate, utcTime)
	if err != nil {
		return LocalTime{}, err
	}
	return LocalTime{
		Time24: local.Format(Time24Layout),
		Time12: local.Format(Time12Layout),
	}, nil
}

// ToLocalDate returns the local calendar date (YYYY-MM-DD) at the coordinate
// for the given UTC date and time. It may differ from utcDate near midnight.
func (c *Converter) ToLocalDate(lat, lon float64, utcDate, utcTime string) (string, error) {
	local, err := c.toLocal(lat, lon, utcDate, utcTime)
	if err != nil {
		return "", err
	}
	return local.Format(DateLayout), nil
}

// In converts t to the local time at the coordinate.
func (c *Converter) In(lat, lon float64, t time.Time) (time.Time, error) {
	loc, err := c.Location(lat, lon)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}

func (c *Converter) toLocal(lat, lon float64, utcDate, utcTime string) (time.Time, error) {
	instant, err := ParseUTC(utcDate, utcTime)
	if err != nil {
		return time.Time{}, err
	}
	return c.In(lat, lon, instant)
}

// ParseUTC combines a YYYY-MM-DD date and HH:mm:ss time into a UTC instant.
func ParseUTC(utcDate, utcTime string) (time.Time, error) {
	value := strings.TrimSpace(utcDate) + "T" + strings.TrimSpace(utcTime)
	t, err := time.ParseInLocation(DateLayout+"T"+Time24Layout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q time %q: %v", ErrInvalidArgument, utcDate, utcTime, err)
	}
	return t, nil
}

// nauticalZone returns the Etc/GMT zone whose 15 degree band contains lon.
// Etc/GMT signs are inverted: Etc/GMT-5 is UTC+5.
func nauticalZone(lon float64) string {
	offset := int(math.Round(lon / 15))
	switch {
	case offset == 0:
		return "Etc/GMT"
	case offset > 0:
		return fmt.Sprintf("Etc/GMT-%d", offset)
	default:
		return fmt.Sprintf("Etc/GMT+%d", -offset)
	}
}
