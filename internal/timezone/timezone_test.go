package timezone

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticResolver returns a fixed zone for every coordinate.
type staticResolver string

func (s staticResolver) TimezoneName(lat, lon float64) string { return string(s) }

var (
	finderOnce sync.Once
	finder     *FinderResolver
	finderErr  error
)

func realConverter(t *testing.T) *Converter {
	t.Helper()
	finderOnce.Do(func() {
		finder, finderErr = NewFinderResolver()
	})
	require.NoError(t, finderErr)
	return NewConverter(finder)
}

func TestToLocalDate_RollsForwardPastMidnight(t *testing.T) {
	conv := realConverter(t)

	// Chennai is UTC+5:30, so 18:30 UTC is local midnight of the next day.
	got, err := conv.ToLocalDate(13.082, 80.249, "2024-01-01", "18:30:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", got)
}

func TestResolveTimezone_Cities(t *testing.T) {
	conv := realConverter(t)

	tests := []struct {
		name string
		lat  float64
		lon  float64
		want string
	}{
		{name: "chennai", lat: 13.082, lon: 80.249, want: "Asia/Kolkata"},
		{name: "new york", lat: 40.7128, lon: -74.006, want: "America/New_York"},
		{name: "tokyo", lat: 35.6762, lon: 139.6503, want: "Asia/Tokyo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := conv.ResolveTimezone(tt.lat, tt.lon)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveTimezone_OpenOcean(t *testing.T) {
	conv := realConverter(t)

	name, err := conv.ResolveTimezone(-30.0, -140.0)
	require.NoError(t, err)
	assert.NotEmpty(t, name)

	_, err = conv.Location(-30.0, -140.0)
	require.NoError(t, err)
}

func TestResolveTimezone_OutOfRange(t *testing.T) {
	conv := NewConverter(staticResolver("UTC"))

	tests := []struct {
		name     string
		lat, lon float64
	}{
		{name: "lat too high", lat: 90.5, lon: 0},
		{name: "lat too low", lat: -91, lon: 0},
		{name: "lon too high", lat: 0, lon: 180.01},
		{name: "lon too low", lat: 0, lon: -181},
		{name: "nan", lat: math.NaN(), lon: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := conv.ResolveTimezone(tt.lat, tt.lon)
			assert.ErrorIs(t, err, ErrLookup)
		})
	}
}

func TestResolveTimezone_Bounds(t *testing.T) {
	conv := NewConverter(staticResolver("UTC"))

	for _, c := range [][2]float64{{90, 180}, {-90, -180}, {0, 0}} {
		_, err := conv.ResolveTimezone(c[0], c[1])
		assert.NoError(t, err, "lat=%v lon=%v", c[0], c[1])
	}
}

func TestResolveTimezone_NauticalFallback(t *testing.T) {
	conv := NewConverter(staticResolver(""))

	tests := []struct {
		lon  float64
		want string
	}{
		{lon: 0, want: "Etc/GMT"},
		{lon: 7.4, want: "Etc/GMT"},
		{lon: 80.249, want: "Etc/GMT-5"},
		{lon: -74.0, want: "Etc/GMT+5"},
		{lon: 180, want: "Etc/GMT-12"},
		{lon: -180, want: "Etc/GMT+12"},
	}

	for _, tt := range tests {
		got, err := conv.ResolveTimezone(0, tt.lon)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "lon=%v", tt.lon)

		_, err = conv.Location(0, tt.lon)
		assert.NoError(t, err, "zone %s should load", got)
	}
}

func TestToLocalTimeOfDay(t *testing.T) {
	conv := NewConverter(staticResolver("Asia/Kolkata"))

	got, err := conv.ToLocalTimeOfDay(13.082, 80.249, "2024-01-01", "05:07:09")
	require.NoError(t, err)
	assert.Equal(t, LocalTime{Time24: "10:37:09", Time12: "10:37:09 AM"}, got)

	got, err = conv.ToLocalTimeOfDay(13.082, 80.249, "2024-01-01", "10:00:00")
	require.NoError(t, err)
	assert.Equal(t, LocalTime{Time24: "15:30:00", Time12: "03:30:00 PM"}, got)
}

func TestToLocalDate_RollsBackward(t *testing.T) {
	conv := NewConverter(staticResolver("America/Los_Angeles"))

	got, err := conv.ToLocalDate(34.05, -118.24, "2024-07-01", "03:00:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-30", got)
}

func TestToLocalDate_InvalidInput(t *testing.T) {
	conv := NewConverter(staticResolver("UTC"))

	_, err := conv.ToLocalDate(0, 0, "2024/01/01", "00:00:00")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = conv.ToLocalDate(0, 0, "2024-01-01", "25:00:00")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestLocation_UnknownZone(t *testing.T) {
	conv := NewConverter(staticResolver("Mars/Olympus_Mons"))

	_, err := conv.Location(0, 0)
	assert.ErrorIs(t, err, ErrLookup)
}
