package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/overpass-proxy/internal/overpass"
)

type fakeRefresher struct {
	mu       sync.Mutex
	calls    []overpass.GeoPoint
	results  map[overpass.GeoPoint]*overpass.Snapshot
	failures map[overpass.GeoPoint]error
}

func (f *fakeRefresher) Refresh(ctx context.Context, point overpass.GeoPoint) (*overpass.Snapshot, error) {
	f.mu.Lock()
	f.calls = append(f.calls, point)
	f.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("refresh without deadline")
	}
	if err := f.failures[point]; err != nil {
		return nil, err
	}
	if snap, ok := f.results[point]; ok {
		return snap, nil
	}
	return &overpass.Snapshot{Point: point}, nil
}

func (f *fakeRefresher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestRunOnce(t *testing.T) {
	ok := overpass.GeoPoint{Lat: 13.08, Lon: 80.25}
	partial := overpass.GeoPoint{Lat: 40.71, Lon: -74.0}
	broken := overpass.GeoPoint{Lat: 35.68, Lon: 139.69}

	refresher := &fakeRefresher{
		results: map[overpass.GeoPoint]*overpass.Snapshot{
			partial: {Records: []overpass.Record{
				{Satellite: "landsat-8"},
				{Satellite: "landsat-9", Error: "timed out", ErrorKind: overpass.KindTimeout},
			}},
		},
		failures: map[overpass.GeoPoint]error{broken: overpass.ErrInvalidPoint},
	}

	s := New([]overpass.GeoPoint{ok, partial, broken}, time.Hour, time.Second, refresher, nil)
	outcomes := s.RunOnce(context.Background())

	assert.Equal(t, []string{OutcomeSuccess, OutcomePartial, OutcomeError}, outcomes)
	assert.Equal(t, 3, refresher.callCount())
}

func TestStart_NoPoints(t *testing.T) {
	refresher := &fakeRefresher{}
	s := New(nil, time.Hour, time.Second, refresher, nil)

	require.NoError(t, s.Start())
	s.Stop()
	assert.Zero(t, refresher.callCount())
}

func TestStart_RunsImmediately(t *testing.T) {
	refresher := &fakeRefresher{}
	s := New([]overpass.GeoPoint{{Lat: 1, Lon: 2}}, time.Hour, time.Second, refresher, nil)

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return refresher.callCount() >= 1
	}, 2*time.Second, 10*time.Millisecond)
}
