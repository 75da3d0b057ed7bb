package overpass

import (
	"context"
	"errors"

	"github.com/robert-malhotra/overpass-proxy/internal/predict"
	"github.com/robert-malhotra/overpass-proxy/internal/timezone"
	"github.com/robert-malhotra/overpass-proxy/internal/translate"
)

var (
	// ErrInvalidPoint is returned when a GeoPoint is outside WGS84 bounds.
	ErrInvalidPoint = errors.New("invalid point")

	// ErrExternalFetch wraps failures of the imagery collaborator.
	ErrExternalFetch = errors.New("external fetch failed")

	// ErrTimeout is returned when a fetch exceeds the per-satellite timeout.
	ErrTimeout = errors.New("external fetch timed out")

	// ErrCancelled is returned when the caller's context ends before a fetch
	// completes.
	ErrCancelled = errors.New("cancelled")
)

// Error kinds attached to records.
const (
	KindExternalFetch   = "external_fetch"
	KindTimeout         = "timeout"
	KindCancelled       = "cancelled"
	KindLookup          = "lookup"
	KindInvalidArgument = "invalid_argument"
)

// ErrorKind classifies err into one of the record error kinds.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, timezone.ErrLookup):
		return KindLookup
	case errors.Is(err, predict.ErrInvalidArgument), errors.Is(err, timezone.ErrInvalidArgument), errors.Is(err, ErrInvalidPoint),
		errors.Is(err, translate.ErrInvalidDateTime):
		return KindInvalidArgument
	default:
		return KindExternalFetch
	}
}
