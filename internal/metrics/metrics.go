// Package metrics records record-store operation outcomes.
package metrics

import (
	"context"
	"errors"
	"time"

	"projecttracker/pkg/domain"
)

// Recorder observes one completed store operation.
type Recorder interface {
	Observe(ctx context.Context, resource, op string, err error, duration time.Duration)
}

// Outcome labels.
const (
	OutcomeOK          = "ok"
	OutcomeNotFound    = "not_found"
	OutcomeSchema      = "schema_mismatch"
	OutcomeCorrupt     = "corrupt"
	OutcomeUnavailable = "unavailable"
	OutcomeIntegrity   = "integrity"
	OutcomeDuplicate   = "duplicate"
	OutcomeCanceled    = "canceled"
	OutcomeError       = "error"
)

// Outcome classifies err into a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, domain.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, domain.ErrSchemaMismatch):
		return OutcomeSchema
	case errors.Is(err, domain.ErrCorruptFormat):
		return OutcomeCorrupt
	case errors.Is(err, domain.ErrStorageUnavailable):
		return OutcomeUnavailable
	case errors.Is(err, domain.ErrIntegrityViolation):
		return OutcomeIntegrity
	case errors.Is(err, domain.ErrDuplicate):
		return OutcomeDuplicate
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeError
	}
}

// Nop discards observations.
type Nop struct{}

// Observe implements Recorder.
func (Nop) Observe(context.Context, string, string, error, time.Duration) {}

// Multi fans observations out to several recorders.
type Multi []Recorder

// Observe implements Recorder.
func (m Multi) Observe(ctx context.Context, resource, op string, err error, d time.Duration) {
	for _, r := range m {
		r.Observe(ctx, resource, op, err, d)
	}
}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	return r
}
