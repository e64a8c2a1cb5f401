package usecase

import (
	"context"
	"time"
)

// SystemClock implements Clock with wall time.
type SystemClock struct{}

// NewSystemClock creates a SystemClock.
func NewSystemClock() SystemClock {
	return SystemClock{}
}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// NopMetrics implements MetricsRecorder and discards everything.
type NopMetrics struct{}

func (NopMetrics) EntryPosted(string)          {}
func (NopMetrics) EntryReversed(string)        {}
func (NopMetrics) EntryRejected(string)        {}
func (NopMetrics) MovementRecorded(string)     {}
func (NopMetrics) MovementRejected(string)     {}
func (NopMetrics) SagaFinished(string, string) {}

// NopRetrier implements Retrier without retrying. Used where the
// caller already owns retry policy.
type NopRetrier struct{}

func (NopRetrier) Retry(_ context.Context, op func() error) error {
	return op()
}
