package model

import "time"

// Observer receives model telemetry. Implementations must be cheap and
// must not block; they run inline on every operation.
type Observer interface {
	// Op records one finished operation with its duration and outcome.
	Op(collection, op string, duration time.Duration, err error)
	// Scan records a full-collection scan and how many documents it read.
	Scan(collection string, docs int)
	// ValidationFailure records a rejected document and the failing field.
	ValidationFailure(collection, field string)
}

// NopObserver discards all telemetry.
type NopObserver struct{}

func (NopObserver) Op(string, string, time.Duration, error) {}
func (NopObserver) Scan(string, int)                        {}
func (NopObserver) ValidationFailure(string, string)        {}
