// Package idgen provides ID generation implementations.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/artpar/kvorm/ports"
	"github.com/google/uuid"
)

// Object generates document identifiers: the creation instant as base-36
// unix milliseconds, a dash, and an 8-character random hex suffix. IDs from
// the same store sort roughly by creation time and stay collision-resistant
// across processes.
type Object struct {
	clock  ports.Clock
	random ports.Random
}

// NewObject creates the default document ID generator.
func NewObject(clock ports.Clock, random ports.Random) *Object {
	return &Object{clock: clock, random: random}
}

// New generates the next ID.
func (o *Object) New() string {
	ts := strconv.FormatInt(o.clock.Now().UnixMilli(), 36)
	suffix, err := o.random.String(8)
	if err != nil {
		// Random source failure leaves the clock as the only entropy.
		suffix = strconv.FormatInt(o.clock.Now().UnixNano()&0xffffffff, 16)
	}
	return ts + "-" + suffix
}

// Ensure interface compliance.
var _ ports.IDGenerator = (*Object)(nil)

// UUID generates UUIDs.
type UUID struct{}

// New generates a new UUID v4.
func (UUID) New() string {
	return uuid.New().String()
}

// Ensure interface compliance.
var _ ports.IDGenerator = UUID{}

// Sequential generates sequential IDs (for testing).
type Sequential struct {
	prefix  string
	counter uint64
}

// NewSequential creates a sequential ID generator.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New generates the next sequential ID.
func (s *Sequential) New() string {
	n := atomic.AddUint64(&s.counter, 1)
	return s.prefix + strconv.FormatUint(n, 10)
}

// Reset rewinds the counter (for testing).
func (s *Sequential) Reset() {
	atomic.StoreUint64(&s.counter, 0)
}

// Ensure interface compliance.
var _ ports.IDGenerator = (*Sequential)(nil)
