// Package random provides Random implementations.
package random

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
)

// Real draws from crypto/rand.
type Real struct{}

// Bytes generates n cryptographically secure random bytes.
func (Real) Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// String generates a random hex string of n characters.
func (r Real) String(n int) (string, error) {
	b, err := r.Bytes((n + 1) / 2)
	if err != nil {
		return "", err
	}
	s := hex.EncodeToString(b)
	return s[:n], nil
}

// Fake is a deterministic random source for tests. Preset string values are
// returned first, then a counter-derived sequence.
type Fake struct {
	mu      sync.Mutex
	preset  []string
	next    int
	counter int
}

// NewFake creates a fake random source, optionally seeded with preset
// values for String.
func NewFake(preset ...string) *Fake {
	return &Fake{preset: preset}
}

// Bytes returns counter-derived bytes.
func (f *Fake) Bytes(n int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counter++
	b := make([]byte, n)
	for i := range b {
		b[i] = byte((f.counter + i) % 256)
	}
	return b, nil
}

// String returns the next preset value padded or cut to n characters, or a
// counter-derived hex string once presets run out.
func (f *Fake) String(n int) (string, error) {
	f.mu.Lock()
	if f.next < len(f.preset) {
		v := f.preset[f.next]
		f.next++
		f.mu.Unlock()
		for len(v) < n {
			v += "0"
		}
		return v[:n], nil
	}
	f.mu.Unlock()

	b, err := f.Bytes((n + 1) / 2)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b)[:n], nil
}

// Reset rewinds presets and the counter.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next = 0
	f.counter = 0
}
