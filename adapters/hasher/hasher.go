// Package hasher implements the Hasher port for API token storage.
package hasher

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/artpar/kvorm/ports"
)

// Bcrypt hashes tokens with bcrypt. A cost outside the valid bcrypt range
// falls back to the library default, so NewBcrypt(0) is the usual
// constructor.
type Bcrypt struct {
	cost int
}

var _ ports.Hasher = (*Bcrypt)(nil)

func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

func (h *Bcrypt) Hash(plaintext string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
}

func (h *Bcrypt) Compare(hash []byte, plaintext string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(plaintext)) == nil
}

// Plain stores the token verbatim. Test-only; never use in production.
type Plain struct{}

var _ ports.Hasher = Plain{}

func (Plain) Hash(plaintext string) ([]byte, error) { return []byte(plaintext), nil }

func (Plain) Compare(hash []byte, plaintext string) bool { return string(hash) == plaintext }
