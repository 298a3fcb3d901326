package auth

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rotisserie/eris"

	"github.com/sells-group/truthstamp/internal/model"
)

// NonceGuard rejects a nonce seen from the same address within the TTL.
type NonceGuard struct {
	seen *gocache.Cache
	ttl  time.Duration
}

// NewNonceGuard creates a guard that remembers nonces for ttl. Expired
// nonces are dropped by Sweep; the guard runs no background goroutine.
func NewNonceGuard(ttl time.Duration) *NonceGuard {
	return &NonceGuard{
		seen: gocache.New(ttl, 0),
		ttl:  ttl,
	}
}

// Sweep deletes expired nonces.
func (g *NonceGuard) Sweep() {
	g.seen.DeleteExpired()
}

// Use records nonce for addr, failing with ErrUnauthorized on replay.
func (g *NonceGuard) Use(addr model.Address, nonce string) error {
	if err := g.seen.Add(string(addr)+"/"+nonce, struct{}{}, g.ttl); err != nil {
		return eris.Wrapf(model.ErrUnauthorized, "nonce %q replayed", nonce)
	}
	return nil
}
