// Package auth provides caller identities: ed25519 keys whose hex public key
// is the protocol address, request signatures, replay protection, and the
// context plumbing that carries authorized callers to the protocol.
package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/truthstamp/internal/model"
)

// Key is an ed25519 signing identity.
type Key struct {
	priv ed25519.PrivateKey
}

// GenerateKey creates a new random key.
func GenerateKey() (*Key, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, eris.Wrap(err, "auth: generate key")
	}
	return &Key{priv: priv}, nil
}

// KeyFromSeed builds a key from a 32-byte seed.
func KeyFromSeed(seed []byte) (*Key, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, eris.Errorf("auth: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &Key{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// LoadKey reads a hex-encoded seed from path.
func LoadKey(path string) (*Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "auth: read key %s", path)
	}
	seed, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, eris.Wrapf(err, "auth: decode key %s", path)
	}
	return KeyFromSeed(seed)
}

// Save writes the hex-encoded seed to path with owner-only permissions.
func (k *Key) Save(path string) error {
	seed := hex.EncodeToString(k.priv.Seed())
	if err := os.WriteFile(path, []byte(seed+"\n"), 0o600); err != nil {
		return eris.Wrapf(err, "auth: write key %s", path)
	}
	return nil
}

// Address returns the protocol address of the key.
func (k *Key) Address() model.Address {
	return model.Address(hex.EncodeToString(k.priv.Public().(ed25519.PublicKey)))
}

// Sign signs msg.
func (k *Key) Sign(msg []byte) []byte {
	return ed25519.Sign(k.priv, msg)
}

// PublicKey decodes addr back into an ed25519 public key.
func PublicKey(addr model.Address) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(string(addr))
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, eris.Wrapf(model.ErrValidation, "address %q is not a hex ed25519 public key", addr)
	}
	return ed25519.PublicKey(raw), nil
}

// Verify reports whether sig is addr's signature over msg.
func Verify(addr model.Address, msg, sig []byte) bool {
	pub, err := PublicKey(addr)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}
