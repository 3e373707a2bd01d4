// Package hasher derives verifiable, non-reversible password digests.
// The derivation is deterministic for a fixed configuration: the salt is
// composed of a server-side local salt and a "remote" salt derived from the
// password itself, so signup and login produce identical digests and can be
// compared by plain equality.
package hasher

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"

	"golang.org/x/crypto/pbkdf2"
)

// Config carries the externally supplied hashing parameters. All fields are
// required; New fails fast instead of silently hashing with zero values.
type Config struct {
	Algorithm  string // digest algorithm: sha256, sha512 (sha1 accepted for legacy installs)
	LocalSalt  string // server-side salt component
	Iterations int    // PBKDF2 iteration count
	KeyLen     int    // PBKDF2 output length in bytes
}

// Hasher computes password digests with a fixed configuration.
type Hasher struct {
	cfg   Config
	newFn func() hash.Hash
}

// New validates the configuration and returns a ready Hasher.
func New(cfg Config) (*Hasher, error) {
	if cfg.Algorithm == "" {
		return nil, fmt.Errorf("hasher: algorithm is required")
	}
	if cfg.LocalSalt == "" {
		return nil, fmt.Errorf("hasher: local salt is required")
	}
	if cfg.Iterations <= 0 {
		return nil, fmt.Errorf("hasher: iterations must be positive, got %d", cfg.Iterations)
	}
	if cfg.KeyLen <= 0 {
		return nil, fmt.Errorf("hasher: key length must be positive, got %d", cfg.KeyLen)
	}
	var newFn func() hash.Hash
	switch cfg.Algorithm {
	case "sha256":
		newFn = sha256.New
	case "sha512":
		newFn = sha512.New
	case "sha1":
		newFn = sha1.New
	default:
		return nil, fmt.Errorf("hasher: unsupported algorithm %q", cfg.Algorithm)
	}
	return &Hasher{cfg: cfg, newFn: newFn}, nil
}

// Hash derives the stored representation of a plaintext password:
//
//	remoteSalt = hex(digest(password))
//	salt       = localSalt + remoteSalt
//	out        = hex(pbkdf2(password, salt, iterations, keyLen)) + remoteSalt
//
// Appending the remote salt keeps the stored value self-contained while the
// local salt stays server-side only.
func (h *Hasher) Hash(password string) string {
	d := h.newFn()
	d.Write([]byte(password))
	remoteSalt := hex.EncodeToString(d.Sum(nil))

	salt := h.cfg.LocalSalt + remoteSalt
	key := pbkdf2.Key([]byte(password), []byte(salt), h.cfg.Iterations, h.cfg.KeyLen, h.newFn)
	return hex.EncodeToString(key) + remoteSalt
}
