// Package evidence assembles tamper-evident report packages from concluded
// call sessions.
package evidence

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"

	"github.com/kavach-labs/kavach/pkg/models"
)

// Signer produces a signature over a package hash. The local implementation
// signs with HMAC; a remote signing service can be substituted without
// touching the assembler.
type Signer interface {
	Sign(packageHash string) (models.Signature, error)
	Verify(packageHash string, sig models.Signature) bool
}

// HMACSigner signs package hashes with HMAC-SHA256. The signing key is
// derived from the configured secret with HKDF so the raw secret never
// touches signature material directly.
type HMACSigner struct {
	key      []byte
	signedBy string
}

// NewHMACSigner derives a signing key from secret. The signedBy label is
// recorded on every signature.
func NewHMACSigner(secret, signedBy string) (*HMACSigner, error) {
	if secret == "" {
		return nil, fmt.Errorf("signing secret must not be empty")
	}

	reader := hkdf.New(sha256.New, []byte(secret), nil, []byte("evidence-package-signing"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}

	return &HMACSigner{key: key, signedBy: signedBy}, nil
}

// Sign returns an HMAC-SHA256 signature over the package hash.
func (s *HMACSigner) Sign(packageHash string) (models.Signature, error) {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(packageHash))

	return models.Signature{
		Algorithm: "HMAC-SHA256",
		Value:     hex.EncodeToString(mac.Sum(nil)),
		SignedBy:  s.signedBy,
		SignedAt:  time.Now().UTC(),
	}, nil
}

// Verify checks sig against the package hash in constant time.
func (s *HMACSigner) Verify(packageHash string, sig models.Signature) bool {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(packageHash))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(sig.Value))
}
