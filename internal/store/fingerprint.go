package store

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/niraj-rajbhandari/cryptanalyse/internal/profile"
)

// Fingerprint identifies a ciphertext independently of its layout.
type Fingerprint [blake2b.Size256]byte

// FingerprintOf hashes the letters of text, upper-cased. Whitespace,
// punctuation and case do not change the fingerprint.
func FingerprintOf(text string) Fingerprint {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if idx, ok := profile.Index(r); ok {
			b.WriteRune(profile.Letter(idx))
		}
	}
	return Fingerprint(blake2b.Sum256([]byte(b.String())))
}

// String returns the full hex encoding.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Short returns the first 12 hex digits, for display.
func (f Fingerprint) Short() string {
	return hex.EncodeToString(f[:6])
}

// ParseFingerprint decodes a full hex fingerprint.
func ParseFingerprint(s string) (Fingerprint, error) {
	var f Fingerprint
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return f, fmt.Errorf("decode fingerprint: %w", err)
	}
	if len(b) != len(f) {
		return f, fmt.Errorf("fingerprint must be %d bytes, got %d", len(f), len(b))
	}
	copy(f[:], b)
	return f, nil
}
