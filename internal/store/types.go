// Package store provides SQLite-based analysis history for cryptanalyse.
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when an analysis ID has no row.
var ErrNotFound = errors.New("analysis not found")

// Kind is the cipher an analysis attacked.
type Kind string

const (
	KindCaesar   Kind = "caesar"
	KindVigenere Kind = "vigenere"
)

// Analysis is one recorded key search.
type Analysis struct {
	ID          int64
	Kind        Kind
	Fingerprint Fingerprint

	// Source is the file the ciphertext came from, or "" for stdin and
	// arguments.
	Source     string
	Ciphertext string

	// Profile is the name of the reference profile used for scoring.
	Profile string

	IndexOfCoincidence float64

	// Period is the key period; 1 for Caesar.
	Period int

	CreatedAt time.Time

	// Candidates in rank order.
	Candidates []Candidate
}

// Best returns the top-ranked candidate.
func (a *Analysis) Best() (Candidate, bool) {
	if len(a.Candidates) == 0 {
		return Candidate{}, false
	}
	return a.Candidates[0], true
}

// Candidate is one ranked key and the plaintext it produces.
type Candidate struct {
	Ordinal   int
	Key       string
	Score     float64
	Plaintext string
}

// ListFilter narrows ListAnalyses.
type ListFilter struct {
	Kind  Kind
	Since time.Time

	// Limit caps the number of rows; 0 means no limit.
	Limit int
}

// Stats summarises the history database.
type Stats struct {
	TotalAnalyses    int64
	CaesarAnalyses   int64
	VigenereAnalyses int64
	UniqueTexts      int64
	OldestAnalysis   time.Time
	NewestAnalysis   time.Time
}
