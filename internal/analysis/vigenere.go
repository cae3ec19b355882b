package analysis

import (
	"fmt"
	"strings"

	"github.com/niraj-rajbhandari/cryptanalyse/internal/profile"
)

// Solver defaults.
const (
	DefaultCandidatesPerBucket   = 1
	DefaultMaxCombinations       = 4096
	DefaultPlausibilityThreshold = 0.055
)

// KeyVector is a Vigenère key: one Caesar shift per key position.
type KeyVector []int

// String renders the key as letters, 0 as A.
func (k KeyVector) String() string {
	var b strings.Builder
	for _, v := range k {
		if v < 0 || v >= alphabetSize {
			b.WriteRune('?')
			continue
		}
		b.WriteRune(profile.Letter(v))
	}
	return b.String()
}

// Validate checks that the key is non-empty and every shift is in range.
func (k KeyVector) Validate() error {
	if len(k) == 0 {
		return fmt.Errorf("%w: empty key", ErrInvalidPeriod)
	}
	for i, v := range k {
		if err := checkIndex(fmt.Sprintf("key[%d]", i), v); err != nil {
			return err
		}
	}
	return nil
}

// ParseKey reads a key written as letters ("LEMON"). Non-letters are
// ignored.
func ParseKey(s string) (KeyVector, error) {
	var key KeyVector
	for _, r := range s {
		if idx, ok := profile.Index(r); ok {
			key = append(key, idx)
		}
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: key %q has no letters", ErrInvalidPeriod, s)
	}
	return key, nil
}

// EncipherVigenere shifts the n-th letter of text by key[n mod len(key)].
// Non-letters are copied and do not advance the key.
func EncipherVigenere(text string, key KeyVector) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	return shiftText(text, key, encipher), nil
}

// DecipherVigenere reverses EncipherVigenere.
func DecipherVigenere(text string, key KeyVector) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	return shiftText(text, key, decipher), nil
}

// BucketAnalysis is one bucket with its frequency table and ranked keys.
type BucketAnalysis struct {
	Bucket     `yaml:",inline"`
	Counts     [profile.Size]int `json:"counts" yaml:"counts"`
	Candidates []Candidate       `json:"candidates" yaml:"candidates"`
}

// VigenereCandidate is one key vector from the search and its decipherment.
type VigenereCandidate struct {
	Key       KeyVector `json:"key" yaml:"key"`
	Plaintext string    `json:"plaintext" yaml:"plaintext"`
	Fitness   float64   `json:"fitness" yaml:"fitness"`
}

// Compact returns the plaintext with whitespace removed.
func (c VigenereCandidate) Compact() string {
	return strings.Join(strings.Fields(c.Plaintext), "")
}

// VigenereResult is the outcome of a key search.
type VigenereResult struct {
	IndexOfCoincidence float64             `json:"index_of_coincidence" yaml:"index_of_coincidence"`
	Period             int                 `json:"period" yaml:"period"`
	Buckets            []BucketAnalysis    `json:"buckets" yaml:"buckets"`
	Combinations       int                 `json:"combinations" yaml:"combinations"`
	Candidates         []VigenereCandidate `json:"candidates" yaml:"candidates"`
	StoppedEarly       bool                `json:"stopped_early" yaml:"stopped_early"`
}

// Solver recovers Vigenère keys by scoring each bucket as a Caesar cipher and
// combining the per-bucket candidates.
type Solver struct {
	Profile *profile.Profile

	// CandidatesPerBucket is how many ranked keys each bucket contributes.
	CandidatesPerBucket int

	// MaxCombinations bounds the size of the key-vector product.
	MaxCombinations int

	// StopOnPlausible ends the search at the first candidate whose fitness
	// reaches PlausibilityThreshold.
	StopOnPlausible       bool
	PlausibilityThreshold float64
}

// NewSolver returns a solver with default limits scoring against p.
func NewSolver(p *profile.Profile) *Solver {
	return &Solver{
		Profile:               p,
		CandidatesPerBucket:   DefaultCandidatesPerBucket,
		MaxCombinations:       DefaultMaxCombinations,
		PlausibilityThreshold: DefaultPlausibilityThreshold,
	}
}

// Solve estimates the key period from the index of coincidence and then
// searches keys of that period.
func (s *Solver) Solve(text string) (*VigenereResult, error) {
	ic, err := IndexOfCoincidence(text)
	if err != nil {
		return nil, err
	}
	period, err := EstimatePeriod(ic)
	if err != nil {
		return nil, err
	}

	result, err := s.SolveWithPeriod(text, period)
	if err != nil {
		return nil, err
	}
	result.IndexOfCoincidence = ic
	return result, nil
}

// SolveWithPeriod searches keys of a known period. Every combination of the
// per-bucket candidates is deciphered, in bucket-index order with the last
// bucket varying fastest.
func (s *Solver) SolveWithPeriod(text string, period int) (*VigenereResult, error) {
	buckets, err := Bucketize(text, period)
	if err != nil {
		return nil, err
	}

	p := s.Profile
	if p == nil {
		p = profile.English()
	}
	perBucket := s.CandidatesPerBucket
	if perBucket <= 0 {
		perBucket = DefaultCandidatesPerBucket
	}
	maxCombos := s.MaxCombinations
	if maxCombos <= 0 {
		maxCombos = DefaultMaxCombinations
	}

	result := &VigenereResult{
		Period:  period,
		Buckets: make([]BucketAnalysis, len(buckets)),
	}
	if ic, err := IndexOfCoincidence(text); err == nil {
		result.IndexOfCoincidence = ic
	}

	combos := 1
	for i, b := range buckets {
		counts := CountLetters(b.Text)
		if counts.Total() == 0 {
			return nil, fmt.Errorf("%w: bucket %d of period %d is empty", ErrDegenerateInput, i, period)
		}
		candidates := Rank(Score(counts, p), perBucket)
		result.Buckets[i] = BucketAnalysis{
			Bucket:     b,
			Counts:     counts.Dense(),
			Candidates: candidates,
		}

		combos *= len(candidates)
		if combos > maxCombos {
			return nil, fmt.Errorf("%w: more than %d key vectors for period %d with %d candidates per bucket",
				ErrSearchSpaceTooLarge, maxCombos, period, perBucket)
		}
	}
	result.Combinations = combos

	// Odometer over candidate positions, one digit per bucket.
	digits := make([]int, period)
	for {
		key := make(KeyVector, period)
		for i, d := range digits {
			key[i] = result.Buckets[i].Candidates[d].Key
		}

		plaintext := shiftText(text, key, decipher)
		candidate := VigenereCandidate{
			Key:       key,
			Plaintext: plaintext,
			Fitness:   Fitness(plaintext, p),
		}
		result.Candidates = append(result.Candidates, candidate)

		if s.StopOnPlausible && candidate.Fitness >= s.PlausibilityThreshold {
			result.StoppedEarly = len(result.Candidates) < combos
			break
		}

		if !advance(digits, result.Buckets) {
			break
		}
	}

	return result, nil
}

// advance increments the odometer, reporting false once it wraps.
func advance(digits []int, buckets []BucketAnalysis) bool {
	for i := len(digits) - 1; i >= 0; i-- {
		digits[i]++
		if digits[i] < len(buckets[i].Candidates) {
			return true
		}
		digits[i] = 0
	}
	return false
}
