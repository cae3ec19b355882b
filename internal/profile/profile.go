package profile

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidProfile is returned when a frequency table is malformed.
var ErrInvalidProfile = errors.New("invalid frequency profile")

// Sum tolerance for loaded profiles. Published tables are rounded, so an
// exact 1.0 is never expected.
const (
	MinFrequencySum = 0.9
	MaxFrequencySum = 1.1
)

// Profile is a read-only reference distribution: the expected relative
// frequency of each alphabet letter in plaintext.
type Profile struct {
	Name        string
	Description string
	Frequencies [Size]float64
}

// englishFrequencies are English letter frequencies from a large corpus, A-Z.
var englishFrequencies = [Size]float64{
	0.08167, 0.01492, 0.02782, 0.04253, 0.12702, 0.02228, 0.02015, // A-G
	0.06094, 0.06966, 0.00153, 0.00772, 0.04025, 0.02406, 0.06749, // H-N
	0.07507, 0.01929, 0.00095, 0.05987, 0.06327, 0.09056, 0.02758, // O-U
	0.00978, 0.02360, 0.00150, 0.01974, 0.00074, // V-Z
}

// English returns the built-in English reference profile.
func English() *Profile {
	return &Profile{
		Name:        "english",
		Description: "English letter frequencies",
		Frequencies: englishFrequencies,
	}
}

// New builds a profile from a letter -> frequency table. Every letter of the
// alphabet must appear exactly once (case-insensitive) with a non-negative
// value, and the values must sum to roughly 1.
func New(name string, freqs map[string]float64) (*Profile, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}

	p := &Profile{Name: name}
	var seen [Size]bool
	for letter, f := range freqs {
		runes := []rune(letter)
		if len(runes) != 1 {
			return nil, fmt.Errorf("%w: key %q is not a single letter", ErrInvalidProfile, letter)
		}
		idx, ok := Index(runes[0])
		if !ok {
			return nil, fmt.Errorf("%w: key %q is not in the alphabet", ErrInvalidProfile, letter)
		}
		if seen[idx] {
			return nil, fmt.Errorf("%w: letter %c listed twice", ErrInvalidProfile, Letter(idx))
		}
		if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: letter %c has frequency %v", ErrInvalidProfile, Letter(idx), f)
		}
		seen[idx] = true
		p.Frequencies[idx] = f
	}

	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("%w: letter %c is missing", ErrInvalidProfile, Letter(i))
		}
	}

	if sum := p.Sum(); sum < MinFrequencySum || sum > MaxFrequencySum {
		return nil, fmt.Errorf("%w: frequencies sum to %.4f (want %.1f..%.1f)",
			ErrInvalidProfile, sum, MinFrequencySum, MaxFrequencySum)
	}

	return p, nil
}

// Frequency returns the expected frequency of the letter at index i.
func (p *Profile) Frequency(i int) float64 {
	return p.Frequencies[i]
}

// Sum returns the total of all frequencies.
func (p *Profile) Sum() float64 {
	var sum float64
	for _, f := range p.Frequencies {
		sum += f
	}
	return sum
}

// Table returns the profile as a letter -> frequency map, the shape used in
// profile documents.
func (p *Profile) Table() map[string]float64 {
	table := make(map[string]float64, Size)
	for i, f := range p.Frequencies {
		table[string(Letter(i))] = f
	}
	return table
}

// Coincidence returns the expected index of coincidence of plaintext drawn
// from this profile (the sum of squared frequencies).
func (p *Profile) Coincidence() float64 {
	var ic float64
	for _, f := range p.Frequencies {
		ic += f * f
	}
	return ic
}
