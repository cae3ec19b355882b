package analysis

import (
	"fmt"
	"strings"

	"github.com/niraj-rajbhandari/cryptanalyse/internal/profile"
)

// Bucket is the run of letters sharing one key position: every letter whose
// position in the stripped text is congruent to Index modulo the period.
type Bucket struct {
	Index int    `json:"index" yaml:"index"`
	Text  string `json:"text" yaml:"text"`
}

// Bucketize strips everything but letters from text and splits the result
// into period interleaved buckets, ordered by index.
func Bucketize(text string, period int) ([]Bucket, error) {
	if period < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPeriod, period)
	}

	builders := make([]strings.Builder, period)
	pos := 0
	for _, r := range text {
		if !profile.IsLetter(r) {
			continue
		}
		builders[pos%period].WriteRune(r)
		pos++
	}

	buckets := make([]Bucket, period)
	for i := range builders {
		buckets[i] = Bucket{Index: i, Text: builders[i].String()}
	}
	return buckets, nil
}

// Interleave rebuilds the stripped text from its buckets.
func Interleave(buckets []Bucket) string {
	runes := make([][]rune, len(buckets))
	total := 0
	for _, b := range buckets {
		if b.Index < 0 || b.Index >= len(buckets) {
			continue
		}
		runes[b.Index] = []rune(b.Text)
		total += len(runes[b.Index])
	}

	var sb strings.Builder
	sb.Grow(total)
	for pos := 0; pos < total; pos++ {
		col := runes[pos%len(runes)]
		row := pos / len(runes)
		if row >= len(col) {
			break
		}
		sb.WriteRune(col[row])
	}
	return sb.String()
}

// BucketFrequency is the dense letter table of one bucket.
type BucketFrequency struct {
	Index  int               `json:"index" yaml:"index"`
	Counts [profile.Size]int `json:"counts" yaml:"counts"`
}

// ExamineBuckets counts letters in each bucket, keeping zero entries so the
// rows line up as a frequency table.
func ExamineBuckets(buckets []Bucket) []BucketFrequency {
	table := make([]BucketFrequency, len(buckets))
	for i, b := range buckets {
		table[i] = BucketFrequency{
			Index:  b.Index,
			Counts: CountLetters(b.Text).Dense(),
		}
	}
	return table
}
