package analysis

import "github.com/niraj-rajbhandari/cryptanalyse/internal/profile"

// Counts holds per-letter occurrence counts indexed by alphabet position.
// A zero entry means the letter did not occur.
type Counts [profile.Size]int

// CountLetters counts alphabet letters in text, folding case. Whitespace and
// every other non-letter symbol are skipped.
func CountLetters(text string) Counts {
	var c Counts
	for _, r := range text {
		if idx, ok := profile.Index(r); ok {
			c[idx]++
		}
	}
	return c
}

// Total returns the number of letters counted.
func (c Counts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Get returns the count for letter. ok is false when the letter is absent
// from the text or not part of the alphabet.
func (c Counts) Get(letter rune) (n int, ok bool) {
	idx, inAlphabet := profile.Index(letter)
	if !inAlphabet || c[idx] == 0 {
		return 0, false
	}
	return c[idx], true
}

// Present returns the indices of letters that occurred, in alphabet order.
func (c Counts) Present() []int {
	present := make([]int, 0, profile.Size)
	for i, n := range c {
		if n > 0 {
			present = append(present, i)
		}
	}
	return present
}

// Dense returns the zero-filled 26-entry table.
func (c Counts) Dense() [profile.Size]int {
	return c
}
