package analysis

import "fmt"

// IndexOfCoincidence returns the probability that two letters drawn from
// text without replacement are equal:
//
//	IC = sum c(c-1) / N(N-1)
//
// where N is the number of letters. Texts with fewer than two letters fail
// with ErrDegenerateInput.
func IndexOfCoincidence(text string) (float64, error) {
	return CountLetters(text).Coincidence()
}

// Coincidence computes the index of coincidence from counts.
func (c Counts) Coincidence() (float64, error) {
	n := c.Total()
	if n <= 1 {
		return 0, fmt.Errorf("%w: index of coincidence needs at least 2 letters, got %d", ErrDegenerateInput, n)
	}

	var sum int
	for _, count := range c {
		sum += count * (count - 1)
	}
	return float64(sum) / float64(n*(n-1)), nil
}
