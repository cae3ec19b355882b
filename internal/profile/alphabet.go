// Package profile provides the reference alphabet and the letter-frequency
// profiles candidate keys are scored against.
package profile

// Size is the number of letters in the reference alphabet.
const Size = 26

// Letters is the canonical alphabet ordering. A letter's position in this
// string is its index everywhere in the analysis code.
const Letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Index returns the zero-based alphabet position of r, folding case.
// ok is false for any rune outside the alphabet.
func Index(r rune) (idx int, ok bool) {
	switch {
	case r >= 'A' && r <= 'Z':
		return int(r - 'A'), true
	case r >= 'a' && r <= 'z':
		return int(r - 'a'), true
	default:
		return 0, false
	}
}

// Letter returns the canonical (upper-case) letter at index i.
// i must be in [0, Size).
func Letter(i int) rune {
	return rune(Letters[i])
}

// IsLetter reports whether r belongs to the alphabet in either case.
func IsLetter(r rune) bool {
	_, ok := Index(r)
	return ok
}
