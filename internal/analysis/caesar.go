package analysis

import (
	"fmt"
	"strings"

	"github.com/niraj-rajbhandari/cryptanalyse/internal/profile"
)

const alphabetSize = profile.Size

// Encipher shifts a letter index forward by key: (index + key) mod 26.
func Encipher(index, key int) (int, error) {
	if err := checkIndex("index", index); err != nil {
		return 0, err
	}
	if err := checkIndex("key", key); err != nil {
		return 0, err
	}
	return encipher(index, key), nil
}

// Decipher shifts a letter index back by key: (26 + index - key) mod 26.
func Decipher(index, key int) (int, error) {
	if err := checkIndex("index", index); err != nil {
		return 0, err
	}
	if err := checkIndex("key", key); err != nil {
		return 0, err
	}
	return decipher(index, key), nil
}

func encipher(index, key int) int {
	return (index + key) % alphabetSize
}

func decipher(index, key int) int {
	return (alphabetSize + index - key) % alphabetSize
}

func checkIndex(name string, v int) error {
	if v < 0 || v >= alphabetSize {
		return fmt.Errorf("%w: %s %d not in [0, %d)", ErrInvalidIndex, name, v, alphabetSize)
	}
	return nil
}

// EncipherText applies a Caesar shift to every letter of text. Letters come
// out upper-case; all other characters are copied unchanged.
func EncipherText(text string, key int) (string, error) {
	return EncipherVigenere(text, KeyVector{key})
}

// DecipherText reverses EncipherText.
func DecipherText(text string, key int) (string, error) {
	return DecipherVigenere(text, KeyVector{key})
}

// shiftText walks text applying shift to each letter with the key at the
// current letter position. Non-letters do not advance the key cursor.
func shiftText(text string, keys KeyVector, shift func(index, key int) int) string {
	var b strings.Builder
	b.Grow(len(text))

	pos := 0
	for _, r := range text {
		idx, ok := profile.Index(r)
		if !ok {
			b.WriteRune(r)
			continue
		}
		b.WriteRune(profile.Letter(shift(idx, keys[pos%len(keys)])))
		pos++
	}
	return b.String()
}
