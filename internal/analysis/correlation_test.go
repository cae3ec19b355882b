package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niraj-rajbhandari/cryptanalyse/internal/profile"
)

func TestCountLetters(t *testing.T) {
	c := CountLetters("Hello, World!\n\tzz")

	assert.Equal(t, 12, c.Total())

	n, ok := c.Get('l')
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	n, ok = c.Get('Z')
	assert.True(t, ok)
	assert.Equal(t, 2, n)

	_, ok = c.Get('Q')
	assert.False(t, ok, "absent letters are not reported")

	_, ok = c.Get('!')
	assert.False(t, ok)

	// D E H L O R W Z in alphabet order.
	assert.Equal(t, []int{3, 4, 7, 11, 14, 17, 22, 25}, c.Present())

	dense := c.Dense()
	assert.Len(t, dense, profile.Size)
	assert.Equal(t, 0, dense[0])
	assert.Equal(t, 3, dense[11])
}

func TestCountLettersEmpty(t *testing.T) {
	c := CountLetters("  \n\t 123 ...")
	assert.Equal(t, 0, c.Total())
	assert.Empty(t, c.Present())
}

func TestScoreEmptyCounts(t *testing.T) {
	scores := Score(Counts{}, profile.English())
	assert.Len(t, scores, 26)
	for k, s := range scores {
		assert.Zero(t, s, "key %d", k)
	}

	ranked := Rank(scores, 5)
	assert.Len(t, ranked, 5)
}

func TestScoreSingleLetter(t *testing.T) {
	// A text of only 'E' scores each key with the reference frequency of
	// the letter E deciphers to.
	p := profile.English()
	scores := Score(CountLetters("EEEE"), p)
	for k := 0; k < alphabetSize; k++ {
		assert.InDelta(t, p.Frequency(decipher(4, k)), scores[k], 1e-12)
	}

	ranked := Rank(scores, 1)
	require.Len(t, ranked, 1)
	assert.Equal(t, 0, ranked[0].Key, "E maps to E under key 0")
}

func TestRankOrdering(t *testing.T) {
	var scores Scores
	scores[3] = 0.5
	scores[7] = 0.9
	scores[1] = 0.5
	scores[20] = 0.7

	ranked := Rank(scores, 4)
	keys := make([]int, len(ranked))
	for i, c := range ranked {
		keys[i] = c.Key
	}
	assert.Equal(t, []int{7, 20, 1, 3}, keys, "ties keep ascending key order")
}

func TestRankLimits(t *testing.T) {
	var scores Scores

	assert.Len(t, Rank(scores, 0), DefaultCandidateLimit)
	assert.Len(t, Rank(scores, -3), DefaultCandidateLimit)
	assert.Len(t, Rank(scores, 100), 26)

	// All-zero scores fall back to key order.
	ranked := Rank(scores, 3)
	assert.Equal(t, 0, ranked[0].Key)
	assert.Equal(t, 1, ranked[1].Key)
	assert.Equal(t, 2, ranked[2].Key)
}

func TestBreakCaesarHelloWorld(t *testing.T) {
	ct, err := EncipherText("HELLO WORLD", 5)
	require.NoError(t, err)

	results := BreakCaesar(ct, profile.English(), DefaultCandidateLimit)
	require.Len(t, results, 5)

	found := false
	for _, r := range results {
		if r.Key == 5 {
			found = true
			assert.Equal(t, "HELLO WORLD", r.Plaintext)
		}
	}
	assert.True(t, found, "key 5 should be in the top 5")

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestBreakCaesarLongText(t *testing.T) {
	for _, key := range []int{0, 3, 13, 25} {
		ct, err := EncipherText(taleOfTwoCities, key)
		require.NoError(t, err)

		results := BreakCaesar(ct, profile.English(), 1)
		require.Len(t, results, 1)
		assert.Equal(t, key, results[0].Key)
		assert.Equal(t, taleOfTwoCities, results[0].Plaintext)
	}
}

func TestFitness(t *testing.T) {
	p := profile.English()
	english := Fitness(taleOfTwoCities, p)
	shifted, err := EncipherText(taleOfTwoCities, 11)
	require.NoError(t, err)

	assert.Greater(t, english, DefaultPlausibilityThreshold)
	assert.Less(t, Fitness(shifted, p), english)
	assert.Zero(t, Fitness("", p))
}
