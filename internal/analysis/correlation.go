package analysis

import (
	"sort"

	"github.com/niraj-rajbhandari/cryptanalyse/internal/profile"
)

// DefaultCandidateLimit is the number of ranked keys returned when the
// caller does not ask for a specific count.
const DefaultCandidateLimit = 5

// Scores holds the correlation score of every candidate key, indexed by key.
type Scores [alphabetSize]float64

// Candidate is a scored key.
type Candidate struct {
	Key   int     `json:"key" yaml:"key"`
	Score float64 `json:"score" yaml:"score"`
}

// CaesarCandidate is a ranked key together with the text it deciphers to.
type CaesarCandidate struct {
	Candidate `yaml:",inline"`
	Plaintext string `json:"plaintext" yaml:"plaintext"`
}

// Score correlates observed letter frequencies with the reference profile
// for each of the 26 keys:
//
//	score(k) = sum over letters L of count(L)/total * ref(decipher(L, k))
//
// Empty counts produce 26 zero scores.
func Score(counts Counts, p *profile.Profile) Scores {
	var scores Scores
	total := counts.Total()
	if total == 0 {
		return scores
	}

	present := counts.Present()
	for k := 0; k < alphabetSize; k++ {
		for _, idx := range present {
			observed := float64(counts[idx]) / float64(total)
			scores[k] += observed * p.Frequency(decipher(idx, k))
		}
	}
	return scores
}

// Rank returns the top limit keys by descending score. Equal scores keep
// ascending key order. A limit of zero or less means DefaultCandidateLimit.
func Rank(scores Scores, limit int) []Candidate {
	if limit <= 0 {
		limit = DefaultCandidateLimit
	}
	if limit > alphabetSize {
		limit = alphabetSize
	}

	ranked := make([]Candidate, alphabetSize)
	for k, s := range scores {
		ranked[k] = Candidate{Key: k, Score: s}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked[:limit]
}

// BreakCaesar ranks every Caesar key for text and deciphers the text under
// each of the top limit keys.
func BreakCaesar(text string, p *profile.Profile, limit int) []CaesarCandidate {
	ranked := Rank(Score(CountLetters(text), p), limit)

	results := make([]CaesarCandidate, len(ranked))
	for i, c := range ranked {
		results[i] = CaesarCandidate{
			Candidate: c,
			Plaintext: shiftText(text, KeyVector{c.Key}, decipher),
		}
	}
	return results
}

// Fitness scores how closely text already resembles the profile's language:
// its correlation at key 0.
func Fitness(text string, p *profile.Profile) float64 {
	return Score(CountLetters(text), p)[0]
}
