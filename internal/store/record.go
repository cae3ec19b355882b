package store

import (
	"sort"

	"github.com/niraj-rajbhandari/cryptanalyse/internal/analysis"
	"github.com/niraj-rajbhandari/cryptanalyse/internal/profile"
)

// CaesarRecord builds the history entry of a Caesar break.
func CaesarRecord(ciphertext, source string, p *profile.Profile, ranked []analysis.CaesarCandidate) *Analysis {
	a := &Analysis{
		Kind:        KindCaesar,
		Fingerprint: FingerprintOf(ciphertext),
		Source:      source,
		Ciphertext:  ciphertext,
		Profile:     profileName(p),
		Period:      1,
	}
	if ic, err := analysis.IndexOfCoincidence(ciphertext); err == nil {
		a.IndexOfCoincidence = ic
	}

	for _, c := range ranked {
		a.Candidates = append(a.Candidates, Candidate{
			Key:       analysis.KeyVector{c.Key}.String(),
			Score:     c.Score,
			Plaintext: c.Plaintext,
		})
	}
	return a
}

// VigenereRecord builds the history entry of a Vigenère search. Candidates
// are stored best fitness first.
func VigenereRecord(ciphertext, source string, p *profile.Profile, result *analysis.VigenereResult) *Analysis {
	a := &Analysis{
		Kind:               KindVigenere,
		Fingerprint:        FingerprintOf(ciphertext),
		Source:             source,
		Ciphertext:         ciphertext,
		Profile:            profileName(p),
		IndexOfCoincidence: result.IndexOfCoincidence,
		Period:             result.Period,
	}

	ranked := append([]analysis.VigenereCandidate(nil), result.Candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Fitness > ranked[j].Fitness
	})
	for _, c := range ranked {
		a.Candidates = append(a.Candidates, Candidate{
			Key:       c.Key.String(),
			Score:     c.Fitness,
			Plaintext: c.Plaintext,
		})
	}
	return a
}

func profileName(p *profile.Profile) string {
	if p == nil {
		return profile.English().Name
	}
	return p.Name
}
