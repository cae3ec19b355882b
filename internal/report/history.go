package report

import (
	"io"
	"strings"
	"time"

	"github.com/niraj-rajbhandari/cryptanalyse/internal/store"
)

const timeLayout = "2006-01-02 15:04:05"

// HistoryEntry is the rendered form of a stored analysis.
type HistoryEntry struct {
	ID                 int64              `json:"id" yaml:"id"`
	Kind               string             `json:"kind" yaml:"kind"`
	Fingerprint        string             `json:"fingerprint" yaml:"fingerprint"`
	Source             string             `json:"source,omitempty" yaml:"source,omitempty"`
	Profile            string             `json:"profile" yaml:"profile"`
	IndexOfCoincidence float64            `json:"index_of_coincidence" yaml:"index_of_coincidence"`
	Period             int                `json:"period" yaml:"period"`
	CreatedAt          time.Time          `json:"created_at" yaml:"created_at"`
	Ciphertext         string             `json:"ciphertext,omitempty" yaml:"ciphertext,omitempty"`
	Candidates         []HistoryCandidate `json:"candidates" yaml:"candidates"`
}

// HistoryCandidate is one stored candidate.
type HistoryCandidate struct {
	Key       string  `json:"key" yaml:"key"`
	Score     float64 `json:"score" yaml:"score"`
	Plaintext string  `json:"plaintext" yaml:"plaintext"`
}

func historyEntry(a *store.Analysis, withText bool) HistoryEntry {
	e := HistoryEntry{
		ID:                 a.ID,
		Kind:               string(a.Kind),
		Fingerprint:        a.Fingerprint.String(),
		Source:             a.Source,
		Profile:            a.Profile,
		IndexOfCoincidence: a.IndexOfCoincidence,
		Period:             a.Period,
		CreatedAt:          a.CreatedAt,
		Candidates:         make([]HistoryCandidate, len(a.Candidates)),
	}
	if withText {
		e.Ciphertext = a.Ciphertext
	}
	for i, c := range a.Candidates {
		e.Candidates[i] = HistoryCandidate{Key: c.Key, Score: c.Score, Plaintext: c.Plaintext}
	}
	return e
}

// WriteHistory renders a listing of stored analyses, one line each with the
// best key.
func WriteHistory(w io.Writer, format Format, analyses []store.Analysis) error {
	if format != FormatText {
		entries := make([]HistoryEntry, len(analyses))
		for i := range analyses {
			entries[i] = historyEntry(&analyses[i], false)
		}
		return encode(w, format, entries)
	}

	p := &printer{w: w}
	if len(analyses) == 0 {
		p.printf("No analyses recorded.\n")
		return p.err
	}

	p.printf("=== Analysis History ===\n")
	p.printf("%-6s %-9s %-20s %-13s %-7s %-12s %s\n", "ID", "Kind", "Date", "Fingerprint", "Period", "Best key", "Source")
	p.printf("%s\n", strings.Repeat("-", 80))
	for i := range analyses {
		a := &analyses[i]
		best := "-"
		if c, ok := a.Best(); ok {
			best = c.Key
		}
		source := a.Source
		if source == "" {
			source = "-"
		}
		p.printf("%-6d %-9s %-20s %-13s %-7d %-12s %s\n",
			a.ID, a.Kind, a.CreatedAt.Format(timeLayout), a.Fingerprint.Short(), a.Period, truncate(best, 12), source)
	}
	return p.err
}

// WriteAnalysis renders one stored analysis with all of its candidates.
func WriteAnalysis(w io.Writer, format Format, a *store.Analysis) error {
	if format != FormatText {
		return encode(w, format, historyEntry(a, true))
	}

	p := &printer{w: w}
	p.printf("=== Analysis #%d ===\n", a.ID)
	p.printf("Kind:                 %s\n", a.Kind)
	p.printf("Recorded:             %s\n", a.CreatedAt.Format(timeLayout))
	p.printf("Fingerprint:          %s\n", a.Fingerprint)
	if a.Source != "" {
		p.printf("Source:               %s\n", a.Source)
	}
	p.printf("Profile:              %s\n", a.Profile)
	p.printf("Index of coincidence: %.4f\n", a.IndexOfCoincidence)
	p.printf("Key period:           %d\n", a.Period)
	p.printf("\n")
	p.printf("Ciphertext:\n    %s\n", a.Ciphertext)
	p.printf("\n")

	for i, c := range a.Candidates {
		p.printf("[%d] key %s  score %.6f\n", i+1, c.Key, c.Score)
		p.printf("    %s\n", c.Plaintext)
	}
	return p.err
}

// StatsReport is the rendered form of store statistics.
type StatsReport struct {
	Path             string    `json:"path" yaml:"path"`
	TotalAnalyses    int64     `json:"total_analyses" yaml:"total_analyses"`
	CaesarAnalyses   int64     `json:"caesar_analyses" yaml:"caesar_analyses"`
	VigenereAnalyses int64     `json:"vigenere_analyses" yaml:"vigenere_analyses"`
	UniqueTexts      int64     `json:"unique_texts" yaml:"unique_texts"`
	OldestAnalysis   time.Time `json:"oldest_analysis,omitzero" yaml:"oldest_analysis,omitempty"`
	NewestAnalysis   time.Time `json:"newest_analysis,omitzero" yaml:"newest_analysis,omitempty"`
}

// WriteStats renders history statistics for the database at path.
func WriteStats(w io.Writer, format Format, path string, s *store.Stats) error {
	r := StatsReport{
		Path:             path,
		TotalAnalyses:    s.TotalAnalyses,
		CaesarAnalyses:   s.CaesarAnalyses,
		VigenereAnalyses: s.VigenereAnalyses,
		UniqueTexts:      s.UniqueTexts,
		OldestAnalysis:   s.OldestAnalysis,
		NewestAnalysis:   s.NewestAnalysis,
	}
	if format != FormatText {
		return encode(w, format, r)
	}

	p := &printer{w: w}
	p.printf("Database:  %s\n", r.Path)
	p.printf("Analyses:  %d (%d caesar, %d vigenère)\n", r.TotalAnalyses, r.CaesarAnalyses, r.VigenereAnalyses)
	p.printf("Texts:     %d unique\n", r.UniqueTexts)
	if r.TotalAnalyses > 0 {
		p.printf("Oldest:    %s\n", r.OldestAnalysis.Format(timeLayout))
		p.printf("Newest:    %s\n", r.NewestAnalysis.Format(timeLayout))
	}
	return p.err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
