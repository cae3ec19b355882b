// Package report renders analysis results as text, JSON or YAML.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/niraj-rajbhandari/cryptanalyse/internal/analysis"
	"github.com/niraj-rajbhandari/cryptanalyse/internal/profile"
)

// Format is an output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat parses an output format name. An empty name is text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (valid: text, json, yaml)", s)
	}
}

func encode(w io.Writer, format Format, v any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// CaesarReport is the outcome of a Caesar break.
type CaesarReport struct {
	Source     string                     `json:"source,omitempty" yaml:"source,omitempty"`
	Profile    string                     `json:"profile" yaml:"profile"`
	Ciphertext string                     `json:"ciphertext" yaml:"ciphertext"`
	Letters    int                        `json:"letters" yaml:"letters"`
	Candidates []analysis.CaesarCandidate `json:"candidates" yaml:"candidates"`
}

// NewCaesarReport collects a Caesar break for rendering.
func NewCaesarReport(ciphertext, source string, p *profile.Profile, candidates []analysis.CaesarCandidate) *CaesarReport {
	return &CaesarReport{
		Source:     source,
		Profile:    profileName(p),
		Ciphertext: ciphertext,
		Letters:    analysis.CountLetters(ciphertext).Total(),
		Candidates: candidates,
	}
}

// WriteCaesar renders a Caesar break.
func WriteCaesar(w io.Writer, format Format, r *CaesarReport) error {
	if format != FormatText {
		return encode(w, format, r)
	}

	p := &printer{w: w}
	p.printf("=== Caesar Analysis ===\n")
	if r.Source != "" {
		p.printf("Source:  %s\n", r.Source)
	}
	p.printf("Profile: %s\n", r.Profile)
	p.printf("Letters: %d\n", r.Letters)
	p.printf("\n")

	if len(r.Candidates) == 0 {
		p.printf("No candidates.\n")
		return p.err
	}

	p.printf("%-6s %-4s %-6s %-10s\n", "Rank", "Key", "Shift", "Score")
	p.printf("%s\n", strings.Repeat("-", 30))
	for i, c := range r.Candidates {
		p.printf("%-6d %-4c %-6d %.6f\n", i+1, profile.Letter(c.Key), c.Key, c.Score)
	}
	p.printf("\n")

	for i, c := range r.Candidates {
		p.printf("[%d] key %c\n", i+1, profile.Letter(c.Key))
		p.printf("    %s\n", c.Plaintext)
	}
	return p.err
}

// VigenereReport is the outcome of a Vigenère key search.
type VigenereReport struct {
	Source     string                     `json:"source,omitempty" yaml:"source,omitempty"`
	Profile    string                     `json:"profile" yaml:"profile"`
	Ciphertext string                     `json:"ciphertext" yaml:"ciphertext"`
	Result     *analysis.VigenereResult   `json:"result" yaml:"result"`
	Frequency  []analysis.BucketFrequency `json:"frequency" yaml:"frequency"`
	Compact    []string                   `json:"compact" yaml:"compact"`
}

// NewVigenereReport collects a key search for rendering, adding the bucket
// frequency table and the whitespace-free form of every candidate.
func NewVigenereReport(ciphertext, source string, p *profile.Profile, result *analysis.VigenereResult) *VigenereReport {
	buckets := make([]analysis.Bucket, len(result.Buckets))
	for i, b := range result.Buckets {
		buckets[i] = b.Bucket
	}
	compact := make([]string, len(result.Candidates))
	for i, c := range result.Candidates {
		compact[i] = c.Compact()
	}

	return &VigenereReport{
		Source:     source,
		Profile:    profileName(p),
		Ciphertext: ciphertext,
		Result:     result,
		Frequency:  analysis.ExamineBuckets(buckets),
		Compact:    compact,
	}
}

// WriteVigenere renders a key search: the statistics, the frequency table of
// every bucket, the probable keys per bucket and each candidate decipherment
// with and without whitespace.
func WriteVigenere(w io.Writer, format Format, r *VigenereReport) error {
	if format != FormatText {
		return encode(w, format, r)
	}

	res := r.Result
	p := &printer{w: w}
	p.printf("=== Vigenère Analysis ===\n")
	if r.Source != "" {
		p.printf("Source:               %s\n", r.Source)
	}
	p.printf("Profile:              %s\n", r.Profile)
	p.printf("Index of coincidence: %.4f\n", res.IndexOfCoincidence)
	p.printf("Key period:           %d\n", res.Period)
	p.printf("\n")

	p.printf("Bucket frequencies:\n")
	p.printf("%-4s", "")
	for i := 0; i < profile.Size; i++ {
		p.printf("%3c", profile.Letter(i))
	}
	p.printf("\n")
	for _, row := range r.Frequency {
		p.printf("%-4d", row.Index)
		for _, n := range row.Counts {
			p.printf("%3d", n)
		}
		p.printf("\n")
	}
	p.printf("\n")

	p.printf("Probable keys:\n")
	for _, b := range res.Buckets {
		keys := make([]string, len(b.Candidates))
		for i, c := range b.Candidates {
			keys[i] = fmt.Sprintf("%c (%.4f)", profile.Letter(c.Key), c.Score)
		}
		p.printf("  Bucket %d: %s\n", b.Index, strings.Join(keys, ", "))
	}
	p.printf("\n")

	p.printf("Candidates: %d of %d key vectors", len(res.Candidates), res.Combinations)
	if res.StoppedEarly {
		p.printf(" (stopped at first plausible)")
	}
	p.printf("\n")
	for i, c := range res.Candidates {
		p.printf("[%d] key %s  fitness %.6f\n", i+1, c.Key, c.Fitness)
		p.printf("    %s\n", c.Plaintext)
		p.printf("    %s\n", r.Compact[i])
	}
	return p.err
}

// CombinedReport is a Caesar break followed by a Vigenère search of the same
// text. VigenereError is set instead of Vigenere when the search could not
// run, typically because the period could not be estimated.
type CombinedReport struct {
	Caesar        *CaesarReport   `json:"caesar" yaml:"caesar"`
	Vigenere      *VigenereReport `json:"vigenere,omitempty" yaml:"vigenere,omitempty"`
	VigenereError string          `json:"vigenere_error,omitempty" yaml:"vigenere_error,omitempty"`
}

// WriteCombined renders both halves of a combined analysis.
func WriteCombined(w io.Writer, format Format, r *CombinedReport) error {
	if format != FormatText {
		return encode(w, format, r)
	}

	if err := WriteCaesar(w, format, r.Caesar); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	if r.Vigenere != nil {
		return WriteVigenere(w, format, r.Vigenere)
	}

	p := &printer{w: w}
	p.printf("=== Vigenère Analysis ===\n")
	p.printf("Skipped: %s\n", r.VigenereError)
	return p.err
}

// TextStats summarises the letter statistics of a text.
type TextStats struct {
	Letters            int            `json:"letters" yaml:"letters"`
	Counts             map[string]int `json:"counts" yaml:"counts"`
	IndexOfCoincidence float64        `json:"index_of_coincidence" yaml:"index_of_coincidence"`
	Period             int            `json:"period,omitempty" yaml:"period,omitempty"`
	PeriodError        string         `json:"period_error,omitempty" yaml:"period_error,omitempty"`
}

// NewTextStats counts text and computes its index of coincidence. When
// withPeriod is set the key period is estimated too; a failed estimate is
// recorded rather than returned.
func NewTextStats(text string, withPeriod bool) (*TextStats, error) {
	counts := analysis.CountLetters(text)
	ic, err := counts.Coincidence()
	if err != nil {
		return nil, err
	}

	s := &TextStats{
		Letters:            counts.Total(),
		Counts:             make(map[string]int),
		IndexOfCoincidence: ic,
	}
	for _, idx := range counts.Present() {
		s.Counts[string(profile.Letter(idx))] = counts[idx]
	}
	if withPeriod {
		period, err := analysis.EstimatePeriod(ic)
		if err != nil {
			s.PeriodError = err.Error()
		} else {
			s.Period = period
		}
	}
	return s, nil
}

// WriteTextStats renders letter statistics.
func WriteTextStats(w io.Writer, format Format, s *TextStats) error {
	if format != FormatText {
		return encode(w, format, s)
	}

	p := &printer{w: w}
	p.printf("Letters:              %d\n", s.Letters)
	p.printf("Index of coincidence: %.4f\n", s.IndexOfCoincidence)
	switch {
	case s.Period > 0:
		p.printf("Key period:           %d\n", s.Period)
	case s.PeriodError != "":
		p.printf("Key period:           unknown (%s)\n", s.PeriodError)
	}
	p.printf("\n")

	for i := 0; i < profile.Size; i++ {
		letter := string(profile.Letter(i))
		if n, ok := s.Counts[letter]; ok {
			p.printf("  %s %5d\n", letter, n)
		}
	}
	return p.err
}

// WriteProfile renders a reference profile. Text output is a table of
// percentages; the other formats are profile documents that Load accepts.
func WriteProfile(w io.Writer, format Format, pr *profile.Profile) error {
	switch format {
	case FormatJSON:
		return profile.Encode(w, pr, profile.FormatJSON)
	case FormatYAML:
		return profile.Encode(w, pr, profile.FormatYAML)
	}

	p := &printer{w: w}
	p.printf("Profile: %s\n", pr.Name)
	if pr.Description != "" {
		p.printf("         %s\n", pr.Description)
	}
	p.printf("IC:      %.4f\n", pr.Coincidence())
	p.printf("\n")
	for i := 0; i < profile.Size; i++ {
		f := pr.Frequency(i)
		p.printf("  %c %6.3f%% %s\n", profile.Letter(i), f*100, strings.Repeat("#", int(f*200+0.5)))
	}
	return p.err
}

func profileName(p *profile.Profile) string {
	if p == nil {
		return profile.English().Name
	}
	return p.Name
}

// printer keeps the first write error so rendering code can stay linear.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
