package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/niraj-rajbhandari/cryptanalyse/internal/analysis"
	"github.com/niraj-rajbhandari/cryptanalyse/internal/config"
	"github.com/niraj-rajbhandari/cryptanalyse/internal/logging"
	"github.com/niraj-rajbhandari/cryptanalyse/internal/report"
	"github.com/niraj-rajbhandari/cryptanalyse/internal/store"
)

func (a *app) cmdCaesar(args []string) error {
	fs := flag.NewFlagSet("caesar", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	n := fs.Int("n", 0, "number of ranked keys (default from config)")
	file := fs.String("f", "", "read ciphertext from file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	text, source, err := a.readInput(fs, *file)
	if err != nil {
		return err
	}

	r, rec := a.breakCaesar(text, source, *n)
	log := a.runLogger("caesar")
	if best := r.Candidates; len(best) > 0 {
		log.Info("caesar analysis complete", "source", source, "key", best[0].Key, "score", best[0].Score)
	}
	if err := report.WriteCaesar(a.stdout, a.format, r); err != nil {
		return err
	}
	return a.record(log, rec)
}

func (a *app) breakCaesar(text, source string, limit int) (*report.CaesarReport, *store.Analysis) {
	if limit <= 0 {
		limit = a.config().Analysis.CaesarCandidates
	}
	candidates := analysis.BreakCaesar(text, a.prof, limit)
	return report.NewCaesarReport(text, source, a.prof, candidates),
		store.CaesarRecord(text, source, a.prof, candidates)
}

func (a *app) cmdVigenere(args []string) error {
	fs := flag.NewFlagSet("vigenere", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	period := fs.Int("period", 0, "key period (default: estimate from the index of coincidence)")
	perBucket := fs.Int("candidates", 0, "ranked keys per bucket")
	maxCombos := fs.Int("max", 0, "maximum key vectors to try")
	stop := fs.Bool("stop", false, "stop at the first plausible decipherment")
	file := fs.String("f", "", "read ciphertext from file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	text, source, err := a.readInput(fs, *file)
	if err != nil {
		return err
	}

	cfg := a.config().Analysis
	if *period > 0 {
		cfg.Period = *period
	}
	if *perBucket > 0 {
		cfg.CandidatesPerBucket = *perBucket
	}
	if *maxCombos > 0 {
		cfg.MaxCombinations = *maxCombos
	}
	if *stop {
		cfg.StopOnPlausible = true
	}

	log := a.runLogger("vigenere")
	result, err := a.solve(cfg, text)
	if err != nil {
		return err
	}
	logSolved(log, source, result)

	if err := report.WriteVigenere(a.stdout, a.format, report.NewVigenereReport(text, source, a.prof, result)); err != nil {
		return err
	}
	return a.record(log, store.VigenereRecord(text, source, a.prof, result))
}

func (a *app) solve(cfg config.AnalysisConfig, text string) (*analysis.VigenereResult, error) {
	solver := analysis.NewSolver(a.prof)
	solver.CandidatesPerBucket = cfg.CandidatesPerBucket
	solver.MaxCombinations = cfg.MaxCombinations
	solver.StopOnPlausible = cfg.StopOnPlausible
	solver.PlausibilityThreshold = cfg.PlausibilityThreshold

	if cfg.Period > 0 {
		return solver.SolveWithPeriod(text, cfg.Period)
	}
	return solver.Solve(text)
}

func logSolved(log *logging.Logger, source string, result *analysis.VigenereResult) {
	args := []any{
		"source", source,
		"ic", result.IndexOfCoincidence,
		"period", result.Period,
		"combinations", result.Combinations,
	}
	if len(result.Candidates) > 0 {
		best := result.Candidates[0]
		for _, c := range result.Candidates[1:] {
			if c.Fitness > best.Fitness {
				best = c
			}
		}
		args = append(args, "key", best.Key.String(), "fitness", best.Fitness)
	}
	log.Info("vigenere analysis complete", args...)
}

// cmdAnalyze runs the Caesar break and then the Vigenère search on the same
// text. A period that cannot be estimated skips the Vigenère half.
func (a *app) cmdAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	file := fs.String("f", "", "read ciphertext from file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	text, source, err := a.readInput(fs, *file)
	if err != nil {
		return err
	}

	log := a.runLogger("analyze")
	caesar, caesarRec := a.breakCaesar(text, source, 0)
	combined := &report.CombinedReport{Caesar: caesar}
	records := []*store.Analysis{caesarRec}

	result, err := a.solve(a.config().Analysis, text)
	if err != nil {
		log.Warn("vigenere analysis skipped", "source", source, "error", err)
		combined.VigenereError = err.Error()
	} else {
		logSolved(log, source, result)
		combined.Vigenere = report.NewVigenereReport(text, source, a.prof, result)
		records = append(records, store.VigenereRecord(text, source, a.prof, result))
	}

	if err := report.WriteCombined(a.stdout, a.format, combined); err != nil {
		return err
	}
	for _, rec := range records {
		if err := a.record(log, rec); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) cmdStats(args []string, withPeriod bool) error {
	name := "ic"
	if withPeriod {
		name = "period"
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	file := fs.String("f", "", "read text from file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	text, _, err := a.readInput(fs, *file)
	if err != nil {
		return err
	}

	stats, err := report.NewTextStats(text, withPeriod)
	if err != nil {
		return err
	}
	return report.WriteTextStats(a.stdout, a.format, stats)
}

// cmdTransform enciphers or deciphers. A numeric key is a Caesar shift and
// anything else is read as a Vigenère key of letters.
func (a *app) cmdTransform(name string, args []string) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	keyFlag := fs.String("key", "", "shift 0-25 or letter key")
	file := fs.String("f", "", "read text from file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *keyFlag == "" {
		fmt.Fprintf(a.stderr, "Usage: cryptanalyse %s -key <shift|letters> [text]\n", name)
		return errUsage
	}

	key, err := parseKey(*keyFlag)
	if err != nil {
		return err
	}

	text, _, err := a.readInput(fs, *file)
	if err != nil {
		return err
	}

	var out string
	if name == "encrypt" {
		out, err = analysis.EncipherVigenere(text, key)
	} else {
		out, err = analysis.DecipherVigenere(text, key)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(a.stdout, out)
	return err
}

func parseKey(s string) (analysis.KeyVector, error) {
	if shift, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		key := analysis.KeyVector{shift}
		if err := key.Validate(); err != nil {
			return nil, err
		}
		return key, nil
	}
	return analysis.ParseKey(s)
}

// runLogger returns a logger tagged with the command and a fresh run ID.
func (a *app) runLogger(command string) *logging.Logger {
	log := a.log.WithRunID(a.log.NewRunID())
	log.Logger = log.Logger.With("command", command)
	return log
}
