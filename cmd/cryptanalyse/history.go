package main

import (
	"flag"
	"fmt"
	"strconv"
	"time"

	"github.com/niraj-rajbhandari/cryptanalyse/internal/profile"
	"github.com/niraj-rajbhandari/cryptanalyse/internal/report"
	"github.com/niraj-rajbhandari/cryptanalyse/internal/store"
)

func (a *app) cmdHistory(args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(a.stderr, "Usage: cryptanalyse history <list|show|find|delete|stats|prune>")
		return errUsage
	}
	action, rest := args[0], args[1:]

	s, err := a.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	switch action {
	case "list":
		fs := flag.NewFlagSet("history list", flag.ContinueOnError)
		fs.SetOutput(a.stderr)
		kind := fs.String("kind", "", "caesar or vigenere")
		since := fs.Duration("since", 0, "only analyses newer than this (e.g. 24h)")
		limit := fs.Int("n", 20, "maximum rows (0 for all)")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}

		filter := store.ListFilter{Kind: store.Kind(*kind), Limit: *limit}
		switch filter.Kind {
		case "", store.KindCaesar, store.KindVigenere:
		default:
			return fmt.Errorf("unknown kind %q (valid: caesar, vigenere)", *kind)
		}
		if *since > 0 {
			filter.Since = time.Now().Add(-*since)
		}

		analyses, err := s.ListAnalyses(filter)
		if err != nil {
			return err
		}
		return report.WriteHistory(a.stdout, a.format, analyses)

	case "show":
		id, err := parseID(a, "show", rest)
		if err != nil {
			return err
		}
		analysis, err := s.GetAnalysis(id)
		if err != nil {
			return err
		}
		return report.WriteAnalysis(a.stdout, a.format, analysis)

	case "find":
		fs := flag.NewFlagSet("history find", flag.ContinueOnError)
		fs.SetOutput(a.stderr)
		file := fs.String("f", "", "read ciphertext from file")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		text, _, err := a.readInput(fs, *file)
		if err != nil {
			return err
		}
		analyses, err := s.FindByFingerprint(store.FingerprintOf(text), "")
		if err != nil {
			return err
		}
		return report.WriteHistory(a.stdout, a.format, analyses)

	case "delete":
		id, err := parseID(a, "delete", rest)
		if err != nil {
			return err
		}
		if err := s.DeleteAnalysis(id); err != nil {
			return err
		}
		a.log.Info("analysis deleted", "id", id)
		fmt.Fprintf(a.stdout, "Deleted analysis #%d\n", id)
		return nil

	case "stats":
		stats, err := s.GetStats()
		if err != nil {
			return err
		}
		return report.WriteStats(a.stdout, a.format, s.Path(), stats)

	case "prune":
		fs := flag.NewFlagSet("history prune", flag.ContinueOnError)
		fs.SetOutput(a.stderr)
		olderThan := fs.Duration("older-than", 0, "delete analyses older than this (e.g. 720h)")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		if *olderThan <= 0 {
			fmt.Fprintln(a.stderr, "Usage: cryptanalyse history prune -older-than <duration>")
			return errUsage
		}
		n, err := s.PruneBefore(time.Now().Add(-*olderThan))
		if err != nil {
			return err
		}
		a.log.Info("history pruned", "removed", n, "older_than", olderThan.String())
		fmt.Fprintf(a.stdout, "Removed %d analyses\n", n)
		return nil

	default:
		fmt.Fprintf(a.stderr, "Unknown history action: %s\n", action)
		return errUsage
	}
}

func parseID(a *app, action string, args []string) (int64, error) {
	if len(args) < 1 {
		fmt.Fprintf(a.stderr, "Usage: cryptanalyse history %s <id>\n", action)
		return 0, errUsage
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid analysis id %q", args[0])
	}
	return id, nil
}

func (a *app) cmdProfile(args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(a.stderr, "Usage: cryptanalyse profile <show|export|validate>")
		return errUsage
	}
	action, rest := args[0], args[1:]

	switch action {
	case "show":
		return report.WriteProfile(a.stdout, a.format, a.prof)

	case "export":
		if len(rest) < 1 {
			fmt.Fprintln(a.stderr, "Usage: cryptanalyse profile export <file.json|file.toml|file.yaml>")
			return errUsage
		}
		if err := profile.Save(a.prof, rest[0]); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "Profile %s written to %s\n", a.prof.Name, rest[0])
		return nil

	case "validate":
		if len(rest) < 1 {
			fmt.Fprintln(a.stderr, "Usage: cryptanalyse profile validate <file>")
			return errUsage
		}
		p, err := profile.Load(rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "%s: valid profile %q (sum %.5f)\n", rest[0], p.Name, p.Sum())
		return nil

	default:
		fmt.Fprintf(a.stderr, "Unknown profile action: %s\n", action)
		return errUsage
	}
}
