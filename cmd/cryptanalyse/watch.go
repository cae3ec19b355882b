package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/niraj-rajbhandari/cryptanalyse/internal/analysis"
	"github.com/niraj-rajbhandari/cryptanalyse/internal/config"
	"github.com/niraj-rajbhandari/cryptanalyse/internal/health"
	"github.com/niraj-rajbhandari/cryptanalyse/internal/logging"
	"github.com/niraj-rajbhandari/cryptanalyse/internal/metrics"
	"github.com/niraj-rajbhandari/cryptanalyse/internal/report"
	"github.com/niraj-rajbhandari/cryptanalyse/internal/store"
	"github.com/niraj-rajbhandari/cryptanalyse/internal/watcher"
)

func (a *app) cmdWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	mode := fs.String("mode", "", "auto, caesar or vigenere (default from config)")
	scan := fs.Bool("scan", false, "also analyse files already present")
	statusAddr := fs.String("status-addr", "", "serve /metrics, /healthz and /readyz on this address")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	cfg := a.config()
	paths := fs.Args()
	if len(paths) == 0 {
		paths = cfg.Watch.Paths
	}
	if len(paths) == 0 {
		return fmt.Errorf("no watch paths: pass directories or set watch.paths in %s", a.loader.Path())
	}

	if *mode == "" {
		*mode = cfg.Watch.Mode
	}
	switch *mode {
	case config.ModeAuto, config.ModeCaesar, config.ModeVigenere:
	default:
		return fmt.Errorf("unknown watch mode %q (valid: auto, caesar, vigenere)", *mode)
	}

	w, err := watcher.New(watcher.Options{
		Paths:           paths,
		IncludePatterns: cfg.Watch.IncludePatterns,
		ExcludePatterns: cfg.Watch.ExcludePatterns,
		Debounce:        time.Duration(cfg.Watch.DebounceMs) * time.Millisecond,
		MaxFileSize:     cfg.Watch.MaxFileSize,
		ScanExisting:    *scan,
	})
	if err != nil {
		return err
	}

	var st *store.Store
	if a.recording() {
		if st, err = a.openStore(); err != nil {
			w.Stop()
			return err
		}
		defer st.Close()
	}

	// Analysis settings follow edits to the config file.
	a.loader.OnChange(func(old, new *config.Config) {
		a.setConfig(new)
		a.log.Info("configuration reloaded", "path", a.loader.Path())
	})
	if err := a.loader.Watch(); err != nil {
		a.log.Warn("config hot reload disabled", "error", err)
	}
	defer a.loader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wm := metrics.NewWatchMetrics(metrics.NewRegistry("cryptanalyse"))
	checker := health.NewChecker()
	checker.RegisterFunc("watch_paths", false, health.DirectoriesCheck(paths))
	if st != nil {
		checker.RegisterFunc("history", true, health.PingCheck("history database", st.Ping))
	}

	if *statusAddr == "" {
		*statusAddr = cfg.Watch.StatusAddr
	}
	if *statusAddr != "" {
		srv, err := startStatusServer(*statusAddr, wm.Registry(), checker)
		if err != nil {
			w.Stop()
			return err
		}
		defer shutdownStatusServer(srv, a.log)
		a.log.Info("status endpoints listening", "addr", *statusAddr)
	}

	fmt.Fprintf(a.stderr, "Watching %d path(s) in %s mode. Press Ctrl+C to stop.\n", len(paths), *mode)
	return a.watchLoop(ctx, w, *mode, st, wm, checker)
}

// watchLoop analyses every stable file the watcher reports until ctx is
// cancelled. The watcher is started here and stopped on return; checker
// reports ready in between.
func (a *app) watchLoop(ctx context.Context, w *watcher.Watcher, mode string, st *store.Store, wm *metrics.WatchMetrics, checker *health.Checker) error {
	if err := w.Start(); err != nil {
		w.Stop()
		return err
	}
	defer w.Stop()

	checker.SetReady(true)
	defer checker.SetReady(false)
	a.log.Info("watching", "paths", w.WatchedPaths(), "mode", mode)

	gauge := time.NewTicker(5 * time.Second)
	defer gauge.Stop()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("watch stopped", wm.Summary()...)
			return nil

		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			a.handleEvent(ev, mode, st, wm)

		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			wm.RecordWatchError()
			a.log.Warn("watch error", "error", err)

		case <-gauge.C:
			wm.SetTracked(w.TrackedFiles())
			wm.UpdateUptime()

		case err := <-a.loader.Errors():
			a.log.Warn("config reload failed", "error", err)
		}
	}
}

// handleEvent analyses one file. Failures are logged; the loop keeps going.
func (a *app) handleEvent(ev watcher.Event, mode string, st *store.Store, wm *metrics.WatchMetrics) {
	log := a.runLogger("watch")
	defer log.Recover("analyse " + ev.Path)

	wm.RecordFile(analysis.CountLetters(ev.Text).Total())
	kind := chooseKind(mode, ev.Text, log)
	log.Debug("file ready", "path", ev.Path, "size", ev.Size, "kind", kind, logging.KeyCiphertext, ev.Text)

	if st != nil {
		prior, err := st.FindByFingerprint(store.FingerprintOf(ev.Text), kind)
		if err != nil {
			log.Error("history lookup failed", "path", ev.Path, "error", err)
		} else if len(prior) > 0 {
			log.Info("ciphertext already analysed", "path", ev.Path, "id", prior[0].ID)
			wm.RecordDuplicate()
			return
		}
	}

	start := time.Now()
	var rec *store.Analysis
	var err error
	switch kind {
	case store.KindCaesar:
		var r *report.CaesarReport
		r, rec = a.breakCaesar(ev.Text, ev.Path, 0)
		if len(r.Candidates) > 0 {
			log.Info("caesar analysis complete", "source", ev.Path, "key", r.Candidates[0].Key, "score", r.Candidates[0].Score)
		}
		err = report.WriteCaesar(a.stdout, a.format, r)

	case store.KindVigenere:
		result, solveErr := a.solve(a.config().Analysis, ev.Text)
		if solveErr != nil {
			log.Warn("vigenere analysis failed", "path", ev.Path, "error", solveErr)
			wm.RecordFailure()
			return
		}
		logSolved(log, ev.Path, result)
		rec = store.VigenereRecord(ev.Text, ev.Path, a.prof, result)
		err = report.WriteVigenere(a.stdout, a.format, report.NewVigenereReport(ev.Text, ev.Path, a.prof, result))
	}
	wm.RecordAnalysis(string(kind), time.Since(start))
	if err != nil {
		log.Error("write report failed", "path", ev.Path, "error", err)
	}
	fmt.Fprintln(a.stdout)

	if st != nil && rec != nil {
		if _, err := st.SaveAnalysis(rec); err != nil {
			log.Error("save analysis failed", "path", ev.Path, "error", err)
		}
	}
}

// chooseKind picks the attack for a file. In auto mode a text whose index of
// coincidence maps to a period above 1 is treated as Vigenère; everything
// else, including texts the period table cannot place, as Caesar.
func chooseKind(mode, text string, log *logging.Logger) store.Kind {
	switch mode {
	case config.ModeCaesar:
		return store.KindCaesar
	case config.ModeVigenere:
		return store.KindVigenere
	}

	ic, err := analysis.IndexOfCoincidence(text)
	if err != nil {
		return store.KindCaesar
	}
	period, err := analysis.EstimatePeriod(ic)
	if err != nil {
		if errors.Is(err, analysis.ErrKeyPeriodTooLarge) {
			log.Warn("key period too large to estimate, trying caesar", "ic", ic)
		}
		return store.KindCaesar
	}
	if period > 1 {
		return store.KindVigenere
	}
	return store.KindCaesar
}
