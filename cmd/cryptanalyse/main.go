// cryptanalyse - Statistical cryptanalysis of Caesar and Vigenère ciphers
//
//	cryptanalyse caesar <text>      Rank Caesar keys by letter-frequency correlation
//	cryptanalyse vigenere <text>    Estimate the key period and search Vigenère keys
//	cryptanalyse analyze <text>     Run both attacks on one text
//	cryptanalyse watch [dir...]     Analyse ciphertext files dropped into inbox directories
//	cryptanalyse history            Browse recorded analyses
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/niraj-rajbhandari/cryptanalyse/internal/config"
	"github.com/niraj-rajbhandari/cryptanalyse/internal/logging"
	"github.com/niraj-rajbhandari/cryptanalyse/internal/profile"
	"github.com/niraj-rajbhandari/cryptanalyse/internal/report"
	"github.com/niraj-rajbhandari/cryptanalyse/internal/store"
	"github.com/niraj-rajbhandari/cryptanalyse/internal/watcher"
)

// errUsage means the command line was malformed and usage has been printed.
var errUsage = errors.New("invalid usage")

func main() {
	err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `cryptanalyse - Statistical cryptanalysis of classical ciphers

USAGE:
    cryptanalyse [options] <command> [args]

COMMANDS:
    caesar [text]           Rank Caesar keys and decipher under each
    vigenere [text]         Estimate the key period and recover Vigenère keys
    analyze [text]          Run the Caesar and Vigenère attacks on one text
    ic [text]               Show letter counts and index of coincidence
    period [text]           Estimate the Vigenère key period
    encrypt -key K [text]   Encipher with a shift (0-25) or a letter key
    decrypt -key K [text]   Decipher with a shift (0-25) or a letter key
    watch [dir...]          Analyse ciphertext files dropped into directories
    history <action>        list, show, find, delete, stats, prune
    profile <action>        show, export, validate
    help                    Show this help message

Text is taken from the arguments, from -f <file>, or from standard input.

OPTIONS:
    -config <path>    Config file (default: platform config dir/config.toml)
    -format <fmt>     Output format: text, json, yaml (default: text)
    -profile <path>   Reference frequency profile (default: built-in English)
    -save             Record analyses in the history database
    -v                Debug logging`)
}

// app carries the state shared by every command.
type app struct {
	loader *config.Loader
	log    *logging.Logger
	prof   *profile.Profile
	format report.Format
	save   bool

	mu  sync.RWMutex
	cfg *config.Config

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("cryptanalyse", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { usage(stderr) }
	configPath := fs.String("config", "", "path to config file")
	format := fs.String("format", "text", "output format: text, json, yaml")
	profilePath := fs.String("profile", "", "reference frequency profile")
	save := fs.Bool("save", false, "record analyses in the history database")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return errUsage
	}

	if fs.NArg() < 1 {
		usage(stderr)
		return errUsage
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		usage(stdout)
		return nil
	}

	a, err := newApp(*configPath, *profilePath, *format, *verbose, stdin, stdout, stderr)
	if err != nil {
		return err
	}
	defer a.log.Close()
	a.save = *save

	switch cmd {
	case "caesar":
		return a.cmdCaesar(rest)
	case "vigenere":
		return a.cmdVigenere(rest)
	case "analyze", "analyse":
		return a.cmdAnalyze(rest)
	case "ic":
		return a.cmdStats(rest, false)
	case "period":
		return a.cmdStats(rest, true)
	case "encrypt":
		return a.cmdTransform("encrypt", rest)
	case "decrypt":
		return a.cmdTransform("decrypt", rest)
	case "watch":
		return a.cmdWatch(rest)
	case "history":
		return a.cmdHistory(rest)
	case "profile":
		return a.cmdProfile(rest)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", cmd)
		usage(stderr)
		return errUsage
	}
}

func newApp(configPath, profilePath, format string, verbose bool, stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", loader.Path(), err)
	}

	log, err := newLogger(cfg.Logging, verbose, stderr)
	if err != nil {
		return nil, err
	}

	if profilePath == "" {
		profilePath = cfg.Analysis.ProfilePath
	}
	prof, err := profile.Resolve(profilePath)
	if err != nil {
		log.Close()
		return nil, err
	}

	outFormat, err := report.ParseFormat(format)
	if err != nil {
		log.Close()
		return nil, err
	}

	return &app{
		loader: loader,
		cfg:    cfg,
		log:    log,
		prof:   prof,
		format: outFormat,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}, nil
}

// newLogger builds the process logger from the logging section. Console
// output goes to stderr so that reports on stdout stay machine readable.
func newLogger(lc config.LoggingConfig, verbose bool, stderr io.Writer) (*logging.Logger, error) {
	level, err := logging.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = logging.LevelDebug
	}
	format, err := logging.ParseFormat(lc.Format)
	if err != nil {
		return nil, err
	}

	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Format = format
	cfg.Output = lc.Output
	cfg.FilePath = lc.FilePath
	cfg.MaxSize = int64(lc.MaxSizeMB)
	cfg.MaxBackups = lc.MaxBackups
	cfg.MaxAge = lc.MaxAgeDays
	cfg.Compress = lc.Compress
	cfg.RedactText = lc.RedactText
	if lc.Output == "stderr" {
		cfg.Writer = stderr
	}

	log, err := logging.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	logging.SetDefault(log)
	return log, nil
}

func (a *app) config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

func (a *app) setConfig(cfg *config.Config) {
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
}

// recording reports whether analyses go to the history database.
func (a *app) recording() bool {
	return a.save || a.config().Storage.Enabled
}

func (a *app) openStore() (*store.Store, error) {
	cfg := a.config()
	s, err := store.OpenWithTimeout(cfg.Storage.Path, time.Duration(cfg.Storage.BusyTimeoutMs)*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", cfg.Storage.Path, err)
	}
	return s, nil
}

// record saves an analysis when recording is on.
func (a *app) record(log *logging.Logger, rec *store.Analysis) error {
	if !a.recording() {
		return nil
	}

	s, err := a.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := s.SaveAnalysis(rec)
	if err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	log.Debug("analysis recorded", "id", id, "kind", rec.Kind, "fingerprint", rec.Fingerprint.Short())
	return nil
}

// readInput returns the text to analyse and the file it came from. The file
// named by -f wins, then the remaining arguments joined by spaces, then
// standard input.
func (a *app) readInput(fs *flag.FlagSet, file string) (text, source string, err error) {
	if file != "" {
		text, _, _, err := watcher.ReadCiphertext(file, a.config().Watch.MaxFileSize)
		if err != nil {
			return "", "", err
		}
		return text, file, nil
	}
	if fs.NArg() > 0 {
		return strings.Join(fs.Args(), " "), "", nil
	}

	data, err := io.ReadAll(a.stdin)
	if err != nil {
		return "", "", fmt.Errorf("read stdin: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", "", fmt.Errorf("no input text")
	}
	return strings.TrimRight(string(data), "\r\n"), "", nil
}
