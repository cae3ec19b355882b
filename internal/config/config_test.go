package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("CRYPTANALYSE_DATA_DIR", "/var/lib/cryptanalyse")

	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if cfg.Analysis.CaesarCandidates != 5 {
		t.Errorf("expected 5 caesar candidates, got %d", cfg.Analysis.CaesarCandidates)
	}
	if cfg.Analysis.CandidatesPerBucket != 1 {
		t.Errorf("expected 1 candidate per bucket, got %d", cfg.Analysis.CandidatesPerBucket)
	}
	if cfg.Analysis.MaxCombinations != 4096 {
		t.Errorf("expected 4096 max combinations, got %d", cfg.Analysis.MaxCombinations)
	}
	if cfg.Analysis.ProfilePath != "" {
		t.Errorf("expected built-in profile, got %s", cfg.Analysis.ProfilePath)
	}
	if cfg.Storage.Path != filepath.Join("/var/lib/cryptanalyse", "history.db") {
		t.Errorf("unexpected database path: %s", cfg.Storage.Path)
	}
	if cfg.Watch.Mode != ModeAuto {
		t.Errorf("expected auto watch mode, got %s", cfg.Watch.Mode)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	if !strings.HasSuffix(path, "config.toml") {
		t.Errorf("expected path ending with config.toml, got %s", path)
	}
	if !strings.Contains(path, "cryptanalyse") {
		t.Errorf("config path should contain cryptanalyse: %s", path)
	}
}

func TestLoadNonexistent(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing", "config.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Analysis.CaesarCandidates != 5 {
		t.Errorf("expected defaults, got %d caesar candidates", cfg.Analysis.CaesarCandidates)
	}
}

func TestLoadFormats(t *testing.T) {
	docs := map[string]string{
		"config.toml": `
version = 1

[analysis]
caesar_candidates = 3
max_combinations = 64
stop_on_plausible = true

[watch]
mode = "vigenere"
`,
		"config.json": `{
  "analysis": {"caesar_candidates": 3, "max_combinations": 64, "stop_on_plausible": true},
  "watch": {"mode": "vigenere"}
}`,
		"config.yaml": `
analysis:
  caesar_candidates: 3
  max_combinations: 64
  stop_on_plausible: true
watch:
  mode: vigenere
`,
	}

	for name, content := range docs {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}

			if cfg.Analysis.CaesarCandidates != 3 {
				t.Errorf("expected 3 caesar candidates, got %d", cfg.Analysis.CaesarCandidates)
			}
			if cfg.Analysis.MaxCombinations != 64 {
				t.Errorf("expected 64 max combinations, got %d", cfg.Analysis.MaxCombinations)
			}
			if !cfg.Analysis.StopOnPlausible {
				t.Error("expected stop_on_plausible to be set")
			}
			if cfg.Watch.Mode != ModeVigenere {
				t.Errorf("expected vigenere mode, got %s", cfg.Watch.Mode)
			}
			// Untouched fields keep their defaults.
			if cfg.Analysis.CandidatesPerBucket != 1 {
				t.Errorf("expected default candidates per bucket, got %d", cfg.Analysis.CandidatesPerBucket)
			}
			if cfg.Logging.Level != "info" {
				t.Errorf("expected default log level, got %s", cfg.Logging.Level)
			}
		})
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[analysis\ncaesar_candidates = "), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CRYPTANALYSE_PROFILE", "/profiles/french.toml")
	t.Setenv("CRYPTANALYSE_STORAGE_PATH", "/tmp/history.db")
	t.Setenv("CRYPTANALYSE_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()

	if cfg.Analysis.ProfilePath != "/profiles/french.toml" {
		t.Errorf("profile override not applied: %s", cfg.Analysis.ProfilePath)
	}
	if cfg.Storage.Path != "/tmp/history.db" {
		t.Errorf("storage override not applied: %s", cfg.Storage.Path)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level override not applied: %s", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"version", func(c *Config) { c.Version = 99 }, "version"},
		{"caesar_candidates", func(c *Config) { c.Analysis.CaesarCandidates = 27 }, "analysis.caesar_candidates"},
		{"candidates_per_bucket", func(c *Config) { c.Analysis.CandidatesPerBucket = 0 }, "analysis.candidates_per_bucket"},
		{"max_combinations", func(c *Config) { c.Analysis.MaxCombinations = 0 }, "analysis.max_combinations"},
		{"threshold", func(c *Config) { c.Analysis.PlausibilityThreshold = 1.5 }, "analysis.plausibility_threshold"},
		{"period", func(c *Config) { c.Analysis.Period = -1 }, "analysis.period"},
		{"profile_format", func(c *Config) { c.Analysis.ProfilePath = "english.ini" }, "analysis.profile_path"},
		{"storage_path", func(c *Config) { c.Storage = StorageConfig{Enabled: true} }, "storage.path"},
		{"debounce", func(c *Config) { c.Watch.DebounceMs = 10 }, "watch.debounce_ms"},
		{"mode", func(c *Config) { c.Watch.Mode = "playfair" }, "watch.mode"},
		{"status_addr", func(c *Config) { c.Watch.StatusAddr = "9464" }, "watch.status_addr"},
		{"glob", func(c *Config) { c.Watch.IncludePatterns = []string{"[a-"} }, "watch.include_patterns[0]"},
		{"log_level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"log_output", func(c *Config) { c.Logging = LoggingConfig{Level: "info", Format: "text", Output: "both", MaxSizeMB: 1} }, "logging.file_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}

			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %T", err)
			}
			found := false
			for _, v := range verrs {
				if v.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %s, got %v", tt.field, verrs)
			}
		})
	}
}

func TestValidateMissingWatchPathIsWarning(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Watch.Paths = []string{filepath.Join(t.TempDir(), "inbox")}

	if err := cfg.Validate(); err != nil {
		t.Errorf("missing inbox should only warn: %v", err)
	}

	errs := validateWatch(&cfg.Watch)
	if len(errs.Warnings()) != 1 {
		t.Errorf("expected 1 warning, got %d", len(errs.Warnings()))
	}
}

func TestEnsureDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Storage.Path = filepath.Join(tmpDir, "data", "history.db")
	cfg.Logging.Output = "file"
	cfg.Logging.FilePath = filepath.Join(tmpDir, "logs", "cryptanalyse.log")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{"data", "logs"} {
		info, err := os.Stat(filepath.Join(tmpDir, dir))
		if err != nil {
			t.Errorf("directory %s not created: %v", dir, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Watch.Paths = []string{"/inbox"}

	clone := cfg.Clone()
	clone.Watch.Paths[0] = "/other"
	clone.Analysis.CaesarCandidates = 1

	if cfg.Watch.Paths[0] != "/inbox" {
		t.Error("clone shares watch paths with its source")
	}
	if cfg.Analysis.CaesarCandidates != 5 {
		t.Error("clone shares analysis settings with its source")
	}
}

func TestMerge(t *testing.T) {
	dst := DefaultConfig()
	src := &Config{}
	src.Analysis.MaxCombinations = 10
	src.Watch.Paths = []string{"/inbox"}
	src.Logging.Level = "debug"

	merged := Merge(dst, src)

	if merged.Analysis.MaxCombinations != 10 {
		t.Errorf("expected 10 max combinations, got %d", merged.Analysis.MaxCombinations)
	}
	if merged.Analysis.CaesarCandidates != 5 {
		t.Errorf("zero value in src should not override, got %d", merged.Analysis.CaesarCandidates)
	}
	if len(merged.Watch.Paths) != 1 || merged.Watch.Paths[0] != "/inbox" {
		t.Errorf("unexpected watch paths: %v", merged.Watch.Paths)
	}
	if merged.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %s", merged.Logging.Level)
	}
	if dst.Logging.Level != "info" {
		t.Error("Merge modified dst")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"config.toml", "config.json", "config.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)

			cfg := DefaultConfig()
			cfg.Analysis.CandidatesPerBucket = 3
			cfg.Watch.Paths = []string{"/inbox"}
			if err := Save(cfg, path); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if loaded.Analysis.CandidatesPerBucket != 3 {
				t.Errorf("expected 3 candidates per bucket, got %d", loaded.Analysis.CandidatesPerBucket)
			}
			if len(loaded.Watch.Paths) != 1 || loaded.Watch.Paths[0] != "/inbox" {
				t.Errorf("unexpected watch paths: %v", loaded.Watch.Paths)
			}
		})
	}
}

func TestLoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	_, created, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if !created {
		t.Error("expected config file to be created")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file missing: %v", err)
	}

	_, created, err = LoadOrCreate(path)
	if err != nil {
		t.Fatalf("second LoadOrCreate failed: %v", err)
	}
	if created {
		t.Error("expected existing config to be loaded")
	}
}

func TestLoaderHotReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[analysis]\ncaesar_candidates = 2\n"), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	loader := NewLoader(path)
	defer loader.Close()

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Analysis.CaesarCandidates != 2 {
		t.Fatalf("expected 2 caesar candidates, got %d", cfg.Analysis.CaesarCandidates)
	}

	changed := make(chan *Config, 1)
	loader.OnChange(func(old, new *Config) {
		select {
		case changed <- new:
		default:
		}
	})
	if err := loader.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("[analysis]\ncaesar_candidates = 7\n"), 0600); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case newCfg := <-changed:
		if newCfg.Analysis.CaesarCandidates != 7 {
			t.Errorf("expected 7 caesar candidates, got %d", newCfg.Analysis.CaesarCandidates)
		}
		if loader.Config().Analysis.CaesarCandidates != 7 {
			t.Error("loader did not swap in the new config")
		}
	case err := <-loader.Errors():
		t.Fatalf("reload error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}
