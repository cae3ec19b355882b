// Package config handles configuration loading, validation, and management for cryptanalyse.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Version is the current configuration schema version.
const Version = 1

// Analysis modes for watched files.
const (
	ModeAuto     = "auto"
	ModeCaesar   = "caesar"
	ModeVigenere = "vigenere"
)

// Config holds the complete cryptanalyse configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Analysis configuration for the statistical engine.
	Analysis AnalysisConfig `toml:"analysis" json:"analysis" yaml:"analysis"`

	// Storage configuration for the analysis history.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Watch configuration for inbox directories.
	Watch WatchConfig `toml:"watch" json:"watch" yaml:"watch"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// mu protects concurrent access to the config.
	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// AnalysisConfig holds key-search settings.
type AnalysisConfig struct {
	// ProfilePath is a frequency profile document (TOML, JSON or YAML).
	// Empty selects the built-in English profile.
	ProfilePath string `toml:"profile_path" json:"profile_path" yaml:"profile_path"`

	// CaesarCandidates is the number of ranked Caesar keys reported.
	CaesarCandidates int `toml:"caesar_candidates" json:"caesar_candidates" yaml:"caesar_candidates"`

	// CandidatesPerBucket is the number of ranked keys each Vigenère bucket
	// contributes to the key-vector product.
	CandidatesPerBucket int `toml:"candidates_per_bucket" json:"candidates_per_bucket" yaml:"candidates_per_bucket"`

	// MaxCombinations bounds the key-vector product.
	MaxCombinations int `toml:"max_combinations" json:"max_combinations" yaml:"max_combinations"`

	// StopOnPlausible ends the Vigenère search at the first candidate whose
	// fitness reaches PlausibilityThreshold.
	StopOnPlausible bool `toml:"stop_on_plausible" json:"stop_on_plausible" yaml:"stop_on_plausible"`

	// PlausibilityThreshold is the minimum fitness of a plausible plaintext.
	PlausibilityThreshold float64 `toml:"plausibility_threshold" json:"plausibility_threshold" yaml:"plausibility_threshold"`

	// Period forces the Vigenère key period. 0 estimates it from the index
	// of coincidence.
	Period int `toml:"period" json:"period" yaml:"period"`
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	// Enabled records every analysis in the history database.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the path to the SQLite database file.
	Path string `toml:"path" json:"path" yaml:"path"`

	// BusyTimeoutMs is the SQLite busy timeout in milliseconds.
	BusyTimeoutMs int `toml:"busy_timeout_ms" json:"busy_timeout_ms" yaml:"busy_timeout_ms"`
}

// WatchConfig holds inbox watching configuration.
type WatchConfig struct {
	// Paths is a list of directories to monitor for ciphertext files.
	Paths []string `toml:"paths" json:"paths" yaml:"paths"`

	// IncludePatterns are glob patterns for files to include.
	// If empty, all files are included.
	IncludePatterns []string `toml:"include_patterns" json:"include_patterns" yaml:"include_patterns"`

	// ExcludePatterns are glob patterns for files to exclude.
	ExcludePatterns []string `toml:"exclude_patterns" json:"exclude_patterns" yaml:"exclude_patterns"`

	// DebounceMs is the debounce interval in milliseconds.
	// Files must be stable for this duration before they are analysed.
	DebounceMs int `toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms"`

	// MaxFileSize is the maximum file size to analyse in bytes.
	MaxFileSize int64 `toml:"max_file_size" json:"max_file_size" yaml:"max_file_size"`

	// Mode selects the analysis run on each file: auto, caesar or vigenere.
	Mode string `toml:"mode" json:"mode" yaml:"mode"`

	// StatusAddr is the listen address for the metrics and health endpoints
	// while watching, e.g. "127.0.0.1:9464". Empty disables them.
	StatusAddr string `toml:"status_addr" json:"status_addr" yaml:"status_addr"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: text or json.
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is where logs go: stdout, stderr, file or both.
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file path when Output includes a file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays is how long rotated files are kept.
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`

	// Compress gzips rotated files.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`

	// RedactText logs letter counts instead of ciphertext and plaintext.
	RedactText bool `toml:"redact_text" json:"redact_text" yaml:"redact_text"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := DataDir()

	return &Config{
		Version: Version,
		Analysis: AnalysisConfig{
			ProfilePath:           "",
			CaesarCandidates:      5,
			CandidatesPerBucket:   1,
			MaxCombinations:       4096,
			StopOnPlausible:       false,
			PlausibilityThreshold: 0.055,
			Period:                0,
		},
		Storage: StorageConfig{
			Enabled:       false,
			Path:          filepath.Join(dir, "history.db"),
			BusyTimeoutMs: 5000,
		},
		Watch: WatchConfig{
			Paths:           []string{},
			IncludePatterns: []string{"*.txt", "*.cipher", "*.ct"},
			ExcludePatterns: []string{".*", "*~", "*.tmp", "*.swp"},
			DebounceMs:      1000,
			MaxFileSize:     1024 * 1024, // 1MB
			Mode:            ModeAuto,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformLogDir(), "cryptanalyse.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// DataDir returns the base data directory.
// Uses platform-specific paths or the CRYPTANALYSE_DATA_DIR override.
func DataDir() string {
	if envDir := os.Getenv("CRYPTANALYSE_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the directories the configured files live in.
func (c *Config) EnsureDirectories() error {
	dirs := []string{filepath.Dir(c.Storage.Path)}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with CRYPTANALYSE_ and use underscores.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv("CRYPTANALYSE_PROFILE"); v != "" {
		c.Analysis.ProfilePath = v
	}

	if v := os.Getenv("CRYPTANALYSE_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}

	if v := os.Getenv("CRYPTANALYSE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CRYPTANALYSE_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("CRYPTANALYSE_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := &Config{
		Version:  c.Version,
		Analysis: c.Analysis,
		Storage:  c.Storage,
		Watch:    c.Watch,
		Logging:  c.Logging,
	}

	clone.Watch.Paths = append([]string{}, c.Watch.Paths...)
	clone.Watch.IncludePatterns = append([]string{}, c.Watch.IncludePatterns...)
	clone.Watch.ExcludePatterns = append([]string{}, c.Watch.ExcludePatterns...)

	return clone
}

// Save writes the configuration to path in the format given by its
// extension (TOML when unknown).
func Save(c *Config, path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var buf bytes.Buffer
	switch filepath.Ext(path) {
	case ".json":
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("encode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.NewEncoder(&buf).Encode(c); err != nil {
			return fmt.Errorf("encode YAML: %w", err)
		}
	default:
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return fmt.Errorf("encode TOML: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
