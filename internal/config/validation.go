package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Unwrap lets errors.Is match ErrInvalidConfig.
func (e ValidationErrors) Unwrap() error {
	return ErrInvalidConfig
}

// ValidateConfig checks every section and returns all problems at once.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateAnalysis(&c.Analysis)...)
	errs = append(errs, validateStorage(&c.Storage)...)
	errs = append(errs, validateWatch(&c.Watch)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if errs.HasErrors() {
		return errs.Errors()
	}
	return nil
}

func validateAnalysis(a *AnalysisConfig) ValidationErrors {
	var errs ValidationErrors

	if a.ProfilePath != "" {
		switch strings.ToLower(filepath.Ext(a.ProfilePath)) {
		case ".toml", ".json", ".yaml", ".yml":
		default:
			errs = append(errs, ValidationError{
				Field:   "analysis.profile_path",
				Message: fmt.Sprintf("unsupported profile format: %s", a.ProfilePath),
			})
		}
	}

	if a.CaesarCandidates < 1 || a.CaesarCandidates > 26 {
		errs = append(errs, *RangeError("analysis.caesar_candidates", 1, 26))
	}

	if a.CandidatesPerBucket < 1 || a.CandidatesPerBucket > 26 {
		errs = append(errs, *RangeError("analysis.candidates_per_bucket", 1, 26))
	}

	if a.MaxCombinations < 1 {
		errs = append(errs, ValidationError{
			Field:   "analysis.max_combinations",
			Message: "max combinations must be at least 1",
		})
	}

	if a.PlausibilityThreshold < 0 || a.PlausibilityThreshold > 1 {
		errs = append(errs, *RangeError("analysis.plausibility_threshold", 0, 1))
	}

	if a.Period < 0 {
		errs = append(errs, ValidationError{
			Field:   "analysis.period",
			Message: "period cannot be negative (0 estimates it)",
		})
	}

	return errs
}

func validateStorage(s *StorageConfig) ValidationErrors {
	var errs ValidationErrors

	if s.Enabled && s.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "storage.path",
			Message: "database path is required when storage is enabled",
		})
	}

	if s.BusyTimeoutMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "storage.busy_timeout_ms",
			Message: "busy timeout cannot be negative",
		})
	}

	return errs
}

func validateWatch(w *WatchConfig) ValidationErrors {
	var errs ValidationErrors

	for i, path := range w.Paths {
		if expandPath(path) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("watch.paths[%d]", i),
				Message: "path cannot be empty",
			})
			continue
		}
		if _, err := os.Stat(expandPath(path)); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("watch.paths[%d]", i),
				Message: fmt.Sprintf("path does not exist yet: %s", path),
			})
		}
	}

	if w.DebounceMs < 100 {
		errs = append(errs, ValidationError{
			Field:   "watch.debounce_ms",
			Message: "debounce must be at least 100ms",
		})
	}
	if w.DebounceMs > 60000 {
		errs = append(errs, ValidationError{
			Field:   "watch.debounce_ms",
			Message: "debounce cannot exceed 60000ms (1 minute)",
		})
	}

	if w.MaxFileSize < 0 {
		errs = append(errs, ValidationError{
			Field:   "watch.max_file_size",
			Message: "max file size cannot be negative",
		})
	}

	switch w.Mode {
	case ModeAuto, ModeCaesar, ModeVigenere:
	default:
		errs = append(errs, ValidationError{
			Field:   "watch.mode",
			Message: fmt.Sprintf("invalid mode: %s (valid: auto, caesar, vigenere)", w.Mode),
		})
	}

	if w.StatusAddr != "" {
		if _, _, err := net.SplitHostPort(w.StatusAddr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "watch.status_addr",
				Message: fmt.Sprintf("invalid listen address: %s", w.StatusAddr),
			})
		}
	}

	for i, pattern := range w.IncludePatterns {
		if !isValidGlobPattern(pattern) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("watch.include_patterns[%d]", i),
				Message: fmt.Sprintf("invalid glob pattern: %s", pattern),
			})
		}
	}

	for i, pattern := range w.ExcludePatterns {
		if !isValidGlobPattern(pattern) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("watch.exclude_patterns[%d]", i),
				Message: fmt.Sprintf("invalid glob pattern: %s", pattern),
			})
		}
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: fmt.Sprintf("file path is required when output is '%s'", l.Output),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %q (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}

	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}

	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}

	return errs
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func isValidGlobPattern(pattern string) bool {
	if pattern == "" {
		return false
	}
	_, err := filepath.Match(pattern, "test")
	return err == nil
}

// IsWarning returns true if this is a non-fatal validation issue.
func (e *ValidationError) IsWarning() bool {
	warningFields := []string{
		"watch.paths", // inbox directories may be created later
	}
	for _, f := range warningFields {
		if strings.HasPrefix(e.Field, f) && strings.HasPrefix(e.Message, "path does not exist") {
			return true
		}
	}
	return false
}

// Warnings returns only warning-level validation errors.
func (e ValidationErrors) Warnings() ValidationErrors {
	var warnings ValidationErrors
	for _, err := range e {
		if err.IsWarning() {
			warnings = append(warnings, err)
		}
	}
	return warnings
}

// Errors returns only error-level validation errors.
func (e ValidationErrors) Errors() ValidationErrors {
	var errs ValidationErrors
	for _, err := range e {
		if !err.IsWarning() {
			errs = append(errs, err)
		}
	}
	return errs
}

// HasErrors returns true if there are any non-warning errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e.Errors()) > 0
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}
