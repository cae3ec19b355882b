package logging

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"invalid", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !test.hasError && level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(json) = %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestLevelString(t *testing.T) {
	for _, level := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		parsed, err := ParseLevel(LevelString(level))
		if err != nil || parsed != level {
			t.Errorf("LevelString(%v) does not round-trip", level)
		}
	}
}

func newBufferLogger(t *testing.T, mutate func(*Config)) (*Logger, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = FormatJSON
	cfg.Writer = &buf
	if mutate != nil {
		mutate(cfg)
	}

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger, &buf
}

func decodeRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var record map[string]any
	line := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		t.Fatalf("invalid JSON record %q: %v", line, err)
	}
	return record
}

func TestJSONFormat(t *testing.T) {
	logger, buf := newBufferLogger(t, nil)

	logger.Info("caesar solved", "key", 3, "score", 0.061)

	record := decodeRecord(t, buf)
	if record["msg"] != "caesar solved" {
		t.Errorf("unexpected msg: %v", record["msg"])
	}
	if record["component"] != "cryptanalyse" {
		t.Errorf("unexpected component: %v", record["component"])
	}
	// Cipher keys are analysis output, not credentials.
	if record["key"] != float64(3) {
		t.Errorf("key should be logged as-is, got %v", record["key"])
	}
}

func TestLevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(t, func(c *Config) { c.Level = LevelWarn })

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info record written at warn level: %s", buf.String())
	}

	logger.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn record missing")
	}
}

func TestRedaction(t *testing.T) {
	logger, buf := newBufferLogger(t, func(c *Config) { c.RedactText = true })

	logger.Info("decrypted", "plaintext", "ATTACK AT DAWN", "api_token", "abc123")

	record := decodeRecord(t, buf)
	if record[KeyPlaintext] != "[12 letters]" {
		t.Errorf("plaintext not summarised: %v", record[KeyPlaintext])
	}
	if record["api_token"] != "[REDACTED]" {
		t.Errorf("token not redacted: %v", record["api_token"])
	}
}

func TestTextNotRedactedByDefault(t *testing.T) {
	logger, buf := newBufferLogger(t, nil)

	logger.Info("decrypted", "plaintext", "ATTACK AT DAWN")

	record := decodeRecord(t, buf)
	if record[KeyPlaintext] != "ATTACK AT DAWN" {
		t.Errorf("unexpected plaintext: %v", record[KeyPlaintext])
	}
}

func TestShouldRedact(t *testing.T) {
	tests := []struct {
		key      string
		expected bool
	}{
		{"password", true},
		{"PASSWORD", true},
		{"api_key", true},
		{"access_token", true},
		{"credential", true},
		{"key", false},
		{"keys", false},
		{"period", false},
		{"path", false},
	}

	for _, test := range tests {
		t.Run(test.key, func(t *testing.T) {
			if result := shouldRedact(test.key); result != test.expected {
				t.Errorf("shouldRedact(%q) = %v, expected %v", test.key, result, test.expected)
			}
		})
	}
}

func TestRunID(t *testing.T) {
	logger, buf := newBufferLogger(t, func(c *Config) { c.Component = "watch" })

	id1 := logger.NewRunID()
	id2 := logger.WithComponent("other").NewRunID()
	if id1 == id2 {
		t.Error("NewRunID returned duplicate IDs")
	}
	if !strings.HasPrefix(id1, "watch-") {
		t.Errorf("run ID should start with component name, got %q", id1)
	}

	ctx := ContextWithRunID(context.Background(), id1)
	if RunIDFromContext(ctx) != id1 {
		t.Error("run ID not carried by context")
	}
	if RunIDFromContext(context.Background()) != "" {
		t.Error("expected empty run ID")
	}

	logger.WithContext(ctx).Info("analysed")
	record := decodeRecord(t, buf)
	if record["run_id"] != id1 {
		t.Errorf("unexpected run_id: %v", record["run_id"])
	}
}

func TestRecover(t *testing.T) {
	logger, buf := newBufferLogger(t, nil)

	func() {
		defer logger.Recover("analyse")
		panic("boom")
	}()

	record := decodeRecord(t, buf)
	if record["panic"] != "boom" || record["op"] != "analyse" {
		t.Errorf("unexpected record: %v", record)
	}
}

func TestFileOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "cryptanalyse.log")

	cfg := DefaultConfig()
	cfg.Output = "file"
	cfg.FilePath = logPath

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	logger.Info("hello")
	if err := logger.Sync(); err != nil {
		t.Errorf("sync failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "msg=hello") {
		t.Errorf("unexpected log contents: %s", data)
	}
}

func TestFileRotatorRotation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	rotator, err := NewFileRotator(&Config{
		FilePath:   logPath,
		MaxSize:    1,
		MaxBackups: 2,
		Compress:   false,
	})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}

	for i := 0; i < 4; i++ {
		if _, err := rotator.Write([]byte("line\n")); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		if err := rotator.Rotate(); err != nil {
			t.Fatalf("rotate failed: %v", err)
		}
	}
	if err := rotator.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	// The last prune ran after the final rotation.
	files := rotator.LogFiles()
	if len(files) != 3 {
		t.Errorf("expected current file plus 2 backups, got %v", files)
	}
}

func TestFileRotatorSizeLimit(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	rotator, err := NewFileRotator(&Config{FilePath: logPath, MaxSize: 1})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}

	chunk := bytes.Repeat([]byte("x"), 600*1024)
	for i := 0; i < 2; i++ {
		if _, err := rotator.Write(chunk); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	rotator.Close()

	if files := rotator.LogFiles(); len(files) != 2 {
		t.Errorf("expected one rotation, got %v", files)
	}
	info, err := os.Stat(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != int64(len(chunk)) {
		t.Errorf("expected fresh file with one chunk, got %d bytes", info.Size())
	}
}

func TestFileRotatorDailyRotation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	rotator, err := NewFileRotator(&Config{FilePath: logPath, MaxSize: 10})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}
	defer rotator.Close()

	rotator.Write([]byte("yesterday\n"))
	tomorrow := time.Now().Add(24 * time.Hour)
	rotator.now = func() time.Time { return tomorrow }
	rotator.Write([]byte("today\n"))

	if files := rotator.LogFiles(); len(files) != 2 {
		t.Errorf("expected a day rollover, got %v", files)
	}
}

func TestFileRotatorCompress(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	rotator, err := NewFileRotator(&Config{FilePath: logPath, MaxSize: 10, Compress: true})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}

	rotator.Write([]byte("compressed line\n"))
	if err := rotator.Rotate(); err != nil {
		t.Fatalf("rotate failed: %v", err)
	}
	rotator.Close()

	files := rotator.LogFiles()
	if len(files) != 2 || !strings.HasSuffix(files[1], ".gz") {
		t.Fatalf("expected one gzip backup, got %v", files)
	}

	f, err := os.Open(files[1])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(gz)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "compressed line\n" {
		t.Errorf("unexpected backup contents: %q", data)
	}
}
