package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niraj-rajbhandari/cryptanalyse/internal/analysis"
	"github.com/niraj-rajbhandari/cryptanalyse/internal/health"
	"github.com/niraj-rajbhandari/cryptanalyse/internal/metrics"
	"github.com/niraj-rajbhandari/cryptanalyse/internal/store"
	"github.com/niraj-rajbhandari/cryptanalyse/internal/watcher"
)

var taleOfTwoCities = strings.Join([]string{
	"IT WAS THE BEST OF TIMES IT WAS THE WORST OF TIMES",
	"IT WAS THE AGE OF WISDOM IT WAS THE AGE OF FOOLISHNESS",
	"IT WAS THE EPOCH OF BELIEF IT WAS THE EPOCH OF INCREDULITY",
	"IT WAS THE SEASON OF LIGHT IT WAS THE SEASON OF DARKNESS",
	"IT WAS THE SPRING OF HOPE IT WAS THE WINTER OF DESPAIR",
	"WE HAD EVERYTHING BEFORE US WE HAD NOTHING BEFORE US",
	"WE WERE ALL GOING DIRECT TO HEAVEN WE WERE ALL GOING DIRECT THE OTHER WAY",
}, " ")

// testEnv writes a config file into a fresh directory and points the data
// directory there.
type testEnv struct {
	dir        string
	configPath string
	dbPath     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CRYPTANALYSE_DATA_DIR", dir)
	for _, k := range []string{
		"CRYPTANALYSE_PROFILE",
		"CRYPTANALYSE_STORAGE_PATH",
		"CRYPTANALYSE_LOG_LEVEL",
		"CRYPTANALYSE_LOG_FORMAT",
		"CRYPTANALYSE_LOG_PATH",
	} {
		t.Setenv(k, "")
	}

	env := &testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.toml"),
		dbPath:     filepath.Join(dir, "history.db"),
	}
	content := fmt.Sprintf(`version = 1

[storage]
path = %q

[watch]
debounce_ms = 100

[logging]
level = "info"
output = "stderr"
`, env.dbPath)
	require.NoError(t, os.WriteFile(env.configPath, []byte(content), 0600))
	return env
}

// exec runs the CLI with the given stdin and returns stdout and stderr.
func (e *testEnv) exec(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(append([]string{"-config", e.configPath}, args...), strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func vigenereCiphertext(t *testing.T) string {
	t.Helper()
	ct, err := analysis.EncipherVigenere(taleOfTwoCities, analysis.KeyVector{10, 4, 24})
	require.NoError(t, err)
	return ct
}

func TestHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"help"}, strings.NewReader(""), &stdout, &stderr))
	assert.Contains(t, stdout.String(), "COMMANDS:")
	assert.Contains(t, stdout.String(), "vigenere")
}

func TestUsageErrors(t *testing.T) {
	env := newTestEnv(t)

	var stdout, stderr bytes.Buffer
	assert.ErrorIs(t, run(nil, strings.NewReader(""), &stdout, &stderr), errUsage)

	_, stderrOut, err := env.exec(t, "", "frobnicate")
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, stderrOut, "Unknown command: frobnicate")

	_, _, err = env.exec(t, "", "encrypt", "hello")
	assert.ErrorIs(t, err, errUsage)

	_, _, err = env.exec(t, "", "history")
	assert.ErrorIs(t, err, errUsage)

	_, _, err = env.exec(t, "", "-format", "xml", "ic", "hello")
	assert.Error(t, err)
}

func TestCaesarCommand(t *testing.T) {
	env := newTestEnv(t)

	stdout, _, err := env.exec(t, "", "caesar", "MJQQT", "BTWQI")
	require.NoError(t, err)
	assert.Contains(t, stdout, "=== Caesar Analysis ===")
	assert.Contains(t, stdout, "HELLO WORLD")

	// Recording is off by default.
	_, err = os.Stat(env.dbPath)
	assert.True(t, os.IsNotExist(err))
}

func TestCaesarFromStdinAndFile(t *testing.T) {
	env := newTestEnv(t)

	stdout, _, err := env.exec(t, "MJQQT BTWQI\n", "caesar", "-n", "26")
	require.NoError(t, err)
	assert.Contains(t, stdout, "HELLO WORLD")
	assert.Equal(t, 26, strings.Count(stdout, "] key "))

	path := filepath.Join(env.dir, "msg.txt")
	require.NoError(t, os.WriteFile(path, []byte("MJQQT BTWQI"), 0600))
	stdout, _, err = env.exec(t, "", "caesar", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Source:  "+path)
	assert.Contains(t, stdout, "HELLO WORLD")

	_, _, err = env.exec(t, "   \n", "caesar")
	assert.Error(t, err)
}

func TestCaesarJSON(t *testing.T) {
	env := newTestEnv(t)

	stdout, _, err := env.exec(t, "", "-format", "json", "caesar", "-n", "5", "MJQQT BTWQI")
	require.NoError(t, err)

	var decoded struct {
		Candidates []struct {
			Key       int    `json:"key"`
			Plaintext string `json:"plaintext"`
		} `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &decoded))
	require.Len(t, decoded.Candidates, 5)

	var found bool
	for _, c := range decoded.Candidates {
		if c.Key == 5 {
			found = true
			assert.Equal(t, "HELLO WORLD", c.Plaintext)
		}
	}
	assert.True(t, found, "key 5 should be ranked in the top five")
}

func TestVigenereCommand(t *testing.T) {
	env := newTestEnv(t)
	ct := vigenereCiphertext(t)

	stdout, _, err := env.exec(t, "", "vigenere", ct)
	require.NoError(t, err)
	assert.Contains(t, stdout, "=== Vigenère Analysis ===")
	assert.Contains(t, stdout, "Key period:           3")
	assert.Contains(t, stdout, "[1] key KEY")
	assert.Contains(t, stdout, taleOfTwoCities)
	assert.Contains(t, stdout, strings.Join(strings.Fields(taleOfTwoCities), ""))

	stdout, _, err = env.exec(t, "", "vigenere", "-period", "3", "-candidates", "2", ct)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Candidates: 8 of 8 key vectors")

	_, _, err = env.exec(t, "", "vigenere", "-period", "3", "-candidates", "26", "-max", "100", ct)
	assert.ErrorIs(t, err, analysis.ErrSearchSpaceTooLarge)
}

func TestAnalyzeCommand(t *testing.T) {
	env := newTestEnv(t)

	stdout, _, err := env.exec(t, "", "analyze", vigenereCiphertext(t))
	require.NoError(t, err)
	assert.Contains(t, stdout, "=== Caesar Analysis ===")
	assert.Contains(t, stdout, "[1] key KEY")

	// Too short to place on the period table: the Vigenère half is skipped.
	stdout, stderr, err := env.exec(t, "", "analyze", "MJQQT BTWQI")
	require.NoError(t, err)
	assert.Contains(t, stdout, "HELLO WORLD")
	assert.Contains(t, stdout, "Skipped: unhandled index of coincidence")
	assert.Contains(t, stderr, "vigenere analysis skipped")
}

func TestStatsCommands(t *testing.T) {
	env := newTestEnv(t)
	ct := vigenereCiphertext(t)

	stdout, _, err := env.exec(t, "", "ic", "HELLO WORLD")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Letters:              10")
	assert.Contains(t, stdout, "Index of coincidence: 0.0889")
	assert.NotContains(t, stdout, "Key period")

	stdout, _, err = env.exec(t, "", "period", ct)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Key period:           3")

	_, _, err = env.exec(t, "", "ic", "A")
	assert.ErrorIs(t, err, analysis.ErrDegenerateInput)
}

func TestEncryptDecrypt(t *testing.T) {
	env := newTestEnv(t)

	stdout, _, err := env.exec(t, "", "encrypt", "-key", "LEMON", "attack at dawn")
	require.NoError(t, err)
	assert.Equal(t, "LXFOPV EF RNHR\n", stdout)

	stdout, _, err = env.exec(t, "", "decrypt", "-key", "lemon", "LXFOPV EF RNHR")
	require.NoError(t, err)
	assert.Equal(t, "ATTACK AT DAWN\n", stdout)

	stdout, _, err = env.exec(t, "", "encrypt", "-key", "3", "xyz abc")
	require.NoError(t, err)
	assert.Equal(t, "ABC DEF\n", stdout)

	_, _, err = env.exec(t, "", "encrypt", "-key", "26", "abc")
	assert.ErrorIs(t, err, analysis.ErrInvalidIndex)

	_, _, err = env.exec(t, "", "encrypt", "-key", "123!", "abc")
	assert.Error(t, err)
}

func TestHistoryCommands(t *testing.T) {
	env := newTestEnv(t)
	ct := vigenereCiphertext(t)

	_, _, err := env.exec(t, "", "-save", "vigenere", ct)
	require.NoError(t, err)
	_, _, err = env.exec(t, "", "-save", "caesar", "MJQQT BTWQI")
	require.NoError(t, err)

	stdout, _, err := env.exec(t, "", "history", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "=== Analysis History ===")
	assert.Contains(t, stdout, "vigenere")
	assert.Contains(t, stdout, "KEY")

	stdout, _, err = env.exec(t, "", "-format", "json", "history", "list", "-kind", "vigenere")
	require.NoError(t, err)
	var entries []struct {
		ID   int64  `json:"id"`
		Kind string `json:"kind"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "vigenere", entries[0].Kind)
	id := entries[0].ID

	stdout, _, err = env.exec(t, "", "history", "show", fmt.Sprint(id))
	require.NoError(t, err)
	assert.Contains(t, stdout, "[1] key KEY")
	assert.Contains(t, stdout, ct)

	// Layout and case do not matter for lookups.
	stdout, _, err = env.exec(t, "", "history", "find", strings.ToLower(strings.ReplaceAll(ct, " ", "")))
	require.NoError(t, err)
	assert.Contains(t, stdout, "vigenere")

	stdout, _, err = env.exec(t, "", "history", "stats")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Analyses:  2 (1 caesar, 1 vigenère)")

	_, _, err = env.exec(t, "", "history", "list", "-kind", "enigma")
	assert.Error(t, err)

	stdout, _, err = env.exec(t, "", "history", "delete", fmt.Sprint(id))
	require.NoError(t, err)
	assert.Contains(t, stdout, fmt.Sprintf("Deleted analysis #%d", id))

	_, _, err = env.exec(t, "", "history", "show", fmt.Sprint(id))
	assert.ErrorIs(t, err, store.ErrNotFound)

	stdout, _, err = env.exec(t, "", "history", "prune", "-older-than", "1ns")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Removed 1 analyses")

	_, _, err = env.exec(t, "", "history", "show", "abc")
	assert.Error(t, err)
}

func TestProfileCommands(t *testing.T) {
	env := newTestEnv(t)

	stdout, _, err := env.exec(t, "", "profile", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Profile: english")

	path := filepath.Join(env.dir, "english.yaml")
	_, _, err = env.exec(t, "", "profile", "export", path)
	require.NoError(t, err)

	stdout, _, err = env.exec(t, "", "profile", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, `valid profile "english"`)

	// The exported document works as a scoring profile.
	stdout, _, err = env.exec(t, "", "-profile", path, "caesar", "MJQQT BTWQI")
	require.NoError(t, err)
	assert.Contains(t, stdout, "HELLO WORLD")

	bad := filepath.Join(env.dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"name":"x","frequencies":{"A":1}}`), 0600))
	_, _, err = env.exec(t, "", "profile", "validate", bad)
	assert.Error(t, err)
}

// syncBuffer is a bytes.Buffer safe for the watch loop and the test to share.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timed out: %s", msg)
}

func TestWatchLoop(t *testing.T) {
	env := newTestEnv(t)
	inbox := filepath.Join(env.dir, "inbox")
	require.NoError(t, os.MkdirAll(inbox, 0700))

	stdout, stderr := &syncBuffer{}, &syncBuffer{}
	a, err := newApp(env.configPath, "", "text", false, strings.NewReader(""), stdout, stderr)
	require.NoError(t, err)
	defer a.log.Close()
	a.save = true

	st, err := a.openStore()
	require.NoError(t, err)
	defer st.Close()

	w, err := watcher.New(watcher.Options{
		Paths:           []string{inbox},
		IncludePatterns: []string{"*.txt"},
		Debounce:        100 * time.Millisecond,
	})
	require.NoError(t, err)

	wm := metrics.NewWatchMetrics(metrics.NewRegistry("test"))
	checker := health.NewChecker()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.watchLoop(ctx, w, "auto", st, wm, checker) }()
	waitFor(t, 2*time.Second, checker.IsReady, "watcher started")
	time.Sleep(100 * time.Millisecond)

	ct := vigenereCiphertext(t)
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "first.txt"), []byte(ct), 0600))

	count := func() int {
		list, err := st.ListAnalyses(store.ListFilter{})
		require.NoError(t, err)
		return len(list)
	}
	waitFor(t, 5*time.Second, func() bool { return count() == 1 }, "first file analysed")
	assert.Contains(t, stdout.String(), "[1] key KEY")

	list, err := st.ListAnalyses(store.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, store.KindVigenere, list[0].Kind)
	assert.Equal(t, filepath.Join(inbox, "first.txt"), list[0].Source)

	// The same ciphertext under another name is recognised and skipped.
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "second.txt"), []byte(strings.ToLower(ct)), 0600))
	waitFor(t, 5*time.Second, func() bool {
		return strings.Contains(stderr.String(), "ciphertext already analysed")
	}, "duplicate detected")
	assert.Equal(t, 1, count())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("watch loop did not stop")
	}

	assert.False(t, checker.IsReady())
	assert.Equal(t, uint64(2), wm.FilesTotal.Value())
	assert.Equal(t, uint64(1), wm.VigenereTotal.Value())
	assert.Equal(t, uint64(0), wm.CaesarTotal.Value())
	assert.Equal(t, uint64(1), wm.DuplicatesTotal.Value())
	assert.Equal(t, uint64(1), wm.AnalysisDuration.Count())
	assert.Contains(t, stderr.String(), "watch stopped")
}

func TestStatusHandler(t *testing.T) {
	reg := metrics.NewRegistry("cryptanalyse")
	wm := metrics.NewWatchMetrics(reg)
	wm.RecordAnalysis("caesar", 10*time.Millisecond)

	checker := health.NewChecker()
	checker.RegisterFunc("watch_paths", false, health.DirectoriesCheck([]string{t.TempDir()}))
	srv := httptest.NewServer(statusHandler(reg, checker))
	defer srv.Close()

	get := func(path string) (int, string) {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	code, body := get("/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `cryptanalyse_analyses_total{kind="caesar"} 1`)

	code, _ = get("/livez")
	assert.Equal(t, http.StatusOK, code)

	code, _ = get("/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	checker.SetReady(true)
	code, _ = get("/readyz")
	assert.Equal(t, http.StatusOK, code)

	code, body = get("/healthz?full=true")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"watch_paths"`)
}

func TestStartStatusServerBusyPort(t *testing.T) {
	reg := metrics.NewRegistry("")
	checker := health.NewChecker()

	srv, err := startStatusServer("127.0.0.1:0", reg, checker)
	require.NoError(t, err)
	defer srv.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	_, err = startStatusServer(ln.Addr().String(), reg, checker)
	assert.Error(t, err)
}

func TestChooseKind(t *testing.T) {
	env := newTestEnv(t)
	a, err := newApp(env.configPath, "", "text", false, strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, err)
	defer a.log.Close()

	assert.Equal(t, store.KindCaesar, chooseKind("caesar", vigenereCiphertext(t), a.log))
	assert.Equal(t, store.KindVigenere, chooseKind("vigenere", "MJQQT", a.log))
	assert.Equal(t, store.KindVigenere, chooseKind("auto", vigenereCiphertext(t), a.log))
	assert.Equal(t, store.KindCaesar, chooseKind("auto", "MJQQT BTWQI", a.log))
	assert.Equal(t, store.KindCaesar, chooseKind("auto", "", a.log))
}
