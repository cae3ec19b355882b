package metrics

import (
	"time"
)

// WatchMetrics holds the metrics of the watch loop.
type WatchMetrics struct {
	registry *Registry
	started  time.Time

	FilesTotal      *Counter
	CaesarTotal     *Counter
	VigenereTotal   *Counter
	DuplicatesTotal *Counter
	FailuresTotal   *Counter
	WatchErrors     *Counter

	TrackedFiles  *Gauge
	LastAnalysis  *Gauge
	UptimeSeconds *Gauge

	AnalysisDuration *Histogram
	CiphertextLength *Histogram
}

// LetterBuckets are buckets for ciphertext length histograms in letters.
var LetterBuckets = []float64{25, 50, 100, 250, 500, 1000, 2500, 10000, 100000}

// NewWatchMetrics registers the watch loop metrics in registry.
func NewWatchMetrics(registry *Registry) *WatchMetrics {
	analyses := func(kind string) *Counter {
		return registry.Counter("analyses_total", "Analyses completed by attack", Labels{"kind": kind})
	}

	return &WatchMetrics{
		registry: registry,
		started:  time.Now(),

		FilesTotal:      registry.Counter("files_total", "Stable files read from watched directories", nil),
		CaesarTotal:     analyses("caesar"),
		VigenereTotal:   analyses("vigenere"),
		DuplicatesTotal: registry.Counter("duplicates_total", "Files skipped because their ciphertext was already analysed", nil),
		FailuresTotal:   registry.Counter("failures_total", "Files whose analysis failed", nil),
		WatchErrors:     registry.Counter("watch_errors_total", "Errors reported by the file watcher", nil),

		TrackedFiles:  registry.Gauge("tracked_files", "Files waiting for their content to settle", nil),
		LastAnalysis:  registry.Gauge("last_analysis_timestamp", "Unix time of the last completed analysis", nil),
		UptimeSeconds: registry.Gauge("uptime_seconds", "Seconds since the watch loop started", nil),

		AnalysisDuration: registry.Histogram("analysis_duration_seconds", "Time spent analysing one file", nil, DurationBuckets),
		CiphertextLength: registry.Histogram("ciphertext_letters", "Letters per analysed ciphertext", nil, LetterBuckets),
	}
}

// Registry returns the registry the metrics live in.
func (m *WatchMetrics) Registry() *Registry {
	return m.registry
}

// RecordFile records a stable file handed to the analyser.
func (m *WatchMetrics) RecordFile(letters int) {
	m.FilesTotal.Inc()
	m.CiphertextLength.Observe(float64(letters))
}

// RecordAnalysis records a completed analysis of the given kind.
func (m *WatchMetrics) RecordAnalysis(kind string, d time.Duration) {
	switch kind {
	case "caesar":
		m.CaesarTotal.Inc()
	case "vigenere":
		m.VigenereTotal.Inc()
	}
	m.AnalysisDuration.ObserveDuration(d)
	m.LastAnalysis.Set(time.Now().Unix())
}

// RecordDuplicate records a file skipped by fingerprint.
func (m *WatchMetrics) RecordDuplicate() {
	m.DuplicatesTotal.Inc()
}

// RecordFailure records a file whose analysis failed.
func (m *WatchMetrics) RecordFailure() {
	m.FailuresTotal.Inc()
}

// RecordWatchError records an error from the watcher.
func (m *WatchMetrics) RecordWatchError() {
	m.WatchErrors.Inc()
}

// SetTracked sets the number of files waiting to settle.
func (m *WatchMetrics) SetTracked(n int) {
	m.TrackedFiles.Set(int64(n))
}

// UpdateUptime refreshes the uptime gauge.
func (m *WatchMetrics) UpdateUptime() {
	m.UptimeSeconds.Set(int64(time.Since(m.started).Seconds()))
}

// Summary returns key/value pairs describing the session, for logging when
// the loop stops.
func (m *WatchMetrics) Summary() []any {
	m.UpdateUptime()
	return []any{
		"files", m.FilesTotal.Value(),
		"caesar", m.CaesarTotal.Value(),
		"vigenere", m.VigenereTotal.Value(),
		"duplicates", m.DuplicatesTotal.Value(),
		"failures", m.FailuresTotal.Value(),
		"watch_errors", m.WatchErrors.Value(),
		"avg_seconds", m.AnalysisDuration.Mean(),
		"uptime_seconds", m.UptimeSeconds.Value(),
	}
}
