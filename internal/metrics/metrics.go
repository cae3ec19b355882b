// Package metrics provides Prometheus-compatible metrics for the watch loop.
//
// Features:
//   - Counters, gauges and histograms with constant labels
//   - Prometheus text and JSON exposition
//   - HTTP handler for scraping
//   - Thread-safe operations
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MetricType represents the type of metric.
type MetricType int

const (
	// TypeCounter is a monotonically increasing counter.
	TypeCounter MetricType = iota
	// TypeGauge is a value that can go up and down.
	TypeGauge
	// TypeHistogram is a distribution of values.
	TypeHistogram
)

// String returns the exposition name of the metric type.
func (t MetricType) String() string {
	switch t {
	case TypeCounter:
		return "counter"
	case TypeGauge:
		return "gauge"
	case TypeHistogram:
		return "histogram"
	default:
		return "unknown"
	}
}

// Labels represents constant metric labels.
type Labels map[string]string

// String renders labels as {k="v",...} with keys sorted. Empty labels
// render as "".
func (l Labels) String() string {
	if len(l) == 0 {
		return ""
	}
	return "{" + l.join("") + "}"
}

func (l Labels) join(extra string) string {
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(l)+1)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, l[k]))
	}
	if extra != "" {
		parts = append(parts, extra)
	}
	return strings.Join(parts, ",")
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name   string
	help   string
	labels Labels
	value  atomic.Uint64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	c.value.Add(1)
}

// Add adds v to the counter.
func (c *Counter) Add(v uint64) {
	c.value.Add(v)
}

// Value returns the current value.
func (c *Counter) Value() uint64 {
	return c.value.Load()
}

// Gauge is a value that can go up and down.
type Gauge struct {
	name   string
	help   string
	labels Labels
	value  atomic.Int64
}

// Set sets the gauge.
func (g *Gauge) Set(v int64) {
	g.value.Store(v)
}

// Add adds v to the gauge.
func (g *Gauge) Add(v int64) {
	g.value.Add(v)
}

// Value returns the current value.
func (g *Gauge) Value() int64 {
	return g.value.Load()
}

// Histogram tracks the distribution of values.
type Histogram struct {
	name    string
	help    string
	labels  Labels
	buckets []float64

	mu     sync.Mutex
	counts []uint64 // per bucket, last is +Inf
	sum    float64
	count  uint64
}

// DurationBuckets are buckets for duration histograms in seconds.
var DurationBuckets = []float64{
	0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

func newHistogram(name, help string, labels Labels, buckets []float64) *Histogram {
	if buckets == nil {
		buckets = DurationBuckets
	}
	sorted := append([]float64(nil), buckets...)
	sort.Float64s(sorted)

	return &Histogram{
		name:    name,
		help:    help,
		labels:  labels,
		buckets: sorted,
		counts:  make([]uint64, len(sorted)+1),
	}
}

// Observe records a value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += v
	h.count++
	h.counts[sort.SearchFloat64s(h.buckets, v)]++
}

// ObserveDuration records a duration in seconds.
func (h *Histogram) ObserveDuration(d time.Duration) {
	h.Observe(d.Seconds())
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Mean returns the mean of observed values, 0 before the first one.
func (h *Histogram) Mean() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		return 0
	}
	return h.sum / float64(h.count)
}

// cumulative returns the cumulative bucket counts ending with +Inf.
// Caller holds h.mu.
func (h *Histogram) cumulative() []uint64 {
	out := make([]uint64, len(h.counts))
	var total uint64
	for i, n := range h.counts {
		total += n
		out[i] = total
	}
	return out
}

// Registry holds registered metrics. Metrics with the same name and labels
// are registered once.
type Registry struct {
	mu         sync.RWMutex
	namespace  string
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
}

// NewRegistry creates a Registry whose metric names are prefixed with
// namespace.
func NewRegistry(namespace string) *Registry {
	return &Registry{
		namespace:  namespace,
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

func (r *Registry) fullName(name string) string {
	if r.namespace == "" {
		return name
	}
	return r.namespace + "_" + name
}

// Counter registers or returns a counter.
func (r *Registry) Counter(name, help string, labels Labels) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	full := r.fullName(name)
	id := full + labels.String()
	if c, ok := r.counters[id]; ok {
		return c
	}
	c := &Counter{name: full, help: help, labels: labels}
	r.counters[id] = c
	return c
}

// Gauge registers or returns a gauge.
func (r *Registry) Gauge(name, help string, labels Labels) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()

	full := r.fullName(name)
	id := full + labels.String()
	if g, ok := r.gauges[id]; ok {
		return g
	}
	g := &Gauge{name: full, help: help, labels: labels}
	r.gauges[id] = g
	return g
}

// Histogram registers or returns a histogram. Nil buckets select
// DurationBuckets.
func (r *Registry) Histogram(name, help string, labels Labels, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	full := r.fullName(name)
	id := full + labels.String()
	if h, ok := r.histograms[id]; ok {
		return h
	}
	h := newHistogram(full, help, labels, buckets)
	r.histograms[id] = h
	return h
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WritePrometheus writes metrics in the Prometheus text format. HELP and
// TYPE lines are written once per metric name.
func (r *Registry) WritePrometheus(w io.Writer) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	seen := make(map[string]bool)
	header := func(name, help string, t MetricType) {
		if seen[name] {
			return
		}
		seen[name] = true
		fmt.Fprintf(&b, "# HELP %s %s\n", name, help)
		fmt.Fprintf(&b, "# TYPE %s %s\n", name, t)
	}

	for _, id := range sortedKeys(r.counters) {
		c := r.counters[id]
		header(c.name, c.help, TypeCounter)
		fmt.Fprintf(&b, "%s%s %d\n", c.name, c.labels, c.Value())
	}

	for _, id := range sortedKeys(r.gauges) {
		g := r.gauges[id]
		header(g.name, g.help, TypeGauge)
		fmt.Fprintf(&b, "%s%s %d\n", g.name, g.labels, g.Value())
	}

	for _, id := range sortedKeys(r.histograms) {
		h := r.histograms[id]
		header(h.name, h.help, TypeHistogram)

		h.mu.Lock()
		cum := h.cumulative()
		for i, le := range h.buckets {
			fmt.Fprintf(&b, "%s_bucket{%s} %d\n", h.name, h.labels.join(fmt.Sprintf("le=%q", formatFloat(le))), cum[i])
		}
		fmt.Fprintf(&b, "%s_bucket{%s} %d\n", h.name, h.labels.join(`le="+Inf"`), cum[len(cum)-1])
		fmt.Fprintf(&b, "%s_sum%s %s\n", h.name, h.labels, formatFloat(h.sum))
		fmt.Fprintf(&b, "%s_count%s %d\n", h.name, h.labels, h.count)
		h.mu.Unlock()
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%g", f)
}

// Sample is one metric value in the JSON exposition.
type Sample struct {
	Name    string            `json:"name"`
	Type    string            `json:"type"`
	Labels  Labels            `json:"labels,omitempty"`
	Value   float64           `json:"value"`
	Count   uint64            `json:"count,omitempty"`
	Buckets map[string]uint64 `json:"buckets,omitempty"`
}

// Samples returns every metric in exposition order.
func (r *Registry) Samples() []Sample {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Sample
	for _, id := range sortedKeys(r.counters) {
		c := r.counters[id]
		out = append(out, Sample{Name: c.name, Type: TypeCounter.String(), Labels: c.labels, Value: float64(c.Value())})
	}
	for _, id := range sortedKeys(r.gauges) {
		g := r.gauges[id]
		out = append(out, Sample{Name: g.name, Type: TypeGauge.String(), Labels: g.labels, Value: float64(g.Value())})
	}
	for _, id := range sortedKeys(r.histograms) {
		h := r.histograms[id]
		h.mu.Lock()
		cum := h.cumulative()
		buckets := make(map[string]uint64, len(cum))
		for i, le := range h.buckets {
			buckets[formatFloat(le)] = cum[i]
		}
		buckets["+Inf"] = cum[len(cum)-1]
		out = append(out, Sample{Name: h.name, Type: TypeHistogram.String(), Labels: h.labels, Value: h.sum, Count: h.count, Buckets: buckets})
		h.mu.Unlock()
	}
	return out
}

// WriteJSON writes metrics as an indented JSON array of samples.
func (r *Registry) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r.Samples())
}

// HTTPHandler serves the registry. Clients asking for application/json get
// WriteJSON; everyone else gets the Prometheus text format.
func (r *Registry) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if strings.Contains(req.Header.Get("Accept"), "application/json") {
			w.Header().Set("Content-Type", "application/json")
			r.WriteJSON(w)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		r.WritePrometheus(w)
	})
}
