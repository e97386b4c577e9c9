// Package metrics keeps per-route request latency histograms.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	minLatencyMicros = 1
	maxLatencyMicros = 60 * 1000 * 1000
	sigFigs          = 3
)

type RouteStats struct {
	Route         string  `json:"route"`
	Count         int64   `json:"count"`
	Errors        int64   `json:"errors"`
	MeanLatencyMs float64 `json:"meanLatencyMs"`
	P50LatencyMs  float64 `json:"p50LatencyMs"`
	P95LatencyMs  float64 `json:"p95LatencyMs"`
	P99LatencyMs  float64 `json:"p99LatencyMs"`
	MaxLatencyMs  float64 `json:"maxLatencyMs"`
}

type route struct {
	histogram *hdrhistogram.Histogram
	errors    int64
}

type Recorder struct {
	mu     sync.Mutex
	routes map[string]*route
}

func NewRecorder() *Recorder {
	return &Recorder{routes: make(map[string]*route)}
}

// Record adds one request. Status codes of 500 and above count as errors.
func (r *Recorder) Record(name string, status int, latency time.Duration) {
	micros := latency.Microseconds()
	if micros < minLatencyMicros {
		micros = minLatencyMicros
	}
	if micros > maxLatencyMicros {
		micros = maxLatencyMicros
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rt, ok := r.routes[name]
	if !ok {
		rt = &route{histogram: hdrhistogram.New(minLatencyMicros, maxLatencyMicros, sigFigs)}
		r.routes[name] = rt
	}
	_ = rt.histogram.RecordValue(micros)
	if status >= 500 {
		rt.errors++
	}
}

// Snapshot returns stats for every route seen so far, sorted by route.
func (r *Recorder) Snapshot() []RouteStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]RouteStats, 0, len(r.routes))
	for name, rt := range r.routes {
		h := rt.histogram
		out = append(out, RouteStats{
			Route:         name,
			Count:         h.TotalCount(),
			Errors:        rt.errors,
			MeanLatencyMs: h.Mean() / 1000,
			P50LatencyMs:  float64(h.ValueAtQuantile(50)) / 1000,
			P95LatencyMs:  float64(h.ValueAtQuantile(95)) / 1000,
			P99LatencyMs:  float64(h.ValueAtQuantile(99)) / 1000,
			MaxLatencyMs:  float64(h.Max()) / 1000,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Route < out[j].Route })
	return out
}
