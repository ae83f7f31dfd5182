package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// SafeHistogram is a thread-safe wrapper around hdrhistogram.
// Values are latencies in microseconds.
type SafeHistogram struct {
	hist *hdrhistogram.Histogram
	mu   sync.Mutex
}

func NewSafeHistogram() *SafeHistogram {
	// 1us up to the per-request ceiling with headroom, 3 significant figures
	h := hdrhistogram.New(1, int64(2*time.Minute/time.Microsecond), 3)
	return &SafeHistogram{hist: h}
}

// Record adds one latency sample. Samples outside the trackable range are
// clamped rather than dropped.
func (h *SafeHistogram) Record(d time.Duration) {
	us := d.Microseconds()
	h.mu.Lock()
	defer h.mu.Unlock()
	if us < h.hist.LowestTrackableValue() {
		us = h.hist.LowestTrackableValue()
	}
	if us > h.hist.HighestTrackableValue() {
		us = h.hist.HighestTrackableValue()
	}
	_ = h.hist.RecordValue(us)
}

// QuantileMs returns the value at quantile q (0-100) in milliseconds.
func (h *SafeHistogram) QuantileMs(q float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return float64(h.hist.ValueAtQuantile(q)) / 1000.0
}

func (h *SafeHistogram) TotalCount() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.TotalCount()
}

