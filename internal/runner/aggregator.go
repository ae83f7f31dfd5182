package runner

import (
	"sync"
	"time"

	"burstq/internal/stats"
)

// Recorder receives outcomes from the dispatcher.
type Recorder interface {
	Record(Outcome)
}

// Aggregator accumulates the outcomes of one run. Record is safe for
// concurrent use; Finalize must be called once after every worker returned.
type Aggregator struct {
	mu     sync.Mutex
	result RunResult
	hist   *stats.SafeHistogram
	final  bool
}

// maxPrealloc bounds the response-time buffer reserved up front; larger runs
// grow it as samples arrive.
const maxPrealloc = 4096

func NewAggregator(id string, cfg Config, start time.Time) *Aggregator {
	return &Aggregator{
		result: RunResult{
			ID:            id,
			URL:           cfg.URL,
			NumRequests:   cfg.NumRequests,
			Concurrency:   cfg.Concurrency,
			StartTime:     start,
			ResponseTimes: make([]float64, 0, max(min(cfg.NumRequests, maxPrealloc), 0)),
			Errors:        []string{},
		},
		hist: stats.NewSafeHistogram(),
	}
}

func (a *Aggregator) Record(o Outcome) {
	if !o.IsError() {
		a.hist.Record(o.Elapsed)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.result.Completed++
	if o.Success() {
		a.result.Successful++
	} else {
		a.result.Failed++
	}
	if !o.IsError() {
		a.result.ResponseTimes = append(a.result.ResponseTimes, o.ElapsedMs())
	}
	if msg := o.Describe(); msg != "" {
		a.result.Errors = append(a.result.Errors, msg)
	}
}

// Snapshot returns a deep copy of the current state.
func (a *Aggregator) Snapshot() RunResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.copyLocked()
}

// Finalize stamps the end time and derives the statistics block. Only the
// first call computes anything; later calls return the first result.
func (a *Aggregator) Finalize(wall time.Duration, end time.Time) RunResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.final {
		a.final = true
		a.result.EndTime = end
		a.result.Stats = stats.Summarize(stats.Input{
			Requested:  a.result.NumRequests,
			Successful: a.result.Successful,
			Wall:       wall,
			SamplesMs:  a.result.ResponseTimes,
			Histogram:  a.hist,
		})
	}
	return a.copyLocked()
}

func (a *Aggregator) copyLocked() RunResult {
	return a.result.clone()
}
