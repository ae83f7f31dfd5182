package runner

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"burstq/internal/stats"
)

const (
	DefaultRequests    = 100
	DefaultConcurrency = 10

	// RequestTimeout bounds every single GET.
	RequestTimeout = 30 * time.Second
)

var (
	ErrAlreadyRunning = errors.New("test already running")
	ErrInvalidConfig  = errors.New("invalid run config")
)

// Config is fixed for the lifetime of one run.
type Config struct {
	URL         string `json:"url"`
	NumRequests int    `json:"num_requests"`
	Concurrency int    `json:"concurrency"`
}

func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidConfig)
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("%w: url: %v", ErrInvalidConfig, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: url scheme must be http or https, got %q", ErrInvalidConfig, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: url has no host", ErrInvalidConfig)
	}
	if c.NumRequests <= 0 {
		return fmt.Errorf("%w: num_requests must be positive, got %d", ErrInvalidConfig, c.NumRequests)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency must be positive, got %d", ErrInvalidConfig, c.Concurrency)
	}
	return nil
}

// Workers is the number of goroutines a run actually needs.
func (c Config) Workers() int {
	if c.Concurrency > c.NumRequests {
		return c.NumRequests
	}
	return c.Concurrency
}

// Response is what the adapter hands back when the server answered at all.
type Response struct {
	StatusCode int
	Elapsed    time.Duration
}

// Outcome is the record of one dispatched request. Err is set only when the
// transport failed before a status was received; in that case Status and
// Elapsed are zero.
type Outcome struct {
	Index   int
	Status  int
	Elapsed time.Duration
	Err     error
}

func (o Outcome) IsError() bool { return o.Err != nil }

func (o Outcome) Success() bool { return o.Err == nil && o.Status == 200 }

// ElapsedMs is the elapsed time in fractional milliseconds.
func (o Outcome) ElapsedMs() float64 {
	return float64(o.Elapsed) / float64(time.Millisecond)
}

// Describe renders the error line for a non-successful outcome, or "" for a
// success.
func (o Outcome) Describe() string {
	switch {
	case o.Err != nil:
		return fmt.Sprintf("Request %d: %v", o.Index, o.Err)
	case o.Status != 200:
		return fmt.Sprintf("Request %d: HTTP %d", o.Index, o.Status)
	}
	return ""
}

// RunResult is the aggregate state of one run. Values returned from the
// controller are deep copies the caller may modify.
type RunResult struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	NumRequests int       `json:"num_requests"`
	Concurrency int       `json:"concurrency"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time,omitzero"`

	Completed  int `json:"completed_requests"`
	Successful int `json:"successful_requests"`
	Failed     int `json:"failed_requests"`

	ResponseTimes []float64 `json:"response_times"`
	Errors        []string  `json:"errors"`

	Stats *stats.Summary `json:"stats,omitempty"`
}

// clone copies r without sharing its slices or stats block.
func (r RunResult) clone() RunResult {
	out := r
	out.ResponseTimes = make([]float64, len(r.ResponseTimes))
	copy(out.ResponseTimes, r.ResponseTimes)
	out.Errors = make([]string, len(r.Errors))
	copy(out.Errors, r.Errors)
	if r.Stats != nil {
		s := *r.Stats
		out.Stats = &s
	}
	return out
}

// Done reports whether the run reached the completed state.
func (r RunResult) Done() bool { return !r.EndTime.IsZero() }

// Status is what a status query returns.
type Status struct {
	Running bool       `json:"running"`
	Results *RunResult `json:"results"`
}
