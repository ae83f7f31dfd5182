package runner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeRequester answers every GET with a fixed status and latency and tracks
// how many calls were in flight at once.
type fakeRequester struct {
	status  int
	elapsed time.Duration
	hold    time.Duration
	err     error

	calls       atomic.Int64
	inflight    atomic.Int64
	maxInflight atomic.Int64
}

func (f *fakeRequester) Get(ctx context.Context, url string) (Response, error) {
	f.calls.Add(1)
	cur := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		prev := f.maxInflight.Load()
		if cur <= prev || f.maxInflight.CompareAndSwap(prev, cur) {
			break
		}
	}
	if f.hold > 0 {
		time.Sleep(f.hold)
	}
	if f.err != nil {
		return Response{}, f.err
	}
	return Response{StatusCode: f.status, Elapsed: f.elapsed}, nil
}

// indexRecorder records into an aggregator and keeps every index it saw.
type indexRecorder struct {
	agg *Aggregator
	mu  sync.Mutex
	idx map[int]int
}

func (r *indexRecorder) Record(o Outcome) {
	r.agg.Record(o)
	r.mu.Lock()
	r.idx[o.Index]++
	r.mu.Unlock()
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"valid", Config{URL: "http://example.test/ok", NumRequests: 1, Concurrency: 1}, true},
		{"concurrency above total", Config{URL: "https://example.test", NumRequests: 2, Concurrency: 50}, true},
		{"empty url", Config{NumRequests: 1, Concurrency: 1}, false},
		{"bad scheme", Config{URL: "ftp://example.test", NumRequests: 1, Concurrency: 1}, false},
		{"no host", Config{URL: "http://", NumRequests: 1, Concurrency: 1}, false},
		{"zero requests", Config{URL: "http://example.test", NumRequests: 0, Concurrency: 1}, false},
		{"negative concurrency", Config{URL: "http://example.test", NumRequests: 1, Concurrency: -1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestAggregator_FinalizeStats(t *testing.T) {
	cfg := Config{URL: "http://example.test", NumRequests: 3, Concurrency: 1}
	agg := NewAggregator("run", cfg, time.Now())
	for i, ms := range []int{10, 20, 30} {
		agg.Record(Outcome{Index: i, Status: 200, Elapsed: time.Duration(ms) * time.Millisecond})
	}

	res := agg.Finalize(time.Second, time.Now())
	if res.Stats == nil {
		t.Fatal("expected stats")
	}
	s := res.Stats
	if s.AvgResponseTimeMs != 20.0 || s.MinResponseTimeMs != 10.0 || s.MaxResponseTimeMs != 30.0 {
		t.Errorf("avg/min/max = %v/%v/%v, want 20/10/30", s.AvgResponseTimeMs, s.MinResponseTimeMs, s.MaxResponseTimeMs)
	}
	if s.RequestsPerSecond != 3.0 {
		t.Errorf("requests_per_second = %v, want 3", s.RequestsPerSecond)
	}
	if s.TotalTimeSeconds != 1.0 {
		t.Errorf("total_time_seconds = %v, want 1", s.TotalTimeSeconds)
	}
	if s.SuccessRatePercent != 100.0 {
		t.Errorf("success_rate_percent = %v, want 100", s.SuccessRatePercent)
	}
}

func TestAggregator_SuccessRateUsesConfiguredTotal(t *testing.T) {
	cfg := Config{URL: "http://example.test", NumRequests: 10, Concurrency: 2}
	agg := NewAggregator("run", cfg, time.Now())
	for i := 0; i < 8; i++ {
		agg.Record(Outcome{Index: i, Status: 200, Elapsed: 5 * time.Millisecond})
	}
	agg.Record(Outcome{Index: 8, Status: 503, Elapsed: 5 * time.Millisecond})
	agg.Record(Outcome{Index: 9, Err: errors.New("connection refused")})

	res := agg.Finalize(2*time.Second, time.Now())
	if res.Completed != 10 || res.Successful != 8 || res.Failed != 2 {
		t.Fatalf("counts = %d/%d/%d, want 10/8/2", res.Completed, res.Successful, res.Failed)
	}
	if res.Stats == nil || res.Stats.SuccessRatePercent != 80.0 {
		t.Fatalf("success rate = %+v, want 80", res.Stats)
	}
	if res.Stats.RequestsPerSecond != 5.0 {
		t.Errorf("requests_per_second = %v, want 5", res.Stats.RequestsPerSecond)
	}
	if len(res.ResponseTimes) != 9 {
		t.Errorf("response_times = %d samples, want 9", len(res.ResponseTimes))
	}
	want := []string{"Request 8: HTTP 503", "Request 9: connection refused"}
	if len(res.Errors) != len(want) {
		t.Fatalf("errors = %v, want %v", res.Errors, want)
	}
	for i := range want {
		if res.Errors[i] != want[i] {
			t.Errorf("errors[%d] = %q, want %q", i, res.Errors[i], want[i])
		}
	}
}

func TestAggregator_NoSamplesOmitsStats(t *testing.T) {
	cfg := Config{URL: "http://example.test", NumRequests: 4, Concurrency: 2}
	agg := NewAggregator("run", cfg, time.Now())
	for i := 0; i < 4; i++ {
		agg.Record(Outcome{Index: i, Err: errors.New("timeout")})
	}

	res := agg.Finalize(0, time.Now())
	if res.Stats != nil {
		t.Fatalf("expected no stats, got %+v", res.Stats)
	}
	if res.Failed != 4 || res.Completed != 4 {
		t.Errorf("counts = %d completed, %d failed", res.Completed, res.Failed)
	}
	if res.EndTime.IsZero() {
		t.Error("end time not set")
	}
}

func TestAggregator_FinalizeOnce(t *testing.T) {
	cfg := Config{URL: "http://example.test", NumRequests: 1, Concurrency: 1}
	agg := NewAggregator("run", cfg, time.Now())
	agg.Record(Outcome{Index: 0, Status: 200, Elapsed: 10 * time.Millisecond})

	first := agg.Finalize(time.Second, time.Now())
	second := agg.Finalize(10*time.Second, time.Now().Add(time.Hour))
	if *first.Stats != *second.Stats {
		t.Errorf("stats recomputed: %+v vs %+v", first.Stats, second.Stats)
	}
	if !first.EndTime.Equal(second.EndTime) {
		t.Error("end time changed on second finalize")
	}
}

func TestAggregator_SnapshotIsCopy(t *testing.T) {
	cfg := Config{URL: "http://example.test", NumRequests: 2, Concurrency: 1}
	agg := NewAggregator("run", cfg, time.Now())
	agg.Record(Outcome{Index: 0, Status: 500, Elapsed: time.Millisecond})

	snap := agg.Snapshot()
	snap.ResponseTimes[0] = 999
	snap.Errors[0] = "mutated"

	again := agg.Snapshot()
	if again.ResponseTimes[0] == 999 || again.Errors[0] == "mutated" {
		t.Fatal("snapshot shares memory with aggregator")
	}
}

func TestNewAggregator_BoundsPrealloc(t *testing.T) {
	agg := NewAggregator("run", Config{URL: "http://example.test", NumRequests: 1 << 60, Concurrency: 1}, time.Now())
	if c := cap(agg.result.ResponseTimes); c > maxPrealloc {
		t.Fatalf("reserved %d samples, want at most %d", c, maxPrealloc)
	}
	if snap := agg.Snapshot(); snap.NumRequests != 1<<60 || len(snap.ResponseTimes) != 0 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestAggregator_ConcurrentRecord(t *testing.T) {
	const n = 1000
	cfg := Config{URL: "http://example.test", NumRequests: n, Concurrency: 50}
	agg := NewAggregator("run", cfg, time.Now())

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := 200
			if i%4 == 0 {
				status = 404
			}
			agg.Record(Outcome{Index: i, Status: status, Elapsed: time.Millisecond})
		}(i)
	}
	wg.Wait()

	res := agg.Snapshot()
	if res.Completed != n || res.Successful+res.Failed != n {
		t.Fatalf("completed=%d successful=%d failed=%d", res.Completed, res.Successful, res.Failed)
	}
	if res.Failed != n/4 {
		t.Errorf("failed = %d, want %d", res.Failed, n/4)
	}
	if len(res.ResponseTimes) != n {
		t.Errorf("response_times = %d, want %d", len(res.ResponseTimes), n)
	}
}

func TestDispatch_EveryIndexOnce(t *testing.T) {
	cfg := Config{URL: "http://example.test", NumRequests: 50, Concurrency: 7}
	req := &fakeRequester{status: 200, elapsed: time.Millisecond}
	rec := &indexRecorder{agg: NewAggregator("run", cfg, time.Now()), idx: map[int]int{}}

	Dispatch(context.Background(), cfg, req, rec)

	if len(rec.idx) != 50 {
		t.Fatalf("distinct indices = %d, want 50", len(rec.idx))
	}
	for i := 0; i < 50; i++ {
		if rec.idx[i] != 1 {
			t.Errorf("index %d recorded %d times", i, rec.idx[i])
		}
	}
	res := rec.agg.Snapshot()
	if res.Completed != 50 || res.Successful+res.Failed != 50 {
		t.Errorf("completed=%d successful=%d failed=%d", res.Completed, res.Successful, res.Failed)
	}
}

func TestDispatch_RespectsConcurrency(t *testing.T) {
	cases := []struct {
		name        string
		requests    int
		concurrency int
		wantMax     int64
	}{
		{"bounded", 40, 4, 4},
		{"concurrency above total", 3, 20, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{URL: "http://example.test", NumRequests: tc.requests, Concurrency: tc.concurrency}
			req := &fakeRequester{status: 200, elapsed: time.Millisecond, hold: 10 * time.Millisecond}
			agg := NewAggregator("run", cfg, time.Now())

			Dispatch(context.Background(), cfg, req, agg)

			if got := req.maxInflight.Load(); got > tc.wantMax {
				t.Errorf("max in flight = %d, limit %d", got, tc.wantMax)
			}
			if got := req.calls.Load(); got != int64(tc.requests) {
				t.Errorf("calls = %d, want %d", got, tc.requests)
			}
		})
	}
}

func TestDispatch_ErrorsDoNotAbortBatch(t *testing.T) {
	cfg := Config{URL: "http://example.test", NumRequests: 12, Concurrency: 3}
	req := &fakeRequester{err: errors.New("dial tcp: connection refused")}
	agg := NewAggregator("run", cfg, time.Now())

	wall := Dispatch(context.Background(), cfg, req, agg)
	res := agg.Finalize(wall, time.Now())

	if res.Completed != 12 || res.Failed != 12 {
		t.Fatalf("completed=%d failed=%d, want 12/12", res.Completed, res.Failed)
	}
	if res.Stats != nil {
		t.Errorf("expected no stats when every request errored")
	}
	if len(res.Errors) != 12 {
		t.Errorf("errors = %d, want 12", len(res.Errors))
	}
}

func TestHTTPRequester_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		time.Sleep(5 * time.Millisecond)
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	h := NewHTTPRequester(2)
	defer h.Close()

	resp, err := h.Get(context.Background(), server.URL+"/ok")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if resp.Elapsed < 5*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 5ms", resp.Elapsed)
	}

	resp, err = h.Get(context.Background(), server.URL+"/missing")
	if err != nil {
		t.Fatalf("non-200 must not be an error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHTTPRequester_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	h := NewHTTPRequester(1)
	if _, err := h.Get(context.Background(), url); err == nil {
		t.Fatal("expected error against closed server")
	}
	if _, err := h.Get(context.Background(), "http://[::1"); err == nil {
		t.Fatal("expected error for malformed url")
	}
}
