package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"burstq/internal/config"
	"burstq/internal/runner"
	"burstq/internal/storage"
)

type fakeController struct {
	started []runner.Config
	err     error
	status  runner.Status
}

func (f *fakeController) Start(cfg runner.Config) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.started = append(f.started, cfg)
	return "run-1", nil
}

func (f *fakeController) Status() runner.Status { return f.status }

type fakeArchive struct {
	runs []runner.RunResult
}

func (f *fakeArchive) List(limit int) ([]runner.RunResult, error) {
	if limit > 0 && limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func (f *fakeArchive) Get(id string) (*runner.RunResult, error) {
	for i := range f.runs {
		if f.runs[i].ID == id {
			return &f.runs[i], nil
		}
	}
	return nil, storage.ErrNotFound
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestStartRun_Defaults(t *testing.T) {
	ctrl := &fakeController{}
	s := New(Options{
		Controller: ctrl,
		Defaults: func() config.Defaults {
			return config.Defaults{URL: "http://default.test", Requests: 100, Concurrency: 10}
		},
	})

	rec := do(t, s.Handler(), http.MethodPost, "/api/load-test", `{"url":"http://target.test","requests":5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["status"] != "running" || body["id"] != "run-1" || body["message"] != "Load test started" {
		t.Errorf("body = %v", body)
	}

	want := runner.Config{URL: "http://target.test", NumRequests: 5, Concurrency: 10}
	if len(ctrl.started) != 1 || ctrl.started[0] != want {
		t.Errorf("started = %+v, want %+v", ctrl.started, want)
	}

	rec = do(t, s.Handler(), http.MethodPost, "/api/load-test", `{"num_requests":7,"concurrency":3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	want = runner.Config{URL: "http://default.test", NumRequests: 7, Concurrency: 3}
	if ctrl.started[1] != want {
		t.Errorf("started = %+v, want %+v", ctrl.started[1], want)
	}

	rec = do(t, s.Handler(), http.MethodPost, "/api/load-test", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("empty body status = %d", rec.Code)
	}
}

func TestStartRun_Errors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		body string
		code int
		msg  string
	}{
		{"already running", runner.ErrAlreadyRunning, `{}`, http.StatusBadRequest, "Test already running"},
		{"invalid", runner.ErrInvalidConfig, `{}`, http.StatusBadRequest, "invalid run config"},
		{"bad json", nil, `{"url":`, http.StatusBadRequest, "invalid JSON body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := New(Options{Controller: &fakeController{err: tc.err}})
			rec := do(t, s.Handler(), http.MethodPost, "/api/load-test", tc.body)
			if rec.Code != tc.code {
				t.Fatalf("status = %d, want %d", rec.Code, tc.code)
			}
			var body map[string]string
			decode(t, rec, &body)
			if !strings.Contains(body["error"], tc.msg) {
				t.Errorf("error = %q, want it to contain %q", body["error"], tc.msg)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	s := New(Options{Controller: &fakeController{}})
	rec := do(t, s.Handler(), http.MethodGet, "/api/load-test", "")
	var st map[string]any
	decode(t, rec, &st)
	if st["running"] != false || st["results"] != nil {
		t.Errorf("idle status = %v", st)
	}

	s = New(Options{Controller: &fakeController{status: runner.Status{
		Running: true,
		Results: &runner.RunResult{ID: "r", URL: "http://x.test", NumRequests: 3, Completed: 1, ResponseTimes: []float64{1}, Errors: []string{}},
	}}})
	rec = do(t, s.Handler(), http.MethodGet, "/api/load-test", "")
	var got runner.Status
	decode(t, rec, &got)
	if !got.Running || got.Results == nil || got.Results.Completed != 1 {
		t.Errorf("running status = %+v", got)
	}
}

func TestRuns(t *testing.T) {
	arch := &fakeArchive{runs: []runner.RunResult{{ID: "b"}, {ID: "a"}}}
	s := New(Options{Controller: &fakeController{}, Archive: arch})
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/runs?limit=1", "")
	var runs []runner.RunResult
	decode(t, rec, &runs)
	if len(runs) != 1 || runs[0].ID != "b" {
		t.Errorf("runs = %+v", runs)
	}

	if rec := do(t, h, http.MethodGet, "/api/runs?limit=x", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/runs/a", ""); rec.Code != http.StatusOK {
		t.Errorf("get run status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/runs/zzz", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing run status = %d", rec.Code)
	}
}

func TestEndToEnd_WithController(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	ctrl := runner.NewController(runner.Options{})
	api := httptest.NewServer(New(Options{Controller: ctrl}).Handler())
	defer api.Close()

	payload, _ := json.Marshal(map[string]any{"url": target.URL + "/ok", "requests": 5, "concurrency": 2})
	resp, err := http.Post(api.URL+"/api/load-test", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ctrl.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}

	resp, err = http.Get(api.URL + "/api/load-test")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var st runner.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Running || st.Results == nil {
		t.Fatalf("status = %+v", st)
	}
	r := st.Results
	if r.Completed != 5 || r.Successful != 5 || r.Failed != 0 {
		t.Errorf("counts = %d/%d/%d", r.Completed, r.Successful, r.Failed)
	}
	if r.Stats == nil || r.Stats.SuccessRatePercent != 100 {
		t.Errorf("stats = %+v", r.Stats)
	}
}

func TestStreamStatus(t *testing.T) {
	ctrl := &fakeController{status: runner.Status{Running: true, Results: &runner.RunResult{ID: "live", Completed: 2}}}
	srv := New(Options{Controller: ctrl})
	srv.StreamInterval = 10 * time.Millisecond
	api := httptest.NewServer(srv.Handler())
	defer api.Close()

	wsURL := "ws" + strings.TrimPrefix(api.URL, "http") + "/api/load-test/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	for i := 0; i < 2; i++ {
		var st runner.Status
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := conn.ReadJSON(&st); err != nil {
			t.Fatalf("read frame %d: %v", i, err)
		}
		if !st.Running || st.Results.ID != "live" {
			t.Errorf("frame %d = %+v", i, st)
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok_metric 1\n")) })
	s := New(Options{Controller: &fakeController{}, Metrics: metrics})
	h := s.Handler()

	if rec := do(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/metrics", "")
	if !strings.Contains(rec.Body.String(), "ok_metric") {
		t.Errorf("metrics body = %q", rec.Body.String())
	}
}
