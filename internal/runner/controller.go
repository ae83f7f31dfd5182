package runner

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the lifecycle position of the controller.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	}
	return "idle"
}

// Archiver persists a completed run. It is called once per run, after the
// run is already visible as completed.
type Archiver interface {
	Archive(ctx context.Context, res RunResult) error
}

type Options struct {
	// Requester is shared by every run. When nil each run builds its own
	// HTTPRequester sized to its worker count and closes it afterwards.
	Requester Requester
	Observers []Observer
	Archivers []Archiver
	Logger    *zap.Logger
}

// Controller owns the single current run.
type Controller struct {
	requester Requester
	observers Observers
	archivers []Archiver
	log       *zap.Logger

	mu      sync.Mutex
	running bool
	current *Aggregator
	final   *RunResult
	done    chan struct{}
}

func NewController(opts Options) *Controller {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		requester: opts.Requester,
		observers: Observers(opts.Observers),
		archivers: opts.Archivers,
		log:       log.Named("controller"),
	}
}

// Start accepts a new run and returns its ID without waiting for it. It
// fails with ErrAlreadyRunning while another run is active, leaving that run
// untouched.
func (c *Controller) Start(cfg Config) (string, error) {
	id := uuid.NewString()
	agg := NewAggregator(id, cfg, time.Now())
	done := make(chan struct{})

	if err := c.accept(cfg, agg, done); err != nil {
		return "", err
	}

	c.log.Info("run accepted",
		zap.String("id", id),
		zap.String("url", cfg.URL),
		zap.Int("num_requests", cfg.NumRequests),
		zap.Int("concurrency", cfg.Concurrency),
	)
	c.observers.RunStarted(id, cfg)

	go c.run(id, cfg, agg, done)
	return id, nil
}

// accept installs agg as the current run if the controller is idle and cfg
// is valid.
func (c *Controller) accept(cfg Config, agg *Aggregator, done chan struct{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrAlreadyRunning
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.running = true
	c.current = agg
	c.final = nil
	c.done = done
	return nil
}

func (c *Controller) run(id string, cfg Config, agg *Aggregator, done chan struct{}) {
	defer close(done)

	req := c.requester
	if req == nil {
		h := NewHTTPRequester(cfg.Workers())
		defer h.Close()
		req = h
	}

	rec := observedRecorder{agg: agg, obs: c.observers, id: id, cfg: cfg}
	wall := Dispatch(context.Background(), cfg, req, rec)
	res := agg.Finalize(wall, time.Now())

	c.mu.Lock()
	c.final = &res
	c.running = false
	c.mu.Unlock()

	c.observers.RunCompleted(res)

	for _, a := range c.archivers {
		if err := a.Archive(context.Background(), res); err != nil {
			c.log.Error("archive run", zap.String("id", id), zap.Error(err))
		}
	}
}

// Status returns whether a run is active and a copy of the current result.
// While running the copy is a partial view.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.current == nil:
		return Status{}
	case c.running:
		snap := c.current.Snapshot()
		return Status{Running: true, Results: &snap}
	default:
		res := c.final.clone()
		return Status{Results: &res}
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.running:
		return StateRunning
	case c.final != nil:
		return StateCompleted
	}
	return StateIdle
}

// Wait blocks until the current run, if any, has completed and been
// archived.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
