package runner

// Observer is notified as a run progresses. Calls to RequestDone arrive
// concurrently from the workers.
type Observer interface {
	RunStarted(id string, cfg Config)
	RequestDone(id string, cfg Config, o Outcome)
	RunCompleted(res RunResult)
}

// Observers fans out to each member in order.
type Observers []Observer

func (obs Observers) RunStarted(id string, cfg Config) {
	for _, o := range obs {
		o.RunStarted(id, cfg)
	}
}

func (obs Observers) RequestDone(id string, cfg Config, out Outcome) {
	for _, o := range obs {
		o.RequestDone(id, cfg, out)
	}
}

func (obs Observers) RunCompleted(res RunResult) {
	for _, o := range obs {
		o.RunCompleted(res)
	}
}

// observedRecorder forwards every outcome to the aggregator first and then
// to the observers.
type observedRecorder struct {
	agg *Aggregator
	obs Observer
	id  string
	cfg Config
}

func (r observedRecorder) Record(o Outcome) {
	r.agg.Record(o)
	r.obs.RequestDone(r.id, r.cfg, o)
}
