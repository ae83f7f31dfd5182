package logging

import (
	"go.uber.org/zap"

	"burstq/internal/runner"
)

// RunObserver narrates runs to a logger: a debug line per request and an
// info summary when the run completes.
type RunObserver struct {
	log *zap.Logger
}

func NewRunObserver(log *zap.Logger) *RunObserver {
	if log == nil {
		log = zap.NewNop()
	}
	return &RunObserver{log: log.Named("run")}
}

func (r *RunObserver) RunStarted(id string, cfg runner.Config) {
	r.log.Info("starting load test",
		zap.String("id", id),
		zap.String("url", cfg.URL),
		zap.Int("num_requests", cfg.NumRequests),
		zap.Int("concurrency", cfg.Concurrency),
	)
}

func (r *RunObserver) RequestDone(id string, cfg runner.Config, o runner.Outcome) {
	if o.IsError() {
		r.log.Debug("request failed",
			zap.String("id", id),
			zap.Int("request", o.Index+1),
			zap.Int("of", cfg.NumRequests),
			zap.Error(o.Err),
		)
		return
	}
	r.log.Debug("request done",
		zap.String("id", id),
		zap.Int("request", o.Index+1),
		zap.Int("of", cfg.NumRequests),
		zap.Int("status", o.Status),
		zap.Float64("elapsed_ms", o.ElapsedMs()),
	)
}

func (r *RunObserver) RunCompleted(res runner.RunResult) {
	fields := []zap.Field{
		zap.String("id", res.ID),
		zap.Int("successful", res.Successful),
		zap.Int("failed", res.Failed),
	}
	if s := res.Stats; s != nil {
		fields = append(fields,
			zap.Float64("total_time_seconds", s.TotalTimeSeconds),
			zap.Float64("requests_per_second", s.RequestsPerSecond),
			zap.Float64("avg_response_time_ms", s.AvgResponseTimeMs),
			zap.Float64("p99_response_time_ms", s.P99ResponseTimeMs),
			zap.Float64("success_rate_percent", s.SuccessRatePercent),
		)
	}
	r.log.Info("load test finished", fields...)

	if len(res.Errors) > 0 {
		r.log.Warn("load test errors", zap.String("id", res.ID), zap.Strings("errors", res.Errors))
	}
}
