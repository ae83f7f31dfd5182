package stats

import (
	"math"
	"time"
)

// Summary is the derived statistics block of a finished run. All values are
// rounded to two decimals.
type Summary struct {
	TotalTimeSeconds   float64 `json:"total_time_seconds"`
	RequestsPerSecond  float64 `json:"requests_per_second"`
	AvgResponseTimeMs  float64 `json:"avg_response_time_ms"`
	MinResponseTimeMs  float64 `json:"min_response_time_ms"`
	MaxResponseTimeMs  float64 `json:"max_response_time_ms"`
	P50ResponseTimeMs  float64 `json:"p50_response_time_ms"`
	P90ResponseTimeMs  float64 `json:"p90_response_time_ms"`
	P99ResponseTimeMs  float64 `json:"p99_response_time_ms"`
	SuccessRatePercent float64 `json:"success_rate_percent"`
}

// Input is everything Summarize needs.
type Input struct {
	// Requested is the configured request count, the denominator for both
	// throughput and success rate.
	Requested  int
	Successful int
	Wall       time.Duration
	SamplesMs  []float64
	Histogram  *SafeHistogram
}

// Summarize computes the statistics block. It returns nil when there are no
// latency samples.
func Summarize(in Input) *Summary {
	if len(in.SamplesMs) == 0 {
		return nil
	}

	sum := 0.0
	lo, hi := in.SamplesMs[0], in.SamplesMs[0]
	for _, v := range in.SamplesMs {
		sum += v
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	secs := in.Wall.Seconds()
	rps := 0.0
	if secs > 0 {
		rps = float64(in.Requested) / secs
	}

	rate := 0.0
	if in.Requested > 0 {
		rate = float64(in.Successful) / float64(in.Requested) * 100
	}

	s := &Summary{
		TotalTimeSeconds:   Round2(secs),
		RequestsPerSecond:  Round2(rps),
		AvgResponseTimeMs:  Round2(sum / float64(len(in.SamplesMs))),
		MinResponseTimeMs:  Round2(lo),
		MaxResponseTimeMs:  Round2(hi),
		SuccessRatePercent: Round2(rate),
	}
	if in.Histogram != nil && in.Histogram.TotalCount() > 0 {
		s.P50ResponseTimeMs = Round2(in.Histogram.QuantileMs(50))
		s.P90ResponseTimeMs = Round2(in.Histogram.QuantileMs(90))
		s.P99ResponseTimeMs = Round2(in.Histogram.QuantileMs(99))
	}
	return s
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
