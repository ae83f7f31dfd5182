package runner

import (
	"context"
	"sync"
	"time"
)

// Dispatch issues cfg.NumRequests GETs through req with at most
// cfg.Workers() in flight and blocks until every outcome has been recorded.
// It returns the wall-clock time from the first dispatch to the last record.
//
// Cancelling ctx does not skip indices: requests still in the queue are
// attempted and fail fast with the context error, so every index is still
// recorded exactly once.
func Dispatch(ctx context.Context, cfg Config, req Requester, rec Recorder) time.Duration {
	workers := cfg.Workers()
	jobs := make(chan int, workers)

	var wg sync.WaitGroup
	start := time.Now()

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				rec.Record(execute(ctx, req, cfg.URL, idx))
			}
		}()
	}

	for i := 0; i < cfg.NumRequests; i++ {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	return time.Since(start)
}

func execute(ctx context.Context, req Requester, url string, idx int) Outcome {
	resp, err := req.Get(ctx, url)
	if err != nil {
		return Outcome{Index: idx, Err: err}
	}
	return Outcome{Index: idx, Status: resp.StatusCode, Elapsed: resp.Elapsed}
}
