package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"burstq/internal/runner"
)

// Controller is the part of the run controller the headless mode drives.
type Controller interface {
	Start(cfg runner.Config) (string, error)
	Status() runner.Status
	Wait(ctx context.Context) error
}

// Refresh is the progress line redraw period.
var Refresh = 200 * time.Millisecond

// Start launches one run, draws a progress line on w until it finishes and
// prints the summary. It returns the final result.
func Start(ctx context.Context, w io.Writer, ctrl Controller, cfg runner.Config) (runner.RunResult, error) {
	id, err := ctrl.Start(cfg)
	if err != nil {
		return runner.RunResult{}, err
	}
	printHeader(w, id, cfg)

	startTime := time.Now()
	ticker := time.NewTicker(Refresh)
	defer ticker.Stop()

	done := make(chan error, 1)
	go func() { done <- ctrl.Wait(ctx) }()

	for {
		select {
		case err := <-done:
			if err != nil {
				fmt.Fprintf(w, "\n\n⚠️  detached: %v\n", err)
				return runner.RunResult{}, err
			}
			st := ctrl.Status()
			if st.Results == nil {
				return runner.RunResult{}, fmt.Errorf("run %s finished without results", id)
			}
			printProgress(w, *st.Results, time.Since(startTime))
			printSummary(w, *st.Results)
			return *st.Results, nil
		case <-ticker.C:
			if st := ctrl.Status(); st.Results != nil {
				printProgress(w, *st.Results, time.Since(startTime))
			}
		}
	}
}

func printHeader(w io.Writer, id string, cfg runner.Config) {
	fmt.Fprintf(w, "\n🚀 STARTING BURSTQ LOAD TEST\n")
	fmt.Fprintf(w, "======================================================================\n")
	fmt.Fprintf(w, "Run ID      : %s\n", id)
	fmt.Fprintf(w, "Target URL  : %s\n", cfg.URL)
	fmt.Fprintf(w, "Requests    : %d\n", cfg.NumRequests)
	fmt.Fprintf(w, "Concurrency : %d (%d workers)\n", cfg.Concurrency, cfg.Workers())
	fmt.Fprintf(w, "Timeout     : %s per request\n", runner.RequestTimeout)
	fmt.Fprintf(w, "======================================================================\n\n")
}

func printProgress(w io.Writer, res runner.RunResult, elapsed time.Duration) {
	pct := 0.0
	if res.NumRequests > 0 {
		pct = float64(res.Completed) / float64(res.NumRequests)
	}
	fmt.Fprintf(w, "\r%s %3.0f%% | %d/%d | %s | OK: %d | Err: %d",
		progressBar(pct, 20), pct*100,
		res.Completed, res.NumRequests,
		elapsed.Round(100*time.Millisecond),
		res.Successful, res.Failed,
	)
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}

func printSummary(w io.Writer, res runner.RunResult) {
	fmt.Fprintf(w, "\n\n📊 LOAD TEST RESULTS\n")
	fmt.Fprintf(w, "======================================================================\n")
	fmt.Fprintf(w, "Completed      : %d\n", res.Completed)
	fmt.Fprintf(w, "Successful     : %d\n", res.Successful)
	fmt.Fprintf(w, "Failed         : %d\n", res.Failed)

	if st := res.Stats; st != nil {
		fmt.Fprintf(w, "Total Time     : %.2f s\n", st.TotalTimeSeconds)
		fmt.Fprintf(w, "Requests / s   : %.2f\n", st.RequestsPerSecond)
		fmt.Fprintf(w, "Success Rate   : %.2f%%\n", st.SuccessRatePercent)
		fmt.Fprintf(w, "\n⏱️  RESPONSE TIMES (ms)\n")
		fmt.Fprintf(w, "   Avg : %.2f\n", st.AvgResponseTimeMs)
		fmt.Fprintf(w, "   Min : %.2f\n", st.MinResponseTimeMs)
		fmt.Fprintf(w, "   Max : %.2f\n", st.MaxResponseTimeMs)
		fmt.Fprintf(w, "   P50 : %.2f\n", st.P50ResponseTimeMs)
		fmt.Fprintf(w, "   P90 : %.2f\n", st.P90ResponseTimeMs)
		fmt.Fprintf(w, "   P99 : %.2f\n", st.P99ResponseTimeMs)
	} else {
		fmt.Fprintf(w, "\nNo responses received.\n")
	}

	if counts := errorCounts(res.Errors); len(counts) > 0 {
		fmt.Fprintf(w, "\n❌ FAILURE SUMMARY\n")
		for _, c := range counts {
			fmt.Fprintf(w, "   %d x %s\n", c.n, c.msg)
		}
	}
	fmt.Fprintf(w, "======================================================================\n")
}

type errorCount struct {
	msg string
	n   int
}

// errorCounts groups error lines by their text after the "Request N: "
// prefix, in first-seen order.
func errorCounts(errs []string) []errorCount {
	var out []errorCount
	idx := map[string]int{}
	for _, e := range errs {
		msg := e
		if _, rest, ok := strings.Cut(e, ": "); ok && strings.HasPrefix(e, "Request ") {
			msg = rest
		}
		if i, ok := idx[msg]; ok {
			out[i].n++
			continue
		}
		idx[msg] = len(out)
		out = append(out, errorCount{msg: msg, n: 1})
	}
	return out
}
