package result

import (
	"fmt"
	"strings"

	"burstq/internal/runner"
	"burstq/internal/tui/styles"
)

// maxErrors caps how many error lines the panel lists.
const maxErrors = 10

// Render draws the final summary panel for a completed run.
func Render(res runner.RunResult) string {
	s := strings.Builder{}

	s.WriteString(styles.Title.Render("📊 Load Test Complete"))
	s.WriteString("\n\n")

	overview := strings.Join([]string{
		styles.Row("Target", res.URL),
		styles.Row("Requested", fmt.Sprintf("%d (concurrency %d)", res.NumRequests, res.Concurrency)),
		styles.Row("Completed", fmt.Sprintf("%d", res.Completed)),
		styles.Row("Successful", styles.OK.Render(fmt.Sprintf("%d", res.Successful))),
		styles.Row("Failed", styles.Fail.Render(fmt.Sprintf("%d", res.Failed))),
	}, "\n")
	s.WriteString(styles.Box.Render(overview))
	s.WriteString("\n\n")

	if st := res.Stats; st != nil {
		s.WriteString(styles.Accent.Render("Response Times"))
		s.WriteString("\n")
		latency := strings.Join([]string{
			styles.Row("Total time", fmt.Sprintf("%.2f s", st.TotalTimeSeconds)),
			styles.Row("Throughput", fmt.Sprintf("%.2f req/s", st.RequestsPerSecond)),
			styles.Row("Avg", fmt.Sprintf("%.2f ms", st.AvgResponseTimeMs)),
			styles.Row("Min / Max", fmt.Sprintf("%.2f / %.2f ms", st.MinResponseTimeMs, st.MaxResponseTimeMs)),
			styles.Row("P50 / P90 / P99", fmt.Sprintf("%.2f / %.2f / %.2f ms", st.P50ResponseTimeMs, st.P90ResponseTimeMs, st.P99ResponseTimeMs)),
			styles.Row("Success rate", styles.Rate(st.SuccessRatePercent).Render(fmt.Sprintf("%.2f%%", st.SuccessRatePercent))),
		}, "\n")
		s.WriteString(styles.Box.Render(latency))
		s.WriteString("\n\n")
	} else {
		s.WriteString(styles.Warn.Render("No responses received, statistics unavailable."))
		s.WriteString("\n\n")
	}

	if len(res.Errors) > 0 {
		s.WriteString(styles.Fail.Render(fmt.Sprintf("❌ Errors (%d)", len(res.Errors))))
		s.WriteString("\n")
		shown := res.Errors
		if len(shown) > maxErrors {
			shown = shown[:maxErrors]
		}
		for _, e := range shown {
			s.WriteString("   " + e + "\n")
		}
		if more := len(res.Errors) - len(shown); more > 0 {
			s.WriteString(styles.Subtle.Render(fmt.Sprintf("   ... and %d more", more)))
			s.WriteString("\n")
		}
	}
	return s.String()
}

// Model is the completed-run screen of the live view.
type Model struct {
	Result runner.RunResult
}

func NewModel(res runner.RunResult) Model {
	return Model{Result: res}
}

func (m Model) View() string {
	return Render(m.Result) + "\n" + styles.Subtle.Render("Press q to quit")
}
