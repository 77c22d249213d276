package scenario

import (
	"fmt"
	"io"
	"sort"

	"github.com/inference-sim/simkernel/sim/trace"
)

// Report is the outcome of one scenario run.
type Report struct {
	Name      string              `json:"name"`
	Seed      int64               `json:"seed"`
	RunID     string              `json:"run_id"`
	Clock     float64             `json:"clock"`
	Processed uint64              `json:"processed"`
	Pending   int                 `json:"pending"`
	Processes []ProcessReport     `json:"processes"` // in start order
	Caught    []CaughtFailure     `json:"caught,omitempty"`
	Logs      []LogLine           `json:"logs,omitempty"`
	Trace     *trace.TraceSummary `json:"trace,omitempty"` // nil unless tracing was enabled
	Err       string              `json:"error,omitempty"` // aborting failure, empty on success
}

// ProcessReport is the final state of one started process.
type ProcessReport struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
	Value any    `json:"value,omitempty"` // return value of finished processes
}

// CaughtFailure is a failure delivered to a wait step marked catch.
type CaughtFailure struct {
	Clock   float64 `json:"clock"`
	Process string  `json:"process"`
	Err     string  `json:"error"`
}

// LogLine is the output of a log step.
type LogLine struct {
	Clock   float64 `json:"clock"`
	Process string  `json:"process"`
	Message string  `json:"message"`
}

// StateCounts returns how many started processes ended in each state.
func (r *Report) StateCounts() map[string]int {
	counts := make(map[string]int)
	for _, p := range r.Processes {
		counts[p.State]++
	}
	return counts
}

// Print writes a human-readable summary to w.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Scenario Report ===")
	fmt.Fprintf(w, "Scenario          : %s\n", r.Name)
	fmt.Fprintf(w, "Seed              : %d\n", r.Seed)
	fmt.Fprintf(w, "Final clock       : %v\n", r.Clock)
	fmt.Fprintf(w, "Events processed  : %d\n", r.Processed)
	fmt.Fprintf(w, "Events pending    : %d\n", r.Pending)

	counts := r.StateCounts()
	states := make([]string, 0, len(counts))
	for s := range counts {
		states = append(states, s)
	}
	sort.Strings(states)
	for _, s := range states {
		fmt.Fprintf(w, "Processes %-8s: %d\n", s, counts[s])
	}
	for _, l := range r.Logs {
		fmt.Fprintf(w, "  [t=%v] %s: %s\n", l.Clock, l.Process, l.Message)
	}
	for _, c := range r.Caught {
		fmt.Fprintf(w, "  caught [t=%v] %s: %s\n", c.Clock, c.Process, c.Err)
	}
	if r.Trace != nil {
		fmt.Fprintf(w, "Trace events      : %d (%d failed, %d unhandled)\n",
			r.Trace.TotalEvents, r.Trace.FailedEvents, r.Trace.UnhandledFailures)
		fmt.Fprintf(w, "Trace transitions : %d\n", r.Trace.Transitions)
	}
	if r.Err != "" {
		fmt.Fprintf(w, "Aborted           : %s\n", r.Err)
	}
}
