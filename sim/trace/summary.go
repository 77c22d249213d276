package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalEvents       int               `json:"total_events"`
	FailedEvents      int               `json:"failed_events"`
	UnhandledFailures int               `json:"unhandled_failures"` // failed events processed with no continuation
	Transitions       int               `json:"transitions"`
	MaxClock          float64           `json:"max_clock"`
	FinalStates       map[string]string `json:"final_states"` // process → last state recorded
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		FinalStates: make(map[string]string),
	}
	if st == nil {
		return summary
	}

	summary.TotalEvents = len(st.Events)
	for _, e := range st.Events {
		if e.Failed {
			summary.FailedEvents++
			if e.Callbacks == 0 {
				summary.UnhandledFailures++
			}
		}
		if e.Clock > summary.MaxClock {
			summary.MaxClock = e.Clock
		}
	}

	summary.Transitions = len(st.Processes)
	for _, p := range st.Processes {
		summary.FinalStates[p.Process] = p.To
		if p.Clock > summary.MaxClock {
			summary.MaxClock = p.Clock
		}
	}

	return summary
}
