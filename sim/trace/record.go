// Package trace provides run-trace recording for the simulation kernel.
// This package has no dependencies on sim/; it stores pure data types.
package trace

// EventRecord captures one event processed by the kernel.
type EventRecord struct {
	Clock     float64
	Seq       uint64 // creation sequence number of the event
	Event     string // diagnostic identity, e.g. "Timeout(1)" or "Process(2, child)"
	Failed    bool
	Callbacks int // continuations run when the event was processed
}

// ProcessRecord captures a single process state transition.
type ProcessRecord struct {
	Clock   float64
	Process string
	From    string
	To      string
}
