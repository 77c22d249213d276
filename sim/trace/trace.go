package trace

// TraceLevel controls the verbosity of kernel tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelEvents captures every event the kernel processes.
	TraceLevelEvents TraceLevel = "events"
	// TraceLevelProcesses captures events plus every process state transition.
	TraceLevelProcesses TraceLevel = "processes"
)

// traceLevelRank orders accepted trace level strings by verbosity.
var traceLevelRank = map[TraceLevel]int{
	TraceLevelNone:      0,
	TraceLevelEvents:    1,
	TraceLevelProcesses: 2,
	"":                  0, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	_, ok := traceLevelRank[TraceLevel(level)]
	return ok
}

// Records reports whether a trace at level l includes records of level want.
func (l TraceLevel) Records(want TraceLevel) bool {
	return traceLevelRank[want] > 0 && traceLevelRank[l] >= traceLevelRank[want]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects kernel records during a run.
type SimulationTrace struct {
	Config    TraceConfig
	Events    []EventRecord
	Processes []ProcessRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:    config,
		Events:    make([]EventRecord, 0),
		Processes: make([]ProcessRecord, 0),
	}
}

// RecordEvent appends a processed-event record.
func (st *SimulationTrace) RecordEvent(record EventRecord) {
	st.Events = append(st.Events, record)
}

// RecordProcess appends a process transition record.
func (st *SimulationTrace) RecordProcess(record ProcessRecord) {
	st.Processes = append(st.Processes, record)
}
