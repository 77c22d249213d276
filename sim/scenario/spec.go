// Package scenario describes process sets in YAML and runs them on a kernel.
// Each process is a list of steps; waiting steps (hold, hold_exp, suspend,
// wait) end an advancement, the others (start, resume, log) run inline.
package scenario

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/simkernel/sim/trace"
)

// Scenario is a set of processes described as step lists.
// Loaded from YAML via Load(path).
type Scenario struct {
	Version   string        `yaml:"version"`
	Name      string        `yaml:"name"`
	Seed      int64         `yaml:"seed"`
	Until     *float64      `yaml:"until,omitempty"` // nil = run until the queue drains
	Trace     string        `yaml:"trace,omitempty"`
	Processes []ProcessSpec `yaml:"processes"`
}

// ProcessSpec describes one process body.
type ProcessSpec struct {
	Name      string     `yaml:"name"`
	Autostart *bool      `yaml:"autostart,omitempty"` // default true; false = only started by a start step
	Steps     []StepSpec `yaml:"steps"`
}

// StepSpec is one step of a body. Exactly one action field is set.
type StepSpec struct {
	Hold    *float64 `yaml:"hold,omitempty"`     // wait a fixed delay
	HoldExp *float64 `yaml:"hold_exp,omitempty"` // wait an exponential delay with this mean
	Suspend bool     `yaml:"suspend,omitempty"`  // passivate until resumed
	Resume  string   `yaml:"resume,omitempty"`   // resume the named process
	Start   string   `yaml:"start,omitempty"`    // start a new instance of the named process
	Wait    string   `yaml:"wait,omitempty"`     // wait for the latest instance of the named process
	Fail    string   `yaml:"fail,omitempty"`     // fail with this message
	Log     string   `yaml:"log,omitempty"`      // record a log line
	Return  *string  `yaml:"return,omitempty"`   // finish with this value

	Catch bool   `yaml:"catch,omitempty"` // with wait: handle the failure instead of propagating it
	Value string `yaml:"value,omitempty"` // with hold or resume: payload delivered to the waiter
}

// Action returns the name of the step's action, or "" if none is set.
func (st *StepSpec) Action() string {
	actions := st.actions()
	if len(actions) != 1 {
		return ""
	}
	return actions[0]
}

func (st *StepSpec) actions() []string {
	var out []string
	if st.Hold != nil {
		out = append(out, "hold")
	}
	if st.HoldExp != nil {
		out = append(out, "hold_exp")
	}
	if st.Suspend {
		out = append(out, "suspend")
	}
	if st.Resume != "" {
		out = append(out, "resume")
	}
	if st.Start != "" {
		out = append(out, "start")
	}
	if st.Wait != "" {
		out = append(out, "wait")
	}
	if st.Fail != "" {
		out = append(out, "fail")
	}
	if st.Log != "" {
		out = append(out, "log")
	}
	if st.Return != nil {
		out = append(out, "return")
	}
	return out
}

func (ps *ProcessSpec) autostart() bool {
	return ps.Autostart == nil || *ps.Autostart
}

// Load reads and parses a YAML scenario file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML scenario with strict field checking.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if s.Version == "" {
		s.Version = "1"
	}
	return &s, nil
}

// Validate checks that all fields in the scenario are valid.
func (s *Scenario) Validate() error {
	if s.Version != "1" && s.Version != "" {
		return fmt.Errorf("unsupported scenario version %q; valid: 1", s.Version)
	}
	if !trace.IsValidTraceLevel(s.Trace) {
		return fmt.Errorf("unknown trace level %q; valid: none, events, processes", s.Trace)
	}
	if s.Until != nil {
		if err := validateFiniteNonNegative("until", *s.Until); err != nil {
			return err
		}
	}
	if len(s.Processes) == 0 {
		return fmt.Errorf("at least one process required")
	}
	names := make(map[string]bool, len(s.Processes))
	for i, ps := range s.Processes {
		if ps.Name == "" {
			return fmt.Errorf("process[%d]: name required", i)
		}
		if names[ps.Name] {
			return fmt.Errorf("process[%d]: duplicate name %q", i, ps.Name)
		}
		names[ps.Name] = true
	}
	for i := range s.Processes {
		if err := validateProcess(&s.Processes[i], names); err != nil {
			return err
		}
	}
	return validateStartCycles(s.Processes)
}

// validateStartCycles rejects processes that start themselves, directly or
// through others, before their first waiting step. Start runs the new body
// synchronously, so such a cycle never returns.
func validateStartCycles(procs []ProcessSpec) error {
	eager := make(map[string][]string, len(procs))
	for _, ps := range procs {
		for _, st := range ps.Steps {
			if st.Start != "" {
				eager[ps.Name] = append(eager[ps.Name], st.Start)
				continue
			}
			if st.Resume == "" && st.Log == "" {
				break
			}
		}
	}
	const (
		unvisited = iota
		visiting
		done
	)
	mark := make(map[string]int, len(procs))
	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch mark[name] {
		case visiting:
			return fmt.Errorf("start cycle without a waiting step: %v", append(path, name))
		case done:
			return nil
		}
		mark[name] = visiting
		for _, next := range eager[name] {
			if err := visit(next, append(path, name)); err != nil {
				return err
			}
		}
		mark[name] = done
		return nil
	}
	for _, ps := range procs {
		if err := visit(ps.Name, nil); err != nil {
			return err
		}
	}
	return nil
}

func validateProcess(ps *ProcessSpec, names map[string]bool) error {
	for j := range ps.Steps {
		st := &ps.Steps[j]
		prefix := fmt.Sprintf("%s.steps[%d]", ps.Name, j)
		actions := st.actions()
		if len(actions) != 1 {
			return fmt.Errorf("%s: exactly one action required, got %v", prefix, actions)
		}
		if st.Catch && st.Wait == "" {
			return fmt.Errorf("%s: catch is only valid with wait", prefix)
		}
		if st.Value != "" && st.Hold == nil && st.HoldExp == nil && st.Resume == "" {
			return fmt.Errorf("%s: value is only valid with hold, hold_exp or resume", prefix)
		}
		if st.Hold != nil {
			if err := validateFiniteNonNegative(prefix+".hold", *st.Hold); err != nil {
				return err
			}
		}
		if st.HoldExp != nil {
			if err := validateFinitePositive(prefix+".hold_exp", *st.HoldExp); err != nil {
				return err
			}
		}
		for _, ref := range []string{st.Resume, st.Start, st.Wait} {
			if ref != "" && !names[ref] {
				return fmt.Errorf("%s: unknown process %q", prefix, ref)
			}
		}
	}
	return nil
}

func validateFinitePositive(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%s must be a finite number, got %f", name, val)
	}
	if val <= 0 {
		return fmt.Errorf("%s must be positive, got %f", name, val)
	}
	return nil
}

func validateFiniteNonNegative(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%s must be a finite number, got %f", name, val)
	}
	if val < 0 {
		return fmt.Errorf("%s must be non-negative, got %f", name, val)
	}
	return nil
}
