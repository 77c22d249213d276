package sim

import (
	"errors"
	"fmt"
	"strings"
)

// Usage errors detected by the kernel. They are fatal to the process in which
// they are detected and propagate like any other failure.
var (
	ErrInvalidYieldValue    = errors.New("invalid yield value")
	ErrEventAlreadyOccurred = errors.New("event already occurred")
	ErrNotSuspended         = errors.New("not suspended")
	ErrIllegalSuspend       = errors.New("illegal suspend")
	ErrAlreadyProcessed     = errors.New("event already processed")
	ErrInvalidDelay         = errors.New("invalid delay")
)

// Run loop errors.
var (
	ErrKernelRunning   = errors.New("kernel is already running")
	ErrKernelAborted   = errors.New("kernel aborted")
	ErrKernelPanicked  = errors.New("panic during run")
	ErrInvalidUntil    = errors.New("invalid until")
	ErrUntilNotReached = errors.New("event queue drained before until event was processed")
)

// Frame is one hop of a failure through the process hierarchy: the process
// that did not handle the failure and the wait site it was parked at.
type Frame struct {
	Process string
	ID      uint64
	Site    string // empty for the frame where the failure originated
	Time    Time
}

func (f Frame) String() string {
	s := fmt.Sprintf("Process(%d, %s) at t=%v", f.ID, f.Process, f.Time)
	if f.Site != "" {
		s += " in " + f.Site
	}
	return s
}

// ProcessError is the failure outcome of a process. Err is the original error;
// Frames lists every process it climbed through, origin first.
type ProcessError struct {
	Err    error
	Frames []Frame
}

// Error renders outermost frame first, ending with the original message.
func (e *ProcessError) Error() string {
	var b strings.Builder
	for i := len(e.Frames) - 1; i >= 0; i-- {
		b.WriteString(e.Frames[i].String())
		b.WriteString(": ")
	}
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *ProcessError) Unwrap() error { return e.Err }

// Origin returns the frame where the failure was raised.
func (e *ProcessError) Origin() Frame {
	if len(e.Frames) == 0 {
		return Frame{}
	}
	return e.Frames[0]
}

// Traceback renders the chain from the abort point down to the origin, one
// frame per line, in the order a stack trace is read.
func (e *ProcessError) Traceback() string {
	var b strings.Builder
	b.WriteString("Traceback (outermost wait first):\n")
	for i := len(e.Frames) - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "  %s\n", e.Frames[i])
	}
	fmt.Fprintf(&b, "%T: %s\n", e.Err, e.Err)
	return b.String()
}

// with returns a copy of e extended by f. Copies keep sibling waiters of the
// same failed event from sharing a frame slice.
func (e *ProcessError) with(f Frame) *ProcessError {
	frames := make([]Frame, len(e.Frames), len(e.Frames)+1)
	copy(frames, e.Frames)
	return &ProcessError{Err: e.Err, Frames: append(frames, f)}
}
