package sim

import "fmt"

// EventState is the lifecycle of a single-fire event.
type EventState int

const (
	EventPending EventState = iota
	EventTriggered
	EventProcessed
)

func (s EventState) String() string {
	switch s {
	case EventPending:
		return "pending"
	case EventTriggered:
		return "triggered"
	case EventProcessed:
		return "processed"
	}
	return fmt.Sprintf("EventState(%d)", int(s))
}

// Outcome is what an event fires with. A non-nil Err marks a failure.
type Outcome struct {
	Value any
	Err   error
}

// Failed reports whether the outcome carries an error.
func (o Outcome) Failed() bool { return o.Err != nil }

// Waitable is something a process body can wait on. It is implemented by
// exactly *Event, *Timeout, *Process and *Suspension.
type Waitable interface {
	fmt.Stringer
	base() *event
}

// event is the slot shared by every Waitable: an outcome, a state and the
// continuations to run once the kernel processes it.
type event struct {
	kernel    *Kernel
	owner     Waitable
	seq       uint64
	state     EventState
	inPass    bool // continuations are being run
	outcome   Outcome
	callbacks []func(Outcome)
}

func (e *event) init(k *Kernel, owner Waitable) {
	e.kernel = k
	e.owner = owner
	e.seq = k.nextSeq()
}

// Seq returns the kernel-scoped creation sequence number.
func (e *event) Seq() uint64 { return e.seq }

// EventState returns the current lifecycle state.
func (e *event) EventState() EventState { return e.state }

// Triggered reports whether the outcome has been decided.
func (e *event) Triggered() bool { return e.state != EventPending }

// Processed reports whether the continuations have been run.
func (e *event) Processed() bool { return e.state == EventProcessed }

// Outcome returns the recorded outcome. It is the zero Outcome while pending.
func (e *event) Outcome() Outcome {
	if e.state == EventPending {
		return Outcome{}
	}
	return e.outcome
}

// AddCallback attaches a continuation. Continuations added while the event is
// triggered but not yet processed still run in the current processing pass.
func (e *event) AddCallback(fn func(Outcome)) error {
	if e.state == EventProcessed {
		return fmt.Errorf("%w %q", ErrAlreadyProcessed, e.owner.String())
	}
	e.callbacks = append(e.callbacks, fn)
	return nil
}

// trigger decides the outcome and queues the event for processing now.
func (e *event) trigger(o Outcome) error {
	if e.state != EventPending {
		return fmt.Errorf("%w %q", ErrEventAlreadyOccurred, e.owner.String())
	}
	e.state = EventTriggered
	e.outcome = o
	e.kernel.schedule(e, 0)
	return nil
}

// process runs the continuations in attachment order and marks the event
// processed. A failure nobody was attached to is returned to the run loop.
func (e *event) process() error {
	e.inPass = true
	for i := 0; i < len(e.callbacks); i++ {
		e.callbacks[i](e.outcome)
	}
	handled := len(e.callbacks) > 0
	e.callbacks = nil
	e.inPass = false
	e.state = EventProcessed
	if e.outcome.Err != nil && !handled {
		return e.outcome.Err
	}
	return nil
}

// Event is a plain event triggered explicitly by user code.
type Event struct {
	event
	name string
}

// Event creates a pending event. name is only used in diagnostics.
func (k *Kernel) Event(name string) *Event {
	e := &Event{name: name}
	e.init(k, e)
	return e
}

func (e *Event) base() *event {
	if e == nil {
		return nil
	}
	return &e.event
}

func (e *Event) String() string {
	if e.name == "" {
		return fmt.Sprintf("Event#%d", e.seq)
	}
	return fmt.Sprintf("Event(%s)", e.name)
}

// Name returns the diagnostic name given at creation.
func (e *Event) Name() string { return e.name }

// Trigger decides the outcome of the event.
func (e *Event) Trigger(o Outcome) error { return e.trigger(o) }

// Succeed triggers the event with value.
func (e *Event) Succeed(value any) error { return e.trigger(Outcome{Value: value}) }

// Fail triggers the event with err as its failure.
func (e *Event) Fail(err error) error {
	if err == nil {
		return fmt.Errorf("%s: Fail called with nil error", e)
	}
	return e.trigger(Outcome{Err: err})
}
