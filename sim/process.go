package sim

import (
	"errors"
	"fmt"

	"github.com/inference-sim/simkernel/sim/trace"
)

// ProcessState is where a process is in its lifecycle.
type ProcessState int

const (
	StateNotStarted ProcessState = iota
	StateRunning
	StateWaiting
	StateSuspended
	StateFinished
	StateFailed
)

func (s ProcessState) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateRunning:
		return "running"
	case StateWaiting:
		return "waiting"
	case StateSuspended:
		return "suspended"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("ProcessState(%d)", int(s))
}

// Process drives one Body and is itself the event of that body's completion:
// it succeeds with the returned value or fails with a *ProcessError.
type Process struct {
	event
	id    uint64
	name  string
	body  Body
	state ProcessState
	steps int

	// current wait
	target Waitable
	site   string
	catch  bool

	// timeouts created during the current step
	unyielded []*Timeout
}

// Start creates a process for body and advances it synchronously up to its
// first suspension point, so a body failing right away has already failed
// when Start returns.
func (k *Kernel) Start(name string, body Body) *Process {
	if body == nil {
		panic(fmt.Sprintf("sim: Start(%q) with nil body", name))
	}
	p := &Process{id: k.nextPID(), name: name, body: body}
	p.init(k, p)
	k.log.Tracef("[t=%v] start %s", k.now, p)
	p.advance(Outcome{})
	return p
}

func (p *Process) base() *event {
	if p == nil {
		return nil
	}
	return &p.event
}

func (p *Process) String() string { return fmt.Sprintf("Process(%d, %s)", p.id, p.name) }

// ID returns the kernel-scoped process number, starting at 0.
func (p *Process) ID() uint64 { return p.id }

// Name returns the name given to Start.
func (p *Process) Name() string { return p.name }

// State returns the process state.
func (p *Process) State() ProcessState { return p.state }

// Kernel returns the kernel running the process.
func (p *Process) Kernel() *Kernel { return p.kernel }

// Now is shorthand for p.Kernel().Now().
func (p *Process) Now() Time { return p.kernel.now }

// Steps returns how many times the body has been advanced.
func (p *Process) Steps() int { return p.steps }

// Target returns the event the process waits on, or nil.
func (p *Process) Target() Waitable { return p.target }

// Start starts a child process on the same kernel.
func (p *Process) Start(name string, body Body) *Process { return p.kernel.Start(name, body) }

// Hold creates a timeout of delay and returns the step waiting on it.
func (p *Process) Hold(delay Time) Step {
	t, err := p.kernel.timeout(delay, nil, p)
	if err != nil {
		return Fail(err)
	}
	return Wait(t)
}

// Suspend returns the step that passivates the process until Resume.
func (p *Process) Suspend() Step { return Wait(p.kernel.Suspend()) }

func (p *Process) setState(s ProcessState) {
	if p.state == s {
		return
	}
	k := p.kernel
	if k.trace != nil && k.trace.Config.Level.Records(trace.TraceLevelProcesses) {
		k.trace.RecordProcess(trace.ProcessRecord{
			Clock:   float64(k.now),
			Process: p.String(),
			From:    p.state.String(),
			To:      s.String(),
		})
	}
	k.log.Tracef("[t=%v] %s %s -> %s", k.now, p, p.state, s)
	p.state = s
}

// advance re-enters the body with the outcome of the last wait.
func (p *Process) advance(in Outcome) {
	switch p.state {
	case StateNotStarted, StateWaiting, StateSuspended:
	default:
		panic(fmt.Sprintf("sim: advance %s in state %s", p, p.state))
	}
	k := p.kernel
	prev := k.active
	k.active = p
	p.unyielded = p.unyielded[:0]
	p.setState(StateRunning)
	step := func() Step {
		defer func() { k.active = prev }()
		return p.body.Advance(p, in)
	}()
	p.steps++
	p.handle(step)
}

func (p *Process) handle(step Step) {
	switch step.kind {
	case stepReturn:
		p.finish(Outcome{Value: step.value})
	case stepFail:
		err := step.err
		if err == nil {
			err = errors.New("Fail called with nil error")
		}
		p.finish(Outcome{Err: p.failure(err, step.site)})
	default:
		p.wait(step)
	}
}

// wait validates the suspension request and parks the process on its target.
func (p *Process) wait(step Step) {
	w, _ := step.target.(Waitable)
	var e *event
	if w != nil {
		e = w.base()
	}
	switch {
	case e == nil:
		p.finish(Outcome{Err: p.failure(
			fmt.Errorf("%w %q", ErrInvalidYieldValue, fmt.Sprint(step.target)), step.site)})
		return
	case e.kernel != p.kernel:
		p.finish(Outcome{Err: p.failure(
			fmt.Errorf("%w %q: belongs to another kernel", ErrInvalidYieldValue, w.String()), step.site)})
		return
	case e.state == EventProcessed, e.inPass:
		p.finish(Outcome{Err: p.failure(
			fmt.Errorf("%w %q", ErrEventAlreadyOccurred, w.String()), step.site)})
		return
	}

	next := StateWaiting
	if s, ok := w.(*Suspension); ok {
		if err := s.park(p); err != nil {
			p.finish(Outcome{Err: p.failure(err, step.site)})
			return
		}
		next = StateSuspended
	}

	p.target = w
	p.site = step.site
	if p.site == "" {
		p.site = "wait " + w.String()
	}
	p.catch = step.catch
	p.unyielded = p.unyielded[:0]
	e.callbacks = append(e.callbacks, p.wake)
	p.setState(next)
}

// wake is the continuation registered on the awaited event.
func (p *Process) wake(o Outcome) {
	site := p.site
	p.target = nil
	p.site = ""
	if o.Err != nil && !p.catch {
		p.finish(Outcome{Err: p.failure(o.Err, site)})
		return
	}
	p.advance(o)
}

// failure attributes err to p at site. A failure climbing from a child is
// extended by one frame; anything else starts a new chain.
func (p *Process) failure(err error, site string) *ProcessError {
	f := Frame{Process: p.name, ID: p.id, Site: site, Time: p.kernel.now}
	if pe, ok := err.(*ProcessError); ok {
		return pe.with(f)
	}
	return &ProcessError{Err: err, Frames: []Frame{f}}
}

// finish ends the body and triggers the process event exactly once.
func (p *Process) finish(o Outcome) {
	p.target = nil
	if o.Err != nil {
		p.setState(StateFailed)
		p.kernel.log.Debugf("[t=%v] %s failed: %v", p.kernel.now, p, o.Err)
	} else {
		p.setState(StateFinished)
	}
	if err := p.trigger(o); err != nil {
		panic(fmt.Sprintf("sim: %s finished twice: %v", p, err))
	}
}
