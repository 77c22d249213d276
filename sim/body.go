package sim

import "fmt"

// Body is the logic of one activity. The kernel calls Advance once when the
// process starts and once each time the event it waits on is processed; in
// carries that event's outcome (the zero Outcome on the first call). Each call
// returns the next Step: wait on an event, return a value, or fail.
//
// Bodies keep their own position between calls. Process.Steps tells how many
// times Advance already ran for this process, which is enough for most
// step-indexed bodies (see Sequence).
type Body interface {
	Advance(p *Process, in Outcome) Step
}

// BodyFunc adapts a function to Body.
type BodyFunc func(p *Process, in Outcome) Step

// Advance calls f(p, in).
func (f BodyFunc) Advance(p *Process, in Outcome) Step { return f(p, in) }

type stepKind int

const (
	stepNone stepKind = iota
	stepWait
	stepReturn
	stepFail
)

// Step is a body's suspension request. The zero Step is treated as waiting on
// nothing and fails the process with ErrInvalidYieldValue.
type Step struct {
	kind   stepKind
	target any
	value  any
	err    error
	site   string
	catch  bool
}

// Wait parks the process until target is processed. target must be a
// Waitable of the same kernel.
func Wait(target any) Step { return Step{kind: stepWait, target: target} }

// Return finishes the process with value.
func Return(value any) Step { return Step{kind: stepReturn, value: value} }

// Fail finishes the process with err as its failure.
func Fail(err error) Step { return Step{kind: stepFail, err: err} }

// At labels the step for diagnostics. The label becomes the Site of the
// frame recorded if a failure passes through this step.
func (s Step) At(site string) Step {
	s.site = site
	return s
}

// Catch makes a failure of the awaited event reach the body as in.Err instead
// of failing the process.
func (s Step) Catch() Step {
	s.catch = true
	return s
}

func (s Step) String() string {
	switch s.kind {
	case stepWait:
		return fmt.Sprintf("wait %v", s.target)
	case stepReturn:
		return fmt.Sprintf("return %v", s.value)
	case stepFail:
		return fmt.Sprintf("fail %v", s.err)
	}
	return "<no step>"
}

// Sequence builds a body from step functions run in order, one per
// advancement: fns[0] starts the process, fns[i] receives the outcome of the
// wait requested by fns[i-1]. Once all functions ran, the process finishes
// with the last outcome's value. The body holds no state of its own and can
// be started any number of times.
func Sequence(fns ...BodyFunc) Body {
	return BodyFunc(func(p *Process, in Outcome) Step {
		i := p.Steps()
		if i >= len(fns) {
			return Return(in.Value)
		}
		return fns[i](p, in)
	})
}
