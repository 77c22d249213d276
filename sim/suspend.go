package sim

import "fmt"

// Suspension is an event that is never scheduled by the kernel. It fires only
// when the process parked on it is resumed with Process.Resume.
type Suspension struct {
	event
	holder *Process
}

// Suspend creates a suspension. Waiting on it passivates the waiting process.
func (k *Kernel) Suspend() *Suspension {
	s := &Suspension{}
	s.init(k, s)
	return s
}

func (s *Suspension) base() *event {
	if s == nil {
		return nil
	}
	return &s.event
}

func (s *Suspension) String() string {
	if s.holder == nil {
		return fmt.Sprintf("Suspension#%d", s.seq)
	}
	return fmt.Sprintf("Suspension(%s)", s.holder)
}

// Holder returns the process parked on the suspension, or nil.
func (s *Suspension) Holder() *Process { return s.holder }

// park binds s to p. It fails when p created a timeout during the current
// step without waiting on it, or when s already parks another process.
func (s *Suspension) park(p *Process) error {
	if len(p.unyielded) > 0 {
		return fmt.Errorf("%w: %s suspended with %s created but not waited on",
			ErrIllegalSuspend, p, p.unyielded[0])
	}
	if s.holder != nil && s.holder != p {
		return fmt.Errorf("%w: %s is held by %s", ErrIllegalSuspend, s, s.holder)
	}
	s.holder = p
	return nil
}

// Resume reactivates a suspended process at the current instant, delivering
// value as the outcome of its suspension. It fails with ErrNotSuspended in
// any other state, including before the first advancement has completed.
func (p *Process) Resume(value any) error {
	if p.state != StateSuspended {
		return fmt.Errorf("%s: %w (state %s)", p, ErrNotSuspended, p.state)
	}
	s := p.target.(*Suspension)
	p.setState(StateWaiting)
	return s.trigger(Outcome{Value: value})
}
