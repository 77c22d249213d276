package sim

import (
	"fmt"
	"math"
)

// Timeout is an event that fires by itself delay time units after creation.
// It always succeeds.
type Timeout struct {
	event
	delay Time
}

// Timeout schedules an event at Now()+delay carrying value. Negative, NaN and
// infinite delays are rejected with ErrInvalidDelay.
func (k *Kernel) Timeout(delay Time, value any) (*Timeout, error) {
	return k.timeout(delay, value, k.active)
}

// timeout schedules the timeout and records it as not yet waited on by owner.
func (k *Kernel) timeout(delay Time, value any, owner *Process) (*Timeout, error) {
	d := float64(delay)
	if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDelay, delay)
	}
	t := &Timeout{delay: delay}
	t.init(k, t)
	t.outcome = Outcome{Value: value}
	k.schedule(&t.event, delay)
	if owner != nil {
		owner.unyielded = append(owner.unyielded, t)
	}
	return t, nil
}

func (t *Timeout) base() *event {
	if t == nil {
		return nil
	}
	return &t.event
}

func (t *Timeout) String() string { return fmt.Sprintf("Timeout(%v)", t.delay) }

// Delay returns the delay the timeout was created with.
func (t *Timeout) Delay() Time { return t.delay }
