package sim

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/simkernel/sim/trace"
)

// Time is simulated time. It starts at 0 and only moves forward.
type Time float64

// KernelState is the state of the run loop.
type KernelState int

const (
	KernelIdle KernelState = iota
	KernelRunning
	KernelAborted
)

func (s KernelState) String() string {
	switch s {
	case KernelIdle:
		return "idle"
	case KernelRunning:
		return "running"
	case KernelAborted:
		return "aborted"
	}
	return fmt.Sprintf("KernelState(%d)", int(s))
}

// Kernel owns the clock, the event queue and the sequence counters of one
// simulation. Kernels share no state, so independent kernels may run on
// different goroutines; a single kernel must only be used from one.
type Kernel struct {
	id    uuid.UUID
	cfg   KernelConfig
	now   Time
	queue EventQueue
	seq   uint64
	pids  uint64
	state KernelState
	err   error

	// process whose body is executing, nil between steps
	active *Process

	processed uint64
	rng       *PartitionedRNG
	trace     *trace.SimulationTrace
	log       *logrus.Entry
}

// NewKernel creates an idle kernel at time 0. It panics on an invalid config.
func NewKernel(cfg KernelConfig) *Kernel {
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("sim: NewKernel: %v", err))
	}
	k := &Kernel{
		id:    uuid.New(),
		cfg:   cfg,
		queue: make(EventQueue, 0),
		rng:   NewPartitionedRNG(NewSimulationKey(cfg.Seed)),
	}
	if cfg.Trace.Records(trace.TraceLevelEvents) {
		k.trace = trace.NewSimulationTrace(trace.TraceConfig{Level: cfg.Trace})
	}
	k.log = logrus.WithFields(logrus.Fields{"kernel": cfg.Name, "run": k.id.String()})
	return k
}

// ID returns the run identifier attached to the kernel's log lines.
func (k *Kernel) ID() uuid.UUID { return k.id }

// Config returns the configuration the kernel was created with.
func (k *Kernel) Config() KernelConfig { return k.cfg }

// Now returns the current simulated time.
func (k *Kernel) Now() Time { return k.now }

// State returns the run loop state.
func (k *Kernel) State() KernelState { return k.state }

// Err returns the failure that aborted the kernel, if any.
func (k *Kernel) Err() error { return k.err }

// Active returns the process whose body is executing, or nil.
func (k *Kernel) Active() *Process { return k.active }

// Pending returns the number of queued entries.
func (k *Kernel) Pending() int { return k.queue.Len() }

// Processed returns the number of events processed so far.
func (k *Kernel) Processed() uint64 { return k.processed }

// RNG returns the kernel's partitioned random source.
func (k *Kernel) RNG() *PartitionedRNG { return k.rng }

// Trace returns the run trace, or nil when tracing is disabled.
func (k *Kernel) Trace() *trace.SimulationTrace { return k.trace }

func (k *Kernel) nextSeq() uint64 {
	s := k.seq
	k.seq++
	return s
}

func (k *Kernel) nextPID() uint64 {
	id := k.pids
	k.pids++
	return id
}

// schedule queues e for processing at Now()+delay with a fresh sequence
// number, so it follows every entry already queued for the same time.
func (k *Kernel) schedule(e *event, delay Time) {
	k.queue.push(queueEntry{at: k.now + delay, seq: k.nextSeq(), ev: e})
}

// Run processes events until the queue is empty. It returns the failure of an
// event that was processed with no continuation attached, which aborts the
// kernel for good.
func (k *Kernel) Run() error {
	return k.run(func(Time) bool { return false })
}

// RunUntil processes every event scheduled strictly before until and then
// sets the clock to until. Later events stay queued for a following call.
func (k *Kernel) RunUntil(until Time) error {
	if until < k.now {
		return fmt.Errorf("%w: %v is before now (%v)", ErrInvalidUntil, until, k.now)
	}
	if err := k.run(func(at Time) bool { return at >= until }); err != nil {
		return err
	}
	k.now = until
	return nil
}

// RunUntilEvent processes events until w has been processed and returns its
// outcome. Because the kernel watches w, a failure of w is returned here
// instead of aborting the kernel.
func (k *Kernel) RunUntilEvent(w Waitable) (any, error) {
	var e *event
	if w != nil {
		e = w.base()
	}
	if e == nil || e.kernel != k {
		return nil, fmt.Errorf("%w: %v is not an event of this kernel", ErrInvalidUntil, w)
	}
	if e.state != EventProcessed {
		done := false
		if err := e.AddCallback(func(Outcome) { done = true }); err != nil {
			return nil, err
		}
		if err := k.run(func(Time) bool { return done }); err != nil {
			return nil, err
		}
		if !done {
			return nil, fmt.Errorf("%w: %s", ErrUntilNotReached, w)
		}
	}
	return e.outcome.Value, e.outcome.Err
}

func (k *Kernel) run(stop func(at Time) bool) error {
	switch k.state {
	case KernelRunning:
		return ErrKernelRunning
	case KernelAborted:
		return fmt.Errorf("%w: %w", ErrKernelAborted, k.err)
	}
	k.state = KernelRunning
	k.log.Debugf("[t=%v] run: %d queued", k.now, k.queue.Len())
	defer func() {
		if r := recover(); r != nil {
			k.state = KernelAborted
			k.err = fmt.Errorf("%w: %v", ErrKernelPanicked, r)
			k.active = nil
			k.log.Warnf("[t=%v] aborted: %v", k.now, k.err)
			panic(r)
		}
	}()

	for k.queue.Len() > 0 && !stop(k.queue.peek().at) {
		ent := k.queue.pop()
		if ent.at < k.now {
			panic(fmt.Sprintf("sim: clock went backwards: %v < %v", ent.at, k.now))
		}
		k.now = ent.at
		if err := k.step(ent.ev); err != nil {
			k.state = KernelAborted
			k.err = err
			k.log.Warnf("[t=%v] aborted: %v", k.now, err)
			return err
		}
	}

	k.state = KernelIdle
	k.log.Debugf("[t=%v] run ended: %d processed, %d queued", k.now, k.processed, k.queue.Len())
	return nil
}

// step processes one dequeued event. Timeouts reach the queue still pending
// and are triggered here.
func (k *Kernel) step(e *event) error {
	if e.state == EventPending {
		e.state = EventTriggered
	}
	k.processed++
	k.log.Debugf("[t=%v] processing %s (%d waiting)", k.now, e.owner, len(e.callbacks))
	if k.trace != nil {
		k.trace.RecordEvent(trace.EventRecord{
			Clock:     float64(k.now),
			Seq:       e.seq,
			Event:     e.owner.String(),
			Failed:    e.outcome.Err != nil,
			Callbacks: len(e.callbacks),
		})
	}
	return e.process()
}
