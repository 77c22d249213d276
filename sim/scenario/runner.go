package scenario

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/inference-sim/simkernel/sim"
	"github.com/inference-sim/simkernel/sim/trace"
)

// runner compiles the step lists of a Scenario into process bodies and keeps
// the bookkeeping the report is built from.
type runner struct {
	s       *Scenario
	k       *sim.Kernel
	defs    map[string]*ProcessSpec
	latest  map[string]*sim.Process // most recent instance per name
	started []*sim.Process
	pc      map[*sim.Process]int
	report  *Report
	log     *logrus.Entry
}

func newRunner(s *Scenario, k *sim.Kernel) *runner {
	r := &runner{
		s:      s,
		k:      k,
		defs:   make(map[string]*ProcessSpec, len(s.Processes)),
		latest: make(map[string]*sim.Process),
		pc:     make(map[*sim.Process]int),
		report: &Report{Name: s.Name, Seed: s.Seed, RunID: k.ID().String()},
		log:    logrus.WithFields(logrus.Fields{"scenario": s.Name, "run": k.ID().String()}),
	}
	for i := range s.Processes {
		r.defs[s.Processes[i].Name] = &s.Processes[i]
	}
	return r
}

func (r *runner) start(name string) *sim.Process {
	p := r.k.Start(name, r.body(r.defs[name]))
	r.latest[name] = p
	r.started = append(r.started, p)
	return p
}

func (r *runner) body(def *ProcessSpec) sim.Body {
	return sim.BodyFunc(func(p *sim.Process, in sim.Outcome) sim.Step {
		if in.Err != nil {
			r.report.Caught = append(r.report.Caught, CaughtFailure{
				Clock:   float64(p.Now()),
				Process: p.String(),
				Err:     in.Err.Error(),
			})
			r.log.Infof("[t=%v] %s caught: %v", p.Now(), p, in.Err)
		}
		last := in.Value
		for pc := r.pc[p]; pc < len(def.Steps); pc++ {
			st := &def.Steps[pc]
			site := fmt.Sprintf("%s.steps[%d] %s", def.Name, pc, st.Action())
			r.pc[p] = pc + 1
			switch {
			case st.Hold != nil:
				return r.hold(sim.Time(*st.Hold), st.Value).At(site)
			case st.HoldExp != nil:
				delay := p.Kernel().RNG().ForProcess(p).ExpFloat64() * *st.HoldExp
				return r.hold(sim.Time(delay), st.Value).At(site)
			case st.Suspend:
				return p.Suspend().At(site)
			case st.Resume != "":
				target, err := r.lookup(st.Resume)
				if err != nil {
					return sim.Fail(err).At(site)
				}
				if err := target.Resume(value(st.Value)); err != nil {
					return sim.Fail(err).At(site)
				}
			case st.Start != "":
				r.start(st.Start)
			case st.Wait != "":
				target, err := r.lookup(st.Wait)
				if err != nil {
					return sim.Fail(err).At(site)
				}
				step := sim.Wait(target).At(site)
				if st.Catch {
					step = step.Catch()
				}
				return step
			case st.Fail != "":
				return sim.Fail(errors.New(st.Fail)).At(site)
			case st.Log != "":
				r.report.Logs = append(r.report.Logs, LogLine{Clock: float64(p.Now()), Process: p.String(), Message: st.Log})
				r.log.Infof("[t=%v] %s: %s", p.Now(), p, st.Log)
			case st.Return != nil:
				return sim.Return(*st.Return)
			}
		}
		return sim.Return(last)
	})
}

func (r *runner) hold(delay sim.Time, v string) sim.Step {
	to, err := r.k.Timeout(delay, value(v))
	if err != nil {
		return sim.Fail(err)
	}
	return sim.Wait(to)
}

func (r *runner) lookup(name string) (*sim.Process, error) {
	p, ok := r.latest[name]
	if !ok {
		return nil, fmt.Errorf("process %q has not been started", name)
	}
	return p, nil
}

func value(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func (r *runner) finish() *Report {
	rep := r.report
	rep.Clock = float64(r.k.Now())
	rep.Processed = r.k.Processed()
	rep.Pending = r.k.Pending()
	for _, p := range r.started {
		pr := ProcessReport{ID: p.ID(), Name: p.Name(), State: p.State().String()}
		if p.State() == sim.StateFinished {
			pr.Value = p.Outcome().Value
		}
		rep.Processes = append(rep.Processes, pr)
	}
	if st := r.k.Trace(); st != nil {
		rep.Trace = trace.Summarize(st)
	}
	return rep
}

// Run validates the scenario, starts its autostart processes in declaration
// order and runs a fresh kernel. The report is returned even when the run
// aborts, together with the aborting failure.
func (s *Scenario) Run() (*Report, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	k := sim.NewKernel(sim.NewKernelConfig(s.Name, s.Seed, trace.TraceLevel(s.Trace)))
	r := newRunner(s, k)
	r.log.Debugf("starting %d process definitions", len(s.Processes))
	for i := range s.Processes {
		if s.Processes[i].autostart() {
			r.start(s.Processes[i].Name)
		}
	}

	var err error
	if s.Until != nil {
		err = k.RunUntil(sim.Time(*s.Until))
	} else {
		err = k.Run()
	}
	rep := r.finish()
	if err != nil {
		rep.Err = err.Error()
	}
	return rep, err
}

// RunReplications runs n copies of the scenario on separate kernels, seeding
// replication i with Seed+i. Reports are indexed by replication. The first
// aborted replication's error is returned; replications that had not started
// by then are skipped and leave a nil report.
func RunReplications(ctx context.Context, s *Scenario, n int) ([]*Report, error) {
	if n < 1 {
		return nil, fmt.Errorf("replications must be >= 1, got %d", n)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	reports := make([]*Report, n)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rs := *s
			rs.Seed = s.Seed + int64(i)
			if n > 1 {
				rs.Name = fmt.Sprintf("%s#%d", s.Name, i)
			}
			rep, err := rs.Run()
			reports[i] = rep
			if err != nil {
				return fmt.Errorf("replication %d: %w", i, err)
			}
			return nil
		})
	}
	return reports, g.Wait()
}
