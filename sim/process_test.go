package sim

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/simkernel/sim/internal/testutil"
)

var errOnoes = errors.New("Onoes!")

func TestStart_AdvancesSynchronously(t *testing.T) {
	k := newTestKernel()
	ran := false
	p := k.Start("eager", Sequence(
		func(p *Process, in Outcome) Step {
			ran = true
			assert.Equal(t, StateRunning, p.State())
			assert.Same(t, p, p.Kernel().Active())
			return p.Hold(1)
		},
	))

	assert.True(t, ran, "body must run before Start returns")
	assert.Equal(t, StateWaiting, p.State())
	assert.Nil(t, k.Active())
	assert.Equal(t, "Process(0, eager)", p.String())
	assert.Equal(t, 1, p.Steps())
}

func TestProcess_ReturnValueReachesWaiter(t *testing.T) {
	k := newTestKernel()
	child := Sequence(hold(1), func(p *Process, in Outcome) Step { return Return(42) })
	var got any
	parent := k.Start("parent", Sequence(
		func(p *Process, in Outcome) Step { return Wait(p.Start("child", child)) },
		func(p *Process, in Outcome) Step {
			got = in.Value
			return Return("done")
		},
	))

	require.NoError(t, k.Run())
	assert.Equal(t, 42, got)
	assert.Equal(t, StateFinished, parent.State())
	assert.Equal(t, "done", parent.Outcome().Value)
	assert.Equal(t, Time(1), k.Now())
}

func TestSequence_BodyCanBeStartedTwice(t *testing.T) {
	k := newTestKernel()
	body := Sequence(hold(1), hold(2))
	a := k.Start("worker", body)
	b := k.Start("worker", body)

	require.NoError(t, k.Run())
	assert.Equal(t, StateFinished, a.State())
	assert.Equal(t, StateFinished, b.State())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, Time(3), k.Now())
}

// A child failing inside Start is still delivered to a parent that waits on
// it right away.
func TestErrorForwarding_ImmediateChildFailure_ParentCatches(t *testing.T) {
	k := newTestKernel()
	var caught error
	k.Start("parent", Sequence(
		func(p *Process, in Outcome) Step {
			return Wait(p.Start("child", Sequence(fail(errOnoes)))).Catch()
		},
		func(p *Process, in Outcome) Step {
			caught = in.Err
			return Return(nil)
		},
	))

	require.NoError(t, k.Run())
	require.ErrorIs(t, caught, errOnoes)
}

func TestErrorForwarding_NoWaiter_AbortsRun(t *testing.T) {
	// GIVEN a parent that starts a failing child but never waits on it
	k := newTestKernel()
	k.Start("parent", Sequence(
		func(p *Process, in Outcome) Step {
			child := p.Start("child", Sequence(fail(errOnoes)))
			assert.Equal(t, StateFailed, child.State(), "failure must surface during Start")
			return p.Hold(1)
		},
		func(p *Process, in Outcome) Step {
			t.Error("parent must not be resumed after the abort")
			return Return(nil)
		},
	))

	// WHEN run
	err := k.Run()

	// THEN the run aborts with the child's error at the instant it failed
	require.ErrorIs(t, err, errOnoes)
	var pe *ProcessError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "child", pe.Origin().Process)
	assert.Equal(t, KernelAborted, k.State())
	assert.Equal(t, Time(0), k.Now())
}

func TestErrorForwarding_FailureAfterSuspension_ParentCatchesAndContinues(t *testing.T) {
	k := newTestKernel()
	var caughtAt Time = -1
	parent := k.Start("parent", Sequence(
		func(p *Process, in Outcome) Step {
			return Wait(p.Start("child", Sequence(hold(1), fail(errOnoes)))).Catch()
		},
		func(p *Process, in Outcome) Step {
			if !errors.Is(in.Err, errOnoes) {
				return Fail(errors.New("expected Onoes!"))
			}
			caughtAt = p.Now()
			return p.Hold(1)
		},
	))

	require.NoError(t, k.Run())
	assert.Equal(t, Time(1), caughtAt)
	assert.Equal(t, StateFinished, parent.State())
	assert.Equal(t, Time(2), k.Now())
}

func TestErrorForwarding_CaughtFailureKeepsOriginFrame(t *testing.T) {
	k := newTestKernel()
	var pe *ProcessError
	k.Start("root", Sequence(
		func(p *Process, in Outcome) Step {
			return Wait(p.Start("panic", Sequence(hold(1), fail(errors.New("BOOM"))))).
				At("yield start(panic)").Catch()
		},
		func(p *Process, in Outcome) Step {
			if !errors.As(in.Err, &pe) {
				return Fail(errors.New("expected a ProcessError"))
			}
			return Return(nil)
		},
	))

	require.NoError(t, k.Run())
	require.NotNil(t, pe)
	require.Len(t, pe.Frames, 1)
	assert.Equal(t, Frame{Process: "panic", ID: 1, Time: 1}, pe.Frames[0])
}

func TestErrorForwarding_Chaining_RecordsEveryWaitSite(t *testing.T) {
	// GIVEN grandparent waits on parent waits on child, child fails at t=1
	k := newTestKernel()
	errFoo := errors.New("foo")
	child := Sequence(hold(1), func(p *Process, in Outcome) Step {
		return Fail(errFoo).At("raise foo")
	})
	parent := Sequence(func(p *Process, in Outcome) Step {
		return Wait(p.Start("child", child)).At("yield child_proc")
	})
	k.Start("grandparent", Sequence(func(p *Process, in Outcome) Step {
		return Wait(p.Start("parent", parent)).At("yield parent_proc")
	}))

	// WHEN nobody catches
	err := k.Run()

	// THEN the original error escapes with one frame per hop
	require.ErrorIs(t, err, errFoo)
	var pe *ProcessError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []Frame{
		{Process: "child", ID: 2, Site: "raise foo", Time: 1},
		{Process: "parent", ID: 1, Site: "yield child_proc", Time: 1},
		{Process: "grandparent", ID: 0, Site: "yield parent_proc", Time: 1},
	}, pe.Frames)
	assert.Equal(t,
		"Process(0, grandparent) at t=1 in yield parent_proc: "+
			"Process(1, parent) at t=1 in yield child_proc: "+
			"Process(2, child) at t=1 in raise foo: foo",
		err.Error())

	tb := pe.Traceback()
	assert.Contains(t, tb, "yield child_proc")
	assert.Contains(t, tb, "yield parent_proc")
	assert.True(t, strings.HasSuffix(tb, "foo\n"))
}

func TestErrorForwarding_DefaultSiteNamesAwaitedEvent(t *testing.T) {
	k := newTestKernel()
	k.Start("parent", Sequence(func(p *Process, in Outcome) Step {
		return Wait(p.Start("child", Sequence(hold(1), fail(errOnoes))))
	}))

	err := k.Run()
	var pe *ProcessError
	require.ErrorAs(t, err, &pe)
	require.Len(t, pe.Frames, 2)
	assert.Equal(t, "wait Process(1, child)", pe.Frames[1].Site)
}

func TestErrorForwarding_SiblingWaitersGetIndependentChains(t *testing.T) {
	// GIVEN two parents waiting on the same failing child, each watched by a
	// grandparent that catches
	k := newTestKernel()
	var child *Process
	chains := map[string][]Frame{}
	watch := func(name string) {
		parent := Sequence(func(p *Process, in Outcome) Step { return Wait(child) })
		k.Start("gp-"+name, Sequence(
			func(p *Process, in Outcome) Step { return Wait(p.Start(name, parent)).Catch() },
			func(p *Process, in Outcome) Step {
				var pe *ProcessError
				require.ErrorAs(t, in.Err, &pe)
				chains[name] = pe.Frames
				return Return(nil)
			},
		))
	}
	child = k.Start("child", Sequence(hold(1), fail(errOnoes)))
	watch("a")
	watch("b")

	// WHEN run
	require.NoError(t, k.Run())

	// THEN each chain ends with its own parent
	require.Len(t, chains["a"], 2)
	require.Len(t, chains["b"], 2)
	assert.Equal(t, "a", chains["a"][1].Process)
	assert.Equal(t, "b", chains["b"][1].Process)
}

func TestWait_ProcessedEvent_EventAlreadyOccurred(t *testing.T) {
	// GIVEN a parent that waits on its child after the child finished
	k := newTestKernel()
	var child *Process
	k.Start("parent", Sequence(
		func(p *Process, in Outcome) Step {
			child = p.Start("child", Sequence(hold(1)))
			return p.Hold(2)
		},
		func(p *Process, in Outcome) Step { return Wait(child) },
	))

	// WHEN run
	err := k.Run()

	// THEN the late waiter fails naming the child
	require.ErrorIs(t, err, ErrEventAlreadyOccurred)
	assert.True(t, strings.HasSuffix(err.Error(), `event already occurred "Process(1, child)"`), err.Error())
	assert.Equal(t, Time(2), k.Now())
}

func TestWait_InvalidYieldValue(t *testing.T) {
	var nilProc *Process
	tests := []struct {
		name string
		step Step
		want string
	}{
		{"nil", Wait(nil), `invalid yield value "<nil>"`},
		{"zero step", Step{}, `invalid yield value "<nil>"`},
		{"not an event", Wait(42), `invalid yield value "42"`},
		{"typed nil", Wait(nilProc), `invalid yield value "<nil>"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := newTestKernel()
			step := tt.step
			p := k.Start("root", BodyFunc(func(p *Process, in Outcome) Step { return step }))

			err := k.Run()
			require.ErrorIs(t, err, ErrInvalidYieldValue)
			assert.True(t, strings.HasSuffix(err.Error(), tt.want), err.Error())
			assert.Equal(t, StateFailed, p.State())
		})
	}
}

func TestWait_EventOfAnotherKernel_InvalidYieldValue(t *testing.T) {
	k := newTestKernel()
	other := newTestKernel()
	foreign := other.Event("elsewhere")
	k.Start("root", BodyFunc(func(p *Process, in Outcome) Step { return Wait(foreign) }))

	err := k.Run()
	require.ErrorIs(t, err, ErrInvalidYieldValue)
	assert.Contains(t, err.Error(), "another kernel")
}

func TestFail_NilError_StillFails(t *testing.T) {
	k := newTestKernel()
	p := k.Start("root", Sequence(fail(nil)))
	assert.Equal(t, StateFailed, p.State())
	require.Error(t, k.Run())
}

func TestStart_NilBody_Panics(t *testing.T) {
	k := newTestKernel()
	assert.Panics(t, func() { k.Start("nobody", nil) })
}

func TestProcess_WaitsOnPlainEvent(t *testing.T) {
	k := newTestKernel()
	signal := k.Event("signal")
	var got any
	waiter := k.Start("waiter", Sequence(
		func(p *Process, in Outcome) Step { return Wait(signal) },
		func(p *Process, in Outcome) Step {
			got = in.Value
			return Return(nil)
		},
	))
	assert.Equal(t, StateWaiting, waiter.State())
	assert.Same(t, signal, waiter.Target())

	k.Start("sender", Sequence(hold(5), func(p *Process, in Outcome) Step {
		if err := signal.Succeed("hello"); err != nil {
			return Fail(err)
		}
		return Return(nil)
	}))

	require.NoError(t, k.Run())
	assert.Equal(t, "hello", got)
	assert.Nil(t, waiter.Target())
}

func TestProcesses_InterleaveOnSharedClock(t *testing.T) {
	// GIVEN three workers with different periods
	k := newTestKernel()
	rec := &testutil.Recorder{}
	worker := func(period Time) Body {
		return BodyFunc(func(p *Process, in Outcome) Step {
			rec.Add(float64(p.Now()), p.Name())
			if p.Steps() == 4 {
				return Return(nil)
			}
			return p.Hold(period)
		})
	}
	k.Start("fast", worker(1))
	k.Start("mid", worker(2))
	k.Start("slow", worker(3))

	// WHEN run
	require.NoError(t, k.Run())

	// THEN every observation is in clock order and the slowest worker ends last
	rec.AssertNonDecreasing(t)
	assert.Len(t, rec.Times, 15)
	assert.Equal(t, "slow", rec.Labels[len(rec.Labels)-1])
	assert.Equal(t, Time(12), k.Now())
}

func TestWait_EventInItsOwnProcessingPass_EventAlreadyOccurred(t *testing.T) {
	// GIVEN a body that waits again on the event that just woke it
	k := newTestKernel()
	signal := k.Event("signal")
	advances := 0
	p := k.Start("again", BodyFunc(func(p *Process, in Outcome) Step {
		advances++
		if advances > 3 {
			return Return(nil)
		}
		return Wait(signal)
	}))
	require.NoError(t, signal.Succeed(1))

	// WHEN run
	err := k.Run()

	// THEN the outcome is delivered once and the second wait fails
	require.ErrorIs(t, err, ErrEventAlreadyOccurred)
	assert.Contains(t, err.Error(), `"Event(signal)"`)
	assert.Equal(t, 2, advances)
	assert.Equal(t, StateFailed, p.State())
}
