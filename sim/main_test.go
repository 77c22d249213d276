package sim

import (
	"testing"

	"go.uber.org/goleak"
)

// The kernel never starts goroutines; any leak comes from a test.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestKernel() *Kernel {
	return NewKernel(DefaultKernelConfig())
}

// hold is a step function waiting delay time units.
func hold(delay Time) BodyFunc {
	return func(p *Process, in Outcome) Step { return p.Hold(delay) }
}

// fail is a step function failing with err.
func fail(err error) BodyFunc {
	return func(p *Process, in Outcome) Step { return Fail(err) }
}
