// Package testutil provides shared test infrastructure for the simulation
// kernel. It is used by the sim/ and sim/scenario/ test packages and must not
// import either of them.
package testutil

import (
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// CaptureLogs attaches a test hook to the standard logrus logger at level and
// restores the previous level and hooks when the test ends.
func CaptureLogs(t *testing.T, level logrus.Level) *test.Hook {
	t.Helper()
	logger := logrus.StandardLogger()
	prevLevel := logger.GetLevel()
	prevHooks := logger.ReplaceHooks(make(logrus.LevelHooks))
	hook := test.NewLocal(logger)
	logger.SetLevel(level)
	t.Cleanup(func() {
		logger.ReplaceHooks(prevHooks)
		logger.SetLevel(prevLevel)
	})
	return hook
}

// Messages returns the messages of every captured entry at or above level.
func Messages(hook *test.Hook, level logrus.Level) []string {
	var out []string
	for _, e := range hook.AllEntries() {
		if e.Level <= level {
			out = append(out, e.Message)
		}
	}
	return out
}

// Recorder is an append-only log of (time, label) pairs written by process
// bodies under test.
type Recorder struct {
	Times  []float64
	Labels []string
}

// Add appends one observation.
func (r *Recorder) Add(at float64, label string) {
	r.Times = append(r.Times, at)
	r.Labels = append(r.Labels, label)
}

// AssertNonDecreasing fails the test if recorded times ever go backwards.
func (r *Recorder) AssertNonDecreasing(t *testing.T) {
	t.Helper()
	for i := 1; i < len(r.Times); i++ {
		if r.Times[i] < r.Times[i-1] {
			t.Errorf("time went backwards at %d (%s): %v < %v", i, r.Labels[i], r.Times[i], r.Times[i-1])
		}
	}
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
