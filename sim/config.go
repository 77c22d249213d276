package sim

import (
	"fmt"

	"github.com/inference-sim/simkernel/sim/trace"
)

// KernelConfig groups the parameters of a Kernel.
type KernelConfig struct {
	Name  string           // label attached to every log line of the kernel
	Seed  int64            // master seed for the kernel's PartitionedRNG
	Trace trace.TraceLevel // "" or "none" disables tracing
}

// NewKernelConfig creates a KernelConfig. Exists so callers get a compile
// error when a field is added.
func NewKernelConfig(name string, seed int64, level trace.TraceLevel) KernelConfig {
	return KernelConfig{Name: name, Seed: seed, Trace: level}
}

// DefaultKernelConfig returns the configuration used by NewKernel callers that
// do not care: seed 42, no tracing.
func DefaultKernelConfig() KernelConfig {
	return NewKernelConfig("kernel", 42, trace.TraceLevelNone)
}

// Validate checks the configuration.
func (c KernelConfig) Validate() error {
	if !trace.IsValidTraceLevel(string(c.Trace)) {
		return fmt.Errorf("unknown trace level %q", c.Trace)
	}
	return nil
}
