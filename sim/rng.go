package sim

import (
	"hash/fnv"
	"math/rand"
)

// SimulationKey is the master seed of a kernel. Kernels with equal keys that
// see the same sequence of Start, Resume and Timeout calls draw the same
// numbers.
type SimulationKey int64

// NewSimulationKey wraps seed.
func NewSimulationKey(seed int64) SimulationKey { return SimulationKey(seed) }

// SubsystemScenario is the stream for scenario-wide draws. It is seeded with
// the master seed itself, so a --seed value reproduces it unchanged.
const SubsystemScenario = "scenario"

// SubsystemProcess names the stream of processes called name. Streams are
// keyed by name rather than id: starting an unrelated process earlier does
// not shift them.
func SubsystemProcess(name string) string { return "process_" + name }

// derive returns the seed of the named stream.
func (k SimulationKey) derive(name string) int64 {
	if name == SubsystemScenario {
		return int64(k)
	}
	h := fnv.New64a()
	h.Write([]byte(name))
	return int64(k) ^ int64(h.Sum64())
}

// PartitionedRNG hands out one independent *rand.Rand per named stream,
// created on first use. It belongs to a single kernel and is not safe for
// concurrent use.
type PartitionedRNG struct {
	key     SimulationKey
	streams map[string]*rand.Rand
}

// NewPartitionedRNG creates an empty set of streams for key.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{key: key, streams: make(map[string]*rand.Rand)}
}

// ForSubsystem returns the stream called name, creating it on first use.
// Repeated calls return the same instance.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	r, ok := p.streams[name]
	if !ok {
		r = rand.New(rand.NewSource(p.key.derive(name)))
		p.streams[name] = r
	}
	return r
}

// ForProcess returns the stream of proc. Processes sharing a name share it.
func (p *PartitionedRNG) ForProcess(proc *Process) *rand.Rand {
	return p.ForSubsystem(SubsystemProcess(proc.Name()))
}

// Key returns the master seed.
func (p *PartitionedRNG) Key() SimulationKey { return p.key }
