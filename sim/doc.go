// Package sim provides the discrete-event simulation kernel of simkernel.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - event.go: the single-fire event slot (pending → triggered → processed)
//   - process.go: how a Body is advanced and how failures climb to waiters
//   - kernel.go: the clock, the event queue and the run loop
//
// # Model
//
// A Kernel interleaves processes on a simulated clock. A process body is a
// stepping function: each call returns a Step that either waits on an event,
// returns a value or fails. Waiting registers the process as a continuation
// of the event; when the kernel processes that event it re-enters the body
// with the event's outcome. Nothing runs concurrently: exactly one body is
// active at a time and no goroutine is started per process.
//
// Events are processed in (time, sequence) order. The sequence number is
// handed out by the kernel whenever an entry is queued, so events scheduled
// for the same instant run in the order they were scheduled.
//
// # Failures
//
// A failing body fails its process, whose event then fails. Every process
// waiting on it fails in turn unless it waited with Step.Catch, and each hop
// appends a Frame to the *ProcessError. A failed event nobody waits on aborts
// the kernel and Run returns the error.
//
// # Sub-packages
//   - sim/trace: run-trace recording (pure data)
//   - sim/scenario: YAML-described process sets driven by the kernel
package sim
