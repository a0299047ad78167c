package sim

import "time"

// UpdateInfo carries per-step timing to every system callback. It is passed
// by value and must be treated as read-only.
type UpdateInfo struct {
	// SimTime is the total simulated time. It does not advance while paused.
	SimTime time.Duration
	// RealTime is the wall-clock time since the run started.
	RealTime time.Duration
	// Dt is the simulated time covered by this step. Zero while paused.
	Dt time.Duration
	// Iterations counts executed steps, starting at 1 for the first step.
	Iterations uint64
	// Paused reports whether this step ran with the simulation paused.
	Paused bool
}
