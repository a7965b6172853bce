// Package progress produces the simulated completion feed for a todo upload.
// An Emitter walks a counter from 0 towards 100 in randomized steps and ends
// with exactly one terminal event pinned at 100. It performs no I/O; the
// stream package owns pacing, framing and delivery.
package progress
