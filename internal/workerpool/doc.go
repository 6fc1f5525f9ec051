// Package workerpool runs CPU-bound file-transfer work (the hash taken
// before a file is offered) off a peer session's single goroutine. The
// session submits a task and continues its read/write loop; the result
// arrives on a channel rather than through a blocking call, the same
// callback-to-channel shift internal/events applies to session state.
//
// Grounded on golang.org/x/sync/errgroup's wait/cancel semantics (used
// across the retrieved pack, e.g. katzenpost-katzenpost/cborplugin), but
// exposed as a fixed-size worker pool rather than an unbounded group:
// a session submitting many file hashes must not be able to spawn an
// unbounded number of goroutines.
package workerpool
