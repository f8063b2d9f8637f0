// Package executor implements the audio-context side of the engine: the
// dispatch loop that runs once per device callback.
//
// On every callback the executor drains the command channel (adopting
// the newest pending plan and automation snapshot), splits the callback
// into blocks of at most the configured size, and walks the active
// plan's schedule in topological order. Silence-transparent nodes whose
// inputs are all silent are skipped outright. A faulting node has its
// outputs replaced with silence for that callback only; a node faulting
// on enough consecutive callbacks is marked degraded and bypassed until
// the control context resets it.
//
// Nothing here blocks, locks, or allocates after construction, and no
// error ever unwinds across the callback boundary: a stream fault or
// even a panicking node results in a silent callback and an atomically
// published condition for the control context to observe.
package executor
