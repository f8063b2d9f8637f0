package audiograph

import "errors"

// Engine-level error conditions. Topology and scheduling errors live in
// the graph package; channel backpressure is ring.ErrChannelFull.
var (
	// ErrDriverAttached is returned by AttachDriver when a stream driver
	// is already running.
	ErrDriverAttached = errors.New("a stream driver is already attached")

	// ErrNoDriver is returned by DetachDriver when no driver is attached.
	ErrNoDriver = errors.New("no stream driver attached")

	// ErrStreamMismatch is returned when a driver's stream configuration
	// does not match the engine's.
	ErrStreamMismatch = errors.New("stream configuration does not match engine configuration")

	// ErrParamOutOfRange is returned when an automation target names a
	// parameter index the node does not declare.
	ErrParamOutOfRange = errors.New("parameter index out of range")
)
