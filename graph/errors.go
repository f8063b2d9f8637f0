package graph

import "errors"

// Sentinel errors for graph mutations and compilation.
// These errors enable reliable error classification using errors.Is().

// Structural mutation errors. All of them are returned synchronously to
// the control-context caller and leave the topology unchanged.
var (
	// ErrCycleDetected indicates the requested connection (or, during a
	// defensive compile-time re-validation, the given topology) would
	// create a path back to its origin.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrNodeInUse indicates a node removal was rejected because the
	// node still has connections. Callers must disconnect first.
	ErrNodeInUse = errors.New("node still has connections")

	// ErrNodeNotFound indicates the node handle is not present in the
	// graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrPortOutOfRange indicates a port index beyond the node's
	// declared layout.
	ErrPortOutOfRange = errors.New("port index out of range")

	// ErrEdgeExists indicates the exact connection already exists.
	ErrEdgeExists = errors.New("edge already exists")

	// ErrEdgeNotFound indicates a disconnect named a connection that is
	// not present in the graph.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrInputPortConnected indicates the destination input port already
	// receives a connection; summing requires an explicit sum node.
	ErrInputPortConnected = errors.New("input port already connected")

	// ErrTerminalNode indicates an attempt to remove the graph input or
	// graph output terminal.
	ErrTerminalNode = errors.New("cannot remove graph terminal node")

	// ErrTooManyPorts indicates a node layout exceeding the engine's
	// per-node port limit.
	ErrTooManyPorts = errors.New("node exceeds maximum port count")
)

// Compilation errors.
var (
	// ErrManyToOne indicates a snapshot contained multiple edges into
	// one input port. The store rejects this at connect time; the
	// compiler re-validates any topology it is handed.
	ErrManyToOne = errors.New("multiple edges into one input port")
)
