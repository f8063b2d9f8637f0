package graph

import (
	"fmt"
	"sync/atomic"

	"github.com/opd-ai/audiograph/node"
)

// NodeID is a stable handle for a node in the graph. Handles are assigned
// sequentially in creation order, are unique for the graph's lifetime, and
// are never reused. The int64 representation doubles as the node's
// identifier in the store's gonum topology mirror.
type NodeID int64

// String formats the handle for logs and debug dumps.
func (id NodeID) String() string { return fmt.Sprintf("node-%d", int64(id)) }

// Edge is a directed connection from one node's output port to another
// node's input port. An input port receives at most one edge; an output
// port may fan out to any number of input ports.
type Edge struct {
	Src     NodeID
	SrcPort int
	Dst     NodeID
	DstPort int
}

// String formats the edge for logs and debug dumps.
func (e Edge) String() string {
	return fmt.Sprintf("%v:%d->%v:%d", e.Src, e.SrcPort, e.Dst, e.DstPort)
}

// NodeState is the shared runtime state of one node. It persists across
// plan swaps and is the only node data both contexts touch: the audio
// context updates the counters, the control context reads them and may
// reset the degraded flag. All access is through atomics.
type NodeState struct {
	consecutiveFaults atomic.Uint32
	totalFaults       atomic.Uint64
	degraded          atomic.Bool
}

// RecordFault increments the node's fault counters and returns the new
// consecutive-fault count. Called from the audio context.
func (s *NodeState) RecordFault() uint32 {
	s.totalFaults.Add(1)
	return s.consecutiveFaults.Add(1)
}

// RecordSuccess resets the consecutive-fault counter. Called from the
// audio context after a non-faulting Process.
func (s *NodeState) RecordSuccess() {
	s.consecutiveFaults.Store(0)
}

// MarkDegraded flags the node as degraded; it is bypassed (treated as
// silent) until Reset is called from the control context.
func (s *NodeState) MarkDegraded() {
	s.degraded.Store(true)
}

// Degraded reports whether the node is currently bypassed.
func (s *NodeState) Degraded() bool {
	return s.degraded.Load()
}

// ConsecutiveFaults returns the current run of uninterrupted faults.
func (s *NodeState) ConsecutiveFaults() uint32 {
	return s.consecutiveFaults.Load()
}

// TotalFaults returns the number of faults recorded over the node's
// lifetime.
func (s *NodeState) TotalFaults() uint64 {
	return s.totalFaults.Load()
}

// Reset clears the degraded flag and fault counters. Control context only.
func (s *NodeState) Reset() {
	s.consecutiveFaults.Store(0)
	s.degraded.Store(false)
}

// nodeRecord is the store's authoritative record of one node.
type nodeRecord struct {
	id          NodeID
	proc        node.Processor
	layout      node.PortLayout
	transparent bool
	params      []node.ParamDescriptor
	state       *NodeState
	// terminal marks the graph input/output nodes created by the store
	// itself; they cannot be removed.
	terminal bool
}

// NodeInfo is the immutable, snapshot-visible description of a node.
type NodeInfo struct {
	ID          NodeID
	Proc        node.Processor
	Layout      node.PortLayout
	Transparent bool
	Params      []node.ParamDescriptor
	State       *NodeState
	// Terminal marks the graph input/output nodes; they carry no
	// processor and are handled by the executor directly.
	Terminal bool
}

// Snapshot is an immutable copy of the topology taken under the store
// lock. Nodes appear in creation order. Snapshots are the only input the
// compiler accepts.
type Snapshot struct {
	Nodes   []NodeInfo
	Edges   []Edge
	In, Out NodeID
	// Version is the topology version the snapshot was taken at.
	Version uint64
}
