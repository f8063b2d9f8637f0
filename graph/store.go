package graph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	gograph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/opd-ai/audiograph/node"
)

type portKey struct {
	node NodeID
	port int
}

type pairKey struct {
	src, dst NodeID
}

// Store holds the authoritative node and connection topology. It is safe
// for concurrent use from any number of control-context goroutines; it is
// never touched by the audio context.
//
// Alongside the port-level edge set, the store maintains a node-level
// mirror in a gonum directed graph. The mirror backs the connect-time
// reachability check and the defensive Validate pass.
type Store struct {
	mu sync.Mutex

	nodes map[NodeID]*nodeRecord
	order []NodeID

	edges       map[Edge]struct{}
	inputTaken  map[portKey]Edge
	pairCount   map[pairKey]int
	topo        *simple.DirectedGraph
	inID, outID NodeID

	version uint64
	nextID  int64
}

// NewStore creates a store with the two terminal nodes already present:
// a graph input node with numGraphIns output ports (the stream's input
// channels) and a graph output node with numGraphOuts input ports (the
// sink every scheduled node must reach).
func NewStore(numGraphIns, numGraphOuts int) *Store {
	s := &Store{
		nodes:      make(map[NodeID]*nodeRecord),
		edges:      make(map[Edge]struct{}),
		inputTaken: make(map[portKey]Edge),
		pairCount:  make(map[pairKey]int),
		topo:       simple.NewDirectedGraph(),
	}

	s.inID = s.insertLocked(nil, node.PortLayout{NumOutputs: numGraphIns}, true)
	s.outID = s.insertLocked(nil, node.PortLayout{NumInputs: numGraphOuts}, true)

	logrus.WithFields(logrus.Fields{
		"graph_in":  s.inID,
		"graph_out": s.outID,
		"in_ports":  numGraphIns,
		"out_ports": numGraphOuts,
	}).Debug("audio graph store created")

	return s
}

// In returns the handle of the graph input terminal.
func (s *Store) In() NodeID { return s.inID }

// Out returns the handle of the graph output terminal (the sink).
func (s *Store) Out() NodeID { return s.outID }

// Version returns the topology version. Every successful mutation
// increments it; the compiler uses it to detect staleness.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// AddNode inserts a processor into the graph and returns its handle.
// The processor's layout is captured once here and must not change.
func (s *Store) AddNode(p node.Processor) (NodeID, error) {
	layout := p.Layout()
	if layout.NumInputs < 0 || layout.NumOutputs < 0 ||
		layout.NumInputs > node.MaxPorts || layout.NumOutputs > node.MaxPorts {
		return 0, fmt.Errorf("layout %d in / %d out: %w",
			layout.NumInputs, layout.NumOutputs, ErrTooManyPorts)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.insertLocked(p, layout, false)
	s.version++

	logrus.WithFields(logrus.Fields{
		"node":        id,
		"num_inputs":  layout.NumInputs,
		"num_outputs": layout.NumOutputs,
		"version":     s.version,
	}).Info("node added to audio graph")

	return id, nil
}

func (s *Store) insertLocked(p node.Processor, layout node.PortLayout, terminal bool) NodeID {
	id := NodeID(s.nextID)
	s.nextID++

	rec := &nodeRecord{
		id:       id,
		proc:     p,
		layout:   layout,
		state:    &NodeState{},
		terminal: terminal,
	}
	if t, ok := p.(node.SilenceTransparent); ok {
		rec.transparent = t.SilenceTransparent()
	}
	if pp, ok := p.(node.ParameterProvider); ok {
		rec.params = pp.Parameters()
	}

	s.nodes[id] = rec
	s.order = append(s.order, id)
	s.topo.AddNode(simple.Node(id))
	return id
}

// RemoveNode removes a node from the graph. It fails with ErrNodeInUse if
// any connection still touches the node; callers must disconnect first.
// The terminal nodes cannot be removed.
func (s *Store) RemoveNode(id NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("%v: %w", id, ErrNodeNotFound)
	}
	if rec.terminal {
		return fmt.Errorf("%v: %w", id, ErrTerminalNode)
	}
	for e := range s.edges {
		if e.Src == id || e.Dst == id {
			return fmt.Errorf("%v: %w", id, ErrNodeInUse)
		}
	}

	delete(s.nodes, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.topo.RemoveNode(int64(id))
	s.version++

	logrus.WithFields(logrus.Fields{
		"node":    id,
		"version": s.version,
	}).Info("node removed from audio graph")

	return nil
}

// Connect adds a directed connection from src's output port to dst's
// input port. The mutation is validated synchronously: port ranges, the
// one-edge-per-input rule, and the DAG invariant. On any error the
// topology is unchanged.
//
// The cycle check is a forward reachability walk from dst to src over the
// node-level mirror, run before the edge is committed.
func (s *Store) Connect(src NodeID, srcPort int, dst NodeID, dstPort int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	srcRec, ok := s.nodes[src]
	if !ok {
		return fmt.Errorf("source %v: %w", src, ErrNodeNotFound)
	}
	dstRec, ok := s.nodes[dst]
	if !ok {
		return fmt.Errorf("destination %v: %w", dst, ErrNodeNotFound)
	}
	if srcPort < 0 || srcPort >= srcRec.layout.NumOutputs {
		return fmt.Errorf("output port %d of %v (%d ports): %w",
			srcPort, src, srcRec.layout.NumOutputs, ErrPortOutOfRange)
	}
	if dstPort < 0 || dstPort >= dstRec.layout.NumInputs {
		return fmt.Errorf("input port %d of %v (%d ports): %w",
			dstPort, dst, dstRec.layout.NumInputs, ErrPortOutOfRange)
	}
	if src == dst {
		return fmt.Errorf("%v to itself: %w", src, ErrCycleDetected)
	}

	e := Edge{Src: src, SrcPort: srcPort, Dst: dst, DstPort: dstPort}
	if _, exists := s.edges[e]; exists {
		return fmt.Errorf("%v: %w", e, ErrEdgeExists)
	}
	if prev, taken := s.inputTaken[portKey{dst, dstPort}]; taken {
		return fmt.Errorf("%v already fed by %v: %w", e, prev, ErrInputPortConnected)
	}
	if s.reachableLocked(dst, src) {
		return fmt.Errorf("%v: %w", e, ErrCycleDetected)
	}

	s.edges[e] = struct{}{}
	s.inputTaken[portKey{dst, dstPort}] = e
	pk := pairKey{src, dst}
	s.pairCount[pk]++
	if s.pairCount[pk] == 1 {
		s.topo.SetEdge(s.topo.NewEdge(simple.Node(src), simple.Node(dst)))
	}
	s.version++

	logrus.WithFields(logrus.Fields{
		"edge":    e.String(),
		"version": s.version,
	}).Info("connection added to audio graph")

	return nil
}

// Disconnect removes the given connection. It fails with ErrEdgeNotFound
// if the connection is not present.
func (s *Store) Disconnect(src NodeID, srcPort int, dst NodeID, dstPort int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := Edge{Src: src, SrcPort: srcPort, Dst: dst, DstPort: dstPort}
	if _, ok := s.edges[e]; !ok {
		return fmt.Errorf("%v: %w", e, ErrEdgeNotFound)
	}

	delete(s.edges, e)
	delete(s.inputTaken, portKey{dst, dstPort})
	pk := pairKey{src, dst}
	s.pairCount[pk]--
	if s.pairCount[pk] == 0 {
		delete(s.pairCount, pk)
		s.topo.RemoveEdge(int64(src), int64(dst))
	}
	s.version++

	logrus.WithFields(logrus.Fields{
		"edge":    e.String(),
		"version": s.version,
	}).Info("connection removed from audio graph")

	return nil
}

// reachableLocked reports whether to is reachable from from by following
// edges forward.
func (s *Store) reachableLocked(from, to NodeID) bool {
	if from == to {
		return true
	}
	bfs := traverse.BreadthFirst{}
	found := bfs.Walk(s.topo, s.topo.Node(int64(from)), func(n gograph.Node, _ int) bool {
		return n.ID() == int64(to)
	})
	return found != nil
}

// Validate re-checks the DAG invariant over the whole topology using a
// full topological sort of the mirror. The store's connect-time check
// already guarantees acyclicity; Validate exists as defense in depth for
// anything that consumes snapshots.
func (s *Store) Validate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := topo.Sort(s.topo); err != nil {
		return fmt.Errorf("topology mirror unsortable: %w", ErrCycleDetected)
	}
	return nil
}

// Node returns the snapshot-visible description of one node.
func (s *Store) Node(id NodeID) (NodeInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.nodes[id]
	if !ok {
		return NodeInfo{}, false
	}
	return rec.info(), true
}

// NodeCount returns the number of nodes, terminals included.
func (s *Store) NodeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}

// EdgeCount returns the number of connections.
func (s *Store) EdgeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.edges)
}

// Edges returns the connections sorted deterministically.
func (s *Store) Edges() []Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedEdgesLocked()
}

func (s *Store) sortedEdgesLocked() []Edge {
	edges := make([]Edge, 0, len(s.edges))
	for e := range s.edges {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.Src != b.Src {
			return a.Src < b.Src
		}
		if a.SrcPort != b.SrcPort {
			return a.SrcPort < b.SrcPort
		}
		if a.Dst != b.Dst {
			return a.Dst < b.Dst
		}
		return a.DstPort < b.DstPort
	})
	return edges
}

// Snapshot takes an immutable copy of the topology for compilation.
// Nodes appear in creation order, edges in deterministic sorted order, so
// identical topologies always snapshot identically.
func (s *Store) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes := make([]NodeInfo, 0, len(s.order))
	for _, id := range s.order {
		nodes = append(nodes, s.nodes[id].info())
	}

	return &Snapshot{
		Nodes:   nodes,
		Edges:   s.sortedEdgesLocked(),
		In:      s.inID,
		Out:     s.outID,
		Version: s.version,
	}
}

func (r *nodeRecord) info() NodeInfo {
	return NodeInfo{
		ID:          r.id,
		Proc:        r.proc,
		Layout:      r.layout,
		Transparent: r.transparent,
		Params:      r.params,
		State:       r.state,
		Terminal:    r.terminal,
	}
}
