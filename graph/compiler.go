package graph

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// Compiler turns topology snapshots into execution plans. It owns no
// long-lived state beyond the plan version sequence and the last plan it
// produced, which backs the dirty check for incremental recompilation.
//
// A Compiler is not safe for concurrent use; the engine serializes all
// compilation on the control context.
type Compiler struct {
	maxBlockFrames int
	planSeq        uint64
	lastPlan       *Plan
}

// NewCompiler creates a compiler producing plans whose block buffers hold
// up to maxBlockFrames samples.
func NewCompiler(maxBlockFrames int) *Compiler {
	if maxBlockFrames <= 0 {
		panic("graph: maxBlockFrames must be positive")
	}
	return &Compiler{maxBlockFrames: maxBlockFrames}
}

// NeedsCompile reports whether the given topology version differs from
// the one the last plan was compiled from.
func (c *Compiler) NeedsCompile(topologyVersion uint64) bool {
	return c.lastPlan == nil || c.lastPlan.TopologyVersion != topologyVersion
}

// LastPlan returns the most recently produced plan, or nil.
func (c *Compiler) LastPlan() *Plan { return c.lastPlan }

// Compile produces a new immutable Plan from the snapshot.
//
// The topological order is computed with Kahn's algorithm; ties between
// simultaneously ready nodes break by ascending creation order, so
// identical topologies always compile to identical plans. The snapshot is
// re-validated even though the store already enforces the DAG invariant:
// a cycle yields ErrCycleDetected, a doubly-fed input port ErrManyToOne.
//
// Nodes with no path to the graph output are excluded from the plan.
func (c *Compiler) Compile(snap *Snapshot) (*Plan, error) {
	n := len(snap.Nodes)
	idx := make(map[NodeID]int, n)
	for i, ni := range snap.Nodes {
		if _, dup := idx[ni.ID]; dup {
			return nil, fmt.Errorf("snapshot contains duplicate node %v", ni.ID)
		}
		idx[ni.ID] = i
	}
	outIdx, ok := idx[snap.Out]
	if !ok {
		return nil, fmt.Errorf("snapshot missing graph output %v", snap.Out)
	}

	incoming := make([][]Edge, n)
	outgoing := make([][]Edge, n)
	indeg := make([]int, n)
	inPortFed := make(map[portKey]bool, len(snap.Edges))
	for _, e := range snap.Edges {
		si, ok := idx[e.Src]
		if !ok {
			return nil, fmt.Errorf("edge %v: source: %w", e, ErrNodeNotFound)
		}
		di, ok := idx[e.Dst]
		if !ok {
			return nil, fmt.Errorf("edge %v: destination: %w", e, ErrNodeNotFound)
		}
		pk := portKey{e.Dst, e.DstPort}
		if inPortFed[pk] {
			return nil, fmt.Errorf("edge %v: %w", e, ErrManyToOne)
		}
		inPortFed[pk] = true

		outgoing[si] = append(outgoing[si], e)
		incoming[di] = append(incoming[di], e)
		indeg[di]++
	}

	order, err := kahnOrder(n, outgoing, idx, indeg)
	if err != nil {
		return nil, err
	}

	// Exclude nodes that cannot reach the sink.
	keep := make([]bool, n)
	keep[outIdx] = true
	stack := []int{outIdx}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range incoming[i] {
			si := idx[e.Src]
			if !keep[si] {
				keep[si] = true
				stack = append(stack, si)
			}
		}
	}

	plan := &Plan{
		TopologyVersion: snap.Version,
		GraphIn:         -1,
	}

	alloc := &bufferAllocator{}
	refs := make(map[int]int)
	edgeBuf := make(map[Edge]int)
	maxIns, maxOuts := 0, 0

	for _, i := range order {
		if !keep[i] {
			continue
		}
		ni := snap.Nodes[i]

		entry := Entry{
			ID:          ni.ID,
			Proc:        ni.Proc,
			Transparent: ni.Transparent,
			Terminal:    ni.Terminal,
			State:       ni.State,
			ParamDefs:   ni.Params,
		}
		if len(ni.Params) > 0 {
			entry.Params = make([]float64, len(ni.Params))
			for pi, pd := range ni.Params {
				entry.Params[pi] = pd.Default
			}
		}

		var toRelease []int

		for port := 0; port < ni.Layout.NumInputs; port++ {
			feed, found := findIncoming(incoming[i], port)
			if !found {
				// Unconnected input: scratch buffer, cleared and
				// read as silence, reclaimed after this node.
				buf := alloc.acquire()
				entry.In = append(entry.In, InAssignment{Buffer: buf, Clear: true})
				toRelease = append(toRelease, buf)
				continue
			}
			buf := edgeBuf[feed]
			entry.In = append(entry.In, InAssignment{Buffer: buf})
			refs[buf]--
			if refs[buf] == 0 {
				toRelease = append(toRelease, buf)
			}
		}

		for port := 0; port < ni.Layout.NumOutputs; port++ {
			readers := 0
			buf := alloc.acquire()
			entry.Out = append(entry.Out, OutAssignment{Buffer: buf})
			for _, e := range outgoing[i] {
				if e.SrcPort == port && keep[idx[e.Dst]] {
					edgeBuf[e] = buf
					readers++
				}
			}
			if readers == 0 {
				toRelease = append(toRelease, buf)
			} else {
				refs[buf] = readers
			}
		}

		// Buffers are only released after all of this node's ports are
		// assigned, so no input and output of one node ever alias.
		for _, buf := range toRelease {
			alloc.release(buf)
		}

		if ni.ID == snap.In {
			plan.GraphIn = len(plan.Entries)
		}
		if ni.ID == snap.Out {
			plan.GraphOut = len(plan.Entries)
		}
		if ni.Layout.NumInputs > maxIns {
			maxIns = ni.Layout.NumInputs
		}
		if ni.Layout.NumOutputs > maxOuts {
			maxOuts = ni.Layout.NumOutputs
		}

		plan.Entries = append(plan.Entries, entry)
	}

	c.planSeq++
	plan.Version = c.planSeq
	plan.NumBuffers = alloc.count
	plan.maxBlockFrames = c.maxBlockFrames
	plan.buffers = make([][]float64, alloc.count)
	for i := range plan.buffers {
		plan.buffers[i] = make([]float64, c.maxBlockFrames)
	}
	plan.silent = make([]bool, alloc.count)
	plan.inScratch = make([][]float64, 0, maxIns)
	plan.outScratch = make([][]float64, 0, maxOuts)

	c.lastPlan = plan

	logrus.WithFields(logrus.Fields{
		"plan_version":     plan.Version,
		"topology_version": plan.TopologyVersion,
		"entries":          len(plan.Entries),
		"buffers":          plan.NumBuffers,
	}).Debug("compiled audio graph plan")

	return plan, nil
}

// kahnOrder computes a topological order over all n nodes, breaking ties
// by ascending node index (creation order). Returns ErrCycleDetected when
// not every node can be ordered.
func kahnOrder(n int, outgoing [][]Edge, idx map[NodeID]int, indeg []int) ([]int, error) {
	ready := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]int, 0, n)
	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]
		order = append(order, i)

		for _, e := range outgoing[i] {
			di := idx[e.Dst]
			indeg[di]--
			if indeg[di] == 0 {
				pos := sort.SearchInts(ready, di)
				ready = append(ready, 0)
				copy(ready[pos+1:], ready[pos:])
				ready[pos] = di
			}
		}
	}

	if len(order) != n {
		return nil, fmt.Errorf("topological sort visited %d of %d nodes: %w",
			len(order), n, ErrCycleDetected)
	}
	return order, nil
}

// findIncoming returns the edge feeding the given input port, if any.
// Many-to-one feeds are rejected before this is called.
func findIncoming(edges []Edge, port int) (Edge, bool) {
	for _, e := range edges {
		if e.DstPort == port {
			return e, true
		}
	}
	return Edge{}, false
}

// bufferAllocator hands out buffer slots, always preferring the
// lowest-numbered free slot, so the pool size ends up equal to the
// graph's maximum concurrently-live buffer width.
type bufferAllocator struct {
	free  []int // sorted ascending
	count int
}

func (a *bufferAllocator) acquire() int {
	if len(a.free) > 0 {
		b := a.free[0]
		a.free = a.free[1:]
		return b
	}
	b := a.count
	a.count++
	return b
}

func (a *bufferAllocator) release(b int) {
	pos := sort.SearchInts(a.free, b)
	a.free = append(a.free, 0)
	copy(a.free[pos+1:], a.free[pos:])
	a.free[pos] = b
}
