package graph

import (
	"fmt"
	"strings"

	"github.com/opd-ai/audiograph/node"
)

// InAssignment names the buffer slot an input port reads.
type InAssignment struct {
	// Buffer is the index of the assigned buffer slot.
	Buffer int
	// Clear marks an unconnected input: the slot must be zeroed (and
	// flagged silent) before the node runs.
	Clear bool
}

// OutAssignment names the buffer slot an output port writes.
type OutAssignment struct {
	Buffer int
}

// Entry is one node's appearance in a Plan, with its resolved buffer
// assignments.
type Entry struct {
	ID NodeID
	// Proc is nil for terminal entries.
	Proc        node.Processor
	Transparent bool
	Terminal    bool
	In          []InAssignment
	Out         []OutAssignment
	// State is the node's shared runtime state; it outlives the plan.
	State *NodeState
	// Params is the working parameter-value slice handed to Process,
	// one value per descriptor. Owned by this plan.
	Params    []float64
	ParamDefs []node.ParamDescriptor
}

// Plan is an immutable, ordered execution schedule derived from one
// topology snapshot. The entry order and buffer assignments never change
// after compilation; the block buffers themselves are scratch space
// written by the audio context each callback.
//
// Exactly one goroutine (the audio context) may call ProcessBlock,
// PrepareInputs, and ReadOutputs, and only on the currently adopted plan.
type Plan struct {
	// Version is the monotonically increasing plan version.
	Version uint64
	// TopologyVersion is the store version the plan was compiled from.
	TopologyVersion uint64
	// Entries is the schedule in topological order.
	Entries []Entry
	// GraphIn is the index of the graph input entry, or -1 when the
	// input terminal is orphaned. GraphOut is always the last entry.
	GraphIn  int
	GraphOut int
	// NumBuffers is the size of the buffer pool this plan requires.
	NumBuffers int

	maxBlockFrames int
	buffers        [][]float64
	silent         []bool

	// Scratch port-slice tables reused across entries within one
	// callback; sized to the widest node at compile time.
	inScratch  [][]float64
	outScratch [][]float64
}

// MaxBlockFrames returns the largest block this plan's buffers can hold.
func (p *Plan) MaxBlockFrames() int { return p.maxBlockFrames }

// PrepareInputs exposes the graph input terminal's output buffers so the
// driver's input channels can be copied in before dispatch. fill receives
// one buffer per graph input port and returns the silence mask for them.
// When the plan has no graph input entry, fill is not called.
func (p *Plan) PrepareInputs(frames int, fill func(channels [][]float64) node.SilenceMask) {
	if p.GraphIn < 0 {
		return
	}
	entry := &p.Entries[p.GraphIn]

	p.outScratch = p.outScratch[:0]
	for _, a := range entry.Out {
		p.outScratch = append(p.outScratch, p.buffers[a.Buffer][:frames])
	}

	mask := fill(p.outScratch)
	for i, a := range entry.Out {
		p.silent[a.Buffer] = mask.IsSilent(i)
	}
}

// ReadOutputs exposes the sink's input buffers after dispatch so the
// callback can copy them to the device, together with their silence mask.
func (p *Plan) ReadOutputs(frames int, read func(channels [][]float64, silence node.SilenceMask)) {
	entry := &p.Entries[p.GraphOut]

	mask := node.NoneSilent
	p.inScratch = p.inScratch[:0]
	for i, a := range entry.In {
		buf := p.buffers[a.Buffer][:frames]
		if a.Clear {
			// Unconnected sink input: nothing upstream wrote it.
			zero(buf)
			p.silent[a.Buffer] = true
		}
		if p.silent[a.Buffer] {
			mask = mask.WithPort(i, true)
		}
		p.inScratch = append(p.inScratch, buf)
	}

	read(p.inScratch, mask)
}

// ProcessBlock walks the schedule in order, resolving each entry's buffer
// assignments and silence flags, and invokes run for every non-terminal
// entry. run returns the entry's output silence mask, which is recorded
// on the output buffers for downstream consumers.
func (p *Plan) ProcessBlock(frames int, run func(e *Entry, inSilence node.SilenceMask, inputs, outputs [][]float64) node.SilenceMask) {
	for i := range p.Entries {
		entry := &p.Entries[i]
		if entry.Terminal {
			continue
		}

		inSilence := node.NoneSilent
		p.inScratch = p.inScratch[:0]
		p.outScratch = p.outScratch[:0]

		for portIdx, a := range entry.In {
			buf := p.buffers[a.Buffer][:frames]
			if a.Clear {
				zero(buf)
				p.silent[a.Buffer] = true
			}
			if p.silent[a.Buffer] {
				inSilence = inSilence.WithPort(portIdx, true)
			}
			p.inScratch = append(p.inScratch, buf)
		}
		for _, a := range entry.Out {
			p.outScratch = append(p.outScratch, p.buffers[a.Buffer][:frames])
		}

		outSilence := run(entry, inSilence, p.inScratch, p.outScratch)

		for portIdx, a := range entry.Out {
			p.silent[a.Buffer] = outSilence.IsSilent(portIdx)
		}
	}
}

// SilenceOutputs zero-fills the given output buffers and marks them
// silent. Used by the executor for fault substitution and bypass.
func SilenceOutputs(outputs [][]float64) node.SilenceMask {
	for _, buf := range outputs {
		zero(buf)
	}
	return node.AllSilentMask(len(outputs))
}

func zero(buf []float64) {
	for i := range buf {
		buf[i] = 0
	}
}

// String renders the schedule with its buffer assignments, one entry per
// line, for logging and visualization.
func (p *Plan) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "plan v%d (topology v%d, %d buffers) {\n",
		p.Version, p.TopologyVersion, p.NumBuffers)
	for _, e := range p.Entries {
		fmt.Fprintf(&b, "  %v in:[", e.ID)
		for i, a := range e.In {
			if i > 0 {
				b.WriteString(" ")
			}
			if a.Clear {
				fmt.Fprintf(&b, "%d*", a.Buffer)
			} else {
				fmt.Fprintf(&b, "%d", a.Buffer)
			}
		}
		b.WriteString("] out:[")
		for i, a := range e.Out {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%d", a.Buffer)
		}
		b.WriteString("]\n")
	}
	b.WriteString("}")
	return b.String()
}
