package executor

import (
	"sync/atomic"

	"github.com/opd-ai/audiograph/automation"
	"github.com/opd-ai/audiograph/graph"
	"github.com/opd-ai/audiograph/node"
	"github.com/opd-ai/audiograph/ring"
)

// Config sizes an Executor at construction time. All fields are fixed
// for the executor's lifetime.
type Config struct {
	// SampleRate is the stream sample rate in Hz.
	SampleRate int
	// MaxBlockFrames caps the frames processed per dispatch block;
	// larger callbacks are split.
	MaxBlockFrames int
	// FaultThreshold is the number of consecutive faults after which a
	// node is marked degraded and bypassed.
	FaultThreshold uint32
	// InChannels and OutChannels are the stream's channel counts.
	InChannels  int
	OutChannels int
}

// Executor drives one callback's worth of processing on the audio
// context. All methods except the atomic accessors must be called from
// exactly one goroutine: the device callback.
type Executor struct {
	cfg      Config
	commands *ring.Buffer[Command]
	releases *ring.Buffer[Release]

	plan     *graph.Plan
	snapshot *automation.Snapshot

	activePlanVersion atomic.Uint64
	streamFault       atomic.Bool
	panics            atomic.Uint64

	// Per-block dispatch state, valid only inside one callback.
	blockFrames int
	blockTime   float64
	blockStatus node.StreamStatus
	info        node.ProcInfo

	// Preallocated channel-view tables for block splitting and
	// interleaved conversion.
	inView    [][]float64
	outView   [][]float64
	inPlanar  [][]float64
	outPlanar [][]float64
}

// New creates an executor reading commands from cmds and returning
// retired plans on rels.
func New(cfg Config, cmds *ring.Buffer[Command], rels *ring.Buffer[Release]) *Executor {
	x := &Executor{
		cfg:      cfg,
		commands: cmds,
		releases: rels,
		snapshot: automation.EmptySnapshot(),
		inView:   make([][]float64, 0, cfg.InChannels),
		outView:  make([][]float64, 0, cfg.OutChannels),
	}
	x.inPlanar = make([][]float64, cfg.InChannels)
	for i := range x.inPlanar {
		x.inPlanar[i] = make([]float64, cfg.MaxBlockFrames)
	}
	x.outPlanar = make([][]float64, cfg.OutChannels)
	for i := range x.outPlanar {
		x.outPlanar[i] = make([]float64, cfg.MaxBlockFrames)
	}
	return x
}

// ActivePlanVersion returns the version of the plan the audio context is
// currently executing. Zero until the first plan is adopted. Safe from
// any goroutine.
func (x *Executor) ActivePlanVersion() uint64 {
	return x.activePlanVersion.Load()
}

// StreamFaulted reports whether the driver signaled a stream-level error
// or disconnect. The flag stays set until ClearStreamFault.
func (x *Executor) StreamFaulted() bool {
	return x.streamFault.Load()
}

// ClearStreamFault clears the stream fault condition; called from the
// control context after a new stream is attached.
func (x *Executor) ClearStreamFault() {
	x.streamFault.Store(false)
}

// PanicCount returns the number of callbacks recovered from a panicking
// node. Each such callback produced full silence.
func (x *Executor) PanicCount() uint64 {
	return x.panics.Load()
}

// Process renders one device callback with planar buffers: in holds one
// slice per input channel, out one per output channel, each frames long.
// It never blocks and never lets a failure escape: on stream fault or
// internal panic the entire output is silence.
func (x *Executor) Process(in, out [][]float64, frames int, streamTime float64, status node.StreamStatus) {
	defer x.contain(out, nil)

	x.pollCommands()

	if status.Has(node.StreamInterrupted) {
		x.streamFault.Store(true)
	}
	if x.plan == nil || x.streamFault.Load() || frames == 0 {
		zeroPlanar(out)
		return
	}

	processed := 0
	for processed < frames {
		block := frames - processed
		if block > x.cfg.MaxBlockFrames {
			block = x.cfg.MaxBlockFrames
		}

		x.inView = x.inView[:0]
		for _, ch := range in {
			x.inView = append(x.inView, ch[processed:processed+block])
		}
		x.outView = x.outView[:0]
		for _, ch := range out {
			x.outView = append(x.outView, ch[processed:processed+block])
		}

		t := streamTime + float64(processed)/float64(x.cfg.SampleRate)
		x.processBlock(x.inView, x.outView, block, t, status)

		processed += block
	}
}

// ProcessInterleaved renders one device callback with interleaved
// buffers: in and out hold frames*channels samples in frame-major order.
func (x *Executor) ProcessInterleaved(in, out []float64, frames int, streamTime float64, status node.StreamStatus) {
	defer x.contain(nil, out)

	x.pollCommands()

	if status.Has(node.StreamInterrupted) {
		x.streamFault.Store(true)
	}
	if x.plan == nil || x.streamFault.Load() || frames == 0 {
		zero(out)
		return
	}

	inCh, outCh := len(x.inPlanar), len(x.outPlanar)

	processed := 0
	for processed < frames {
		block := frames - processed
		if block > x.cfg.MaxBlockFrames {
			block = x.cfg.MaxBlockFrames
		}

		x.inView = x.inView[:0]
		for c := 0; c < inCh; c++ {
			deinterleave(x.inPlanar[c][:block], in[processed*inCh:], c, inCh)
			x.inView = append(x.inView, x.inPlanar[c][:block])
		}
		x.outView = x.outView[:0]
		for c := 0; c < outCh; c++ {
			x.outView = append(x.outView, x.outPlanar[c][:block])
		}

		t := streamTime + float64(processed)/float64(x.cfg.SampleRate)
		x.processBlock(x.inView, x.outView, block, t, status)

		for c := 0; c < outCh; c++ {
			interleave(out[processed*outCh:], x.outPlanar[c][:block], c, outCh)
		}

		processed += block
	}
}

// processBlock runs the active plan once over one block.
func (x *Executor) processBlock(inChans, outChans [][]float64, frames int, streamTime float64, status node.StreamStatus) {
	x.blockFrames = frames
	x.blockTime = streamTime
	x.blockStatus = status

	x.plan.PrepareInputs(frames, func(channels [][]float64) node.SilenceMask {
		mask := node.NoneSilent
		for i, buf := range channels {
			if i < len(inChans) {
				copy(buf, inChans[i])
				if isSilent(inChans[i]) {
					zero(buf)
					mask = mask.WithPort(i, true)
				}
			} else {
				zero(buf)
				mask = mask.WithPort(i, true)
			}
		}
		return mask
	})

	x.plan.ProcessBlock(frames, x.runEntry)

	x.plan.ReadOutputs(frames, func(channels [][]float64, silence node.SilenceMask) {
		for i, ch := range outChans {
			if i < len(channels) {
				copy(ch, channels[i])
			} else {
				zero(ch)
			}
		}
	})
}

// runEntry executes one schedule entry: degraded bypass, silence skip,
// automation sampling, Process invocation, and fault substitution.
func (x *Executor) runEntry(e *graph.Entry, inSilence node.SilenceMask, inputs, outputs [][]float64) node.SilenceMask {
	if e.State.Degraded() {
		return graph.SilenceOutputs(outputs)
	}
	if e.Transparent && len(inputs) > 0 && inSilence.AllSilent(len(inputs)) {
		// Every required input is silent: skip the node entirely and
		// propagate silence downstream.
		return graph.SilenceOutputs(outputs)
	}

	for pi := range e.Params {
		def := e.ParamDefs[pi]
		v := def.Default
		if cv, ok := x.snapshot.Sample(automation.ParamKey{Node: int64(e.ID), Param: pi}, x.blockTime); ok {
			v = clamp(cv, def.Min, def.Max)
		}
		e.Params[pi] = v
	}

	x.info.InSilence = inSilence
	x.info.SampleRate = x.cfg.SampleRate
	x.info.StreamTime = x.blockTime
	x.info.Status = x.blockStatus

	res := e.Proc.Process(x.blockFrames, inputs, outputs, e.Params, &x.info)

	switch res.Status {
	case node.StatusFault:
		if e.State.RecordFault() >= x.cfg.FaultThreshold {
			e.State.MarkDegraded()
		}
		return graph.SilenceOutputs(outputs)
	case node.StatusSilence:
		e.State.RecordSuccess()
		return node.AllSilentMask(len(outputs))
	default:
		e.State.RecordSuccess()
		return res.OutSilence
	}
}

// pollCommands drains the command channel, adopting the newest queued
// plan and automation snapshot. Every retired plan is pushed onto the
// release channel; when that channel is full the reference is simply
// dropped for the collector.
func (x *Executor) pollCommands() {
	var newest *graph.Plan
	for {
		cmd, ok := x.commands.Pop()
		if !ok {
			break
		}
		if cmd.Plan != nil {
			if newest != nil {
				x.release(newest, false)
			}
			newest = cmd.Plan
		}
		if cmd.Automation != nil {
			x.snapshot = cmd.Automation
		}
	}
	if newest != nil {
		if x.plan != nil {
			x.release(x.plan, true)
		}
		x.plan = newest
		x.activePlanVersion.Store(newest.Version)
	}
}

func (x *Executor) release(p *graph.Plan, adopted bool) {
	// Push failure is tolerated: the control context loses one ack and
	// the garbage collector reclaims the plan either way.
	_ = x.releases.Push(Release{Plan: p, Adopted: adopted})
}

// contain recovers from a panicking node, silences the whole callback,
// and records the condition for the control context.
func (x *Executor) contain(planar [][]float64, interleaved []float64) {
	if r := recover(); r != nil {
		if planar != nil {
			zeroPlanar(planar)
		}
		if interleaved != nil {
			zero(interleaved)
		}
		x.panics.Add(1)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isSilent(buf []float64) bool {
	for _, s := range buf {
		if s != 0 {
			return false
		}
	}
	return true
}

func zero(buf []float64) {
	for i := range buf {
		buf[i] = 0
	}
}

func zeroPlanar(chans [][]float64) {
	for _, ch := range chans {
		zero(ch)
	}
}

func deinterleave(dst, src []float64, channel, numChannels int) {
	for i := range dst {
		dst[i] = src[i*numChannels+channel]
	}
}

func interleave(dst, src []float64, channel, numChannels int) {
	for i := range src {
		dst[i*numChannels+channel] = src[i]
	}
}
