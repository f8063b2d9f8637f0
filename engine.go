package audiograph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audiograph/automation"
	"github.com/opd-ai/audiograph/backend"
	"github.com/opd-ai/audiograph/config"
	"github.com/opd-ai/audiograph/executor"
	"github.com/opd-ai/audiograph/graph"
	"github.com/opd-ai/audiograph/node"
	"github.com/opd-ai/audiograph/ring"
)

// Engine is the control-context facade over the whole pipeline: the
// topology store, the compiler, the command and release channels, and
// the audio-context executor. All Engine methods are safe for
// concurrent use from any goroutine except the audio context, which
// only ever sees the executor.
type Engine struct {
	mu sync.Mutex

	cfg      config.Config
	store    *graph.Store
	compiler *graph.Compiler

	commands *ring.Buffer[executor.Command]
	releases *ring.Buffer[executor.Release]
	exec     *executor.Executor

	curves map[automation.ParamKey]*automation.Curve

	// pending is a compiled plan that could not be dispatched because
	// the command channel was full. It is retried by Compile and Update.
	pending *graph.Plan

	driver     backend.Driver
	lastPanics uint64
}

// New creates an engine from the given configuration. The graph starts
// with only its two terminal nodes: a graph input with cfg.InChannels
// output ports and a graph output with cfg.OutChannels input ports.
func New(cfg config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine configuration: %w", err)
	}

	cmds := ring.New[executor.Command](cfg.ChannelCapacity)
	rels := ring.New[executor.Release](cfg.ChannelCapacity)

	e := &Engine{
		cfg:      cfg,
		store:    graph.NewStore(cfg.InChannels, cfg.OutChannels),
		compiler: graph.NewCompiler(cfg.MaxBlockFrames),
		commands: cmds,
		releases: rels,
		exec: executor.New(executor.Config{
			SampleRate:     cfg.SampleRate,
			MaxBlockFrames: cfg.MaxBlockFrames,
			FaultThreshold: uint32(cfg.FaultThreshold),
			InChannels:     cfg.InChannels,
			OutChannels:    cfg.OutChannels,
		}, cmds, rels),
		curves: make(map[automation.ParamKey]*automation.Curve),
	}

	logrus.WithFields(logrus.Fields{
		"sample_rate":      cfg.SampleRate,
		"max_block_frames": cfg.MaxBlockFrames,
		"in_channels":      cfg.InChannels,
		"out_channels":     cfg.OutChannels,
		"channel_capacity": cfg.ChannelCapacity,
	}).Info("audio graph engine created")

	return e, nil
}

// GraphIn returns the handle of the graph input terminal. Its output
// ports carry the stream's input channels.
func (e *Engine) GraphIn() graph.NodeID { return e.store.In() }

// GraphOut returns the handle of the graph output terminal. Audio only
// reaches the stream through connections into its input ports.
func (e *Engine) GraphOut() graph.NodeID { return e.store.Out() }

// AddNode inserts a processor into the graph and returns its handle.
// The node takes effect on the audio context after the next Compile.
func (e *Engine) AddNode(p node.Processor) (graph.NodeID, error) {
	return e.store.AddNode(p)
}

// RemoveNode removes a node. All connections touching it must be
// removed first; any automation curves targeting it are dropped.
func (e *Engine) RemoveNode(id graph.NodeID) error {
	if err := e.store.RemoveNode(id); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	changed := false
	for key := range e.curves {
		if key.Node == int64(id) {
			delete(e.curves, key)
			changed = true
		}
	}
	if changed {
		return e.pushAutomationLocked()
	}
	return nil
}

// Connect adds a directed connection from src's output port to dst's
// input port.
func (e *Engine) Connect(src graph.NodeID, srcPort int, dst graph.NodeID, dstPort int) error {
	return e.store.Connect(src, srcPort, dst, dstPort)
}

// Disconnect removes a connection.
func (e *Engine) Disconnect(src graph.NodeID, srcPort int, dst graph.NodeID, dstPort int) error {
	return e.store.Disconnect(src, srcPort, dst, dstPort)
}

// Node returns the description of one node, including its live fault
// state.
func (e *Engine) Node(id graph.NodeID) (graph.NodeInfo, bool) {
	return e.store.Node(id)
}

// SetAutomation installs an automation curve for one parameter of one
// node and publishes the updated automation snapshot to the audio
// context. The points must be in strictly ascending time order.
func (e *Engine) SetAutomation(id graph.NodeID, param int, points []automation.Point) error {
	info, ok := e.store.Node(id)
	if !ok {
		return fmt.Errorf("%v: %w", id, graph.ErrNodeNotFound)
	}
	if param < 0 || param >= len(info.Params) {
		return fmt.Errorf("parameter %d of %v (%d declared): %w",
			param, id, len(info.Params), ErrParamOutOfRange)
	}
	curve, err := automation.NewCurve(points)
	if err != nil {
		return fmt.Errorf("curve for %v parameter %d: %w", id, param, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.curves[automation.ParamKey{Node: int64(id), Param: param}] = curve
	return e.pushAutomationLocked()
}

// ClearAutomation removes the automation curve for one parameter, if
// present. The parameter reverts to its declared default on the audio
// context.
func (e *Engine) ClearAutomation(id graph.NodeID, param int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := automation.ParamKey{Node: int64(id), Param: param}
	if _, ok := e.curves[key]; !ok {
		return nil
	}
	delete(e.curves, key)
	return e.pushAutomationLocked()
}

func (e *Engine) pushAutomationLocked() error {
	snap := automation.NewSnapshot(e.curves)
	if err := e.commands.Push(executor.Command{Automation: snap}); err != nil {
		return fmt.Errorf("automation snapshot: %w", err)
	}
	logrus.WithField("curves", snap.Len()).Debug("automation snapshot dispatched")
	return nil
}

// Compile snapshots the topology, compiles it into an execution plan
// if anything changed since the last compile, and dispatches the plan
// over the command channel. A no-op when the topology is unchanged and
// nothing is pending.
//
// When the command channel is full the compiled plan is held and the
// error wraps ring.ErrChannelFull; a later Compile or Update retries
// the dispatch.
func (e *Engine) Compile() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.compileLocked()
}

func (e *Engine) compileLocked() error {
	snap := e.store.Snapshot()
	if e.compiler.NeedsCompile(snap.Version) {
		plan, err := e.compiler.Compile(snap)
		if err != nil {
			return fmt.Errorf("compiling topology version %d: %w", snap.Version, err)
		}
		// A newer plan supersedes any undispatched one.
		e.pending = plan
	}
	if e.pending == nil {
		return nil
	}

	if err := e.commands.Push(executor.Command{Plan: e.pending}); err != nil {
		return fmt.Errorf("dispatching plan %d: %w", e.pending.Version, err)
	}
	logrus.WithFields(logrus.Fields{
		"plan":     e.pending.Version,
		"topology": e.pending.TopologyVersion,
		"entries":  len(e.pending.Entries),
		"buffers":  e.pending.NumBuffers,
	}).Info("execution plan dispatched to audio context")
	e.pending = nil
	return nil
}

// Update runs the engine's periodic control-side maintenance: it drains
// the release channel, reclaiming plans the audio context has retired,
// surfaces audio-context panic and stream-fault state through the log,
// and recompiles and dispatches if the topology changed since the last
// plan. Call it regularly, for example once per frame in a game loop.
func (e *Engine) Update() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		rel, ok := e.releases.Pop()
		if !ok {
			break
		}
		logrus.WithFields(logrus.Fields{
			"plan":    rel.Plan.Version,
			"adopted": rel.Adopted,
		}).Debug("plan retired by audio context")
	}

	if pc := e.exec.PanicCount(); pc != e.lastPanics {
		logrus.WithField("panics", pc).Error("audio context contained node panics")
		e.lastPanics = pc
	}
	if e.exec.StreamFaulted() {
		logrus.Warn("audio stream faulted; output is silent until the driver is reattached")
	}

	return e.compileLocked()
}

// ResetNode clears a node's fault state, lifting a degraded bypass so
// the node processes again on the next callback.
func (e *Engine) ResetNode(id graph.NodeID) error {
	info, ok := e.store.Node(id)
	if !ok {
		return fmt.Errorf("%v: %w", id, graph.ErrNodeNotFound)
	}
	info.State.Reset()
	logrus.WithField("node", id).Info("node fault state reset")
	return nil
}

// ActivePlanVersion returns the version of the plan currently running
// on the audio context, or zero before any plan is adopted.
func (e *Engine) ActivePlanVersion() uint64 { return e.exec.ActivePlanVersion() }

// StreamFaulted reports whether the audio context observed a stream
// interruption. The flag clears when a driver is attached.
func (e *Engine) StreamFaulted() bool { return e.exec.StreamFaulted() }

// PanicCount returns the number of node panics contained on the audio
// context since the engine was created.
func (e *Engine) PanicCount() uint64 { return e.exec.PanicCount() }

// Executor exposes the audio-context executor for callers that drive
// the callback themselves instead of attaching a Driver.
func (e *Engine) Executor() *executor.Executor { return e.exec }

// AttachDriver starts the given stream driver with the engine's
// executor as its callback. The driver's stream configuration must
// match the engine's sample rate and channel counts. Attaching clears
// any previous stream fault.
func (e *Engine) AttachDriver(d backend.Driver) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.driver != nil {
		return ErrDriverAttached
	}
	scfg := d.Config()
	if scfg.SampleRate != e.cfg.SampleRate ||
		scfg.InChannels != e.cfg.InChannels ||
		scfg.OutChannels != e.cfg.OutChannels {
		return fmt.Errorf("driver %d Hz %d in / %d out, engine %d Hz %d in / %d out: %w",
			scfg.SampleRate, scfg.InChannels, scfg.OutChannels,
			e.cfg.SampleRate, e.cfg.InChannels, e.cfg.OutChannels, ErrStreamMismatch)
	}

	e.exec.ClearStreamFault()
	if err := d.Start(e.exec.Process); err != nil {
		return fmt.Errorf("starting stream driver: %w", err)
	}
	e.driver = d

	logrus.WithFields(logrus.Fields{
		"sample_rate":   scfg.SampleRate,
		"buffer_frames": scfg.BufferFrames,
	}).Info("stream driver attached")
	return nil
}

// DetachDriver stops the attached stream driver.
func (e *Engine) DetachDriver() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.driver == nil {
		return ErrNoDriver
	}
	if err := e.driver.Stop(); err != nil {
		return fmt.Errorf("stopping stream driver: %w", err)
	}
	e.driver = nil
	logrus.Info("stream driver detached")
	return nil
}

// Close shuts the engine down, stopping any attached driver. The engine
// must not be used afterwards.
func (e *Engine) Close() error {
	err := e.DetachDriver()
	if errors.Is(err, ErrNoDriver) {
		return nil
	}
	return err
}
