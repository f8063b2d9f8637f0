// Package audiograph implements a real-time audio processing graph for
// interactive applications. A directed acyclic graph of processing
// nodes is edited on ordinary goroutines, compiled into a flat
// execution plan, and handed to the audio context over a bounded
// lock-free channel so the real-time path never locks, allocates, or
// blocks.
//
// The package splits responsibilities the way the audio stream does:
//
//   - graph.Store holds the mutable topology and validates every edit
//     synchronously (port arity, one edge per input port, acyclicity).
//   - graph.Compiler turns a topology snapshot into a graph.Plan: a
//     topologically ordered entry list with buffer slots assigned so
//     that concurrent lifetimes never share a slot.
//   - executor.Executor runs the active plan inside the stream
//     callback, skipping silence-transparent nodes over silent input,
//     containing panics, and bypassing nodes that fault repeatedly.
//   - automation holds sample-accurate parameter curves the executor
//     evaluates per block.
//   - backend abstracts the audio stream; SimDriver drives the engine
//     without real hardware.
//
// # Getting Started
//
// Create an engine, build a graph, and attach a stream driver:
//
//	cfg := config.Default()
//	engine, err := audiograph.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	osc, _ := engine.AddNode(&nodes.Sine{Freq: 440, Amp: 0.5})
//	gain, _ := engine.AddNode(&nodes.Gain{Channels: 1, Default: 1})
//	engine.Connect(osc, 0, gain, 0)
//	engine.Connect(gain, 0, engine.GraphOut(), 0)
//	engine.Compile()
//
//	driver := backend.NewSimDriver(backend.StreamConfig{
//	    SampleRate:   cfg.SampleRate,
//	    OutChannels:  cfg.OutChannels,
//	    BufferFrames: 256,
//	})
//	engine.AttachDriver(driver)
//
// Call Update periodically from the control context to reclaim retired
// plans, surface audio-context fault counters, and recompile after
// topology edits.
package audiograph
