// Package backend defines the audio driver contract the engine consumes
// and provides SimDriver, a deterministic in-process driver used by
// tests and demos.
//
// A driver owns the physical (or simulated) audio stream as an explicit
// resource: it is opened by Start, delivers periodic callbacks with a
// frame count and planar buffers, reports interruptions through the
// callback's status flags, and is torn down by Stop. Stream faults are
// state transitions the engine observes, never hidden global mutation.
package backend

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audiograph/node"
)

// Sentinel errors for driver lifecycle misuse.
var (
	// ErrAlreadyStarted indicates Start was called on a running driver.
	ErrAlreadyStarted = errors.New("driver already started")

	// ErrNotStarted indicates an operation requiring a running driver.
	ErrNotStarted = errors.New("driver not started")
)

// StreamConfig describes the stream a driver delivers.
type StreamConfig struct {
	SampleRate  int
	InChannels  int
	OutChannels int
	// BufferFrames is the frame count of each callback.
	BufferFrames int
}

// Callback is invoked once per buffer period on the driver's audio
// goroutine. in and out hold one slice per channel, each frames long;
// streamTime is seconds from stream start to the first frame.
type Callback func(in, out [][]float64, frames int, streamTime float64, status node.StreamStatus)

// Driver is the engine-facing contract of an audio backend.
type Driver interface {
	// Start opens the stream and begins delivering callbacks.
	Start(cb Callback) error
	// Stop closes the stream. No callbacks arrive after Stop returns.
	Stop() error
	// Config returns the stream's fixed parameters.
	Config() StreamConfig
}

// SimDriver is a simulated driver. Callbacks are delivered either
// manually via Step (deterministic, for tests) or periodically from a
// ticker goroutine via Run. Output of the most recent callback is kept
// for inspection.
type SimDriver struct {
	cfg StreamConfig

	mu        sync.Mutex
	cb        Callback
	started   bool
	interrupt bool
	frames    uint64

	in   [][]float64
	out  [][]float64
	stop chan struct{}
	done chan struct{}
}

// NewSimDriver creates a simulated driver for the given stream shape.
func NewSimDriver(cfg StreamConfig) *SimDriver {
	d := &SimDriver{cfg: cfg}
	d.in = makePlanar(cfg.InChannels, cfg.BufferFrames)
	d.out = makePlanar(cfg.OutChannels, cfg.BufferFrames)
	return d
}

// Config returns the stream parameters.
func (d *SimDriver) Config() StreamConfig { return d.cfg }

// Start registers the callback and opens the simulated stream.
func (d *SimDriver) Start(cb Callback) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return ErrAlreadyStarted
	}
	d.cb = cb
	d.started = true
	d.frames = 0

	logrus.WithFields(logrus.Fields{
		"sample_rate":   d.cfg.SampleRate,
		"buffer_frames": d.cfg.BufferFrames,
		"out_channels":  d.cfg.OutChannels,
	}).Info("simulated audio stream opened")

	return nil
}

// Stop closes the simulated stream and, if Run is active, waits for its
// goroutine to exit.
func (d *SimDriver) Stop() error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return ErrNotStarted
	}
	d.started = false
	stop, done := d.stop, d.done
	d.stop, d.done = nil, nil
	d.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	logrus.Info("simulated audio stream closed")
	return nil
}

// Interrupt makes the next callback carry StreamInterrupted, simulating
// a device disconnect.
func (d *SimDriver) Interrupt() {
	d.mu.Lock()
	d.interrupt = true
	d.mu.Unlock()
}

// Step delivers exactly one callback synchronously. The caller provides
// nothing; input channels are silent. Returns ErrNotStarted when the
// stream is closed.
func (d *SimDriver) Step() error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return ErrNotStarted
	}
	cb := d.cb
	status := node.StreamStatus(0)
	if d.interrupt {
		status |= node.StreamInterrupted
		d.interrupt = false
	}
	streamTime := float64(d.frames) / float64(d.cfg.SampleRate)
	d.frames += uint64(d.cfg.BufferFrames)
	d.mu.Unlock()

	zeroPlanar(d.in)
	cb(d.in, d.out, d.cfg.BufferFrames, streamTime, status)
	return nil
}

// Run delivers callbacks from a ticker goroutine at the stream's real
// buffer period until Stop is called. Used by demos; tests prefer Step.
func (d *SimDriver) Run() error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return ErrNotStarted
	}
	if d.stop != nil {
		d.mu.Unlock()
		return ErrAlreadyStarted
	}
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	stop, done := d.stop, d.done
	d.mu.Unlock()

	period := time.Duration(float64(d.cfg.BufferFrames) / float64(d.cfg.SampleRate) * float64(time.Second))

	go func() {
		defer close(done)
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := d.Step(); err != nil {
					return
				}
			}
		}
	}()

	return nil
}

// LastOutput returns the output buffers of the most recent callback.
// Valid between Step calls; not synchronized against Run.
func (d *SimDriver) LastOutput() [][]float64 { return d.out }

func makePlanar(channels, frames int) [][]float64 {
	p := make([][]float64, channels)
	for i := range p {
		p[i] = make([]float64, frames)
	}
	return p
}

func zeroPlanar(chans [][]float64) {
	for _, ch := range chans {
		for i := range ch {
			ch[i] = 0
		}
	}
}
