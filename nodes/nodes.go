// Package nodes provides the small built-in node set that ships with
// the engine: a dummy placeholder, the dedicated summing node required
// for multi-input mixing, an automatable gain stage, and a sine test
// source. Heavier DSP (filters, reverbs, samplers) lives outside the
// engine and plugs in through the same contract.
package nodes

import (
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/opd-ai/audiograph/node"
)

// Dummy is a node with an arbitrary port layout that always produces
// silence. Useful as a placeholder and in topology tests.
type Dummy struct {
	Inputs  int
	Outputs int
}

// Layout implements node.Processor.
func (d *Dummy) Layout() node.PortLayout {
	return node.PortLayout{NumInputs: d.Inputs, NumOutputs: d.Outputs}
}

// Process zero-fills all outputs and reports silence.
func (d *Dummy) Process(frames int, _, outputs [][]float64, _ []float64, _ *node.ProcInfo) node.ProcessResult {
	for _, out := range outputs {
		for i := 0; i < frames; i++ {
			out[i] = 0
		}
	}
	return node.ResultSilence
}

// SilenceTransparent implements node.SilenceTransparent.
func (d *Dummy) SilenceTransparent() bool { return true }

// Sum mixes all of its input ports into a single output port by
// addition. The data model forbids implicit mixing on input ports; this
// node is the explicit route for it.
type Sum struct {
	// Inputs is the number of summing input ports.
	Inputs int
}

// Layout implements node.Processor.
func (s *Sum) Layout() node.PortLayout {
	return node.PortLayout{NumInputs: s.Inputs, NumOutputs: 1}
}

// Process writes the sample-wise sum of the non-silent inputs.
func (s *Sum) Process(frames int, inputs, outputs [][]float64, _ []float64, info *node.ProcInfo) node.ProcessResult {
	out := outputs[0][:frames]
	for i := range out {
		out[i] = 0
	}

	wrote := false
	for i, in := range inputs {
		if info.InSilence.IsSilent(i) {
			continue
		}
		vecmath.AddBlockInPlace(out, in[:frames])
		wrote = true
	}
	if !wrote {
		return node.ResultSilence
	}
	return node.ResultAudio
}

// SilenceTransparent implements node.SilenceTransparent.
func (s *Sum) SilenceTransparent() bool { return true }

// Gain scales its inputs by an automatable gain parameter, one output
// per input.
type Gain struct {
	// Channels is the number of input/output port pairs.
	Channels int
	// Default is the gain applied when no automation curve is bound.
	Default float64
}

// Layout implements node.Processor.
func (g *Gain) Layout() node.PortLayout {
	return node.PortLayout{NumInputs: g.Channels, NumOutputs: g.Channels}
}

// Parameters implements node.ParameterProvider. The single "gain"
// parameter ranges from 0 (mute) to 4 (+12 dB).
func (g *Gain) Parameters() []node.ParamDescriptor {
	return []node.ParamDescriptor{
		{Name: "gain", Min: 0, Max: 4, Default: g.Default},
	}
}

// Process scales every channel by the current gain value.
func (g *Gain) Process(frames int, inputs, outputs [][]float64, params []float64, _ *node.ProcInfo) node.ProcessResult {
	gain := params[0]
	if gain == 0 {
		for _, out := range outputs {
			for i := 0; i < frames; i++ {
				out[i] = 0
			}
		}
		return node.ResultSilence
	}
	for c, in := range inputs {
		vecmath.ScaleBlock(outputs[c][:frames], in[:frames], gain)
	}
	return node.ResultAudio
}

// SilenceTransparent implements node.SilenceTransparent.
func (g *Gain) SilenceTransparent() bool { return true }

// Sine is a test oscillator producing a sine wave on one output port.
type Sine struct {
	// Freq is the oscillator frequency in Hz.
	Freq float64
	// Amp is the peak amplitude.
	Amp float64

	phase float64
}

// Layout implements node.Processor.
func (s *Sine) Layout() node.PortLayout {
	return node.PortLayout{NumOutputs: 1}
}

// Process renders the next block of the oscillation. Phase is private
// state mutated only here.
func (s *Sine) Process(frames int, _, outputs [][]float64, _ []float64, info *node.ProcInfo) node.ProcessResult {
	out := outputs[0][:frames]
	inc := 2 * math.Pi * s.Freq / float64(info.SampleRate)
	for i := range out {
		out[i] = s.Amp * math.Sin(s.phase)
		s.phase += inc
		if s.phase >= 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
	}
	return node.ResultAudio
}
