package node

// MaxPorts is the maximum number of input or output ports a single node
// may declare. The silence mask is a 64-bit word, one bit per port.
const MaxPorts = 64

// PortLayout describes the fixed port arrangement of a node.
type PortLayout struct {
	// NumInputs is the number of audio input ports.
	NumInputs int
	// NumOutputs is the number of audio output ports.
	NumOutputs int
}

// ProcessStatus reports what a node produced during one Process call.
type ProcessStatus int

const (
	// StatusAudio indicates the node wrote audio into its output buffers.
	StatusAudio ProcessStatus = iota
	// StatusSilence indicates every output buffer contains all zeros.
	// The engine propagates this downstream so silence-transparent
	// consumers can be skipped.
	StatusSilence
	// StatusFault indicates the node failed this callback. The engine
	// substitutes silence for its outputs and increments the node's
	// fault counter; processing of the rest of the plan continues.
	StatusFault
)

// String returns a human-readable name for the status.
func (s ProcessStatus) String() string {
	switch s {
	case StatusAudio:
		return "audio"
	case StatusSilence:
		return "silence"
	case StatusFault:
		return "fault"
	default:
		return "unknown"
	}
}

// ProcessResult is returned by Process to describe the callback's outcome.
// The zero value means "produced audio on all outputs".
type ProcessResult struct {
	Status ProcessStatus
	// OutSilence marks which individual output ports contain silence.
	// Ignored when Status is StatusSilence (all outputs are silent) or
	// StatusFault (the engine silences the outputs itself).
	OutSilence SilenceMask
}

// ResultAudio is a ProcessResult reporting audio on all outputs.
var ResultAudio = ProcessResult{Status: StatusAudio}

// ResultSilence is a ProcessResult reporting silence on all outputs.
var ResultSilence = ProcessResult{Status: StatusSilence}

// ResultFault is a ProcessResult reporting a processing fault.
var ResultFault = ProcessResult{Status: StatusFault}

// ProcInfo carries per-callback context into Process.
type ProcInfo struct {
	// InSilence marks which input buffers contain all zeros. Nodes may
	// use it to skip work; they must not rely on it being exhaustive
	// (an unset bit only means "not known to be silent").
	InSilence SilenceMask
	// SampleRate is the stream sample rate in Hz.
	SampleRate int
	// StreamTime is the number of seconds elapsed from stream start to
	// the first frame of this block, using the driver's clock.
	StreamTime float64
	// Status carries stream-level conditions reported by the driver for
	// this callback.
	Status StreamStatus
}

// Processor is the contract every audio processing unit implements.
//
// Layout is called from the control context when the node is added to the
// graph and must return the same values for the lifetime of the node.
// Process is called from the audio context only.
type Processor interface {
	// Layout returns the node's fixed port arrangement.
	Layout() PortLayout

	// Process renders one block. inputs and outputs hold one buffer per
	// port, each at least frames samples long; only the first frames
	// samples are valid. params holds the node's current parameter
	// values in descriptor order (nil when the node declares none).
	// Every output buffer must be fully written up to frames unless the
	// result status is StatusSilence or StatusFault.
	Process(frames int, inputs, outputs [][]float64, params []float64, info *ProcInfo) ProcessResult
}

// ParamDescriptor describes one automatable parameter of a node.
type ParamDescriptor struct {
	// Name identifies the parameter in automation bindings.
	Name string
	// Min and Max bound the value range; sampled automation values are
	// clamped into it before being handed to Process.
	Min, Max float64
	// Default is the value used when no automation curve is bound.
	Default float64
}

// ParameterProvider is implemented by nodes exposing automatable
// parameters. The descriptor slice must be stable for the node's lifetime.
type ParameterProvider interface {
	Parameters() []ParamDescriptor
}

// SilenceTransparent is implemented by nodes that may be skipped entirely
// for a callback when all of their inputs are silent. Skipped nodes have
// their outputs marked silent without Process being invoked.
type SilenceTransparent interface {
	SilenceTransparent() bool
}

// StreamStatus flags stream-level conditions for the current callback.
type StreamStatus uint32

const (
	// StreamInputOverflow indicates input data was discarded by the
	// driver due to an overflow condition.
	StreamInputOverflow StreamStatus = 1 << iota
	// StreamOutputUnderflow indicates the driver's output buffer ran
	// low, likely producing an audible gap.
	StreamOutputUnderflow
	// StreamInterrupted indicates the stream itself reported an error or
	// disconnect; the engine emits silence until a new stream attaches.
	StreamInterrupted
)

// Has reports whether all flags in f are set.
func (s StreamStatus) Has(f StreamStatus) bool { return s&f == f }
