package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/audiograph/node"
)

// stubNode is a minimal processor for topology tests.
type stubNode struct {
	ins, outs int
}

func (s *stubNode) Layout() node.PortLayout {
	return node.PortLayout{NumInputs: s.ins, NumOutputs: s.outs}
}

func (s *stubNode) Process(frames int, _, outputs [][]float64, _ []float64, _ *node.ProcInfo) node.ProcessResult {
	for _, out := range outputs {
		for i := 0; i < frames; i++ {
			out[i] = 1
		}
	}
	return node.ResultAudio
}

func TestNewStoreCreatesTerminals(t *testing.T) {
	s := NewStore(2, 2)

	in, ok := s.Node(s.In())
	require.True(t, ok)
	assert.True(t, in.Terminal)
	assert.Equal(t, 2, in.Layout.NumOutputs)

	out, ok := s.Node(s.Out())
	require.True(t, ok)
	assert.True(t, out.Terminal)
	assert.Equal(t, 2, out.Layout.NumInputs)

	assert.Equal(t, 2, s.NodeCount())
	assert.Equal(t, 0, s.EdgeCount())
}

func TestAddNodeAssignsSequentialHandles(t *testing.T) {
	s := NewStore(0, 1)

	a, err := s.AddNode(&stubNode{outs: 1})
	require.NoError(t, err)
	b, err := s.AddNode(&stubNode{ins: 1, outs: 1})
	require.NoError(t, err)

	assert.Greater(t, b, a, "handles grow in creation order")

	require.NoError(t, s.RemoveNode(a))
	c, err := s.AddNode(&stubNode{outs: 1})
	require.NoError(t, err)
	assert.Greater(t, c, b, "handles are never reused after removal")
}

func TestAddNodeRejectsOversizedLayout(t *testing.T) {
	s := NewStore(0, 1)
	_, err := s.AddNode(&stubNode{ins: node.MaxPorts + 1, outs: 1})
	require.ErrorIs(t, err, ErrTooManyPorts)
}

func TestConnectValidation(t *testing.T) {
	s := NewStore(0, 1)
	src, err := s.AddNode(&stubNode{outs: 1})
	require.NoError(t, err)
	dst, err := s.AddNode(&stubNode{ins: 1, outs: 1})
	require.NoError(t, err)

	tests := []struct {
		name    string
		connect func() error
		wantErr error
	}{
		{
			name:    "unknown source",
			connect: func() error { return s.Connect(NodeID(99), 0, dst, 0) },
			wantErr: ErrNodeNotFound,
		},
		{
			name:    "unknown destination",
			connect: func() error { return s.Connect(src, 0, NodeID(99), 0) },
			wantErr: ErrNodeNotFound,
		},
		{
			name:    "output port out of range",
			connect: func() error { return s.Connect(src, 1, dst, 0) },
			wantErr: ErrPortOutOfRange,
		},
		{
			name:    "negative input port",
			connect: func() error { return s.Connect(src, 0, dst, -1) },
			wantErr: ErrPortOutOfRange,
		},
		{
			name:    "self loop",
			connect: func() error { return s.Connect(dst, 0, dst, 0) },
			wantErr: ErrCycleDetected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := s.Version()
			require.ErrorIs(t, tt.connect(), tt.wantErr)
			assert.Equal(t, before, s.Version(), "failed connect must not change the topology")
			assert.Equal(t, 0, s.EdgeCount())
		})
	}
}

func TestConnectRejectsDuplicateEdge(t *testing.T) {
	s := NewStore(0, 1)
	src, _ := s.AddNode(&stubNode{outs: 1})
	dst, _ := s.AddNode(&stubNode{ins: 1, outs: 1})

	require.NoError(t, s.Connect(src, 0, dst, 0))
	require.ErrorIs(t, s.Connect(src, 0, dst, 0), ErrEdgeExists)
	assert.Equal(t, 1, s.EdgeCount())
}

func TestInputPortAcceptsOneEdge(t *testing.T) {
	s := NewStore(0, 1)
	a, _ := s.AddNode(&stubNode{outs: 1})
	b, _ := s.AddNode(&stubNode{outs: 1})
	dst, _ := s.AddNode(&stubNode{ins: 1, outs: 1})

	require.NoError(t, s.Connect(a, 0, dst, 0))
	require.ErrorIs(t, s.Connect(b, 0, dst, 0), ErrInputPortConnected)

	// Explicit rewiring after disconnect is fine.
	require.NoError(t, s.Disconnect(a, 0, dst, 0))
	require.NoError(t, s.Connect(b, 0, dst, 0))
}

func TestFanOutIsUnrestricted(t *testing.T) {
	s := NewStore(0, 3)
	src, _ := s.AddNode(&stubNode{outs: 1})

	for port := 0; port < 3; port++ {
		require.NoError(t, s.Connect(src, 0, s.Out(), port))
	}
	assert.Equal(t, 3, s.EdgeCount())
}

func TestCycleRejectionLeavesTopologyUnchanged(t *testing.T) {
	s := NewStore(0, 1)
	a, _ := s.AddNode(&stubNode{ins: 1, outs: 1})
	b, _ := s.AddNode(&stubNode{ins: 1, outs: 1})
	c, _ := s.AddNode(&stubNode{ins: 1, outs: 1})

	require.NoError(t, s.Connect(a, 0, b, 0))
	require.NoError(t, s.Connect(b, 0, c, 0))

	before := s.Version()
	edges := s.Edges()

	// Closing the chain back onto its head would create a -> b -> c -> a.
	require.ErrorIs(t, s.Connect(c, 0, a, 0), ErrCycleDetected)

	assert.Equal(t, before, s.Version())
	assert.Equal(t, edges, s.Edges())
	require.NoError(t, s.Validate())
}

func TestIndirectCycleRejected(t *testing.T) {
	s := NewStore(0, 1)
	ids := make([]NodeID, 5)
	for i := range ids {
		ids[i], _ = s.AddNode(&stubNode{ins: 1, outs: 1})
	}
	for i := 0; i < len(ids)-1; i++ {
		require.NoError(t, s.Connect(ids[i], 0, ids[i+1], 0))
	}
	require.ErrorIs(t, s.Connect(ids[len(ids)-1], 0, ids[0], 0), ErrCycleDetected)
}

func TestRemoveNodeInUse(t *testing.T) {
	s := NewStore(0, 1)

	src, err := s.AddNode(&stubNode{outs: 1})
	require.NoError(t, err)
	gain, err := s.AddNode(&stubNode{ins: 1, outs: 1})
	require.NoError(t, err)

	require.NoError(t, s.Connect(src, 0, gain, 0))
	require.NoError(t, s.Connect(gain, 0, s.Out(), 0))

	// The gain still has connections on both sides.
	require.ErrorIs(t, s.RemoveNode(gain), ErrNodeInUse)
	_, ok := s.Node(gain)
	assert.True(t, ok, "failed removal must keep the node")

	require.NoError(t, s.Disconnect(src, 0, gain, 0))
	require.ErrorIs(t, s.RemoveNode(gain), ErrNodeInUse, "outgoing edge still present")

	require.NoError(t, s.Disconnect(gain, 0, s.Out(), 0))
	require.NoError(t, s.RemoveNode(gain))
	_, ok = s.Node(gain)
	assert.False(t, ok)
}

func TestRemoveUnknownNode(t *testing.T) {
	s := NewStore(0, 1)
	require.ErrorIs(t, s.RemoveNode(NodeID(42)), ErrNodeNotFound)
}

func TestTerminalsCannotBeRemoved(t *testing.T) {
	s := NewStore(1, 1)
	require.ErrorIs(t, s.RemoveNode(s.In()), ErrTerminalNode)
	require.ErrorIs(t, s.RemoveNode(s.Out()), ErrTerminalNode)
}

func TestDisconnectUnknownEdge(t *testing.T) {
	s := NewStore(0, 1)
	src, _ := s.AddNode(&stubNode{outs: 1})
	require.ErrorIs(t, s.Disconnect(src, 0, s.Out(), 0), ErrEdgeNotFound)
}

func TestParallelEdgesBetweenSamePair(t *testing.T) {
	// Two distinct port pairs between the same nodes are two edges; the
	// node-level mirror must survive removing just one of them.
	s := NewStore(0, 1)
	src, _ := s.AddNode(&stubNode{outs: 2})
	dst, _ := s.AddNode(&stubNode{ins: 2, outs: 1})

	require.NoError(t, s.Connect(src, 0, dst, 0))
	require.NoError(t, s.Connect(src, 1, dst, 1))
	require.NoError(t, s.Disconnect(src, 0, dst, 0))

	// The remaining edge still forbids a reverse connection.
	require.ErrorIs(t, s.Connect(dst, 0, src, 0), ErrCycleDetected)
}

func TestSnapshotIsDeterministic(t *testing.T) {
	s := NewStore(0, 2)
	a, _ := s.AddNode(&stubNode{outs: 1})
	b, _ := s.AddNode(&stubNode{outs: 1})
	require.NoError(t, s.Connect(b, 0, s.Out(), 1))
	require.NoError(t, s.Connect(a, 0, s.Out(), 0))

	first := s.Snapshot()
	second := s.Snapshot()

	assert.Equal(t, first.Version, second.Version)
	assert.Equal(t, first.Edges, second.Edges)
	require.Len(t, first.Nodes, 4)

	// Creation order: the two terminals, then a, then b.
	assert.Equal(t, s.In(), first.Nodes[0].ID)
	assert.Equal(t, s.Out(), first.Nodes[1].ID)
	assert.Equal(t, a, first.Nodes[2].ID)
	assert.Equal(t, b, first.Nodes[3].ID)

	// Edges sorted by source before destination.
	assert.Equal(t, a, first.Edges[0].Src)
	assert.Equal(t, b, first.Edges[1].Src)
}

func TestSnapshotUnaffectedByLaterMutation(t *testing.T) {
	s := NewStore(0, 1)
	a, _ := s.AddNode(&stubNode{outs: 1})
	require.NoError(t, s.Connect(a, 0, s.Out(), 0))

	snap := s.Snapshot()
	nodesBefore := len(snap.Nodes)
	edgesBefore := len(snap.Edges)

	_, err := s.AddNode(&stubNode{outs: 1})
	require.NoError(t, err)
	require.NoError(t, s.Disconnect(a, 0, s.Out(), 0))

	assert.Len(t, snap.Nodes, nodesBefore)
	assert.Len(t, snap.Edges, edgesBefore)
}

func TestNodeStateFaultTracking(t *testing.T) {
	st := &NodeState{}

	assert.Equal(t, uint32(1), st.RecordFault())
	assert.Equal(t, uint32(2), st.RecordFault())
	assert.Equal(t, uint64(2), st.TotalFaults())

	st.RecordSuccess()
	assert.Equal(t, uint32(0), st.ConsecutiveFaults(), "success resets the consecutive count")
	assert.Equal(t, uint64(2), st.TotalFaults(), "the total is cumulative")

	st.RecordFault()
	st.MarkDegraded()
	assert.True(t, st.Degraded())

	st.Reset()
	assert.False(t, st.Degraded())
	assert.Equal(t, uint32(0), st.ConsecutiveFaults())
}
