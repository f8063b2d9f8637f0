package automation

// ParamKey identifies one automatable parameter: a node handle (the
// graph package's int64 representation) and the parameter's index in the
// node's descriptor order.
type ParamKey struct {
	Node  int64
	Param int
}

// Snapshot is an immutable set of curve bindings. The control context
// builds a fresh snapshot after every curve edit and publishes it over
// the command channel; the audio context only ever reads. Reading a map
// that is never written is safe without synchronization.
type Snapshot struct {
	curves map[ParamKey]*Curve
}

// NewSnapshot copies the given bindings into an immutable snapshot. A
// nil map yields an empty snapshot.
func NewSnapshot(curves map[ParamKey]*Curve) *Snapshot {
	cp := make(map[ParamKey]*Curve, len(curves))
	for k, v := range curves {
		cp[k] = v
	}
	return &Snapshot{curves: cp}
}

// EmptySnapshot returns a snapshot with no bindings.
func EmptySnapshot() *Snapshot {
	return &Snapshot{curves: map[ParamKey]*Curve{}}
}

// Sample evaluates the curve bound to key at time t. The second return
// value is false when no curve is bound. Safe from the audio context.
func (s *Snapshot) Sample(key ParamKey, t float64) (float64, bool) {
	c, ok := s.curves[key]
	if !ok {
		return 0, false
	}
	return c.Value(t), true
}

// Len returns the number of bound curves.
func (s *Snapshot) Len() int { return len(s.curves) }
