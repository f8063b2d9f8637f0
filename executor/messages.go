package executor

import (
	"github.com/opd-ai/audiograph/automation"
	"github.com/opd-ai/audiograph/graph"
)

// Command is one control-to-audio message. Exactly one field is set.
type Command struct {
	// Plan installs a newly compiled execution plan. When several plan
	// installations are queued, only the newest is adopted; the
	// intermediates are retired unused.
	Plan *graph.Plan
	// Automation installs a new automation snapshot.
	Automation *automation.Snapshot
}

// Release is one audio-to-control message: a plan the audio context no
// longer references. The control context drains these to observe
// adoption and to retire node bookkeeping tied to old plans.
type Release struct {
	Plan *graph.Plan
	// Adopted reports whether the released plan ever became active, as
	// opposed to being skipped by a newer queued plan.
	Adopted bool
}
