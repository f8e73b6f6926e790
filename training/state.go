package training

import (
	"math"

	"asrtune/evaluation"
)

// Phase is the orchestrator's current position in its state machine.
type Phase int

const (
	PhaseRunning Phase = iota
	PhaseEvaluating
	PhaseCheckpointing
	PhaseEarlyStopped
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhaseEvaluating:
		return "evaluating"
	case PhaseCheckpointing:
		return "checkpointing"
	case PhaseEarlyStopped:
		return "early_stopped"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Terminal reports whether the phase ends the run.
func (p Phase) Terminal() bool {
	return p == PhaseEarlyStopped || p == PhaseDone
}

// Precision selects the numeric mode collaborators run in. The
// orchestrator only carries it; model and optimizer implementations
// decide what it means for them.
type Precision int

const (
	FullPrecision Precision = iota
	MixedPrecision
)

func (p Precision) String() string {
	if p == MixedPrecision {
		return "mixed"
	}
	return "full"
}

// State is the orchestrator's mutable progress record. It is owned and
// mutated exclusively by the Trainer and handed back read-only when the
// run ends.
type State struct {
	Epoch int
	Step  int

	// BestMetric tracks the best interval-evaluation metric; BestEpoch
	// tracks the best epoch-boundary metric used by early stopping.
	// Both are lower-is-better and start at +Inf.
	BestMetric float64
	BestEpoch  float64

	// Patience counts consecutive epochs without sufficient improvement.
	Patience int

	// LastEval is the most recent completed evaluation, nil before the
	// first one.
	LastEval *evaluation.Result

	Phase Phase
}

func newState() *State {
	return &State{
		BestMetric: math.Inf(1),
		BestEpoch:  math.Inf(1),
		Phase:      PhaseRunning,
	}
}
