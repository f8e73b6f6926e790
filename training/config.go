package training

import (
	"errors"
	"fmt"
	"log/slog"

	"asrtune/checkpoints"
	"asrtune/comm"
	"asrtune/evaluation"
	"asrtune/metrics"
	"asrtune/schedule"
)

// EvalFailurePolicy decides what a failed evaluation pass does to the run.
type EvalFailurePolicy int

const (
	// RetryOnce retries a failed evaluation immediately; a second
	// failure aborts the run.
	RetryOnce EvalFailurePolicy = iota
	// SkipEval logs the failure and continues training with the best
	// metric unchanged.
	SkipEval
)

func (p EvalFailurePolicy) String() string {
	if p == SkipEval {
		return "skip"
	}
	return "retry"
}

// Config holds the orchestration knobs for one run. Collaborator
// construction (model, data, optimizer) happens upstream; this only
// shapes the loop.
type Config struct {
	GradAccumSteps      int
	MaxEpochs           int
	MaxSteps            int // positive takes precedence over MaxEpochs
	EvalInterval        int
	TrainReportInterval int
	EvalPerEpoch        bool
	EarlyStopPatience   int // zero disables early stopping

	InitCheckpoint     string
	Resume             bool
	LoadOptimizerState bool

	FreezeBlocks int
	Precision    Precision
	UseCER       bool
	EvalFailure  EvalFailurePolicy
}

// Collaborators are the external pieces the Trainer drives.
type Collaborators struct {
	Model       Model
	Criterion   Criterion
	Decoder     Decoder
	Optimizer   Optimizer
	Policy      schedule.Policy
	Checkpoints *checkpoints.Manager
	Comm        comm.Communicator
	Aggregator  *evaluation.Aggregator
	Sink        metrics.Sink
	Logger      *slog.Logger
}

func (c Collaborators) validate() error {
	switch {
	case c.Model == nil:
		return errors.New("trainer: nil model")
	case c.Criterion == nil:
		return errors.New("trainer: nil criterion")
	case c.Decoder == nil:
		return errors.New("trainer: nil decoder")
	case c.Optimizer == nil:
		return errors.New("trainer: nil optimizer")
	case c.Checkpoints == nil:
		return errors.New("trainer: nil checkpoint manager")
	case c.Aggregator == nil:
		return errors.New("trainer: nil aggregator")
	}
	return nil
}

func (c *Config) validate() error {
	if c.GradAccumSteps < 1 {
		return fmt.Errorf("trainer: accumulation steps must be at least 1, got %d", c.GradAccumSteps)
	}
	if c.MaxSteps <= 0 && c.MaxEpochs <= 0 {
		return errors.New("trainer: no step or epoch budget")
	}
	if !c.EvalPerEpoch && c.EvalInterval <= 0 {
		return fmt.Errorf("trainer: eval interval must be positive, got %d", c.EvalInterval)
	}
	if c.TrainReportInterval <= 0 {
		return fmt.Errorf("trainer: report interval must be positive, got %d", c.TrainReportInterval)
	}
	if c.EarlyStopPatience < 0 {
		return fmt.Errorf("trainer: patience must be non-negative, got %d", c.EarlyStopPatience)
	}
	return nil
}
