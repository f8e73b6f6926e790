package config

import (
	"fmt"

	"asrtune/schedule"
	"asrtune/training"
)

// TrainerConfig maps the resolved run configuration onto the orchestrator's
// knobs. Assumes Validate has already passed.
func (c *Config) TrainerConfig() training.Config {
	tc := training.Config{
		GradAccumSteps:      c.GradAccumSteps,
		MaxEpochs:           c.MaxEpochs,
		MaxSteps:            c.MaxSteps,
		EvalInterval:        c.EvalInterval,
		TrainReportInterval: c.TrainReportInterval,
		EvalPerEpoch:        c.EvalPerEpoch,
		EarlyStopPatience:   c.EarlyStopPatience,
		InitCheckpoint:      c.InitCheckpoint,
		Resume:              c.Resume,
		LoadOptimizerState:  c.LoadOptimizerState,
		FreezeBlocks:        c.FreezeBlocks,
		UseCER:              c.UseCER,
	}
	if c.Precision == "mixed" {
		tc.Precision = training.MixedPrecision
	}
	if c.EvalFailurePolicy == "skip" {
		tc.EvalFailure = training.SkipEval
	}
	return tc
}

// SchedulePolicy builds the learning-rate policy named by the
// configuration over the given horizon (total optimizer steps).
func (c *Config) SchedulePolicy(totalSteps int) (schedule.Policy, error) {
	switch c.LRPolicy {
	case "none":
		return &schedule.Constant{LR: c.LearningRate}, nil
	case "decay":
		return schedule.NewQuadraticDecay(c.LearningRate, totalSteps)
	case "warmup":
		return schedule.NewWarmupDecay(c.LearningRate, totalSteps, c.WarmupFraction)
	default:
		return nil, fmt.Errorf("config: unknown lr_policy %q", c.LRPolicy)
	}
}
