// Package schedule implements learning-rate policies for the training loop.
package schedule

import (
	"errors"
	"math"
)

// FloorLR is the minimum learning rate any decaying policy will return.
const FloorLR = 1e-10

// DefaultWarmupFraction is the portion of the horizon spent ramping up.
const DefaultWarmupFraction = 0.1

var (
	// ErrZeroHorizon is returned when a policy is constructed with a
	// non-positive total step count.
	ErrZeroHorizon = errors.New("schedule: total steps must be positive")

	// ErrZeroWarmup is returned when the warmup fraction rounds down to
	// zero warmup steps.
	ErrZeroWarmup = errors.New("schedule: warmup steps must be positive")
)

// Policy maps a global step to a learning rate.
// All policies must be stateless pure functions of the step.
type Policy interface {
	// LearningRate returns the learning rate for the given 0-indexed step.
	LearningRate(step int) float64

	// Name returns the policy name for logging.
	Name() string
}

// QuadraticDecay decays the learning rate quadratically over a fixed horizon:
// lr = initialLR * ((N - step) / N)^2, clamped to FloorLR.
type QuadraticDecay struct {
	InitialLR  float64
	TotalSteps int
}

// NewQuadraticDecay creates a quadratic decay policy over totalSteps.
func NewQuadraticDecay(initialLR float64, totalSteps int) (*QuadraticDecay, error) {
	if totalSteps <= 0 {
		return nil, ErrZeroHorizon
	}
	return &QuadraticDecay{
		InitialLR:  initialLR,
		TotalSteps: totalSteps,
	}, nil
}

func (p *QuadraticDecay) LearningRate(step int) float64 {
	// Past the horizon the squared term would grow again; stay at the floor.
	if step >= p.TotalSteps {
		return FloorLR
	}
	n := float64(p.TotalSteps)
	remaining := (n - float64(step)) / n
	lr := p.InitialLR * remaining * remaining
	return math.Max(lr, FloorLR)
}

func (p *QuadraticDecay) Name() string {
	return "QuadraticDecay"
}

// WarmupDecay ramps linearly from zero to InitialLR over the warmup portion
// of the horizon, then decays linearly to FloorLR. Steps are treated as
// 1-indexed inside the policy so the ramp completes exactly at the warmup
// boundary.
type WarmupDecay struct {
	InitialLR   float64
	TotalSteps  int
	WarmupSteps int
}

// NewWarmupDecay creates a warmup policy. warmupFraction <= 0 selects
// DefaultWarmupFraction. The warmup step count is floor(fraction * total).
func NewWarmupDecay(initialLR float64, totalSteps int, warmupFraction float64) (*WarmupDecay, error) {
	if totalSteps <= 0 {
		return nil, ErrZeroHorizon
	}
	if warmupFraction <= 0 {
		warmupFraction = DefaultWarmupFraction
	}
	warmupSteps := int(math.Floor(warmupFraction * float64(totalSteps)))
	if warmupSteps <= 0 {
		return nil, ErrZeroWarmup
	}
	return &WarmupDecay{
		InitialLR:   initialLR,
		TotalSteps:  totalSteps,
		WarmupSteps: warmupSteps,
	}, nil
}

func (p *WarmupDecay) LearningRate(step int) float64 {
	s := step + 1
	if s <= p.WarmupSteps {
		return p.InitialLR * float64(s) / float64(p.WarmupSteps)
	}
	remaining := p.TotalSteps - p.WarmupSteps
	lr := p.InitialLR * float64(p.TotalSteps-s) / float64(remaining)
	return math.Max(lr, FloorLR)
}

func (p *WarmupDecay) Name() string {
	return "WarmupDecay"
}

// Constant leaves the optimizer's configured learning rate untouched.
type Constant struct {
	LR float64
}

func (p *Constant) LearningRate(step int) float64 {
	return p.LR
}

func (p *Constant) Name() string {
	return "ConstantLR"
}
