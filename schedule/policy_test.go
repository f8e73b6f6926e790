package schedule

import (
	"math"
	"testing"
)

func TestQuadraticDecayMonotone(t *testing.T) {
	policy, err := NewQuadraticDecay(0.02, 1000)
	if err != nil {
		t.Fatalf("NewQuadraticDecay: %v", err)
	}

	prev := math.Inf(1)
	for step := 0; step <= 1000; step++ {
		lr := policy.LearningRate(step)
		if lr > prev {
			t.Fatalf("Step %d: LR %g increased from %g", step, lr, prev)
		}
		prev = lr
	}

	if lr := policy.LearningRate(1000); lr != FloorLR {
		t.Errorf("At horizon: expected floor %g, got %g", FloorLR, lr)
	}
	if lr := policy.LearningRate(0); math.Abs(lr-0.02) > 1e-12 {
		t.Errorf("At step 0: expected initial LR 0.02, got %g", lr)
	}
}

func TestQuadraticDecayValues(t *testing.T) {
	policy, err := NewQuadraticDecay(0.1, 100)
	if err != nil {
		t.Fatalf("NewQuadraticDecay: %v", err)
	}

	tests := []struct {
		step       int
		expectedLR float64
	}{
		{0, 0.1},
		{50, 0.025},   // 0.1 * (50/100)^2
		{90, 0.001},   // 0.1 * (10/100)^2
		{100, FloorLR},
		{150, FloorLR}, // past the horizon stays clamped
		{200, FloorLR}, // a doubled horizon must not rebound to the initial LR
	}

	for _, tt := range tests {
		lr := policy.LearningRate(tt.step)
		if math.Abs(lr-tt.expectedLR) > 1e-12 {
			t.Errorf("Step %d: expected LR %g, got %g", tt.step, tt.expectedLR, lr)
		}
	}
}

func TestWarmupDecayRamp(t *testing.T) {
	// 100 warmup steps over a 1000 step horizon.
	policy, err := NewWarmupDecay(0.05, 1000, 0.1)
	if err != nil {
		t.Fatalf("NewWarmupDecay: %v", err)
	}
	if policy.WarmupSteps != 100 {
		t.Fatalf("expected 100 warmup steps, got %d", policy.WarmupSteps)
	}

	// Strictly increasing during warmup.
	prev := 0.0
	for step := 0; step < policy.WarmupSteps; step++ {
		lr := policy.LearningRate(step)
		if lr <= prev {
			t.Fatalf("Step %d: warmup LR %g did not increase past %g", step, lr, prev)
		}
		prev = lr
	}

	// Ramp completes exactly at the warmup boundary.
	if lr := policy.LearningRate(policy.WarmupSteps - 1); math.Abs(lr-0.05) > 1e-12 {
		t.Errorf("End of warmup: expected initial LR 0.05, got %g", lr)
	}

	// Decaying afterwards, clamped at the horizon.
	if lr := policy.LearningRate(policy.WarmupSteps); lr >= 0.05 {
		t.Errorf("Past warmup: expected LR below initial, got %g", lr)
	}
	if lr := policy.LearningRate(1200); lr != FloorLR {
		t.Errorf("Past horizon: expected floor %g, got %g", FloorLR, lr)
	}
}

func TestPolicyConfigurationErrors(t *testing.T) {
	if _, err := NewQuadraticDecay(0.01, 0); err != ErrZeroHorizon {
		t.Errorf("zero horizon: expected ErrZeroHorizon, got %v", err)
	}
	if _, err := NewWarmupDecay(0.01, 0, 0.1); err != ErrZeroHorizon {
		t.Errorf("zero horizon warmup: expected ErrZeroHorizon, got %v", err)
	}
	// 0.1 * 5 steps floors to zero warmup steps.
	if _, err := NewWarmupDecay(0.01, 5, 0.1); err != ErrZeroWarmup {
		t.Errorf("zero warmup: expected ErrZeroWarmup, got %v", err)
	}
}

func TestPolicyNames(t *testing.T) {
	quad, _ := NewQuadraticDecay(0.01, 10)
	warm, _ := NewWarmupDecay(0.01, 100, 0.1)

	tests := []struct {
		policy   Policy
		expected string
	}{
		{quad, "QuadraticDecay"},
		{warm, "WarmupDecay"},
		{&Constant{LR: 0.01}, "ConstantLR"},
	}

	for _, tt := range tests {
		if name := tt.policy.Name(); name != tt.expected {
			t.Errorf("Expected name %s, got %s", tt.expected, name)
		}
	}
}
