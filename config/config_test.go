package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	if err := New().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, "batch_size"},
		{"zero accumulation", func(c *Config) { c.GradAccumSteps = 0 }, "gradient_accumulation_steps"},
		{"accumulation does not divide batch", func(c *Config) { c.BatchSize = 16; c.GradAccumSteps = 3 }, "gradient_accumulation_steps"},
		{"unknown lr policy", func(c *Config) { c.LRPolicy = "cosine" }, "lr_policy"},
		{"non-positive learning rate", func(c *Config) { c.LearningRate = 0 }, "learning_rate"},
		{"negative weight decay", func(c *Config) { c.WeightDecay = -1 }, "weight_decay"},
		{"no step or epoch bound", func(c *Config) { c.MaxEpochs = 0; c.MaxSteps = 0 }, "max_epochs"},
		{"zero eval interval", func(c *Config) { c.EvalInterval = 0 }, "eval_interval"},
		{"zero report interval", func(c *Config) { c.TrainReportInterval = 0 }, "train_report_interval"},
		{"negative patience", func(c *Config) { c.EarlyStopPatience = -1 }, "early_stop_patience"},
		{"unknown precision", func(c *Config) { c.Precision = "half" }, "precision"},
		{"unknown eval failure policy", func(c *Config) { c.EvalFailurePolicy = "abort" }, "eval_failure_policy"},
		{"negative freeze blocks", func(c *Config) { c.FreezeBlocks = -1 }, "freeze_blocks"},
		{"resume without checkpoint", func(c *Config) { c.Resume = true }, "resume"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := New()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if verr.Field != tc.field {
				t.Errorf("field = %q, want %q", verr.Field, tc.field)
			}
		})
	}
}

func TestValidateStepBudgetOnly(t *testing.T) {
	cfg := New()
	cfg.MaxEpochs = 0
	cfg.MaxSteps = 5000
	if err := cfg.Validate(); err != nil {
		t.Fatalf("max_steps alone should be enough: %v", err)
	}
}

func TestValidateEpochEvalIgnoresInterval(t *testing.T) {
	cfg := New()
	cfg.EvalPerEpoch = true
	cfg.EvalInterval = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("eval_interval is unused in per-epoch mode: %v", err)
	}
}

func TestLoadLayering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	yaml := `
batch_size: 32
gradient_accumulation_steps: 4
lr_policy: warmup
learning_rate: 0.015
max_epochs: 40
use_cer: true
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ASRTUNE_LEARNING_RATE", "0.02")
	t.Setenv("ASRTUNE_EARLY_STOP_PATIENCE", "5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.BatchSize != 32 {
		t.Errorf("BatchSize = %d, want 32 (from file)", cfg.BatchSize)
	}
	if cfg.GradAccumSteps != 4 {
		t.Errorf("GradAccumSteps = %d, want 4 (from file)", cfg.GradAccumSteps)
	}
	if cfg.LRPolicy != "warmup" {
		t.Errorf("LRPolicy = %q, want warmup (from file)", cfg.LRPolicy)
	}
	if cfg.LearningRate != 0.02 {
		t.Errorf("LearningRate = %g, want 0.02 (env overrides file)", cfg.LearningRate)
	}
	if cfg.EarlyStopPatience != 5 {
		t.Errorf("EarlyStopPatience = %d, want 5 (from env)", cfg.EarlyStopPatience)
	}
	if !cfg.UseCER {
		t.Error("UseCER should be true (from file)")
	}
	if cfg.TrainReportInterval != 25 {
		t.Errorf("TrainReportInterval = %d, want default 25", cfg.TrainReportInterval)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("ASRTUNE_BATCH_SIZE", "0")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation failure from Load")
	}
}

func TestLoadModelDef(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.toml")
	body := `
name = "quartznet15x5"

[labels]
labels = [" ", "a", "b", "c", "'"]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	def, err := LoadModelDef(path)
	if err != nil {
		t.Fatalf("LoadModelDef: %v", err)
	}
	if def.Name != "quartznet15x5" {
		t.Errorf("Name = %q", def.Name)
	}
	if len(def.Labels.Labels) != 5 {
		t.Errorf("labels = %d, want 5", len(def.Labels.Labels))
	}
	if def.Labels.Labels[0] != " " {
		t.Errorf("first label = %q, want space", def.Labels.Labels[0])
	}
}

func TestLoadModelDefErrors(t *testing.T) {
	if _, err := LoadModelDef("does/not/exist.toml"); err == nil {
		t.Error("expected error for missing file")
	}

	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.toml")
	if err := os.WriteFile(empty, []byte(`name = "x"`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadModelDef(empty); err == nil {
		t.Error("expected error for empty label set")
	}

	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte(`labels = {`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadModelDef(bad); err == nil {
		t.Error("expected error for malformed TOML")
	}
}
