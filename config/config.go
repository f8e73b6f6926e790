// Package config defines run configuration, its loading order, and
// validation. Configuration errors are fatal at startup and are reported
// together with the fully resolved configuration.
package config

import "fmt"

// Config enumerates every knob of a fine-tuning run.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// BatchSize is the effective batch size per optimizer step.
	BatchSize int `koanf:"batch_size"`

	// GradAccumSteps splits each batch into this many micro-batches.
	// Must divide BatchSize.
	GradAccumSteps int `koanf:"gradient_accumulation_steps"`

	// LRPolicy selects the learning-rate schedule: none, decay, warmup.
	LRPolicy string `koanf:"lr_policy"`

	// LearningRate is the initial learning rate.
	LearningRate float64 `koanf:"learning_rate"`

	// WarmupFraction is the portion of the horizon spent warming up
	// (warmup policy only).
	WarmupFraction float64 `koanf:"warmup_fraction"`

	// WeightDecay is forwarded to the optimizer collaborator.
	WeightDecay float64 `koanf:"weight_decay"`

	// MaxEpochs bounds the run by epoch count. Ignored when MaxSteps is set.
	MaxEpochs int `koanf:"max_epochs"`

	// MaxSteps, when positive, bounds the run by optimizer steps and
	// takes precedence over MaxEpochs.
	MaxSteps int `koanf:"max_steps"`

	// EvalInterval runs evaluation every N steps (per-interval cadence).
	EvalInterval int `koanf:"eval_interval"`

	// TrainReportInterval reports windowed training metrics every N steps.
	TrainReportInterval int `koanf:"train_report_interval"`

	// EvalPerEpoch switches evaluation to epoch boundaries only.
	EvalPerEpoch bool `koanf:"eval_per_epoch"`

	// EarlyStopPatience is the number of consecutive non-improving epochs
	// tolerated before stopping. Zero disables early stopping.
	EarlyStopPatience int `koanf:"early_stop_patience"`

	// LatestDir and BestDir hold the two checkpoint slots.
	LatestDir string `koanf:"latest_dir"`
	BestDir   string `koanf:"best_dir"`

	// InitCheckpoint optionally seeds the model before training.
	InitCheckpoint string `koanf:"init_checkpoint"`

	// Resume continues from InitCheckpoint's recorded epoch instead of 0.
	Resume bool `koanf:"resume"`

	// LoadOptimizerState also restores optimizer state from InitCheckpoint.
	LoadOptimizerState bool `koanf:"load_optimizer_state"`

	// FreezeBlocks freezes the first N encoder blocks.
	FreezeBlocks int `koanf:"freeze_blocks"`

	// Precision selects numeric mode: full or mixed.
	Precision string `koanf:"precision"`

	// UseCER selects CER instead of WER as the tracked metric.
	UseCER bool `koanf:"use_cer"`

	// EvalFailurePolicy controls evaluation errors: retry (retry once,
	// fail on the second error) or skip (log and continue).
	EvalFailurePolicy string `koanf:"eval_failure_policy"`

	// Seed seeds data shuffling in the external pipeline.
	Seed int64 `koanf:"seed"`

	// HistoryDB is the SQLite run-history path. Empty disables the store.
	HistoryDB string `koanf:"history_db"`

	// ModelDef is the TOML model definition path (vocabulary).
	ModelDef string `koanf:"model_def"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		BatchSize:           16,
		GradAccumSteps:      1,
		LRPolicy:            "none",
		LearningRate:        1e-3,
		WarmupFraction:      0.1,
		WeightDecay:         1e-3,
		MaxEpochs:           10,
		EvalInterval:        200,
		TrainReportInterval: 25,
		EarlyStopPatience:   3,
		LatestDir:           "checkpoints/latest",
		BestDir:             "checkpoints/best",
		Precision:           "full",
		EvalFailurePolicy:   "retry",
		Seed:                42,
	}
}

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Validate checks the configuration and returns the first violation.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return &ValidationError{Field: "batch_size", Reason: fmt.Sprintf("must be positive, got %d", c.BatchSize)}
	}
	if c.GradAccumSteps < 1 {
		return &ValidationError{Field: "gradient_accumulation_steps", Reason: fmt.Sprintf("must be at least 1, got %d", c.GradAccumSteps)}
	}
	if c.BatchSize%c.GradAccumSteps != 0 {
		return &ValidationError{
			Field:  "gradient_accumulation_steps",
			Reason: fmt.Sprintf("%d does not divide batch size %d", c.GradAccumSteps, c.BatchSize),
		}
	}
	switch c.LRPolicy {
	case "none", "decay", "warmup":
	default:
		return &ValidationError{Field: "lr_policy", Reason: fmt.Sprintf("unknown policy %q", c.LRPolicy)}
	}
	if c.LearningRate <= 0 {
		return &ValidationError{Field: "learning_rate", Reason: fmt.Sprintf("must be positive, got %g", c.LearningRate)}
	}
	if c.WeightDecay < 0 {
		return &ValidationError{Field: "weight_decay", Reason: fmt.Sprintf("must be non-negative, got %g", c.WeightDecay)}
	}
	if c.MaxSteps <= 0 && c.MaxEpochs <= 0 {
		return &ValidationError{Field: "max_epochs", Reason: "either max_epochs or max_steps must be positive"}
	}
	if !c.EvalPerEpoch && c.EvalInterval <= 0 {
		return &ValidationError{Field: "eval_interval", Reason: "must be positive for per-interval evaluation"}
	}
	if c.TrainReportInterval <= 0 {
		return &ValidationError{Field: "train_report_interval", Reason: fmt.Sprintf("must be positive, got %d", c.TrainReportInterval)}
	}
	if c.EarlyStopPatience < 0 {
		return &ValidationError{Field: "early_stop_patience", Reason: fmt.Sprintf("must be non-negative, got %d", c.EarlyStopPatience)}
	}
	switch c.Precision {
	case "full", "mixed":
	default:
		return &ValidationError{Field: "precision", Reason: fmt.Sprintf("unknown precision %q", c.Precision)}
	}
	switch c.EvalFailurePolicy {
	case "retry", "skip":
	default:
		return &ValidationError{Field: "eval_failure_policy", Reason: fmt.Sprintf("unknown policy %q", c.EvalFailurePolicy)}
	}
	if c.FreezeBlocks < 0 {
		return &ValidationError{Field: "freeze_blocks", Reason: fmt.Sprintf("must be non-negative, got %d", c.FreezeBlocks)}
	}
	if c.Resume && c.InitCheckpoint == "" {
		return &ValidationError{Field: "resume", Reason: "requires init_checkpoint"}
	}
	return nil
}
