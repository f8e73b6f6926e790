// Package training implements the fine-tuning orchestrator: the epoch and
// step loop, gradient accumulation, learning-rate application, periodic
// evaluation, checkpointing, and early stopping. Everything numeric
// (model, loss, optimizer, data) is an injected collaborator.
package training

import (
	"context"
	"fmt"
	"log/slog"

	"asrtune/checkpoints"
	"asrtune/comm"
	"asrtune/evaluation"
	"asrtune/metrics"
)

// improvementThreshold is the minimum absolute metric drop that counts as
// epoch-level improvement for early stopping.
const improvementThreshold = 0.01

// metricTolerance guards the threshold comparison so a drop of exactly
// the threshold, perturbed by float representation, does not count.
const metricTolerance = 1e-9

func improvedBeyondThreshold(best, metric float64) bool {
	return best-metric > improvementThreshold+metricTolerance
}

// Trainer runs the orchestration state machine for one worker.
type Trainer struct {
	cfg  Config
	c    Collaborators
	log  *slog.Logger
	sink metrics.Sink
}

// New validates the configuration and collaborators and returns a Trainer.
// Comm defaults to the single-process communicator, Sink to a discard
// sink, and a nil Policy leaves the optimizer's learning rate untouched.
func New(cfg Config, c Collaborators) (*Trainer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	if c.Comm == nil {
		c.Comm = comm.Local{}
	}
	if c.Sink == nil {
		c.Sink = metrics.Discard{}
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return &Trainer{cfg: cfg, c: c, log: c.Logger, sink: c.Sink}, nil
}

// Run executes the full training loop over the two streams and returns
// the final state. The returned state's Phase is PhaseDone or
// PhaseEarlyStopped and its LastEval holds the final evaluation, which
// always runs once more after the loop ends.
func (t *Trainer) Run(ctx context.Context, train, eval DataStream) (*State, error) {
	st := newState()

	stepsPerEpoch := train.Len() / t.cfg.GradAccumSteps
	if stepsPerEpoch == 0 {
		return nil, fmt.Errorf("trainer: %d batches per epoch cannot fill an accumulation window of %d",
			train.Len(), t.cfg.GradAccumSteps)
	}

	if err := t.initialize(st, stepsPerEpoch); err != nil {
		return nil, err
	}

	t.log.Info("starting run",
		"epoch", st.Epoch,
		"step", st.Step,
		"steps_per_epoch", stepsPerEpoch,
		"accumulation", t.cfg.GradAccumSteps,
		"precision", t.cfg.Precision.String(),
		"lr_policy", t.policyName(),
		"world_size", t.c.Comm.WorldSize(),
	)

	for {
		stop, err := t.runEpoch(ctx, st, train, eval)
		if err != nil {
			return nil, err
		}
		if stop {
			break
		}
		if t.cfg.MaxSteps <= 0 && st.Epoch >= t.cfg.MaxEpochs {
			st.Phase = PhaseDone
			break
		}
	}

	// The final evaluation is unconditional, whatever cadence governed
	// the loop and however it ended.
	terminal := st.Phase
	final, err := t.evaluateGuarded(ctx, st, eval)
	if err != nil {
		return nil, err
	}
	if final != nil {
		st.LastEval = final
		t.reportEval(st, final)
	}
	st.Phase = terminal

	t.log.Info("run finished",
		"phase", st.Phase.String(),
		"epoch", st.Epoch,
		"step", st.Step,
		"best_metric", st.BestMetric,
		"patience", st.Patience,
	)
	return st, nil
}

// initialize applies block freezing and the optional checkpoint load.
func (t *Trainer) initialize(st *State, stepsPerEpoch int) error {
	if t.cfg.FreezeBlocks > 0 {
		if err := t.c.Model.FreezeBlocks(t.cfg.FreezeBlocks); err != nil {
			return fmt.Errorf("freeze blocks: %w", err)
		}
		t.log.Info("froze encoder blocks", "count", t.cfg.FreezeBlocks)
	}

	if t.cfg.InitCheckpoint == "" {
		return nil
	}

	ckpt, err := checkpoints.Load(t.cfg.InitCheckpoint)
	if err != nil {
		return fmt.Errorf("load init checkpoint: %w", err)
	}

	// A resume demands the full state; a pretrained init tolerates a
	// partial overlap (a foreign checkpoint seeding only the encoder).
	skipped, err := t.c.Model.Restore(ckpt.ModelState, t.cfg.Resume)
	if err != nil {
		return fmt.Errorf("restore model state: %w", err)
	}
	for _, key := range skipped {
		t.log.Warn("checkpoint key not loaded", "key", key)
	}

	if t.cfg.LoadOptimizerState && len(ckpt.OptimizerState) > 0 {
		if err := t.c.Optimizer.LoadStateDict(ckpt.OptimizerState); err != nil {
			return fmt.Errorf("restore optimizer state: %w", err)
		}
	}

	if t.cfg.Resume {
		st.Epoch = ckpt.Epoch
		st.Step = ckpt.Epoch * stepsPerEpoch
		t.log.Info("resuming", "epoch", st.Epoch, "step", st.Step)
	}
	return nil
}

// runEpoch executes one pass over the training stream and the epoch
// boundary work. It returns true when the run is over.
func (t *Trainer) runEpoch(ctx context.Context, st *State, train, eval DataStream) (bool, error) {
	st.Phase = PhaseRunning
	train.SetEpoch(st.Epoch)

	// Abandoning the iterator mid-stream (step budget, fatal error) must
	// release the producer.
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	k := t.cfg.GradAccumSteps
	micro := 0
	windowLoss := 0.0
	var lastLogits *Logits
	var lastBatch *Batch

	for batch := range train.Iterator(streamCtx) {
		if err := batch.Validate(); err != nil {
			return false, err
		}

		if micro == 0 {
			t.applyLearningRate(st.Step)
			t.c.Optimizer.ZeroGrad()
			windowLoss = 0
		}

		logits, err := t.c.Model.Forward(ctx, batch)
		if err != nil {
			return false, fmt.Errorf("forward at step %d: %w", st.Step, err)
		}
		loss, err := t.c.Criterion.Loss(ctx, logits, batch)
		if err != nil {
			return false, fmt.Errorf("loss at step %d: %w", st.Step, err)
		}
		if err := loss.Backward(ctx); err != nil {
			return false, fmt.Errorf("backward at step %d: %w", st.Step, err)
		}

		windowLoss += loss.Value() / float64(k)
		lastLogits, lastBatch = logits, batch
		micro++
		if micro < k {
			continue
		}
		micro = 0

		if err := t.c.Optimizer.Step(ctx); err != nil {
			return false, fmt.Errorf("optimizer step %d: %w", st.Step, err)
		}
		st.Step++

		t.sink.Scalar("train/loss", windowLoss, st.Step)
		t.sink.Scalar("train/lr", t.c.Optimizer.LearningRate(), st.Step)

		if st.Step%t.cfg.TrainReportInterval == 0 {
			t.reportTrainProgress(st, windowLoss, lastLogits, lastBatch)
		}

		if !t.cfg.EvalPerEpoch && st.Step%t.cfg.EvalInterval == 0 {
			res, err := t.evaluateGuarded(ctx, st, eval)
			if err != nil {
				return false, err
			}
			if res != nil {
				st.LastEval = res
				t.reportEval(st, res)
				if m := t.metric(res); m < st.BestMetric {
					st.BestMetric = m
					if err := t.saveBest(st); err != nil {
						return false, err
					}
				}
			}
			// A skipped evaluation still returns to the running phase.
			st.Phase = PhaseRunning
		}

		if t.cfg.MaxSteps > 0 && st.Step >= t.cfg.MaxSteps {
			t.log.Info("step budget reached", "step", st.Step)
			if err := t.saveLatest(st); err != nil {
				return false, err
			}
			st.Phase = PhaseDone
			return true, nil
		}
	}
	if err := train.Err(); err != nil {
		return false, fmt.Errorf("training stream at epoch %d: %w", st.Epoch, err)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	st.Epoch++
	if err := t.saveLatest(st); err != nil {
		return false, err
	}

	if t.cfg.EvalPerEpoch {
		res, err := t.evaluateGuarded(ctx, st, eval)
		if err != nil {
			return false, err
		}
		if res != nil {
			st.LastEval = res
			t.reportEval(st, res)
		}
		st.Phase = PhaseRunning
	}

	return t.earlyStopCheck(st)
}

// earlyStopCheck runs the epoch-level bookkeeping against the most
// recent evaluation: best-metric tracking and checkpointing always, the
// patience counter only when early stopping is enabled. No evaluation
// yet means no decision.
func (t *Trainer) earlyStopCheck(st *State) (bool, error) {
	if st.LastEval == nil {
		return false, nil
	}

	m := t.metric(st.LastEval)
	if improvedBeyondThreshold(st.BestEpoch, m) {
		st.Patience = 0
		st.BestEpoch = m
		if m < st.BestMetric {
			st.BestMetric = m
		}
		if err := t.saveBest(st); err != nil {
			return false, err
		}
	} else if t.cfg.EarlyStopPatience > 0 {
		st.Patience++
		if st.Patience >= t.cfg.EarlyStopPatience {
			st.Phase = PhaseEarlyStopped
			t.log.Info("stopping early", "patience", st.Patience, "metric", m)
			return true, nil
		}
	}
	t.log.Info("epoch complete", "epoch", st.Epoch, "patience", st.Patience, "metric", m)
	return false, nil
}

func (t *Trainer) applyLearningRate(step int) {
	if t.c.Policy == nil {
		return
	}
	t.c.Optimizer.SetLearningRate(t.c.Policy.LearningRate(step))
}

func (t *Trainer) policyName() string {
	if t.c.Policy == nil {
		return "none"
	}
	return t.c.Policy.Name()
}

// metric selects the tracked error rate from an evaluation result.
func (t *Trainer) metric(res *evaluation.Result) float64 {
	if t.cfg.UseCER {
		return res.CER
	}
	return res.WER
}

func (t *Trainer) metricName() string {
	if t.cfg.UseCER {
		return "cer"
	}
	return "wer"
}

// reportTrainProgress decodes the window's last batch greedily and logs a
// windowed training error rate. Diagnostic only; no state changes.
func (t *Trainer) reportTrainProgress(st *State, windowLoss float64, logits *Logits, batch *Batch) {
	predicted, err := t.c.Decoder.Decode(logits)
	if err != nil {
		t.log.Warn("train progress decode failed", "step", st.Step, "error", err)
		return
	}
	agg := t.c.Aggregator.Begin()
	if err := t.c.Aggregator.Accumulate(agg, windowLoss, predicted, splitTargets(batch)); err != nil {
		t.log.Warn("train progress aggregation failed", "step", st.Step, "error", err)
		return
	}
	res, err := t.c.Aggregator.Finalize(agg)
	if err != nil {
		t.log.Warn("train progress metrics failed", "step", st.Step, "error", err)
		return
	}
	t.sink.Scalar("train/"+t.metricName(), t.metric(&res), st.Step)
	t.log.Info("train progress",
		"step", st.Step,
		"loss", windowLoss,
		t.metricName(), t.metric(&res),
	)
}

func (t *Trainer) reportEval(st *State, res *evaluation.Result) {
	t.sink.Scalar("eval/loss", res.MeanLoss, st.Step)
	t.sink.Scalar("eval/wer", res.WER, st.Step)
	t.sink.Scalar("eval/cer", res.CER, st.Step)
	t.log.Info("evaluation",
		"step", st.Step,
		"epoch", st.Epoch,
		"loss", res.MeanLoss,
		"wer", res.WER,
		"cer", res.CER,
	)
}

func (t *Trainer) saveLatest(st *State) error {
	st.Phase = PhaseCheckpointing
	err := t.c.Checkpoints.SaveLatest(t.c.Model.Snapshot(), t.c.Optimizer.StateDict(), st.Epoch)
	if err != nil {
		return fmt.Errorf("save latest checkpoint: %w", err)
	}
	st.Phase = PhaseRunning
	return nil
}

func (t *Trainer) saveBest(st *State) error {
	st.Phase = PhaseCheckpointing
	if err := t.c.Checkpoints.SaveBest(t.c.Model.Snapshot(), st.Epoch); err != nil {
		return fmt.Errorf("save best checkpoint: %w", err)
	}
	st.Phase = PhaseRunning
	return nil
}

// splitTargets slices a batch's concatenated target ids back into
// per-utterance sequences.
func splitTargets(batch *Batch) [][]int32 {
	out := make([][]int32, len(batch.TargetLens))
	off := int32(0)
	for i, n := range batch.TargetLens {
		out[i] = batch.Targets[off : off+n]
		off += n
	}
	return out
}
