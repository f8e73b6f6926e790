package training

import (
	"context"
	"errors"
	"fmt"

	"asrtune/evaluation"
)

// ErrEvaluation wraps failures inside an evaluation pass so callers can
// tell them apart from training-loop failures.
var ErrEvaluation = errors.New("evaluation pass failed")

// EvaluatePass runs one full pass over the evaluation stream: inference
// forward, loss, greedy decode, accumulate, merge across workers,
// finalize. Every worker computes the identical result after the merge.
func (t *Trainer) EvaluatePass(ctx context.Context, stream DataStream) (*evaluation.Result, error) {
	agg := t.c.Aggregator.Begin()

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for batch := range stream.Iterator(streamCtx) {
		if err := batch.Validate(); err != nil {
			return nil, err
		}
		logits, err := t.c.Model.Infer(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("%w: inference: %v", ErrEvaluation, err)
		}
		loss, err := t.c.Criterion.Loss(ctx, logits, batch)
		if err != nil {
			return nil, fmt.Errorf("%w: loss: %v", ErrEvaluation, err)
		}
		predicted, err := t.c.Decoder.Decode(logits)
		if err != nil {
			return nil, fmt.Errorf("%w: decode: %v", ErrEvaluation, err)
		}
		if err := t.c.Aggregator.Accumulate(agg, loss.Value(), predicted, splitTargets(batch)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEvaluation, err)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("%w: stream: %v", ErrEvaluation, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged, err := t.c.Comm.MergeEval(ctx, agg)
	if err != nil {
		return nil, fmt.Errorf("%w: merge: %v", ErrEvaluation, err)
	}

	res, err := t.c.Aggregator.Finalize(merged)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEvaluation, err)
	}
	return &res, nil
}

// evaluateGuarded applies the configured failure policy around an
// evaluation pass. A nil result with nil error means the pass was
// skipped; the caller keeps its best metric unchanged. Shape errors and
// cancellation are never retried or skipped.
func (t *Trainer) evaluateGuarded(ctx context.Context, st *State, stream DataStream) (*evaluation.Result, error) {
	st.Phase = PhaseEvaluating

	res, err := t.EvaluatePass(ctx, stream)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, ErrEvaluation) {
		return nil, err
	}

	switch t.cfg.EvalFailure {
	case SkipEval:
		t.log.Warn("evaluation failed, skipping", "step", st.Step, "error", err)
		return nil, nil
	default:
		t.log.Warn("evaluation failed, retrying once", "step", st.Step, "error", err)
		res, err = t.EvaluatePass(ctx, stream)
		if err != nil {
			return nil, fmt.Errorf("evaluation retry: %w", err)
		}
		return res, nil
	}
}
