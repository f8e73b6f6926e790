package training

import (
	"context"

	"asrtune/checkpoints"
)

// Model is the trainable acoustic network. The orchestrator treats it as
// a single unit regardless of how many devices back it; any replica or
// device fan-out lives behind this interface.
type Model interface {
	// Forward runs the training-mode forward pass (augmentation on,
	// gradients recorded).
	Forward(ctx context.Context, batch *Batch) (*Logits, error)

	// Infer runs the evaluation-mode forward pass.
	Infer(ctx context.Context, batch *Batch) (*Logits, error)

	// Snapshot captures the current parameter values.
	Snapshot() checkpoints.StateDict

	// Restore loads parameter values. With strict set, any missing or
	// unexpected key is an error; otherwise overlapping keys are loaded
	// and the rest are reported through the returned skipped list.
	Restore(state checkpoints.StateDict, strict bool) (skipped []string, err error)

	// FreezeBlocks excludes the first n encoder blocks from gradient
	// updates.
	FreezeBlocks(n int) error
}

// LossValue is one micro-batch's scalar loss with its backward pass
// still pending.
type LossValue interface {
	Value() float64
	Backward(ctx context.Context) error
}

// Criterion computes the CTC loss for a forward pass.
type Criterion interface {
	Loss(ctx context.Context, logits *Logits, batch *Batch) (LossValue, error)
}

// Decoder turns logits into per-utterance token id sequences (greedy
// argmax over classes, blanks and repeats still present).
type Decoder interface {
	Decode(logits *Logits) ([][]int32, error)
}

// Optimizer applies accumulated gradients. Step blocks on the gradient
// synchronization collective when the run has multiple workers.
type Optimizer interface {
	ZeroGrad()
	Step(ctx context.Context) error
	SetLearningRate(lr float64)
	LearningRate() float64
	StateDict() checkpoints.StateDict
	LoadStateDict(state checkpoints.StateDict) error
}

// DataStream yields batches for one pass over a data shard. SetEpoch
// reshuffles the shard assignment; every worker must see the same batch
// count per epoch, which the external pipeline guarantees by sharding.
type DataStream interface {
	SetEpoch(epoch int)

	// Iterator starts a pass. The channel closes at end of data or on
	// context cancellation; Err reports what ended the pass.
	Iterator(ctx context.Context) <-chan *Batch
	Err() error

	// Len is the number of batches per pass.
	Len() int
}
