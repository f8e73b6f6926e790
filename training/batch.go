package training

import "fmt"

// Batch is one unit of work from the external data pipeline. Feature
// tensors are flattened row-major float32 with an explicit shape, the
// layout the pipeline already produces. A batch is immutable once
// yielded and is consumed exactly once.
type Batch struct {
	Features     []float32
	FeatureShape []int // [batch, channels, frames]
	FeatureLens  []int32
	Targets      []int32 // concatenated target token ids
	TargetLens   []int32
}

// BatchShapeError reports a malformed batch. It is fatal: a worker that
// silently skipped a bad batch would desynchronize the collective step
// count across the run.
type BatchShapeError struct {
	Reason string
}

func (e *BatchShapeError) Error() string {
	return "batch shape: " + e.Reason
}

// Size returns the number of utterances in the batch.
func (b *Batch) Size() int {
	if len(b.FeatureShape) == 0 {
		return 0
	}
	return b.FeatureShape[0]
}

// Validate checks internal consistency of the batch's shapes and lengths.
func (b *Batch) Validate() error {
	if len(b.FeatureShape) != 3 {
		return &BatchShapeError{Reason: fmt.Sprintf("feature shape must have 3 dims, got %d", len(b.FeatureShape))}
	}
	n := 1
	for _, d := range b.FeatureShape {
		if d <= 0 {
			return &BatchShapeError{Reason: fmt.Sprintf("non-positive dimension in shape %v", b.FeatureShape)}
		}
		n *= d
	}
	if n != len(b.Features) {
		return &BatchShapeError{Reason: fmt.Sprintf("shape %v implies %d elements, have %d", b.FeatureShape, n, len(b.Features))}
	}
	size := b.FeatureShape[0]
	if len(b.FeatureLens) != size {
		return &BatchShapeError{Reason: fmt.Sprintf("%d feature lengths for %d utterances", len(b.FeatureLens), size)}
	}
	if len(b.TargetLens) != size {
		return &BatchShapeError{Reason: fmt.Sprintf("%d target lengths for %d utterances", len(b.TargetLens), size)}
	}
	var total int32
	for _, l := range b.TargetLens {
		if l < 0 {
			return &BatchShapeError{Reason: "negative target length"}
		}
		total += l
	}
	if int(total) != len(b.Targets) {
		return &BatchShapeError{Reason: fmt.Sprintf("target lengths sum to %d, have %d target ids", total, len(b.Targets))}
	}
	return nil
}

// Logits holds a model's output activations, flattened row-major with
// shape [batch, frames, classes].
type Logits struct {
	Values []float32
	Shape  []int
}
