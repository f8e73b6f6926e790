package training

import "testing"

func validBatch() *Batch {
	return &Batch{
		Features:     make([]float32, 2*3*4),
		FeatureShape: []int{2, 3, 4},
		FeatureLens:  []int32{4, 3},
		Targets:      []int32{1, 2, 3, 1, 2},
		TargetLens:   []int32{3, 2},
	}
}

func TestBatchValidate(t *testing.T) {
	if err := validBatch().Validate(); err != nil {
		t.Fatalf("valid batch rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Batch)
	}{
		{"wrong rank", func(b *Batch) { b.FeatureShape = []int{2, 3} }},
		{"zero dimension", func(b *Batch) { b.FeatureShape = []int{2, 0, 4} }},
		{"element count mismatch", func(b *Batch) { b.Features = b.Features[:5] }},
		{"feature length count", func(b *Batch) { b.FeatureLens = []int32{4} }},
		{"target length count", func(b *Batch) { b.TargetLens = []int32{3} }},
		{"negative target length", func(b *Batch) { b.TargetLens = []int32{-1, 6} }},
		{"target id count mismatch", func(b *Batch) { b.Targets = b.Targets[:3] }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := validBatch()
			tc.mutate(b)
			err := b.Validate()
			if err == nil {
				t.Fatal("expected shape error")
			}
			if _, ok := err.(*BatchShapeError); !ok {
				t.Fatalf("got %T, want *BatchShapeError", err)
			}
		})
	}
}

func TestBatchSize(t *testing.T) {
	if got := validBatch().Size(); got != 2 {
		t.Errorf("Size = %d, want 2", got)
	}
	if got := (&Batch{}).Size(); got != 0 {
		t.Errorf("empty batch Size = %d, want 0", got)
	}
}
