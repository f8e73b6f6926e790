package training

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"asrtune/checkpoints"
	"asrtune/evaluation"
)

// Minimal in-package collaborators that let a test watch the state
// machine from inside the loop.

type phaseModel struct {
	observe func()
}

func (m *phaseModel) Forward(ctx context.Context, b *Batch) (*Logits, error) {
	if m.observe != nil {
		m.observe()
	}
	return &Logits{Values: []float32{0}, Shape: []int{b.Size(), 1, 1}}, nil
}

func (m *phaseModel) Infer(ctx context.Context, b *Batch) (*Logits, error) {
	return nil, errors.New("device lost")
}

func (m *phaseModel) Snapshot() checkpoints.StateDict {
	return checkpoints.StateDict{"w": {1}}
}

func (m *phaseModel) Restore(state checkpoints.StateDict, strict bool) ([]string, error) {
	return nil, nil
}

func (m *phaseModel) FreezeBlocks(n int) error { return nil }

type unitLoss struct{}

func (unitLoss) Value() float64                     { return 1 }
func (unitLoss) Backward(ctx context.Context) error { return nil }

type unitCriterion struct{}

func (unitCriterion) Loss(ctx context.Context, logits *Logits, b *Batch) (LossValue, error) {
	return unitLoss{}, nil
}

type unitDecoder struct{}

func (unitDecoder) Decode(logits *Logits) ([][]int32, error) {
	return [][]int32{{0}}, nil
}

type unitOptimizer struct{}

func (unitOptimizer) ZeroGrad()                        {}
func (unitOptimizer) Step(ctx context.Context) error   { return nil }
func (unitOptimizer) SetLearningRate(lr float64)       {}
func (unitOptimizer) LearningRate() float64            { return 0 }
func (unitOptimizer) StateDict() checkpoints.StateDict { return checkpoints.StateDict{"m": {0}} }

func (unitOptimizer) LoadStateDict(state checkpoints.StateDict) error {
	return nil
}

type sliceStream struct {
	batches []*Batch
}

func (s *sliceStream) SetEpoch(epoch int) {}
func (s *sliceStream) Err() error         { return nil }
func (s *sliceStream) Len() int           { return len(s.batches) }

func (s *sliceStream) Iterator(ctx context.Context) <-chan *Batch {
	ch := make(chan *Batch)
	go func() {
		defer close(ch)
		for _, b := range s.batches {
			select {
			case ch <- b:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func TestSkippedEvalReturnsToRunning(t *testing.T) {
	dir := t.TempDir()
	model := &phaseModel{}

	tr, err := New(Config{
		GradAccumSteps:      1,
		MaxEpochs:           1,
		EvalInterval:        1,
		TrainReportInterval: 1000,
		EvalFailure:         SkipEval,
	}, Collaborators{
		Model:       model,
		Criterion:   unitCriterion{},
		Decoder:     unitDecoder{},
		Optimizer:   unitOptimizer{},
		Checkpoints: checkpoints.NewManager(filepath.Join(dir, "latest"), filepath.Join(dir, "best"), "run", true),
		Aggregator:  evaluation.NewAggregator(evaluation.NewVocabulary([]string{"a"})),
	})
	if err != nil {
		t.Fatal(err)
	}

	st := newState()
	var phases []Phase
	model.observe = func() { phases = append(phases, st.Phase) }

	train := &sliceStream{batches: []*Batch{validBatch(), validBatch()}}
	eval := &sliceStream{batches: []*Batch{validBatch()}}

	stop, err := tr.runEpoch(context.Background(), st, train, eval)
	if err != nil {
		t.Fatalf("runEpoch: %v", err)
	}
	if stop {
		t.Fatal("epoch should not end the run")
	}

	// The interval evaluation after step 1 fails and is skipped; the
	// second window's forward pass must see the loop back in the
	// running phase.
	if len(phases) != 2 {
		t.Fatalf("observed %d forward passes, want 2", len(phases))
	}
	if phases[1] != PhaseRunning {
		t.Errorf("phase after skipped evaluation = %v, want running", phases[1])
	}
}
