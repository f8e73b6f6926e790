package evaluation

import (
	"errors"
	"fmt"
)

var (
	// ErrNoBatches is returned by Finalize when nothing was accumulated.
	ErrNoBatches = errors.New("evaluation: no batches accumulated")

	// ErrEmptyReferences is returned when the reference corpus contains
	// no words, which makes the error rates undefined.
	ErrEmptyReferences = errors.New("evaluation: reference corpus is empty")
)

// Aggregate collects per-batch evaluation output. One Aggregate is created
// per evaluation pass per worker, merged across workers, finalized once,
// then discarded.
type Aggregate struct {
	LossSum     float64
	Batches     int
	Predictions []string
	References  []string
}

// Result holds the corpus-level outcome of one evaluation pass.
type Result struct {
	WER      float64
	CER      float64
	MeanLoss float64
}

// Aggregator turns decoded token sequences into transcripts and computes
// corpus-level metrics over an Aggregate.
type Aggregator struct {
	vocab *Vocabulary
}

// NewAggregator creates an aggregator over the given output vocabulary.
func NewAggregator(vocab *Vocabulary) *Aggregator {
	return &Aggregator{vocab: vocab}
}

// Begin creates an empty aggregate for a fresh evaluation pass.
func (g *Aggregator) Begin() *Aggregate {
	return &Aggregate{}
}

// Accumulate appends one batch of decoded predictions and reference token
// sequences to the aggregate and adds the batch loss to the running sum.
// Prediction sequences are raw greedy decoder output and are CTC-collapsed;
// references are plain token id sequences.
func (g *Aggregator) Accumulate(agg *Aggregate, batchLoss float64, predicted, references [][]int32) error {
	if len(predicted) != len(references) {
		return fmt.Errorf("evaluation: %d predictions for %d references", len(predicted), len(references))
	}

	for i := range predicted {
		agg.Predictions = append(agg.Predictions, g.vocab.DecodeCTC(predicted[i]))
		agg.References = append(agg.References, g.vocab.Decode(references[i]))
	}
	agg.LossSum += batchLoss
	agg.Batches++
	return nil
}

// Merge combines worker partials into one aggregate by concatenating
// prediction/reference lists and summing losses and counts. Error rates
// must be computed once over the merged aggregate, never per worker.
func Merge(parts ...*Aggregate) *Aggregate {
	merged := &Aggregate{}
	for _, p := range parts {
		if p == nil {
			continue
		}
		merged.LossSum += p.LossSum
		merged.Batches += p.Batches
		merged.Predictions = append(merged.Predictions, p.Predictions...)
		merged.References = append(merged.References, p.References...)
	}
	return merged
}

// Finalize computes corpus-level WER and CER micro-averages and the mean
// batch loss. Both rates divide total edit operations by total reference
// token count; this is not the mean of per-utterance rates.
func (g *Aggregator) Finalize(agg *Aggregate) (Result, error) {
	if agg.Batches == 0 {
		return Result{}, ErrNoBatches
	}

	wer, err := errorRate(agg.Predictions, agg.References, wordTokens)
	if err != nil {
		return Result{}, err
	}
	cer, err := errorRate(agg.Predictions, agg.References, charTokens)
	if err != nil {
		return Result{}, err
	}

	return Result{
		WER:      wer,
		CER:      cer,
		MeanLoss: agg.LossSum / float64(agg.Batches),
	}, nil
}

// CorpusErrorRates computes corpus-level WER and CER over already-decoded
// transcript pairs. Used by tooling that compares transcript files directly.
func CorpusErrorRates(hypotheses, references []string) (wer, cer float64, err error) {
	if len(hypotheses) != len(references) {
		return 0, 0, fmt.Errorf("evaluation: %d hypotheses for %d references", len(hypotheses), len(references))
	}
	wer, err = errorRate(hypotheses, references, wordTokens)
	if err != nil {
		return 0, 0, err
	}
	cer, err = errorRate(hypotheses, references, charTokens)
	if err != nil {
		return 0, 0, err
	}
	return wer, cer, nil
}

func errorRate(hypotheses, references []string, tokenize func(string) []string) (float64, error) {
	edits := 0
	tokens := 0
	for i := range references {
		ref := tokenize(references[i])
		hyp := tokenize(hypotheses[i])
		edits += levenshtein(hyp, ref)
		tokens += len(ref)
	}
	if tokens == 0 {
		return 0, ErrEmptyReferences
	}
	return float64(edits) / float64(tokens), nil
}
