// Package evaluation computes corpus-level error rates from decoded
// predictions and reference transcripts, aggregated across workers.
package evaluation

import "strings"

// Vocabulary maps output token ids to strings. The CTC blank token is
// appended at construction and is never part of a decoded transcript.
type Vocabulary struct {
	tokens []string
	blank  int32
}

// NewVocabulary builds a vocabulary from the ordered output token list.
// The blank token id is len(tokens).
func NewVocabulary(tokens []string) *Vocabulary {
	v := &Vocabulary{
		tokens: make([]string, len(tokens)),
		blank:  int32(len(tokens)),
	}
	copy(v.tokens, tokens)
	return v
}

// Size returns the number of output classes including the blank token.
func (v *Vocabulary) Size() int {
	return len(v.tokens) + 1
}

// BlankID returns the reserved CTC blank token id.
func (v *Vocabulary) BlankID() int32 {
	return v.blank
}

// Decode maps token ids directly to a transcript string. Used for
// reference token sequences, which contain no blanks or repeats to collapse.
func (v *Vocabulary) Decode(ids []int32) string {
	var b strings.Builder
	for _, id := range ids {
		if id >= 0 && int(id) < len(v.tokens) {
			b.WriteString(v.tokens[id])
		}
	}
	return b.String()
}

// DecodeCTC maps a greedy decoder output to a transcript, collapsing
// consecutive repeats and dropping blanks per the CTC convention. A blank
// between two identical tokens keeps both.
func (v *Vocabulary) DecodeCTC(ids []int32) string {
	var b strings.Builder
	prev := v.blank
	for _, id := range ids {
		if id != prev && id != v.blank && int(id) < len(v.tokens) && id >= 0 {
			b.WriteString(v.tokens[id])
		}
		prev = id
	}
	return b.String()
}
