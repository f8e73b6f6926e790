package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"asrtune/evaluation"
	"asrtune/history"
)

// newWERCommand scores a hypothesis transcript file against a reference
// file, one utterance per line, and reports corpus-level WER and CER.
func newWERCommand(ctx *commandContext) *cobra.Command {
	var hypPath string
	var refPath string
	var perUtterance bool
	var historyDB string

	cmd := &cobra.Command{
		Use:   "wer",
		Short: "Score transcripts against references",
		RunE: func(cmd *cobra.Command, args []string) error {
			hyps, err := readTranscripts(hypPath)
			if err != nil {
				return err
			}
			refs, err := readTranscripts(refPath)
			if err != nil {
				return err
			}
			if len(hyps) != len(refs) {
				return fmt.Errorf("%d hypotheses but %d references", len(hyps), len(refs))
			}

			wer, cer, err := evaluation.CorpusErrorRates(hyps, refs)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if perUtterance {
				for i := range refs {
					uttWER, _, uerr := evaluation.CorpusErrorRates(hyps[i:i+1], refs[i:i+1])
					if uerr != nil {
						// An empty reference line has no defined rate.
						fmt.Fprintf(out, "%4d  WER:    n/a  ref: %s\n", i, refs[i])
						continue
					}
					fmt.Fprintf(out, "%4d  WER: %6.2f%%  ref: %s\n", i, uttWER*100, refs[i])
					fmt.Fprintf(out, "%4s              hyp: %s\n", "", hyps[i])
				}
			}
			fmt.Fprintf(out, "utterances: %d\n", len(refs))
			fmt.Fprintf(out, "corpus WER: %.4f\n", wer)
			fmt.Fprintf(out, "corpus CER: %.4f\n", cer)

			if historyDB != "" {
				store, err := history.Open(historyDB, ctx.invocationID, ctx.logger)
				if err != nil {
					return fmt.Errorf("open history: %w", err)
				}
				defer store.Close()
				hctx := context.Background()
				if err := store.RecordScalar(hctx, "score/wer", wer, 0); err != nil {
					return err
				}
				if err := store.RecordScalar(hctx, "score/cer", cer, 0); err != nil {
					return err
				}
				ctx.logger.Info("scores recorded", "db", historyDB)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&hypPath, "hypotheses", "", "hypothesis transcript file, one utterance per line")
	cmd.Flags().StringVar(&refPath, "references", "", "reference transcript file, one utterance per line")
	cmd.Flags().BoolVar(&perUtterance, "per-utterance", false, "print a per-utterance breakdown")
	cmd.Flags().StringVar(&historyDB, "history", "", "record corpus scores into this history database")
	_ = cmd.MarkFlagRequired("hypotheses")
	_ = cmd.MarkFlagRequired("references")
	return cmd
}

func readTranscripts(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcripts: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read transcripts: %w", err)
	}
	return lines, nil
}
