package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/krishnaadithya/edqa.ai/internal/caption"
	"github.com/krishnaadithya/edqa.ai/internal/quiz"
	"github.com/krishnaadithya/edqa.ai/internal/segment"
)

func newMatchCommand() *cobra.Command {
	var jsonOutput bool
	var strategyFlag string

	cmd := &cobra.Command{
		Use:   "match <caption-file> <analysis-file>",
		Short: "Match SEGMENT: blocks of a model analysis to caption segments",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy, err := segment.ParseStrategy(strategyFlag)
			if err != nil {
				return err
			}
			transcript, err := caption.ReadFile(args[0])
			if err != nil {
				return err
			}
			analysis, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}

			matcher := segment.NewMatcher(segment.WithStrategy(strategy))
			keys := matcher.Match(string(analysis), transcript.Segments)

			if jsonOutput {
				return writeJSON(cmd, keys)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d key segments (%s matching)\n", len(keys), strategy)
			fmt.Fprintln(cmd.OutOrStdout(), renderKeySegments(keys))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print key segments as JSON")
	cmd.Flags().StringVar(&strategyFlag, "strategy", string(segment.StrategySubstring), "Matching strategy (substring, whole_word, scored)")
	return cmd
}

func renderKeySegments(keys []segment.KeySegment) string {
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{quiz.FormatClock(k.Start), k.Title, k.Text})
	}
	return renderTable(
		[]string{"At", "Title", "Caption"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft},
	)
}
