package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/krishnaadithya/edqa.ai/internal/caption"
)

func newParseCommand() *cobra.Command {
	var jsonOutput bool
	var strict bool

	cmd := &cobra.Command{
		Use:   "parse <caption-file>",
		Short: "Parse an SRT or VTT file into timestamped segments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			transcript, err := caption.ReadFile(args[0])
			if err != nil {
				return err
			}
			if strict && transcript.Format == "SRT" {
				raw, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				if _, err := caption.ParseStrict(string(raw)); err != nil {
					return err
				}
			}

			if jsonOutput {
				return writeJSON(cmd, transcript)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d segments, format %s, language %s\n",
				args[0], len(transcript.Segments), transcript.Format, transcript.Language)
			fmt.Fprintln(out, renderSegments(transcript.Segments))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the transcript as JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on malformed SRT timestamps instead of reading them as 0")
	return cmd
}

func renderSegments(segments []caption.Segment) string {
	rows := make([][]string, 0, len(segments))
	for i, seg := range segments {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			caption.FormatTimestamp(seg.Start),
			caption.FormatTimestamp(seg.End),
			seg.Text,
		})
	}
	return renderTable(
		[]string{"#", "Start", "End", "Text"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
	)
}
