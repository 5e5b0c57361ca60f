package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/krishnaadithya/edqa.ai/internal/quiz"
	"github.com/krishnaadithya/edqa.ai/internal/service"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOutput bool
		videoURL   string
		grade      int
		questions  int
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "process <caption-file>",
		Short: "Generate a quiz for one caption file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			// The file named on the command line defines the caption dir.
			local := *cfg
			local.Quiz.CaptionDir = filepath.Dir(path)
			processor, err := service.NewProcessor(local)
			if err != nil {
				return err
			}

			result, err := processor.Process(cmd.Context(), service.Request{
				VideoURL:     videoURL,
				CaptionFile:  path,
				GradeLevel:   grade,
				NumQuestions: questions,
			})
			if err != nil {
				if hint := service.Hint(err); hint != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), "hint:", hint)
				}
				return err
			}

			if outPath != "" {
				data, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return err
				}
				if err := os.WriteFile(outPath, append(data, '\n'), 0o644); err != nil {
					return err
				}
			}
			if jsonOutput {
				return writeJSON(cmd, result)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderQuiz(result))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the quiz as JSON")
	cmd.Flags().StringVar(&videoURL, "video-url", "", "YouTube URL the captions belong to")
	cmd.Flags().IntVar(&grade, "grade", 0, "Student grade level (default QUIZ_GRADE_LEVEL)")
	cmd.Flags().IntVar(&questions, "questions", 0, "Questions per key segment (default QUIZ_NUM_QUESTIONS)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Also write the quiz JSON to this file")
	return cmd
}

func renderQuiz(result *quiz.Result) string {
	rows := make([][]string, 0, len(result.Questions))
	for _, item := range result.Questions {
		rows = append(rows, []string{quiz.FormatClock(item.Timestamp), item.Question, item.Answer})
	}
	return renderTable(
		[]string{"At", "Question", "Answer"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft},
	)
}
