package caption

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Format renders segments as numbered SRT blocks.
func Format(segments []Segment) string {
	var sb strings.Builder
	_ = Write(&sb, segments)
	return sb.String()
}

// Write streams segments to w in SRT form.
func Write(w io.Writer, segments []Segment) error {
	bw := bufio.NewWriter(w)
	for i, seg := range segments {
		if _, err := fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n",
			i+1,
			FormatTimestamp(seg.Start),
			FormatTimestamp(seg.End),
			seg.Text,
		); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes segments to path as SRT.
func WriteFile(path string, segments []Segment) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	return Write(file, segments)
}
