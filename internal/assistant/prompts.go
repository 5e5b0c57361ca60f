package assistant

import (
	"fmt"

	"github.com/krishnaadithya/edqa.ai/internal/segment"
)

const analysisPrompt = `Analyze this video transcript and identify the most important segments or topics.
For each important segment, provide:
1. A brief title for the segment
2. The key points or main ideas discussed
3. Why this segment is important for learning

Format your response as:
SEGMENT: [title]
KEY POINTS: [bullet points of main ideas]
IMPORTANCE: [why this matters]

Transcript:
%s
`

const questionPrompt = `Based on this video segment titled "%s", generate %d quiz questions.
Consider the following analysis of the segment:
%s

Generate questions that test understanding of the key concepts for a grade %d student.
Format each question as:
Q: [question]
A: [answer]

Separate questions with a blank line.

Content: %s
Generate questions only based on the content of the segment, do not make up any questions.
`

func buildAnalysisPrompt(transcript string) string {
	return fmt.Sprintf(analysisPrompt, transcript)
}

func buildQuestionPrompt(key segment.KeySegment, grade, n int) string {
	return fmt.Sprintf(questionPrompt, key.Title, n, key.Analysis, grade, key.Text)
}
