// Package rubric encodes and decodes rubric questions to the flat text format
// the backend persists as a single column. Questions are joined with a literal
// separator token; each segment is "title: description" with an optional judge
// type suffix. There is no escaping: a title or description containing one of
// the two delimiter tokens will corrupt the encoding. That is a known
// limitation of the stored format, not something this package may fix without
// breaking every rubric already persisted.
package rubric

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	questionSeparator = "|||QUESTION_SEPARATOR|||"
	judgeTypeMarker   = "|||JUDGE_TYPE|||"
)

// JudgeType is the rating modality of a question.
type JudgeType string

const (
	Likert   JudgeType = "likert"
	Binary   JudgeType = "binary"
	Freeform JudgeType = "freeform"
)

// Question is one rubric criterion. ID is positional ("q_1", "q_2", ...) and
// regenerated on every parse; only the (title, description, judge type) triple
// survives a round trip.
type Question struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	JudgeType   JudgeType `json:"judge_type"`
}

// ParseQuestions decodes the flat rubric string. It never fails: empty or
// whitespace-only input yields no questions, empty segments are skipped
// without consuming an ordinal, a missing colon makes the whole segment the
// title, and an unrecognized judge type falls back to likert.
func ParseQuestions(text string) []Question {
	questions := make([]Question, 0)
	if strings.TrimSpace(text) == "" {
		return questions
	}
	for _, segment := range strings.Split(text, questionSeparator) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		content := segment
		judgeType := Likert
		if i := strings.Index(segment, judgeTypeMarker); i >= 0 {
			content = segment[:i]
			judgeType = normalizeJudgeType(segment[i+len(judgeTypeMarker):])
		}
		var title, description string
		if c := strings.Index(content, ":"); c >= 0 {
			// Only the first colon separates title from description, so
			// descriptions may themselves contain colons.
			title = strings.TrimSpace(content[:c])
			description = strings.TrimSpace(content[c+1:])
		} else {
			title = strings.TrimSpace(content)
		}
		questions = append(questions, Question{
			ID:          fmt.Sprintf("q_%d", len(questions)+1),
			Title:       title,
			Description: description,
			JudgeType:   judgeType,
		})
	}
	return questions
}

// FormatQuestions encodes questions back to the flat string. A zero-value
// judge type is written as likert so the output always parses back to an
// equivalent sequence.
func FormatQuestions(questions []Question) string {
	if len(questions) == 0 {
		return ""
	}
	segments := make([]string, 0, len(questions))
	for _, q := range questions {
		judgeType := q.JudgeType
		if judgeType == "" {
			judgeType = Likert
		}
		segments = append(segments, fmt.Sprintf("%s: %s%s%s", q.Title, q.Description, judgeTypeMarker, judgeType))
	}
	return strings.Join(segments, questionSeparator)
}

// QuestionOrdinal extracts the 1-based position from a positional id such as
// "q_3".
func QuestionOrdinal(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, "q_")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func normalizeJudgeType(s string) JudgeType {
	switch jt := JudgeType(strings.TrimSpace(s)); jt {
	case Likert, Binary, Freeform:
		return jt
	}
	return Likert
}
