package rubric

import (
	"fmt"
	"testing"
)

func TestParseQuestions(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Question
	}{
		{
			name: "empty string",
			text: "",
			want: []Question{},
		},
		{
			name: "whitespace only",
			text: "   \n\t ",
			want: []Question{},
		},
		{
			name: "single question default judge type",
			text: "Clarity: Is it clear?",
			want: []Question{
				{ID: "q_1", Title: "Clarity", Description: "Is it clear?", JudgeType: Likert},
			},
		},
		{
			name: "explicit judge types",
			text: "Accuracy: Is it correct?|||JUDGE_TYPE|||binary|||QUESTION_SEPARATOR|||Notes: Anything else|||JUDGE_TYPE|||freeform",
			want: []Question{
				{ID: "q_1", Title: "Accuracy", Description: "Is it correct?", JudgeType: Binary},
				{ID: "q_2", Title: "Notes", Description: "Anything else", JudgeType: Freeform},
			},
		},
		{
			name: "invalid judge type falls back to likert",
			text: "Test: Description|||JUDGE_TYPE|||invalid_type",
			want: []Question{
				{ID: "q_1", Title: "Test", Description: "Description", JudgeType: Likert},
			},
		},
		{
			name: "only first colon splits",
			text: "Tone: Friendly: but only first colon splits",
			want: []Question{
				{ID: "q_1", Title: "Tone", Description: "Friendly: but only first colon splits", JudgeType: Likert},
			},
		},
		{
			name: "no colon makes whole segment the title",
			text: "Helpfulness",
			want: []Question{
				{ID: "q_1", Title: "Helpfulness", Description: "", JudgeType: Likert},
			},
		},
		{
			name: "empty segments do not consume ordinals",
			text: "A: one|||QUESTION_SEPARATOR|||   |||QUESTION_SEPARATOR|||B: two",
			want: []Question{
				{ID: "q_1", Title: "A", Description: "one", JudgeType: Likert},
				{ID: "q_2", Title: "B", Description: "two", JudgeType: Likert},
			},
		},
		{
			name: "multiline description survives",
			text: "Depth: First line.\nSecond line.",
			want: []Question{
				{ID: "q_1", Title: "Depth", Description: "First line.\nSecond line.", JudgeType: Likert},
			},
		},
		{
			name: "judge type token gets trimmed",
			text: "Safety: No harmful content|||JUDGE_TYPE|||  binary  ",
			want: []Question{
				{ID: "q_1", Title: "Safety", Description: "No harmful content", JudgeType: Binary},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseQuestions(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseQuestions() returned %d questions, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("question %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFormatQuestions(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		if got := FormatQuestions(nil); got != "" {
			t.Errorf("FormatQuestions(nil) = %q, want empty", got)
		}
		if got := FormatQuestions([]Question{}); got != "" {
			t.Errorf("FormatQuestions(empty) = %q, want empty", got)
		}
	})

	t.Run("single question", func(t *testing.T) {
		got := FormatQuestions([]Question{{Title: "Clarity", Description: "Is it clear?", JudgeType: Binary}})
		want := "Clarity: Is it clear?|||JUDGE_TYPE|||binary"
		if got != want {
			t.Errorf("FormatQuestions() = %q, want %q", got, want)
		}
	})

	t.Run("zero judge type defaults to likert", func(t *testing.T) {
		got := FormatQuestions([]Question{{Title: "T", Description: "d"}})
		want := "T: d|||JUDGE_TYPE|||likert"
		if got != want {
			t.Errorf("FormatQuestions() = %q, want %q", got, want)
		}
	})
}

func TestRoundTrip(t *testing.T) {
	original := []Question{
		{ID: "q_7", Title: "Tone", Description: "Friendly: concise: on-topic", JudgeType: Likert},
		{ID: "stale", Title: "Accuracy", Description: "Line one.\nLine two.", JudgeType: Binary},
		{Title: "Notes", Description: "", JudgeType: Freeform},
	}
	parsed := ParseQuestions(FormatQuestions(original))
	if len(parsed) != len(original) {
		t.Fatalf("round trip changed length: got %d, want %d", len(parsed), len(original))
	}
	for i, q := range parsed {
		if q.Title != original[i].Title {
			t.Errorf("question %d title = %q, want %q", i, q.Title, original[i].Title)
		}
		if q.Description != original[i].Description {
			t.Errorf("question %d description = %q, want %q", i, q.Description, original[i].Description)
		}
		if q.JudgeType != original[i].JudgeType {
			t.Errorf("question %d judge type = %q, want %q", i, q.JudgeType, original[i].JudgeType)
		}
		// IDs are regenerated positionally regardless of the input ids.
		if want := fmt.Sprintf("q_%d", i+1); q.ID != want {
			t.Errorf("question %d id = %q, want %q", i, q.ID, want)
		}
	}
}

func TestQuestionOrdinal(t *testing.T) {
	tests := []struct {
		id     string
		want   int
		wantOK bool
	}{
		{"q_1", 1, true},
		{"q_12", 12, true},
		{"q_0", 0, false},
		{"q_-1", 0, false},
		{"q_x", 0, false},
		{"question_1", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := QuestionOrdinal(tt.id)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("QuestionOrdinal(%q) = (%d, %v), want (%d, %v)", tt.id, got, ok, tt.want, tt.wantOK)
		}
	}
}
