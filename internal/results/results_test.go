package results

import (
	"math"
	"testing"
	"time"

	"judgecal/internal/rubric"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestPercentAgreement(t *testing.T) {
	tests := []struct {
		name   string
		items  map[string][]string
		want   float64
		wantOK bool
	}{
		{
			name:   "perfect agreement",
			items:  map[string][]string{"t1": {"4", "4"}, "t2": {"2", "2", "2"}},
			want:   1.0,
			wantOK: true,
		},
		{
			name:   "total disagreement",
			items:  map[string][]string{"t1": {"1", "5"}},
			want:   0.0,
			wantOK: true,
		},
		{
			name: "mixed",
			// t1: pairs (4,4)=1 of 1; t2: (1,2),(1,2),(2,2) = 1 of 3.
			items:  map[string][]string{"t1": {"4", "4"}, "t2": {"1", "2", "2"}},
			want:   (1.0 + 1.0/3.0) / 2.0,
			wantOK: true,
		},
		{
			name:   "single ratings are ineligible",
			items:  map[string][]string{"t1": {"3"}, "t2": {"4"}},
			wantOK: false,
		},
		{
			name:   "no items",
			items:  map[string][]string{},
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PercentAgreement(tt.items)
			if ok != tt.wantOK {
				t.Fatalf("PercentAgreement() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !almostEqual(got, tt.want) {
				t.Errorf("PercentAgreement() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFleissKappa(t *testing.T) {
	t.Run("chance-level agreement is near zero", func(t *testing.T) {
		// Two categories split evenly within and across items.
		items := map[string][]string{
			"t1": {"pass", "fail"},
			"t2": {"fail", "pass"},
		}
		got, ok := FleissKappa(items)
		if !ok {
			t.Fatal("FleissKappa() not defined")
		}
		// Observed agreement 0, expected 0.5: kappa = -1.
		if !almostEqual(got, -1.0) {
			t.Errorf("FleissKappa() = %v, want -1", got)
		}
	})

	t.Run("unanimous single category is undefined", func(t *testing.T) {
		items := map[string][]string{"t1": {"pass", "pass"}, "t2": {"pass", "pass"}}
		if _, ok := FleissKappa(items); ok {
			t.Error("FleissKappa() defined, want undefined when expected agreement is 1")
		}
	})

	t.Run("known value", func(t *testing.T) {
		// 3 items, 2 raters each. Agreements on t1 and t2, split on t3.
		items := map[string][]string{
			"t1": {"pass", "pass"},
			"t2": {"fail", "fail"},
			"t3": {"pass", "fail"},
		}
		got, ok := FleissKappa(items)
		if !ok {
			t.Fatal("FleissKappa() not defined")
		}
		// observed = (1+1+0)/3 = 2/3; p_pass = 3/6, p_fail = 3/6, expected = 1/2.
		want := (2.0/3.0 - 0.5) / 0.5
		if !almostEqual(got, want) {
			t.Errorf("FleissKappa() = %v, want %v", got, want)
		}
	})

	t.Run("no eligible items", func(t *testing.T) {
		if _, ok := FleissKappa(map[string][]string{"t1": {"pass"}}); ok {
			t.Error("FleissKappa() defined with no overlapping ratings")
		}
	})
}

func TestCompute(t *testing.T) {
	questions := rubric.ParseQuestions(
		"Clarity: Is it clear?|||QUESTION_SEPARATOR|||" +
			"Accuracy: Correct?|||JUDGE_TYPE|||binary|||QUESTION_SEPARATOR|||" +
			"Notes: Freeform notes|||JUDGE_TYPE|||freeform")

	annotations := []Annotation{
		{TraceID: "t1", Ordinal: 1, Annotator: "ann-a", Value: "4"},
		{TraceID: "t1", Ordinal: 1, Annotator: "ann-b", Value: "4"},
		{TraceID: "t2", Ordinal: 1, Annotator: "ann-a", Value: "2"},
		{TraceID: "t2", Ordinal: 1, Annotator: "ann-b", Value: "3"},
		{TraceID: "t1", Ordinal: 2, Annotator: "ann-a", Value: "pass"},
		{TraceID: "t1", Ordinal: 2, Annotator: "ann-b", Value: "fail"},
		{TraceID: "t1", Ordinal: 3, Annotator: "ann-a", Value: "verbose but fine"},
		// Out-of-range ordinal must be ignored, not counted anywhere.
		{TraceID: "t1", Ordinal: 9, Annotator: "ann-c", Value: "5"},
	}

	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	sum := Compute(questions, annotations, now)

	if len(sum.Questions) != 3 {
		t.Fatalf("question results = %d, want 3", len(sum.Questions))
	}
	if sum.Annotators != 2 {
		t.Errorf("annotators = %d, want 2", sum.Annotators)
	}
	if sum.TracesAnnotated != 2 {
		t.Errorf("traces annotated = %d, want 2", sum.TracesAnnotated)
	}

	clarity := sum.Questions[0]
	if clarity.Annotations != 4 {
		t.Errorf("clarity annotations = %d, want 4", clarity.Annotations)
	}
	if clarity.Mean == nil || !almostEqual(*clarity.Mean, 3.25) {
		t.Errorf("clarity mean = %v, want 3.25", clarity.Mean)
	}
	if clarity.Agreement == nil || !almostEqual(*clarity.Agreement, 0.5) {
		t.Errorf("clarity agreement = %v, want 0.5", clarity.Agreement)
	}

	accuracy := sum.Questions[1]
	if accuracy.PassRate == nil || !almostEqual(*accuracy.PassRate, 0.5) {
		t.Errorf("accuracy pass rate = %v, want 0.5", accuracy.PassRate)
	}
	if accuracy.Mean != nil {
		t.Errorf("accuracy mean = %v, want absent for binary", accuracy.Mean)
	}

	notes := sum.Questions[2]
	if len(notes.Responses) != 1 || notes.Responses[0] != "verbose but fine" {
		t.Errorf("notes responses = %v", notes.Responses)
	}
	if notes.Agreement != nil || notes.FleissKappa != nil {
		t.Error("freeform question must not carry IRR scores")
	}

	if sum.ComputedAt != now {
		t.Errorf("computed at = %v, want %v", sum.ComputedAt, now)
	}
}

func TestComputeEmpty(t *testing.T) {
	sum := Compute(nil, nil, time.Now())
	if len(sum.Questions) != 0 || sum.Annotators != 0 || sum.TracesAnnotated != 0 {
		t.Errorf("Compute(nil, nil) = %+v, want empty summary", sum)
	}
	if sum.OverallAgreement != nil || sum.OverallKappa != nil {
		t.Error("overall scores must be absent with no data")
	}
}
