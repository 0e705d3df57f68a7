package workshop

import "testing"

func TestParsePhase(t *testing.T) {
	for _, p := range []string{"setup", "review", "rubric", "annotation", "results", "closed"} {
		if _, ok := ParsePhase(p); !ok {
			t.Errorf("ParsePhase(%q) not recognized", p)
		}
	}
	if _, ok := ParsePhase("warmup"); ok {
		t.Error("ParsePhase accepted an unknown phase")
	}
}

func TestNext(t *testing.T) {
	tests := []struct {
		from   Phase
		want   Phase
		wantOK bool
	}{
		{PhaseSetup, PhaseReview, true},
		{PhaseReview, PhaseRubric, true},
		{PhaseRubric, PhaseAnnotation, true},
		{PhaseAnnotation, PhaseResults, true},
		{PhaseResults, PhaseClosed, true},
		{PhaseClosed, "", false},
		{Phase("bogus"), "", false},
	}
	for _, tt := range tests {
		got, ok := tt.from.Next()
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("%s.Next() = (%q, %v), want (%q, %v)", tt.from, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestGates(t *testing.T) {
	tests := []struct {
		phase      Phase
		upload     bool
		findings   bool
		rubricEdit bool
		annotation bool
		results    bool
	}{
		{PhaseSetup, true, false, true, false, false},
		{PhaseReview, true, true, true, false, false},
		{PhaseRubric, false, false, true, false, false},
		{PhaseAnnotation, false, false, false, true, true},
		{PhaseResults, false, false, false, false, true},
		{PhaseClosed, false, false, false, false, true},
	}
	for _, tt := range tests {
		if got := tt.phase.AllowsTraceUpload(); got != tt.upload {
			t.Errorf("%s.AllowsTraceUpload() = %v", tt.phase, got)
		}
		if got := tt.phase.AllowsFindings(); got != tt.findings {
			t.Errorf("%s.AllowsFindings() = %v", tt.phase, got)
		}
		if got := tt.phase.AllowsRubricEdit(); got != tt.rubricEdit {
			t.Errorf("%s.AllowsRubricEdit() = %v", tt.phase, got)
		}
		if got := tt.phase.AllowsAnnotation(); got != tt.annotation {
			t.Errorf("%s.AllowsAnnotation() = %v", tt.phase, got)
		}
		if got := tt.phase.AllowsResults(); got != tt.results {
			t.Errorf("%s.AllowsResults() = %v", tt.phase, got)
		}
	}
}
