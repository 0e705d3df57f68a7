// Package workshop holds the phase state machine that gates every workshop
// operation. Phases only move forward, one step at a time.
package workshop

// Phase is a stage in the workshop lifecycle.
type Phase string

const (
	PhaseSetup      Phase = "setup"      // facilitator loads traces
	PhaseReview     Phase = "review"     // participants read traces, submit findings
	PhaseRubric     Phase = "rubric"     // facilitator authors the rubric
	PhaseAnnotation Phase = "annotation" // SMEs annotate traces against the rubric
	PhaseResults    Phase = "results"    // aggregation and IRR are available
	PhaseClosed     Phase = "closed"
)

var order = []Phase{PhaseSetup, PhaseReview, PhaseRubric, PhaseAnnotation, PhaseResults, PhaseClosed}

// ParsePhase validates a stored phase value.
func ParsePhase(s string) (Phase, bool) {
	for _, p := range order {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

func (p Phase) index() int {
	for i, q := range order {
		if p == q {
			return i
		}
	}
	return -1
}

// Next returns the following phase, or false from the terminal phase or an
// unknown value.
func (p Phase) Next() (Phase, bool) {
	i := p.index()
	if i < 0 || i == len(order)-1 {
		return "", false
	}
	return order[i+1], true
}

// AllowsTraceUpload reports whether traces may still be added.
func (p Phase) AllowsTraceUpload() bool {
	return p == PhaseSetup || p == PhaseReview
}

// AllowsFindings reports whether participants may submit findings.
func (p Phase) AllowsFindings() bool {
	return p == PhaseReview
}

// AllowsRubricEdit reports whether the rubric text may change. Once
// annotation opens, editing would detach annotations from their positional
// question ids, so edits stop there.
func (p Phase) AllowsRubricEdit() bool {
	i := p.index()
	return i >= 0 && i <= PhaseRubric.index()
}

// AllowsAnnotation reports whether annotations are accepted.
func (p Phase) AllowsAnnotation() bool {
	return p == PhaseAnnotation
}

// AllowsResults reports whether results may be computed or fetched.
func (p Phase) AllowsResults() bool {
	i := p.index()
	return i >= PhaseAnnotation.index()
}
