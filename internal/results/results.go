// Package results aggregates SME annotations into per-question summaries and
// inter-rater reliability scores. Pure computation over in-memory slices; the
// worker owns loading and persistence.
package results

import (
	"strconv"
	"time"

	"judgecal/internal/rubric"
)

// Annotation is one annotator's rating of one trace against one rubric
// question, identified by the question's 1-based ordinal.
type Annotation struct {
	TraceID   string
	Ordinal   int
	Annotator string
	Value     string
}

// QuestionResult summarizes all annotations for a single rubric question.
// Mean applies to likert questions, PassRate to binary, Responses to
// freeform. Agreement and FleissKappa are present only for categorical
// (likert/binary) questions with enough overlapping ratings.
type QuestionResult struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	JudgeType   string   `json:"judge_type"`
	Annotations int      `json:"annotations"`
	Mean        *float64 `json:"mean,omitempty"`
	PassRate    *float64 `json:"pass_rate,omitempty"`
	Responses   []string `json:"responses,omitempty"`
	Agreement   *float64 `json:"agreement,omitempty"`
	FleissKappa *float64 `json:"fleiss_kappa,omitempty"`
}

// Summary is the workshop-level result document stored on the workshop row.
type Summary struct {
	Questions        []QuestionResult `json:"questions"`
	Annotators       int              `json:"annotators"`
	TracesAnnotated  int              `json:"traces_annotated"`
	OverallAgreement *float64         `json:"overall_agreement,omitempty"`
	OverallKappa     *float64         `json:"overall_kappa,omitempty"`
	ComputedAt       time.Time        `json:"computed_at"`
}

// Compute recomputes the full summary from the current annotation set. It is
// idempotent: running it twice over the same inputs yields the same document
// apart from ComputedAt.
func Compute(questions []rubric.Question, annotations []Annotation, computedAt time.Time) *Summary {
	byOrdinal := make(map[int][]Annotation)
	annotators := make(map[string]struct{})
	traces := make(map[string]struct{})
	for _, a := range annotations {
		if a.Ordinal < 1 || a.Ordinal > len(questions) {
			continue
		}
		byOrdinal[a.Ordinal] = append(byOrdinal[a.Ordinal], a)
		annotators[a.Annotator] = struct{}{}
		traces[a.TraceID] = struct{}{}
	}

	summary := &Summary{
		Questions:       make([]QuestionResult, 0, len(questions)),
		Annotators:      len(annotators),
		TracesAnnotated: len(traces),
		ComputedAt:      computedAt,
	}

	var agreements, kappas []float64
	for i, q := range questions {
		anns := byOrdinal[i+1]
		qr := QuestionResult{
			ID:          q.ID,
			Title:       q.Title,
			JudgeType:   string(q.JudgeType),
			Annotations: len(anns),
		}
		switch q.JudgeType {
		case rubric.Likert:
			qr.Mean = likertMean(anns)
		case rubric.Binary:
			qr.PassRate = passRate(anns)
		case rubric.Freeform:
			for _, a := range anns {
				qr.Responses = append(qr.Responses, a.Value)
			}
		}
		if q.JudgeType == rubric.Likert || q.JudgeType == rubric.Binary {
			items := ratingsByTrace(anns)
			if agreement, ok := PercentAgreement(items); ok {
				qr.Agreement = &agreement
				agreements = append(agreements, agreement)
			}
			if kappa, ok := FleissKappa(items); ok {
				qr.FleissKappa = &kappa
				kappas = append(kappas, kappa)
			}
		}
		summary.Questions = append(summary.Questions, qr)
	}

	if v, ok := mean(agreements); ok {
		summary.OverallAgreement = &v
	}
	if v, ok := mean(kappas); ok {
		summary.OverallKappa = &v
	}
	return summary
}

// likertMean averages the numeric values, skipping anything unparseable.
func likertMean(anns []Annotation) *float64 {
	var sum float64
	var n int
	for _, a := range anns {
		v, err := strconv.ParseFloat(a.Value, 64)
		if err != nil {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return nil
	}
	m := sum / float64(n)
	return &m
}

// passRate is the fraction of "pass" among pass/fail values.
func passRate(anns []Annotation) *float64 {
	var pass, total int
	for _, a := range anns {
		switch a.Value {
		case "pass":
			pass++
			total++
		case "fail":
			total++
		}
	}
	if total == 0 {
		return nil
	}
	r := float64(pass) / float64(total)
	return &r
}

// ratingsByTrace groups a question's ratings into the per-item lists the IRR
// statistics consume.
func ratingsByTrace(anns []Annotation) map[string][]string {
	items := make(map[string][]string)
	for _, a := range anns {
		items[a.TraceID] = append(items[a.TraceID], a.Value)
	}
	return items
}

func mean(vals []float64) (float64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals)), true
}
