package schemas

import (
	"encoding/json"
	"time"

	"judgecal/internal/rubric"
)

type CreateWorkshopRequest struct {
	Name string `json:"name"`
}

type CreateWorkshopResponse struct {
	WorkshopID       string `json:"workshop_id"`
	FacilitatorToken string `json:"facilitator_token"`
	ParticipantToken string `json:"participant_token"`
}

type WorkshopOut struct {
	WorkshopID string         `json:"workshop_id"`
	Name       string         `json:"name"`
	Phase      string         `json:"phase"`
	HasRubric  bool           `json:"has_rubric"`
	Results    map[string]any `json:"results,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// TraceIn is one uploaded trace record. Input and Output arrive as arbitrary
// JSON: either an object or an already-stringified document.
type TraceIn struct {
	ID            string          `json:"id,omitempty"`
	Input         json.RawMessage `json:"input"`
	Output        json.RawMessage `json:"output"`
	Context       map[string]any  `json:"context,omitempty"`
	MLFlowTraceID string          `json:"mlflow_trace_id,omitempty"`
}

type UploadTracesRequest struct {
	Traces []TraceIn `json:"traces"`
}

type UploadTracesResponse struct {
	Accepted int      `json:"accepted"`
	TraceIDs []string `json:"trace_ids"`
}

// TraceOut is the normalized display view of a trace. Content is null when no
// known output shape matched; ParseError is set when the output was not valid
// JSON at all. Raw output is always included so callers can fall back to
// pretty-printed JSON.
type TraceOut struct {
	TraceID        string          `json:"trace_id"`
	Input          json.RawMessage `json:"input"`
	Output         json.RawMessage `json:"output"`
	Context        map[string]any  `json:"context,omitempty"`
	MLFlowTraceID  string          `json:"mlflow_trace_id,omitempty"`
	Content        *string         `json:"content"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
	Table          *TableOut       `json:"table,omitempty"`
	QueryText      string          `json:"query_text,omitempty"`
	FormattedQuery string          `json:"formatted_query,omitempty"`
	ParseError     string          `json:"parse_error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type TableOut struct {
	Headers []string         `json:"headers"`
	Rows    []map[string]any `json:"rows"`
}

type FindingRequest struct {
	Participant string `json:"participant"`
	Body        string `json:"body"`
}

type FindingOut struct {
	FindingID   string    `json:"finding_id"`
	TraceID     string    `json:"trace_id"`
	Participant string    `json:"participant"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}

type PutRubricRequest struct {
	Questions []rubric.Question `json:"questions"`
}

// RubricOut returns both the stored flat encoding and its parsed form; the
// parsed ids are authoritative for annotation question_id values.
type RubricOut struct {
	Text      string            `json:"text"`
	Questions []rubric.Question `json:"questions"`
}

type AnnotationRequest struct {
	TraceID    string `json:"trace_id"`
	QuestionID string `json:"question_id"` // positional, e.g. "q_2"
	Annotator  string `json:"annotator"`
	Value      string `json:"value"`
	Rationale  string `json:"rationale,omitempty"`
}

type AnnotationOut struct {
	AnnotationID string `json:"annotation_id"`
	TraceID      string `json:"trace_id"`
	QuestionID   string `json:"question_id"`
	Annotator    string `json:"annotator"`
	Value        string `json:"value"`
}
