package db

import (
	"database/sql"
	"time"
)

type Workshop struct {
	ID                   string         `db:"id"`
	Name                 string         `db:"name"`
	Phase                string         `db:"phase"`
	FacilitatorTokenHash string         `db:"facilitator_token_hash"`
	ParticipantTokenHash string         `db:"participant_token_hash"`
	RubricText           sql.NullString `db:"rubric_text"`
	Results              []byte         `db:"results"`
	CreatedAt            time.Time      `db:"created_at"`
}

type Trace struct {
	ID            string         `db:"id"`
	WorkshopID    string         `db:"workshop_id"`
	Input         string         `db:"input"`
	Output        string         `db:"output"`
	Context       []byte         `db:"context"`
	MLFlowTraceID sql.NullString `db:"mlflow_trace_id"`
	ObjectRef     sql.NullString `db:"object_ref"`
	CreatedAt     time.Time      `db:"created_at"`
}

type Finding struct {
	ID          string    `db:"id"`
	WorkshopID  string    `db:"workshop_id"`
	TraceID     string    `db:"trace_id"`
	Participant string    `db:"participant"`
	Body        string    `db:"body"`
	CreatedAt   time.Time `db:"created_at"`
}

type Annotation struct {
	ID         string         `db:"id"`
	WorkshopID string         `db:"workshop_id"`
	TraceID    string         `db:"trace_id"`
	Ordinal    int            `db:"ordinal"`
	Annotator  string         `db:"annotator"`
	Value      string         `db:"value"`
	Rationale  sql.NullString `db:"rationale"`
	CreatedAt  time.Time      `db:"created_at"`
}
