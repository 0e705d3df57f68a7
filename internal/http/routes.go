package http

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	m "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"

	"judgecal/internal/auth"
	"judgecal/internal/db"
	"judgecal/internal/rubric"
	"judgecal/internal/schemas"
	"judgecal/internal/storage"
	"judgecal/internal/traceview"
	"judgecal/internal/workshop"
)

type Server struct {
	DB    *sqlx.DB
	S3    *storage.Client
	Asynq *asynq.Client
}

func NewServer(dbx *sqlx.DB, s3c *storage.Client, asq *asynq.Client) *http.Server {
	s := &Server{DB: dbx, S3: s3c, Asynq: asq}
	r := chi.NewRouter()
	r.Use(m.RequestID, m.RealIP, m.Logger, m.Recoverer)

	// Admin/API-token protected
	r.Group(func(r chi.Router) {
		r.Use(RequireAPIToken)
		r.Post("/workshops", s.createWorkshop)
		r.Get("/workshops/{id}", s.getWorkshop)
	})

	// Workshop token (uses Authorization: Bearer <facilitator|participant>)
	r.Post("/workshops/{id}/advance", s.advancePhase)
	r.Post("/workshops/{id}/traces", s.uploadTraces)
	r.Get("/workshops/{id}/traces", s.listTraces)
	r.Get("/workshops/{id}/traces/{traceID}", s.getTrace)
	r.Post("/workshops/{id}/traces/{traceID}/findings", s.createFinding)
	r.Get("/workshops/{id}/traces/{traceID}/export/csv", s.exportCSV)
	r.Get("/workshops/{id}/traces/{traceID}/export/sql", s.exportSQL)
	r.Get("/workshops/{id}/findings", s.listFindings)
	r.Put("/workshops/{id}/rubric", s.putRubric)
	r.Get("/workshops/{id}/rubric", s.getRubric)
	r.Post("/workshops/{id}/annotations", s.createAnnotation)
	r.Post("/workshops/{id}/results", s.enqueueResults)
	r.Get("/workshops/{id}/results", s.getResults)
	r.Get("/workshops/{id}/results/snapshot", s.getResultsSnapshot)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		// just a simple ping endpoint
		if err := dbx.Ping(); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"status":"db error"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return &http.Server{Addr: ":8000", Handler: r}
}

type errResp struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func bearer(r *http.Request) string {
	got := r.Header.Get("Authorization")
	if len(got) < 8 || got[:7] != "Bearer " {
		return ""
	}
	return got[7:]
}

func (s *Server) loadWorkshop(w http.ResponseWriter, r *http.Request) (*db.Workshop, bool) {
	id := chi.URLParam(r, "id")
	var ws db.Workshop
	if err := s.DB.Get(&ws, `select * from workshops where id=$1`, id); err != nil {
		writeJSON(w, 404, errResp{"workshop not found"})
		return nil, false
	}
	return &ws, true
}

// requireFacilitator loads the workshop and checks the facilitator token.
func (s *Server) requireFacilitator(w http.ResponseWriter, r *http.Request) (*db.Workshop, bool) {
	ws, ok := s.loadWorkshop(w, r)
	if !ok {
		return nil, false
	}
	if !auth.CheckToken(bearer(r), ws.FacilitatorTokenHash) {
		writeJSON(w, 401, errResp{"facilitator token required"})
		return nil, false
	}
	return ws, true
}

// requireParticipant accepts either token; facilitators can do everything
// participants can.
func (s *Server) requireParticipant(w http.ResponseWriter, r *http.Request) (*db.Workshop, bool) {
	ws, ok := s.loadWorkshop(w, r)
	if !ok {
		return nil, false
	}
	tok := bearer(r)
	if !auth.CheckToken(tok, ws.ParticipantTokenHash) && !auth.CheckToken(tok, ws.FacilitatorTokenHash) {
		writeJSON(w, 401, errResp{"workshop token required"})
		return nil, false
	}
	return ws, true
}

func (s *Server) createWorkshop(w http.ResponseWriter, r *http.Request) {
	var req schemas.CreateWorkshopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, 400, errResp{"name is required"})
		return
	}
	id := uuid.NewString()
	facilitator := uuid.NewString()
	participant := uuid.NewString()

	_, err := s.DB.Exec(`insert into workshops(id, name, phase, facilitator_token_hash, participant_token_hash) values($1,$2,$3,$4,$5)`,
		id, req.Name, string(workshop.PhaseSetup), auth.HashToken(facilitator), auth.HashToken(participant))
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	fmt.Println("Created workshop:", id)
	writeJSON(w, 200, schemas.CreateWorkshopResponse{
		WorkshopID:       id,
		FacilitatorToken: facilitator,
		ParticipantToken: participant,
	})
}

func (s *Server) getWorkshop(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.loadWorkshop(w, r)
	if !ok {
		return
	}
	writeJSON(w, 200, workshopOut(ws))
}

func workshopOut(ws *db.Workshop) schemas.WorkshopOut {
	out := schemas.WorkshopOut{
		WorkshopID: ws.ID,
		Name:       ws.Name,
		Phase:      ws.Phase,
		HasRubric:  ws.RubricText.Valid && strings.TrimSpace(ws.RubricText.String) != "",
		CreatedAt:  ws.CreatedAt,
	}
	if len(ws.Results) > 0 {
		_ = json.Unmarshal(ws.Results, &out.Results)
	}
	return out
}

func (s *Server) advancePhase(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.requireFacilitator(w, r)
	if !ok {
		return
	}
	phase, ok := workshop.ParsePhase(ws.Phase)
	if !ok {
		writeJSON(w, 500, errResp{"workshop has an unknown phase"})
		return
	}
	next, ok := phase.Next()
	if !ok {
		writeJSON(w, 409, errResp{"workshop is closed"})
		return
	}
	if _, err := s.DB.Exec(`update workshops set phase=$1 where id=$2`, string(next), ws.ID); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, map[string]string{"phase": string(next)})
}

func (s *Server) uploadTraces(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.requireFacilitator(w, r)
	if !ok {
		return
	}
	if phase, _ := workshop.ParsePhase(ws.Phase); !phase.AllowsTraceUpload() {
		writeJSON(w, 409, errResp{"trace upload not allowed in phase " + ws.Phase})
		return
	}
	var req schemas.UploadTracesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	if len(req.Traces) == 0 {
		writeJSON(w, 400, errResp{"no traces in upload"})
		return
	}

	// Keep the raw upload around; the DB rows are the working copy.
	ref, err := s.S3.PutJSON(r.Context(), "uploads", req)
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}

	ids := make([]string, 0, len(req.Traces))
	err = db.WithTx(r.Context(), s.DB, func(tx *sqlx.Tx) error {
		for _, t := range req.Traces {
			id := t.ID
			if id == "" {
				id = uuid.NewString()
			}
			var ctxJSON []byte
			if t.Context != nil {
				ctxJSON, _ = json.Marshal(t.Context)
			}
			_, err := tx.Exec(`insert into traces(id, workshop_id, input, output, context, mlflow_trace_id, object_ref) values($1,$2,$3,$4,$5,$6,$7)`,
				id, ws.ID, rawText(t.Input), rawText(t.Output), ctxJSON, nullable(t.MLFlowTraceID), ref)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, schemas.UploadTracesResponse{Accepted: len(ids), TraceIDs: ids})
}

func (s *Server) listTraces(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.requireParticipant(w, r)
	if !ok {
		return
	}
	var traces []db.Trace
	if err := s.DB.Select(&traces, `select * from traces where workshop_id=$1 order by created_at, id`, ws.ID); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	out := make([]schemas.TraceOut, 0, len(traces))
	for _, t := range traces {
		out = append(out, buildTraceOut(t))
	}
	writeJSON(w, 200, out)
}

func (s *Server) getTrace(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.requireParticipant(w, r)
	if !ok {
		return
	}
	t, ok := s.loadTrace(w, r, ws.ID)
	if !ok {
		return
	}
	writeJSON(w, 200, buildTraceOut(*t))
}

func (s *Server) loadTrace(w http.ResponseWriter, r *http.Request, workshopID string) (*db.Trace, bool) {
	traceID := chi.URLParam(r, "traceID")
	var t db.Trace
	if err := s.DB.Get(&t, `select * from traces where id=$1 and workshop_id=$2`, traceID, workshopID); err != nil {
		writeJSON(w, 404, errResp{"trace not found"})
		return nil, false
	}
	return &t, true
}

// buildTraceOut runs the normalizer over a stored trace. Decode failure is
// the one user-visible hard failure: the view carries an explicit parse_error
// and the raw output so the client can fall back to raw display.
func buildTraceOut(t db.Trace) schemas.TraceOut {
	out := schemas.TraceOut{
		TraceID:       t.ID,
		Input:         rawJSON(t.Input),
		Output:        rawJSON(t.Output),
		MLFlowTraceID: t.MLFlowTraceID.String,
		CreatedAt:     t.CreatedAt,
	}
	if len(t.Context) > 0 {
		_ = json.Unmarshal(t.Context, &out.Context)
	}
	decoded, effective, err := traceview.DecodeOutput(t.Output)
	if err != nil {
		out.ParseError = "unable to parse trace output"
		return out
	}
	if e := traceview.Extract(decoded); e != nil {
		out.Content = &e.Content
		out.Metadata = e.Metadata
	}
	if table, ok := traceview.TableFrom(effective); ok {
		out.Table = &schemas.TableOut{Headers: table.Headers, Rows: table.Rows}
	}
	if q, ok := traceview.QueryText(decoded); ok {
		out.QueryText = q
		out.FormattedQuery = traceview.FormatSQL(q)
	}
	return out
}

func (s *Server) createFinding(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.requireParticipant(w, r)
	if !ok {
		return
	}
	if phase, _ := workshop.ParsePhase(ws.Phase); !phase.AllowsFindings() {
		writeJSON(w, 409, errResp{"findings not allowed in phase " + ws.Phase})
		return
	}
	t, ok := s.loadTrace(w, r, ws.ID)
	if !ok {
		return
	}
	var req schemas.FindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	if strings.TrimSpace(req.Participant) == "" || strings.TrimSpace(req.Body) == "" {
		writeJSON(w, 400, errResp{"participant and body are required"})
		return
	}
	id := uuid.NewString()
	_, err := s.DB.Exec(`insert into findings(id, workshop_id, trace_id, participant, body) values($1,$2,$3,$4,$5)`,
		id, ws.ID, t.ID, req.Participant, req.Body)
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, map[string]string{"finding_id": id})
}

func (s *Server) listFindings(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.requireParticipant(w, r)
	if !ok {
		return
	}
	var findings []db.Finding
	if err := s.DB.Select(&findings, `select * from findings where workshop_id=$1 order by created_at, id`, ws.ID); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	out := make([]schemas.FindingOut, 0, len(findings))
	for _, f := range findings {
		out = append(out, schemas.FindingOut{
			FindingID:   f.ID,
			TraceID:     f.TraceID,
			Participant: f.Participant,
			Body:        f.Body,
			CreatedAt:   f.CreatedAt,
		})
	}
	writeJSON(w, 200, out)
}

func (s *Server) putRubric(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.requireFacilitator(w, r)
	if !ok {
		return
	}
	if phase, _ := workshop.ParsePhase(ws.Phase); !phase.AllowsRubricEdit() {
		writeJSON(w, 409, errResp{"rubric is frozen in phase " + ws.Phase})
		return
	}
	var req schemas.PutRubricRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	if len(req.Questions) == 0 {
		writeJSON(w, 400, errResp{"rubric needs at least one question"})
		return
	}
	text := rubric.FormatQuestions(req.Questions)
	if _, err := s.DB.Exec(`update workshops set rubric_text=$1 where id=$2`, text, ws.ID); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, schemas.RubricOut{Text: text, Questions: rubric.ParseQuestions(text)})
}

func (s *Server) getRubric(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.requireParticipant(w, r)
	if !ok {
		return
	}
	if !ws.RubricText.Valid || strings.TrimSpace(ws.RubricText.String) == "" {
		writeJSON(w, 404, errResp{"no rubric yet"})
		return
	}
	writeJSON(w, 200, schemas.RubricOut{
		Text:      ws.RubricText.String,
		Questions: rubric.ParseQuestions(ws.RubricText.String),
	})
}

func (s *Server) createAnnotation(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.requireParticipant(w, r)
	if !ok {
		return
	}
	if phase, _ := workshop.ParsePhase(ws.Phase); !phase.AllowsAnnotation() {
		writeJSON(w, 409, errResp{"annotations not allowed in phase " + ws.Phase})
		return
	}
	questions := rubric.ParseQuestions(ws.RubricText.String)
	if len(questions) == 0 {
		writeJSON(w, 409, errResp{"no rubric to annotate against"})
		return
	}
	var req schemas.AnnotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	ordinal, ok := rubric.QuestionOrdinal(req.QuestionID)
	if !ok || ordinal > len(questions) {
		writeJSON(w, 400, errResp{"unknown question_id " + req.QuestionID})
		return
	}
	if strings.TrimSpace(req.Annotator) == "" {
		writeJSON(w, 400, errResp{"annotator is required"})
		return
	}
	question := questions[ordinal-1]
	if !validAnnotationValue(question.JudgeType, req.Value) {
		writeJSON(w, 400, errResp{fmt.Sprintf("value %q invalid for %s question", req.Value, question.JudgeType)})
		return
	}

	var cnt int
	if err := s.DB.Get(&cnt, `select count(1) from traces where id=$1 and workshop_id=$2`, req.TraceID, ws.ID); err != nil || cnt == 0 {
		writeJSON(w, 404, errResp{"trace not found"})
		return
	}

	id := uuid.NewString()
	// One rating per (trace, question, annotator); re-submitting revises it.
	_, err := s.DB.Exec(`insert into annotations(id, workshop_id, trace_id, ordinal, annotator, value, rationale)
		values($1,$2,$3,$4,$5,$6,$7)
		on conflict (trace_id, ordinal, annotator) do update set value=excluded.value, rationale=excluded.rationale`,
		id, ws.ID, req.TraceID, ordinal, req.Annotator, req.Value, nullable(req.Rationale))
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, schemas.AnnotationOut{
		AnnotationID: id,
		TraceID:      req.TraceID,
		QuestionID:   req.QuestionID,
		Annotator:    req.Annotator,
		Value:        req.Value,
	})
}

func validAnnotationValue(jt rubric.JudgeType, value string) bool {
	switch jt {
	case rubric.Binary:
		return value == "pass" || value == "fail"
	case rubric.Freeform:
		return strings.TrimSpace(value) != ""
	default: // likert
		n, err := strconv.Atoi(value)
		return err == nil && n >= 1 && n <= 5
	}
}

func (s *Server) enqueueResults(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.requireFacilitator(w, r)
	if !ok {
		return
	}
	if phase, _ := workshop.ParsePhase(ws.Phase); !phase.AllowsResults() {
		writeJSON(w, 409, errResp{"results not available in phase " + ws.Phase})
		return
	}
	task := asynq.NewTask("compute_results", []byte(ws.ID))
	if _, err := s.Asynq.Enqueue(task, asynq.MaxRetry(0)); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, map[string]string{"enqueued": "ok"})
}

func (s *Server) getResults(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.requireParticipant(w, r)
	if !ok {
		return
	}
	if len(ws.Results) == 0 {
		writeJSON(w, 404, errResp{"results not computed"})
		return
	}
	var results map[string]any
	if err := json.Unmarshal(ws.Results, &results); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, results)
}

// getResultsSnapshot serves the immutable S3 copy written by the worker.
func (s *Server) getResultsSnapshot(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.requireParticipant(w, r)
	if !ok {
		return
	}
	var results map[string]any
	if len(ws.Results) > 0 {
		_ = json.Unmarshal(ws.Results, &results)
	}
	ref, _ := results["snapshot_ref"].(string)
	if ref == "" {
		writeJSON(w, 404, errResp{"no results snapshot"})
		return
	}
	doc, err := s.S3.GetJSON(r.Context(), ref)
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, doc)
}

func (s *Server) exportCSV(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.requireParticipant(w, r)
	if !ok {
		return
	}
	t, ok := s.loadTrace(w, r, ws.ID)
	if !ok {
		return
	}
	_, effective, err := traceview.DecodeOutput(t.Output)
	if err != nil {
		writeJSON(w, 422, errResp{"unable to parse trace output"})
		return
	}
	table, ok := traceview.TableFrom(effective)
	if !ok {
		writeJSON(w, 404, errResp{"trace has no tabular result"})
		return
	}
	body := traceview.EncodeCSV(table.Headers, table.Rows)
	name := traceview.CSVFileName(t.ID)
	if _, err := s.S3.PutText(r.Context(), "exports/"+name, "text/csv", []byte(body)); err != nil {
		log.Printf("export: failed to archive %s: %v", name, err)
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write([]byte(body))
}

func (s *Server) exportSQL(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.requireParticipant(w, r)
	if !ok {
		return
	}
	t, ok := s.loadTrace(w, r, ws.ID)
	if !ok {
		return
	}
	decoded, _, err := traceview.DecodeOutput(t.Output)
	if err != nil {
		writeJSON(w, 422, errResp{"unable to parse trace output"})
		return
	}
	// Downloads carry the query verbatim; FormatSQL is display-only.
	query, ok := traceview.QueryText(decoded)
	if !ok {
		writeJSON(w, 404, errResp{"trace has no query text"})
		return
	}
	name := traceview.SQLFileName(t.ID)
	if _, err := s.S3.PutText(r.Context(), "exports/"+name, "application/sql", []byte(query)); err != nil {
		log.Printf("export: failed to archive %s: %v", name, err)
	}
	w.Header().Set("Content-Type", "application/sql")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write([]byte(query))
}

// rawText stores an uploaded JSON value as text; absent values become "null"
// so the column stays parseable.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}

// rawJSON passes a stored document through to the response; anything that is
// not valid JSON is re-encoded as a JSON string so the response itself stays
// well-formed.
func rawJSON(stored string) json.RawMessage {
	if json.Valid([]byte(stored)) {
		return json.RawMessage(stored)
	}
	b, _ := json.Marshal(stored)
	return b
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
