package worker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"

	"judgecal/internal/db"
	"judgecal/internal/results"
	"judgecal/internal/rubric"
	"judgecal/internal/storage"
)

type Server struct {
	DB    *sqlx.DB
	S3    *storage.Client
	Asynq *asynq.Client
}

func (s *Server) mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc("compute_results", s.handleComputeResults)
	return mux
}

func (s *Server) handleComputeResults(ctx context.Context, t *asynq.Task) error {
	id := string(t.Payload())
	log.Printf("Computing results for workshop %s", id)

	var ws db.Workshop
	if err := s.DB.GetContext(ctx, &ws, `select * from workshops where id=$1`, id); err != nil {
		return err
	}

	questions := rubric.ParseQuestions(ws.RubricText.String)
	if len(questions) == 0 {
		log.Printf("workshop %s has no rubric, nothing to compute", id)
		// persist the failure detail instead of panicking
		_, _ = s.DB.ExecContext(ctx,
			`update workshops set results = jsonb_build_object('error', $2::text) where id=$1`,
			id, "no rubric defined")
		return nil // tell Asynq "done" so it doesn't keep retrying
	}

	var rows []db.Annotation
	if err := s.DB.SelectContext(ctx, &rows,
		`select * from annotations where workshop_id=$1 order by created_at, id`, id); err != nil {
		return err
	}
	log.Printf("found %d annotations for workshop %s", len(rows), id)

	anns := make([]results.Annotation, 0, len(rows))
	for _, a := range rows {
		anns = append(anns, results.Annotation{
			TraceID:   a.TraceID,
			Ordinal:   a.Ordinal,
			Annotator: a.Annotator,
			Value:     a.Value,
		})
	}

	summary := results.Compute(questions, anns, time.Now().UTC())

	// Snapshot to object storage first; the ref travels with the row copy.
	ref, err := s.S3.PutJSON(ctx, "results", summary)
	if err != nil {
		log.Printf("failed to snapshot results for %s: %v", id, err)
		_, _ = s.DB.ExecContext(ctx,
			`update workshops set results = jsonb_build_object('error', $2::text) where id=$1`,
			id, err.Error())
		return nil
	}

	var doc map[string]any
	sb, _ := json.Marshal(summary)
	_ = json.Unmarshal(sb, &doc)
	doc["snapshot_ref"] = ref
	b, _ := json.Marshal(doc)
	_, err = s.DB.ExecContext(ctx, `update workshops set results=$1 where id=$2`, b, id)
	return err
}

func Run(addr string, dbx *sqlx.DB, s3c *storage.Client) error {
	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: addr}, asynq.Config{Concurrency: 5})
	w := &Server{DB: dbx, S3: s3c}
	return srv.Run(w.mux())
}
