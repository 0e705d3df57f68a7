package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

type createResp struct {
	WorkshopID       string `json:"workshop_id"`
	FacilitatorToken string `json:"facilitator_token"`
	ParticipantToken string `json:"participant_token"`
}

type uploadResp struct {
	Accepted int      `json:"accepted"`
	TraceIDs []string `json:"trace_ids"`
}

func main() {
	base := envOr("API_BASE_URL", "http://localhost:8000")
	token := envOr("API_TOKEN", "dev-secret-token")

	baseFlag := flag.String("base", base, "API base URL (e.g., http://localhost:8000)")
	tokenFlag := flag.String("token", token, "API token for admin endpoints")
	waitResults := flag.Duration("wait-results", 15*time.Second, "How long to poll for results after enqueue")
	flag.Parse()

	httpc := &http.Client{Timeout: 12 * time.Second}

	// 1) Create workshop
	var created createResp
	if err := postJSON(httpc, *baseFlag+"/workshops", *tokenFlag, map[string]any{"name": "Smoke Workshop"}, &created); err != nil {
		fatalf("create workshop: %v", err)
	}
	fmt.Printf("✅ Created workshop: id=%s\n", created.WorkshopID)
	wsBase := fmt.Sprintf("%s/workshops/%s", *baseFlag, created.WorkshopID)
	fac := created.FacilitatorToken
	part := created.ParticipantToken

	// 2) Upload traces: one chat-completion shaped, one tabular SQL agent
	uploadBody := map[string]any{
		"traces": []map[string]any{
			{
				"input": map[string]any{"prompt": "Summarize the incident report"},
				"output": map[string]any{
					"id":     "chatcmpl-smoke-1",
					"model":  "gpt-4o",
					"object": "chat.completion",
					"choices": []map[string]any{
						{
							"message":       map[string]any{"role": "assistant", "content": "The incident was caused by a misconfigured load balancer."},
							"finish_reason": "stop",
						},
					},
				},
			},
			{
				"input": map[string]any{"question": "Top customers by revenue"},
				"output": map[string]any{
					"query_text": "select name, revenue from customers order by revenue desc limit 5",
					"result": []map[string]any{
						{"name": "Acme", "revenue": 120000},
						{"name": "Globex", "revenue": 98000},
					},
				},
			},
		},
	}
	var uploaded uploadResp
	if err := postJSON(httpc, wsBase+"/traces", fac, uploadBody, &uploaded); err != nil {
		fatalf("upload traces: %v", err)
	}
	fmt.Printf("✅ Uploaded traces: accepted=%d ids=%v\n", uploaded.Accepted, uploaded.TraceIDs)

	// 3) Advance setup -> review, record a finding
	advance(httpc, wsBase, fac) // review
	finding := map[string]any{"participant": "smoke-tester", "body": "Second trace truncates the customer list"}
	if err := postJSON(httpc, fmt.Sprintf("%s/traces/%s/findings", wsBase, uploaded.TraceIDs[1]), part, finding, &map[string]any{}); err != nil {
		fatalf("create finding: %v", err)
	}
	fmt.Println("✅ Recorded finding")

	// 4) Advance review -> rubric, define the rubric
	advance(httpc, wsBase, fac) // rubric
	rubricBody := map[string]any{
		"questions": []map[string]any{
			{"title": "Clarity", "description": "Is the answer clear?", "judge_type": "likert"},
			{"title": "Correct", "description": "Is the answer factually correct?", "judge_type": "binary"},
		},
	}
	if err := postJSON(httpc, wsBase+"/rubric", fac, rubricBody, &map[string]any{}, "PUT"); err != nil {
		fatalf("put rubric: %v", err)
	}
	fmt.Println("✅ Saved rubric")

	// 5) Advance rubric -> annotation, submit annotations from two annotators
	advance(httpc, wsBase, fac) // annotation
	for _, ann := range []map[string]any{
		{"trace_id": uploaded.TraceIDs[0], "question_id": "q_1", "annotator": "alice", "value": "4"},
		{"trace_id": uploaded.TraceIDs[0], "question_id": "q_2", "annotator": "alice", "value": "pass"},
		{"trace_id": uploaded.TraceIDs[0], "question_id": "q_1", "annotator": "bob", "value": "3"},
		{"trace_id": uploaded.TraceIDs[0], "question_id": "q_2", "annotator": "bob", "value": "pass"},
	} {
		if err := postJSON(httpc, wsBase+"/annotations", part, ann, &map[string]any{}); err != nil {
			fatalf("create annotation: %v", err)
		}
	}
	fmt.Println("✅ Submitted annotations")

	// 6) Enqueue results and poll
	if err := postJSON(httpc, wsBase+"/results", fac, nil, &map[string]any{}); err != nil {
		fatalf("enqueue results: %v", err)
	}
	deadline := time.Now().Add(*waitResults)
	for {
		var results map[string]any
		err := getJSON(httpc, wsBase+"/results", part, &results)
		if err == nil && len(results) > 0 {
			fmt.Printf("✅ Results computed:\n%s\n", compactJSON(results))
			break
		}
		if time.Now().After(deadline) {
			fmt.Println("ℹ️  Results not present yet (worker may not be running).")
			break
		}
		time.Sleep(2 * time.Second)
	}

	// 7) Export the tabular trace as CSV
	csvURL := fmt.Sprintf("%s/traces/%s/export/csv", wsBase, uploaded.TraceIDs[1])
	body, err := getRaw(httpc, csvURL, part)
	if err != nil {
		fatalf("export csv: %v", err)
	}
	fmt.Printf("✅ CSV export:\n%s", body)

	fmt.Printf("🎉 Smoke run OK. WorkshopID=%s\n", created.WorkshopID)
}

// --- helpers ---

func advance(c *http.Client, wsBase, fac string) {
	var out map[string]string
	if err := postJSON(c, wsBase+"/advance", fac, nil, &out); err != nil {
		fatalf("advance phase: %v", err)
	}
	fmt.Printf("✅ Advanced to phase %s\n", out["phase"])
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func postJSON(c *http.Client, url, bearer string, body any, out any, method ...string) error {
	verb := http.MethodPost
	if len(method) > 0 {
		verb = method[0]
	}
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, verb, url, r)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res, err := c.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != 200 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("%s %s -> %d: %s", verb, url, res.StatusCode, string(b))
	}
	if out != nil {
		return json.NewDecoder(res.Body).Decode(out)
	}
	return nil
}

func getJSON(c *http.Client, url, bearer string, out any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res, err := c.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("GET %s -> %d: %s", url, res.StatusCode, string(b))
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func getRaw(c *http.Client, url, bearer string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res, err := c.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	b, _ := io.ReadAll(res.Body)
	if res.StatusCode/100 != 2 {
		return "", fmt.Errorf("GET %s -> %d: %s", url, res.StatusCode, string(b))
	}
	return string(b), nil
}

func compactJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func fatalf(format string, args ...any) {
	fmt.Printf("❌ "+format+"\n", args...)
	os.Exit(1)
}
