package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/nemuri/internal/catalog"
	"github.com/hyperjump/nemuri/internal/config"
	"github.com/hyperjump/nemuri/internal/models"
	"github.com/hyperjump/nemuri/internal/score"
)

const testXML = `<?xml version="1.0" encoding="UTF-8"?>
<scores>
  <rater name="Alice">
    <epoch id="e1">
      <start_time>0</start_time>
      <end_time>30</end_time>
      <stage>Wake</stage>
    </epoch>
    <epoch id="e2">
      <start_time>30</start_time>
      <end_time>60</end_time>
      <stage>NREM1</stage>
    </epoch>
    <epoch id="e3">
      <start_time>60</start_time>
      <end_time>90</end_time>
      <stage>REM</stage>
    </epoch>
  </rater>
</scores>
`

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "night1.xml")
	if err := os.WriteFile(path, []byte(testXML), 0644); err != nil {
		t.Fatal(err)
	}
	store, err := score.Open(path, score.WithLogger(zap.NewNop()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	cat, err := catalog.NewSQLiteCatalog(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cat.Close() })
	cfg := &config.ServerConfig{Host: "localhost", Port: 8080}
	return NewServer(store, cat, cfg, zap.NewNop()), path
}

func do(t *testing.T, srv *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, r)
	return w
}

func TestHandleRater(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/api/v1/rater", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Rater  string   `json:"rater"`
		Raters []string `json:"raters"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Rater != "Alice" {
		t.Errorf("rater: got %q", out.Rater)
	}
	if len(out.Raters) != 1 || out.Raters[0] != "Alice" {
		t.Errorf("raters: got %v", out.Raters)
	}
}

func TestHandleEpochs(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/api/v1/epochs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Epochs []models.Epoch `json:"epochs"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Epochs) != 3 {
		t.Fatalf("epochs: got %d, want 3", len(out.Epochs))
	}
}

func TestHandleEpochsStageFilter(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/api/v1/epochs?stages=NREM1,REM", nil)
	var out struct {
		Epochs []models.Epoch `json:"epochs"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Epochs) != 2 {
		t.Fatalf("epochs: got %d, want 2", len(out.Epochs))
	}
	for _, e := range out.Epochs {
		if e.Stage != "NREM1" && e.Stage != "REM" {
			t.Errorf("unexpected stage %q", e.Stage)
		}
	}

	// Present but empty filter matches nothing.
	w = do(t, srv, http.MethodGet, "/api/v1/epochs?stages=", nil)
	out.Epochs = nil
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Epochs) != 0 {
		t.Errorf("empty filter: got %d epochs, want 0", len(out.Epochs))
	}
}

func TestHandleGetStage(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/api/v1/epochs/e2/stage", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out map[string]string
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["stage"] != "NREM1" {
		t.Errorf("stage: got %q", out["stage"])
	}

	w = do(t, srv, http.MethodGet, "/api/v1/epochs/missing/stage", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown id status: got %d, want 404", w.Code)
	}
}

func TestHandleSetStage(t *testing.T) {
	srv, path := newTestServer(t)
	body, _ := json.Marshal(map[string]string{"stage": "NREM2"})
	w := do(t, srv, http.MethodPut, "/api/v1/epochs/e2/stage", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}

	// Mutation is persisted to the document on disk. Close first so the
	// advisory lock does not reject the second open.
	srv.store.Close()
	reopened, err := score.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	stage, err := reopened.Stage("e2")
	if err != nil {
		t.Fatal(err)
	}
	if stage != "NREM2" {
		t.Errorf("persisted stage: got %q, want NREM2", stage)
	}
}

func TestHandleSetStageErrors(t *testing.T) {
	srv, path := newTestServer(t)
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(map[string]string{"stage": "NREM2"})
	w := do(t, srv, http.MethodPut, "/api/v1/epochs/missing/stage", body)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown id status: got %d, want 404", w.Code)
	}

	w = do(t, srv, http.MethodPut, "/api/v1/epochs/e1/stage", []byte(`{"stage": ""}`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty stage status: got %d, want 400", w.Code)
	}

	w = do(t, srv, http.MethodPut, "/api/v1/epochs/e1/stage", []byte("not json"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad body status: got %d, want 400", w.Code)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Error("document changed despite rejected requests")
	}
}

func TestHandleStats(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/api/v1/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Rater            string `json:"rater"`
		TotalEpochs      int    `json:"total_epochs"`
		SleepSeconds     int    `json:"sleep_seconds"`
		SleepOnsetSec    int    `json:"sleep_onset_seconds"`
		RecordingSeconds int    `json:"recording_seconds"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Rater != "Alice" || out.TotalEpochs != 3 {
		t.Errorf("summary: got rater %q, epochs %d", out.Rater, out.TotalEpochs)
	}
	if out.SleepSeconds != 60 {
		t.Errorf("sleep seconds: got %v, want 60", out.SleepSeconds)
	}
	if out.SleepOnsetSec != 30 {
		t.Errorf("sleep onset: got %v, want 30", out.SleepOnsetSec)
	}
}

func TestHandleStatus(t *testing.T) {
	srv, path := newTestServer(t)
	if err := srv.catalog.Upsert(context.Background(), &catalog.Entry{
		Path: path, Rater: "Alice", EpochCount: 3, ScoredSeconds: 90,
	}); err != nil {
		t.Fatal(err)
	}
	w := do(t, srv, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Document           string `json:"document"`
		Epochs             int    `json:"epochs"`
		CatalogedDocuments int    `json:"cataloged_documents"`
		DiskUsageBytes     int64  `json:"disk_usage_bytes"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Document != path || out.Epochs != 3 {
		t.Errorf("status body: got %+v", out)
	}
	if out.CatalogedDocuments != 1 {
		t.Errorf("cataloged documents: got %d, want 1", out.CatalogedDocuments)
	}
	if out.DiskUsageBytes <= 0 {
		t.Errorf("disk usage: got %d, want > 0", out.DiskUsageBytes)
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ok") {
		t.Errorf("body: got %s", w.Body.String())
	}
}
