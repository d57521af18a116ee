package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/truework/truework/internal/config"
	"github.com/truework/truework/internal/engine"
	"github.com/truework/truework/internal/index"
	"github.com/truework/truework/internal/intake"
	"github.com/truework/truework/internal/models"
	"github.com/truework/truework/internal/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	ts, _ := newTestServerIntake(t, nil, "")
	return ts
}

// newTestServerIntake builds a server over real SQLite and Bleve stores in a
// temp dir, optionally with an intake watcher and a config path for
// persistence.
func newTestServerIntake(t *testing.T, watcher *intake.Watcher, configPath string) (*httptest.Server, *config.Config) {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{
		Storage: config.StorageConfig{
			DatabasePath:   filepath.Join(dir, "db", "submissions.db"),
			BleveIndexPath: filepath.Join(dir, "bleve"),
			UploadDir:      filepath.Join(dir, "uploads"),
		},
	}
	config.ApplyDefaults(cfg)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	idx, err := index.NewSubmissionIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })

	logger := zap.NewNop()
	eng := engine.NewEngine(&cfg.Analysis, logger)
	srv := NewServer(eng, store, idx, watcher, cfg, configPath, logger)

	ts := httptest.NewServer(srv.router())
	t.Cleanup(ts.Close)
	return ts, cfg
}

type uploadFile struct {
	name    string
	content string
}

func uploadFiles(t *testing.T, ts *httptest.Server, files []uploadFile, studentIDs []string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		fw, err := mw.CreateFormFile("files", f.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(f.content)); err != nil {
			t.Fatal(err)
		}
	}
	for _, id := range studentIDs {
		if err := mw.WriteField("student_ids", id); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(ts.URL+"/api/v1/submissions", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatal(err)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestUploadSubmissions(t *testing.T) {
	ts := newTestServer(t)
	resp := uploadFiles(t, ts, []uploadFile{
		{"s1_essay.txt", "the quick brown fox"},
		{"s2_essay.txt", "a completely different essay"},
	}, []string{"s1", "s2"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Saved   int      `json:"saved"`
		Skipped []string `json:"skipped"`
	}
	decodeBody(t, resp, &body)
	if body.Saved != 2 {
		t.Errorf("saved = %d", body.Saved)
	}

	listResp, err := http.Get(ts.URL + "/api/v1/submissions")
	if err != nil {
		t.Fatal(err)
	}
	var subs []models.Submission
	decodeBody(t, listResp, &subs)
	if len(subs) != 2 {
		t.Errorf("listed %d submissions", len(subs))
	}
}

func TestUploadSubmissions_countMismatch(t *testing.T) {
	ts := newTestServer(t)
	resp := uploadFiles(t, ts, []uploadFile{{"a.txt", "x"}}, []string{"s1", "s2"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestUploadSubmissions_noFiles(t *testing.T) {
	ts := newTestServer(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("student_ids", "s1")
	_ = mw.Close()
	resp, err := http.Post(ts.URL+"/api/v1/submissions", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestUploadSubmissions_skipsEmptyText(t *testing.T) {
	ts := newTestServer(t)
	resp := uploadFiles(t, ts, []uploadFile{{"blank.txt", "   \n\t "}}, []string{"s1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Saved   int      `json:"saved"`
		Skipped []string `json:"skipped"`
	}
	decodeBody(t, resp, &body)
	if body.Saved != 0 || len(body.Skipped) != 1 {
		t.Errorf("saved = %d, skipped = %v", body.Saved, body.Skipped)
	}
}

func analyzeBatch(t *testing.T, ts *httptest.Server) *models.Report {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/v1/analyze", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("analyze status = %d: %s", resp.StatusCode, body)
	}
	var rep models.Report
	decodeBody(t, resp, &rep)
	return &rep
}

func TestAnalyzeAndResults(t *testing.T) {
	ts := newTestServer(t)
	resp := uploadFiles(t, ts, []uploadFile{
		{"s1_essay.txt", "the industrial revolution changed manufacturing forever"},
		{"s2_essay.txt", "the industrial revolution changed manufacturing forever"},
		{"s3_essay.txt", "photosynthesis converts sunlight into chemical energy"},
	}, []string{"s1", "s2", "s3"})
	resp.Body.Close()

	rep := analyzeBatch(t, ts)
	if rep.RunID == "" {
		t.Error("run ID missing")
	}
	if rep.Submissions != 3 {
		t.Errorf("submissions = %d", rep.Submissions)
	}
	if rep.Summary.TotalComparisons != 3 {
		t.Errorf("comparisons = %d", rep.Summary.TotalComparisons)
	}

	resultsResp, err := http.Get(ts.URL + "/api/v1/results")
	if err != nil {
		t.Fatal(err)
	}
	var records []struct {
		DocA  int64   `json:"doc_a"`
		DocB  int64   `json:"doc_b"`
		Score float64 `json:"score"`
		Level string  `json:"level"`
	}
	decodeBody(t, resultsResp, &records)
	if len(records) != 3 {
		t.Fatalf("got %d results", len(records))
	}
	// Results are ordered by score; the identical pair comes first.
	if records[0].Score < 0.99 || records[0].Level != "critical" {
		t.Errorf("top result = %+v", records[0])
	}
}

func TestGraph(t *testing.T) {
	ts := newTestServer(t)
	resp := uploadFiles(t, ts, []uploadFile{
		{"s1_a.txt", "shared phrasing about economic policy outcomes"},
		{"s2_b.txt", "shared phrasing about economic policy outcomes"},
	}, []string{"s1", "s2"})
	resp.Body.Close()
	analyzeBatch(t, ts)

	graphResp, err := http.Get(ts.URL + "/api/v1/graph")
	if err != nil {
		t.Fatal(err)
	}
	var payload models.GraphPayload
	decodeBody(t, graphResp, &payload)
	if len(payload.Nodes) != 2 {
		t.Fatalf("nodes = %d", len(payload.Nodes))
	}
	if len(payload.Edges) != 1 {
		t.Fatalf("edges = %d", len(payload.Edges))
	}
	if !payload.Nodes[0].Suspicious || !payload.Nodes[1].Suspicious {
		t.Error("both nodes should be suspicious for an identical pair")
	}

	// A threshold above the score hides the edge but keeps the nodes.
	hiResp, err := http.Get(ts.URL + "/api/v1/graph?threshold=0.999999")
	if err != nil {
		t.Fatal(err)
	}
	decodeBody(t, hiResp, &payload)
	if len(payload.Nodes) != 2 {
		t.Errorf("nodes = %d", len(payload.Nodes))
	}
}

func TestGraph_invalidThreshold(t *testing.T) {
	ts := newTestServer(t)
	for _, raw := range []string{"abc", "-0.1", "1.5"} {
		resp, err := http.Get(ts.URL + "/api/v1/graph?threshold=" + raw)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("threshold %q: status = %d", raw, resp.StatusCode)
		}
	}
}

func TestSummary(t *testing.T) {
	ts := newTestServer(t)
	resp := uploadFiles(t, ts, []uploadFile{
		{"s1_a.txt", "identical submission body text"},
		{"s2_b.txt", "identical submission body text"},
	}, []string{"s1", "s2"})
	resp.Body.Close()
	analyzeBatch(t, ts)

	sumResp, err := http.Get(ts.URL + "/api/v1/summary")
	if err != nil {
		t.Fatal(err)
	}
	var summary models.Summary
	decodeBody(t, sumResp, &summary)
	if summary.TotalComparisons != 1 {
		t.Errorf("comparisons = %d", summary.TotalComparisons)
	}
	if summary.LevelCounts[models.LevelCritical] != 1 {
		t.Errorf("level counts = %v", summary.LevelCounts)
	}
	if len(summary.TopEdges) != 1 {
		t.Errorf("top edges = %v", summary.TopEdges)
	}
}

func TestSearch(t *testing.T) {
	ts := newTestServer(t)
	resp := uploadFiles(t, ts, []uploadFile{
		{"s1_a.txt", "mitochondria are the powerhouse of the cell"},
		{"s2_b.txt", "supply and demand determine market prices"},
	}, []string{"s1", "s2"})
	resp.Body.Close()

	body := strings.NewReader(`{"query": "powerhouse of the cell"}`)
	searchResp, err := http.Post(ts.URL+"/api/v1/search", "application/json", body)
	if err != nil {
		t.Fatal(err)
	}
	if searchResp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", searchResp.StatusCode)
	}
	var result struct {
		Matches []index.Match `json:"matches"`
	}
	decodeBody(t, searchResp, &result)
	if len(result.Matches) == 0 {
		t.Fatal("no matches")
	}
	if result.Matches[0].StudentID != "s1" {
		t.Errorf("top match = %+v", result.Matches[0])
	}
}

func TestSearch_emptyQuery(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/api/v1/search", "application/json", strings.NewReader(`{"query": "  "}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestClear(t *testing.T) {
	ts := newTestServer(t)
	resp := uploadFiles(t, ts, []uploadFile{
		{"s1_a.txt", "text one here"},
		{"s2_b.txt", "text two here"},
	}, []string{"s1", "s2"})
	resp.Body.Close()
	analyzeBatch(t, ts)

	clearResp, err := http.Post(ts.URL+"/api/v1/clear", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	clearResp.Body.Close()
	if clearResp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", clearResp.StatusCode)
	}

	statusResp, err := http.Get(ts.URL + "/api/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	var status map[string]interface{}
	decodeBody(t, statusResp, &status)
	if status["submissions"].(float64) != 0 || status["results"].(float64) != 0 {
		t.Errorf("status after clear = %v", status)
	}
}

func TestStatus(t *testing.T) {
	ts := newTestServer(t)
	resp := uploadFiles(t, ts, []uploadFile{{"s1_a.txt", "some text"}}, []string{"s1"})
	resp.Body.Close()

	statusResp, err := http.Get(ts.URL + "/api/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	var status map[string]interface{}
	decodeBody(t, statusResp, &status)
	if status["submissions"].(float64) != 1 {
		t.Errorf("submissions = %v", status["submissions"])
	}
	if _, ok := status["config"]; !ok {
		t.Error("config echo missing")
	}
	if _, ok := status["last_run_id"]; ok {
		t.Error("last_run_id should be omitted before the first run")
	}

	analyzeBatch(t, ts)
	statusResp, err = http.Get(ts.URL + "/api/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	decodeBody(t, statusResp, &status)
	if fmt.Sprint(status["last_run_id"]) == "" {
		t.Error("last_run_id missing after analyze")
	}
}

func TestAnalyze_emptyBatch(t *testing.T) {
	ts := newTestServer(t)
	rep := analyzeBatch(t, ts)
	if rep.Submissions != 0 || rep.Summary.TotalComparisons != 0 {
		t.Errorf("report = %+v", rep)
	}
}

func TestIntakeDirectories_notEnabled(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/intake/directories")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("list status = %d", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/api/v1/intake/directories", "application/json",
		strings.NewReader(`{"path": "/tmp"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("add status = %d", resp.StatusCode)
	}
}

func TestIntakeDirectories_addListRemove(t *testing.T) {
	watcher := intake.NewWatcher(nil, []string{".txt"}, true, func(string) {})
	if err := watcher.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(watcher.Stop)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	ts, cfg := newTestServerIntake(t, watcher, configPath)
	if err := config.Save(configPath, cfg); err != nil {
		t.Fatal(err)
	}

	drop := t.TempDir()
	addResp, err := http.Post(ts.URL+"/api/v1/intake/directories", "application/json",
		strings.NewReader(fmt.Sprintf(`{"path": %q, "sync": false}`, drop)))
	if err != nil {
		t.Fatal(err)
	}
	if addResp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(addResp.Body)
		addResp.Body.Close()
		t.Fatalf("add status = %d: %s", addResp.StatusCode, body)
	}
	addResp.Body.Close()

	var listed struct {
		Directories []string `json:"directories"`
	}
	listResp, err := http.Get(ts.URL + "/api/v1/intake/directories")
	if err != nil {
		t.Fatal(err)
	}
	decodeBody(t, listResp, &listed)
	if len(listed.Directories) != 1 || listed.Directories[0] != drop {
		t.Errorf("directories = %v", listed.Directories)
	}

	// The change is persisted to the config file.
	saved, err := config.Load(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved.Intake.Directories) != 1 || saved.Intake.Directories[0] != drop {
		t.Errorf("persisted directories = %v", saved.Intake.Directories)
	}

	req, err := http.NewRequest(http.MethodDelete,
		ts.URL+"/api/v1/intake/directories?path="+url.QueryEscape(drop), nil)
	if err != nil {
		t.Fatal(err)
	}
	rmResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	rmResp.Body.Close()
	if rmResp.StatusCode != http.StatusOK {
		t.Fatalf("remove status = %d", rmResp.StatusCode)
	}

	listResp, err = http.Get(ts.URL + "/api/v1/intake/directories")
	if err != nil {
		t.Fatal(err)
	}
	decodeBody(t, listResp, &listed)
	if len(listed.Directories) != 0 {
		t.Errorf("directories after remove = %v", listed.Directories)
	}
	saved, err = config.Load(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved.Intake.Directories) != 0 {
		t.Errorf("persisted directories after remove = %v", saved.Intake.Directories)
	}
}

func TestIntakeDirectoriesAdd_missingDirectory(t *testing.T) {
	watcher := intake.NewWatcher(nil, nil, true, nil)
	if err := watcher.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(watcher.Stop)
	ts, _ := newTestServerIntake(t, watcher, "")

	resp, err := http.Post(ts.URL+"/api/v1/intake/directories", "application/json",
		strings.NewReader(fmt.Sprintf(`{"path": %q}`, filepath.Join(t.TempDir(), "nope"))))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
