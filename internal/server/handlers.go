package server

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/truework/truework/internal/analysis"
	"github.com/truework/truework/internal/config"
	"github.com/truework/truework/internal/graph"
	"github.com/truework/truework/internal/models"
	"github.com/truework/truework/internal/report"
	"github.com/truework/truework/internal/storage"
)

// maxUploadBytes bounds one multipart upload request (64 MiB).
const maxUploadBytes = 64 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// uploadResponse reports how many files were ingested and which were skipped
// (no extractable text) or failed outright.
type uploadResponse struct {
	Saved   int      `json:"saved"`
	Skipped []string `json:"skipped,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// handleUploadSubmissions ingests a multipart batch: "files" paired with
// "student_ids" by order. A count mismatch rejects the whole request.
func (s *Server) handleUploadSubmissions(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	files := r.MultipartForm.File["files"]
	studentIDs := r.MultipartForm.Value["student_ids"]
	if len(files) == 0 {
		s.respondError(w, http.StatusBadRequest, "no files uploaded")
		return
	}
	if len(files) != len(studentIDs) {
		s.respondError(w, http.StatusBadRequest, "the number of files and student IDs must be the same")
		return
	}

	resp := uploadResponse{}
	for i, fh := range files {
		// Basename only: never trust client-supplied paths.
		filename := filepath.Base(fh.Filename)
		input := &models.SubmissionInput{StudentID: studentIDs[i], Filename: filename}
		if !input.Valid() {
			s.respondError(w, http.StatusBadRequest, "every file needs a student ID and filename")
			return
		}

		f, err := fh.Open()
		if err != nil {
			resp.Errors = append(resp.Errors, filename+": "+err.Error())
			continue
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			resp.Errors = append(resp.Errors, filename+": "+err.Error())
			continue
		}

		if dir := s.config.Storage.UploadDir; dir != "" {
			if err := os.MkdirAll(dir, 0755); err == nil {
				_ = os.WriteFile(filepath.Join(dir, filename), content, 0644)
			}
		}

		text, err := s.extractor.ExtractBytes(content, strings.ToLower(filepath.Ext(filename)))
		if err != nil {
			s.logger.Warn("text extraction failed", zap.String("filename", filename), zap.Error(err))
			resp.Errors = append(resp.Errors, filename+": "+err.Error())
			continue
		}
		if strings.TrimSpace(text) == "" {
			resp.Skipped = append(resp.Skipped, filename)
			continue
		}

		sub := &models.Submission{StudentID: input.StudentID, Filename: filename, Text: text}
		if err := s.storage.CreateSubmission(r.Context(), sub); err != nil {
			s.logger.Error("submission insert failed", zap.String("filename", filename), zap.Error(err))
			resp.Errors = append(resp.Errors, filename+": "+err.Error())
			continue
		}
		if err := s.index.Index(r.Context(), sub); err != nil {
			s.logger.Warn("submission indexing failed", zap.Int64("id", sub.ID), zap.Error(err))
		}
		resp.Saved++
	}
	s.respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.storage.ListSubmissions(r.Context())
	if err != nil {
		s.logger.Error("list submissions failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if subs == nil {
		subs = []*models.Submission{}
	}
	s.respondJSON(w, http.StatusOK, subs)
}

// handleAnalyze runs the full pipeline over the current batch and replaces
// all stored results atomically. Serialized against clear.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	subs, err := s.storage.ListSubmissions(r.Context())
	if err != nil {
		s.logger.Error("load batch failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	rep, err := s.engine.Run(r.Context(), subs)
	if err != nil {
		s.logger.Error("analysis run failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.storage.ReplaceResults(r.Context(), rep.RunID, rep.Pairs); err != nil {
		s.logger.Error("result replace failed", zap.String("run_id", rep.RunID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, rep)
}

// resultRecord is one stored pair with its re-derived suspicion level.
type resultRecord struct {
	DocA  int64                 `json:"doc_a"`
	DocB  int64                 `json:"doc_b"`
	Score float64               `json:"score"`
	Level models.SuspicionLevel `json:"level"`
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	pairs, err := s.storage.ListResults(r.Context())
	if err != nil {
		s.logger.Error("list results failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	records := make([]resultRecord, len(pairs))
	for i, p := range pairs {
		records[i] = resultRecord{
			DocA:  p.DocA,
			DocB:  p.DocB,
			Score: p.Score,
			Level: analysis.Classify(p.Score),
		}
	}
	s.respondJSON(w, http.StatusOK, records)
}

// handleGraph rebuilds the renderable graph from stored results. The
// visibility threshold can be overridden per request (?threshold=0.3).
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	threshold := s.config.Analysis.VisibilityThreshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			s.respondError(w, http.StatusBadRequest, "threshold must be a number in [0,1]")
			return
		}
		threshold = v
	}
	subs, err := s.storage.ListSubmissions(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	pairs, err := s.storage.ListResults(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	payload := graph.Build(subs, pairs, threshold, s.config.Analysis.CanvasWidth, s.config.Analysis.CanvasHeight)
	s.respondJSON(w, http.StatusOK, payload)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	subs, err := s.storage.ListSubmissions(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	pairs, err := s.storage.ListResults(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	payload := graph.Build(subs, pairs, s.config.Analysis.VisibilityThreshold,
		s.config.Analysis.CanvasWidth, s.config.Analysis.CanvasHeight)
	summary := report.Aggregate(pairs, payload.Edges, s.config.Analysis.TopEdges)
	s.respondJSON(w, http.StatusOK, summary)
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}
	matches, err := s.index.Search(r.Context(), req.Query, req.Limit)
	if err != nil {
		s.logger.Error("content search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"matches": matches})
}

// handleClear wipes the batch: submissions, results, and the content index.
// Serialized against analyze.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	if err := s.storage.Clear(r.Context()); err != nil {
		s.logger.Error("clear failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.index.Reset(); err != nil {
		s.logger.Error("index reset failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleIntakeDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.intake == nil {
		s.respondError(w, http.StatusNotImplemented, "intake not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.intake.Directories()})
}

type intakeAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleIntakeDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.intake == nil {
		s.respondError(w, http.StatusNotImplemented, "intake not enabled")
		return
	}
	var req intakeAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	if err := s.intake.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("intake add directory failed", zap.String("path", abs), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistIntakeDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleIntakeDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.intake == nil {
		s.respondError(w, http.StatusNotImplemented, "intake not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if err := s.intake.RemoveDirectory(abs); err != nil {
		s.logger.Error("intake remove directory failed", zap.String("path", abs), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistIntakeDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

// persistIntakeDirectories writes the watcher's current roots back to the
// config file so directory changes survive a restart.
func (s *Server) persistIntakeDirectories() {
	if s.configPath == "" {
		return
	}
	s.configMu.Lock()
	s.config.Intake.Directories = s.intake.Directories()
	err := config.Save(s.configPath, s.config)
	s.configMu.Unlock()
	if err != nil {
		s.logger.Warn("failed to persist intake directories", zap.Error(err))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subCount, err := s.storage.CountSubmissions(ctx)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resultCount, err := s.storage.CountResults(ctx)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	lastRun, err := s.storage.LastRunID(ctx)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := map[string]interface{}{
		"submissions": subCount,
		"results":     resultCount,
		"config": map[string]interface{}{
			"visibility_threshold": s.config.Analysis.VisibilityThreshold,
			"top_edges":            s.config.Analysis.TopEdges,
			"canvas_width":         s.config.Analysis.CanvasWidth,
			"canvas_height":        s.config.Analysis.CanvasHeight,
			"database_path":        s.config.Storage.DatabasePath,
			"bleve_index_path":     s.config.Storage.BleveIndexPath,
		},
	}
	if lastRun != "" {
		resp["last_run_id"] = lastRun
	}
	if n, err := s.index.Count(); err == nil {
		resp["indexed_submissions"] = n
	}
	if diskBytes, err := storage.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.BleveIndexPath,
		s.config.Storage.UploadDir,
	); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("response encoding failed", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
