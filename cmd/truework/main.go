// Package main is the TrueWork CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/truework/truework/internal/cli"
	"github.com/truework/truework/internal/config"
	"github.com/truework/truework/internal/engine"
	"github.com/truework/truework/internal/extract"
	"github.com/truework/truework/internal/index"
	"github.com/truework/truework/internal/intake"
	"github.com/truework/truework/internal/models"
	"github.com/truework/truework/internal/server"
	"github.com/truework/truework/internal/storage"
	"github.com/truework/truework/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/truework/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "upload":
		runUpload()
	case "submissions":
		runSubmissions()
	case "analyze":
		runAnalyze()
	case "results":
		runResults()
	case "summary":
		runSummary()
	case "clear":
		runClear()
	case "status":
		runStatus()
	case "intake":
		runIntake()
	case "version", "--version", "-v":
		fmt.Printf("truework version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (intake events, run timings, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	idx, err := index.NewSubmissionIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		logger.Fatal("Failed to initialize content index", zap.Error(err))
	}
	defer idx.Close()

	eng := engine.NewEngine(&cfg.Analysis, logger)
	extractor := extract.NewExtractor()

	ingest := func(path string) {
		text, err := extractor.Extract(path)
		if err != nil {
			logger.Warn("intake extraction failed", zap.String("path", path), zap.Error(err))
			return
		}
		sub := &models.Submission{
			StudentID: intake.StudentLabel(path),
			Filename:  filepath.Base(path),
			Text:      text,
		}
		if err := store.CreateSubmission(context.Background(), sub); err != nil {
			logger.Warn("intake insert failed", zap.String("path", path), zap.Error(err))
			return
		}
		if err := idx.Index(context.Background(), sub); err != nil {
			logger.Warn("intake indexing failed", zap.Int64("id", sub.ID), zap.Error(err))
		}
	}
	watchOpts := []intake.Option{}
	if debugMode {
		watchOpts = append(watchOpts, intake.WithLogger(logger))
	}
	watcher := intake.NewWatcher(
		cfg.Intake.Directories,
		cfg.Intake.Extensions,
		cfg.Intake.RecursiveOrDefault(),
		ingest,
		watchOpts...,
	)
	if err := watcher.Start(); err != nil {
		logger.Fatal("Failed to start intake watcher", zap.Error(err))
	}
	defer watcher.Stop()
	watcher.SyncExistingFiles()

	srv := server.NewServer(eng, store, idx, watcher, cfg, resolvedConfigPath, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runUpload() {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	student := fs.String("student", "", "student ID for all files (default: derived from each filename)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: truework upload [flags] <file>...")
		os.Exit(1)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, path := range fs.Args() {
		content, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Read failed: %v\n", err)
			os.Exit(1)
		}
		part, err := mw.CreateFormFile("files", filepath.Base(path))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Upload build failed: %v\n", err)
			os.Exit(1)
		}
		if _, err := part.Write(content); err != nil {
			fmt.Fprintf(os.Stderr, "Upload build failed: %v\n", err)
			os.Exit(1)
		}
		label := *student
		if label == "" {
			label = intake.StudentLabel(path)
		}
		if err := mw.WriteField("student_ids", label); err != nil {
			fmt.Fprintf(os.Stderr, "Upload build failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := mw.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Upload build failed: %v\n", err)
		os.Exit(1)
	}

	resp, err := http.Post(*serverURL+"/api/v1/submissions", mw.FormDataContentType(), &body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Upload failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		fmt.Fprintf(os.Stderr, "Upload failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	fmt.Print(string(b))
}

func runSubmissions() {
	fs := flag.NewFlagSet("submissions", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var subs []*models.Submission
	if err := getJSON(*serverURL+"/api/v1/submissions", &subs); err != nil {
		fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSubmissions(os.Stdout, subs, cli.OutputFormat(*outputFormat)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runAnalyze() {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Post(*serverURL+"/api/v1/analyze", "application/json", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Analyze failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Analyze failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var rep models.Report
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		fmt.Fprintf(os.Stderr, "Decode failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteReport(os.Stdout, &rep, cli.OutputFormat(*outputFormat)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runResults() {
	fs := flag.NewFlagSet("results", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var records []cli.ResultRecord
	if err := getJSON(*serverURL+"/api/v1/results", &records); err != nil {
		fmt.Fprintf(os.Stderr, "Results failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteResults(os.Stdout, records, cli.OutputFormat(*outputFormat)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runSummary() {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var summary models.Summary
	if err := getJSON(*serverURL+"/api/v1/summary", &summary); err != nil {
		fmt.Fprintf(os.Stderr, "Summary failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSummary(os.Stdout, &summary, cli.OutputFormat(*outputFormat)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runClear() {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Post(*serverURL+"/api/v1/clear", "application/json", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Clear failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Clear failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	fmt.Println("Batch cleared.")
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	var status map[string]interface{}
	if err := getJSON(*serverURL+"/api/v1/status", &status); err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(status); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runIntake() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: truework intake <add|remove|list> [path]")
		fmt.Println("  truework intake add <path>     Add a drop directory")
		fmt.Println("  truework intake remove <path>  Remove a drop directory")
		fmt.Println("  truework intake list           List drop directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("intake", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[3:])
	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: truework intake add <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		body, _ := json.Marshal(map[string]interface{}{"path": path, "sync": true})
		resp, err := http.Post(*serverURL+"/api/v1/intake/directories", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Add failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: truework intake remove <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		req, _ := http.NewRequest(http.MethodDelete,
			*serverURL+"/api/v1/intake/directories?path="+url.QueryEscape(path), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Remove failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := getJSON(*serverURL+"/api/v1/intake/directories", &out); err != nil {
			fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fmt.Printf("Unknown intake subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func getJSON(url string, out interface{}) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func printUsage() {
	fmt.Println(`truework - Document similarity detection for student submissions

Usage:
  truework server [flags]            Start the HTTP server
  truework upload [flags] <file>...  Upload submissions
  truework submissions [flags]       List submissions
  truework analyze [flags]           Run the similarity analysis
  truework results [flags]           Show stored pair scores
  truework summary [flags]           Show the run summary
  truework clear [flags]             Clear all submissions and results
  truework status [flags]            Show server status
  truework intake <add|remove|list>  Manage submission drop directories
  truework version                   Show version
  truework help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/truework/config.yaml)
  --debug            Enable debug logging (intake events, run timings, etc.)

Client Flags:
  --server string    Server URL (default: http://localhost:8080)
  --output string    Output format: text or json (default: text)
  --student string   (upload) Student ID for all files; default derives one per filename

Examples:
  truework server
  truework upload --student s1234 essay.pdf
  truework upload s1234_essay.pdf s5678_essay.docx
  truework analyze
  truework summary --output json
  truework clear`)
}
