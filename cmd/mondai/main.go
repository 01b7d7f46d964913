// Package main is the Mondai CLI entry point.
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
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/mondai/internal/config"
	"github.com/hyperjump/mondai/internal/embedding"
	"github.com/hyperjump/mondai/internal/evaluator"
	"github.com/hyperjump/mondai/internal/extract"
	"github.com/hyperjump/mondai/internal/generator"
	"github.com/hyperjump/mondai/internal/ingest"
	"github.com/hyperjump/mondai/internal/llm"
	"github.com/hyperjump/mondai/internal/models"
	"github.com/hyperjump/mondai/internal/retriever"
	"github.com/hyperjump/mondai/internal/server"
	"github.com/hyperjump/mondai/internal/stats"
	"github.com/hyperjump/mondai/internal/storage"
	"github.com/hyperjump/mondai/internal/vector"
	"github.com/hyperjump/mondai/internal/watcher"
	"github.com/hyperjump/mondai/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/mondai/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "mondai server" from the project dir uses the project's
// config (including debug).
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
	// Optional .env for OPENAI_API_KEY during development.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "upload":
		runUpload()
	case "generate":
		runGenerate()
	case "answer":
		runAnswer()
	case "stats":
		runStats()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("mondai version %s\n", version)
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
	debug := fs.Bool("debug", false, "enable debug logging (ingestion events, watcher activity, etc.)")
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

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if err := components.Indexes.Load(cfg.Storage.IndexDir); err != nil {
		logger.Warn("index snapshots load skipped", zap.String("dir", cfg.Storage.IndexDir), zap.Error(err))
	}

	pipeline := components.Pipeline
	watchOpts := []watcher.WatcherOption{}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	watchSvc := watcher.NewWatcher(
		cfg.Watch.Directories,
		cfg.Watch.Extensions,
		cfg.Watch.RecursiveOrDefault(),
		func(path string) {
			if err := pipeline.IngestFile(context.Background(), path); err != nil {
				logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
			}
		},
		watchOpts...,
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	watchSvc.SyncExistingFiles()

	srv := server.NewServer(
		components.Storage,
		components.Pipeline,
		components.Generator,
		components.Evaluator,
		components.Stats,
		cfg.Storage.UploadDir,
		&cfg.Server,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	watchSvc.Stop()
	components.Pipeline.Wait()
	if err := components.Indexes.Save(cfg.Storage.IndexDir); err != nil {
		logger.Warn("index snapshots save failed", zap.String("dir", cfg.Storage.IndexDir), zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: mondai ingest [flags] <file>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()
	if err := components.Indexes.Load(cfg.Storage.IndexDir); err != nil {
		logger.Warn("index snapshots load skipped", zap.Error(err))
	}

	ctx := context.Background()
	if err := components.Pipeline.IngestFile(ctx, path); err != nil {
		fmt.Fprintf(os.Stderr, "Ingestion failed: %v\n", err)
		os.Exit(1)
	}
	components.Pipeline.Wait()

	abs, _ := filepath.Abs(path)
	lec, err := components.Storage.GetLectureByPath(ctx, abs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Lecture lookup failed: %v\n", err)
		os.Exit(1)
	}
	if lec.Status != models.StatusReady {
		fmt.Fprintf(os.Stderr, "Ingestion ended in %s: %s\n", lec.Status, lec.LastError)
		os.Exit(1)
	}
	if err := components.Indexes.Save(cfg.Storage.IndexDir); err != nil {
		logger.Warn("index snapshots save failed", zap.Error(err))
	}
	fmt.Printf("Lecture %d ingested: %s (%d chunks)\n", lec.ID, lec.Title, components.Indexes.Size(lec.ID))
}

func runUpload() {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	title := fs.String("title", "", "lecture title (default: filename)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: mondai upload [flags] <file>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Open failed: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if *title != "" {
		_ = mw.WriteField("title", *title)
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Upload failed: %v\n", err)
		os.Exit(1)
	}
	if _, err := io.Copy(fw, f); err != nil {
		fmt.Fprintf(os.Stderr, "Upload failed: %v\n", err)
		os.Exit(1)
	}
	mw.Close()

	resp, err := http.Post(*serverURL+"/api/v1/lectures", mw.FormDataContentType(), &body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Upload failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var lec models.LectureMaterial
	if err := json.NewDecoder(resp.Body).Decode(&lec); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Lecture %d uploaded, ingestion started. Check with: mondai status %d\n", lec.ID, lec.ID)
}

func runGenerate() {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	difficulty := fs.String("difficulty", "medium", "question difficulty: easy, medium, or hard")
	count := fs.Int("count", 5, "number of questions to generate")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: mondai generate [flags] <lecture-id>")
		os.Exit(1)
	}
	lectureID, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid lecture id: %s\n", fs.Arg(0))
		os.Exit(1)
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"lecture_id": lectureID,
		"difficulty": *difficulty,
		"count":      *count,
	})
	resp, err := http.Post(*serverURL+"/api/v1/generate", "application/json", bytes.NewReader(payload))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Generation failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var out struct {
		Questions []*models.QAPair `json:"questions"`
		Requested int              `json:"requested"`
		Partial   bool             `json:"partial"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	for _, q := range out.Questions {
		fmt.Printf("[%d] (%s) %s\n    %s\n", q.ID, q.Difficulty, q.Question, q.Answer)
	}
	if out.Partial {
		fmt.Printf("Generated %d of %d requested (duplicates discarded)\n", len(out.Questions), out.Requested)
	}
}

func runAnswer() {
	fs := flag.NewFlagSet("answer", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	student := fs.String("student", "cli", "student identifier")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 2 {
		fmt.Println("Usage: mondai answer [flags] <qa-id> <answer text>")
		os.Exit(1)
	}
	qaID, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid question id: %s\n", fs.Arg(0))
		os.Exit(1)
	}
	answerText := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))

	payload, _ := json.Marshal(map[string]interface{}{
		"qa_id":      qaID,
		"student_id": *student,
		"answer":     answerText,
	})
	resp, err := http.Post(*serverURL+"/api/v1/answers", "application/json", bytes.NewReader(payload))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Answer failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var record models.StudentAnswer
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	if record.IsCorrect {
		fmt.Println("Correct")
	} else {
		fmt.Println("Incorrect")
	}
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: mondai stats [flags] <lecture-id>")
		os.Exit(1)
	}
	resp, err := http.Get(*serverURL + "/api/v1/lectures/" + fs.Arg(0) + "/stats")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Stats failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var s models.LectureStats
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(s)
	case "text":
		fmt.Printf("questions:     %d\n", s.QuestionCount)
		fmt.Printf("answers:       %d\n", s.AnswerCount)
		fmt.Printf("answer_rate:   %.2f   # answers per question\n", s.AnswerRate)
		fmt.Printf("correct_rate:  %.2f   # fraction of answers graded correct\n", s.CorrectRate)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		// No lecture id: list all lectures.
		resp, err := http.Get(*serverURL + "/api/v1/lectures")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "List failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Lectures []*models.LectureMaterial `json:"lectures"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
		for _, lec := range out.Lectures {
			fmt.Printf("[%d] %-12s %s\n", lec.ID, lec.Status, lec.Title)
		}
		return
	}

	resp, err := http.Get(*serverURL + "/api/v1/lectures/" + fs.Arg(0) + "/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Status failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var out struct {
		Status    models.LectureStatus `json:"status"`
		LastError string               `json:"last_error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(out.Status)
	if out.LastError != "" {
		fmt.Printf("last error: %s\n", out.LastError)
	}
}

// Components holds initialized services.
type Components struct {
	Storage   storage.Storage
	Embedder  embedding.Embedder
	Indexes   *vector.Manager
	Pipeline  *ingest.Pipeline
	Generator *generator.Generator
	Evaluator *evaluator.Evaluator
	Stats     *stats.Aggregator
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	for _, dir := range []string{cfg.Storage.IndexDir, cfg.Storage.UploadDir, filepath.Dir(cfg.Storage.DatabasePath)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	apiKey := cfg.OpenAI.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		_ = store.Close()
		return nil, fmt.Errorf("openai api key required (set openai.api_key or OPENAI_API_KEY)")
	}

	embedder, err := embedding.NewOpenAIEmbedder(
		apiKey,
		cfg.OpenAI.BaseURL,
		cfg.OpenAI.EmbeddingModel,
		cfg.OpenAI.EmbeddingDimensions,
		cfg.OpenAI.CacheSize,
		cfg.OpenAI.RequestTimeout(),
	)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	completer, err := llm.NewOpenAICompleter(
		apiKey,
		cfg.OpenAI.BaseURL,
		cfg.OpenAI.ChatModel,
		float32(cfg.OpenAI.Temperature),
		cfg.OpenAI.RequestTimeout(),
	)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize completer: %w", err)
	}

	indexes, err := vector.NewManager(cfg.OpenAI.EmbeddingDimensions)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize vector indexes: %w", err)
	}

	chunker, err := ingest.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize chunker: %w", err)
	}

	pipeOpts := []ingest.PipelineOption{}
	if debug {
		pipeOpts = append(pipeOpts, ingest.WithLogger(logger))
	}
	pipeline := ingest.NewPipeline(store, embedder, indexes, chunker, extract.NewExtractor(), pipeOpts...)

	r := retriever.New(embedder, indexes)
	gen := generator.New(store, r, completer, cfg.Generation, logger)
	matcher := evaluator.NewTwoTierMatcher(embedder, cfg.Evaluation.SemanticThreshold)
	eval := evaluator.New(store, matcher, logger)
	agg := stats.New(store, cfg.Stats.CacheTTL())

	logger.Info("components initialized",
		zap.String("chat_model", cfg.OpenAI.ChatModel),
		zap.String("embedding_model", cfg.OpenAI.EmbeddingModel),
		zap.Int("embedding_dimensions", cfg.OpenAI.EmbeddingDimensions),
	)

	return &Components{
		Storage:   store,
		Embedder:  embedder,
		Indexes:   indexes,
		Pipeline:  pipeline,
		Generator: gen,
		Evaluator: eval,
		Stats:     agg,
	}, nil
}

func printUsage() {
	fmt.Println(`mondai - lecture Q&A generation service

Usage:
  mondai server [flags]                  Start the HTTP server
  mondai ingest [flags] <file>           Ingest a lecture file directly (no server needed)
  mondai upload [flags] <file>           Upload a lecture to a running server
  mondai generate [flags] <lecture-id>   Generate Q&A pairs for a lecture
  mondai answer [flags] <qa-id> <text>   Submit and grade a student answer
  mondai stats [flags] <lecture-id>      Show per-lecture answer statistics
  mondai status [flags] [lecture-id]     Show lecture status (or list all lectures)
  mondai version                         Show version
  mondai help                            Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/mondai/config.yaml)
  --debug            Enable debug logging (ingestion events, watcher activity, etc.)

Ingest Flags:
  --config string    Config file path

Upload Flags:
  --server string    Server URL (default: http://localhost:8080)
  --title string     Lecture title (default: filename)

Generate Flags:
  --server string       Server URL (default: http://localhost:8080)
  --difficulty string   easy, medium, or hard (default: medium)
  --count int           Number of questions (default: 5)

Answer Flags:
  --server string    Server URL (default: http://localhost:8080)
  --student string   Student identifier (default: cli)

Stats Flags:
  --server string    Server URL (default: http://localhost:8080)
  --output string    Output format: text or json (default: text)

Examples:
  mondai server
  mondai upload --title "Operating Systems 07" lecture07.pdf
  mondai status 3
  mondai generate --difficulty hard --count 5 3
  mondai answer 12 virtual memory decouples addresses from physical frames
  mondai stats 3`)
}
