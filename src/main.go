package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crosswarped.com/subsolve"
	"crosswarped.com/subsolve/internal/corpus"
	"crosswarped.com/subsolve/internal/modelstore"
	"crosswarped.com/subsolve/pkg/ngram"
)

const (
	projectID = "crosswarped-subsolve"

	maxCiphertextLength = 20000
	maxCorpusTextLength = 2 << 20
	maxCorpusRows       = 50000
	maxRestarts         = 32
	maxStallLimit       = 200000
	maxOrder            = 6

	modelTTL = 30 * time.Minute
)

type SolveRequest struct {
	Ciphertext   string `json:"ciphertext"`
	Order        int    `json:"order"`
	Restarts     int    `json:"restarts"`
	StallLimit   int    `json:"stallLimit"`
	Seed         uint64 `json:"seed"`
	CorpusTable  string `json:"corpusTable"`
	CorpusColumn string `json:"corpusColumn"`
	CorpusText   string `json:"corpusText"`
}

type SolveResponse struct {
	Success bool              `json:"success"`
	RunID   string            `json:"runId"`
	Results []subsolve.Result `json:"results"`
	Best    *subsolve.Result  `json:"best,omitempty"`
	Error   string            `json:"error,omitempty"`
}

var (
	logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

	storeOnce sync.Once
	store     *modelstore.Store
	storeErr  error
)

// models is shared by every request served by this instance.
func models() (*modelstore.Store, error) {
	storeOnce.Do(func() {
		store, storeErr = modelstore.Open(modelstore.Config{InMemory: true, Logger: logger, TTL: modelTTL})
	})
	return store, storeErr
}

func corpusParams(req SolveRequest) corpus.BigQueryParams {
	return corpus.BigQueryParams{
		Project: projectID,
		Table:   req.CorpusTable,
		Column:  req.CorpusColumn,
		Limit:   maxCorpusRows,
	}
}

func loadCorpus(ctx context.Context, req SolveRequest) (string, error) {
	if req.CorpusTable != "" {
		text, err := corpus.LoadBigQuery(ctx, corpusParams(req))
		if err != nil {
			return "", fmt.Errorf("LoadBigQuery: %w", err)
		}
		return text, nil
	}
	if strings.TrimSpace(req.CorpusText) == "" {
		return "", fmt.Errorf("one of corpusTable or corpusText is required")
	}
	return corpus.Normalize(req.CorpusText), nil
}

func validate(req *SolveRequest) error {
	req.Ciphertext = strings.ToUpper(corpus.Normalize(req.Ciphertext))
	if req.Ciphertext == "" {
		return fmt.Errorf("ciphertext must not be empty")
	}
	if len(req.Ciphertext) > maxCiphertextLength {
		return fmt.Errorf("ciphertext must be at most %d characters", maxCiphertextLength)
	}
	if len(req.CorpusText) > maxCorpusTextLength {
		return fmt.Errorf("corpusText must be at most %d bytes", maxCorpusTextLength)
	}

	if req.Order == 0 {
		req.Order = 3
	}
	if req.Order < 1 || req.Order > maxOrder {
		return fmt.Errorf("order must be between 1 and %d", maxOrder)
	}
	if req.Restarts == 0 {
		req.Restarts = subsolve.DefaultRestarts
	}
	if req.Restarts < 1 || req.Restarts > maxRestarts {
		return fmt.Errorf("restarts must be between 1 and %d", maxRestarts)
	}
	if req.StallLimit == 0 {
		req.StallLimit = subsolve.DefaultStallLimit
	}
	if req.StallLimit < 1 || req.StallLimit > maxStallLimit {
		return fmt.Errorf("stallLimit must be between 1 and %d", maxStallLimit)
	}
	if req.Seed == 0 {
		req.Seed = uint64(time.Now().UnixNano())
	}
	return nil
}

func execute(ctx context.Context, runID string, req SolveRequest) ([]subsolve.Result, error) {
	if err := validate(&req); err != nil {
		return nil, err
	}

	text, err := loadCorpus(ctx, req)
	if err != nil {
		return nil, err
	}
	s, err := models()
	if err != nil {
		return nil, fmt.Errorf("model store: %w", err)
	}
	model, hit, err := s.GetOrTrain(text, modelstore.Settings{Order: req.Order, Penalty: ngram.DefaultUnseenPenalty})
	if err != nil {
		return nil, err
	}
	runLog := logger.With("runId", runID)
	runLog.Info("model ready", "order", req.Order, "grams", model.Len(), "cached", hit)

	solver, err := subsolve.CreateSolver(req.Ciphertext, model, subsolve.SolverParams{
		Order:      req.Order,
		Restarts:   req.Restarts,
		StallLimit: req.StallLimit,
		Seed:       req.Seed,
		Logger:     runLog,
	})
	if err != nil {
		return nil, err
	}

	deadline, ok := ctx.Deadline()
	timeout := 1 * time.Minute
	if ok {
		timeout = time.Until(deadline) - 5*time.Second
		runLog.Info("setting timeout", "timeout", timeout)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results, err := solver.RunParallel(ctx)
	runLog.Info("search finished", "restarts", len(results), "seed", req.Seed, "error", err)
	return results, err
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Content-Type", "application/json")
}

func solve(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	runID := uuid.NewString()
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(SolveResponse{
			RunID: runID,
			Error: fmt.Sprintf("Method %s not allowed", r.Method),
		})
		return
	}

	var req SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid request body", "runId", runID, "error", err)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(SolveResponse{
			RunID: runID,
			Error: fmt.Sprintf("Invalid JSON: %v", err),
		})
		return
	}

	results, err := execute(r.Context(), runID, req)

	response := SolveResponse{
		Success: err == nil,
		RunID:   runID,
		Results: results,
	}
	if best, ok := subsolve.Best(results); ok {
		response.Best = &best
	}
	if err != nil {
		response.Error = err.Error()
	} else if len(results) == 0 {
		response.Error = "No restart finished"
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("encode response", "runId", runID, "error", err)
	}
}

func main() {
	funcframework.RegisterHTTPFunction("/solve", solve)
	funcframework.RegisterHTTPFunction("/metrics", promhttp.Handler().ServeHTTP)

	port := "8080"
	if envPort := os.Getenv("PORT"); envPort != "" {
		port = envPort
	}
	hostname := ""
	if localOnly := os.Getenv("LOCAL_ONLY"); localOnly == "true" {
		hostname = "127.0.0.1"
	}
	if err := funcframework.StartHostPort(hostname, port); err != nil {
		log.Fatalf("funcframework.StartHostPort: %v\n", err)
	}
}
