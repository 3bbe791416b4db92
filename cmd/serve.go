package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/vehicle-catalog/internal/logring"
	"github.com/sells-group/vehicle-catalog/internal/model"
	"github.com/sells-group/vehicle-catalog/internal/pipeline"
	"github.com/sells-group/vehicle-catalog/internal/store"
)

var servePort int

const (
	shutdownTimeout = 15 * time.Second
	maxJobs         = 200
	defaultLogTail  = 100
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the catalog API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, envOptions{Mode: "serve", Store: true})
		if err != nil {
			return err
		}
		defer env.Close()

		handler := buildMux(ctx, env.Pipeline, env.Store, ring, cfg.Server.AllowedOrigins...)
		return startServer(ctx, handler, resolvePort(servePort, cfg.Server.Port))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// runner is the part of the pipeline the API needs.
type runner interface {
	Run(ctx context.Context, in pipeline.Input) (*model.ReconciliationResult, error)
}

// job tracks one asynchronous catalog run.
type job struct {
	ID        string                      `json:"id"`
	Status    string                      `json:"status"`
	RunID     string                      `json:"run_id,omitempty"`
	Error     string                      `json:"error,omitempty"`
	CreatedAt time.Time                   `json:"created_at"`
	Result    *model.ReconciliationResult `json:"result,omitempty"`
}

const (
	jobRunning  = "running"
	jobComplete = "complete"
	jobFailed   = "failed"
)

// jobTracker keeps the most recent jobs in memory.
type jobTracker struct {
	mu    sync.Mutex
	jobs  map[string]*job
	order []string
}

func newJobTracker() *jobTracker {
	return &jobTracker{jobs: make(map[string]*job)}
}

func (t *jobTracker) start() *job {
	t.mu.Lock()
	defer t.mu.Unlock()

	j := &job{ID: uuid.New().String(), Status: jobRunning, CreatedAt: time.Now().UTC()}
	t.jobs[j.ID] = j
	t.order = append(t.order, j.ID)
	for len(t.order) > maxJobs {
		delete(t.jobs, t.order[0])
		t.order = t.order[1:]
	}
	return j
}

func (t *jobTracker) finish(id string, fn func(j *job)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if j, ok := t.jobs[id]; ok {
		fn(j)
	}
}

func (t *jobTracker) get(id string) (job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[id]
	if !ok {
		return job{}, false
	}
	return *j, true
}

type server struct {
	ctx   context.Context
	p     runner
	store store.Store
	ring  *logring.Ring
	jobs  *jobTracker
}

// buildMux wires the API routes. p, st and ring may be nil; the routes
// that need them answer 503.
func buildMux(ctx context.Context, p runner, st store.Store, ring *logring.Ring, origins ...string) http.Handler {
	s := &server{ctx: ctx, p: p, store: st, ring: ring, jobs: newJobTracker()}
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/logs", s.logs)
		r.Post("/runs", s.createRun)
		r.Get("/runs", s.listRuns)
		r.Get("/runs/{id}", s.getRun)
		r.Get("/jobs/{id}", s.getJob)
		r.Get("/vehicles", s.listVehicles)
	})
	return r
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) logs(w http.ResponseWriter, r *http.Request) {
	n := queryInt(r, "limit", defaultLogTail)
	entries := []logring.Entry{}
	if s.ring != nil {
		entries = s.ring.Tail(n)
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// createRun starts a catalog run in the background and answers with the
// job id to poll.
func (s *server) createRun(w http.ResponseWriter, r *http.Request) {
	if s.p == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not configured")
		return
	}

	var in pipeline.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(in.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "urls is required")
		return
	}

	j := s.jobs.start()
	go s.execute(j.ID, in)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": jobRunning,
		"job_id": j.ID,
	})
}

func (s *server) execute(jobID string, in pipeline.Input) {
	log := zap.L().With(zap.String("job_id", jobID), zap.Int("urls", len(in.URLs)))

	result, err := s.p.Run(s.ctx, in)
	if err != nil {
		log.Error("api run failed", zap.Error(err))
		s.jobs.finish(jobID, func(j *job) {
			j.Status = jobFailed
			j.Error = err.Error()
		})
		return
	}

	var runID string
	if s.store != nil {
		runID, err = persist(s.ctx, s.store, result)
		if err != nil {
			log.Error("api run not stored", zap.Error(err))
		}
	}
	s.jobs.finish(jobID, func(j *job) {
		j.Status = jobComplete
		j.RunID = runID
		j.Result = result
		if err != nil {
			j.Error = err.Error()
		}
	})
	log.Info("api run complete",
		zap.String("run_id", runID),
		zap.Int("vehicles", len(result.Vehicles)),
		zap.Int("issues", len(result.Issues)),
	)
}

func (s *server) getJob(w http.ResponseWriter, r *http.Request) {
	j, ok := s.jobs.get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (s *server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "store not configured")
		return
	}
	runs, err := s.store.ListRuns(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		zap.L().Error("list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []store.RunRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "store not configured")
		return
	}
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		zap.L().Error("get run", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get run failed")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *server) listVehicles(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "store not configured")
		return
	}
	recs, err := s.store.ListVehicles(r.Context(), store.VehicleFilter{
		Brand: r.URL.Query().Get("brand"),
		Limit: queryInt(r, "limit", 0),
	})
	if err != nil {
		zap.L().Error("list vehicles", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list vehicles failed")
		return
	}
	if recs == nil {
		recs = []store.VehicleRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"vehicles": recs})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// resolvePort prefers the flag value over the configured port.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// startServer serves handler on port until ctx is done, then shuts down
// gracefully.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return eris.Wrap(err, "server listen")
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server shutdown")
	}
	return nil
}
