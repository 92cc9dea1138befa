// Package server exposes evaluations over HTTP: registration, event streams
// via Server-Sent Events or websocket, and catalog and run listings.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashstep2/agent-eval-harness/internal/catalog"
	"github.com/ashstep2/agent-eval-harness/internal/config"
	"github.com/ashstep2/agent-eval-harness/internal/registry"
	"github.com/ashstep2/agent-eval-harness/internal/result"
	"github.com/ashstep2/agent-eval-harness/internal/runner"
)

const notFoundMessage = "Evaluation not found"

type Server struct {
	Runner   *runner.Runner
	Registry *registry.Registry
	// Store backs /api/runs; nil lists nothing.
	Store   result.Store
	Secrets *config.Secrets
	EnvFile string
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/agent-eval", s.handleCreate)
	mux.HandleFunc("GET /api/agent-eval/{id}/stream", s.handleStream)
	mux.HandleFunc("GET /api/agent-eval/{id}/ws", s.handleWebsocket)
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleRun)
	mux.HandleFunc("GET /api/tasks", s.handleTasks)
	mux.HandleFunc("GET /api/models", s.handleModels)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		clog.InfoContextf(ctx, "listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in runner.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := in.Resolve(s.Runner.Catalog); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in.ID = "eval_" + uuid.NewString()
	if err := s.Registry.Create(in.ID, in); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	clog.FromContext(r.Context()).Infof("registered evaluation %s for task %s", in.ID, in.TaskID)
	writeJSON(w, http.StatusOK, map[string]string{"evaluationId": in.ID})
}

// lookup resolves the run input for id: the registered entry, else one
// described by query parameters.
func (s *Server) lookup(r *http.Request) (runner.Input, bool, error) {
	id := r.PathValue("id")
	in, err := s.Registry.Take(id)
	if err == nil {
		return in, true, nil
	}
	if !errors.Is(err, registry.ErrNotFound) {
		return runner.Input{}, false, err
	}
	q := r.URL.Query()
	if q.Get("taskId") == "" {
		return runner.Input{}, false, nil
	}
	in, err = InputFromQuery(q)
	if err != nil {
		return runner.Input{}, false, err
	}
	in.ID = id
	return in, true, nil
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	in, ok, err := s.lookup(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, notFoundMessage)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for e := range s.Runner.Run(r.Context(), in) {
		data, err := json.Marshal(runner.Wrap(e))
		if err != nil {
			clog.FromContext(r.Context()).Warnf("encoding %s event: %v", e.Kind(), err)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return
		}
		flusher.Flush()
	}
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs := []*result.EvaluationRun{}
	if s.Store != nil {
		loaded, err := s.Store.LoadAll(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if loaded != nil {
			runs = loaded
		}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeError(w, http.StatusNotFound, notFoundMessage)
		return
	}
	run, err := s.Store.Load(r.Context(), r.PathValue("id"))
	if errors.Is(err, result.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFoundMessage)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleTasks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Runner.Catalog.Tasks())
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"models":     catalog.Models,
		"headToHead": catalog.DefaultHeadToHead,
		"judges":     s.Runner.Scorer.Panel.Judges(),
		"presets":    catalog.PresetNames(),
		"dimensions": catalog.Dimensions,
	})
}

type healthResponse struct {
	OK      bool     `json:"ok"`
	Missing []string `json:"missing,omitempty"`
	Message string   `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	var missing []string
	if s.Secrets != nil {
		missing = s.Secrets.Missing()
	}
	if len(missing) == 0 {
		writeJSON(w, http.StatusOK, healthResponse{OK: true})
		return
	}
	envFile := s.EnvFile
	if envFile == "" {
		envFile = ".env.local"
	}
	msg := fmt.Sprintf("Missing API keys: %s. Add them to %s and restart the dev server.", strings.Join(missing, ", "), envFile)
	writeJSON(w, http.StatusServiceUnavailable, healthResponse{
		Missing: missing,
		Message: msg,
		Error:   msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
