package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vrptw/internal/integrations/solomon"
	"vrptw/internal/model"
	"vrptw/internal/opt"
	"vrptw/internal/store"
)

// RunsHandler handles POST/GET /v1/runs
func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createRun(w, r)
	case http.MethodGet:
		status := store.RunStatus(r.URL.Query().Get("status"))
		limit := queryInt(r, "limit", 100)
		items, err := s.Store.ListRuns(r.Context(), status, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List runs failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	var req model.RunRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateRunRequest(&req, s.Config.Server.MaxRunTime); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid run request", err.Error(), r.URL.Path)
		return
	}
	if req.Name == "" {
		req.Name = "instance"
	}
	inst, err := solomon.Text{Label: req.Name, Body: []byte(req.Instance)}.Load(r.Context())
	if err != nil {
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid instance", err.Error(), r.URL.Path)
		return
	}

	name := req.Strategy
	if name == "" {
		name = s.Config.Strategy
	}
	o := s.Config.Solver
	if req.Seed != 0 {
		o.Seed = req.Seed
	}
	o.VehicleLimit = o.VehicleLimit || req.VehicleLimit
	strategy, err := opt.ByName(name, o)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid run request", err.Error(), r.URL.Path)
		return
	}
	timeout := s.runTimeout(req.TimeoutMs)

	run, err := s.Store.CreateRun(r.Context(), store.Run{
		Name:           inst.Name,
		Strategy:       strategy.Name(),
		Seed:           o.Seed,
		Customers:      len(inst.Customers),
		Vehicles:       inst.Vehicles,
		TimeoutMs:      timeout.Milliseconds(),
		CallbackURL:    req.CallbackURL,
		CallbackSecret: req.CallbackSecret,
	})
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Create run failed", err.Error(), r.URL.Path)
		return
	}
	s.Runner.Start(run, inst, strategy, timeout)
	s.Log.Info("run started", "run", run.ID, "instance", inst.Name, "strategy", run.Strategy, "customers", run.Customers, "timeout", timeout)
	w.Header().Set("Location", "/v1/runs/"+run.ID)
	writeJSON(w, http.StatusAccepted, run)
}

// runTimeout resolves the requested timeout against the configured default
// and ceiling.
func (s *Server) runTimeout(ms int) time.Duration {
	d := time.Duration(ms) * time.Millisecond
	if d == 0 {
		d = s.Config.Timeout
	}
	if maxRun := s.Config.Server.MaxRunTime; maxRun > 0 && (d == 0 || d > maxRun) {
		d = maxRun
	}
	return d
}

// RunByIDHandler handles /v1/runs/{id} and its sub-resources
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	rest := strings.TrimPrefix(path, "/v1/runs/")
	if rest == path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", path)
		return
	}
	id, sub, _ := strings.Cut(rest, "/")
	switch sub {
	case "":
		switch r.Method {
		case http.MethodGet:
			s.getRun(w, r, id)
		case http.MethodDelete:
			s.cancelRun(w, r, id)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case "snapshots":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		items, err := s.Store.ListSnapshots(r.Context(), id, queryInt(r, "limit", 0))
		if err != nil {
			s.storeProblem(w, r, "List snapshots failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case "metrics":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if m, live := s.Runner.Metrics(id); live {
			writeJSON(w, http.StatusOK, map[string]any{"live": true, "metrics": m})
			return
		}
		m, err := s.Store.GetRunMetrics(r.Context(), id)
		if err != nil {
			s.storeProblem(w, r, "Get metrics failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"live": false, "metrics": m})
	case "events":
		s.RunEventsHandler(w, r, id)
	case "ws":
		s.RunStreamHandler(w, r, id)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", path)
	}
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request, id string) {
	run, err := s.Store.GetRun(r.Context(), id)
	if err != nil {
		s.storeProblem(w, r, "Get run failed", err)
		return
	}
	out := map[string]any{"run": run}
	snap, err := s.Store.LatestSnapshot(r.Context(), id)
	switch {
	case err == nil:
		sol := map[string]any{"seq": snap.Seq, "routes": snap.Routes, "distance": snap.Distance, "text": snap.Body}
		if len(snap.Detail) > 0 {
			sol["detail"] = json.RawMessage(snap.Detail)
		}
		out["solution"] = sol
	case !errors.Is(err, store.ErrNotFound):
		s.storeProblem(w, r, "Get run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) cancelRun(w http.ResponseWriter, r *http.Request, id string) {
	if s.Runner.Cancel(id) {
		writeJSON(w, http.StatusAccepted, map[string]any{"id": id, "status": "cancelling"})
		return
	}
	run, err := s.Store.GetRun(r.Context(), id)
	if err != nil {
		s.storeProblem(w, r, "Cancel run failed", err)
		return
	}
	writeProblem(w, http.StatusConflict, "Run not active", fmt.Sprintf("run is %s", run.Status), r.URL.Path)
}

// StrategiesHandler lists the strategies a run may request.
func (s *Server) StrategiesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": opt.Names, "default": s.Config.Strategy, "options": s.Config.Solver})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	type pinger interface {
		Ping(ctx context.Context) error
	}
	if p, ok := s.Broker.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) storeProblem(w http.ResponseWriter, r *http.Request, title string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", "run not found", r.URL.Path)
		return
	}
	writeProblem(w, http.StatusInternalServerError, title, err.Error(), r.URL.Path)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
