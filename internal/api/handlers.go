package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"dronematch/internal/buildinfo"
	"dronematch/internal/graph"
	"dronematch/internal/model"
	"dronematch/internal/opt"
	"dronematch/internal/scenario"
	"dronematch/internal/store"
)

// MatchesHandler handles POST/GET /v1/matches
func (s *Server) MatchesHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/matches" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodPost:
		s.createMatch(w, r)
	case http.MethodGet:
		lq, err := parseListQuery(r.URL.Query())
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid query", err.Error(), r.URL.Path)
			return
		}
		items, next, err := s.Store.ListMatches(r.Context(), lq.status, lq.cursor, lq.limit)
		if err != nil {
			writeError(w, r, "List matches failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// createMatch solves a posted scenario. With ?async=true it answers 202 at
// once and solves in the background; progress is then available from the
// monitor stream.
func (s *Server) createMatch(w http.ResponseWriter, r *http.Request) {
	if !s.allow() {
		w.Header().Set("Retry-After", "1")
		writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "solve rate limit exceeded", r.URL.Path)
		return
	}
	body := r.Body
	if s.maxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, s.maxBody)
	}
	sc, err := scenario.Decode(body)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	base, err := s.defaults(r.Context())
	if err != nil {
		writeError(w, r, "Load match config failed", err)
		return
	}
	g, fleet, cfg, err := sc.Build(base)
	if err != nil {
		writeError(w, r, "Invalid scenario", err)
		return
	}
	if err := validateMatchConfig(&cfg); err != nil {
		writeError(w, r, "Invalid match configuration", err)
		return
	}
	rec, err := s.Store.CreateMatch(r.Context(), store.Match{Name: sc.Name})
	if err != nil {
		writeError(w, r, "Create match failed", err)
		return
	}
	w.Header().Set("Location", "/v1/matches/"+rec.ID)

	if r.URL.Query().Get("async") == "true" {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_, _ = s.runMatch(s.base, rec, g, fleet, cfg)
		}()
		writeJSON(w, http.StatusAccepted, rec)
		return
	}
	rec, err = s.runMatch(r.Context(), rec, g, fleet, cfg)
	if err != nil {
		writeError(w, r, "Match failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// runMatch solves, persists the outcome and publishes events for rec.
// Monitor records are relayed through a buffer so a slow broker never
// stalls the search.
func (s *Server) runMatch(ctx context.Context, rec store.Match, g *graph.OperationalGraph, fleet model.FleetPool, cfg opt.MatchConfig) (store.Match, error) {
	relay := make(chan opt.MonitorRecord, 64)
	relayed := make(chan struct{})
	go func() {
		defer close(relayed)
		for mr := range relay {
			mr := mr
			s.Broker.Publish(rec.ID, Event{Type: EventMonitor, Record: &mr})
		}
	}()
	observer := func(mr opt.MonitorRecord) {
		select {
		case relay <- mr:
		default:
		}
	}
	res, err := opt.Match(ctx, g, fleet, cfg, opt.WithLogger(s.Log), opt.WithObserver(observer))
	close(relay)
	<-relayed

	// persist even when the request that started the solve went away
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err != nil {
		rec.Fail(err)
	} else {
		rec.Complete(res)
		if aerr := s.Store.AppendMonitorRecords(pctx, rec.ID, res.Records); aerr != nil {
			s.Log.Errorf("match %s: store monitor records: %v", rec.ID, aerr)
		}
	}
	if uerr := s.Store.UpdateMatch(pctx, rec); uerr != nil {
		s.Log.Errorf("match %s: store result: %v", rec.ID, uerr)
	}
	final := rec
	s.Broker.Publish(rec.ID, Event{Type: EventFinished, Match: &final})
	if herr := s.Hooks.Emit(EventFinished, finishedPayload(rec)); herr != nil {
		s.Log.Errorf("match %s: webhook: %v", rec.ID, herr)
	}
	return rec, err
}

func finishedPayload(rec store.Match) map[string]any {
	out := map[string]any{
		"matchId":   rec.ID,
		"status":    rec.Status,
		"objective": rec.Objective,
		"timedOut":  rec.TimedOut,
	}
	if rec.Board != nil {
		out["served"] = rec.Board.ServedCount()
		out["dropped"] = len(rec.Board.Dropped)
	}
	if rec.Error != "" {
		out["error"] = rec.Error
	}
	return out
}

// defaults returns the stored match config, or the configured one.
func (s *Server) defaults(ctx context.Context) (opt.MatchConfig, error) {
	cfg, err := s.Store.GetMatchConfig(ctx)
	if err != nil {
		return opt.MatchConfig{}, err
	}
	if cfg == nil {
		return s.Defaults, nil
	}
	return *cfg, nil
}

// MatchByIDHandler handles /v1/matches/{id}, /v1/matches/{id}/monitor and
// /v1/matches/{id}/stream
func (s *Server) MatchByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/matches/"), "/")
	parts := strings.Split(rest, "/")
	if rest == "" || len(parts) > 2 {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	id := parts[0]
	sub := ""
	if len(parts) == 2 {
		sub = parts[1]
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch sub {
	case "":
		rec, err := s.Store.GetMatch(r.Context(), id)
		if err != nil {
			writeError(w, r, "Get match failed", err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	case "monitor":
		recs, err := s.Store.ListMonitorRecords(r.Context(), id)
		if err != nil {
			writeError(w, r, "Get monitor records failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"matchId": id, "items": recs})
	case "stream":
		s.MonitorStreamHandler(w, r, id)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	}
}

// AdminMatchConfigHandler handles GET/PUT /v1/admin/match-config. PUT merges
// the body into the current default config.
func (s *Server) AdminMatchConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/match-config" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if p, err := s.Auth.RequireAdmin(r); err != nil {
		writeError(w, r, "Admin access required", err)
		return
	} else if p.Subject != "" {
		s.Log.Debugw("admin request", map[string]any{"subject": p.Subject, "method": r.Method})
	}
	switch r.Method {
	case http.MethodGet:
		stored, err := s.Store.GetMatchConfig(r.Context())
		if err != nil {
			writeError(w, r, "Load match config failed", err)
			return
		}
		source, cfg := "default", s.Defaults
		if stored != nil {
			source, cfg = "stored", *stored
		}
		writeJSON(w, http.StatusOK, map[string]any{"source": source, "config": cfg})
	case http.MethodPut:
		cfg, err := s.defaults(r.Context())
		if err != nil {
			writeError(w, r, "Load match config failed", err)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateMatchConfig(&cfg); err != nil {
			writeError(w, r, "Invalid match configuration", err)
			return
		}
		if err := s.Store.SaveMatchConfig(r.Context(), cfg); err != nil {
			writeError(w, r, "Save match config failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"source": "stored", "config": cfg})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "build": buildinfo.Info()})
}

// ReadyHandler checks the database and broker when they are remote.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	type pinger interface{ Ping(ctx context.Context) error }
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	for _, dep := range []any{s.Store, s.Broker} {
		if p, ok := dep.(pinger); ok {
			if err := p.Ping(ctx); err != nil {
				writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
				return
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// routeLabel collapses match ids so metrics keep a bounded label set.
func routeLabel(path string) string {
	if !strings.HasPrefix(path, "/v1/matches/") {
		return path
	}
	parts := strings.Split(strings.Trim(strings.TrimPrefix(path, "/v1/matches/"), "/"), "/")
	if len(parts) == 2 {
		return "/v1/matches/:id/" + parts[1]
	}
	return "/v1/matches/:id"
}
