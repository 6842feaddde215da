package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/florasync/florasync/internal/checkpoint"
	"github.com/florasync/florasync/internal/health"
	"github.com/florasync/florasync/internal/provider"
	"github.com/florasync/florasync/internal/versions"
)

type ctxKey int

const providerKey ctxKey = iota

// requireProvider resolves the {name} URL parameter to a known provider
// and rejects unknown ones with 404.
func (s *Server) requireProvider(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		client, ok := s.clients[name]
		if !ok {
			writeError(w, "unknown provider", http.StatusNotFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), providerKey, client)))
	})
}

func clientFrom(r *http.Request) *provider.Client {
	client, _ := r.Context().Value(providerKey).(*provider.Client)
	return client
}

func (*Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (*Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, versions.GetVersionInfo(), http.StatusOK)
}

// providerSummary is the list view of one provider's state
type providerSummary struct {
	Name         string                `json:"name"`
	Configured   bool                  `json:"configured"`
	CircuitState string                `json:"circuitState"`
	Health       health.Score          `json:"health"`
	Stats        provider.RequestStats `json:"stats"`
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	summaries := make([]providerSummary, 0, len(s.clients))
	for _, name := range s.runner.Providers() {
		client := s.clients[name]
		stats := client.Stats()
		score := health.Compute(stats)
		s.providerMetrics.RecordHealthScore(r.Context(), name, int64(score.Score))

		summaries = append(summaries, providerSummary{
			Name:         name,
			Configured:   client.IsConfigured(),
			CircuitState: string(client.CircuitState().State),
			Health:       score,
			Stats:        stats,
		})
	}
	writeJSON(w, summaries, http.StatusOK)
}

func (*Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, clientFrom(r).Stats(), http.StatusOK)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	client := clientFrom(r)
	score := health.Compute(client.Stats())
	s.providerMetrics.RecordHealthScore(r.Context(), client.Name(), int64(score.Score))
	writeJSON(w, score, http.StatusOK)
}

func (*Server) handleCircuit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, clientFrom(r).CircuitState(), http.StatusOK)
}

func (s *Server) handleCheckpoint(w http.ResponseWriter, r *http.Request) {
	client := clientFrom(r)

	cp, err := s.checkpoints.Get(r.Context(), client.Name())
	if err != nil {
		// State reads degrade to a zeroed snapshot rather than failing
		s.log.Warnw("checkpoint read failed, returning empty snapshot",
			"provider", client.Name(), "error", err)
		cp = &checkpoint.Checkpoint{}
	}
	if cp == nil {
		cp = &checkpoint.Checkpoint{}
	}
	writeJSON(w, cp, http.StatusOK)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	client := clientFrom(r)

	start := time.Now()
	report, err := s.runner.RunImport(r.Context(), client.Name())
	s.syncMetrics.RecordRunDuration(r.Context(), client.Name(), "import", time.Since(start), err == nil)
	if report != nil {
		s.syncMetrics.RecordItemsCreated(r.Context(), client.Name(), int64(report.ItemsCreated))
	}

	if err != nil {
		s.writeRunError(w, report, err)
		return
	}
	writeJSON(w, report, http.StatusOK)
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	client := clientFrom(r)

	start := time.Now()
	report, err := s.runner.RunEnrichment(r.Context(), client.Name())
	s.syncMetrics.RecordRunDuration(r.Context(), client.Name(), "enrich", time.Since(start), err == nil)

	if err != nil {
		s.writeRunError(w, report, err)
		return
	}
	writeJSON(w, report, http.StatusOK)
}

// writeRunError maps run failures to responses, attaching any partial
// report so the operator sees what was committed before the failure.
func (s *Server) writeRunError(w http.ResponseWriter, report any, err error) {
	status := http.StatusBadGateway
	if errors.Is(err, provider.ErrNotConfigured) {
		status = http.StatusConflict
	}
	writeJSON(w, map[string]any{
		"error":  err.Error(),
		"report": report,
	}, status)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	client := clientFrom(r)
	client.Reset()

	response := map[string]any{"reset": "stats"}
	if r.URL.Query().Get("checkpoint") == "true" {
		if err := s.checkpoints.Reset(r.Context(), client.Name()); err != nil {
			writeError(w, "failed to reset checkpoint: "+err.Error(), http.StatusInternalServerError)
			return
		}
		response["reset"] = "stats and checkpoint"
	}

	s.log.Infow("provider reset via admin api", "provider", client.Name())
	writeJSON(w, response, http.StatusOK)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	writeJSON(w, s.history.Recent(limit), http.StatusOK)
}
