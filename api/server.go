// Package api exposes the scanner over HTTP: launch runs, poll their
// status, and read back stored listings.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"market-scanner/config"
	"market-scanner/models"
	"market-scanner/runner"
	"market-scanner/status"
	"market-scanner/utils"
)

// ListingReader is the read side of the listing store.
type ListingReader interface {
	FetchAll(ctx context.Context) ([]*models.Listing, error)
}

// Server wires the orchestrator and status store behind HTTP handlers.
type Server struct {
	log       *utils.Logger
	runner    *runner.Runner
	store     *status.Store
	catalogue *config.AreaCatalogue
	sources   []string
	listings  ListingReader
}

// NewServer builds a Server. sources lists the adapter IDs runs may use;
// listings may be nil when no queryable store is configured.
func NewServer(log *utils.Logger, r *runner.Runner, store *status.Store, cat *config.AreaCatalogue, sources []string, listings ListingReader) *Server {
	return &Server{
		log:       log,
		runner:    r,
		store:     store,
		catalogue: cat,
		sources:   sources,
		listings:  listings,
	}
}

// Router returns the HTTP route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/runs", s.handleStartRun).Methods(http.MethodPost)
	r.HandleFunc("/api/runs/{id}", s.handleGetRun).Methods(http.MethodGet)
	r.HandleFunc("/api/listings", s.handleListings).Methods(http.MethodGet)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type startRunRequest struct {
	Areas   []string `json:"areas"`
	Sources []string `json:"sources"`
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
			return
		}
	}

	sources := req.Sources
	if len(sources) == 0 {
		sources = s.sources
	}
	for _, src := range sources {
		if !contains(s.sources, src) {
			writeError(w, http.StatusBadRequest, fmt.Errorf("unknown source %q", src))
			return
		}
	}

	jobs, err := runner.BuildJobs(s.catalogue, req.Areas, sources, runner.DefaultStay(time.Now()))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	runID := uuid.NewString()
	if err := s.store.Set(r.Context(), &status.RunStatus{RunID: runID, State: status.StateRunning}); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	go s.executeRun(runID, jobs)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id": runID,
		"jobs":   len(jobs),
	})
}

// executeRun owns the background run and keeps the status store current.
func (s *Server) executeRun(runID string, jobs []models.Job) {
	stats, err := s.runner.RunWithID(context.Background(), runID, jobs)

	st := &status.RunStatus{RunID: runID, State: status.StateFinished, Stats: stats}
	if err != nil {
		st.State = status.StateFailed
		st.Error = err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := s.store.Set(ctx, st); serr != nil {
		s.log.Error("[api] run %s: status update failed: %v", runID, serr)
	}
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	st, err := s.store.Get(r.Context(), runID)
	if errors.Is(err, status.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleListings(w http.ResponseWriter, r *http.Request) {
	if s.listings == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("no listing store configured"))
		return
	}

	listings, err := s.listings.FetchAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(listings),
		"listings": listings,
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
