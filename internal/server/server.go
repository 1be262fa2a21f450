package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"metricindex/internal/bktree"
	"metricindex/internal/lookup"
	"metricindex/internal/match"
	"metricindex/internal/models"
	"metricindex/internal/storage"
)

// Defaults for query parameters
const (
	defaultMaxDistance  = 1
	defaultHistoryLimit = 20
	maxRequestBody      = 10 << 20
)

// Server exposes a dictionary and the stored image groups over a JSON API
type Server struct {
	dict        *lookup.Dictionary
	storage     *storage.Storage
	logger      *slog.Logger
	port        int
	idleTimeout time.Duration
	httpServer  *http.Server

	// Idle timeout management
	mu           sync.Mutex
	lastActivity time.Time
	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

// New creates a Server. The dictionary must already hold the stored terms.
func New(store *storage.Storage, dict *lookup.Dictionary, port int, idleTimeout time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		dict:         dict,
		storage:      store,
		logger:       logger,
		port:         port,
		idleTimeout:  idleTimeout,
		lastActivity: time.Now(),
		shutdownChan: make(chan struct{}),
	}
}

// Handler returns the API routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("POST /api/terms", s.handleAddTerms)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/clusters", s.handleClusters)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/groups", s.handleGroups)
	return mux
}

// Start serves until a shutdown signal or the idle timeout
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.idleTimeout > 0 {
		go s.idleTimeoutChecker()
	}

	done := make(chan struct{})
	go func() {
		s.handleShutdownSignals()
		close(done)
	}()

	s.logger.Info("server listening", "addr", s.httpServer.Addr, "terms", s.dict.Len())
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		<-done
		return nil
	}
	return err
}

func (s *Server) handleShutdownSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		s.logger.Info("shutting down server", "signal", sig.String())
	case <-s.shutdownChan:
		s.logger.Info("idle timeout reached, shutting down server", "timeout", s.idleTimeout)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown failed", "error", err)
	}
}

func (s *Server) idleTimeoutChecker() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			idle := time.Since(s.lastActivity)
			s.mu.Unlock()

			if idle >= s.idleTimeout {
				s.shutdownOnce.Do(func() { close(s.shutdownChan) })
				return
			}
		case <-s.shutdownChan:
			return
		}
	}
}

func (s *Server) recordActivity() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// API Handlers

type searchResponse struct {
	QueryID     string         `json:"query_id,omitempty"`
	Term        string         `json:"term"`
	MaxDistance int            `json:"max_distance"`
	Matches     []models.Match `json:"matches"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.recordActivity()

	term := r.URL.Query().Get("q")
	if term == "" {
		s.writeError(w, http.StatusBadRequest, "q required")
		return
	}
	k, err := intParam(r, "k", defaultMaxDistance)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	matches, err := s.dict.Lookup(term, k)
	if errors.Is(err, bktree.ErrNegativeDistance) {
		s.writeError(w, http.StatusBadRequest, "k must not be negative")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if matches == nil {
		matches = []models.Match{}
	}

	resp := searchResponse{Term: term, MaxDistance: k, Matches: matches}
	if q, err := s.storage.RecordQuery(term, k, len(matches)); err != nil {
		s.logger.Warn("failed to record query", "term", term, "error", err)
	} else {
		resp.QueryID = q.ID
	}

	s.logger.Debug("search", "term", term, "k", k, "matches", len(matches))
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddTerms(w http.ResponseWriter, r *http.Request) {
	s.recordActivity()

	var req struct {
		Terms  []string `json:"terms"`
		Source string   `json:"source,omitempty"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Source == "" {
		req.Source = "api"
	}

	terms := s.dict.Normalize(req.Terms...)
	if _, err := s.storage.SaveTerms(terms, req.Source); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	added := s.dict.Add(terms...)

	s.logger.Info("terms added", "received", len(req.Terms), "added", added, "source", req.Source)
	s.writeJSON(w, http.StatusOK, map[string]int{
		"added": added,
		"total": s.dict.Len(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.recordActivity()

	groups, err := s.storage.GetGroupCount()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"terms":        s.dict.Len(),
		"tree":         s.dict.Stats(),
		"image_groups": groups,
	})
}

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	s.recordActivity()

	k, err := intParam(r, "k", defaultMaxDistance)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if k < 0 {
		s.writeError(w, http.StatusBadRequest, "k must not be negative")
		return
	}

	clusters := match.TermClusters(s.dict.Terms(), k)
	if clusters == nil {
		clusters = []*models.TermCluster{}
	}
	s.writeJSON(w, http.StatusOK, clusters)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.recordActivity()

	n, err := intParam(r, "n", defaultHistoryLimit)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if n < 0 {
		s.writeError(w, http.StatusBadRequest, "n must not be negative")
		return
	}

	queries, err := s.storage.RecentQueries(n)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if queries == nil {
		queries = []*models.Query{}
	}
	s.writeJSON(w, http.StatusOK, queries)
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	s.recordActivity()

	groups, err := s.storage.GetDuplicateGroups()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if groups == nil {
		groups = []*models.DuplicateGroup{}
	}
	s.writeJSON(w, http.StatusOK, groups)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
