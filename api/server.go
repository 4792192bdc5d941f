// Package api exposes live training statistics and stored episodes over
// HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/milk9111/tankrl/store"
	"github.com/milk9111/tankrl/trainer"
)

type SnapshotSource interface {
	Snapshot() trainer.Snapshot
}

type EpisodeSource interface {
	ListEpisodes(ctx context.Context, limit, offset int) ([]store.Episode, error)
	GetEpisode(ctx context.Context, id string) (*store.Episode, error)
	Summary(ctx context.Context) (store.Summary, error)
}

type Server struct {
	live     SnapshotSource
	episodes EpisodeSource
	mounts   map[string]http.Handler
	logger   *log.Logger
}

type Option func(*Server)

// WithLive serves the runner's live snapshot under /stats.
func WithLive(src SnapshotSource) Option {
	return func(s *Server) { s.live = src }
}

// WithEpisodes serves stored episodes.
func WithEpisodes(src EpisodeSource) Option {
	return func(s *Server) { s.episodes = src }
}

// WithMount attaches an extra handler, e.g. the remote policy socket.
func WithMount(pattern string, h http.Handler) Option {
	return func(s *Server) { s.mounts[pattern] = h }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		mounts: make(map[string]http.Handler),
		logger: log.New(os.Stdout, "[API] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: s.logger, NoColor: true}))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Route("/episodes", func(r chi.Router) {
		r.Get("/", s.handleListEpisodes)
		r.Get("/{id}", s.handleGetEpisode)
	})

	for pattern, h := range s.mounts {
		r.Handle(pattern, h)
	}
	return r
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type liveStats struct {
	trainer.Snapshot
	SuccessRate         *float64 `json:"success_rate"`
	AverageTimeToTarget *float64 `json:"average_time_to_target"`
}

type storedStats struct {
	Episodes            int      `json:"episodes"`
	Successes           int      `json:"successes"`
	SuccessRate         *float64 `json:"success_rate"`
	AverageTimeToTarget *float64 `json:"average_time_to_target"`
	AverageReward       *float64 `json:"average_reward"`
}

type statsResponse struct {
	Live   *liveStats   `json:"live,omitempty"`
	Stored *storedStats `json:"stored,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var resp statsResponse
	if s.live != nil {
		snap := s.live.Snapshot()
		resp.Live = &liveStats{
			Snapshot:            snap,
			SuccessRate:         finite(snap.Stats.SuccessRate()),
			AverageTimeToTarget: finite(snap.Stats.AverageTimeToTarget()),
		}
	}
	if s.episodes != nil {
		sum, err := s.episodes.Summary(r.Context())
		if err != nil {
			s.logger.Printf("stats: %v", err)
			s.writeError(w, http.StatusInternalServerError, "failed to load summary")
			return
		}
		resp.Stored = &storedStats{
			Episodes:            sum.Episodes,
			Successes:           sum.Successes,
			SuccessRate:         finite(sum.SuccessRate),
			AverageTimeToTarget: finite(sum.AverageTimeToTarget),
			AverageReward:       finite(sum.AverageReward),
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListEpisodes(w http.ResponseWriter, r *http.Request) {
	if s.episodes == nil {
		s.writeError(w, http.StatusNotFound, "episode store not configured")
		return
	}
	limit, err := queryInt(r, "limit", 50)
	if err != nil || limit < 1 || limit > 1000 {
		s.writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		s.writeError(w, http.StatusBadRequest, "offset must be non-negative")
		return
	}

	eps, err := s.episodes.ListEpisodes(r.Context(), limit, offset)
	if err != nil {
		s.logger.Printf("episodes: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list episodes")
		return
	}
	if eps == nil {
		eps = []store.Episode{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"episodes": eps,
		"limit":    limit,
		"offset":   offset,
	})
}

func (s *Server) handleGetEpisode(w http.ResponseWriter, r *http.Request) {
	if s.episodes == nil {
		s.writeError(w, http.StatusNotFound, "episode store not configured")
		return
	}
	ep, err := s.episodes.GetEpisode(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "episode not found")
		return
	}
	if err != nil {
		s.logger.Printf("episode: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load episode")
		return
	}
	s.writeJSON(w, http.StatusOK, ep)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// finite maps NaN and infinities to JSON null.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
