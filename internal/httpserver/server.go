package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/vijayg2124/affilink-performance-hub/internal/analytics"
	"github.com/vijayg2124/affilink-performance-hub/internal/config"
	"github.com/vijayg2124/affilink-performance-hub/internal/database"
	"github.com/vijayg2124/affilink-performance-hub/internal/links"
	"github.com/vijayg2124/affilink-performance-hub/internal/metrics"
	"github.com/vijayg2124/affilink-performance-hub/internal/notify"
	"github.com/vijayg2124/affilink-performance-hub/internal/storage"
	"go.uber.org/zap"
)

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	DB         *database.PostgresDB
	Redis      *database.RedisDB
	ClickHouse *database.ClickHouseDB
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Server wraps the HTTP handlers, the link registry and the dashboard
// refresh loop.
type Server struct {
	linkService *links.Service
	refresher   *analytics.Refresher
	logger      *zap.Logger
	config      *config.Config
	metrics     *metrics.Metrics
}

// NewServer wires storage, notifications and services from the configured
// backends. Missing backends degrade to in-memory equivalents so the
// process always comes up.
func NewServer(deps *Dependencies) *Server {
	cfg := deps.Config

	// Change notifications ride on Redis pub/sub when available so that
	// writes from other processes also trigger a refresh.
	var publisher notify.Publisher
	var notifier notify.Notifier
	var cache *analytics.SnapshotCache
	if deps.Redis != nil {
		rn := notify.NewRedisNotifier(deps.Redis.Client, deps.Logger)
		publisher = rn
		notifier = rn
		cache = analytics.NewSnapshotCache(deps.Redis.Client, cfg.Dashboard.UserID, cfg.Dashboard.SnapshotTTL)
	} else {
		ip := notify.NewInProcessNotifier()
		publisher = ip
		notifier = ip
	}

	var eventSource storage.EventSource
	var linkRepo storage.LinkRepo

	backend := cfg.Storage.Backend
	if backend == config.BackendPostgres && deps.DB == nil {
		deps.Logger.Warn("postgres backend requested but unavailable, using in-memory storage")
		backend = config.BackendMemory
	}
	if backend == config.BackendClickHouse && deps.ClickHouse == nil {
		deps.Logger.Warn("clickhouse backend requested but unavailable, using in-memory storage")
		backend = config.BackendMemory
	}

	switch backend {
	case config.BackendPostgres:
		eventSource = storage.NewPostgresEventStore(deps.DB.Pool, publisher)
		linkRepo = storage.NewPostgresLinkRepo(deps.DB.Pool)

	case config.BackendClickHouse:
		eventSource = storage.NewClickHouseEventStore(deps.ClickHouse.Conn, publisher)
		// Links stay relational; events alone move to ClickHouse.
		if deps.DB != nil {
			linkRepo = storage.NewPostgresLinkRepo(deps.DB.Pool)
		} else {
			linkRepo = storage.NewInMemoryLinkRepo(nil)
		}

	default:
		events := storage.NewInMemoryEventStore(publisher)
		memRepo := storage.NewInMemoryLinkRepo(events)
		if cfg.Storage.SeedDemoData {
			if err := storage.SeedDemoData(context.Background(), events, memRepo, cfg.Dashboard.UserID); err != nil {
				deps.Logger.Warn("failed to seed demo data", zap.Error(err))
			}
		}
		eventSource = events
		linkRepo = memRepo
	}

	linkService := links.NewService(linkRepo, cfg.Links.ShortBaseURL, cfg.Dashboard.Window(), deps.Logger, deps.Metrics)

	refresher := analytics.NewRefresher(
		eventSource,
		notifier,
		cache,
		analytics.RefresherConfig{
			UserID:   cfg.Dashboard.UserID,
			Window:   cfg.Dashboard.Window(),
			Interval: cfg.Dashboard.RefreshInterval,
			Options: analytics.Options{
				TimeSeriesLimit: cfg.Dashboard.TimeSeriesDays,
				TopCountries:    cfg.Dashboard.TopCountries,
				RecentActivity:  cfg.Dashboard.RecentActivity,
			},
		},
		deps.Logger,
		deps.Metrics,
	)

	return &Server{
		linkService: linkService,
		refresher:   refresher,
		logger:      deps.Logger,
		config:      cfg,
		metrics:     deps.Metrics,
	}
}

// Refresher exposes the dashboard refresh loop for the caller to run.
func (s *Server) Refresher() *analytics.Refresher {
	return s.refresher
}

// Handler returns the http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)

	if s.config.Metrics.Enabled {
		mux.Handle(s.config.Metrics.Path, metrics.Handler())
	}

	mux.HandleFunc("/dashboard/snapshot", s.handleSnapshot)
	mux.HandleFunc("/dashboard/activity", s.handleActivity)

	mux.HandleFunc("/links", s.handleLinks)
	mux.HandleFunc("/links/", s.handleLinkByID)

	return mux
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, hasData := s.refresher.Snapshot()
	s.jsonResponse(w, map[string]interface{}{
		"status":       "ok",
		"snapshot_set": hasData,
	})
}

// ---- Dashboard ----

type snapshotResponse struct {
	analytics.Snapshot
	RefreshedAt *time.Time `json:"refreshed_at,omitempty"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, hasData := s.refresher.Snapshot()
	if !hasData {
		// No successful refresh yet; serve an empty snapshot rather than
		// an error so the dashboard renders zero states.
		snap = analytics.Aggregate(nil, analytics.Options{
			TimeSeriesLimit: s.config.Dashboard.TimeSeriesDays,
			TopCountries:    s.config.Dashboard.TopCountries,
			RecentActivity:  s.config.Dashboard.RecentActivity,
		})
	}

	resp := snapshotResponse{Snapshot: snap}
	if hasData {
		t := s.refresher.RefreshedAt()
		resp.RefreshedAt = &t
	}
	s.jsonResponse(w, resp)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, _ := s.refresher.Snapshot()
	activity := snap.RecentActivity
	if activity == nil {
		activity = []analytics.ActivityEntry{}
	}
	s.jsonResponse(w, activity)
}

// ---- Link Registry ----

func (s *Server) handleLinks(w http.ResponseWriter, r *http.Request) {
	userID := s.config.Dashboard.UserID

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		filter := storage.LinkFilter{
			Status:   q.Get("status"),
			Platform: q.Get("platform"),
			Search:   q.Get("q"),
		}
		list, err := s.linkService.List(r.Context(), userID, filter)
		if err != nil {
			s.logger.Error("failed to list links", zap.Error(err))
			s.errorResponse(w, "failed to list links", http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, list)

	case http.MethodPost:
		var in links.CreateLinkInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}
		in.UserID = userID

		link, err := s.linkService.Create(r.Context(), in)
		if errors.Is(err, links.ErrValidation) {
			s.errorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err != nil {
			s.logger.Error("failed to create link", zap.Error(err))
			s.errorResponse(w, "failed to create link", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(link)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLinkByID(w http.ResponseWriter, r *http.Request) {
	userID := s.config.Dashboard.UserID

	rest := strings.TrimPrefix(r.URL.Path, "/links/")
	if rest == "" {
		http.NotFound(w, r)
		return
	}

	// POST /links/{id}/active flips the active flag.
	if id, ok := strings.CutSuffix(rest, "/active"); ok {
		if id == "" || strings.Contains(id, "/") {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodPost {
			s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var body struct {
			Active bool `json:"active"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}

		err := s.linkService.SetActive(r.Context(), userID, id, body.Active)
		if errors.Is(err, links.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			s.logger.Error("failed to update link", zap.Error(err))
			s.errorResponse(w, "failed to update link", http.StatusInternalServerError)
			return
		}

		s.jsonResponse(w, map[string]interface{}{"id": id, "active": body.Active})
		return
	}

	// Anything deeper than /links/{id} is not a route.
	if strings.Contains(rest, "/") {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodDelete:
		err := s.linkService.Delete(r.Context(), userID, rest)
		if errors.Is(err, links.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			s.logger.Error("failed to delete link", zap.Error(err))
			s.errorResponse(w, "failed to delete link", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ---- Helper Methods ----

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
