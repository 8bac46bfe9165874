package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/logveil/logveil/internal/cache"
	"github.com/logveil/logveil/internal/config"
	"github.com/logveil/logveil/internal/logger"
	"github.com/logveil/logveil/internal/profile"
	"github.com/logveil/logveil/internal/version"
)

// Server is the HTTP sanitization service. It exposes the redaction engine
// over REST, keeps a live event feed on a WebSocket hub, and optionally
// fronts the engine with a Redis result cache.
type Server struct {
	config  *config.Config
	logger  *logger.Logger
	store   *profile.Store
	manager *profile.Manager
	cache   *cache.ResultCache
	router  *mux.Router
	server  *http.Server
	wsHub   *Hub
}

// New creates a new sanitization server instance. resultCache may be nil;
// every request then goes straight to the engine.
func New(cfg *config.Config, log *logger.Logger, store *profile.Store, manager *profile.Manager, resultCache *cache.ResultCache) *Server {
	wsHub := NewHub(
		cfg.WebSocket.ReadBufferSize,
		cfg.WebSocket.WriteBufferSize,
		cfg.WebSocket.WriteTimeout,
		cfg.WebSocket.AllowedOrigins,
		log.WithComponent("websocket").Logger,
	)

	router := mux.NewRouter()

	server := &Server{
		config:  cfg,
		logger:  log.WithComponent("server"),
		store:   store,
		manager: manager,
		cache:   resultCache,
		router:  router,
		wsHub:   wsHub,
	}

	server.setupRoutes()

	// Announce profile reloads on the event feed. BroadcastEvent never
	// blocks, so this is safe from the watcher goroutine.
	store.SetOnSwap(func(p *profile.Profile, v uint64) {
		wsHub.BroadcastEvent(Event{
			Type:      EventTypeProfileSwap,
			Timestamp: time.Now(),
			Data:      ProfileSwapEvent{Profile: p.Name, Version: v},
		})
	})

	server.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return server
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health and info endpoints stay outside the rate limiter
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	// Profile catalog
	s.router.HandleFunc("/profiles", s.handleListProfiles).Methods("GET")
	s.router.HandleFunc("/profiles/{name}", s.handleGetProfile).Methods("GET")

	// Result cache management; both answer 503 when no cache is configured
	s.router.HandleFunc("/cache/stats", s.handleCacheStats).Methods("GET")
	s.router.HandleFunc("/cache/clear", s.handleCacheClear).Methods("POST")

	// Sanitization endpoints
	api := s.router.PathPrefix("/sanitize").Subrouter()
	api.Use(s.loggingMiddleware)
	if s.config.Server.RateLimit.Enabled {
		api.Use(s.rateLimitMiddleware())
	}
	api.HandleFunc("/text", s.handleSanitizeText).Methods("POST")
	api.HandleFunc("/batch", s.handleSanitizeBatch).Methods("POST")

	// WebSocket event feed
	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.handleWebSocket).Methods("GET")
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting logveil sanitization server",
		zap.Int("port", s.config.Server.Port),
		zap.String("profile", s.store.Active().Name),
		zap.Bool("cache", s.cache != nil),
	)

	// Start WebSocket hub in a separate goroutine
	go s.wsHub.Run()

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping logveil sanitization server")
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Warn("Failed to close result cache", zap.Error(err))
		}
	}
	return s.server.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	active := s.store.Active()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{
		"name":"logveil",
		"version":"%s",
		"profile":"%s",
		"profile_version":%d,
		"rules":%d,
		"entropy_enabled":%t,
		"cache_enabled":%t,
		"ws_clients":%d
	}`, version.Version, active.Name, s.store.Version(), len(active.Rules), active.Entropy.Enabled, s.cache != nil, s.wsHub.ClientCount())
}

// handleWebSocket handles WebSocket connections for the event feed
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.wsHub.HandleWebSocket(w, r)
}

// Hub returns the WebSocket hub for broadcasting events
func (s *Server) Hub() *Hub {
	return s.wsHub
}
