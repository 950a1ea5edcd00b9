// Package worker provides the HTTP control surface for the kavach defense
// pipeline.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/kavach-labs/kavach/internal/config"
	"github.com/kavach-labs/kavach/internal/profiles"
	"github.com/kavach-labs/kavach/internal/session"
	"github.com/kavach-labs/kavach/internal/store"
	"github.com/kavach-labs/kavach/internal/worker/sse"
)

// Options wires the service's collaborators.
type Options struct {
	Version  string
	Config   *config.Config
	Store    *store.Store
	Manager  *session.Manager
	Profiles *profiles.Correlator
}

// Service ties the session manager, evidence store, and event stream behind
// a chi router.
type Service struct {
	version  string
	config   *config.Config
	store    *store.Store
	manager  *session.Manager
	profiles *profiles.Correlator

	sseBroadcaster *sse.Broadcaster
	router         chi.Router
	httpServer     *http.Server

	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
	ready     atomic.Bool
}

// NewService creates the worker service and registers its routes. Pipeline
// events flow to SSE subscribers from this point on.
func NewService(opts Options) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	svc := &Service{
		version:        opts.Version,
		config:         opts.Config,
		store:          opts.Store,
		manager:        opts.Manager,
		profiles:       opts.Profiles,
		sseBroadcaster: sse.NewBroadcaster(),
		router:         chi.NewRouter(),
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
	}

	svc.manager.SetEventHandler(svc.sseBroadcaster.Broadcast)
	svc.setupRoutes()

	return svc
}

func (s *Service) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestLogger)

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/ready", s.handleReady)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/calls", func(r chi.Router) {
			r.Post("/", s.handleStartCall)
			r.Get("/", s.handleListCalls)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.handleGetCall)
				r.Post("/fragments", s.handleFragment)
				r.Get("/stream", s.handleFragmentStream)
				r.Post("/handoff", s.handleHandoff)
				r.Delete("/handoff", s.handleHandoffTerminate)
				r.Post("/end", s.handleEndCall)
				r.Post("/evidence", s.handleSubmitEvidence)
			})
		})

		r.Route("/evidence/{packageID}", func(r chi.Router) {
			r.Get("/", s.handleGetEvidence)
			r.Get("/export", s.handleExportEvidence)
			r.Post("/status", s.handleReviewStatus)
		})

		r.Get("/profiles", s.handleListProfiles)
		r.Get("/profiles/{profileID}", s.handleGetProfile)

		r.Get("/events", s.sseBroadcaster.HandleSSE)
	})
}

// Router exposes the HTTP handler for embedding and tests.
func (s *Service) Router() http.Handler {
	return s.router
}

// Start begins serving on the configured port and blocks until the listener
// stops.
func (s *Service) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Server.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	s.ready.Store(true)

	log.Info().
		Str("addr", addr).
		Str("version", s.version).
		Msg("Defense service listening")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains live sessions and stops the listener.
func (s *Service) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	s.cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("HTTP shutdown did not complete cleanly")
		}
	}

	return s.manager.Shutdown(ctx)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		// Event streams hold the connection open; logging them as requests
		// is just noise.
		if r.URL.Path == "/api/events" {
			return
		}

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}
