/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires dependencies and runs the HTTP service.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/waveform/internal/api"
	"github.com/friendsincode/waveform/internal/cache"
	"github.com/friendsincode/waveform/internal/config"
	"github.com/friendsincode/waveform/internal/db"
	"github.com/friendsincode/waveform/internal/eventbus"
	"github.com/friendsincode/waveform/internal/events"
	"github.com/friendsincode/waveform/internal/logbuffer"
	"github.com/friendsincode/waveform/internal/media"
	"github.com/friendsincode/waveform/internal/player"
	"github.com/friendsincode/waveform/internal/recommend"
	"github.com/friendsincode/waveform/internal/soundcloud"
	"github.com/friendsincode/waveform/internal/telemetry"
	"github.com/friendsincode/waveform/internal/version"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db        *gorm.DB
	cache     *cache.Cache
	logBuffer *logbuffer.Buffer
	api       *api.API
	players   *player.Store
	bus       *events.Bus
	relay     *eventbus.Relay
	tracer    *telemetry.TracerProvider
	updates   *version.Checker

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("waveform-api"))
	router.Use(telemetry.MetricsMiddleware)
	// Skip timeout for WebSocket and upload connections
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// WebSocket upgrades hold the connection open indefinitely
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			// Large audio uploads can legitimately exceed the middleware timeout
			if r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/api/v1/tracks") {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    router,
		bus:       events.NewBus(),
		logBuffer: logBuf,
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:    addr,
		Handler: srv.router,
		// Keep header deadline to protect against slowloris, but do not enforce a full-body
		// read deadline so large uploads are not terminated mid-request.
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       0,
		// WriteTimeout set to 0 for WebSocket support - handlers manage their own deadlines
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self' 'unsafe-inline' data: blob: https: http:; frame-ancestors 'none'; base-uri 'self'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	tracer, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "waveform",
		ServiceVersion: version.Version,
		OTLPEndpoint:   s.cfg.OTLPEndpoint,
		Enabled:        s.cfg.TracingEnabled,
		SampleRate:     s.cfg.TracingSampleRate,
	}, s.logger)
	if err != nil {
		s.logger.Warn().Err(err).Msg("tracing initialization failed, continuing without tracing")
	} else {
		s.tracer = tracer
		s.DeferClose(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return s.tracer.Shutdown(ctx)
		})
	}

	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	if err := db.RegisterCallbacks(database); err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	// Ensure the local media directory exists when not using object storage
	if s.cfg.S3Bucket == "" {
		if err := os.MkdirAll(s.cfg.MediaRoot, 0755); err != nil {
			return fmt.Errorf("failed to create media directory %s: %w", s.cfg.MediaRoot, err)
		}
		s.logger.Info().Str("path", s.cfg.MediaRoot).Msg("media directory ready")
	}

	// Redis cache for track metadata, stream URLs and player state
	cacheCfg := cache.DefaultConfig()
	cacheCfg.RedisAddr = s.cfg.RedisAddr
	cacheCfg.RedisPassword = s.cfg.RedisPassword
	cacheCfg.RedisDB = s.cfg.RedisDB
	entityCache, err := cache.New(cacheCfg, s.logger)
	if err != nil {
		s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
	} else {
		s.cache = entityCache
		s.DeferClose(func() error { return s.cache.Close() })
	}

	mediaService, err := media.NewService(s.cfg, s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize media service: %w", err)
	}

	// SoundCloud resolution, with stream URLs cached in redis
	var scClient *soundcloud.Client
	var streams player.StreamResolver
	if s.cfg.SoundCloudStreamAPI != "" {
		scClient = soundcloud.New(s.cfg.SoundCloudAPIBase, s.cfg.SoundCloudStreamAPI, s.logger)
		streams = soundcloud.NewStreamSource(scClient, s.cache, s.cfg.ResolveCacheTTL, s.logger)
	} else {
		s.logger.Warn().Msg("no stream extraction endpoint configured, third-party playback disabled")
	}

	resolver := player.NewResolver(streams, s.cfg.ResolveTimeout, s.logger)
	recommender := recommend.New(database, s.cache, mediaService, s.logger)

	s.players = player.NewStore(player.StoreConfig{
		Resolver:    resolver,
		History:     player.NewHistoryRecorder(database, s.bus, s.logger),
		Persist:     player.NewStatePersister(database, s.cache, s.logger),
		Recommender: recommender,
		Bus:         s.bus,
		Logger:      s.logger,
	})

	relay, err := eventbus.NewRelay(s.cfg.NATSURL, s.bus, s.logger)
	if err != nil {
		s.logger.Warn().Err(err).Msg("NATS relay initialization failed, continuing without relay")
	} else {
		s.relay = relay
		s.DeferClose(func() error { return s.relay.Close() })
	}

	s.updates = version.NewChecker(s.logger)
	s.DeferClose(func() error {
		s.updates.Stop()
		return nil
	})

	s.api = api.New(api.Config{
		DB:             database,
		JWTSecret:      []byte(s.cfg.JWTSigningKey),
		JWTTokenTTL:    s.cfg.JWTTokenTTL,
		Media:          mediaService,
		SoundCloud:     scClient,
		Cache:          s.cache,
		Players:        s.players,
		Recommender:    recommender,
		Bus:            s.bus,
		LogBuffer:      s.logBuffer,
		Updates:        s.updates,
		Logger:         s.logger,
		MaxUploadBytes: s.cfg.MaxUploadSizeBytes(),
		StreamTTL:      s.cfg.ResolveCacheTTL,
	})

	return nil
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// LogBuffer returns the server's log buffer for attaching to zerolog.
func (s *Server) LogBuffer() *logbuffer.Buffer {
	return s.logBuffer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	// Database connection pool metrics
	if s.db != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					db.UpdateConnectionMetrics(s.db)
				}
			}
		}()
	}

	// Periodic health heartbeat for event stream subscribers
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.bus.Publish(events.EventHealth, events.Payload{
					"status":  "ok",
					"version": version.Version,
				})
			}
		}
	}()

	// Poll GitHub for newer releases; the initial check stays off the
	// startup path.
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.updates.Start(ctx)
	}()

	// Forward bus events to NATS for other instances
	if s.relay != nil && s.relay.Enabled() {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.relay.Run(ctx.Done())
		}()
	}

	// Cache invalidation listener
	if s.cache != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.runCacheInvalidationListener(ctx)
		}()
	}
}

// runCacheInvalidationListener subscribes to track mutation events and keeps
// the redis cache coherent with the database.
func (s *Server) runCacheInvalidationListener(ctx context.Context) {
	trackCreated := s.bus.Subscribe(events.EventTrackCreated)
	trackUpdated := s.bus.Subscribe(events.EventTrackUpdated)
	trackDeleted := s.bus.Subscribe(events.EventTrackDeleted)

	defer func() {
		s.bus.Unsubscribe(events.EventTrackCreated, trackCreated)
		s.bus.Unsubscribe(events.EventTrackUpdated, trackUpdated)
		s.bus.Unsubscribe(events.EventTrackDeleted, trackDeleted)
	}()

	s.logger.Info().Msg("cache invalidation listener started")

	invalidate := func(payload events.Payload, reason string) {
		s.logger.Debug().Str("reason", reason).Msg("invalidating track caches")
		s.cache.InvalidateTrackLists(ctx)
		if trackID, ok := payload["track_id"].(string); ok && trackID != "" {
			s.cache.InvalidateTrack(ctx, trackID)
		}
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("cache invalidation listener stopped")
			return
		case payload := <-trackCreated:
			invalidate(payload, "track created")
		case payload := <-trackUpdated:
			invalidate(payload, "track updated")
		case payload := <-trackDeleted:
			invalidate(payload, "track deleted")
		}
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","version":"` + version.Version + `"}`))
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.api.Routes(s.router)
}
