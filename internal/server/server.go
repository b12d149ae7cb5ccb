/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/friendsincode/skald_audio/internal/auth"
	"github.com/friendsincode/skald_audio/internal/config"
	"github.com/friendsincode/skald_audio/internal/logbuffer"
	"github.com/friendsincode/skald_audio/internal/media"
	"github.com/friendsincode/skald_audio/internal/models"
	"github.com/friendsincode/skald_audio/internal/schedule"
	"github.com/friendsincode/skald_audio/internal/store"
	"github.com/friendsincode/skald_audio/internal/telemetry"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server

	store     *store.Store
	locator   *media.Locator
	logBuffer *logbuffer.Buffer

	// now is swappable for tests; defaults to time.Now.
	now func() time.Time

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(corsMiddleware)
	router.Use(telemetry.TracingMiddleware("skald-audio-api"))
	router.Use(telemetry.MetricsMiddleware)
	// Audio streams are long-running; only non-streaming routes get the
	// request timeout.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isAudioPath(r.URL.Path) {
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
		store:     store.Open(cfg.StatePath, logger),
		locator:   media.NewLocator(cfg.AudioRoot),
		logBuffer: logBuf,
		now:       time.Now,
	}

	if err := srv.bootstrapAdmin(); err != nil {
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:    addr,
		Handler: srv.router,
		// Header deadline protects against slowloris; write timeout stays 0 so
		// long audio streams are never cut mid-transfer.
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Router exposes the chi router, mainly for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// Close stops background workers.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	return nil
}

// bootstrapAdmin creates the initial admin account when the store holds no
// users at all. Skipped when no admin password is configured.
func (s *Server) bootstrapAdmin() error {
	doc := s.store.Snapshot()
	if len(doc.Users) > 0 {
		return nil
	}
	if s.cfg.AdminPassword == "" {
		s.logger.Warn().Msg("no users and no SKALD_ADMIN_PASSWORD set; admin API is unreachable until one is configured")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	id := uuid.NewString()
	err = s.store.Mutate(func(doc *models.Document) error {
		doc.Users[id] = &models.User{
			ID:        id,
			Email:     s.cfg.AdminEmail,
			Password:  string(hash),
			Role:      models.RoleAdmin,
			CreatedAt: time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	s.logger.Info().Str("email", s.cfg.AdminEmail).Msg("bootstrap admin account created")
	return nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router.Handle("/metrics", telemetry.Handler())

	// Public JSON surface.
	s.router.Get("/", s.handleFiles)
	s.router.Get("/api/files", s.handleFiles)
	s.router.Get("/api/status", s.handleStatus)
	s.router.Get("/api/my/schedules", s.withAuth(s.handleMySchedules))

	// Admin surface: login is open, everything else needs a valid token.
	s.router.Route("/admin", func(r chi.Router) {
		r.Post("/login", s.handleLogin)

		r.Group(func(pr chi.Router) {
			pr.Use(auth.Middleware([]byte(s.cfg.JWTSigningKey)))
			pr.Post("/logout", s.handleLogout)
			pr.Get("/status", s.handleAdminStatus)
			pr.Get("/logs", s.handleAdminLogs)

			admin := pr.With(auth.RequireRole(string(models.RoleAdmin)))
			admin.Get("/config", s.handleConfigGet)
			admin.Post("/config", s.handleConfigReplace)
			admin.Post("/settings", s.handleSettingsUpdate)
			admin.Post("/reset", s.handleReset)
			admin.Get("/browse", s.handleBrowse)

			admin.Get("/collections", s.handleCollectionsList)
			admin.Post("/collections", s.handleCollectionCreate)
			admin.Put("/collections/{id}", s.handleCollectionUpdate)
			admin.Delete("/collections/{id}", s.handleCollectionDelete)

			admin.Get("/schedules", s.handleSchedulesList)
			admin.Post("/schedules", s.handleScheduleCreate)
			admin.Put("/schedules/{id}", s.handleScheduleUpdate)
			admin.Delete("/schedules/{id}", s.handleScheduleDelete)
			admin.Post("/schedules/{id}/toggle", s.handleScheduleToggle)

			admin.Get("/users", s.handleUsersList)
			admin.Post("/users", s.handleUserCreate)
			admin.Post("/users/assign-schedule", s.handleUserAssignSchedule)
			admin.Post("/users/remove-schedules", s.handleUserRemoveSchedules)
		})
	})

	// Audio streaming, gated per request on the active-schedule evaluation.
	s.router.Get("/{filename}", s.handleStream)
	s.router.Head("/{filename}", s.handleStream)
}

func (s *Server) withAuth(h http.HandlerFunc) http.HandlerFunc {
	wrapped := auth.Middleware([]byte(s.cfg.JWTSigningKey))(h)
	return wrapped.ServeHTTP
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	// Advisory active-schedule refresh for the dashboard and metrics. The
	// streaming gate never reads this; it reevaluates per request.
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		s.refreshActiveSchedules()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.refreshActiveSchedules()
			}
		}
	}()
}

func (s *Server) refreshActiveSchedules() {
	doc := s.store.Snapshot()
	ids := schedule.ActiveScheduleIDs(doc, s.now())
	s.store.SetActiveSchedules(ids)
	telemetry.ActiveSchedules.Set(float64(len(ids)))
	s.logger.Debug().Int("active", len(ids)).Msg("active schedules refreshed")
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

// corsMiddleware mirrors the permissive policy the original audio server
// shipped with: any origin may stream, with the range headers exposed so
// players can seek.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Range, Content-Type, Accept-Ranges, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Accept-Ranges")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isAudioPath(path string) bool {
	name := strings.TrimPrefix(path, "/")
	if name == "" || strings.Contains(name, "/") {
		return false
	}
	_, ok := audioContentTypes[extensionOf(name)]
	return ok
}
