// Copyright (c) 2026 AetherCore contributors.

/*
Package admin implements the diagnostics HTTP surface: a thin, optional
operational sidecar that exposes read-only views over the engine's
in-process components (locks, events, scheduler, raids, banners) plus a
handful of admin-gated mutating endpoints. The engine core itself exposes
no wire protocol — this package is a collaborator built purely on the
core's public Go APIs, analogous to a health/ready sidecar.
*/
package admin

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taibuivan/aethercore/internal/platform/constants"
	"github.com/taibuivan/aethercore/internal/platform/middleware"
	"github.com/taibuivan/aethercore/internal/platform/sec"
)

// Server wraps the chi router and the [http.Server] serving the admin
// diagnostics surface.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// Dependencies groups every collaborator the admin surface reads or
// operates on. Each is optional — a nil dependency simply omits the routes
// that need it, letting a caller mount a partial surface.
type Dependencies struct {
	Locks      *lockView
	Events     *eventView
	Scheduler  *schedulerView
	Raids      *raidView
	Banners    *bannerView
	Items      *itemView
	Fusion     *fusionView
	CheckStore func() error // shallow readiness probe for the backing repository
}

// AppConfig is the subset of [config.Config] the admin surface needs,
// kept narrow so this package does not import the top-level config type.
type AppConfig = middleware.AppConfig

// NewServer constructs the chi router with the standard middleware chain
// and registers every route the supplied deps allow.
func NewServer(ctx context.Context, addr string, cfg AppConfig, log *slog.Logger, verifier middleware.TokenVerifier, deps Dependencies) *Server {
	rte := chi.NewRouter()

	rte.Use(middleware.RequestID())
	rte.Use(middleware.StructuredLogger(log))
	rte.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	rte.Use(middleware.RateLimit(ctx))
	rte.Use(middleware.PanicRecovery(log))
	rte.Use(middleware.Authenticate(verifier))
	rte.Use(middleware.CORS(cfg))
	rte.Use(chimw.CleanPath)

	liveness, readiness := newHealthHandlers(deps.CheckStore, log)
	rte.Get("/health", liveness)
	rte.Get("/ready", readiness)

	rte.Route("/admin", func(r chi.Router) {
		if deps.Locks != nil {
			r.Get("/locks", deps.Locks.list)
		}
		if deps.Events != nil {
			r.Get("/events", deps.Events.list)
		}
		if deps.Scheduler != nil {
			r.Get("/scheduler", deps.Scheduler.list)
			r.With(middleware.RequireRole(sec.RoleAdmin)).Post("/scheduler/{id}/cancel", deps.Scheduler.cancel)
		}
		if deps.Raids != nil {
			r.Get("/raids", deps.Raids.list)
			r.Get("/raids/{id}/leaderboard", deps.Raids.leaderboard)
			r.With(middleware.RequireRole(sec.RoleAdmin)).Post("/raids/{id}/expire", deps.Raids.expire)
		}
		if deps.Banners != nil {
			r.Get("/banners", deps.Banners.list)
			r.With(middleware.RequireRole(sec.RoleAdmin)).Post("/banners/{id}/expire", deps.Banners.expire)
		}
		if deps.Items != nil {
			r.With(middleware.RequireRole(sec.RoleAdmin)).Post("/items/spawn", deps.Items.spawn)
		}
		if deps.Fusion != nil {
			r.With(middleware.RequireRole(sec.RoleAdmin)).Post("/cards/fuse", deps.Fusion.fuse)
		}
	})

	return &Server{
		router: rte,
		log:    log,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           rte,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// ListenAndServe starts the HTTP server. It blocks until the server is
// closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("admin server starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
