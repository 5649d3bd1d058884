package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/configs"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/logging"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/metrics"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/session"
	applicationsHandler "github.com/hilthontt/cheahlytics/internal/presentation/handler/applications"
	eventsHandler "github.com/hilthontt/cheahlytics/internal/presentation/handler/events"
	healthHandler "github.com/hilthontt/cheahlytics/internal/presentation/handler/health"
	trackerHandler "github.com/hilthontt/cheahlytics/internal/presentation/handler/tracker"
	usersHandler "github.com/hilthontt/cheahlytics/internal/presentation/handler/users"
	"github.com/hilthontt/cheahlytics/internal/usecases/accounts"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	requestTimeout  = 60 * time.Second
	shutdownTimeout = 10 * time.Second
)

type Handlers struct {
	Events       *eventsHandler.Handler
	Applications *applicationsHandler.Handler
	Users        *usersHandler.Handler
	Health       *healthHandler.Handler
	Tracker      *trackerHandler.Handler
}

type Application struct {
	config      configs.Config
	handlers    Handlers
	accounts    accounts.AccountUseCase
	sessions    *session.Manager
	metrics     *metrics.Metrics
	logger      logging.Logger
	ratelimiter ratelimiter.Limiter
}

func NewApplication(
	config configs.Config,
	handlers Handlers,
	accounts accounts.AccountUseCase,
	sessions *session.Manager,
	metrics *metrics.Metrics,
	logger logging.Logger,
	ratelimiter ratelimiter.Limiter,
) *Application {
	return &Application{
		config:      config,
		handlers:    handlers,
		accounts:    accounts,
		sessions:    sessions,
		metrics:     metrics,
		logger:      logger,
		ratelimiter: ratelimiter,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if app.config.HTTP.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(app.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(app.prometheusMiddleware)

	r.Get("/cheahlytics.js", app.handlers.Tracker.ScriptHandler)
	r.Method(http.MethodGet, "/metrics", app.metrics.Handler())

	r.Get("/healthz", app.handlers.Health.GetHealth)
	r.Get("/live", app.handlers.Health.GetHealth)
	r.Get("/ready", app.handlers.Health.GetReady)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", app.handlers.Health.GetHealth)

		r.Route("/events", func(r chi.Router) {
			r.Use(app.eventsCors)
			r.Use(app.rateLimiterMiddleware)
			r.Use(middleware.Timeout(requestTimeout))

			r.Post("/", app.handlers.Events.RecordEventHandler)
			r.Options("/", app.handlers.Events.PreflightHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(app.currentUserMiddleware)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(requestTimeout))

				r.Post("/users", app.handlers.Users.RegisterHandler)
				r.Post("/sessions", app.handlers.Users.SignInHandler)
				r.Delete("/sessions", app.handlers.Users.SignOutHandler)
				r.Get("/sessions", app.handlers.Users.CurrentUserHandler)
			})

			r.Route("/applications", func(r chi.Router) {
				r.Use(app.requireUserMiddleware)

				// Long-lived; no request timeout.
				r.Get("/{id}/live", app.handlers.Applications.LiveFeedHandler)

				r.Group(func(r chi.Router) {
					r.Use(middleware.Timeout(requestTimeout))

					r.Get("/", app.handlers.Applications.ListApplicationsHandler)
					r.Post("/", app.handlers.Applications.CreateApplicationHandler)
					r.Get("/{id}", app.handlers.Applications.GetApplicationHandler)
					r.Put("/{id}", app.handlers.Applications.UpdateApplicationHandler)
					r.Delete("/{id}", app.handlers.Applications.DeleteApplicationHandler)
					r.Get("/{id}/setup", app.handlers.Applications.SetupApplicationHandler)
					r.Get("/{id}/audit", app.handlers.Applications.AuditHandler)
				})
			})
		})
	})

	return r
}

func (app *Application) Run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:      otelhttp.NewHandler(mux, configs.ServiceName),
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.handlers.Health.SetHealthy(false)

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		app.logger.Info(logging.General, logging.Shutdown, "signal caught", map[logging.ExtraKey]any{
			"signal": s.String(),
		})

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	return nil
}
