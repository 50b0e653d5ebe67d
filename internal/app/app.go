package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"github.com/samobrien878/Williams-Data-Pipline/internal/config"
	apperrors "github.com/samobrien878/Williams-Data-Pipline/internal/errors"
	"github.com/samobrien878/Williams-Data-Pipline/internal/infrastructure"
	"github.com/samobrien878/Williams-Data-Pipline/internal/ingestion"
	customMiddleware "github.com/samobrien878/Williams-Data-Pipline/internal/middleware"
	"github.com/samobrien878/Williams-Data-Pipline/internal/services"
	"github.com/samobrien878/Williams-Data-Pipline/internal/store"
	handlers "github.com/samobrien878/Williams-Data-Pipline/internal/transport/http"
	ws "github.com/samobrien878/Williams-Data-Pipline/internal/websocket"
)

// DefaultShutdownTimeout is used when the config leaves it unset.
const DefaultShutdownTimeout = 10 * time.Second

// Application represents the main application container
type Application struct {
	Config         *config.Config
	Paths          *config.Paths
	Logger         *slog.Logger
	OTelProviders  *infrastructure.OTelProviders
	Metrics        *infrastructure.IngestMetrics
	Store          store.Store
	Pipeline       *ingestion.Pipeline
	Loop           *ingestion.Loop
	WebSocketHub   *ws.Hub
	SummaryService *services.SummaryService
	HealthService  *services.HealthService
	ErrorHandler   *apperrors.ErrorHandler
	Router         *chi.Mux
	Server         *http.Server

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// New wires the application around an open store. The caller keeps
// ownership of st and closes it after Run returns.
func New(cfg *config.Config, st store.Store, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	paths, err := cfg.Paths()
	if err != nil {
		return nil, fmt.Errorf("failed to get paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	metrics, err := infrastructure.CreateIngestMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		Store:         st,
		ready:         make(chan struct{}),
	}

	if err := a.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	a.setupRouter()
	a.createServer()

	return a, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	a.WebSocketHub = ws.NewHub(a.Logger)

	pipeline, err := ingestion.NewPipeline(a.Config.Ingest, a.Store, a.Logger)
	if err != nil {
		return err
	}
	pipeline.SetMetrics(a.Metrics)
	pipeline.SetNotifier(a.WebSocketHub)
	a.Pipeline = pipeline
	a.Loop = ingestion.NewLoop(pipeline, a.Config.Ingest, a.Paths.WorkingDir, a.Logger)
	a.Loop.SetIngestOnce(a.Config.Store.WriteMode == config.WriteModeInsert)

	a.SummaryService = services.NewSummaryService(a.Store, a.Logger)
	a.HealthService = services.NewHealthService(a.Store, a.Loop, a.WebSocketHub, a.Logger)
	a.ErrorHandler = apperrors.NewErrorHandler(a.Logger, a.Config.Logging.Level == "debug")
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// These don't wrap the ResponseWriter, so they are safe for the upgrade.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.Get("/ws", ws.ServeWS(a.WebSocketHub, a.Config.WebSocket, a.Config.Server.AllowedOrigins, a.Logger))
	r.Handle("/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP))

	r.Group(func(r chi.Router) {
		// RequestID → RealIP → OTel → Logger → Recoverer
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.ErrorHandler))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{AllowedOrigins: a.Config.Server.AllowedOrigins}))

		if rl := a.Config.Server.RateLimit; rl.Enabled {
			r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.ErrorHandler, a.Logger).Handler)
		}

		a.setupAPIRoutes(r)
	})

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
	summaryHandler := handlers.NewSummaryHandler(
		a.SummaryService,
		a.Config.Ingest.MinRatID,
		a.Config.Ingest.MaxRatID,
		a.Logger,
		a.ErrorHandler,
	)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/version", healthHandler.Version)
		r.Mount("/", summaryHandler.Routes())
	})
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Addr blocks until the server is listening and returns its address. It
// returns "" if ctx ends first.
func (a *Application) Addr(ctx context.Context) string {
	select {
	case <-a.ready:
	case <-ctx.Done():
		return ""
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Run starts the hub, the ingestion loop and, when enabled, the HTTP
// server, and blocks until ctx is cancelled or one of them fails. Without
// the server, Run also returns once the loop finishes (a one-shot scan).
func (a *Application) Run(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.String("store", a.Config.Store.Driver),
		slog.String("watch_dir", a.Loop.Dir()),
		slog.Bool("server", a.Config.Server.Enabled))

	if err := a.performStartupHealthCheck(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		a.WebSocketHub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		err := a.Loop.Run(gctx)
		if !a.Config.Server.Enabled {
			cancel()
		}
		return err
	})

	if a.Config.Server.Enabled {
		ln, err := net.Listen("tcp", a.Server.Addr)
		if err != nil {
			cancel()
			_ = g.Wait()
			return fmt.Errorf("listen on %s: %w", a.Server.Addr, err)
		}
		a.mu.Lock()
		a.listener = ln
		a.mu.Unlock()

		a.Logger.InfoContext(ctx, "HTTP server listening", slog.String("addr", ln.Addr().String()))

		g.Go(func() error {
			if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return a.shutdownServer()
		})
	}
	close(a.ready)

	err := g.Wait()
	a.stop()
	return err
}

func (a *Application) shutdownServer() error {
	timeout := a.Config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.Server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}

// stop releases what Run started. The store is left to the caller.
func (a *Application) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	a.WebSocketHub.Stop()
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}
	a.Logger.InfoContext(ctx, "Application shutdown complete", slog.Any("ingestion", a.Loop.Stats()))
}

// performStartupHealthCheck fails fast when the store is unreachable
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, services.DefaultPingTimeout)
	defer cancel()

	if err := a.Store.Ping(ctx); err != nil {
		a.Logger.ErrorContext(ctx, "Store not reachable at startup", slog.String("error", err.Error()))
		return apperrors.NewStorageError("store not reachable", err)
	}
	return nil
}
