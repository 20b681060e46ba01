package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"dailyanalytics/internal/config"
	"dailyanalytics/internal/dataprocessing"
	apierrors "dailyanalytics/internal/errors"
	"dailyanalytics/internal/infrastructure"
	customMiddleware "dailyanalytics/internal/middleware"
	"dailyanalytics/internal/ml"
	"dailyanalytics/internal/services"
	"dailyanalytics/internal/storage"
	handlers "dailyanalytics/internal/transport/http"
	ws "dailyanalytics/internal/websocket"
)

// BuildTime is set at link time with -ldflags "-X dailyanalytics/internal/app.BuildTime=...".
var BuildTime = "unknown"

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Logger        *slog.Logger
	Router        *chi.Mux
	Server        *http.Server
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.AnalyticsMetrics
	Repository    storage.Repository
	WebSocketHub  *ws.Hub
	Services      *ServiceContainer

	startTime time.Time
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Data      *services.DataService
	Analytics *services.AnalyticsService
	Pipeline  *services.PipelineService
	Health    *services.HealthService
}

// NewApplication loads the configuration and global logger and builds the
// application.
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return New(ctx, cfg, logger)
}

// New builds the application from cfg. Background workers are started; call
// Stop (or Run/Serve, which call it) to release them.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger.InfoContext(ctx, "Application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion))

	paths, err := cfg.Paths.Resolve()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: providers,
		startTime:     time.Now(),
	}

	if err := a.initializeServices(ctx); err != nil {
		a.cleanup(ctx)
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	a.setupRouter()
	a.createServer()
	return a, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices(ctx context.Context) error {
	metrics, err := infrastructure.NewAnalyticsMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}
	a.Metrics = metrics

	if err := infrastructure.RegisterRuntimeMetrics(a.OTelProviders.Meter, a.startTime); err != nil {
		return fmt.Errorf("failed to register runtime metrics: %w", err)
	}

	repo, err := storage.Open(ctx, a.Config.Database)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	a.Repository = repo
	if a.Config.Database.DSN == "" {
		a.Logger.WarnContext(ctx, "No database DSN configured, using in-memory storage")
	}

	hub := ws.NewHub(a.Logger, metrics)
	hub.Start()
	a.WebSocketHub = hub

	pipelineCfg := ml.DefaultPipelineConfig()
	pipelineCfg.NEstimators = a.Config.Pipeline.NEstimators
	pipelineCfg.RandomState = a.Config.Pipeline.RandomState
	pipelineCfg.TestSize = a.Config.Pipeline.TestSize
	pipelineCfg.TargetColumn = a.Config.Pipeline.TargetColumn
	pipelineCfg.Workers = a.Config.Pipeline.Workers

	pipeline := services.NewPipelineService(pipelineCfg, a.Paths, a.Config.Pipeline.JobWorkers, hub, metrics, a.Logger)
	pipeline.Start(context.Background())

	data := services.NewDataService(a.Paths.DataFile,
		dataprocessing.NewDataProcessor(a.Logger),
		dataprocessing.NewAdvancedProcessor(nil, a.Logger, metrics),
		a.Logger)

	a.Services = &ServiceContainer{
		Data:      data,
		Analytics: services.NewAnalyticsService(repo, hub, a.Logger),
		Pipeline:  pipeline,
		Health:    services.NewHealthService(config.AppVersion, BuildTime, a.Paths, repo, hub, pipeline, a.Logger),
	}
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Level == "debug")

	// Only middleware that leaves the ResponseWriter alone, so /ws can hijack it
	r.Use(customMiddleware.RequestID)
	r.Use(middleware.RealIP)

	r.Handle(config.WebSocketEndpoint, ws.NewHandler(a.WebSocketHub, a.Config.WebSocket, a.Config.Security.AllowedOrigins, a.Logger))
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle(config.MetricsEndpoint, a.OTelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		// RequestID → RealIP → OTel → Logger → Recoverer → RateLimit → CORS → Headers → Timeout
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(errorHandler))

		if rl := a.Config.Security.RateLimit; rl.Enabled {
			r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.Logger).Handler)
		}
		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
				AllowedOrigins: a.Config.Security.AllowedOrigins,
			}))
		}
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.Timeout(a.Config.Server.WriteTimeout, a.Logger))

		validator := customMiddleware.NewValidator()
		api := handlers.Handlers{
			Data:      handlers.NewDataHandler(a.Services.Data, a.Logger, errorHandler),
			Analytics: handlers.NewAnalyticsHandler(a.Services.Analytics, a.Logger, errorHandler),
			Metrics:   handlers.NewMetricsHandler(a.Services.Analytics, validator, a.Logger, errorHandler),
			Pipeline:  handlers.NewPipelineHandler(a.Services.Pipeline, validator, a.Logger, errorHandler),
			Health:    handlers.NewHealthHandler(a.Services.Health, a.Logger),
		}
		r.Route(config.APIBasePath, api.Mount)
	})

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	a.Router = r
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Addr(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Run listens on the configured address and serves until SIGINT, SIGTERM or
// ctx cancellation.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		a.cleanup(ctx)
		return fmt.Errorf("listen %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts everything down.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfoContext(ctx, "HTTP server listening",
			slog.String("address", ln.Addr().String()))
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.Logger.InfoContext(ctx, "Shutdown signal received")
		return a.Stop(context.WithoutCancel(ctx))
	})

	return g.Wait()
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if err := a.cleanup(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// cleanup releases everything New may have started, in reverse order.
func (a *Application) cleanup(ctx context.Context) error {
	var errs []error

	if a.Services != nil && a.Services.Pipeline != nil {
		a.Logger.InfoContext(ctx, "Stopping job queue")
		if err := a.Services.Pipeline.Stop(a.Config.Server.ShutdownTimeout); err != nil {
			errs = append(errs, fmt.Errorf("job queue: %w", err))
		}
	}
	if a.WebSocketHub != nil {
		a.WebSocketHub.Stop()
	}
	if a.Repository != nil {
		if err := a.Repository.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}
