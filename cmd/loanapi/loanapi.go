package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loanapi/internal/api"
	"loanapi/internal/config"
	"loanapi/internal/loans"
	"loanapi/internal/logger"
	"loanapi/internal/models"
	"loanapi/internal/observability"
	"loanapi/internal/ratelimit"
	"loanapi/internal/storage"
	"loanapi/internal/version"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envFile    = flag.String("env", "config.env", "Path to dotenv file with LOANAPI_* variables")
)

func main() {
	flag.Parse()

	// Populate the environment before config reads it
	envLoaded, err := config.LoadDotEnv(*envFile)
	if err != nil {
		slog.Error("Failed to load env file", "error", err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ver := version.GetInfo()

	// Initialize logging
	log, closer, err := logger.Setup(cfg.Logging, cfg.IsProduction(), ver)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	if envLoaded {
		slog.Debug("Loaded environment file", "path", *envFile)
	}

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg, ver)
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	// Initialize storage; an unreachable store degrades requests instead of stopping the process
	storageInstance := initializeStorage(cfg)
	defer storageInstance.Close()

	// Wrap storage with instrumentation if metrics are enabled
	instruments := otelProvider.Instruments()
	activeStorage := storageInstance
	if cfg.Metrics.Enabled {
		activeStorage = observability.NewInstrumentedStorage(storageInstance, cfg.Storage.Type, instruments)
	}

	handlers := api.NewHandlers(loans.NewService(activeStorage))

	// Setup routes with middleware. The rate limiter is added first so it gates
	// every request ahead of request logging.
	routeOpts := []api.RouteOption{api.WithTrustProxyHeaders(cfg.RateLimit.TrustProxyHeaders)}
	if cfg.RateLimit.Enabled {
		limiter, err := initializeLimiter(cfg)
		if err != nil {
			slog.Error("Failed to initialize rate limiter", "error", err)
			os.Exit(1)
		}
		defer limiter.Close()

		routeOpts = append(routeOpts, api.WithRateLimiter(ratelimit.Middleware(limiter,
			ratelimit.WithSkipper(api.IsRateLimitExempt),
			ratelimit.WithTrustProxyHeaders(cfg.RateLimit.TrustProxyHeaders),
			ratelimit.WithDecisionCounter(instruments.RateLimitDecisions),
		)))
	}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}

	router := api.SetupRoutes(handlers, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		var err error
		if cfg.Server.TLSEnabled {
			if cfg.Server.TLSCertFile == "" || cfg.Server.TLSKeyFile == "" {
				slog.Error("TLS is enabled but cert file or key file is not specified")
				os.Exit(1)
			}
			logStartup(cfg, ver, "https")
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			logStartup(cfg, ver, "http")
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")

	// Create a deadline to wait for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown metrics server
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	// Attempt graceful shutdown
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
}

// initializeStorage creates the configured store and checks connectivity. A store that
// cannot be constructed is replaced by one that fails every call, and a failed ping is
// only logged, so the listener always comes up.
func initializeStorage(cfg *models.Config) storage.Storage {
	store, err := storage.NewFactory().Create(cfg.Storage)
	if err != nil {
		slog.Error("Database connection error: " + err.Error())
		return storage.NewUnavailableStorage(err)
	}

	timeout := cfg.Storage.Database.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		slog.Error("Database connection error: " + err.Error())
		return store
	}

	slog.Info("Connected to " + cfg.Storage.Type + " store successfully")
	return store
}

// initializeLimiter creates the rate limiter for the configured backend.
func initializeLimiter(cfg *models.Config) (ratelimit.Limiter, error) {
	rl := cfg.RateLimit

	switch rl.Backend {
	case models.RateLimitBackendRedis:
		client, err := ratelimit.OpenRedis(cfg.Redis)
		if err != nil {
			return nil, err
		}
		return ratelimit.NewRedisLimiter(client, rl.MaxRequests, rl.Window), nil
	case models.RateLimitBackendMemory, "":
		return ratelimit.NewFixedWindowLimiter(rl.MaxRequests, rl.Window,
			ratelimit.WithCleanupInterval(rl.CleanupInterval),
		), nil
	default:
		return nil, fmt.Errorf("unsupported rate limit backend: %s", rl.Backend)
	}
}

func logStartup(cfg *models.Config, ver version.Info, scheme string) {
	base := fmt.Sprintf("%s://localhost:%d", scheme, cfg.Server.Port)

	slog.Info(ver.String())
	slog.Info("App running on port " + base)
	slog.Info("Swagger API docs available at " + base + api.DocsPath)
	if cfg.RateLimit.Enabled {
		slog.Info(fmt.Sprintf("Rate limit is set to %d requests %s per IP",
			cfg.RateLimit.MaxRequests, ratelimit.WindowPhrase(cfg.RateLimit.Window)))
	}
	switch cfg.Logging.Output {
	case "", "both", "file":
		slog.Info("Logs are being saved to " + cfg.Logging.FilePath)
	}
}
