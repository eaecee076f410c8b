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

	"github.com/mzscope/mzscope/internal/query"
	"github.com/mzscope/mzscope/internal/runcache"
	"github.com/mzscope/mzscope/internal/server"
	"github.com/mzscope/mzscope/pkg/config"
	"github.com/mzscope/mzscope/pkg/health"
	"github.com/mzscope/mzscope/pkg/logger"
	"github.com/mzscope/mzscope/pkg/metrics"
	"github.com/mzscope/mzscope/pkg/middleware"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting mzscope", "port", cfg.Server.Port, "browse_root", cfg.Browse.Root)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	runs := runcache.New(nil, cfg.Cache.MaxEntries, m)
	engine := query.New(query.Tolerances{
		MS2AnnotationRTWindow: cfg.Query.MS2AnnotationRTWindow,
		MS2AnnotationMZTol:    cfg.Query.MS2AnnotationMZTol,
		PrecursorMZTol:        cfg.Query.PrecursorMZTol,
		PrecursorRTWindow:     cfg.Query.PrecursorRTWindow,
		MaxSeriesPoints:       cfg.Query.MaxSeriesPoints,
	})

	h := server.New(server.Options{
		Runs:       runs,
		Engine:     engine,
		BrowseRoot: cfg.Browse.Root,
		DistDir:    cfg.Frontend.DistDir,
		DemoPath:   cfg.Demo.Path,
		Metrics:    m,
	})

	checker := health.NewChecker()
	checker.Register("run_cache", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d runs loaded", runs.Len()),
		}
	})
	checker.Register("browse_root", func(ctx context.Context) health.ComponentHealth {
		if info, err := os.Stat(cfg.Browse.Root); err != nil || !info.IsDir() {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "browse root unavailable"}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /browse-files", h.BrowseFiles)
	mux.HandleFunc("POST /get-tic", h.TIC)
	mux.HandleFunc("POST /extract-chromatogram", h.ExtractChromatogram)
	mux.HandleFunc("POST /get-spectrum", h.Spectrum)
	mux.HandleFunc("POST /get-ms2-spectrum", h.MS2Spectrum)
	mux.HandleFunc("POST /get-scan-list", h.ScanList)
	mux.HandleFunc("GET /get-demo-path", h.DemoPath)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.HandleFunc("GET /", h.SPA)

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.CORS.AllowOrigins))(chain)
	chain = middleware.RequestID(chain)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var stopMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		stopMetrics = metrics.StartServer(cfg.Metrics.Port)
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if stopMetrics != nil {
			if err := stopMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("mzscope listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("mzscope stopped")
}
