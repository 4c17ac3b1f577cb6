package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"audio-bridge/internal/cache"
	"audio-bridge/internal/fetch"
	"audio-bridge/internal/handlers"
	"audio-bridge/internal/logging"
	"audio-bridge/internal/metrics"
	"audio-bridge/internal/middleware"
	"audio-bridge/internal/startup"
	"audio-bridge/internal/transcode"
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Verify external tools are present before accepting traffic
	if err := startup.VerifyTools(config); err != nil {
		startup.LogFatal("External tool check failed: %v", err)
	}

	// Metadata cache with background eviction
	infoCache := cache.New(config.CacheTTL, nil)
	infoCache.StartSweeper(config.CacheSweepInterval)

	// Fetch tool and transcoder supervisors
	fetcher := fetch.New(config.YtDlpPath, config.MediaURLTemplate, config.CookiesFile, config.FetchTimeout, config.MaxFetchBytes)
	transcoder := transcode.New(config.FfmpegPath)

	// Prometheus
	metrics.InitializeMetrics()
	metrics.RegisterCacheSize(func() float64 { return float64(infoCache.Len()) })
	if config.MetricsEnabled {
		go serveMetrics(config.MetricsPort)
	}

	// Handlers and router
	h := handlers.New(infoCache, fetcher, transcoder, config)
	router := setupRouter(h)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.CORS(config.CORSOrigins)(
		middleware.Logger(loggingConfig)(
			middleware.Metrics(middleware.DefaultMetricsConfig())(router)))

	// WriteTimeout stays 0: downloads stream for as long as the
	// retrieval cap allows.
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go handleShutdown(srv, infoCache)

	startup.LogServerStarted(config.Port, time.Since(startTime))
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET", "HEAD")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET", "HEAD")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Service descriptor
	r.HandleFunc("/", h.Root).Methods("GET")

	// API routes
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/audio-info/{mediaId}", h.AudioInfo).Methods("GET")
	api.HandleFunc("/download-audio/{mediaId}", h.DownloadAudio).Methods("GET")
	api.HandleFunc("/clear-cache", h.ClearCache).Methods("POST")

	return r
}

func serveMetrics(port string) {
	m := http.NewServeMux()
	m.Handle("/metrics", promhttp.Handler())
	logging.Info("Metrics listening on :%s", port)
	if err := http.ListenAndServe(":"+port, m); err != nil {
		logging.Error("Metrics server error: %v", err)
	}
}

func handleShutdown(srv *http.Server, infoCache *cache.AudioInfoCache) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping cache sweeper")
	infoCache.Stop()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	}

	startup.LogShutdownComplete()
}
