package startup

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"audio-bridge/internal/logging"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Config holds all application configuration
type Config struct {
	Port           string
	MetricsPort    string
	MetricsEnabled bool

	TempDir          string
	YtDlpPath        string
	FfmpegPath       string
	CookiesFile      string
	MediaURLTemplate string

	CacheTTL           time.Duration
	CacheSweepInterval time.Duration
	FetchTimeout       time.Duration
	MaxFetchBytes      int64
	StreamMode         bool

	CORSOrigins     []string
	LogHealthChecks bool
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	config := &Config{
		Port:               getEnv("PORT", "8080"),
		MetricsPort:        getEnv("METRICS_PORT", "9090"),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		TempDir:            getEnv("TEMP_DIR", os.TempDir()),
		YtDlpPath:          getEnv("YTDLP_PATH", "yt-dlp"),
		FfmpegPath:         getEnv("FFMPEG_PATH", "ffmpeg"),
		CookiesFile:        getEnv("COOKIES_FILE", ""),
		MediaURLTemplate:   getEnv("MEDIA_URL_TEMPLATE", "https://www.youtube.com/watch?v=%s"),
		CacheTTL:           getEnvDuration("CACHE_TTL", 1*time.Hour),
		CacheSweepInterval: getEnvDuration("CACHE_SWEEP_INTERVAL", 10*time.Minute),
		FetchTimeout:       getEnvDuration("FETCH_TIMEOUT", 10*time.Minute),
		MaxFetchBytes:      getEnvInt64("MAX_FETCH_BYTES", 256<<20),
		StreamMode:         getEnvBool("STREAM_MODE", true),
		CORSOrigins:        splitList(getEnv("CORS_ORIGINS", "")),
		LogHealthChecks:    getEnvBool("LOG_HEALTH_CHECKS", true),
	}

	logging.Info("  PORT:                 %s", config.Port)
	logging.Info("  METRICS_PORT:         %s", config.MetricsPort)
	logging.Info("  METRICS_ENABLED:      %v", config.MetricsEnabled)
	logging.Info("  TEMP_DIR:             %s", config.TempDir)
	logging.Info("  YTDLP_PATH:           %s", config.YtDlpPath)
	logging.Info("  FFMPEG_PATH:          %s", config.FfmpegPath)
	logging.Info("  COOKIES_FILE:         %s", orUnset(config.CookiesFile))
	logging.Info("  MEDIA_URL_TEMPLATE:   %s", config.MediaURLTemplate)
	logging.Info("  CACHE_TTL:            %s", config.CacheTTL)
	logging.Info("  CACHE_SWEEP_INTERVAL: %s", config.CacheSweepInterval)
	logging.Info("  FETCH_TIMEOUT:        %s", config.FetchTimeout)
	logging.Info("  MAX_FETCH_BYTES:      %d", config.MaxFetchBytes)
	logging.Info("  STREAM_MODE:          %v", config.StreamMode)
	logging.Info("  LOG_HEALTH_CHECKS:    %v", config.LogHealthChecks)
	logging.Info("  LOG_LEVEL:            %s", logging.GetLevel())

	if strings.Count(config.MediaURLTemplate, "%s") != 1 {
		return nil, fmt.Errorf("MEDIA_URL_TEMPLATE must contain exactly one %%s placeholder")
	}

	if config.CookiesFile != "" {
		if _, err := os.Stat(config.CookiesFile); err != nil {
			logging.Warn("  COOKIES_FILE not readable, continuing without it: %v", err)
			config.CookiesFile = ""
		}
	}

	if err := checkDirWritable(config.TempDir); err != nil {
		return nil, fmt.Errorf("TEMP_DIR is not writable: %w", err)
	}

	return config, nil
}

// VerifyTools confirms both external binaries resolve and run, and logs
// their versions. The service cannot do anything without them.
func VerifyTools(config *Config) error {
	for _, tool := range []struct {
		name, path string
	}{
		{"yt-dlp", config.YtDlpPath},
		{"ffmpeg", config.FfmpegPath},
	} {
		resolved, err := exec.LookPath(tool.path)
		if err != nil {
			return fmt.Errorf("%s not found at %q: %w", tool.name, tool.path, err)
		}
		version := probeVersion(resolved)
		logging.Info("%s ready: %s (%s)", tool.name, resolved, version)
	}
	return nil
}

// probeVersion runs `tool --version` and returns the first line.
func probeVersion(path string) string {
	out, err := exec.Command(path, "--version").Output()
	if err != nil {
		return "version unknown"
	}
	line := strings.TrimSpace(string(out))
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if len(line) > 80 {
		line = line[:80]
	}
	return line
}

// checkDirWritable verifies we can create files in dir.
func checkDirWritable(dir string) error {
	f, err := os.CreateTemp(dir, "audio-bridge-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}

func printBanner() {
	logging.Printf("============================================================")
	logging.Printf("  audio-bridge %s (%s)", Version, Commit)
	logging.Printf("  %s %s/%s", GoVersion, runtime.GOOS, runtime.GOARCH)
	logging.Printf("============================================================")
}

// LogServerStarted logs the final startup line.
func LogServerStarted(port string, elapsed time.Duration) {
	logging.Info("------------------------------------------------------------")
	logging.Info("Server listening on :%s (started in %s)", port, elapsed.Round(time.Millisecond))
	logging.Info("------------------------------------------------------------")
}

// LogFatal logs a fatal error and exits.
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// LogShutdownInitiated logs the beginning of graceful shutdown.
func LogShutdownInitiated(signal string) {
	logging.Info("Received %s, shutting down", signal)
}

// LogShutdownStep logs one shutdown step.
func LogShutdownStep(step string) {
	logging.Info("  %s", step)
}

// LogShutdownComplete logs the end of graceful shutdown.
func LogShutdownComplete() {
	logging.Info("Shutdown complete")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	switch strings.ToLower(value) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	logging.Warn("  Invalid %s=%q, using default: %v", key, value, fallback)
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		logging.Warn("  Invalid %s=%q, using default: %s", key, value, fallback)
		return fallback
	}
	return d
}

func getEnvInt64(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var n int64
	if _, err := fmt.Sscanf(value, "%d", &n); err != nil || n <= 0 {
		logging.Warn("  Invalid %s=%q, using default: %d", key, value, fallback)
		return fallback
	}
	return n
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func orUnset(s string) string {
	if s == "" {
		return "(unset)"
	}
	return s
}
