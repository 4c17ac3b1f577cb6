package startup

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "METRICS_PORT", "METRICS_ENABLED", "TEMP_DIR", "YTDLP_PATH",
		"FFMPEG_PATH", "COOKIES_FILE", "MEDIA_URL_TEMPLATE", "CACHE_TTL",
		"CACHE_SWEEP_INTERVAL", "FETCH_TIMEOUT", "MAX_FETCH_BYTES",
		"STREAM_MODE", "CORS_ORIGINS", "LOG_HEALTH_CHECKS",
	} {
		t.Setenv(key, "")
	}

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if config.Port != "8080" {
		t.Errorf("Port = %q, want 8080", config.Port)
	}
	if config.MetricsPort != "9090" {
		t.Errorf("MetricsPort = %q, want 9090", config.MetricsPort)
	}
	if !config.MetricsEnabled {
		t.Error("MetricsEnabled should default to true")
	}
	if config.YtDlpPath != "yt-dlp" || config.FfmpegPath != "ffmpeg" {
		t.Errorf("tool paths = %q / %q", config.YtDlpPath, config.FfmpegPath)
	}
	if config.CacheTTL != time.Hour {
		t.Errorf("CacheTTL = %s, want 1h", config.CacheTTL)
	}
	if config.CacheSweepInterval != 10*time.Minute {
		t.Errorf("CacheSweepInterval = %s, want 10m", config.CacheSweepInterval)
	}
	if config.FetchTimeout != 10*time.Minute {
		t.Errorf("FetchTimeout = %s, want 10m", config.FetchTimeout)
	}
	if config.MaxFetchBytes != 256<<20 {
		t.Errorf("MaxFetchBytes = %d, want 256 MiB", config.MaxFetchBytes)
	}
	if !config.StreamMode {
		t.Error("StreamMode should default to true")
	}
	if config.CORSOrigins != nil {
		t.Errorf("CORSOrigins = %v, want nil", config.CORSOrigins)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("TEMP_DIR", t.TempDir())
	t.Setenv("MEDIA_URL_TEMPLATE", "https://media.example/watch?v=%s")
	t.Setenv("CACHE_TTL", "30m")
	t.Setenv("STREAM_MODE", "false")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if config.Port != "9000" {
		t.Errorf("Port = %q", config.Port)
	}
	if config.MediaURLTemplate != "https://media.example/watch?v=%s" {
		t.Errorf("MediaURLTemplate = %q", config.MediaURLTemplate)
	}
	if config.CacheTTL != 30*time.Minute {
		t.Errorf("CacheTTL = %s", config.CacheTTL)
	}
	if config.StreamMode {
		t.Error("StreamMode should be false")
	}
	if len(config.CORSOrigins) != 2 || config.CORSOrigins[0] != "https://a.example" {
		t.Errorf("CORSOrigins = %v", config.CORSOrigins)
	}
}

func TestLoadConfigRejectsBadTemplate(t *testing.T) {
	t.Setenv("MEDIA_URL_TEMPLATE", "https://media.example/watch")
	if _, err := LoadConfig(); err == nil {
		t.Errorf("template without %%s placeholder must be rejected")
	}

	t.Setenv("MEDIA_URL_TEMPLATE", "https://media.example/%s/%s")
	if _, err := LoadConfig(); err == nil {
		t.Errorf("template with two %%s placeholders must be rejected")
	}
}

func TestLoadConfigDropsUnreadableCookies(t *testing.T) {
	t.Setenv("MEDIA_URL_TEMPLATE", "")
	t.Setenv("COOKIES_FILE", filepath.Join(t.TempDir(), "does-not-exist.txt"))

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if config.CookiesFile != "" {
		t.Errorf("unreadable cookies file should be dropped, got %q", config.CookiesFile)
	}
}

func TestLoadConfigRejectsUnwritableTempDir(t *testing.T) {
	t.Setenv("MEDIA_URL_TEMPLATE", "")
	t.Setenv("TEMP_DIR", filepath.Join(t.TempDir(), "missing-subdir"))

	if _, err := LoadConfig(); err == nil {
		t.Error("missing temp dir must be rejected")
	}
}

func TestVerifyTools(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"yt-dlp-stub", "ffmpeg-stub"} {
		path := filepath.Join(dir, name)
		script := "#!/bin/sh\necho \"" + name + " 1.0\"\n"
		if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
			t.Fatalf("writing stub: %v", err)
		}
	}

	config := &Config{
		YtDlpPath:  filepath.Join(dir, "yt-dlp-stub"),
		FfmpegPath: filepath.Join(dir, "ffmpeg-stub"),
	}
	if err := VerifyTools(config); err != nil {
		t.Errorf("VerifyTools returned error: %v", err)
	}
}

func TestVerifyToolsMissingBinary(t *testing.T) {
	config := &Config{
		YtDlpPath:  filepath.Join(t.TempDir(), "no-such-binary"),
		FfmpegPath: "ffmpeg",
	}
	if err := VerifyTools(config); err == nil {
		t.Error("missing binary must fail verification")
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value    string
		fallback bool
		want     bool
	}{
		{"", true, true},
		{"", false, false},
		{"true", false, true},
		{"1", false, true},
		{"yes", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"garbage", true, true},
	}
	for _, tt := range tests {
		t.Setenv("TEST_BOOL", tt.value)
		if got := getEnvBool("TEST_BOOL", tt.fallback); got != tt.want {
			t.Errorf("getEnvBool(%q, %v) = %v, want %v", tt.value, tt.fallback, got, tt.want)
		}
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", time.Minute},
		{"30s", 30 * time.Second},
		{"2h", 2 * time.Hour},
		{"garbage", time.Minute},
		{"-5m", time.Minute},
	}
	for _, tt := range tests {
		t.Setenv("TEST_DURATION", tt.value)
		if got := getEnvDuration("TEST_DURATION", time.Minute); got != tt.want {
			t.Errorf("getEnvDuration(%q) = %s, want %s", tt.value, got, tt.want)
		}
	}
}

func TestGetEnvInt64(t *testing.T) {
	tests := []struct {
		value string
		want  int64
	}{
		{"", 100},
		{"42", 42},
		{"garbage", 100},
		{"-7", 100},
		{"0", 100},
	}
	for _, tt := range tests {
		t.Setenv("TEST_INT", tt.value)
		if got := getEnvInt64("TEST_INT", 100); got != tt.want {
			t.Errorf("getEnvInt64(%q) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"a,b,c", 3},
		{" a , b ", 2},
		{",,", 0},
	}
	for _, tt := range tests {
		if got := splitList(tt.in); len(got) != tt.want {
			t.Errorf("splitList(%q) = %v, want %d entries", tt.in, got, tt.want)
		}
	}
}

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()
	if info.Version == "" || info.GoVersion == "" || info.OS == "" || info.Arch == "" {
		t.Errorf("incomplete build info: %+v", info)
	}
}
