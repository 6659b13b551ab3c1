package app

import (
	"os"
	"testing"
	"time"

	"github.com/milanvk/edgespeak/internal/segment"
	"github.com/milanvk/edgespeak/internal/textcache"
)

func TestGetenv(t *testing.T) {
	tests := []struct {
		name     string
		envKey   string
		envValue string
		defValue string
		want     string
	}{
		{
			name:     "env set",
			envKey:   "TEST_ENV_VAR",
			envValue: "custom_value",
			defValue: "default",
			want:     "custom_value",
		},
		{
			name:     "env not set",
			envKey:   "TEST_ENV_VAR_NOTSET",
			envValue: "",
			defValue: "default",
			want:     "default",
		},
		{
			name:     "empty default",
			envKey:   "TEST_ENV_VAR_EMPTY",
			envValue: "",
			defValue: "",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.envKey, tt.envValue)
				defer os.Unsetenv(tt.envKey)
			}

			got := getenv(tt.envKey, tt.defValue)
			if got != tt.want {
				t.Errorf("getenv(%q, %q) = %q, want %q", tt.envKey, tt.defValue, got, tt.want)
			}
		})
	}
}

func TestGetenvIntClamped(t *testing.T) {
	tests := []struct {
		name     string
		envKey   string
		envValue string
		def      int
		min      int
		max      int
		want     int
	}{
		{
			name:     "value within range",
			envKey:   "TEST_INT_NORMAL",
			envValue: "500",
			def:      100,
			min:      0,
			max:      1000,
			want:     500,
		},
		{
			name:     "value below min - clamp to min",
			envKey:   "TEST_INT_LOW",
			envValue: "-100",
			def:      100,
			min:      0,
			max:      1000,
			want:     0,
		},
		{
			name:     "value above max - clamp to max",
			envKey:   "TEST_INT_HIGH",
			envValue: "2000",
			def:      100,
			min:      0,
			max:      1000,
			want:     1000,
		},
		{
			name:     "env not set - use default",
			envKey:   "TEST_INT_NOTSET",
			envValue: "",
			def:      100,
			min:      0,
			max:      1000,
			want:     100,
		},
		{
			name:     "invalid value - use default",
			envKey:   "TEST_INT_INVALID",
			envValue: "not_a_number",
			def:      100,
			min:      0,
			max:      1000,
			want:     100,
		},
		{
			name:     "boundary: exactly min",
			envKey:   "TEST_INT_MIN",
			envValue: "200",
			def:      500,
			min:      200,
			max:      800,
			want:     200,
		},
		{
			name:     "boundary: exactly max",
			envKey:   "TEST_INT_MAX",
			envValue: "800",
			def:      500,
			min:      200,
			max:      800,
			want:     800,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.envKey, tt.envValue)
				defer os.Unsetenv(tt.envKey)
			}

			got := getenvIntClamped(tt.envKey, tt.def, tt.min, tt.max)
			if got != tt.want {
				t.Errorf("getenvIntClamped(%q, %d, %d, %d) = %d, want %d",
					tt.envKey, tt.def, tt.min, tt.max, got, tt.want)
			}
		})
	}
}

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	// Clear any existing env vars that might interfere
	keysToClean := []string{
		"HTTP_ADDR", "SENTRY_DSN", "LOG_LEVEL", "REDIS_ADDR",
		"DEFAULT_VOICE", "TEXT_CACHE_TTL", "TEXT_CACHE_CAPACITY", "SEGMENT_MAX_LEN",
	}
	for _, key := range keysToClean {
		os.Unsetenv(key)
	}

	cfg := LoadConfigFromEnv()

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}

	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr = %q, want empty", cfg.RedisAddr)
	}

	if cfg.TextCacheTTL != textcache.DefaultTTL {
		t.Errorf("TextCacheTTL = %v, want %v", cfg.TextCacheTTL, textcache.DefaultTTL)
	}

	if cfg.TextCacheCapacity != textcache.DefaultCapacity {
		t.Errorf("TextCacheCapacity = %d, want %d", cfg.TextCacheCapacity, textcache.DefaultCapacity)
	}

	if cfg.SegmentMaxLen != segment.DefaultMaxLen {
		t.Errorf("SegmentMaxLen = %d, want %d", cfg.SegmentMaxLen, segment.DefaultMaxLen)
	}
}

func TestLoadConfigFromEnvCustomValues(t *testing.T) {
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("REDIS_ADDR", "localhost:6379")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("DEFAULT_VOICE", "en-US-AriaNeural")
	os.Setenv("TEXT_CACHE_TTL", "5m")
	os.Setenv("TEXT_CACHE_CAPACITY", "50")
	os.Setenv("SEGMENT_MAX_LEN", "120")

	defer func() {
		os.Unsetenv("HTTP_ADDR")
		os.Unsetenv("REDIS_ADDR")
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("DEFAULT_VOICE")
		os.Unsetenv("TEXT_CACHE_TTL")
		os.Unsetenv("TEXT_CACHE_CAPACITY")
		os.Unsetenv("SEGMENT_MAX_LEN")
	}()

	cfg := LoadConfigFromEnv()

	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}

	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q, want %q", cfg.RedisAddr, "localhost:6379")
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}

	if cfg.DefaultVoice != "en-US-AriaNeural" {
		t.Errorf("DefaultVoice = %q, want %q", cfg.DefaultVoice, "en-US-AriaNeural")
	}

	if cfg.TextCacheTTL != 5*time.Minute {
		t.Errorf("TextCacheTTL = %v, want 5m", cfg.TextCacheTTL)
	}

	if cfg.TextCacheCapacity != 50 {
		t.Errorf("TextCacheCapacity = %d, want 50", cfg.TextCacheCapacity)
	}

	if cfg.SegmentMaxLen != 120 {
		t.Errorf("SegmentMaxLen = %d, want 120", cfg.SegmentMaxLen)
	}
}

func TestLoadConfigFromEnvBadTTL(t *testing.T) {
	os.Setenv("TEXT_CACHE_TTL", "soon")
	defer os.Unsetenv("TEXT_CACHE_TTL")

	cfg := LoadConfigFromEnv()
	if cfg.TextCacheTTL != textcache.DefaultTTL {
		t.Errorf("TextCacheTTL = %v, want default %v", cfg.TextCacheTTL, textcache.DefaultTTL)
	}
}
