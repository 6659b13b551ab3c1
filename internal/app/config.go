package app

import (
	"os"
	"strconv"
	"time"

	"github.com/milanvk/edgespeak/internal/segment"
	"github.com/milanvk/edgespeak/internal/textcache"
)

type Config struct {
	HTTPAddr  string
	SentryDSN string
	LogLevel  string

	// Text cache backend. Empty RedisAddr selects the in-process cache.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Voice settings (defaults, overridden per request)
	DefaultVoice string

	// Text handling
	TextCacheTTL      time.Duration
	TextCacheCapacity int
	SegmentMaxLen     int
}

func LoadConfigFromEnv() Config {
	ttl, err := time.ParseDuration(getenv("TEXT_CACHE_TTL", "600s"))
	if err != nil || ttl <= 0 {
		ttl = textcache.DefaultTTL
	}

	return Config{
		HTTPAddr:  getenv("HTTP_ADDR", ":8080"),
		SentryDSN: getenv("SENTRY_DSN", ""),
		LogLevel:  getenv("LOG_LEVEL", "info"),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvIntClamped("REDIS_DB", 0, 0, 15),

		DefaultVoice: getenv("DEFAULT_VOICE", ""),

		TextCacheTTL:      ttl,
		TextCacheCapacity: getenvIntClamped("TEXT_CACHE_CAPACITY", textcache.DefaultCapacity, 1, 100000),
		SegmentMaxLen:     getenvIntClamped("SEGMENT_MAX_LEN", segment.DefaultMaxLen, 1, 10000),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntClamped(k string, def, min, max int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
