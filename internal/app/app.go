package app

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/milanvk/edgespeak/internal/assemble"
	"github.com/milanvk/edgespeak/internal/audio"
	"github.com/milanvk/edgespeak/internal/httpapi"
	"github.com/milanvk/edgespeak/internal/textcache"
	"github.com/milanvk/edgespeak/internal/tts"
)

type App struct {
	cfg       Config
	logger    *log.Logger
	redis     *redis.Client // nil when the in-process cache is used
	cache     textcache.Cache
	tts       *tts.EdgeClient
	assembler *assemble.Assembler
}

func New(cfg Config, logger *log.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, err
		}
		a.redis = rdb
		a.cache = textcache.NewRedisCache(rdb, cfg.TextCacheTTL)
		logger.Printf("text cache: redis at %s", cfg.RedisAddr)
	} else {
		a.cache = textcache.NewMemoryCache(cfg.TextCacheTTL, cfg.TextCacheCapacity)
		logger.Printf("text cache: in-process (capacity %d)", cfg.TextCacheCapacity)
	}

	// Shared HTTP client with connection pooling for the voice catalog.
	// Keeps TCP connections alive to reduce latency for repeated calls.
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10, // the provider is single host
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	a.tts = tts.NewEdgeClient(tts.EdgeConfig{HTTPClient: httpClient})
	a.assembler = assemble.New(a.tts, audio.MPEGCodec{}, logger)

	return a, nil
}

func (a *App) Router() http.Handler {
	routerCfg := httpapi.RouterConfig{
		DefaultVoice:  a.cfg.DefaultVoice,
		SegmentMaxLen: a.cfg.SegmentMaxLen,
	}
	return httpapi.NewRouter(routerCfg, a.logger, a.cache, a.tts, a.assembler)
}

func (a *App) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
