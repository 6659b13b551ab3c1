package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/milanvk/edgespeak/internal/assemble"
	"github.com/milanvk/edgespeak/internal/segment"
	"github.com/milanvk/edgespeak/internal/textcache"
	"github.com/milanvk/edgespeak/internal/tts"
)

type RouterConfig struct {
	// Voice settings (defaults, overridden per request)
	DefaultVoice string

	// Maximum segment length in runes for sentence splitting
	SegmentMaxLen int
}

type Router struct {
	cfg       RouterConfig
	logger    *log.Logger
	cache     textcache.Cache
	tts       tts.Client
	assembler *assemble.Assembler
	mux       *http.ServeMux
}

func NewRouter(cfg RouterConfig, logger *log.Logger, cache textcache.Cache, client tts.Client, assembler *assemble.Assembler) http.Handler {
	if cfg.DefaultVoice == "" {
		cfg.DefaultVoice = tts.DefaultVoice
	}
	if cfg.SegmentMaxLen <= 0 {
		cfg.SegmentMaxLen = segment.DefaultMaxLen
	}

	r := &Router{
		cfg:       cfg,
		logger:    logger,
		cache:     cache,
		tts:       client,
		assembler: assembler,
		mux:       http.NewServeMux(),
	}

	r.routes()
	return withSentryRecovery(withCORS(r.mux))
}

func (r *Router) routes() {
	// Health check
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)

	// Text cache
	r.mux.HandleFunc("POST /tts/store", r.handleStoreText)
	r.mux.HandleFunc("GET /tts/stored_ids", r.handleStoredIDs)

	// Synthesis endpoints take params from the query string on GET and a
	// JSON body on POST.
	r.mux.HandleFunc("GET /tts", r.handleTTS)
	r.mux.HandleFunc("POST /tts", r.handleTTS)
	r.mux.HandleFunc("GET /tts/stream", r.handleTTSStream)
	r.mux.HandleFunc("POST /tts/stream", r.handleTTSStream)

	// Provider voice catalog
	r.mux.HandleFunc("GET /voices", r.handleVoices)
	r.mux.HandleFunc("POST /voices", r.handleVoices)
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// envelope is the uniform JSON response shape for non-binary paths.
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeEnvelope(w http.ResponseWriter, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(envelope{Code: code, Message: message, Data: data})
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}
