package http

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vantage-distress-ui/internal/config"
	"vantage-distress-ui/internal/connectors/companieshouse"
	"vantage-distress-ui/internal/connectors/epc"
	"vantage-distress-ui/internal/corporate"
	"vantage-distress-ui/internal/demo"
)

// Server wraps an HTTP server and route handlers.
type Server struct {
	httpServer *nethttp.Server
	store      *epc.Store
	logger     *zap.Logger
}

type deps struct {
	cfg      config.Config
	version  string
	store    *epc.Store
	registry *companieshouse.Client
	builder  *corporate.Builder
}

// NewServer creates a configured HTTP server with the dashboard and API endpoints.
func NewServer(cfg config.Config, logger *zap.Logger, version string) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var store *epc.Store
	if cfg.DBEnabled {
		createdStore, err := epc.NewStore(cfg)
		if err != nil {
			return nil, err
		}
		store = createdStore
		logger.Info("asset store connected", zap.String("driver", store.Driver()))
	} else {
		logger.Warn("asset store disabled", zap.String("hint", "set APP_DB_ENABLED=true"))
	}

	client := companieshouse.NewClient(cfg.CHBaseURL, cfg.CHAPIKey, cfg.CHTimeout, cfg.CHCacheTTL,
		companieshouse.WithObserver(func(operation string, seconds float64, err error) {
			recordExternalProbe("companies_house", operation, seconds, err)
		}),
	)
	var registry corporate.Registry
	if cfg.RegistryEnabled() {
		registry = client
	} else {
		client = nil
		logger.Warn("companies house disabled, serving demo structures", zap.String("hint", "set COMPANIES_HOUSE_KEY"))
	}

	d := deps{
		cfg:      cfg,
		version:  version,
		store:    store,
		registry: client,
		builder:  corporate.NewBuilder(registry, demo.Registry{}, cfg.CHStructureDepth),
	}

	httpServer := &nethttp.Server{
		Addr:         cfg.ListenAddr,
		Handler:      newHandler(d, logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return &Server{httpServer: httpServer, store: store, logger: logger}, nil
}

func newHandler(d deps, logger *zap.Logger) nethttp.Handler {
	mux := nethttp.NewServeMux()

	mux.HandleFunc("/", dashboardHandler(d.version))
	mux.HandleFunc("/favicon.ico", faviconHandler)
	mux.Handle("/metrics", metricsHandler())
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(d.store))
	mux.HandleFunc("/api/status", statusHandler(d.version))
	mux.HandleFunc("/api/status/services", servicesStatusHandler(d.store, d.registry))
	mux.HandleFunc("/api/distress-scan", distressScanHandler(d.cfg.DefaultScanLimit, d.cfg.MaxLimit, d.store))
	mux.HandleFunc("/api/search", searchHandler(d.cfg.DefaultSearchLimit, d.cfg.MaxLimit, d.store))
	mux.HandleFunc("/api/comparables", comparablesHandler(d.store))
	mux.HandleFunc("/api/companies/", companyRouter(d.builder))
	mux.HandleFunc("/api/risk/classify", classifyHandler)
	mux.HandleFunc("/api/risk/factors", factorsHandler)

	return loggingMiddleware(logger, observabilityMiddleware(corsMiddleware(d.cfg.AllowedOrigin, mux)))
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.store != nil {
		if cerr := s.store.Close(); cerr != nil {
			s.logger.Warn("closing asset store", zap.Error(cerr))
		}
	}
	return err
}

func healthHandler(w nethttp.ResponseWriter, _ *nethttp.Request) {
	writeJSON(w, nethttp.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

func readyHandler(store *epc.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if store == nil {
			writeJSON(w, nethttp.StatusOK, map[string]any{"status": "ready", "database": "disabled"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if _, err := store.ServiceStats(ctx); err != nil {
			writeJSON(w, nethttp.StatusServiceUnavailable, map[string]any{"status": "not_ready", "error": err.Error()})
			return
		}
		writeJSON(w, nethttp.StatusOK, map[string]any{"status": "ready", "database": store.Driver()})
	}
}

// corsMiddleware answers preflight requests and rejects anything but reads.
func corsMiddleware(origin string, next nethttp.Handler) nethttp.Handler {
	if strings.TrimSpace(origin) == "" {
		origin = "*"
	}
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")

		switch r.Method {
		case nethttp.MethodGet, nethttp.MethodHead:
			next.ServeHTTP(w, r)
		case nethttp.MethodOptions:
			w.WriteHeader(nethttp.StatusNoContent)
		default:
			h.Set("Allow", "GET, HEAD, OPTIONS")
			writeJSON(w, nethttp.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		}
	})
}

func loggingMiddleware(logger *zap.Logger, next nethttp.Handler) nethttp.Handler {
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		start := time.Now()
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: nethttp.StatusOK}
		next.ServeHTTP(rec, r)

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		}
		if rec.status >= nethttp.StatusInternalServerError {
			logger.Warn("request failed", fields...)
			return
		}
		logger.Info("request", fields...)
	})
}

func writeJSON(w nethttp.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
