// Package httpx wires HTTP routes to services and carries the ambient
// request plumbing: correlation ids, audit logging, rate limiting, guard
// chain and the error envelope.
package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gmellier/fontdrop/internal/apperror"
	"github.com/gmellier/fontdrop/internal/product"
	"github.com/gmellier/fontdrop/internal/service/auth"
	"github.com/gmellier/fontdrop/pkg/config"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	auth     auth.Service
	limiter  RateLimiter
	cfg      config.APIConfig
	dbHealth func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
}

const (
	rateWindowDefault  = time.Minute
	rateLimitLogin     = 12
	healthCheckTimeout = 2 * time.Second
)

// NewRouter assembles the core routes and mounts every product surface.
func NewRouter(logger *slog.Logger, authSvc auth.Service, limiter RateLimiter, cfg config.APIConfig, dbHealth func(context.Context) error, products []product.Product) *Router {
	rt := &Router{
		mux:      http.NewServeMux(),
		logger:   logger,
		auth:     authSvc,
		limiter:  limiter,
		cfg:      cfg,
		dbHealth: dbHealth,
	}
	if rt.logger == nil {
		rt.logger = slog.Default()
	}
	if rt.limiter == nil {
		rt.limiter = NewMemoryRateLimiter()
	}
	rt.initMetrics()
	rt.register(products)
	return rt
}

// ServeHTTP delegates to underlying mux.
func (rt *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	rt.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (rt *Router) Close() {
	if rt.limiter != nil {
		rt.limiter.Close()
	}
}

func (rt *Router) register(products []product.Product) {
	rt.mux.Handle("/metrics", promhttp.Handler())
	rt.Handle("/health", rt.handleHealth)
	rt.Handle("/auth/login", rt.RateLimit("/auth/login", rateLimitLogin, rateWindowDefault, rt.handleLogin))
	product.Mount(rt, products)
	// catch-all so unknown routes still get the envelope and a request id
	rt.Handle("/", rt.handleNotFound)
}

// Handle attaches a handler wrapped in the ambient chain: audit logging,
// correlation id, the global rate ceiling and error normalization.
func (rt *Router) Handle(pattern string, handler product.HandlerFunc) {
	rt.mux.HandleFunc(pattern, rt.audit(pattern, withRequestID(rt.normalized(rt.globalLimit(handler)))))
}

// normalized converts a failing handler into a plain one, routing every
// error (and panic) through the normalizer.
func (rt *Router) normalized(handler product.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				rt.fail(w, req, fmt.Errorf("panic: %v", rec))
			}
		}()
		if err := handler(w, req); err != nil {
			rt.fail(w, req, err)
		}
	}
}

func (rt *Router) handleLogin(w http.ResponseWriter, req *http.Request) error {
	if req.Method != http.MethodPost {
		return apperror.NotFound("Route not found")
	}
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		return apperror.BadRequest("invalid JSON body")
	}
	token, err := rt.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		return err
	}
	WriteJSON(w, http.StatusOK, map[string]any{"access_token": token})
	return nil
}

func (rt *Router) handleHealth(w http.ResponseWriter, req *http.Request) error {
	if req.Method != http.MethodGet {
		return apperror.NotFound("Route not found")
	}
	if rt.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := rt.dbHealth(ctx); err != nil {
			return fmt.Errorf("database unreachable: %w", err)
		}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
	return nil
}

func (rt *Router) handleNotFound(http.ResponseWriter, *http.Request) error {
	return apperror.NotFound("Route not found")
}

// audit emits one structured log line and one metrics sample per request.
func (rt *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		rt.recordRequestMetrics(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := recorder.Header().Get(RequestIDHeader); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if claims, ok := ClaimsFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", claims.UserID(), "role", claims.Role)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			rt.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			rt.logger.Warn("http_request", fields...)
		default:
			rt.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}
