// Package server exposes minting and inspection over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sxyafiq/guid"
	"github.com/sxyafiq/guid/internal/metrics"
	"github.com/sxyafiq/guid/store"
)

// Shape names accepted by the shape query parameter.
const (
	ShapeGUID    = "guid"
	ShapeTiny    = "tiny"
	ShapeFactory = "factory"
)

// formatArk selects the ARK rendering in the format query parameter.
const formatArk = "ark"

// Config holds the listener settings.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// MaxBatch caps the count parameter.
	MaxBatch int

	// MintRate limits mint requests per second across all clients.
	// Zero or negative disables the limit.
	MintRate  float64
	MintBurst int
}

// Options wires the server's collaborators.
type Options struct {
	Config Config

	// Factory mints the factory shape. nil means guid.NewFactory().
	Factory *guid.Factory

	// Store enables registration. nil disables POST /v1/guids/{id}.
	Store *store.Store

	// Metrics nil means a private metrics.New().
	Metrics *metrics.Metrics

	// Logger nil disables logging.
	Logger *zap.Logger
}

// Server is the HTTP front end.
type Server struct {
	cfg     Config
	factory *guid.Factory
	store   *store.Store
	metrics *metrics.Metrics
	logger  *zap.Logger
	limiter *rate.Limiter
	mux     *http.ServeMux
}

// New builds a Server and its routes.
func New(opts Options) *Server {
	s := &Server{
		cfg:     opts.Config,
		factory: opts.Factory,
		store:   opts.Store,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		mux:     http.NewServeMux(),
	}
	if s.factory == nil {
		s.factory = guid.NewFactory()
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.cfg.MaxBatch <= 0 {
		s.cfg.MaxBatch = 1000
	}

	if s.cfg.MintRate > 0 {
		burst := s.cfg.MintBurst
		if burst <= 0 {
			burst = int(s.cfg.MintRate) + 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(s.cfg.MintRate), burst)
	}

	s.mux.Handle("GET /v1/guids", s.instrument("mint", s.limit(s.handleMint)))
	s.mux.Handle("GET /v1/guids/{id...}", s.instrument("inspect", s.handleInspect))
	s.mux.Handle("POST /v1/guids/{id...}", s.instrument("register", s.handleRegister))
	s.mux.Handle("GET /healthz", s.instrument("healthz", s.handleHealth))
	s.mux.Handle("GET /metrics", s.metrics.Handler())
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.mux }

// Run serves on cfg.Addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.mux,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		ErrorLog:     zap.NewStdLog(s.logger),
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("HTTP server started", zap.String("address", ln.Addr().String()))

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	s.logger.Info("HTTP server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// limit rejects requests beyond the token bucket with 429.
func (s *Server) limit(next http.HandlerFunc) http.HandlerFunc {
	if s.limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.metrics.Throttled.Inc()
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

func (s *Server) instrument(route string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h(w, r)
		s.metrics.ObserveRequest(route, start)
		s.logger.Debug("request",
			zap.String("route", route),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// MintResponse is returned by GET /v1/guids.
type MintResponse struct {
	Shape  string   `json:"shape"`
	Format string   `json:"format"`
	IDs    []string `json:"ids"`
}

// IDInfo describes one identifier.
type IDInfo struct {
	ID         string    `json:"id"`
	Shape      string    `json:"shape"`
	Version    int       `json:"version"`
	Layout     string    `json:"layout,omitempty"`
	TenantID   int64     `json:"tenant_id"`
	PlatformID int64     `json:"platform_id"`
	Timestamp  int64     `json:"timestamp"`
	Time       time.Time `json:"time"`
	Counter    int64     `json:"counter"`
	Hex        string    `json:"hex"`
	Base32     string    `json:"base32"`
	Base64     string    `json:"base64"`
	Ark        string    `json:"ark"`

	// Registered and Label are set when a store is configured.
	Registered *bool  `json:"registered,omitempty"`
	Label      string `json:"label,omitempty"`
}

// RegisterRequest is the optional body of POST /v1/guids/{id}.
type RegisterRequest struct {
	Label string `json:"label"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ShapeOf names the shape of id.
func ShapeOf(id guid.Identifier) string {
	switch id.(type) {
	case guid.GUID:
		return ShapeGUID
	case guid.TinyGUID:
		return ShapeTiny
	default:
		return ShapeFactory
	}
}

// Describe fills an IDInfo from id.
func Describe(id guid.Identifier) IDInfo {
	info := IDInfo{
		ID:         id.String(),
		Shape:      ShapeOf(id),
		Version:    id.Version(),
		TenantID:   id.TenantID(),
		PlatformID: id.PlatformID(),
		Timestamp:  id.Timestamp(),
		Time:       time.UnixMilli(id.Timestamp()).UTC(),
		Counter:    id.Counter(),
		Hex:        id.Hex(),
		Base32:     id.Base32(),
		Base64:     id.Base64(),
		Ark:        id.Ark(),
	}
	if f, ok := id.(guid.FactoryGUID); ok {
		info.Layout = f.Layout().String()
	}
	return info
}

// Render writes id in format, which is "ark" or a guid.ParseBase name.
func Render(id guid.Identifier, format string) (string, error) {
	if strings.EqualFold(format, formatArk) {
		return id.Ark(), nil
	}
	base, err := guid.ParseBase(format)
	if err != nil {
		return "", err
	}
	return id.Format(base), nil
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	shape := q.Get("shape")
	if shape == "" {
		shape = ShapeGUID
	}
	format := strings.ToLower(q.Get("format"))
	if format == "" {
		format = "base32"
	}
	if format != formatArk {
		if _, err := guid.ParseBase(format); err != nil {
			s.badRequest(w, err)
			return
		}
	}

	count := 1
	if v := q.Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > s.cfg.MaxBatch {
			s.badRequest(w, fmt.Errorf("count %q must be between 1 and %d", v, s.cfg.MaxBatch))
			return
		}
		count = n
	}

	var tenant int64
	if shape == ShapeFactory {
		tenant = s.factory.TenantID()
	}
	if v := q.Get("tenant"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.badRequest(w, fmt.Errorf("tenant %q: %w", v, err))
			return
		}
		tenant = n
	}

	ids, err := s.mint(r.Context(), shape, tenant, count, format)
	if err != nil {
		if errors.Is(err, guid.ErrContextCanceled) {
			s.logger.Debug("mint canceled", zap.Int("minted", len(ids)), zap.Int("count", count))
			return
		}
		s.badRequest(w, err)
		return
	}
	s.metrics.ObserveMint(shape, len(ids))

	writeJSON(w, http.StatusOK, MintResponse{Shape: shape, Format: format, IDs: ids})
}

func (s *Server) mint(ctx context.Context, shape string, tenant int64, count int, format string) ([]string, error) {
	switch shape {
	case ShapeGUID:
		batch, err := guid.NewBatch(ctx, tenant, count)
		return renderAll(batch, err, format)
	case ShapeTiny:
		batch, err := guid.NewTinyBatch(ctx, tenant, count)
		return renderAll(batch, err, format)
	case ShapeFactory:
		batch, err := s.factory.NewBatch(ctx, tenant, count)
		return renderAll(batch, err, format)
	default:
		return nil, fmt.Errorf("shape %q must be guid, tiny or factory", shape)
	}
}

func renderAll[T guid.Identifier](batch []T, err error, format string) ([]string, error) {
	if err != nil && !errors.Is(err, guid.ErrContextCanceled) {
		return nil, err
	}
	out := make([]string, 0, len(batch))
	for _, id := range batch {
		text, rerr := Render(id, format)
		if rerr != nil {
			return nil, rerr
		}
		out = append(out, text)
	}
	return out, err
}

func (s *Server) parseID(w http.ResponseWriter, r *http.Request) (guid.Identifier, bool) {
	id, err := guid.ParseAny(r.PathValue("id"))
	s.metrics.ObserveParse(err)
	if err != nil {
		s.badRequest(w, err)
		return nil, false
	}
	return id, true
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseID(w, r)
	if !ok {
		return
	}
	info := Describe(id)

	if s.store != nil {
		rec, err := s.store.Get(r.Context(), id)
		switch {
		case err == nil:
			registered := true
			info.Registered = &registered
			info.Label = rec.Label
		case errors.Is(err, store.ErrNotFound):
			registered := false
			info.Registered = &registered
		default:
			s.internalError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "registry is not configured"})
		return
	}
	id, ok := s.parseID(w, r)
	if !ok {
		return
	}

	var req RegisterRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			s.badRequest(w, fmt.Errorf("body: %w", err))
			return
		}
	}

	err := s.store.Insert(r.Context(), id, req.Label)
	switch {
	case errors.Is(err, store.ErrExists):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		return
	case err != nil:
		s.internalError(w, err)
		return
	}
	s.metrics.Registered.Inc()

	info := Describe(id)
	registered := true
	info.Registered = &registered
	info.Label = req.Label
	writeJSON(w, http.StatusCreated, info)
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status     string `json:"status"`
	PlatformID int64  `json:"platform_id"`
	Layout     string `json:"layout"`
	Registered *int64 `json:"registered,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:     "UP",
		PlatformID: s.factory.PlatformID(),
		Layout:     s.factory.Layout().String(),
	}
	if s.store != nil {
		n, err := s.store.Count(r.Context())
		if err != nil {
			s.logger.Warn("health check: store unavailable", zap.Error(err))
			resp.Status = "DOWN"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Registered = &n
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
