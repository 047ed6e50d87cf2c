// Package server exposes the credit protocol over HTTP: signed message
// execution, read-only queries, and a websocket stream of committed events.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"creditchain/app"
	"creditchain/core/types"
	"creditchain/gateway/middleware"
	"creditchain/services/indexer"
)

const (
	requestBodyLimit      = 1 << 20
	defaultRequestTimeout = 10 * time.Second

	// Rate limit policy names.
	PolicyExecute = "execute"
	PolicyQuery   = "query"
	PolicyStream  = "stream"
)

// Journal is the read side of the event indexer.
type Journal interface {
	Events(ctx context.Context, f indexer.EventFilter) ([]indexer.EventRecord, error)
	ExportLiquidations(ctx context.Context, w io.Writer, fromHeight uint64) (int, error)
}

// Config wires the HTTP surface.
type Config struct {
	Auth           middleware.AuthConfig
	RateLimits     map[string]middleware.RateLimit
	CORS           middleware.CORSConfig
	StreamBuffer   int
	RequestTimeout time.Duration
	// Journal is optional; the /v1/events and /v1/liquidations routes are
	// mounted only when it is set.
	Journal Journal
}

// Server routes HTTP requests to the app.
type Server struct {
	app     *app.App
	cfg     Config
	logger  *slog.Logger
	hub     *hub
	auth    *middleware.Authenticator
	limiter *middleware.RateLimiter
	router  chi.Router
}

// New builds the server and subscribes its event hub to app.
func New(a *app.App, cfg Config, logger *slog.Logger) (*Server, error) {
	if a == nil {
		return nil, fmt.Errorf("app required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	cfg.Auth.OptionalPaths = append(cfg.Auth.OptionalPaths, "/v1/query", "/v1/events")
	s := &Server{
		app:     a,
		cfg:     cfg,
		logger:  logger.With("component", "creditd.server"),
		hub:     newHub(cfg.StreamBuffer),
		auth:    middleware.NewAuthenticator(cfg.Auth, logger),
		limiter: middleware.NewRateLimiter(cfg.RateLimits, logger),
	}
	a.Subscribe(s.hub.publish)
	s.router = s.routes()
	return s, nil
}

// Handler returns the traced root handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "creditd")
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.CORS(s.cfg.CORS))
	r.Use(middleware.Instrument("creditd", s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.auth.Middleware())
		r.With(s.limiter.Middleware(PolicyExecute)).Post("/execute", s.handleExecute)
		r.With(s.limiter.Middleware(PolicyQuery)).Get("/query", s.handleModules)
		r.With(s.limiter.Middleware(PolicyQuery)).Post("/query/{module}/{name}", s.handleQuery)
		r.With(s.limiter.Middleware(PolicyStream)).Get("/events/ws", s.handleStream)
		if s.cfg.Journal != nil {
			r.With(s.limiter.Middleware(PolicyQuery)).Get("/events", s.handleEvents)
			r.With(s.limiter.Middleware(PolicyQuery)).Get("/liquidations/export", s.handleExportLiquidations)
		}
	})
	return r
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	env := s.app.Env()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"chainId": env.ChainID,
		"height":  env.Height,
		"time":    env.Time,
	})
}

type executeRequest struct {
	Contract string          `json:"contract"`
	Msg      json.RawMessage `json:"msg"`
	Funds    []types.Coin    `json:"funds,omitempty"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	sender := middleware.Subject(r.Context())
	if sender == "" {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("authenticated sender required"))
		return
	}
	var req executeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Msg) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("msg is required"))
		return
	}
	contract, err := s.app.ContractAddress(strings.TrimSpace(req.Contract))
	if err != nil {
		writeAppError(w, err)
		return
	}
	msg, err := s.app.Codec().Decode(contract, req.Msg)
	if err != nil {
		writeAppError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()
	res, err := s.app.Execute(ctx, sender, contract, msg, req.Funds...)
	if err != nil {
		s.logger.Info("execute rejected", "sender", sender, "contract", contract, "error", err)
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleModules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Queries().Modules())
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var args json.RawMessage
	if r.ContentLength != 0 {
		if err := decodeBody(r, &args); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()
	out, err := s.app.Queries().Query(ctx, chi.URLParam(r, "module"), chi.URLParam(r, "name"), args)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := indexer.EventFilter{Type: q.Get("type"), Sender: q.Get("sender")}
	var err error
	if filter.FromHeight, err = parseUint(q.Get("from_height")); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("from_height: %w", err))
		return
	}
	if raw := q.Get("limit"); raw != "" {
		if filter.Limit, err = strconv.Atoi(raw); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit: %w", err))
			return
		}
	}
	rows, err := s.cfg.Journal.Events(r.Context(), filter)
	if err != nil {
		s.logger.Error("journal query failed", "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("journal unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleExportLiquidations(w http.ResponseWriter, r *http.Request) {
	from, err := parseUint(r.URL.Query().Get("from_height"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("from_height: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/vnd.apache.parquet")
	w.Header().Set("Content-Disposition", `attachment; filename="liquidations.parquet"`)
	if _, err := s.cfg.Journal.ExportLiquidations(r.Context(), w, from); err != nil {
		// Headers may already be on the wire; the client sees a truncated file.
		s.logger.Error("liquidation export failed", "error", err)
	}
}

func parseUint(raw string) (uint64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseUint(raw, 10, 64)
}

func decodeBody(r *http.Request, v any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, requestBodyLimit))
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
