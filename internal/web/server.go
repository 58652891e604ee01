package web

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"oraculum/internal/config"
	"oraculum/internal/indicator"
	"oraculum/internal/metrics"
	"oraculum/internal/provider"
	"oraculum/pkg/model"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// Scorer scores a batch of tickers
type Scorer interface {
	Score(ctx context.Context, tickers []string, r provider.DateRange) []model.ScoreRow
}

// Backtester runs window and rank backtests
type Backtester interface {
	RunWindow(ctx context.Context, tickers []string, start, end time.Time, th indicator.Thresholds) *model.WindowResult
	Rank(ctx context.Context, tickers []string, rankDate, to time.Time) *model.RankResult
}

// Server represents the web server
type Server struct {
	config   *config.Config
	scorer   Scorer
	backtest Backtester
	metrics  *metrics.Registry
	router   *mux.Router
	srv      *http.Server
}

// NewServer creates a new web server with all routes registered
func NewServer(cfg *config.Config, sc Scorer, bt Backtester, m *metrics.Registry) *Server {
	s := &Server{
		config:   cfg,
		scorer:   sc,
		backtest: bt,
		metrics:  m,
		router:   mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)

	s.router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix(s.config.Server.APIPrefix).Subrouter()
	api.HandleFunc("/wi", s.handleScore).Methods(http.MethodGet)
	api.HandleFunc("/wi/backtest", s.handleRank).Methods(http.MethodGet)
	api.HandleFunc("/backtest", s.handleBacktest).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

// Handler returns the root handler, CORS included
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.router)
}

// Start starts the web server on the configured address
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         s.config.Server.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	log.Info().
		Str("addr", s.config.Server.Addr).
		Str("api_prefix", s.config.Server.APIPrefix).
		Msgf("Starting %s API", s.config.App.Name)

	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		log.Info().Msg("Shutting down HTTP server")
		return s.srv.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()[:8]
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.metrics.HTTPRequest(route, wrapper.statusCode)

		requestID, _ := r.Context().Value(requestIDKey).(string)
		log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("took", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("request")
	})
}

// corsMiddleware answers preflight requests and tags responses for allowed origins
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowedOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			if origin != "*" {
				w.Header().Add("Vary", "Origin")
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowedOrigin(origin string) string {
	for _, o := range s.config.Server.CORSOrigins {
		if o == "*" {
			return "*"
		}
		if origin != "" && o == origin {
			return origin
		}
	}
	return ""
}

// responseWrapper captures HTTP status codes for logging
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
