package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/isdmx/sandboxd/config"
	"github.com/isdmx/sandboxd/sandbox"
)

// Runner is the narrow engine contract the gateway consumes.
type Runner interface {
	sandbox.Executor
	Supports(language string) bool
	SupportedLanguages() []string
}

// Server is the HTTP request gateway. It validates and normalizes inbound
// requests, invokes the execution engine once per request, and serializes
// the result to JSON. All execution semantics live in the sandbox package.
type Server struct {
	config     *config.Config
	logger     *zap.Logger
	runner     Runner
	router     *chi.Mux
	httpServer *http.Server
}

// runRequest is the POST /run body
type runRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
	Timeout  int    `json:"timeout"`
}

// New creates a new Server and builds its routes
func New(cfg *config.Config, logger *zap.Logger, runner Runner) *Server {
	s := &Server{
		config: cfg,
		logger: logger,
		runner: runner,
		router: chi.NewRouter(),
	}

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(requestLogger(logger))

	s.router.Get("/health", s.handleHealth)
	s.router.Post("/run", s.handleRun)
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listening port and serves in the background. Bind
// failures are returned synchronously so startup can abort cleanly.
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Server.HTTPPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("http server listening",
		zap.Int("port", s.config.Server.HTTPPort),
		zap.Strings("languages", s.runner.SupportedLanguages()),
	)

	go func() {
		if serveErr := s.httpServer.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("http server failed", zap.Error(serveErr))
		}
	}()

	return nil
}

// Stop gracefully shuts the server down, letting in-flight requests finish.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// handleHealth is a static capability advertisement; it never invokes the
// engine.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"languages": s.runner.SupportedLanguages(),
	})
}

// handleRun validates the request and runs it through the engine. Input
// errors are 4xx rejections issued before the engine allocates anything;
// timeouts and non-zero exits from the snippet are normal 200 responses.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxBodyBytes)

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.Language == "" {
		req.Language = sandbox.LanguagePython
	}
	if !s.runner.Supports(req.Language) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported language: %s", req.Language))
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "empty code")
		return
	}

	// Detached from the request context: a dropped client connection does
	// not abort an in-flight execution. The wall-clock timeout is the only
	// cancellation mechanism.
	ctx := context.WithoutCancel(r.Context())

	result, err := s.runner.Execute(ctx, sandbox.ExecuteRequest{
		Language:   req.Language,
		Code:       req.Code,
		TimeoutSec: req.Timeout,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger logs one line per request with status and timing.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
