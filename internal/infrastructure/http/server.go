// Package http provides the HTTP server infrastructure.
// Clean Architecture: Framework/driver layer - outermost circle.
package http

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/0xcro3dile/reqcheck/internal/adapters/loader"
	"github.com/0xcro3dile/reqcheck/internal/domain/checklist"
	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
	"github.com/0xcro3dile/reqcheck/internal/domain/report"
	"github.com/0xcro3dile/reqcheck/internal/domain/usecases"
	"github.com/0xcro3dile/reqcheck/internal/prompts"
)

//go:embed templates/*
var templatesFS embed.FS

const (
	maxChecklistBytes = 1 << 20
	maxDocumentBytes  = 50 << 20
)

// HealthCheck probes one collaborator. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// Services are the use cases the server drives.
type Services struct {
	Generator *usecases.Generator
	Indexer   *usecases.Indexer
	Answerer  *usecases.Answerer
	Loader    *loader.MultiLoader
	Catalog   *prompts.Catalog
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics mounts a metrics handler on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithHealthCheck adds a named probe to /api/health.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) { s.checks[name] = check }
}

// WithDefaultChecklist sets the checklist a session starts with and resets to.
func WithDefaultChecklist(c entities.Checklist) Option {
	return func(s *Server) { s.defaultChecklist = c.Clone() }
}

// session is the single user session: the working checklist and the last report.
type session struct {
	id        string
	checklist entities.Checklist
	report    *analysis
}

// analysis is one finished document analysis.
type analysis struct {
	ID       string                  `json:"report_id"`
	Document string                  `json:"document"`
	Index    *entities.Index         `json:"index"`
	Results  []entities.AspectResult `json:"results"`
	Markdown string                  `json:"markdown"`
	Created  time.Time               `json:"created_at"`
}

// Server is the HTTP server for the checklist UI and API.
type Server struct {
	svc              Services
	defaultChecklist entities.Checklist
	metrics          http.Handler
	checks           map[string]HealthCheck
	templates        *template.Template
	logger           *slog.Logger
	addr             string

	busy    atomic.Bool
	mu      sync.Mutex
	session session
}

// NewServer creates a new HTTP server.
func NewServer(svc Services, addr string, opts ...Option) (*Server, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	s := &Server{
		svc:       svc,
		checks:    make(map[string]HealthCheck),
		templates: tmpl,
		logger:    slog.Default(),
		addr:      addr,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.defaultChecklist == nil {
		s.defaultChecklist = checklist.FallbackFor(svc.Catalog.Locale())
	}
	s.session = session{id: uuid.NewString(), checklist: s.defaultChecklist.Clone()}
	return s, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// UI
	mux.HandleFunc("GET /{$}", s.handleIndex)

	// API
	mux.HandleFunc("GET /api/checklist", s.handleGetChecklist)
	mux.HandleFunc("PUT /api/checklist", s.handlePutChecklist)
	mux.HandleFunc("POST /api/checklist/reset", s.handleResetChecklist)
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /api/report", s.handleReport)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	return corsMiddleware(loggingMiddleware(s.logger, mux))
}

// Start runs the HTTP server until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 30 * time.Minute, // generation and analysis run inside the request
	}

	s.logger.Info("reqcheck server starting", "addr", s.addr, "session", s.session.id)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleIndex renders the single-page UI.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	data := struct {
		SessionID  string
		Labels     prompts.Labels
		Checklist  entities.Checklist
		Questions  int
		Report     *analysis
		Extensions string
	}{
		SessionID:  s.session.id,
		Labels:     s.svc.Catalog.Labels(),
		Checklist:  s.session.checklist.Clone(),
		Questions:  s.session.checklist.QuestionCount(),
		Report:     s.session.report,
		Extensions: strings.Join(s.svc.Loader.SupportedExtensions(), ","),
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		s.logger.Error("Rendering index", "error", err)
	}
}

func (s *Server) handleGetChecklist(w http.ResponseWriter, r *http.Request) {
	c := s.currentChecklist()

	format := checklist.FormatJSON
	if r.URL.Query().Get("format") == "yaml" {
		format = checklist.FormatYAML
	}
	data, err := checklist.Encode(c, format)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if format == checklist.FormatYAML {
		w.Header().Set("Content-Type", "application/yaml")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	if r.URL.Query().Has("download") {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="checklist.%s"`, format))
	}
	w.Write(data)
}

func (s *Server) handlePutChecklist(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r, maxChecklistBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c, err := checklist.Decode(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	s.session.checklist = c
	s.mu.Unlock()

	s.logger.Info("Checklist uploaded", "aspects", len(c), "questions", c.QuestionCount())
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleResetChecklist(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.session.checklist = s.defaultChecklist.Clone()
	c := s.session.checklist.Clone()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, c)
}

// handleGenerate runs the full generation pipeline and makes its result the working checklist.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if !s.busy.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, errors.New("another run is in progress"))
		return
	}
	defer s.busy.Store(false)

	res, err := s.svc.Generator.Generate(r.Context())
	if err != nil {
		s.logger.Error("Checklist generation failed", "error", err)
		writeError(w, statusFor(err), err)
		return
	}

	s.mu.Lock()
	s.session.checklist = res.Checklist.Clone()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, res)
}

// handleAnalyze indexes an uploaded document and answers the working checklist against it.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBytes)
	file, header, err := r.FormFile("document")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("reading upload: %w", err))
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !s.svc.Loader.Supports(name) {
		writeError(w, http.StatusUnsupportedMediaType, fmt.Errorf("%w: %s", loader.ErrUnsupportedFormat, name))
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("reading upload: %w", err))
		return
	}

	if !s.busy.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, errors.New("another run is in progress"))
		return
	}
	defer s.busy.Store(false)

	ctx := r.Context()
	doc, err := s.svc.Loader.LoadBytes(ctx, name, data)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	index, err := s.svc.Indexer.BuildIndex(ctx, doc)
	if err != nil {
		s.logger.Error("Indexing failed", "document", name, "error", err)
		writeError(w, statusFor(err), err)
		return
	}

	c := s.currentChecklist()
	results, err := s.svc.Answerer.Answer(ctx, index, c, nil)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	a := &analysis{
		ID:       uuid.NewString(),
		Document: name,
		Index:    index,
		Results:  results,
		Markdown: report.Document(name, results, s.svc.Catalog.Labels()),
		Created:  time.Now(),
	}
	s.mu.Lock()
	s.session.report = a
	s.mu.Unlock()

	s.logger.Info("Document analyzed", "document", name, "report_id", a.ID, "questions", c.QuestionCount())
	writeJSON(w, http.StatusOK, a)
}

// handleReport serves the last report as markdown.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	a := s.session.report
	s.mu.Unlock()
	if a == nil {
		writeError(w, http.StatusNotFound, errors.New("no document has been analyzed yet"))
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	if r.URL.Query().Has("download") {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, report.FileName(a.Document)))
	}
	io.WriteString(w, a.Markdown)
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ok"
	checks := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}

	s.mu.Lock()
	sessionID := s.session.id
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"session": sessionID,
		"busy":    s.busy.Load(),
		"checks":  checks,
	})
}

func (s *Server) currentChecklist() entities.Checklist {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.checklist.Clone()
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, loader.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, loader.ErrUndecodable), errors.Is(err, checklist.ErrMalformed):
		return http.StatusBadRequest
	case errors.Is(err, usecases.ErrNoChunks):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func readBody(r *http.Request, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("body exceeds %d bytes", limit)
	}
	return data, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusRecorder captures the response code for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			return
		}
		next.ServeHTTP(w, r)
	})
}
