package channel

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"coursechat/internal/domain"
	"coursechat/internal/metrics"
)

const (
	maxBodySize     = 1 << 20 // 1MB
	shutdownTimeout = 5 * time.Second
)

// Querier answers one user query within a session. *agent.Coordinator
// satisfies it.
type Querier interface {
	Query(ctx context.Context, userText, sessionID string) (string, []domain.SourceRef, string, error)
	ClearSession(id string)
}

// CourseCatalog reports what the vector store currently holds.
type CourseCatalog interface {
	CourseCount(ctx context.Context) (int, error)
	ListCourseTitles(ctx context.Context) ([]string, error)
}

// Web serves the HTTP API: queries, course stats, session management,
// health and metrics.
type Web struct {
	host       string
	port       int
	corsOrigin string
	querier    Querier
	catalog    CourseCatalog
	ws         *WebSocket
	logger     *slog.Logger
	version    string
	server     *http.Server
	handler    http.Handler
}

type WebConfig struct {
	Host       string
	Port       int
	CORSOrigin string
	Querier    Querier
	Catalog    CourseCatalog
	WebSocket  *WebSocket
	Logger     *slog.Logger
	Version    string
}

func NewWeb(cfg WebConfig) *Web {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	w := &Web{
		host:       cfg.Host,
		port:       cfg.Port,
		corsOrigin: cfg.CORSOrigin,
		querier:    cfg.Querier,
		catalog:    cfg.Catalog,
		ws:         cfg.WebSocket,
		logger:     cfg.Logger,
		version:    cfg.Version,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/query", w.handleQuery)
	mux.HandleFunc("GET /api/courses", w.handleCourses)
	mux.HandleFunc("DELETE /api/sessions/{id}", w.handleClearSession)
	mux.HandleFunc("GET /healthz", w.handleHealth)
	mux.Handle("GET /metrics", metrics.Collector.Handler())
	if w.ws != nil {
		mux.HandleFunc("GET /ws", w.ws.HandleUpgrade)
	}

	w.handler = w.withLogging(w.withCORS(mux))
	return w
}

// Handler returns the fully wrapped HTTP handler. Exposed so tests can
// drive the API without binding a port.
func (w *Web) Handler() http.Handler { return w.handler }

// Start runs the server until ctx is cancelled, then shuts down gracefully.
func (w *Web) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", w.host, w.port)
	w.server = &http.Server{
		Addr:              addr,
		Handler:           w.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	w.logger.Info("http server started", "addr", "http://"+addr)

	go func() {
		<-ctx.Done()
		if w.ws != nil {
			w.ws.CloseAll()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		w.server.Shutdown(shutdownCtx)
	}()

	if err := w.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (w *Web) handleQuery(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(rw).Encode(map[string]string{"error": "read body: " + err.Error()})
		return
	}

	var req queryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(rw).Encode(map[string]string{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		rw.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(rw).Encode(map[string]string{"error": "query must not be empty"})
		return
	}

	start := time.Now()
	answer, sources, sessionID, err := w.querier.Query(r.Context(), req.Query, req.SessionID)
	if err != nil {
		w.logger.Error("query failed", "session", req.SessionID, "err", err)
		rw.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(rw).Encode(map[string]string{"error": err.Error()})
		return
	}
	metrics.QueriesTotal.Inc()
	metrics.QueryLatency.Observe(time.Since(start).Seconds())

	json.NewEncoder(rw).Encode(queryResponse{
		Answer:    answer,
		Sources:   renderSources(sources),
		SessionID: sessionID,
	})
}

func (w *Web) handleCourses(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")

	count, err := w.catalog.CourseCount(r.Context())
	if err != nil {
		w.logger.Error("course count failed", "err", err)
		rw.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(rw).Encode(map[string]string{"error": err.Error()})
		return
	}
	titles, err := w.catalog.ListCourseTitles(r.Context())
	if err != nil {
		w.logger.Error("course listing failed", "err", err)
		rw.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(rw).Encode(map[string]string{"error": err.Error()})
		return
	}
	if titles == nil {
		titles = []string{}
	}

	json.NewEncoder(rw).Encode(coursesResponse{
		TotalCourses: count,
		CourseTitles: titles,
	})
}

func (w *Web) handleClearSession(rw http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		rw.Header().Set("Content-Type", "application/json; charset=utf-8")
		rw.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(rw).Encode(map[string]string{"error": "missing session id"})
		return
	}
	w.querier.ClearSession(id)
	rw.WriteHeader(http.StatusNoContent)
}

func (w *Web) handleHealth(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(rw).Encode(map[string]any{
		"status":  "ok",
		"version": w.version,
		"time":    time.Now().Format(time.RFC3339),
	})
}

// withCORS answers preflight requests and stamps the configured origin on
// every response.
func (w *Web) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Access-Control-Allow-Origin", w.corsOrigin)
		rw.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		rw.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			rw.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(rw, r)
	})
}

func (w *Web) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: rw, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		w.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).Round(time.Millisecond).String(),
		)
	})
}

// statusRecorder captures the response status for the logging middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the logging wrapper.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}

// renderSources flattens provenance to the wire format. Always non-nil so
// the response serializes as [] rather than null.
func renderSources(refs []domain.SourceRef) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ref.Label)
	}
	return out
}

// --- Request/response types ---

type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

type queryResponse struct {
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources"`
	SessionID string   `json:"session_id"`
}

type coursesResponse struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}
