// Package server exposes a running engine over a loopback HTTP surface:
// message formatting, snapshot inspection, the send journal, Prometheus
// metrics, and a WebSocket stream of sends. There is no authentication
// layer; the server refuses to bind anywhere but loopback.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	stdliberrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/odvcencio/spyglass/pkg/budget"
	"github.com/odvcencio/spyglass/pkg/config"
	"github.com/odvcencio/spyglass/pkg/engine"
	"github.com/odvcencio/spyglass/pkg/errs"
	"github.com/odvcencio/spyglass/pkg/journal"
	"github.com/odvcencio/spyglass/pkg/logging"
	"github.com/odvcencio/spyglass/pkg/message"
)

const maxBodyBytes int64 = 1 << 20

// Server hosts the JSON/HTTP + WebSocket API around one engine.
type Server struct {
	cfg        *config.Config
	eng        *engine.Engine
	journal    *journal.Journal
	log        *logging.Logger
	hub        *Hub
	limiter    *rate.Limiter
	httpServer *http.Server
}

// Option configures optional server collaborators.
type Option func(*Server)

// WithJournal records every formatted send in the journal and serves it
// at /v1/journal.
func WithJournal(j *journal.Journal) Option {
	return func(s *Server) { s.journal = j }
}

// WithLogger sets the structured logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) { s.log = l }
}

// New constructs a server around eng. The engine is shared, not owned:
// closing the server leaves the engine running.
func New(cfg *config.Config, eng *engine.Engine, opts ...Option) *Server {
	s := &Server{cfg: cfg, eng: eng}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = NewHub(s.log)
	s.limiter = rate.NewLimiter(rate.Limit(cfg.Server.RatePerSecond), cfg.Server.RateBurst)
	return s
}

// Start runs the HTTP server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := strings.TrimSpace(s.cfg.Server.Listen)
	if !isLoopbackAddr(addr) {
		return errs.New(errs.CodeServerStart, "refusing to bind outside loopback").WithContext("listen", addr)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		_ = s.log.Info(logging.CategoryServer, "listen", "serving on "+addr, map[string]any{
			"session_id": s.eng.SessionID(),
		})
		if err := s.httpServer.ListenAndServe(); err != nil && !stdliberrors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.hub.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return errs.Wrap(err, errs.CodeServerStart, "http server failed")
	}
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(s.observeRequests)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/metrics", s.handleMetrics)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/message", s.handleMessage)
		r.Get("/snapshot", s.handleSnapshot)
		r.Get("/journal", s.handleJournal)
		r.Get("/stream", s.handleStream)
	})
	return r
}

type messageRequest struct {
	Prompt     string `json:"prompt"`
	FullResend bool   `json:"full_resend,omitempty"`
}

type messageResponse struct {
	SessionID string         `json:"session_id"`
	Parts     []message.Part `json:"parts"`
	Budget    budget.Report  `json:"budget"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		metricRateLimited.Inc()
		respondError(w, http.StatusTooManyRequests, errs.New(errs.CodeRateLimited, "message rate limit exceeded"))
		return
	}

	var req messageRequest
	if status, err := decodeJSONBody(w, r, &req); err != nil {
		respondError(w, status, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		respondError(w, http.StatusBadRequest, errs.New(errs.CodeInvalidInput, "prompt required"))
		return
	}

	// A send wants complete context, so the deferred phase is awaited
	// instead of racing the formatter.
	s.eng.Load(r.Context())
	s.eng.Wait()

	parts := s.eng.FormatMessage(r.Context(), req.Prompt, engine.FormatOptions{FullResend: req.FullResend})
	report := budget.Measure(parts)
	s.eng.MarkSent()

	if s.journal != nil {
		entry := journal.Entry{
			SessionID: s.eng.SessionID(),
			PromptLen: len(req.Prompt),
			Parts:     len(parts),
			Fields:    fieldsFromParts(parts),
			Tokens:    report.TotalTokens,
		}
		if err := s.journal.Append(&entry); err != nil {
			_ = s.log.Warn(logging.CategoryJournal, "journal_append_failed", "failed to record send", map[string]any{
				"error": err.Error(),
			})
		}
	}

	s.hub.Broadcast(Event{
		Type:      "message",
		SessionID: s.eng.SessionID(),
		Payload: map[string]any{
			"parts":  parts,
			"budget": report,
		},
	})

	respondJSON(w, messageResponse{
		SessionID: s.eng.SessionID(),
		Parts:     parts,
		Budget:    report,
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	full := false
	switch strings.ToLower(r.URL.Query().Get("full")) {
	case "1", "true", "yes":
		full = true
	}

	snap := s.eng.ComputeDelta()
	if full {
		snap = s.eng.Snapshot()
	}
	fields := make([]string, 0)
	for _, f := range snap.PresentFields() {
		fields = append(fields, string(f))
	}
	respondJSON(w, map[string]any{
		"session_id": s.eng.SessionID(),
		"full":       full,
		"fields":     fields,
		"snapshot":   snap,
	})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		respondError(w, http.StatusServiceUnavailable, errs.New(errs.CodeJournalRead, "journal disabled"))
		return
	}
	limit := parseIntDefault(r.URL.Query().Get("limit"), journal.DefaultRecentLimit)
	entries, err := s.journal.Recent(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.journal != nil {
		if _, err := s.journal.Count(); err != nil {
			respondError(w, http.StatusServiceUnavailable, stdliberrors.New("journal unavailable"))
			return
		}
	}
	respondJSON(w, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	s.hub.HandleWebSocket(w, r)
}

// fieldsFromParts lists the context fields a formatted message actually
// carried, in part order.
func fieldsFromParts(parts []message.Part) []string {
	seen := make(map[string]struct{})
	fields := make([]string, 0, len(parts))
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		fields = append(fields, name)
	}
	for _, part := range parts {
		switch part.Type {
		case message.PartFile:
			add("mentioned_files")
		case message.PartAgent:
			add("mentioned_subagents")
		case message.PartSynthetic:
			if part.Synthetic != nil {
				add(part.Synthetic.ContextType)
			}
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// observeRequests records one counter increment per request. The wrapper
// keeps http.Hijacker visible so the stream upgrade still works.
func (s *Server) observeRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metricRequests.WithLabelValues(r.URL.Path, strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, stdliberrors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func isLoopbackAddr(addr string) bool {
	if addr == "" {
		return false
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}

func parseIntDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return v
	}
	return def
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) (int, error) {
	if r.Body == nil {
		return http.StatusBadRequest, errs.New(errs.CodeInvalidInput, "request body required")
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if stdliberrors.Is(err, io.EOF) {
			return http.StatusBadRequest, errs.New(errs.CodeInvalidInput, "request body required")
		}
		var maxErr *http.MaxBytesError
		if stdliberrors.As(err, &maxErr) {
			return http.StatusRequestEntityTooLarge, fmt.Errorf("request body too large (max %d bytes)", maxBodyBytes)
		}
		return http.StatusBadRequest, errs.Wrap(err, errs.CodeInvalidInput, "malformed request body")
	}
	return 0, nil
}

func respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)

	response := struct {
		Error     string `json:"error"`
		Status    int    `json:"status"`
		Code      string `json:"code,omitempty"`
		Details   string `json:"details,omitempty"`
		Timestamp string `json:"timestamp"`
	}{
		Status:    status,
		Error:     http.StatusText(status),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	var se *errs.Error
	if stdliberrors.As(err, &se) {
		response.Code = string(se.Code)
		response.Error = se.Message
		response.Details = se.Error()
	} else if err != nil {
		response.Error = err.Error()
	}

	_ = json.NewEncoder(w).Encode(response)
}
