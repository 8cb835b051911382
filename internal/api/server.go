// Package api exposes the contact bot operations over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/quantumlife/contactbot/internal/bot"
	"github.com/quantumlife/contactbot/internal/config"
	"github.com/quantumlife/contactbot/internal/core"
	"github.com/quantumlife/contactbot/internal/logging"
	"github.com/quantumlife/contactbot/internal/messaging"
	"github.com/quantumlife/contactbot/internal/storage"
)

// Runner performs the bot operations
type Runner interface {
	ListContacts(ctx context.Context, opts bot.CacheOptions) ([]core.Contact, error)
	MessageContacts(ctx context.Context, opts bot.MessageOptions) (*messaging.Report, error)
	SupportedProtocols() ([]messaging.Protocol, error)
	RecentDeliveries(limit int) ([]storage.Delivery, error)
}

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	runner     Runner
}

// Config for the server
type Config struct {
	Host   string
	Port   int
	Runner Runner
}

// New creates a new API server
func New(cfg Config) *Server {
	s := &Server{runner: cfg.Runner}
	s.setupRouter()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// setupRouter configures all routes
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/contacts", s.handleGetContacts)
	r.Post("/messages", s.handleSendMessages)
	r.Get("/protocols", s.handleGetProtocols)
	r.Get("/deliveries", s.handleGetDeliveries)

	s.router = r
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	logging.Info("API server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requestLogger logs each request through the structured logger and
// hands handlers a logger tagged with the request id
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		log := logging.WithField("request_id", middleware.GetReqID(r.Context()))
		next.ServeHTTP(ww, r.WithContext(logging.WithContext(r.Context(), log)))

		log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
		)
	})
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.runner.ListContacts(r.Context(), cacheOptions(r))
	if err != nil {
		s.respondRunError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, contacts)
}

func (s *Server) handleSendMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := bot.MessageOptions{
		CacheOptions: cacheOptions(r),
		Groups:       config.SplitGroups(q.Get("groups")),
		DryRun:       queryBool(r, "dry-run", false),
	}
	if date := q.Get("date"); date != "" {
		today, err := core.ParseDate(date)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Today = today
	}

	logging.FromContext(r.Context()).Info("send_messages invoked",
		"date", opts.Today.String(), "groups", opts.Groups, "dry_run", opts.DryRun)

	if _, err := s.runner.MessageContacts(r.Context(), opts); err != nil {
		s.respondRunError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetProtocols(w http.ResponseWriter, r *http.Request) {
	protocols, err := s.runner.SupportedProtocols()
	if err != nil {
		s.respondRunError(w, r, err)
		return
	}
	if protocols == nil {
		protocols = []messaging.Protocol{}
	}
	s.respondJSON(w, http.StatusOK, protocols)
}

func (s *Server) handleGetDeliveries(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	deliveries, err := s.runner.RecentDeliveries(limit)
	if err != nil {
		s.respondRunError(w, r, err)
		return
	}
	if deliveries == nil {
		deliveries = []storage.Delivery{}
	}
	s.respondJSON(w, http.StatusOK, deliveries)
}

// --- Request helpers ---

func cacheOptions(r *http.Request) bot.CacheOptions {
	return bot.CacheOptions{
		LoadCache: queryBool(r, "load-cache", true),
		SaveCache: queryBool(r, "save-cache", true),
	}
}

// queryBool reads a truthy query parameter, def when absent
func queryBool(r *http.Request, key string, def bool) bool {
	if !r.URL.Query().Has(key) {
		return def
	}
	return core.IsTruthy(r.URL.Query().Get(key))
}

// --- Response helpers ---

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) respondRunError(w http.ResponseWriter, r *http.Request, err error) {
	logging.FromContext(r.Context()).Error("Run failed", "error", err)
	s.respondError(w, http.StatusInternalServerError, err.Error())
}
