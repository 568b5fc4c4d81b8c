// Package server exposes a Worker over HTTP: the intercepted asset routes,
// the /__worker control surface and /metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/storyqueue/internal/logging"
	"github.com/dmitrijs2005/storyqueue/internal/netx"
	"github.com/dmitrijs2005/storyqueue/internal/worker"
	"github.com/dmitrijs2005/storyqueue/internal/worker/message"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodyBytes bounds control request bodies.
const maxBodyBytes = 1 << 20

type Server struct {
	address         string
	worker          *worker.Worker
	logger          logging.Logger
	shutdownTimeout time.Duration
}

func New(address string, w *worker.Worker, l logging.Logger, shutdownTimeout time.Duration) *Server {
	return &Server{
		address:         address,
		worker:          w,
		logger:          l.With("module", "worker_server"),
		shutdownTimeout: shutdownTimeout,
	}
}

// Router builds the handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/__worker", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Post("/clients", s.registerClient)
		r.Post("/clients/{id}/messages", s.postMessage)
		r.Get("/clients/{id}/messages", s.drainMessages)
		r.Post("/push", s.push)
		r.Post("/notifications/{tag}/click", s.notificationClick)
	})

	r.Handle("/*", s.worker)
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	return netx.Serve(ctx, s.address, s.Router(), s.logger, s.shutdownTimeout)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.worker.Status())
}

type registerRequest struct {
	URL string `json:"url"`
}

type registerResponse struct {
	ID string `json:"id"`
}

func (s *Server) registerClient(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}
	if req.URL == "" {
		req.URL = "/"
	}
	c := s.worker.Clients().Register(req.URL)
	s.logger.Info(r.Context(), "client registered", "client", c.ID, "url", c.URL)
	writeJSON(w, http.StatusCreated, registerResponse{ID: c.ID})
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	m, err := message.Decode(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch err := s.worker.HandleMessage(r.Context(), id, m); {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, worker.ErrUnknownClient):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, worker.ErrUnsupportedMessage):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error(r.Context(), "handle message", "client", id, "error", err)
		writeError(w, http.StatusInternalServerError, "message not handled")
	}
}

func (s *Server) drainMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.worker.Clients().Drain(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

type pushResponse struct {
	Tag string `json:"tag"`
}

func (s *Server) push(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	n, err := s.worker.HandlePush(r.Context(), payload)
	if err != nil {
		s.logger.Error(r.Context(), "handle push", "error", err)
		writeError(w, http.StatusInternalServerError, "notification not shown")
		return
	}
	writeJSON(w, http.StatusAccepted, pushResponse{Tag: n.Tag})
}

func (s *Server) notificationClick(w http.ResponseWriter, r *http.Request) {
	c, err := s.worker.HandleNotificationClick(r.Context(), chi.URLParam(r, "tag"))
	if err != nil {
		if errors.Is(err, worker.ErrNotificationNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error(r.Context(), "notification click", "error", err)
		writeError(w, http.StatusInternalServerError, "click not handled")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
