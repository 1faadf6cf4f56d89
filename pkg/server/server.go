package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/t3rn/pkg/model"
	"github.com/m-mizutani/t3rn/pkg/usecase/session"
	"github.com/m-mizutani/t3rn/pkg/utils/logging"
)

const maxBodyBytes = 1 << 20

// Server is the HTTP transport of the session manager
type Server struct {
	router  *chi.Mux
	manager *session.Manager
	logger  *slog.Logger
}

type Option func(*Server)

// WithLogger sets the base logger for request contexts
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func New(manager *session.Manager, opts ...Option) *Server {
	s := &Server{
		manager: manager,
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)

	r.Get("/health", s.health)
	r.Route("/api/v1/sessions/{clientID}", func(r chi.Router) {
		r.Post("/messages", s.postMessage)
		r.Post("/screen", s.postScreen)
		r.Get("/memory", s.getMemory)
		r.Delete("/", s.deleteSession)
	})

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := s.logger.With("request_id", chimw.GetReqID(r.Context()))
		ctx := logging.With(r.Context(), logger)

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

type messageRequest struct {
	Message string              `json:"message"`
	Screen  model.ScreenPayload `json:"screen,omitempty"`
}

type messageResponse struct {
	SessionID  model.SessionID `json:"session_id"`
	Answer     string          `json:"answer"`
	Agent      string          `json:"agent"`
	Iterations int             `json:"iterations"`
}

type screenRequest struct {
	Screen model.ScreenPayload `json:"screen"`
}

func clientID(r *http.Request) model.ClientID {
	return model.ClientID(chi.URLParam(r, "clientID"))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": len(s.manager.Clients()),
	})
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req messageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	sess := s.manager.Get(ctx, clientID(r))
	outcome, err := sess.Handle(ctx, req.Message, req.Screen)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, session.ErrEmptyMessage):
			status = http.StatusBadRequest
		case errors.Is(err, session.ErrSessionClosed):
			status = http.StatusConflict
		}
		writeError(w, r, status, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		SessionID:  sess.ID(),
		Answer:     outcome.Answer,
		Agent:      string(outcome.Agent),
		Iterations: outcome.Iterations,
	})
}

func (s *Server) postScreen(w http.ResponseWriter, r *http.Request) {
	var req screenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if req.Screen == nil {
		writeError(w, r, http.StatusBadRequest, goerr.New("screen is required"))
		return
	}

	s.manager.Get(r.Context(), clientID(r)).PrimeScreen(req.Screen)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getMemory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.manager.Lookup(clientID(r))
	if !ok {
		writeError(w, r, http.StatusNotFound, session.ErrSessionNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Teardown(r.Context(), clientID(r)); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, session.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, r, status, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return goerr.Wrap(err, "invalid request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	logger := logging.From(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	} else {
		logger.Debug("request rejected", "error", err, "status", status)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
