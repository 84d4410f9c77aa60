package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"zapcentral/internal/errors"
	"zapcentral/internal/metrics"
	"zapcentral/internal/middleware"
	"zapcentral/internal/models"
	"zapcentral/internal/service"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// sessionManager is the slice of the registry the HTTP layer needs.
type sessionManager interface {
	CreateSession(rawPhone, company string) (models.SessionView, error)
	GetSession(ctx context.Context, sessionID string) (models.SessionView, error)
	ListSessions(ctx context.Context) []models.SessionView
	DeleteSession(sessionID string) error
	SendMessage(ctx context.Context, sessionID, target, body string) error
}

// reminderScheduler is the slice of the scheduler the HTTP layer needs.
type reminderScheduler interface {
	Start(ctx context.Context) bool
	Stop() bool
	Status() service.SchedulerStatus
}

type Server struct {
	appCtx    context.Context
	router    *mux.Router
	logger    *logrus.Logger
	cfg       models.ServerConfig
	sessions  sessionManager
	scheduler reminderScheduler
	server    *http.Server
}

func NewServer(appCtx context.Context, cfg models.ServerConfig, sessions sessionManager, scheduler reminderScheduler, logger *logrus.Logger) *Server {
	s := &Server{
		appCtx:    appCtx,
		router:    mux.NewRouter(),
		logger:    logger,
		cfg:       cfg,
		sessions:  sessions,
		scheduler: scheduler,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.ObservabilityMiddleware(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.requireAuth)

	api.HandleFunc("/session", s.handleCreateSession()).Methods(http.MethodPost)
	api.HandleFunc("/sessions", s.handleListSessions()).Methods(http.MethodGet)
	api.HandleFunc("/session/{id}", s.handleGetSession()).Methods(http.MethodGet)
	api.HandleFunc("/session/{id}", s.handleDeleteSession()).Methods(http.MethodDelete)

	api.HandleFunc("/send", s.handleSendMessage()).Methods(http.MethodPost)

	api.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	api.HandleFunc("/scheduler/start", s.handleSchedulerStart()).Methods(http.MethodPost)
	api.HandleFunc("/scheduler/stop", s.handleSchedulerStop()).Methods(http.MethodPost)
	api.HandleFunc("/scheduler/status", s.handleSchedulerStatus()).Methods(http.MethodGet)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSec) * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.cfg.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// requireAuth guards the API with the shared secret. An empty configured
// secret disables the check for local development; production config
// refuses to load without one.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APISecret != "" {
			provided := r.Header.Get("x-api-secret")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(s.cfg.APISecret)) != 1 {
				s.writeError(w, errors.NewAuthError("invalid or missing API secret"))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type createSessionRequest struct {
	Phone   string `json:"phone"`
	Company string `json:"company"`
}

type sendMessageRequest struct {
	SessionID string `json:"sessionId"`
	Target    string `json:"target"`
	Message   string `json:"message"`
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"version": Version,
		})
	}
}

func (s *Server) handleCreateSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, errors.NewValidationError("body", "invalid JSON payload"))
			return
		}

		view, err := s.sessions.CreateSession(req.Phone, req.Company)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeSuccess(w, http.StatusCreated, view)
	}
}

func (s *Server) handleListSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views := s.sessions.ListSessions(r.Context())
		s.writeSuccess(w, http.StatusOK, map[string]interface{}{
			"sessions": views,
			"count":    len(views),
		})
	}
}

func (s *Server) handleGetSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := s.sessions.GetSession(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeSuccess(w, http.StatusOK, view)
	}
}

func (s *Server) handleDeleteSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.sessions.DeleteSession(mux.Vars(r)["id"]); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeSuccess(w, http.StatusOK, map[string]string{
			"message": "session removed",
		})
	}
}

func (s *Server) handleSendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, errors.NewValidationError("body", "invalid JSON payload"))
			return
		}
		if req.SessionID == "" {
			s.writeError(w, errors.NewValidationError("sessionId", "sessionId is required"))
			return
		}
		if strings.TrimSpace(req.Target) == "" {
			s.writeError(w, errors.NewValidationError("target", "target is required"))
			return
		}
		if req.Message == "" {
			s.writeError(w, errors.NewValidationError("message", "message is required"))
			return
		}

		if err := s.sessions.SendMessage(r.Context(), req.SessionID, req.Target, req.Message); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeSuccess(w, http.StatusOK, map[string]string{
			"message": "sent",
		})
	}
}

func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, metrics.GetAllMetrics())
	}
}

func (s *Server) handleSchedulerStart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The scheduler loop outlives the request
		started := s.scheduler.Start(s.appCtx)
		s.writeSuccess(w, http.StatusOK, map[string]interface{}{
			"started": started,
			"status":  s.scheduler.Status(),
		})
	}
}

func (s *Server) handleSchedulerStop() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stopped := s.scheduler.Stop()
		s.writeSuccess(w, http.StatusOK, map[string]interface{}{
			"stopped": stopped,
			"status":  s.scheduler.Status(),
		})
	}
}

func (s *Server) handleSchedulerStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeSuccess(w, http.StatusOK, s.scheduler.Status())
	}
}

func (s *Server) writeSuccess(w http.ResponseWriter, status int, data interface{}) {
	s.writeJSON(w, status, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatusCode(err)
	s.writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   errors.GetUserMessage(err),
		"code":    string(errors.GetCode(err)),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}
