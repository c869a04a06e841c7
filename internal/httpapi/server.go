// Package httpapi exposes the conversation engine over HTTP.
//
// Sessions are created with POST /api/v1/sessions and driven by submitting
// messages, choices, and hand-off requests. Scripted reveals run in the
// background on the server, so clients poll GET .../messages to watch
// assistant messages appear with their typing cadence.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/smarterpayouts/mint/internal/chat"
	"github.com/smarterpayouts/mint/internal/modal"
	"github.com/smarterpayouts/mint/internal/npv"
	"github.com/smarterpayouts/mint/internal/queue"
)

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server serves the chat and quote API.
type Server struct {
	echo     *echo.Echo
	sessions *SessionManager
	engine   *npv.Engine
	logger   *zap.Logger
	config   Config
	metrics  *metrics
}

type metrics struct {
	sessionsCreated prometheus.Counter
	messagesTotal   *prometheus.CounterVec
	handoffsTotal   *prometheus.CounterVec
	npvTotal        prometheus.Counter
}

func newMetrics(reg *prometheus.Registry) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		sessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "mint_sessions_created_total",
			Help: "Total chat sessions created.",
		}),
		messagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mint_messages_total",
			Help: "Total messages submitted, by kind.",
		}, []string{"kind"}),
		handoffsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mint_handoffs_total",
			Help: "Total hand-off requests, by channel.",
		}, []string{"channel"}),
		npvTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "mint_npv_computations_total",
			Help: "Total present-value computations served.",
		}),
	}
}

// NewServer creates the HTTP server.
func NewServer(cfg Config, sessions *SessionManager, engine *npv.Engine, logger *zap.Logger) (*Server, error) {
	if sessions == nil {
		return nil, errors.New("session manager is required")
	}
	if engine == nil {
		return nil, errors.New("npv engine is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	reg := prometheus.NewRegistry()
	s := &Server{
		echo:     e,
		sessions: sessions,
		engine:   engine,
		logger:   logger,
		config:   cfg,
		metrics:  newMetrics(reg),
	}

	s.registerRoutes(reg)
	return s, nil
}

func (s *Server) registerRoutes(reg *prometheus.Registry) {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/sessions", s.handleCreateSession)
	v1.GET("/sessions/:id", s.handleGetSession)
	v1.DELETE("/sessions/:id", s.handleCloseSession)
	v1.GET("/sessions/:id/messages", s.handleGetMessages)
	v1.POST("/sessions/:id/messages", s.handleSubmitMessage)
	v1.POST("/sessions/:id/choice", s.handleSubmitChoice)
	v1.POST("/sessions/:id/handoff", s.handleRequestHandoff)
	v1.GET("/sessions/:id/queue", s.handleQueueState)
	v1.POST("/npv", s.handleNPV)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Sessions: s.sessions.Count()})
}

// CreateSessionRequest is the request body for POST /api/v1/sessions.
type CreateSessionRequest struct {
	UserName string `json:"user_name"`
}

// SessionResponse describes a session's current state.
type SessionResponse struct {
	SessionID      string        `json:"session_id"`
	Stage          chat.Stage    `json:"stage"`
	LastActivityAt time.Time     `json:"last_activity_at"`
	ModalChannel   modal.Channel `json:"modal_channel"`
}

func sessionResponse(id string, o *chat.Orchestrator) SessionResponse {
	sctx := o.SessionContext()
	return SessionResponse{
		SessionID:      id,
		Stage:          sctx.Stage,
		LastActivityAt: sctx.LastActivityAt,
		ModalChannel:   o.ModalChannel(),
	}
}

func (s *Server) handleCreateSession(c echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	id, o, err := s.sessions.Create(req.UserName)
	if err != nil {
		s.logger.Error("failed to create session", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create session")
	}

	s.metrics.sessionsCreated.Inc()
	return c.JSON(http.StatusCreated, sessionResponse(id, o))
}

func (s *Server) lookup(c echo.Context) (*chat.Orchestrator, error) {
	o, err := s.sessions.Get(c.Param("id"))
	if errors.Is(err, ErrSessionNotFound) {
		return nil, echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return o, err
}

func (s *Server) handleGetSession(c echo.Context) error {
	o, err := s.lookup(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionResponse(c.Param("id"), o))
}

func (s *Server) handleCloseSession(c echo.Context) error {
	err := s.sessions.Close(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrSessionNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if err != nil {
		s.logger.Error("failed to close session", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to close session")
	}
	return c.NoContent(http.StatusNoContent)
}

// MessagesResponse is the response body for GET .../messages.
type MessagesResponse struct {
	Messages []chat.Message `json:"messages"`
}

func (s *Server) handleGetMessages(c echo.Context) error {
	o, err := s.lookup(c)
	if err != nil {
		return err
	}
	msgs := o.Messages()
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return c.JSON(http.StatusOK, MessagesResponse{Messages: msgs})
}

// SubmitMessageRequest is the request body for POST .../messages.
type SubmitMessageRequest struct {
	Content string `json:"content"`
}

// SubmitMessageResponse carries the assistant's reply.
type SubmitMessageResponse struct {
	Reply chat.Message `json:"reply"`
}

func (s *Server) handleSubmitMessage(c echo.Context) error {
	o, err := s.lookup(c)
	if err != nil {
		return err
	}

	var req SubmitMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content field is required")
	}

	reply, err := o.SubmitFreeText(c.Request().Context(), req.Content)
	if errors.Is(err, chat.ErrSessionClosed) {
		return echo.NewHTTPError(http.StatusGone, "session is closed")
	}
	if err != nil {
		s.logger.Error("failed to handle message", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to handle message")
	}

	s.metrics.messagesTotal.WithLabelValues("free_text").Inc()
	return c.JSON(http.StatusOK, SubmitMessageResponse{Reply: reply})
}

// SubmitChoiceRequest is the request body for POST .../choice.
type SubmitChoiceRequest struct {
	ChoiceID string `json:"choice_id"`
}

func (s *Server) handleSubmitChoice(c echo.Context) error {
	o, err := s.lookup(c)
	if err != nil {
		return err
	}

	var req SubmitChoiceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ChoiceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "choice_id field is required")
	}
	if !chat.KnownChoice(req.ChoiceID) {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown choice_id")
	}

	// The scripted branch reveals with typing delays; run it in the
	// background and let the client poll messages.
	id := c.Param("id")
	go func() {
		if err := o.SubmitChoice(req.ChoiceID); err != nil && !errors.Is(err, chat.ErrSessionClosed) {
			s.logger.Error("choice submission failed", zap.String("session_id", id), zap.Error(err))
		}
	}()

	s.metrics.messagesTotal.WithLabelValues("choice").Inc()
	return c.NoContent(http.StatusAccepted)
}

// HandoffRequest is the request body for POST .../handoff.
type HandoffRequest struct {
	Channel chat.Channel `json:"channel"`
}

func (s *Server) handleRequestHandoff(c echo.Context) error {
	o, err := s.lookup(c)
	if err != nil {
		return err
	}

	var req HandoffRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Channel == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "channel field is required")
	}

	if err := o.RequestHandoff(c.Request().Context(), req.Channel); err != nil {
		if errors.Is(err, chat.ErrSessionClosed) {
			return echo.NewHTTPError(http.StatusGone, "session is closed")
		}
		s.logger.Error("handoff request failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to request handoff")
	}

	s.metrics.handoffsTotal.WithLabelValues(string(req.Channel)).Inc()
	return c.JSON(http.StatusOK, sessionResponse(c.Param("id"), o))
}

// QueueStateResponse is the response body for GET .../queue.
type QueueStateResponse struct {
	Active bool        `json:"active"`
	State  queue.State `json:"state,omitempty"`
}

func (s *Server) handleQueueState(c echo.Context) error {
	o, err := s.lookup(c)
	if err != nil {
		return err
	}
	state, ok := o.QueueState()
	return c.JSON(http.StatusOK, QueueStateResponse{Active: ok, State: state})
}

func (s *Server) handleNPV(c echo.Context) error {
	var schedule npv.PaymentSchedule
	if err := c.Bind(&schedule); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := s.engine.ComputeNPV(c.Request().Context(), schedule)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return echo.NewHTTPError(http.StatusRequestTimeout, "computation cancelled")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	s.metrics.npvTotal.Inc()
	return c.JSON(http.StatusOK, result)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server and closes all live sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	s.sessions.CloseAll(ctx)
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying http.Handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
