// Package httpapi exposes the orchestrator to a chat host over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Iron-Ham/image2video/internal/errors"
	"github.com/Iron-Ham/image2video/internal/lifecycle"
	"github.com/Iron-Ham/image2video/internal/logging"
	"github.com/Iron-Ham/image2video/internal/orchestrator"
	"github.com/Iron-Ham/image2video/internal/session"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type (
	// ErrorResponse is the body of every non-2xx response
	ErrorResponse struct {
		Error  string `json:"error"`
		Status int    `json:"status,omitempty"`
	}

	// HealthResponse reports the lifecycle state
	HealthResponse struct {
		Status string `json:"status"`
		State  string `json:"state"`
	}

	// PhaseResponse reports a user's conversation phase
	PhaseResponse struct {
		UserID string `json:"user_id"`
		Phase  string `json:"phase"`
	}
)

// Workflow is the part of *orchestrator.Orchestrator the adapter drives.
type Workflow interface {
	HandleEvent(ctx context.Context, msg orchestrator.Message) (orchestrator.Reply, error)
	Phase(ctx context.Context, userID string) (session.Phase, error)
	State() lifecycle.State
	Start(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Server implements the HTTP host adapter
type Server struct {
	orch   Workflow
	logger *logging.Logger
}

// NewServer creates a Server for orch
func NewServer(orch Workflow, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Server{
		orch:   orch,
		logger: logger.WithComponent("httpapi"),
	}
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, _ *slog.Logger) *slog.Logger {
			return s.logger.Slog().With("request_id", c.GetString("request_id"))
		}),
	))

	router.GET("/healthz", s.handleHealth)

	v1 := router.Group("/v1")
	{
		v1.POST("/events", s.handleEvent)
		v1.GET("/users/:userID/phase", s.handlePhase)
		v1.POST("/lifecycle/:op", s.handleLifecycle)
	}

	return router
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(RequestIDHeader, id)
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	state := s.orch.State()
	resp := HealthResponse{Status: "ok", State: string(state)}
	if state != lifecycle.StateStarted {
		resp.Status = "unavailable"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleEvent(c *gin.Context) {
	var msg orchestrator.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}

	reply, err := s.orch.HandleEvent(c.Request.Context(), msg)
	if err != nil {
		s.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (s *Server) handlePhase(c *gin.Context) {
	userID := c.Param("userID")
	phase, err := s.orch.Phase(c.Request.Context(), userID)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, PhaseResponse{UserID: userID, Phase: string(phase)})
}

func (s *Server) handleLifecycle(c *gin.Context) {
	ctx := c.Request.Context()

	op := c.Param("op")
	var err error
	switch op {
	case lifecycle.OpStart:
		err = s.orch.Start(ctx)
	case lifecycle.OpPause:
		err = s.orch.Pause(ctx)
	case lifecycle.OpResume:
		err = s.orch.Resume(ctx)
	case lifecycle.OpStop:
		err = s.orch.Stop(ctx)
	default:
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:  "unknown lifecycle operation: " + op,
			Status: http.StatusNotFound,
		})
		return
	}

	switch {
	case err == nil:
	case errors.KindOf(err) == errors.KindIllegalState:
		s.fail(c, http.StatusConflict, err)
		return
	case op == lifecycle.OpStop:
		// Stop reaches STOPPED even when cleanup fails.
		s.logger.Warn("stop reported an error", "error", err.Error())
	default:
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", State: string(s.orch.State())})
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err.Error())
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Status: status})
}

func statusFor(err error) int {
	switch errors.KindOf(err) {
	case errors.KindIllegalState:
		return http.StatusConflict
	case errors.KindValidation:
		return http.StatusBadRequest
	case errors.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
