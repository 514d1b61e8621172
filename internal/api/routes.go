package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mrwill84/voice-web3/domain/repositories"
	"github.com/mrwill84/voice-web3/internal/auth"
	"github.com/mrwill84/voice-web3/internal/websocket"
	"github.com/mrwill84/voice-web3/usecase"
)

// InitRoutes initializes all API routes
func InitRoutes(
	e *echo.Echo,
	orchestrator *usecase.Orchestrator,
	hub *websocket.Hub,
	authenticator *auth.TokenAuthenticator,
	jwtService *auth.Service,
	logger *zap.Logger,
) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "voice-web3",
		})
	})

	// Every conversation call adopts the caller's bearer token; the
	// orchestrator's auth gate rejects anonymous input.
	bindToken := bearerMiddleware(authenticator, logger)

	// API v1 routes
	v1 := e.Group("/api/v1", bindToken)

	v1.POST("/conversation/utterance", func(c echo.Context) error {
		return postUtterance(c, orchestrator, logger)
	})
	v1.POST("/conversation/reset", func(c echo.Context) error {
		return postReset(c, orchestrator)
	})
	v1.GET("/conversation/transcript", func(c echo.Context) error {
		return getTranscript(c, orchestrator)
	})
	v1.GET("/conversation/state", func(c echo.Context) error {
		return getState(c, orchestrator)
	})
	v1.GET("/conversation/history", func(c echo.Context) error {
		return getHistory(c, orchestrator, logger)
	})

	// WebSocket voice surface with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(hub, c, authenticator, jwtService, logger)
	})
}

// bearerMiddleware adopts the Authorization bearer token as the current
// credential. Requests without a token pass through unauthenticated.
func bearerMiddleware(authenticator *auth.TokenAuthenticator, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token := bearerToken(c); token != "" {
				if err := authenticator.SetToken(token); err != nil {
					logger.Warn("Rejecting invalid bearer token", zap.Error(err))
					return c.JSON(http.StatusUnauthorized, ErrorResponse{
						Error:   "invalid_token",
						Message: "Invalid or expired token",
					})
				}
			}
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// postUtterance submits a typed utterance to the orchestrator.
func postUtterance(c echo.Context, orchestrator *usecase.Orchestrator, logger *zap.Logger) error {
	var req UtteranceRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind utterance request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if strings.TrimSpace(req.Text) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Text is required",
		})
	}

	err := orchestrator.SubmitUtterance(c.Request().Context(), req.Text)
	switch {
	case errors.Is(err, repositories.ErrAuthenticationRequired):
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_required",
			Message: "Sign in before talking to the assistant",
		})
	case errors.Is(err, usecase.ErrBusy):
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "busy",
			Message: "A previous request is still being processed",
		})
	case err != nil:
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, UtteranceResponse{
		State:            string(orchestrator.State()),
		ConfirmationMode: orchestrator.InConfirmationMode(),
		SessionID:        orchestrator.SessionID(),
	})
}

// postReset starts a new conversation.
func postReset(c echo.Context, orchestrator *usecase.Orchestrator) error {
	return c.JSON(http.StatusOK, ResetResponse{
		SessionID: orchestrator.Reset(),
	})
}

// getTranscript returns the in-memory transcript of the live conversation.
func getTranscript(c echo.Context, orchestrator *usecase.Orchestrator) error {
	return c.JSON(http.StatusOK, TranscriptResponse{
		SessionID: orchestrator.SessionID(),
		Turns:     orchestrator.Transcript(),
	})
}

// getState exposes the machine state and execution status.
func getState(c echo.Context, orchestrator *usecase.Orchestrator) error {
	return c.JSON(http.StatusOK, StateResponse{
		State:            string(orchestrator.State()),
		ConfirmationMode: orchestrator.InConfirmationMode(),
		ExecutionStatus:  string(orchestrator.ExecutionStatus()),
		SessionID:        orchestrator.SessionID(),
	})
}

// getHistory returns persisted turns for a (possibly past) session.
func getHistory(c echo.Context, orchestrator *usecase.Orchestrator, logger *zap.Logger) error {
	sessionID := c.QueryParam("session_id")
	if sessionID == "" {
		sessionID = orchestrator.SessionID()
	}

	limit := 50
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	turns, err := orchestrator.History(c.Request().Context(), sessionID, limit)
	if err != nil {
		logger.Error("Failed to load history",
			zap.String("sessionID", sessionID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "history_unavailable",
			Message: "Failed to load conversation history",
		})
	}

	return c.JSON(http.StatusOK, TranscriptResponse{
		SessionID: sessionID,
		Turns:     turns,
	})
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func websocketWithAuth(
	hub *websocket.Hub,
	c echo.Context,
	authenticator *auth.TokenAuthenticator,
	jwtService *auth.Service,
	logger *zap.Logger,
) error {
	// Extract JWT token from the Authorization header, falling back to the
	// token query parameter for browser clients.
	token := bearerToken(c)
	if token == "" {
		token = c.QueryParam("token")
	}

	if token == "" {
		logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required",
		})
	}

	// Validate JWT token
	claims, err := jwtService.ValidateToken(token)
	if err != nil {
		logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	if claims.Role != "user" {
		logger.Warn("WebSocket connection rejected: invalid role",
			zap.String("role", claims.Role))
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "invalid_role",
			Message: "Only user tokens are allowed for WebSocket connections",
		})
	}

	// The voice surface shares the conversation credential
	if err := authenticator.SetToken(token); err != nil {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	logger.Info("WebSocket connection authenticated",
		zap.String("userID", claims.UserID))

	return websocket.HandleWebSocket(hub, c, claims.UserID, logger)
}
