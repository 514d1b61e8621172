package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mrwill84/voice-web3/domain/entities"
	"github.com/mrwill84/voice-web3/domain/repositories"
)

const (
	defaultBaseURL        = "http://localhost:8000"
	defaultRequestTimeout = 15 * time.Second
	interpretPath         = "/api/v1/intent/interpret"
	confirmPath           = "/api/v1/intent/confirm"

	// fallbackAnswer is surfaced when the backend answers with no usable
	// text field at all.
	fallbackAnswer = "message received"
)

// Config holds configuration for the intent gateway client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// NewConfigFromEnv creates a Config from environment variables.
func NewConfigFromEnv() Config {
	config := Config{
		BaseURL: os.Getenv("INTENT_API_BASE_URL"),
		Timeout: defaultRequestTimeout,
	}

	if timeoutStr := os.Getenv("INTENT_API_TIMEOUT_SECONDS"); timeoutStr != "" {
		if seconds, err := strconv.Atoi(timeoutStr); err == nil && seconds > 0 {
			config.Timeout = time.Duration(seconds) * time.Second
		}
	}

	return config
}

// Client is the HTTP implementation of the intent gateway. It is stateless;
// session correlation lives entirely in the ids it passes through.
type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       repositories.Authenticator
	logger     *zap.Logger
}

var _ repositories.IntentGateway = (*Client)(nil)

// NewClient creates a gateway client. The Authenticator supplies the bearer
// token attached to every request.
func NewClient(config Config, auth repositories.Authenticator, logger *zap.Logger) *Client {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
		logger.Info("Using default intent API base URL", zap.String("baseURL", baseURL))
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		auth:       auth,
		logger:     logger,
	}
}

type interpretRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
	UserID    *int   `json:"user_id,omitempty"`
}

type toolCall struct {
	ToolID     string                 `json:"tool_id"`
	Parameters map[string]interface{} `json:"parameters"`
}

type interpretResponse struct {
	SessionID         string                 `json:"session_id"`
	Action            string                 `json:"action"`
	ToolID            string                 `json:"tool_id"`
	Params            map[string]interface{} `json:"params"`
	ConfirmationText  string                 `json:"confirmation_text"`
	ConfirmText       string                 `json:"confirm_text"`
	TTSMessage        string                 `json:"tts_message"`
	NeedsConfirmation bool                   `json:"needs_confirmation"`
	Message           string                 `json:"message"`
	Content           string                 `json:"content"`
	Type              string                 `json:"type"`
	ToolCalls         []toolCall             `json:"tool_calls"`
}

type confirmRequest struct {
	SessionID string `json:"session_id"`
	UserInput string `json:"user_input"`
	UserID    *int   `json:"user_id,omitempty"`
}

type confirmResponse struct {
	Success   *bool                  `json:"success"`
	SessionID string                 `json:"session_id"`
	Data      map[string]interface{} `json:"data"`
	Result    map[string]interface{} `json:"result"`
	Content   string                 `json:"content"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Interpret sends the session-scoped utterance and classifies the response
// into one of the three outcomes by explicit field priority.
func (c *Client) Interpret(ctx context.Context, utterance string, sessionID string, userID *int) (*repositories.InterpretResult, error) {
	body := interpretRequest{
		Query:     utterance,
		SessionID: sessionID,
		UserID:    userID,
	}

	var resp interpretResponse
	if err := c.post(ctx, interpretPath, body, &resp); err != nil {
		return nil, fmt.Errorf("interpret failed: %w", err)
	}

	resolvedSession := resp.SessionID
	if resolvedSession == "" {
		resolvedSession = sessionID
	}

	result := &repositories.InterpretResult{SessionID: resolvedSession}

	// confirmation_text wins over its legacy alias confirm_text
	confirmation := resp.ConfirmationText
	if confirmation == "" {
		confirmation = resp.ConfirmText
	}

	toolID := resp.ToolID
	if toolID == "" {
		toolID = resp.Action
	}
	params := resp.Params

	// When the backend proposes multiple tool calls, the first candidate
	// wins over the top-level fields.
	if len(resp.ToolCalls) > 0 {
		toolID = resp.ToolCalls[0].ToolID
		params = resp.ToolCalls[0].Parameters
	}

	switch {
	case confirmation != "":
		result.Outcome = repositories.OutcomeNeedsConfirmation
		result.Action = entities.PendingAction{
			ToolID:           toolID,
			Params:           params,
			ConfirmationText: confirmation,
			SessionID:        resolvedSession,
		}

	case toolID != "":
		result.Outcome = repositories.OutcomeDirectAction
		result.Action = entities.PendingAction{
			ToolID:    toolID,
			Params:    params,
			SessionID: resolvedSession,
		}

	default:
		result.Outcome = repositories.OutcomeAnswer
		result.Answer = firstNonEmpty(resp.Content, resp.TTSMessage, resp.Message, fallbackAnswer)
	}

	c.logger.Debug("Interpret outcome",
		zap.String("outcome", string(result.Outcome)),
		zap.String("sessionID", resolvedSession),
		zap.String("toolID", toolID))

	return result, nil
}

// Confirm sends the user's free-text reply for the pending session action.
// An application-level failure comes back as Success=false, never an error.
func (c *Client) Confirm(ctx context.Context, sessionID string, userInput string, userID *int) (*repositories.ConfirmResult, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id cannot be empty")
	}
	if userInput == "" {
		return nil, fmt.Errorf("user input cannot be empty")
	}

	body := confirmRequest{
		SessionID: sessionID,
		UserInput: userInput,
		UserID:    userID,
	}

	var resp confirmResponse
	if err := c.post(ctx, confirmPath, body, &resp); err != nil {
		return nil, fmt.Errorf("confirm failed: %w", err)
	}

	resolvedSession := resp.SessionID
	if resolvedSession == "" {
		resolvedSession = sessionID
	}

	data := resp.Data
	if data == nil {
		data = resp.Result
	}

	result := &repositories.ConfirmResult{
		// success is absent on older backends; only an explicit false fails
		Success:   resp.Success == nil || *resp.Success,
		SessionID: resolvedSession,
		Content:   resp.Content,
		Data:      data,
	}
	if resp.Error != nil {
		result.ErrorMessage = resp.Error.Message
	}

	return result, nil
}

// post executes one JSON round-trip against the backend.
func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	requestBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if token := c.auth.Token(); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return repositories.ErrAuthenticationRequired
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errorBody, _ := io.ReadAll(resp.Body)
		c.logger.Error("Intent API returned error",
			zap.String("path", path),
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(errorBody)))
		return fmt.Errorf("intent API returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
