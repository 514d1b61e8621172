package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TurnRole identifies who or what produced a conversation turn.
type TurnRole string

const (
	TurnRoleUser         TurnRole = "user"
	TurnRoleAssistant    TurnRole = "assistant"
	TurnRoleConfirmation TurnRole = "confirmation"
	TurnRoleWaiting      TurnRole = "waiting"
	TurnRoleExecution    TurnRole = "execution"
)

// ExecutionStatus tracks the lifecycle of an execution turn.
type ExecutionStatus string

const (
	ExecutionStatusIdle      ExecutionStatus = "idle"
	ExecutionStatusExecuting ExecutionStatus = "executing"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusError     ExecutionStatus = "error"
)

// PendingAction describes a backend-proposed action awaiting user confirmation.
type PendingAction struct {
	ToolID           string                 `json:"tool_id" bson:"tool_id"`
	Params           map[string]interface{} `json:"params" bson:"params"`
	ConfirmationText string                 `json:"confirmation_text" bson:"confirmation_text"`
	SessionID        string                 `json:"session_id" bson:"session_id"`
}

// ConversationTurn is one immutable entry in the ordered transcript.
// After creation only ExecutionStatus and Resolved may change.
type ConversationTurn struct {
	ID              string          `json:"id" bson:"_id"`
	Role            TurnRole        `json:"role" bson:"role"`
	Content         string          `json:"content" bson:"content"`
	Timestamp       time.Time       `json:"timestamp" bson:"timestamp"`
	ExecutionStatus ExecutionStatus `json:"execution_status,omitempty" bson:"execution_status,omitempty"`
	PendingAction   *PendingAction  `json:"pending_action,omitempty" bson:"pending_action,omitempty"`
	Resolved        bool            `json:"resolved,omitempty" bson:"resolved,omitempty"`
	SessionID       string          `json:"session_id" bson:"session_id"`
}

// NewTurn creates a transcript turn with a fresh identity.
func NewTurn(role TurnRole, content string, sessionID string) ConversationTurn {
	return ConversationTurn{
		ID:        string(role) + "-" + uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		SessionID: sessionID,
	}
}

// NewExecutionTurn creates an execution turn already in the executing state.
func NewExecutionTurn(content string, sessionID string) ConversationTurn {
	turn := NewTurn(TurnRoleExecution, content, sessionID)
	turn.ExecutionStatus = ExecutionStatusExecuting
	return turn
}

// NewConfirmationTurn creates a confirmation turn carrying the pending action.
func NewConfirmationTurn(action PendingAction, sessionID string) ConversationTurn {
	turn := NewTurn(TurnRoleConfirmation, action.ConfirmationText, sessionID)
	turn.PendingAction = &action
	return turn
}

// Validate validates the turn data.
func (t *ConversationTurn) Validate() error {
	if t.ID == "" {
		return errors.New("turn id is required")
	}

	switch t.Role {
	case TurnRoleUser, TurnRoleAssistant, TurnRoleConfirmation, TurnRoleWaiting, TurnRoleExecution:
	default:
		return errors.New("invalid turn role")
	}

	if t.Role == TurnRoleConfirmation && t.PendingAction == nil {
		return errors.New("confirmation turn requires a pending action")
	}

	return nil
}
