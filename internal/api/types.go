package api

import "github.com/mrwill84/voice-web3/domain/entities"

// UtteranceRequest represents a typed text utterance
type UtteranceRequest struct {
	Text string `json:"text" validate:"required"`
}

// UtteranceResponse reports the machine state after an utterance was accepted
type UtteranceResponse struct {
	State            string `json:"state"`
	ConfirmationMode bool   `json:"confirmation_mode"`
	SessionID        string `json:"session_id"`
}

// ResetResponse carries the fresh session id of a new conversation
type ResetResponse struct {
	SessionID string `json:"session_id"`
}

// StateResponse exposes the orchestrator state for the rendering surface
type StateResponse struct {
	State            string `json:"state"`
	ConfirmationMode bool   `json:"confirmation_mode"`
	ExecutionStatus  string `json:"execution_status"`
	SessionID        string `json:"session_id"`
}

// TranscriptResponse carries the ordered conversation transcript
type TranscriptResponse struct {
	SessionID string                      `json:"session_id"`
	Turns     []entities.ConversationTurn `json:"turns"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
