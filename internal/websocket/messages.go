package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mrwill84/voice-web3/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	// Inbound (client -> server)
	MessageTypeListeningStart MessageType = "listening_start"
	MessageTypeListeningEnd   MessageType = "listening_end"
	MessageTypeUtterance      MessageType = "utterance"
	MessageTypeReset          MessageType = "reset"
	MessageTypePing           MessageType = "ping"

	// Outbound (server -> client)
	MessageTypeInterim       MessageType = "interim_transcript"
	MessageTypeTurn          MessageType = "turn"
	MessageTypeState         MessageType = "state"
	MessageTypeSpeakingStart MessageType = "speaking_start"
	MessageTypeSpeakingEnd   MessageType = "speaking_end"
	MessageTypeError         MessageType = "error"
	MessageTypePong          MessageType = "pong"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

// ListeningStartMessage opens a voice capture. Audio follows as binary frames.
type ListeningStartMessage struct {
	BaseMessage
	SampleRate int    `json:"sample_rate,omitempty"`
	Encoding   string `json:"encoding,omitempty"`
	Language   string `json:"language,omitempty"`
}

// ListeningEndMessage closes the current voice capture.
type ListeningEndMessage struct {
	BaseMessage
}

// UtteranceMessage carries a typed text utterance.
type UtteranceMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// ResetMessage starts a new conversation.
type ResetMessage struct {
	BaseMessage
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// InterimMessage pushes a partial transcript while the user is speaking.
type InterimMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// TurnMessage pushes one transcript turn to the client.
type TurnMessage struct {
	BaseMessage
	Turn entities.ConversationTurn `json:"turn"`
}

// StateMessage pushes the orchestrator state so the voice surface can adapt
// its prompt (confirmation mode changes what a reply means).
type StateMessage struct {
	BaseMessage
	State            string `json:"state"`
	ConfirmationMode bool   `json:"confirmation_mode"`
	SessionID        string `json:"session_id,omitempty"`
}

// SpeakingMessage frames a synthesized audio stream; binary audio frames are
// sent between speaking_start and speaking_end.
type SpeakingMessage struct {
	BaseMessage
	SessionID string `json:"session_id,omitempty"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// validCaptureEncodings mirrors what the recognition adapter accepts.
var validCaptureEncodings = map[string]bool{
	"WAV": true, "LINEAR16": true, "FLAC": true,
	"MULAW": true, "OGG_OPUS": true, "WEBM_OPUS": true,
}

// MessageValidator provides validation for inbound WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage validates an incoming message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	// First parse as base message to get type
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeListeningStart:
		var msg ListeningStartMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid listening_start message: %w", err)
		}
		if err := v.validateListeningStart(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeListeningEnd:
		var msg ListeningEndMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid listening_end message: %w", err)
		}
		return &msg, nil

	case MessageTypeUtterance:
		var msg UtteranceMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid utterance message: %w", err)
		}
		if msg.Text == "" {
			return nil, fmt.Errorf("text is required")
		}
		return &msg, nil

	case MessageTypeReset:
		var msg ResetMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid reset message: %w", err)
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// validateListeningStart validates the optional capture parameters
func (v *MessageValidator) validateListeningStart(msg *ListeningStartMessage) error {
	if msg.SampleRate != 0 && (msg.SampleRate < 8000 || msg.SampleRate > 48000) {
		return fmt.Errorf("sample_rate must be between 8000 and 48000")
	}
	if msg.Encoding != "" && !validCaptureEncodings[msg.Encoding] {
		return fmt.Errorf("encoding must be one of: WAV, LINEAR16, FLAC, MULAW, OGG_OPUS, WEBM_OPUS")
	}
	return nil
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeError,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Code:    code,
		Message: message,
		Details: details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypePong,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Data: data,
	}
}

// CreateTurnMessage wraps a transcript turn for push delivery
func CreateTurnMessage(turn entities.ConversationTurn) *TurnMessage {
	return &TurnMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeTurn,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Turn: turn,
	}
}

// CreateStateMessage wraps the orchestrator state for push delivery
func CreateStateMessage(state entities.ConversationState, confirming bool, sessionID string) *StateMessage {
	return &StateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeState,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		State:            string(state),
		ConfirmationMode: confirming,
		SessionID:        sessionID,
	}
}
