package websocket

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/mrwill84/voice-web3/domain/entities"
)

func TestMessageValidator_ValidateListeningStart(t *testing.T) {
	validator := NewMessageValidator()

	tests := []struct {
		name    string
		message string
		wantErr bool
	}{
		{
			name: "valid listening start",
			message: `{
				"type": "listening_start",
				"sample_rate": 16000,
				"encoding": "LINEAR16",
				"language": "en-US"
			}`,
			wantErr: false,
		},
		{
			name:    "defaults are fine",
			message: `{"type": "listening_start"}`,
			wantErr: false,
		},
		{
			name: "invalid sample rate",
			message: `{
				"type": "listening_start",
				"sample_rate": 100000
			}`,
			wantErr: true,
		},
		{
			name: "invalid encoding",
			message: `{
				"type": "listening_start",
				"encoding": "mp3"
			}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validator.ValidateMessage([]byte(tt.message))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessageValidator_ValidateUtterance(t *testing.T) {
	validator := NewMessageValidator()

	result, err := validator.ValidateMessage([]byte(`{"type": "utterance", "text": "check my balance"}`))
	if err != nil {
		t.Fatalf("ValidateMessage() error = %v", err)
	}

	utterance, ok := result.(*UtteranceMessage)
	if !ok {
		t.Fatalf("Expected *UtteranceMessage, got %T", result)
	}
	if utterance.Text != "check my balance" {
		t.Errorf("Expected text 'check my balance', got '%s'", utterance.Text)
	}

	if _, err := validator.ValidateMessage([]byte(`{"type": "utterance"}`)); err == nil {
		t.Error("Expected error for utterance without text")
	}
}

func TestMessageValidator_ValidatePing(t *testing.T) {
	validator := NewMessageValidator()

	message := `{
		"type": "ping",
		"data": "test-ping"
	}`

	result, err := validator.ValidateMessage([]byte(message))
	if err != nil {
		t.Errorf("ValidateMessage() error = %v", err)
	}

	pingMsg, ok := result.(*PingMessage)
	if !ok {
		t.Errorf("Expected *PingMessage, got %T", result)
	}

	if pingMsg.Data != "test-ping" {
		t.Errorf("Expected data 'test-ping', got '%s'", pingMsg.Data)
	}
}

func TestMessageValidator_InvalidJSON(t *testing.T) {
	validator := NewMessageValidator()

	invalidMessages := []string{
		`{invalid json}`,
		`{"type": "utterance", "text":}`,
		``,
		`{"type": }`,
	}

	for i, msg := range invalidMessages {
		t.Run(fmt.Sprintf("invalid_json_%d", i), func(t *testing.T) {
			_, err := validator.ValidateMessage([]byte(msg))
			if err == nil {
				t.Errorf("Expected error for invalid JSON, got nil")
			}
		})
	}
}

func TestMessageValidator_UnsupportedMessageType(t *testing.T) {
	validator := NewMessageValidator()

	message := `{
		"type": "unsupported_type",
		"data": "some data"
	}`

	_, err := validator.ValidateMessage([]byte(message))
	if err == nil {
		t.Errorf("Expected error for unsupported message type, got nil")
	}
}

func TestCreateErrorMessage(t *testing.T) {
	code := "TEST_ERROR"
	message := "Test error message"
	details := "Test error details"

	errorMsg := CreateErrorMessage(code, message, details)

	if errorMsg.Type != MessageTypeError {
		t.Errorf("Expected type %s, got %s", MessageTypeError, errorMsg.Type)
	}
	if errorMsg.Code != code {
		t.Errorf("Expected code %s, got %s", code, errorMsg.Code)
	}
	if errorMsg.Message != message {
		t.Errorf("Expected message %s, got %s", message, errorMsg.Message)
	}
	if errorMsg.Details != details {
		t.Errorf("Expected details %s, got %s", details, errorMsg.Details)
	}

	// Verify timestamp is recent
	timestamp, err := time.Parse(time.RFC3339, errorMsg.Timestamp)
	if err != nil {
		t.Errorf("Invalid timestamp format: %v", err)
	}
	if time.Since(timestamp) > time.Second {
		t.Errorf("Timestamp is not recent: %s", errorMsg.Timestamp)
	}
}

func TestMessageSerialization(t *testing.T) {
	turn := entities.NewTurn(entities.TurnRoleAssistant, "balance: 10", "session_1")

	tests := []struct {
		name    string
		message interface{}
	}{
		{
			name:    "TurnMessage",
			message: CreateTurnMessage(turn),
		},
		{
			name:    "StateMessage",
			message: CreateStateMessage(entities.StateAwaitingConfirmationReply, true, "session_1"),
		},
		{
			name:    "ErrorMessage",
			message: CreateErrorMessage("TEST_ERROR", "Test message", "Test details"),
		},
		{
			name:    "PongMessage",
			message: CreatePongMessage("pong-data"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.message)
			if err != nil {
				t.Errorf("Failed to marshal message: %v", err)
				return
			}

			var result map[string]interface{}
			if err := json.Unmarshal(data, &result); err != nil {
				t.Errorf("Failed to unmarshal message: %v", err)
				return
			}

			if _, exists := result["type"]; !exists {
				t.Errorf("Message missing 'type' field")
			}
			if _, exists := result["timestamp"]; !exists {
				t.Errorf("Message missing 'timestamp' field")
			}
		})
	}
}

func TestStateMessageCarriesConfirmationMode(t *testing.T) {
	msg := CreateStateMessage(entities.StateAwaitingConfirmationReply, true, "session_1")

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	if result["state"] != "awaiting_confirmation_reply" {
		t.Errorf("Unexpected state %v", result["state"])
	}
	if result["confirmation_mode"] != true {
		t.Error("Expected confirmation_mode true")
	}
}
