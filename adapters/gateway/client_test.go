package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/mrwill84/voice-web3/domain/repositories"
)

type stubAuth struct {
	authenticated bool
	userID        *int
	token         string
}

func (s *stubAuth) IsAuthenticated() bool { return s.authenticated }
func (s *stubAuth) UserID() *int          { return s.userID }
func (s *stubAuth) Token() string         { return s.token }

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(
		Config{BaseURL: server.URL},
		&stubAuth{authenticated: true, token: "test-token"},
		zaptest.NewLogger(t),
	)
	return client, server
}

func TestInterpretAnswer(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != interpretPath {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			t.Errorf("Expected bearer token, got %q", auth)
		}

		var req interpretRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.Query != "check my balance" {
			t.Errorf("Unexpected query %q", req.Query)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"session_id": "session_2",
			"content":    "balance: 10",
			"message":    "lower priority",
		})
	})

	result, err := client.Interpret(context.Background(), "check my balance", "session_1", nil)
	if err != nil {
		t.Fatalf("Interpret failed: %v", err)
	}

	if result.Outcome != repositories.OutcomeAnswer {
		t.Errorf("Expected answer outcome, got %s", result.Outcome)
	}
	if result.Answer != "balance: 10" {
		t.Errorf("content should win over message, got %q", result.Answer)
	}
	if result.SessionID != "session_2" {
		t.Errorf("Expected rotated session id, got %s", result.SessionID)
	}
}

func TestInterpretAnswerFieldPriority(t *testing.T) {
	tests := []struct {
		name     string
		response map[string]interface{}
		want     string
	}{
		{
			name:     "tts_message over message",
			response: map[string]interface{}{"tts_message": "spoken", "message": "plain"},
			want:     "spoken",
		},
		{
			name:     "message alone",
			response: map[string]interface{}{"message": "plain"},
			want:     "plain",
		},
		{
			name:     "no text at all",
			response: map[string]interface{}{},
			want:     fallbackAnswer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(tt.response)
			})

			result, err := client.Interpret(context.Background(), "hi", "s1", nil)
			if err != nil {
				t.Fatalf("Interpret failed: %v", err)
			}
			if result.Answer != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, result.Answer)
			}
		})
	}
}

func TestInterpretNeedsConfirmation(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"session_id":   "session_1",
			"confirm_text": "Send 5 to 0xDEF?",
			"tool_id":      "transfer",
			"params":       map[string]interface{}{"recipient": "0xDEF"},
		})
	})

	result, err := client.Interpret(context.Background(), "send 5 to Bob", "session_1", nil)
	if err != nil {
		t.Fatalf("Interpret failed: %v", err)
	}

	if result.Outcome != repositories.OutcomeNeedsConfirmation {
		t.Fatalf("Expected confirmation outcome, got %s", result.Outcome)
	}
	if result.Action.ConfirmationText != "Send 5 to 0xDEF?" {
		t.Errorf("confirm_text alias should be accepted, got %q", result.Action.ConfirmationText)
	}
	if result.Action.ToolID != "transfer" {
		t.Errorf("Expected tool id transfer, got %s", result.Action.ToolID)
	}
}

func TestInterpretFirstToolCallWins(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"confirmation_text": "proceed?",
			"tool_id":           "top-level",
			"tool_calls": []map[string]interface{}{
				{"tool_id": "first", "parameters": map[string]interface{}{"a": 1.0}},
				{"tool_id": "second", "parameters": map[string]interface{}{"b": 2.0}},
			},
		})
	})

	result, err := client.Interpret(context.Background(), "do it", "s1", nil)
	if err != nil {
		t.Fatalf("Interpret failed: %v", err)
	}

	if result.Action.ToolID != "first" {
		t.Errorf("First tool call candidate should win, got %s", result.Action.ToolID)
	}
	if result.Action.Params["a"] != 1.0 {
		t.Errorf("Expected first candidate's parameters, got %v", result.Action.Params)
	}
}

func TestInterpretDirectAction(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"action": "query_balance",
		})
	})

	result, err := client.Interpret(context.Background(), "balance", "s1", nil)
	if err != nil {
		t.Fatalf("Interpret failed: %v", err)
	}

	if result.Outcome != repositories.OutcomeDirectAction {
		t.Errorf("Expected direct action outcome, got %s", result.Outcome)
	}
	if result.Action.ToolID != "query_balance" {
		t.Errorf("action field should supply the tool id, got %s", result.Action.ToolID)
	}
}

func TestInterpretUnauthorized(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Interpret(context.Background(), "hi", "s1", nil)
	if !errors.Is(err, repositories.ErrAuthenticationRequired) {
		t.Errorf("Expected ErrAuthenticationRequired, got %v", err)
	}
}

func TestInterpretServerError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if _, err := client.Interpret(context.Background(), "hi", "s1", nil); err == nil {
		t.Error("Expected error for 500 response")
	}
}

func TestConfirmSuccess(t *testing.T) {
	userID := 7
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != confirmPath {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}

		var req confirmRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.UserInput != "yes" {
			t.Errorf("Unexpected user input %q", req.UserInput)
		}
		if req.UserID == nil || *req.UserID != 7 {
			t.Errorf("Expected user id 7, got %v", req.UserID)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"session_id": "session_3",
			"content":    "sent",
		})
	})

	result, err := client.Confirm(context.Background(), "session_1", "yes", &userID)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	// success is absent: defaults to true
	if !result.Success {
		t.Error("Missing success field should default to true")
	}
	if result.Content != "sent" {
		t.Errorf("Expected content sent, got %q", result.Content)
	}
	if result.SessionID != "session_3" {
		t.Errorf("Expected rotated session id, got %s", result.SessionID)
	}
}

func TestConfirmApplicationFailure(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   map[string]interface{}{"message": "insufficient funds"},
		})
	})

	result, err := client.Confirm(context.Background(), "s1", "yes", nil)
	if err != nil {
		t.Fatalf("Application failure must not be an error: %v", err)
	}

	if result.Success {
		t.Error("Expected Success=false")
	}
	if result.ErrorMessage != "insufficient funds" {
		t.Errorf("Expected error message, got %q", result.ErrorMessage)
	}
}

func TestConfirmResultFallback(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result": map[string]interface{}{"summary": "ok"},
		})
	})

	result, err := client.Confirm(context.Background(), "s1", "yes", nil)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if result.Data["summary"] != "ok" {
		t.Errorf("result field should back-fill data, got %v", result.Data)
	}
}

func TestConfirmValidation(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("No request should be sent for invalid input")
	})

	if _, err := client.Confirm(context.Background(), "", "yes", nil); err == nil {
		t.Error("Expected error for empty session id")
	}
	if _, err := client.Confirm(context.Background(), "s1", "", nil); err == nil {
		t.Error("Expected error for empty user input")
	}
}
