package repositories

import (
	"context"

	"github.com/mrwill84/voice-web3/domain/entities"
)

// InterpretOutcome discriminates the three interpret results.
type InterpretOutcome string

const (
	// OutcomeAnswer is a plain response with no side effects.
	OutcomeAnswer InterpretOutcome = "answer"
	// OutcomeNeedsConfirmation carries an action gated by a confirmation
	// round-trip.
	OutcomeNeedsConfirmation InterpretOutcome = "needs_confirmation"
	// OutcomeDirectAction is an action executable without a conversational
	// confirmation exchange (legacy low-risk path).
	OutcomeDirectAction InterpretOutcome = "direct_action"
)

// InterpretResult is the parsed outcome of an interpret call.
type InterpretResult struct {
	Outcome   InterpretOutcome
	SessionID string
	// Answer text, populated for OutcomeAnswer.
	Answer string
	// Action, populated for confirmation and direct outcomes.
	Action entities.PendingAction
}

// ConfirmResult is the parsed outcome of a confirm call. Application-level
// failure is Success=false; only transport failures surface as errors.
type ConfirmResult struct {
	Success      bool
	SessionID    string
	Content      string
	Data         map[string]interface{}
	ErrorMessage string
}

// IntentGateway is the stateless wrapper around the two backend intent
// endpoints. The backend's interpretation logic is an opaque remote service.
type IntentGateway interface {
	Interpret(ctx context.Context, utterance string, sessionID string, userID *int) (*InterpretResult, error)
	Confirm(ctx context.Context, sessionID string, userInput string, userID *int) (*ConfirmResult, error)
}
