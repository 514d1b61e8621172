package gateway

import (
	"context"
	"sync"

	"github.com/mrwill84/voice-web3/domain/repositories"
)

// MockGateway is a scriptable IntentGateway for tests.
type MockGateway struct {
	mu sync.Mutex

	InterpretFunc func(ctx context.Context, utterance, sessionID string, userID *int) (*repositories.InterpretResult, error)
	ConfirmFunc   func(ctx context.Context, sessionID, userInput string, userID *int) (*repositories.ConfirmResult, error)

	InterpretCalls []InterpretCall
	ConfirmCalls   []ConfirmCall
}

// InterpretCall records one Interpret invocation.
type InterpretCall struct {
	Utterance string
	SessionID string
	UserID    *int
}

// ConfirmCall records one Confirm invocation.
type ConfirmCall struct {
	SessionID string
	UserInput string
	UserID    *int
}

var _ repositories.IntentGateway = (*MockGateway)(nil)

// InterpretCallCount reports how many interpret calls were recorded.
func (m *MockGateway) InterpretCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.InterpretCalls)
}

// ConfirmCallCount reports how many confirm calls were recorded.
func (m *MockGateway) ConfirmCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ConfirmCalls)
}

// NewMockGateway creates a mock whose default interpret outcome is a plain
// answer echoing the utterance.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (m *MockGateway) Interpret(ctx context.Context, utterance string, sessionID string, userID *int) (*repositories.InterpretResult, error) {
	m.mu.Lock()
	m.InterpretCalls = append(m.InterpretCalls, InterpretCall{Utterance: utterance, SessionID: sessionID, UserID: userID})
	fn := m.InterpretFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, utterance, sessionID, userID)
	}

	return &repositories.InterpretResult{
		Outcome:   repositories.OutcomeAnswer,
		SessionID: sessionID,
		Answer:    utterance,
	}, nil
}

func (m *MockGateway) Confirm(ctx context.Context, sessionID string, userInput string, userID *int) (*repositories.ConfirmResult, error) {
	m.mu.Lock()
	m.ConfirmCalls = append(m.ConfirmCalls, ConfirmCall{SessionID: sessionID, UserInput: userInput, UserID: userID})
	fn := m.ConfirmFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, sessionID, userInput, userID)
	}

	return &repositories.ConfirmResult{
		Success:   true,
		SessionID: sessionID,
		Content:   "done",
	}, nil
}
