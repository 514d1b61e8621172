package entities

// ConversationState is the single tagged state of the orchestrator.
// Illegal combinations of the old boolean flags (confirmation mode,
// executing, processing) are unrepresentable by construction.
type ConversationState string

const (
	StateIdle                      ConversationState = "idle"
	StateAwaitingInterpretation    ConversationState = "awaiting_interpretation"
	StateAwaitingConfirmationReply ConversationState = "awaiting_confirmation_reply"
	StateExecuting                 ConversationState = "executing"
)

// PendingConfirmation is the at-most-one confirmation sub-state held while
// the orchestrator is in StateAwaitingConfirmationReply. It records the
// session id at the time the backend proposed the action, so the eventual
// confirm call uses the id the backend expects even if a newer one has
// since been adopted elsewhere.
type PendingConfirmation struct {
	TurnID        string
	WaitingTurnID string
	SessionID     string
	Prompt        string
	Action        PendingAction
}
