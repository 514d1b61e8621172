package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mrwill84/voice-web3/domain/entities"
	"github.com/mrwill84/voice-web3/domain/repositories"
	"github.com/mrwill84/voice-web3/internal/contacts"
	"github.com/mrwill84/voice-web3/internal/session"
)

// ErrBusy is returned when an utterance arrives while a previous one is
// still being interpreted or executed.
var ErrBusy = errors.New("conversation is busy")

const (
	waitingPrompt        = "Waiting for your confirmation..."
	confirmedAck         = "Confirmed. Executing..."
	cancelledAck         = "Cancelled."
	reprompt             = "Please say confirm or cancel."
	fallbackResult       = "operation succeeded"
	fallbackFailure      = "operation failed"
	transcriptStoreGrace = 5 * time.Second
)

// EventType tags orchestrator events pushed to listening surfaces.
type EventType string

const (
	EventTurn     EventType = "turn"
	EventState    EventType = "state"
	EventInterim  EventType = "interim"
	EventSpeaking EventType = "speaking"
)

// Event is one orchestrator notification for the HTTP/WebSocket surfaces.
// A speaking event carries the playback handle; its audio channel has a
// single consumer, the voice surface.
type Event struct {
	Type             EventType
	Turn             *entities.ConversationTurn
	State            entities.ConversationState
	ConfirmationMode bool
	Interim          string
	Playback         repositories.PlaybackHandle
}

// Orchestrator is the conversation state machine. It consumes utterances
// (typed text or finalized transcripts), drives the intent gateway, manages
// the single pending confirmation, and sequences speech playback and capture.
type Orchestrator struct {
	gateway   repositories.IntentGateway
	capture   repositories.SpeechCapture
	playback  repositories.SpeechPlayback
	directory repositories.ContactDirectory
	auth      repositories.Authenticator
	notifier  repositories.Notifier
	store     repositories.TranscriptRepository
	sessions  *session.Manager
	logger    *zap.Logger

	voice         repositories.VoiceOptions
	captureConfig repositories.CaptureConfig

	mu         sync.Mutex
	state      entities.ConversationState
	pending    *entities.PendingConfirmation
	transcript []entities.ConversationTurn

	// generation invalidates in-flight speech and gateway callbacks after a
	// reset; every callback re-checks it before touching state.
	generation int

	// speechCtx scopes playback and reply capture to the current generation.
	// Speech must outlive the request that submitted the utterance, so it
	// never runs on an inbound request context; Reset cancels and replaces it.
	speechCtx    context.Context
	speechCancel context.CancelFunc

	liveCapture  repositories.CaptureHandle
	livePlayback repositories.PlaybackHandle

	listenerMu sync.Mutex
	listeners  []func(Event)
}

// Options carries the optional collaborators of the orchestrator. Speech,
// persistence and notification are all degradable: a nil field disables that
// concern without affecting the conversation flow.
type Options struct {
	Capture  repositories.SpeechCapture
	Playback repositories.SpeechPlayback
	Store    repositories.TranscriptRepository
	Notifier repositories.Notifier

	Voice         repositories.VoiceOptions
	CaptureConfig repositories.CaptureConfig
}

// NewOrchestrator creates the conversation orchestrator in the Idle state.
func NewOrchestrator(
	gateway repositories.IntentGateway,
	directory repositories.ContactDirectory,
	auth repositories.Authenticator,
	sessions *session.Manager,
	logger *zap.Logger,
	opts Options,
) *Orchestrator {
	captureConfig := opts.CaptureConfig
	if captureConfig.SampleRate == 0 {
		captureConfig.SampleRate = 16000
	}
	if captureConfig.Encoding == "" {
		captureConfig.Encoding = "LINEAR16"
	}
	if captureConfig.Language == "" {
		captureConfig.Language = "en-US"
	}

	speechCtx, speechCancel := context.WithCancel(context.Background())

	return &Orchestrator{
		gateway:       gateway,
		capture:       opts.Capture,
		playback:      opts.Playback,
		directory:     directory,
		auth:          auth,
		notifier:      opts.Notifier,
		store:         opts.Store,
		sessions:      sessions,
		logger:        logger,
		voice:         opts.Voice,
		captureConfig: captureConfig,
		state:         entities.StateIdle,
		speechCtx:     speechCtx,
		speechCancel:  speechCancel,
	}
}

// AddListener subscribes a surface to orchestrator events. Listeners are
// invoked outside the state lock and must not block.
func (o *Orchestrator) AddListener(fn func(Event)) {
	o.listenerMu.Lock()
	defer o.listenerMu.Unlock()
	o.listeners = append(o.listeners, fn)
}

func (o *Orchestrator) emit(events ...Event) {
	o.listenerMu.Lock()
	listeners := make([]func(Event), len(o.listeners))
	copy(listeners, o.listeners)
	o.listenerMu.Unlock()

	for _, event := range events {
		for _, fn := range listeners {
			fn(event)
		}
	}
}

// State returns the current machine state.
func (o *Orchestrator) State() entities.ConversationState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// InConfirmationMode reports whether new input is parsed as a yes/no reply.
func (o *Orchestrator) InConfirmationMode() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pending != nil
}

// Transcript returns a copy of the ordered conversation transcript.
func (o *Orchestrator) Transcript() []entities.ConversationTurn {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]entities.ConversationTurn(nil), o.transcript...)
}

// ExecutionStatus returns the status of the most recent execution turn, or
// idle when none exists.
func (o *Orchestrator) ExecutionStatus() entities.ExecutionStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.transcript) - 1; i >= 0; i-- {
		if o.transcript[i].Role == entities.TurnRoleExecution {
			return o.transcript[i].ExecutionStatus
		}
	}
	return entities.ExecutionStatusIdle
}

// SessionID returns the current conversation session id.
func (o *Orchestrator) SessionID() string {
	return o.sessions.Current()
}

// SubmitUtterance is the single entry point for user input, typed or spoken.
// While a confirmation is pending the text is parsed as a yes/no reply;
// otherwise it is sent for interpretation.
func (o *Orchestrator) SubmitUtterance(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("utterance cannot be empty")
	}

	if !o.auth.IsAuthenticated() {
		o.notify("Sign in required", "Please sign in before talking to the assistant.")
		return repositories.ErrAuthenticationRequired
	}

	o.mu.Lock()
	switch o.state {
	case entities.StateAwaitingConfirmationReply:
		o.mu.Unlock()
		return o.handleConfirmationReply(ctx, text)
	case entities.StateAwaitingInterpretation, entities.StateExecuting:
		o.mu.Unlock()
		return ErrBusy
	}

	gen := o.generation
	o.state = entities.StateAwaitingInterpretation
	userTurn := o.appendTurnLocked(entities.NewTurn(entities.TurnRoleUser, text, o.sessions.Current()))
	o.mu.Unlock()
	o.emitTurnAndState(userTurn)

	o.interpret(ctx, gen, text)
	return nil
}

// interpret runs the interpretation round-trip and dispatches on its outcome.
func (o *Orchestrator) interpret(ctx context.Context, gen int, text string) {
	book := o.directory.Contacts()
	query := contacts.ResolveText(text, book) + contacts.DirectoryHint(book)

	result, err := o.gateway.Interpret(ctx, query, o.sessions.Current(), o.auth.UserID())

	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return
	}

	if err != nil {
		o.logger.Error("Interpretation failed", zap.Error(err))
		o.state = entities.StateIdle
		turn := o.appendTurnLocked(entities.NewTurn(entities.TurnRoleAssistant, err.Error(), o.sessions.Current()))
		o.mu.Unlock()
		o.emitTurnAndState(turn)
		o.notify("Interpretation failed", err.Error())
		o.speak(gen, err.Error())
		return
	}

	o.sessions.Adopt(result.SessionID)

	switch result.Outcome {
	case repositories.OutcomeNeedsConfirmation:
		o.enterConfirmationLocked(gen, result)
	case repositories.OutcomeDirectAction:
		o.enterDirectExecutionLocked(ctx, gen, result)
	default:
		o.state = entities.StateIdle
		turn := o.appendTurnLocked(entities.NewTurn(entities.TurnRoleAssistant, result.Answer, o.sessions.Current()))
		o.mu.Unlock()
		o.emitTurnAndState(turn)
		o.speak(gen, result.Answer)
	}
}

// enterConfirmationLocked creates the single PendingConfirmation and starts
// the spoken round-trip. Called with the lock held; releases it.
func (o *Orchestrator) enterConfirmationLocked(gen int, result *repositories.InterpretResult) {
	// Guarded by the machine itself: we only get here from
	// AwaitingInterpretation, which is unreachable while a confirmation is
	// pending.
	if o.pending != nil {
		o.mu.Unlock()
		o.logger.Error("Pending confirmation already exists, dropping new one")
		return
	}

	sessionID := o.sessions.Current()
	action := result.Action
	action.Params = contacts.ResolveParams(action.Params, o.directory.Contacts())
	action.SessionID = sessionID

	confirmTurn := o.appendTurnLocked(entities.NewConfirmationTurn(action, sessionID))
	waitingTurn := o.appendTurnLocked(entities.NewTurn(entities.TurnRoleWaiting, waitingPrompt, sessionID))

	o.pending = &entities.PendingConfirmation{
		TurnID:        confirmTurn.ID,
		WaitingTurnID: waitingTurn.ID,
		SessionID:     sessionID,
		Prompt:        action.ConfirmationText,
		Action:        action,
	}
	o.state = entities.StateAwaitingConfirmationReply
	prompt := action.ConfirmationText
	o.mu.Unlock()

	o.emitTurnAndState(confirmTurn)
	o.emit(Event{Type: EventTurn, Turn: &waitingTurn})

	// The prompt must finish (or fail) before the reply capture starts;
	// capture never runs concurrently with playback.
	go func() {
		o.speakAndWait(gen, prompt)
		o.beginReplyCapture(gen)
	}()
}

// enterDirectExecutionLocked runs the direct-action path: execution starts
// immediately with the implicit affirmative, no spoken round-trip. Called
// with the lock held; releases it.
func (o *Orchestrator) enterDirectExecutionLocked(ctx context.Context, gen int, result *repositories.InterpretResult) {
	sessionID := o.sessions.Current()
	content := result.Action.ConfirmationText
	if content == "" {
		content = result.Action.ToolID
	}

	execTurn := o.appendTurnLocked(entities.NewExecutionTurn(content, sessionID))
	o.state = entities.StateExecuting
	o.mu.Unlock()
	o.emitTurnAndState(execTurn)

	o.runConfirm(ctx, gen, execTurn.ID, canonicalAffirmative, sessionID)
}

// handleConfirmationReply parses a confirmation-mode reply and advances the
// machine. The pending confirmation is re-read under the lock at event time,
// never trusted from an earlier capture.
func (o *Orchestrator) handleConfirmationReply(ctx context.Context, text string) error {
	verdict := ParseReply(text)

	o.mu.Lock()
	if o.pending == nil {
		o.mu.Unlock()
		o.logger.Debug("Reply arrived after confirmation resolved, ignoring",
			zap.String("text", text))
		return nil
	}
	gen := o.generation
	pc := *o.pending

	if verdict == ReplyUnparseable {
		o.mu.Unlock()
		o.logger.Info("Unparseable confirmation reply", zap.String("text", text))
		o.notify("Please confirm", reprompt)
		go func() {
			o.speakAndWait(gen, reprompt)
			o.beginReplyCapture(gen)
		}()
		return nil
	}

	reply := canonicalAffirmative
	ack := confirmedAck
	if verdict == ReplyNegative {
		reply = canonicalNegative
		ack = cancelledAck
	}

	o.updateTurnContentLocked(pc.WaitingTurnID, ack)
	o.markResolvedLocked(pc.TurnID)
	execTurn := o.appendTurnLocked(entities.NewExecutionTurn(pc.Prompt, pc.SessionID))
	o.pending = nil
	o.state = entities.StateExecuting
	o.stopCaptureLocked()
	o.mu.Unlock()
	o.emitTurnAndState(execTurn)

	o.runConfirm(ctx, gen, execTurn.ID, reply, pc.SessionID)
	return nil
}

// runConfirm performs the confirm round-trip and settles the execution turn.
func (o *Orchestrator) runConfirm(ctx context.Context, gen int, execTurnID, reply, sessionID string) {
	result, err := o.gateway.Confirm(ctx, sessionID, reply, o.auth.UserID())

	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return
	}

	if err != nil {
		o.logger.Error("Confirmation failed", zap.Error(err))
		o.updateTurnStatusLocked(execTurnID, entities.ExecutionStatusError)
		o.state = entities.StateIdle
		turn := o.appendTurnLocked(entities.NewTurn(entities.TurnRoleAssistant, err.Error(), o.sessions.Current()))
		o.mu.Unlock()
		o.emitTurnAndState(turn)
		o.notify("Execution failed", err.Error())
		o.speak(gen, err.Error())
		return
	}

	o.sessions.Adopt(result.SessionID)

	if !result.Success {
		message := result.ErrorMessage
		if message == "" {
			message = fallbackFailure
		}
		o.logger.Warn("Execution rejected by backend", zap.String("message", message))
		o.updateTurnStatusLocked(execTurnID, entities.ExecutionStatusError)
		o.state = entities.StateIdle
		turn := o.appendTurnLocked(entities.NewTurn(entities.TurnRoleAssistant, message, o.sessions.Current()))
		o.mu.Unlock()
		o.emitTurnAndState(turn)
		o.notify("Execution failed", message)
		o.speak(gen, message)
		return
	}

	text := resultText(result)
	o.updateTurnStatusLocked(execTurnID, entities.ExecutionStatusCompleted)
	o.state = entities.StateIdle
	turn := o.appendTurnLocked(entities.NewTurn(entities.TurnRoleAssistant, text, o.sessions.Current()))
	o.mu.Unlock()
	o.emitTurnAndState(turn)
	o.speak(gen, text)
}

// resultText chooses the spoken/displayed text for a successful execution.
func resultText(result *repositories.ConfirmResult) string {
	if result.Content != "" {
		return result.Content
	}
	for _, field := range []string{"tts_message", "summary", "result", "message"} {
		if value, ok := result.Data[field].(string); ok && value != "" {
			return value
		}
	}
	return fallbackResult
}

// StartListening opens a free-form voice capture. The returned handle
// receives raw audio; the final transcript is submitted as an utterance.
// Non-zero override fields replace the configured capture defaults.
func (o *Orchestrator) StartListening(ctx context.Context, overrides repositories.CaptureConfig) (repositories.CaptureHandle, error) {
	if !o.auth.IsAuthenticated() {
		return nil, repositories.ErrAuthenticationRequired
	}

	config := o.captureConfig
	if overrides.SampleRate != 0 {
		config.SampleRate = overrides.SampleRate
	}
	if overrides.Encoding != "" {
		config.Encoding = overrides.Encoding
	}
	if overrides.Language != "" {
		config.Language = overrides.Language
	}

	o.mu.Lock()
	gen := o.generation
	o.mu.Unlock()
	return o.startCapture(ctx, gen, config)
}

// StopListening stops any live capture. Idempotent.
func (o *Orchestrator) StopListening() {
	o.mu.Lock()
	o.stopCaptureLocked()
	o.mu.Unlock()
}

// beginReplyCapture starts the capture for a confirmation reply, unless the
// world has moved on since the prompt was spoken.
func (o *Orchestrator) beginReplyCapture(gen int) {
	o.mu.Lock()
	stillPending := o.generation == gen && o.pending != nil
	o.mu.Unlock()
	if !stillPending {
		return
	}

	if _, err := o.startCapture(o.speechContext(), gen, o.captureConfig); err != nil {
		// Voice reply unavailable; the user can still type the reply.
		o.logger.Warn("Failed to start reply capture", zap.Error(err))
	}
}

// startCapture starts a recognition stream in the orchestrator-owned capture
// slot, force-stopping any previous handle first.
func (o *Orchestrator) startCapture(ctx context.Context, gen int, config repositories.CaptureConfig) (repositories.CaptureHandle, error) {
	if o.capture == nil {
		return nil, repositories.ErrUnsupportedCapability
	}

	handle, err := o.capture.Start(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to start capture: %w", err)
	}

	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		handle.Stop()
		return nil, errors.New("conversation was reset")
	}
	if o.liveCapture != nil {
		o.liveCapture.Stop()
	}
	o.liveCapture = handle
	o.mu.Unlock()

	go o.consumeCapture(ctx, gen, handle)
	return handle, nil
}

// consumeCapture pumps one capture stream: interim events go to the
// listening surfaces, the final transcript becomes an utterance.
func (o *Orchestrator) consumeCapture(ctx context.Context, gen int, handle repositories.CaptureHandle) {
	for event := range handle.Events() {
		o.mu.Lock()
		stale := gen != o.generation || o.liveCapture != handle
		o.mu.Unlock()
		if stale {
			return
		}

		switch {
		case event.Err != nil:
			o.logger.Warn("Capture failed", zap.Error(event.Err))
			if !errors.Is(event.Err, repositories.ErrNoSpeechDetected) {
				o.notify("Voice input failed", event.Err.Error())
			}
			o.releaseCapture(handle)
			return
		case event.Final:
			o.releaseCapture(handle)
			if err := o.SubmitUtterance(ctx, event.Text); err != nil {
				o.logger.Warn("Failed to submit transcript", zap.Error(err))
			}
			return
		default:
			o.emit(Event{Type: EventInterim, Interim: event.Text})
		}
	}
	o.releaseCapture(handle)
}

// releaseCapture clears the capture slot if it still holds this handle.
func (o *Orchestrator) releaseCapture(handle repositories.CaptureHandle) {
	o.mu.Lock()
	if o.liveCapture == handle {
		o.liveCapture = nil
	}
	o.mu.Unlock()
	handle.Stop()
}

func (o *Orchestrator) stopCaptureLocked() {
	if o.liveCapture != nil {
		o.liveCapture.Stop()
		o.liveCapture = nil
	}
}

// speechContext returns the context speech runs on. It is owned by the
// orchestrator, not by any inbound request, and is replaced on Reset.
func (o *Orchestrator) speechContext() context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.speechCtx
}

// speak starts playback without waiting for it to finish.
func (o *Orchestrator) speak(gen int, text string) {
	o.startPlayback(gen, text)
}

// speakAndWait speaks and blocks until playback settles, success or failure.
func (o *Orchestrator) speakAndWait(gen int, text string) {
	handle := o.startPlayback(gen, text)
	if handle == nil {
		return
	}
	if err := handle.Wait(o.speechContext()); err != nil {
		o.logger.Warn("Playback failed", zap.Error(err))
	}
}

func (o *Orchestrator) startPlayback(gen int, text string) repositories.PlaybackHandle {
	ctx := o.speechContext()
	if o.playback == nil || text == "" {
		return nil
	}

	handle, err := o.playback.Speak(ctx, text, o.voice)
	if err != nil {
		if errors.Is(err, repositories.ErrUnsupportedCapability) {
			o.logger.Debug("Speech playback unavailable, staying text-only")
		} else {
			o.logger.Warn("Failed to start playback", zap.Error(err))
		}
		return nil
	}

	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		handle.Stop()
		return nil
	}
	o.livePlayback = handle
	o.mu.Unlock()

	o.emit(Event{Type: EventSpeaking, Playback: handle})
	return handle
}

// Reset starts a new conversation: fresh session id, pending confirmation
// destroyed, speech stopped, transcript cleared. Persisted history survives.
func (o *Orchestrator) Reset() string {
	o.mu.Lock()
	o.generation++
	o.speechCancel()
	o.speechCtx, o.speechCancel = context.WithCancel(context.Background())
	o.pending = nil
	o.state = entities.StateIdle
	o.transcript = nil
	o.stopCaptureLocked()
	if o.livePlayback != nil {
		o.livePlayback.Stop()
		o.livePlayback = nil
	}
	id := o.sessions.Reset()
	o.mu.Unlock()

	o.logger.Info("Conversation reset", zap.String("sessionID", id))
	o.emit(Event{Type: EventState, State: entities.StateIdle})
	return id
}

// History loads persisted turns for a session from the transcript store.
func (o *Orchestrator) History(ctx context.Context, sessionID string, limit int) ([]entities.ConversationTurn, error) {
	if o.store == nil {
		return nil, nil
	}
	return o.store.ListRecent(ctx, sessionID, limit)
}

func (o *Orchestrator) notify(title, message string) {
	if o.notifier != nil {
		o.notifier.Notify(title, message)
	}
}

// appendTurnLocked appends to the in-memory transcript and persists the turn
// best-effort. The in-memory transcript is authoritative; store failures are
// logged and never fail the flow.
func (o *Orchestrator) appendTurnLocked(turn entities.ConversationTurn) entities.ConversationTurn {
	o.transcript = append(o.transcript, turn)

	if o.store != nil {
		stored := turn
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), transcriptStoreGrace)
			defer cancel()
			if err := o.store.Append(ctx, &stored); err != nil {
				o.logger.Warn("Failed to persist turn",
					zap.String("turnID", stored.ID),
					zap.Error(err))
			}
		}()
	}
	return turn
}

func (o *Orchestrator) updateTurnContentLocked(turnID, content string) {
	for i := range o.transcript {
		if o.transcript[i].ID == turnID {
			o.transcript[i].Content = content
			return
		}
	}
}

func (o *Orchestrator) updateTurnStatusLocked(turnID string, status entities.ExecutionStatus) {
	for i := range o.transcript {
		if o.transcript[i].ID == turnID {
			o.transcript[i].ExecutionStatus = status
			break
		}
	}

	if o.store != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), transcriptStoreGrace)
			defer cancel()
			if err := o.store.UpdateStatus(ctx, turnID, status); err != nil {
				o.logger.Warn("Failed to persist status",
					zap.String("turnID", turnID),
					zap.Error(err))
			}
		}()
	}
}

func (o *Orchestrator) markResolvedLocked(turnID string) {
	for i := range o.transcript {
		if o.transcript[i].ID == turnID {
			o.transcript[i].Resolved = true
			break
		}
	}

	if o.store != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), transcriptStoreGrace)
			defer cancel()
			if err := o.store.MarkResolved(ctx, turnID); err != nil {
				o.logger.Warn("Failed to persist resolved flag",
					zap.String("turnID", turnID),
					zap.Error(err))
			}
		}()
	}
}

func (o *Orchestrator) emitTurnAndState(turn entities.ConversationTurn) {
	o.mu.Lock()
	state := o.state
	confirming := o.pending != nil
	o.mu.Unlock()

	o.emit(
		Event{Type: EventTurn, Turn: &turn},
		Event{Type: EventState, State: state, ConfirmationMode: confirming},
	)
}
