package capture

import (
	"context"
	"sync"

	"github.com/mrwill84/voice-web3/domain/repositories"
)

// MockCapture is an in-memory SpeechCapture for tests. Each Start produces a
// handle whose transcript events are pushed by the test via Emit/EmitFinal.
type MockCapture struct {
	mu       sync.Mutex
	StartErr error
	handles  []*MockCaptureHandle
}

var _ repositories.SpeechCapture = (*MockCapture)(nil)

// NewMockCapture creates a mock speech capture engine.
func NewMockCapture() *MockCapture {
	return &MockCapture{}
}

func (m *MockCapture) Start(ctx context.Context, config repositories.CaptureConfig) (repositories.CaptureHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.StartErr != nil {
		return nil, m.StartErr
	}

	handle := &MockCaptureHandle{
		Ctx:    ctx,
		Config: config,
		events: make(chan repositories.TranscriptEvent, 8),
	}
	m.handles = append(m.handles, handle)
	return handle, nil
}

// Handles returns every handle started so far, in order.
func (m *MockCapture) Handles() []*MockCaptureHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockCaptureHandle(nil), m.handles...)
}

// LastHandle returns the most recently started handle, or nil.
func (m *MockCapture) LastHandle() *MockCaptureHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.handles) == 0 {
		return nil
	}
	return m.handles[len(m.handles)-1]
}

// MockCaptureHandle is one scripted recognition stream.
type MockCaptureHandle struct {
	Ctx    context.Context
	Config repositories.CaptureConfig

	mu      sync.Mutex
	events  chan repositories.TranscriptEvent
	stopped bool
	closed  bool
	fed     [][]byte
}

func (h *MockCaptureHandle) Feed(data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fed = append(h.fed, data)
	return nil
}

func (h *MockCaptureHandle) Events() <-chan repositories.TranscriptEvent {
	return h.events
}

func (h *MockCaptureHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	h.closeLocked()
}

// Stopped reports whether Stop was called.
func (h *MockCaptureHandle) Stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

// Emit pushes an interim transcript event.
func (h *MockCaptureHandle) Emit(text string) {
	h.events <- repositories.TranscriptEvent{Text: text}
}

// EmitFinal pushes the final transcript and closes the stream.
func (h *MockCaptureHandle) EmitFinal(text string) {
	h.events <- repositories.TranscriptEvent{Text: text, Final: true}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closeLocked()
}

// EmitError pushes a terminal capture failure and closes the stream.
func (h *MockCaptureHandle) EmitError(err error) {
	h.events <- repositories.TranscriptEvent{Err: err}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closeLocked()
}

func (h *MockCaptureHandle) closeLocked() {
	if !h.closed {
		h.closed = true
		close(h.events)
	}
}
