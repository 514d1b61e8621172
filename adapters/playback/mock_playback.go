package playback

import (
	"context"
	"sync"

	"github.com/mrwill84/voice-web3/domain/repositories"
)

// MockPlayback is an in-memory SpeechPlayback for tests. Each Speak produces a
// handle the test settles via Finish or Fail. Like the real adapter, starting
// a new utterance stops the previous one.
type MockPlayback struct {
	mu       sync.Mutex
	SpeakErr error
	handles  []*MockPlaybackHandle

	// AutoFinish makes every handle settle immediately, for tests that do
	// not care about playback timing.
	AutoFinish bool
}

var _ repositories.SpeechPlayback = (*MockPlayback)(nil)

// NewMockPlayback creates a mock playback engine.
func NewMockPlayback() *MockPlayback {
	return &MockPlayback{}
}

func (m *MockPlayback) Speak(ctx context.Context, text string, options repositories.VoiceOptions) (repositories.PlaybackHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SpeakErr != nil {
		return nil, m.SpeakErr
	}

	if n := len(m.handles); n > 0 {
		m.handles[n-1].Stop()
	}

	handle := &MockPlaybackHandle{
		Text:    text,
		Options: options,
		audio:   make(chan []byte, 8),
		done:    make(chan struct{}),
	}
	m.handles = append(m.handles, handle)

	if m.AutoFinish {
		handle.Finish()
	}
	return handle, nil
}

// Spoken returns every text passed to Speak, in order.
func (m *MockPlayback) Spoken() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	texts := make([]string, len(m.handles))
	for i, h := range m.handles {
		texts[i] = h.Text
	}
	return texts
}

// LastHandle returns the most recently started handle, or nil.
func (m *MockPlayback) LastHandle() *MockPlaybackHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.handles) == 0 {
		return nil
	}
	return m.handles[len(m.handles)-1]
}

// MockPlaybackHandle is one scripted utterance.
type MockPlaybackHandle struct {
	Text    string
	Options repositories.VoiceOptions

	audio chan []byte
	done  chan struct{}

	mu      sync.Mutex
	settled bool
	stopped bool
	paused  bool
	err     error
}

func (h *MockPlaybackHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *MockPlaybackHandle) Stop() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	h.settle(nil)
}

func (h *MockPlaybackHandle) Audio() <-chan []byte {
	return h.audio
}

func (h *MockPlaybackHandle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.settled {
		h.paused = true
	}
}

func (h *MockPlaybackHandle) Resume() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paused = false
}

// Paused reports whether the handle is currently paused.
func (h *MockPlaybackHandle) Paused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}

// Stopped reports whether Stop was called.
func (h *MockPlaybackHandle) Stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

// EmitAudio pushes a synthesized chunk.
func (h *MockPlaybackHandle) EmitAudio(chunk []byte) {
	h.audio <- chunk
}

// Finish settles the utterance as completed naturally.
func (h *MockPlaybackHandle) Finish() {
	h.settle(nil)
}

// Fail settles the utterance as a synthesis failure.
func (h *MockPlaybackHandle) Fail(err error) {
	h.settle(err)
}

func (h *MockPlaybackHandle) settle(err error) {
	h.mu.Lock()
	if h.settled {
		h.mu.Unlock()
		return
	}
	h.settled = true
	h.err = err
	h.mu.Unlock()

	close(h.audio)
	close(h.done)
}
