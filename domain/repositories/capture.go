package repositories

import "context"

// SpeechCapture abstracts a speech-recognition engine.
type SpeechCapture interface {
	// Start opens a new recognition stream. The engine supports at most one
	// live stream; callers must stop any previous handle first (the
	// orchestrator's capture slot enforces this).
	Start(ctx context.Context, config CaptureConfig) (CaptureHandle, error)
}

// CaptureConfig represents audio configuration for speech recognition.
type CaptureConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}

// CaptureHandle is one live recognition stream.
type CaptureHandle interface {
	// Feed pushes raw audio into the recognizer.
	Feed(data []byte) error
	// Events yields interim and final transcripts. Exactly one final event
	// is emitted under normal operation, after which the channel closes.
	// A recognition failure is delivered as a terminal event with Err set.
	Events() <-chan TranscriptEvent
	// Stop tears the stream down. Idempotent; safe after the final event.
	Stop()
}

// TranscriptEvent is one recognition result, tagged interim or final.
type TranscriptEvent struct {
	Text  string
	Final bool
	Err   error
}
