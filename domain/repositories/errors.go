package repositories

import "errors"

var (
	// ErrUnsupportedCapability means the runtime has no speech capture or
	// playback engine; callers degrade to text-only interaction.
	ErrUnsupportedCapability = errors.New("speech capability unavailable")

	// ErrAuthenticationRequired means the backend rejected the bearer token
	// (or none was attached). Never retried.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrNoSpeechDetected means a capture stream ended without any speech.
	ErrNoSpeechDetected = errors.New("no speech detected in audio")
)
