package repositories

import "context"

// SpeechPlayback abstracts a text-to-speech engine with a single global
// utterance slot: starting new playback cancels whatever is speaking.
type SpeechPlayback interface {
	Speak(ctx context.Context, text string, options VoiceOptions) (PlaybackHandle, error)
}

// VoiceOptions tunes synthesis for one utterance.
type VoiceOptions struct {
	Language string  `json:"language"`
	Rate     float64 `json:"rate"`
	Pitch    float64 `json:"pitch"`
	Volume   float64 `json:"volume"`
}

// PlaybackHandle is one in-flight utterance.
type PlaybackHandle interface {
	// Wait blocks until playback settles. It returns nil when the utterance
	// ends naturally or was interrupted by Stop; a synthesis error is the
	// only rejecting outcome.
	Wait(ctx context.Context) error
	// Stop interrupts playback. Best effort; Wait still resolves nil.
	Stop()
	// Pause suspends audio delivery. No-op when not speaking.
	Pause()
	// Resume releases a pause. No-op when not paused.
	Resume()
	// Audio yields the synthesized audio chunks for delivery to the
	// listening surface. Closed when the utterance settles.
	Audio() <-chan []byte
}
