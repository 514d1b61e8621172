package playback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mrwill84/voice-web3/domain/repositories"
)

const (
	defaultAPIBaseURL   = "https://api.elevenlabs.io/v1"
	defaultVoiceID      = "21m00Tcm4TlvDq8ikWAM" // Rachel voice
	defaultChunkSize    = 1024
	defaultOutputFormat = "pcm_24000"
	defaultModelID      = "eleven_multilingual_v2"
	defaultStability    = 0.5
	defaultClarity      = 0.75

	// voiceCatalogRetries bounds how long Speak waits for the remote voice
	// catalog before falling back to the default voice.
	voiceCatalogRetries = 3
	voiceCatalogDelay   = 150 * time.Millisecond
)

// ElevenLabsConfig holds configuration for the ElevenLabs playback adapter.
// APIKey is required; everything else has defaults.
type ElevenLabsConfig struct {
	APIKey       string
	APIBaseURL   string
	VoiceID      string
	ModelID      string
	OutputFormat string
	ChunkSize    int
	Stability    float64
	Clarity      float64
}

// NewElevenLabsConfigFromEnv creates an ElevenLabsConfig from environment
// variables.
func NewElevenLabsConfigFromEnv() ElevenLabsConfig {
	config := ElevenLabsConfig{
		APIKey:       os.Getenv("ELEVEN_LABS_API_KEY"),
		APIBaseURL:   os.Getenv("ELEVEN_LABS_API_BASE_URL"),
		VoiceID:      os.Getenv("ELEVEN_LABS_VOICE_ID"),
		ModelID:      os.Getenv("ELEVEN_LABS_MODEL_ID"),
		OutputFormat: os.Getenv("ELEVEN_LABS_OUTPUT_FORMAT"),
	}

	if chunkSizeStr := os.Getenv("ELEVEN_LABS_CHUNK_SIZE"); chunkSizeStr != "" {
		if chunkSize, err := strconv.Atoi(chunkSizeStr); err == nil && chunkSize > 0 {
			config.ChunkSize = chunkSize
		}
	}

	if stabilityStr := os.Getenv("ELEVEN_LABS_STABILITY"); stabilityStr != "" {
		if stability, err := strconv.ParseFloat(stabilityStr, 64); err == nil && stability >= 0 && stability <= 1 {
			config.Stability = stability
		}
	}

	return config
}

// ValidateElevenLabsConfig validates the config.
func ValidateElevenLabsConfig(config ElevenLabsConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("%w: eleven labs API key is required", repositories.ErrUnsupportedCapability)
	}
	if config.Stability != 0 && (config.Stability < 0 || config.Stability > 1) {
		return fmt.Errorf("stability must be between 0 and 1, got %f", config.Stability)
	}
	if config.ChunkSize < 0 {
		return fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	return nil
}

// ElevenLabsPlayback implements SpeechPlayback over the ElevenLabs streaming
// API. It owns the single global utterance slot: Speak cancels whatever is
// currently speaking before starting (last writer wins, no queue).
type ElevenLabsPlayback struct {
	apiKey       string
	apiBaseURL   string
	voiceID      string
	modelID      string
	outputFormat string
	chunkSize    int
	stability    float64
	clarity      float64
	logger       *zap.Logger

	mu      sync.Mutex
	current *elevenLabsHandle
	voices  []catalogVoice
}

var _ repositories.SpeechPlayback = (*ElevenLabsPlayback)(nil)

type catalogVoice struct {
	ID       string
	Name     string
	Language string
}

// NewElevenLabsPlayback creates the playback engine.
func NewElevenLabsPlayback(config ElevenLabsConfig, logger *zap.Logger) (*ElevenLabsPlayback, error) {
	if err := ValidateElevenLabsConfig(config); err != nil {
		return nil, err
	}

	apiBaseURL := config.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
	}
	voiceID := config.VoiceID
	if voiceID == "" {
		voiceID = defaultVoiceID
	}
	modelID := config.ModelID
	if modelID == "" {
		modelID = defaultModelID
	}
	outputFormat := config.OutputFormat
	if outputFormat == "" {
		outputFormat = defaultOutputFormat
	}
	chunkSize := config.ChunkSize
	if chunkSize == 0 {
		chunkSize = defaultChunkSize
	}
	stability := config.Stability
	if stability == 0 {
		stability = defaultStability
	}
	clarity := config.Clarity
	if clarity == 0 {
		clarity = defaultClarity
	}

	return &ElevenLabsPlayback{
		apiKey:       config.APIKey,
		apiBaseURL:   apiBaseURL,
		voiceID:      voiceID,
		modelID:      modelID,
		outputFormat: outputFormat,
		chunkSize:    chunkSize,
		stability:    stability,
		clarity:      clarity,
		logger:       logger,
	}, nil
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	LanguageCode  string        `json:"language_code,omitempty"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Speak starts synthesizing text, cancelling any in-flight utterance first.
func (e *ElevenLabsPlayback) Speak(ctx context.Context, text string, options repositories.VoiceOptions) (repositories.PlaybackHandle, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	streamCtx, cancel := context.WithCancel(ctx)
	handle := &elevenLabsHandle{
		cancel: cancel,
		audio:  make(chan []byte, 10),
		done:   make(chan struct{}),
	}

	e.mu.Lock()
	if e.current != nil {
		e.current.Stop()
	}
	e.current = handle
	e.mu.Unlock()

	voiceID := e.selectVoice(streamCtx, options.Language)

	e.logger.Info("Starting playback",
		zap.String("voiceID", voiceID),
		zap.String("language", options.Language),
		zap.Int("textLength", len(text)))

	go e.stream(streamCtx, handle, text, voiceID, options.Language)

	return handle, nil
}

// selectVoice picks a catalog voice matching the target locale, tolerating an
// initially empty catalog with a short bounded retry. Falls back to the
// configured default voice.
func (e *ElevenLabsPlayback) selectVoice(ctx context.Context, language string) string {
	if language == "" {
		return e.voiceID
	}

	lang := strings.ToLower(strings.SplitN(language, "-", 2)[0])

	for attempt := 0; attempt < voiceCatalogRetries; attempt++ {
		voices := e.catalog(ctx)
		for _, v := range voices {
			if strings.HasPrefix(strings.ToLower(v.Language), lang) {
				return v.ID
			}
		}
		if len(voices) > 0 {
			break // catalog is populated, just has no match
		}

		select {
		case <-ctx.Done():
			return e.voiceID
		case <-time.After(voiceCatalogDelay):
		}
	}

	e.logger.Debug("No catalog voice for locale, using default",
		zap.String("language", language),
		zap.String("voiceID", e.voiceID))
	return e.voiceID
}

// catalog returns the cached voice list, fetching it on first use.
func (e *ElevenLabsPlayback) catalog(ctx context.Context) []catalogVoice {
	e.mu.Lock()
	cached := e.voices
	e.mu.Unlock()
	if cached != nil {
		return cached
	}

	fetched, err := e.fetchVoices(ctx)
	if err != nil {
		e.logger.Warn("Failed to fetch voice catalog", zap.Error(err))
		return nil
	}

	e.mu.Lock()
	e.voices = fetched
	e.mu.Unlock()
	return fetched
}

func (e *ElevenLabsPlayback) fetchVoices(ctx context.Context) ([]catalogVoice, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, e.apiBaseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", e.apiKey)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("voices API returned %d: %s", resp.StatusCode, string(errorBody))
	}

	var parsed struct {
		Voices []struct {
			VoiceID string            `json:"voice_id"`
			Name    string            `json:"name"`
			Labels  map[string]string `json:"labels"`
		} `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode voices response: %w", err)
	}

	voices := make([]catalogVoice, 0, len(parsed.Voices))
	for _, v := range parsed.Voices {
		voices = append(voices, catalogVoice{
			ID:       v.VoiceID,
			Name:     v.Name,
			Language: v.Labels["language"],
		})
	}

	e.logger.Info("Loaded voice catalog", zap.Int("count", len(voices)))
	return voices, nil
}

// stream runs the synthesis HTTP call and pumps audio chunks to the handle.
func (e *ElevenLabsPlayback) stream(ctx context.Context, handle *elevenLabsHandle, text, voiceID, language string) {
	request := synthesisRequest{
		Text:    text,
		ModelID: e.modelID,
		VoiceSettings: voiceSettings{
			Stability:       e.stability,
			SimilarityBoost: e.clarity,
		},
	}
	if language != "" {
		request.LanguageCode = language
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		handle.settle(fmt.Errorf("failed to marshal request: %w", err))
		return
	}

	url := fmt.Sprintf("%s/text-to-speech/%s/stream?output_format=%s",
		e.apiBaseURL, voiceID, e.outputFormat)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBody))
	if err != nil {
		handle.settle(fmt.Errorf("failed to create HTTP request: %w", err))
		return
	}

	acceptHeader := "audio/mpeg"
	if strings.HasPrefix(e.outputFormat, "pcm") {
		acceptHeader = "audio/pcm"
	}
	httpReq.Header.Set("Accept", acceptHeader)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", e.apiKey)

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		// An interrupted utterance settles cleanly, not as a failure
		if handle.Interrupted() || ctx.Err() != nil {
			handle.settle(nil)
			return
		}
		handle.settle(fmt.Errorf("playback failed: %w", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		e.logger.Error("Synthesis API returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(errorBody)))
		handle.settle(fmt.Errorf("playback failed: synthesis API returned %d", resp.StatusCode))
		return
	}

	buffer := make([]byte, e.chunkSize)
	for {
		select {
		case <-ctx.Done():
			handle.settle(nil)
			return
		default:
		}

		n, err := resp.Body.Read(buffer)
		if n > 0 {
			handle.awaitResume(ctx)
			chunk := make([]byte, n)
			copy(chunk, buffer[:n])
			select {
			case handle.audio <- chunk:
			case <-ctx.Done():
				handle.settle(nil)
				return
			}
		}

		if err == io.EOF {
			handle.settle(nil)
			return
		}
		if err != nil {
			if handle.Interrupted() || ctx.Err() != nil {
				handle.settle(nil)
				return
			}
			handle.settle(fmt.Errorf("playback failed: %w", err))
			return
		}
	}
}

// elevenLabsHandle is one in-flight utterance.
type elevenLabsHandle struct {
	cancel context.CancelFunc
	audio  chan []byte
	done   chan struct{}

	mu          sync.Mutex
	settled     bool
	interrupted bool
	paused      bool
	resumeCh    chan struct{}
	err         error
}

func (h *elevenLabsHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop interrupts playback. The handle still settles, with a nil error.
func (h *elevenLabsHandle) Stop() {
	h.mu.Lock()
	h.interrupted = true
	h.mu.Unlock()
	h.cancel()
}

func (h *elevenLabsHandle) Audio() <-chan []byte {
	return h.audio
}

// Pause suspends audio delivery; already-buffered chunks still drain. No-op
// once the utterance has settled.
func (h *elevenLabsHandle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.settled || h.paused {
		return
	}
	h.paused = true
	h.resumeCh = make(chan struct{})
}

// Resume releases a pause. No-op when not paused.
func (h *elevenLabsHandle) Resume() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.paused {
		return
	}
	h.paused = false
	close(h.resumeCh)
}

// awaitResume blocks while the handle is paused. Stop and context
// cancellation both release it.
func (h *elevenLabsHandle) awaitResume(ctx context.Context) {
	h.mu.Lock()
	paused := h.paused
	ch := h.resumeCh
	h.mu.Unlock()

	if !paused {
		return
	}

	select {
	case <-ch:
	case <-ctx.Done():
	}
}

func (h *elevenLabsHandle) Interrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}

// settle resolves the handle exactly once.
func (h *elevenLabsHandle) settle(err error) {
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
