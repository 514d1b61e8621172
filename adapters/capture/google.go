package capture

import (
	"context"
	"fmt"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/mrwill84/voice-web3/domain/repositories"
)

// GoogleCapture implements SpeechCapture over Google Cloud streaming
// recognition.
type GoogleCapture struct {
	logger *zap.Logger
}

var _ repositories.SpeechCapture = (*GoogleCapture)(nil)

// NewGoogleCapture creates a Google Cloud speech capture engine.
func NewGoogleCapture(logger *zap.Logger) *GoogleCapture {
	return &GoogleCapture{logger: logger}
}

// Start opens a streaming recognition session. Interim results are on; the
// handle emits exactly one final transcript and then closes its stream.
func (g *GoogleCapture) Start(ctx context.Context, config repositories.CaptureConfig) (repositories.CaptureHandle, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repositories.ErrUnsupportedCapability, err)
	}

	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	encoding, err := audioEncoding(config.Encoding)
	if err != nil {
		stream.CloseSend()
		client.Close()
		return nil, err
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        encoding,
					SampleRateHertz: int32(config.SampleRate),
					LanguageCode:    config.Language,
				},
				InterimResults:  true,
				SingleUtterance: true,
			},
		},
	}); err != nil {
		stream.CloseSend()
		client.Close()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	handle := &googleCaptureHandle{
		client: client,
		stream: stream,
		events: make(chan repositories.TranscriptEvent, 8),
		logger: g.logger,
	}
	go handle.receive()

	g.logger.Info("Speech capture started",
		zap.String("language", config.Language),
		zap.Int("sampleRate", config.SampleRate))

	return handle, nil
}

type googleCaptureHandle struct {
	client *speech.Client
	stream speechpb.Speech_StreamingRecognizeClient
	events chan repositories.TranscriptEvent
	logger *zap.Logger

	mu            sync.Mutex
	stopped       bool
	audioReceived bool
}

func (h *googleCaptureHandle) Feed(data []byte) error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil
	}
	if len(data) > 0 {
		h.audioReceived = true
	}
	h.mu.Unlock()

	if len(data) == 0 {
		return nil
	}

	if err := h.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

func (h *googleCaptureHandle) Events() <-chan repositories.TranscriptEvent {
	return h.events
}

// Stop closes the send side; the receive goroutine drains the remaining
// results and closes the event channel. Idempotent.
func (h *googleCaptureHandle) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()

	if err := h.stream.CloseSend(); err != nil {
		h.logger.Warn("Failed to close send stream", zap.Error(err))
	}
}

// receive pumps recognition responses into the event channel. It returns,
// closing the channel, after the first final result or any error.
func (h *googleCaptureHandle) receive() {
	defer close(h.events)
	defer h.client.Close()

	var lastText string

	for {
		resp, err := h.stream.Recv()
		if err == io.EOF {
			h.mu.Lock()
			audioReceived := h.audioReceived
			h.mu.Unlock()

			// Stream ended without a final result
			if lastText != "" {
				h.events <- repositories.TranscriptEvent{Text: lastText, Final: true}
			} else if audioReceived {
				h.events <- repositories.TranscriptEvent{Err: repositories.ErrNoSpeechDetected}
			}
			return
		}
		if err != nil {
			h.mu.Lock()
			stopped := h.stopped
			h.mu.Unlock()
			if !stopped {
				h.events <- repositories.TranscriptEvent{Err: fmt.Errorf("recognition failed: %w", err)}
			}
			return
		}

		for _, result := range resp.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			text := result.Alternatives[0].Transcript

			if result.IsFinal {
				h.events <- repositories.TranscriptEvent{Text: text, Final: true}
				return
			}

			lastText = text
			h.events <- repositories.TranscriptEvent{Text: text}
		}
	}
}

// audioEncoding converts the wire encoding name to the Speech API enum.
func audioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
