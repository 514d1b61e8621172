package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/mrwill84/voice-web3/adapters/capture"
	"github.com/mrwill84/voice-web3/adapters/gateway"
	"github.com/mrwill84/voice-web3/adapters/mongo"
	"github.com/mrwill84/voice-web3/adapters/playback"
	"github.com/mrwill84/voice-web3/domain/repositories"
	"github.com/mrwill84/voice-web3/internal/api"
	"github.com/mrwill84/voice-web3/internal/auth"
	"github.com/mrwill84/voice-web3/internal/contacts"
	"github.com/mrwill84/voice-web3/internal/session"
	"github.com/mrwill84/voice-web3/internal/websocket"
	"github.com/mrwill84/voice-web3/usecase"
)

const defaultTranscriptRetention = 720 * time.Hour // 30 days

// logNotifier routes ephemeral conversation notifications to the log.
type logNotifier struct {
	logger *zap.Logger
}

func (n *logNotifier) Notify(title string, message string) {
	n.logger.Warn("Conversation notification",
		zap.String("title", title),
		zap.String("message", message))
}

func main() {
	// Load environment variables from .env if present
	godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Authentication
	jwtService, err := auth.NewServiceFromEnv()
	if err != nil {
		logger.Fatal("Failed to initialize JWT service", zap.Error(err))
	}
	authenticator := auth.NewTokenAuthenticator(jwtService)

	// Address book
	directory, err := contacts.NewDirectoryFromEnv(logger)
	if err != nil {
		logger.Fatal("Failed to load address book", zap.Error(err))
	}

	// Intent gateway
	intentGateway := gateway.NewClient(gateway.NewConfigFromEnv(), authenticator, logger)

	// Speech capture over Google Cloud streaming recognition
	speechCapture := capture.NewGoogleCapture(logger)

	// Speech playback degrades to text-only when synthesis is not configured
	var speechPlayback repositories.SpeechPlayback
	playbackConfig := playback.NewElevenLabsConfigFromEnv()
	if err := playback.ValidateElevenLabsConfig(playbackConfig); err != nil {
		logger.Warn("Speech playback disabled", zap.Error(err))
	} else {
		speechPlayback, err = playback.NewElevenLabsPlayback(playbackConfig, logger)
		if err != nil {
			logger.Warn("Speech playback disabled", zap.Error(err))
			speechPlayback = nil
		}
	}

	// Transcript persistence is best-effort: the conversation runs without it
	var transcriptStore repositories.TranscriptRepository
	mongoClient, err := mongo.NewClient(mongo.NewConfigFromEnv(), logger)
	if err != nil {
		logger.Warn("Transcript persistence disabled", zap.Error(err))
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mongoClient.Close(ctx)
		}()

		transcriptStore = mongo.NewTranscriptRepository(mongoClient.Database)

		retention := mongo.NewRetentionService(transcriptStore, transcriptRetention(), logger)
		retention.Start()
		defer retention.Stop()
	}

	// Conversation orchestrator
	orchestrator := usecase.NewOrchestrator(
		intentGateway,
		directory,
		authenticator,
		session.NewManager(),
		logger,
		usecase.Options{
			Capture:       speechCapture,
			Playback:      speechPlayback,
			Store:         transcriptStore,
			Notifier:      &logNotifier{logger: logger},
			Voice:         repositories.VoiceOptions{Language: os.Getenv("VOICE_LANGUAGE")},
			CaptureConfig: repositories.CaptureConfig{Language: os.Getenv("CAPTURE_LANGUAGE")},
		},
	)

	// Initialize WebSocket hub
	hub := websocket.NewHub(orchestrator, logger)
	go hub.Run()

	// Initialize API routes
	api.InitRoutes(e, orchestrator, hub, authenticator, jwtService, logger)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Voice conversation server started", zap.String("port", port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func transcriptRetention() time.Duration {
	if hoursStr := os.Getenv("TRANSCRIPT_RETENTION_HOURS"); hoursStr != "" {
		if hours, err := strconv.Atoi(hoursStr); err == nil && hours > 0 {
			return time.Duration(hours) * time.Hour
		}
	}
	return defaultTranscriptRetention
}
