package mongo

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mrwill84/voice-web3/domain/repositories"
)

// RetentionService prunes old persisted transcript turns in the background.
type RetentionService struct {
	transcripts repositories.TranscriptRepository
	retention   time.Duration
	logger      *zap.Logger
	stopChan    chan struct{}
}

// NewRetentionService creates a retention service keeping turns for the given
// duration.
func NewRetentionService(transcripts repositories.TranscriptRepository, retention time.Duration, logger *zap.Logger) *RetentionService {
	return &RetentionService{
		transcripts: transcripts,
		retention:   retention,
		logger:      logger,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the background pruning process
func (s *RetentionService) Start() {
	go s.pruneLoop()
	s.logger.Info("Transcript retention service started",
		zap.Duration("retention", s.retention))
}

// Stop gracefully stops the retention service
func (s *RetentionService) Stop() {
	close(s.stopChan)
	s.logger.Info("Transcript retention service stopped")
}

// pruneLoop runs the pruning process periodically
func (s *RetentionService) pruneLoop() {
	// Run pruning every 30 minutes
	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()

	// Run initial pruning after 1 minute
	initialTimer := time.NewTimer(1 * time.Minute)
	defer initialTimer.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-initialTimer.C:
			s.runPrune()
		case <-ticker.C:
			s.runPrune()
		}
	}
}

// runPrune deletes turns older than the retention window
func (s *RetentionService) runPrune() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-s.retention)
	deleted, err := s.transcripts.PruneOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("Failed to prune transcript turns", zap.Error(err))
		return
	}

	if deleted > 0 {
		s.logger.Info("Pruned old transcript turns", zap.Int64("deleted", deleted))
	}
}
