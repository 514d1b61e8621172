package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mrwill84/voice-web3/domain/entities"
	"github.com/mrwill84/voice-web3/domain/repositories"
)

type TranscriptRepository struct {
	collection *mongo.Collection
}

// NewTranscriptRepository creates a new MongoDB transcript repository
func NewTranscriptRepository(db *mongo.Database) repositories.TranscriptRepository {
	return &TranscriptRepository{
		collection: db.Collection("transcript_turns"),
	}
}

// Append implements repositories.TranscriptRepository
func (r *TranscriptRepository) Append(ctx context.Context, turn *entities.ConversationTurn) error {
	if turn == nil {
		return errors.New("turn cannot be nil")
	}
	if err := turn.Validate(); err != nil {
		return fmt.Errorf("invalid turn: %w", err)
	}

	if _, err := r.collection.InsertOne(ctx, turn); err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// UpdateStatus implements repositories.TranscriptRepository
func (r *TranscriptRepository) UpdateStatus(ctx context.Context, turnID string, status entities.ExecutionStatus) error {
	if turnID == "" {
		return errors.New("turn ID cannot be empty")
	}

	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": turnID},
		bson.M{"$set": bson.M{"execution_status": status}},
	)
	if err != nil {
		return fmt.Errorf("failed to update turn status: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("turn with ID %s not found", turnID)
	}
	return nil
}

// MarkResolved implements repositories.TranscriptRepository
func (r *TranscriptRepository) MarkResolved(ctx context.Context, turnID string) error {
	if turnID == "" {
		return errors.New("turn ID cannot be empty")
	}

	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": turnID},
		bson.M{"$set": bson.M{"resolved": true}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark turn resolved: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("turn with ID %s not found", turnID)
	}
	return nil
}

// ListRecent implements repositories.TranscriptRepository
func (r *TranscriptRepository) ListRecent(ctx context.Context, sessionID string, limit int) ([]entities.ConversationTurn, error) {
	if sessionID == "" {
		return nil, errors.New("session ID cannot be empty")
	}
	if limit <= 0 {
		limit = 50
	}

	filter := bson.M{"session_id": sessionID}
	opts := options.Find().
		SetSort(bson.M{"timestamp": -1}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns for session %s: %w", sessionID, err)
	}
	defer cursor.Close(ctx)

	var turns []entities.ConversationTurn
	if err := cursor.All(ctx, &turns); err != nil {
		return nil, fmt.Errorf("failed to decode turns: %w", err)
	}

	// Restore chronological order
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	return turns, nil
}

// PruneOlderThan implements repositories.TranscriptRepository
func (r *TranscriptRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("failed to prune turns: %w", err)
	}
	return result.DeletedCount, nil
}
