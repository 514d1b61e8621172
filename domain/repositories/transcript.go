package repositories

import (
	"context"
	"time"

	"github.com/mrwill84/voice-web3/domain/entities"
)

// TranscriptRepository persists the append-only conversation transcript.
// Writes are best effort; the in-memory transcript stays authoritative.
type TranscriptRepository interface {
	Append(ctx context.Context, turn *entities.ConversationTurn) error
	UpdateStatus(ctx context.Context, turnID string, status entities.ExecutionStatus) error
	MarkResolved(ctx context.Context, turnID string) error
	ListRecent(ctx context.Context, sessionID string, limit int) ([]entities.ConversationTurn, error)
	// PruneOlderThan deletes turns recorded before the cutoff and reports how
	// many were removed.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
