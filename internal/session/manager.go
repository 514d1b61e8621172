package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager owns the process-wide conversation session token. At most one id
// is authoritative at any instant; it lives for the manager's lifetime and
// is regenerated only on an explicit reset.
type Manager struct {
	mu sync.Mutex
	id string
}

// NewManager creates a manager with no session yet; the first Current call
// mints one.
func NewManager() *Manager {
	return &Manager{}
}

// Current returns the held session id, creating one if absent.
func (m *Manager) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.id == "" {
		m.id = generateSessionID()
	}
	return m.id
}

// Reset discards the current id and stores a fresh one. Any pending
// confirmation held against the old id is the caller's to clear.
func (m *Manager) Reset() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.id = generateSessionID()
	return m.id
}

// Adopt replaces the held id with one the backend rotated to. Empty or
// unchanged ids are ignored.
func (m *Manager) Adopt(id string) {
	if id == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if id != m.id {
		m.id = id
	}
}

// generateSessionID mints an opaque, collision-resistant token.
func generateSessionID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:13]
	return fmt.Sprintf("session_%d_%s", time.Now().UnixMilli(), suffix)
}
