package session

import (
	"strings"
	"testing"
)

func TestCurrentMintsOnce(t *testing.T) {
	m := NewManager()

	first := m.Current()
	if first == "" {
		t.Fatal("Expected a session id to be minted")
	}
	if !strings.HasPrefix(first, "session_") {
		t.Errorf("Expected session_ prefix, got %s", first)
	}

	second := m.Current()
	if second != first {
		t.Errorf("Expected stable id %s, got %s", first, second)
	}
}

func TestResetRegenerates(t *testing.T) {
	m := NewManager()

	old := m.Current()
	fresh := m.Reset()

	if fresh == old {
		t.Error("Reset should generate a different id")
	}
	if m.Current() != fresh {
		t.Error("Current should return the reset id")
	}
}

func TestAdopt(t *testing.T) {
	m := NewManager()
	original := m.Current()

	// Empty ids are ignored
	m.Adopt("")
	if m.Current() != original {
		t.Error("Adopting an empty id should be a no-op")
	}

	m.Adopt("session_backend_rotated")
	if m.Current() != "session_backend_rotated" {
		t.Errorf("Expected adopted id, got %s", m.Current())
	}

	// Adopting the same id keeps it
	m.Adopt("session_backend_rotated")
	if m.Current() != "session_backend_rotated" {
		t.Error("Adopting the held id should keep it")
	}
}

func TestGenerateSessionIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := generateSessionID()
		if seen[id] {
			t.Fatalf("Duplicate session id generated: %s", id)
		}
		seen[id] = true
	}
}
