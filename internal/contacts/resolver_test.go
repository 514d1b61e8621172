package contacts

import (
	"strings"
	"testing"
)

func TestResolveText(t *testing.T) {
	directory := map[string]string{"Alice": "0xABC"}

	got := ResolveText("pay Alice 5", directory)
	if got != "pay 0xABC 5" {
		t.Errorf("Expected 'pay 0xABC 5', got %q", got)
	}

	// Idempotent once the name token is gone
	again := ResolveText(got, directory)
	if again != got {
		t.Errorf("Expected idempotent resolution, got %q", again)
	}
}

func TestResolveTextMultipleNames(t *testing.T) {
	directory := map[string]string{
		"Bob":   "0xDEF",
		"Alice": "0xABC",
	}

	got := ResolveText("send from Alice to Bob", directory)
	if got != "send from 0xABC to 0xDEF" {
		t.Errorf("Unexpected resolution: %q", got)
	}
}

func TestResolveTextDeterministic(t *testing.T) {
	directory := map[string]string{"An": "0x1", "Anna": "0x2"}

	first := ResolveText("pay Anna", directory)
	for i := 0; i < 20; i++ {
		if got := ResolveText("pay Anna", directory); got != first {
			t.Fatalf("Resolution not deterministic: %q vs %q", got, first)
		}
	}
}

func TestResolveParams(t *testing.T) {
	directory := map[string]string{"Bob": "0xDEF"}
	params := map[string]interface{}{
		"recipient": "Bob",
		"amount":    5,
		"memo":      "for Bob",
	}

	got := ResolveParams(params, directory)

	if got["recipient"] != "0xDEF" {
		t.Errorf("Expected recipient 0xDEF, got %v", got["recipient"])
	}
	if got["amount"] != 5 {
		t.Errorf("Unknown field should pass through, got %v", got["amount"])
	}
	if got["memo"] != "for Bob" {
		t.Errorf("Non-address field should not be rewritten, got %v", got["memo"])
	}

	// Original untouched
	if params["recipient"] != "Bob" {
		t.Error("ResolveParams must not mutate its input")
	}
}

func TestResolveParamsNil(t *testing.T) {
	if got := ResolveParams(nil, map[string]string{"a": "b"}); got != nil {
		t.Errorf("Expected nil for nil params, got %v", got)
	}
}

func TestDirectoryHint(t *testing.T) {
	if hint := DirectoryHint(nil); hint != "" {
		t.Errorf("Empty directory should produce no hint, got %q", hint)
	}

	hint := DirectoryHint(map[string]string{"Alice": "0xABC"})
	if !strings.Contains(hint, "Alice: 0xABC") {
		t.Errorf("Hint should list the contact, got %q", hint)
	}
	if !strings.Contains(hint, "Address book:") {
		t.Errorf("Hint should carry the address book header, got %q", hint)
	}
}

func TestStaticDirectory(t *testing.T) {
	dir := NewStaticDirectory(map[string]string{"Bob": "0xDEF", "Alice": "0xABC"})

	contacts := dir.Contacts()
	if len(contacts) != 2 || contacts["Alice"] != "0xABC" || contacts["Bob"] != "0xDEF" {
		t.Errorf("Expected both contacts, got %v", contacts)
	}
	contacts["Alice"] = "tampered"
	if dir.Contacts()["Alice"] != "0xABC" {
		t.Error("Contacts must return a copy")
	}
}
