package mongo

import (
	"testing"
	"time"
)

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("TRANSCRIPT_DB_URI", "mongodb://db.internal:27017")
	t.Setenv("TRANSCRIPT_DB_NAME", "assistant")
	t.Setenv("TRANSCRIPT_DB_TIMEOUT_SECONDS", "3")

	config := NewConfigFromEnv()
	if config.URI != "mongodb://db.internal:27017" {
		t.Errorf("Unexpected URI: %s", config.URI)
	}
	if config.Database != "assistant" {
		t.Errorf("Unexpected database: %s", config.Database)
	}
	if config.Timeout != 3*time.Second {
		t.Errorf("Unexpected timeout: %s", config.Timeout)
	}
}

func TestNewConfigFromEnvInvalidTimeout(t *testing.T) {
	t.Setenv("TRANSCRIPT_DB_TIMEOUT_SECONDS", "not-a-number")

	if config := NewConfigFromEnv(); config.Timeout != defaultTimeout {
		t.Errorf("Invalid timeout must keep the default, got %s", config.Timeout)
	}
}

func TestConfigWithDefaults(t *testing.T) {
	config := Config{}.withDefaults()
	if config.URI != defaultURI {
		t.Errorf("Expected default URI, got %s", config.URI)
	}
	if config.Database != defaultDatabase {
		t.Errorf("Expected default database, got %s", config.Database)
	}
	if config.Timeout != defaultTimeout {
		t.Errorf("Expected default timeout, got %s", config.Timeout)
	}

	custom := Config{URI: "mongodb://elsewhere", Database: "other", Timeout: time.Second}.withDefaults()
	if custom.URI != "mongodb://elsewhere" || custom.Database != "other" || custom.Timeout != time.Second {
		t.Errorf("Explicit settings must be preserved, got %+v", custom)
	}
}
