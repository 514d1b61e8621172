package contacts

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/mrwill84/voice-web3/domain/repositories"
)

// StaticDirectory is an in-memory, read-only address book mapping contact
// names to chain addresses.
type StaticDirectory struct {
	contacts map[string]string
}

var _ repositories.ContactDirectory = (*StaticDirectory)(nil)

// NewStaticDirectory creates a directory from a fixed name→address map.
func NewStaticDirectory(contacts map[string]string) *StaticDirectory {
	copied := make(map[string]string, len(contacts))
	for name, address := range contacts {
		copied[name] = address
	}
	return &StaticDirectory{contacts: copied}
}

// NewDirectoryFromEnv loads the address book from the CONTACTS_FILE JSON file,
// falling back to the CONTACTS environment variable (inline JSON object). An
// empty configuration yields an empty directory, not an error.
func NewDirectoryFromEnv(logger *zap.Logger) (*StaticDirectory, error) {
	if path := os.Getenv("CONTACTS_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read contacts file: %w", err)
		}
		return parseDirectory(data, logger, path)
	}

	if raw := os.Getenv("CONTACTS"); raw != "" {
		return parseDirectory([]byte(raw), logger, "CONTACTS")
	}

	logger.Info("No address book configured")
	return NewStaticDirectory(nil), nil
}

func parseDirectory(data []byte, logger *zap.Logger, source string) (*StaticDirectory, error) {
	var contacts map[string]string
	if err := json.Unmarshal(data, &contacts); err != nil {
		return nil, fmt.Errorf("failed to parse contacts from %s: %w", source, err)
	}

	logger.Info("Address book loaded",
		zap.String("source", source),
		zap.Int("contacts", len(contacts)))

	return NewStaticDirectory(contacts), nil
}

// Contacts returns a copy of the name→address map.
func (d *StaticDirectory) Contacts() map[string]string {
	copied := make(map[string]string, len(d.contacts))
	for name, address := range d.contacts {
		copied[name] = address
	}
	return copied
}
