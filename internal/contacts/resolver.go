package contacts

import (
	"fmt"
	"sort"
	"strings"
)

// addressFields is the fixed set of parameter keys that may carry a
// human-readable contact name in place of an address.
var addressFields = []string{"recipient", "to", "address", "to_address", "target", "receiver"}

// ResolveText replaces every literal occurrence of a directory name with its
// address. Names are applied in sorted order so the result is deterministic
// for a fixed directory. No partial or fuzzy matching.
func ResolveText(text string, directory map[string]string) string {
	result := text
	for _, name := range sortedNames(directory) {
		result = strings.ReplaceAll(result, name, directory[name])
	}
	return result
}

// ResolveParams shallow-clones params and applies name replacement to the
// known address-like fields only. Unknown fields pass through unchanged.
func ResolveParams(params map[string]interface{}, directory map[string]string) map[string]interface{} {
	if params == nil {
		return nil
	}

	result := make(map[string]interface{}, len(params))
	for k, v := range params {
		result[k] = v
	}

	for _, field := range addressFields {
		if value, ok := result[field].(string); ok && value != "" {
			result[field] = ResolveText(value, directory)
		}
	}

	return result
}

// DirectoryHint renders the address book as a hint block appended to the
// interpret query, so the backend can resolve names the literal substitution
// missed. Empty directories produce no hint.
func DirectoryHint(directory map[string]string) string {
	if len(directory) == 0 {
		return ""
	}

	pairs := make([]string, 0, len(directory))
	for _, name := range sortedNames(directory) {
		pairs = append(pairs, fmt.Sprintf("%s: %s", name, directory[name]))
	}

	return fmt.Sprintf("\n\nAddress book:\n%s\n\nContact names above may be used in place of their addresses.",
		strings.Join(pairs, ", "))
}

func sortedNames(directory map[string]string) []string {
	names := make([]string, 0, len(directory))
	for name := range directory {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
