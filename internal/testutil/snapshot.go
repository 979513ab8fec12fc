package testutil

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/kornysietsma/polyglot-code-scanner/internal/output"
)

// SnapshotExcludeFields lists fields that may differ between two scans of
// the same repository.
var SnapshotExcludeFields = []string{
	"id",
}

// NormalizeForSnapshot removes run-specific fields for comparison
func NormalizeForSnapshot(data []byte) ([]byte, error) {
	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}

	for _, field := range SnapshotExcludeFields {
		removeNestedField(parsed, field)
	}

	return output.DeterministicEncode(parsed)
}

// CompareSnapshots returns true if two documents are identical apart from
// run-specific fields
func CompareSnapshots(a, b []byte) (bool, string) {
	normalizedA, err := NormalizeForSnapshot(a)
	if err != nil {
		return false, "failed to normalize snapshot A: " + err.Error()
	}

	normalizedB, err := NormalizeForSnapshot(b)
	if err != nil {
		return false, "failed to normalize snapshot B: " + err.Error()
	}

	if !bytes.Equal(normalizedA, normalizedB) {
		return false, "snapshots differ"
	}
	return true, ""
}

// removeNestedField removes a nested field from a map using dot notation
// e.g., "metadata.git.reference_time" removes "reference_time" from metadata.git
func removeNestedField(data map[string]interface{}, path string) {
	parts := strings.FieldsFunc(path, func(r rune) bool { return r == '.' })
	if len(parts) == 0 {
		return
	}

	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]interface{})
		if !ok {
			return
		}
		current = next
	}
	delete(current, parts[len(parts)-1])
}
