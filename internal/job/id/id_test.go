package id

import (
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		kind   string
		prefix string
	}{
		{"edit", "edit-"},
		{"denoise", "denoise-"},
		{"", "job-"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			id := Generate(tt.kind)
			if !strings.HasPrefix(id, tt.prefix) {
				t.Errorf("expected ID to start with %q, got %s", tt.prefix, id)
			}
			if parts := strings.Split(id, "-"); len(parts) != 3 || len(parts[2]) != 12 {
				t.Errorf("expected <kind>-<timestamp>-<12 hex>, got %s", id)
			}
		})
	}
}

func TestGenerate_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := Generate("edit")
		if seen[id] {
			t.Errorf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}
