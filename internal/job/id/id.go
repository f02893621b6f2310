// Package id provides unique identifier generation for jobs.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Generate creates a new unique job ID for the given job kind.
// Format: <kind>-<timestamp>-<random>
// Example: edit-1701432000-a1b2c3d4e5f6
//
// An empty kind uses "job".
func Generate(kind string) string {
	if kind == "" {
		kind = "job"
	}
	timestamp := time.Now().Unix()
	random := make([]byte, 6)
	if _, err := rand.Read(random); err != nil {
		return fmt.Sprintf("%s-%d", kind, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", kind, timestamp, hex.EncodeToString(random))
}
