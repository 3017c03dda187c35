package idutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

// Manager generates stable hash-based IDs for subscriptions, client
// connections, and script runs
type Manager struct {
	seq atomic.Uint64
}

// NewManager creates a new ID manager
func NewManager() *Manager {
	return &Manager{}
}

// SubscriptionToken generates a unique token for an event subscription
// Uses the target ID, a per-manager sequence number, and issue time
// Format: sub_XXXXXXXX (12 chars total)
func (m *Manager) SubscriptionToken(targetID string) string {
	data := fmt.Sprintf("%s:%d:%d", targetID, m.seq.Add(1), time.Now().UnixNano())
	return hashID("sub", data)
}

// ConnID generates an ID for a websocket client connection
// Format: conn_XXXXXXXX (13 chars total)
func (m *Manager) ConnID(remoteAddr string) string {
	data := fmt.Sprintf("%s:%d:%d", remoteAddr, m.seq.Add(1), time.Now().UnixNano())
	return hashID("conn", data)
}

// RunID generates an ID for a scenario run from its name and start time
// Format: run_XXXXXXXX (12 chars total)
func (m *Manager) RunID(name string) string {
	data := fmt.Sprintf("%s:%d", name, time.Now().UnixNano())
	return hashID("run", data)
}

// hashID creates a short hash-based ID with the given prefix
// Format: {prefix}_{first 8 hex chars of SHA256}
func hashID(prefix, data string) string {
	hash := sha256.Sum256([]byte(data))
	hexHash := hex.EncodeToString(hash[:])
	// Take first 8 characters of hash for readability (still extremely collision-resistant)
	return fmt.Sprintf("%s_%s", prefix, hexHash[:8])
}

// IsValidID checks if an ID matches the expected prefix format
func IsValidID(id, prefix string) bool {
	if len(id) < len(prefix)+1 {
		return false
	}
	return id[:len(prefix)] == prefix && id[len(prefix)] == '_'
}

// ExtractPrefix extracts the prefix from an ID
func ExtractPrefix(id string) string {
	for i, c := range id {
		if c == '_' {
			return id[:i]
		}
	}
	return ""
}
