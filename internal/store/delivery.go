package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

type WebhookDelivery struct {
	ID            string
	RunID         string
	EventType     string
	URL           string
	Secret        string
	Payload       []byte
	Status        string
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
	DeliveredAt   *time.Time
}

// computeDedupKey identifies a payload by its "id" field when it has one,
// else by a hash of its bytes.
func computeDedupKey(payload []byte) string {
	var m map[string]any
	if json.Unmarshal(payload, &m) == nil {
		if v, ok := m["id"].(string); ok && v != "" {
			return v
		}
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:8])
}
