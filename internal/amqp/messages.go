package amqp

import (
	"encoding/json"
	"time"
)

// SnapshotMessage announces a freshly persisted model snapshot. It is
// deliberately light: only the snapshot ID and its coordinates, the
// consumer fetches the payload from the database.
type SnapshotMessage struct {
	SnapshotID string    `json:"snapshot_id"`
	Model      string    `json:"model"`
	Year       int       `json:"year"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewSnapshotMessage creates a snapshot announcement
func NewSnapshotMessage(snapshotID, model string, year int) *SnapshotMessage {
	return &SnapshotMessage{
		SnapshotID: snapshotID,
		Model:      model,
		Year:       year,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SnapshotMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SnapshotMessageFromJSON creates a message from JSON bytes
func SnapshotMessageFromJSON(data []byte) (*SnapshotMessage, error) {
	var msg SnapshotMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
