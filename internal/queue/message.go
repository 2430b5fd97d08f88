package queue

import (
	"encoding/json"
	"time"
)

// MessageVersion is the current wake message schema.
const MessageVersion = 1

// Message asks the filing worker to run soon. It carries no document ids;
// the worker claims whatever is pending.
type Message struct {
	Reason     string `json:"reason"`
	RequestID  string `json:"requestId,omitempty"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// NewMessage stamps a wake message with now.
func NewMessage(reason, requestID string, now time.Time) Message {
	return Message{
		Reason:     reason,
		RequestID:  requestID,
		EnqueuedAt: now.UTC().Format(time.RFC3339),
		Version:    MessageVersion,
	}
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
