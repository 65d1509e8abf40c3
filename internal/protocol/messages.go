package protocol

import (
	"encoding/json"
	"strconv"
)

// Message types sent back over the socket transport
const (
	TypeStatus = "status"
	TypeAck    = "ack"
)

// AckPrefix starts every datagram acknowledgement
const AckPrefix = "ACK:"

// Message is the base envelope for all WebSocket replies
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// StatusPayload for status messages
type StatusPayload struct {
	Message  string `json:"message"`
	ClientID string `json:"client_id,omitempty"`
}

// AckPayload for ack messages
type AckPayload struct {
	ID        uint32 `json:"id"`
	Sequenced bool   `json:"sequenced"`
}

// NewMessage creates a new message with the given type and payload
func NewMessage(msgType string, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:    msgType,
		Payload: data,
	}, nil
}

// ParsePayload unmarshals the payload into the given struct
func (m *Message) ParsePayload(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// FormatAck renders the datagram acknowledgement for id
func FormatAck(id uint32) []byte {
	return []byte(AckPrefix + strconv.FormatUint(uint64(id), 10))
}
