// Package hub fans engine events out to websocket subscribers.
package hub

// MessageType selects the websocket frame type.
type MessageType int

const (
	// TextMessage carries JSON.
	TextMessage MessageType = iota
	// BinaryMessage carries raw bytes.
	BinaryMessage
)

// Message is one broadcast payload.
type Message struct {
	Type MessageType
	Data []byte
}

// NewTextMessage wraps JSON bytes.
func NewTextMessage(data []byte) Message {
	return Message{Type: TextMessage, Data: data}
}

// NewBinaryMessage wraps raw bytes.
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}
