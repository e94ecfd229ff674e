package webui

import (
	"time"

	"edudiff/imagegen"
)

// Message types sent over /ws. Generation events reuse the event type
// names so clients can switch on a single field.
const (
	MessageTypeStarted   = string(imagegen.EventStarted)
	MessageTypeCompleted = string(imagegen.EventCompleted)
	MessageTypeFailed    = string(imagegen.EventFailed)

	// MessageTypeInitial carries the recent events to a new client.
	MessageTypeInitial = "initial"
	// MessageTypeError reports a server-side problem to all clients.
	MessageTypeError = "error"
)

// WSMessage is the envelope for every websocket message.
type WSMessage struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// NewWSMessage stamps a message with the current time.
func NewWSMessage(msgType string, data interface{}) WSMessage {
	return WSMessage{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// InitialData is the snapshot sent right after a client connects.
type InitialData struct {
	RecentEvents []imagegen.Event `json:"recent_events"`
	Clients      int              `json:"clients"`
}

// ErrorData is the payload of an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEventMessage wraps a generation event.
func NewEventMessage(ev imagegen.Event) WSMessage {
	msg := NewWSMessage(string(ev.Type), ev)
	if !ev.Timestamp.IsZero() {
		msg.Timestamp = ev.Timestamp
	}
	return msg
}

// NewInitialMessage wraps an initial snapshot.
func NewInitialMessage(data InitialData) WSMessage {
	if data.RecentEvents == nil {
		data.RecentEvents = []imagegen.Event{}
	}
	return NewWSMessage(MessageTypeInitial, data)
}

// NewErrorMessage wraps an error.
func NewErrorMessage(code, message string) WSMessage {
	return NewWSMessage(MessageTypeError, ErrorData{Code: code, Message: message})
}
