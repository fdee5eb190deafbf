package chat

import "github.com/diogo/techtouch/internal/models"

// EventType identifies what happened to a conversation
type EventType string

const (
	// EventMessage reports a message appended to the conversation
	EventMessage EventType = "message"
	// EventChunk reports streamed text; Message.Text holds the text so far
	EventChunk EventType = "chunk"
	// EventDone reports the final state of a streamed or generated AI message
	EventDone EventType = "done"
	// EventError reports a failed request; Message carries the user-facing text
	EventError EventType = "error"
)

// Event is delivered to a Sink while a request is processed
type Event struct {
	Type           EventType          `json:"type"`
	ConversationID string             `json:"conversation_id"`
	Message        models.ChatMessage `json:"message"`
	Delta          string             `json:"delta,omitempty"`
	Err            error              `json:"-"`
}

// Sink receives events in order. It is called from the goroutine running the request.
type Sink func(Event)

func (s Sink) emit(e Event) {
	if s != nil {
		s(e)
	}
}
