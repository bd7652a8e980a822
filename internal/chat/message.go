// Package chat holds the client-side message model, the observer interface
// toward the surrounding UI layer, and the dispatcher that picks the
// delivery path for outgoing messages.
package chat

import "time"

// Message is one chat message as handed to the UI layer. Immutable once
// constructed; the core never touches it again after dispatch.
type Message struct {
	ID          string
	From        string
	DisplayName string
	Body        string
	SentAt      time.Time
	Local       bool // true if produced by this client (local echo)
}

// ParticipantEvent describes a room membership change.
type ParticipantEvent struct {
	ID          string
	DisplayName string
	Joined      bool // false means the participant left
	Count       int  // room size after the change, when known
}

// Events is the narrow observer interface the core notifies. Implementations
// render messages and participant lists; the core never depends on a
// concrete UI.
type Events interface {
	OnMessage(msg Message)
	OnParticipant(ev ParticipantEvent)
	OnConnectionState(state string)
	OnFailure(reason string)
}
