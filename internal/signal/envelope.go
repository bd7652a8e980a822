// Package signal defines the envelope format exchanged with the signaling
// relay over WebSocket. The relay routes envelopes by room or target
// participant and never looks inside Payload.
package signal

import "encoding/json"

// Kind identifies the envelope type.
type Kind string

// Client → server kinds.
const (
	KindJoinRoom     Kind = "join-room"
	KindOffer        Kind = "offer"
	KindAnswer       Kind = "answer"
	KindICECandidate Kind = "ice-candidate"
	KindChatMessage  Kind = "chat-message"
)

// Server → client kinds.
const (
	KindRoomJoined Kind = "room-joined"
	KindUserJoined Kind = "user-joined"
	KindUserLeft   Kind = "user-left"
)

// Participant is one room member as reported in a room-joined reply.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Envelope is the single wire structure for all signaling traffic.
// Unused fields are omitted per kind; Payload stays opaque to the relay.
type Envelope struct {
	Kind        Kind            `json:"type"`
	RoomID      string          `json:"roomId,omitempty"`
	DisplayName string          `json:"displayName,omitempty"`
	Body        string          `json:"body,omitempty"`
	Timestamp   string          `json:"timestamp,omitempty"`

	// Target is the recipient connection id on inbound offer / answer /
	// ice-candidate envelopes; From is stamped by the relay on the way out.
	Target string `json:"targetParticipantId,omitempty"`
	From   string `json:"fromParticipantId,omitempty"`

	// ID carries the subject of user-joined / user-left broadcasts, and the
	// joiner's own connection id on a room-joined reply.
	ID string `json:"id,omitempty"`

	Participants     []Participant   `json:"participants,omitempty"`
	ParticipantCount int             `json:"participantCount,omitempty"`
	Payload          json.RawMessage `json:"payload,omitempty"`
}

// IsSignal reports whether the kind is a negotiation envelope that the relay
// forwards verbatim to a single target.
func (k Kind) IsSignal() bool {
	return k == KindOffer || k == KindAnswer || k == KindICECandidate
}
