// Package link owns the per-remote-participant negotiation state machines
// and the data channels that come out of them. One PeerLink exists per
// remote participant; the Orchestrator coordinates them all against the
// signaling relay.
package link

import (
	"github.com/pion/webrtc/v4"
)

// State is a PeerLink's negotiation state. It only ever advances; in
// particular a linked channel never drops back to negotiating — failures
// go straight to closed.
type State int

const (
	StateIdle State = iota
	StateNegotiating
	StateLinked
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNegotiating:
		return "negotiating"
	case StateLinked:
		return "linked"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Role is decided once when the link is created and never changes.
type Role string

const (
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

// PeerLink pairs this client with one remote participant: the
// PeerConnection being negotiated and the chat DataChannel once open.
// All fields are guarded by the owning Orchestrator's mutex.
type PeerLink struct {
	remoteID string
	role     Role
	state    State
	pc       *webrtc.PeerConnection
	dc       *webrtc.DataChannel
}

// defaultSTUNServers is used when the config supplies none. No TURN — the
// relay fallback covers peers that cannot connect directly.
var defaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// newPeerConnection creates a PeerConnection configured with the given
// STUN servers.
func newPeerConnection(stunServers []string) (*webrtc.PeerConnection, error) {
	if len(stunServers) == 0 {
		stunServers = defaultSTUNServers
	}
	config := webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: stunServers},
		},
	}
	return webrtc.NewPeerConnection(config)
}

// newChatChannel creates the ordered chat DataChannel on an initiator-side
// PeerConnection. Responders receive theirs via OnDataChannel.
func newChatChannel(pc *webrtc.PeerConnection) (*webrtc.DataChannel, error) {
	ordered := true
	return pc.CreateDataChannel("chat", &webrtc.DataChannelInit{
		Ordered: &ordered,
	})
}
