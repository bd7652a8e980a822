package link

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/1ureka.net.chat/internal/chat"
	"github.com/1ureka/1ureka.net.chat/internal/signal"
	"github.com/1ureka/1ureka.net.chat/internal/util"
)

// SignalSender carries negotiation envelopes to a named participant through
// the signaling relay. Implemented by the client session.
type SignalSender interface {
	SendSignal(kind signal.Kind, target string, payload json.RawMessage) error
}

// Orchestrator owns one PeerLink per remote participant and drives each
// link's negotiation. Links negotiate independently and concurrently; the
// mutex only guards the table and per-link state words, never a network
// operation.
type Orchestrator struct {
	mu      sync.Mutex
	localID string
	links   map[string]*PeerLink

	sender SignalSender
	events chat.Events
	stun   []string
	onChat func(remoteID string, p ChatPayload)
}

// NewOrchestrator creates an orchestrator with an empty link table. onChat
// is invoked for every chat frame received over any data channel.
func NewOrchestrator(sender SignalSender, events chat.Events, stunServers []string, onChat func(string, ChatPayload)) *Orchestrator {
	return &Orchestrator{
		links:  make(map[string]*PeerLink),
		sender: sender,
		events: events,
		stun:   stunServers,
		onChat: onChat,
	}
}

// SetLocalID records this client's connection id, used in the glare
// tie-break. Must be set before any remote is added.
func (o *Orchestrator) SetLocalID(id string) {
	o.mu.Lock()
	o.localID = id
	o.mu.Unlock()
}

// AddRemote starts negotiation toward a newly learned participant. This
// client always takes the initiator role: in a room every existing member
// initiates toward each newcomer and the newcomer initiates toward each
// existing member, giving a full mesh.
func (o *Orchestrator) AddRemote(remoteID string) {
	o.mu.Lock()
	if _, exists := o.links[remoteID]; exists {
		o.mu.Unlock()
		return
	}

	pc, err := newPeerConnection(o.stun)
	if err != nil {
		o.mu.Unlock()
		util.LogWarning("peer connection for %s: %v", remoteID, err)
		o.events.OnFailure("failed to establish peer link")
		return
	}
	dc, err := newChatChannel(pc)
	if err != nil {
		o.mu.Unlock()
		pc.Close()
		util.LogWarning("chat channel for %s: %v", remoteID, err)
		o.events.OnFailure("failed to establish peer link")
		return
	}

	l := &PeerLink{remoteID: remoteID, role: RoleInitiator, state: StateNegotiating, pc: pc, dc: dc}
	o.links[remoteID] = l
	o.wirePeerConnection(l)
	o.wireChannel(remoteID, dc)
	o.mu.Unlock()

	offer, err := pc.CreateOffer(nil)
	if err == nil {
		err = pc.SetLocalDescription(offer)
	}
	var payload []byte
	if err == nil {
		payload, err = json.Marshal(offer)
	}
	if err == nil {
		err = o.sender.SendSignal(signal.KindOffer, remoteID, payload)
	}
	if err != nil {
		util.LogWarning("offer to %s: %v", remoteID, err)
		o.events.OnFailure("failed to establish peer link")
		o.close(remoteID)
	}
}

// HandleOffer reacts to an inbound offer. With no existing link the
// orchestrator answers as responder. An offer colliding with our own
// in-flight offer (glare) is resolved deterministically: the side with the
// lower connection id keeps initiating, the other yields and answers.
func (o *Orchestrator) HandleOffer(from string, payload json.RawMessage) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &offer); err != nil {
		util.LogWarning("malformed offer from %s: %v", from, err)
		return
	}

	o.mu.Lock()
	if l, ok := o.links[from]; ok {
		if l.state == StateLinked || l.state == StateClosed || l.role == RoleResponder {
			o.mu.Unlock()
			return
		}
		// Glare: both sides initiated toward each other.
		if o.localID < from {
			o.mu.Unlock()
			util.LogDebug("glare with %s: keeping our offer", from)
			return
		}
		util.LogDebug("glare with %s: yielding to their offer", from)
		delete(o.links, from)
		l.state = StateClosed
		stale := l.pc
		o.mu.Unlock()
		stale.Close()
		o.mu.Lock()
		if _, ok := o.links[from]; ok {
			// Recreated concurrently while we were closing the stale one.
			o.mu.Unlock()
			return
		}
	}

	pc, err := newPeerConnection(o.stun)
	if err != nil {
		o.mu.Unlock()
		util.LogWarning("peer connection for %s: %v", from, err)
		o.events.OnFailure("failed to answer peer offer")
		return
	}
	l := &PeerLink{remoteID: from, role: RoleResponder, state: StateNegotiating, pc: pc}
	o.links[from] = l
	o.wirePeerConnection(l)
	o.mu.Unlock()

	err = pc.SetRemoteDescription(offer)
	var answer webrtc.SessionDescription
	if err == nil {
		answer, err = pc.CreateAnswer(nil)
	}
	if err == nil {
		err = pc.SetLocalDescription(answer)
	}
	var data []byte
	if err == nil {
		data, err = json.Marshal(answer)
	}
	if err == nil {
		err = o.sender.SendSignal(signal.KindAnswer, from, data)
	}
	if err != nil {
		util.LogWarning("answer to %s: %v", from, err)
		o.events.OnFailure("failed to answer peer offer")
		o.close(from)
	}
}

// HandleAnswer applies an inbound answer to our in-flight offer. Failures
// here are treated as benign races — the remote may already be gone — and
// are never surfaced to the UI.
func (o *Orchestrator) HandleAnswer(from string, payload json.RawMessage) {
	o.mu.Lock()
	l, ok := o.links[from]
	if !ok || l.role != RoleInitiator || l.state != StateNegotiating {
		o.mu.Unlock()
		util.LogDebug("answer from %s ignored (no pending offer)", from)
		return
	}
	pc := l.pc
	o.mu.Unlock()

	var answer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &answer); err != nil {
		util.LogDebug("malformed answer from %s: %v", from, err)
		return
	}
	if err := pc.SetRemoteDescription(answer); err != nil {
		util.LogDebug("apply answer from %s: %v", from, err)
	}
}

// HandleCandidate applies a network-path candidate to the link's
// negotiation, whatever sub-state it is in. Candidates for an unknown link
// are discarded: the link may not exist yet or may already be gone, both
// benign races.
func (o *Orchestrator) HandleCandidate(from string, payload json.RawMessage) {
	o.mu.Lock()
	l, ok := o.links[from]
	if !ok || l.state == StateClosed {
		o.mu.Unlock()
		return
	}
	pc := l.pc
	o.mu.Unlock()

	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &init); err != nil {
		util.LogWarning("malformed candidate from %s: %v", from, err)
		return
	}
	if err := pc.AddICECandidate(init); err != nil {
		util.LogWarning("add candidate from %s: %v", from, err)
	}
}

// Remove closes the link for a departed participant and forgets it.
func (o *Orchestrator) Remove(remoteID string) {
	o.close(remoteID)
}

// CloseAll synchronously closes every link. Called on room leave so no late
// negotiation callback can touch a torn-down session.
func (o *Orchestrator) CloseAll() {
	o.mu.Lock()
	ids := make([]string, 0, len(o.links))
	for id := range o.links {
		ids = append(ids, id)
	}
	o.mu.Unlock()
	for _, id := range ids {
		o.close(id)
	}
}

// SendToLinked delivers one chat message over every link currently in the
// linked state and returns how many links that was. Zero means the caller
// should fall back to the relay.
func (o *Orchestrator) SendToLinked(displayName, body string, sentAt time.Time) int {
	frame, err := encodeChatFrame(displayName, body, sentAt)
	if err != nil {
		util.LogWarning("encode chat frame: %v", err)
		return 0
	}

	o.mu.Lock()
	type target struct {
		id string
		dc *webrtc.DataChannel
	}
	targets := make([]target, 0, len(o.links))
	for id, l := range o.links {
		if l.state == StateLinked && l.dc != nil {
			targets = append(targets, target{id: id, dc: l.dc})
		}
	}
	o.mu.Unlock()

	for _, tg := range targets {
		if err := tg.dc.Send(frame); err != nil {
			util.LogWarning("direct send to %s: %v", tg.id, err)
		}
	}
	return len(targets)
}

// LinkState reports the state of the link toward remoteID.
func (o *Orchestrator) LinkState(remoteID string) (State, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.links[remoteID]
	if !ok {
		return StateClosed, false
	}
	return l.state, true
}

// wirePeerConnection registers the callbacks shared by both roles. Called
// with the mutex held; the callbacks themselves run on pion goroutines.
func (o *Orchestrator) wirePeerConnection(l *PeerLink) {
	remoteID := l.remoteID

	l.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		data, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		// Best effort: a lost candidate just narrows the path choice.
		if err := o.sender.SendSignal(signal.KindICECandidate, remoteID, data); err != nil {
			util.LogDebug("candidate to %s: %v", remoteID, err)
		}
	})

	l.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogDebug("peer %s connection state: %s", remoteID, state)
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			o.close(remoteID)
		}
	})

	if l.role == RoleResponder {
		l.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
			o.adoptChannel(remoteID, dc)
		})
	}
}

// adoptChannel attaches the responder-side data channel once the remote's
// channel arrives.
func (o *Orchestrator) adoptChannel(remoteID string, dc *webrtc.DataChannel) {
	o.mu.Lock()
	l, ok := o.links[remoteID]
	if !ok || l.state == StateClosed {
		o.mu.Unlock()
		return
	}
	l.dc = dc
	o.wireChannel(remoteID, dc)
	o.mu.Unlock()
}

func (o *Orchestrator) wireChannel(remoteID string, dc *webrtc.DataChannel) {
	dc.OnOpen(func() {
		o.markLinked(remoteID)
	})
	dc.OnClose(func() {
		o.close(remoteID)
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		p, ok, err := decodeChatFrame(msg.Data)
		if err != nil {
			util.LogWarning("frame from %s: %v", remoteID, err)
			return
		}
		if !ok {
			return
		}
		o.onChat(remoteID, p)
	})
}

// markLinked advances a link to the linked state when its data channel
// opens. A closed link stays closed.
func (o *Orchestrator) markLinked(remoteID string) {
	o.mu.Lock()
	l, ok := o.links[remoteID]
	if !ok || l.state != StateNegotiating {
		o.mu.Unlock()
		return
	}
	l.state = StateLinked
	o.mu.Unlock()

	util.Stats.LinkUp()
	util.LogInfo("data channel open with %s", remoteID)
	o.events.OnConnectionState("connected")
}

// close tears the link down from any state and forgets it. Safe to call
// repeatedly; later calls are no-ops.
func (o *Orchestrator) close(remoteID string) {
	o.mu.Lock()
	l, ok := o.links[remoteID]
	if !ok {
		o.mu.Unlock()
		return
	}
	delete(o.links, remoteID)
	wasLinked := l.state == StateLinked
	l.state = StateClosed
	pc := l.pc
	o.mu.Unlock()

	pc.Close()
	if wasLinked {
		util.Stats.LinkDown()
		o.events.OnConnectionState("disconnected")
	}
}
