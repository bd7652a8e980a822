// Package relay implements the signaling relay: a message router that
// accepts typed envelopes from one connection and forwards them to a named
// target or broadcasts them to a room. Negotiation payloads pass through
// verbatim; the relay routes by identifier only.
package relay

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/1ureka/1ureka.net.chat/internal/registry"
	"github.com/1ureka/1ureka.net.chat/internal/signal"
)

// inbound pairs an envelope with the connection it arrived on.
type inbound struct {
	c   *conn
	env *signal.Envelope
}

// Hub owns all relay state. A single Run goroutine drains the register,
// unregister and inbound channels, so every registry mutation and every
// broadcast is handled to completion before the next envelope — the room
// registry and connection directory need no locking.
type Hub struct {
	rooms *registry.Rooms
	dir   *registry.Directory
	log   zerolog.Logger

	conns map[string]*conn

	register   chan *conn
	unregister chan *conn
	inbound    chan inbound
	snapshots  chan chan []registry.RoomInfo
	quit       chan struct{}
}

// NewHub creates a hub over the injected registries. The registries must
// not be mutated by anything else once the hub is running.
func NewHub(rooms *registry.Rooms, dir *registry.Directory, log zerolog.Logger) *Hub {
	return &Hub{
		rooms:      rooms,
		dir:        dir,
		log:        log,
		conns:      make(map[string]*conn),
		register:   make(chan *conn),
		unregister: make(chan *conn),
		inbound:    make(chan inbound, 64),
		snapshots:  make(chan chan []registry.RoomInfo),
		quit:       make(chan struct{}),
	}
}

// Run is the hub's dispatch loop. It returns when Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			for id, c := range h.conns {
				delete(h.conns, id)
				close(c.send)
				if c.ws != nil {
					c.ws.Close()
				}
			}
			return

		case c := <-h.register:
			h.conns[c.id] = c
			h.log.Info().Str("conn_id", c.id).Msg("connection registered")

		case c := <-h.unregister:
			h.handleDisconnect(c)

		case in := <-h.inbound:
			h.dispatch(in.c, in.env)

		case reply := <-h.snapshots:
			reply <- h.rooms.Snapshot()
		}
	}
}

// Stop shuts the hub down, closing every live connection.
func (h *Hub) Stop() {
	close(h.quit)
}

// Snapshot returns the current room listing. It round-trips through the
// dispatch loop so the registry is only ever touched from one goroutine.
func (h *Hub) Snapshot() []registry.RoomInfo {
	reply := make(chan []registry.RoomInfo, 1)
	select {
	case h.snapshots <- reply:
		return <-reply
	case <-h.quit:
		return nil
	}
}

// dispatch routes one inbound envelope. Envelopes can outlive their
// connection: the inbound channel is buffered and select order is not
// FIFO across channels, so a disconnect may be handled before envelopes
// the same connection queued earlier. Those stale envelopes are dropped —
// the conn's send channel is already closed and its registry entries are
// gone.
func (h *Hub) dispatch(c *conn, env *signal.Envelope) {
	if _, ok := h.conns[c.id]; !ok {
		h.log.Debug().Str("conn_id", c.id).Str("type", string(env.Kind)).Msg("envelope from disconnected connection dropped")
		return
	}
	switch {
	case env.Kind == signal.KindJoinRoom:
		h.handleJoin(c, env)
	case env.Kind.IsSignal():
		h.forwardSignal(c, env)
	case env.Kind == signal.KindChatMessage:
		h.relayChat(c, env)
	default:
		h.log.Warn().Str("conn_id", c.id).Str("type", string(env.Kind)).Msg("unknown envelope kind")
	}
}

// handleJoin adds the connection to a room, replies with the current
// participant list (excluding the joiner) and announces the newcomer to
// everyone already there.
func (h *Hub) handleJoin(c *conn, env *signal.Envelope) {
	if env.RoomID == "" || env.DisplayName == "" {
		h.log.Warn().Str("conn_id", c.id).Msg("join-room missing roomId or displayName")
		return
	}
	if _, ok := h.dir.Lookup(c.id); ok {
		// Already in a room; one room per connection.
		h.log.Warn().Str("conn_id", c.id).Msg("duplicate join-room ignored")
		return
	}

	others := h.rooms.Participants(env.RoomID)
	h.rooms.Add(env.RoomID, c.id)
	h.dir.Register(c.id, env.RoomID, env.DisplayName)

	h.log.Info().
		Str("conn_id", c.id).
		Str("room_id", env.RoomID).
		Str("display_name", env.DisplayName).
		Msg("participant joined")

	participants := make([]signal.Participant, 0, len(others))
	for _, id := range others {
		entry, _ := h.dir.Lookup(id)
		participants = append(participants, signal.Participant{ID: id, DisplayName: entry.DisplayName})
	}
	c.enqueue(&signal.Envelope{
		Kind:         signal.KindRoomJoined,
		RoomID:       env.RoomID,
		ID:           c.id,
		Participants: participants,
	})

	h.broadcast(env.RoomID, c.id, &signal.Envelope{
		Kind:             signal.KindUserJoined,
		ID:               c.id,
		DisplayName:      env.DisplayName,
		ParticipantCount: h.rooms.Size(env.RoomID),
	})
}

// forwardSignal relays an offer/answer/ice-candidate envelope verbatim to
// its target, stamped with the sender's id. A missing target is a benign
// race (the peer may already be gone) and is silently dropped.
func (h *Hub) forwardSignal(c *conn, env *signal.Envelope) {
	target, ok := h.conns[env.Target]
	if !ok {
		h.log.Debug().
			Str("conn_id", c.id).
			Str("target", env.Target).
			Str("type", string(env.Kind)).
			Msg("signal target not connected, dropped")
		return
	}
	target.enqueue(&signal.Envelope{
		Kind:    env.Kind,
		From:    c.id,
		Payload: env.Payload,
	})
}

// relayChat broadcasts a chat message to every other member of the sender's
// room, stamped with the sender's id, directory display name and a server
// timestamp.
func (h *Hub) relayChat(c *conn, env *signal.Envelope) {
	entry, ok := h.dir.Lookup(c.id)
	if !ok {
		h.log.Warn().Str("conn_id", c.id).Msg("chat-message from connection outside any room")
		return
	}
	if env.Body == "" {
		return
	}
	h.broadcast(entry.RoomID, c.id, &signal.Envelope{
		Kind:        signal.KindChatMessage,
		From:        c.id,
		DisplayName: entry.DisplayName,
		Body:        env.Body,
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// handleDisconnect removes a connection from its room and directory and
// tells the survivors. Triggered by the read pump exiting, never by a
// client-level message.
func (h *Hub) handleDisconnect(c *conn) {
	if _, ok := h.conns[c.id]; !ok {
		return
	}
	delete(h.conns, c.id)
	close(c.send)

	entry, ok := h.dir.Lookup(c.id)
	h.dir.Unregister(c.id)
	if !ok {
		h.log.Info().Str("conn_id", c.id).Msg("connection closed before joining a room")
		return
	}

	h.rooms.Remove(entry.RoomID, c.id)
	h.log.Info().
		Str("conn_id", c.id).
		Str("room_id", entry.RoomID).
		Msg("participant disconnected")

	if h.rooms.Size(entry.RoomID) > 0 {
		h.broadcast(entry.RoomID, c.id, &signal.Envelope{
			Kind:             signal.KindUserLeft,
			ID:               c.id,
			DisplayName:      entry.DisplayName,
			ParticipantCount: h.rooms.Size(entry.RoomID),
		})
	}
}

// broadcast enqueues env to every member of roomID except exclude.
func (h *Hub) broadcast(roomID, exclude string, env *signal.Envelope) {
	for _, id := range h.rooms.Participants(roomID) {
		if id == exclude {
			continue
		}
		if member, ok := h.conns[id]; ok {
			member.enqueue(env)
		}
	}
}
