package relay

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/1ureka/1ureka.net.chat/internal/signal"
)

const (
	// Time allowed to write an envelope to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong before the connection is dropped.
	pongWait = 60 * time.Second

	// Ping period; must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// 64 KB is enough for any SDP payload.
	maxMessageSize = 64 * 1024

	// Outbound envelope buffer per connection.
	sendBufferSize = 256
)

// conn wraps a single WebSocket connection. The read pump feeds envelopes
// to the hub; the write pump drains the send channel. The hub loop is the
// only writer to send (via enqueue) and the only closer of it.
type conn struct {
	id   string
	hub  *Hub
	ws   *websocket.Conn
	send chan *signal.Envelope
	log  zerolog.Logger
}

// Attach registers a freshly upgraded WebSocket with the hub and starts
// its pump goroutines. The returned id is the connection's participant id.
func (h *Hub) Attach(ws *websocket.Conn) string {
	id := uuid.NewString()
	c := &conn{
		id:   id,
		hub:  h,
		ws:   ws,
		send: make(chan *signal.Envelope, sendBufferSize),
		log:  h.log.With().Str("conn_id", id).Logger(),
	}

	select {
	case h.register <- c:
	case <-h.quit:
		ws.Close()
		return c.id
	}

	go c.writePump()
	go c.readPump()
	return c.id
}

// enqueue hands an envelope to the write pump without blocking the hub
// loop. A full buffer means the client is too slow; the envelope is
// dropped, matching the protocol's best-effort delivery.
func (c *conn) enqueue(env *signal.Envelope) {
	select {
	case c.send <- env:
	default:
		c.log.Warn().Str("type", string(env.Kind)).Msg("send buffer full, envelope dropped")
	}
}

// readPump pumps envelopes from the WebSocket to the hub. It is the only
// reader of the connection; its exit triggers the disconnect handling.
func (c *conn) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env signal.Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("read error")
			}
			return
		}
		select {
		case c.hub.inbound <- inbound{c: c, env: &env}:
		case <-c.hub.quit:
			return
		}
	}
}

// writePump pumps envelopes from the send channel to the WebSocket and
// keeps the connection alive with periodic pings. It is the only writer
// to the connection.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(env); err != nil {
				c.log.Warn().Err(err).Msg("write error")
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
