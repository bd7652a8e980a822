// Package client implements the chat client: the WebSocket connection to
// the signaling relay and the session that ties the relay, the peer-link
// orchestrator and the message dispatcher together.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/1ureka.net.chat/internal/signal"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// ErrClosed is returned by Send once the connection is gone.
var ErrClosed = errors.New("client: connection closed")

// Client manages the WebSocket connection to the signaling relay. A read
// pump feeds Incoming; a write pump drains Send calls, so the connection
// has exactly one reader and one writer goroutine.
type Client struct {
	serverURL string
	conn      *websocket.Conn
	incoming  chan *signal.Envelope
	outgoing  chan *signal.Envelope
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a client for the given ws:// or wss:// URL.
func New(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		incoming:  make(chan *signal.Envelope, 32),
		outgoing:  make(chan *signal.Envelope, 32),
		done:      make(chan struct{}),
	}
}

// Connect dials the relay and starts the pump goroutines. A failure here
// is the one user-visible connection error; there is no automatic retry.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.serverURL, nil)
	if err != nil {
		return fmt.Errorf("connect to signaling relay: %w", err)
	}
	c.conn = conn

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()
	return nil
}

// Send enqueues an envelope for the write pump.
func (c *Client) Send(env *signal.Envelope) error {
	select {
	case c.outgoing <- env:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Incoming returns the channel of envelopes from the relay. It is closed
// when the connection drops.
func (c *Client) Incoming() <-chan *signal.Envelope {
	return c.incoming
}

// Close shuts the connection down. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		var env signal.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return
		}
		select {
		case c.incoming <- &env:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
