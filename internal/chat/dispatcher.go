package chat

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/1ureka/1ureka.net.chat/internal/util"
)

// ErrEmptyBody is returned by Send for blank messages; nothing touches the
// network in that case.
var ErrEmptyBody = errors.New("chat: message body is empty")

// DirectSender delivers a chat message over every currently linked peer
// data channel and reports how many links were used.
type DirectSender interface {
	SendToLinked(displayName, body string, sentAt time.Time) int
}

// RelaySender delivers a chat message once through the signaling relay,
// which broadcasts it to the whole room server-side.
type RelaySender interface {
	SendChat(body string) error
}

// Dispatcher routes outgoing chat messages: direct if any peer link is up,
// relay fallback otherwise. The choice is made per call, not as a mode.
type Dispatcher struct {
	mu          sync.Mutex
	displayName string
	localID     string
	direct      DirectSender
	relay       RelaySender
	events      Events
}

// NewDispatcher creates a dispatcher. The local participant id is not known
// until the room-joined reply arrives; set it via SetLocalID.
func NewDispatcher(displayName string, direct DirectSender, relay RelaySender, events Events) *Dispatcher {
	return &Dispatcher{
		displayName: displayName,
		direct:      direct,
		relay:       relay,
		events:      events,
	}
}

// SetLocalID records the connection id assigned by the relay. It arrives
// on the session's envelope loop while Send runs on the caller's
// goroutine, so access is synchronized.
func (d *Dispatcher) SetLocalID(id string) {
	d.mu.Lock()
	d.localID = id
	d.mu.Unlock()
}

// Send delivers body to the room. With at least one linked peer the message
// goes out over every linked data channel; with none it is relayed once
// server-side. Either way a local echo is emitted immediately — delivery is
// best-effort and never awaited.
func (d *Dispatcher) Send(body string) error {
	if strings.TrimSpace(body) == "" {
		return ErrEmptyBody
	}
	d.mu.Lock()
	localID := d.localID
	d.mu.Unlock()
	sentAt := time.Now()

	if n := d.direct.SendToLinked(d.displayName, body, sentAt); n == 0 {
		util.Stats.AddRelayed()
		if err := d.relay.SendChat(body); err != nil {
			d.events.OnFailure("relay send failed: " + err.Error())
		}
	} else {
		util.Stats.AddDirect()
	}

	d.events.OnMessage(Message{
		ID:          uuid.NewString(),
		From:        localID,
		DisplayName: d.displayName,
		Body:        body,
		SentAt:      sentAt,
		Local:       true,
	})
	return nil
}
