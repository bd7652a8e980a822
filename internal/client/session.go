package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/1ureka/1ureka.net.chat/internal/chat"
	"github.com/1ureka/1ureka.net.chat/internal/link"
	"github.com/1ureka/1ureka.net.chat/internal/signal"
	"github.com/1ureka/1ureka.net.chat/internal/util"
)

// Session is one client's presence in one room. It owns the relay
// connection, the peer-link orchestrator and the message dispatcher, and
// runs the single loop that applies inbound envelopes in arrival order.
type Session struct {
	client      *Client
	events      chat.Events
	orch        *link.Orchestrator
	dispatcher  *chat.Dispatcher
	displayName string
	roomID      string
	done        chan struct{}
}

// NewSession wires a session for the given relay URL and display name.
// Nothing touches the network until Join.
func NewSession(wsURL, displayName string, stunServers []string, events chat.Events) *Session {
	s := &Session{
		client:      New(wsURL),
		events:      events,
		displayName: displayName,
		done:        make(chan struct{}),
	}
	s.orch = link.NewOrchestrator(s, events, stunServers, s.handleDirectChat)
	s.dispatcher = chat.NewDispatcher(displayName, s.orch, s, events)
	return s
}

// Join connects to the relay and enters the room. The envelope loop keeps
// running until the connection drops or Leave is called.
func (s *Session) Join(ctx context.Context, roomID string) error {
	if err := s.client.Connect(ctx); err != nil {
		s.events.OnConnectionState("disconnected")
		s.events.OnFailure("failed to connect to signaling relay")
		return err
	}
	s.roomID = roomID

	if err := s.client.Send(&signal.Envelope{
		Kind:        signal.KindJoinRoom,
		RoomID:      roomID,
		DisplayName: s.displayName,
	}); err != nil {
		return err
	}

	go s.loop()
	return nil
}

// Done is closed when the session's envelope loop has ended.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Send dispatches one outgoing chat message (direct if any link is up,
// relay fallback otherwise).
func (s *Session) Send(body string) error {
	return s.dispatcher.Send(body)
}

// Leave synchronously closes every peer link, then the relay connection.
// By the time it returns no negotiation callback can touch the session.
func (s *Session) Leave() {
	s.orch.CloseAll()
	s.client.Close()
}

// SendSignal implements link.SignalSender.
func (s *Session) SendSignal(kind signal.Kind, target string, payload json.RawMessage) error {
	return s.client.Send(&signal.Envelope{
		Kind:    kind,
		Target:  target,
		Payload: payload,
	})
}

// SendChat implements chat.RelaySender.
func (s *Session) SendChat(body string) error {
	return s.client.Send(&signal.Envelope{
		Kind: signal.KindChatMessage,
		Body: body,
	})
}

// loop applies inbound envelopes one at a time, in arrival order.
func (s *Session) loop() {
	for env := range s.client.Incoming() {
		s.apply(env)
	}
	s.events.OnConnectionState("disconnected")
	close(s.done)
}

func (s *Session) apply(env *signal.Envelope) {
	switch env.Kind {
	case signal.KindRoomJoined:
		s.orch.SetLocalID(env.ID)
		s.dispatcher.SetLocalID(env.ID)
		s.events.OnConnectionState("connected")
		for _, p := range env.Participants {
			s.events.OnParticipant(chat.ParticipantEvent{ID: p.ID, DisplayName: p.DisplayName, Joined: true})
			s.orch.AddRemote(p.ID)
		}

	case signal.KindUserJoined:
		s.events.OnParticipant(chat.ParticipantEvent{
			ID:          env.ID,
			DisplayName: env.DisplayName,
			Joined:      true,
			Count:       env.ParticipantCount,
		})
		s.orch.AddRemote(env.ID)

	case signal.KindUserLeft:
		s.events.OnParticipant(chat.ParticipantEvent{
			ID:          env.ID,
			DisplayName: env.DisplayName,
			Count:       env.ParticipantCount,
		})
		s.orch.Remove(env.ID)

	case signal.KindOffer:
		s.orch.HandleOffer(env.From, env.Payload)

	case signal.KindAnswer:
		s.orch.HandleAnswer(env.From, env.Payload)

	case signal.KindICECandidate:
		s.orch.HandleCandidate(env.From, env.Payload)

	case signal.KindChatMessage:
		s.events.OnMessage(chat.Message{
			ID:          uuid.NewString(),
			From:        env.From,
			DisplayName: env.DisplayName,
			Body:        env.Body,
			SentAt:      parseTimestamp(env.Timestamp),
		})

	default:
		util.LogDebug("unknown envelope kind %q", env.Kind)
	}
}

// handleDirectChat turns an inbound data-channel frame into a Message.
func (s *Session) handleDirectChat(remoteID string, p link.ChatPayload) {
	s.events.OnMessage(chat.Message{
		ID:          uuid.NewString(),
		From:        remoteID,
		DisplayName: p.DisplayName,
		Body:        p.Body,
		SentAt:      p.SentAt,
	})
}

func parseTimestamp(ts string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Now()
	}
	return t
}

// CreateRoom asks the relay's HTTP API for a fresh room id.
func CreateRoom(ctx context.Context, apiBaseURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBaseURL+"/api/rooms", nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("create room: unexpected status %s", resp.Status)
	}
	var out struct {
		RoomID string `json:"roomId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}
	return out.RoomID, nil
}
