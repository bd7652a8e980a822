package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/1ureka/1ureka.net.chat/internal/registry"
	"github.com/1ureka/1ureka.net.chat/internal/relay"
	"github.com/1ureka/1ureka.net.chat/internal/signal"
)

func newTestServer(t *testing.T) (*httptest.Server, *relay.Hub) {
	t.Helper()
	hub := relay.NewHub(registry.NewRooms(), registry.NewDirectory(), zerolog.Nop())
	go hub.Run()
	t.Cleanup(hub.Stop)

	srv := httptest.NewServer(NewServer(hub, zerolog.Nop()).Router())
	t.Cleanup(srv.Close)
	return srv, hub
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func sendEnvelope(t *testing.T, ws *websocket.Conn, env *signal.Envelope) {
	t.Helper()
	if err := ws.WriteJSON(env); err != nil {
		t.Fatalf("write envelope: %v", err)
	}
}

func readEnvelope(t *testing.T, ws *websocket.Conn) *signal.Envelope {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env signal.Envelope
	if err := ws.ReadJSON(&env); err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	return &env
}

func join(t *testing.T, ws *websocket.Conn, roomID, name string) *signal.Envelope {
	t.Helper()
	sendEnvelope(t, ws, &signal.Envelope{Kind: signal.KindJoinRoom, RoomID: roomID, DisplayName: name})
	reply := readEnvelope(t, ws)
	if reply.Kind != signal.KindRoomJoined {
		t.Fatalf("join reply kind = %q, want %q", reply.Kind, signal.KindRoomJoined)
	}
	return reply
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "OK" {
		t.Errorf("status field = %q, want OK", body.Status)
	}
	if _, err := time.Parse(time.RFC3339Nano, body.Timestamp); err != nil {
		t.Errorf("timestamp %q not RFC3339: %v", body.Timestamp, err)
	}
}

func TestCreateRoomMintsIDWithoutRegistering(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/rooms", "application/json", bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("POST /api/rooms: %v", err)
	}
	defer resp.Body.Close()

	var created struct {
		RoomID string `json:"roomId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.RoomID == "" {
		t.Fatal("roomId is empty")
	}

	// The room must not exist until someone joins it.
	listResp, err := http.Get(srv.URL + "/api/rooms")
	if err != nil {
		t.Fatalf("GET /api/rooms: %v", err)
	}
	defer listResp.Body.Close()

	var rooms []registry.RoomInfo
	if err := json.NewDecoder(listResp.Body).Decode(&rooms); err != nil {
		t.Fatalf("decode room list: %v", err)
	}
	if len(rooms) != 0 {
		t.Errorf("room list = %v, want empty", rooms)
	}
}

func TestTwoPartyJoinChoreography(t *testing.T) {
	srv, _ := newTestServer(t)

	wsA := dialWS(t, srv)
	replyA := join(t, wsA, "room-1", "alice")
	if replyA.ID == "" {
		t.Fatal("room-joined reply carries no connection id")
	}
	if len(replyA.Participants) != 0 {
		t.Errorf("first joiner sees %d participants, want 0", len(replyA.Participants))
	}

	wsB := dialWS(t, srv)
	replyB := join(t, wsB, "room-1", "bob")
	if len(replyB.Participants) != 1 || replyB.Participants[0].ID != replyA.ID {
		t.Fatalf("second joiner participants = %+v, want just alice (%s)", replyB.Participants, replyA.ID)
	}
	if replyB.Participants[0].DisplayName != "alice" {
		t.Errorf("participant display name = %q, want alice", replyB.Participants[0].DisplayName)
	}

	joined := readEnvelope(t, wsA)
	if joined.Kind != signal.KindUserJoined || joined.ID != replyB.ID {
		t.Errorf("alice got %+v, want user-joined for bob", joined)
	}
	if joined.ParticipantCount != 2 {
		t.Errorf("participantCount = %d, want 2", joined.ParticipantCount)
	}

	listResp, err := http.Get(srv.URL + "/api/rooms")
	if err != nil {
		t.Fatalf("GET /api/rooms: %v", err)
	}
	defer listResp.Body.Close()

	var rooms []registry.RoomInfo
	if err := json.NewDecoder(listResp.Body).Decode(&rooms); err != nil {
		t.Fatalf("decode room list: %v", err)
	}
	if len(rooms) != 1 || rooms[0].Participants != 2 {
		t.Errorf("room list = %+v, want one room with two members", rooms)
	}
}

func TestSignalForwardedToTarget(t *testing.T) {
	srv, _ := newTestServer(t)

	wsA := dialWS(t, srv)
	replyA := join(t, wsA, "room-1", "alice")
	wsB := dialWS(t, srv)
	replyB := join(t, wsB, "room-1", "bob")
	readEnvelope(t, wsA) // user-joined for bob

	payload := json.RawMessage(`{"type":"offer","sdp":"v=0..."}`)
	sendEnvelope(t, wsA, &signal.Envelope{
		Kind:    signal.KindOffer,
		Target:  replyB.ID,
		Payload: payload,
	})

	got := readEnvelope(t, wsB)
	if got.Kind != signal.KindOffer {
		t.Fatalf("kind = %q, want offer", got.Kind)
	}
	if got.From != replyA.ID {
		t.Errorf("from = %q, want %q", got.From, replyA.ID)
	}
	if string(got.Payload) != string(payload) {
		t.Errorf("payload = %s, want %s", got.Payload, payload)
	}
}

func TestChatRelayedWithServerStamps(t *testing.T) {
	srv, _ := newTestServer(t)

	wsA := dialWS(t, srv)
	replyA := join(t, wsA, "room-1", "alice")
	wsB := dialWS(t, srv)
	join(t, wsB, "room-1", "bob")
	readEnvelope(t, wsA) // user-joined for bob

	sendEnvelope(t, wsA, &signal.Envelope{Kind: signal.KindChatMessage, Body: "hello"})

	got := readEnvelope(t, wsB)
	if got.Kind != signal.KindChatMessage || got.Body != "hello" {
		t.Fatalf("bob got %+v, want relayed chat", got)
	}
	if got.From != replyA.ID || got.DisplayName != "alice" {
		t.Errorf("sender stamps = (%q, %q), want alice's", got.From, got.DisplayName)
	}
	if _, err := time.Parse(time.RFC3339Nano, got.Timestamp); err != nil {
		t.Errorf("timestamp %q not RFC3339: %v", got.Timestamp, err)
	}
}

func TestDisconnectBroadcastsUserLeft(t *testing.T) {
	srv, _ := newTestServer(t)

	wsA := dialWS(t, srv)
	join(t, wsA, "room-1", "alice")
	wsB := dialWS(t, srv)
	replyB := join(t, wsB, "room-1", "bob")
	readEnvelope(t, wsA) // user-joined for bob

	wsB.Close()

	got := readEnvelope(t, wsA)
	if got.Kind != signal.KindUserLeft || got.ID != replyB.ID {
		t.Fatalf("alice got %+v, want user-left for bob", got)
	}
	if got.ParticipantCount != 1 {
		t.Errorf("participantCount = %d, want 1", got.ParticipantCount)
	}
}
