package link

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Frame is the typed envelope carried over the chat DataChannel.
type Frame struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

const frameChat = "chat"

// ChatPayload is the body of a chat frame.
type ChatPayload struct {
	DisplayName string    `msgpack:"displayName"`
	Body        string    `msgpack:"body"`
	SentAt      time.Time `msgpack:"sentAt"`
}

// encodeChatFrame packs a chat message for DataChannel transmission.
func encodeChatFrame(displayName, body string, sentAt time.Time) ([]byte, error) {
	payload, err := msgpack.Marshal(ChatPayload{
		DisplayName: displayName,
		Body:        body,
		SentAt:      sentAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode chat payload: %w", err)
	}
	return msgpack.Marshal(Frame{Type: frameChat, Payload: payload})
}

// decodeChatFrame unpacks an inbound DataChannel message. Frames of other
// types yield ok=false without an error.
func decodeChatFrame(data []byte) (ChatPayload, bool, error) {
	var f Frame
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return ChatPayload{}, false, fmt.Errorf("decode frame: %w", err)
	}
	if f.Type != frameChat {
		return ChatPayload{}, false, nil
	}
	var p ChatPayload
	if err := msgpack.Unmarshal(f.Payload, &p); err != nil {
		return ChatPayload{}, false, fmt.Errorf("decode chat payload: %w", err)
	}
	return p, true, nil
}
