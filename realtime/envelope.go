package realtime

import (
	"encoding/json"
	"time"

	errs "github.com/techagentng/citizenchat/errors"
)

// Envelope is the frame exchanged with clients in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound event types.
const (
	TypeConnect          = "connect"
	TypeSendMessage      = "send-message"
	TypeJoinConversation = "join-conversation"
	TypePresenceAnnounce = "presence-announce"
)

// Outbound event types.
const (
	TypeConnected      = "connected"
	TypeNewMessage     = "new-message"
	TypeReadReceipt    = "read-receipt"
	TypePresenceUpdate = "presence-update"
	TypeNotification   = "notification"
	TypeError          = "error"
)

// PresenceTopic is joined by every authenticated session.
const PresenceTopic = "presence"

// ConversationTopic carries read receipts for one conversation.
func ConversationTopic(key string) string {
	return "conversation:" + key
}

// Event is an outbound frame before encoding.
type Event struct {
	Type    string
	Payload interface{}
}

func (e Event) encode() ([]byte, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: e.Type, Payload: payload})
}

type connectPayload struct {
	Token string `json:"token"`
}

type joinPayload struct {
	ConversationKey string `json:"conversation_key"`
}

type ConnectedPayload struct {
	UserID    uint   `json:"user_id"`
	SessionID string `json:"session_id"`
}

type ReadReceipt struct {
	ConversationKey string    `json:"conversation_key"`
	UserID          uint      `json:"user_id"`
	ReadAt          time.Time `json:"read_at"`
}

type PresenceUpdate struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username,omitempty"`
	Online   bool   `json:"online"`
}

type ErrorPayload struct {
	Kind    errs.Kind         `json:"kind"`
	Message string            `json:"message"`
	Fields  []errs.FieldError `json:"fields,omitempty"`
	Event   string            `json:"event,omitempty"`
}
