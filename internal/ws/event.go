package ws

import "encoding/json"

// Event names are the wire contract with the client and must not change.
const (
	EventSetup          = "setup"
	EventJoinChat       = "joinChat"
	EventTyping         = "typing"
	EventStopTyping     = "stopTyping"
	EventSendMessage    = "sendMessage" // legacy client-originated relay
	EventReceiveMessage = "receiveMessage"
	EventOnlineUsers    = "onlineUsers"
	EventGroupCreated   = "groupCreated"
	EventGroupRenamed   = "groupRenamed"
	EventGroupUpdated   = "groupUpdated"
	EventGroupDeleted   = "groupDeleted"
	EventUserBlocked    = "userBlocked"
	EventUserUnblocked  = "userUnblocked"
	EventError          = "error"
)

// Envelope is the framing for every message in either direction:
// {"event": "...", "data": ...}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Inbound payloads.

type setupPayload struct {
	UserID string `json:"userId"`
}

type chatPayload struct {
	ChatID string `json:"chatId"`
}

type typingPayload struct {
	ChatID   string `json:"chatId"`
	UserName string `json:"userName"`
}

type sendMessagePayload struct {
	ChatID  string          `json:"chatId"`
	Message json.RawMessage `json:"message"`
}

// Outbound payloads shared with the REST hand-off path.

type errorPayload struct {
	Message string `json:"message"`
}

// MessagePayload is the receiveMessage event body.
type MessagePayload struct {
	ChatID  string `json:"chatId"`
	Message any    `json:"message"`
}
