package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"chatbackend/internal/domain"
)

// PresenceStore is the slice of the durable store the gateway needs: the
// best-effort online/lastSeen write issued on presence transitions.
type PresenceStore interface {
	SetPresence(ctx context.Context, id string, online bool, lastSeen *time.Time) error
}

// Gateway owns the transport-level session state machine: connection
// lifecycle, event validation and dispatch, room membership, and the
// presence side effects.
//
// Per connection the states are anonymous (transport open, no user bound),
// identified (user bound via setup), and closed. Chat-scoped events are only
// accepted while identified; anything else received while anonymous gets a
// scoped error event and is otherwise ignored.
type Gateway struct {
	hub      *Hub
	presence *Registry
	store    PresenceStore
	upgrader websocket.Upgrader
}

func NewGateway(hub *Hub, presence *Registry, store PresenceStore, allowedOrigins []string) *Gateway {
	checkOrigin := makeCheckOrigin(allowedOrigins)
	return &Gateway{
		hub:      hub,
		presence: presence,
		store:    store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return false
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

// Handler returns the HTTP handler for the /ws endpoint.
func (g *Gateway) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sock, err := g.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		c := newConn(sock)
		g.hub.Add(c)
		go c.writePump()

		g.readLoop(c)
		g.disconnect(c)
	}
}

// readLoop processes the connection's events strictly in receipt order.
func (g *Gateway) readLoop(c *Conn) {
	c.sock.SetReadLimit(maxMessageSize)
	_ = c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.sock.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.Send(EventError, errorPayload{Message: "malformed event"})
			continue
		}
		g.dispatch(c, env)
	}
}

func (g *Gateway) dispatch(c *Conn, env Envelope) {
	if env.Event == EventSetup {
		g.handleSetup(c, env.Data)
		return
	}
	if c.userID == "" {
		c.Send(EventError, errorPayload{Message: "setup required"})
		return
	}

	switch env.Event {
	case EventJoinChat:
		g.handleJoinChat(c, env.Data)
	case EventTyping:
		g.handleTyping(c, env.Data)
	case EventStopTyping:
		g.handleStopTyping(c, env.Data)
	case EventSendMessage:
		g.handleSendMessage(c, env.Data)
	default:
		log.Printf("ws: unknown event %q from connection %s", env.Event, c.id)
	}
}

// handleSetup binds the connection to a user identity, records presence,
// and announces the updated online list to everyone.
func (g *Gateway) handleSetup(c *Conn, data json.RawMessage) {
	var p setupPayload
	if err := json.Unmarshal(data, &p); err != nil || p.UserID == "" {
		c.Send(EventError, errorPayload{Message: "User ID is required"})
		return
	}
	if !domain.IsValidID(p.UserID) {
		c.Send(EventError, errorPayload{Message: "Invalid user ID format"})
		return
	}

	// A repeated setup with a different id moves the connection to the new
	// identity: detach from the old user's room first and run the same
	// went-offline side effects a disconnect would, so the old user never
	// keeps a phantom recipient.
	if c.userID != "" && c.userID != p.UserID {
		prev, wentOffline := g.presence.Unregister(c.id)
		g.hub.Leave(UserRoom(prev), c)
		if wentOffline {
			now := time.Now().UTC()
			if err := g.store.SetPresence(context.Background(), prev, false, &now); err != nil {
				log.Printf("ws: set offline for %s: %v", prev, err)
			}
		}
	}

	g.presence.Register(p.UserID, c.id)
	c.userID = p.UserID
	g.hub.Join(UserRoom(p.UserID), c)

	// Best-effort durable write: in-memory presence is the source of truth
	// for the live list, so a failed write is logged and never drops the
	// connection.
	if err := g.store.SetPresence(context.Background(), p.UserID, true, nil); err != nil {
		log.Printf("ws: set online for %s: %v", p.UserID, err)
	}
	g.hub.EmitAll(EventOnlineUsers, g.presence.OnlineUserIDs())
}

func (g *Gateway) handleJoinChat(c *Conn, data json.RawMessage) {
	var p chatPayload
	if err := json.Unmarshal(data, &p); err != nil || !domain.IsValidID(p.ChatID) {
		c.Send(EventError, errorPayload{Message: "Invalid chat ID format"})
		return
	}
	g.hub.Join(p.ChatID, c)
}

// Typing hints are relayed to the other connections in the chat room.
// Fire-and-forget: no persistence, no delivery guarantee.
func (g *Gateway) handleTyping(c *Conn, data json.RawMessage) {
	var p typingPayload
	if err := json.Unmarshal(data, &p); err != nil || !domain.IsValidID(p.ChatID) || p.UserName == "" {
		c.Send(EventError, errorPayload{Message: "typing requires chatId and userName"})
		return
	}
	g.hub.EmitExcept(p.ChatID, c, EventTyping, p)
}

func (g *Gateway) handleStopTyping(c *Conn, data json.RawMessage) {
	var p chatPayload
	if err := json.Unmarshal(data, &p); err != nil || !domain.IsValidID(p.ChatID) {
		c.Send(EventError, errorPayload{Message: "stopTyping requires chatId"})
		return
	}
	g.hub.EmitExcept(p.ChatID, c, EventStopTyping, p)
}

// handleSendMessage is the legacy client relay path: an already-persisted
// message is forwarded to the other connections in the chat room. The REST
// path with coordinator fan-out supersedes it.
func (g *Gateway) handleSendMessage(c *Conn, data json.RawMessage) {
	var p sendMessagePayload
	if err := json.Unmarshal(data, &p); err != nil || !domain.IsValidID(p.ChatID) || len(p.Message) == 0 {
		c.Send(EventError, errorPayload{Message: "sendMessage requires chatId and message"})
		return
	}
	var msg struct {
		ID       string `json:"_id"`
		SenderID string `json:"senderId"`
	}
	if err := json.Unmarshal(p.Message, &msg); err != nil || msg.ID == "" || msg.SenderID == "" {
		c.Send(EventError, errorPayload{Message: "invalid message object"})
		return
	}
	g.hub.EmitExcept(p.ChatID, c, EventReceiveMessage, MessagePayload{ChatID: p.ChatID, Message: p.Message})
}

// disconnect runs unconditionally when the transport drops, before any other
// cleanup: the connection is unregistered, and if that took the user's last
// connection away a durable lastSeen write is issued and the online list is
// re-broadcast.
func (g *Gateway) disconnect(c *Conn) {
	c.close()

	userID, wentOffline := g.presence.Unregister(c.id)
	g.hub.Remove(c)

	if wentOffline {
		now := time.Now().UTC()
		if err := g.store.SetPresence(context.Background(), userID, false, &now); err != nil {
			log.Printf("ws: set offline for %s: %v", userID, err)
		}
		g.hub.EmitAll(EventOnlineUsers, g.presence.OnlineUserIDs())
	}
}
