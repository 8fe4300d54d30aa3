package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrigin = "http://localhost:5173"

var (
	userA  = strings.Repeat("a", 24)
	userB  = strings.Repeat("b", 24)
	chatID = strings.Repeat("c", 24)
)

type presenceWrite struct {
	userID   string
	online   bool
	lastSeen *time.Time
}

type fakePresenceStore struct {
	mu     sync.Mutex
	writes []presenceWrite
}

func (s *fakePresenceStore) SetPresence(_ context.Context, id string, online bool, lastSeen *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, presenceWrite{userID: id, online: online, lastSeen: lastSeen})
	return nil
}

func (s *fakePresenceStore) all() []presenceWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]presenceWrite(nil), s.writes...)
}

type gatewayFixture struct {
	gateway *Gateway
	hub     *Hub
	reg     *Registry
	store   *fakePresenceStore
	server  *httptest.Server
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	hub := NewHub()
	reg := NewRegistry()
	store := &fakePresenceStore{}
	g := NewGateway(hub, reg, store, []string{testOrigin})

	srv := httptest.NewServer(g.Handler())
	t.Cleanup(srv.Close)

	return &gatewayFixture{gateway: g, hub: hub, reg: reg, store: store, server: srv}
}

func (f *gatewayFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{testOrigin}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Envelope{Event: event, Data: raw}))
}

// waitFor reads frames until one matches the wanted event name.
func waitFor(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))
	for {
		var env Envelope
		require.NoError(t, conn.ReadJSON(&env), "waiting for %q", event)
		if env.Event == event {
			return env.Data
		}
	}
}

// expectSilence asserts no frame arrives within the window.
func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var env Envelope
	err := conn.ReadJSON(&env)
	require.Error(t, err, "unexpected event %q", env.Event)
}

func TestGatewaySetupBroadcastsPresence(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t)

	send(t, conn, EventSetup, setupPayload{UserID: userA})

	var online []string
	require.NoError(t, json.Unmarshal(waitFor(t, conn, EventOnlineUsers), &online))
	assert.Contains(t, online, userA)
	assert.True(t, f.reg.IsOnline(userA))

	writes := f.store.all()
	require.Len(t, writes, 1)
	assert.Equal(t, userA, writes[0].userID)
	assert.True(t, writes[0].online)
	assert.Nil(t, writes[0].lastSeen)
}

func TestGatewaySetupRejectsMalformedUserID(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t)

	send(t, conn, EventSetup, setupPayload{UserID: "not-an-object-id"})

	var p errorPayload
	require.NoError(t, json.Unmarshal(waitFor(t, conn, EventError), &p))
	assert.Equal(t, "Invalid user ID format", p.Message)
	assert.Empty(t, f.reg.OnlineUserIDs())
	assert.Empty(t, f.store.all())
}

func TestGatewayRejectsEventsWhileAnonymous(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t)

	send(t, conn, EventTyping, typingPayload{ChatID: chatID, UserName: "Alice"})

	var p errorPayload
	require.NoError(t, json.Unmarshal(waitFor(t, conn, EventError), &p))
	assert.Equal(t, "setup required", p.Message)

	// The connection itself stays usable: setup still works.
	send(t, conn, EventSetup, setupPayload{UserID: userA})
	waitFor(t, conn, EventOnlineUsers)
}

func TestGatewayTypingExcludesSender(t *testing.T) {
	f := newGatewayFixture(t)
	alice := f.dial(t)
	bob := f.dial(t)

	send(t, alice, EventSetup, setupPayload{UserID: userA})
	waitFor(t, alice, EventOnlineUsers)
	send(t, alice, EventJoinChat, chatPayload{ChatID: chatID})
	require.Eventually(t, func() bool { return f.hub.RoomSize(chatID) == 1 }, time.Second, 10*time.Millisecond)

	send(t, bob, EventSetup, setupPayload{UserID: userB})
	waitFor(t, bob, EventOnlineUsers)
	send(t, bob, EventJoinChat, chatPayload{ChatID: chatID})
	require.Eventually(t, func() bool { return f.hub.RoomSize(chatID) == 2 }, time.Second, 10*time.Millisecond)

	send(t, bob, EventTyping, typingPayload{ChatID: chatID, UserName: "Bob"})

	var p typingPayload
	require.NoError(t, json.Unmarshal(waitFor(t, alice, EventTyping), &p))
	assert.Equal(t, "Bob", p.UserName)

	expectSilence(t, bob)
}

func TestGatewayDisconnectFlipsPresence(t *testing.T) {
	f := newGatewayFixture(t)
	alice := f.dial(t)
	bob := f.dial(t)

	send(t, alice, EventSetup, setupPayload{UserID: userA})
	waitFor(t, alice, EventOnlineUsers)
	send(t, bob, EventSetup, setupPayload{UserID: userB})
	waitFor(t, bob, EventOnlineUsers)

	require.NoError(t, bob.Close())
	require.Eventually(t, func() bool { return !f.reg.IsOnline(userB) }, time.Second, 10*time.Millisecond)

	// Alice sees the shrunken online list.
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.Less(t, time.Now().UnixNano(), deadline.UnixNano(), "never saw onlineUsers without bob")
		var online []string
		require.NoError(t, json.Unmarshal(waitFor(t, alice, EventOnlineUsers), &online))
		if len(online) == 1 {
			assert.Equal(t, []string{userA}, online)
			break
		}
	}

	// Exactly one offline write, with a concrete lastSeen.
	var offline []presenceWrite
	for _, w := range f.store.all() {
		if !w.online {
			offline = append(offline, w)
		}
	}
	require.Len(t, offline, 1)
	assert.Equal(t, userB, offline[0].userID)
	require.NotNil(t, offline[0].lastSeen)
}

func TestGatewaySecondDeviceKeepsUserOnline(t *testing.T) {
	f := newGatewayFixture(t)
	tab1 := f.dial(t)
	tab2 := f.dial(t)

	send(t, tab1, EventSetup, setupPayload{UserID: userA})
	waitFor(t, tab1, EventOnlineUsers)
	send(t, tab2, EventSetup, setupPayload{UserID: userA})
	waitFor(t, tab2, EventOnlineUsers)

	require.NoError(t, tab1.Close())

	// The user stays online through the second tab, and no offline write is
	// issued.
	time.Sleep(100 * time.Millisecond)
	assert.True(t, f.reg.IsOnline(userA))
	for _, w := range f.store.all() {
		assert.True(t, w.online)
	}

	require.NoError(t, tab2.Close())
	require.Eventually(t, func() bool { return !f.reg.IsOnline(userA) }, time.Second, 10*time.Millisecond)
}

func TestGatewayRebindMovesConnectionBetweenUsers(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t)

	send(t, conn, EventSetup, setupPayload{UserID: userA})
	waitFor(t, conn, EventOnlineUsers)
	send(t, conn, EventSetup, setupPayload{UserID: userB})
	waitFor(t, conn, EventOnlineUsers)

	assert.True(t, f.reg.IsOnline(userB))
	assert.False(t, f.reg.IsOnline(userA))

	// The old identity got its offline transition: exactly one offline
	// write, for the first user, with a concrete lastSeen.
	var offline []presenceWrite
	for _, w := range f.store.all() {
		if !w.online {
			offline = append(offline, w)
		}
	}
	require.Len(t, offline, 1)
	assert.Equal(t, userA, offline[0].userID)
	require.NotNil(t, offline[0].lastSeen)

	// Events addressed to the old user must not reach this connection
	// anymore. Both deliveries queue on the same socket in order, so the
	// very next frame has to be the one addressed to the new user.
	coord := NewCoordinator(f.hub)
	coord.Deliver(EventReceiveMessage, "for the old user", []string{userA})
	coord.Deliver(EventGroupCreated, "for the new user", []string{userB})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, EventGroupCreated, env.Event)

	var payload string
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, "for the new user", payload)
}

func TestGatewayLegacySendMessageRelay(t *testing.T) {
	f := newGatewayFixture(t)
	alice := f.dial(t)
	bob := f.dial(t)

	send(t, alice, EventSetup, setupPayload{UserID: userA})
	waitFor(t, alice, EventOnlineUsers)
	send(t, alice, EventJoinChat, chatPayload{ChatID: chatID})
	require.Eventually(t, func() bool { return f.hub.RoomSize(chatID) == 1 }, time.Second, 10*time.Millisecond)

	send(t, bob, EventSetup, setupPayload{UserID: userB})
	waitFor(t, bob, EventOnlineUsers)
	send(t, bob, EventJoinChat, chatPayload{ChatID: chatID})
	require.Eventually(t, func() bool { return f.hub.RoomSize(chatID) == 2 }, time.Second, 10*time.Millisecond)

	msg := map[string]any{"_id": strings.Repeat("d", 24), "senderId": userB, "text": "hi"}
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	send(t, bob, EventSendMessage, sendMessagePayload{ChatID: chatID, Message: raw})

	var p struct {
		ChatID  string          `json:"chatId"`
		Message json.RawMessage `json:"message"`
	}
	require.NoError(t, json.Unmarshal(waitFor(t, alice, EventReceiveMessage), &p))
	assert.Equal(t, chatID, p.ChatID)

	var got map[string]any
	require.NoError(t, json.Unmarshal(p.Message, &got))
	assert.Equal(t, "hi", got["text"])
}
