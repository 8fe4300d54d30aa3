package ws

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Transport timings mirror the previous deployment: a peer that misses
	// two pings past pongWait is treated as disconnected.
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 1 << 20 // 1MB

	sendQueueSize = 256
)

// Conn is one live transport session. Outbound events go through a buffered
// send queue drained by a single writer goroutine; a consumer that cannot
// keep up is closed rather than allowed to block broadcasts.
type Conn struct {
	id   string
	sock *websocket.Conn
	send chan outbound

	// userID is bound by the setup event. It is only touched from the
	// connection's own read loop, which processes events in receipt order.
	userID string

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(sock *websocket.Conn) *Conn {
	return &Conn{
		id:   uuid.NewString(),
		sock: sock,
		send: make(chan outbound, sendQueueSize),
		done: make(chan struct{}),
	}
}

// Send queues an event for delivery. It never blocks; if the queue is full
// the connection is dropped as a slow consumer.
func (c *Conn) Send(event string, data any) {
	select {
	case c.send <- outbound{Event: event, Data: data}:
	case <-c.done:
	default:
		log.Printf("ws: dropping slow connection %s", c.id)
		c.close()
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.sock.Close()
	})
}

// writePump drains the send queue and keeps the connection alive with
// periodic pings. It is the only goroutine that writes to the socket.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case ev := <-c.send:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
