// Package rooms implements the per-room connection registry, broadcast
// pipeline, and room manager registry shared by every room type. It
// generalizes the teacher's ClientConnection/Room/Matchmaker trio
// (internal/network + internal/game + internal/matchmaker in the teacher
// repo) from one fixed room kind (a race) to the router-selected room
// kinds this spec requires.
package rooms

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/roomforge/server/internal/authz"
	"github.com/roomforge/server/internal/logging"
)

var log = logging.Component("rooms")

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxMessageBytes = 1 << 20
	sendBuffer      = 64
)

// Transport is the minimal surface Conn needs from a websocket, mirroring
// the teacher's PlayerConnection interface ("network abstraction"). Tests
// substitute a fake; production wires *websocket.Conn, which satisfies
// this interface as-is.
type Transport interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

// Conn represents one accepted websocket, carrying the resolved identity
// and a buffered outgoing channel so a slow reader never blocks the
// broadcaster (teacher: ClientConnection.sendChan).
type Conn struct {
	ws       Transport
	Identity authz.Identity

	send   chan []byte
	done   chan struct{}
	closed bool
}

// NewConn wraps an accepted websocket connection.
func NewConn(ws Transport, identity authz.Identity) *Conn {
	return &Conn{
		ws:       ws,
		Identity: identity,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
	}
}

// Send queues a frame for delivery. Non-blocking: if the buffer is full
// the connection is considered broken and is reported via the returned
// error so the caller can evict it (spec.md §4.2 "a send that fails
// eagerly closes that connection").
func (c *Conn) Send(data []byte) error {
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return errClosed
	default:
		return errSlowConsumer
	}
}

// TryRecv drains one already-queued outgoing frame without blocking, for
// tests that want to assert on what would have been written to the
// socket without running WritePump.
func (c *Conn) TryRecv() ([]byte, bool) {
	select {
	case data := <-c.send:
		return data, true
	default:
		return nil, false
	}
}

// Close shuts down the connection. Safe to call multiple times.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	return c.ws.Close()
}

// ReadPump blocks reading binary frames off the websocket and invokes
// onMessage for each; it returns when the connection closes. Mirrors the
// teacher's readPump, generalized from a fixed-byte dispatch to Envelope
// decoding (done by the caller).
func (c *Conn) ReadPump(onMessage func(data []byte)) {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageBytes)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		onMessage(data)
	}
}

// WritePump drains the send channel to the websocket and emits periodic
// pings, mirroring the teacher's writePump.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.Close()

	for {
		select {
		case <-c.done:
			return

		case data, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
