// Package drawingroom extends the Chat room baseline with a
// single-drawer lease, canvas snapshot replication, a request/approve
// queue and an auto-release timer (spec.md §4.4).
package drawingroom

import (
	"context"
	"sync"
	"time"

	"github.com/roomforge/server/internal/chatroom"
	"github.com/roomforge/server/internal/config"
	"github.com/roomforge/server/internal/protocol"
	"github.com/roomforge/server/internal/rooms"
)

// Manager implements the Drawing room state machine (none -> active ->
// none), grounded on the drawer/queue/canvas idiom documented in
// DmytroShuba-scribble.rs's shared event types (no teacher equivalent
// exists; the racing teacher has no drawing concept).
type Manager struct {
	*chatroom.Base

	mu            sync.Mutex
	drawer        string
	canvas        string
	queue         map[string]bool
	releaseCancel context.CancelFunc
}

// NewManager satisfies rooms.Factory for rooms.TypeDrawing.
func NewManager(ctx context.Context, key rooms.Key) rooms.Manager {
	return &Manager{
		Base:  chatroom.NewBase(ctx, key),
		queue: make(map[string]bool),
	}
}

func (m *Manager) Join(conn *rooms.Conn) {
	m.Base.Join(conn)

	m.mu.Lock()
	drawer := m.drawer
	canvas := m.canvas
	m.mu.Unlock()

	if drawer == "" {
		return
	}
	m.sendTo(conn, protocol.ChatDrawingState, drawer)
	if canvas != "" {
		m.sendTo(conn, protocol.ChatDrawing, canvas)
	}
}

func (m *Manager) Leave(conn *rooms.Conn) {
	m.mu.Lock()
	wasDrawer := m.drawer != "" && m.drawer == conn.Identity.Username
	m.mu.Unlock()

	m.Base.Leave(conn)

	if wasDrawer {
		m.releaseDrawer()
	}
}

func (m *Manager) IsEmpty() bool { return m.Base.IsEmpty() }

func (m *Manager) HandleEnvelope(conn *rooms.Conn, env *protocol.Envelope) {
	if env.Chat == nil {
		return
	}
	msg := env.Chat
	if m.HandleCommonChat(conn, msg) {
		return
	}

	switch msg.Type {
	case protocol.ChatDrawingRequest:
		m.handleRequest(conn)
	case protocol.ChatDrawingRequestApprove:
		m.handleApprove(conn, msg.Content)
	case protocol.ChatDrawing:
		m.handleDrawing(conn, msg.Content)
	case protocol.ChatDrawingClear:
		m.handleClear(conn)
	case protocol.ChatDrawingStop:
		m.handleStop(conn)
	}
}

func (m *Manager) handleRequest(conn *rooms.Conn) {
	if !conn.Identity.Authenticated {
		m.sendError(conn, "must be signed in to request the drawer role")
		return
	}
	user := conn.Identity.Username

	m.mu.Lock()
	switch {
	case m.drawer == "":
		m.drawer = user
		m.mu.Unlock()
		m.startAutoRelease()
		m.broadcastDrawingState(user)
		return
	case m.drawer == user:
		m.mu.Unlock()
		return
	default:
		m.queue[user] = true
		m.mu.Unlock()
		m.broadcastRequest(user)
	}
}

func (m *Manager) handleApprove(conn *rooms.Conn, requester string) {
	m.mu.Lock()
	if m.drawer == "" || m.drawer != conn.Identity.Username {
		m.mu.Unlock()
		m.sendError(conn, "only the current drawer may approve requests")
		return
	}
	if !m.queue[requester] {
		m.mu.Unlock()
		m.sendError(conn, "that user is not in the request queue")
		return
	}
	if !m.isUsernameConnected(requester) {
		delete(m.queue, requester)
		m.mu.Unlock()
		m.sendError(conn, "that user is no longer connected")
		return
	}
	delete(m.queue, requester)
	m.drawer = requester
	m.mu.Unlock()

	m.resetAutoRelease()
	m.broadcastDrawingState(requester)
}

func (m *Manager) handleDrawing(conn *rooms.Conn, content string) {
	m.mu.Lock()
	isDrawer := m.drawer != "" && m.drawer == conn.Identity.Username
	if isDrawer {
		m.canvas = content
	}
	m.mu.Unlock()

	if !isDrawer {
		return
	}
	m.broadcastFrame(protocol.ChatDrawing, conn.Identity.Username, content)
}

func (m *Manager) handleClear(conn *rooms.Conn) {
	m.mu.Lock()
	isDrawer := m.drawer != "" && m.drawer == conn.Identity.Username
	if isDrawer {
		m.canvas = ""
	}
	m.mu.Unlock()

	if !isDrawer {
		return
	}
	m.broadcastFrame(protocol.ChatDrawingClear, conn.Identity.Username, "")
}

func (m *Manager) handleStop(conn *rooms.Conn) {
	m.mu.Lock()
	isDrawer := m.drawer != "" && m.drawer == conn.Identity.Username
	m.mu.Unlock()

	if !isDrawer {
		return
	}
	m.releaseDrawer()
}

func (m *Manager) releaseDrawer() {
	m.mu.Lock()
	if m.releaseCancel != nil {
		m.releaseCancel()
		m.releaseCancel = nil
	}
	m.drawer = ""
	m.canvas = ""
	m.queue = make(map[string]bool)
	m.mu.Unlock()

	m.broadcastDrawingState("")
}

func (m *Manager) startAutoRelease() {
	ctx, cancel := context.WithCancel(m.Tasks.Context())
	m.mu.Lock()
	if m.releaseCancel != nil {
		m.releaseCancel()
	}
	m.releaseCancel = cancel
	m.mu.Unlock()

	m.Tasks.Go(func(parent context.Context) error {
		timer := time.NewTimer(config.DrawingAutoReleaseTimeout)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			m.releaseDrawer()
			return nil
		}
	})
}

func (m *Manager) resetAutoRelease() {
	m.startAutoRelease()
}

// isUsernameConnected checks the registry for a live connection with the
// given username. Caller must hold m.mu.
func (m *Manager) isUsernameConnected(username string) bool {
	for _, c := range m.Conns.Snapshot() {
		if c.Identity.Username == username {
			return true
		}
	}
	return false
}

func (m *Manager) broadcastDrawingState(content string) {
	m.broadcastFrame(protocol.ChatDrawingState, "", content)
}

func (m *Manager) broadcastRequest(requester string) {
	m.broadcastFrame(protocol.ChatDrawingRequest, requester, requester)
}

func (m *Manager) broadcastFrame(t protocol.ChatType, user, content string) {
	msg := &protocol.ChatMessage{
		User:      user,
		RoomID:    m.Key.ID,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
		Type:      t,
	}
	frame, err := protocol.EncodeChat(msg)
	if err != nil {
		return
	}
	m.Conns.Broadcast(frame)
}

func (m *Manager) sendTo(conn *rooms.Conn, t protocol.ChatType, content string) {
	m.SendTo(conn, &protocol.ChatMessage{Content: content, Type: t})
}

func (m *Manager) sendError(conn *rooms.Conn, message string) {
	m.SendTo(conn, &protocol.ChatMessage{Content: message, Type: protocol.ChatSystem})
}
