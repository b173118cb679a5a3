package chatroom

import (
	"context"

	"github.com/roomforge/server/internal/protocol"
	"github.com/roomforge/server/internal/rooms"
)

// Manager implements the plain Chat room: text relay, music-cue relay,
// periodic occupancy announcements. It has no state beyond Base.
type Manager struct {
	*Base
}

// NewManager satisfies rooms.Factory for rooms.TypeChat.
func NewManager(ctx context.Context, key rooms.Key) rooms.Manager {
	return &Manager{Base: NewBase(ctx, key)}
}

func (m *Manager) Join(conn *rooms.Conn) {
	m.Base.Join(conn)
}

func (m *Manager) Leave(conn *rooms.Conn) {
	m.Base.Leave(conn)
}

func (m *Manager) HandleEnvelope(conn *rooms.Conn, env *protocol.Envelope) {
	if env.Chat == nil {
		return
	}
	m.HandleCommonChat(conn, env.Chat)
}

func (m *Manager) IsEmpty() bool {
	return m.Base.IsEmpty()
}
