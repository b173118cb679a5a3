package chatroom

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomforge/server/internal/authz"
	"github.com/roomforge/server/internal/protocol"
	"github.com/roomforge/server/internal/rooms"
)

func TestHandleCommonChatUserText(t *testing.T) {
	base := NewBase(context.Background(), rooms.Key{Type: rooms.TypeChat, ID: 1})
	defer base.Teardown()

	conn, _ := rooms.NewTestConn(authz.Identity{Username: "alice"})

	handled := base.HandleCommonChat(conn, &protocol.ChatMessage{
		Type:    protocol.ChatUserText,
		Content: "hi",
	})
	assert.True(t, handled)
}

func TestHandleCommonChatIgnoresOtherTypes(t *testing.T) {
	base := NewBase(context.Background(), rooms.Key{Type: rooms.TypeChat, ID: 1})
	defer base.Teardown()

	conn, _ := rooms.NewTestConn(authz.Identity{Username: "alice"})
	handled := base.HandleCommonChat(conn, &protocol.ChatMessage{Type: protocol.ChatGobangMove})
	assert.False(t, handled)
}

func TestManagerIsEmptyAfterAllLeave(t *testing.T) {
	ctx := context.Background()
	m := NewManager(ctx, rooms.Key{Type: rooms.TypeChat, ID: 1})
	defer m.Teardown()

	conn, _ := rooms.NewTestConn(authz.Identity{Username: "bob"})
	m.Join(conn)
	require.False(t, m.IsEmpty())

	m.Leave(conn)
	assert.True(t, m.IsEmpty())
}

func TestBroadcastReachesAllConnectionsOnce(t *testing.T) {
	ctx := context.Background()
	m := NewManager(ctx, rooms.Key{Type: rooms.TypeChat, ID: 1})
	defer m.Teardown()

	a, _ := rooms.NewTestConn(authz.Identity{Username: "a"})
	b, _ := rooms.NewTestConn(authz.Identity{Username: "b"})
	m.Join(a)
	// Drain a's join announcement so the USER_TEXT below is the only
	// frame left to assert on.
	a.TryRecv()
	m.Join(b)
	a.TryRecv()
	b.TryRecv()

	m.HandleEnvelope(a, &protocol.Envelope{Chat: &protocol.ChatMessage{
		Type:    protocol.ChatUserText,
		Content: "hi",
	}})

	_, aGot := a.TryRecv()
	_, bGot := b.TryRecv()
	assert.True(t, aGot)
	assert.True(t, bGot)

	_, aGotAgain := a.TryRecv()
	assert.False(t, aGotAgain)
}
