package drawingroom

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomforge/server/internal/authz"
	"github.com/roomforge/server/internal/protocol"
	"github.com/roomforge/server/internal/rooms"
)

func drain(c *rooms.Conn) {
	for {
		if _, ok := c.TryRecv(); !ok {
			return
		}
	}
}

func request(m *Manager, conn *rooms.Conn) {
	m.HandleEnvelope(conn, &protocol.Envelope{Chat: &protocol.ChatMessage{
		Type: protocol.ChatDrawingRequest,
	}})
}

func TestFirstRequesterBecomesDrawer(t *testing.T) {
	ctx := context.Background()
	m := NewManager(ctx, rooms.Key{Type: rooms.TypeDrawing, ID: 1}).(*Manager)
	defer m.Teardown()

	alice, _ := rooms.NewTestConn(authz.Identity{Username: "alice", Authenticated: true})
	m.Join(alice)
	drain(alice)

	request(m, alice)

	frame, ok := alice.TryRecv()
	require.True(t, ok)
	env, err := protocol.Decode(frame)
	require.NoError(t, err)
	require.NotNil(t, env.Chat)
	assert.Equal(t, protocol.ChatDrawingState, env.Chat.Type)
	assert.Equal(t, "alice", env.Chat.Content)
}

func TestSecondRequesterQueuesThenApprovalGrantsDrawer(t *testing.T) {
	ctx := context.Background()
	m := NewManager(ctx, rooms.Key{Type: rooms.TypeDrawing, ID: 1}).(*Manager)
	defer m.Teardown()

	alice, _ := rooms.NewTestConn(authz.Identity{Username: "alice", Authenticated: true})
	bob, _ := rooms.NewTestConn(authz.Identity{Username: "bob", Authenticated: true})
	m.Join(alice)
	m.Join(bob)
	drain(alice)
	drain(bob)

	request(m, alice)
	drain(alice)
	drain(bob)

	request(m, bob)
	// bob's request is only echoed, not granted yet.
	frame, ok := bob.TryRecv()
	require.True(t, ok)
	env, err := protocol.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, protocol.ChatDrawingRequest, env.Chat.Type)
	drain(alice)

	m.HandleEnvelope(alice, &protocol.Envelope{Chat: &protocol.ChatMessage{
		Type:    protocol.ChatDrawingRequestApprove,
		Content: "bob",
	}})

	frame, ok = bob.TryRecv()
	require.True(t, ok)
	env, err = protocol.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, protocol.ChatDrawingState, env.Chat.Type)
	assert.Equal(t, "bob", env.Chat.Content)
}

func TestOnlyDrawerCanPaintAndClear(t *testing.T) {
	ctx := context.Background()
	m := NewManager(ctx, rooms.Key{Type: rooms.TypeDrawing, ID: 1}).(*Manager)
	defer m.Teardown()

	alice, _ := rooms.NewTestConn(authz.Identity{Username: "alice", Authenticated: true})
	bob, _ := rooms.NewTestConn(authz.Identity{Username: "bob", Authenticated: true})
	m.Join(alice)
	m.Join(bob)
	drain(alice)
	drain(bob)

	request(m, alice)
	drain(alice)
	drain(bob)

	m.HandleEnvelope(bob, &protocol.Envelope{Chat: &protocol.ChatMessage{
		Type:    protocol.ChatDrawing,
		Content: "bob's stroke",
	}})
	_, ok := alice.TryRecv()
	assert.False(t, ok, "non-drawer strokes must be dropped silently")

	m.HandleEnvelope(alice, &protocol.Envelope{Chat: &protocol.ChatMessage{
		Type:    protocol.ChatDrawing,
		Content: "alice's stroke",
	}})
	frame, ok := bob.TryRecv()
	require.True(t, ok)
	env, err := protocol.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, "alice's stroke", env.Chat.Content)
	drain(alice)
	drain(bob)

	m.HandleEnvelope(bob, &protocol.Envelope{Chat: &protocol.ChatMessage{Type: protocol.ChatDrawingClear}})
	_, ok = alice.TryRecv()
	assert.False(t, ok, "non-drawer clears must be dropped silently")

	m.HandleEnvelope(alice, &protocol.Envelope{Chat: &protocol.ChatMessage{Type: protocol.ChatDrawingClear}})
	frame, ok = bob.TryRecv()
	require.True(t, ok)
	env, err = protocol.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, protocol.ChatDrawingClear, env.Chat.Type)
}

func TestDrawerDisconnectReleasesLease(t *testing.T) {
	ctx := context.Background()
	m := NewManager(ctx, rooms.Key{Type: rooms.TypeDrawing, ID: 1}).(*Manager)
	defer m.Teardown()

	alice, _ := rooms.NewTestConn(authz.Identity{Username: "alice", Authenticated: true})
	bob, _ := rooms.NewTestConn(authz.Identity{Username: "bob", Authenticated: true})
	m.Join(alice)
	m.Join(bob)
	drain(alice)
	drain(bob)

	request(m, alice)
	drain(alice)
	drain(bob)

	m.Leave(alice)

	// The first frame bob sees is the "alice left room" system
	// announcement; the lease release follows it.
	frame, ok := bob.TryRecv()
	require.True(t, ok)
	env, err := protocol.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, protocol.ChatSystem, env.Chat.Type)

	frame, ok = bob.TryRecv()
	require.True(t, ok)
	env, err = protocol.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, protocol.ChatDrawingState, env.Chat.Type)
	assert.Equal(t, "", env.Chat.Content)
}

func TestJoiningMidLeaseReceivesCurrentStateAndCanvas(t *testing.T) {
	ctx := context.Background()
	m := NewManager(ctx, rooms.Key{Type: rooms.TypeDrawing, ID: 1}).(*Manager)
	defer m.Teardown()

	alice, _ := rooms.NewTestConn(authz.Identity{Username: "alice", Authenticated: true})
	m.Join(alice)
	drain(alice)
	request(m, alice)
	drain(alice)

	m.HandleEnvelope(alice, &protocol.Envelope{Chat: &protocol.ChatMessage{
		Type:    protocol.ChatDrawing,
		Content: "some strokes",
	}})
	drain(alice)

	bob, _ := rooms.NewTestConn(authz.Identity{Username: "bob", Authenticated: true})
	m.Join(bob)

	// First frame is the "bob joined room" system announcement, then the
	// current lease state, then the canvas snapshot.
	frame, ok := bob.TryRecv()
	require.True(t, ok)
	env, err := protocol.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, protocol.ChatSystem, env.Chat.Type)

	frame, ok = bob.TryRecv()
	require.True(t, ok)
	env, err = protocol.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, protocol.ChatDrawingState, env.Chat.Type)
	assert.Equal(t, "alice", env.Chat.Content)

	frame, ok = bob.TryRecv()
	require.True(t, ok)
	env, err = protocol.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, protocol.ChatDrawing, env.Chat.Type)
	assert.Equal(t, "some strokes", env.Chat.Content)
}

func TestUnauthenticatedRequestIsRejected(t *testing.T) {
	ctx := context.Background()
	m := NewManager(ctx, rooms.Key{Type: rooms.TypeDrawing, ID: 1}).(*Manager)
	defer m.Teardown()

	anon, _ := rooms.NewTestConn(authz.Identity{Username: "Anonymous"})
	m.Join(anon)
	drain(anon)

	request(m, anon)

	frame, ok := anon.TryRecv()
	require.True(t, ok)
	env, err := protocol.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, protocol.ChatSystem, env.Chat.Type)
}
