package gobangroom

import (
	"context"
	"encoding/json"
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

func lastState(t *testing.T, c *rooms.Conn) stateView {
	t.Helper()
	var latest *stateView
	for {
		frame, ok := c.TryRecv()
		if !ok {
			break
		}
		env, err := protocol.Decode(frame)
		require.NoError(t, err)
		if env.Chat == nil || env.Chat.Type != protocol.ChatGobangState {
			continue
		}
		var v stateView
		require.NoError(t, json.Unmarshal([]byte(env.Chat.Content), &v))
		latest = &v
	}
	require.NotNil(t, latest, "expected at least one GOBANG_STATE frame")
	return *latest
}

func seatJoin(m *Manager, conn *rooms.Conn) {
	m.HandleEnvelope(conn, &protocol.Envelope{Chat: &protocol.ChatMessage{
		Type: protocol.ChatGobangJoin,
	}})
}

func move(m *Manager, conn *rooms.Conn, x, y int) {
	content, _ := json.Marshal(movePayload{X: x, Y: y})
	m.HandleEnvelope(conn, &protocol.Envelope{Chat: &protocol.ChatMessage{
		Type:    protocol.ChatGobangMove,
		Content: string(content),
	}})
}

func TestTwoJoinsStartMatchWithDistinctColours(t *testing.T) {
	ctx := context.Background()
	m := NewManager(ctx, rooms.Key{Type: rooms.TypeGobang, ID: 1}).(*Manager)
	defer m.Teardown()

	alice, _ := rooms.NewTestConn(authz.Identity{UserID: 1, Username: "alice", Authenticated: true})
	bob, _ := rooms.NewTestConn(authz.Identity{UserID: 2, Username: "bob", Authenticated: true})
	m.Join(alice)
	m.Join(bob)
	drain(alice)
	drain(bob)

	seatJoin(m, alice)
	drain(alice)
	drain(bob)

	seatJoin(m, bob)

	va := lastState(t, alice)
	vb := lastState(t, bob)
	assert.True(t, va.Started)
	assert.True(t, vb.Started)
	assert.NotEqual(t, va.Role, vb.Role)
	assert.Contains(t, []string{"black", "white"}, va.Role)
	assert.Contains(t, []string{"black", "white"}, vb.Role)
}

func TestAnonymousCannotTakeSeat(t *testing.T) {
	ctx := context.Background()
	m := NewManager(ctx, rooms.Key{Type: rooms.TypeGobang, ID: 1}).(*Manager)
	defer m.Teardown()

	anon, _ := rooms.NewTestConn(authz.Identity{Username: "Anonymous"})
	m.Join(anon)
	drain(anon)

	seatJoin(m, anon)

	frame, ok := anon.TryRecv()
	require.True(t, ok)
	env, err := protocol.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, protocol.ChatSystem, env.Chat.Type)
}

func TestFiveInARowEndsMatchAndResets(t *testing.T) {
	ctx := context.Background()
	m := NewManager(ctx, rooms.Key{Type: rooms.TypeGobang, ID: 1}).(*Manager)
	defer m.Teardown()

	alice, _ := rooms.NewTestConn(authz.Identity{UserID: 1, Username: "alice", Authenticated: true})
	bob, _ := rooms.NewTestConn(authz.Identity{UserID: 2, Username: "bob", Authenticated: true})
	m.Join(alice)
	m.Join(bob)
	drain(alice)
	drain(bob)
	seatJoin(m, alice)
	drain(alice)
	drain(bob)
	seatJoin(m, bob)
	drain(alice)
	drain(bob)

	// Determine seat colours from the freshly-started state.
	va := lastStateSnapshot(m, alice)
	var black, white *rooms.Conn
	if va.Role == "black" {
		black, white = alice, bob
	} else {
		black, white = bob, alice
	}

	// black plays column 7, white plays column 8, until black gets five
	// in a column.
	for row := 0; row < 5; row++ {
		move(m, black, 7, row)
		drain(alice)
		drain(bob)
		if row < 4 {
			move(m, white, 8, row)
			drain(alice)
			drain(bob)
		}
	}

	va = lastStateSnapshot(m, alice)
	assert.False(t, va.Started, "match should be reset after a win")
	assert.Equal(t, "none", va.Winner)
}

// lastStateSnapshot reads the current per-recipient view without consuming
// any other queued frames, by asking the manager directly.
func lastStateSnapshot(m *Manager, conn *rooms.Conn) stateView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewFor(conn)
}

func TestMoveOutOfTurnIsRejected(t *testing.T) {
	ctx := context.Background()
	m := NewManager(ctx, rooms.Key{Type: rooms.TypeGobang, ID: 1}).(*Manager)
	defer m.Teardown()

	alice, _ := rooms.NewTestConn(authz.Identity{UserID: 1, Username: "alice", Authenticated: true})
	bob, _ := rooms.NewTestConn(authz.Identity{UserID: 2, Username: "bob", Authenticated: true})
	m.Join(alice)
	m.Join(bob)
	drain(alice)
	drain(bob)
	seatJoin(m, alice)
	drain(alice)
	drain(bob)
	seatJoin(m, bob)
	drain(alice)
	drain(bob)

	va := lastStateSnapshot(m, alice)
	var offTurn *rooms.Conn
	if va.Role == "black" {
		offTurn = bob
	} else {
		offTurn = alice
	}

	move(m, offTurn, 3, 3)

	var sawError bool
	for {
		frame, ok := offTurn.TryRecv()
		if !ok {
			break
		}
		env, err := protocol.Decode(frame)
		require.NoError(t, err)
		if env.Chat != nil && env.Chat.Type == protocol.ChatSystem {
			sawError = true
		}
	}
	assert.True(t, sawError)
}
