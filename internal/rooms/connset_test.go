package rooms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomforge/server/internal/authz"
)

func TestConnSetAddRemoveTracksCount(t *testing.T) {
	set := NewConnSet()
	alice, _ := NewTestConn(authz.Identity{UserID: 1, Username: "alice", Authenticated: true})
	bob, _ := NewTestConn(authz.Identity{UserID: 2, Username: "bob", Authenticated: true})

	assert.Equal(t, 1, set.Add(alice))
	assert.Equal(t, 2, set.Add(bob))
	assert.Equal(t, 2, set.Count())

	count, existed := set.Remove(alice)
	assert.True(t, existed)
	assert.Equal(t, 1, count)

	_, existed = set.Remove(alice)
	assert.False(t, existed)
}

func TestConnSetBroadcastDeliversToEveryMember(t *testing.T) {
	set := NewConnSet()
	alice, _ := NewTestConn(authz.Identity{UserID: 1, Username: "alice", Authenticated: true})
	bob, _ := NewTestConn(authz.Identity{UserID: 2, Username: "bob", Authenticated: true})
	set.Add(alice)
	set.Add(bob)

	set.Broadcast([]byte("hello"))

	frame, ok := alice.TryRecv()
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), frame)

	frame, ok = bob.TryRecv()
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), frame)
}

func TestConnSetBroadcastExceptSkipsOneConnection(t *testing.T) {
	set := NewConnSet()
	alice, _ := NewTestConn(authz.Identity{UserID: 1, Username: "alice", Authenticated: true})
	bob, _ := NewTestConn(authz.Identity{UserID: 2, Username: "bob", Authenticated: true})
	set.Add(alice)
	set.Add(bob)

	set.BroadcastExcept([]byte("hi"), alice)

	_, ok := alice.TryRecv()
	assert.False(t, ok)

	frame, ok := bob.TryRecv()
	require.True(t, ok)
	assert.Equal(t, []byte("hi"), frame)
}

func TestConnSetBroadcastEvictsFailedSend(t *testing.T) {
	set := NewConnSet()
	conn, _ := NewTestConn(authz.Identity{UserID: 1, Username: "alice", Authenticated: true})
	set.Add(conn)

	// Fill the send buffer past capacity so the next Send reports a
	// slow-consumer error and Broadcast evicts the connection.
	for i := 0; i < sendBuffer+1; i++ {
		conn.Send([]byte("x"))
	}

	set.Broadcast([]byte("y"))

	assert.Equal(t, 0, set.Count())
}
