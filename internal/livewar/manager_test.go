package livewar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomforge/server/internal/authz"
	"github.com/roomforge/server/internal/config"
	"github.com/roomforge/server/internal/protocol"
	"github.com/roomforge/server/internal/rooms"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(context.Background(), rooms.Key{Type: rooms.TypeLiveWar, ID: 1}).(*Manager)
	t.Cleanup(m.Teardown)
	return m
}

func drain(c *rooms.Conn) {
	for {
		if _, ok := c.TryRecv(); !ok {
			return
		}
	}
}

func joinTeam(m *Manager, conn *rooms.Conn, team string) {
	m.HandleEnvelope(conn, &protocol.Envelope{Game: &protocol.GameMessage{
		Type:     protocol.GameJoinGame,
		JoinGame: &protocol.JoinGamePayload{Team: team},
	}})
}

func TestGameDoesNotStartWithOnlyOneTeam(t *testing.T) {
	m := newTestManager(t)

	alice, _ := rooms.NewTestConn(authz.Identity{UserID: 1, Username: "alice", Authenticated: true})
	m.Join(alice)
	drain(alice)

	joinTeam(m, alice, "red")

	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	assert.False(t, started)
}

func TestFirstOppositeTeamJoinStartsGame(t *testing.T) {
	m := newTestManager(t)

	alice, _ := rooms.NewTestConn(authz.Identity{UserID: 1, Username: "alice", Authenticated: true})
	bob, _ := rooms.NewTestConn(authz.Identity{UserID: 2, Username: "bob", Authenticated: true})
	m.Join(alice)
	m.Join(bob)
	drain(alice)
	drain(bob)

	joinTeam(m, alice, "red")
	drain(alice)
	drain(bob)

	joinTeam(m, bob, "blue")

	m.mu.Lock()
	started := m.started
	mineCount := len(m.mines)
	m.mu.Unlock()
	assert.True(t, started)
	assert.Equal(t, config.InitialMineCount, mineCount)

	var sawStarted bool
	for {
		frame, ok := bob.TryRecv()
		if !ok {
			break
		}
		env, err := protocol.Decode(frame)
		require.NoError(t, err)
		if env.Game != nil && env.Game.Type == protocol.GameGameStarted {
			sawStarted = true
		}
	}
	assert.True(t, sawStarted)
}

func TestBaseDestructionEndsGameAndAutoResets(t *testing.T) {
	m := newTestManager(t)

	alice, _ := rooms.NewTestConn(authz.Identity{UserID: 1, Username: "alice", Authenticated: true})
	bob, _ := rooms.NewTestConn(authz.Identity{UserID: 2, Username: "bob", Authenticated: true})
	m.Join(alice)
	m.Join(bob)
	joinTeam(m, alice, "red")
	joinTeam(m, bob, "blue")
	drain(alice)
	drain(bob)

	m.mu.Lock()
	m.bases[TeamBlue].HP = 0
	m.mu.Unlock()

	m.runTick()

	m.mu.Lock()
	gameOver := m.gameOver
	winner := m.winner
	started := m.started
	m.mu.Unlock()
	assert.True(t, gameOver)
	assert.Equal(t, TeamRed, winner)
	assert.True(t, started, "room stays in the 10s post-game-over window before resetting")

	// Advance the clock past the reset delay and tick again.
	m.mu.Lock()
	m.gameOverAt = time.Now().Add(-(config.GameOverResetDelay + time.Second))
	m.mu.Unlock()

	m.runTick()

	m.mu.Lock()
	startedAfterReset := m.started
	unitCount := len(m.units)
	m.mu.Unlock()
	assert.False(t, startedAfterReset)
	assert.Equal(t, 0, unitCount)
}

func TestSpawnUnitDeductsEnergyAndRejectsWhenInsufficient(t *testing.T) {
	m := newTestManager(t)

	alice, _ := rooms.NewTestConn(authz.Identity{UserID: 1, Username: "alice", Authenticated: true})
	bob, _ := rooms.NewTestConn(authz.Identity{UserID: 2, Username: "bob", Authenticated: true})
	m.Join(alice)
	m.Join(bob)
	joinTeam(m, alice, "red")
	joinTeam(m, bob, "blue")
	drain(alice)
	drain(bob)

	m.mu.Lock()
	m.players[1].Energy = 1000
	m.mu.Unlock()

	m.HandleEnvelope(alice, &protocol.Envelope{Game: &protocol.GameMessage{Type: protocol.GameSpawnUnit}})

	m.mu.Lock()
	energyAfter := m.players[1].Energy
	unitCount := len(m.units)
	m.mu.Unlock()
	assert.Equal(t, 1000-config.UnitSpawnCost[config.UnitMiner].SpawnCost, energyAfter)
	assert.True(t, unitCount >= 1)

	m.mu.Lock()
	m.players[1].Energy = 0
	m.mu.Unlock()
	drain(alice)

	m.HandleEnvelope(alice, &protocol.Envelope{Game: &protocol.GameMessage{Type: protocol.GameSpawnUnit}})

	frame, ok := alice.TryRecv()
	require.True(t, ok)
	env, err := protocol.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, protocol.GameError, env.Game.Type)
}

func TestJoinGameRejectedWhileMatchInProgress(t *testing.T) {
	m := newTestManager(t)

	alice, _ := rooms.NewTestConn(authz.Identity{UserID: 1, Username: "alice", Authenticated: true})
	bob, _ := rooms.NewTestConn(authz.Identity{UserID: 2, Username: "bob", Authenticated: true})
	carol, _ := rooms.NewTestConn(authz.Identity{UserID: 3, Username: "carol", Authenticated: true})
	m.Join(alice)
	m.Join(bob)
	m.Join(carol)
	joinTeam(m, alice, "red")
	joinTeam(m, bob, "blue")
	drain(alice)
	drain(bob)
	drain(carol)

	m.mu.Lock()
	started := m.started
	gameOver := m.gameOver
	m.mu.Unlock()
	require.True(t, started)
	require.False(t, gameOver)

	joinTeam(m, carol, "red")

	m.mu.Lock()
	_, joined := m.players[3]
	m.mu.Unlock()
	assert.False(t, joined, "a late joiner must not be added to a running match")

	frame, ok := carol.TryRecv()
	require.True(t, ok)
	env, err := protocol.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, protocol.GameError, env.Game.Type)
}

func TestUnitHPNeverExceedsBounds(t *testing.T) {
	m := newTestManager(t)
	m.mu.Lock()
	defer m.mu.Unlock()

	// Engineer healing stops at hp_max.
	u := m.spawnUnitLocked(config.UnitMiner, TeamRed, 1)
	u.HP = u.HPMax() - 0.5
	eng := m.spawnUnitLocked(config.UnitEngineer, TeamRed, 1)
	m.engineerAILocked(eng)
	assert.Equal(t, u.HPMax(), u.HP)

	// A lethal hit removes the unit rather than leaving it below zero hp.
	enemy := m.spawnUnitLocked(config.UnitAssaultTank, TeamBlue, 2)
	enemy.X, enemy.Y = u.X+1, u.Y
	enemy.TargetID = u.ID
	u.HP = 1
	m.resolveCombatLocked(time.Now())
	_, alive := m.units[u.ID]
	assert.False(t, alive)
}
