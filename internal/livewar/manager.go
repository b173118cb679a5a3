package livewar

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/roomforge/server/internal/chatroom"
	"github.com/roomforge/server/internal/config"
	"github.com/roomforge/server/internal/logging"
	"github.com/roomforge/server/internal/protocol"
	"github.com/roomforge/server/internal/rooms"
)

var log = logging.Component("livewar")

const maxLogsTotal = 10
const maxLogsPerPlayer = 3

type logEntry struct {
	userID  int64
	message string
}

// Manager owns one LiveWar room's entire simulation state. All mutation
// happens either on the tick task or synchronously inside HandleEnvelope
// (both serialized by mu), mirroring the teacher's single-owner Room.
type Manager struct {
	*chatroom.Base

	mu sync.Mutex

	mapWidth, mapHeight int

	started      bool
	gameOver     bool
	winner       Team
	gameStartAt  time.Time
	gameOverAt   time.Time

	bases map[Team]*Base
	units map[string]*Unit
	mines map[string]*MineField
	drops map[string]*EnergyDrop

	healFX   map[string]*Effect
	bulletFX map[string]*Effect

	players map[int64]*Player
	logs    []logEntry

	lastMineSpawn time.Time
	tick          uint64

	tickLoopStarted bool
	emptySince      *time.Time
}

// NewManager satisfies rooms.Factory for rooms.TypeLiveWar.
func NewManager(ctx context.Context, key rooms.Key) rooms.Manager {
	return &Manager{
		Base:      chatroom.NewBase(ctx, key),
		mapWidth:  config.MapWidth,
		mapHeight: config.MapHeight,
		bases: map[Team]*Base{
			TeamRed:  {Team: TeamRed, X: config.RedBaseOffset, Y: float64(config.MapHeight - config.RedBaseOffset), HP: config.BaseHPMax},
			TeamBlue: {Team: TeamBlue, X: float64(config.MapWidth - config.BlueBaseOffset), Y: config.BlueBaseOffset, HP: config.BaseHPMax},
		},
		units:    make(map[string]*Unit),
		mines:    make(map[string]*MineField),
		drops:    make(map[string]*EnergyDrop),
		healFX:   make(map[string]*Effect),
		bulletFX: make(map[string]*Effect),
		players:  make(map[int64]*Player),
	}
}

func (m *Manager) Join(conn *rooms.Conn) {
	m.Base.Join(conn)

	m.mu.Lock()
	m.emptySince = nil
	m.mu.Unlock()

	m.ensureTickLoop()
	m.sendStateTo(conn)
}

func (m *Manager) Leave(conn *rooms.Conn) {
	m.Base.Leave(conn)

	if conn.Identity.Authenticated {
		m.mu.Lock()
		if p, ok := m.players[conn.Identity.UserID]; ok {
			m.addLog(p.UserID, p.Username+" disconnected")
		}
		m.mu.Unlock()
	}

	if m.Base.IsEmpty() {
		now := time.Now()
		m.mu.Lock()
		m.emptySince = &now
		m.mu.Unlock()
	}
}

// IsEmpty applies the 60s empty-room grace window (spec.md §5): the room
// only reports empty once that long has elapsed since the last
// connection left, so a brief disconnect doesn't destroy an active
// simulation. Reconnection (Join) clears the grace window.
func (m *Manager) IsEmpty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.Base.IsEmpty() {
		return false
	}
	return m.emptySince != nil && time.Since(*m.emptySince) >= config.EmptyRoomGrace
}

func (m *Manager) HandleEnvelope(conn *rooms.Conn, env *protocol.Envelope) {
	if env.Chat != nil {
		m.HandleCommonChat(conn, env.Chat)
		return
	}
	if env.Game == nil {
		return
	}

	switch env.Game.Type {
	case protocol.GameJoinGame:
		if env.Game.JoinGame != nil {
			m.handleJoinGame(conn, env.Game.JoinGame.Team)
		}
	case protocol.GameLeaveGame:
		m.handleLeaveGame(conn)
	case protocol.GameSelectUnit:
		if env.Game.SelectUnit != nil {
			m.handleSelectUnit(conn, env.Game.SelectUnit.UnitType)
		}
	case protocol.GameSpawnUnit:
		m.handleSpawnUnit(conn)
	}
}

func (m *Manager) handleJoinGame(conn *rooms.Conn, teamStr string) {
	if !conn.Identity.Authenticated {
		m.sendGameError(conn, "must be signed in to join a team")
		return
	}
	team := Team(teamStr)
	if team != TeamRed && team != TeamBlue {
		m.sendGameError(conn, "invalid team")
		return
	}

	m.mu.Lock()
	if m.started && !m.gameOver {
		m.mu.Unlock()
		m.sendGameError(conn, "a match is already in progress, wait for it to finish")
		return
	}
	if m.started && time.Since(m.gameOverAt) < config.GameOverResetDelay && !m.gameOverAt.IsZero() {
		m.mu.Unlock()
		m.sendGameError(conn, "a new game cannot start yet")
		return
	}
	uid := conn.Identity.UserID
	p, exists := m.players[uid]
	if !exists {
		p = &Player{UserID: uid, Username: conn.Identity.Username}
		m.players[uid] = p
	}
	p.Team = team
	if p.SelectedUnitType == "" {
		p.SelectedUnitType = config.UnitMiner
	}

	var mainMiner *Unit
	if p.MainMinerID == "" {
		mainMiner = m.spawnUnitLocked(config.UnitMiner, team, uid)
		mainMiner.IsMainMiner = true
		p.MainMinerID = mainMiner.ID
	}

	starting := !m.started && m.teamHasPlayerLocked(TeamRed) && m.teamHasPlayerLocked(TeamBlue)
	if starting {
		m.started = true
		m.gameOver = false
		m.winner = ""
		m.gameStartAt = time.Now()
		m.gameOverAt = time.Time{}
		m.seedInitialMinesLocked()
		m.lastMineSpawn = time.Now()
	}
	m.mu.Unlock()

	m.ensureTickLoop()
	m.broadcastStateAll()

	if starting {
		m.broadcastGameStarted()
	}
}

func (m *Manager) handleLeaveGame(conn *rooms.Conn) {
	if !conn.Identity.Authenticated {
		return
	}
	m.mu.Lock()
	delete(m.players, conn.Identity.UserID)
	m.mu.Unlock()
	m.broadcastStateAll()
}

func (m *Manager) handleSelectUnit(conn *rooms.Conn, unitTypeStr string) {
	if !conn.Identity.Authenticated {
		m.sendGameError(conn, "must be signed in")
		return
	}
	ut := config.UnitType(unitTypeStr)
	if _, ok := config.UnitSpawnCost[ut]; !ok {
		m.sendGameError(conn, "unknown unit type")
		return
	}

	m.mu.Lock()
	p, ok := m.players[conn.Identity.UserID]
	if !ok {
		m.mu.Unlock()
		m.sendGameError(conn, "join a team first")
		return
	}
	p.SelectedUnitType = ut
	m.mu.Unlock()

	m.sendStateTo(conn)
}

func (m *Manager) handleSpawnUnit(conn *rooms.Conn) {
	if !conn.Identity.Authenticated {
		m.sendGameError(conn, "must be signed in")
		return
	}

	m.mu.Lock()
	p, ok := m.players[conn.Identity.UserID]
	if !ok || !m.started || m.gameOver {
		m.mu.Unlock()
		m.sendGameError(conn, "cannot spawn right now")
		return
	}
	cost := config.UnitSpawnCost[p.SelectedUnitType].SpawnCost
	if p.Energy < cost {
		m.mu.Unlock()
		m.sendGameError(conn, "insufficient energy")
		return
	}
	p.Energy -= cost
	m.spawnUnitLocked(p.SelectedUnitType, p.Team, p.UserID)
	m.mu.Unlock()

	m.broadcastStateAll()
}

func (m *Manager) teamHasPlayerLocked(team Team) bool {
	for _, p := range m.players {
		if p.Team == team {
			return true
		}
	}
	return false
}

func (m *Manager) sendGameError(conn *rooms.Conn, message string) {
	frame, err := protocol.EncodeGame(&protocol.GameMessage{
		Type:  protocol.GameError,
		Error: &protocol.ErrorPayload{Message: message},
	})
	if err != nil {
		return
	}
	if err := conn.Send(frame); err != nil {
		m.Conns.Remove(conn)
		conn.Close()
	}
}

func (m *Manager) broadcastGameStarted() {
	m.mu.Lock()
	var red, blue []string
	for _, p := range m.players {
		if p.Team == TeamRed {
			red = append(red, p.Username)
		} else if p.Team == TeamBlue {
			blue = append(blue, p.Username)
		}
	}
	m.mu.Unlock()

	frame, err := protocol.EncodeGame(&protocol.GameMessage{
		Type:        protocol.GameGameStarted,
		GameStarted: &protocol.GameStartedPayload{RedTeam: red, BlueTeam: blue},
	})
	if err != nil {
		return
	}
	m.Conns.Broadcast(frame)
}

func (m *Manager) broadcastGameOver() {
	m.mu.Lock()
	winner := m.winner
	m.mu.Unlock()

	frame, err := protocol.EncodeGame(&protocol.GameMessage{
		Type: protocol.GameGameOver,
		GameOver: &protocol.GameOverPayload{
			Winner:            string(winner),
			WinnerDisplayName: string(winner),
		},
	})
	if err != nil {
		return
	}
	m.Conns.Broadcast(frame)
}

// ensureTickLoop lazily launches the single per-room simulation task on
// first connection, mirroring chatroom.Base's lazy occupancy-task start
// (spec.md §5: "for LiveWar, one tick task when any player is present").
func (m *Manager) ensureTickLoop() {
	m.mu.Lock()
	if m.tickLoopStarted {
		m.mu.Unlock()
		return
	}
	m.tickLoopStarted = true
	m.mu.Unlock()

	m.Tasks.Go(func(ctx context.Context) error {
		ticker := time.NewTicker(config.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				m.runTick()
			}
		}
	})
}

// runTick performs one simulation step in the order spec.md §4.6
// prescribes, recovering from any panic so a single bad tick never kills
// the room's loop (spec.md §7: "internal invariant violations must be
// logged and not terminate the room").
func (m *Manager) runTick() {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("tick step failed, continuing")
		}
	}()

	m.mu.Lock()

	m.tick++
	if !m.started {
		m.mu.Unlock()
		return
	}

	now := time.Now()

	m.regenMinesLocked(now)
	m.maybeSpawnMineLocked(now)

	for _, u := range m.units {
		if u.IsDead {
			continue
		}
		m.stepUnitAILocked(u, now)
	}

	m.resolveCombatLocked(now)

	m.expireEnergyDropsLocked(now)
	m.expireEffectsLocked(now)

	m.respawnStarterMinersLocked(now)

	justEnded := m.checkGameOverLocked(now)

	sends := m.buildStateFramesLocked()
	m.mu.Unlock()

	if justEnded {
		m.broadcastGameOver()
	}
	m.deliverFrames(sends)
}

func (m *Manager) addLog(userID int64, message string) {
	m.logs = append(m.logs, logEntry{userID: userID, message: message})
	m.trimLogsLocked()
}

func (m *Manager) trimLogsLocked() {
	perPlayer := make(map[int64]int)
	kept := make([]logEntry, 0, len(m.logs))
	for i := len(m.logs) - 1; i >= 0; i-- {
		e := m.logs[i]
		if perPlayer[e.userID] >= maxLogsPerPlayer {
			continue
		}
		perPlayer[e.userID]++
		kept = append(kept, e)
		if len(kept) >= maxLogsTotal {
			break
		}
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	m.logs = kept
}

func randFloat(lo, hi float64) float64 {
	return lo + rand.Float64()*(hi-lo)
}
