package livewar

import (
	"sort"
	"time"

	"github.com/roomforge/server/internal/config"
	"github.com/roomforge/server/internal/protocol"
	"github.com/roomforge/server/internal/rooms"
)

// pendingSend pairs a pre-built frame with the connection it targets,
// letting the tick loop build every per-recipient view under the lock
// and perform the actual (possibly slow) socket sends after releasing it.
type pendingSend struct {
	conn  *rooms.Conn
	frame []byte
}

// buildRoomViewLocked assembles the shared substructure once per tick
// (spec.md §9: "build the base state once, then per connection derive
// only the player block"), grounded on the teacher's
// Room.broadcastState/ConvertToPlayerStateData split.
func (m *Manager) buildRoomViewLocked() protocol.RoomView {
	bases := make([]protocol.BaseView, 0, 2)
	for _, team := range []Team{TeamRed, TeamBlue} {
		b := m.bases[team]
		bases = append(bases, protocol.BaseView{Team: string(team), X: b.X, Y: b.Y, HP: b.HP, HPMax: config.BaseHPMax})
	}

	mines := make([]protocol.MineView, 0, len(m.mines))
	for _, mn := range m.mines {
		mines = append(mines, protocol.MineView{ID: mn.ID, X: mn.X, Y: mn.Y, Energy: mn.Energy})
	}

	drops := make([]protocol.EnergyView, 0, len(m.drops))
	for _, d := range m.drops {
		drops = append(drops, protocol.EnergyView{ID: d.ID, X: d.X, Y: d.Y, Energy: d.Energy})
	}

	units := make([]protocol.UnitView, 0, len(m.units))
	for _, u := range m.units {
		units = append(units, protocol.UnitView{
			ID: u.ID, Type: string(u.Type), Team: string(u.Team), OwnerID: u.OwnerID,
			X: u.X, Y: u.Y, HP: u.HP, HPMax: u.HPMax(),
			CarryingEnergy: u.CarryingEnergy, TargetX: u.TargetX, TargetY: u.TargetY,
			IsMining: u.IsMining,
		})
	}

	heal := make([]protocol.EffectView, 0, len(m.healFX))
	for _, e := range m.healFX {
		heal = append(heal, effectView(e))
	}
	bullet := make([]protocol.EffectView, 0, len(m.bulletFX))
	for _, e := range m.bulletFX {
		bullet = append(bullet, effectView(e))
	}

	return protocol.RoomView{
		Width: m.mapWidth, Height: m.mapHeight,
		Bases: bases, Mines: mines, EnergyDrops: drops, Units: units,
		HealFX: heal, BulletFX: bullet,
	}
}

func effectView(e *Effect) protocol.EffectView {
	return protocol.EffectView{ID: e.ID, Team: string(e.Team), FromX: e.FromX, FromY: e.FromY, ToX: e.ToX, ToY: e.ToY}
}

func (m *Manager) buildLogsViewLocked() []string {
	out := make([]string, 0, len(m.logs))
	for _, e := range m.logs {
		out = append(out, e.message)
	}
	return out
}

func (m *Manager) buildTeamStatsLocked() protocol.TeamStatsView {
	var stats protocol.TeamStatsView
	for _, u := range m.units {
		switch u.Team {
		case TeamRed:
			stats.Red.UnitCount++
		case TeamBlue:
			stats.Blue.UnitCount++
		}
	}
	return stats
}

func (m *Manager) buildPlayersViewLocked() []protocol.PlayerView {
	out := make([]protocol.PlayerView, 0, len(m.players))
	ids := make([]int64, 0, len(m.players))
	for id := range m.players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		p := m.players[id]
		out = append(out, protocol.PlayerView{
			UserID: p.UserID, Username: p.Username, Team: string(p.Team),
			SelectedUnitType: string(p.SelectedUnitType), Energy: p.Energy,
		})
	}
	return out
}

// buildPlayerViewLocked returns the recipient-specific Player block, or
// the zero value for a spectator/unjoined connection (spec.md §9:
// "spectators never receive a populated Player").
func (m *Manager) buildPlayerViewLocked(conn *rooms.Conn) protocol.PlayerView {
	if !conn.Identity.Authenticated {
		return protocol.PlayerView{}
	}
	p, ok := m.players[conn.Identity.UserID]
	if !ok {
		return protocol.PlayerView{}
	}
	return protocol.PlayerView{
		UserID: p.UserID, Username: p.Username, Team: string(p.Team),
		SelectedUnitType: string(p.SelectedUnitType), Energy: p.Energy,
	}
}

func (m *Manager) gameTimeLocked() float64 {
	if m.gameStartAt.IsZero() {
		return 0
	}
	return time.Since(m.gameStartAt).Seconds()
}

// buildStateFramesLocked builds one encoded GAME_STATE frame per current
// connection. Caller holds m.mu.
func (m *Manager) buildStateFramesLocked() []pendingSend {
	room := m.buildRoomViewLocked()
	logs := m.buildLogsViewLocked()
	teamStats := m.buildTeamStatsLocked()
	players := m.buildPlayersViewLocked()
	winner := string(m.winner)

	var sends []pendingSend
	for _, conn := range m.Conns.Snapshot() {
		payload := &protocol.GameStatePayload{
			Tick:        m.tick,
			GameTime:    m.gameTimeLocked(),
			GameStarted: m.started,
			Winner:      winner,
			Room:        room,
			Logs:        logs,
			TeamStats:   teamStats,
			Players:     players,
			Player:      m.buildPlayerViewLocked(conn),
		}
		frame, err := protocol.EncodeGame(&protocol.GameMessage{Type: protocol.GameGameState, GameState: payload})
		if err != nil {
			continue
		}
		sends = append(sends, pendingSend{conn: conn, frame: frame})
	}
	return sends
}

// deliverFrames performs the actual per-connection sends outside the
// lock, evicting any connection whose send fails (spec.md §4.2).
func (m *Manager) deliverFrames(sends []pendingSend) {
	for _, s := range sends {
		if err := s.conn.Send(s.frame); err != nil {
			m.Conns.Remove(s.conn)
			s.conn.Close()
		}
	}
}

// broadcastStateAll rebuilds and sends a fresh per-recipient state frame
// to every connection, used after a non-tick mutation (join/spawn/select).
func (m *Manager) broadcastStateAll() {
	m.mu.Lock()
	sends := m.buildStateFramesLocked()
	m.mu.Unlock()
	m.deliverFrames(sends)
}

func (m *Manager) sendStateTo(conn *rooms.Conn) {
	m.mu.Lock()
	payload := &protocol.GameStatePayload{
		Tick:        m.tick,
		GameTime:    m.gameTimeLocked(),
		GameStarted: m.started,
		Winner:      string(m.winner),
		Room:        m.buildRoomViewLocked(),
		Logs:        m.buildLogsViewLocked(),
		TeamStats:   m.buildTeamStatsLocked(),
		Players:     m.buildPlayersViewLocked(),
		Player:      m.buildPlayerViewLocked(conn),
	}
	m.mu.Unlock()

	frame, err := protocol.EncodeGame(&protocol.GameMessage{Type: protocol.GameGameState, GameState: payload})
	if err != nil {
		return
	}
	if err := conn.Send(frame); err != nil {
		m.Conns.Remove(conn)
		conn.Close()
	}
}
