package livewar

import (
	"time"

	"github.com/roomforge/server/internal/config"
	"github.com/roomforge/server/internal/idgen"
)

// spawnUnitLocked creates a unit of the given type for owner on team, at
// its own base plus a small offset facing the enemy. Caller holds m.mu.
func (m *Manager) spawnUnitLocked(ut config.UnitType, team Team, owner int64) *Unit {
	base := m.bases[team]
	offsetX, offsetY := facingOffset(team)

	stats := config.UnitSpawnCost[ut]
	u := &Unit{
		ID:      idgen.New(),
		Type:    ut,
		Team:    team,
		OwnerID: owner,
		X:       clamp(base.X+offsetX, 2, float64(m.mapWidth)-3),
		Y:       clamp(base.Y+offsetY, 2, float64(m.mapHeight)-3),
		HP:      stats.HP,
	}
	m.units[u.ID] = u
	return u
}

// facingOffset nudges a freshly spawned unit toward the enemy base so it
// doesn't spawn stacked on its own base tile.
func facingOffset(team Team) (float64, float64) {
	if team == TeamRed {
		return 2, -2
	}
	return -2, 2
}

// killUnitLocked removes a unit, drops its carried + per-type death
// energy as an EnergyDrop, and — if it was a player's main miner —
// schedules that player's 5s respawn.
func (m *Manager) killUnitLocked(u *Unit, now time.Time) {
	if u.IsDead {
		return
	}
	u.IsDead = true
	delete(m.units, u.ID)

	drop := u.CarryingEnergy + u.stats().EnergyDropOnDeath
	m.dropEnergyLocked(u.X, u.Y, drop)

	if u.IsMainMiner {
		if p, ok := m.players[u.OwnerID]; ok && p.MainMinerID == u.ID {
			p.MainMinerDead = now
		}
	}

	m.addLog(u.OwnerID, string(u.Type)+" destroyed")
}

// respawnStarterMinersLocked respawns a player's main miner 5s after
// death, provided the player is still connected to the room.
func (m *Manager) respawnStarterMinersLocked(now time.Time) {
	for uid, p := range m.players {
		if p.MainMinerDead.IsZero() {
			continue
		}
		if now.Sub(p.MainMinerDead) < config.StarterMinerRespawnDelay {
			continue
		}
		if !m.userConnectedLocked(uid) {
			continue
		}
		miner := m.spawnUnitLocked(config.UnitMiner, p.Team, uid)
		miner.IsMainMiner = true
		p.MainMinerID = miner.ID
		p.MainMinerDead = time.Time{}
	}
}

func (m *Manager) userConnectedLocked(userID int64) bool {
	for _, c := range m.Conns.Snapshot() {
		if c.Identity.Authenticated && c.Identity.UserID == userID {
			return true
		}
	}
	return false
}

// checkGameOverLocked ends the match the instant a base reaches 0 hp,
// reporting whether the match just ended this tick so the caller can
// broadcast GAME_OVER after releasing the lock.
func (m *Manager) checkGameOverLocked(now time.Time) bool {
	if m.gameOver {
		m.maybeResetLocked(now)
		return false
	}
	for team, b := range m.bases {
		if b.HP <= 0 {
			m.gameOver = true
			m.winner = team.Opponent()
			m.gameOverAt = now
			return true
		}
	}
	return false
}

// maybeResetLocked performs the 10s-after-GAME_OVER full reset.
func (m *Manager) maybeResetLocked(now time.Time) {
	if now.Sub(m.gameOverAt) < config.GameOverResetDelay {
		return
	}

	m.started = false
	m.gameOver = false
	m.winner = ""
	m.gameStartAt = time.Time{}
	m.gameOverAt = time.Time{}
	m.units = make(map[string]*Unit)
	m.mines = make(map[string]*MineField)
	m.drops = make(map[string]*EnergyDrop)
	m.healFX = make(map[string]*Effect)
	m.bulletFX = make(map[string]*Effect)
	m.players = make(map[int64]*Player)
	m.logs = nil
	for _, b := range m.bases {
		b.HP = config.BaseHPMax
	}
}
