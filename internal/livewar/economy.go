package livewar

import (
	"math/rand"
	"time"

	"github.com/roomforge/server/internal/config"
	"github.com/roomforge/server/internal/idgen"
)

// regenMinesLocked applies per-tick regeneration and removes mines past
// their lifetime. Grounded on the teacher's SpatialGrid
// expiry-by-timestamp idiom (internal/game/collision.go), repurposed
// from entity culling to resource regen/expiry. Caller holds m.mu.
func (m *Manager) regenMinesLocked(now time.Time) {
	dt := config.TickInterval.Seconds()
	for id, mine := range m.mines {
		if now.Sub(mine.CreatedAt) >= config.MineLifetime {
			delete(m.mines, id)
			continue
		}
		mine.Energy += config.MineRegenPerSec * dt
		if mine.Energy > config.MineEnergyMax {
			mine.Energy = config.MineEnergyMax
		}
	}
}

// maybeSpawnMineLocked spawns one new mine every 60s once the game has
// started, in one of three zones (red territory, blue territory, or the
// map centre), respecting minimum spacing from bases and other mines.
func (m *Manager) maybeSpawnMineLocked(now time.Time) {
	if now.Sub(m.lastMineSpawn) < config.MineSpawnInterval {
		return
	}
	m.lastMineSpawn = now

	pos, ok := m.pickMineSpawnPointLocked()
	if !ok {
		return
	}
	id := idgen.New()
	m.mines[id] = &MineField{ID: id, X: pos[0], Y: pos[1], Energy: config.MineEnergyMax / 2, CreatedAt: now}
}

// pickMineSpawnPointLocked samples candidate points in a randomly chosen
// zone until one clears both the min-base-distance and min-mine-spacing
// constraints, or gives up after a bounded number of attempts.
func (m *Manager) pickMineSpawnPointLocked() ([2]float64, bool) {
	zones := [][2][2]float64{
		{{2, float64(m.mapWidth) / 2}, {float64(m.mapHeight) / 2, float64(m.mapHeight) - 3}}, // red-ish
		{{float64(m.mapWidth) / 2, float64(m.mapWidth) - 3}, {2, float64(m.mapHeight) / 2}},   // blue-ish
		{{float64(m.mapWidth)/2 - 8, float64(m.mapWidth)/2 + 8}, {float64(m.mapHeight)/2 - 8, float64(m.mapHeight)/2 + 8}}, // centre
	}
	zone := zones[rand.Intn(len(zones))]

	for attempt := 0; attempt < 20; attempt++ {
		x := randFloat(zone[0][0], zone[0][1])
		y := randFloat(zone[1][0], zone[1][1])
		if m.clearOfBasesLocked(x, y, config.MineMinBaseDist) && m.clearOfMinesLocked(x, y, config.MineMinSpacing) {
			return [2]float64{x, y}, true
		}
	}
	return [2]float64{}, false
}

func (m *Manager) clearOfBasesLocked(x, y, minDist float64) bool {
	for _, b := range m.bases {
		if dist(x, y, b.X, b.Y) < minDist {
			return false
		}
	}
	return true
}

func (m *Manager) clearOfMinesLocked(x, y, minDist float64) bool {
	for _, mine := range m.mines {
		if dist(x, y, mine.X, mine.Y) < minDist {
			return false
		}
	}
	return true
}

// seedInitialMinesLocked places the four game-start mines 8-12 distance
// from each respective base with minimum 3 mutual spacing (spec.md §3).
func (m *Manager) seedInitialMinesLocked() {
	for _, team := range []Team{TeamRed, TeamBlue} {
		base := m.bases[team]
		placed := 0
		for attempt := 0; attempt < 200 && placed < config.InitialMineCount/2; attempt++ {
			angle := randFloat(0, 2*3.14159265)
			d := randFloat(config.InitialMineMinDist, config.InitialMineMaxDist)
			x := base.X + d*cos(angle)
			y := base.Y + d*sin(angle)
			if x < 2 || x > float64(m.mapWidth)-3 || y < 2 || y > float64(m.mapHeight)-3 {
				continue
			}
			if !m.clearOfMinesLocked(x, y, config.InitialMineMinSpace) {
				continue
			}
			id := idgen.New()
			m.mines[id] = &MineField{ID: id, X: x, Y: y, Energy: config.MineEnergyMax, CreatedAt: time.Now()}
			placed++
		}
	}
}

func (m *Manager) expireEnergyDropsLocked(now time.Time) {
	for id, d := range m.drops {
		if now.Sub(d.DroppedAt) >= config.EnergyDropLifetime {
			delete(m.drops, id)
		}
	}
}

func (m *Manager) expireEffectsLocked(now time.Time) {
	for id, e := range m.healFX {
		if now.Sub(e.CreatedAt) >= e.Lifetime {
			delete(m.healFX, id)
		}
	}
	for id, e := range m.bulletFX {
		if now.Sub(e.CreatedAt) >= e.Lifetime {
			delete(m.bulletFX, id)
		}
	}
}

func (m *Manager) dropEnergyLocked(x, y, amount float64) {
	if amount <= 0 {
		return
	}
	id := idgen.New()
	m.drops[id] = &EnergyDrop{ID: id, X: x, Y: y, Energy: amount, DroppedAt: time.Now()}
}
