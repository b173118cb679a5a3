package livewar

import (
	"math"
	"time"

	"github.com/roomforge/server/internal/config"
	"github.com/roomforge/server/internal/idgen"
)

// stepUnitAILocked dispatches one AI step by unit type. All four types
// consult the shared movement primitives in movement.go; only the
// target-selection and task logic differ per type (spec.md §4.6).
// Grounded on the teacher's input-driven Physics.UpdatePlayer, replaced
// here with autonomous target-seeking since LiveWar units take no human
// input. Caller holds m.mu.
func (m *Manager) stepUnitAILocked(u *Unit, now time.Time) {
	u.TargetID = ""
	u.TargetIsBase = false

	switch u.Type {
	case config.UnitMiner:
		m.minerAILocked(u)
	case config.UnitEngineer:
		m.engineerAILocked(u)
	case config.UnitHeavyTank:
		m.tankAILocked(u, false)
	case config.UnitAssaultTank:
		m.tankAILocked(u, true)
	}
}

func (m *Manager) minerAILocked(u *Unit) {
	const depositDist = 4.0
	const pickupDist = 1.5
	const extractDist = 2.0
	const extractPerTick = 10.0
	const depositThreshold = 30.0

	if u.CarryingEnergy >= depositThreshold {
		base := m.bases[u.Team]
		if dist(u.X, u.Y, base.X, base.Y) <= depositDist {
			if p, ok := m.players[u.OwnerID]; ok {
				p.Energy += u.CarryingEnergy
			}
			u.CarryingEnergy = 0
			u.IsMining = false
		} else {
			m.moveTowardLocked(u, base.X, base.Y, false)
		}
		return
	}

	drop, dropDist := m.nearestEnergyDropLocked(u)
	mine, mineDist := m.nearestMineLocked(u)

	if drop != nil && (mine == nil || dropDist < mineDist) {
		u.IsMining = false
		if dropDist <= pickupDist {
			u.CarryingEnergy += drop.Energy
			u.HP = math.Min(u.HPMax(), u.HP+u.HPMax()*0.5)
			delete(m.drops, drop.ID)
		} else {
			m.moveTowardLocked(u, drop.X, drop.Y, false)
		}
		return
	}

	if mine != nil {
		if mineDist <= extractDist {
			extract := math.Min(extractPerTick, mine.Energy)
			mine.Energy -= extract
			u.CarryingEnergy += extract
			u.IsMining = true
		} else {
			u.IsMining = false
			m.moveTowardLocked(u, mine.X, mine.Y, false)
		}
		return
	}

	u.IsMining = false
	if target := m.nearestEnemyUnitLocked(u); target != nil {
		u.TargetID = target.ID
		m.moveToAttackRangeLocked(u, target, u.AttackRange())
		return
	}
	base := m.bases[u.Team]
	m.moveTowardLocked(u, base.X, base.Y, false)
}

const engineerHealRadius = 3.0
const engineerHealPerSec = 10.0

func (m *Manager) engineerAILocked(u *Unit) {
	dt := config.TickInterval.Seconds()
	healedAny := false

	for _, other := range m.units {
		if other.ID == u.ID || other.IsDead || other.Team != u.Team {
			continue
		}
		if other.HP >= other.HPMax() {
			continue
		}
		if dist(u.X, u.Y, other.X, other.Y) > engineerHealRadius {
			continue
		}
		other.HP = math.Min(other.HPMax(), other.HP+engineerHealPerSec*dt)
		m.emitHealEffectLocked(u, other.X, other.Y)
		healedAny = true
	}

	base := m.bases[u.Team]
	if base.HP < config.BaseHPMax && dist(u.X, u.Y, base.X, base.Y) <= engineerHealRadius {
		base.HP = math.Min(config.BaseHPMax, base.HP+engineerHealPerSec*dt)
		m.emitHealEffectLocked(u, base.X, base.Y)
		healedAny = true
	}

	if healedAny {
		m.emitHealEffectLocked(u, u.X, u.Y)
		return
	}

	if target := m.lowestHPFractionFriendlyLocked(u); target != nil {
		angle := math.Atan2(u.Y-target.Y, u.X-target.X)
		parkX := target.X + 2*math.Cos(angle)
		parkY := target.Y + 2*math.Sin(angle)
		m.moveTowardLocked(u, parkX, parkY, true)
		return
	}
	m.moveTowardLocked(u, base.X, base.Y, true)
}

// tankAILocked covers both heavy and assault tanks: identical movement,
// differing only in target priority (spec.md §4.6).
func (m *Manager) tankAILocked(u *Unit, isAssault bool) {
	var target *Unit
	if isAssault {
		target = m.nearestEnemyMatchingLocked(u, isTankType)
		if target == nil {
			target = m.nearestEnemyMatchingLocked(u, isEngineerType)
		}
		if target == nil {
			target = m.nearestEnemyMatchingLocked(u, isMinerType)
		}
	} else {
		target = m.nearestEnemyMatchingLocked(u, isTankType)
	}

	if target != nil {
		u.TargetID = target.ID
		m.moveToAttackRangeLocked(u, target, u.AttackRange())
		return
	}

	if !isAssault {
		enemyBase := m.bases[u.Team.Opponent()]
		u.TargetIsBase = true
		m.moveToPointAttackRangeLocked(u, enemyBase.X, enemyBase.Y, u.AttackRange())
		return
	}

	base := m.bases[u.Team]
	forwardX := base.X + forwardSign(u.Team)*15
	m.moveTowardLocked(u, forwardX, base.Y, false)
}

func forwardSign(team Team) float64 {
	if team == TeamRed {
		return 1
	}
	return -1
}

func isTankType(t config.UnitType) bool {
	return t == config.UnitHeavyTank || t == config.UnitAssaultTank
}
func isEngineerType(t config.UnitType) bool { return t == config.UnitEngineer }
func isMinerType(t config.UnitType) bool    { return t == config.UnitMiner }

func (m *Manager) nearestEnemyUnitLocked(u *Unit) *Unit {
	return m.nearestEnemyMatchingLocked(u, func(config.UnitType) bool { return true })
}

func (m *Manager) nearestEnemyMatchingLocked(u *Unit, match func(config.UnitType) bool) *Unit {
	var best *Unit
	bestDist := math.MaxFloat64
	for _, other := range m.units {
		if other.IsDead || other.Team == u.Team || !match(other.Type) {
			continue
		}
		d := dist(u.X, u.Y, other.X, other.Y)
		if d < bestDist {
			bestDist = d
			best = other
		}
	}
	return best
}

func (m *Manager) nearestMineLocked(u *Unit) (*MineField, float64) {
	var best *MineField
	bestDist := math.MaxFloat64
	for _, mn := range m.mines {
		if mn.Energy <= 0 {
			continue
		}
		d := dist(u.X, u.Y, mn.X, mn.Y)
		if d < bestDist {
			bestDist = d
			best = mn
		}
	}
	return best, bestDist
}

func (m *Manager) nearestEnergyDropLocked(u *Unit) (*EnergyDrop, float64) {
	var best *EnergyDrop
	bestDist := math.MaxFloat64
	for _, d := range m.drops {
		dd := dist(u.X, u.Y, d.X, d.Y)
		if dd < bestDist {
			bestDist = dd
			best = d
		}
	}
	return best, bestDist
}

// lowestHPFractionFriendlyLocked finds the friendly unit (other than u)
// with the lowest hp/hp_max across the whole map.
func (m *Manager) lowestHPFractionFriendlyLocked(u *Unit) *Unit {
	var worst *Unit
	worstFrac := math.MaxFloat64
	for _, other := range m.units {
		if other.ID == u.ID || other.IsDead || other.Team != u.Team {
			continue
		}
		frac := other.HP / other.HPMax()
		if frac < worstFrac {
			worstFrac = frac
			worst = other
		}
	}
	return worst
}

func (m *Manager) emitHealEffectLocked(u *Unit, toX, toY float64) {
	id := idgen.New()
	m.healFX[id] = &Effect{
		ID: id, Team: u.Team, FromX: u.X, FromY: u.Y, ToX: toX, ToY: toY,
		CreatedAt: time.Now(), Lifetime: 500 * time.Millisecond,
	}
}
