// Package livewar implements the LiveWar Game Manager: a per-room
// fixed-tick real-time-strategy simulation with resource economy, unit
// AI, pathfinding with obstacle avoidance, and combat (spec.md §4.6).
//
// The tick loop is grounded on the teacher's Room.gameLoop dual-ticker
// select pattern (internal/game/room.go), collapsed from the teacher's
// separate physics/broadcast cadences into the single 100ms
// simulate-then-broadcast cadence spec.md mandates. Per-entity state is
// grounded on the teacher's Player struct (mutex-guarded fields plus a
// GetState snapshot method), generalized from one fixed entity type to
// four unit types via the config.UnitSpawnCost table.
package livewar

import (
	"time"

	"github.com/roomforge/server/internal/config"
)

// Team is one of the two sides.
type Team string

const (
	TeamRed  Team = "red"
	TeamBlue Team = "blue"
)

func (t Team) Opponent() Team {
	if t == TeamRed {
		return TeamBlue
	}
	return TeamRed
}

// Base is one team's home structure; destruction ends the match.
type Base struct {
	Team Team
	X, Y float64
	HP   float64
}

// Unit is one living (or just-died) combat entity on the grid.
type Unit struct {
	ID      string
	Type    config.UnitType
	Team    Team
	OwnerID int64

	X, Y float64
	HP   float64

	CarryingEnergy float64

	TargetX, TargetY float64
	TargetID         string
	TargetIsBase     bool
	IsMining         bool

	LastAttackTime time.Time

	IsMainMiner bool
	IsDead      bool
}

func (u *Unit) stats() config.UnitStats { return config.UnitSpawnCost[u.Type] }

func (u *Unit) HPMax() float64        { return u.stats().HP }
func (u *Unit) Attack() float64       { return u.stats().Attack }
func (u *Unit) Speed() float64        { return u.stats().Speed }
func (u *Unit) AttackRange() float64  { return u.stats().AttackRange }

// MineField is a harvestable energy node.
type MineField struct {
	ID        string
	X, Y      float64
	Energy    float64
	CreatedAt time.Time
}

// EnergyDrop is a pickup left by a dying unit.
type EnergyDrop struct {
	ID        string
	X, Y      float64
	Energy    float64
	DroppedAt time.Time
}

// Effect is a transient client-facing visual (heal beam or bullet).
type Effect struct {
	ID                     string
	Team                   Team
	FromX, FromY, ToX, ToY float64
	CreatedAt              time.Time
	Lifetime               time.Duration
}

// Player is one connected user's team-scoped runtime state, distinct
// from any Unit they control.
type Player struct {
	UserID           int64
	Username         string
	Team             Team
	SelectedUnitType config.UnitType
	Energy           float64

	MainMinerID  string
	MainMinerDead time.Time // zero if alive or never assigned
}
