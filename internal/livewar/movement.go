package livewar

import (
	"math"
	"sort"

	"github.com/roomforge/server/internal/config"
)

// dirOption is one candidate heading considered by fallbackSweepLocked.
type dirOption struct {
	heading float64
	delta   float64
}

func dist(x1, y1, x2, y2 float64) float64 { return math.Hypot(x2-x1, y2-y1) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func cos(a float64) float64 { return math.Cos(a) }
func sin(a float64) float64 { return math.Sin(a) }

const mapBoundsMargin = 2

// isBlockedLocked reports whether a unit of the given kind can occupy
// (x,y)'s integer cell: blocked by a base, or by the 2-per-cell density
// limit (engineers track a separate, independent count and may cohabit
// freely with non-engineers). There is no standalone wall entity in this
// simulation's data model, so walls never contribute to blocking.
// Caller holds m.mu.
func (m *Manager) isBlockedLocked(x, y float64, isEngineer bool, selfID string) bool {
	cx, cy := math.Floor(x), math.Floor(y)
	for _, b := range m.bases {
		if math.Floor(b.X) == cx && math.Floor(b.Y) == cy {
			return true
		}
	}

	engineers, others := 0, 0
	for _, u := range m.units {
		if u.IsDead || u.ID == selfID {
			continue
		}
		if math.Floor(u.X) != cx || math.Floor(u.Y) != cy {
			continue
		}
		if u.Type == config.UnitEngineer {
			engineers++
		} else {
			others++
		}
	}
	if isEngineer {
		return engineers >= 2
	}
	return others >= 2
}

// moveTowardLocked is the general movement primitive (spec.md §4.6): it
// sets facing, computes a per-tick step, and routes around obstacles via
// lookahead, angular detour sampling, an 8/24-direction fallback sweep,
// and a final radial fallback, before clamping to map bounds. Grounded
// on the teacher's collision.go SpatialGrid blocked-cell check,
// generalized from "push on overlap" to "avoid and route around".
func (m *Manager) moveTowardLocked(u *Unit, tx, ty float64, isEngineer bool) {
	u.TargetX, u.TargetY = tx, ty

	dx, dy := tx-u.X, ty-u.Y
	d := math.Hypot(dx, dy)
	if d < 1e-6 {
		return
	}
	heading := math.Atan2(dy, dx)

	step := u.Speed() * config.TickInterval.Seconds()
	if u.IsMining {
		step *= 0.8
	}

	maxAngle := 45.0
	directionCount := 8
	if isEngineer {
		maxAngle = 60.0
		directionCount = 24
	}

	if m.lookaheadClearLocked(u, heading, step, isEngineer) {
		m.applyStepLocked(u, heading, step, isEngineer)
		return
	}

	if m.detourLocked(u, heading, step, maxAngle, isEngineer, tx, ty) {
		return
	}

	if m.fallbackSweepLocked(u, heading, step, directionCount, isEngineer) {
		return
	}

	m.radialFallbackLocked(u, heading, step, isEngineer, tx, ty)
}

// lookaheadClearLocked probes 3 steps ahead along heading.
func (m *Manager) lookaheadClearLocked(u *Unit, heading, step float64, isEngineer bool) bool {
	for i := 1; i <= 3; i++ {
		px := u.X + cos(heading)*step*float64(i)
		py := u.Y + sin(heading)*step*float64(i)
		if m.isBlockedLocked(px, py, isEngineer, u.ID) {
			return false
		}
	}
	return true
}

func (m *Manager) applyStepLocked(u *Unit, heading, step float64, isEngineer bool) {
	nx := u.X + cos(heading)*step
	ny := u.Y + sin(heading)*step
	u.X = clamp(nx, mapBoundsMargin, float64(m.mapWidth)-3)
	u.Y = clamp(ny, mapBoundsMargin, float64(m.mapHeight)-3)
}

// detourLocked samples candidate headings at 15-degree steps within
// ±maxAngle of the main heading, tries step multipliers 1.0/0.8/0.6,
// requires 2-step forward clearance, and picks the lowest-scoring
// candidate (distance-to-target + angle-offset penalty).
func (m *Manager) detourLocked(u *Unit, heading, step, maxAngle float64, isEngineer bool, tx, ty float64) bool {
	type candidate struct {
		heading float64
		mult    float64
		score   float64
	}
	var best *candidate

	for offsetDeg := -maxAngle; offsetDeg <= maxAngle; offsetDeg += 15 {
		h := heading + offsetDeg*math.Pi/180
		for _, mult := range []float64{1.0, 0.8, 0.6} {
			s := step * mult
			if !m.aheadClearLocked(u, h, s, 2, isEngineer) {
				continue
			}
			nx := u.X + cos(h)*s
			ny := u.Y + sin(h)*s
			score := dist(nx, ny, tx, ty) + math.Abs(offsetDeg)*0.1
			if best == nil || score < best.score {
				best = &candidate{heading: h, mult: mult, score: score}
			}
		}
	}

	if best == nil {
		return false
	}
	m.applyStepLocked(u, best.heading, step*best.mult, isEngineer)
	return true
}

func (m *Manager) aheadClearLocked(u *Unit, heading, step float64, steps int, isEngineer bool) bool {
	for i := 1; i <= steps; i++ {
		px := u.X + cos(heading)*step*float64(i)
		py := u.Y + sin(heading)*step*float64(i)
		if m.isBlockedLocked(px, py, isEngineer, u.ID) {
			return false
		}
	}
	return true
}

// fallbackSweepLocked tries the primary directions (8, or 24 for
// engineers) ordered by angular similarity to the target heading, with
// shrinking step multipliers.
func (m *Manager) fallbackSweepLocked(u *Unit, heading, step float64, directionCount int, isEngineer bool) bool {
	options := make([]dirOption, 0, directionCount)
	for i := 0; i < directionCount; i++ {
		h := 2 * math.Pi * float64(i) / float64(directionCount)
		delta := math.Abs(angleDiff(h, heading))
		options = append(options, dirOption{heading: h, delta: delta})
	}
	sort.Slice(options, func(i, j int) bool { return options[i].delta < options[j].delta })

	for _, opt := range options {
		for mult := 1.0; mult >= 0.2; mult -= 0.2 {
			s := step * mult
			px := u.X + cos(opt.heading)*s
			py := u.Y + sin(opt.heading)*s
			if !m.isBlockedLocked(px, py, isEngineer, u.ID) {
				u.X = clamp(px, mapBoundsMargin, float64(m.mapWidth)-3)
				u.Y = clamp(py, mapBoundsMargin, float64(m.mapHeight)-3)
				return true
			}
		}
	}
	return false
}

// radialFallbackLocked probes increasing radii at 30-45 degree
// increments and accepts the first cell that doesn't worsen the
// distance to the target by more than speed*1.0.
func (m *Manager) radialFallbackLocked(u *Unit, heading, step float64, isEngineer bool, tx, ty float64) {
	currentDist := dist(u.X, u.Y, tx, ty)
	limit := u.Speed() * 1.0

	for _, radius := range []float64{1.0, 1.5, 2.0, 2.5} {
		for deg := 0.0; deg < 360; deg += 36 {
			h := heading + deg*math.Pi/180
			px := u.X + cos(h)*step*radius
			py := u.Y + sin(h)*step*radius
			if m.isBlockedLocked(px, py, isEngineer, u.ID) {
				continue
			}
			if dist(px, py, tx, ty) <= currentDist+limit {
				u.X = clamp(px, mapBoundsMargin, float64(m.mapWidth)-3)
				u.Y = clamp(py, mapBoundsMargin, float64(m.mapHeight)-3)
				return
			}
		}
	}
	// Nowhere to go this tick; hold position.
}

func angleDiff(a, b float64) float64 {
	d := math.Mod(a-b+math.Pi, 2*math.Pi) - math.Pi
	if d < -math.Pi {
		d += 2 * math.Pi
	}
	return d
}

// moveToAttackRangeLocked is the attack-range-aware movement primitive:
// it computes a flanking parking position offset from the target by
// range*0.9 along a flank angle derived from how many allies already
// converge on the same target, then routes there via the general
// primitive, accepting any intermediate cell already within range.
func (m *Manager) moveToAttackRangeLocked(u *Unit, target *Unit, attackRange float64) {
	converging := m.convergingAlliesLocked(u, target)
	flankAngle := float64(converging%4) * (math.Pi / 2)

	parkX := target.X - math.Cos(flankAngle)*attackRange*0.9
	parkY := target.Y - math.Sin(flankAngle)*attackRange*0.9

	if dist(u.X, u.Y, target.X, target.Y) <= attackRange {
		u.TargetX, u.TargetY = parkX, parkY
		return
	}
	m.moveTowardLocked(u, parkX, parkY, false)
}

// moveToPointAttackRangeLocked is moveToAttackRangeLocked for a fixed
// point target (used by heavy tanks attacking the enemy base directly,
// which has no unit id to converge on).
func (m *Manager) moveToPointAttackRangeLocked(u *Unit, tx, ty, attackRange float64) {
	if dist(u.X, u.Y, tx, ty) <= attackRange {
		u.TargetX, u.TargetY = tx, ty
		return
	}
	heading := math.Atan2(ty-u.Y, tx-u.X)
	parkX := tx - math.Cos(heading)*attackRange*0.9
	parkY := ty - math.Sin(heading)*attackRange*0.9
	m.moveTowardLocked(u, parkX, parkY, false)
}

// convergingAlliesLocked counts allied units (other than u) whose
// current target is also target, recomputed fresh every tick per
// spec.md §9 ("must be recomputed each tick — do not cache").
func (m *Manager) convergingAlliesLocked(u *Unit, target *Unit) int {
	count := 0
	for _, other := range m.units {
		if other.ID == u.ID || other.IsDead || other.Team != u.Team {
			continue
		}
		if other.TargetID == target.ID {
			count++
		}
	}
	return count
}
