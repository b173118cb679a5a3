package livewar

import (
	"time"

	"github.com/roomforge/server/internal/config"
	"github.com/roomforge/server/internal/idgen"
)

// resolveCombatLocked applies one tick of attack resolution: every
// living unit whose cooldown has elapsed attacks its AI-selected target
// (a unit or, for heavy tanks with no unit target, the enemy base
// directly) if currently within range. The last-attack-time gate is this
// package's own idiom; unit hp/state tracking otherwise follows teacher
// player.go's mutex-guarded struct shape. Caller holds m.mu.
func (m *Manager) resolveCombatLocked(now time.Time) {
	for _, u := range m.units {
		if u.IsDead {
			continue
		}
		if now.Sub(u.LastAttackTime) < config.AttackCooldown {
			continue
		}

		if u.TargetID != "" {
			target, ok := m.units[u.TargetID]
			if ok && !target.IsDead && dist(u.X, u.Y, target.X, target.Y) <= u.AttackRange() {
				target.HP -= u.Attack()
				u.LastAttackTime = now
				m.emitBulletEffectLocked(u, target.X, target.Y)
				if target.HP <= 0 {
					m.killUnitLocked(target, now)
				}
			}
			continue
		}

		if u.TargetIsBase {
			base := m.bases[u.Team.Opponent()]
			if dist(u.X, u.Y, base.X, base.Y) <= u.AttackRange() {
				base.HP -= u.Attack()
				if base.HP < 0 {
					base.HP = 0
				}
				u.LastAttackTime = now
				m.emitBulletEffectLocked(u, base.X, base.Y)
			}
		}
	}
}

// emitBulletEffectLocked records a transient bullet FX for tanks only
// (spec.md §4.6: "emit a BulletEffect (tanks only)").
func (m *Manager) emitBulletEffectLocked(u *Unit, toX, toY float64) {
	if !isTankType(u.Type) {
		return
	}
	id := idgen.New()
	m.bulletFX[id] = &Effect{
		ID: id, Team: u.Team, FromX: u.X, FromY: u.Y, ToX: toX, ToY: toY,
		CreatedAt: time.Now(), Lifetime: 300 * time.Millisecond,
	}
}
