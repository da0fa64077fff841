// Package condition evaluates the small boolean/arithmetic query language
// priority rules are written in. Sources compile once to expr bytecode and
// run against an Env that exposes read-only state lookups; a rule whose
// condition cannot be compiled or evaluated simply never fires.
package condition

// #region imports
import (
	"math"

	"github.com/kdellison/slotsim/internal/catalog"
	"github.com/kdellison/slotsim/internal/sim"
)

// #endregion

// #region env

// Env wraps a state snapshot and exposes the property lookups callable from
// condition expressions. All methods are side-effect-free; unknown names
// resolve to zero values rather than errors so a bad reference degrades to
// "condition is false".
type Env struct {
	state *sim.State

	// Vars holds the declarative variables computed earlier in the same
	// decision pass, also reachable via Var("name").
	Vars map[string]float64
}

// NewEnv builds an evaluation env for one decision point.
func NewEnv(st *sim.State, vars map[string]float64) Env {
	return Env{state: st, Vars: vars}
}

// #endregion env

// #region resources

// Resource returns the current level of a resource pool.
func (e Env) Resource(name string) float64 {
	id, ok := e.state.Catalog.ResourceID(name)
	if !ok {
		return 0
	}
	return e.state.Resources[id]
}

// ResourceCap returns a resource's configured cap.
func (e Env) ResourceCap(name string) float64 {
	id, ok := e.state.Catalog.ResourceID(name)
	if !ok {
		return 0
	}
	return e.state.Catalog.Resources[id].Cap
}

// ResourceDeficit returns cap minus current level.
func (e Env) ResourceDeficit(name string) float64 {
	return e.ResourceCap(name) - e.Resource(name)
}

// TimeToCap returns the seconds of passive regeneration until a resource
// caps. Returns +Inf when the resource does not regenerate.
func (e Env) TimeToCap(name string) float64 {
	id, ok := e.state.Catalog.ResourceID(name)
	if !ok {
		return math.Inf(1)
	}
	spec := e.state.Catalog.Resources[id]
	if spec.RegenPerSec <= 0 {
		return math.Inf(1)
	}
	return (spec.Cap - e.state.Resources[id]) / spec.RegenPerSec
}

// #endregion resources

// #region effects

func (e Env) effectID(name string) (catalog.EffectID, bool) {
	return e.state.Catalog.EffectID(name)
}

// BuffActive reports whether a named effect is currently active.
func (e Env) BuffActive(name string) bool {
	id, ok := e.effectID(name)
	return ok && e.state.EffectActive(id)
}

// BuffRemains returns an effect's remaining duration (0 if inactive).
func (e Env) BuffRemains(name string) float64 {
	id, ok := e.effectID(name)
	if !ok {
		return 0
	}
	return e.state.EffectRemains(id)
}

// DebuffActive is an alias of BuffActive for rule readability.
func (e Env) DebuffActive(name string) bool { return e.BuffActive(name) }

// DebuffRemains is an alias of BuffRemains for rule readability.
func (e Env) DebuffRemains(name string) float64 { return e.BuffRemains(name) }

// DotActive is an alias of BuffActive for rule readability.
func (e Env) DotActive(name string) bool { return e.BuffActive(name) }

// DotRemains is an alias of BuffRemains for rule readability.
func (e Env) DotRemains(name string) float64 { return e.BuffRemains(name) }

// Stacks returns an effect's stack count (an active unstacked effect is 1).
func (e Env) Stacks(name string) int {
	id, ok := e.effectID(name)
	if !ok {
		return 0
	}
	return e.state.EffectStacks(id)
}

// #endregion effects

// #region abilities

func (e Env) abilityID(name string) (catalog.AbilityID, bool) {
	return e.state.Catalog.AbilityID(name)
}

// Ready reports whether an ability is off cooldown / holds a charge and
// all its other preconditions hold.
func (e Env) Ready(name string) bool {
	id, ok := e.abilityID(name)
	return ok && e.state.Available(id)
}

// CooldownRemains returns the remaining cooldown of an ability.
func (e Env) CooldownRemains(name string) float64 {
	id, ok := e.abilityID(name)
	if !ok {
		return 0
	}
	return e.state.Cooldowns[id]
}

// Charges returns the whole charges currently held.
func (e Env) Charges(name string) int {
	id, ok := e.abilityID(name)
	if !ok {
		return 0
	}
	return e.state.ChargesLeft(id)
}

// ChargesFractional returns charges including recharge progress.
func (e Env) ChargesFractional(name string) float64 {
	id, ok := e.abilityID(name)
	if !ok {
		return 0
	}
	return e.state.ChargesFractional(id)
}

// FullRechargeTime returns the seconds until all charges are back.
func (e Env) FullRechargeTime(name string) float64 {
	id, ok := e.abilityID(name)
	if !ok {
		return 0
	}
	return e.state.FullRechargeTime(id)
}

// #endregion abilities

// #region history

// PrevAction returns the name of the n-th most recent action (n=0 is the
// last one), or "" past the recorded history.
func (e Env) PrevAction(n int) string {
	return e.state.Catalog.AbilityName(e.state.PrevAction(n))
}

// PrevWas reports whether the last action was the named ability.
func (e Env) PrevWas(name string) bool {
	return e.PrevAction(0) == name
}

// #endregion history

// #region run

// TimeElapsed returns seconds since the run started.
func (e Env) TimeElapsed() float64 { return e.state.Time }

// TimeRemains returns seconds until the horizon, or +Inf when unbounded.
func (e Env) TimeRemains() float64 {
	if e.state.Horizon <= 0 {
		return math.Inf(1)
	}
	return math.Max(0, e.state.Horizon-e.state.Time)
}

// TargetCount returns the configured target count.
func (e Env) TargetCount() int { return e.state.Config.Targets() }

// Option reports whether an optional modifier is enabled for the run.
func (e Env) Option(name string) bool { return e.state.Config.Enabled(name) }

// Var returns a declarative variable computed earlier in this pass (0 when
// undefined, keeping malformed references non-fatal).
func (e Env) Var(name string) float64 { return e.Vars[name] }

// #endregion run
