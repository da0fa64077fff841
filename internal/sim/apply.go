package sim

// #region imports
import (
	"github.com/kdellison/slotsim/internal/catalog"
)

// #endregion

// #region apply

// ApplyAction executes an ability's side effects: costs, grants, cooldown
// or charge consumption, effect applications/removals, stack-machine
// transition, history, and immediate score. Time is not advanced; the
// caller applies the slot duration via AdvanceTime.
//
// Illegal requests are no-ops returning false — they can arise from stale
// policy evaluation and must never corrupt the run.
func (s *State) ApplyAction(id catalog.AbilityID) bool {
	if !s.Available(id) {
		return false
	}
	spec := &s.Catalog.Abilities[id]

	// Immediate score reflects the multipliers active at use time, before
	// this action's own applications or removals land.
	s.Score += s.ScoreAction(id)

	for _, c := range spec.Costs {
		s.Resources[c.Resource] = clamp(s.Resources[c.Resource]-c.Amount, 0, s.Catalog.Resources[c.Resource].Cap)
	}
	for _, g := range spec.Grants {
		s.Resources[g.Resource] = clamp(s.Resources[g.Resource]+g.Amount, 0, s.Catalog.Resources[g.Resource].Cap)
	}

	if spec.Charges.Max > 0 {
		ch := &s.Charges[id]
		ch.Current--
		if ch.Recharge <= timeEps {
			ch.Recharge = spec.Charges.Recharge
		}
	} else if spec.Cooldown > 0 {
		s.Cooldowns[id] = spec.Cooldown
	}

	for _, app := range spec.Applies {
		s.applyEffect(app)
	}
	for _, rm := range spec.Removes {
		// Consumption, not expiry: no expire grants fire.
		inst := &s.Effects[rm]
		inst.Remaining = 0
		inst.Stacks = 0
		inst.TickIn = 0
		inst.ProcAccum = 0
	}

	if t := spec.Transition; t != nil {
		inst := &s.Effects[t.Effect]
		inst.Stacks += t.Advance
		if t.WrapAt > 0 && inst.Stacks >= t.WrapAt {
			inst.Stacks %= t.WrapAt
		}
		if max := s.Catalog.Effects[t.Effect].MaxStacks; max > 0 && inst.Stacks > max {
			inst.Stacks = max
		}
	}

	s.pushHistory(id)
	return true
}

// applyEffect sets or extends one effect instance.
func (s *State) applyEffect(app catalog.EffectApplication) {
	inst := &s.Effects[app.Effect]
	spec := &s.Catalog.Effects[app.Effect]

	if app.Duration > 0 {
		fresh := inst.Remaining <= timeEps
		if app.Extend && !fresh {
			inst.Remaining += app.Duration
		} else {
			inst.Remaining = app.Duration
		}
		if fresh && spec.TickPeriod > 0 {
			inst.TickIn = spec.TickPeriod
		}
	}
	s.grantStacks(app.Effect, app.Stacks)
}

// #endregion apply

// #region triggers

// TriggerEvaluator gates conditional off-slot triggers. Implemented by the
// condition package; kept as an interface here so sim stays a leaf.
type TriggerEvaluator interface {
	Bool(src string, st *State, vars map[string]float64) bool
}

// FireTrigger scans the catalog's trigger order and applies the first
// instant ability that is available and whose trigger condition holds.
// Returns the fired ability, or false when nothing fired.
func (s *State) FireTrigger(eval TriggerEvaluator) (catalog.AbilityID, bool) {
	for _, id := range s.Catalog.TriggerOrder {
		if !s.Available(id) {
			continue
		}
		if cond := s.Catalog.Abilities[id].TriggerCondition; cond != "" {
			if eval == nil || !eval.Bool(cond, s, nil) {
				continue
			}
		}
		if s.ApplyAction(id) {
			return id, true
		}
	}
	return catalog.NoAbility, false
}

// CheckTriggers runs the off-slot trigger pass for one decision point.
// Applying a trigger must change state so its condition clears; the repeat
// cap guards against lists that do not. Returns every ability fired, in
// order.
func (s *State) CheckTriggers(eval TriggerEvaluator, cap int) []catalog.AbilityID {
	if cap <= 0 {
		cap = DefaultTriggerCap
	}
	var fired []catalog.AbilityID
	for len(fired) < cap {
		id, ok := s.FireTrigger(eval)
		if !ok {
			break
		}
		fired = append(fired, id)
	}
	return fired
}

// #endregion triggers
