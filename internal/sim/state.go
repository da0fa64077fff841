// Package sim holds the deterministic state model: one mutable State advanced
// through time by AdvanceTime/ApplyAction pairs. All randomness is folded into
// expected-value accumulators, so identical action sequences from identical
// starting states produce bit-identical results.
package sim

// #region imports
import (
	"math"

	"github.com/kdellison/slotsim/internal/catalog"
)

// #endregion

// #region constants

const timeEps = 1e-9

// DefaultTriggerCap bounds how many off-slot triggers may fire at a single
// decision point before the trigger pass gives up for that point.
const DefaultTriggerCap = 4

// #endregion constants

// #region instances

// EffectInstance is the live state of one effect slot.
type EffectInstance struct {
	Remaining float64 // seconds left; 0 = no timed component active
	Stacks    int     // discrete counter, independent of duration
	ProcAccum float64 // expected-value proc accumulator, fires on crossing 1.0
	TickIn    float64 // seconds until the next periodic tick (dots)
}

// ChargeState tracks a multi-use ability: Current charges and the remaining
// recharge time of the charge currently refilling (0 when full).
type ChargeState struct {
	Current  int
	Recharge float64
}

// #endregion instances

// #region state

// State is the single mutable entity advanced through a run. Resources,
// effects, cooldowns, and charges are dense slices indexed by catalog IDs.
// Catalog and Config are shared read-only across clones.
type State struct {
	Time    float64
	Horizon float64 // 0 = unbounded
	Score   float64 // accumulated projected score (actions + periodic ticks)

	Resources []float64
	Effects   []EffectInstance
	Cooldowns []float64
	Charges   []ChargeState

	// History holds the most recent actions, newest first, bounded by the
	// run config's history depth.
	History []catalog.AbilityID

	Catalog *catalog.Catalog
	Config  *catalog.RunConfig
}

// NewState builds the starting state for a run. Resource levels come from
// the run config when overridden, else from the catalog, clamped to [0, cap].
// Charge-based abilities start full.
func NewState(cat *catalog.Catalog, cfg *catalog.RunConfig) *State {
	s := &State{
		Horizon:   cfg.Duration,
		Resources: make([]float64, len(cat.Resources)),
		Effects:   make([]EffectInstance, len(cat.Effects)),
		Cooldowns: make([]float64, len(cat.Abilities)),
		Charges:   make([]ChargeState, len(cat.Abilities)),
		Catalog:   cat,
		Config:    cfg,
	}
	for i := range cat.Resources {
		level := cat.Resources[i].Start
		if v, ok := cfg.StartResources[cat.Resources[i].Name]; ok {
			level = v
		}
		s.Resources[i] = clamp(level, 0, cat.Resources[i].Cap)
	}
	for i := range cat.Abilities {
		if max := cat.Abilities[i].Charges.Max; max > 0 {
			s.Charges[i] = ChargeState{Current: max}
		}
	}
	return s
}

// Clone returns a deep, independent copy. Catalog and Config stay shared
// by reference; they are read-only for the run's lifetime.
func (s *State) Clone() *State {
	c := *s
	c.Resources = append([]float64(nil), s.Resources...)
	c.Effects = append([]EffectInstance(nil), s.Effects...)
	c.Cooldowns = append([]float64(nil), s.Cooldowns...)
	c.Charges = append([]ChargeState(nil), s.Charges...)
	c.History = append([]catalog.AbilityID(nil), s.History...)
	return &c
}

// #endregion state

// #region effect-queries

// EffectActive reports whether an effect currently applies: a running timer
// or, for pure counters, any stacks.
func (s *State) EffectActive(id catalog.EffectID) bool {
	if id < 0 || int(id) >= len(s.Effects) {
		return false
	}
	inst := &s.Effects[id]
	return inst.Remaining > timeEps || inst.Stacks > 0
}

// EffectRemains returns the remaining duration of an effect (0 if inactive).
func (s *State) EffectRemains(id catalog.EffectID) float64 {
	if id < 0 || int(id) >= len(s.Effects) {
		return 0
	}
	return s.Effects[id].Remaining
}

// EffectStacks returns the stack count of an effect. An active unstacked
// effect counts as one stack.
func (s *State) EffectStacks(id catalog.EffectID) int {
	if id < 0 || int(id) >= len(s.Effects) {
		return 0
	}
	inst := &s.Effects[id]
	if inst.Stacks > 0 {
		return inst.Stacks
	}
	if inst.Remaining > timeEps {
		return 1
	}
	return 0
}

// #endregion effect-queries

// #region charge-queries

// ChargesLeft returns the whole charges currently held for an ability
// (0 for abilities without charges).
func (s *State) ChargesLeft(id catalog.AbilityID) int {
	return s.Charges[id].Current
}

// ChargesFractional returns charges including recharge progress on the
// charge currently refilling.
func (s *State) ChargesFractional(id catalog.AbilityID) float64 {
	spec := &s.Catalog.Abilities[id]
	ch := s.Charges[id]
	if spec.Charges.Max == 0 {
		return 0
	}
	frac := float64(ch.Current)
	if ch.Current < spec.Charges.Max && ch.Recharge > 0 {
		frac += 1 - ch.Recharge/spec.Charges.Recharge
	}
	return frac
}

// FullRechargeTime returns the seconds until an ability is back at max
// charges (0 when already full).
func (s *State) FullRechargeTime(id catalog.AbilityID) float64 {
	spec := &s.Catalog.Abilities[id]
	ch := s.Charges[id]
	if spec.Charges.Max == 0 || ch.Current >= spec.Charges.Max {
		return 0
	}
	missing := spec.Charges.Max - ch.Current
	return ch.Recharge + float64(missing-1)*spec.Charges.Recharge
}

// #endregion charge-queries

// #region history

// PrevAction returns the n-th most recent action (n=0 is the last one).
// Returns NoAbility past the recorded history.
func (s *State) PrevAction(n int) catalog.AbilityID {
	if n < 0 || n >= len(s.History) {
		return catalog.NoAbility
	}
	return s.History[n]
}

func (s *State) historyDepth() int {
	if s.Config.HistoryDepth > 0 {
		return s.Config.HistoryDepth
	}
	return 8
}

func (s *State) pushHistory(id catalog.AbilityID) {
	depth := s.historyDepth()
	s.History = append(s.History, 0)
	copy(s.History[1:], s.History)
	s.History[0] = id
	if len(s.History) > depth {
		s.History = s.History[:depth]
	}
}

// #endregion history

// #region availability

// Available reports whether a single ability's preconditions hold:
// enabled, off cooldown or holding a charge, affordable, and any required
// effect/stack gate satisfied.
func (s *State) Available(id catalog.AbilityID) bool {
	if id < 0 || int(id) >= len(s.Catalog.Abilities) {
		return false
	}
	spec := &s.Catalog.Abilities[id]
	if spec.Optional && !s.Config.Enabled(spec.Name) {
		return false
	}
	if spec.Charges.Max > 0 {
		if s.Charges[id].Current <= 0 {
			return false
		}
	} else if s.Cooldowns[id] > timeEps {
		return false
	}
	for _, c := range spec.Costs {
		if s.Resources[c.Resource]+timeEps < c.Amount {
			return false
		}
	}
	if spec.RequireEffect != catalog.NoEffect && s.EffectStacks(spec.RequireEffect) < spec.RequireStacks {
		return false
	}
	if t := spec.Transition; t != nil && t.Require > 0 && s.EffectStacks(t.Effect) < t.Require {
		return false
	}
	return true
}

// AvailableActions lists the slot-filling abilities whose preconditions
// hold, in catalog order. The filler ability is always present, so a policy
// never stalls. Instant abilities are excluded; they fire through the
// off-slot trigger pass instead.
func (s *State) AvailableActions() []catalog.AbilityID {
	out := make([]catalog.AbilityID, 0, len(s.Catalog.Abilities))
	for i := range s.Catalog.Abilities {
		id := catalog.AbilityID(i)
		if s.Catalog.Abilities[i].Instant {
			continue
		}
		if s.Available(id) {
			out = append(out, id)
		}
	}
	return out
}

// #endregion availability

// #region duration

// ActionDuration returns the slot time an ability consumes under the
// current configuration. Instant abilities consume none.
func (s *State) ActionDuration(id catalog.AbilityID) float64 {
	spec := &s.Catalog.Abilities[id]
	if spec.Instant {
		return 0
	}
	d := spec.BaseDuration
	if !spec.FixedDuration {
		d /= s.Config.Speed()
	}
	return d
}

// #endregion duration

// #region scoring

// ScoreAction returns the immediate score an ability would accrue right
// now: base payoff scaled per target and by every active score multiplier.
// Read-only; never mutates state.
func (s *State) ScoreAction(id catalog.AbilityID) float64 {
	spec := &s.Catalog.Abilities[id]
	base := spec.BaseScore + spec.PerTargetScore*float64(s.Config.Targets()-1)
	if base == 0 {
		return 0
	}
	mult := 1.0
	for i := range s.Catalog.Effects {
		e := &s.Catalog.Effects[i]
		if e.ScoreMult != 1 && s.EffectActive(e.ID) {
			mult *= e.ScoreMult
		}
	}
	return base * mult
}

// #endregion scoring

// #region helpers

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// #endregion helpers
