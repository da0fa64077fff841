package sim

// #region imports
import (
	"math"

	"github.com/kdellison/slotsim/internal/catalog"
)

// #endregion

// #region advance

// AdvanceTime moves the state forward by dt seconds. The interval is walked
// in sub-steps bounded by the nearest timer boundary (effect expiry, dot
// tick, charge refill, proc accumulator crossing), so every side effect
// fires exactly once at its exact time and the result is deterministic for
// any dt partitioning.
func (s *State) AdvanceTime(dt float64) {
	for dt > timeEps {
		step := math.Min(dt, s.nextBoundary())
		s.tick(step)
		dt -= step
	}
}

// nextBoundary returns the time until the nearest event with a side effect.
// Returns +Inf when nothing is pending; cooldown and resource ticking are
// linear and need no boundaries.
func (s *State) nextBoundary() float64 {
	next := math.Inf(1)
	for i := range s.Effects {
		inst := &s.Effects[i]
		spec := &s.Catalog.Effects[i]
		if inst.Remaining > timeEps {
			next = math.Min(next, inst.Remaining)
			if spec.TickPeriod > 0 && inst.TickIn > timeEps {
				next = math.Min(next, inst.TickIn)
			}
		}
		if spec.ProcRate > 0 && s.EffectActive(spec.ID) {
			next = math.Min(next, (1-inst.ProcAccum)/spec.ProcRate)
		}
	}
	for i := range s.Charges {
		if s.Catalog.Abilities[i].Charges.Max > 0 &&
			s.Charges[i].Current < s.Catalog.Abilities[i].Charges.Max {
			next = math.Min(next, s.Charges[i].Recharge)
		}
	}
	return next
}

// #endregion advance

// #region tick

// tick advances all timed fields by one sub-step. The step never spans a
// timer boundary, so each timer crosses zero at most once per call.
func (s *State) tick(step float64) {
	s.Time += step

	// Resource regeneration, clamped to cap.
	for i := range s.Resources {
		spec := &s.Catalog.Resources[i]
		if spec.RegenPerSec != 0 {
			s.Resources[i] = clamp(s.Resources[i]+spec.RegenPerSec*step, 0, spec.Cap)
		}
	}

	// Cooldowns tick linearly; zero has no side effect.
	for i := range s.Cooldowns {
		if s.Cooldowns[i] > 0 {
			s.Cooldowns[i] = math.Max(0, s.Cooldowns[i]-step)
		}
	}

	// Charge refill: one charge recharges at a time.
	for i := range s.Charges {
		max := s.Catalog.Abilities[i].Charges.Max
		if max == 0 || s.Charges[i].Current >= max {
			continue
		}
		s.Charges[i].Recharge -= step
		if s.Charges[i].Recharge <= timeEps {
			s.Charges[i].Current++
			if s.Charges[i].Current < max {
				s.Charges[i].Recharge = s.Catalog.Abilities[i].Charges.Recharge
			} else {
				s.Charges[i].Recharge = 0
			}
		}
	}

	// Effects: proc accumulation, periodic ticks, expiry.
	for i := range s.Effects {
		inst := &s.Effects[i]
		spec := &s.Catalog.Effects[i]

		wasActive := inst.Remaining > timeEps || inst.Stacks > 0

		// Expected-value proc model: accumulate while the source effect is
		// active; a discrete grant fires each time the accumulator crosses 1.
		if spec.ProcRate > 0 && wasActive {
			inst.ProcAccum += spec.ProcRate * step
			for inst.ProcAccum >= 1-timeEps {
				inst.ProcAccum -= 1
				s.grantStacks(spec.ProcEffect, spec.ProcStacks)
			}
		}

		if inst.Remaining > timeEps {
			inst.Remaining -= step

			// Periodic tick. A tick landing on the expiry instant still fires.
			if spec.TickPeriod > 0 {
				inst.TickIn -= step
				if inst.TickIn <= timeEps {
					s.Score += spec.TickScore
					inst.TickIn = spec.TickPeriod
				}
			}

			// Expiry side effects fire exactly once when the timer crosses zero.
			if inst.Remaining <= timeEps {
				inst.Remaining = 0
				inst.Stacks = 0
				inst.TickIn = 0
				inst.ProcAccum = 0
				for _, g := range spec.ExpireGrants {
					res := &s.Catalog.Resources[g.Resource]
					s.Resources[g.Resource] = clamp(s.Resources[g.Resource]+g.Amount, 0, res.Cap)
				}
			}
		}
	}
}

// grantStacks adds stacks to an effect, respecting its stack cap.
func (s *State) grantStacks(id catalog.EffectID, n int) {
	if id < 0 || int(id) >= len(s.Effects) || n <= 0 {
		return
	}
	inst := &s.Effects[id]
	inst.Stacks += n
	if max := s.Catalog.Effects[id].MaxStacks; max > 0 && inst.Stacks > max {
		inst.Stacks = max
	}
}

// #endregion tick
