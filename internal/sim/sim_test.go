package sim

import (
	"math"
	"reflect"
	"testing"

	"github.com/kdellison/slotsim/internal/catalog"
)

const testDoc = `
resources:
  - name: energy
    cap: 100
    regen_per_sec: 10
    start: 50
effects:
  - name: surge
    kind: buff
    score_mult: 2.0
  - name: wound
    kind: dot
    tick_period: 3
    tick_score: 5
  - name: momentum
    kind: counter
    max_stacks: 5
  - name: storm
    kind: buff
    proc_rate: 0.5
    proc_grants: {effect: momentum, stacks: 1}
  - name: fading
    kind: buff
    expire_grants: [{resource: energy, amount: 20}]
abilities:
  - name: strike
    duration: 1.5
    costs: [{resource: energy, amount: 40}]
    score: 50
  - name: opener
    duration: 1.5
    applies: [{effect: surge, duration: 10}]
  - name: rend
    duration: 1.5
    costs: [{resource: energy, amount: 20}]
    applies: [{effect: wound, duration: 6}]
  - name: finisher
    duration: 1.5
    score: 30
    require_effect: momentum
    require_stacks: 3
    removes: [momentum]
  - name: sequence
    duration: 1.5
    transition: {effect: momentum, advance: 1, wrap_at: 3}
  - name: prolong
    duration: 1.5
    applies: [{effect: wound, duration: 3, extend: true}]
  - name: burst
    instant: true
    cooldown: 30
    trigger_if: "Resource('energy') < 20"
    grants: [{resource: energy, amount: 30}]
  - name: pulse
    instant: true
  - name: dash
    duration: 1.5
    charges: 2
    recharge: 4.5
    score: 10
  - name: hidden
    duration: 1.5
    optional: true
    score: 5
  - name: idle
    duration: 1.0
    filler: true
trigger_order: [burst, pulse]
`

func newTestState(t *testing.T) *State {
	t.Helper()
	cat, err := catalog.ParseCatalog([]byte(testDoc))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	cfg := catalog.DefaultRunConfig()
	return NewState(cat, &cfg)
}

func abilityID(t *testing.T, st *State, name string) catalog.AbilityID {
	t.Helper()
	id, ok := st.Catalog.AbilityID(name)
	if !ok {
		t.Fatalf("unknown ability %q", name)
	}
	return id
}

func effectID(t *testing.T, st *State, name string) catalog.EffectID {
	t.Helper()
	id, ok := st.Catalog.EffectID(name)
	if !ok {
		t.Fatalf("unknown effect %q", name)
	}
	return id
}

// fakeEval fires every conditional trigger, so tests can exercise the
// trigger pass without the condition package.
type fakeEval struct{ allow bool }

func (f fakeEval) Bool(string, *State, map[string]float64) bool { return f.allow }

func TestResourceRegenClampsAtCap(t *testing.T) {
	st := newTestState(t)
	energy, _ := st.Catalog.ResourceID("energy")

	st.AdvanceTime(3)
	if got := st.Resources[energy]; got != 80 {
		t.Fatalf("energy after 3s = %v, want 80", got)
	}

	// 50 start + 10/s caps at 100 and stays there.
	st.AdvanceTime(60)
	if got := st.Resources[energy]; got != 100 {
		t.Fatalf("energy after long regen = %v, want 100", got)
	}
}

func TestApplyActionCostsAndIllegalNoOp(t *testing.T) {
	st := newTestState(t)
	strike := abilityID(t, st, "strike")
	energy, _ := st.Catalog.ResourceID("energy")

	if !st.ApplyAction(strike) {
		t.Fatal("strike should be available at 50 energy")
	}
	if got := st.Resources[energy]; got != 10 {
		t.Fatalf("energy after strike = %v, want 10", got)
	}
	if st.Score != 50 {
		t.Fatalf("score after strike = %v, want 50", st.Score)
	}

	// 10 energy cannot pay 40: the request is a no-op, state untouched.
	before := st.Clone()
	if st.ApplyAction(strike) {
		t.Fatal("strike should be unaffordable")
	}
	if !reflect.DeepEqual(st, before) {
		t.Fatal("illegal action mutated state")
	}
}

func TestDotTicksIncludingExpiryInstant(t *testing.T) {
	st := newTestState(t)
	rend := abilityID(t, st, "rend")

	if !st.ApplyAction(rend) {
		t.Fatal("rend should be available")
	}
	// 6s duration, 3s period: ticks at 3 and at the expiry instant 6.
	st.AdvanceTime(6)
	if st.Score != 10 {
		t.Fatalf("dot score = %v, want 10", st.Score)
	}

	wound := effectID(t, st, "wound")
	if st.EffectActive(wound) {
		t.Fatal("wound should have expired")
	}
	// No further ticks after expiry.
	st.AdvanceTime(10)
	if st.Score != 10 {
		t.Fatalf("score after expiry = %v, want 10", st.Score)
	}
}

func TestExpireGrantsFireExactlyOnce(t *testing.T) {
	st := newTestState(t)
	fading := effectID(t, st, "fading")
	energy, _ := st.Catalog.ResourceID("energy")

	st.Resources[energy] = 0
	st.Effects[fading] = EffectInstance{Remaining: 2}

	st.AdvanceTime(2)
	// 20 regen + 20 expire grant.
	if got := st.Resources[energy]; got != 40 {
		t.Fatalf("energy after expiry = %v, want 40", got)
	}
	st.AdvanceTime(1)
	if got := st.Resources[energy]; got != 50 {
		t.Fatalf("grant fired twice: energy = %v, want 50", got)
	}
}

func TestChargesRefillOneAtATime(t *testing.T) {
	st := newTestState(t)
	dash := abilityID(t, st, "dash")

	if st.ChargesLeft(dash) != 2 {
		t.Fatalf("charges start at %d, want 2", st.ChargesLeft(dash))
	}
	st.ApplyAction(dash)
	st.ApplyAction(dash)
	if st.ChargesLeft(dash) != 0 {
		t.Fatalf("charges after two uses = %d, want 0", st.ChargesLeft(dash))
	}
	if st.Available(dash) {
		t.Fatal("dash should be unavailable with zero charges")
	}

	// One charge recharges at a time: exactly 1 after 4.5s, 2 after 9s.
	st.AdvanceTime(4.5)
	if st.ChargesLeft(dash) != 1 {
		t.Fatalf("charges after 4.5s = %d, want 1", st.ChargesLeft(dash))
	}
	st.AdvanceTime(4.5)
	if st.ChargesLeft(dash) != 2 {
		t.Fatalf("charges after 9s = %d, want 2", st.ChargesLeft(dash))
	}
	if st.FullRechargeTime(dash) != 0 {
		t.Fatalf("full recharge time at max = %v, want 0", st.FullRechargeTime(dash))
	}
}

func TestProcAccumulatorGrantsOnCrossing(t *testing.T) {
	st := newTestState(t)
	storm := effectID(t, st, "storm")
	momentum := effectID(t, st, "momentum")

	st.Effects[storm] = EffectInstance{Remaining: 10}

	// 0.5 procs/s: the accumulator crosses 1.0 at exactly 2s.
	st.AdvanceTime(1.9)
	if st.EffectStacks(momentum) != 0 {
		t.Fatalf("momentum before crossing = %d, want 0", st.EffectStacks(momentum))
	}
	st.AdvanceTime(0.1)
	if st.EffectStacks(momentum) != 1 {
		t.Fatalf("momentum after crossing = %d, want 1", st.EffectStacks(momentum))
	}
	st.AdvanceTime(6)
	if st.EffectStacks(momentum) != 4 {
		t.Fatalf("momentum after 8s = %d, want 4", st.EffectStacks(momentum))
	}
}

func TestStackTransitionWraps(t *testing.T) {
	st := newTestState(t)
	sequence := abilityID(t, st, "sequence")
	finisher := abilityID(t, st, "finisher")
	momentum := effectID(t, st, "momentum")

	if st.Available(finisher) {
		t.Fatal("finisher should need 3 momentum stacks")
	}
	st.ApplyAction(sequence)
	st.ApplyAction(sequence)
	if st.EffectStacks(momentum) != 2 {
		t.Fatalf("momentum = %d, want 2", st.EffectStacks(momentum))
	}
	// Third advance reaches wrap_at and wraps to zero.
	st.ApplyAction(sequence)
	if st.EffectStacks(momentum) != 0 {
		t.Fatalf("momentum after wrap = %d, want 0", st.EffectStacks(momentum))
	}

	st.Effects[momentum].Stacks = 3
	if !st.ApplyAction(finisher) {
		t.Fatal("finisher should fire at 3 stacks")
	}
	if st.EffectStacks(momentum) != 0 {
		t.Fatal("finisher should consume momentum")
	}
}

func TestScoreMultiplierAppliesAtUseTime(t *testing.T) {
	st := newTestState(t)
	opener := abilityID(t, st, "opener")
	strike := abilityID(t, st, "strike")

	st.ApplyAction(opener)
	if got := st.ScoreAction(strike); got != 100 {
		t.Fatalf("strike under surge = %v, want 100", got)
	}
	if !st.ApplyAction(strike) {
		t.Fatal("strike should be available")
	}
	if st.Score != 100 {
		t.Fatalf("score = %v, want 100", st.Score)
	}
}

func TestOptionalAbilityGatedByRunConfig(t *testing.T) {
	st := newTestState(t)
	hidden := abilityID(t, st, "hidden")

	if st.Available(hidden) {
		t.Fatal("optional ability should be off by default")
	}

	cfg := catalog.DefaultRunConfig()
	cfg.Options = map[string]bool{"hidden": true}
	st2 := NewState(st.Catalog, &cfg)
	if !st2.Available(hidden) {
		t.Fatal("optional ability should be available when enabled")
	}
}

func TestAvailableActionsExcludesInstantsAndKeepsFiller(t *testing.T) {
	st := newTestState(t)
	energy, _ := st.Catalog.ResourceID("energy")
	st.Resources[energy] = 0

	idle := abilityID(t, st, "idle")
	burst := abilityID(t, st, "burst")

	actions := st.AvailableActions()
	foundIdle := false
	for _, id := range actions {
		if id == burst {
			t.Fatal("instant ability listed as slot action")
		}
		if id == idle {
			foundIdle = true
		}
	}
	if !foundIdle {
		t.Fatal("filler missing from available actions")
	}
}

func TestFireTriggerHonorsConditionAndOrder(t *testing.T) {
	st := newTestState(t)
	energy, _ := st.Catalog.ResourceID("energy")
	burst := abilityID(t, st, "burst")
	pulse := abilityID(t, st, "pulse")

	// At 50 energy burst's condition fails; pulse (unconditional) fires.
	id, ok := st.FireTrigger(fakeEval{allow: false})
	if !ok || id != pulse {
		t.Fatalf("fired %d, want pulse %d", id, pulse)
	}

	st.Resources[energy] = 10
	id, ok = st.FireTrigger(fakeEval{allow: true})
	if !ok || id != burst {
		t.Fatalf("fired %d, want burst %d", id, burst)
	}
	if got := st.Resources[energy]; got != 40 {
		t.Fatalf("energy after burst = %v, want 40", got)
	}

	// Burst is now on cooldown; a nil evaluator skips conditional triggers.
	id, ok = st.FireTrigger(nil)
	if !ok || id != pulse {
		t.Fatalf("fired %d, want pulse %d", id, pulse)
	}
}

func TestCheckTriggersRepeatCap(t *testing.T) {
	st := newTestState(t)

	// Pulse never changes state, so the pass would loop forever without
	// the cap.
	fired := st.CheckTriggers(fakeEval{allow: false}, 0)
	if len(fired) != DefaultTriggerCap {
		t.Fatalf("fired %d triggers, want cap %d", len(fired), DefaultTriggerCap)
	}
}

func TestTimersMonotonicUnderAdvance(t *testing.T) {
	st := newTestState(t)
	energy, _ := st.Catalog.ResourceID("energy")
	surge := effectID(t, st, "surge")
	wound := effectID(t, st, "wound")
	burst := abilityID(t, st, "burst")
	dash := abilityID(t, st, "dash")
	prolong := abilityID(t, st, "prolong")

	// Arm every timer kind: buff, dot, cooldown, recharging charges.
	st.ApplyAction(abilityID(t, st, "rend"))
	st.ApplyAction(abilityID(t, st, "opener"))
	st.Resources[energy] = 10
	if id, ok := st.FireTrigger(fakeEval{allow: true}); !ok || id != burst {
		t.Fatalf("fired %d/%v, want burst", id, ok)
	}
	st.ApplyAction(dash)
	st.ApplyAction(dash)

	type timers struct{ surge, wound, cooldown, recharge float64 }
	read := func() timers {
		return timers{
			surge:    st.EffectRemains(surge),
			wound:    st.EffectRemains(wound),
			cooldown: st.Cooldowns[burst],
			recharge: st.Charges[dash].Recharge,
		}
	}
	for _, v := range []float64{read().surge, read().wound, read().cooldown, read().recharge} {
		if v <= 0 {
			t.Fatalf("timer not armed: %+v", read())
		}
	}

	// Uneven partitions summing below the shortest completion (4.5s
	// recharge): with no timer event completing, every timer is
	// non-increasing at every step.
	prev := read()
	for _, dt := range []float64{0.4, 1.1, 0.5, 2.0} {
		st.AdvanceTime(dt)
		cur := read()
		if cur.surge > prev.surge || cur.wound > prev.wound ||
			cur.cooldown > prev.cooldown || cur.recharge > prev.recharge {
			t.Fatalf("timer increased across %vs: %+v -> %+v", dt, prev, cur)
		}
		if cur == prev {
			t.Fatalf("timers did not advance across %vs: %+v", dt, cur)
		}
		prev = cur
	}

	// An explicit extend application is the one thing that raises a
	// running timer.
	before := st.EffectRemains(wound)
	if !st.ApplyAction(prolong) {
		t.Fatal("prolong not available")
	}
	if got := st.EffectRemains(wound); got != before+3 {
		t.Fatalf("extend: wound remaining = %v, want %v", got, before+3)
	}
}

func TestAdvanceTimePartitionInvariance(t *testing.T) {
	a := newTestState(t)
	b := a.Clone()
	rend := abilityID(t, a, "rend")
	a.ApplyAction(rend)
	b.ApplyAction(rend)

	a.AdvanceTime(7.3)
	for i := 0; i < 73; i++ {
		b.AdvanceTime(0.1)
	}

	if math.Abs(a.Score-b.Score) > 1e-6 {
		t.Fatalf("score diverged: %v vs %v", a.Score, b.Score)
	}
	for i := range a.Resources {
		if math.Abs(a.Resources[i]-b.Resources[i]) > 1e-6 {
			t.Fatalf("resource %d diverged: %v vs %v", i, a.Resources[i], b.Resources[i])
		}
	}
}

func TestDeterministicReplay(t *testing.T) {
	run := func() *State {
		st := newTestState(t)
		st.ApplyAction(abilityID(t, st, "opener"))
		st.AdvanceTime(1.5)
		st.ApplyAction(abilityID(t, st, "strike"))
		st.AdvanceTime(1.5)
		st.ApplyAction(abilityID(t, st, "rend"))
		st.AdvanceTime(4.2)
		return st
	}
	a, b := run(), run()

	if a.Score != b.Score || a.Time != b.Time {
		t.Fatalf("replay diverged: score %v/%v time %v/%v", a.Score, b.Score, a.Time, b.Time)
	}
	if !reflect.DeepEqual(a.Resources, b.Resources) || !reflect.DeepEqual(a.Effects, b.Effects) {
		t.Fatal("replay diverged in resources or effects")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	st := newTestState(t)
	st.ApplyAction(abilityID(t, st, "opener"))

	clone := st.Clone()
	clone.ApplyAction(abilityID(t, st, "strike"))
	clone.AdvanceTime(5)

	if st.Time != 0 {
		t.Fatalf("original time moved to %v", st.Time)
	}
	if st.Score != 0 {
		t.Fatalf("original score moved to %v", st.Score)
	}
	if st.PrevAction(0) != abilityID(t, st, "opener") {
		t.Fatal("original history changed")
	}
}

func TestHistoryNewestFirstAndBounded(t *testing.T) {
	st := newTestState(t)
	idle := abilityID(t, st, "idle")
	opener := abilityID(t, st, "opener")

	st.ApplyAction(opener)
	st.ApplyAction(idle)
	if st.PrevAction(0) != idle || st.PrevAction(1) != opener {
		t.Fatal("history order wrong")
	}
	if st.PrevAction(5) != catalog.NoAbility {
		t.Fatal("past-end history should be NoAbility")
	}

	for i := 0; i < 20; i++ {
		st.ApplyAction(idle)
	}
	if len(st.History) != 8 {
		t.Fatalf("history length = %d, want depth 8", len(st.History))
	}
}

func TestGeneratorSpenderEquilibrium(t *testing.T) {
	const doc = `
resources:
  - name: energy
    cap: 100
    start: 0
abilities:
  - name: build
    duration: 1.5
    grants: [{resource: energy, amount: 25}]
  - name: spend
    duration: 1.5
    costs: [{resource: energy, amount: 40}]
    score: 50
  - name: idle
    duration: 1.0
    filler: true
`
	cat, err := catalog.ParseCatalog([]byte(doc))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	cfg := catalog.DefaultRunConfig()
	st := NewState(cat, &cfg)

	build := abilityID(t, st, "build")
	spend := abilityID(t, st, "spend")
	energy, _ := cat.ResourceID("energy")

	spends := 0
	// The driver prefers the spender: a generator-first driver would never
	// spend at all (the generator is always available), so spender-first is
	// the variant that actually produces the build/spend equilibrium.
	for st.Time < 120 {
		id := build
		if st.Available(spend) {
			id = spend
			spends++
		}
		if !st.ApplyAction(id) {
			t.Fatalf("t=%v: %s not available", st.Time, cat.AbilityName(id))
		}
		if st.Resources[energy] < 0 || st.Resources[energy] > 100 {
			t.Fatalf("t=%v: energy %v out of [0, 100]", st.Time, st.Resources[energy])
		}
		st.AdvanceTime(st.ActionDuration(id))
	}

	// Build/build/spend settles into a stable cycle: +25, +25, -40.
	if spends == 0 {
		t.Fatal("spender never fired")
	}
	if st.Score != float64(spends)*50 {
		t.Fatalf("score %v != %d spends * 50", st.Score, spends)
	}
	// The cycle spends 5 times per 13 slots (25*8 == 40*5), so 80 slots
	// settle near that ratio.
	if spends < 25 || spends > 35 {
		t.Fatalf("spends = %d, want ~5-in-13 cadence", spends)
	}
}

func TestActionDurationScalesWithSpeed(t *testing.T) {
	cat, err := catalog.ParseCatalog([]byte(testDoc))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	cfg := catalog.DefaultRunConfig()
	cfg.SpeedMult = 1.5
	st := NewState(cat, &cfg)

	strike := abilityID(t, st, "strike")
	if got := st.ActionDuration(strike); got != 1.0 {
		t.Fatalf("strike duration at 1.5x = %v, want 1.0", got)
	}
	burst := abilityID(t, st, "burst")
	if got := st.ActionDuration(burst); got != 0 {
		t.Fatalf("instant duration = %v, want 0", got)
	}
}
