package priority

import (
	"testing"

	"github.com/kdellison/slotsim/internal/catalog"
	"github.com/kdellison/slotsim/internal/condition"
	"github.com/kdellison/slotsim/internal/sim"
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
  - name: idle
    duration: 1.0
    filler: true
`

const testRules = `
main: default
lists:
  default:
    - var: pool
      value: "Resource('energy')"
    - action: strike
      if: "Var('pool') >= 40"
    - call: maintain
    - action: opener
      if: "!BuffActive('surge')"
  maintain:
    - action: rend
      if: "!DotActive('wound')"
`

func newTestPolicy(t *testing.T, rulesDoc string) (*Policy, *sim.State) {
	t.Helper()
	cat, err := catalog.ParseCatalog([]byte(testDoc))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	rules, err := ParseRuleSet([]byte(rulesDoc), cat)
	if err != nil {
		t.Fatalf("parse rule set: %v", err)
	}
	cfg := catalog.DefaultRunConfig()
	return New(rules, condition.NewEvaluator()), sim.NewState(cat, &cfg)
}

func TestFirstMatchingEntryWins(t *testing.T) {
	p, st := newTestPolicy(t, testRules)

	dec, ok := p.Decide(st)
	if !ok {
		t.Fatal("no rule fired")
	}
	if dec.Ability != "strike" {
		t.Fatalf("picked %q, want strike", dec.Ability)
	}
	if dec.Rationale != "default[1]" {
		t.Fatalf("rationale = %q, want default[1]", dec.Rationale)
	}
}

func TestFallthroughIntoSubList(t *testing.T) {
	p, st := newTestPolicy(t, testRules)
	energy, _ := st.Catalog.ResourceID("energy")
	st.Resources[energy] = 30

	// strike's condition fails at 30 energy; the maintain sub-list fires.
	dec, ok := p.Decide(st)
	if !ok || dec.Ability != "rend" {
		t.Fatalf("picked %q/%v, want rend", dec.Ability, ok)
	}
	if dec.Rationale != "maintain[0]" {
		t.Fatalf("rationale = %q, want maintain[0]", dec.Rationale)
	}

	// With the dot already up the sub-list yields nothing and the scan
	// resumes in the caller.
	rend, _ := st.Catalog.AbilityID("rend")
	st.ApplyAction(rend)
	dec, ok = p.Decide(st)
	if !ok || dec.Ability != "opener" {
		t.Fatalf("picked %q/%v, want opener", dec.Ability, ok)
	}
}

func TestExclusiveSubListEndsScan(t *testing.T) {
	const rules = `
main: default
lists:
  default:
    - call: branch
      mode: exclusive
    - action: idle
  branch:
    - action: strike
      if: "Resource('energy') >= 40"
`
	p, st := newTestPolicy(t, rules)
	energy, _ := st.Catalog.ResourceID("energy")
	st.Resources[energy] = 10

	// The exclusive branch fires nothing, and control never returns to the
	// caller's remaining entries: the decision degrades to the filler.
	dec, ok := p.Decide(st)
	if ok {
		t.Fatalf("expected no-fire, got %q", dec.Ability)
	}
	if dec.Ability != "idle" {
		t.Fatalf("fallback = %q, want filler idle", dec.Ability)
	}

	st.Resources[energy] = 50
	dec, ok = p.Decide(st)
	if !ok || dec.Ability != "strike" {
		t.Fatalf("picked %q/%v, want strike", dec.Ability, ok)
	}
}

func TestVariablesFeedLaterConditions(t *testing.T) {
	const rules = `
main: default
lists:
  default:
    - var: threshold
      value: "30 + 10"
    - action: strike
      if: "Resource('energy') >= Var('threshold')"
    - action: idle
`
	p, st := newTestPolicy(t, rules)

	dec, ok := p.Decide(st)
	if !ok || dec.Ability != "strike" {
		t.Fatalf("picked %q/%v, want strike", dec.Ability, ok)
	}

	energy, _ := st.Catalog.ResourceID("energy")
	st.Resources[energy] = 39
	dec, _ = p.Decide(st)
	if dec.Ability != "idle" {
		t.Fatalf("picked %q, want idle", dec.Ability)
	}
}

func TestUnknownAbilityNeverFires(t *testing.T) {
	const rules = `
main: default
lists:
  default:
    - action: ghost
    - action: idle
`
	p, st := newTestPolicy(t, rules)

	dec, ok := p.Decide(st)
	if !ok || dec.Ability != "idle" {
		t.Fatalf("picked %q/%v, want idle", dec.Ability, ok)
	}
}

func TestCyclicSubListsDegradeToFiller(t *testing.T) {
	const rules = `
main: a
lists:
  a:
    - call: b
  b:
    - call: a
`
	p, st := newTestPolicy(t, rules)

	dec, ok := p.Decide(st)
	if ok {
		t.Fatalf("cyclic rule set fired %q", dec.Ability)
	}
	if dec.Ability != "idle" {
		t.Fatalf("fallback = %q, want filler idle", dec.Ability)
	}
}

func TestParseRuleSetStructuralErrors(t *testing.T) {
	cat, err := catalog.ParseCatalog([]byte(testDoc))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}

	cases := []struct {
		name string
		doc  string
	}{
		{"missing main list", "main: nope\nlists:\n  default:\n    - action: idle\n"},
		{"variable without value", "lists:\n  default:\n    - var: x\n"},
		{"unknown sub-list mode", "lists:\n  default:\n    - call: other\n      mode: sideways\n"},
		{"empty entry", "lists:\n  default:\n    - if: \"true\"\n"},
	}
	for _, tc := range cases {
		if _, err := ParseRuleSet([]byte(tc.doc), cat); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestMainDefaultsToDefaultList(t *testing.T) {
	const rules = `
lists:
  default:
    - action: idle
`
	p, st := newTestPolicy(t, rules)
	dec, ok := p.Decide(st)
	if !ok || dec.Ability != "idle" {
		t.Fatalf("picked %q/%v, want idle", dec.Ability, ok)
	}
}
