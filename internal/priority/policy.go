package priority

// #region imports
import (
	"fmt"
	"log/slog"

	"github.com/kdellison/slotsim/internal/catalog"
	"github.com/kdellison/slotsim/internal/condition"
	"github.com/kdellison/slotsim/internal/sim"
	"github.com/kdellison/slotsim/internal/trace"
)

// #endregion

// #region policy

// DefaultMaxDepth bounds sub-list nesting; a cyclic rule set degrades to
// "nothing fired" instead of recursing forever.
const DefaultMaxDepth = 8

// Policy interprets a rule set against successive states.
type Policy struct {
	rules    *RuleSet
	eval     *condition.Evaluator
	MaxDepth int
}

// New wires a policy from a loaded rule set and a condition evaluator.
func New(rules *RuleSet, eval *condition.Evaluator) *Policy {
	return &Policy{rules: rules, eval: eval, MaxDepth: DefaultMaxDepth}
}

// #endregion policy

// #region decide

// Decide scans the rule list and returns the chosen slot action. Variables
// recompute fresh on every call — nothing is cached across decision points,
// so arbitrary state changes between calls stay correct. When no rule fires
// the filler ability is returned (with ok=false) so the caller never stalls.
func (p *Policy) Decide(st *sim.State) (trace.Decision, bool) {
	vars := make(map[string]float64)
	avail := make(map[catalog.AbilityID]bool)
	for _, id := range st.AvailableActions() {
		avail[id] = true
	}

	if dec, fired := p.walk(p.rules.Main, st, vars, avail, 0); fired {
		return dec, true
	}
	filler := st.Catalog.Filler
	return trace.Decision{
		Ability:   st.Catalog.AbilityName(filler),
		Rationale: "no rule fired; filler",
	}, false
}

// walk scans one list. The returned bool reports whether an action fired;
// an Exclusive sub-list reference ends the caller's scan either way.
func (p *Policy) walk(listName string, st *sim.State, vars map[string]float64, avail map[catalog.AbilityID]bool, depth int) (trace.Decision, bool) {
	if depth > p.maxDepth() {
		slog.Warn("sub-list depth cap reached; treating as no-fire", "list", listName)
		return trace.Decision{}, false
	}
	list, ok := p.rules.Lists[listName]
	if !ok {
		slog.Warn("rule references unknown sub-list", "list", listName)
		return trace.Decision{}, false
	}

	for i := range list.Entries {
		e := &list.Entries[i]
		switch e.Kind {
		case KindVariable:
			if !p.eval.Bool(e.Condition, st, vars) {
				continue
			}
			if v, ok := p.eval.Number(e.Expression, st, vars); ok {
				vars[e.VarName] = v
			}

		case KindAction:
			if e.Ability == catalog.NoAbility || !avail[e.Ability] {
				continue
			}
			if !p.eval.Bool(e.Condition, st, vars) {
				continue
			}
			return trace.Decision{
				Ability:   e.AbilityName,
				Rationale: fmt.Sprintf("%s[%d]", listName, i),
			}, true

		case KindSubList:
			if !p.eval.Bool(e.Condition, st, vars) {
				continue
			}
			dec, fired := p.walk(e.SubList, st, vars, avail, depth+1)
			if e.Mode == Exclusive {
				// Exclusive branch: control never returns to this scan.
				return dec, fired
			}
			if fired {
				return dec, true
			}
			// Fallthrough: keep scanning this list.
		}
	}
	return trace.Decision{}, false
}

func (p *Policy) maxDepth() int {
	if p.MaxDepth > 0 {
		return p.MaxDepth
	}
	return DefaultMaxDepth
}

// #endregion decide
