// Package rollout implements the search-based policy: every legal action is
// valued by a bounded forward simulation (immediate payoff plus discounted
// continuation), so actions whose payoff lands several slots later — setup
// moves — are valued correctly where a one-step greedy evaluator fails.
package rollout

// #region imports
import (
	"fmt"
	"math"
	"sync"

	"github.com/kdellison/slotsim/internal/catalog"
	"github.com/kdellison/slotsim/internal/condition"
	"github.com/kdellison/slotsim/internal/sim"
	"github.com/kdellison/slotsim/internal/trace"
)

// #endregion

// #region config

// Config holds the rollout tunables. Depth and discount were tuned
// empirically per domain in practice, so they are configuration, not
// constants.
type Config struct {
	// Horizon is the simulated continuation length in seconds.
	Horizon float64
	// LookaheadSteps is how many continuation steps use one-ply lookahead
	// before falling back to pure greedy.
	LookaheadSteps int
	// Discount is the per-step multiplicative discount (<1) so near-term
	// continuation dominates far-term noise.
	Discount float64
	// TriggerCap bounds the off-slot trigger pass per decision point.
	TriggerCap int
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		Horizon:        12,
		LookaheadSteps: 6,
		Discount:       0.9,
		TriggerCap:     sim.DefaultTriggerCap,
	}
}

// #endregion config

// #region policy

// Policy picks the action with the highest projected total score.
type Policy struct {
	cfg  Config
	eval *condition.Evaluator
}

// New wires a rollout policy. The evaluator is shared with the live
// simulation so trigger conditions resolve identically.
func New(cfg Config, eval *condition.Evaluator) *Policy {
	if cfg.Horizon <= 0 {
		cfg = DefaultConfig()
	}
	return &Policy{cfg: cfg, eval: eval}
}

// #endregion policy

// #region decide

// Decide scores every available action and returns the best. Per-action
// projections are independent read-only explorations from the shared
// starting snapshot, so they run concurrently — the only parallelism in
// the core. Ties break by evaluation order.
func (p *Policy) Decide(st *sim.State) (trace.Decision, bool) {
	candidates := st.AvailableActions()
	if len(candidates) == 0 {
		return trace.Decision{}, false
	}

	scores := make([]float64, len(candidates))
	var wg sync.WaitGroup
	for i, id := range candidates {
		wg.Add(1)
		go func(i int, id catalog.AbilityID) {
			defer wg.Done()
			scores[i] = p.ScoreAction(st, id)
		}(i, id)
	}
	wg.Wait()

	best := 0
	for i := 1; i < len(candidates); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return trace.Decision{
		Ability:   st.Catalog.AbilityName(candidates[best]),
		Rationale: fmt.Sprintf("rollout %.1f", scores[best]),
	}, true
}

// #endregion decide

// #region score

// ScoreAction returns the projected total for taking one action now:
// the undiscounted payoff accrued during its own slot plus a discounted
// continuation simulated to the horizon. The projection honors off-slot
// triggers exactly as the live simulation would. The input state is never
// mutated.
func (p *Policy) ScoreAction(st *sim.State, id catalog.AbilityID) float64 {
	proj := st.Clone()
	before := proj.Score
	if !proj.ApplyAction(id) {
		return math.Inf(-1)
	}
	proj.AdvanceTime(proj.ActionDuration(id))
	total := proj.Score - before

	deadline := st.Time + p.cfg.Horizon
	for step := 1; proj.Time < deadline; step++ {
		before = proj.Score
		proj.CheckTriggers(p.eval, p.cfg.TriggerCap)

		var next catalog.AbilityID
		if step <= p.cfg.LookaheadSteps {
			next = p.bestOnePly(proj)
		} else {
			next = bestGreedy(proj)
		}
		if !proj.ApplyAction(next) {
			break
		}
		d := proj.ActionDuration(next)
		if d <= 0 {
			break
		}
		proj.AdvanceTime(d)
		total += (proj.Score - before) * math.Pow(p.cfg.Discount, float64(step))
	}
	return total
}

// bestGreedy picks the highest immediate score among available actions.
func bestGreedy(st *sim.State) catalog.AbilityID {
	candidates := st.AvailableActions()
	best := candidates[0]
	bestScore := st.ScoreAction(best)
	for _, id := range candidates[1:] {
		if s := st.ScoreAction(id); s > bestScore {
			best, bestScore = id, s
		}
	}
	return best
}

// bestOnePly picks by immediate score plus the best immediate score of the
// action that would follow — one extra ply, enough to see a setup move's
// first payoff without exploding cost.
func (p *Policy) bestOnePly(st *sim.State) catalog.AbilityID {
	candidates := st.AvailableActions()
	best := candidates[0]
	bestValue := math.Inf(-1)
	for _, id := range candidates {
		next := st.Clone()
		before := next.Score
		if !next.ApplyAction(id) {
			continue
		}
		next.AdvanceTime(next.ActionDuration(id))
		value := next.Score - before

		followers := next.AvailableActions()
		follow := 0.0
		for _, f := range followers {
			if s := next.ScoreAction(f); s > follow {
				follow = s
			}
		}
		value += follow * p.cfg.Discount

		if value > bestValue {
			best, bestValue = id, value
		}
	}
	return best
}

// #endregion score
