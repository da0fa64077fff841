// Package runner drives a policy against the state model for a full run and
// records the canonical decision trace: trigger pass, decide, apply, advance,
// snapshot — strictly sequential, one state.
package runner

// #region imports
import (
	"time"

	"github.com/google/uuid"

	"github.com/kdellison/slotsim/internal/catalog"
	"github.com/kdellison/slotsim/internal/condition"
	"github.com/kdellison/slotsim/internal/sim"
	"github.com/kdellison/slotsim/internal/trace"
)

// #endregion

// #region policy-interface

// Policy is anything that can pick a slot action for a state.
type Policy interface {
	Decide(st *sim.State) (trace.Decision, bool)
}

// #endregion policy-interface

// #region config

// Config bounds a run beyond the simulated horizon.
type Config struct {
	// MaxDecisions stops unbounded runs; 0 defaults to 10000.
	MaxDecisions int
	// TriggerCap is the per-decision-point off-slot repeat cap.
	TriggerCap int
}

// DefaultConfig returns the standard run bounds.
func DefaultConfig() Config {
	return Config{MaxDecisions: 10000, TriggerCap: sim.DefaultTriggerCap}
}

// #endregion config

// #region runner

// Runner executes one policy over one run configuration.
type Runner struct {
	cat    *catalog.Catalog
	runCfg *catalog.RunConfig
	policy Policy
	eval   *condition.Evaluator
	cfg    Config

	// PolicyName labels the produced trace.
	PolicyName string
}

// New wires a runner. The evaluator drives off-slot trigger conditions and
// is shared with the policy.
func New(cat *catalog.Catalog, runCfg *catalog.RunConfig, policy Policy, eval *condition.Evaluator, cfg Config) *Runner {
	if cfg.MaxDecisions <= 0 {
		cfg.MaxDecisions = DefaultConfig().MaxDecisions
	}
	return &Runner{cat: cat, runCfg: runCfg, policy: policy, eval: eval, cfg: cfg}
}

// #endregion runner

// #region run

// Run simulates from a fresh starting state until the horizon (or the
// decision cap for unbounded runs) and returns the decision trace. The
// simulator always produces a next state — degraded decisions fall back to
// the filler ability rather than halting mid-trace.
func (r *Runner) Run() *trace.Trace {
	st := sim.NewState(r.cat, r.runCfg)
	tr := &trace.Trace{
		RunID:     uuid.New().String(),
		Policy:    r.PolicyName,
		CreatedAt: time.Now().UTC(),
	}

	seq := 0
	for decisions := 0; decisions < r.cfg.MaxDecisions; decisions++ {
		if st.Horizon > 0 && st.Time >= st.Horizon {
			break
		}

		// Off-slot triggers preempt the slot decision; each fired instant
		// is its own trace entry so the comparator can see forced actions.
		for i := 0; i < r.capacity(); i++ {
			pre := trace.Capture(st)
			id, ok := st.FireTrigger(r.eval)
			if !ok {
				break
			}
			tr.Entries = append(tr.Entries, trace.Entry{
				Seq:       seq,
				Timestamp: st.Time,
				Pre:       pre,
				Post:      trace.Capture(st),
				Decision: trace.Decision{
					Ability:   r.cat.AbilityName(id),
					Instant:   true,
					Rationale: "trigger",
				},
			})
			seq++
		}

		pre := trace.Capture(st)
		dec, _ := r.policy.Decide(st)
		id, ok := r.cat.AbilityID(dec.Ability)
		if !ok || !st.ApplyAction(id) {
			// Stale or unknown choice: fail safe onto the filler.
			id = r.cat.Filler
			st.ApplyAction(id)
			dec = trace.Decision{Ability: r.cat.AbilityName(id), Rationale: "degraded; filler"}
		}
		post := trace.Capture(st)
		tr.Entries = append(tr.Entries, trace.Entry{
			Seq:       seq,
			Timestamp: pre.Time,
			Pre:       pre,
			Post:      post,
			Decision:  dec,
		})
		seq++

		st.AdvanceTime(st.ActionDuration(id))
	}

	tr.TotalScore = st.Score
	return tr
}

func (r *Runner) capacity() int {
	if r.cfg.TriggerCap > 0 {
		return r.cfg.TriggerCap
	}
	return sim.DefaultTriggerCap
}

// #endregion run
