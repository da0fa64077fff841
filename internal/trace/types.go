// Package trace defines the canonical decision-trace artifact: ordered
// decision entries with full pre/post state snapshots, serializable to JSON
// so downstream tooling can reconstruct any decision point exactly.
package trace

// #region imports
import (
	"fmt"
	"time"

	"github.com/kdellison/slotsim/internal/catalog"
	"github.com/kdellison/slotsim/internal/sim"
)

// #endregion

// #region decision

// Decision is the output of a policy for one decision point. Abilities are
// recorded by name so traces stay readable and survive catalog reordering.
type Decision struct {
	Ability   string `json:"ability"`
	Instant   bool   `json:"instant"`
	Rationale string `json:"rationale,omitempty"`
}

// #endregion decision

// #region snapshot

// EffectSnapshot serializes one live effect slot. ProcAccum and TickIn are
// carried so a restored state continues bit-identically.
type EffectSnapshot struct {
	Remaining float64 `json:"remaining,omitempty"`
	Stacks    int     `json:"stacks,omitempty"`
	ProcAccum float64 `json:"proc_accum,omitempty"`
	TickIn    float64 `json:"tick_in,omitempty"`
}

// ChargeSnapshot serializes one charge-based ability's state.
type ChargeSnapshot struct {
	Current  int     `json:"current"`
	Recharge float64 `json:"recharge,omitempty"`
}

// Snapshot is a full, self-contained capture of a simulation state keyed by
// catalog names. It restores exactly — the comparator never replays earlier
// ticks to reconstruct a decision point.
type Snapshot struct {
	Time      float64                   `json:"time"`
	Score     float64                   `json:"score"`
	Resources map[string]float64        `json:"resources"`
	Effects   map[string]EffectSnapshot `json:"effects,omitempty"`
	Cooldowns map[string]float64        `json:"cooldowns,omitempty"`
	Charges   map[string]ChargeSnapshot `json:"charges,omitempty"`
	History   []string                  `json:"history,omitempty"`
}

// Capture snapshots a state. Only non-zero entries are kept.
func Capture(st *sim.State) Snapshot {
	cat := st.Catalog
	snap := Snapshot{
		Time:      st.Time,
		Score:     st.Score,
		Resources: make(map[string]float64, len(st.Resources)),
	}
	for i, v := range st.Resources {
		snap.Resources[cat.Resources[i].Name] = v
	}
	for i, inst := range st.Effects {
		if inst.Remaining == 0 && inst.Stacks == 0 && inst.ProcAccum == 0 {
			continue
		}
		if snap.Effects == nil {
			snap.Effects = make(map[string]EffectSnapshot)
		}
		snap.Effects[cat.Effects[i].Name] = EffectSnapshot{
			Remaining: inst.Remaining,
			Stacks:    inst.Stacks,
			ProcAccum: inst.ProcAccum,
			TickIn:    inst.TickIn,
		}
	}
	for i, cd := range st.Cooldowns {
		if cd == 0 {
			continue
		}
		if snap.Cooldowns == nil {
			snap.Cooldowns = make(map[string]float64)
		}
		snap.Cooldowns[cat.Abilities[i].Name] = cd
	}
	for i := range st.Charges {
		if cat.Abilities[i].Charges.Max == 0 {
			continue
		}
		if snap.Charges == nil {
			snap.Charges = make(map[string]ChargeSnapshot)
		}
		snap.Charges[cat.Abilities[i].Name] = ChargeSnapshot{
			Current:  st.Charges[i].Current,
			Recharge: st.Charges[i].Recharge,
		}
	}
	for _, id := range st.History {
		snap.History = append(snap.History, cat.AbilityName(id))
	}
	return snap
}

// Restore rebuilds a simulation state from a snapshot. Names that no longer
// resolve against the catalog are an error — a comparator must not silently
// analyze a different state than was recorded.
func (s Snapshot) Restore(cat *catalog.Catalog, cfg *catalog.RunConfig) (*sim.State, error) {
	st := sim.NewState(cat, cfg)
	st.Time = s.Time
	st.Score = s.Score
	for i := range st.Resources {
		st.Resources[i] = 0
	}
	for name, v := range s.Resources {
		id, ok := cat.ResourceID(name)
		if !ok {
			return nil, fmt.Errorf("snapshot: unknown resource %q", name)
		}
		st.Resources[id] = v
	}
	for name, eff := range s.Effects {
		id, ok := cat.EffectID(name)
		if !ok {
			return nil, fmt.Errorf("snapshot: unknown effect %q", name)
		}
		st.Effects[id] = sim.EffectInstance{
			Remaining: eff.Remaining,
			Stacks:    eff.Stacks,
			ProcAccum: eff.ProcAccum,
			TickIn:    eff.TickIn,
		}
	}
	for name, cd := range s.Cooldowns {
		id, ok := cat.AbilityID(name)
		if !ok {
			return nil, fmt.Errorf("snapshot: unknown ability %q", name)
		}
		st.Cooldowns[id] = cd
	}
	for name, ch := range s.Charges {
		id, ok := cat.AbilityID(name)
		if !ok {
			return nil, fmt.Errorf("snapshot: unknown ability %q", name)
		}
		st.Charges[id] = sim.ChargeState{Current: ch.Current, Recharge: ch.Recharge}
	}
	// History is stored newest-first, matching the live ring.
	hist := make([]catalog.AbilityID, 0, len(s.History))
	for _, name := range s.History {
		id, ok := cat.AbilityID(name)
		if !ok {
			return nil, fmt.Errorf("snapshot: unknown ability %q", name)
		}
		hist = append(hist, id)
	}
	st.History = hist
	return st, nil
}

// #endregion snapshot

// #region trace

// Entry is one recorded decision: the exact pre/post states around it.
type Entry struct {
	Seq       int      `json:"seq"`
	Timestamp float64  `json:"timestamp"`
	Pre       Snapshot `json:"pre"`
	Post      Snapshot `json:"post"`
	Decision  Decision `json:"decision"`
}

// Trace is the canonical artifact of one run.
type Trace struct {
	RunID      string    `json:"run_id"`
	Policy     string    `json:"policy"`
	CreatedAt  time.Time `json:"created_at"`
	TotalScore float64   `json:"total_score"`
	Entries    []Entry   `json:"entries"`
}

// #endregion trace
