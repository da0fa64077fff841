// Package divergence reconciles two policies over one recorded trace: every
// slot decision point is reconstructed exactly from its snapshot, re-asked
// against the rollout policy, and disagreements are grouped, costed, and
// ranked by aggregate impact.
package divergence

// #region imports
import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/kdellison/slotsim/internal/catalog"
	"github.com/kdellison/slotsim/internal/rollout"
	"github.com/kdellison/slotsim/internal/trace"
)

// #endregion

// #region types

// Record is one grouped disagreement: the recorded choice, the rollout's
// choice, and the cost of the gap across all occurrences.
type Record struct {
	Chosen   string  `json:"chosen" csv:"chosen"`
	Optimal  string  `json:"optimal" csv:"optimal"`
	Count    int     `json:"count" csv:"count"`
	MeanGap  float64 `json:"mean_gap" csv:"mean_gap"`
	MaxGap   float64 `json:"max_gap" csv:"max_gap"`
	TotalGap float64 `json:"total_gap" csv:"total_gap"`
	// Impact estimates the aggregate share of the trace's total score
	// lost to this disagreement: Σgap / total trace score.
	Impact   float64        `json:"impact" csv:"impact"`
	FirstSeq int            `json:"first_seq" csv:"first_seq"`
	Example  trace.Snapshot `json:"example" csv:"-"`
}

// Summary aggregates a comparison run.
type Summary struct {
	Decisions     int     `json:"decisions"`
	Disagreements int     `json:"disagreements"`
	Skipped       int     `json:"skipped,omitempty"`
	AgreementRate float64 `json:"agreement_rate"`
	TotalGap      float64 `json:"total_gap"`
	TotalImpact   float64 `json:"total_impact"`
	GapMean       float64 `json:"gap_mean"`
	GapStddev     float64 `json:"gap_stddev"`
	GapP50        float64 `json:"gap_p50"`
	GapP90        float64 `json:"gap_p90"`
}

// Report is the ranked comparison output.
type Report struct {
	RunID   string   `json:"run_id"`
	Summary Summary  `json:"summary"`
	Records []Record `json:"records"`

	// Choices maps trace seq to the rollout's choice at that point, for
	// regression fixtures pinning expected picks.
	Choices map[int]string `json:"-"`
}

// #endregion types

// #region compare

// Compare replays a recorded trace against the rollout policy. Each
// pre-decision state restores from its snapshot — never from replaying
// earlier ticks — so one disagreement cannot drift the rest of the
// comparison. The gap is always the rollout's own valuation of its choice
// minus its valuation of the recorded choice, which is non-negative by
// construction.
func Compare(tr *trace.Trace, rp *rollout.Policy, cat *catalog.Catalog, cfg *catalog.RunConfig) (*Report, error) {
	if tr == nil || len(tr.Entries) == 0 {
		return nil, fmt.Errorf("compare: empty trace")
	}

	report := &Report{RunID: tr.RunID, Choices: make(map[int]string)}
	groups := make(map[[2]string]*Record)
	var gaps []float64

	for i := range tr.Entries {
		entry := &tr.Entries[i]
		if entry.Decision.Instant {
			// Off-slot triggers are forced by the trigger list, not chosen
			// by the policy under test; nothing to reconcile.
			continue
		}
		report.Summary.Decisions++

		st, err := entry.Pre.Restore(cat, cfg)
		if err != nil {
			report.Summary.Skipped++
			continue
		}
		chosenID, ok := cat.AbilityID(entry.Decision.Ability)
		if !ok {
			report.Summary.Skipped++
			continue
		}

		dec, ok := rp.Decide(st)
		if !ok {
			report.Summary.Skipped++
			continue
		}
		report.Choices[entry.Seq] = dec.Ability
		if dec.Ability == entry.Decision.Ability {
			continue
		}

		optimalID, _ := cat.AbilityID(dec.Ability)
		gap := rp.ScoreAction(st, optimalID) - rp.ScoreAction(st, chosenID)
		gaps = append(gaps, gap)

		key := [2]string{entry.Decision.Ability, dec.Ability}
		rec, seen := groups[key]
		if !seen {
			rec = &Record{
				Chosen:   entry.Decision.Ability,
				Optimal:  dec.Ability,
				FirstSeq: entry.Seq,
				Example:  entry.Pre,
			}
			groups[key] = rec
		}
		rec.Count++
		rec.TotalGap += gap
		if gap > rec.MaxGap {
			rec.MaxGap = gap
		}
	}

	finalize(report, groups, gaps, tr.TotalScore)
	return report, nil
}

// finalize folds the groups into a ranked record list and computes the
// gap distribution statistics.
func finalize(report *Report, groups map[[2]string]*Record, gaps []float64, totalScore float64) {
	s := &report.Summary
	s.Disagreements = len(gaps)
	compared := s.Decisions - s.Skipped
	if compared > 0 {
		s.AgreementRate = float64(compared-s.Disagreements) / float64(compared)
	}

	for _, rec := range groups {
		rec.MeanGap = rec.TotalGap / float64(rec.Count)
		if totalScore > 0 {
			rec.Impact = rec.TotalGap / totalScore
		}
		s.TotalGap += rec.TotalGap
		report.Records = append(report.Records, *rec)
	}
	if totalScore > 0 {
		s.TotalImpact = s.TotalGap / totalScore
	}

	sort.Slice(report.Records, func(i, j int) bool {
		if report.Records[i].Impact != report.Records[j].Impact {
			return report.Records[i].Impact > report.Records[j].Impact
		}
		return report.Records[i].FirstSeq < report.Records[j].FirstSeq
	})

	if len(gaps) > 0 {
		s.GapMean = stat.Mean(gaps, nil)
		s.GapStddev = stat.StdDev(gaps, nil)
		sorted := append([]float64(nil), gaps...)
		sort.Float64s(sorted)
		s.GapP50 = stat.Quantile(0.5, stat.Empirical, sorted, nil)
		s.GapP90 = stat.Quantile(0.9, stat.Empirical, sorted, nil)
	}
}

// #endregion compare

// #region expected

// Mismatch reports a regression fixture expectation that did not hold.
type Mismatch struct {
	Seq      int
	Expected string
	Actual   string
}

// CheckExpected verifies a fixture's pinned choices against a report.
func CheckExpected(f *trace.Fixture, report *Report) []Mismatch {
	var out []Mismatch
	for _, exp := range f.Expected {
		actual, ok := report.Choices[exp.Seq]
		if !ok || actual != exp.Ability {
			out = append(out, Mismatch{Seq: exp.Seq, Expected: exp.Ability, Actual: actual})
		}
	}
	return out
}

// #endregion expected
