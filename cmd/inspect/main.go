package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/kdellison/slotsim/internal/store"
	"github.com/kdellison/slotsim/internal/trace"
)

// #region main

func main() {
	dbPath := flag.String("db", envOr("SLOTSIM_DB", ""), "path to the runs database")
	last := flag.Int("last", 20, "show N most recent runs")
	runID := flag.String("run", "", "show single run detail")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/runs.db [--last N] [--run id] [--json]")
		os.Exit(2)
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if *runID != "" {
		err = runDetailMode(st, *runID, *jsonOut)
	} else {
		err = runListMode(st, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

func runListMode(st *store.Store, last int, jsonOut bool) error {
	runs, err := st.ListRuns(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}
	if jsonOut {
		return printJSON(runs)
	}

	fmt.Printf("%-10s  %-10s  %8s  %9s  %s\n", "Run", "Policy", "Entries", "Score", "Time")
	fmt.Printf("%-10s+-%-10s+-%8s+-%9s+-%s\n",
		"----------", "----------", "--------", "---------", "--------------------")
	for _, m := range runs {
		fmt.Printf("%-10s  %-10s  %8d  %9.2f  %s\n",
			shortID(m.RunID), m.Policy, m.EntryCount, m.TotalScore,
			m.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailRow struct {
	Seq       int     `json:"seq"`
	Timestamp float64 `json:"timestamp"`
	Ability   string  `json:"ability"`
	Instant   bool    `json:"instant,omitempty"`
	Gain      float64 `json:"gain"`
	Rationale string  `json:"rationale,omitempty"`
}

func runDetailMode(st *store.Store, runID string, jsonOut bool) error {
	tr, err := st.LoadTrace(runID)
	if err != nil {
		return err
	}

	rows := make([]detailRow, len(tr.Entries))
	for i, e := range tr.Entries {
		rows[i] = detailRow{
			Seq:       e.Seq,
			Timestamp: e.Timestamp,
			Ability:   e.Decision.Ability,
			Instant:   e.Decision.Instant,
			Gain:      e.Post.Score - e.Pre.Score,
			Rationale: e.Decision.Rationale,
		}
	}

	if jsonOut {
		return printJSON(struct {
			Run     *trace.Trace `json:"run"`
			Entries []detailRow  `json:"entries"`
		}{&trace.Trace{RunID: tr.RunID, Policy: tr.Policy, CreatedAt: tr.CreatedAt, TotalScore: tr.TotalScore}, rows})
	}

	fmt.Printf("Run:     %s\n", tr.RunID)
	fmt.Printf("Policy:  %s\n", tr.Policy)
	fmt.Printf("Created: %s\n", tr.CreatedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Printf("Score:   %.2f\n\n", tr.TotalScore)

	fmt.Printf("%5s  %8s  %-20s  %8s  %s\n", "Seq", "Time", "Ability", "Gain", "Rationale")
	fmt.Printf("%5s+-%8s+-%-20s+-%8s+-%s\n",
		"-----", "--------", "--------------------", "--------", "--------------------")
	for _, r := range rows {
		name := r.Ability
		if r.Instant {
			name += " *"
		}
		fmt.Printf("%5d  %8.3f  %-20s  %8.2f  %s\n", r.Seq, r.Timestamp, name, r.Gain, r.Rationale)
	}
	fmt.Println("\n(* = off-slot trigger)")

	reports, err := st.LoadReports(runID)
	if err != nil {
		return err
	}
	if len(reports) > 0 {
		s := reports[0].Summary
		fmt.Printf("\nLatest comparison: %d/%d disagree, agreement %.1f%%, total impact %.2f%%\n",
			s.Disagreements, s.Decisions, s.AgreementRate*100, s.TotalImpact*100)
	}
	return nil
}

// #endregion detail-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion output
