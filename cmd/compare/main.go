package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/kdellison/slotsim/internal/catalog"
	"github.com/kdellison/slotsim/internal/condition"
	"github.com/kdellison/slotsim/internal/divergence"
	"github.com/kdellison/slotsim/internal/rollout"
	"github.com/kdellison/slotsim/internal/store"
	"github.com/kdellison/slotsim/internal/trace"
)

// #region main

func main() {
	catalogPath := flag.String("catalog", "", "path to ability catalog YAML")
	runPath := flag.String("run", "", "path to run configuration YAML (optional)")
	fixturePath := flag.String("fixture", "", "path to trace/fixture JSON (fixture mode)")
	dbPath := flag.String("db", envOr("SLOTSIM_DB", ""), "SQLite database path (DB mode)")
	runID := flag.String("run-id", "", "run to compare (DB mode)")
	saveReport := flag.Bool("save", false, "persist the report to the database (DB mode)")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	csvPath := flag.String("csv", "", "also write disagreement records as CSV")
	horizon := flag.Float64("horizon", rollout.DefaultConfig().Horizon, "rollout continuation horizon in seconds")
	lookahead := flag.Int("lookahead", rollout.DefaultConfig().LookaheadSteps, "rollout one-ply lookahead steps")
	discount := flag.Float64("discount", rollout.DefaultConfig().Discount, "rollout per-step discount")
	flag.Parse()

	fixtureMode := *fixturePath != ""
	dbMode := *dbPath != "" && *runID != ""
	if *catalogPath == "" || fixtureMode == dbMode {
		fmt.Fprintln(os.Stderr, "usage: compare --catalog catalog.yaml --fixture path/to/trace.json")
		fmt.Fprintln(os.Stderr, "       compare --catalog catalog.yaml --db runs.db --run-id <id> [--save]")
		os.Exit(2)
	}

	cat, err := catalog.LoadCatalog(*catalogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load catalog: %v\n", err)
		os.Exit(2)
	}
	runCfg := catalog.DefaultRunConfig()
	if *runPath != "" {
		runCfg, err = catalog.LoadRunConfig(*runPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load run config: %v\n", err)
			os.Exit(2)
		}
	}

	cfg := rollout.DefaultConfig()
	cfg.Horizon = *horizon
	cfg.LookaheadSteps = *lookahead
	cfg.Discount = *discount
	rp := rollout.New(cfg, condition.NewEvaluator())

	var exitCode int
	if fixtureMode {
		exitCode = runFixtureMode(*fixturePath, rp, cat, &runCfg, *jsonOut, *csvPath)
	} else {
		exitCode = runDBMode(*dbPath, *runID, rp, cat, &runCfg, *saveReport, *jsonOut, *csvPath)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region fixture-mode

func runFixtureMode(path string, rp *rollout.Policy, cat *catalog.Catalog, runCfg *catalog.RunConfig, jsonOut bool, csvPath string) int {
	f, err := trace.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}

	report, err := divergence.Compare(&f.Trace, rp, cat, runCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compare: %v\n", err)
		return 2
	}
	if err := emit(report, jsonOut, csvPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	// Pinned expectations turn the comparison into a regression check.
	mismatches := divergence.CheckExpected(f, report)
	for _, m := range mismatches {
		fmt.Printf("MISMATCH seq %d: expected %s, got %s\n", m.Seq, m.Expected, m.Actual)
	}
	if len(mismatches) > 0 {
		return 1
	}
	return 0
}

// #endregion fixture-mode

// #region db-mode

func runDBMode(dbPath, runID string, rp *rollout.Policy, cat *catalog.Catalog, runCfg *catalog.RunConfig, save, jsonOut bool, csvPath string) int {
	st, err := store.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer st.Close()

	tr, err := st.LoadTrace(runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load trace: %v\n", err)
		return 2
	}

	report, err := divergence.Compare(tr, rp, cat, runCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compare: %v\n", err)
		return 2
	}
	if save {
		if err := st.SaveReport(report); err != nil {
			fmt.Fprintf(os.Stderr, "save report: %v\n", err)
			return 1
		}
	}
	if err := emit(report, jsonOut, csvPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// #endregion db-mode

// #region output

func emit(report *divergence.Report, jsonOut bool, csvPath string) error {
	if csvPath != "" {
		if err := writeCSV(report, csvPath); err != nil {
			return err
		}
	}
	if jsonOut {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal json: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}
	printTable(report)
	return nil
}

func writeCSV(report *divergence.Report, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()
	if err := gocsv.MarshalFile(&report.Records, f); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func printTable(report *divergence.Report) {
	s := report.Summary
	fmt.Printf("Run %s: %d decisions, %d disagree (%.1f%% agreement)\n",
		shortID(report.RunID), s.Decisions, s.Disagreements, s.AgreementRate*100)
	if s.Skipped > 0 {
		fmt.Printf("  %d entries skipped (unrestorable or stale)\n", s.Skipped)
	}
	if s.Disagreements == 0 {
		return
	}
	fmt.Printf("Gap: mean %.2f, stddev %.2f, p50 %.2f, p90 %.2f; total impact %.2f%%\n\n",
		s.GapMean, s.GapStddev, s.GapP50, s.GapP90, s.TotalImpact*100)

	fmt.Printf("%-20s| %-20s| %5s| %9s| %9s| %8s\n",
		"Chosen", "Optimal", "Count", "Mean Gap", "Max Gap", "Impact")
	fmt.Printf("%-20s+%-21s+%6s+%10s+%10s+%9s\n",
		"--------------------", "---------------------", "------", "----------", "----------", "---------")
	for _, r := range report.Records {
		fmt.Printf("%-20s| %-20s| %5d| %9.2f| %9.2f| %7.2f%%\n",
			r.Chosen, r.Optimal, r.Count, r.MeanGap, r.MaxGap, r.Impact*100)
	}
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
