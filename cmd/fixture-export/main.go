package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

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
	dbPath := flag.String("db", envOr("SLOTSIM_DB", ""), "path to the runs database")
	runID := flag.String("run-id", "", "run to export")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *catalogPath == "" || *dbPath == "" || *runID == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --catalog catalog.yaml --db runs.db --run-id <id> --out path/to/fixture.json")
		os.Exit(2)
	}

	if err := run(*catalogPath, *runPath, *dbPath, *runID, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region export

// run loads a stored trace and pins the rollout policy's current choice at
// every slot decision point, so future policy changes that alter any choice
// fail the fixture instead of drifting silently.
func run(catalogPath, runPath, dbPath, runID, outPath string) error {
	cat, err := catalog.LoadCatalog(catalogPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	runCfg := catalog.DefaultRunConfig()
	if runPath != "" {
		runCfg, err = catalog.LoadRunConfig(runPath)
		if err != nil {
			return fmt.Errorf("load run config: %w", err)
		}
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	tr, err := st.LoadTrace(runID)
	if err != nil {
		return fmt.Errorf("load trace: %w", err)
	}

	rp := rollout.New(rollout.DefaultConfig(), condition.NewEvaluator())
	report, err := divergence.Compare(tr, rp, cat, &runCfg)
	if err != nil {
		return fmt.Errorf("compare: %w", err)
	}

	fixture := &trace.Fixture{
		Description: fmt.Sprintf("Export of run %s (%s policy, %d entries)", tr.RunID, tr.Policy, len(tr.Entries)),
		Trace:       *tr,
		Expected:    pinnedChoices(report),
	}
	if err := trace.SaveFixture(outPath, fixture); err != nil {
		return err
	}

	fmt.Printf("Wrote fixture to %s (%d entries, %d pinned choices)\n",
		outPath, len(tr.Entries), len(fixture.Expected))
	return nil
}

// pinnedChoices flattens the report's per-seq choices in seq order.
func pinnedChoices(report *divergence.Report) []trace.ExpectedChoice {
	seqs := make([]int, 0, len(report.Choices))
	for seq := range report.Choices {
		seqs = append(seqs, seq)
	}
	sort.Ints(seqs)

	out := make([]trace.ExpectedChoice, len(seqs))
	for i, seq := range seqs {
		out[i] = trace.ExpectedChoice{Seq: seq, Ability: report.Choices[seq]}
	}
	return out
}

// #endregion export

// #region env

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion env
