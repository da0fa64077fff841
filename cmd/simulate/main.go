package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kdellison/slotsim/internal/catalog"
	"github.com/kdellison/slotsim/internal/condition"
	"github.com/kdellison/slotsim/internal/priority"
	"github.com/kdellison/slotsim/internal/rollout"
	"github.com/kdellison/slotsim/internal/runner"
	"github.com/kdellison/slotsim/internal/store"
	"github.com/kdellison/slotsim/internal/trace"
)

// #region main

func main() {
	catalogPath := flag.String("catalog", "", "path to ability catalog YAML")
	runPath := flag.String("run", "", "path to run configuration YAML (optional)")
	rulesPath := flag.String("rules", "", "path to priority rule-set YAML (priority policy)")
	policyName := flag.String("policy", "priority", "policy to run: priority or rollout")
	outPath := flag.String("out", "", "write the trace as JSON to this path")
	dbPath := flag.String("db", envOr("SLOTSIM_DB", ""), "persist the trace to this SQLite database")
	horizon := flag.Float64("horizon", rollout.DefaultConfig().Horizon, "rollout continuation horizon in seconds")
	lookahead := flag.Int("lookahead", rollout.DefaultConfig().LookaheadSteps, "rollout one-ply lookahead steps")
	discount := flag.Float64("discount", rollout.DefaultConfig().Discount, "rollout per-step discount")
	flag.Parse()

	if *catalogPath == "" {
		fmt.Fprintln(os.Stderr, "usage: simulate --catalog path/to/catalog.yaml [--run run.yaml] --policy priority --rules rules.yaml [--out trace.json] [--db runs.db]")
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

	eval := condition.NewEvaluator()
	var policy runner.Policy
	switch *policyName {
	case "priority":
		if *rulesPath == "" {
			fmt.Fprintln(os.Stderr, "priority policy needs --rules")
			os.Exit(2)
		}
		rules, err := priority.LoadRuleSet(*rulesPath, cat)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load rule set: %v\n", err)
			os.Exit(2)
		}
		policy = priority.New(rules, eval)
	case "rollout":
		cfg := rollout.DefaultConfig()
		cfg.Horizon = *horizon
		cfg.LookaheadSteps = *lookahead
		cfg.Discount = *discount
		policy = rollout.New(cfg, eval)
	default:
		fmt.Fprintf(os.Stderr, "unknown policy %q (want priority or rollout)\n", *policyName)
		os.Exit(2)
	}

	r := runner.New(cat, &runCfg, policy, eval, runner.DefaultConfig())
	r.PolicyName = *policyName
	tr := r.Run()

	if err := emit(tr, *outPath, *dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Run %s complete.\n", tr.RunID)
	fmt.Printf("  Policy:    %s\n", tr.Policy)
	fmt.Printf("  Decisions: %d\n", len(tr.Entries))
	fmt.Printf("  Score:     %.2f\n", tr.TotalScore)
}

// #endregion main

// #region emit

func emit(tr *trace.Trace, outPath, dbPath string) error {
	if outPath != "" {
		if err := trace.SaveTrace(outPath, tr); err != nil {
			return err
		}
		fmt.Printf("  Trace:     %s\n", outPath)
	}
	if dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.SaveTrace(tr); err != nil {
			return err
		}
		fmt.Printf("  DB:        %s\n", dbPath)
	}
	return nil
}

// #endregion emit

// #region env

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion env
