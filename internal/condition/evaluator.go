package condition

// #region imports
import (
	"log/slog"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/kdellison/slotsim/internal/sim"
)

// #endregion

// #region evaluator

// Evaluator compiles condition/expression sources once and runs them against
// per-decision envs. Compiled programs are immutable, so concurrent rollout
// projections may share one Evaluator; only the cache itself is guarded.
type Evaluator struct {
	mu       sync.RWMutex
	boolProg map[string]*vm.Program // nil entry = known-bad source
	numProg  map[string]*vm.Program
}

// NewEvaluator returns an empty evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		boolProg: make(map[string]*vm.Program),
		numProg:  make(map[string]*vm.Program),
	}
}

// #endregion evaluator

// #region bool

// Bool evaluates a condition source against the state. Malformed or failing
// sources return false — a rule that cannot be evaluated is skipped, never
// fatal. Implements sim.TriggerEvaluator.
func (e *Evaluator) Bool(src string, st *sim.State, vars map[string]float64) bool {
	if src == "" {
		return true
	}
	prog := e.compile(src, true)
	if prog == nil {
		return false
	}
	out, err := vm.Run(prog, NewEnv(st, vars))
	if err != nil {
		slog.Warn("condition evaluation failed", "expr", src, "error", err)
		return false
	}
	b, ok := out.(bool)
	return ok && b
}

// #endregion bool

// #region number

// Number evaluates an arithmetic source against the state. Malformed or
// failing sources return (0, false).
func (e *Evaluator) Number(src string, st *sim.State, vars map[string]float64) (float64, bool) {
	prog := e.compile(src, false)
	if prog == nil {
		return 0, false
	}
	out, err := vm.Run(prog, NewEnv(st, vars))
	if err != nil {
		slog.Warn("expression evaluation failed", "expr", src, "error", err)
		return 0, false
	}
	switch v := out.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		slog.Warn("expression yielded non-numeric result", "expr", src)
		return 0, false
	}
}

// #endregion number

// #region compile

// compile returns the cached program for a source, compiling on first use.
// Compile failures cache as nil so a bad rule logs once, not per decision.
func (e *Evaluator) compile(src string, asBool bool) *vm.Program {
	cache := e.numProg
	if asBool {
		cache = e.boolProg
	}

	e.mu.RLock()
	prog, seen := cache[src]
	e.mu.RUnlock()
	if seen {
		return prog
	}

	opts := []expr.Option{expr.Env(Env{})}
	if asBool {
		opts = append(opts, expr.AsBool())
	}
	compiled, err := expr.Compile(normalizeEquality(src), opts...)
	if err != nil {
		slog.Warn("condition compile failed", "expr", src, "error", err)
		compiled = nil
	}

	e.mu.Lock()
	cache[src] = compiled
	e.mu.Unlock()
	return compiled
}

// normalizeEquality rewrites a standalone = to == so both equality spellings
// evaluate the same. Compound operators (==, !=, >=, <=) and quoted strings
// pass through untouched.
func normalizeEquality(src string) string {
	var out []byte
	var quote byte
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '=':
			prevOp := i > 0 && (src[i-1] == '=' || src[i-1] == '!' || src[i-1] == '<' || src[i-1] == '>')
			nextEq := i+1 < len(src) && src[i+1] == '='
			if !prevOp && !nextEq {
				out = append(out, '=', '=')
				continue
			}
		}
		out = append(out, c)
	}
	return string(out)
}

// #endregion compile
