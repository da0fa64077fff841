// Package priority interprets an ordered rule list against the state model:
// the first entry whose condition holds and whose ability is available wins
// the decision point. Sub-lists nest with fallthrough or exclusive-branch
// semantics, and a declarative variable block recomputes every pass.
package priority

// #region imports
import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kdellison/slotsim/internal/catalog"
)

// #endregion

// #region entry

// Kind discriminates rule-list entries.
type Kind int

const (
	KindAction Kind = iota
	KindVariable
	KindSubList
)

// Mode controls what happens after a sub-list yields no action.
type Mode int

const (
	// Fallthrough resumes the caller's scan when the sub-list fires nothing.
	Fallthrough Mode = iota
	// Exclusive never returns control to the caller's remaining entries.
	Exclusive
)

// Entry is one rule-list element. Exactly one of the kind-specific field
// groups is meaningful, per Kind.
type Entry struct {
	Kind      Kind
	Condition string // empty = always

	// KindAction
	Ability     catalog.AbilityID // NoAbility when the name did not resolve
	AbilityName string

	// KindVariable
	VarName    string
	Expression string

	// KindSubList
	SubList string
	Mode    Mode
}

// List is a named, ordered sequence of entries. Immutable once loaded.
type List struct {
	Name    string
	Entries []Entry
}

// RuleSet is the full rule AST: named lists plus the entry list to start
// scanning from.
type RuleSet struct {
	Main  string
	Lists map[string]*List
}

// #endregion entry

// #region yaml

// ruleSetDoc is the YAML interchange shape for an already-parsed rule AST.
type ruleSetDoc struct {
	Main  string                `yaml:"main"`
	Lists map[string][]entryDoc `yaml:"lists"`
}

type entryDoc struct {
	Action    string `yaml:"action"`
	Var       string `yaml:"var"`
	Value     string `yaml:"value"`
	Call      string `yaml:"call"`
	Mode      string `yaml:"mode"`
	Condition string `yaml:"if"`
}

// LoadRuleSet reads and resolves a rule-set YAML file against a catalog.
func LoadRuleSet(path string, cat *catalog.Catalog) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule set: %w", err)
	}
	return ParseRuleSet(data, cat)
}

// ParseRuleSet resolves a rule-set document. An action naming an unknown
// ability is kept but can never fire (malformed rules degrade, they do not
// abort); structural problems like a missing main list are errors.
func ParseRuleSet(data []byte, cat *catalog.Catalog) (*RuleSet, error) {
	var doc ruleSetDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rule set: %w", err)
	}
	if doc.Main == "" {
		doc.Main = "default"
	}
	rs := &RuleSet{Main: doc.Main, Lists: make(map[string]*List, len(doc.Lists))}
	for name, entries := range doc.Lists {
		list := &List{Name: name}
		for i, e := range entries {
			entry, err := resolveEntry(e, cat)
			if err != nil {
				return nil, fmt.Errorf("list %q entry %d: %w", name, i, err)
			}
			list.Entries = append(list.Entries, entry)
		}
		rs.Lists[name] = list
	}
	if _, ok := rs.Lists[rs.Main]; !ok {
		return nil, fmt.Errorf("rule set: main list %q not defined", rs.Main)
	}
	return rs, nil
}

func resolveEntry(e entryDoc, cat *catalog.Catalog) (Entry, error) {
	switch {
	case e.Action != "":
		id, ok := cat.AbilityID(e.Action)
		if !ok {
			slog.Warn("rule references unknown ability; it will never fire", "ability", e.Action)
			id = catalog.NoAbility
		}
		return Entry{Kind: KindAction, Ability: id, AbilityName: e.Action, Condition: e.Condition}, nil
	case e.Var != "":
		if e.Value == "" {
			return Entry{}, fmt.Errorf("variable %q has no value expression", e.Var)
		}
		return Entry{Kind: KindVariable, VarName: e.Var, Expression: e.Value, Condition: e.Condition}, nil
	case e.Call != "":
		mode := Fallthrough
		switch e.Mode {
		case "", "fallthrough":
		case "exclusive":
			mode = Exclusive
		default:
			return Entry{}, fmt.Errorf("unknown sub-list mode %q", e.Mode)
		}
		return Entry{Kind: KindSubList, SubList: e.Call, Mode: mode, Condition: e.Condition}, nil
	default:
		return Entry{}, fmt.Errorf("entry needs one of action, var, or call")
	}
}

// #endregion yaml
