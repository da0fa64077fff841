package catalog

// #region imports
import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// #endregion

// #region yaml-doc

// catalogDoc is the raw YAML shape before name resolution.
type catalogDoc struct {
	Resources []struct {
		Name        string  `yaml:"name"`
		Cap         float64 `yaml:"cap"`
		RegenPerSec float64 `yaml:"regen_per_sec"`
		Start       float64 `yaml:"start"`
	} `yaml:"resources"`

	Effects []struct {
		Name       string  `yaml:"name"`
		Kind       string  `yaml:"kind"`
		MaxStacks  int     `yaml:"max_stacks"`
		TickPeriod float64 `yaml:"tick_period"`
		TickScore  float64 `yaml:"tick_score"`
		ScoreMult  float64 `yaml:"score_mult"`
		ProcRate   float64 `yaml:"proc_rate"`
		ProcGrants *struct {
			Effect string `yaml:"effect"`
			Stacks int    `yaml:"stacks"`
		} `yaml:"proc_grants"`
		ExpireGrants []amountDoc `yaml:"expire_grants"`
	} `yaml:"effects"`

	Abilities []struct {
		Name             string      `yaml:"name"`
		Instant          bool        `yaml:"instant"`
		TriggerCondition string      `yaml:"trigger_if"`
		Duration         float64     `yaml:"duration"`
		FixedDuration    bool        `yaml:"fixed_duration"`
		Cooldown         float64     `yaml:"cooldown"`
		Charges          int         `yaml:"charges"`
		Recharge         float64     `yaml:"recharge"`
		Costs            []amountDoc `yaml:"costs"`
		Grants           []amountDoc `yaml:"grants"`
		Score            float64     `yaml:"score"`
		PerTargetScore   float64     `yaml:"per_target_score"`
		Applies          []struct {
			Effect   string  `yaml:"effect"`
			Duration float64 `yaml:"duration"`
			Stacks   int     `yaml:"stacks"`
			Extend   bool    `yaml:"extend"`
		} `yaml:"applies"`
		Removes    []string `yaml:"removes"`
		Transition *struct {
			Effect  string `yaml:"effect"`
			Require int    `yaml:"require"`
			Advance int    `yaml:"advance"`
			WrapAt  int    `yaml:"wrap_at"`
		} `yaml:"transition"`
		RequireEffect string `yaml:"require_effect"`
		RequireStacks int    `yaml:"require_stacks"`
		Filler        bool   `yaml:"filler"`
		Optional      bool   `yaml:"optional"`
	} `yaml:"abilities"`

	TriggerOrder []string `yaml:"trigger_order"`
}

type amountDoc struct {
	Resource string  `yaml:"resource"`
	Amount   float64 `yaml:"amount"`
}

// #endregion yaml-doc

// #region load

// LoadCatalog reads and resolves a catalog YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog resolves a catalog document: names intern to dense IDs and
// every cross-reference is checked so the simulator never sees a dangling
// name at runtime.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc catalogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{
		Filler:         NoAbility,
		resourceByName: make(map[string]ResourceID, len(doc.Resources)),
		effectByName:   make(map[string]EffectID, len(doc.Effects)),
		abilityByName:  make(map[string]AbilityID, len(doc.Abilities)),
	}

	for i, r := range doc.Resources {
		if _, dup := c.resourceByName[r.Name]; dup {
			return nil, fmt.Errorf("duplicate resource %q", r.Name)
		}
		id := ResourceID(i)
		c.resourceByName[r.Name] = id
		c.Resources = append(c.Resources, ResourceSpec{
			ID: id, Name: r.Name, Cap: r.Cap, RegenPerSec: r.RegenPerSec, Start: r.Start,
		})
	}

	// First pass assigns effect IDs so proc targets can reference forward.
	for i, e := range doc.Effects {
		if _, dup := c.effectByName[e.Name]; dup {
			return nil, fmt.Errorf("duplicate effect %q", e.Name)
		}
		c.effectByName[e.Name] = EffectID(i)
	}
	for i, e := range doc.Effects {
		spec := EffectSpec{
			ID:         EffectID(i),
			Name:       e.Name,
			Kind:       EffectKind(e.Kind),
			MaxStacks:  e.MaxStacks,
			TickPeriod: e.TickPeriod,
			TickScore:  e.TickScore,
			ScoreMult:  e.ScoreMult,
			ProcRate:   e.ProcRate,
			ProcEffect: NoEffect,
		}
		if spec.Kind == "" {
			spec.Kind = KindBuff
		}
		if spec.ScoreMult == 0 {
			spec.ScoreMult = 1
		}
		if e.ProcGrants != nil {
			id, ok := c.effectByName[e.ProcGrants.Effect]
			if !ok {
				return nil, fmt.Errorf("effect %q: unknown proc target %q", e.Name, e.ProcGrants.Effect)
			}
			spec.ProcEffect = id
			spec.ProcStacks = e.ProcGrants.Stacks
			if spec.ProcStacks == 0 {
				spec.ProcStacks = 1
			}
		}
		for _, g := range e.ExpireGrants {
			amt, err := c.resolveAmount(g)
			if err != nil {
				return nil, fmt.Errorf("effect %q: %w", e.Name, err)
			}
			spec.ExpireGrants = append(spec.ExpireGrants, amt)
		}
		c.Effects = append(c.Effects, spec)
	}

	for i, a := range doc.Abilities {
		if _, dup := c.abilityByName[a.Name]; dup {
			return nil, fmt.Errorf("duplicate ability %q", a.Name)
		}
		id := AbilityID(i)
		c.abilityByName[a.Name] = id
		spec := AbilitySpec{
			ID:               id,
			Name:             a.Name,
			Instant:          a.Instant,
			TriggerCondition: a.TriggerCondition,
			BaseDuration:     a.Duration,
			FixedDuration:    a.FixedDuration,
			Cooldown:         a.Cooldown,
			Charges:          ChargeSpec{Max: a.Charges, Recharge: a.Recharge},
			BaseScore:        a.Score,
			PerTargetScore:   a.PerTargetScore,
			RequireEffect:    NoEffect,
			RequireStacks:    a.RequireStacks,
			Filler:           a.Filler,
			Optional:         a.Optional,
		}
		var err error
		if spec.Costs, err = c.resolveAmounts(a.Costs); err != nil {
			return nil, fmt.Errorf("ability %q: %w", a.Name, err)
		}
		if spec.Grants, err = c.resolveAmounts(a.Grants); err != nil {
			return nil, fmt.Errorf("ability %q: %w", a.Name, err)
		}
		for _, app := range a.Applies {
			eid, ok := c.effectByName[app.Effect]
			if !ok {
				return nil, fmt.Errorf("ability %q: unknown effect %q", a.Name, app.Effect)
			}
			stacks := app.Stacks
			if stacks == 0 {
				stacks = 1
			}
			spec.Applies = append(spec.Applies, EffectApplication{
				Effect: eid, Duration: app.Duration, Stacks: stacks, Extend: app.Extend,
			})
		}
		for _, rm := range a.Removes {
			eid, ok := c.effectByName[rm]
			if !ok {
				return nil, fmt.Errorf("ability %q: unknown effect %q", a.Name, rm)
			}
			spec.Removes = append(spec.Removes, eid)
		}
		if a.Transition != nil {
			eid, ok := c.effectByName[a.Transition.Effect]
			if !ok {
				return nil, fmt.Errorf("ability %q: unknown transition effect %q", a.Name, a.Transition.Effect)
			}
			spec.Transition = &StackTransition{
				Effect:  eid,
				Require: a.Transition.Require,
				Advance: a.Transition.Advance,
				WrapAt:  a.Transition.WrapAt,
			}
		}
		if a.RequireEffect != "" {
			eid, ok := c.effectByName[a.RequireEffect]
			if !ok {
				return nil, fmt.Errorf("ability %q: unknown required effect %q", a.Name, a.RequireEffect)
			}
			spec.RequireEffect = eid
			if spec.RequireStacks == 0 {
				spec.RequireStacks = 1
			}
		}
		c.Abilities = append(c.Abilities, spec)
	}

	for _, name := range doc.TriggerOrder {
		id, ok := c.abilityByName[name]
		if !ok {
			return nil, fmt.Errorf("trigger order: unknown ability %q", name)
		}
		c.TriggerOrder = append(c.TriggerOrder, id)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadRunConfig reads a run configuration YAML file.
func LoadRunConfig(path string) (RunConfig, error) {
	rc := DefaultRunConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return rc, fmt.Errorf("read run config: %w", err)
	}
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return rc, fmt.Errorf("parse run config: %w", err)
	}
	return rc, nil
}

// #endregion load

// #region helpers

func (c *Catalog) resolveAmount(d amountDoc) (ResourceAmount, error) {
	id, ok := c.resourceByName[d.Resource]
	if !ok {
		return ResourceAmount{}, fmt.Errorf("unknown resource %q", d.Resource)
	}
	return ResourceAmount{Resource: id, Amount: d.Amount}, nil
}

func (c *Catalog) resolveAmounts(docs []amountDoc) ([]ResourceAmount, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	out := make([]ResourceAmount, 0, len(docs))
	for _, d := range docs {
		amt, err := c.resolveAmount(d)
		if err != nil {
			return nil, err
		}
		out = append(out, amt)
	}
	return out, nil
}

// #endregion helpers
