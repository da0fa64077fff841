package catalog

// #region imports
import (
	"fmt"
)

// #endregion

// #region catalog

// Catalog is the immutable domain table set for a run: resources, effects,
// and abilities with all cross-references resolved to IDs.
type Catalog struct {
	Resources []ResourceSpec
	Effects   []EffectSpec
	Abilities []AbilitySpec

	// TriggerOrder lists instant abilities in the explicit order the
	// off-slot trigger pass checks them.
	TriggerOrder []AbilityID

	// Filler is the always-available fallback action.
	Filler AbilityID

	resourceByName map[string]ResourceID
	effectByName   map[string]EffectID
	abilityByName  map[string]AbilityID
}

// #endregion catalog

// #region lookups

// ResourceID resolves a resource name. Returns false if unknown.
func (c *Catalog) ResourceID(name string) (ResourceID, bool) {
	id, ok := c.resourceByName[name]
	return id, ok
}

// EffectID resolves an effect name. Returns false if unknown.
func (c *Catalog) EffectID(name string) (EffectID, bool) {
	id, ok := c.effectByName[name]
	return id, ok
}

// AbilityID resolves an ability name. Returns false if unknown.
func (c *Catalog) AbilityID(name string) (AbilityID, bool) {
	id, ok := c.abilityByName[name]
	return id, ok
}

// AbilityName returns the name for an ID, or "" for NoAbility.
func (c *Catalog) AbilityName(id AbilityID) string {
	if id < 0 || int(id) >= len(c.Abilities) {
		return ""
	}
	return c.Abilities[id].Name
}

// EffectName returns the name for an ID, or "" for NoEffect.
func (c *Catalog) EffectName(id EffectID) string {
	if id < 0 || int(id) >= len(c.Effects) {
		return ""
	}
	return c.Effects[id].Name
}

// ResourceName returns the name for an ID.
func (c *Catalog) ResourceName(id ResourceID) string {
	if id < 0 || int(id) >= len(c.Resources) {
		return ""
	}
	return c.Resources[id].Name
}

// #endregion lookups

// #region validate

// validate enforces structural invariants after resolution.
func (c *Catalog) validate() error {
	fillers := 0
	for i := range c.Abilities {
		a := &c.Abilities[i]
		if a.Filler {
			fillers++
			c.Filler = a.ID
			if a.Instant {
				return fmt.Errorf("ability %q: filler cannot be instant", a.Name)
			}
			if len(a.Costs) > 0 || a.Cooldown > 0 || a.Charges.Max > 0 {
				return fmt.Errorf("ability %q: filler must have no costs, cooldown, or charges", a.Name)
			}
			if a.BaseDuration <= 0 {
				return fmt.Errorf("ability %q: filler needs a positive duration", a.Name)
			}
		}
		if !a.Instant && !a.Filler && a.BaseDuration <= 0 {
			return fmt.Errorf("ability %q: slot abilities need a positive duration", a.Name)
		}
		if a.Instant && a.BaseDuration != 0 {
			return fmt.Errorf("ability %q: instant abilities have no slot duration", a.Name)
		}
		if a.Charges.Max > 0 && a.Charges.Recharge <= 0 {
			return fmt.Errorf("ability %q: charges need a positive recharge time", a.Name)
		}
	}
	if fillers != 1 {
		return fmt.Errorf("catalog needs exactly one filler ability, found %d", fillers)
	}
	for _, id := range c.TriggerOrder {
		if !c.Abilities[id].Instant {
			return fmt.Errorf("ability %q: trigger order may only list instant abilities", c.Abilities[id].Name)
		}
	}
	// Every instant ability must be reachable through the trigger pass.
	ordered := make(map[AbilityID]bool, len(c.TriggerOrder))
	for _, id := range c.TriggerOrder {
		ordered[id] = true
	}
	for i := range c.Abilities {
		if c.Abilities[i].Instant && !ordered[c.Abilities[i].ID] {
			return fmt.Errorf("ability %q: instant ability missing from trigger order", c.Abilities[i].Name)
		}
	}
	for i := range c.Effects {
		e := &c.Effects[i]
		if e.Kind == KindDot && (e.TickPeriod <= 0) {
			return fmt.Errorf("effect %q: dots need a positive tick period", e.Name)
		}
		if e.ProcRate > 0 && e.ProcEffect == NoEffect {
			return fmt.Errorf("effect %q: proc rate set without a proc target", e.Name)
		}
	}
	for i := range c.Resources {
		if c.Resources[i].Cap <= 0 {
			return fmt.Errorf("resource %q: cap must be positive", c.Resources[i].Name)
		}
	}
	return nil
}

// #endregion validate

// #region run-config

// RunConfig is the immutable per-run configuration. It is shared by
// reference across state clones and never mutated mid-run.
type RunConfig struct {
	// Duration bounds simulated time in seconds. 0 = unbounded.
	Duration float64 `yaml:"duration"`

	// SpeedMult divides slot durations (>1 = faster). 0 defaults to 1.
	SpeedMult float64 `yaml:"speed_mult"`

	// TargetCount scales per-target payoffs. 0 defaults to 1.
	TargetCount int `yaml:"target_count"`

	// HistoryDepth bounds the action history ring. 0 defaults to 8.
	HistoryDepth int `yaml:"history_depth"`

	// StartResources overrides the catalog's per-resource starting level.
	StartResources map[string]float64 `yaml:"start_resources"`

	// Options enables optional abilities/modifiers by name.
	Options map[string]bool `yaml:"options"`
}

// DefaultRunConfig returns an unbounded single-target run at normal speed.
func DefaultRunConfig() RunConfig {
	return RunConfig{SpeedMult: 1, TargetCount: 1, HistoryDepth: 8}
}

// Speed returns the effective speed multiplier.
func (rc *RunConfig) Speed() float64 {
	if rc.SpeedMult <= 0 {
		return 1
	}
	return rc.SpeedMult
}

// Targets returns the effective target count.
func (rc *RunConfig) Targets() int {
	if rc.TargetCount < 1 {
		return 1
	}
	return rc.TargetCount
}

// Enabled reports whether an optional ability/modifier is switched on.
func (rc *RunConfig) Enabled(name string) bool {
	return rc.Options[name]
}

// #endregion run-config
