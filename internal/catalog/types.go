package catalog

// #region identifiers

// AbilityID indexes the catalog's ability table. IDs are assigned at load
// time in catalog order, so all per-ability state can live in fixed-size
// slices instead of string-keyed maps.
type AbilityID int

// EffectID indexes the catalog's effect table (buffs, debuffs, dots,
// and pure stack counters).
type EffectID int

// ResourceID indexes the catalog's resource table.
type ResourceID int

// NoAbility and NoEffect mark unresolved or absent references.
const (
	NoAbility AbilityID = -1
	NoEffect  EffectID  = -1
)

// #endregion identifiers

// #region effect-kind

// EffectKind classifies a timed effect.
type EffectKind string

const (
	KindBuff    EffectKind = "buff"
	KindDebuff  EffectKind = "debuff"
	KindDot     EffectKind = "dot"
	KindCounter EffectKind = "counter" // pure stack machine, no duration
)

// #endregion effect-kind

// #region resource-spec

// ResourceSpec defines one bounded resource pool.
type ResourceSpec struct {
	ID          ResourceID
	Name        string
	Cap         float64
	RegenPerSec float64
	Start       float64
}

// ResourceAmount is a cost or grant against a single resource.
type ResourceAmount struct {
	Resource ResourceID
	Amount   float64
}

// #endregion resource-spec

// #region effect-spec

// EffectSpec defines one named effect. Duration is supplied by the ability
// application, not the spec; the spec carries everything that happens while
// the effect is active or when it ends.
type EffectSpec struct {
	ID        EffectID
	Name      string
	Kind      EffectKind
	MaxStacks int // 0 = unstacked (treated as 1)

	// Periodic payoff while active (dots).
	TickPeriod float64
	TickScore  float64

	// Multiplier on ability immediate score while active. 1 = neutral.
	ScoreMult float64

	// Expected-value proc model: ProcRate procs per second accumulate
	// fractionally and grant ProcStacks on ProcEffect each time the
	// accumulator crosses 1.0.
	ProcRate   float64
	ProcEffect EffectID
	ProcStacks int

	// Resources granted exactly once when the effect's timer expires
	// naturally (not when it is consumed by an ability).
	ExpireGrants []ResourceAmount
}

// #endregion effect-spec

// #region ability-spec

// ChargeSpec configures a multi-use ability: Max charges with one charge
// recharging at a time over Recharge seconds.
type ChargeSpec struct {
	Max      int
	Recharge float64
}

// EffectApplication describes an effect an ability applies on use.
type EffectApplication struct {
	Effect   EffectID
	Duration float64
	Stacks   int
	Extend   bool // add to remaining duration instead of refreshing it
}

// StackTransition is one step of a stack-based state machine: the ability
// requires at least Require stacks on Effect, advances the counter by
// Advance, and wraps to zero when the counter reaches WrapAt.
type StackTransition struct {
	Effect  EffectID
	Require int
	Advance int
	WrapAt  int
}

// AbilitySpec defines one ability.
type AbilitySpec struct {
	ID   AbilityID
	Name string

	// Instant abilities fire off-slot via the trigger pass and consume
	// no slot time. TriggerCondition gates when the trigger pass may
	// fire them (empty = whenever available).
	Instant          bool
	TriggerCondition string

	// Slot length in seconds before the speed multiplier. FixedDuration
	// exempts the ability from speed scaling.
	BaseDuration  float64
	FixedDuration bool

	Cooldown float64
	Charges  ChargeSpec // Max 0 = not charge-based

	Costs  []ResourceAmount
	Grants []ResourceAmount

	// Immediate payoff: BaseScore plus PerTargetScore for every target
	// beyond the first.
	BaseScore      float64
	PerTargetScore float64

	Applies    []EffectApplication
	Removes    []EffectID
	Transition *StackTransition

	// Availability gate beyond resources/cooldown/charges.
	RequireEffect EffectID
	RequireStacks int

	// Filler marks the always-available fallback action.
	Filler bool

	// Optional abilities exist only when enabled in the run config.
	Optional bool
}

// #endregion ability-spec
