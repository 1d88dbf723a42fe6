// Utility decision engine. Every tick each entity scores a closed set of
// actions from its drives, personality, the fields underfoot and its
// psychological signals, then takes the best one.
package agents

import (
	"fmt"
	"math"

	"github.com/talgya/hollowmere/internal/entropy"
	"github.com/talgya/hollowmere/internal/tuning"
	"github.com/talgya/hollowmere/internal/world"
)

// ActionKind enumerates the possible actions. The order is fixed: ties in
// scoring go to the action declared first.
type ActionKind uint8

const (
	SeekFood ActionKind = iota
	Socialize
	Explore
	AvoidHeat
	Loiter
	SeekSafety
	SeekFaith
)

// NumActions is the number of actions.
const NumActions = 7

var actionNames = [NumActions]string{
	"SEEK_FOOD", "SOCIALIZE", "EXPLORE", "AVOID_HEAT", "LOITER", "SEEK_SAFETY", "SEEK_FAITH",
}

func (a ActionKind) String() string {
	if int(a) < NumActions {
		return actionNames[a]
	}
	return fmt.Sprintf("ACTION(%d)", uint8(a))
}

// ParseAction maps an action name back to its kind.
func ParseAction(name string) (ActionKind, error) {
	for i, n := range actionNames {
		if n == name {
			return ActionKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", name)
}

// MarshalText encodes the action by name.
func (a ActionKind) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText decodes an action name.
func (a *ActionKind) UnmarshalText(b []byte) error {
	k, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = k
	return nil
}

// ScoreSet holds one utility score per action, indexed by ActionKind.
type ScoreSet [NumActions]float64

// Term is one input of the linear scoring model.
type Term uint8

const (
	TermConstant   Term = iota
	TermHunger          // 1-energy
	TermLoneliness      // 1-social
	TermUnsafety        // 1-safety
	TermEnergy
	TermHeat
	TermCoolness // 1-heat
	TermFood
	TermTrauma // trauma field underfoot
	TermCrowd  // crowd / saturation, capped at 1
	TermSolitude
	TermStress
	TermDespair
	TermAggression
	TermBreakpoint
	TermCuriosity
	TermEmpathy
	TermBoldness
	TermOrder
	TermMood
	TermWeirdness
	TermHeatTimidity // heat*(1-boldness)
)

// NumTerms is the number of scoring terms.
const NumTerms = 22

var termNames = [NumTerms]string{
	"constant", "hunger", "loneliness", "unsafety", "energy", "heat", "coolness",
	"food", "trauma", "crowd", "solitude", "stress", "despair", "aggression",
	"breakpoint", "curiosity", "empathy", "boldness", "order", "mood",
	"weirdness", "heat_timidity",
}

func (t Term) String() string {
	if int(t) < NumTerms {
		return termNames[t]
	}
	return "unknown"
}

// Perception is what an entity senses this tick, read from the frozen
// snapshot.
type Perception struct {
	Heat   float64
	Food   float64
	Trauma float64
	Crowd  int // other live entities within the crowd radius

	Despair    float64
	Aggression float64
}

// Scene is the read-only world an entity decides against.
type Scene struct {
	Fields   *world.Fields
	Entities []*Entity       // the whole snapshot, including the deciding entity
	Dead     map[string]bool // died earlier in the current tick
	Time     float64         // world minutes
}

// present reports whether o is someone other than self still standing.
func (s Scene) present(o, self *Entity) bool {
	return o != nil && o != self && o.ID != self.ID && o.Alive && !s.Dead[o.ID]
}

// Decision is the outcome of one entity's turn.
type Decision struct {
	Action      ActionKind
	Scores      ScoreSet
	Target      world.Point
	Competitors int     // others within the competitor radius (SEEK_FOOD only)
	HeatDelta   float64 // friction heat to emit at the entity's position
}

// Decider scores actions and picks targets. It is immutable after
// construction and safe to share.
type Decider struct {
	cfg       tuning.Config
	seed      int64
	weights   [NumActions][NumTerms]float64
	bonuses   [NumActions][NumTraits]float64
	locations []world.Location
	faith     world.Location
	width     float64
	height    float64
}

// NewDecider compiles the weight tables and validates the landmark table.
// bounds is the world extent the targets are clamped to.
func NewDecider(cfg tuning.Config, locations []world.Location, width, height float64, seed int64) (*Decider, error) {
	if err := world.ValidateLocations(locations); err != nil {
		return nil, err
	}
	if !(width > 0 && height > 0) {
		return nil, fmt.Errorf("%w: world extent %vx%v", tuning.ErrInvalidConfig, width, height)
	}
	d := &Decider{
		cfg:       cfg,
		seed:      seed,
		locations: append([]world.Location(nil), locations...),
		width:     width,
		height:    height,
	}
	d.faith, _ = world.FaithLocation(locations)

	for name, terms := range cfg.Utility.Actions {
		a, err := ParseAction(name)
		if err != nil {
			return nil, fmt.Errorf("%w: utility.actions: %v", tuning.ErrInvalidConfig, err)
		}
		for tname, w := range terms {
			t, ok := lookupTerm(tname)
			if !ok {
				return nil, fmt.Errorf("%w: utility.actions.%s: unknown term %q", tuning.ErrInvalidConfig, name, tname)
			}
			d.weights[a][t] = w
		}
	}
	for name, traits := range cfg.Utility.Personality {
		a, err := ParseAction(name)
		if err != nil {
			return nil, fmt.Errorf("%w: utility.personality: %v", tuning.ErrInvalidConfig, err)
		}
		for tname, w := range traits {
			t, ok := lookupTrait(tname)
			if !ok {
				return nil, fmt.Errorf("%w: utility.personality.%s: unknown trait %q", tuning.ErrInvalidConfig, name, tname)
			}
			d.bonuses[a][t] = w
		}
	}
	return d, nil
}

func lookupTerm(name string) (Term, bool) {
	for i, n := range termNames {
		if n == name {
			return Term(i), true
		}
	}
	return 0, false
}

func lookupTrait(name string) (Trait, bool) {
	for i, n := range traitNames {
		if n == name {
			return Trait(i), true
		}
	}
	return 0, false
}

// Perceive samples the frozen fields at the entity and counts its crowd.
func (d *Decider) Perceive(e *Entity, scene Scene, despair, aggression float64) Perception {
	return Perception{
		Heat:       scene.Fields.Sample(world.LayerHeat, e.X, e.Y),
		Food:       scene.Fields.Sample(world.LayerFood, e.X, e.Y),
		Trauma:     scene.Fields.Sample(world.LayerTrauma, e.X, e.Y),
		Crowd:      countWithin(e, scene, d.cfg.Utility.CrowdRadius),
		Despair:    world.Clamp01(despair),
		Aggression: world.Clamp01(aggression),
	}
}

// terms builds the input vector for the linear model.
func (d *Decider) terms(e *Entity, p Perception) [NumTerms]float64 {
	dr := e.ResolvedDrives()
	t := e.Personality.Normalized()
	crowd := math.Min(float64(p.Crowd)/d.cfg.Utility.CrowdSaturation, 1)
	heat := world.Clamp01(p.Heat)

	var v [NumTerms]float64
	v[TermConstant] = 1
	v[TermHunger], v[TermLoneliness], v[TermUnsafety] = dr.Urgency()
	v[TermEnergy] = dr.Energy
	v[TermHeat] = heat
	v[TermCoolness] = 1 - heat
	v[TermFood] = world.Clamp01(p.Food)
	v[TermTrauma] = world.Clamp01(p.Trauma)
	v[TermCrowd] = crowd
	v[TermSolitude] = 1 - crowd
	v[TermStress] = world.Clamp01(e.Stress)
	v[TermDespair] = p.Despair
	v[TermAggression] = p.Aggression
	v[TermBreakpoint] = world.Clamp01(e.Psyche.MentalBreakpoint)
	v[TermCuriosity] = t.Curiosity
	v[TermEmpathy] = t.Empathy
	v[TermBoldness] = t.Boldness
	v[TermOrder] = t.Order
	v[TermMood] = t.Mood
	v[TermWeirdness] = t.Weirdness
	v[TermHeatTimidity] = heat * (1 - t.Boldness)
	return v
}

// BaseScores applies the per-action weight tables.
func (d *Decider) BaseScores(e *Entity, p Perception) ScoreSet {
	v := d.terms(e, p)
	var s ScoreSet
	for a := 0; a < NumActions; a++ {
		for t := 0; t < NumTerms; t++ {
			s[a] += d.weights[a][t] * v[t]
		}
	}
	return s
}

// PersonalityBonus adds the secondary per-trait bonuses.
func (d *Decider) PersonalityBonus(e *Entity, s ScoreSet) ScoreSet {
	traits := e.Personality.Normalized().Vector()
	for a := 0; a < NumActions; a++ {
		for t := 0; t < NumTraits; t++ {
			s[a] += d.bonuses[a][t] * traits[t]
		}
	}
	return s
}

// Jitter is the deterministic per-entity perturbation for one action: a fixed
// bias plus a slow sine over coarse time buckets. It depends only on the
// seed, the entity ID, the action and the world time bucket.
func Jitter(cfg tuning.JitterConfig, seed int64, entityID string, a ActionKind, worldTime float64) float64 {
	if cfg.StaticAmplitude == 0 && cfg.PhaseAmplitude == 0 {
		return 0
	}
	bucket := int64(math.Floor(worldTime / cfg.BucketMinutes))
	key := a.String()

	static := (entropy.Keyed(seed, entityID, key, "static", 0) - 0.5) * 2 * cfg.StaticAmplitude
	phase := entropy.Keyed(seed, entityID, key, "phase", 0) * 2 * math.Pi
	wave := math.Sin(float64(bucket)*cfg.Frequency+phase) * cfg.PhaseAmplitude
	return static + wave
}

// Score runs the full scoring pipeline: base scores, personality pass, jitter.
func (d *Decider) Score(e *Entity, p Perception, worldTime float64) ScoreSet {
	s := d.PersonalityBonus(e, d.BaseScores(e, p))
	for a := 0; a < NumActions; a++ {
		s[a] += Jitter(d.cfg.Jitter, d.seed, e.ID, ActionKind(a), worldTime)
	}
	return s
}

// Choose returns the highest-scoring action. Ties go to the earlier action
// in declaration order; if nothing is comparable (all NaN) it loiters.
func Choose(s ScoreSet) ActionKind {
	best, bestScore := Loiter, math.Inf(-1)
	found := false
	for a, v := range s {
		if v > bestScore {
			best, bestScore, found = ActionKind(a), v, true
		}
	}
	if !found {
		return Loiter
	}
	return best
}

// Decide scores, chooses and targets one entity's action for this tick.
func (d *Decider) Decide(e *Entity, scene Scene, despair, aggression float64, src entropy.Source) Decision {
	p := d.Perceive(e, scene, despair, aggression)
	scores := d.Score(e, p, scene.Time)
	dec := Decision{Action: Choose(scores), Scores: scores}
	dec.Target = d.GenerateTarget(dec.Action, e, scene, src)

	if dec.Action == SeekFood {
		dec.Competitors = countWithin(e, scene, d.cfg.Effects.CompetitorRadius)
		dec.HeatDelta = d.friction(dec.Competitors)
	}
	return dec
}

// friction is the heat raised by competing over food.
func (d *Decider) friction(competitors int) float64 {
	switch {
	case competitors >= 2:
		return d.cfg.Effects.FrictionMany
	case competitors == 1:
		return d.cfg.Effects.FrictionOne
	}
	return 0
}

// countWithin counts other live entities within radius of e.
func countWithin(e *Entity, scene Scene, radius float64) int {
	n := 0
	for _, o := range scene.Entities {
		if !scene.present(o, e) {
			continue
		}
		if world.Distance(e.X, e.Y, o.X, o.Y) <= radius {
			n++
		}
	}
	return n
}
