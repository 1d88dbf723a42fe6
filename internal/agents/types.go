// Package agents provides the entity data model, the psychological model and
// the utility decision engine.
package agents

import (
	"encoding/json"
	"math"

	"github.com/talgya/hollowmere/internal/world"
)

// Neutral defaults for missing inputs.
const (
	DefaultEnergy = 0.7
	DefaultSocial = 0.5
	DefaultSafety = 0.6
	NeutralTrait  = 0.5
)

// Entity is one simulated character.
type Entity struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Location
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	TargetX float64 `json:"target_x"`
	TargetY float64 `json:"target_y"`

	Personality Personality `json:"personality"`
	Drives      *Drives     `json:"drives,omitempty"` // nil reads as defaults
	Stress      float64     `json:"stress"`           // 0.0–1.0
	Psyche      Psyche      `json:"psyche"`

	Archetype string     `json:"archetype,omitempty"`
	Action    ActionKind `json:"action"`
	BornAt    float64    `json:"born_at"` // world minutes
	Alive     bool       `json:"alive"`
}

// Position returns the current position.
func (e *Entity) Position() world.Point { return world.Point{X: e.X, Y: e.Y} }

// Personality holds stable traits, each 0.0–1.0.
type Personality struct {
	Curiosity float64 `json:"curiosity"`
	Empathy   float64 `json:"empathy"`
	Boldness  float64 `json:"boldness"`
	Order     float64 `json:"order"`
	Mood      float64 `json:"mood"`
	Weirdness float64 `json:"weirdness"`
}

// NeutralPersonality has every trait at 0.5.
func NeutralPersonality() Personality {
	return Personality{NeutralTrait, NeutralTrait, NeutralTrait, NeutralTrait, NeutralTrait, NeutralTrait}
}

// UnmarshalJSON fills absent traits with the neutral value.
func (p *Personality) UnmarshalJSON(b []byte) error {
	type plain Personality
	v := plain(NeutralPersonality())
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = Personality(v)
	return nil
}

// Normalized returns the traits clamped to [0, 1]; NaN reads as neutral.
func (p Personality) Normalized() Personality {
	return Personality{
		Curiosity: trait(p.Curiosity),
		Empathy:   trait(p.Empathy),
		Boldness:  trait(p.Boldness),
		Order:     trait(p.Order),
		Mood:      trait(p.Mood),
		Weirdness: trait(p.Weirdness),
	}
}

// Trait enumerates the personality axes.
type Trait uint8

const (
	TraitCuriosity Trait = iota
	TraitEmpathy
	TraitBoldness
	TraitOrder
	TraitMood
	TraitWeirdness
)

// NumTraits is the number of personality traits.
const NumTraits = 6

var traitNames = [NumTraits]string{"curiosity", "empathy", "boldness", "order", "mood", "weirdness"}

func (t Trait) String() string {
	if int(t) < NumTraits {
		return traitNames[t]
	}
	return "unknown"
}

// Vector returns the traits in Trait order.
func (p Personality) Vector() [NumTraits]float64 {
	return [NumTraits]float64{p.Curiosity, p.Empathy, p.Boldness, p.Order, p.Mood, p.Weirdness}
}

func trait(v float64) float64 {
	if math.IsNaN(v) {
		return NeutralTrait
	}
	return world.Clamp01(v)
}

// Drives are the internal needs, each 0.0 (unmet) to 1.0 (satisfied).
type Drives struct {
	Energy float64 `json:"energy"`
	Social float64 `json:"social"`
	Safety float64 `json:"safety"`
}

// DefaultDrives returns the documented defaults.
func DefaultDrives() Drives {
	return Drives{Energy: DefaultEnergy, Social: DefaultSocial, Safety: DefaultSafety}
}

// UnmarshalJSON fills absent drives with their defaults.
func (d *Drives) UnmarshalJSON(b []byte) error {
	type plain Drives
	v := plain(DefaultDrives())
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*d = Drives(v)
	return nil
}

// ResolvedDrives returns the entity's drives with defaults and clamping applied.
func (e *Entity) ResolvedDrives() Drives {
	d := DefaultDrives()
	if e.Drives != nil {
		d = *e.Drives
	}
	return Drives{
		Energy: orDefault(d.Energy, DefaultEnergy),
		Social: orDefault(d.Social, DefaultSocial),
		Safety: orDefault(d.Safety, DefaultSafety),
	}
}

func orDefault(v, def float64) float64 {
	if math.IsNaN(v) {
		return def
	}
	return world.Clamp01(v)
}

// Psyche is the derived psychological state.
type Psyche struct {
	Despair          float64        `json:"despair"`           // 0.0–1.0
	Aggression       float64        `json:"aggression"`        // 0.0–1.0
	MentalBreakpoint float64        `json:"mental_breakpoint"` // 0.0–1.0
	TraumaMemories   []TraumaMemory `json:"trauma_memories,omitempty"`
}

// TraumaKind labels what caused a trauma memory.
type TraumaKind string

const (
	TraumaMurderWitnessed  TraumaKind = "murder_witnessed"
	TraumaAssaulted        TraumaKind = "assaulted"
	TraumaSuicideWitnessed TraumaKind = "suicide_witnessed"
	TraumaBreakdown        TraumaKind = "breakdown"
)

// TraumaMemory is one remembered traumatic event.
type TraumaMemory struct {
	Kind      TraumaKind `json:"type"`
	Timestamp float64    `json:"timestamp"` // world minutes
	Severity  float64    `json:"severity"`  // 0.0–1.0
}
