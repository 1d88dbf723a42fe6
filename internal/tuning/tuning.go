// Package tuning holds every tunable weight and rate of the simulation core
// in one table, loaded from YAML. The embedded defaults.yaml is the baseline;
// an optional override file is validated against schema.json and merged on top.
package tuning

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

//go:embed schema.json
var schemaJSON string

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid tuning")

// Config is the full tunables table.
type Config struct {
	Field   FieldConfig   `yaml:"field"`
	Psyche  PsycheConfig  `yaml:"psyche"`
	Dark    DarkConfig    `yaml:"dark"`
	Utility UtilityConfig `yaml:"utility"`
	Jitter  JitterConfig  `yaml:"jitter"`
	Targets TargetConfig  `yaml:"targets"`
	Effects EffectsConfig `yaml:"effects"`
	Drives  DrivesConfig  `yaml:"drives"`
}

// FieldConfig sizes the grid and sets per-layer rates.
type FieldConfig struct {
	Width            int         `yaml:"width"`
	Height           int         `yaml:"height"`
	CellSize         float64     `yaml:"cell_size"` // world units per cell
	EvaporationFloor float64     `yaml:"evaporation_floor"`
	Heat             LayerConfig `yaml:"heat"`
	Food             LayerConfig `yaml:"food"`
	Trauma           LayerConfig `yaml:"trauma"`
}

// LayerConfig holds the per-layer rates. Regrowth only applies to food.
type LayerConfig struct {
	Diffusion      float64 `yaml:"diffusion"`
	Evaporation    float64 `yaml:"evaporation"`
	RegrowthRate   float64 `yaml:"regrowth_rate"`
	RegrowthRadius float64 `yaml:"regrowth_radius"` // in cells
	RegrowthCap    float64 `yaml:"regrowth_cap"`
}

// PsycheConfig groups the psychological model weights.
type PsycheConfig struct {
	Despair    DespairWeights    `yaml:"despair"`
	Aggression AggressionWeights `yaml:"aggression"`
	Trauma     TraumaConfig      `yaml:"trauma"`
	Breakdown  BreakdownConfig   `yaml:"breakdown"`
}

// DespairWeights are the terms of the despair sum. EmpathyBuffer is subtracted.
type DespairWeights struct {
	Isolation              float64 `yaml:"isolation"`
	Starvation             float64 `yaml:"starvation"`
	ChronicStress          float64 `yaml:"chronic_stress"`
	ChronicStressThreshold float64 `yaml:"chronic_stress_threshold"`
	Trauma                 float64 `yaml:"trauma"`
	Hopelessness           float64 `yaml:"hopelessness"`
	EmpathyBuffer          float64 `yaml:"empathy_buffer"`
}

// AggressionWeights are the terms of the aggression sum.
// There is no calming term; aggression only has contributors.
type AggressionWeights struct {
	Cornered          float64 `yaml:"cornered"`
	Frustration       float64 `yaml:"frustration"`
	Trauma            float64 `yaml:"trauma"`
	LowEmpathy        float64 `yaml:"low_empathy"`
	Boldness          float64 `yaml:"boldness"`
	Desperation       float64 `yaml:"desperation"`
	DesperationEnergy float64 `yaml:"desperation_energy"`
}

// TraumaConfig drives the mental breakpoint computation.
type TraumaConfig struct {
	WindowMinutes float64 `yaml:"window_minutes"`
	Amplification float64 `yaml:"amplification"`
	Divisor       float64 `yaml:"divisor"`
	RecoveryStep  float64 `yaml:"recovery_step"`
	MaxMemories   int     `yaml:"max_memories"`
}

// BreakdownConfig is the one-way personality scar applied above Threshold.
type BreakdownConfig struct {
	Threshold      float64 `yaml:"threshold"`
	EmpathyDelta   float64 `yaml:"empathy_delta"`
	WeirdnessDelta float64 `yaml:"weirdness_delta"`
	MoodDelta      float64 `yaml:"mood_delta"`
}

// DarkConfig holds dark-action thresholds and per-tick base rates.
type DarkConfig struct {
	SuicideThreshold    float64 `yaml:"suicide_threshold"`
	SuicideRate         float64 `yaml:"suicide_rate"`
	SuicideSuccess      float64 `yaml:"suicide_success"`
	MurderThreshold     float64 `yaml:"murder_threshold"`
	MurderRate          float64 `yaml:"murder_rate"`
	MurderSuccess       float64 `yaml:"murder_success"`
	VictimRadius        float64 `yaml:"victim_radius"`
	WitnessRadius       float64 `yaml:"witness_radius"`
	WitnessFactor       float64 `yaml:"witness_factor"`
	VictimSeverityFloor float64 `yaml:"victim_severity_floor"`
}

// WeightTable maps an action name to per-term weights.
type WeightTable map[string]map[string]float64

// UtilityConfig holds one weight table per action.
type UtilityConfig struct {
	CrowdRadius     float64     `yaml:"crowd_radius"`
	CrowdSaturation float64     `yaml:"crowd_saturation"`
	Actions         WeightTable `yaml:"actions"`
	Personality     WeightTable `yaml:"personality"`
}

// JitterConfig shapes the deterministic per-entity score perturbation.
type JitterConfig struct {
	StaticAmplitude float64 `yaml:"static_amplitude"`
	PhaseAmplitude  float64 `yaml:"phase_amplitude"`
	BucketMinutes   float64 `yaml:"bucket_minutes"`
	Frequency       float64 `yaml:"frequency"`
}

// TargetConfig holds movement target parameters, in world units.
type TargetConfig struct {
	FoodScatter   float64           `yaml:"food_scatter"`
	SocialScatter float64           `yaml:"social_scatter"`
	FaithScatter  float64           `yaml:"faith_scatter"`
	LoiterRadius  float64           `yaml:"loiter_radius"`
	AvoidHeatStep float64           `yaml:"avoid_heat_step"`
	EdgeBand      float64           `yaml:"edge_band"`
	EdgeBias      float64           `yaml:"edge_bias"`
	FoodChoice    FoodChoiceWeights `yaml:"food_choice"`
}

// FoodChoiceWeights rank candidate landmarks for SEEK_FOOD.
type FoodChoiceWeights struct {
	Food        float64 `yaml:"food"`
	Distance    float64 `yaml:"distance"`
	Heat        float64 `yaml:"heat"`
	Crowd       float64 `yaml:"crowd"`
	Personality float64 `yaml:"personality"`
}

// EffectsConfig holds field side effects. Radii are in cells.
type EffectsConfig struct {
	FoodConsumption      float64 `yaml:"food_consumption"`
	ConsumptionRadius    float64 `yaml:"consumption_radius"`
	CompetitorRadius     float64 `yaml:"competitor_radius"` // world units
	FrictionOne          float64 `yaml:"friction_one"`
	FrictionMany         float64 `yaml:"friction_many"`
	FrictionRadius       float64 `yaml:"friction_radius"`
	ViolenceTrauma       float64 `yaml:"violence_trauma"`
	ViolenceTraumaRadius float64 `yaml:"violence_trauma_radius"`
	ViolenceHeat         float64 `yaml:"violence_heat"`
	ViolenceHeatRadius   float64 `yaml:"violence_heat_radius"`
}

// DrivesConfig holds the caller-side drive dynamics applied between ticks.
type DrivesConfig struct {
	EnergyDecay    float64 `yaml:"energy_decay"`
	SocialDecay    float64 `yaml:"social_decay"`
	SafetyDecay    float64 `yaml:"safety_decay"`
	EatGain        float64 `yaml:"eat_gain"`
	SocialGain     float64 `yaml:"social_gain"`
	SafetyGain     float64 `yaml:"safety_gain"`
	ContactRadius  float64 `yaml:"contact_radius"`
	MoveSpeed      float64 `yaml:"move_speed"`
	StressRise     float64 `yaml:"stress_rise"`
	StressRecovery float64 `yaml:"stress_recovery"`
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("tuning.schema.json", schemaJSON)
	})
	return schema, schemaErr
}

// Default returns the embedded defaults.
func Default() (Config, error) {
	var c Config
	if err := decode(defaultsYAML, &c, "defaults.yaml"); err != nil {
		return c, err
	}
	return c, c.Validate()
}

// MustDefault is Default for tests and static setup; it panics if the embedded
// defaults are broken.
func MustDefault() Config {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Load returns the defaults overlaid with the file at path. An empty path
// returns the defaults. Action tables in the file replace the default table
// for that action; scalar keys override individually.
func Load(path string) (Config, error) {
	c, err := Default()
	if err != nil || path == "" {
		return c, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := decode(raw, &c, path); err != nil {
		return c, err
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse is Load for an in-memory document.
func Parse(raw []byte) (Config, error) {
	c, err := Default()
	if err != nil {
		return c, err
	}
	if err := decode(raw, &c, "inline"); err != nil {
		return c, err
	}
	return c, c.Validate()
}

func decode(raw []byte, c *Config, name string) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if doc != nil {
		if err := validateSchema(doc); err != nil {
			return fmt.Errorf("%s: %w: %v", name, ErrInvalidConfig, err)
		}
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// validateSchema checks a decoded YAML document. The document is round-tripped
// through JSON so the validator sees JSON-native types.
func validateSchema(doc any) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return s.Validate(v)
}

// Validate performs the semantic checks the schema cannot express.
// Degenerate rates and radii are rejected here, never at call time.
func (c Config) Validate() error {
	var problems []string
	bad := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	f := c.Field
	if f.Width <= 0 || f.Height <= 0 {
		bad("field size %dx%d", f.Width, f.Height)
	}
	if f.CellSize <= 0 {
		bad("field.cell_size %v", f.CellSize)
	}
	for name, l := range map[string]LayerConfig{"heat": f.Heat, "food": f.Food, "trauma": f.Trauma} {
		if l.Diffusion <= 0 || l.Diffusion > 1 {
			bad("field.%s.diffusion %v not in (0,1]", name, l.Diffusion)
		}
		if l.Evaporation <= 0 || l.Evaporation > 1 {
			bad("field.%s.evaporation %v not in (0,1]", name, l.Evaporation)
		}
	}
	if f.Food.RegrowthRate <= 0 {
		bad("field.food.regrowth_rate %v", f.Food.RegrowthRate)
	}
	if f.Food.RegrowthRadius <= 0 {
		bad("field.food.regrowth_radius %v", f.Food.RegrowthRadius)
	}
	if f.Food.RegrowthCap <= 0 || f.Food.RegrowthCap > 1 {
		bad("field.food.regrowth_cap %v", f.Food.RegrowthCap)
	}

	t := c.Psyche.Trauma
	if t.WindowMinutes <= 0 || t.Divisor <= 0 || t.MaxMemories <= 0 {
		bad("psyche.trauma window=%v divisor=%v max_memories=%d", t.WindowMinutes, t.Divisor, t.MaxMemories)
	}
	if c.Utility.CrowdRadius <= 0 || c.Utility.CrowdSaturation <= 0 {
		bad("utility crowd radius/saturation must be positive")
	}
	if len(c.Utility.Actions) == 0 {
		bad("utility.actions is empty")
	}
	if c.Jitter.BucketMinutes <= 0 {
		bad("jitter.bucket_minutes %v", c.Jitter.BucketMinutes)
	}
	if c.Targets.AvoidHeatStep <= 0 {
		bad("targets.avoid_heat_step %v", c.Targets.AvoidHeatStep)
	}
	for name, r := range map[string]float64{
		"effects.consumption_radius":     c.Effects.ConsumptionRadius,
		"effects.friction_radius":        c.Effects.FrictionRadius,
		"effects.violence_trauma_radius": c.Effects.ViolenceTraumaRadius,
		"effects.violence_heat_radius":   c.Effects.ViolenceHeatRadius,
		"dark.victim_radius":             c.Dark.VictimRadius,
	} {
		if r <= 0 {
			bad("%s %v", name, r)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	// Map iteration order is random; keep messages stable.
	sort.Strings(problems)
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}
