package agents

import (
	"errors"
	"math"
	"testing"

	"github.com/talgya/hollowmere/internal/entropy"
	"github.com/talgya/hollowmere/internal/tuning"
	"github.com/talgya/hollowmere/internal/world"
)

func testLocations() []world.Location {
	return []world.Location{
		{Name: "Chapel", Type: world.LocationFaith, X: 800, Y: 500, Radius: 20},
		{Name: "Orchard", Type: world.LocationFood, X: 100, Y: 100, Radius: 30, Categories: map[string]float64{"food": 1}},
		{Name: "Tavern", Type: world.LocationSocial, X: 480, Y: 320, Radius: 25},
	}
}

// quietConfig is the default tuning with jitter switched off.
func quietConfig() tuning.Config {
	cfg := tuning.MustDefault()
	cfg.Jitter.StaticAmplitude = 0
	cfg.Jitter.PhaseAmplitude = 0
	return cfg
}

func testDecider(t *testing.T, cfg tuning.Config) *Decider {
	t.Helper()
	d, err := NewDecider(cfg, testLocations(), 960, 640, 42)
	if err != nil {
		t.Fatalf("new decider: %v", err)
	}
	return d
}

func testScene(t *testing.T, cfg tuning.Config, ents ...*Entity) Scene {
	t.Helper()
	f, err := world.NewFields(cfg.Field)
	if err != nil {
		t.Fatalf("new fields: %v", err)
	}
	return Scene{Fields: f, Entities: ents, Time: 100}
}

func TestDecide_HungryEntityNearFoodSeeksFood(t *testing.T) {
	cfg := quietConfig()
	d := testDecider(t, cfg)

	e := neutralEntity()
	e.X, e.Y = 100, 100
	e.Drives = &Drives{Energy: 0.1, Social: 0.5, Safety: 0.6}
	e.Stress = 0.2
	scene := testScene(t, cfg, e)
	cx, cy := scene.Fields.CellOf(e.X, e.Y)
	scene.Fields.Set(world.LayerFood, cx, cy, 0.8)

	dec := d.Decide(e, scene, 0, 0, entropy.NewSeeded(1))

	if dec.Action != SeekFood {
		t.Fatalf("action = %s (scores %v), want SEEK_FOOD", dec.Action, dec.Scores)
	}
	if got := dec.Scores[SeekFood]; math.Abs(got-0.89) > 1e-9 {
		t.Errorf("SEEK_FOOD score = %v, want 0.89", got)
	}
	if dec.Target.X < 70 || dec.Target.X > 130 || dec.Target.Y < 70 || dec.Target.Y > 130 {
		t.Errorf("target %+v not inside the orchard", dec.Target)
	}
	if dec.Competitors != 0 || dec.HeatDelta != 0 {
		t.Errorf("lone eater: competitors %d heat %v", dec.Competitors, dec.HeatDelta)
	}
}

func TestDecide_FoodFriction(t *testing.T) {
	cfg := quietConfig()
	d := testDecider(t, cfg)

	eater := func(id string, x float64) *Entity {
		e := neutralEntity()
		e.ID = id
		e.X, e.Y = x, 100
		e.Drives = &Drives{Energy: 0, Social: 0.5, Safety: 0.6}
		return e
	}

	cases := []struct {
		others int
		want   float64
	}{
		{0, 0},
		{1, 0.01},
		{2, 0.03},
		{4, 0.03},
	}
	for _, tc := range cases {
		e := eater("self", 100)
		ents := []*Entity{e}
		for i := 0; i < tc.others; i++ {
			ents = append(ents, eater(string(rune('a'+i)), 100+float64(i+1)*5))
		}
		dec := d.Decide(e, testScene(t, cfg, ents...), 0, 0, entropy.Fixed(0.5))
		if dec.Action != SeekFood {
			t.Fatalf("%d others: action = %s, want SEEK_FOOD", tc.others, dec.Action)
		}
		if dec.Competitors != tc.others || dec.HeatDelta != tc.want {
			t.Errorf("%d others: competitors %d heat %v, want heat %v", tc.others, dec.Competitors, dec.HeatDelta, tc.want)
		}
	}
}

func TestDecide_DeadNeighboursDoNotCompete(t *testing.T) {
	cfg := quietConfig()
	d := testDecider(t, cfg)

	e := neutralEntity()
	e.X, e.Y = 100, 100
	e.Drives = &Drives{Energy: 0, Social: 0.5, Safety: 0.6}
	corpse := neutralEntity()
	corpse.ID = "corpse"
	corpse.X, corpse.Y = 105, 100
	corpse.Alive = false

	dec := d.Decide(e, testScene(t, cfg, e, corpse), 0, 0, entropy.Fixed(0.5))
	if dec.Competitors != 0 {
		t.Fatalf("competitors = %d, want 0", dec.Competitors)
	}
}

func TestDecide_FallenThisTickDoNotCompete(t *testing.T) {
	cfg := quietConfig()
	d := testDecider(t, cfg)

	e := neutralEntity()
	e.X, e.Y = 100, 100
	e.Drives = &Drives{Energy: 0, Social: 0.5, Safety: 0.6}
	fallen := neutralEntity()
	fallen.ID = "fallen"
	fallen.X, fallen.Y = 105, 100

	scene := testScene(t, cfg, e, fallen)
	if dec := d.Decide(e, scene, 0, 0, entropy.Fixed(0.5)); dec.Competitors != 1 {
		t.Fatalf("competitors before the death = %d, want 1", dec.Competitors)
	}
	scene.Dead = map[string]bool{"fallen": true}
	dec := d.Decide(e, scene, 0, 0, entropy.Fixed(0.5))
	if dec.Competitors != 0 || dec.HeatDelta != 0 {
		t.Fatalf("competitors %d heat %v, want none", dec.Competitors, dec.HeatDelta)
	}
}

func TestChoose(t *testing.T) {
	nan := math.NaN()
	cases := []struct {
		name   string
		scores ScoreSet
		want   ActionKind
	}{
		{"all equal goes to first", ScoreSet{1, 1, 1, 1, 1, 1, 1}, SeekFood},
		{"tie after first", ScoreSet{0, 1, 1, 0, 0, 0, 0}, Socialize},
		{"clear winner", ScoreSet{0.1, 0.2, 0.3, 0.9, 0.4, 0.5, 0.6}, AvoidHeat},
		{"negatives", ScoreSet{-3, -2, -1, -4, -5, -6, -0.5}, SeekFaith},
		{"nan skipped", ScoreSet{nan, nan, 0.2, nan, 0.1, nan, nan}, Explore},
		{"all nan loiters", ScoreSet{nan, nan, nan, nan, nan, nan, nan}, Loiter},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Choose(tc.scores); got != tc.want {
				t.Fatalf("Choose = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestJitter(t *testing.T) {
	cfg := tuning.MustDefault().Jitter
	bound := cfg.StaticAmplitude + cfg.PhaseAmplitude

	for a := ActionKind(0); a < NumActions; a++ {
		for _, now := range []float64{0, 37, 1e6} {
			v := Jitter(cfg, 7, "e1", a, now)
			if math.Abs(v) > bound {
				t.Fatalf("%s at %v: jitter %v exceeds %v", a, now, v, bound)
			}
			if again := Jitter(cfg, 7, "e1", a, now); again != v {
				t.Fatalf("%s at %v: jitter not repeatable", a, now)
			}
		}
	}

	if Jitter(cfg, 7, "e1", Explore, 0) != Jitter(cfg, 7, "e1", Explore, 4.9) {
		t.Error("jitter changed inside one time bucket")
	}
	if Jitter(cfg, 7, "e1", Explore, 0) == Jitter(cfg, 7, "e2", Explore, 0) {
		t.Error("different entities share jitter")
	}

	cfg.StaticAmplitude, cfg.PhaseAmplitude = 0, 0
	if v := Jitter(cfg, 7, "e1", Explore, 12); v != 0 {
		t.Errorf("zero amplitude jitter = %v", v)
	}
}

func TestNewDecider_RejectsBadTables(t *testing.T) {
	t.Run("unknown term", func(t *testing.T) {
		cfg := tuning.MustDefault()
		cfg.Utility.Actions["LOITER"]["vibes"] = 1
		if _, err := NewDecider(cfg, testLocations(), 960, 640, 1); !errors.Is(err, tuning.ErrInvalidConfig) {
			t.Fatalf("err = %v, want ErrInvalidConfig", err)
		}
	})
	t.Run("unknown trait", func(t *testing.T) {
		cfg := tuning.MustDefault()
		cfg.Utility.Personality["LOITER"]["luck"] = 1
		if _, err := NewDecider(cfg, testLocations(), 960, 640, 1); !errors.Is(err, tuning.ErrInvalidConfig) {
			t.Fatalf("err = %v, want ErrInvalidConfig", err)
		}
	})
	t.Run("no faith landmark", func(t *testing.T) {
		locs := testLocations()[1:]
		if _, err := NewDecider(tuning.MustDefault(), locs, 960, 640, 1); !errors.Is(err, world.ErrNoFaith) {
			t.Fatalf("err = %v, want ErrNoFaith", err)
		}
	})
	t.Run("empty extent", func(t *testing.T) {
		if _, err := NewDecider(tuning.MustDefault(), testLocations(), 0, 640, 1); !errors.Is(err, tuning.ErrInvalidConfig) {
			t.Fatalf("err = %v, want ErrInvalidConfig", err)
		}
	})
}

func TestActionKind_TextRoundTrip(t *testing.T) {
	for a := ActionKind(0); a < NumActions; a++ {
		b, _ := a.MarshalText()
		var got ActionKind
		if err := got.UnmarshalText(b); err != nil || got != a {
			t.Fatalf("%s: got %s, err %v", a, got, err)
		}
	}
	if _, err := ParseAction("DANCE"); err == nil {
		t.Fatal("expected error for unknown action")
	}
}
