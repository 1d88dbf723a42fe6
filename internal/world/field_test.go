package world

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/talgya/hollowmere/internal/tuning"
)

func testFieldConfig(w, h int) tuning.FieldConfig {
	return tuning.FieldConfig{
		Width:            w,
		Height:           h,
		CellSize:         10,
		EvaporationFloor: 0.01,
		Heat:             tuning.LayerConfig{Diffusion: 0.1, Evaporation: 0.05},
		Food: tuning.LayerConfig{
			Diffusion: 0.02, Evaporation: 0.001,
			RegrowthRate: 0.004, RegrowthRadius: 2, RegrowthCap: 0.9,
		},
		Trauma: tuning.LayerConfig{Diffusion: 0.05, Evaporation: 0.01},
	}
}

func mustFields(t *testing.T, w, h int) *Fields {
	t.Helper()
	f, err := NewFields(testFieldConfig(w, h))
	if err != nil {
		t.Fatalf("new fields: %v", err)
	}
	return f
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-12 }

func TestNewFields_RejectsDegenerateConfig(t *testing.T) {
	cases := map[string]func(c *tuning.FieldConfig){
		"zero width":       func(c *tuning.FieldConfig) { c.Width = 0 },
		"negative height":  func(c *tuning.FieldConfig) { c.Height = -1 },
		"zero cell size":   func(c *tuning.FieldConfig) { c.CellSize = 0 },
		"zero diffusion":   func(c *tuning.FieldConfig) { c.Heat.Diffusion = 0 },
		"diffusion over 1": func(c *tuning.FieldConfig) { c.Trauma.Diffusion = 1.5 },
		"zero evaporation": func(c *tuning.FieldConfig) { c.Food.Evaporation = 0 },
		"zero regrowth":    func(c *tuning.FieldConfig) { c.Food.RegrowthRate = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := testFieldConfig(4, 4)
			mutate(&cfg)
			if _, err := NewFields(cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestDiffuse_CornerWithTwoFullNeighbors(t *testing.T) {
	f := mustFields(t, 4, 4)
	f.Set(LayerHeat, 1, 0, 1)
	f.Set(LayerHeat, 0, 1, 1)

	f.Diffuse(LayerHeat)

	if got := f.At(LayerHeat, 0, 0); !near(got, 0.1) {
		t.Fatalf("corner = %v, want 0.1", got)
	}
}

func TestDiffuse_InteriorConservesMass(t *testing.T) {
	f := mustFields(t, 7, 7)
	f.Set(LayerHeat, 3, 3, 1)
	before := f.Total(LayerHeat)

	f.Diffuse(LayerHeat)

	if after := f.Total(LayerHeat); !near(after, before) {
		t.Fatalf("total after = %v, want %v", after, before)
	}
	if got := f.At(LayerHeat, 3, 3); !near(got, 0.9) {
		t.Errorf("centre = %v, want 0.9", got)
	}
	for _, c := range [][2]int{{2, 3}, {4, 3}, {3, 2}, {3, 4}} {
		if got := f.At(LayerHeat, c[0], c[1]); !near(got, 0.025) {
			t.Errorf("neighbour %v = %v, want 0.025", c, got)
		}
	}
}

func TestDiffuse_BoundaryChangesMass(t *testing.T) {
	f := mustFields(t, 3, 3)
	f.Set(LayerHeat, 0, 0, 1)
	before := f.Total(LayerHeat)

	f.Diffuse(LayerHeat)

	// The corner gives 0.1 away but each edge neighbour averages over three
	// cells, so only 2*0.1/3 arrives.
	if after := f.Total(LayerHeat); near(after, before) {
		t.Fatalf("boundary diffusion conserved mass exactly (%v)", after)
	}
}

func TestFields_StayClampedUnderRandomOps(t *testing.T) {
	f := mustFields(t, 8, 6)
	rng := rand.New(rand.NewSource(1))
	anchors := []Point{{X: 20, Y: 20}, {X: 70, Y: 50}}

	for i := 0; i < 2000; i++ {
		l := Layer(rng.Intn(NumLayers))
		switch rng.Intn(4) {
		case 0:
			x := rng.Float64()*120 - 20
			y := rng.Float64()*100 - 20
			f.Modify(l, x, y, rng.Float64()*4-2, rng.Float64()*3)
		case 1:
			f.Diffuse(l)
		case 2:
			f.Evaporate(l)
		case 3:
			f.Regrow(l, anchors)
		}
		for ll := Layer(0); ll < NumLayers; ll++ {
			for j, v := range f.Cells(ll) {
				if v < 0 || v > 1 || math.IsNaN(v) {
					t.Fatalf("op %d: %s cell %d = %v", i, ll, j, v)
				}
			}
		}
	}
}

func TestEvaporate_ZeroesResidue(t *testing.T) {
	f := mustFields(t, 2, 1)
	f.Set(LayerHeat, 0, 0, 0.01)
	f.Set(LayerHeat, 1, 0, 0.5)

	f.Evaporate(LayerHeat)

	if got := f.At(LayerHeat, 0, 0); got != 0 {
		t.Errorf("residue cell = %v, want 0", got)
	}
	if got := f.At(LayerHeat, 1, 0); !near(got, 0.475) {
		t.Errorf("decayed cell = %v, want 0.475", got)
	}
}

func TestRegrow_CapAndLocality(t *testing.T) {
	f := mustFields(t, 10, 10)
	anchor := []Point{{X: 15, Y: 15}} // centre of cell (1,1)
	f.Set(LayerFood, 1, 1, 0.899)

	f.Regrow(LayerFood, anchor)

	if got := f.At(LayerFood, 1, 1); got != 0.9 {
		t.Errorf("capped cell = %v, want 0.9", got)
	}
	if got := f.At(LayerFood, 2, 1); !near(got, 0.004) {
		t.Errorf("nearby cell = %v, want 0.004", got)
	}
	if got := f.At(LayerFood, 8, 8); got != 0 {
		t.Errorf("far cell = %v, want 0", got)
	}

	for i := 0; i < 1000; i++ {
		f.Regrow(LayerFood, anchor)
	}
	if got := f.At(LayerFood, 1, 1); got != 0.9 {
		t.Errorf("cell after many regrowths = %v, want cap 0.9", got)
	}
}

func TestRegrow_OnlyFood(t *testing.T) {
	f := mustFields(t, 4, 4)
	f.Regrow(LayerHeat, []Point{{X: 5, Y: 5}})
	if total := f.Total(LayerHeat); total != 0 {
		t.Fatalf("heat regrew to %v", total)
	}
}

func TestSample_ClampsToEdges(t *testing.T) {
	f := mustFields(t, 4, 3)
	f.Set(LayerFood, 0, 0, 0.2)
	f.Set(LayerFood, 3, 2, 0.7)

	cases := []struct {
		x, y float64
		want float64
	}{
		{-50, -50, 0.2},
		{5, 5, 0.2},
		{1000, 1000, 0.7},
		{39.9, 29.9, 0.7},
		{math.NaN(), math.NaN(), 0.2},
	}
	for _, tc := range cases {
		if got := f.Sample(LayerFood, tc.x, tc.y); got != tc.want {
			t.Errorf("Sample(%v,%v) = %v, want %v", tc.x, tc.y, got, tc.want)
		}
	}
	if got := f.Sample(Layer(9), 5, 5); got != 0 {
		t.Errorf("unknown layer = %v, want 0", got)
	}
}

func TestModify_LinearFalloff(t *testing.T) {
	f := mustFields(t, 9, 9)
	// Centre of cell (4,4).
	f.Modify(LayerTrauma, 45, 45, 0.5, 2)

	if got := f.At(LayerTrauma, 4, 4); !near(got, 0.5) {
		t.Errorf("centre = %v, want 0.5", got)
	}
	if got := f.At(LayerTrauma, 5, 4); !near(got, 0.25) {
		t.Errorf("one cell away = %v, want 0.25", got)
	}
	if got := f.At(LayerTrauma, 6, 4); got != 0 {
		t.Errorf("at radius = %v, want 0", got)
	}
	if got := f.At(LayerTrauma, 7, 4); got != 0 {
		t.Errorf("outside radius = %v, want 0", got)
	}
}

func TestModify_NegativeClampsAtZero(t *testing.T) {
	f := mustFields(t, 3, 3)
	f.Set(LayerFood, 1, 1, 0.01)
	f.Modify(LayerFood, 15, 15, -0.5, 1)
	if got := f.At(LayerFood, 1, 1); got != 0 {
		t.Fatalf("cell = %v, want 0", got)
	}
}

func TestClone_IsIndependent(t *testing.T) {
	f := mustFields(t, 3, 3)
	f.Set(LayerHeat, 1, 1, 0.5)
	c := f.Clone()
	c.Set(LayerHeat, 1, 1, 0.9)
	c.Diffuse(LayerHeat)

	if got := f.At(LayerHeat, 1, 1); got != 0.5 {
		t.Fatalf("original changed to %v", got)
	}
}

func TestLoad_RejectsWrongSize(t *testing.T) {
	f := mustFields(t, 2, 2)
	if err := f.Load(LayerFood, []float64{1, 2, 3}); err == nil {
		t.Fatal("expected size error")
	}
	if err := f.Load(LayerFood, []float64{-1, 0.5, 2, math.NaN()}); err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []float64{0, 0.5, 1, 0}
	for i, v := range f.Cells(LayerFood) {
		if v != want[i] {
			t.Errorf("cell %d = %v, want %v", i, v, want[i])
		}
	}
}
