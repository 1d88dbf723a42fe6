package entropy

import "testing"

func TestKeyed_IsPure(t *testing.T) {
	a := Keyed(7, "e1", "SEEK_FOOD", "static", 3)
	for i := 0; i < 5; i++ {
		if b := Keyed(7, "e1", "SEEK_FOOD", "static", 3); b != a {
			t.Fatalf("call %d = %v, want %v", i, b, a)
		}
	}
	if a < 0 || a >= 1 {
		t.Fatalf("keyed value %v out of [0,1)", a)
	}
}

func TestKeyed_DependsOnEveryPart(t *testing.T) {
	base := Keyed(7, "e1", "SEEK_FOOD", "static", 3)
	variants := map[string]float64{
		"seed":    Keyed(8, "e1", "SEEK_FOOD", "static", 3),
		"id":      Keyed(7, "e2", "SEEK_FOOD", "static", 3),
		"key":     Keyed(7, "e1", "LOITER", "static", 3),
		"purpose": Keyed(7, "e1", "SEEK_FOOD", "phase", 3),
		"bucket":  Keyed(7, "e1", "SEEK_FOOD", "static", 4),
		// The separator keeps "ab"+"c" distinct from "a"+"bc".
		"split": Keyed(7, "e1S", "EEK_FOOD", "static", 3),
	}
	for name, v := range variants {
		if v == base {
			t.Errorf("changing %s did not change the value", name)
		}
	}
}

func TestSeeded_Deterministic(t *testing.T) {
	a, b := NewSeeded(99), NewSeeded(99)
	for i := 0; i < 100; i++ {
		if x, y := a.Float64(), b.Float64(); x != y {
			t.Fatalf("draw %d: %v != %v", i, x, y)
		}
	}
}

func TestForTick_VariesWithTime(t *testing.T) {
	if ForTick(1, 10).Float64() == ForTick(1, 11).Float64() {
		t.Fatal("consecutive ticks drew the same first value")
	}
	if ForTick(1, 10).Float64() != ForTick(1, 10).Float64() {
		t.Fatal("same tick drew different values")
	}
}

func TestSequence_RepeatsLast(t *testing.T) {
	s := NewSequence(0.1, 0.2)
	want := []float64{0.1, 0.2, 0.2, 0.2}
	for i, w := range want {
		if got := s.Float64(); got != w {
			t.Fatalf("draw %d = %v, want %v", i, got, w)
		}
	}
	if NewSequence().Float64() != 0 {
		t.Fatal("empty sequence should yield 0")
	}
}

func TestUniform_Range(t *testing.T) {
	if got := Uniform(Fixed(0), -3, 3); got != -3 {
		t.Fatalf("Uniform(0) = %v, want -3", got)
	}
	if got := Uniform(Fixed(0.5), -3, 3); got != 0 {
		t.Fatalf("Uniform(0.5) = %v, want 0", got)
	}
}
