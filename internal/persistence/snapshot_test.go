package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/talgya/hollowmere/internal/engine"
	"github.com/talgya/hollowmere/internal/tuning"
	"github.com/talgya/hollowmere/internal/world"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	cfg := tuning.MustDefault()
	sim, err := engine.NewSimulation(cfg, testFields(t), testLocations(), testEntities(), 19)
	if err != nil {
		t.Fatalf("simulation: %v", err)
	}
	sim.Time = 321

	path := filepath.Join(t.TempDir(), "snaps", "world.snap.zst")
	if err := WriteSnapshot(path, Capture(sim)); err != nil {
		t.Fatalf("write: %v", err)
	}

	h, err := ReadSnapshotHeader(path)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	want := Header{Version: SnapshotVersion, WorldTime: 321, Seed: 19, Entities: len(sim.Entities)}
	if h != want {
		t.Fatalf("header = %+v, want %+v", h, want)
	}

	snap, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(snap.Entities, sim.Entities) {
		t.Fatal("entities differ after round trip")
	}
	if !reflect.DeepEqual(snap.Locations, sim.Locations) {
		t.Fatalf("locations = %+v", snap.Locations)
	}

	f, err := snap.Fields(cfg.Field)
	if err != nil {
		t.Fatalf("fields: %v", err)
	}
	for l := world.Layer(0); l < world.NumLayers; l++ {
		a, b := f.Cells(l), sim.Fields.Cells(l)
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("%s cell %d = %v, want %v", l, i, a[i], b[i])
			}
		}
	}

	small := cfg.Field
	small.Height = 4
	if _, err := snap.Fields(small); err == nil {
		t.Fatal("expected grid mismatch error")
	}
}

func TestReadSnapshot_RejectsOtherVersions(t *testing.T) {
	sim, err := engine.NewSimulation(tuning.MustDefault(), testFields(t), testLocations(), testEntities(), 1)
	if err != nil {
		t.Fatalf("simulation: %v", err)
	}
	snap := Capture(sim)
	snap.Header.Version = SnapshotVersion + 1

	path := filepath.Join(t.TempDir(), "future.snap.zst")
	if err := WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadSnapshot(path); !errors.Is(err, ErrSnapshotVersion) {
		t.Fatalf("err = %v, want ErrSnapshotVersion", err)
	}
}

func TestReadSnapshotHeader_MissingFile(t *testing.T) {
	if _, err := ReadSnapshotHeader(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error")
	}
}

func TestSnapshot_Restore(t *testing.T) {
	cfg := tuning.MustDefault()
	sim, err := engine.NewSimulation(cfg, testFields(t), testLocations(), testEntities(), 23)
	if err != nil {
		t.Fatalf("simulation: %v", err)
	}
	sim.Time = 4321

	path := filepath.Join(t.TempDir(), "world.snap.zst")
	if err := WriteSnapshot(path, Capture(sim)); err != nil {
		t.Fatalf("write: %v", err)
	}
	snap, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got, err := snap.Restore(cfg)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got.Time != 4321 || got.Seed != 23 {
		t.Fatalf("time %v seed %d, want 4321 and 23", got.Time, got.Seed)
	}
	if len(got.Index) != len(sim.Entities) || !reflect.DeepEqual(got.Entities, sim.Entities) {
		t.Fatal("entities differ after restore")
	}
	if got.Fields.Total(world.LayerFood) != sim.Fields.Total(world.LayerFood) {
		t.Errorf("food total %v, want %v", got.Fields.Total(world.LayerFood), sim.Fields.Total(world.LayerFood))
	}

	// The restored world keeps running.
	if _, err := got.Step(context.Background()); err != nil {
		t.Fatalf("step after restore: %v", err)
	}
	if got.Time != 4322 {
		t.Fatalf("time after step = %v", got.Time)
	}
}
