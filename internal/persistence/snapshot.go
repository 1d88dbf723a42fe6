package persistence

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/hollowmere/internal/agents"
	"github.com/talgya/hollowmere/internal/engine"
	"github.com/talgya/hollowmere/internal/tuning"
	"github.com/talgya/hollowmere/internal/world"
)

// SnapshotVersion is the current snapshot format.
const SnapshotVersion = 1

// ErrSnapshotVersion is returned for snapshots written by another format.
var ErrSnapshotVersion = errors.New("unsupported snapshot version")

// Header is the plain JSON first line of a snapshot, readable without
// decoding the body.
type Header struct {
	Version   int     `json:"version"`
	WorldTime float64 `json:"world_time"`
	Seed      int64   `json:"seed"`
	Entities  int     `json:"entities"`
}

// Snapshot is a full checkpoint of the world.
type Snapshot struct {
	Header    Header
	Width     int
	Height    int
	Layers    [world.NumLayers][]float64
	Locations []world.Location
	Entities  []*agents.Entity
}

// Capture copies the simulation into a snapshot.
func Capture(sim *engine.Simulation) Snapshot {
	w, h := sim.Fields.Dims()
	snap := Snapshot{
		Header: Header{
			Version:   SnapshotVersion,
			WorldTime: sim.Time,
			Seed:      sim.Seed,
			Entities:  len(sim.Entities),
		},
		Width:     w,
		Height:    h,
		Locations: sim.Locations,
		Entities:  sim.Entities,
	}
	for l := world.Layer(0); l < world.NumLayers; l++ {
		snap.Layers[l] = sim.Fields.Cells(l)
	}
	return snap
}

// Fields rebuilds the field grid from the snapshot using cfg's rates.
func (s Snapshot) Fields(cfg tuning.FieldConfig) (*world.Fields, error) {
	if cfg.Width != s.Width || cfg.Height != s.Height {
		return nil, fmt.Errorf("snapshot grid is %dx%d, config wants %dx%d", s.Width, s.Height, cfg.Width, cfg.Height)
	}
	f, err := world.NewFields(cfg)
	if err != nil {
		return nil, err
	}
	for l := world.Layer(0); l < world.NumLayers; l++ {
		if err := f.Load(l, s.Layers[l]); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Restore rebuilds a running simulation from the snapshot, resuming at the
// snapshot's world time.
func (s Snapshot) Restore(cfg tuning.Config) (*engine.Simulation, error) {
	fields, err := s.Fields(cfg.Field)
	if err != nil {
		return nil, err
	}
	sim, err := engine.NewSimulation(cfg, fields, s.Locations, s.Entities, s.Header.Seed)
	if err != nil {
		return nil, fmt.Errorf("restore snapshot: %w", err)
	}
	sim.Time = s.Header.WorldTime
	return sim, nil
}

// WriteSnapshot writes snap to path as zstd-compressed JSON header plus gob
// body.
func WriteSnapshot(path string, snap Snapshot) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(snap.Header)
	if err != nil {
		enc.Close()
		return err
	}
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// ReadSnapshotHeader reads only the header line.
func ReadSnapshotHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

// ReadSnapshot reads a snapshot written by WriteSnapshot.
func ReadSnapshot(path string) (Snapshot, error) {
	var snap Snapshot
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The gob body repeats the header; the line is only for quick peeks.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != SnapshotVersion {
		return snap, fmt.Errorf("%w: %d", ErrSnapshotVersion, snap.Header.Version)
	}
	return snap, nil
}
