// Command worldsim runs the Hollowmere emergent behaviour simulation headless.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/hollowmere/internal/agents"
	"github.com/talgya/hollowmere/internal/engine"
	"github.com/talgya/hollowmere/internal/entropy"
	"github.com/talgya/hollowmere/internal/persistence"
	"github.com/talgya/hollowmere/internal/tuning"
	"github.com/talgya/hollowmere/internal/world"
)

// settings are the runner knobs, read from the environment.
type settings struct {
	Seed       int64
	DBPath     string
	TuningPath string
	Snapshot   string
	Restore    string
	Entities   int
	Interval   time.Duration
	Speed      float64
	MaxTicks   uint64
	LogLevel   slog.Level
}

func loadSettings() (settings, error) {
	s := settings{
		Seed:     42,
		DBPath:   "data/hollowmere.db",
		Entities: 40,
		Interval: time.Second,
		Speed:    1,
	}
	s.TuningPath = os.Getenv("WORLDSIM_TUNING")
	s.Snapshot = os.Getenv("WORLDSIM_SNAPSHOT")
	s.Restore = os.Getenv("WORLDSIM_RESTORE")
	if v := os.Getenv("WORLDSIM_DB"); v != "" {
		s.DBPath = v
	}
	if v := os.Getenv("WORLDSIM_SEED"); v != "" {
		if v == "random" {
			s.Seed = entropy.CryptoSeed()
		} else {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return s, fmt.Errorf("WORLDSIM_SEED: %w", err)
			}
			s.Seed = n
		}
	}
	if v := os.Getenv("WORLDSIM_ENTITIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return s, fmt.Errorf("WORLDSIM_ENTITIES: want a positive integer, got %q", v)
		}
		s.Entities = n
	}
	if v := os.Getenv("WORLDSIM_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return s, fmt.Errorf("WORLDSIM_INTERVAL: %w", err)
		}
		s.Interval = d
	}
	if v := os.Getenv("WORLDSIM_SPEED"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return s, fmt.Errorf("WORLDSIM_SPEED: %w", err)
		}
		s.Speed = f
	}
	if v := os.Getenv("WORLDSIM_TICKS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return s, fmt.Errorf("WORLDSIM_TICKS: %w", err)
		}
		s.MaxTicks = n
	}
	if v := os.Getenv("WORLDSIM_LOG_LEVEL"); v != "" {
		if err := s.LogLevel.UnmarshalText([]byte(strings.ToUpper(v))); err != nil {
			return s, fmt.Errorf("WORLDSIM_LOG_LEVEL: %w", err)
		}
	}
	return s, nil
}

func main() {
	cfgEnv, err := loadSettings()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfgEnv.LogLevel,
	}))
	slog.SetDefault(logger)
	if err != nil {
		slog.Error("bad settings", "error", err)
		os.Exit(1)
	}

	slog.Info("Hollowmere: emergent behaviour simulation")

	tun, err := tuning.Load(cfgEnv.TuningPath)
	if err != nil {
		slog.Error("failed to load tuning", "path", cfgEnv.TuningPath, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(cfgEnv.DBPath), 0o755); err != nil {
		slog.Error("failed to create data dir", "error", err)
		os.Exit(1)
	}
	db, err := persistence.Open(cfgEnv.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfgEnv.DBPath)

	// ── Load or Generate World State ─────────────────────────────────
	sim, fresh, err := buildWorld(ctx, db, tun, cfgEnv)
	if err != nil {
		slog.Error("failed to build world", "error", err)
		os.Exit(1)
	}
	sim.Committer = db

	if fresh {
		if err := db.SaveWorldState(ctx, sim); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	}

	eng := engine.NewEngine()
	eng.Tick = uint64(sim.Time)
	eng.Speed = cfgEnv.Speed
	eng.Interval = cfgEnv.Interval

	eng.OnTick = func(ctx context.Context, tick uint64) error {
		_, err := sim.Step(ctx)
		return err
	}
	eng.OnHour = sim.TickHour
	eng.OnDay = func(tick uint64) {
		sim.TickDay(tick)
		// Auto-save daily.
		if err := db.SaveWorldState(ctx, sim); err != nil {
			slog.Error("daily save failed", "error", err)
		}
	}

	fmt.Printf("\nHollowmere is alive: %s souls around %d landmarks.\n",
		humanize.Comma(int64(sim.Stats.Alive)), len(sim.Locations))
	if !fresh {
		fmt.Printf("Resuming at %s\n", engine.SimTime(uint64(sim.Time)))
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	if err := eng.Run(ctx, cfgEnv.MaxTicks); err != nil {
		slog.Error("engine stopped", "error", err)
	}

	// Final save on shutdown; the run context may already be cancelled.
	slog.Info("final save...")
	if err := db.SaveWorldState(context.Background(), sim); err != nil {
		slog.Error("final save failed", "error", err)
	}
	if cfgEnv.Snapshot != "" {
		if err := persistence.WriteSnapshot(cfgEnv.Snapshot, persistence.Capture(sim)); err != nil {
			slog.Error("snapshot failed", "path", cfgEnv.Snapshot, "error", err)
		} else {
			slog.Info("snapshot written", "path", cfgEnv.Snapshot)
		}
	}

	fmt.Println("Simulation stopped. World state saved.")
}

// buildWorld restores from a snapshot when one is named, then from the saved
// world when there is one, otherwise it generates a fresh one from the seed.
// A snapshot restore counts as fresh so it replaces the stored world.
func buildWorld(ctx context.Context, db *persistence.DB, tun tuning.Config, s settings) (*engine.Simulation, bool, error) {
	if s.Restore != "" {
		h, err := persistence.ReadSnapshotHeader(s.Restore)
		if err != nil {
			return nil, false, fmt.Errorf("read snapshot header: %w", err)
		}
		slog.Info("restoring snapshot",
			"path", s.Restore,
			"version", h.Version,
			"entities", humanize.Comma(int64(h.Entities)),
			"sim_time", engine.SimTime(uint64(h.WorldTime)),
		)
		snap, err := persistence.ReadSnapshot(s.Restore)
		if err != nil {
			return nil, false, fmt.Errorf("read snapshot: %w", err)
		}
		sim, err := snap.Restore(tun)
		if err != nil {
			return nil, false, err
		}
		return sim, true, nil
	}

	if db.HasWorldState() {
		slog.Info("found saved world state, loading...")
		seed := s.Seed
		if v, err := db.GetMeta("seed"); err == nil {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				seed = n
			}
		}
		ents, err := db.LoadEntities(ctx)
		if err != nil {
			return nil, false, fmt.Errorf("load entities: %w", err)
		}
		locs, err := db.LoadLocations(ctx)
		if err != nil {
			return nil, false, fmt.Errorf("load locations: %w", err)
		}
		fields, err := db.LoadFields(ctx, tun.Field)
		if err != nil {
			return nil, false, fmt.Errorf("load fields: %w", err)
		}
		sim, err := engine.NewSimulation(tun, fields, locs, ents, seed)
		if err != nil {
			return nil, false, err
		}
		if t, err := db.WorldTime(); err == nil {
			sim.Time = t
		}
		slog.Info("world state restored",
			"entities", humanize.Comma(int64(len(ents))),
			"locations", len(locs),
			"seed", seed,
			"sim_time", engine.SimTime(uint64(sim.Time)),
		)
		return sim, false, nil
	}

	slog.Info("no saved state found, generating new world...", "seed", s.Seed)
	fields, err := world.NewFields(tun.Field)
	if err != nil {
		return nil, false, err
	}
	w, h := fields.Bounds()

	gen := world.DefaultGenConfig()
	gen.Seed = s.Seed
	locs := world.Generate(gen, w, h)
	world.SeedFields(fields, locs, gen)
	for _, l := range locs {
		slog.Info("landmark", "name", l.Name, "type", l.Type, "x", int(l.X), "y", int(l.Y))
	}

	ents := agents.NewSpawner(s.Seed).SpawnPopulation(s.Entities, locs, 0)
	sim, err := engine.NewSimulation(tun, fields, locs, ents, s.Seed)
	if err != nil {
		return nil, false, err
	}
	return sim, true, nil
}
