// Simulation ties together the world state and the tick core, and applies
// each tick's batch once it has been committed.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/talgya/hollowmere/internal/agents"
	"github.com/talgya/hollowmere/internal/entropy"
	"github.com/talgya/hollowmere/internal/tuning"
	"github.com/talgya/hollowmere/internal/world"
)

// ErrNoEntities is returned when a simulation is built without anyone in it.
var ErrNoEntities = errors.New("no entities")

// maxEvents bounds the in-memory event log.
const maxEvents = 1000

// Committer persists a tick's batch. If it fails the batch is discarded and
// the world stays as it was before the tick.
type Committer interface {
	CommitTick(ctx context.Context, res *TickResult) error
}

// Simulation holds the complete world state and wires systems together.
type Simulation struct {
	Entities  []*agents.Entity
	Index     map[string]*agents.Entity
	Fields    *world.Fields
	Locations []world.Location
	Config    tuning.Config
	Seed      int64

	Time           float64 // world minutes of the next tick
	MinutesPerTick float64

	Decider    *agents.Decider
	Psychology *agents.Psychology
	Committer  Committer // optional

	Events []Event // Recent events, newest last
	Stats  SimStats
}

// SimStats tracks aggregate world statistics.
type SimStats struct {
	Alive         int                      `json:"alive"`
	Deaths        int                      `json:"deaths"`
	Suicides      int                      `json:"suicides"`
	Murders       int                      `json:"murders"`
	Breakdowns    int                      `json:"breakdowns"`
	AvgDespair    float64                  `json:"avg_despair"`
	AvgAggression float64                  `json:"avg_aggression"`
	AvgBreakpoint float64                  `json:"avg_breakpoint"`
	AvgEnergy     float64                  `json:"avg_energy"`
	Actions       [agents.NumActions]int   `json:"actions"`
	Needs         map[string]int           `json:"needs"` // living entities by least satisfied drive
	FieldTotals   [world.NumLayers]float64 `json:"field_totals"`
}

// NewSimulation creates a Simulation from generated or restored components.
func NewSimulation(cfg tuning.Config, fields *world.Fields, locs []world.Location, ents []*agents.Entity, seed int64) (*Simulation, error) {
	if len(ents) == 0 {
		return nil, ErrNoEntities
	}
	w, h := fields.Bounds()
	dec, err := agents.NewDecider(cfg, locs, w, h, seed)
	if err != nil {
		return nil, fmt.Errorf("build decider: %w", err)
	}

	index := make(map[string]*agents.Entity, len(ents))
	for _, e := range ents {
		if _, dup := index[e.ID]; dup {
			return nil, fmt.Errorf("duplicate entity id %s", e.ID)
		}
		index[e.ID] = e
	}

	sim := &Simulation{
		Entities:       ents,
		Index:          index,
		Fields:         fields,
		Locations:      locs,
		Config:         cfg,
		Seed:           seed,
		MinutesPerTick: TickMinutes,
		Decider:        dec,
		Psychology:     agents.NewPsychology(cfg),
	}
	sim.updateStats()
	return sim, nil
}

// Step runs one tick: snapshot, decide, commit, apply. A commit failure
// discards the whole batch and leaves the world untouched.
func (s *Simulation) Step(ctx context.Context) (*TickResult, error) {
	res := Tick(TickInput{
		Entities:   s.Entities,
		Fields:     s.Fields,
		Time:       s.Time,
		Locations:  s.Locations,
		Decider:    s.Decider,
		Psychology: s.Psychology,
		Config:     s.Config,
	}, entropy.ForTick(s.Seed, s.Time))

	if s.Committer != nil {
		if err := s.Committer.CommitTick(ctx, &res); err != nil {
			return nil, fmt.Errorf("commit tick at %s: %w", SimTime(uint64(s.Time)), err)
		}
	}
	s.Apply(&res)
	return &res, nil
}

// Apply folds a committed batch into the world and then runs the drive
// dynamics for the time that passed.
func (s *Simulation) Apply(res *TickResult) {
	cfg := s.Config
	for _, u := range res.Updates {
		e, ok := s.Index[u.ID]
		if !ok {
			slog.Warn("update for unknown entity", "id", u.ID)
			continue
		}
		e.Psyche.Despair = u.Despair
		e.Psyche.Aggression = u.Aggression
		e.Psyche.MentalBreakpoint = u.MentalBreakpoint
		if u.Scar != nil {
			u.Scar.Apply(&e.Personality)
		}
		for _, m := range u.NewTrauma {
			agents.RecordTrauma(e, m, cfg.Psyche.Trauma.MaxMemories)
		}
		e.Psyche.TraumaMemories = agents.PruneTrauma(e.Psyche.TraumaMemories, res.Time, cfg.Psyche.Trauma.WindowMinutes)
		if u.Acted {
			e.Action = u.Action
			e.TargetX, e.TargetY = u.Target.X, u.Target.Y
		}
		if u.Died {
			e.Alive = false
		}
	}
	if res.Fields != nil {
		s.Fields = res.Fields
	}

	for _, e := range s.Entities {
		if !e.Alive {
			continue
		}
		agents.MoveToward(e, cfg.Drives.MoveSpeed)
		agents.DecayDrives(e, cfg.Drives)
		agents.SatisfyDrives(e, s.contact(e), cfg.Drives)
		agents.DriftStress(e, cfg.Drives)
	}

	s.recordEvents(res.Events)
	s.Time = res.Time + s.MinutesPerTick
}

// contact reports what an entity finds where it stands.
func (s *Simulation) contact(e *agents.Entity) agents.Contact {
	c := agents.Contact{Food: s.Fields.Sample(world.LayerFood, e.X, e.Y)}
	for _, o := range s.Entities {
		if o == e || !o.Alive {
			continue
		}
		if world.Distance(e.X, e.Y, o.X, o.Y) <= s.Config.Drives.ContactRadius {
			c.Neighbors++
		}
	}
	for _, l := range s.Locations {
		if l.Type != world.LocationShelter && l.Type != world.LocationFaith {
			continue
		}
		if world.Distance(e.X, e.Y, l.X, l.Y) <= l.Radius {
			c.AtRefuge = true
			break
		}
	}
	return c
}

func (s *Simulation) recordEvents(events []Event) {
	for _, ev := range events {
		switch ev.Kind {
		case EventSuicideAttempt, EventMurderAttempt, EventBreakdown:
			args := []any{
				"category", ev.Category(),
				"time", SimTime(uint64(ev.Timestamp)),
				"description", ev.Describe(s.name),
			}
			if e, ok := s.Index[ev.EntityID]; ok && ev.Kind == EventBreakdown {
				if last := agents.RecentTrauma(e, 1); len(last) > 0 {
					args = append(args, "last_trauma", string(last[0].Kind))
				}
			}
			slog.Info("event", args...)
		default:
			slog.Debug("event", "category", ev.Category(), "description", ev.Describe(s.name))
		}
		switch {
		case ev.Kind == EventSuicideAttempt && ev.Succeeded:
			s.Stats.Suicides++
		case ev.Kind == EventMurderAttempt && ev.Succeeded:
			s.Stats.Murders++
		case ev.Kind == EventBreakdown:
			s.Stats.Breakdowns++
		}
	}
	s.Events = append(s.Events, events...)
	// Trim old events to prevent unbounded growth.
	if len(s.Events) > maxEvents {
		s.Events = s.Events[len(s.Events)-maxEvents:]
	}
}

func (s *Simulation) name(id string) string {
	if e, ok := s.Index[id]; ok {
		return e.Name
	}
	return id
}

// TickDay runs every sim-day: statistics, daily summary.
func (s *Simulation) TickDay(tick uint64) {
	s.updateStats()

	eventCounts := make(map[string]int)
	for _, e := range s.Events {
		eventCounts[e.Category()]++
	}

	slog.Info("daily report",
		"tick", humanize.Comma(int64(tick)),
		"time", SimTime(tick),
		"alive", s.Stats.Alive,
		"deaths", s.Stats.Deaths,
		"suicides", s.Stats.Suicides,
		"murders", s.Stats.Murders,
		"breakdowns", s.Stats.Breakdowns,
		"avg_despair", fmt.Sprintf("%.3f", s.Stats.AvgDespair),
		"avg_aggression", fmt.Sprintf("%.3f", s.Stats.AvgAggression),
		"avg_energy", fmt.Sprintf("%.3f", s.Stats.AvgEnergy),
		"food_total", fmt.Sprintf("%.1f", s.Stats.FieldTotals[world.LayerFood]),
		"events_violence", eventCounts["violence"],
		"events_death", eventCounts["death"],
		"events_trauma", eventCounts["trauma"],
		"needs_energy", s.Stats.Needs["energy"],
		"needs_social", s.Stats.Needs["social"],
		"needs_safety", s.Stats.Needs["safety"],
	)
}

// TickHour logs what everyone is busy with.
func (s *Simulation) TickHour(tick uint64) {
	s.updateStats()
	args := []any{"time", SimTime(tick)}
	for a := 0; a < agents.NumActions; a++ {
		args = append(args, agents.ActionKind(a).String(), s.Stats.Actions[a])
	}
	slog.Debug("hourly actions", args...)
}

func (s *Simulation) updateStats() {
	st := SimStats{
		Suicides:   s.Stats.Suicides,
		Murders:    s.Stats.Murders,
		Breakdowns: s.Stats.Breakdowns,
		Needs:      make(map[string]int),
	}
	var despair, aggression, breakpoint, energy float64
	for _, e := range s.Entities {
		if !e.Alive {
			st.Deaths++
			continue
		}
		st.Alive++
		despair += e.Psyche.Despair
		aggression += e.Psyche.Aggression
		breakpoint += e.Psyche.MentalBreakpoint
		d := e.ResolvedDrives()
		energy += d.Energy
		st.Needs[d.Lowest()]++
		if int(e.Action) < agents.NumActions {
			st.Actions[e.Action]++
		}
	}
	if st.Alive > 0 {
		n := float64(st.Alive)
		st.AvgDespair = despair / n
		st.AvgAggression = aggression / n
		st.AvgBreakpoint = breakpoint / n
		st.AvgEnergy = energy / n
	}
	for l := world.Layer(0); l < world.NumLayers; l++ {
		st.FieldTotals[l] = s.Fields.Total(l)
	}
	s.Stats = st
}
