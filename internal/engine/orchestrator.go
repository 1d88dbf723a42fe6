// Tick orchestration: one synchronous state transition of the world.
// Entities and fields are read from a frozen snapshot; everything the tick
// produces is returned as a batch for the caller to apply.
package engine

import (
	"math"

	"github.com/talgya/hollowmere/internal/agents"
	"github.com/talgya/hollowmere/internal/entropy"
	"github.com/talgya/hollowmere/internal/tuning"
	"github.com/talgya/hollowmere/internal/world"
)

// TickInput is everything one tick reads. None of it is mutated.
type TickInput struct {
	Entities   []*agents.Entity
	Fields     *world.Fields
	Time       float64 // world minutes
	Locations  []world.Location
	Decider    *agents.Decider
	Psychology *agents.Psychology
	Config     tuning.Config
}

// FieldDelta is one queued field modification.
type FieldDelta struct {
	Layer  world.Layer `json:"layer"`
	X      float64     `json:"x"`
	Y      float64     `json:"y"`
	Delta  float64     `json:"delta"`
	Radius float64     `json:"radius"` // cells
}

// EntityUpdate is the new derived state for one entity.
type EntityUpdate struct {
	ID string `json:"id"`

	Despair          float64 `json:"despair"`
	Aggression       float64 `json:"aggression"`
	MentalBreakpoint float64 `json:"mental_breakpoint"`

	Scar      *agents.Scar          `json:"scar,omitempty"`
	NewTrauma []agents.TraumaMemory `json:"new_trauma,omitempty"`

	// Acted is false when the entity died before its decision step.
	Acted       bool              `json:"acted"`
	Action      agents.ActionKind `json:"action"`
	Target      world.Point       `json:"target"`
	Scores      agents.ScoreSet   `json:"scores"`
	Competitors int               `json:"competitors,omitempty"`

	Died bool `json:"died,omitempty"`
}

// TickResult is the batch a tick hands back to the caller.
type TickResult struct {
	Time        float64        `json:"time"`
	Updates     []EntityUpdate `json:"updates"`
	FieldDeltas []FieldDelta   `json:"field_deltas"`
	Fields      *world.Fields  `json:"-"` // post-tick fields, a fresh copy
	Events      []Event        `json:"events"`
}

// Update returns the update for id, if the tick produced one.
func (r *TickResult) Update(id string) (EntityUpdate, bool) {
	for _, u := range r.Updates {
		if u.ID == id {
			return u, true
		}
	}
	return EntityUpdate{}, false
}

type tickState struct {
	in      TickInput
	src     entropy.Source
	updates []*EntityUpdate // parallel to in.Entities
	dead    map[string]bool // died during this tick
	deltas  []FieldDelta
	events  []Event
}

// Tick advances the world by one step. Entities are processed in input order;
// every random draw comes from src, so the same input and the same seeded
// source give the same result.
func Tick(in TickInput, src entropy.Source) TickResult {
	st := &tickState{
		in:      in,
		src:     src,
		updates: make([]*EntityUpdate, len(in.Entities)),
		dead:    make(map[string]bool),
	}

	// Dead is shared with the scene so later entities stop seeing the fallen.
	scene := agents.Scene{Fields: in.Fields, Entities: in.Entities, Dead: st.dead, Time: in.Time}
	for i, e := range in.Entities {
		if e == nil || !e.Alive || st.dead[e.ID] {
			continue
		}
		st.process(i, e, scene)
	}

	fields := in.Fields.Clone()
	for _, d := range st.deltas {
		fields.Modify(d.Layer, d.X, d.Y, d.Delta, d.Radius)
	}
	fields.Step(world.FoodAnchors(in.Locations))

	res := TickResult{
		Time:        in.Time,
		FieldDeltas: st.deltas,
		Fields:      fields,
		Events:      st.events,
	}
	for _, u := range st.updates {
		if u != nil {
			res.Updates = append(res.Updates, *u)
		}
	}
	return res
}

// update returns entity i's pending update. It starts from the entity's
// current psyche so an entity killed before its own turn keeps its values.
func (st *tickState) update(i int) *EntityUpdate {
	if st.updates[i] == nil {
		e := st.in.Entities[i]
		st.updates[i] = &EntityUpdate{
			ID:               e.ID,
			Despair:          e.Psyche.Despair,
			Aggression:       e.Psyche.Aggression,
			MentalBreakpoint: e.Psyche.MentalBreakpoint,
			Action:           e.Action,
			Target:           world.Point{X: e.TargetX, Y: e.TargetY},
		}
	}
	return st.updates[i]
}

func (st *tickState) process(i int, e *agents.Entity, scene agents.Scene) {
	cfg := st.in.Config
	psy := st.in.Psychology
	u := st.update(i)

	// Psychology is evaluated against the new breakpoint.
	view := *e
	view.Psyche.MentalBreakpoint = psy.ProcessTrauma(e, st.in.Time)
	despair := psy.Despair(&view)
	aggression := psy.Aggression(&view)

	u.MentalBreakpoint = view.Psyche.MentalBreakpoint
	u.Despair = despair
	u.Aggression = aggression

	// Scars only on the tick the threshold is crossed.
	if e.Psyche.MentalBreakpoint <= cfg.Psyche.Breakdown.Threshold {
		if scar, ok := psy.CheckMentalBreakdown(&view); ok {
			u.Scar = &scar
			st.events = append(st.events, Event{
				Kind:      EventBreakdown,
				EntityID:  e.ID,
				Severity:  view.Psyche.MentalBreakpoint,
				Timestamp: st.in.Time,
			})
		}
	}

	if psy.ShouldAttemptSuicide(despair, st.src) {
		ok := agents.Succeeds(cfg.Dark.SuicideSuccess, st.src)
		st.events = append(st.events, Event{
			Kind:      EventSuicideAttempt,
			EntityID:  e.ID,
			Severity:  despair,
			Timestamp: st.in.Time,
			Succeeded: ok,
		})
		if ok {
			u.Died = true
			st.dead[e.ID] = true
			sev := math.Max(despair, cfg.Dark.VictimSeverityFloor)
			st.violence(e.X, e.Y, sev, false)
			st.witnesses(e, "", e.X, e.Y, sev*cfg.Dark.WitnessFactor, agents.TraumaSuicideWitnessed)
			return
		}
	}

	vi := st.nearestVictim(i, e)
	if psy.ShouldAttemptMurder(aggression, vi >= 0, st.src) {
		victim := st.in.Entities[vi]
		ok := agents.Succeeds(cfg.Dark.MurderSuccess, st.src)
		st.events = append(st.events, Event{
			Kind:      EventMurderAttempt,
			EntityID:  e.ID,
			VictimID:  victim.ID,
			Severity:  aggression,
			Timestamp: st.in.Time,
			Succeeded: ok,
		})

		sev := math.Max(aggression, cfg.Dark.VictimSeverityFloor)
		st.inflict(vi, e.ID, sev, agents.TraumaAssaulted)
		st.witnesses(e, victim.ID, victim.X, victim.Y, sev*cfg.Dark.WitnessFactor, agents.TraumaMurderWitnessed)
		st.violence(victim.X, victim.Y, sev, true)
		if ok {
			st.update(vi).Died = true
			st.dead[victim.ID] = true
		}
	}

	dec := st.in.Decider.Decide(&view, scene, despair, aggression, st.src)
	u.Acted = true
	u.Action = dec.Action
	u.Target = dec.Target
	u.Scores = dec.Scores
	u.Competitors = dec.Competitors

	if dec.Action == agents.SeekFood {
		st.deltas = append(st.deltas, FieldDelta{
			Layer: world.LayerFood, X: e.X, Y: e.Y,
			Delta: -cfg.Effects.FoodConsumption, Radius: cfg.Effects.ConsumptionRadius,
		})
		if dec.HeatDelta > 0 {
			st.deltas = append(st.deltas, FieldDelta{
				Layer: world.LayerHeat, X: e.X, Y: e.Y,
				Delta: dec.HeatDelta, Radius: cfg.Effects.FrictionRadius,
			})
		}
	}
}

// nearestVictim returns the index of the nearest live entity within the
// victim radius, or -1. Earlier entities win ties.
func (st *tickState) nearestVictim(self int, e *agents.Entity) int {
	best, bestDist := -1, math.Inf(1)
	for j, o := range st.in.Entities {
		if j == self || o == nil || !o.Alive || st.dead[o.ID] || o.ID == e.ID {
			continue
		}
		d := world.Distance(e.X, e.Y, o.X, o.Y)
		if d <= st.in.Config.Dark.VictimRadius && d < bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

// inflict queues a trauma memory for entity j and emits the event.
func (st *tickState) inflict(j int, source string, severity float64, kind agents.TraumaKind) {
	severity = world.Clamp01(severity)
	target := st.in.Entities[j]
	u := st.update(j)
	u.NewTrauma = append(u.NewTrauma, agents.TraumaMemory{
		Kind:      kind,
		Timestamp: st.in.Time,
		Severity:  severity,
	})
	st.events = append(st.events, Event{
		Kind:      EventTraumaInflicted,
		EntityID:  target.ID,
		SourceID:  source,
		Severity:  severity,
		Timestamp: st.in.Time,
		Trauma:    kind,
	})
}

// witnesses traumatises every live bystander within the witness radius of
// (x, y), excluding the actor and the victim.
func (st *tickState) witnesses(actor *agents.Entity, victimID string, x, y, severity float64, kind agents.TraumaKind) {
	for j, o := range st.in.Entities {
		if o == nil || !o.Alive || st.dead[o.ID] || o.ID == actor.ID || o.ID == victimID {
			continue
		}
		if world.Distance(x, y, o.X, o.Y) <= st.in.Config.Dark.WitnessRadius {
			st.inflict(j, actor.ID, severity, kind)
		}
	}
}

// violence marks the ground where it happened.
func (st *tickState) violence(x, y, severity float64, heat bool) {
	fx := st.in.Config.Effects
	st.deltas = append(st.deltas, FieldDelta{
		Layer: world.LayerTrauma, X: x, Y: y,
		Delta: severity * fx.ViolenceTrauma, Radius: fx.ViolenceTraumaRadius,
	})
	if heat {
		st.deltas = append(st.deltas, FieldDelta{
			Layer: world.LayerHeat, X: x, Y: y,
			Delta: fx.ViolenceHeat, Radius: fx.ViolenceHeatRadius,
		})
	}
}
