package engine

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/talgya/hollowmere/internal/agents"
	"github.com/talgya/hollowmere/internal/tuning"
	"github.com/talgya/hollowmere/internal/world"
)

type stubCommitter struct {
	err   error
	calls int
	last  *TickResult
}

func (c *stubCommitter) CommitTick(_ context.Context, res *TickResult) error {
	c.calls++
	c.last = res
	return c.err
}

func testSimulation(t *testing.T, ents ...*agents.Entity) *Simulation {
	t.Helper()
	cfg := tuning.MustDefault()
	f, err := world.NewFields(cfg.Field)
	if err != nil {
		t.Fatalf("new fields: %v", err)
	}
	world.SeedFields(f, testLocations(), world.DefaultGenConfig())
	sim, err := NewSimulation(cfg, f, testLocations(), ents, 42)
	if err != nil {
		t.Fatalf("new simulation: %v", err)
	}
	return sim
}

func TestNewSimulation_Rejects(t *testing.T) {
	cfg := tuning.MustDefault()
	f, _ := world.NewFields(cfg.Field)

	if _, err := NewSimulation(cfg, f, testLocations(), nil, 1); !errors.Is(err, ErrNoEntities) {
		t.Errorf("empty: err = %v", err)
	}
	if _, err := NewSimulation(cfg, f, testLocations(), []*agents.Entity{person("x", 1, 1), person("x", 2, 2)}, 1); err == nil {
		t.Error("duplicate ids accepted")
	}
	if _, err := NewSimulation(cfg, f, testLocations()[1:], []*agents.Entity{person("x", 1, 1)}, 1); !errors.Is(err, world.ErrNoFaith) {
		t.Errorf("no faith: err = %v", err)
	}
}

func TestSimulation_FailedCommitLeavesWorldUnchanged(t *testing.T) {
	sim := testSimulation(t, person("a", 100, 100), person("b", 400, 300))
	sim.Time = 30
	c := &stubCommitter{err: errors.New("disk full")}
	sim.Committer = c

	fields := sim.Fields
	before := *sim.Entities[0]
	drives := *sim.Entities[0].Drives

	res, err := sim.Step(context.Background())
	if err == nil || res != nil {
		t.Fatalf("step = %v, %v; want error", res, err)
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("err = %v, want the commit cause", err)
	}
	if c.calls != 1 {
		t.Fatalf("commit calls = %d", c.calls)
	}
	if sim.Time != 30 || sim.Fields != fields {
		t.Fatalf("time %v / fields replaced after a failed commit", sim.Time)
	}
	after := sim.Entities[0]
	if after.X != before.X || after.Y != before.Y || after.Action != before.Action || *after.Drives != drives {
		t.Fatalf("entity changed after a failed commit")
	}
}

func TestSimulation_StepAppliesCommittedBatch(t *testing.T) {
	sim := testSimulation(t, person("a", 100, 100), person("b", 400, 300))
	sim.Time = 30
	c := &stubCommitter{}
	sim.Committer = c

	res, err := sim.Step(context.Background())
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if c.last != res {
		t.Fatal("committed batch is not the returned batch")
	}
	if res.Time != 30 || sim.Time != 31 {
		t.Fatalf("batch time %v, sim time %v", res.Time, sim.Time)
	}
	if sim.Fields != res.Fields {
		t.Fatal("fields not replaced by the batch")
	}
	for _, e := range sim.Entities {
		u, ok := res.Update(e.ID)
		if !ok {
			t.Fatalf("no update for %s", e.ID)
		}
		if e.Psyche.Despair != u.Despair || e.Action != u.Action {
			t.Errorf("%s: psyche/action not applied", e.ID)
		}
		if e.Drives.Energy >= agents.DefaultEnergy && e.Action != agents.SeekFood {
			t.Errorf("%s: energy did not decay", e.ID)
		}
	}
}

func TestSimulation_ApplyRecordsDeathsAndTrauma(t *testing.T) {
	sim := testSimulation(t, person("a", 100, 100), person("b", 120, 100))
	scar := agents.Scar{Empathy: -0.05, Weirdness: 0.05, Mood: -0.05}
	res := &TickResult{
		Time: 10,
		Updates: []EntityUpdate{
			{ID: "a", MentalBreakpoint: 0.8, Scar: &scar, Acted: true, Action: agents.SeekFaith, Target: world.Point{X: 800, Y: 500}},
			{ID: "b", Died: true, NewTrauma: []agents.TraumaMemory{{Kind: agents.TraumaAssaulted, Severity: 0.9, Timestamp: 10}}},
			{ID: "nobody"},
		},
		Events: []Event{
			{Kind: EventMurderAttempt, EntityID: "a", VictimID: "b", Succeeded: true, Timestamp: 10},
			{Kind: EventBreakdown, EntityID: "a", Timestamp: 10},
		},
	}

	sim.Apply(res)

	a, b := sim.Index["a"], sim.Index["b"]
	if a.Action != agents.SeekFaith || a.TargetX != 800 || a.Personality.Empathy >= agents.NeutralTrait {
		t.Errorf("a = %+v", a)
	}
	if b.Alive || len(b.Psyche.TraumaMemories) != 1 {
		t.Errorf("b alive %v memories %d", b.Alive, len(b.Psyche.TraumaMemories))
	}
	if b.X != 120 {
		t.Errorf("dead entity moved to %v", b.X)
	}
	if sim.Stats.Murders != 1 || sim.Stats.Breakdowns != 1 || len(sim.Events) != 2 {
		t.Errorf("stats = %+v events %d", sim.Stats, len(sim.Events))
	}
	if sim.Time != 11 {
		t.Errorf("time = %v, want 11", sim.Time)
	}

	sim.updateStats()
	if sim.Stats.Alive != 1 || sim.Stats.Deaths != 1 {
		t.Errorf("alive %d deaths %d", sim.Stats.Alive, sim.Stats.Deaths)
	}
}

func TestSimulation_StatsTallyNeediestDrive(t *testing.T) {
	hungry := person("hungry", 100, 100)
	hungry.Drives = &agents.Drives{Energy: 0.1, Social: 0.5, Safety: 0.6}
	lonely := person("lonely", 200, 100)
	lonely.Drives = &agents.Drives{Energy: 0.9, Social: 0.2, Safety: 0.6}
	scared := person("scared", 300, 100)
	scared.Drives = &agents.Drives{Energy: 0.9, Social: 0.8, Safety: 0.1}
	gone := person("gone", 400, 100)
	gone.Drives = &agents.Drives{Energy: 0, Social: 0, Safety: 0}
	gone.Alive = false

	sim := testSimulation(t, hungry, lonely, scared, gone)
	want := map[string]int{"energy": 1, "social": 1, "safety": 1}
	if len(sim.Stats.Needs) != len(want) {
		t.Fatalf("needs = %v, want %v", sim.Stats.Needs, want)
	}
	for k, n := range want {
		if sim.Stats.Needs[k] != n {
			t.Errorf("needs[%s] = %d, want %d", k, sim.Stats.Needs[k], n)
		}
	}
}

func TestSimulation_EventLogIsBounded(t *testing.T) {
	sim := testSimulation(t, person("a", 100, 100))
	events := make([]Event, maxEvents+10)
	for i := range events {
		events[i] = Event{Kind: EventTraumaInflicted, EntityID: "a", Timestamp: float64(i)}
	}
	sim.recordEvents(events)
	if len(sim.Events) != maxEvents || sim.Events[0].Timestamp != 10 {
		t.Fatalf("events = %d, first at %v", len(sim.Events), sim.Events[0].Timestamp)
	}
}

func TestEvent_CategoryAndDescribe(t *testing.T) {
	name := func(id string) string { return strings.ToUpper(id) }
	cases := []struct {
		ev       Event
		category string
		text     string
	}{
		{Event{Kind: EventSuicideAttempt, EntityID: "a", Succeeded: true}, "death", "A took their own life"},
		{Event{Kind: EventSuicideAttempt, EntityID: "a"}, "violence", "A attempted suicide and survived"},
		{Event{Kind: EventMurderAttempt, EntityID: "a", VictimID: "b", Succeeded: true}, "death", "A killed B"},
		{Event{Kind: EventMurderAttempt, EntityID: "a", VictimID: "b"}, "violence", "A attacked B"},
		{Event{Kind: EventTraumaInflicted, EntityID: "a", Trauma: agents.TraumaAssaulted, Severity: 0.5}, "trauma", "A was traumatised (assaulted, 0.50)"},
		{Event{Kind: EventBreakdown, EntityID: "a"}, "psyche", "A suffered a mental breakdown"},
	}
	for _, tc := range cases {
		if got := tc.ev.Category(); got != tc.category {
			t.Errorf("%s category = %q, want %q", tc.ev.Kind, got, tc.category)
		}
		if got := tc.ev.Describe(name); got != tc.text {
			t.Errorf("describe = %q, want %q", got, tc.text)
		}
	}
}

func TestSimTime(t *testing.T) {
	cases := map[uint64]string{
		0:    "Day 1, 0:00",
		59:   "Day 1, 0:59",
		61:   "Day 1, 1:01",
		1439: "Day 1, 23:59",
		1440: "Day 2, 0:00",
		4000: "Day 3, 18:40",
	}
	for in, want := range cases {
		if got := SimTime(in); got != want {
			t.Errorf("SimTime(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestEngine_RunStopsAfterMaxTicks(t *testing.T) {
	e := NewEngine()
	e.Interval = time.Microsecond
	e.Tick = TicksPerSimHour - 2

	var ticks, hours int32
	e.OnTick = func(context.Context, uint64) error {
		atomic.AddInt32(&ticks, 1)
		return errors.New("ignored")
	}
	e.OnHour = func(uint64) { atomic.AddInt32(&hours, 1) }

	if err := e.Run(context.Background(), 3); err != nil {
		t.Fatalf("run: %v", err)
	}
	if ticks != 3 || hours != 1 {
		t.Fatalf("ticks %d hours %d, want 3 and 1", ticks, hours)
	}
	if e.Tick != TicksPerSimHour+1 {
		t.Fatalf("tick = %d", e.Tick)
	}
}

func TestEngine_RunReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewEngine()
	e.Speed = 0
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, 0) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("paused engine ignored cancellation")
	}
	if e.Tick != 0 {
		t.Fatalf("paused engine ticked %d times", e.Tick)
	}
}
