// Entity spawning. Creates the initial population with archetypes,
// personalities, drives and starting positions near landmarks.
package agents

import (
	"math/rand"

	"github.com/google/uuid"

	"github.com/talgya/hollowmere/internal/world"
)

// Spawner creates entities for the simulation.
type Spawner struct {
	rng *rand.Rand
}

// NewSpawner creates an entity spawner with the given seed.
func NewSpawner(seed int64) *Spawner {
	return &Spawner{
		rng: rand.New(rand.NewSource(seed + 300)),
	}
}

// SpawnPopulation creates count entities distributed around the landmarks.
// Each entity's archetype decides which kind of landmark it starts near.
func (s *Spawner) SpawnPopulation(count int, locs []world.Location, born float64) []*Entity {
	out := make([]*Entity, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, s.spawnOne(pickArchetype(s.rng.Float64()), locs, born))
	}
	return out
}

// Spawn creates one entity of the given archetype.
func (s *Spawner) Spawn(archetype string, locs []world.Location, born float64) *Entity {
	return s.spawnOne(archetype, locs, born)
}

func (s *Spawner) spawnOne(archetype string, locs []world.Location, born float64) *Entity {
	tmpl := TemplateFor(archetype)
	if _, ok := archetypeTemplates[archetype]; !ok {
		archetype = ArchCommoner
	}

	home := s.homeFor(tmpl.Home, locs)
	x, y := home.X, home.Y
	if home.Radius > 0 {
		x += (s.rng.Float64()*2 - 1) * home.Radius
		y += (s.rng.Float64()*2 - 1) * home.Radius
	}

	// Drives: mostly met at world start (stable starting conditions).
	drives := Drives{
		Energy: 0.6 + s.rng.Float64()*0.3,
		Social: 0.4 + s.rng.Float64()*0.3,
		Safety: 0.5 + s.rng.Float64()*0.3,
	}

	return &Entity{
		ID:          s.newID(),
		Name:        s.generateName(),
		X:           x,
		Y:           y,
		TargetX:     x,
		TargetY:     y,
		Personality: s.personality(tmpl),
		Drives:      &drives,
		Stress:      s.rng.Float64() * 0.2,
		Archetype:   archetype,
		Action:      Loiter,
		BornAt:      born,
		Alive:       true,
	}
}

// newID draws a v4 UUID from the seeded stream so a seed reproduces the
// same population.
func (s *Spawner) newID() string {
	id, err := uuid.NewRandomFromReader(s.rng)
	if err != nil {
		// rand.Rand.Read never fails.
		panic(err)
	}
	return id.String()
}

func (s *Spawner) personality(tmpl ArchetypeTemplate) Personality {
	vary := func(v float64) float64 {
		return world.Clamp01(v + (s.rng.Float64()*2-1)*tmpl.Spread)
	}
	p := tmpl.Personality
	return Personality{
		Curiosity: vary(p.Curiosity),
		Empathy:   vary(p.Empathy),
		Boldness:  vary(p.Boldness),
		Order:     vary(p.Order),
		Mood:      vary(p.Mood),
		Weirdness: vary(p.Weirdness),
	}
}

// homeFor picks a random landmark of the wanted type, or any landmark when
// the table has none of that type.
func (s *Spawner) homeFor(kind string, locs []world.Location) world.Location {
	if len(locs) == 0 {
		return world.Location{}
	}
	var matches []world.Location
	for _, l := range locs {
		if l.Type.String() == kind {
			matches = append(matches, l)
		}
	}
	if len(matches) == 0 {
		matches = locs
	}
	return matches[s.rng.Intn(len(matches))]
}

func (s *Spawner) generateName() string {
	firsts := givenNames
	first := firsts[s.rng.Intn(len(firsts))]
	last := lastNames[s.rng.Intn(len(lastNames))]
	return first + " " + last
}

// Name pools for procedural generation.
var givenNames = []string{
	"Aldric", "Bram", "Cedric", "Doran", "Erik", "Finn", "Gareth",
	"Halvard", "Ivan", "Jasper", "Kael", "Leif", "Magnus", "Nils",
	"Oswin", "Per", "Quinn", "Rowan", "Stellan", "Theron", "Ulric",
	"Astrid", "Brenna", "Calla", "Daria", "Elara", "Freya", "Greta",
	"Helene", "Iris", "Juno", "Kira", "Lena", "Mira", "Nessa",
	"Olwen", "Petra", "Runa", "Senna", "Thea", "Una", "Vera",
}

var lastNames = []string{
	"Voss", "Thornwood", "Blackwood", "Ashford", "Dunmore",
	"Greenvale", "Stormcrow", "Hearthstone", "Millward",
	"Ravenmoor", "Silverdale", "Stoneheart", "Deepwell", "Brightwater",
	"Marshwood", "Nightingale", "Riverstone", "Embercroft", "Holloway",
	"Dawnridge", "Farrow", "Thatcher", "Briar", "Caldwell", "Harper", "Mercer",
}
