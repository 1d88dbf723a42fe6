// Archetypes are personality templates the spawner draws from. Each one
// centres the traits somewhere distinctive; individual entities then vary
// around that centre.
package agents

// Archetype constants, the behavioral templates.
const (
	ArchWanderer  = "Wanderer"
	ArchCaretaker = "Caretaker"
	ArchZealot    = "Zealot"
	ArchBrute     = "Brute"
	ArchRecluse   = "Recluse"
	ArchCommoner  = "Commoner"
)

// ArchetypeTemplate centres the personality of a new entity.
type ArchetypeTemplate struct {
	Personality Personality

	// Spread is the half-width of the uniform variation around each trait.
	Spread float64

	// Home is the landmark type the entity spawns near.
	Home string

	// Weight is the relative frequency in a spawned population.
	Weight float64
}

var archetypeOrder = []string{
	ArchCommoner, ArchWanderer, ArchCaretaker, ArchZealot, ArchBrute, ArchRecluse,
}

var archetypeTemplates = map[string]ArchetypeTemplate{
	ArchCommoner: {
		Personality: NeutralPersonality(),
		Spread:      0.25,
		Home:        "social",
		Weight:      0.40,
	},
	ArchWanderer: {
		Personality: Personality{Curiosity: 0.85, Empathy: 0.45, Boldness: 0.65, Order: 0.25, Mood: 0.6, Weirdness: 0.55},
		Spread:      0.1,
		Home:        "wild",
		Weight:      0.15,
	},
	ArchCaretaker: {
		Personality: Personality{Curiosity: 0.4, Empathy: 0.9, Boldness: 0.35, Order: 0.6, Mood: 0.65, Weirdness: 0.3},
		Spread:      0.1,
		Home:        "social",
		Weight:      0.15,
	},
	ArchZealot: {
		Personality: Personality{Curiosity: 0.3, Empathy: 0.5, Boldness: 0.5, Order: 0.85, Mood: 0.45, Weirdness: 0.8},
		Spread:      0.1,
		Home:        "faith",
		Weight:      0.10,
	},
	ArchBrute: {
		Personality: Personality{Curiosity: 0.3, Empathy: 0.15, Boldness: 0.85, Order: 0.35, Mood: 0.35, Weirdness: 0.4},
		Spread:      0.1,
		Home:        "food",
		Weight:      0.10,
	},
	ArchRecluse: {
		Personality: Personality{Curiosity: 0.55, Empathy: 0.3, Boldness: 0.2, Order: 0.55, Mood: 0.3, Weirdness: 0.65},
		Spread:      0.1,
		Home:        "shelter",
		Weight:      0.10,
	},
}

// Archetypes returns the archetype names in a stable order.
func Archetypes() []string {
	return append([]string(nil), archetypeOrder...)
}

// TemplateFor returns the template for an archetype, falling back to the
// commoner for unknown names.
func TemplateFor(name string) ArchetypeTemplate {
	if t, ok := archetypeTemplates[name]; ok {
		return t
	}
	return archetypeTemplates[ArchCommoner]
}

// pickArchetype maps a uniform draw onto the weighted archetype table.
func pickArchetype(u float64) string {
	total := 0.0
	for _, name := range archetypeOrder {
		total += archetypeTemplates[name].Weight
	}
	acc := 0.0
	for _, name := range archetypeOrder {
		acc += archetypeTemplates[name].Weight / total
		if u < acc {
			return name
		}
	}
	return archetypeOrder[len(archetypeOrder)-1]
}
