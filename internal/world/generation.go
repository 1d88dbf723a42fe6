// World generation: landmark placement and baseline field seeding.
// Food is seeded around food landmarks and textured with simplex noise;
// heat and trauma start at zero.
package world

import (
	"fmt"
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds world generation parameters.
type GenConfig struct {
	Seed       int64
	Food       int     // food landmarks
	Social     int     // social landmarks
	Shelter    int     // shelter landmarks
	Wild       int     // wild landmarks
	MinSpacing float64 // world units between landmark centres
	FoodReach  float64 // baseline food reach, in multiples of the landmark radius
	NoiseScale float64 // noise frequency per cell
}

// DefaultGenConfig returns the standard village layout.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Seed:       0,
		Food:       3,
		Social:     2,
		Shelter:    1,
		Wild:       1,
		MinSpacing: 120,
		FoodReach:  2.5,
		NoiseScale: 0.15,
	}
}

// landmarkTemplate is the per-type shape of a generated landmark.
type landmarkTemplate struct {
	typ        LocationType
	radius     float64
	categories map[string]float64
}

var templates = map[LocationType]landmarkTemplate{
	LocationFood:    {LocationFood, 60, map[string]float64{"food": 1.0, "order": 0.5}},
	LocationSocial:  {LocationSocial, 50, map[string]float64{"food": 0.3, "empathy": 0.8}},
	LocationShelter: {LocationShelter, 70, map[string]float64{"order": 1.0}},
	LocationFaith:   {LocationFaith, 40, map[string]float64{"weirdness": 0.6, "empathy": 0.4}},
	LocationWild:    {LocationWild, 90, map[string]float64{"food": 0.4, "curiosity": 1.0, "weirdness": 0.5}},
}

// Generate places the landmark set for a world of the given extent.
// Placement is deterministic for a seed.
func Generate(cfg GenConfig, width, height float64) []Location {
	rng := rand.New(rand.NewSource(cfg.Seed + 200))
	noise := opensimplex.NewNormalized(cfg.Seed)

	order := []LocationType{LocationFaith}
	for i := 0; i < cfg.Food; i++ {
		order = append(order, LocationFood)
	}
	for i := 0; i < cfg.Social; i++ {
		order = append(order, LocationSocial)
	}
	for i := 0; i < cfg.Shelter; i++ {
		order = append(order, LocationShelter)
	}
	for i := 0; i < cfg.Wild; i++ {
		order = append(order, LocationWild)
	}

	names := generateNames(rng, len(order))
	locs := make([]Location, 0, len(order))

	for i, typ := range order {
		tmpl := templates[typ]
		x, y := placeLandmark(rng, noise, locs, typ, tmpl.radius, width, height, cfg.MinSpacing)
		cats := make(map[string]float64, len(tmpl.categories))
		for k, v := range tmpl.categories {
			cats[k] = v
		}
		locs = append(locs, Location{
			Name:       names[i],
			Type:       typ,
			X:          x,
			Y:          y,
			Radius:     tmpl.radius,
			Categories: cats,
		})
	}
	return locs
}

// placeLandmark samples candidate points and keeps the best-scoring one that
// respects spacing. The faith landmark prefers the centre, wild landmarks the
// fringe, everything else fertile (high-noise) ground.
func placeLandmark(rng *rand.Rand, noise opensimplex.Noise, existing []Location, typ LocationType, radius, width, height, minSpacing float64) (float64, float64) {
	const candidates = 64
	bestX, bestY, bestScore := width/2, height/2, math.Inf(-1)

	for i := 0; i < candidates; i++ {
		x := radius + rng.Float64()*math.Max(width-2*radius, 1)
		y := radius + rng.Float64()*math.Max(height-2*radius, 1)

		score := noise.Eval2(x/200, y/200)
		centre := Distance(x, y, width/2, height/2) / math.Hypot(width/2, height/2)
		switch typ {
		case LocationFaith:
			score -= centre * 2
		case LocationWild:
			score += centre * 2
		}
		if tooClose(x, y, existing, minSpacing) {
			score -= 10
		}
		if score > bestScore {
			bestX, bestY, bestScore = x, y, score
		}
	}
	return bestX, bestY
}

func tooClose(x, y float64, existing []Location, minDist float64) bool {
	for _, l := range existing {
		if Distance(x, y, l.X, l.Y) < minDist {
			return true
		}
	}
	return false
}

// generateNames produces procedural landmark names by combining syllables.
func generateNames(rng *rand.Rand, count int) []string {
	prefixes := []string{
		"Ash", "Stone", "Mill", "Cross", "Black", "Grey", "Thorn",
		"Elder", "Hollow", "Marsh", "Wren", "Crow", "Bramble", "Still",
	}
	suffixes := []string{
		"well", "yard", "green", "hollow", "chapel", "orchard", "gate",
		"field", "mere", "barrow", "copse", "cross", "hearth", "rest",
	}

	// Once every combination is taken, repeats get a numeral instead.
	pool := len(prefixes) * len(suffixes)
	used := make(map[string]bool)
	names := make([]string, 0, count)
	for len(names) < count {
		name := prefixes[rng.Intn(len(prefixes))] + suffixes[rng.Intn(len(suffixes))]
		if used[name] {
			if len(names) < pool {
				continue
			}
			base := name
			for n := 2; used[name]; n++ {
				name = fmt.Sprintf("%s %d", base, n)
			}
		}
		used[name] = true
		names = append(names, name)
	}
	return names
}

// SeedFields writes baseline food around every food-bearing landmark, scaled
// by its food multiplier and textured with noise. Heat and trauma are zeroed.
func SeedFields(f *Fields, locs []Location, cfg GenConfig) {
	noise := opensimplex.NewNormalized(cfg.Seed + 1)
	w, h := f.Dims()
	cs := f.CellSize()
	capFood := f.Params(LayerFood).RegrowthCap

	for cy := 0; cy < h; cy++ {
		for cx := 0; cx < w; cx++ {
			mx, my := (float64(cx)+0.5)*cs, (float64(cy)+0.5)*cs
			food := 0.0
			for _, l := range locs {
				mult := l.Category("food", 0)
				if mult <= 0 {
					continue
				}
				reach := l.Radius * cfg.FoodReach
				d := Distance(mx, my, l.X, l.Y)
				if d >= reach {
					continue
				}
				food = math.Max(food, mult*(1-d/reach))
			}
			texture := 0.7 + 0.3*noise.Eval2(float64(cx)*cfg.NoiseScale, float64(cy)*cfg.NoiseScale)
			f.Set(LayerFood, cx, cy, math.Min(food*texture, capFood))
			f.Set(LayerHeat, cx, cy, 0)
			f.Set(LayerTrauma, cx, cy, 0)
		}
	}
}
