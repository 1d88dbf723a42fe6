package agents

import (
	"math"

	"github.com/talgya/hollowmere/internal/entropy"
	"github.com/talgya/hollowmere/internal/world"
)

// compass holds the eight unit directions AVOID_HEAT probes, N first,
// clockwise.
var compass = [8]world.Point{
	{X: 0, Y: -1},
	{X: math.Sqrt2 / 2, Y: -math.Sqrt2 / 2},
	{X: 1, Y: 0},
	{X: math.Sqrt2 / 2, Y: math.Sqrt2 / 2},
	{X: 0, Y: 1},
	{X: -math.Sqrt2 / 2, Y: math.Sqrt2 / 2},
	{X: -1, Y: 0},
	{X: -math.Sqrt2 / 2, Y: -math.Sqrt2 / 2},
}

// GenerateTarget picks a concrete movement target for an action. Every
// random offset comes from src; the result is clamped to the world extent.
func (d *Decider) GenerateTarget(a ActionKind, e *Entity, scene Scene, src entropy.Source) world.Point {
	var p world.Point
	switch a {
	case SeekFood:
		p = d.foodTarget(e, scene, src)
	case Socialize:
		p = d.socialTarget(e, scene, src)
	case Explore:
		p = d.exploreTarget(e, src)
	case AvoidHeat:
		p = d.coolestDirection(e, scene)
	case SeekSafety:
		p = d.safetyTarget(scene, src)
	case SeekFaith:
		p = scatter(d.faith.Point(), d.cfg.Targets.FaithScatter, src)
	default:
		p = scatter(e.Position(), d.cfg.Targets.LoiterRadius, src)
	}
	return d.clampToWorld(p)
}

// foodTarget ranks landmarks by food, distance, heat, crowding and
// personality fit, then scatters inside the winner.
func (d *Decider) foodTarget(e *Entity, scene Scene, src entropy.Source) world.Point {
	w := d.cfg.Targets.FoodChoice
	diag := math.Hypot(d.width, d.height)
	traits := e.Personality.Normalized().Vector()

	candidates := make([]world.Location, 0, len(d.locations))
	for _, l := range d.locations {
		if l.Category("food", 0) > 0 {
			candidates = append(candidates, l)
		}
	}
	fallback := len(candidates) == 0
	if fallback {
		candidates = d.locations
	}

	best, bestScore := candidates[0], math.Inf(-1)
	for _, l := range candidates {
		mult := 1.0
		if !fallback {
			mult = l.Category("food", 0)
		}
		food := scene.Fields.Sample(world.LayerFood, l.X, l.Y)
		heat := scene.Fields.Sample(world.LayerHeat, l.X, l.Y)
		dist := world.Distance(e.X, e.Y, l.X, l.Y) / diag
		crowd := math.Min(float64(countNear(l.Point(), l.Radius, e, scene))/d.cfg.Utility.CrowdSaturation, 1)

		bonus := 0.0
		for t := 0; t < NumTraits; t++ {
			bonus += traits[t] * l.Category(traitNames[t], 0)
		}

		score := w.Food*food*mult - w.Distance*dist - w.Heat*heat - w.Crowd*crowd + w.Personality*bonus
		if score > bestScore {
			best, bestScore = l, score
		}
	}
	return scatter(best.Point(), math.Min(best.Radius, d.cfg.Targets.FoodScatter), src)
}

// socialTarget heads for the nearest other entity, or a social landmark when
// nobody else is alive.
func (d *Decider) socialTarget(e *Entity, scene Scene, src entropy.Source) world.Point {
	var nearest *Entity
	bestDist := math.Inf(1)
	for _, o := range scene.Entities {
		if !scene.present(o, e) {
			continue
		}
		if dist := world.Distance(e.X, e.Y, o.X, o.Y); dist < bestDist {
			nearest, bestDist = o, dist
		}
	}
	if nearest != nil {
		return scatter(nearest.Position(), d.cfg.Targets.SocialScatter, src)
	}
	l := d.nearestLocation(e, world.LocationSocial)
	return scatter(l.Point(), d.cfg.Targets.SocialScatter, src)
}

// exploreTarget picks a random point; curious entities prefer the edges.
func (d *Decider) exploreTarget(e *Entity, src entropy.Source) world.Point {
	t := d.cfg.Targets
	curiosity := e.Personality.Normalized().Curiosity

	if src.Float64() < curiosity*t.EdgeBias {
		side := int(src.Float64() * 4)
		along := src.Float64()
		depth := src.Float64() * t.EdgeBand
		switch side {
		case 0: // north
			return world.Point{X: along * d.width, Y: depth * d.height}
		case 1: // east
			return world.Point{X: d.width * (1 - depth), Y: along * d.height}
		case 2: // south
			return world.Point{X: along * d.width, Y: d.height * (1 - depth)}
		default: // west
			return world.Point{X: depth * d.width, Y: along * d.height}
		}
	}
	return world.Point{X: src.Float64() * d.width, Y: src.Float64() * d.height}
}

// coolestDirection probes heat in eight directions and steps toward the
// lowest; the first direction wins ties.
func (d *Decider) coolestDirection(e *Entity, scene Scene) world.Point {
	step := d.cfg.Targets.AvoidHeatStep
	best, bestHeat := compass[0], math.Inf(1)
	for _, dir := range compass {
		h := scene.Fields.Sample(world.LayerHeat, e.X+dir.X*step, e.Y+dir.Y*step)
		if h < bestHeat {
			best, bestHeat = dir, h
		}
	}
	return world.Point{X: e.X + best.X*step, Y: e.Y + best.Y*step}
}

// safetyTarget picks the landmark whose centre is coolest.
func (d *Decider) safetyTarget(scene Scene, src entropy.Source) world.Point {
	best, bestHeat := d.locations[0], math.Inf(1)
	for _, l := range d.locations {
		if h := scene.Fields.Sample(world.LayerHeat, l.X, l.Y); h < bestHeat {
			best, bestHeat = l, h
		}
	}
	return scatter(best.Point(), best.Radius/2, src)
}

// nearestLocation returns the nearest landmark of the given type, or the
// nearest landmark of any type if none match.
func (d *Decider) nearestLocation(e *Entity, typ world.LocationType) world.Location {
	var best world.Location
	found := false
	bestDist := math.Inf(1)
	for _, l := range d.locations {
		if l.Type != typ {
			continue
		}
		if dist := world.Distance(e.X, e.Y, l.X, l.Y); dist < bestDist {
			best, bestDist, found = l, dist, true
		}
	}
	if found {
		return best
	}
	for _, l := range d.locations {
		if dist := world.Distance(e.X, e.Y, l.X, l.Y); dist < bestDist {
			best, bestDist = l, dist
		}
	}
	return best
}

func (d *Decider) clampToWorld(p world.Point) world.Point {
	return world.Point{X: clampRange(p.X, 0, d.width), Y: clampRange(p.Y, 0, d.height)}
}

// scatter offsets p uniformly within a square of half-width r. It always
// consumes two draws so the draw count does not depend on r.
func scatter(p world.Point, r float64, src entropy.Source) world.Point {
	dx := entropy.Uniform(src, -r, r)
	dy := entropy.Uniform(src, -r, r)
	return world.Point{X: p.X + dx, Y: p.Y + dy}
}

// countNear counts live entities other than self within r of p.
func countNear(p world.Point, r float64, self *Entity, scene Scene) int {
	n := 0
	for _, o := range scene.Entities {
		if !scene.present(o, self) {
			continue
		}
		if world.Distance(p.X, p.Y, o.X, o.Y) <= r {
			n++
		}
	}
	return n
}

func clampRange(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
