// Psychological model: despair, aggression, trauma load and breakdown.
// All functions are pure over the entity snapshot; draws come from the
// caller's source.
package agents

import (
	"github.com/talgya/hollowmere/internal/entropy"
	"github.com/talgya/hollowmere/internal/tuning"
	"github.com/talgya/hollowmere/internal/world"
)

// Psychology evaluates the psychological model with one set of weights.
type Psychology struct {
	cfg  tuning.PsycheConfig
	dark tuning.DarkConfig
}

// NewPsychology binds the model to its weights.
func NewPsychology(cfg tuning.Config) *Psychology {
	return &Psychology{cfg: cfg.Psyche, dark: cfg.Dark}
}

// Despair scores suicidal-ideation risk. Isolation and starvation are
// squared so despair accelerates as needs go unmet; empathy buffers it.
func (p *Psychology) Despair(e *Entity) float64 {
	w := p.cfg.Despair
	d := e.ResolvedDrives()
	t := e.Personality.Normalized()

	isolation := 1 - d.Social
	starvation := 1 - d.Energy

	v := w.Isolation*isolation*isolation +
		w.Starvation*starvation*starvation +
		w.Trauma*world.Clamp01(e.Psyche.MentalBreakpoint) +
		w.Hopelessness*(1-t.Mood) -
		w.EmpathyBuffer*t.Empathy
	if world.Clamp01(e.Stress) > w.ChronicStressThreshold {
		v += w.ChronicStress
	}
	return world.Clamp01(v)
}

// Aggression scores violent-tendency risk. Unlike despair it has no
// protective buffer.
func (p *Psychology) Aggression(e *Entity) float64 {
	w := p.cfg.Aggression
	d := e.ResolvedDrives()
	t := e.Personality.Normalized()

	v := w.Cornered*(1-d.Safety) +
		w.Frustration*world.Clamp01(e.Stress) +
		w.Trauma*world.Clamp01(e.Psyche.MentalBreakpoint) +
		w.LowEmpathy*(1-t.Empathy) +
		w.Boldness*t.Boldness
	if d.Energy < w.DesperationEnergy {
		v += w.Desperation
	}
	return world.Clamp01(v)
}

// ProcessTrauma returns the new mental breakpoint at world time now.
// Without memories the breakpoint recovers by a small step. Otherwise every
// memory inside the recency window weighs more the older it is, modelling
// intrusive memories that worsen before they fade out of the window.
func (p *Psychology) ProcessTrauma(e *Entity, now float64) float64 {
	t := p.cfg.Trauma
	if len(e.Psyche.TraumaMemories) == 0 {
		return world.Clamp01(e.Psyche.MentalBreakpoint - t.RecoveryStep)
	}
	sum := 0.0
	for _, m := range e.Psyche.TraumaMemories {
		since := now - m.Timestamp
		if since < 0 || since >= t.WindowMinutes {
			continue
		}
		sum += world.Clamp01(m.Severity) * (1 + since*t.Amplification)
	}
	return world.Clamp01(sum / t.Divisor)
}

// Scar is a permanent personality shift caused by a breakdown.
type Scar struct {
	Empathy   float64 `json:"empathy"`
	Weirdness float64 `json:"weirdness"`
	Mood      float64 `json:"mood"`
}

// Apply shifts the personality by the scar, clamped.
func (s Scar) Apply(p *Personality) {
	n := p.Normalized()
	p.Empathy = world.Clamp01(n.Empathy + s.Empathy)
	p.Weirdness = world.Clamp01(n.Weirdness + s.Weirdness)
	p.Mood = world.Clamp01(n.Mood + s.Mood)
}

// CheckMentalBreakdown reports the scar to apply when the breakpoint is
// past the breakdown threshold.
func (p *Psychology) CheckMentalBreakdown(e *Entity) (Scar, bool) {
	b := p.cfg.Breakdown
	if !(e.Psyche.MentalBreakpoint > b.Threshold) {
		return Scar{}, false
	}
	return Scar{Empathy: b.EmpathyDelta, Weirdness: b.WeirdnessDelta, Mood: b.MoodDelta}, true
}

// ShouldAttemptSuicide is false below the despair threshold; above it one
// uniform draw succeeds with probability despair*rate.
func (p *Psychology) ShouldAttemptSuicide(despair float64, src entropy.Source) bool {
	if !(despair >= p.dark.SuicideThreshold) {
		return false
	}
	return src.Float64() < world.Clamp01(despair)*p.dark.SuicideRate
}

// ShouldAttemptMurder needs a nearby victim and aggression at or above the
// threshold; then one uniform draw succeeds with probability aggression*rate.
func (p *Psychology) ShouldAttemptMurder(aggression float64, hasNearbyVictim bool, src entropy.Source) bool {
	if !hasNearbyVictim || !(aggression >= p.dark.MurderThreshold) {
		return false
	}
	return src.Float64() < world.Clamp01(aggression)*p.dark.MurderRate
}

// Succeeds draws the outcome of an attempt.
func Succeeds(rate float64, src entropy.Source) bool {
	return src.Float64() < rate
}
