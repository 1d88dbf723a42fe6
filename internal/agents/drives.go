// Drive dynamics between ticks: decay, satisfaction, stress and movement.
// The tick core only reads drives; the caller evolves them with these helpers
// after a batch has been committed.
package agents

import (
	"math"

	"github.com/talgya/hollowmere/internal/tuning"
	"github.com/talgya/hollowmere/internal/world"
)

// urgentDrive is the level below which a drive counts as unmet for stress.
const urgentDrive = 0.3

// Contact summarises what an entity found at its position after moving.
type Contact struct {
	Food      float64 // food layer value underfoot
	Neighbors int     // other live entities within the contact radius
	AtRefuge  bool    // inside a shelter or faith landmark
}

// Urgency returns 1-drive for each drive: how badly it needs attention.
func (d Drives) Urgency() (hunger, loneliness, unsafety float64) {
	return 1 - d.Energy, 1 - d.Social, 1 - d.Safety
}

// Lowest returns the name of the least satisfied drive.
func (d Drives) Lowest() string {
	switch {
	case d.Energy <= d.Social && d.Energy <= d.Safety:
		return "energy"
	case d.Social <= d.Safety:
		return "social"
	default:
		return "safety"
	}
}

func ensureDrives(e *Entity) *Drives {
	if e.Drives == nil {
		d := e.ResolvedDrives()
		e.Drives = &d
	}
	return e.Drives
}

// DecayDrives reduces every drive slightly for the passage of time.
func DecayDrives(e *Entity, cfg tuning.DrivesConfig) {
	d := ensureDrives(e)
	d.Energy -= cfg.EnergyDecay // Hunger is most urgent
	d.Social -= cfg.SocialDecay
	d.Safety -= cfg.SafetyDecay
	clampDrives(d)
}

// SatisfyDrives restores drives according to the action just taken and what
// the entity found where it ended up.
func SatisfyDrives(e *Entity, c Contact, cfg tuning.DrivesConfig) {
	d := ensureDrives(e)
	switch e.Action {
	case SeekFood:
		d.Energy += cfg.EatGain * c.Food
	case Socialize:
		if c.Neighbors > 0 {
			d.Social += cfg.SocialGain
		}
	case SeekSafety, SeekFaith:
		if c.AtRefuge {
			d.Safety += cfg.SafetyGain
		}
	}
	// Company is comforting regardless of intent, a little.
	if c.Neighbors > 0 && e.Action != Socialize {
		d.Social += cfg.SocialGain * 0.2
	}
	clampDrives(d)
}

// DriftStress raises stress while any drive is unmet and lets it recover
// otherwise.
func DriftStress(e *Entity, cfg tuning.DrivesConfig) {
	d := e.ResolvedDrives()
	if d.Energy < urgentDrive || d.Social < urgentDrive || d.Safety < urgentDrive {
		e.Stress += cfg.StressRise
	} else {
		e.Stress -= cfg.StressRecovery
	}
	e.Stress = world.Clamp01(e.Stress)
}

// MoveToward steps the entity toward its target by at most speed units.
func MoveToward(e *Entity, speed float64) {
	dx, dy := e.TargetX-e.X, e.TargetY-e.Y
	dist := math.Hypot(dx, dy)
	if dist <= speed || dist == 0 {
		e.X, e.Y = e.TargetX, e.TargetY
		return
	}
	e.X += dx / dist * speed
	e.Y += dy / dist * speed
}

func clampDrives(d *Drives) {
	d.Energy = world.Clamp01(d.Energy)
	d.Social = world.Clamp01(d.Social)
	d.Safety = world.Clamp01(d.Safety)
}
