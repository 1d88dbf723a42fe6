package engine

import (
	"fmt"

	"github.com/talgya/hollowmere/internal/agents"
)

// EventKind classifies what the tick emitted.
type EventKind string

const (
	EventTraumaInflicted EventKind = "trauma_inflicted"
	EventSuicideAttempt  EventKind = "suicide_attempt"
	EventMurderAttempt   EventKind = "murder_attempt"
	EventBreakdown       EventKind = "breakdown"
)

// Event is a notable occurrence in the world.
type Event struct {
	Kind      EventKind `json:"kind"`
	EntityID  string    `json:"entity_id"`           // actor, or the recipient of inflicted trauma
	VictimID  string    `json:"victim_id,omitempty"` // murder target
	SourceID  string    `json:"source_id,omitempty"` // who caused inflicted trauma
	Severity  float64   `json:"severity"`
	Timestamp float64   `json:"timestamp"` // world minutes
	Succeeded bool      `json:"succeeded,omitempty"`

	Trauma agents.TraumaKind `json:"trauma,omitempty"`
}

// Category buckets the event for summaries.
func (e Event) Category() string {
	switch e.Kind {
	case EventSuicideAttempt, EventMurderAttempt:
		if e.Succeeded {
			return "death"
		}
		return "violence"
	case EventTraumaInflicted:
		return "trauma"
	default:
		return "psyche"
	}
}

// Describe renders a one-line description given a name lookup.
func (e Event) Describe(name func(id string) string) string {
	switch e.Kind {
	case EventSuicideAttempt:
		if e.Succeeded {
			return fmt.Sprintf("%s took their own life", name(e.EntityID))
		}
		return fmt.Sprintf("%s attempted suicide and survived", name(e.EntityID))
	case EventMurderAttempt:
		if e.Succeeded {
			return fmt.Sprintf("%s killed %s", name(e.EntityID), name(e.VictimID))
		}
		return fmt.Sprintf("%s attacked %s", name(e.EntityID), name(e.VictimID))
	case EventTraumaInflicted:
		return fmt.Sprintf("%s was traumatised (%s, %.2f)", name(e.EntityID), e.Trauma, e.Severity)
	case EventBreakdown:
		return fmt.Sprintf("%s suffered a mental breakdown", name(e.EntityID))
	}
	return string(e.Kind)
}
