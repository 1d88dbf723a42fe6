package world

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNoLocations is returned when the landmark table is empty.
	ErrNoLocations = errors.New("no locations")
	// ErrNoFaith is returned when no landmark provides faith.
	ErrNoFaith = errors.New("no faith location")
	// ErrInvalidLocation is returned for a malformed landmark.
	ErrInvalidLocation = errors.New("invalid location")
)

// LocationType tags what a landmark is for.
type LocationType uint8

const (
	LocationFood    LocationType = iota // Orchards, markets, fields
	LocationSocial                      // Taverns, squares
	LocationShelter                     // Walls, houses
	LocationFaith                       // The chapel; exactly one is expected
	LocationWild                        // Woods, ruins
)

var locationTypeNames = [...]string{"food", "social", "shelter", "faith", "wild"}

func (t LocationType) String() string {
	if int(t) < len(locationTypeNames) {
		return locationTypeNames[t]
	}
	return fmt.Sprintf("location(%d)", uint8(t))
}

// Location is a static landmark. The core never mutates it.
type Location struct {
	Name   string       `json:"name"`
	Type   LocationType `json:"type"`
	X      float64      `json:"x"`
	Y      float64      `json:"y"`
	Radius float64      `json:"radius"`

	// Categories maps freeform labels ("food", "curiosity", ...) to
	// probability multipliers.
	Categories map[string]float64 `json:"categories,omitempty"`
}

// Category returns the multiplier for label, or def when the label is absent.
func (l Location) Category(label string, def float64) float64 {
	if v, ok := l.Categories[label]; ok {
		return v
	}
	return def
}

// Point returns the landmark centre.
func (l Location) Point() Point { return Point{X: l.X, Y: l.Y} }

// ValidateLocations rejects tables the decision engine cannot work with.
func ValidateLocations(locs []Location) error {
	if len(locs) == 0 {
		return ErrNoLocations
	}
	faith := false
	for _, l := range locs {
		if !(l.Radius > 0) {
			return fmt.Errorf("%w: %q radius %v", ErrInvalidLocation, l.Name, l.Radius)
		}
		if math.IsNaN(l.X) || math.IsNaN(l.Y) {
			return fmt.Errorf("%w: %q position", ErrInvalidLocation, l.Name)
		}
		if l.Type == LocationFaith {
			faith = true
		}
	}
	if !faith {
		return ErrNoFaith
	}
	return nil
}

// FaithLocation returns the first faith landmark.
func FaithLocation(locs []Location) (Location, bool) {
	for _, l := range locs {
		if l.Type == LocationFaith {
			return l, true
		}
	}
	return Location{}, false
}

// FoodAnchors returns the centres of every landmark with a positive food
// multiplier. These are the points food regrows around.
func FoodAnchors(locs []Location) []Point {
	var pts []Point
	for _, l := range locs {
		if l.Category("food", 0) > 0 {
			pts = append(pts, l.Point())
		}
	}
	return pts
}

// Distance returns the Euclidean distance between two points.
func Distance(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x2-x1, y2-y1)
}
