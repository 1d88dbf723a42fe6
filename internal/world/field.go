// Package world provides the spatial scalar fields (heat, food, trauma) that
// entities sense and disturb, and the static landmark table.
package world

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/hollowmere/internal/tuning"
)

// ErrInvalidConfig is returned when a field grid cannot be built.
var ErrInvalidConfig = errors.New("invalid field config")

// Layer names one scalar field.
type Layer uint8

const (
	LayerHeat Layer = iota
	LayerFood
	LayerTrauma
)

// NumLayers is the number of field layers.
const NumLayers = 3

var layerNames = [NumLayers]string{"heat", "food", "trauma"}

func (l Layer) String() string {
	if int(l) < NumLayers {
		return layerNames[l]
	}
	return fmt.Sprintf("layer(%d)", uint8(l))
}

// ParseLayer maps a layer name back to its Layer.
func ParseLayer(name string) (Layer, error) {
	for i, n := range layerNames {
		if n == name {
			return Layer(i), nil
		}
	}
	return 0, fmt.Errorf("unknown layer %q", name)
}

// Point is a position in world units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Fields holds one grid per layer over the world extent.
// Cells are indexed y*width+x and always hold values in [0, 1].
type Fields struct {
	width    int
	height   int
	cellSize float64
	floor    float64 // evaporation residue threshold

	params [NumLayers]tuning.LayerConfig
	layers [NumLayers][]float64
	// scratch buffer for Diffuse; never shared between clones.
	scratch []float64
}

// NewFields builds zeroed layers. Degenerate sizes and rates are rejected
// here so the per-tick operations never need to check them.
func NewFields(cfg tuning.FieldConfig) (*Fields, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrInvalidConfig, cfg.Width, cfg.Height)
	}
	if cfg.CellSize <= 0 || math.IsNaN(cfg.CellSize) {
		return nil, fmt.Errorf("%w: cell size %v", ErrInvalidConfig, cfg.CellSize)
	}
	f := &Fields{
		width:    cfg.Width,
		height:   cfg.Height,
		cellSize: cfg.CellSize,
		floor:    cfg.EvaporationFloor,
	}
	f.params[LayerHeat] = cfg.Heat
	f.params[LayerFood] = cfg.Food
	f.params[LayerTrauma] = cfg.Trauma

	for l := Layer(0); l < NumLayers; l++ {
		p := f.params[l]
		if !(p.Diffusion > 0 && p.Diffusion <= 1) {
			return nil, fmt.Errorf("%w: %s diffusion %v", ErrInvalidConfig, l, p.Diffusion)
		}
		if !(p.Evaporation > 0 && p.Evaporation <= 1) {
			return nil, fmt.Errorf("%w: %s evaporation %v", ErrInvalidConfig, l, p.Evaporation)
		}
		f.layers[l] = make([]float64, cfg.Width*cfg.Height)
	}
	food := f.params[LayerFood]
	if food.RegrowthRate <= 0 || food.RegrowthRadius <= 0 || food.RegrowthCap <= 0 || food.RegrowthCap > 1 {
		return nil, fmt.Errorf("%w: food regrowth rate=%v radius=%v cap=%v",
			ErrInvalidConfig, food.RegrowthRate, food.RegrowthRadius, food.RegrowthCap)
	}
	f.scratch = make([]float64, cfg.Width*cfg.Height)
	return f, nil
}

// Dims returns the grid size in cells.
func (f *Fields) Dims() (width, height int) { return f.width, f.height }

// CellSize returns the edge length of one cell in world units.
func (f *Fields) CellSize() float64 { return f.cellSize }

// Bounds returns the world extent in world units.
func (f *Fields) Bounds() (width, height float64) {
	return float64(f.width) * f.cellSize, float64(f.height) * f.cellSize
}

// Params returns the rates configured for a layer.
func (f *Fields) Params(l Layer) tuning.LayerConfig {
	if int(l) >= NumLayers {
		return tuning.LayerConfig{}
	}
	return f.params[l]
}

func (f *Fields) layer(l Layer) []float64 {
	if f == nil || int(l) >= NumLayers {
		return nil
	}
	return f.layers[l]
}

// CellOf converts world coordinates to a cell index, clamping to the
// nearest edge cell.
func (f *Fields) CellOf(x, y float64) (cx, cy int) {
	return clampIndex(x/f.cellSize, f.width), clampIndex(y/f.cellSize, f.height)
}

func clampIndex(v float64, n int) int {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v >= float64(n) {
		return n - 1
	}
	return int(v)
}

// Sample returns the layer value at world coordinates. Uninitialised layers
// read as 0 and out-of-bounds coordinates read the nearest edge cell.
func (f *Fields) Sample(l Layer, x, y float64) float64 {
	cells := f.layer(l)
	if cells == nil {
		return 0
	}
	cx, cy := f.CellOf(x, y)
	return cells[cy*f.width+cx]
}

// At returns the value of a cell by grid index, clamped to the grid.
func (f *Fields) At(l Layer, cx, cy int) float64 {
	cells := f.layer(l)
	if cells == nil {
		return 0
	}
	cx = clampInt(cx, 0, f.width-1)
	cy = clampInt(cy, 0, f.height-1)
	return cells[cy*f.width+cx]
}

// Set writes one cell, clamped to [0, 1]. Out-of-range indices are ignored.
func (f *Fields) Set(l Layer, cx, cy int, v float64) {
	cells := f.layer(l)
	if cells == nil || cx < 0 || cy < 0 || cx >= f.width || cy >= f.height {
		return
	}
	cells[cy*f.width+cx] = Clamp01(v)
}

// Modify adds delta with a linear falloff (1 at the target, 0 at radius) to
// every cell whose centre lies within radius cells of (x, y).
func (f *Fields) Modify(l Layer, x, y, delta, radius float64) {
	cells := f.layer(l)
	if cells == nil || radius <= 0 || delta == 0 || math.IsNaN(delta) {
		return
	}
	// Target in cell units, clamped onto the grid like Sample.
	wb, hb := f.Bounds()
	px := clampFloat(x, 0, wb) / f.cellSize
	py := clampFloat(y, 0, hb) / f.cellSize

	x0 := clampInt(int(math.Floor(px-radius)), 0, f.width-1)
	x1 := clampInt(int(math.Ceil(px+radius)), 0, f.width-1)
	y0 := clampInt(int(math.Floor(py-radius)), 0, f.height-1)
	y1 := clampInt(int(math.Ceil(py+radius)), 0, f.height-1)

	for cy := y0; cy <= y1; cy++ {
		for cx := x0; cx <= x1; cx++ {
			d := math.Hypot(float64(cx)+0.5-px, float64(cy)+0.5-py)
			if d > radius {
				continue
			}
			i := cy*f.width + cx
			cells[i] = Clamp01(cells[i] + delta*(1-d/radius))
		}
	}
}

// Diffuse blends every cell with the unweighted mean of its in-bounds
// 4-neighbours: new = old*(1-r) + mean*r. All cells read the pre-step values.
func (f *Fields) Diffuse(l Layer) {
	cells := f.layer(l)
	if cells == nil {
		return
	}
	r := f.params[l].Diffusion
	prev := f.scratch
	copy(prev, cells)

	w, h := f.width, f.height
	for cy := 0; cy < h; cy++ {
		for cx := 0; cx < w; cx++ {
			sum, n := 0.0, 0
			if cx > 0 {
				sum += prev[cy*w+cx-1]
				n++
			}
			if cx < w-1 {
				sum += prev[cy*w+cx+1]
				n++
			}
			if cy > 0 {
				sum += prev[(cy-1)*w+cx]
				n++
			}
			if cy < h-1 {
				sum += prev[(cy+1)*w+cx]
				n++
			}
			if n == 0 {
				continue
			}
			i := cy*w + cx
			cells[i] = Clamp01(prev[i]*(1-r) + (sum/float64(n))*r)
		}
	}
}

// Evaporate decays cells above the residue floor by the layer's rate and
// zeroes the rest.
func (f *Fields) Evaporate(l Layer) {
	cells := f.layer(l)
	if cells == nil {
		return
	}
	keep := 1 - f.params[l].Evaporation
	for i, v := range cells {
		if v > f.floor {
			cells[i] = Clamp01(v * keep)
		} else {
			cells[i] = 0
		}
	}
}

// Regrow raises food cells near the anchors by the regrowth rate, up to the
// cap. Each cell grows at most once per call. Other layers never regrow.
func (f *Fields) Regrow(l Layer, anchors []Point) {
	cells := f.layer(l)
	if cells == nil || l != LayerFood || len(anchors) == 0 {
		return
	}
	p := f.params[l]
	for cy := 0; cy < f.height; cy++ {
		for cx := 0; cx < f.width; cx++ {
			if !f.nearAny(cx, cy, anchors, p.RegrowthRadius) {
				continue
			}
			i := cy*f.width + cx
			if cells[i] >= p.RegrowthCap {
				continue
			}
			cells[i] = math.Min(cells[i]+p.RegrowthRate, p.RegrowthCap)
		}
	}
}

func (f *Fields) nearAny(cx, cy int, anchors []Point, radius float64) bool {
	mx, my := float64(cx)+0.5, float64(cy)+0.5
	for _, a := range anchors {
		if math.Hypot(mx-a.X/f.cellSize, my-a.Y/f.cellSize) <= radius {
			return true
		}
	}
	return false
}

// Step runs the per-tick evolution: diffuse, then evaporate, then regrow,
// independently for every layer.
func (f *Fields) Step(anchors []Point) {
	for l := Layer(0); l < NumLayers; l++ {
		f.Diffuse(l)
		f.Evaporate(l)
		f.Regrow(l, anchors)
	}
}

// Clone returns a deep copy.
func (f *Fields) Clone() *Fields {
	c := *f
	for l := range f.layers {
		c.layers[l] = append([]float64(nil), f.layers[l]...)
	}
	c.scratch = make([]float64, len(f.scratch))
	return &c
}

// Cells returns a copy of a layer's cells in row-major order.
func (f *Fields) Cells(l Layer) []float64 {
	return append([]float64(nil), f.layer(l)...)
}

// Load replaces a layer's cells, clamping every value.
func (f *Fields) Load(l Layer, vals []float64) error {
	cells := f.layer(l)
	if cells == nil {
		return fmt.Errorf("load %s: no such layer", l)
	}
	if len(vals) != len(cells) {
		return fmt.Errorf("load %s: got %d cells, want %d", l, len(vals), len(cells))
	}
	for i, v := range vals {
		cells[i] = Clamp01(v)
	}
	return nil
}

// Total sums a layer.
func (f *Fields) Total(l Layer) float64 {
	sum := 0.0
	for _, v := range f.layer(l) {
		sum += v
	}
	return sum
}

// Clamp01 clamps v to [0, 1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
