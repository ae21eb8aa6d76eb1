package annotation

import (
	"slices"
	"sync"

	"ladder-tracker/internal/domain"
)

type Gesture int

const (
	GestureNone Gesture = iota
	GestureZoom
	GesturePan
)

func ParseGesture(s string) Gesture {
	switch s {
	case "zoom":
		return GestureZoom
	case "pan":
		return GesturePan
	}
	return GestureNone
}

type layoutResult struct {
	key     string
	ppu     float64
	width   float64
	markers []domain.AnnotationMarker
}

// Engine lays out one chart's markers and remembers the last result.
type Engine struct {
	metrics Metrics

	mu   sync.Mutex
	last *layoutResult
}

func NewEngine(m Metrics) *Engine {
	return &Engine{metrics: m}
}

// Apply lays out markers for axis. The previous result is reused when the
// marker set and the scale are unchanged and the axis is not being zoomed;
// panning only translates markers so distances between them stay the same.
func (e *Engine) Apply(key string, markers []domain.AnnotationMarker, axis Axis, g Gesture) []domain.AnnotationMarker {
	ppu := axis.PixelsPerUnit()

	e.mu.Lock()
	defer e.mu.Unlock()

	if g != GestureZoom && e.last != nil && e.last.key == key && e.last.ppu == ppu && e.last.width == axis.PixelWidth {
		return slices.Clone(e.last.markers)
	}

	out := Layout(markers, axis, e.metrics)
	e.last = &layoutResult{key: key, ppu: ppu, width: axis.PixelWidth, markers: out}
	return slices.Clone(out)
}
