package annotation

import (
	"slices"
	"unicode/utf8"

	"ladder-tracker/internal/domain"
)

type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Axis describes the rendered axis. Zoom, when set, is the visible window.
type Axis struct {
	PixelWidth float64 `json:"pixelWidth"`
	DataMin    float64 `json:"dataMin"`
	DataMax    float64 `json:"dataMax"`
	Zoom       *Range  `json:"zoom,omitempty"`
}

func (a Axis) PixelsPerUnit() float64 {
	span := a.DataMax - a.DataMin
	if a.Zoom != nil {
		span = a.Zoom.Max - a.Zoom.Min
	}
	if span <= 0 || a.PixelWidth <= 0 {
		return 0
	}
	return a.PixelWidth / span
}

// Metrics approximate label text size in pixels.
type Metrics struct {
	CharWidth float64
	Padding   float64
	Border    float64
	MinGap    float64
}

var DefaultMetrics = Metrics{
	CharWidth: 6.6,
	Padding:   6,
	Border:    1,
	MinGap:    4,
}

func (m Metrics) LabelWidth(content string) float64 {
	return float64(utf8.RuneCountInString(content))*m.CharWidth + 2*m.Padding + 2*m.Border
}

// Layout decides which labels are displayed. Walking from the rightmost
// marker, a label is shown only if it clears the nearest shown label to its
// right by half of both widths plus MinGap. The input is not modified.
func Layout(markers []domain.AnnotationMarker, axis Axis, m Metrics) []domain.AnnotationMarker {
	out := slices.Clone(markers)
	order := make([]int, len(out))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		pa, pb := out[a].Anchor(), out[b].Anchor()
		switch {
		case pa < pb:
			return -1
		case pa > pb:
			return 1
		}
		return 0
	})

	ppu := axis.PixelsPerUnit()
	next := -1
	for k := len(order) - 1; k >= 0; k-- {
		i := order[k]
		if out[i].Label.Content == "" {
			out[i].Label.Display = false
			continue
		}
		if next < 0 {
			out[i].Label.Display = true
			next = i
			continue
		}
		dist := (out[next].Anchor() - out[i].Anchor()) * ppu
		need := m.LabelWidth(out[i].Label.Content)/2 + m.LabelWidth(out[next].Label.Content)/2 + m.MinGap
		out[i].Label.Display = dist > need
		if out[i].Label.Display {
			next = i
		}
	}
	return out
}

// Visible counts displayed labels.
func Visible(markers []domain.AnnotationMarker) int {
	var n int
	for _, mk := range markers {
		if mk.Label.Display {
			n++
		}
	}
	return n
}
