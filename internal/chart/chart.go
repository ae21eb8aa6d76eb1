package chart

import (
	"errors"
	"io"
	"math"
	"slices"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"ladder-tracker/internal/domain"
	"ladder-tracker/internal/history"
)

var ErrEmptyTimeline = errors.New("timeline has no entries")

var (
	markerColors = map[domain.MarkerKind]drawing.Color{
		domain.MarkerSeason: drawing.ColorFromHex("1565c0"),
		domain.MarkerPatch:  drawing.ColorFromHex("9e9e9e"),
	}
	guideColor = drawing.ColorFromHex("bdbdbd")
)

// Frame is everything drawn in one chart.
type Frame struct {
	Title    string
	Metric   history.Metric
	Timeline *history.Timeline
	// Markers are time-axis annotations; only labels with Display set are
	// drawn, lines are drawn for every marker inside the range.
	Markers []domain.AnnotationMarker
	// Guides are horizontal value-axis lines, e.g. league thresholds.
	Guides []domain.AnnotationMarker
	From   time.Time
	To     time.Time
}

// Render draws the frame as a PNG.
func Render(w io.Writer, f Frame, width, height int) error {
	if f.Timeline == nil || len(f.Timeline.Entries) == 0 {
		return ErrEmptyTimeline
	}
	from, to := f.From, f.To
	if first, last, ok := f.Timeline.Range(); ok {
		if from.IsZero() {
			from = first
		}
		if to.IsZero() || !to.After(from) {
			to = last
		}
	}
	if !to.After(from) {
		// go-chart rejects zero-width ranges
		to = from.Add(time.Hour)
	}

	var series []chart.Series
	yMin, yMax := math.Inf(1), math.Inf(-1)
	for i, track := range f.Timeline.Tracks {
		var (
			xs []time.Time
			ys []float64
		)
		for _, e := range f.Timeline.Entries {
			v, ok := e.Values[track]
			if !ok || e.At.Before(from) || e.At.After(to) {
				continue
			}
			xs = append(xs, e.At)
			ys = append(ys, v)
			yMin, yMax = math.Min(yMin, v), math.Max(yMax, v)
		}
		if len(xs) == 0 {
			continue
		}
		if len(xs) == 1 {
			// pad to at least two X values for go-chart
			xs = append(xs, xs[0].Add(time.Minute))
			ys = append(ys, ys[0])
		}
		series = append(series, chart.TimeSeries{
			Name:    track,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: chart.GetDefaultColor(i),
				StrokeWidth: 2,
			},
		})
	}
	if len(series) == 0 {
		return ErrEmptyTimeline
	}
	// the legend lists tracks only, not marker and guide lines
	legend := chart.Chart{Series: slices.Clone(series)}

	yRange := paddedRange(yMin, yMax)
	xMin, xMax := chart.TimeToFloat64(from), chart.TimeToFloat64(to)

	series = append(series, markerSeries(f.Markers, xMin, xMax, yRange)...)
	series = append(series, guideSeries(f.Guides, xMin, xMax, yRange)...)

	ch := chart.Chart{
		Title:      f.Title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 24, Left: 16, Right: 12, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: chart.TimeDateValueFormatter,
			Range:          &chart.ContinuousRange{Min: xMin, Max: xMax},
		},
		YAxis: chart.YAxis{
			Name:  string(f.Metric),
			Range: yRange,
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&legend)}
	return ch.Render(chart.PNG, w)
}

func paddedRange(lo, hi float64) *chart.ContinuousRange {
	pad := math.Max(1, (hi-lo)*0.05)
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

// markerSeries draws a vertical line per marker and one annotation series
// with the labels the layout engine left visible.
func markerSeries(markers []domain.AnnotationMarker, xMin, xMax float64, y *chart.ContinuousRange) []chart.Series {
	var (
		out    []chart.Series
		labels []chart.Value2
	)
	for _, m := range markers {
		x := chart.TimeToFloat64(time.UnixMilli(int64(m.Anchor())))
		if x < xMin || x > xMax {
			continue
		}
		color, ok := markerColors[m.Kind]
		if !ok {
			color = guideColor
		}
		out = append(out, chart.ContinuousSeries{
			XValues: []float64{x, x},
			YValues: []float64{y.Min, y.Max},
			Style: chart.Style{
				StrokeColor:     color,
				StrokeWidth:     1,
				StrokeDashArray: []float64{4, 2},
			},
		})
		if m.Label.Display && m.Label.Content != "" {
			labels = append(labels, chart.Value2{XValue: x, YValue: y.Max, Label: m.Label.Content})
		}
	}
	if len(labels) > 0 {
		slices.SortFunc(labels, func(a, b chart.Value2) int {
			switch {
			case a.XValue < b.XValue:
				return -1
			case a.XValue > b.XValue:
				return 1
			}
			return 0
		})
		out = append(out, chart.AnnotationSeries{Annotations: labels})
	}
	return out
}

func guideSeries(guides []domain.AnnotationMarker, xMin, xMax float64, y *chart.ContinuousRange) []chart.Series {
	var out []chart.Series
	for _, g := range guides {
		if g.XMin < y.Min || g.XMin > y.Max {
			continue
		}
		out = append(out, chart.ContinuousSeries{
			XValues: []float64{xMin, xMax},
			YValues: []float64{g.XMin, g.XMin},
			Style: chart.Style{
				StrokeColor:     guideColor,
				StrokeWidth:     1,
				StrokeDashArray: []float64{2, 2},
			},
		})
	}
	return out
}
