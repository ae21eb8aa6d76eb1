package domain

type LabelPosition string

const (
	LabelStart  LabelPosition = "start"
	LabelCenter LabelPosition = "center"
	LabelEnd    LabelPosition = "end"
)

type MarkerKind string

const (
	MarkerSeason MarkerKind = "season"
	MarkerPatch  MarkerKind = "patch"
	MarkerTier   MarkerKind = "tier"
)

type Label struct {
	Content  string
	Position LabelPosition
	// Display is owned by the layout engine.
	Display bool
}

// AnnotationMarker lives on a shared axis. Point markers have XMin == XMax.
type AnnotationMarker struct {
	Kind  MarkerKind
	XMin  float64
	XMax  float64
	Label Label
}

// Anchor is the axis position the label text is centered on.
func (m AnnotationMarker) Anchor() float64 {
	switch m.Label.Position {
	case LabelEnd:
		return m.XMax
	case LabelCenter:
		return (m.XMin + m.XMax) / 2
	}
	return m.XMin
}
