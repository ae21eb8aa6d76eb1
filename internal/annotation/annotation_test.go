package annotation

import (
	"testing"
	"time"

	"ladder-tracker/internal/domain"
	"ladder-tracker/internal/history"
)

func markersAt(xs ...float64) []domain.AnnotationMarker {
	out := make([]domain.AnnotationMarker, len(xs))
	for i, x := range xs {
		out[i] = domain.AnnotationMarker{XMin: x, XMax: x, Label: domain.Label{Content: "S1", Position: domain.LabelStart}}
	}
	return out
}

func TestLayoutFoldsCollidingLabels(t *testing.T) {
	markers := markersAt(0, 10, 20)
	tests := []struct {
		name  string
		width float64
		want  []bool
	}{
		{"all colliding", 100, []bool{false, false, true}},
		{"neighbours collide", 200, []bool{true, false, true}},
		{"room for all", 400, []bool{true, true, true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Layout(markers, Axis{PixelWidth: tt.width, DataMin: 0, DataMax: 100}, DefaultMetrics)
			for i, want := range tt.want {
				if out[i].Label.Display != want {
					t.Errorf("marker %d: display=%v, want %v", i, out[i].Label.Display, want)
				}
			}
		})
	}
	for _, m := range markers {
		if m.Label.Display {
			t.Fatal("input markers must not be modified")
		}
	}
}

func TestLayoutWideningNeverHidesMore(t *testing.T) {
	markers := markersAt(0, 3, 7, 8, 15, 16, 17, 30, 44, 45)
	prev := 0
	for width := 50.0; width <= 2000; width += 50 {
		n := Visible(Layout(markers, Axis{PixelWidth: width, DataMin: 0, DataMax: 50}, DefaultMetrics))
		if n < prev {
			t.Fatalf("width %v: visible count dropped from %d to %d", width, prev, n)
		}
		prev = n
	}
	if prev != len(markers) {
		t.Errorf("expected all labels at full width, got %d", prev)
	}
}

func TestLayoutUsesZoomWindow(t *testing.T) {
	markers := markersAt(0, 10)
	axis := Axis{PixelWidth: 100, DataMin: 0, DataMax: 100}
	if Visible(Layout(markers, axis, DefaultMetrics)) != 1 {
		t.Fatal("expected collision at full range")
	}
	axis.Zoom = &Range{Min: 0, Max: 20}
	if Visible(Layout(markers, axis, DefaultMetrics)) != 2 {
		t.Error("expected both labels when zoomed in")
	}
}

func TestLayoutUnsortedInput(t *testing.T) {
	out := Layout(markersAt(20, 0, 10), Axis{PixelWidth: 100, DataMin: 0, DataMax: 100}, DefaultMetrics)
	if !out[0].Label.Display || out[1].Label.Display || out[2].Label.Display {
		t.Errorf("expected only the rightmost marker visible, got %+v", out)
	}
}

func TestEngineCache(t *testing.T) {
	e := NewEngine(DefaultMetrics)
	axis := Axis{PixelWidth: 100, DataMin: 0, DataMax: 100}

	first := e.Apply("k", markersAt(0, 10, 20), axis, GestureNone)
	if Visible(first) != 1 {
		t.Fatalf("unexpected first layout %+v", first)
	}

	// panning keeps the scale, so the cached result is reused even though
	// the markers passed in differ
	panned := axis
	panned.DataMin, panned.DataMax = 50, 150
	if got := e.Apply("k", markersAt(0, 100, 200), panned, GesturePan); Visible(got) != 1 {
		t.Errorf("expected cached layout while panning, got %d visible", Visible(got))
	}

	if got := e.Apply("k", markersAt(0, 100, 200), panned, GestureZoom); Visible(got) != 3 {
		t.Errorf("zooming must recompute, got %d visible", Visible(got))
	}

	wider := axis
	wider.PixelWidth = 400
	if got := e.Apply("k", markersAt(0, 10, 20), wider, GestureNone); Visible(got) != 3 {
		t.Errorf("resize must recompute, got %d visible", Visible(got))
	}
}

func TestSessionSeasonCache(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s1, _ := domain.NewSeason("EU", 57, now.AddDate(0, -6, 0), now.AddDate(0, -3, 0), now)
	s2, _ := domain.NewSeason("EU", 58, now.AddDate(0, -3, 0), now.AddDate(0, 3, 0), now)
	sess := NewSession()

	m := sess.SeasonMarkers("EU", []domain.Season{s2, s1})
	if len(m) != 2 || m[0].Label.Content != "S57" || m[1].Label.Content != "S58" {
		t.Fatalf("unexpected markers %+v", m)
	}
	m[0].Label.Content = "changed"
	if again := sess.SeasonMarkers("EU", []domain.Season{s2, s1}); again[0].Label.Content != "S57" {
		t.Error("cached markers must not be shared with callers")
	}

	s3, _ := domain.NewSeason("EU", 59, now.AddDate(0, 3, 0), now.AddDate(0, 6, 0), now)
	if m := sess.SeasonMarkers("EU", []domain.Season{s1, s2, s3}); len(m) != 3 {
		t.Errorf("season count change must invalidate, got %d markers", len(m))
	}
}

func TestSessionPatchCache(t *testing.T) {
	patch := func(build int, version string, day int) domain.Patch {
		return domain.Patch{Build: build, Version: version, Published: time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC)}
	}
	sess := NewSession()

	m := sess.PatchMarkers([]domain.Patch{patch(100, "5.0.11", 1), patch(101, "5.0.12", 5)})
	if len(m) != 2 || m[0].Label.Content != "5.0.11" {
		t.Fatalf("unexpected markers %+v", m)
	}

	// same count, window slid past one patch onto the next
	slid := sess.PatchMarkers([]domain.Patch{patch(101, "5.0.12", 5), patch(102, "5.0.13", 9)})
	if len(slid) != 2 || slid[0].Label.Content != "5.0.12" || slid[1].Label.Content != "5.0.13" {
		t.Errorf("slid window served stale markers %+v", slid)
	}
}

func TestSessionInvalidate(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s1, _ := domain.NewSeason("EU", 58, now.AddDate(0, -3, 0), now.AddDate(0, 3, 0), now)
	moved, _ := domain.NewSeason("EU", 58, now.AddDate(0, -2, 0), now.AddDate(0, 3, 0), now)
	sess := NewSession()

	first := sess.SeasonMarkers("EU", []domain.Season{s1})
	if cached := sess.SeasonMarkers("EU", []domain.Season{moved}); cached[0].XMin != first[0].XMin {
		t.Fatal("expected cached markers while the season count is unchanged")
	}
	sess.Invalidate()
	if m := sess.SeasonMarkers("EU", []domain.Season{moved}); m[0].XMin != TimeValue(moved.Start) {
		t.Errorf("expected rebuilt markers after invalidate, got %+v", m[0])
	}
}

func TestTierThresholdMarkers(t *testing.T) {
	m := TierThresholdMarkers(history.DefaultClassificationTable().Thresholds())
	if len(m) != 6 || m[0].Label.Content != "MASTER" || m[0].XMin != 4 {
		t.Errorf("unexpected tier markers %+v", m)
	}
}
