package chart

import (
	"bytes"
	"errors"
	"image/png"
	"testing"
	"time"

	"ladder-tracker/internal/annotation"
	"ladder-tracker/internal/domain"
	"ladder-tracker/internal/history"
)

func testTimeline(days int) *history.Timeline {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var points []domain.MmrPoint
	for d := 0; d < days; d++ {
		points = append(points, domain.MmrPoint{
			TeamState: domain.TeamState{TeamID: 1, DateTime: base.AddDate(0, 0, d), Rating: 3000 + d*25},
			Race:      domain.RaceProtoss,
		})
	}
	get, _ := history.Getter(history.MetricRating)
	return history.BuildTimeline([]history.Track{{Name: domain.RaceProtoss, Points: points}}, get)
}

func TestRenderPNG(t *testing.T) {
	tl := testTimeline(10)
	first, last, _ := tl.Range()
	markers := []domain.AnnotationMarker{
		{Kind: domain.MarkerPatch, XMin: annotation.TimeValue(first.AddDate(0, 0, 3)), XMax: annotation.TimeValue(first.AddDate(0, 0, 3)), Label: domain.Label{Content: "5.0.12", Display: true}},
		{Kind: domain.MarkerPatch, XMin: annotation.TimeValue(first.AddDate(0, 0, 4)), XMax: annotation.TimeValue(first.AddDate(0, 0, 4)), Label: domain.Label{Content: "5.0.13"}},
		{Kind: domain.MarkerSeason, XMin: annotation.TimeValue(first.AddDate(0, -1, 0)), XMax: annotation.TimeValue(last), Label: domain.Label{Content: "S58", Display: true}},
	}

	var buf bytes.Buffer
	err := Render(&buf, Frame{Title: "test", Metric: history.MetricRating, Timeline: tl, Markers: markers, From: first, To: last}, 640, 320)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	cfg, err := png.DecodeConfig(&buf)
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if cfg.Width != 640 || cfg.Height != 320 {
		t.Errorf("got %dx%d, want 640x320", cfg.Width, cfg.Height)
	}
}

func TestRenderSinglePoint(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, Frame{Timeline: testTimeline(1)}, 320, 200); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("empty output")
	}
}

func TestRenderEmpty(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, Frame{Timeline: testTimeline(0)}, 320, 200)
	if !errors.Is(err, ErrEmptyTimeline) {
		t.Errorf("expected ErrEmptyTimeline, got %v", err)
	}
}
