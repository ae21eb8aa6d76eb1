package service

import (
	"errors"
	"sync"
	"time"

	"ladder-tracker/internal/annotation"
	"ladder-tracker/internal/api"
	"ladder-tracker/internal/completion"
	"ladder-tracker/internal/constants"
	"ladder-tracker/internal/domain"
	"ladder-tracker/internal/history"
)

var ErrViewNotFound = errors.New("view not found")

// View is one rendered timeline. It owns its series; only the completion
// fetcher mutates it after Build returns.
type View struct {
	ID        string
	Query     api.HistoryQuery
	Metric    history.Metric
	Window    history.Window
	Series    *completion.Series
	Guides    []domain.AnnotationMarker
	CreatedAt time.Time

	get     history.ValueGetter
	engine  *annotation.Engine
	markers []domain.AnnotationMarker

	mu       sync.RWMutex
	timeline *history.Timeline
	laidOut  []domain.AnnotationMarker
	axis     annotation.Axis
}

func newView(id string, q api.HistoryQuery, metric history.Metric, get history.ValueGetter, w history.Window, series *completion.Series, markers []domain.AnnotationMarker, engine *annotation.Engine) *View {
	v := &View{
		ID:        id,
		Query:     q,
		Metric:    metric,
		Window:    w,
		Series:    series,
		CreatedAt: time.Now(),
		get:       get,
		engine:    engine,
		markers:   markers,
	}
	v.Refresh()
	return v
}

func (v *View) Timeline() *history.Timeline {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.timeline
}

// Refresh rebuilds the timeline from the current series without refetching
// or resynthesizing.
func (v *View) Refresh() {
	tl := history.BuildTimeline(v.Series.Tracks(), v.get)
	v.mu.Lock()
	v.timeline = tl
	v.mu.Unlock()
}

// Relayout recomputes label visibility for a new axis transform.
func (v *View) Relayout(axis annotation.Axis, g annotation.Gesture) []domain.AnnotationMarker {
	out := v.engine.Apply(v.ID, v.markers, axis, g)
	v.mu.Lock()
	v.laidOut = out
	v.axis = axis
	v.mu.Unlock()
	return out
}

// Annotations returns the last layout and the axis it was computed for.
func (v *View) Annotations() ([]domain.AnnotationMarker, annotation.Axis) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.laidOut, v.axis
}

// ViewStore keeps the most recent views, evicting the oldest beyond its
// capacity.
type ViewStore struct {
	capacity int

	mu    sync.RWMutex
	views map[string]*View
	order []string
}

func NewViewStore() *ViewStore {
	return newViewStore(constants.MaxViews)
}

func newViewStore(capacity int) *ViewStore {
	return &ViewStore{capacity: capacity, views: make(map[string]*View)}
}

func (s *ViewStore) Put(v *View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.views[v.ID]; !ok {
		s.order = append(s.order, v.ID)
	}
	s.views[v.ID] = v
	for len(s.order) > s.capacity {
		delete(s.views, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *ViewStore) Get(id string) (*View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.views[id]
	if !ok {
		return nil, ErrViewNotFound
	}
	return v, nil
}

func (s *ViewStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.views)
}
