package annotation

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"ladder-tracker/internal/domain"
	"ladder-tracker/internal/history"
)

// TimeValue converts a timestamp to the time axis unit (unix milliseconds).
func TimeValue(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func SeasonMarkers(seasons []domain.Season) []domain.AnnotationMarker {
	sorted := slices.Clone(seasons)
	slices.SortFunc(sorted, func(a, b domain.Season) int { return a.Start.Compare(b.Start) })

	out := make([]domain.AnnotationMarker, 0, len(sorted))
	for _, s := range sorted {
		out = append(out, domain.AnnotationMarker{
			Kind:  domain.MarkerSeason,
			XMin:  TimeValue(s.Start),
			XMax:  TimeValue(s.End),
			Label: domain.Label{Content: fmt.Sprintf("S%d", s.BattlenetID), Position: domain.LabelStart},
		})
	}
	return out
}

func PatchMarkers(patches []domain.Patch) []domain.AnnotationMarker {
	out := make([]domain.AnnotationMarker, 0, len(patches))
	for _, p := range patches {
		x := TimeValue(p.Published)
		out = append(out, domain.AnnotationMarker{
			Kind:  domain.MarkerPatch,
			XMin:  x,
			XMax:  x,
			Label: domain.Label{Content: p.Version, Position: domain.LabelStart},
		})
	}
	slices.SortStableFunc(out, func(a, b domain.AnnotationMarker) int {
		switch {
		case a.XMin < b.XMin:
			return -1
		case a.XMin > b.XMin:
			return 1
		}
		return 0
	})
	return out
}

// TierThresholdMarkers places league boundaries on a top-percent axis.
func TierThresholdMarkers(thresholds []history.Threshold) []domain.AnnotationMarker {
	out := make([]domain.AnnotationMarker, 0, len(thresholds))
	for _, t := range thresholds {
		out = append(out, domain.AnnotationMarker{
			Kind:  domain.MarkerTier,
			XMin:  t.Percentile,
			XMax:  t.Percentile,
			Label: domain.Label{Content: t.League.String(), Position: domain.LabelStart},
		})
	}
	return out
}

// CacheKey invalidates cached season markers when the season set of a
// region changes size.
type CacheKey struct {
	Region      string
	SeasonCount int
}

// patchKey identifies a patch list by its size and build bounds, so a window
// that trades one patch for another misses the cache.
type patchKey struct {
	Count      int
	FirstBuild int
	LastBuild  int
}

func patchKeyOf(patches []domain.Patch) patchKey {
	key := patchKey{Count: len(patches)}
	for i, p := range patches {
		if i == 0 || p.Build < key.FirstBuild {
			key.FirstBuild = p.Build
		}
		if i == 0 || p.Build > key.LastBuild {
			key.LastBuild = p.Build
		}
	}
	return key
}

// Session holds the annotation caches of one client session.
type Session struct {
	mu      sync.Mutex
	seasons map[CacheKey][]domain.AnnotationMarker
	patches map[patchKey][]domain.AnnotationMarker
}

func NewSession() *Session {
	return &Session{
		seasons: make(map[CacheKey][]domain.AnnotationMarker),
		patches: make(map[patchKey][]domain.AnnotationMarker),
	}
}

func (s *Session) SeasonMarkers(region string, seasons []domain.Season) []domain.AnnotationMarker {
	key := CacheKey{Region: region, SeasonCount: len(seasons)}

	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.seasons[key]; ok {
		return slices.Clone(m)
	}
	m := SeasonMarkers(seasons)
	s.seasons[key] = m
	return slices.Clone(m)
}

func (s *Session) PatchMarkers(patches []domain.Patch) []domain.AnnotationMarker {
	key := patchKeyOf(patches)

	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.patches[key]; ok {
		return slices.Clone(m)
	}
	m := PatchMarkers(patches)
	s.patches[key] = m
	return slices.Clone(m)
}

// Invalidate drops every cached marker set. Called when the season
// directory reloads, since season bounds may change without the count.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.seasons = make(map[CacheKey][]domain.AnnotationMarker)
	s.patches = make(map[patchKey][]domain.AnnotationMarker)
	s.mu.Unlock()
}
