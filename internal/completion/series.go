package completion

import (
	"slices"
	"sync"
	"time"

	"ladder-tracker/internal/domain"
	"ladder-tracker/internal/history"
)

// Series is the point set of one view. The completion fetcher fills in
// fields of existing points; it never adds, removes or reorders them.
type Series struct {
	id string

	mu       sync.RWMutex
	tracks   []history.Track
	byName   map[string]int
	complete map[string]map[int64]struct{}
}

func NewSeries(id string, tracks []history.Track) *Series {
	s := &Series{
		id:       id,
		tracks:   make([]history.Track, len(tracks)),
		byName:   make(map[string]int, len(tracks)),
		complete: make(map[string]map[int64]struct{}),
	}
	for i, t := range tracks {
		t.Points = slices.Clone(t.Points)
		s.tracks[i] = t
		s.byName[t.Name] = i
	}
	return s
}

func (s *Series) ID() string {
	return s.id
}

// Tracks returns a copy of the current tracks.
func (s *Series) Tracks() []history.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]history.Track, len(s.tracks))
	for i, t := range s.tracks {
		t.Points = slices.Clone(t.Points)
		out[i] = t
	}
	return out
}

func (s *Series) Point(track string, at time.Time) (domain.MmrPoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.indexLocked(track, at)
	if !ok {
		return domain.MmrPoint{}, false
	}
	return s.tracks[s.byName[track]].Points[i], true
}

// IsComplete reports whether the point at t carries its full rank data,
// either because it was completed before or because it has a population.
func (s *Series) IsComplete(track string, at time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if set, ok := s.complete[track]; ok {
		if _, ok := set[at.Unix()]; ok {
			return true
		}
	}
	i, ok := s.indexLocked(track, at)
	if !ok {
		return true
	}
	return s.tracks[s.byName[track]].Points[i].TeamState.GlobalTeamCount != nil
}

func (s *Series) MarkComplete(track string, at time.Time) {
	s.mu.Lock()
	s.markLocked(track, at)
	s.mu.Unlock()
}

// Merge overwrites fields of the points whose timestamp matches a row and
// returns how many points changed. Applying the same rows again changes
// nothing.
func (s *Series) Merge(track string, rows []domain.TeamState) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ti, ok := s.byName[track]
	if !ok {
		return 0
	}
	points := s.tracks[ti].Points

	var changed int
	for _, row := range rows {
		i, ok := s.indexLocked(track, row.DateTime)
		if !ok {
			continue
		}
		p := &points[i]
		if mergeState(&p.TeamState, row) {
			p.GlobalTopPercent = history.Percentile(p.TeamState.GlobalRank, p.TeamState.GlobalTeamCount)
			p.RegionTopPercent = history.Percentile(p.TeamState.RegionRank, p.TeamState.RegionTeamCount)
			p.LeagueTopPercent = history.Percentile(p.TeamState.LeagueRank, p.TeamState.LeagueTeamCount)
			changed++
		}
		s.markLocked(track, row.DateTime)
	}
	return changed
}

func (s *Series) markLocked(track string, at time.Time) {
	set, ok := s.complete[track]
	if !ok {
		set = make(map[int64]struct{})
		s.complete[track] = set
	}
	set[at.Unix()] = struct{}{}
}

func (s *Series) indexLocked(track string, at time.Time) (int, bool) {
	ti, ok := s.byName[track]
	if !ok {
		return 0, false
	}
	points := s.tracks[ti].Points
	return slices.BinarySearchFunc(points, at, func(p domain.MmrPoint, t time.Time) int {
		return p.TeamState.DateTime.Compare(t)
	})
}

func mergeState(dst *domain.TeamState, src domain.TeamState) bool {
	changed := false
	setInt := func(d *int, v int) {
		if *d != v {
			*d, changed = v, true
		}
	}
	setOpt := func(d **int, v *int) {
		if v == nil {
			return
		}
		if *d == nil || **d != *v {
			n := *v
			*d, changed = &n, true
		}
	}

	if src.Rating != 0 {
		setInt(&dst.Rating, src.Rating)
	}
	if src.Games != 0 {
		setInt(&dst.Games, src.Games)
	}
	if src.Wins != 0 {
		setInt(&dst.Wins, src.Wins)
	}
	setOpt(&dst.GlobalRank, src.GlobalRank)
	setOpt(&dst.GlobalTeamCount, src.GlobalTeamCount)
	setOpt(&dst.RegionRank, src.RegionRank)
	setOpt(&dst.RegionTeamCount, src.RegionTeamCount)
	setOpt(&dst.LeagueRank, src.LeagueRank)
	setOpt(&dst.LeagueTeamCount, src.LeagueTeamCount)
	return changed
}
