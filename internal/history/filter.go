package history

import (
	"ladder-tracker/internal/domain"
)

// CollapseSeasonEnds keeps only the last row of every run of equal season
// numbers. Histories without a season column, or with columns of different
// lengths, are returned unchanged.
func CollapseSeasonEnds(h History) History {
	seasons, ok := h[ColSeason]
	if !ok {
		return h
	}
	n, ok := h.Len()
	if !ok || n == 0 {
		return h
	}

	keep := make([]int, 0, n)
	for i := range seasons {
		if i == n-1 || !sameValue(seasons[i], seasons[i+1]) {
			keep = append(keep, i)
		}
	}

	out := make(History, len(h))
	for name, col := range h {
		c := make([]*int64, len(keep))
		for j, i := range keep {
			c[j] = col[i]
		}
		out[name] = c
	}
	return out
}

func CollapseGroupSeasonEnds(g HistoryGroup) HistoryGroup {
	return HistoryGroup{StaticData: g.StaticData, History: CollapseSeasonEnds(g.History)}
}

func sameValue(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Reducer summarizes the values of one track.
type Reducer func(values []float64) float64

// Comparator reports whether summary a beats summary b.
type Comparator func(a, b float64) bool

func MaxReducer(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func LastReducer(values []float64) float64 {
	return values[len(values)-1]
}

func SumReducer(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

func Greater(a, b float64) bool { return a > b }

func Less(a, b float64) bool { return a < b }

// FilterBestRace keeps the single track whose reduced summary wins under
// better. Ties go to the earlier track. Tracks without any value never win
// unless no track has one, in which case the first track is kept.
func FilterBestRace(tracks []Track, get ValueGetter, reduce Reducer, better Comparator) []Track {
	if len(tracks) < 2 {
		return tracks
	}

	best := -1
	var bestValue float64
	for i, t := range tracks {
		values := make([]float64, 0, len(t.Points))
		for _, p := range t.Points {
			if v, ok := get(p); ok {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}
		v := reduce(values)
		if best < 0 || better(v, bestValue) {
			best, bestValue = i, v
		}
	}
	if best < 0 {
		best = 0
	}
	return []Track{tracks[best]}
}

// ShouldFilterBestRace reports whether best-race selection applies to the
// tracks' queue.
func ShouldFilterBestRace(tracks []Track) bool {
	if len(tracks) == 0 {
		return false
	}
	return tracks[0].Queue.HasSpecializations() && tracks[0].Team == domain.TeamArranged
}
