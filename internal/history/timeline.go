package history

import (
	"fmt"
	"time"

	"ladder-tracker/internal/domain"
)

// ValueGetter extracts the plotted metric. ok=false means the point has no
// value for it.
type ValueGetter func(domain.MmrPoint) (float64, bool)

type Metric string

const (
	MetricRating           Metric = "rating"
	MetricGames            Metric = "games"
	MetricGlobalTopPercent Metric = "globalTopPercent"
	MetricRegionTopPercent Metric = "regionTopPercent"
	MetricLeagueTopPercent Metric = "leagueTopPercent"
)

func Getter(m Metric) (ValueGetter, error) {
	switch m {
	case MetricRating, "":
		return func(p domain.MmrPoint) (float64, bool) { return float64(p.TeamState.Rating), true }, nil
	case MetricGames:
		return func(p domain.MmrPoint) (float64, bool) { return float64(p.TeamState.Games), true }, nil
	case MetricGlobalTopPercent:
		return optional(func(p domain.MmrPoint) *float64 { return p.GlobalTopPercent }), nil
	case MetricRegionTopPercent:
		return optional(func(p domain.MmrPoint) *float64 { return p.RegionTopPercent }), nil
	case MetricLeagueTopPercent:
		return optional(func(p domain.MmrPoint) *float64 { return p.LeagueTopPercent }), nil
	}
	return nil, fmt.Errorf("unknown metric %q", m)
}

func optional(f func(domain.MmrPoint) *float64) ValueGetter {
	return func(p domain.MmrPoint) (float64, bool) {
		if v := f(p); v != nil {
			return *v, true
		}
		return 0, false
	}
}

// Entry is one timestamp of the rendered timeline.
type Entry struct {
	At     time.Time          `json:"at"`
	Values map[string]float64 `json:"values"`
}

// Timeline is the renderer-facing output: entries ordered by timestamp and
// an index resolving timestamp+track back to the full point.
type Timeline struct {
	Entries []Entry
	Tracks  []string
	index   map[domain.PointKey]domain.MmrPoint
}

func BuildTimeline(tracks []Track, get ValueGetter) *Timeline {
	t := &Timeline{index: make(map[domain.PointKey]domain.MmrPoint)}
	for _, tr := range tracks {
		t.Tracks = append(t.Tracks, tr.Name)
	}

	for _, p := range Merge(tracks) {
		t.index[p.Key()] = p
		v, ok := get(p)
		if !ok {
			continue
		}
		at := p.TeamState.DateTime
		if n := len(t.Entries); n > 0 && t.Entries[n-1].At.Equal(at) {
			t.Entries[n-1].Values[p.Race] = v
			continue
		}
		t.Entries = append(t.Entries, Entry{At: at, Values: map[string]float64{p.Race: v}})
	}
	return t
}

func (t *Timeline) Lookup(at time.Time, track string) (domain.MmrPoint, bool) {
	p, ok := t.index[domain.PointKey{Race: track, UnixMilli: at.UnixMilli()}]
	return p, ok
}

// Range returns the first and last entry timestamps.
func (t *Timeline) Range() (time.Time, time.Time, bool) {
	if len(t.Entries) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return t.Entries[0].At, t.Entries[len(t.Entries)-1].At, true
}
