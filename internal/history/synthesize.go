package history

import (
	"slices"
	"time"

	"ladder-tracker/internal/domain"
)

// SeasonLookup resolves seasons for a region. It is implemented by the
// season directory.
type SeasonLookup interface {
	Season(region string, battlenetID int) (domain.Season, bool)
	Current(region string) (domain.Season, bool)
}

// Window bounds the synthesized series: daily coverage runs from
// FirstObservable up to Now.
type Window struct {
	FirstObservable time.Time
	Now             time.Time
}

// FirstObservableDate is the local midnight of the later of floor and
// now minus depthDays.
func FirstObservableDate(now, floor time.Time, depthDays int, loc *time.Location) time.Time {
	t := now.In(loc).AddDate(0, 0, -depthDays)
	if t.Before(floor) {
		t = floor.In(loc)
	}
	return startOfDay(t, loc)
}

type Synthesizer struct {
	loc *time.Location
}

func NewSynthesizer(loc *time.Location) *Synthesizer {
	if loc == nil {
		loc = time.Local
	}
	return &Synthesizer{loc: loc}
}

func (s *Synthesizer) Location() *time.Location {
	return s.loc
}

// Synthesize returns new tracks with one point per local day from the first
// observable date to min(now, season end). Synthesized points are clones of
// the latest earlier point with only the timestamp changed. Tracks without
// any point in the window get a single injected point carried over from
// their last prior-season observation, or are dropped when there is none.
func (s *Synthesizer) Synthesize(tracks []Track, seasons SeasonLookup, w Window) []Track {
	out := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		prior, visible := splitAt(t.Points, w.FirstObservable)

		var points []domain.MmrPoint
		switch {
		case len(visible) > 0:
			points = s.fill(t.Region, s.withHead(t.Region, prior, visible, seasons, w), seasons, w)
		case len(prior) > 0:
			points = s.backfill(t.Region, prior[len(prior)-1], seasons, w)
		}
		if len(points) == 0 {
			continue
		}
		out = append(out, t.withPoints(points))
	}
	return out
}

// withHead prepends a point at the first observable date when the first
// visible point comes later. The head carries the last observation before the
// window when it belongs to the same season, else the first visible one.
func (s *Synthesizer) withHead(region string, prior, visible []domain.MmrPoint, seasons SeasonLookup, w Window) []domain.MmrPoint {
	first := visible[0]
	if !startOfDay(first.TeamState.DateTime, s.loc).After(w.FirstObservable) {
		return visible
	}
	head := first
	if len(prior) > 0 && prior[len(prior)-1].Season == first.Season {
		head = prior[len(prior)-1]
	} else if season, ok := seasons.Season(region, first.Season); !ok || !season.Start.Before(w.FirstObservable) {
		return visible
	}
	seq := make([]domain.MmrPoint, 0, len(visible)+1)
	seq = append(seq, head.At(w.FirstObservable))
	return append(seq, visible...)
}

func (s *Synthesizer) fill(region string, seq []domain.MmrPoint, seasons SeasonLookup, w Window) []domain.MmrPoint {
	out := make([]domain.MmrPoint, 0, len(seq))
	for i, p := range seq {
		if i > 0 {
			prev := seq[i-1]
			end := startOfDay(p.TeamState.DateTime, s.loc)
			for d := nextDay(prev.TeamState.DateTime, s.loc); d.Before(end); d = nextDay(d, s.loc) {
				out = append(out, prev.At(d))
			}
		}
		out = append(out, p)
	}
	return s.tail(region, out, seasons, w)
}

func (s *Synthesizer) tail(region string, points []domain.MmrPoint, seasons SeasonLookup, w Window) []domain.MmrPoint {
	last := points[len(points)-1]
	limit := w.Now
	season, ok := seasons.Season(region, last.Season)
	if ok && season.NowOrEnd.Before(limit) {
		limit = season.NowOrEnd
	}

	for d := nextDay(last.TeamState.DateTime, s.loc); !d.After(limit); d = nextDay(d, s.loc) {
		points = append(points, last.At(d))
	}

	if ok {
		end := points[len(points)-1].TeamState.DateTime
		if end.Before(season.NowOrEnd) && !season.NowOrEnd.After(w.Now) && !sameDay(end, season.NowOrEnd, s.loc) {
			points = append(points, last.At(season.NowOrEnd))
		}
	}
	return points
}

func (s *Synthesizer) backfill(region string, last domain.MmrPoint, seasons SeasonLookup, w Window) []domain.MmrPoint {
	current, ok := seasons.Current(region)
	if ok && last.Season >= current.BattlenetID {
		// still the current season, just no update inside the window
		return s.fill(region, []domain.MmrPoint{last.At(w.FirstObservable)}, seasons, w)
	}

	p := last.At(w.FirstObservable)
	p.Injected = true
	p.TeamState = p.TeamState.ClearRanks()
	p.GlobalTopPercent, p.RegionTopPercent, p.LeagueTopPercent = nil, nil, nil
	if ok {
		p.Season = current.BattlenetID
	}
	return []domain.MmrPoint{p}
}

// Merge orders the points of all tracks into one timeline. Points sharing a
// timestamp keep track order.
func Merge(tracks []Track) []domain.MmrPoint {
	var n int
	for _, t := range tracks {
		n += len(t.Points)
	}
	all := make([]domain.MmrPoint, 0, n)
	for _, t := range tracks {
		all = append(all, t.Points...)
	}
	slices.SortStableFunc(all, func(a, b domain.MmrPoint) int {
		return a.TeamState.DateTime.Compare(b.TeamState.DateTime)
	})
	return all
}

func splitAt(points []domain.MmrPoint, t time.Time) (before, from []domain.MmrPoint) {
	i, _ := slices.BinarySearchFunc(points, t, func(p domain.MmrPoint, t time.Time) int {
		return p.TeamState.DateTime.Compare(t)
	})
	return points[:i], points[i:]
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func nextDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	return startOfDay(a, loc).Equal(startOfDay(b, loc))
}
