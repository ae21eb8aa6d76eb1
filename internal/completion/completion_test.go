package completion

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ladder-tracker/internal/domain"
	"ladder-tracker/internal/history"
)

func intp(v int) *int { return &v }

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func testSeries() *Series {
	points := make([]domain.MmrPoint, 3)
	for i := range points {
		points[i] = domain.MmrPoint{
			TeamState: domain.TeamState{DateTime: base.AddDate(0, 0, i), Rating: 3000 + i},
			Race:      domain.RaceZerg,
		}
	}
	points[2].TeamState.GlobalRank = intp(5)
	points[2].TeamState.GlobalTeamCount = intp(100)
	return NewSeries("view-1", []history.Track{{Name: domain.RaceZerg, Points: points}})
}

func TestMergeIsIdempotent(t *testing.T) {
	s := testSeries()
	rows := []domain.TeamState{
		{DateTime: base, Rating: 3000, GlobalRank: intp(10), GlobalTeamCount: intp(1000)},
		{DateTime: base.Add(time.Hour), Rating: 1},
	}

	if n := s.Merge(domain.RaceZerg, rows); n != 1 {
		t.Fatalf("expected 1 changed point, got %d", n)
	}
	before := s.Tracks()

	if n := s.Merge(domain.RaceZerg, rows); n != 0 {
		t.Errorf("second merge changed %d points", n)
	}
	after := s.Tracks()
	if len(before[0].Points) != len(after[0].Points) {
		t.Fatal("merge must not add or remove points")
	}

	p, _ := s.Point(domain.RaceZerg, base)
	if p.GlobalTopPercent == nil || *p.GlobalTopPercent != 1 {
		t.Errorf("expected recomputed percentile 1, got %v", p.GlobalTopPercent)
	}
	if !s.IsComplete(domain.RaceZerg, base) {
		t.Error("merged timestamp must be complete")
	}
}

func TestIsComplete(t *testing.T) {
	s := testSeries()
	if s.IsComplete(domain.RaceZerg, base) {
		t.Error("point without population must be incomplete")
	}
	if !s.IsComplete(domain.RaceZerg, base.AddDate(0, 0, 2)) {
		t.Error("point with population must be complete")
	}
	s.MarkComplete(domain.RaceZerg, base.AddDate(0, 0, 1))
	if !s.IsComplete(domain.RaceZerg, base.AddDate(0, 0, 1)) {
		t.Error("marked timestamp must be complete")
	}
}

func TestInspectDebouncesToLastCaller(t *testing.T) {
	s := testSeries()
	f := NewFetcher(30*time.Millisecond, time.Second, zerolog.Nop())

	var mu sync.Mutex
	var requested []time.Time
	fetch := func(ctx context.Context, from, to time.Time) ([]domain.TeamState, error) {
		mu.Lock()
		requested = append(requested, from)
		mu.Unlock()
		if to.Sub(from) != time.Second {
			t.Errorf("expected one second window, got %s", to.Sub(from))
		}
		return []domain.TeamState{{DateTime: from, GlobalRank: intp(1), GlobalTeamCount: intp(10)}}, nil
	}
	var refreshed atomic.Int32
	refresh := func() { refreshed.Add(1) }

	first := base
	second := base.AddDate(0, 0, 1)
	if !f.Inspect(s, domain.RaceZerg, first, fetch, refresh) {
		t.Fatal("expected first inspection to schedule")
	}
	if !f.Inspect(s, domain.RaceZerg, second, fetch, refresh) {
		t.Fatal("expected second inspection to schedule")
	}
	f.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(requested) != 1 || !requested[0].Equal(second) {
		t.Fatalf("expected a single request for the last inspection, got %v", requested)
	}
	if refreshed.Load() != 1 {
		t.Errorf("expected one refresh, got %d", refreshed.Load())
	}
	if s.IsComplete(domain.RaceZerg, first) {
		t.Error("replaced inspection must not complete its point")
	}
	if !s.IsComplete(domain.RaceZerg, second) {
		t.Error("inspected point must be complete")
	}
}

func TestInspectFailureLeavesSeries(t *testing.T) {
	s := testSeries()
	f := NewFetcher(time.Millisecond, time.Second, zerolog.Nop())
	before := s.Tracks()

	called := false
	fetch := func(ctx context.Context, from, to time.Time) ([]domain.TeamState, error) {
		called = true
		return nil, errors.New("upstream down")
	}
	f.Inspect(s, domain.RaceZerg, base, fetch, func() { t.Error("refresh must not run on failure") })
	f.Wait()

	if !called {
		t.Fatal("expected fetch to run")
	}
	if s.IsComplete(domain.RaceZerg, base) {
		t.Error("failed completion must not mark the point")
	}
	after := s.Tracks()
	if after[0].Points[0].TeamState != before[0].Points[0].TeamState {
		t.Error("failed completion must not modify the series")
	}
}

func TestInspectSkipsCompletePoints(t *testing.T) {
	s := testSeries()
	f := NewFetcher(time.Millisecond, time.Second, zerolog.Nop())
	fetch := func(ctx context.Context, from, to time.Time) ([]domain.TeamState, error) {
		t.Error("complete point must not be fetched")
		return nil, nil
	}
	if f.Inspect(s, domain.RaceZerg, base.AddDate(0, 0, 2), fetch, nil) {
		t.Error("expected no scheduling for a complete point")
	}
	f.Close()
	if f.Inspect(s, domain.RaceZerg, base, fetch, nil) {
		t.Error("closed fetcher must not schedule")
	}
}

func TestInspectRetriesSharedFlightForOtherTimestamp(t *testing.T) {
	s := testSeries()
	f := NewFetcher(5*time.Millisecond, time.Second, zerolog.Nop())
	t.Cleanup(f.Close)

	started := make(chan struct{}, 4)
	release := make(chan struct{})
	var mu sync.Mutex
	var requested []time.Time
	fetch := func(ctx context.Context, from, to time.Time) ([]domain.TeamState, error) {
		mu.Lock()
		requested = append(requested, from)
		mu.Unlock()
		started <- struct{}{}
		<-release
		return []domain.TeamState{{DateTime: from, GlobalRank: intp(3), GlobalTeamCount: intp(30)}}, nil
	}
	var refreshed atomic.Int32
	refresh := func() { refreshed.Add(1) }

	first := base
	second := base.AddDate(0, 0, 1)
	f.Inspect(s, domain.RaceZerg, first, fetch, refresh)
	<-started

	// the first flight is still running when the second timer fires
	f.Inspect(s, domain.RaceZerg, second, fetch, refresh)
	time.Sleep(50 * time.Millisecond)
	close(release)
	f.Wait()

	for _, at := range []time.Time{first, second} {
		if !s.IsComplete(domain.RaceZerg, at) {
			t.Errorf("%s: expected complete", at)
		}
		p, _ := s.Point(domain.RaceZerg, at)
		if p.TeamState.GlobalRank == nil || *p.TeamState.GlobalRank != 3 {
			t.Errorf("%s: expected merged rank, got %v", at, p.TeamState.GlobalRank)
		}
	}
	if got := refreshed.Load(); got != 2 {
		t.Errorf("expected a refresh per inspection, got %d", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(requested) != 2 || !requested[0].Equal(first) || !requested[1].Equal(second) {
		t.Errorf("expected one request per timestamp, got %v", requested)
	}
}
