package completion

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"ladder-tracker/internal/domain"
)

// FetchFunc requests the exact rows of [from, to).
type FetchFunc func(ctx context.Context, from, to time.Time) ([]domain.TeamState, error)

type Fetcher struct {
	delay   time.Duration
	timeout time.Duration
	logger  zerolog.Logger

	group singleflight.Group
	wg    sync.WaitGroup

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
}

func NewFetcher(delay, timeout time.Duration, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		delay:   delay,
		timeout: timeout,
		logger:  logger,
		pending: make(map[string]*time.Timer),
	}
}

func taskKey(series *Series, track string) string {
	return "completion:" + series.ID() + ":" + track
}

// Inspect schedules completion of the point at t unless it is already
// complete. A pending request for the same series and track is replaced.
// refresh runs after a successful merge.
func (f *Fetcher) Inspect(series *Series, track string, at time.Time, fetch FetchFunc, refresh func()) bool {
	if series.IsComplete(track, at) {
		return false
	}
	key := taskKey(series, track)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	if t, ok := f.pending[key]; ok && t.Stop() {
		f.wg.Done()
		f.logger.Debug().Str("task", key).Msg("pending completion replaced")
	}

	f.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(f.delay, func() {
		defer f.wg.Done()
		f.mu.Lock()
		if f.pending[key] == timer {
			delete(f.pending, key)
		}
		f.mu.Unlock()
		f.run(key, series, track, at, fetch, refresh)
	})
	f.pending[key] = timer
	return true
}

func (f *Fetcher) run(key string, series *Series, track string, at time.Time, fetch FetchFunc, refresh func()) {
	from := at.Truncate(time.Second)
	to := from.Add(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	// A shared result belongs to whichever inspection started the flight;
	// if it does not cover this timestamp, fly once more.
	for attempt := 0; attempt < 2; attempt++ {
		v, err, shared := f.group.Do(key, func() (any, error) {
			return fetch(ctx, from, to)
		})
		if err != nil {
			f.logger.Warn().Err(err).Str("task", key).Time("at", at).Msg("completion fetch failed")
			return
		}
		rows := v.([]domain.TeamState)
		changed := series.Merge(track, rows)
		if shared && !covers(rows, from, to) {
			continue
		}

		series.MarkComplete(track, at)
		f.logger.Debug().
			Str("task", key).
			Time("at", at).
			Int("rows", len(rows)).
			Int("changed", changed).
			Msg("completion merged")
		if refresh != nil {
			refresh()
		}
		return
	}
}

func covers(rows []domain.TeamState, from, to time.Time) bool {
	for _, r := range rows {
		if !r.DateTime.Before(from) && r.DateTime.Before(to) {
			return true
		}
	}
	return false
}

// Wait blocks until every scheduled completion has run or been replaced.
func (f *Fetcher) Wait() {
	f.wg.Wait()
}

// Close cancels pending completions and waits for running ones.
func (f *Fetcher) Close() {
	f.mu.Lock()
	f.closed = true
	for key, t := range f.pending {
		if t.Stop() {
			f.wg.Done()
		}
		delete(f.pending, key)
	}
	f.mu.Unlock()
	f.wg.Wait()
}
