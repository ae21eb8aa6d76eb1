package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"ladder-tracker/internal/api"
	"ladder-tracker/internal/config"
	"ladder-tracker/internal/constants"
	"ladder-tracker/internal/domain"
	"ladder-tracker/internal/repository"
)

type seasonKey struct {
	region string
	id     int
}

// SeasonService is the season directory. It keeps the upstream season list
// in memory, persists it, and serves it back when upstream is unavailable.
type SeasonService struct {
	client *api.PulseClient
	repo   *repository.SeasonRepository
	ttl    time.Duration
	loc    *time.Location
	logger zerolog.Logger
	now    func() time.Time

	group singleflight.Group

	mu         sync.RWMutex
	seasons    map[seasonKey]domain.Season
	byRegion   map[string][]domain.Season
	loadedAt   time.Time
	generation uint64
}

func NewSeasonService(client *api.PulseClient, repo *repository.SeasonRepository, cfg *config.Config, logger zerolog.Logger) *SeasonService {
	return &SeasonService{
		client:   client,
		repo:     repo,
		ttl:      cfg.SeasonCacheTTL,
		loc:      cfg.Location,
		logger:   logger,
		now:      time.Now,
		seasons:  make(map[seasonKey]domain.Season),
		byRegion: make(map[string][]domain.Season),
	}
}

// ParseSeasonDate accepts a bare date or a full datetime. Bare dates and
// datetimes without an offset are read in loc.
func ParseSeasonDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05", time.DateTime, time.DateOnly} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid season date %q", s)
}

// Load makes sure the directory is populated and not older than the TTL.
func (s *SeasonService) Load(ctx context.Context) error {
	s.mu.RLock()
	fresh := !s.loadedAt.IsZero() && s.now().Sub(s.loadedAt) < s.ttl
	s.mu.RUnlock()
	if fresh {
		return nil
	}

	_, err, _ := s.group.Do("seasons", func() (any, error) {
		return nil, s.refresh(ctx)
	})
	return err
}

func (s *SeasonService) refresh(ctx context.Context) error {
	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	items, err := s.client.GetSeasons(apiCtx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to fetch seasons, falling back to stored seasons")
		return s.loadStored(ctx)
	}

	now := s.now()
	seasons := make([]domain.Season, 0, len(items))
	for _, item := range items {
		season, err := s.parseItem(item, now)
		if err != nil {
			s.logger.Warn().Err(err).Str("region", item.Region).Int("season", item.BattlenetID).Msg("skipping season")
			continue
		}
		seasons = append(seasons, season)
	}

	dbCtx, dbCancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer dbCancel()
	if err := s.repo.UpsertBatch(dbCtx, seasons, now); err != nil {
		s.logger.Warn().Err(err).Msg("failed to store seasons")
	}

	s.set(seasons, now)
	s.logger.Info().Int("count", len(seasons)).Msg("season directory refreshed")
	return nil
}

func (s *SeasonService) loadStored(ctx context.Context) error {
	dbCtx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	seasons, err := s.repo.ListAll(dbCtx, s.now())
	if err != nil {
		return fmt.Errorf("failed to load stored seasons: %w", err)
	}
	if len(seasons) == 0 {
		return fmt.Errorf("no seasons available")
	}

	s.mu.RLock()
	cached := len(s.seasons)
	s.mu.RUnlock()
	if cached > 0 {
		// keep serving the in-memory copy; retry upstream on the next call
		return nil
	}
	// stored seasons are not marked fresh so the next Load retries upstream
	s.set(seasons, time.Time{})
	return nil
}

func (s *SeasonService) parseItem(item api.SeasonItem, now time.Time) (domain.Season, error) {
	start, err := ParseSeasonDate(item.Start, s.loc)
	if err != nil {
		return domain.Season{}, err
	}
	end, err := ParseSeasonDate(item.End, s.loc)
	if err != nil {
		return domain.Season{}, err
	}
	return domain.NewSeason(item.Region, item.BattlenetID, start, end, now)
}

func (s *SeasonService) set(seasons []domain.Season, loadedAt time.Time) {
	byKey := make(map[seasonKey]domain.Season, len(seasons))
	byRegion := make(map[string][]domain.Season)
	for _, season := range seasons {
		byKey[seasonKey{season.Region, season.BattlenetID}] = season
		byRegion[season.Region] = append(byRegion[season.Region], season)
	}
	for _, list := range byRegion {
		slices.SortFunc(list, func(a, b domain.Season) int { return a.BattlenetID - b.BattlenetID })
	}

	s.mu.Lock()
	s.seasons = byKey
	s.byRegion = byRegion
	s.loadedAt = loadedAt
	s.generation++
	s.mu.Unlock()
}

// Generation changes every time the directory is reloaded.
func (s *SeasonService) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// List returns the seasons of region ordered by id, or of every region when
// region is empty.
func (s *SeasonService) List(ctx context.Context, region string) ([]domain.Season, error) {
	if err := s.Load(ctx); err != nil {
		return nil, err
	}

	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Season
	if region != "" {
		for _, season := range s.byRegion[region] {
			out = append(out, s.current(season, now))
		}
		return out, nil
	}
	regions := make([]string, 0, len(s.byRegion))
	for r := range s.byRegion {
		regions = append(regions, r)
	}
	slices.Sort(regions)
	for _, r := range regions {
		for _, season := range s.byRegion[r] {
			out = append(out, s.current(season, now))
		}
	}
	return out, nil
}

// Season resolves one season from the in-memory directory.
func (s *SeasonService) Season(region string, battlenetID int) (domain.Season, bool) {
	s.mu.RLock()
	season, ok := s.seasons[seasonKey{region, battlenetID}]
	s.mu.RUnlock()
	if !ok {
		return domain.Season{}, false
	}
	return s.current(season, s.now()), true
}

// Current returns the latest season of region that has started.
func (s *SeasonService) Current(region string) (domain.Season, bool) {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.byRegion[region]
	for i := len(list) - 1; i >= 0; i-- {
		if !list[i].Start.After(now) {
			return s.current(list[i], now), true
		}
	}
	return domain.Season{}, false
}

// current re-derives NowOrEnd since cached seasons outlive the instant they
// were loaded at.
func (s *SeasonService) current(season domain.Season, now time.Time) domain.Season {
	fresh, err := domain.NewSeason(season.Region, season.BattlenetID, season.Start, season.End, now)
	if err != nil {
		return season
	}
	return fresh
}
