package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ladder-tracker/internal/api"
	"ladder-tracker/internal/config"
	"ladder-tracker/internal/constants"
	"ladder-tracker/internal/domain"
	"ladder-tracker/internal/repository"
)

// PatchService keeps the game patch list used for patch annotations.
type PatchService struct {
	client *api.PulseClient
	repo   *repository.PatchRepository
	ttl    time.Duration
	loc    *time.Location
	logger zerolog.Logger
	now    func() time.Time

	mu        sync.Mutex
	fetchedAt time.Time
}

func NewPatchService(client *api.PulseClient, repo *repository.PatchRepository, cfg *config.Config, logger zerolog.Logger) *PatchService {
	return &PatchService{
		client: client,
		repo:   repo,
		ttl:    cfg.SeasonCacheTTL,
		loc:    cfg.Location,
		logger: logger,
		now:    time.Now,
	}
}

// Since returns patches published at or after from. Upstream is consulted at
// most once per TTL; stored patches are served when it fails.
func (s *PatchService) Since(ctx context.Context, from time.Time) ([]domain.Patch, error) {
	s.mu.Lock()
	stale := s.fetchedAt.IsZero() || s.now().Sub(s.fetchedAt) >= s.ttl
	if stale {
		s.refreshLocked(ctx)
	}
	s.mu.Unlock()

	dbCtx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.repo.ListSince(dbCtx, from)
}

func (s *PatchService) refreshLocked(ctx context.Context) {
	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	items, err := s.client.GetPatches(apiCtx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to fetch patches, using stored patches")
		return
	}

	patches := make([]domain.Patch, 0, len(items))
	for _, item := range items {
		published, err := ParseSeasonDate(item.Published, s.loc)
		if err != nil {
			s.logger.Warn().Err(err).Int("build", item.Build).Msg("skipping patch")
			continue
		}
		patches = append(patches, domain.Patch{Build: item.Build, Version: item.Version, Published: published})
	}

	now := s.now()
	if err := s.repo.UpsertBatch(ctx, patches, now); err != nil {
		s.logger.Warn().Err(err).Msg("failed to store patches")
		return
	}
	s.fetchedAt = now
}
