package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ladder-tracker/internal/annotation"
	"ladder-tracker/internal/api"
	"ladder-tracker/internal/completion"
	"ladder-tracker/internal/config"
	"ladder-tracker/internal/constants"
	"ladder-tracker/internal/domain"
	"ladder-tracker/internal/history"
	"ladder-tracker/internal/repository"
)

var (
	defaultStatic = []string{
		history.StaticRace, history.StaticRegion, history.StaticQueueType,
		history.StaticTeamType, history.StaticTeamID,
	}
	defaultHistory = []string{
		history.ColTimestamp, history.ColTeamID, history.ColRating, history.ColGames, history.ColWins,
		history.ColSeason, history.ColLeagueType, history.ColTier,
		history.ColGlobalRank, history.ColGlobalTeamCount,
		history.ColRegionRank, history.ColRegionTeamCount,
		history.ColLeagueRank, history.ColLeagueTeamCount,
	}
)

// ViewOptions are the display preferences that shape a view.
type ViewOptions struct {
	Metric             history.Metric
	CollapseSeasonEnds bool
	BestRace           bool
	Patches            bool
	Width              float64
	SessionID          string
}

type InvalidQueryError struct {
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return "invalid history query: " + e.Reason
}

type HistoryService struct {
	client    *api.PulseClient
	seasons   *SeasonService
	patches   *PatchService
	states    *repository.TeamStateRepository
	views     *ViewStore
	synth     *history.Synthesizer
	table     *history.ClassificationTable
	depthDays int
	floor     time.Time
	logger    zerolog.Logger
	now       func() time.Time

	sessionsMu sync.Mutex
	sessions   map[string]*sessionCache
}

func NewHistoryService(
	client *api.PulseClient,
	seasons *SeasonService,
	patches *PatchService,
	states *repository.TeamStateRepository,
	views *ViewStore,
	synth *history.Synthesizer,
	table *history.ClassificationTable,
	cfg *config.Config,
	logger zerolog.Logger,
) *HistoryService {
	return &HistoryService{
		client:    client,
		seasons:   seasons,
		patches:   patches,
		states:    states,
		views:     views,
		synth:     synth,
		table:     table,
		depthDays: cfg.HistoryDepthDays,
		floor:     cfg.HistoryFloor,
		logger:    logger,
		now:       time.Now,
		sessions:  make(map[string]*sessionCache),
	}
}

// Build fetches a competitor's history and runs it through the timeline
// pipeline. The resulting view is registered for relayout and completion.
func (s *HistoryService) Build(ctx context.Context, q api.HistoryQuery, opts ViewOptions) (*View, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	if len(q.TeamIDs) == 0 && len(q.LegacyUIDs) == 0 {
		return nil, &InvalidQueryError{Reason: "teamId or legacyUid is required"}
	}
	get, err := history.Getter(opts.Metric)
	if err != nil {
		return nil, &InvalidQueryError{Reason: err.Error()}
	}
	if len(q.Static) == 0 {
		q.Static = defaultStatic
	}
	if len(q.History) == 0 {
		q.History = defaultHistory
	}

	now := s.now()
	first := history.FirstObservableDate(now, s.floor, s.depthDays, s.synth.Location())
	window := history.Window{FirstObservable: first, Now: now}

	s.logger.Info().
		Ints64("team_ids", q.TeamIDs).
		Strs("legacy_uids", q.LegacyUIDs).
		Str("group_by", q.GroupBy).
		Str("metric", string(opts.Metric)).
		Time("first_observable", first).
		Msg("building history view")

	var (
		tracks  []history.Track
		patches []domain.Patch
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.seasons.Load(gctx)
	})
	g.Go(func() error {
		var err error
		tracks, err = s.fetchTracks(gctx, q, opts)
		return err
	})
	if opts.Patches {
		g.Go(func() error {
			var err error
			patches, err = s.patches.Since(gctx, first)
			if err != nil {
				s.logger.Warn().Err(err).Msg("failed to load patches")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if opts.BestRace && history.ShouldFilterBestRace(tracks) {
		tracks = history.FilterBestRace(tracks, ratingGetter, history.MaxReducer, history.Greater)
	}
	tracks = s.synth.Synthesize(tracks, s.seasons, window)
	tracks = history.WithPercentiles(tracks)

	id := uuid.New().String()
	markers := s.markers(ctx, opts.SessionID, tracks, patches, window)
	engine := annotation.NewEngine(annotation.DefaultMetrics)
	view := newView(id, q, opts.Metric, get, window, completion.NewSeries(id, tracks), markers, engine)
	if isPercentileMetric(opts.Metric) {
		view.Guides = annotation.TierThresholdMarkers(s.table.Thresholds())
	}

	width := opts.Width
	if width <= 0 {
		width = constants.DefaultChartWidth
	}
	view.Relayout(annotation.Axis{
		PixelWidth: width,
		DataMin:    annotation.TimeValue(first),
		DataMax:    annotation.TimeValue(now),
	}, annotation.GestureNone)

	s.views.Put(view)
	s.logger.Info().
		Str("view_id", id).
		Int("tracks", len(tracks)).
		Int("entries", len(view.Timeline().Entries)).
		Int("markers", len(markers)).
		Msg("history view built")
	return view, nil
}

// fetchTracks loads and expands the history, persisting observed points.
// Stored points are used when upstream is unreachable.
func (s *HistoryService) fetchTracks(ctx context.Context, q api.HistoryQuery, opts ViewOptions) ([]history.Track, error) {
	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	groups, err := s.client.GetHistory(apiCtx, q)
	if err != nil {
		s.logger.Error().Err(err).Ints64("team_ids", q.TeamIDs).Msg("failed to fetch history")
		stored, storedErr := s.storedTracks(ctx, q)
		if storedErr != nil || len(stored) == 0 {
			return nil, fmt.Errorf("failed to fetch history: %w", err)
		}
		s.logger.Warn().Int("tracks", len(stored)).Msg("serving stored history")
		return stored, nil
	}

	if opts.CollapseSeasonEnds {
		for i := range groups {
			groups[i] = history.CollapseGroupSeasonEnds(groups[i])
		}
	}
	tracks, err := history.ExpandAll(groups)
	if err != nil {
		return nil, err
	}

	dbCtx, dbCancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer dbCancel()
	for _, t := range tracks {
		if err := s.states.UpsertBatch(dbCtx, t.Region, t.Points); err != nil {
			s.logger.Warn().Err(err).Str("track", t.Name).Msg("failed to store team states")
		}
	}
	return tracks, nil
}

func (s *HistoryService) storedTracks(ctx context.Context, q api.HistoryQuery) ([]history.Track, error) {
	if len(q.TeamIDs) == 0 {
		return nil, nil
	}
	from := time.Time{}
	if q.From != nil {
		from = *q.From
	}

	dbCtx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	rows, err := s.states.ListByTeams(dbCtx, q.TeamIDs, from)
	if err != nil {
		return nil, err
	}

	var tracks []history.Track
	index := make(map[string]int)
	for _, row := range rows {
		p := row.Point
		i, ok := index[p.Race]
		if !ok {
			i = len(tracks)
			index[p.Race] = i
			tracks = append(tracks, history.Track{
				Name:   p.Race,
				Region: row.Region,
				Queue:  p.League.QueueType,
				Team:   p.League.TeamType,
			})
		}
		tracks[i].Points = append(tracks[i].Points, p)
	}
	return tracks, nil
}

// sessionCache is a client's annotation cache and the season directory
// generation it was built from.
type sessionCache struct {
	*annotation.Session
	generation uint64
}

func (s *HistoryService) markers(ctx context.Context, sessionID string, tracks []history.Track, patches []domain.Patch, w history.Window) []domain.AnnotationMarker {
	session := s.session(sessionID, s.seasons.Generation())

	var regions []string
	for _, t := range tracks {
		if t.Region != "" && !slices.Contains(regions, t.Region) {
			regions = append(regions, t.Region)
		}
	}

	var all []domain.AnnotationMarker
	for _, region := range regions {
		seasons, err := s.seasons.List(ctx, region)
		if err != nil {
			continue
		}
		all = append(all, session.SeasonMarkers(region, seasons)...)
	}
	if len(patches) > 0 {
		all = append(all, session.PatchMarkers(patches)...)
	}
	return inWindow(all, annotation.TimeValue(w.FirstObservable), annotation.TimeValue(w.Now))
}

// session returns the annotation cache of id, invalidated when the season
// directory reloaded since it was last used.
func (s *HistoryService) session(id string, generation uint64) *annotation.Session {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	if c, ok := s.sessions[id]; ok {
		if c.generation != generation {
			c.Invalidate()
			c.generation = generation
		}
		return c.Session
	}
	if len(s.sessions) >= constants.MaxSessions {
		for k := range s.sessions {
			delete(s.sessions, k)
			break
		}
	}
	c := &sessionCache{Session: annotation.NewSession(), generation: generation}
	s.sessions[id] = c
	return c.Session
}

func inWindow(markers []domain.AnnotationMarker, lo, hi float64) []domain.AnnotationMarker {
	out := markers[:0:0]
	for _, m := range markers {
		if m.XMax >= lo && m.XMin <= hi {
			out = append(out, m)
		}
	}
	return out
}

func ratingGetter(p domain.MmrPoint) (float64, bool) {
	return float64(p.TeamState.Rating), true
}

func isPercentileMetric(m history.Metric) bool {
	switch m {
	case history.MetricGlobalTopPercent, history.MetricRegionTopPercent, history.MetricLeagueTopPercent:
		return true
	}
	return false
}
