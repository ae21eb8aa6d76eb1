package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"ladder-tracker/internal/annotation"
	"ladder-tracker/internal/api"
	"ladder-tracker/internal/completion"
	"ladder-tracker/internal/constants"
	"ladder-tracker/internal/domain"
	"ladder-tracker/internal/history"
	"ladder-tracker/internal/repository"
)

const NoticePointCompleted = "POINT_COMPLETED"

// Notice tells subscribed clients that a view changed.
type Notice struct {
	Type   string    `json:"type"`
	ViewID string    `json:"viewId"`
	Track  string    `json:"track"`
	At     time.Time `json:"at"`
}

type Notifier interface {
	Notify(Notice)
}

// PointDetail is a timeline point resolved for a tooltip.
type PointDetail struct {
	Point          domain.MmrPoint
	Classification *history.Classification
	Complete       bool
}

type PointService struct {
	client   *api.PulseClient
	states   *repository.TeamStateRepository
	views    *ViewStore
	fetcher  *completion.Fetcher
	table    *history.ClassificationTable
	notifier Notifier
	logger   zerolog.Logger
}

func NewPointService(
	client *api.PulseClient,
	states *repository.TeamStateRepository,
	views *ViewStore,
	fetcher *completion.Fetcher,
	table *history.ClassificationTable,
	notifier Notifier,
	logger zerolog.Logger,
) *PointService {
	return &PointService{
		client:   client,
		states:   states,
		views:    views,
		fetcher:  fetcher,
		table:    table,
		notifier: notifier,
		logger:   logger,
	}
}

// GetPoint resolves timestamp+track of a view back to the full point.
func (s *PointService) GetPoint(viewID, track string, at time.Time) (PointDetail, bool, error) {
	view, err := s.views.Get(viewID)
	if err != nil {
		return PointDetail{}, false, err
	}
	p, ok := view.Timeline().Lookup(at, track)
	if !ok {
		return PointDetail{}, false, nil
	}

	detail := PointDetail{Point: p, Complete: view.Series.IsComplete(track, at)}
	class, ok, err := s.table.ClassifyPoint(p)
	switch {
	case errors.Is(err, history.ErrPercentileOutOfRange):
		s.logger.Warn().Err(err).Str("view_id", viewID).Str("track", track).Msg("unclassifiable point")
	case err != nil:
		return PointDetail{}, false, err
	case ok:
		detail.Classification = &class
	}
	return detail, true, nil
}

// Inspect schedules completion of a point with missing rank data. It
// returns false when the point is already complete or unknown.
func (s *PointService) Inspect(ctx context.Context, viewID, track string, at time.Time) (bool, error) {
	view, err := s.views.Get(viewID)
	if err != nil {
		return false, err
	}
	p, ok := view.Series.Point(track, at)
	if !ok {
		return false, nil
	}

	q := view.Query
	q.TeamIDs = []int64{p.TeamState.TeamID}
	q.LegacyUIDs = nil

	fetch := func(ctx context.Context, from, to time.Time) ([]domain.TeamState, error) {
		return s.fetchWindow(ctx, q, track, from, to)
	}
	refresh := func() {
		view.Refresh()
		if s.notifier != nil {
			s.notifier.Notify(Notice{Type: NoticePointCompleted, ViewID: viewID, Track: track, At: at})
		}
	}

	scheduled := s.fetcher.Inspect(view.Series, track, at, fetch, refresh)
	s.logger.Debug().
		Str("view_id", viewID).
		Str("track", track).
		Time("at", at).
		Bool("scheduled", scheduled).
		Msg("point inspected")
	return scheduled, nil
}

func (s *PointService) fetchWindow(ctx context.Context, q api.HistoryQuery, track string, from, to time.Time) ([]domain.TeamState, error) {
	q.From, q.To = &from, &to
	groups, err := s.client.GetHistory(ctx, q)
	if err != nil {
		return nil, err
	}
	tracks, err := history.ExpandAll(groups)
	if err != nil {
		return nil, err
	}

	var rows []domain.TeamState
	for _, t := range tracks {
		if t.Name != track && t.Name != history.BaseTrackName(track) {
			continue
		}
		for _, p := range t.Points {
			rows = append(rows, p.TeamState)
		}
	}

	dbCtx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	if err := s.states.MergeRanks(dbCtx, track, rows); err != nil {
		s.logger.Warn().Err(err).Str("track", track).Msg("failed to store completed ranks")
	}
	return rows, nil
}

// Relayout recomputes a view's annotation visibility for a new axis.
func (s *PointService) Relayout(viewID string, axis annotation.Axis, g annotation.Gesture) ([]domain.AnnotationMarker, error) {
	view, err := s.views.Get(viewID)
	if err != nil {
		return nil, err
	}
	return view.Relayout(axis, g), nil
}
