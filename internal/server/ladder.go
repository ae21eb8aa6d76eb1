package server

import (
	"context"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"

	"ladder-tracker/internal/annotation"
	"ladder-tracker/internal/service"
)

const (
	LadderTrackerPath = "/ladder.v1.LadderTracker/"

	procGetSeasons   = LadderTrackerPath + "GetSeasons"
	procGetHistory   = LadderTrackerPath + "GetHistory"
	procRelayout     = LadderTrackerPath + "Relayout"
	procInspectPoint = LadderTrackerPath + "InspectPoint"
	procGetPoint     = LadderTrackerPath + "GetPoint"
)

type LadderServer struct {
	seasonSvc  *service.SeasonService
	historySvc *service.HistoryService
	pointSvc   *service.PointService
	views      *service.ViewStore
}

func NewLadderServer(seasonSvc *service.SeasonService, historySvc *service.HistoryService, pointSvc *service.PointService, views *service.ViewStore) *LadderServer {
	return &LadderServer{seasonSvc: seasonSvc, historySvc: historySvc, pointSvc: pointSvc, views: views}
}

// Handler mounts every procedure under LadderTrackerPath.
func (s *LadderServer) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(procGetSeasons, connect.NewUnaryHandler(procGetSeasons, s.GetSeasons, opts...))
	mux.Handle(procGetHistory, connect.NewUnaryHandler(procGetHistory, s.GetHistory, opts...))
	mux.Handle(procRelayout, connect.NewUnaryHandler(procRelayout, s.Relayout, opts...))
	mux.Handle(procInspectPoint, connect.NewUnaryHandler(procInspectPoint, s.InspectPoint, opts...))
	mux.Handle(procGetPoint, connect.NewUnaryHandler(procGetPoint, s.GetPoint, opts...))
	return LadderTrackerPath, mux
}

func timed(ctx context.Context, name string) func() {
	start := time.Now()
	return func() {
		zerolog.Ctx(ctx).Debug().
			Str("procedure", name).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("procedure finished")
	}
}

func (s *LadderServer) GetSeasons(ctx context.Context, req *connect.Request[GetSeasonsRequest]) (*connect.Response[GetSeasonsResponse], error) {
	defer timed(ctx, "GetSeasons")()

	seasons, err := s.seasonSvc.List(ctx, req.Msg.Region)
	if err != nil {
		return nil, toConnectError(err)
	}

	resp := &GetSeasonsResponse{Seasons: make([]Season, 0, len(seasons))}
	for _, season := range seasons {
		resp.Seasons = append(resp.Seasons, Season{
			Region:      season.Region,
			BattlenetID: season.BattlenetID,
			Start:       season.Start,
			End:         season.End,
			NowOrEnd:    season.NowOrEnd,
		})
	}
	return connect.NewResponse(resp), nil
}

func (s *LadderServer) GetHistory(ctx context.Context, req *connect.Request[GetHistoryRequest]) (*connect.Response[GetHistoryResponse], error) {
	defer timed(ctx, "GetHistory")()

	view, err := s.historySvc.Build(ctx, req.Msg.query(), req.Msg.options())
	if err != nil {
		return nil, toConnectError(err)
	}

	tl := view.Timeline()
	markers, _ := view.Annotations()
	return connect.NewResponse(&GetHistoryResponse{
		ViewID:          view.ID,
		Tracks:          tl.Tracks,
		Entries:         tl.Entries,
		Annotations:     toAnnotations(markers),
		Guides:          toAnnotations(view.Guides),
		FirstObservable: view.Window.FirstObservable,
		Now:             view.Window.Now,
	}), nil
}

func (s *LadderServer) Relayout(ctx context.Context, req *connect.Request[RelayoutRequest]) (*connect.Response[RelayoutResponse], error) {
	if req.Msg.Width <= 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errInvalidWidth)
	}
	view, err := s.views.Get(req.Msg.ViewID)
	if err != nil {
		return nil, toConnectError(err)
	}

	markers, err := s.pointSvc.Relayout(view.ID, req.Msg.axis(view.Window), annotation.ParseGesture(req.Msg.Gesture))
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&RelayoutResponse{Annotations: toAnnotations(markers)}), nil
}

func (s *LadderServer) InspectPoint(ctx context.Context, req *connect.Request[PointRequest]) (*connect.Response[InspectPointResponse], error) {
	scheduled, err := s.pointSvc.Inspect(ctx, req.Msg.ViewID, req.Msg.Track, req.Msg.At)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&InspectPointResponse{Scheduled: scheduled}), nil
}

func (s *LadderServer) GetPoint(ctx context.Context, req *connect.Request[PointRequest]) (*connect.Response[GetPointResponse], error) {
	detail, found, err := s.pointSvc.GetPoint(req.Msg.ViewID, req.Msg.Track, req.Msg.At)
	if err != nil {
		return nil, toConnectError(err)
	}

	resp := &GetPointResponse{Found: found}
	if found {
		p := toPoint(detail.Point)
		resp.Point = &p
		resp.Complete = detail.Complete
		if detail.Classification != nil {
			resp.Classification = detail.Classification.String()
		}
	}
	return connect.NewResponse(resp), nil
}
