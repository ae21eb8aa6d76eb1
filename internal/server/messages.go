package server

import (
	"time"

	"ladder-tracker/internal/annotation"
	"ladder-tracker/internal/api"
	"ladder-tracker/internal/domain"
	"ladder-tracker/internal/history"
	"ladder-tracker/internal/service"
)

type GetSeasonsRequest struct {
	Region string `json:"region"`
}

type Season struct {
	Region      string    `json:"region"`
	BattlenetID int       `json:"battlenetId"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	NowOrEnd    time.Time `json:"nowOrEnd"`
}

type GetSeasonsResponse struct {
	Seasons []Season `json:"seasons"`
}

type GetHistoryRequest struct {
	TeamIDs            []int64    `json:"teamIds"`
	LegacyUIDs         []string   `json:"legacyUids"`
	GroupBy            string     `json:"groupBy"`
	From               *time.Time `json:"from,omitempty"`
	To                 *time.Time `json:"to,omitempty"`
	Static             []string   `json:"static"`
	History            []string   `json:"history"`
	Metric             string     `json:"metric"`
	CollapseSeasonEnds bool       `json:"collapseSeasonEnds"`
	BestRace           bool       `json:"bestRace"`
	Patches            bool       `json:"patches"`
	Width              float64    `json:"width"`
	SessionID          string     `json:"sessionId"`
}

func (r *GetHistoryRequest) query() api.HistoryQuery {
	return api.HistoryQuery{
		GroupBy:    r.GroupBy,
		TeamIDs:    r.TeamIDs,
		LegacyUIDs: r.LegacyUIDs,
		From:       r.From,
		To:         r.To,
		Static:     r.Static,
		History:    r.History,
	}
}

func (r *GetHistoryRequest) options() service.ViewOptions {
	return service.ViewOptions{
		Metric:             history.Metric(r.Metric),
		CollapseSeasonEnds: r.CollapseSeasonEnds,
		BestRace:           r.BestRace,
		Patches:            r.Patches,
		Width:              r.Width,
		SessionID:          r.SessionID,
	}
}

type Annotation struct {
	Kind     string  `json:"kind"`
	XMin     float64 `json:"xMin"`
	XMax     float64 `json:"xMax"`
	Content  string  `json:"content"`
	Position string  `json:"position"`
	Display  bool    `json:"display"`
}

func toAnnotations(markers []domain.AnnotationMarker) []Annotation {
	out := make([]Annotation, 0, len(markers))
	for _, m := range markers {
		out = append(out, Annotation{
			Kind:     string(m.Kind),
			XMin:     m.XMin,
			XMax:     m.XMax,
			Content:  m.Label.Content,
			Position: string(m.Label.Position),
			Display:  m.Label.Display,
		})
	}
	return out
}

type GetHistoryResponse struct {
	ViewID          string          `json:"viewId"`
	Tracks          []string        `json:"tracks"`
	Entries         []history.Entry `json:"entries"`
	Annotations     []Annotation    `json:"annotations"`
	Guides          []Annotation    `json:"guides"`
	FirstObservable time.Time       `json:"firstObservable"`
	Now             time.Time       `json:"now"`
}

type RelayoutRequest struct {
	ViewID  string   `json:"viewId"`
	Width   float64  `json:"width"`
	ZoomMin *float64 `json:"zoomMin,omitempty"`
	ZoomMax *float64 `json:"zoomMax,omitempty"`
	Gesture string   `json:"gesture"`
}

func (r *RelayoutRequest) axis(w history.Window) annotation.Axis {
	a := annotation.Axis{
		PixelWidth: r.Width,
		DataMin:    annotation.TimeValue(w.FirstObservable),
		DataMax:    annotation.TimeValue(w.Now),
	}
	if r.ZoomMin != nil && r.ZoomMax != nil {
		a.Zoom = &annotation.Range{Min: *r.ZoomMin, Max: *r.ZoomMax}
	}
	return a
}

type RelayoutResponse struct {
	Annotations []Annotation `json:"annotations"`
}

type PointRequest struct {
	ViewID string    `json:"viewId"`
	Track  string    `json:"track"`
	At     time.Time `json:"at"`
}

type InspectPointResponse struct {
	Scheduled bool `json:"scheduled"`
}

type Point struct {
	TeamID           int64     `json:"teamId"`
	At               time.Time `json:"at"`
	Race             string    `json:"race"`
	Season           int       `json:"season"`
	League           string    `json:"league"`
	Tier             int       `json:"tier"`
	Rating           int       `json:"rating"`
	Games            int       `json:"games"`
	Wins             int       `json:"wins"`
	GlobalRank       *int      `json:"globalRank"`
	GlobalTeamCount  *int      `json:"globalTeamCount"`
	RegionRank       *int      `json:"regionRank"`
	RegionTeamCount  *int      `json:"regionTeamCount"`
	LeagueRank       *int      `json:"leagueRank"`
	LeagueTeamCount  *int      `json:"leagueTeamCount"`
	GlobalTopPercent *float64  `json:"globalTopPercent"`
	RegionTopPercent *float64  `json:"regionTopPercent"`
	LeagueTopPercent *float64  `json:"leagueTopPercent"`
	Generated        bool      `json:"generated"`
	Injected         bool      `json:"injected"`
}

func toPoint(p domain.MmrPoint) Point {
	s := p.TeamState
	return Point{
		TeamID:           s.TeamID,
		At:               s.DateTime,
		Race:             p.Race,
		Season:           p.Season,
		League:           p.League.Type.String(),
		Tier:             p.Tier,
		Rating:           s.Rating,
		Games:            s.Games,
		Wins:             s.Wins,
		GlobalRank:       s.GlobalRank,
		GlobalTeamCount:  s.GlobalTeamCount,
		RegionRank:       s.RegionRank,
		RegionTeamCount:  s.RegionTeamCount,
		LeagueRank:       s.LeagueRank,
		LeagueTeamCount:  s.LeagueTeamCount,
		GlobalTopPercent: p.GlobalTopPercent,
		RegionTopPercent: p.RegionTopPercent,
		LeagueTopPercent: p.LeagueTopPercent,
		Generated:        p.Generated,
		Injected:         p.Injected,
	}
}

type GetPointResponse struct {
	Found    bool   `json:"found"`
	Point    *Point `json:"point,omitempty"`
	Complete bool   `json:"complete"`
	// Classification is empty when the point has no percentile.
	Classification string `json:"classification,omitempty"`
}
