package history

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"ladder-tracker/internal/domain"
)

// Column names of the columnar history payload.
const (
	ColTimestamp       = "timestamp"
	ColTeamID          = "teamId"
	ColRating          = "rating"
	ColGames           = "games"
	ColWins            = "wins"
	ColSeason          = "season"
	ColLeagueType      = "leagueType"
	ColTier            = "tier"
	ColGlobalRank      = "globalRank"
	ColGlobalTeamCount = "globalTeamCount"
	ColRegionRank      = "regionRank"
	ColRegionTeamCount = "regionTeamCount"
	ColLeagueRank      = "leagueRank"
	ColLeagueTeamCount = "leagueTeamCount"
)

// Static data keys.
const (
	StaticRace      = "race"
	StaticRegion    = "region"
	StaticQueueType = "queueType"
	StaticTeamType  = "teamType"
	StaticTeamID    = "teamId"
	StaticLegacyUID = "legacyUid"
)

var requiredColumns = []string{ColTimestamp, ColRating}

// History maps a column name to one value per historical row. Nil entries
// are absent values.
type History map[string][]*int64

// Len returns the shared column length, or false if columns disagree.
func (h History) Len() (int, bool) {
	n := -1
	for _, col := range h {
		if n < 0 {
			n = len(col)
			continue
		}
		if len(col) != n {
			return 0, false
		}
	}
	if n < 0 {
		return 0, true
	}
	return n, true
}

type StaticData map[string]any

func (s StaticData) String(key string) string {
	switch v := s[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (s StaticData) Int(key string) (int64, bool) {
	switch v := s[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}

type HistoryGroup struct {
	StaticData StaticData `json:"staticData"`
	History    History    `json:"history"`
}

// Track is the history of one specialization of one team group.
type Track struct {
	Name   string
	Region string
	Queue  domain.QueueType
	Team   domain.TeamType
	Points []domain.MmrPoint
}

func (t Track) withPoints(points []domain.MmrPoint) Track {
	t.Points = points
	return t
}

type MalformedHistoryError struct {
	Column string
	Row    int
	Want   int
	Got    int
	Reason string
}

func (e *MalformedHistoryError) Error() string {
	switch {
	case e.Reason != "":
		return fmt.Sprintf("malformed history column %q row %d: %s", e.Column, e.Row, e.Reason)
	default:
		return fmt.Sprintf("malformed history column %q: want %d rows, got %d", e.Column, e.Want, e.Got)
	}
}

func validate(h History) (int, error) {
	for _, col := range requiredColumns {
		if _, ok := h[col]; !ok {
			return 0, &MalformedHistoryError{Column: col, Row: -1, Reason: "missing required column"}
		}
	}

	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	n := len(h[ColTimestamp])
	for _, name := range names {
		if got := len(h[name]); got != n {
			return 0, &MalformedHistoryError{Column: name, Want: n, Got: got}
		}
	}
	for i := 0; i < n; i++ {
		if h[ColTimestamp][i] == nil {
			return 0, &MalformedHistoryError{Column: ColTimestamp, Row: i, Reason: "absent timestamp"}
		}
		if h[ColRating][i] == nil {
			return 0, &MalformedHistoryError{Column: ColRating, Row: i, Reason: "absent rating"}
		}
	}
	return n, nil
}

// Expand transposes a columnar group into a row-major track ordered by
// timestamp. Rows sharing a timestamp collapse to the last one.
func Expand(g HistoryGroup) (Track, error) {
	n, err := validate(g.History)
	if err != nil {
		return Track{}, err
	}

	queue := domain.Queue1v1
	if q, ok := g.StaticData.Int(StaticQueueType); ok {
		queue = domain.QueueType(q)
	}
	team := domain.TeamArranged
	if tt, ok := g.StaticData.Int(StaticTeamType); ok {
		team = domain.TeamType(tt)
	}
	name := g.StaticData.String(StaticRace)
	if name == "" || !queue.HasSpecializations() {
		name = domain.TrackAll
	}
	staticTeamID, _ := g.StaticData.Int(StaticTeamID)

	h := g.History
	points := make([]domain.MmrPoint, 0, n)
	for i := 0; i < n; i++ {
		state := domain.TeamState{
			TeamID:          staticTeamID,
			DateTime:        time.Unix(*h[ColTimestamp][i], 0),
			Rating:          int(*h[ColRating][i]),
			Games:           intAt(h, ColGames, i),
			Wins:            intAt(h, ColWins, i),
			GlobalRank:      optAt(h, ColGlobalRank, i),
			GlobalTeamCount: optAt(h, ColGlobalTeamCount, i),
			RegionRank:      optAt(h, ColRegionRank, i),
			RegionTeamCount: optAt(h, ColRegionTeamCount, i),
			LeagueRank:      optAt(h, ColLeagueRank, i),
			LeagueTeamCount: optAt(h, ColLeagueTeamCount, i),
		}
		if id := optAt(h, ColTeamID, i); id != nil {
			state.TeamID = int64(*id)
		}
		points = append(points, domain.MmrPoint{
			TeamState: state,
			League: domain.League{
				Type:      domain.LeagueType(intAt(h, ColLeagueType, i)),
				QueueType: queue,
				TeamType:  team,
			},
			Tier:   intAt(h, ColTier, i),
			Season: intAt(h, ColSeason, i),
			Race:   name,
		})
	}

	slices.SortStableFunc(points, func(a, b domain.MmrPoint) int {
		return a.TeamState.DateTime.Compare(b.TeamState.DateTime)
	})
	points = dedupe(points)

	return Track{
		Name:   name,
		Region: g.StaticData.String(StaticRegion),
		Queue:  queue,
		Team:   team,
		Points: points,
	}, nil
}

// ExpandAll expands every group, failing on the first malformed one. Groups
// that would share a track name get the team id, or legacy uid, appended so
// every track stays distinct.
func ExpandAll(groups []HistoryGroup) ([]Track, error) {
	tracks := make([]Track, 0, len(groups))
	names := make(map[string]int, len(groups))
	for i, g := range groups {
		t, err := Expand(g)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", i, err)
		}
		tracks = append(tracks, t)
		names[t.Name]++
	}

	seen := make(map[string]struct{}, len(tracks))
	for i, t := range tracks {
		if names[t.Name] > 1 {
			name := t.Name + TrackSeparator + groupKey(groups[i], i)
			if _, dup := seen[name]; dup {
				name = fmt.Sprintf("%s%s%d", t.Name, TrackSeparator, i)
			}
			tracks[i] = t.renamed(name)
		}
		seen[tracks[i].Name] = struct{}{}
	}
	return tracks, nil
}

// TrackSeparator joins a race and a team key in disambiguated track names.
const TrackSeparator = "#"

// BaseTrackName strips the team key ExpandAll appends to colliding tracks.
func BaseTrackName(name string) string {
	if i := strings.Index(name, TrackSeparator); i >= 0 {
		return name[:i]
	}
	return name
}

func groupKey(g HistoryGroup, i int) string {
	if id, ok := g.StaticData.Int(StaticTeamID); ok {
		return strconv.FormatInt(id, 10)
	}
	if uid := g.StaticData.String(StaticLegacyUID); uid != "" {
		return uid
	}
	return strconv.Itoa(i)
}

func (t Track) renamed(name string) Track {
	points := make([]domain.MmrPoint, len(t.Points))
	for i, p := range t.Points {
		p.Race = name
		points[i] = p
	}
	t.Name = name
	t.Points = points
	return t
}

func dedupe(points []domain.MmrPoint) []domain.MmrPoint {
	out := points[:0]
	for _, p := range points {
		if len(out) > 0 && out[len(out)-1].TeamState.DateTime.Equal(p.TeamState.DateTime) {
			out[len(out)-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

func intAt(h History, col string, i int) int {
	if v := optAt(h, col, i); v != nil {
		return *v
	}
	return 0
}

func optAt(h History, col string, i int) *int {
	c, ok := h[col]
	if !ok || i >= len(c) || c[i] == nil {
		return nil
	}
	v := int(*c[i])
	return &v
}
