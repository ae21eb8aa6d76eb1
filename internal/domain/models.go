package domain

import (
	"fmt"
	"time"
)

type Season struct {
	Region      string
	BattlenetID int
	Start       time.Time
	End         time.Time
	NowOrEnd    time.Time
}

// NewSeason derives NowOrEnd as the earlier of now and end.
func NewSeason(region string, battlenetID int, start, end, now time.Time) (Season, error) {
	nowOrEnd := end
	if now.Before(end) {
		nowOrEnd = now
	}
	if nowOrEnd.Before(start) {
		// season has not started yet
		nowOrEnd = start
	}
	if end.Before(start) {
		return Season{}, fmt.Errorf("season %s-%d ends before it starts", region, battlenetID)
	}
	return Season{
		Region:      region,
		BattlenetID: battlenetID,
		Start:       start,
		End:         end,
		NowOrEnd:    nowOrEnd,
	}, nil
}

func (s Season) Contains(t time.Time) bool {
	return !t.Before(s.Start) && t.Before(s.End)
}

// TeamState is a point-in-time snapshot. Rank and count fields are nil for
// flagged teams and must never be read as zero.
type TeamState struct {
	TeamID          int64
	DateTime        time.Time
	Games           int
	Wins            int
	Rating          int
	GlobalRank      *int
	GlobalTeamCount *int
	RegionRank      *int
	RegionTeamCount *int
	LeagueRank      *int
	LeagueTeamCount *int
}

func (s TeamState) ClearRanks() TeamState {
	s.GlobalRank, s.GlobalTeamCount = nil, nil
	s.RegionRank, s.RegionTeamCount = nil, nil
	s.LeagueRank, s.LeagueTeamCount = nil, nil
	return s
}

type League struct {
	Type      LeagueType
	QueueType QueueType
	TeamType  TeamType
}

type MmrPoint struct {
	TeamState TeamState
	League    League
	Tier      int
	Season    int
	Race      string
	Generated bool
	Injected  bool

	GlobalTopPercent *float64
	RegionTopPercent *float64
	LeagueTopPercent *float64
}

// At returns a copy of the point moved to t and marked as generated.
func (p MmrPoint) At(t time.Time) MmrPoint {
	p.TeamState.DateTime = t
	p.Generated = true
	return p
}

func (p MmrPoint) Key() PointKey {
	return PointKey{Race: p.Race, UnixMilli: p.TeamState.DateTime.UnixMilli()}
}

type PointKey struct {
	Race      string
	UnixMilli int64
}

type Patch struct {
	Build     int
	Version   string
	Published time.Time
}
