package domain

import "strings"

type LeagueType int

const (
	LeagueBronze LeagueType = iota
	LeagueSilver
	LeagueGold
	LeaguePlatinum
	LeagueDiamond
	LeagueMaster
	LeagueGrandmaster
)

var leagueNames = map[LeagueType]string{
	LeagueBronze:      "BRONZE",
	LeagueSilver:      "SILVER",
	LeagueGold:        "GOLD",
	LeaguePlatinum:    "PLATINUM",
	LeagueDiamond:     "DIAMOND",
	LeagueMaster:      "MASTER",
	LeagueGrandmaster: "GRANDMASTER",
}

func (l LeagueType) String() string {
	if n, ok := leagueNames[l]; ok {
		return n
	}
	return "UNKNOWN"
}

func ParseLeagueType(s string) (LeagueType, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for l, n := range leagueNames {
		if n == s {
			return l, true
		}
	}
	return 0, false
}

// QueueType ids follow the upstream site's numbering.
type QueueType int

const (
	Queue1v1    QueueType = 201
	Queue2v2    QueueType = 202
	Queue3v3    QueueType = 203
	Queue4v4    QueueType = 204
	QueueArchon QueueType = 206
)

// HasSpecializations reports whether teams in the queue split into per-race tracks.
func (q QueueType) HasSpecializations() bool {
	return q == Queue1v1
}

func (q QueueType) String() string {
	switch q {
	case Queue1v1:
		return "1V1"
	case Queue2v2:
		return "2V2"
	case Queue3v3:
		return "3V3"
	case Queue4v4:
		return "4V4"
	case QueueArchon:
		return "ARCHON"
	}
	return "UNKNOWN"
}

type TeamType int

const (
	TeamArranged TeamType = iota
	TeamRandom
)

const (
	RaceTerran  = "TERRAN"
	RaceProtoss = "PROTOSS"
	RaceZerg    = "ZERG"
	RaceRandom  = "RANDOM"

	// TrackAll names the single track of queues without specializations.
	TrackAll = "ALL"
)

var Races = []string{RaceTerran, RaceProtoss, RaceZerg, RaceRandom}
