package history

import (
	"errors"
	"testing"

	"ladder-tracker/internal/domain"
)

func values(col []*int64) []int64 {
	out := make([]int64, len(col))
	for i, v := range col {
		if v != nil {
			out[i] = *v
		}
	}
	return out
}

func TestCollapseSeasonEnds(t *testing.T) {
	h := History{
		ColTimestamp: {i64(1), i64(2), i64(3), i64(4), i64(5)},
		ColRating:    {i64(10), i64(20), i64(30), i64(40), i64(50)},
		ColSeason:    {i64(56), i64(56), i64(57), i64(58), i64(58)},
	}

	out := CollapseSeasonEnds(h)

	got := values(out[ColRating])
	want := []int64{20, 30, 50}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d: got %d, want %d", i, got[i], want[i])
		}
	}
	if len(h[ColRating]) != 5 {
		t.Error("input history must not be modified")
	}
}

func TestCollapseSeasonEndsPassThrough(t *testing.T) {
	tests := []struct {
		name string
		h    History
	}{
		{"no season column", History{ColTimestamp: {i64(1), i64(2)}, ColRating: {i64(1), i64(2)}}},
		{"mismatched lengths", History{ColTimestamp: {i64(1), i64(2)}, ColSeason: {i64(1)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := CollapseSeasonEnds(tt.h)
			for name, col := range tt.h {
				if len(out[name]) != len(col) {
					t.Errorf("column %s changed length: %d -> %d", name, len(col), len(out[name]))
				}
			}
		})
	}
}

func ratingTrack(name string, ratings ...int) Track {
	points := make([]domain.MmrPoint, len(ratings))
	for i, r := range ratings {
		points[i] = domain.MmrPoint{TeamState: domain.TeamState{Rating: r}, Race: name}
	}
	return Track{Name: name, Queue: domain.Queue1v1, Points: points}
}

func TestFilterBestRace(t *testing.T) {
	get, err := Getter(MetricRating)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name   string
		tracks []Track
		reduce Reducer
		want   string
	}{
		{
			name:   "max wins",
			tracks: []Track{ratingTrack("TERRAN", 3000, 3100), ratingTrack("ZERG", 2900, 3500), ratingTrack("PROTOSS", 3200)},
			reduce: MaxReducer,
			want:   "ZERG",
		},
		{
			name:   "last value wins",
			tracks: []Track{ratingTrack("TERRAN", 3000, 3400), ratingTrack("ZERG", 3500, 2900)},
			reduce: LastReducer,
			want:   "TERRAN",
		},
		{
			name:   "tie keeps first",
			tracks: []Track{ratingTrack("PROTOSS", 3000), ratingTrack("ZERG", 3000)},
			reduce: MaxReducer,
			want:   "PROTOSS",
		},
		{
			name:   "empty track never wins",
			tracks: []Track{ratingTrack("RANDOM"), ratingTrack("ZERG", 1)},
			reduce: SumReducer,
			want:   "ZERG",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FilterBestRace(tt.tracks, get, tt.reduce, Greater)
			if len(out) != 1 || out[0].Name != tt.want {
				t.Errorf("got %+v, want %s", out, tt.want)
			}
		})
	}
}

func TestShouldFilterBestRace(t *testing.T) {
	if !ShouldFilterBestRace([]Track{{Queue: domain.Queue1v1}}) {
		t.Error("1v1 should filter")
	}
	if ShouldFilterBestRace([]Track{{Queue: domain.Queue2v2}}) {
		t.Error("2v2 should not filter")
	}
}

func TestPercentile(t *testing.T) {
	if p := Percentile(intp(5), intp(200)); p == nil || *p != 2.5 {
		t.Errorf("expected 2.5, got %v", p)
	}
	if p := Percentile(nil, intp(200)); p != nil {
		t.Errorf("absent rank must give absent percentile, got %v", *p)
	}
	if p := Percentile(intp(5), nil); p != nil {
		t.Errorf("absent population must give absent percentile, got %v", *p)
	}
}

func TestClassify(t *testing.T) {
	table := DefaultClassificationTable()
	pct := func(v float64) *float64 { return &v }

	tests := []struct {
		name       string
		percentile *float64
		rank       *int
		want       Classification
		wantOK     bool
		wantErr    error
	}{
		{"absent", nil, intp(1), Classification{}, false, nil},
		{"top bracket bypass", pct(3.5), intp(150), Classification{League: domain.LeagueGrandmaster, Tier: 1}, true, nil},
		{"master 1", pct(1.0), intp(400), Classification{League: domain.LeagueMaster, Tier: 1}, true, nil},
		{"exact bound", pct(27), nil, Classification{League: domain.LeagueDiamond, Tier: 3}, true, nil},
		{"bronze", pct(99.9), nil, Classification{League: domain.LeagueBronze, Tier: 3}, true, nil},
		{"out of range", pct(100.5), nil, Classification{}, false, ErrPercentileOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := table.Classify(tt.percentile, tt.rank)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error: got %v, want %v", err, tt.wantErr)
			}
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("got %v/%v, want %v/%v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestClassifyPointAbsencePropagation(t *testing.T) {
	table := DefaultClassificationTable()
	p := domain.MmrPoint{TeamState: domain.TeamState{GlobalRank: intp(10)}}
	tracks := WithPercentiles([]Track{{Points: []domain.MmrPoint{p}}})
	got := tracks[0].Points[0]
	if got.GlobalTopPercent != nil {
		t.Fatalf("percentile must be absent without a population")
	}
	if _, ok, err := table.ClassifyPoint(got); ok || err != nil {
		t.Errorf("classification must be absent, got ok=%v err=%v", ok, err)
	}
}

func TestParseClassificationTableRejectsUnorderedBounds(t *testing.T) {
	_, err := ParseClassificationTable([]byte(`
entries:
  - { bound: 10, league: MASTER, tier: 1 }
  - { bound: 5, league: DIAMOND, tier: 1 }
`))
	if err == nil {
		t.Fatal("expected error for decreasing bounds")
	}
}

func TestThresholds(t *testing.T) {
	th := DefaultClassificationTable().Thresholds()
	if len(th) != 6 {
		t.Fatalf("expected one threshold per league, got %d", len(th))
	}
	if th[0].League != domain.LeagueMaster || th[0].Percentile != 4 {
		t.Errorf("unexpected first threshold %+v", th[0])
	}
}

func TestBuildTimeline(t *testing.T) {
	a := Track{Name: "ZERG", Points: []domain.MmrPoint{point(date(2024, 1, 1, 0), 100, 1), point(date(2024, 1, 2, 0), 110, 1)}}
	b := Track{Name: "TERRAN", Points: []domain.MmrPoint{
		{TeamState: domain.TeamState{DateTime: date(2024, 1, 2, 0), Rating: 200}, Race: "TERRAN"},
	}}
	get, _ := Getter(MetricRating)

	tl := BuildTimeline([]Track{a, b}, get)

	if len(tl.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(tl.Entries))
	}
	second := tl.Entries[1].Values
	if second["ZERG"] != 110 || second["TERRAN"] != 200 {
		t.Errorf("unexpected values %v", second)
	}
	p, ok := tl.Lookup(date(2024, 1, 2, 0), "TERRAN")
	if !ok || p.TeamState.Rating != 200 {
		t.Errorf("lookup failed: %+v %v", p, ok)
	}
	if _, err := Getter("elo"); err == nil {
		t.Error("expected unknown metric error")
	}
}
