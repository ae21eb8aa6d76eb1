package history

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ladder-tracker/internal/domain"
)

var ErrPercentileOutOfRange = errors.New("percentile above every classification bound")

// Percentile returns rank/population*100, or nil if either is absent.
func Percentile(rank, population *int) *float64 {
	if rank == nil || population == nil || *population <= 0 {
		return nil
	}
	v := float64(*rank) / float64(*population) * 100
	return &v
}

// WithPercentiles returns copies of the tracks with top-percent fields derived
// from each point's rank/count pairs.
func WithPercentiles(tracks []Track) []Track {
	out := make([]Track, len(tracks))
	for i, t := range tracks {
		points := make([]domain.MmrPoint, len(t.Points))
		for j, p := range t.Points {
			s := p.TeamState
			p.GlobalTopPercent = Percentile(s.GlobalRank, s.GlobalTeamCount)
			p.RegionTopPercent = Percentile(s.RegionRank, s.RegionTeamCount)
			p.LeagueTopPercent = Percentile(s.LeagueRank, s.LeagueTeamCount)
			points[j] = p
		}
		out[i] = t.withPoints(points)
	}
	return out
}

type Classification struct {
	League domain.LeagueType
	Tier   int
}

func (c Classification) String() string {
	if c.Tier == 0 {
		return c.League.String()
	}
	return fmt.Sprintf("%s %d", c.League, c.Tier)
}

type classificationEntry struct {
	Bound  float64 `yaml:"bound"`
	League string  `yaml:"league"`
	Tier   int     `yaml:"tier"`
}

type classificationFile struct {
	TopBracket struct {
		Size   int    `yaml:"size"`
		League string `yaml:"league"`
		Tier   int    `yaml:"tier"`
	} `yaml:"topBracket"`
	Entries []classificationEntry `yaml:"entries"`
}

type bound struct {
	upper float64
	class Classification
}

// ClassificationTable maps a top-percent value to a league and tier.
type ClassificationTable struct {
	topBracketSize int
	top            Classification
	bounds         []bound
}

//go:embed classification.yaml
var defaultClassification []byte

func DefaultClassificationTable() *ClassificationTable {
	t, err := ParseClassificationTable(defaultClassification)
	if err != nil {
		panic(fmt.Sprintf("embedded classification table: %v", err))
	}
	return t
}

// LoadClassificationTable reads a YAML table from path, or returns the
// embedded default when path is empty.
func LoadClassificationTable(path string) (*ClassificationTable, error) {
	if path == "" {
		return DefaultClassificationTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read classification table '%s': %w", path, err)
	}
	return ParseClassificationTable(data)
}

func ParseClassificationTable(data []byte) (*ClassificationTable, error) {
	var f classificationFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse classification table: %w", err)
	}
	if len(f.Entries) == 0 {
		return nil, errors.New("classification table has no entries")
	}

	t := &ClassificationTable{topBracketSize: f.TopBracket.Size}
	if f.TopBracket.Size > 0 {
		l, ok := domain.ParseLeagueType(f.TopBracket.League)
		if !ok {
			return nil, fmt.Errorf("unknown top bracket league %q", f.TopBracket.League)
		}
		t.top = Classification{League: l, Tier: f.TopBracket.Tier}
	}
	for i, e := range f.Entries {
		l, ok := domain.ParseLeagueType(e.League)
		if !ok {
			return nil, fmt.Errorf("entry %d: unknown league %q", i, e.League)
		}
		if i > 0 && e.Bound <= f.Entries[i-1].Bound {
			return nil, fmt.Errorf("entry %d: bound %v is not above %v", i, e.Bound, f.Entries[i-1].Bound)
		}
		t.bounds = append(t.bounds, bound{upper: e.Bound, class: Classification{League: l, Tier: e.Tier}})
	}
	return t, nil
}

// Classify resolves a top-percent value. Absent percentiles yield ok=false;
// ranks inside the top bracket always resolve to the top classification.
func (t *ClassificationTable) Classify(percentile *float64, rank *int) (Classification, bool, error) {
	if percentile == nil {
		return Classification{}, false, nil
	}
	if rank != nil && t.topBracketSize > 0 && *rank <= t.topBracketSize {
		return t.top, true, nil
	}
	for _, b := range t.bounds {
		if b.upper >= *percentile {
			return b.class, true, nil
		}
	}
	return Classification{}, false, fmt.Errorf("%w: %.3f", ErrPercentileOutOfRange, *percentile)
}

func (t *ClassificationTable) ClassifyPoint(p domain.MmrPoint) (Classification, bool, error) {
	return t.Classify(p.GlobalTopPercent, p.TeamState.GlobalRank)
}

// Thresholds returns the upper bound of every league's last tier in table
// order.
func (t *ClassificationTable) Thresholds() []Threshold {
	var out []Threshold
	for i, b := range t.bounds {
		if i == len(t.bounds)-1 || t.bounds[i+1].class.League != b.class.League {
			out = append(out, Threshold{Percentile: b.upper, League: b.class.League})
		}
	}
	return out
}

type Threshold struct {
	Percentile float64
	League     domain.LeagueType
}
