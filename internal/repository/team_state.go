package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"ladder-tracker/internal/constants"
	"ladder-tracker/internal/domain"
)

// TeamStateRepository stores observed (never synthesized) team snapshots.
type TeamStateRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewTeamStateRepository(sqlDB *sql.DB, logger zerolog.Logger) *TeamStateRepository {
	return &TeamStateRepository{db: sqlDB, logger: logger}
}

const upsertTeamState = `
INSERT INTO team_states (
    id, team_id, race, region, date_time, season, queue_type, team_type, league_type, tier,
    rating, games, wins, global_rank, global_team_count, region_rank, region_team_count,
    league_rank, league_team_count, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (team_id, race, date_time) DO UPDATE SET
    season            = excluded.season,
    league_type       = excluded.league_type,
    tier              = excluded.tier,
    rating            = excluded.rating,
    games             = excluded.games,
    wins              = excluded.wins,
    global_rank       = COALESCE(excluded.global_rank, team_states.global_rank),
    global_team_count = COALESCE(excluded.global_team_count, team_states.global_team_count),
    region_rank       = COALESCE(excluded.region_rank, team_states.region_rank),
    region_team_count = COALESCE(excluded.region_team_count, team_states.region_team_count),
    league_rank       = COALESCE(excluded.league_rank, team_states.league_rank),
    league_team_count = COALESCE(excluded.league_team_count, team_states.league_team_count),
    updated_at        = excluded.updated_at`

// UpsertBatch stores observed points. Generated points are skipped.
func (r *TeamStateRepository) UpsertBatch(ctx context.Context, region string, points []domain.MmrPoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertTeamState)
	if err != nil {
		return fmt.Errorf("failed to prepare team state upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	var stored int
	for i := 0; i < len(points); i += constants.DBBatchSize {
		end := min(i+constants.DBBatchSize, len(points))
		for _, p := range points[i:end] {
			if p.Generated {
				continue
			}
			id, err := gonanoid.New()
			if err != nil {
				return fmt.Errorf("failed to generate nanoid: %w", err)
			}
			s := p.TeamState
			_, err = stmt.ExecContext(ctx,
				id, s.TeamID, p.Race, region, s.DateTime.UTC(), p.Season,
				int(p.League.QueueType), int(p.League.TeamType), int(p.League.Type), p.Tier,
				s.Rating, s.Games, s.Wins,
				nullInt(s.GlobalRank), nullInt(s.GlobalTeamCount),
				nullInt(s.RegionRank), nullInt(s.RegionTeamCount),
				nullInt(s.LeagueRank), nullInt(s.LeagueTeamCount),
				now, now,
			)
			if err != nil {
				return fmt.Errorf("failed to upsert team state %d@%s: %w", s.TeamID, s.DateTime, err)
			}
			stored++
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	r.logger.Debug().Int("stored", stored).Int("points", len(points)).Msg("team states upserted")
	return nil
}

// MergeRanks fills rank fields of stored rows matching the given states.
func (r *TeamStateRepository) MergeRanks(ctx context.Context, race string, states []domain.TeamState) error {
	for _, s := range states {
		_, err := r.db.ExecContext(ctx, `
UPDATE team_states SET
    global_rank       = COALESCE(?, global_rank),
    global_team_count = COALESCE(?, global_team_count),
    region_rank       = COALESCE(?, region_rank),
    region_team_count = COALESCE(?, region_team_count),
    league_rank       = COALESCE(?, league_rank),
    league_team_count = COALESCE(?, league_team_count),
    updated_at        = ?
WHERE team_id = ? AND race = ? AND date_time = ?`,
			nullInt(s.GlobalRank), nullInt(s.GlobalTeamCount),
			nullInt(s.RegionRank), nullInt(s.RegionTeamCount),
			nullInt(s.LeagueRank), nullInt(s.LeagueTeamCount),
			time.Now().UTC(), s.TeamID, race, s.DateTime.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to merge ranks for team %d: %w", s.TeamID, err)
		}
	}
	return nil
}

// ListByTeams returns stored points of the given teams at or after from,
// ordered by race and time.
func (r *TeamStateRepository) ListByTeams(ctx context.Context, teamIDs []int64, from time.Time) ([]StoredPoint, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(teamIDs)+1)
	for _, id := range teamIDs {
		args = append(args, id)
	}
	args = append(args, from.UTC())

	rows, err := r.db.QueryContext(ctx, `
SELECT race, region, team_id, date_time, season, queue_type, team_type, league_type, tier,
       rating, games, wins, global_rank, global_team_count, region_rank, region_team_count,
       league_rank, league_team_count
FROM team_states
WHERE team_id IN (`+placeholders(len(teamIDs))+`) AND date_time >= ?
ORDER BY race, date_time`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredPoint
	for rows.Next() {
		var (
			sp                        StoredPoint
			p                         domain.MmrPoint
			queue, teamType, league   int
			gr, gtc, rr, rtc, lr, ltc sql.NullInt64
		)
		err := rows.Scan(&p.Race, &sp.Region, &p.TeamState.TeamID, &p.TeamState.DateTime, &p.Season,
			&queue, &teamType, &league, &p.Tier,
			&p.TeamState.Rating, &p.TeamState.Games, &p.TeamState.Wins,
			&gr, &gtc, &rr, &rtc, &lr, &ltc)
		if err != nil {
			return nil, err
		}
		p.League = domain.League{Type: domain.LeagueType(league), QueueType: domain.QueueType(queue), TeamType: domain.TeamType(teamType)}
		p.TeamState.GlobalRank, p.TeamState.GlobalTeamCount = intPtr(gr), intPtr(gtc)
		p.TeamState.RegionRank, p.TeamState.RegionTeamCount = intPtr(rr), intPtr(rtc)
		p.TeamState.LeagueRank, p.TeamState.LeagueTeamCount = intPtr(lr), intPtr(ltc)
		sp.Point = p
		out = append(out, sp)
	}
	return out, rows.Err()
}

type StoredPoint struct {
	Region string
	Point  domain.MmrPoint
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
