package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ladder-tracker/internal/domain"
)

type SeasonRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSeasonRepository(sqlDB *sql.DB, logger zerolog.Logger) *SeasonRepository {
	return &SeasonRepository{db: sqlDB, logger: logger}
}

func (r *SeasonRepository) UpsertBatch(ctx context.Context, seasons []domain.Season, fetchedAt time.Time) error {
	if len(seasons) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO seasons (region, battlenet_id, start_at, end_at, fetched_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (region, battlenet_id) DO UPDATE SET
    start_at   = excluded.start_at,
    end_at     = excluded.end_at,
    fetched_at = excluded.fetched_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare season upsert: %w", err)
	}
	defer stmt.Close()

	for _, s := range seasons {
		if _, err := stmt.ExecContext(ctx, s.Region, s.BattlenetID, s.Start.UTC(), s.End.UTC(), fetchedAt.UTC()); err != nil {
			return fmt.Errorf("failed to upsert season %s-%d: %w", s.Region, s.BattlenetID, err)
		}
	}
	return tx.Commit()
}

// ListAll returns every stored season with NowOrEnd derived from now.
func (r *SeasonRepository) ListAll(ctx context.Context, now time.Time) ([]domain.Season, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT region, battlenet_id, start_at, end_at FROM seasons ORDER BY region, battlenet_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Season
	for rows.Next() {
		var (
			region     string
			id         int
			start, end time.Time
		)
		if err := rows.Scan(&region, &id, &start, &end); err != nil {
			return nil, err
		}
		s, err := domain.NewSeason(region, id, start, end, now)
		if err != nil {
			r.logger.Warn().Err(err).Msg("skipping stored season")
			continue
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ShouldRefresh reports whether the stored season list is older than ttl.
func (r *SeasonRepository) ShouldRefresh(ctx context.Context, ttl time.Duration) (bool, error) {
	var last sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT MAX(fetched_at) FROM seasons`).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !last.Valid) {
		r.logger.Debug().Msg("no seasons stored, should refresh")
		return true, nil
	}
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to get season fetch time")
		return false, err
	}

	fetchedAt, err := parseSQLiteTime(last.String)
	if err != nil {
		return true, nil
	}
	return time.Since(fetchedAt) > ttl, nil
}

// MAX() loses the column type, so the driver hands back text.
var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseSQLiteTime(s string) (time.Time, error) {
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
