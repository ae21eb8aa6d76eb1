package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ladder-tracker/internal/domain"
)

type PatchRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPatchRepository(sqlDB *sql.DB, logger zerolog.Logger) *PatchRepository {
	return &PatchRepository{db: sqlDB, logger: logger}
}

func (r *PatchRepository) UpsertBatch(ctx context.Context, patches []domain.Patch, fetchedAt time.Time) error {
	if len(patches) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range patches {
		_, err := tx.ExecContext(ctx, `
INSERT INTO patches (build, version, published, fetched_at) VALUES (?, ?, ?, ?)
ON CONFLICT (build) DO UPDATE SET
    version    = excluded.version,
    published  = excluded.published,
    fetched_at = excluded.fetched_at`,
			p.Build, p.Version, p.Published.UTC(), fetchedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to upsert patch %d: %w", p.Build, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	r.logger.Debug().Int("count", len(patches)).Msg("patches upserted")
	return nil
}

// ListSince returns patches published at or after from, oldest first.
func (r *PatchRepository) ListSince(ctx context.Context, from time.Time) ([]domain.Patch, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT build, version, published FROM patches WHERE published >= ? ORDER BY published`, from.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Patch
	for rows.Next() {
		var p domain.Patch
		if err := rows.Scan(&p.Build, &p.Version, &p.Published); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
