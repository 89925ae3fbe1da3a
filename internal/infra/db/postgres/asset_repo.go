package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/leakwatch/internal/domain/assets"
)

type AssetRepository struct{ db *sql.DB }

func NewAssetRepository(db *sql.DB) *AssetRepository { return &AssetRepository{db: db} }

const assetColumns = `source_target_id, asset_id, kind, rarity, name, description,
       thumbnail_url, metadata, is_developer_origin, discovered_at`

func (r *AssetRepository) Lookup(ctx context.Context, targetID, assetID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM leak_assets WHERE source_target_id=$1 AND asset_id=$2)`
	var ok bool
	if err := r.db.QueryRowContext(ctx, q, targetID, assetID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (r *AssetRepository) Insert(ctx context.Context, a *domain.Asset) error {
	const q = `
INSERT INTO leak_assets
(source_target_id, asset_id, kind, rarity, name, description,
 thumbnail_url, metadata, is_developer_origin, discovered_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (source_target_id, asset_id) DO NOTHING`

	discovered := a.DiscoveredAt
	if discovered.IsZero() {
		discovered = time.Now()
	}
	kind := a.Kind
	if kind == "" {
		kind = domain.KindUnknown
	}
	_, err := r.db.ExecContext(ctx, q,
		stringOrDash(a.SourceTargetID), a.ID, string(kind), string(a.Rarity), a.Name, a.Description,
		a.ThumbnailURL, jsonOrNil(a.Metadata), a.IsDeveloperOrigin, discovered.UTC(),
	)
	return err
}

func (r *AssetRepository) Fingerprints(ctx context.Context) ([]domain.Fingerprint, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT source_target_id, asset_id FROM leak_assets`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Fingerprint
	for rows.Next() {
		var f domain.Fingerprint
		if err := rows.Scan(&f.TargetID, &f.AssetID); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Get by asset id, earliest sighting first
func (r *AssetRepository) Get(ctx context.Context, assetID string) (*domain.Asset, error) {
	q := `SELECT ` + assetColumns + `
FROM leak_assets
WHERE asset_id=$1
ORDER BY discovered_at ASC, source_target_id ASC
LIMIT 1`
	a, err := scanAsset(r.db.QueryRowContext(ctx, q, assetID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

func (r *AssetRepository) Search(ctx context.Context, sq domain.SearchQuery) (*domain.PaginatedResult, error) {
	sq = sq.Normalize()

	where := ` WHERE 1=1`
	var args []any
	next := 1
	if sq.Query != "" {
		where += fmt.Sprintf(" AND (name ILIKE $%d OR description ILIKE $%d)", next, next)
		args = append(args, "%"+escapeLikePattern(sq.Query)+"%")
		next++
	}
	if sq.Kind != "" {
		where += fmt.Sprintf(" AND kind = $%d", next)
		args = append(args, string(sq.Kind))
		next++
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leak_assets`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count assets: %w", err)
	}

	query := `SELECT ` + assetColumns + ` FROM leak_assets` + where +
		fmt.Sprintf("\n ORDER BY discovered_at DESC, asset_id ASC LIMIT $%d OFFSET $%d", next, next+1)
	rows, err := r.db.QueryContext(ctx, query, append(args, sq.PageSize, sq.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("querying assets: %w", err)
	}
	defer rows.Close()

	data := make([]*domain.Asset, 0, sq.PageSize)
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		data = append(data, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return domain.NewPage(sq, data, total), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*domain.Asset, error) {
	var (
		a           domain.Asset
		kind        string
		rarity      string
		description sql.NullString
		metadata    []byte
		discovered  time.Time
	)
	if err := row.Scan(&a.SourceTargetID, &a.ID, &kind, &rarity, &a.Name, &description,
		&a.ThumbnailURL, &metadata, &a.IsDeveloperOrigin, &discovered); err != nil {
		return nil, err
	}
	a.Kind = domain.ParseKind(kind)
	a.Rarity = domain.Rarity(rarity)
	a.Description = description.String
	if len(metadata) > 0 {
		a.Metadata = metadata
	}
	a.DiscoveredAt = discovered.UTC()
	return &a, nil
}
