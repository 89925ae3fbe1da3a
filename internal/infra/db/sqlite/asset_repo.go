package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/bryanwahyu/leakwatch/internal/domain/assets"
)

type AssetRepository struct{ db *sql.DB }

func NewAssetRepository(db *sql.DB) *AssetRepository { return &AssetRepository{db: db} }

const assetColumns = `source_target_id, asset_id, kind, rarity, name, description,
       thumbnail_url, metadata, is_developer_origin, discovered_at`

func (r *AssetRepository) Lookup(ctx context.Context, targetID, assetID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM leak_assets WHERE source_target_id = ? AND asset_id = ? LIMIT 1`,
		targetID, assetID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (r *AssetRepository) Insert(ctx context.Context, a *domain.Asset) error {
	const q = `
INSERT OR IGNORE INTO leak_assets
  (source_target_id, asset_id, kind, rarity, name, description,
   thumbnail_url, metadata, is_developer_origin, discovered_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`

	discovered := a.DiscoveredAt
	if discovered.IsZero() {
		discovered = time.Now()
	}
	kind := a.Kind
	if kind == "" {
		kind = domain.KindUnknown
	}
	var metadata any
	if len(a.Metadata) > 0 {
		metadata = string(a.Metadata)
	}
	target := a.SourceTargetID
	if strings.TrimSpace(target) == "" {
		target = "-"
	}
	_, err := r.db.ExecContext(ctx, q,
		target, a.ID, string(kind), string(a.Rarity), a.Name, a.Description,
		a.ThumbnailURL, metadata, a.IsDeveloperOrigin, toMillis(discovered),
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

func (r *AssetRepository) Get(ctx context.Context, assetID string) (*domain.Asset, error) {
	q := `SELECT ` + assetColumns + `
FROM leak_assets
WHERE asset_id = ?
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
	if sq.Query != "" {
		like := "%" + escapeLikePattern(sq.Query) + "%"
		where += ` AND (name LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\')`
		args = append(args, like, like)
	}
	if sq.Kind != "" {
		where += ` AND kind = ?`
		args = append(args, string(sq.Kind))
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leak_assets`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count assets: %w", err)
	}

	query := `SELECT ` + assetColumns + ` FROM leak_assets` + where +
		` ORDER BY discovered_at DESC, asset_id ASC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, sq.PageSize, sq.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("search assets: %w", err)
	}
	defer rows.Close()

	data := make([]*domain.Asset, 0, sq.PageSize)
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		data = append(data, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return domain.NewPage(sq, data, total), nil
}

func escapeLikePattern(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
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
		metadata    sql.NullString
		developer   int64
		discovered  int64
	)
	if err := row.Scan(&a.SourceTargetID, &a.ID, &kind, &rarity, &a.Name, &description,
		&a.ThumbnailURL, &metadata, &developer, &discovered); err != nil {
		return nil, err
	}
	a.Kind = domain.ParseKind(kind)
	a.Rarity = domain.Rarity(rarity)
	a.Description = description.String
	if metadata.Valid && metadata.String != "" {
		a.Metadata = []byte(metadata.String)
	}
	a.IsDeveloperOrigin = developer != 0
	a.DiscoveredAt = fromMillis(discovered)
	return &a, nil
}
