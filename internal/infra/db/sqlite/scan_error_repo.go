package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	domain "github.com/bryanwahyu/leakwatch/internal/domain/scanerrors"
)

type ScanErrorRepository struct{ db *sql.DB }

func NewScanErrorRepository(db *sql.DB) *ScanErrorRepository { return &ScanErrorRepository{db: db} }

func (r *ScanErrorRepository) Save(ctx context.Context, e *domain.ScanError) error {
	const q = `
INSERT INTO leak_scan_errors (scan_id, target_id, phase, message, details_json, created_at)
VALUES (?,?,?,?,?,?)`

	details := e.DetailsJSON
	if strings.TrimSpace(details) == "" {
		details = "{}"
	} else if !json.Valid([]byte(details)) {
		b, _ := json.Marshal(map[string]string{"raw": details})
		details = string(b)
	}
	msg := e.Message
	if strings.TrimSpace(msg) == "" {
		msg = "-"
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := r.db.ExecContext(ctx, q,
		dashIfEmpty(e.ScanID), dashIfEmpty(e.TargetID), dashIfEmpty(e.Phase), msg, details, toMillis(created))
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

func (r *ScanErrorRepository) ListByScan(ctx context.Context, scanID string, limit int) ([]*domain.ScanError, error) {
	return r.list(ctx, `
SELECT id, scan_id, target_id, phase, message, details_json, created_at
FROM leak_scan_errors
WHERE scan_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?`, scanID, limit)
}

func (r *ScanErrorRepository) ListByTarget(ctx context.Context, targetID string, limit int) ([]*domain.ScanError, error) {
	return r.list(ctx, `
SELECT id, scan_id, target_id, phase, message, details_json, created_at
FROM leak_scan_errors
WHERE target_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?`, targetID, limit)
}

func (r *ScanErrorRepository) list(ctx context.Context, q, key string, limit int) ([]*domain.ScanError, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, q, key, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ScanError
	for rows.Next() {
		var e domain.ScanError
		var created int64
		if err := rows.Scan(&e.ID, &e.ScanID, &e.TargetID, &e.Phase, &e.Message, &e.DetailsJSON, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = fromMillis(created)
		out = append(out, &e)
	}
	return out, rows.Err()
}

func dashIfEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
