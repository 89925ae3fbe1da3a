package notify

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
	"github.com/bryanwahyu/leakwatch/internal/domain/scanerrors"
)

// Multi calls every notifier in order.
type Multi []assets.Notifier

func (m Multi) OnScanResult(ctx context.Context, r assets.ScanResult) {
	for _, n := range m {
		if n != nil {
			n.OnScanResult(ctx, r)
		}
	}
}

// Log writes a summary line per tick and one line per new leak.
type Log struct{ Log zerolog.Logger }

func (l Log) OnScanResult(_ context.Context, r assets.ScanResult) {
	l.Log.Info().
		Str("scan_id", r.ID).
		Int("observed", r.TotalAssetsObserved).
		Int("new_leaks", len(r.NewLeaks)).
		Int("developer_leaks", r.DeveloperLeaks()).
		Int("skipped", len(r.Skipped)).
		Int64("duration_ms", r.ScanDurationMS).
		Msg("scan result")

	for _, a := range r.NewLeaks {
		ev := l.Log.Info()
		if a.IsDeveloperOrigin {
			ev = l.Log.Warn()
		}
		ev.Str("asset_id", a.ID).
			Str("target_id", a.SourceTargetID).
			Str("kind", string(a.Kind)).
			Str("rarity", string(a.Rarity)).
			Str("name", a.Name).
			Bool("developer", a.IsDeveloperOrigin).
			Msg("new asset")
	}
}

// ErrorRecorder persists every skipped target of a tick.
type ErrorRecorder struct {
	Repo scanerrors.Repository
	Log  zerolog.Logger
}

func (e ErrorRecorder) OnScanResult(ctx context.Context, r assets.ScanResult) {
	for _, f := range r.Skipped {
		details, _ := json.Marshal(map[string]any{"reason": f.Reason})
		rec := &scanerrors.ScanError{
			ScanID:      r.ID,
			TargetID:    f.TargetID,
			Phase:       scanerrors.PhaseScan,
			Message:     f.Reason,
			DetailsJSON: string(details),
			CreatedAt:   r.Timestamp,
		}
		if err := e.Repo.Save(ctx, rec); err != nil {
			e.Log.Warn().Err(err).Str("target_id", f.TargetID).Msg("save scan error failed")
		}
	}
}
