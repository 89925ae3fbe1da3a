package discovery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/leakwatch/internal/application"
	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
)

// FingerprintStore is the engine's view of the seen-asset set.
type FingerprintStore interface {
	Has(ctx context.Context, targetID, assetID string) (bool, error)
	Record(ctx context.Context, a assets.Asset) error
}

// Allowlist decides developer origin for a target.
type Allowlist interface {
	IsDeveloper(t assets.Target) bool
}

// Engine runs one scan tick across all targets and computes the new-asset delta.
type Engine struct {
	Scanner   assets.Scanner
	Store     FingerprintStore
	Allowlist Allowlist
	Clock     application.Clock
	Log       zerolog.Logger

	// Concurrency > 1 lists targets in parallel; attribution still follows target order.
	Concurrency int

	// leaks already recorded by a tick that aborted, delivered by the next successful one
	mu   sync.Mutex
	held []assets.Asset
}

type listing struct {
	items []assets.Asset
	err   error
}

// RunScan never fails for unreachable targets. It only returns an error when the
// store is unusable, and that error wraps assets.ErrStoreUnavailable. New leaks
// recorded before such a failure are carried into the next successful result.
func (e *Engine) RunScan(ctx context.Context, targets []assets.Target) (assets.ScanResult, error) {
	start := e.now()
	res := assets.ScanResult{
		ID:        uuid.NewString(),
		NewLeaks:  []assets.Asset{},
		Timestamp: start,
	}
	m := merger{engine: e, res: &res, seen: make(map[string]struct{}), now: start}

	if e.Concurrency > 1 && len(targets) > 1 {
		listings := e.fetchAll(ctx, targets)
		for i, t := range targets {
			if err := m.merge(ctx, t, listings[i]); err != nil {
				return assets.ScanResult{}, e.abort(res, err)
			}
		}
	} else {
		for _, t := range targets {
			items, err := e.Scanner.Scan(ctx, t)
			if err := m.merge(ctx, t, listing{items: items, err: err}); err != nil {
				return assets.ScanResult{}, e.abort(res, err)
			}
		}
	}

	res.NewLeaks = e.release(res.NewLeaks)
	res.ScanDurationMS = e.now().Sub(start).Milliseconds()
	e.Log.Info().
		Str("scan_id", res.ID).
		Int("targets", len(targets)).
		Int("observed", res.TotalAssetsObserved).
		Int("new", len(res.NewLeaks)).
		Int("skipped", len(res.Skipped)).
		Int64("duration_ms", res.ScanDurationMS).
		Msg("scan finished")
	return res, nil
}

// abort keeps the leaks of a failed tick. They are already in the store, so no
// later tick would report them again.
func (e *Engine) abort(res assets.ScanResult, err error) error {
	if len(res.NewLeaks) > 0 {
		e.mu.Lock()
		e.held = append(e.held, res.NewLeaks...)
		e.mu.Unlock()
		e.Log.Warn().Err(err).Str("scan_id", res.ID).Int("held", len(res.NewLeaks)).Msg("scan aborted, new leaks held for next tick")
	}
	return err
}

// release puts held leaks in front of fresh ones, dropping repeated fingerprints.
func (e *Engine) release(fresh []assets.Asset) []assets.Asset {
	e.mu.Lock()
	held := e.held
	e.held = nil
	e.mu.Unlock()
	if len(held) == 0 {
		return fresh
	}

	out := make([]assets.Asset, 0, len(held)+len(fresh))
	seen := make(map[assets.Fingerprint]struct{}, len(held)+len(fresh))
	for _, list := range [][]assets.Asset{held, fresh} {
		for _, a := range list {
			fp := a.Fingerprint()
			if _, ok := seen[fp]; ok {
				continue
			}
			seen[fp] = struct{}{}
			out = append(out, a)
		}
	}
	return out
}

func (e *Engine) fetchAll(ctx context.Context, targets []assets.Target) []listing {
	out := make([]listing, len(targets))
	var g errgroup.Group
	g.SetLimit(e.Concurrency)
	for i, t := range targets {
		g.Go(func() error {
			items, err := e.Scanner.Scan(ctx, t)
			out[i] = listing{items: items, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (e *Engine) now() time.Time {
	if e.Clock == nil {
		return time.Now()
	}
	return e.Clock.Now()
}

func (e *Engine) isDeveloper(t assets.Target) bool {
	if e.Allowlist == nil {
		return t.Developer
	}
	return e.Allowlist.IsDeveloper(t)
}

// merger folds target listings into one result in target order.
type merger struct {
	engine *Engine
	res    *assets.ScanResult
	seen   map[string]struct{} // asset ids observed earlier in this tick
	now    time.Time
}

func (m *merger) merge(ctx context.Context, t assets.Target, l listing) error {
	e := m.engine
	if l.err != nil {
		if errors.Is(l.err, assets.ErrSourceUnavailable) {
			e.Log.Warn().Err(l.err).Str("target", t.ID).Msg("target skipped")
		} else {
			e.Log.Warn().Err(l.err).Str("target", t.ID).Msg("target skipped, unclassified scanner error")
		}
		m.res.Skipped = append(m.res.Skipped, assets.TargetFailure{TargetID: t.ID, Reason: l.err.Error()})
		return nil
	}

	developer := e.isDeveloper(t)
	for _, a := range l.items {
		m.res.TotalAssetsObserved++

		a.SourceTargetID = t.ID
		a.IsDeveloperOrigin = developer
		if a.Kind == "" {
			a.Kind = assets.KindUnknown
		}
		if a.DiscoveredAt.IsZero() {
			a.DiscoveredAt = m.now
		}

		_, dup := m.seen[a.ID]
		m.seen[a.ID] = struct{}{}

		fresh := false
		if !dup {
			known, err := e.Store.Has(ctx, t.ID, a.ID)
			if err != nil {
				return err
			}
			fresh = !known
		}
		if err := e.Store.Record(ctx, a); err != nil {
			return err
		}
		// appended only once recorded, so an aborted tick holds exactly what the store has
		if fresh {
			m.res.NewLeaks = append(m.res.NewLeaks, a)
		}
	}
	return nil
}
