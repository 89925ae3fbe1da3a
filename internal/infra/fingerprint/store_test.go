package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
)

type fakeBackend struct {
	mu      sync.Mutex
	rows    map[assets.Fingerprint]bool
	inserts int
	lookups int
	err     error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{rows: make(map[assets.Fingerprint]bool)}
}

func (f *fakeBackend) Lookup(_ context.Context, targetID, assetID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.err != nil {
		return false, f.err
	}
	return f.rows[assets.Fingerprint{TargetID: targetID, AssetID: assetID}], nil
}

func (f *fakeBackend) Insert(_ context.Context, a *assets.Asset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.inserts++
	f.rows[a.Fingerprint()] = true
	return nil
}

func (f *fakeBackend) Fingerprints(context.Context) ([]assets.Fingerprint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []assets.Fingerprint
	for fp := range f.rows {
		out = append(out, fp)
	}
	return out, nil
}

func TestStoreInMemory(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	ok, err := s.Has(ctx, "t1", "a1")
	require.NoError(t, err)
	assert.False(t, ok)

	a := assets.Asset{ID: "a1", SourceTargetID: "t1"}
	require.NoError(t, s.Record(ctx, a))
	require.NoError(t, s.Record(ctx, a))

	ok, err = s.Has(ctx, "t1", "a1")
	require.NoError(t, err)
	assert.True(t, ok)

	// same asset id under another target is a different fingerprint
	ok, err = s.Has(ctx, "t2", "a1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 1, s.CountForTarget("t1"))
	assert.Equal(t, 0, s.CountForTarget("t2"))
	assert.Equal(t, 1, s.Len())
}

func TestStoreBackend(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.rows[assets.Fingerprint{TargetID: "t1", AssetID: "old"}] = true
	s := New(b)

	ok, err := s.Has(ctx, "t1", "old")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, s.CountForTarget("t1"), "backend hit is cached")

	ok, err = s.Has(ctx, "t1", "old")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, b.lookups, "second lookup served from memory")

	require.NoError(t, s.Record(ctx, assets.Asset{ID: "new", SourceTargetID: "t1"}))
	require.NoError(t, s.Record(ctx, assets.Asset{ID: "new", SourceTargetID: "t1"}))
	assert.Equal(t, 1, b.inserts)
}

func TestStoreBackendFailure(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.err = errors.New("connection refused")
	s := New(b)

	_, err := s.Has(ctx, "t1", "a1")
	assert.ErrorIs(t, err, assets.ErrStoreUnavailable)

	err = s.Record(ctx, assets.Asset{ID: "a1", SourceTargetID: "t1"})
	assert.ErrorIs(t, err, assets.ErrStoreUnavailable)
	assert.Equal(t, 0, s.Len(), "failed insert is not remembered")

	_, err = s.Warm(ctx, b)
	assert.ErrorIs(t, err, assets.ErrStoreUnavailable)
}

func TestStoreWarm(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	for i := 0; i < 3; i++ {
		b.rows[assets.Fingerprint{TargetID: "t1", AssetID: fmt.Sprint(i)}] = true
	}
	b.rows[assets.Fingerprint{TargetID: "t2", AssetID: "x"}] = true

	s := New(b)
	n, err := s.Warm(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 3, s.CountForTarget("t1"))
	assert.Equal(t, 1, s.CountForTarget("t2"))
}

func TestStoreConcurrentRecord(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	s := New(b)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a := assets.Asset{ID: fmt.Sprint(i % 10), SourceTargetID: "t1"}
			assert.NoError(t, s.Record(ctx, a))
			_, err := s.Has(ctx, "t1", a.ID)
			assert.NoError(t, err)
			_ = s.CountForTarget("t1")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, s.CountForTarget("t1"))
	assert.Equal(t, 10, b.inserts)
}
