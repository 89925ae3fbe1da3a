package fingerprint

import (
	"context"
	"fmt"
	"sync"

	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
)

// Store is the set of (target, asset) pairs already seen. Entries are never evicted.
// Reads run concurrently; Record is exclusive. A nil backend keeps everything in memory.
type Store struct {
	mu        sync.RWMutex
	seen      map[assets.Fingerprint]struct{}
	perTarget map[string]int
	backend   assets.Backend
}

func New(backend assets.Backend) *Store {
	return &Store{
		seen:      make(map[assets.Fingerprint]struct{}),
		perTarget: make(map[string]int),
		backend:   backend,
	}
}

// Has checks memory first, then the backend. Backend hits are cached.
func (s *Store) Has(ctx context.Context, targetID, assetID string) (bool, error) {
	fp := assets.Fingerprint{TargetID: targetID, AssetID: assetID}

	s.mu.RLock()
	_, ok := s.seen[fp]
	s.mu.RUnlock()
	if ok || s.backend == nil {
		return ok, nil
	}

	found, err := s.backend.Lookup(ctx, targetID, assetID)
	if err != nil {
		return false, fmt.Errorf("%w: lookup %s/%s: %v", assets.ErrStoreUnavailable, targetID, assetID, err)
	}
	if found {
		s.mu.Lock()
		s.add(fp)
		s.mu.Unlock()
	}
	return found, nil
}

// Record is idempotent. The backend is written before memory so a failed
// insert leaves the pair unseen and it is retried next tick.
func (s *Store) Record(ctx context.Context, a assets.Asset) error {
	fp := a.Fingerprint()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[fp]; ok {
		return nil
	}
	if s.backend != nil {
		if err := s.backend.Insert(ctx, &a); err != nil {
			return fmt.Errorf("%w: insert %s/%s: %v", assets.ErrStoreUnavailable, fp.TargetID, fp.AssetID, err)
		}
	}
	s.add(fp)
	return nil
}

// CountForTarget returns how many assets have been seen under targetID.
func (s *Store) CountForTarget(targetID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.perTarget[targetID]
}

// Len is the total number of fingerprints held in memory.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}

// Loader is implemented by backends that can list every stored fingerprint.
type Loader interface {
	Fingerprints(ctx context.Context) ([]assets.Fingerprint, error)
}

// Warm loads every persisted fingerprint into memory.
func (s *Store) Warm(ctx context.Context, l Loader) (int, error) {
	fps, err := l.Fingerprints(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: load fingerprints: %v", assets.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, fp := range fps {
		s.add(fp)
	}
	return len(fps), nil
}

// add assumes the write lock is held.
func (s *Store) add(fp assets.Fingerprint) {
	if _, ok := s.seen[fp]; ok {
		return
	}
	s.seen[fp] = struct{}{}
	s.perTarget[fp.TargetID]++
}
