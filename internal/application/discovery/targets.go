package discovery

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
)

var (
	ErrTargetExists   = errors.New("target already monitored")
	ErrTargetNotFound = errors.New("target not monitored")
)

// Targets is the ordered, mutable list of scan targets plus the developer allowlist.
// New targets are appended, so configured targets keep precedence for attribution.
type Targets struct {
	mu         sync.RWMutex
	list       []assets.Target
	developers map[string]struct{}
}

func NewTargets(targets []assets.Target, developers []string) *Targets {
	r := &Targets{developers: make(map[string]struct{})}
	for _, t := range targets {
		if r.index(t.ID) < 0 {
			r.list = append(r.list, t)
		}
	}
	for _, id := range developers {
		if id = strings.TrimSpace(id); id != "" {
			r.developers[id] = struct{}{}
		}
	}
	return r
}

// List returns a copy in scan order.
func (r *Targets) List() []assets.Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]assets.Target(nil), r.list...)
}

func (r *Targets) Get(id string) (assets.Target, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.index(id); i >= 0 {
		return r.list[i], true
	}
	return assets.Target{}, false
}

func (r *Targets) Add(t assets.Target) error {
	t.ID = strings.TrimSpace(t.ID)
	if t.ID == "" {
		return errors.New("target id is required")
	}
	if !t.Kind.Valid() {
		return fmt.Errorf("invalid target kind %q (allowed: user, group, place)", t.Kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index(t.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrTargetExists, t.ID)
	}
	r.list = append(r.list, t)
	return nil
}

func (r *Targets) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrTargetNotFound, id)
	}
	r.list = append(r.list[:i], r.list[i+1:]...)
	return nil
}

// IsDeveloper is true when the target is flagged as a developer or its id is allowlisted.
func (r *Targets) IsDeveloper(t assets.Target) bool {
	if t.Developer {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.developers[t.ID]
	return ok
}

// Developers returns the allowlisted ids, sorted.
func (r *Targets) Developers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.developers))
	for id := range r.developers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// index assumes the lock is held.
func (r *Targets) index(id string) int {
	for i, t := range r.list {
		if t.ID == id {
			return i
		}
	}
	return -1
}
