package assets

import "context"

// Backend is the persistence behind the fingerprint store.
type Backend interface {
	Lookup(ctx context.Context, targetID, assetID string) (bool, error)
	Insert(ctx context.Context, a *Asset) error
}

// Catalog answers read queries for commands.
type Catalog interface {
	Get(ctx context.Context, assetID string) (*Asset, error)
	Search(ctx context.Context, q SearchQuery) (*PaginatedResult, error)
}

// Repository port (interface untuk persistence)
type Repository interface {
	Backend
	Catalog
	Fingerprints(ctx context.Context) ([]Fingerprint, error)
}

// Scanner lists every asset currently published under one target.
// Failures wrap ErrSourceUnavailable.
type Scanner interface {
	Scan(ctx context.Context, t Target) ([]Asset, error)
}

// Notifier receives every completed scan result.
type Notifier interface {
	OnScanResult(ctx context.Context, r ScanResult)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, r ScanResult)

func (f NotifierFunc) OnScanResult(ctx context.Context, r ScanResult) { f(ctx, r) }
