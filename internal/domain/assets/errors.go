package assets

import "errors"

// ErrSourceUnavailable means one target could not be listed. The engine skips that target.
var ErrSourceUnavailable = errors.New("source unavailable")

// ErrStoreUnavailable is fatal for the current scan cycle.
var ErrStoreUnavailable = errors.New("fingerprint store unavailable")

// ErrNotFound is returned by catalog lookups for unknown asset ids.
var ErrNotFound = errors.New("asset not found")
