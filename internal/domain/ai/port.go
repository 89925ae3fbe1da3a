package ai

import (
	"context"

	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
)

// Client produces a short analyst note about whether an asset is unreleased game content.
type Client interface {
	Analyze(ctx context.Context, a assets.Asset, v assets.Verification) (string, error)
}
