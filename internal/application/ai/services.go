package ai

import (
	"context"
	"time"

	"github.com/bryanwahyu/leakwatch/internal/domain/ai"
	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
)

const analyzeTimeout = 20 * time.Second

type Service struct {
	client ai.Client
}

// NewService returns nil for a nil client so callers can treat the analyst as optional.
func NewService(client ai.Client) *Service {
	if client == nil {
		return nil
	}
	return &Service{client: client}
}

func (s *Service) Enabled() bool { return s != nil && s.client != nil }

func (s *Service) Analyze(ctx context.Context, a assets.Asset, v assets.Verification) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, analyzeTimeout)
	defer cancel()
	return s.client.Analyze(ctx, a, v)
}
