package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
)

// Publisher is implemented by bus.Bus.
type Publisher interface {
	Publish(ctx context.Context, subj string, v any) error
}

// BusNotifier publishes scan summaries and every new leak.
type BusNotifier struct {
	pub    Publisher
	prefix string
	log    zerolog.Logger
}

func NewBusNotifier(pub Publisher, prefix string, log zerolog.Logger) *BusNotifier {
	return &BusNotifier{pub: pub, prefix: prefix, log: log}
}

// OnScanResult implements assets.Notifier. Publish errors are logged only.
func (n *BusNotifier) OnScanResult(ctx context.Context, r assets.ScanResult) {
	summary := ScanCompleted{
		ScanID:         r.ID,
		Timestamp:      r.Timestamp,
		TotalObserved:  r.TotalAssetsObserved,
		NewLeaks:       len(r.NewLeaks),
		DeveloperLeaks: r.DeveloperLeaks(),
		Skipped:        r.Skipped,
		DurationMS:     r.ScanDurationMS,
	}
	if err := n.pub.Publish(ctx, subject(n.prefix, SubjectScanCompleted), summary); err != nil {
		n.log.Warn().Err(err).Str("scan_id", r.ID).Msg("publish scan summary failed")
	}
	for _, a := range r.NewLeaks {
		if err := n.pub.Publish(ctx, subject(n.prefix, SubjectLeakNew), LeakEvent{ScanID: r.ID, Asset: a}); err != nil {
			n.log.Warn().Err(err).Str("asset_id", a.ID).Msg("publish leak failed")
		}
	}
}

// Announce publishes a to <prefix>.announce.<channel>.
func (n *BusNotifier) Announce(ctx context.Context, channel, userID string, a assets.Asset) error {
	return n.pub.Publish(ctx, subject(n.prefix, SubjectAnnounce, channelToken(channel)), LeakEvent{
		Channel:     channel,
		AnnouncedBy: userID,
		Asset:       a,
	})
}
