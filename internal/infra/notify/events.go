// Package notify fans completed scan results out to logs, storage and the bus.
package notify

import (
	"strings"
	"time"

	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
)

// Subjects are relative to the configured prefix.
const (
	SubjectScanCompleted = "scans.completed"
	SubjectLeakNew       = "leaks.new"
	SubjectAnnounce      = "announce"
)

// ScanCompleted is the bus payload for one finished tick.
type ScanCompleted struct {
	ScanID         string                 `json:"scan_id"`
	Timestamp      time.Time              `json:"timestamp"`
	TotalObserved  int                    `json:"total_assets_observed"`
	NewLeaks       int                    `json:"new_leaks"`
	DeveloperLeaks int                    `json:"developer_leaks"`
	Skipped        []assets.TargetFailure `json:"skipped,omitempty"`
	DurationMS     int64                  `json:"scan_duration_ms"`
}

// LeakEvent carries one asset, either freshly discovered or announced by a user.
type LeakEvent struct {
	ScanID      string       `json:"scan_id,omitempty"`
	Channel     string       `json:"channel,omitempty"`
	AnnouncedBy string       `json:"announced_by,omitempty"`
	Asset       assets.Asset `json:"asset"`
}

func subject(prefix string, parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	if p := strings.Trim(prefix, "."); p != "" {
		all = append(all, p)
	}
	return strings.Join(append(all, parts...), ".")
}

// channelToken turns "#pet-leaks" into a NATS-safe subject token.
func channelToken(channel string) string {
	c := strings.TrimPrefix(strings.TrimSpace(channel), "#")
	c = strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, c)
	if c == "" {
		return "_"
	}
	return c
}
