package assets

import (
	"encoding/json"
	"time"
)

// Kind enum
type Kind string

const (
	KindPet     Kind = "pet"
	KindEgg     Kind = "egg"
	KindWorld   Kind = "world"
	KindTexture Kind = "texture"
	KindMesh    Kind = "mesh"
	KindUnknown Kind = "unknown"
)

// ParseKind returns KindUnknown for anything outside the enum.
func ParseKind(s string) Kind {
	switch k := Kind(normalize(s)); k {
	case KindPet, KindEgg, KindWorld, KindTexture, KindMesh:
		return k
	default:
		return KindUnknown
	}
}

// TargetKind enum
type TargetKind string

const (
	TargetUser  TargetKind = "user"
	TargetGroup TargetKind = "group"
	TargetPlace TargetKind = "place"
)

// Valid reports whether k is one of the scannable target kinds.
func (k TargetKind) Valid() bool {
	switch k {
	case TargetUser, TargetGroup, TargetPlace:
		return true
	}
	return false
}

// Target is one upstream source the engine scans. Order in configuration matters.
type Target struct {
	ID        string     `json:"id" yaml:"id"`
	Kind      TargetKind `json:"kind" yaml:"kind"`
	Developer bool       `json:"developer" yaml:"developer"`
	Name      string     `json:"name,omitempty" yaml:"name"`
}

// Fingerprint identifies an asset as seen under one target.
type Fingerprint struct {
	TargetID string
	AssetID  string
}

// Asset is immutable once created by the discovery engine.
type Asset struct {
	ID                string          `json:"id"`
	SourceTargetID    string          `json:"source_target_id"`
	Kind              Kind            `json:"kind"`
	Rarity            Rarity          `json:"rarity,omitempty"`
	Name              string          `json:"name,omitempty"`
	Description       string          `json:"description,omitempty"`
	ThumbnailURL      string          `json:"thumbnail_url,omitempty"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
	DiscoveredAt      time.Time       `json:"discovered_at"`
	IsDeveloperOrigin bool            `json:"is_developer_origin"`
}

func (a Asset) Fingerprint() Fingerprint {
	return Fingerprint{TargetID: a.SourceTargetID, AssetID: a.ID}
}

// TargetFailure records a target that was skipped during a scan tick.
type TargetFailure struct {
	TargetID string `json:"target_id"`
	Reason   string `json:"reason"`
}

// ScanResult value object, one per tick
type ScanResult struct {
	ID                  string          `json:"id"`
	TotalAssetsObserved int             `json:"total_assets_observed"`
	NewLeaks            []Asset         `json:"new_leaks"`
	Skipped             []TargetFailure `json:"skipped,omitempty"`
	ScanDurationMS      int64           `json:"scan_duration_ms"`
	Timestamp           time.Time       `json:"timestamp"`
}

// DeveloperLeaks counts new leaks attributed to developer targets.
func (r ScanResult) DeveloperLeaks() int {
	n := 0
	for _, a := range r.NewLeaks {
		if a.IsDeveloperOrigin {
			n++
		}
	}
	return n
}
