package scanerrors

import "time"

// Phase enum
const (
	PhaseScan  = "scan"
	PhaseStore = "store"
)

// ScanError is one persisted failure observed during a scan tick.
// TargetID is "-" for failures not tied to a single target.
type ScanError struct {
	ID          int64     `json:"id"`
	ScanID      string    `json:"scan_id"`
	TargetID    string    `json:"target_id"`
	Phase       string    `json:"phase,omitempty"`
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt   time.Time `json:"created_at"`
}
