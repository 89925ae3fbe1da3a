package uploads

import (
	"fmt"
	"strings"
	"time"

	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
)

// Rejection reasons shown to users.
const (
	ReasonTooLarge    = "too large"
	ReasonInvalidType = "invalid type"
	ReasonInvalidSize = "invalid size"
)

// Rejected is returned by Validate when a file is refused.
type Rejected struct {
	Reason string
}

func (e *Rejected) Error() string { return "upload rejected: " + e.Reason }

// Validator checks size first, then extension.
type Validator struct {
	MaxBytes   int64
	Extensions []string
}

// NewValidator lower-cases and de-dots the allow-list.
func NewValidator(maxBytes int64, extensions []string) *Validator {
	exts := make([]string, 0, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			exts = append(exts, e)
		}
	}
	return &Validator{MaxBytes: maxBytes, Extensions: exts}
}

// Validate returns nil or *Rejected. The first failing rule wins.
func (v *Validator) Validate(fileName string, size int64) error {
	if size < 0 {
		return &Rejected{Reason: ReasonInvalidSize}
	}
	if size > v.MaxBytes {
		return &Rejected{Reason: ReasonTooLarge}
	}
	ext := Extension(fileName)
	if ext == "" || !v.allowed(ext) {
		return &Rejected{Reason: ReasonInvalidType}
	}
	return nil
}

func (v *Validator) allowed(ext string) bool {
	for _, e := range v.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Extension is the lower-cased text after the last dot, or "" when there is none.
func Extension(fileName string) string {
	i := strings.LastIndex(fileName, ".")
	if i < 0 || i == len(fileName)-1 {
		return ""
	}
	ext := fileName[i+1:]
	if strings.ContainsAny(ext, `/\`) {
		return ""
	}
	return strings.ToLower(ext)
}

// Session is pending per-user upload state.
type Session struct {
	UserID       string      `json:"user_id"`
	ExpectedKind assets.Kind `json:"expected_kind,omitempty"`
	Mode         Mode        `json:"mode,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Mode is what the uploader says the file contains.
type Mode string

const (
	ModeAsset  Mode = "asset"
	ModeScript Mode = "script"
	ModeModel  Mode = "model"
	ModeMap    Mode = "map"
)

// ParseMode accepts the four modes case-insensitively.
func ParseMode(s string) (Mode, bool) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeAsset, ModeScript, ModeModel, ModeMap:
		return m, true
	default:
		return "", false
	}
}

// Expired reports whether the session has been idle longer than ttl at now.
func (s Session) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.CreatedAt) > ttl
}

// ObjectKey is where an accepted upload is written in object storage.
func ObjectKey(userID, assetID, fileName string) string {
	return fmt.Sprintf("uploads/%s/%s.%s", userID, assetID, Extension(fileName))
}
