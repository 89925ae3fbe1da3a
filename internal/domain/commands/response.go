package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
)

// ResponseKind enum
type ResponseKind string

const (
	KindText          ResponseKind = "text"
	KindUploadPrompt  ResponseKind = "upload_prompt"
	KindProcessResult ResponseKind = "process_result"
	KindSearchResults ResponseKind = "search_results"
	KindError         ResponseKind = "error"
)

// Response is the closed set of router replies. Only types in this file implement it.
type Response interface {
	Kind() ResponseKind
	sealed()
}

type Text struct {
	Body string `json:"body"`
}

type UploadPrompt struct {
	ExpectedKind      assets.Kind `json:"expected_kind,omitempty"`
	Mode              string      `json:"mode,omitempty"`
	MaxBytes          int64       `json:"max_bytes"`
	AllowedExtensions []string    `json:"allowed_extensions"`
	ExpiresAt         time.Time   `json:"expires_at"`
}

type ProcessResult struct {
	Asset assets.Asset `json:"asset"`
	URL   string       `json:"url,omitempty"`
}

type SearchResults struct {
	Query   string                  `json:"query"`
	Results *assets.PaginatedResult `json:"results"`
}

// Error carries a user facing reason and, when known, the usage of the command.
type Error struct {
	Reason string `json:"reason"`
	Usage  string `json:"usage,omitempty"`
}

func (Text) Kind() ResponseKind          { return KindText }
func (UploadPrompt) Kind() ResponseKind  { return KindUploadPrompt }
func (ProcessResult) Kind() ResponseKind { return KindProcessResult }
func (SearchResults) Kind() ResponseKind { return KindSearchResults }
func (Error) Kind() ResponseKind         { return KindError }

func (Text) sealed()          {}
func (UploadPrompt) sealed()  {}
func (ProcessResult) sealed() {}
func (SearchResults) sealed() {}
func (Error) sealed()         {}

// Render formats a response as chat text.
func Render(r Response) string {
	switch v := r.(type) {
	case Text:
		return v.Body
	case UploadPrompt:
		msg := fmt.Sprintf("Send your file now (max %s, allowed: %s). This prompt expires at %s.",
			humanBytes(v.MaxBytes), strings.Join(v.AllowedExtensions, ", "), v.ExpiresAt.UTC().Format(time.Kitchen))
		if v.ExpectedKind != "" && v.ExpectedKind != assets.KindUnknown {
			msg = fmt.Sprintf("Upload a %s. %s", v.ExpectedKind, msg)
		}
		return msg
	case ProcessResult:
		msg := fmt.Sprintf("Stored %s as %s (%s).", v.Asset.Name, v.Asset.ID, v.Asset.Kind)
		if v.URL != "" {
			msg += " " + v.URL
		}
		return msg
	case SearchResults:
		if v.Results == nil || len(v.Results.Data) == 0 {
			return fmt.Sprintf("No assets match %q.", v.Query)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%d result(s) for %q, page %d/%d:", v.Results.Total, v.Query, v.Results.Page, v.Results.TotalPages)
		for _, a := range v.Results.Data {
			fmt.Fprintf(&b, "\n- %s %s [%s]", a.ID, a.Name, a.Kind)
		}
		return b.String()
	case Error:
		if v.Usage != "" {
			return fmt.Sprintf("%s\nusage: %s", v.Reason, v.Usage)
		}
		return v.Reason
	default:
		panic(fmt.Sprintf("commands: unknown response %T", r))
	}
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
