package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bryanwahyu/leakwatch/internal/domain/ai"
	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
	"github.com/bryanwahyu/leakwatch/internal/domain/commands"
	"github.com/bryanwahyu/leakwatch/internal/domain/uploads"
)

const maxListedLeaks = 10

func (r *Router) helpText() string {
	var b strings.Builder
	b.WriteString("Commands:")
	for _, s := range Specs {
		fmt.Fprintf(&b, "\n%s  %s", s.Usage(r.parser.Prefix()), s.Summary)
	}
	return b.String()
}

func (r *Router) handleHelp(context.Context, commands.Command, string) commands.Response {
	return commands.Text{Body: r.helpText()}
}

// parseKind returns "" for an absent argument.
func parseKind(raw string) (assets.Kind, bool) {
	if raw == "" {
		return "", true
	}
	k := assets.ParseKind(raw)
	return k, k != assets.KindUnknown
}

func (r *Router) handleUpload(_ context.Context, cmd commands.Command, userID string) commands.Response {
	kind, ok := parseKind(cmd.Arg("kind"))
	if !ok {
		return r.usageError("upload", fmt.Sprintf("unknown kind %q", cmd.Arg("kind")))
	}
	var mode uploads.Mode
	if raw := cmd.Arg("mode"); raw != "" {
		if mode, ok = uploads.ParseMode(raw); !ok {
			return r.usageError("upload", fmt.Sprintf("unknown mode %q", raw))
		}
	}
	now := r.Clock.Now()
	r.mu.Lock()
	r.sessions[userID] = uploads.Session{UserID: userID, ExpectedKind: kind, Mode: mode, CreatedAt: now}
	r.mu.Unlock()

	var maxBytes int64
	var exts []string
	if r.Validator != nil {
		maxBytes = r.Validator.MaxBytes
		exts = append(exts, r.Validator.Extensions...)
	}
	return commands.UploadPrompt{
		ExpectedKind:      kind,
		Mode:              string(mode),
		MaxBytes:          maxBytes,
		AllowedExtensions: exts,
		ExpiresAt:         now.Add(r.SessionTTL),
	}
}

func (r *Router) handleDiscover(ctx context.Context, _ commands.Command, _ string) commands.Response {
	res, err := r.Scheduler.Trigger(ctx)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return commands.Error{Reason: "discovery is still running, check " + r.parser.Prefix() + "status later"}
	case errors.Is(err, assets.ErrStoreUnavailable):
		return commands.Error{Reason: "discovery failed: fingerprint store unavailable, retrying on the next tick"}
	case err != nil:
		return commands.Error{Reason: "discovery failed: " + err.Error()}
	}
	return commands.Text{Body: summarize(res)}
}

func summarize(res assets.ScanResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scan %s finished in %s: %d assets observed, %d new (%d from developers)",
		res.ID, time.Duration(res.ScanDurationMS)*time.Millisecond, res.TotalAssetsObserved,
		len(res.NewLeaks), res.DeveloperLeaks())
	if len(res.Skipped) > 0 {
		fmt.Fprintf(&b, ", %d target(s) skipped", len(res.Skipped))
	}
	b.WriteString(".")
	for i, a := range res.NewLeaks {
		if i == maxListedLeaks {
			fmt.Fprintf(&b, "\n... and %d more", len(res.NewLeaks)-maxListedLeaks)
			break
		}
		fmt.Fprintf(&b, "\n- %s %s [%s]", a.ID, a.Name, a.Kind)
		if a.IsDeveloperOrigin {
			b.WriteString(" (developer)")
		}
	}
	return b.String()
}

func (r *Router) handleSearch(ctx context.Context, cmd commands.Command, _ string) commands.Response {
	kind, ok := parseKind(cmd.Arg("kind"))
	if !ok {
		return r.usageError("search", fmt.Sprintf("unknown kind %q", cmd.Arg("kind")))
	}
	page := 1
	if raw := cmd.Arg("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return r.usageError("search", fmt.Sprintf("page must be a positive number, got %q", raw))
		}
		page = n
	}

	q := cmd.Arg("query")
	res, err := r.Catalog.Search(ctx, assets.SearchQuery{Query: q, Kind: kind, Page: page})
	if err != nil {
		r.Log.Error().Err(err).Str("query", q).Msg("search failed")
		return commands.Error{Reason: "search is unavailable right now"}
	}
	return commands.SearchResults{Query: q, Results: res}
}

func (r *Router) lookup(ctx context.Context, id string) (*assets.Asset, commands.Response) {
	a, err := r.Catalog.Get(ctx, id)
	if errors.Is(err, assets.ErrNotFound) {
		return nil, commands.Error{Reason: fmt.Sprintf("asset %s not found", id)}
	}
	if err != nil {
		r.Log.Error().Err(err).Str("asset_id", id).Msg("asset lookup failed")
		return nil, commands.Error{Reason: "asset lookup is unavailable right now"}
	}
	return a, nil
}

func (r *Router) handleLeak(ctx context.Context, cmd commands.Command, userID string) commands.Response {
	channel := cmd.Arg("channel")
	if !strings.HasPrefix(channel, "#") || len(channel) < 2 {
		return r.usageError("leak", fmt.Sprintf("channel must start with #, got %q", channel))
	}
	if r.Announcer == nil {
		return commands.Error{Reason: "announcements are not configured"}
	}
	a, fail := r.lookup(ctx, cmd.Arg("id"))
	if fail != nil {
		return fail
	}
	if err := r.Announcer.Announce(ctx, channel, userID, *a); err != nil {
		r.Log.Error().Err(err).Str("asset_id", a.ID).Str("channel", channel).Msg("announce failed")
		return commands.Error{Reason: "could not announce to " + channel}
	}
	return commands.Text{Body: fmt.Sprintf("Announced %s (%s) to %s.", a.ID, a.Name, channel)}
}

func (r *Router) handleVerify(ctx context.Context, cmd commands.Command, _ string) commands.Response {
	a, fail := r.lookup(ctx, cmd.Arg("id"))
	if fail != nil {
		return fail
	}
	v := assets.Verify(*a, nil)

	var b strings.Builder
	status := "unverified"
	if v.Verified {
		status = "verified"
	}
	fmt.Fprintf(&b, "%s %s: %d%% confidence, %s", a.ID, a.Name, v.Confidence, status)
	for _, reason := range v.Reasons {
		b.WriteString("\n- " + reason)
	}

	if r.Analyst != nil && r.Analyst.Enabled() {
		note, err := r.Analyst.Analyze(ctx, *a, v)
		switch {
		case errors.Is(err, ai.ErrQuotaExceeded):
			b.WriteString("\nanalyst: quota exceeded, try again later")
		case err != nil:
			r.Log.Warn().Err(err).Str("asset_id", a.ID).Msg("analyst failed")
			b.WriteString("\nanalyst: unavailable")
		default:
			b.WriteString("\nanalyst: " + note)
		}
	}
	return commands.Text{Body: b.String()}
}

func (r *Router) handleMonitor(_ context.Context, cmd commands.Command, _ string) commands.Response {
	switch action := strings.ToLower(cmd.Arg("action")); action {
	case "list":
		return commands.Text{Body: r.targetList()}
	case "add":
		id := cmd.Arg("id")
		if id == "" {
			return r.usageError("monitor", "missing required argument id")
		}
		if _, err := strconv.ParseUint(id, 10, 64); err != nil {
			return r.usageError("monitor", fmt.Sprintf("target id must be numeric, got %q", id))
		}
		kind := assets.TargetKind(strings.ToLower(cmd.Arg("kind")))
		if kind == "" {
			kind = assets.TargetUser
		}
		dev := false
		if raw := cmd.Arg("developer"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return r.usageError("monitor", fmt.Sprintf("developer must be true or false, got %q", raw))
			}
			dev = v
		}
		t := assets.Target{ID: id, Kind: kind, Developer: dev, Name: cmd.Arg("name")}
		if err := r.Targets.Add(t); err != nil {
			return r.usageError("monitor", err.Error())
		}
		return commands.Text{Body: fmt.Sprintf("Now monitoring %s %s.", kind, id)}
	case "remove":
		id := cmd.Arg("id")
		if id == "" {
			return r.usageError("monitor", "missing required argument id")
		}
		if err := r.Targets.Remove(id); err != nil {
			return commands.Error{Reason: err.Error()}
		}
		return commands.Text{Body: fmt.Sprintf("Stopped monitoring %s.", id)}
	default:
		return r.usageError("monitor", fmt.Sprintf("unknown action %q", action))
	}
}

func (r *Router) targetList() string {
	list := r.Targets.List()
	if len(list) == 0 {
		return "No targets are monitored."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d target(s), scanned in this order:", len(list))
	for i, t := range list {
		fmt.Fprintf(&b, "\n%d. %s %s", i+1, t.Kind, t.ID)
		if t.Name != "" {
			fmt.Fprintf(&b, " (%s)", t.Name)
		}
		if t.Developer {
			b.WriteString(" [developer]")
		}
	}
	if devs := r.Targets.Developers(); len(devs) > 0 {
		fmt.Fprintf(&b, "\nDeveloper allowlist: %s", strings.Join(devs, ", "))
	}
	return b.String()
}

func (r *Router) handleStatus(_ context.Context, cmd commands.Command, _ string) commands.Response {
	if id := cmd.Arg("target"); id != "" {
		return commands.Text{Body: fmt.Sprintf("Target %s: %d asset(s) seen.", id, r.Store.CountForTarget(id))}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Scheduler is %s, %d scan(s) run. %d fingerprint(s) across %d target(s).",
		r.Scheduler.State(), r.Scheduler.Runs(), r.Store.Len(), len(r.Targets.List()))
	if last, ok := r.Scheduler.Last(); ok {
		fmt.Fprintf(&b, "\nLast scan %s at %s: %d new, %d skipped.",
			last.ID, last.Timestamp.UTC().Format(time.RFC3339), len(last.NewLeaks), len(last.Skipped))
	}
	for _, t := range r.Targets.List() {
		fmt.Fprintf(&b, "\n- %s %s: %d", t.Kind, t.ID, r.Store.CountForTarget(t.ID))
	}
	return commands.Text{Body: b.String()}
}
