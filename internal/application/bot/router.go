// Package bot routes parsed chat commands and file uploads to the discovery core.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/leakwatch/internal/application"
	"github.com/bryanwahyu/leakwatch/internal/application/discovery"
	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
	"github.com/bryanwahyu/leakwatch/internal/domain/commands"
	"github.com/bryanwahyu/leakwatch/internal/domain/uploads"
)

// Scheduler is the manual-trigger side of discovery.Scheduler.
type Scheduler interface {
	Trigger(ctx context.Context) (assets.ScanResult, error)
	State() discovery.State
	Runs() int64
	Last() (assets.ScanResult, bool)
}

// FingerprintStore is implemented by fingerprint.Store.
type FingerprintStore interface {
	Record(ctx context.Context, a assets.Asset) error
	CountForTarget(targetID string) int
	Len() int
}

// TargetRegistry is implemented by discovery.Targets.
type TargetRegistry interface {
	List() []assets.Target
	Add(t assets.Target) error
	Remove(id string) error
	Developers() []string
}

// Announcer publishes a leak to a named channel.
type Announcer interface {
	Announce(ctx context.Context, channel, userID string, a assets.Asset) error
}

// Analyst adds an optional model-written note to /verify.
type Analyst interface {
	Enabled() bool
	Analyze(ctx context.Context, a assets.Asset, v assets.Verification) (string, error)
}

// Deps wires the router. Announcer and Analyst may be nil.
type Deps struct {
	Prefix     string
	Scheduler  Scheduler
	Catalog    assets.Catalog
	Store      FingerprintStore
	Targets    TargetRegistry
	Announcer  Announcer
	Analyst    Analyst
	Sink       uploads.Sink
	Validator  *uploads.Validator
	SessionTTL time.Duration
	Clock      application.Clock
	Log        zerolog.Logger

	// OnRoute observes every response; OnUpload every upload outcome.
	OnRoute  func(command string, kind commands.ResponseKind)
	OnUpload func(outcome string)
}

type handlerFunc func(ctx context.Context, cmd commands.Command, userID string) commands.Response

// Router maps command names to handlers. It is safe for concurrent use.
type Router struct {
	Deps
	parser   *commands.Parser
	specs    map[string]commands.Spec
	handlers map[string]handlerFunc

	mu       sync.Mutex
	sessions map[string]uploads.Session
}

func NewRouter(d Deps) *Router {
	if d.Clock == nil {
		d.Clock = application.SystemClock{}
	}
	if d.SessionTTL <= 0 {
		d.SessionTTL = 10 * time.Minute
	}
	r := &Router{
		Deps:     d,
		parser:   commands.NewParser(d.Prefix, Specs...),
		specs:    make(map[string]commands.Spec, len(Specs)),
		sessions: make(map[string]uploads.Session),
	}
	for _, s := range Specs {
		r.specs[s.Name] = s
	}
	r.handlers = map[string]handlerFunc{
		"help":     r.handleHelp,
		"upload":   r.handleUpload,
		"discover": r.handleDiscover,
		"search":   r.handleSearch,
		"leak":     r.handleLeak,
		"verify":   r.handleVerify,
		"monitor":  r.handleMonitor,
		"status":   r.handleStatus,
	}
	return r
}

// Parser exposes the parser built for the configured prefix.
func (r *Router) Parser() *commands.Parser { return r.parser }

// Submit parses line and routes it. Parse failures come back as Error responses.
func (r *Router) Submit(ctx context.Context, line, userID string) commands.Response {
	cmd, err := r.parser.Parse(line)
	if err != nil {
		var pf *commands.ParseFailure
		reason := err.Error()
		if errors.As(err, &pf) {
			reason = pf.Reason
		}
		r.sweep()
		resp := commands.Error{Reason: reason, Usage: r.parser.Prefix() + "help"}
		r.observe("invalid", resp)
		return resp
	}
	return r.Route(ctx, cmd, userID)
}

// Route dispatches cmd. Unknown commands get the help text, never an error.
func (r *Router) Route(ctx context.Context, cmd commands.Command, userID string) commands.Response {
	r.sweep()

	name := strings.ToLower(cmd.Name)
	h, ok := r.handlers[name]
	if !ok {
		resp := commands.Text{Body: fmt.Sprintf("Unknown command %s%s.\n%s", r.parser.Prefix(), cmd.Name, r.helpText())}
		r.observe("unknown", resp)
		return resp
	}
	spec := r.specs[name]
	if err := spec.Check(cmd); err != nil {
		resp := commands.Error{Reason: err.Error(), Usage: spec.Usage(r.parser.Prefix())}
		r.observe(name, resp)
		return resp
	}

	resp := h(ctx, cmd, userID)
	r.observe(name, resp)
	return resp
}

func (r *Router) observe(name string, resp commands.Response) {
	if r.OnRoute != nil {
		r.OnRoute(name, resp.Kind())
	}
}

func (r *Router) usageError(name, reason string) commands.Error {
	return commands.Error{Reason: reason, Usage: r.specs[name].Usage(r.parser.Prefix())}
}

// sweep drops expired upload sessions. There is no background timer.
func (r *Router) sweep() {
	now := r.Clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.Expired(now, r.SessionTTL) {
			delete(r.sessions, id)
		}
	}
}

// Session returns the pending upload session for userID, if any.
func (r *Router) Session(userID string) (uploads.Session, bool) {
	r.sweep()
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	return s, ok
}
