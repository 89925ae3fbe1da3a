package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/bryanwahyu/leakwatch/internal/application/discovery"
	domai "github.com/bryanwahyu/leakwatch/internal/domain/ai"
	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
	"github.com/bryanwahyu/leakwatch/internal/domain/commands"
	"github.com/bryanwahyu/leakwatch/internal/domain/scanerrors"
	"github.com/bryanwahyu/leakwatch/internal/middleware"
)

// Scans is implemented by discovery.Scheduler.
type Scans interface {
	Trigger(ctx context.Context) (assets.ScanResult, error)
	Last() (assets.ScanResult, bool)
	State() discovery.State
	Runs() int64
}

// Bot is implemented by bot.Router.
type Bot interface {
	Submit(ctx context.Context, line, userID string) commands.Response
	SubmitUpload(ctx context.Context, userID, fileName string, size int64, data []byte) commands.Response
}

type Options struct {
	Scans             Scans
	Bot               Bot
	Catalog           assets.Catalog
	ScanErrors        scanerrors.Repository // optional
	Metrics           *middleware.Metrics   // optional
	Health            map[string]middleware.HealthChecker
	Log               zerolog.Logger
	AllowedOrigins    []string
	RequestsPerMinute int
	MaxUploadBytes    int64
}

type Router struct {
	opts Options
}

// multipart overhead allowed on top of the upload limit
const uploadSlack = 1 << 20

func NewRouter(opts Options) http.Handler {
	r := &Router{opts: opts}
	mux := chi.NewRouter()

	allowed := opts.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	mux.Use(chimw.RequestID)
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.RequestLogger(opts.Log))
	if opts.Metrics != nil {
		mux.Use(opts.Metrics.Middleware)
	}
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-User-ID"},
		MaxAge:         int((10 * time.Minute).Seconds()),
	}))

	mux.Get("/health", middleware.HealthHandler(opts.Health, r.healthInfo))
	mux.Get("/livez", middleware.LivenessHandler)
	if opts.Metrics != nil {
		mux.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	mux.Route("/v1", func(rt chi.Router) {
		if opts.RequestsPerMinute > 0 {
			rt.Use(httprate.LimitByIP(opts.RequestsPerMinute, time.Minute))
		}
		rt.Post("/scans", r.wrap(r.handleTriggerScan))
		rt.Get("/scans/latest", r.wrap(r.handleLatest))
		rt.Get("/scans/{id}/errors", r.wrap(r.handleScanErrors))
		rt.Get("/targets/{id}/errors", r.wrap(r.handleTargetErrors))
		rt.Get("/assets", r.wrap(r.handleSearch))
		rt.Get("/assets/{id}", r.wrap(r.handleGetAsset))
		rt.Post("/commands", r.wrap(r.handleCommand))
		rt.Post("/uploads", r.wrap(r.handleUpload))
	})

	return otelhttp.NewHandler(mux, "leakwatch.http")
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest is returned by handlers for malformed client input.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func badRequestf(format string, args ...any) error {
	return badRequest{msg: fmt.Sprintf(format, args...)}
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var br badRequest
		switch {
		case errors.As(err, &br):
			http.Error(w, br.msg, http.StatusBadRequest)
		case errors.Is(err, assets.ErrNotFound):
			http.Error(w, "not found", http.StatusNotFound)
		case errors.Is(err, assets.ErrStoreUnavailable):
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		case errors.Is(err, domai.ErrQuotaExceeded):
			http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			http.Error(w, "scan still running", http.StatusGatewayTimeout)
		default:
			r.opts.Log.Error().Err(err).Str("path", req.URL.Path).Msg("request failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func (r *Router) healthInfo() map[string]any {
	info := map[string]any{}
	if r.opts.Scans != nil {
		info["scheduler"] = r.opts.Scans.State().String()
		info["scans_run"] = r.opts.Scans.Runs()
		if last, ok := r.opts.Scans.Last(); ok {
			info["last_scan_at"] = last.Timestamp
		}
	}
	return info
}

// POST /v1/scans[?async=true]
// Waits for the scan (or the one already running) unless async is set.
func (r *Router) handleTriggerScan(w http.ResponseWriter, req *http.Request) error {
	if async, _ := strconv.ParseBool(req.URL.Query().Get("async")); async {
		go func() {
			if _, err := r.opts.Scans.Trigger(context.WithoutCancel(req.Context())); err != nil {
				r.opts.Log.Warn().Err(err).Msg("async scan failed")
			}
		}()
		return writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
	}

	res, err := r.opts.Scans.Trigger(req.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

// GET /v1/scans/latest
func (r *Router) handleLatest(w http.ResponseWriter, _ *http.Request) error {
	res, ok := r.opts.Scans.Last()
	if !ok {
		return assets.ErrNotFound
	}
	return writeJSON(w, http.StatusOK, res)
}

func limitParam(req *http.Request) int {
	n, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	if n <= 0 {
		return 20
	}
	if n > 100 {
		return 100
	}
	return n
}

// GET /v1/scans/{id}/errors?limit=
func (r *Router) handleScanErrors(w http.ResponseWriter, req *http.Request) error {
	if r.opts.ScanErrors == nil {
		return assets.ErrNotFound
	}
	list, err := r.opts.ScanErrors.ListByScan(req.Context(), chi.URLParam(req, "id"), limitParam(req))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/targets/{id}/errors?limit=
func (r *Router) handleTargetErrors(w http.ResponseWriter, req *http.Request) error {
	if r.opts.ScanErrors == nil {
		return assets.ErrNotFound
	}
	list, err := r.opts.ScanErrors.ListByTarget(req.Context(), chi.URLParam(req, "id"), limitParam(req))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/assets?q=&kind=&page=&page_size=
func (r *Router) handleSearch(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))
	sq := assets.SearchQuery{
		Query:    middleware.SanitizeString(q.Get("q")),
		Page:     page,
		PageSize: size,
	}
	if raw := q.Get("kind"); raw != "" {
		if sq.Kind = assets.ParseKind(raw); sq.Kind == assets.KindUnknown && !strings.EqualFold(raw, "unknown") {
			return badRequestf("invalid kind: %s", raw)
		}
	}
	res, err := r.opts.Catalog.Search(req.Context(), sq)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

// GET /v1/assets/{id}
func (r *Router) handleGetAsset(w http.ResponseWriter, req *http.Request) error {
	a, err := r.opts.Catalog.Get(req.Context(), chi.URLParam(req, "id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, a)
}

func userID(req *http.Request, fromBody string) (string, error) {
	id := strings.TrimSpace(fromBody)
	if id == "" {
		id = strings.TrimSpace(req.Header.Get("X-User-ID"))
	}
	if err := middleware.ValidateUserID(id); err != nil {
		return "", badRequest{msg: err.Error()}
	}
	return id, nil
}

// POST /v1/commands
// Body: {"line": "/search query: huge", "user_id": "123"}
func (r *Router) handleCommand(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Line   string `json:"line"`
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(io.LimitReader(req.Body, 64<<10)).Decode(&body); err != nil {
		return badRequestf("invalid json: %v", err)
	}
	uid, err := userID(req, body.UserID)
	if err != nil {
		return err
	}
	resp := r.opts.Bot.Submit(req.Context(), body.Line, uid)
	return writeJSON(w, http.StatusOK, Encode(resp))
}

// POST /v1/uploads (multipart: user_id, file)
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	limit := r.opts.MaxUploadBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	req.Body = http.MaxBytesReader(w, req.Body, limit+uploadSlack)
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return writeJSON(w, http.StatusOK, Encode(commands.Error{Reason: "too large"}))
		}
		return badRequestf("invalid multipart form: %v", err)
	}
	defer func() { _ = req.MultipartForm.RemoveAll() }()

	uid, err := userID(req, req.FormValue("user_id"))
	if err != nil {
		return err
	}
	file, header, err := req.FormFile("file")
	if err != nil {
		return badRequestf("file is required")
	}
	defer file.Close()

	if err := middleware.ValidateFileName(header.Filename); err != nil {
		return badRequest{msg: err.Error()}
	}

	var data []byte
	if header.Size <= limit {
		if data, err = io.ReadAll(file); err != nil {
			return err
		}
	}
	resp := r.opts.Bot.SubmitUpload(req.Context(), uid, header.Filename, header.Size, data)
	return writeJSON(w, http.StatusOK, Encode(resp))
}
