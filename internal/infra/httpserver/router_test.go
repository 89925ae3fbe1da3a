package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/leakwatch/internal/application/discovery"
	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
	"github.com/bryanwahyu/leakwatch/internal/domain/commands"
	"github.com/bryanwahyu/leakwatch/internal/domain/scanerrors"
	"github.com/bryanwahyu/leakwatch/internal/middleware"
)

type fakeScans struct {
	mu        sync.Mutex
	result    assets.ScanResult
	err       error
	last      *assets.ScanResult
	triggered int
}

func (f *fakeScans) Trigger(context.Context) (assets.ScanResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggered++
	return f.result, f.err
}

func (f *fakeScans) Last() (assets.ScanResult, bool) {
	if f.last == nil {
		return assets.ScanResult{}, false
	}
	return *f.last, true
}

func (f *fakeScans) State() discovery.State { return discovery.StateIdle }
func (f *fakeScans) Runs() int64            { return 3 }

type fakeBot struct {
	line, userID string
	fileName     string
	size         int64
	data         []byte
}

func (b *fakeBot) Submit(_ context.Context, line, userID string) commands.Response {
	b.line, b.userID = line, userID
	return commands.Text{Body: "ok"}
}

func (b *fakeBot) SubmitUpload(_ context.Context, userID, fileName string, size int64, data []byte) commands.Response {
	b.userID, b.fileName, b.size, b.data = userID, fileName, size, data
	if data == nil {
		return commands.Error{Reason: "too large"}
	}
	return commands.ProcessResult{Asset: assets.Asset{ID: "upload:1", Name: fileName}, URL: "memory://uploads/x"}
}

type fakeCatalog struct {
	assets map[string]*assets.Asset
	last   assets.SearchQuery
}

func (c *fakeCatalog) Get(_ context.Context, id string) (*assets.Asset, error) {
	if a, ok := c.assets[id]; ok {
		return a, nil
	}
	return nil, assets.ErrNotFound
}

func (c *fakeCatalog) Search(_ context.Context, q assets.SearchQuery) (*assets.PaginatedResult, error) {
	c.last = q
	q = q.Normalize()
	var out []*assets.Asset
	for _, a := range c.assets {
		out = append(out, a)
	}
	return assets.NewPage(q, out, int64(len(out))), nil
}

type fakeErrors struct{ list []*scanerrors.ScanError }

func (f *fakeErrors) Save(context.Context, *scanerrors.ScanError) error { return nil }
func (f *fakeErrors) ListByScan(_ context.Context, scanID string, _ int) ([]*scanerrors.ScanError, error) {
	var out []*scanerrors.ScanError
	for _, e := range f.list {
		if e.ScanID == scanID {
			out = append(out, e)
		}
	}
	return out, nil
}
func (f *fakeErrors) ListByTarget(_ context.Context, targetID string, _ int) ([]*scanerrors.ScanError, error) {
	var out []*scanerrors.ScanError
	for _, e := range f.list {
		if e.TargetID == targetID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fixture struct {
	handler http.Handler
	scans   *fakeScans
	bot     *fakeBot
	catalog *fakeCatalog
}

func newFixture(t *testing.T, mut ...func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		scans: &fakeScans{},
		bot:   &fakeBot{},
		catalog: &fakeCatalog{assets: map[string]*assets.Asset{
			"101": {ID: "101", SourceTargetID: "1", Kind: assets.KindPet, Name: "Huge Dragon"},
		}},
	}
	opts := Options{
		Scans:      f.scans,
		Bot:        f.bot,
		Catalog:    f.catalog,
		ScanErrors: &fakeErrors{list: []*scanerrors.ScanError{{ID: 1, ScanID: "s1", TargetID: "9", Message: "down"}}},
		Metrics:    middleware.NewMetrics(prometheus.NewRegistry()),
		Health: map[string]middleware.HealthChecker{
			"db": middleware.CheckerFunc(func(context.Context) error { return nil }),
		},
		Log:            zerolog.Nop(),
		MaxUploadBytes: 1024,
	}
	for _, m := range mut {
		m(&opts)
	}
	f.handler = NewRouter(opts)
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestTriggerScan(t *testing.T) {
	f := newFixture(t)
	f.scans.result = assets.ScanResult{ID: "s1", TotalAssetsObserved: 4}

	rec := f.do(httptest.NewRequest(http.MethodPost, "/v1/scans", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got assets.ScanResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "s1", got.ID)
	assert.Equal(t, 4, got.TotalAssetsObserved)
}

func TestTriggerScanErrors(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{assets.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			f := newFixture(t)
			f.scans.err = tt.err
			rec := f.do(httptest.NewRequest(http.MethodPost, "/v1/scans", nil))
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestTriggerScanAsync(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodPost, "/v1/scans?async=true", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	assert.Eventually(t, func() bool {
		f.scans.mu.Lock()
		defer f.scans.mu.Unlock()
		return f.scans.triggered == 1
	}, time.Second, 5*time.Millisecond)
}

func TestLatestScan(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/v1/scans/latest", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.scans.last = &assets.ScanResult{ID: "s9"}
	rec = f.do(httptest.NewRequest(http.MethodGet, "/v1/scans/latest", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"s9"`)
}

func TestScanErrorListings(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/v1/scans/s1/errors", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"message":"down"`)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/v1/targets/9/errors?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"target_id":"9"`)

	f = newFixture(t, func(o *Options) { o.ScanErrors = nil })
	rec = f.do(httptest.NewRequest(http.MethodGet, "/v1/scans/s1/errors", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAssets(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/v1/assets/101", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Huge Dragon")

	rec = f.do(httptest.NewRequest(http.MethodGet, "/v1/assets/404", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/v1/assets?q=dragon&kind=pet&page=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dragon", f.catalog.last.Query)
	assert.Equal(t, assets.KindPet, f.catalog.last.Kind)
	assert.Equal(t, 2, f.catalog.last.Page)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/v1/assets?kind=planet", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommand(t *testing.T) {
	f := newFixture(t)

	body := strings.NewReader(`{"line":"/help","user_id":"42"}`)
	rec := f.do(httptest.NewRequest(http.MethodPost, "/v1/commands", body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/help", f.bot.line)
	assert.Equal(t, "42", f.bot.userID)

	var env struct {
		Kind string `json:"kind"`
		Text string `json:"text"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.Equal(t, string(commands.KindText), env.Kind)
	assert.Equal(t, "ok", env.Text)
}

func TestCommandUserIDFromHeader(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/commands", strings.NewReader(`{"line":"/status"}`))
	req.Header.Set("X-User-ID", "alice")
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", f.bot.userID)
}

func TestCommandBadRequests(t *testing.T) {
	f := newFixture(t)
	for _, body := range []string{`{`, `{"line":"/help"}`, `{"line":"/help","user_id":"bad id!"}`} {
		rec := f.do(httptest.NewRequest(http.MethodPost, "/v1/commands", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func multipartUpload(t *testing.T, userID, name string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if userID != "" {
		require.NoError(t, mw.WriteField("user_id", userID))
	}
	if name != "" {
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	f := newFixture(t)
	rec := f.do(multipartUpload(t, "42", "huge_dragon.png", []byte("pngdata")))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "42", f.bot.userID)
	assert.Equal(t, "huge_dragon.png", f.bot.fileName)
	assert.Equal(t, int64(7), f.bot.size)
	assert.Equal(t, []byte("pngdata"), f.bot.data)
	assert.Contains(t, rec.Body.String(), `"kind":"process_result"`)
}

func TestUploadOversizedFileIsNotRead(t *testing.T) {
	f := newFixture(t)
	rec := f.do(multipartUpload(t, "42", "big.png", bytes.Repeat([]byte("x"), 2048)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(2048), f.bot.size)
	assert.Nil(t, f.bot.data)
}

func TestUploadBeyondBodyLimit(t *testing.T) {
	f := newFixture(t)
	rec := f.do(multipartUpload(t, "42", "huge.png", bytes.Repeat([]byte("x"), 1024+uploadSlack+10)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "too large")
	assert.Empty(t, f.bot.fileName, "bot is not consulted")
}

func TestUploadBadRequests(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusBadRequest, f.do(multipartUpload(t, "", "a.png", []byte("x"))).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(multipartUpload(t, "42", "", nil)).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(multipartUpload(t, "42", "a$(id).png", []byte("x"))).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(httptest.NewRequest(http.MethodPost, "/v1/uploads", strings.NewReader("x"))).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var h middleware.HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&h))
	assert.Equal(t, "idle", h.Info["scheduler"])
	assert.EqualValues(t, 3, h.Info["scans_run"])

	rec = f.do(httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	f.do(httptest.NewRequest(http.MethodGet, "/v1/scans/latest", nil))
	rec = f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "leakwatch_http_requests_total")
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.RequestsPerMinute = 2 })
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, f.do(httptest.NewRequest(http.MethodGet, "/v1/scans/latest", nil)).Code)
	}
	assert.Equal(t, []int{http.StatusNotFound, http.StatusNotFound, http.StatusTooManyRequests}, codes)
}

func TestEncodeCoversEveryResponse(t *testing.T) {
	for _, resp := range []commands.Response{
		commands.Text{Body: "hi"},
		commands.UploadPrompt{ExpectedKind: assets.KindPet, MaxBytes: 10},
		commands.ProcessResult{Asset: assets.Asset{ID: "upload:1", Name: "a.png"}},
		commands.SearchResults{Query: "q"},
		commands.Error{Reason: "bad"},
	} {
		env := Encode(resp)
		assert.Equal(t, resp.Kind(), env.Kind)
		assert.Equal(t, resp, env.Data)
		assert.NotEmpty(t, env.Text)
	}
}
