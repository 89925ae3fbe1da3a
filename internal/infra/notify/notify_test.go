package notify

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
	"github.com/bryanwahyu/leakwatch/internal/domain/scanerrors"
)

type published struct {
	subject string
	payload any
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, subj string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{subj, v})
	return p.err
}

type fakeErrorRepo struct {
	scanerrors.Repository
	saved []*scanerrors.ScanError
}

func (r *fakeErrorRepo) Save(_ context.Context, e *scanerrors.ScanError) error {
	r.saved = append(r.saved, e)
	return nil
}

func sampleResult() assets.ScanResult {
	return assets.ScanResult{
		ID:                  "scan-1",
		TotalAssetsObserved: 4,
		NewLeaks: []assets.Asset{
			{ID: "1", SourceTargetID: "dev", Kind: assets.KindPet, IsDeveloperOrigin: true},
			{ID: "2", SourceTargetID: "fan", Kind: assets.KindEgg},
		},
		Skipped:        []assets.TargetFailure{{TargetID: "down", Reason: "catalog returned 503"}},
		ScanDurationMS: 1200,
		Timestamp:      time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBusNotifierPublishesSummaryAndLeaks(t *testing.T) {
	pub := &fakePublisher{}
	n := NewBusNotifier(pub, "leakwatch", zerolog.Nop())

	n.OnScanResult(context.Background(), sampleResult())

	require.Len(t, pub.msgs, 3)
	assert.Equal(t, "leakwatch.scans.completed", pub.msgs[0].subject)
	summary := pub.msgs[0].payload.(ScanCompleted)
	assert.Equal(t, 2, summary.NewLeaks)
	assert.Equal(t, 1, summary.DeveloperLeaks)
	assert.Len(t, summary.Skipped, 1)

	assert.Equal(t, "leakwatch.leaks.new", pub.msgs[1].subject)
	assert.Equal(t, "1", pub.msgs[1].payload.(LeakEvent).Asset.ID)
	assert.Equal(t, "scan-1", pub.msgs[2].payload.(LeakEvent).ScanID)
}

func TestBusNotifierSurvivesPublishErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("no responders")}
	var buf bytes.Buffer
	n := NewBusNotifier(pub, "", zerolog.New(&buf))

	assert.NotPanics(t, func() { n.OnScanResult(context.Background(), sampleResult()) })
	assert.Equal(t, "scans.completed", pub.msgs[0].subject)
	assert.Contains(t, buf.String(), "publish scan summary failed")
}

func TestAnnounce(t *testing.T) {
	pub := &fakePublisher{}
	n := NewBusNotifier(pub, "leakwatch.", zerolog.Nop())

	require.NoError(t, n.Announce(context.Background(), "#pet.leaks", "u1", assets.Asset{ID: "9"}))
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "leakwatch.announce.pet_leaks", pub.msgs[0].subject)
	ev := pub.msgs[0].payload.(LeakEvent)
	assert.Equal(t, "#pet.leaks", ev.Channel)
	assert.Equal(t, "u1", ev.AnnouncedBy)
}

func TestErrorRecorderAndMulti(t *testing.T) {
	repo := &fakeErrorRepo{}
	var buf bytes.Buffer
	Multi{ErrorRecorder{Repo: repo, Log: zerolog.Nop()}, nil, Log{Log: zerolog.New(&buf)}}.
		OnScanResult(context.Background(), sampleResult())

	require.Len(t, repo.saved, 1)
	assert.Equal(t, "scan-1", repo.saved[0].ScanID)
	assert.Equal(t, "down", repo.saved[0].TargetID)
	assert.Equal(t, scanerrors.PhaseScan, repo.saved[0].Phase)
	assert.JSONEq(t, `{"reason":"catalog returned 503"}`, repo.saved[0].DetailsJSON)

	assert.Contains(t, buf.String(), `"new_leaks":2`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestChannelToken(t *testing.T) {
	assert.Equal(t, "leaks", channelToken("#leaks"))
	assert.Equal(t, "a_b_c", channelToken("#a.b c"))
	assert.Equal(t, "_", channelToken("#"))
	assert.Equal(t, "x.y.z", subject("x", "y", "z"))
}
