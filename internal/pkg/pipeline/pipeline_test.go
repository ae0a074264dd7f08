package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/openingline/internal/pkg/config"
	"github.com/Vodeneev/openingline/internal/pkg/lease"
	"github.com/Vodeneev/openingline/internal/pkg/models"
	"github.com/Vodeneev/openingline/internal/pkg/report"
	"github.com/Vodeneev/openingline/internal/pkg/storage"
)

var la, _ = time.LoadLocation("America/Los_Angeles")

type harness struct {
	store    *storage.FileBlobStore
	keys     storage.Keys
	log      *storage.QuoteLog
	history  *storage.HistoryStore
	notifier *fakeNotifier
	locker   lease.Locker
}

type fakeNotifier struct{ texts []string }

func (f *fakeNotifier) Notify(_ context.Context, text string) error {
	f.texts = append(f.texts, text)
	return nil
}

type busyLocker struct{}

func (busyLocker) Acquire(context.Context, string, time.Duration) (lease.Release, error) {
	return nil, lease.ErrNotAcquired
}

func (busyLocker) Close() error { return nil }

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := storage.NewFileBlobStore(t.TempDir())
	require.NoError(t, err)
	keys := storage.Keys{Sport: "basketball_nba"}
	return &harness{
		store:    store,
		keys:     keys,
		log:      storage.NewQuoteLog(store, keys, la),
		history:  storage.NewHistoryStore(store, keys),
		notifier: &fakeNotifier{},
		locker:   lease.NoopLocker{},
	}
}

func (h *harness) pipeline() *Pipeline {
	cfg := &config.Config{SportKey: "basketball_nba", Lease: config.LeaseConfig{TTL: time.Hour}}
	return New(cfg, Deps{
		QuoteLog: h.log,
		History:  h.history,
		Reports:  report.NewGenerator(h.store, h.keys, nil),
		Notifier: h.notifier,
		Locker:   h.locker,
	})
}

func quote(event, book string, commence time.Time, observedOffset time.Duration, fav, dog int) models.Quote {
	return models.Quote{
		EventID:       event,
		SportKey:      "basketball_nba",
		HomeTeam:      "Boston Celtics",
		AwayTeam:      "New York Knicks",
		CommenceTime:  commence,
		Book:          book,
		HomePrice:     fav,
		AwayPrice:     dog,
		FavoritePrice: fav,
		UnderdogPrice: dog,
		ObservedAt:    commence.Add(observedOffset),
	}
}

func (h *harness) logDay(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	commence := time.Date(2024, 3, 1, 19, 0, 0, 0, la)
	_, err := h.log.WriteTick(ctx, time.Date(2024, 3, 1, 18, 55, 0, 0, la), []models.Quote{
		quote("evt-1", "draftkings", commence, -5*time.Minute, 150, -170),
		quote("evt-1", "fanduel", commence, -5*time.Minute, 145, -165),
	})
	require.NoError(t, err)
	_, err = h.log.WriteTick(ctx, time.Date(2024, 3, 1, 18, 59, 30, 0, la), []models.Quote{
		quote("evt-1", "draftkings", commence, -30*time.Second, 140, -160),
	})
	require.NoError(t, err)
}

func TestPipelineRun(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.logDay(t)

	res, err := h.pipeline().Run(ctx, "2024-03-01")
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 3, res.Quotes)
	assert.Equal(t, 2, res.Lines)
	assert.Equal(t, 2, res.HistoryRows)
	assert.False(t, res.Skipped)
	assert.Equal(t, []string{
		h.keys.Report("2024-03-01", false, "html"),
		h.keys.Report("2024-03-01", true, "html"),
	}, res.Reports)

	daily, err := h.history.ReadDay(ctx, "2024-03-01")
	require.NoError(t, err)
	require.Len(t, daily, 2)
	assert.Equal(t, "draftkings", daily[0].Book)
	assert.Equal(t, 140, daily[0].FavoritePrice)
	assert.Equal(t, 2, daily[0].SampleCount)

	rows, err := h.history.Load(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-03-01", rows[0].Date)

	require.Len(t, h.notifier.texts, 1)
	assert.Contains(t, h.notifier.texts[0], "*Today*: 2 lines")
}

func TestPipelineRerunDuplicatesHistory(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.logDay(t)
	p := h.pipeline()

	_, err := p.Run(ctx, "2024-03-01")
	require.NoError(t, err)
	res, err := p.Run(ctx, "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, 4, res.HistoryRows)
}

func TestPipelineEmptyDaySkips(t *testing.T) {
	h := newHarness(t)

	res, err := h.pipeline().Run(context.Background(), "2024-03-02")
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	rows, err := h.history.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Empty(t, h.notifier.texts)
}

func TestPipelineLeaseHeld(t *testing.T) {
	h := newHarness(t)
	h.logDay(t)
	h.locker = busyLocker{}
	p := h.pipeline()

	_, err := p.Run(context.Background(), "2024-03-01")
	require.ErrorIs(t, err, lease.ErrNotAcquired)
	assert.NotEmpty(t, p.LastRun().Error)

	rows, err := h.history.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestPipelineInvalidDate(t *testing.T) {
	h := newHarness(t)
	_, err := h.pipeline().Run(context.Background(), "03/01/2024")
	assert.ErrorContains(t, err, "invalid date")
}
