package report

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/openingline/internal/pkg/models"
	"github.com/Vodeneev/openingline/internal/pkg/storage"
)

func TestImpliedProbability(t *testing.T) {
	tests := []struct {
		american int
		want     string
	}{
		{150, "0.4"},
		{-150, "0.6"},
		{100, "0.5"},
		{-100, "0.5"},
		{300, "0.25"},
	}
	for _, tt := range tests {
		got, err := ImpliedProbability(tt.american)
		require.NoError(t, err)
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "%d → %s", tt.american, got)
	}

	_, err := ImpliedProbability(0)
	assert.Error(t, err)
}

func TestBucketLow(t *testing.T) {
	assert.Equal(t, 100, bucketLow(150))
	assert.Equal(t, 100, bucketLow(149))
	assert.Equal(t, -200, bucketLow(-170))
	assert.Equal(t, -150, bucketLow(-150))
	assert.Equal(t, 0, bucketLow(0))
}

func TestSummarize(t *testing.T) {
	pairs := []models.PricePair{
		{Favorite: 150, Underdog: -170},
		{Favorite: -110, Underdog: -110},
		{Favorite: 0, Underdog: -120}, // invalid, skipped
	}
	s := Summarize(pairs, "2024-03-01", false)

	assert.Equal(t, 2, s.Count)
	assert.Equal(t, 1, s.Skipped)
	assert.True(t, s.MeanFavorite.Equal(decimal.NewFromInt(20)))
	assert.True(t, s.MeanUnderdog.Equal(decimal.NewFromInt(-140)))
	assert.Equal(t, -110, s.MinFavorite)
	assert.Equal(t, 150, s.MaxFavorite)
	assert.Equal(t, -170, s.MinUnderdog)
	assert.Equal(t, -110, s.MaxUnderdog)
	// hold: (0.4 + 0.6296 - 1) and (0.5238*2 - 1), both positive
	assert.True(t, s.MeanHold.IsPositive())

	require.Len(t, s.Histogram, 2)
	assert.Equal(t, Bucket{Low: -150, High: -100, Count: 1}, s.Histogram[0])
	assert.Equal(t, Bucket{Low: 150, High: 200, Count: 1}, s.Histogram[1])

	assert.Equal(t, []models.PricePair{{Favorite: -110, Underdog: -110}, {Favorite: 150, Underdog: -170}}, s.Pairs)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, "2024-03-01", true)
	assert.Zero(t, s.Count)
	assert.True(t, s.MeanHold.IsZero())
	assert.Empty(t, s.Histogram)
}

func TestRenderHTML(t *testing.T) {
	s := Summarize([]models.PricePair{{Favorite: 150, Underdog: -170}}, "2024-03-01", false)
	html, err := RenderHTML(s)
	require.NoError(t, err)

	page := string(html)
	assert.Contains(t, page, "Opening moneylines 2024-03-01")
	assert.Contains(t, page, "+150")
	assert.Contains(t, page, "-170")
	assert.Contains(t, page, "+150..+200")

	agg, err := RenderHTML(Summarize(nil, "2024-03-01", true))
	require.NoError(t, err)
	assert.Contains(t, string(agg), "all dates through 2024-03-01")
}

type fakePDF struct{ err error }

func (f fakePDF) RenderPDF(_ context.Context, html []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]byte("%PDF-"), html[:4]...), nil
}

func TestGeneratorStoresReports(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewFileBlobStore(t.TempDir())
	require.NoError(t, err)
	keys := storage.Keys{Sport: "basketball_nba"}
	pairs := []models.PricePair{{Favorite: 150, Underdog: -170}}

	g := NewGenerator(store, keys, fakePDF{})
	s, written, err := g.Generate(ctx, pairs, "2024-03-01", false)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Count)
	assert.Equal(t, []string{keys.Report("2024-03-01", false, "html"), keys.Report("2024-03-01", false, "pdf")}, written)

	pdf, err := store.Get(ctx, keys.Report("2024-03-01", false, "pdf"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF-"))

	// a broken browser keeps the HTML report
	g = NewGenerator(store, keys, fakePDF{err: errors.New("chrome not found")})
	_, written, err = g.Generate(ctx, pairs, "2024-03-02", true)
	require.NoError(t, err)
	assert.Equal(t, []string{keys.Report("2024-03-02", true, "html")}, written)
}

type fakeSender struct {
	sent []tgbotapi.MessageConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestTelegramNotifier(t *testing.T) {
	sender := &fakeSender{}
	n := &TelegramNotifier{bot: sender, chatID: 42}

	daily := Summarize([]models.PricePair{{Favorite: 150, Underdog: -170}}, "2024-03-01", false)
	total := Summarize([]models.PricePair{{Favorite: 150, Underdog: -170}, {Favorite: -110, Underdog: -110}}, "2024-03-01", true)
	text := FormatSummary("basketball_nba", daily, total)

	require.NoError(t, n.Notify(context.Background(), text))
	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeMarkdown, msg.ParseMode)
	assert.Contains(t, msg.Text, "*Today*: 1 lines")
	assert.Contains(t, msg.Text, "*All dates*: 2 lines")
}
