package openingline

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/openingline/internal/pkg/models"
)

var commence = time.Date(2024, 11, 20, 19, 0, 0, 0, time.UTC)

func quote(event, book string, offset time.Duration, fav int) models.Quote {
	return models.Quote{
		EventID:       event,
		Book:          book,
		CommenceTime:  commence,
		ObservedAt:    commence.Add(offset),
		FavoritePrice: fav,
		UnderdogPrice: -fav - 20,
	}
}

func TestSelectPicksClosestToCommence(t *testing.T) {
	lines := Select([]models.Quote{
		quote("e1", "draftkings", 200*time.Second, 150),
		quote("e1", "draftkings", -50*time.Second, 140),
	})
	require.Len(t, lines, 1)
	assert.Equal(t, 140, lines[0].FavoritePrice)
	assert.Equal(t, 2, lines[0].SampleCount)
}

func TestSelectSingleQuoteGroup(t *testing.T) {
	q := quote("e1", "fanduel", -6*time.Hour, 120)
	lines := Select([]models.Quote{q})
	require.Len(t, lines, 1)
	assert.Equal(t, q, lines[0].Quote)
	assert.Equal(t, 1, lines[0].SampleCount)
}

func TestSelectTieKeepsFirst(t *testing.T) {
	lines := Select([]models.Quote{
		quote("e1", "betmgm", -30*time.Second, 101),
		quote("e1", "betmgm", 30*time.Second, 102),
		quote("e1", "betmgm", -30*time.Second, 103),
	})
	require.Len(t, lines, 1)
	assert.Equal(t, 101, lines[0].FavoritePrice)
}

func TestSelectGroupsByEventAndBook(t *testing.T) {
	lines := Select([]models.Quote{
		quote("e2", "fanduel", time.Hour, 1),
		quote("e1", "fanduel", time.Minute, 2),
		quote("e2", "draftkings", time.Hour, 3),
		quote("e2", "fanduel", time.Second, 4),
	})
	require.Len(t, lines, 3)

	assert.Equal(t, models.SeriesKey{EventID: "e2", Book: "fanduel"}, lines[0].Key())
	assert.Equal(t, 4, lines[0].FavoritePrice)
	assert.Equal(t, models.SeriesKey{EventID: "e1", Book: "fanduel"}, lines[1].Key())
	assert.Equal(t, models.SeriesKey{EventID: "e2", Book: "draftkings"}, lines[2].Key())
}

func TestSelectEmpty(t *testing.T) {
	assert.Empty(t, Select(nil))
}

func TestSelectIsMinimalAndUnique(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	events := []string{"e1", "e2", "e3"}
	books := []string{"draftkings", "fanduel", "espnbet"}

	var quotes []models.Quote
	for i := 0; i < 300; i++ {
		offset := time.Duration(rng.Intn(7200)-3600) * time.Second
		quotes = append(quotes, quote(events[rng.Intn(len(events))], books[rng.Intn(len(books))], offset, i))
	}

	lines := Select(quotes)

	seen := map[models.SeriesKey]bool{}
	for _, l := range lines {
		assert.False(t, seen[l.Key()], "duplicate line for %v", l.Key())
		seen[l.Key()] = true

		for _, q := range quotes {
			if q.Key() == l.Key() {
				assert.LessOrEqual(t, Distance(l.Quote), Distance(q))
			}
		}
	}

	groups := map[models.SeriesKey]bool{}
	for _, q := range quotes {
		groups[q.Key()] = true
	}
	assert.Equal(t, len(groups), len(lines))

	again := Select(quotes)
	assert.Equal(t, lines, again)
}

func TestPricePairs(t *testing.T) {
	pairs := PricePairs([]models.OpeningLine{{Quote: models.Quote{FavoritePrice: 150, UnderdogPrice: -170}}})
	assert.Equal(t, []models.PricePair{{Favorite: 150, Underdog: -170}}, pairs)
}
