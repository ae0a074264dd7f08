package oddsapi

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/openingline/internal/pkg/config"
)

const boardJSON = `[{
	"id": "evt-1",
	"sport_key": "basketball_nba",
	"sport_title": "NBA",
	"commence_time": 1700000000,
	"home_team": "Boston Celtics",
	"away_team": "New York Knicks",
	"bookmakers": [{
		"key": "draftkings",
		"title": "DraftKings",
		"last_update": 1699999000,
		"markets": [{
			"key": "h2h",
			"last_update": 1699999000,
			"outcomes": [
				{"name": "Boston Celtics", "price": -170},
				{"name": "New York Knicks", "price": 150}
			]
		}]
	}]
}]`

func compress(t *testing.T, encoding string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	switch encoding {
	case "gzip":
		w := gzip.NewWriter(&buf)
		_, err := w.Write(data)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	case "br":
		w := brotli.NewWriter(&buf)
		_, err := w.Write(data)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	case "zstd":
		w, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	default:
		return data
	}
	return buf.Bytes()
}

func TestFetchOddsDecodesEveryEncoding(t *testing.T) {
	for _, encoding := range []string{"", "gzip", "br", "zstd"} {
		t.Run("encoding="+encoding, func(t *testing.T) {
			var regions []string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v4/sports/basketball_nba/odds/", r.URL.Path)
				q := r.URL.Query()
				assert.Equal(t, "secret", q.Get("apiKey"))
				assert.Equal(t, "h2h", q.Get("markets"))
				assert.Equal(t, "american", q.Get("oddsFormat"))
				assert.Equal(t, "unix", q.Get("dateFormat"))
				regions = append(regions, q.Get("regions"))

				if encoding != "" {
					w.Header().Set("Content-Encoding", encoding)
				}
				_, _ = w.Write(compress(t, encoding, []byte(boardJSON)))
			}))
			defer srv.Close()

			c := NewClient(config.OddsConfig{BaseURL: srv.URL + "/", APIKey: "secret", Timeout: 5 * time.Second})
			board, err := c.FetchOdds(context.Background(), "basketball_nba", []string{"us", "us2"})
			require.NoError(t, err)
			events := board.Events
			assert.Empty(t, board.Rejected)

			assert.Equal(t, []string{"us", "us2"}, regions)
			require.Len(t, events, 2)
			ev := events[0]
			assert.Equal(t, "evt-1", ev.ID)
			assert.Equal(t, time.Unix(1700000000, 0).UTC(), ev.Commence())
			require.Len(t, ev.Bookmakers, 1)
			m, err := ev.Bookmakers[0].H2H()
			require.NoError(t, err)
			require.Len(t, m.Outcomes, 2)
			require.NotNil(t, m.Outcomes[1].Price)
			assert.Equal(t, 150.0, *m.Outcomes[1].Price)
		})
	}
}

func TestFetchOddsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"API key is not valid"}`))
	}))
	defer srv.Close()

	c := NewClient(config.OddsConfig{BaseURL: srv.URL})
	_, err := c.FetchOdds(context.Background(), "basketball_nba", []string{"us"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "region us")
	assert.Contains(t, err.Error(), "401")
}

func TestFetchOddsMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not": "an array"}`))
	}))
	defer srv.Close()

	c := NewClient(config.OddsConfig{BaseURL: srv.URL})
	_, err := c.FetchOdds(context.Background(), "basketball_nba", []string{"us"})
	assert.ErrorContains(t, err, "decode odds")
}

func TestFetchOddsRejectsOnlyMistypedEvents(t *testing.T) {
	mistyped := `[
		{"id": "evt-bad", "commence_time": "tonight", "home_team": "A", "away_team": "B"},
		{"id": "evt-price", "commence_time": 1700000000, "home_team": "A", "away_team": "B",
		 "bookmakers": [{"key": "fanduel", "markets": [{"key": "h2h", "outcomes": [
			{"name": "A", "price": "N/A"}, {"name": "B", "price": 120}]}]}]},
		"not an object",
		` + boardJSON[1:]
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(mistyped))
	}))
	defer srv.Close()

	c := NewClient(config.OddsConfig{BaseURL: srv.URL})
	board, err := c.FetchOdds(context.Background(), "basketball_nba", []string{"us"})
	require.NoError(t, err)

	require.Len(t, board.Events, 1)
	assert.Equal(t, "evt-1", board.Events[0].ID)

	require.Len(t, board.Rejected, 3)
	assert.Equal(t, "evt-bad", board.Rejected[0].EventID)
	assert.Equal(t, "evt-price", board.Rejected[1].EventID)
	assert.Equal(t, "#2", board.Rejected[2].EventID)
	assert.ErrorContains(t, board.Rejected[1], "decode event")
}
