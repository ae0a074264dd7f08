package oddsapi

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"

	"github.com/Vodeneev/openingline/internal/pkg/config"
	"github.com/Vodeneev/openingline/internal/pkg/models"
	"github.com/Vodeneev/openingline/internal/pkg/quotes"
)

const defaultBaseURL = "https://api.the-odds-api.com"
const defaultUserAgent = "OpeningLineBot/1.0 (https://github.com/Vodeneev/openingline)"

// Board is one fetch of the moneyline board. Events that could not be decoded
// are left out of Events and reported in Rejected.
type Board struct {
	Events   []models.RawEvent
	Rejected []quotes.RowError
}

// Source is anything that returns the current moneyline board for a sport.
type Source interface {
	FetchOdds(ctx context.Context, sport string, regions []string) (Board, error)
}

// Client talks to the-odds-api v4.
type Client struct {
	baseURL   string
	apiKey    string
	userAgent string
	client    *http.Client
}

var _ Source = (*Client)(nil)

func NewClient(cfg config.OddsConfig) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		baseURL:   baseURL,
		apiKey:    cfg.APIKey,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

// FetchOdds queries each region in order and concatenates the events.
// GET /v4/sports/{sport}/odds/?apiKey=..&regions=..&markets=h2h&oddsFormat=american&dateFormat=unix
func (c *Client) FetchOdds(ctx context.Context, sport string, regions []string) (Board, error) {
	var out Board
	for _, region := range regions {
		b, err := c.fetchRegion(ctx, sport, region)
		if err != nil {
			return Board{}, fmt.Errorf("region %s: %w", region, err)
		}
		out.Events = append(out.Events, b.Events...)
		out.Rejected = append(out.Rejected, b.Rejected...)
	}
	return out, nil
}

func (c *Client) fetchRegion(ctx context.Context, sport, region string) (Board, error) {
	q := url.Values{}
	q.Set("apiKey", c.apiKey)
	q.Set("regions", region)
	q.Set("markets", models.MarketH2H)
	q.Set("oddsFormat", "american")
	q.Set("dateFormat", "unix")
	u := fmt.Sprintf("%s/v4/sports/%s/odds/?%s", c.baseURL, url.PathEscape(sport), q.Encode())

	body, err := c.get(ctx, u)
	if err != nil {
		return Board{}, err
	}
	return decodeBoard(body)
}

// decodeBoard decodes the event array one element at a time, so a mistyped
// field rejects only its own event.
func decodeBoard(body []byte) (Board, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return Board{}, fmt.Errorf("decode odds: %w", err)
	}

	var b Board
	for i, msg := range raw {
		var ev models.RawEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			b.Rejected = append(b.Rejected, quotes.RowError{
				EventID: eventID(msg, i),
				Err:     fmt.Errorf("decode event: %w", err),
			})
			continue
		}
		b.Events = append(b.Events, ev)
	}
	return b, nil
}

// eventID recovers the id of an event that failed to decode, or its index.
func eventID(msg json.RawMessage, index int) string {
	var head struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(msg, &head); err == nil && head.ID != "" {
		return head.ID
	}
	return fmt.Sprintf("#%d", index)
}

func (c *Client) get(ctx context.Context, urlStr string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, br, zstd")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if remaining := resp.Header.Get("X-Requests-Remaining"); remaining != "" {
		slog.Debug("Odds API quota", "remaining", remaining, "used", resp.Header.Get("X-Requests-Used"))
	}

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		preview := string(b)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, preview)
	}

	return readBodyDecode(resp)
}

// readBodyDecode reads response body and decompresses it based on Content-Encoding (gzip, br, zstd).
func readBodyDecode(resp *http.Response) ([]byte, error) {
	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch {
	case enc == "br":
		return io.ReadAll(brotli.NewReader(resp.Body))
	case enc == "zstd":
		r, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	case enc == "gzip":
		r, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer r.Close()
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read gzip body: %w", err)
		}
		return b, nil
	default:
		return io.ReadAll(resp.Body)
	}
}
