package quotes

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Vodeneev/openingline/internal/pkg/models"
)

// BookSet is the sportsbook allowlist.
type BookSet map[string]struct{}

func NewBookSet(books []string) BookSet {
	set := make(BookSet, len(books))
	for _, b := range books {
		b = strings.ToLower(strings.TrimSpace(b))
		if b != "" {
			set[b] = struct{}{}
		}
	}
	return set
}

func (s BookSet) Contains(book string) bool {
	_, ok := s[strings.ToLower(book)]
	return ok
}

// Tick identifies the poll that produced a batch of quotes.
type Tick struct {
	ID        string
	FetchedAt time.Time
}

// RowError is a per-row normalization failure. The row is skipped, the batch continues.
type RowError struct {
	EventID string
	Book    string
	Err     error
}

func (e RowError) Error() string {
	if e.Book == "" {
		return fmt.Sprintf("event %s: %v", e.EventID, e.Err)
	}
	return fmt.Sprintf("event %s book %s: %v", e.EventID, e.Book, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// Normalize flattens feed events into one quote per allowlisted book, in feed order.
func Normalize(events []models.RawEvent, books BookSet, tick Tick) ([]models.Quote, []RowError) {
	var out []models.Quote
	var rowErrs []RowError

	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			rowErrs = append(rowErrs, RowError{EventID: ev.ID, Err: err})
			continue
		}
		for _, b := range ev.Bookmakers {
			if !books.Contains(b.Key) {
				continue
			}
			q, err := normalizeBook(ev, b, tick)
			if err != nil {
				rowErrs = append(rowErrs, RowError{EventID: ev.ID, Book: b.Key, Err: err})
				continue
			}
			out = append(out, q)
		}
	}
	return out, rowErrs
}

func normalizeBook(ev models.RawEvent, b models.RawBookmaker, tick Tick) (models.Quote, error) {
	market, err := b.H2H()
	if err != nil {
		return models.Quote{}, err
	}
	if len(market.Outcomes) < 2 {
		return models.Quote{}, fmt.Errorf("%w: %d outcomes", models.ErrBadOutcomes, len(market.Outcomes))
	}

	home, away := market.Outcomes[0], market.Outcomes[1]
	if home.Name != ev.HomeTeam {
		home, away = away, home
	}

	homePrice, err := americanPrice(home)
	if err != nil {
		return models.Quote{}, err
	}
	awayPrice, err := americanPrice(away)
	if err != nil {
		return models.Quote{}, err
	}

	observed, err := market.Updated(b)
	if err != nil {
		return models.Quote{}, err
	}

	favorite, underdog := SplitPrices(homePrice, awayPrice)
	return models.Quote{
		EventID:       ev.ID,
		SportKey:      ev.SportKey,
		HomeTeam:      ev.HomeTeam,
		AwayTeam:      ev.AwayTeam,
		CommenceTime:  ev.Commence(),
		Book:          strings.ToLower(b.Key),
		HomePrice:     homePrice,
		AwayPrice:     awayPrice,
		FavoritePrice: favorite,
		UnderdogPrice: underdog,
		ObservedAt:    observed,
		FetchedAt:     tick.FetchedAt,
		TickID:        tick.ID,
	}, nil
}

func americanPrice(o models.RawOutcome) (int, error) {
	if o.Price == nil {
		return 0, fmt.Errorf("%w: %q has no price", models.ErrBadPrice, o.Name)
	}
	p := int(math.Round(*o.Price))
	if p == 0 {
		return 0, fmt.Errorf("%w: %q priced 0", models.ErrBadPrice, o.Name)
	}
	return p, nil
}

// SplitPrices orders an American odds pair. With opposite signs the positive price
// comes first; otherwise the numerically larger one does.
func SplitPrices(home, away int) (favorite, underdog int) {
	switch {
	case home > 0 && away < 0:
		return home, away
	case home < 0 && away > 0:
		return away, home
	default:
		return max(home, away), min(home, away)
	}
}

// FilterToDate keeps events whose commence date in loc equals day's date in loc.
func FilterToDate(events []models.RawEvent, day time.Time, loc *time.Location) []models.RawEvent {
	want := models.LocalDate(day, loc)
	out := make([]models.RawEvent, 0, len(events))
	for _, ev := range events {
		if ev.CommenceTime > 0 && models.LocalDate(ev.Commence(), loc) == want {
			out = append(out, ev)
		}
	}
	return out
}

// Dedup drops repeated (event, book) quotes within one tick; the first one wins.
func Dedup(quotes []models.Quote) []models.Quote {
	seen := make(map[models.SeriesKey]struct{}, len(quotes))
	out := make([]models.Quote, 0, len(quotes))
	for _, q := range quotes {
		if _, ok := seen[q.Key()]; ok {
			continue
		}
		seen[q.Key()] = struct{}{}
		out = append(out, q)
	}
	return out
}

// FirstCommence returns the earliest commence time among quotes.
func FirstCommence(quotes []models.Quote) (time.Time, bool) {
	var first time.Time
	for _, q := range quotes {
		if first.IsZero() || q.CommenceTime.Before(first) {
			first = q.CommenceTime
		}
	}
	return first, !first.IsZero()
}
