package models

import (
	"time"
)

// Quote is one sportsbook's moneyline for one event at one observation instant.
type Quote struct {
	EventID      string    `json:"event_id"`
	SportKey     string    `json:"sport_key"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
	CommenceTime time.Time `json:"commence_time"`
	Book         string    `json:"book"`
	HomePrice    int       `json:"home_price"`
	AwayPrice    int       `json:"away_price"`

	// FavoritePrice is the positive (or less negative) side, UnderdogPrice the other.
	// The names follow the source data and do not always match the book's favorite.
	FavoritePrice int `json:"favorite_price"`
	UnderdogPrice int `json:"underdog_price"`

	ObservedAt time.Time `json:"observed_at"` // h2h market last_update
	FetchedAt  time.Time `json:"fetched_at"`
	TickID     string    `json:"tick_id"`
}

// Key identifies the (event, book) series a quote belongs to.
func (q Quote) Key() SeriesKey {
	return SeriesKey{EventID: q.EventID, Book: q.Book}
}

type SeriesKey struct {
	EventID string
	Book    string
}

// OpeningLine is the quote of a series observed closest to commence time.
type OpeningLine struct {
	Quote
	// SampleCount is how many quotes the series had when the line was selected.
	SampleCount int `json:"sample_count"`
}

// HistoryRow is one opening line in the all-time table, tagged with its slate date.
type HistoryRow struct {
	OpeningLine
	Date string `json:"date"` // YYYY-MM-DD
}

// PricePair is the (favorite, underdog) pair consumed by reports.
type PricePair struct {
	Favorite int `json:"favorite_price"`
	Underdog int `json:"underdog_price"`
}

func (q Quote) Prices() PricePair {
	return PricePair{Favorite: q.FavoritePrice, Underdog: q.UnderdogPrice}
}

// DateLayout is the slate date format used in storage keys and history rows.
const DateLayout = "2006-01-02"

// LocalDate formats t as a slate date in loc.
func LocalDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}
