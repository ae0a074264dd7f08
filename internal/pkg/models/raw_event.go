package models

import (
	"errors"
	"fmt"
	"time"
)

// MarketH2H is the moneyline market key in the odds feed.
const MarketH2H = "h2h"

var (
	ErrMissingField = errors.New("missing field")
	ErrNoMarket     = errors.New("no h2h market")
	ErrBadOutcomes  = errors.New("bad outcomes")
	ErrBadPrice     = errors.New("bad price")
)

// RawEvent is one event record of the odds feed (dateFormat=unix, oddsFormat=american).
type RawEvent struct {
	ID           string         `json:"id"`
	SportKey     string         `json:"sport_key"`
	SportTitle   string         `json:"sport_title"`
	CommenceTime int64          `json:"commence_time"`
	HomeTeam     string         `json:"home_team"`
	AwayTeam     string         `json:"away_team"`
	Bookmakers   []RawBookmaker `json:"bookmakers"`
}

type RawBookmaker struct {
	Key        string      `json:"key"`
	Title      string      `json:"title"`
	LastUpdate int64       `json:"last_update"`
	Markets    []RawMarket `json:"markets"`
}

type RawMarket struct {
	Key        string       `json:"key"`
	LastUpdate int64        `json:"last_update"`
	Outcomes   []RawOutcome `json:"outcomes"`
}

type RawOutcome struct {
	Name  string   `json:"name"`
	Price *float64 `json:"price"`
}

// Commence returns the commence instant in UTC.
func (e RawEvent) Commence() time.Time {
	return time.Unix(e.CommenceTime, 0).UTC()
}

// Validate checks the event-level fields every quote needs.
func (e RawEvent) Validate() error {
	switch {
	case e.ID == "":
		return fmt.Errorf("%w: id", ErrMissingField)
	case e.HomeTeam == "":
		return fmt.Errorf("%w: home_team", ErrMissingField)
	case e.AwayTeam == "":
		return fmt.Errorf("%w: away_team", ErrMissingField)
	case e.CommenceTime <= 0:
		return fmt.Errorf("%w: commence_time", ErrMissingField)
	}
	return nil
}

// H2H returns the bookmaker's moneyline market.
func (b RawBookmaker) H2H() (RawMarket, error) {
	for _, m := range b.Markets {
		if m.Key == MarketH2H {
			return m, nil
		}
	}
	// The feed is requested with markets=h2h, so a lone unnamed market is the moneyline.
	if len(b.Markets) == 1 && b.Markets[0].Key == "" {
		return b.Markets[0], nil
	}
	return RawMarket{}, ErrNoMarket
}

// Updated returns the market's last update, falling back to the bookmaker's.
func (m RawMarket) Updated(b RawBookmaker) (time.Time, error) {
	ts := m.LastUpdate
	if ts <= 0 {
		ts = b.LastUpdate
	}
	if ts <= 0 {
		return time.Time{}, fmt.Errorf("%w: last_update", ErrMissingField)
	}
	return time.Unix(ts, 0).UTC(), nil
}
