package storage

import (
	"fmt"
	"strings"
	"time"
)

const recordExt = ".jsonl.zst"

// Keys builds every blob path used by the poller and the daily pipeline.
type Keys struct {
	Sport string
}

// LiveOddsPrefix is the directory holding one object per poll tick for date.
func (k Keys) LiveOddsPrefix(date string) string {
	return fmt.Sprintf("%s/%s/live_odds/", k.Sport, date)
}

// LiveOdds is the object written by one tick; at is already in the local zone.
func (k Keys) LiveOdds(date string, at time.Time) string {
	return fmt.Sprintf("%s%s_%s_%s%s", k.LiveOddsPrefix(date), k.Sport, date, at.Format("15-04-05"), recordExt)
}

// DailyOpeningLines holds one day's selected opening lines.
func (k Keys) DailyOpeningLines(date string) string {
	return fmt.Sprintf("%s/starting_money/%s_starting/data/starting_moneylines%s", k.Sport, date, recordExt)
}

// History is the all-time opening line table.
func (k Keys) History() string {
	return fmt.Sprintf("%s/starting_money/starting_money_agg/starting_money_all%s", k.Sport, recordExt)
}

// Report is where a rendered report for date is stored.
func (k Keys) Report(date string, aggregate bool, ext string) string {
	name := fmt.Sprintf("%s_starting_moneyline_report.%s", date, strings.TrimPrefix(ext, "."))
	if aggregate {
		return fmt.Sprintf("%s/starting_money/starting_money_agg/plots/%s", k.Sport, name)
	}
	return fmt.Sprintf("%s/starting_money/%s_starting/plots/%s", k.Sport, date, name)
}

// tempKey is a sibling of key used for write-and-rename.
func tempKey(key, suffix string) string {
	return key + ".tmp-" + suffix
}
