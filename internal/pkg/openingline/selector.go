// Package openingline picks the opening line of every (event, book) series in a
// day's quote log.
//
// The opening line is approximated by the quote observed closest to the event's
// commence time. A series that was never sampled near commence time still yields
// its closest sample; callers get no signal that the line may be stale.
package openingline

import (
	"time"

	"github.com/Vodeneev/openingline/internal/pkg/models"
)

// Distance is |observed_at - commence_time|.
func Distance(q models.Quote) time.Duration {
	d := q.ObservedAt.Sub(q.CommenceTime)
	if d < 0 {
		return -d
	}
	return d
}

// Select returns exactly one opening line per (event, book) pair, ordered by the
// pair's first appearance in quotes. Ties keep the earliest quote.
func Select(quotes []models.Quote) []models.OpeningLine {
	index := make(map[models.SeriesKey]int)
	var lines []models.OpeningLine
	var best []time.Duration

	for _, q := range quotes {
		key := q.Key()
		i, ok := index[key]
		if !ok {
			index[key] = len(lines)
			lines = append(lines, models.OpeningLine{Quote: q, SampleCount: 1})
			best = append(best, Distance(q))
			continue
		}

		lines[i].SampleCount++
		if d := Distance(q); d < best[i] {
			count := lines[i].SampleCount
			lines[i] = models.OpeningLine{Quote: q, SampleCount: count}
			best[i] = d
		}
	}
	return lines
}

// PricePairs projects opening lines onto the report input.
func PricePairs(lines []models.OpeningLine) []models.PricePair {
	out := make([]models.PricePair, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Prices())
	}
	return out
}
