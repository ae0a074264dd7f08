package report

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Vodeneev/openingline/internal/pkg/models"
)

// BucketWidth is the histogram bucket size in American odds points.
const BucketWidth = 50

var hundred = decimal.NewFromInt(100)

// ImpliedProbability converts American odds to the book's implied probability.
// +150 → 0.4, -150 → 0.6
func ImpliedProbability(american int) (decimal.Decimal, error) {
	if american == 0 {
		return decimal.Zero, fmt.Errorf("invalid American odds: cannot be 0")
	}
	a := decimal.NewFromInt(int64(american))
	if american > 0 {
		return hundred.Div(a.Add(hundred)), nil
	}
	neg := a.Neg()
	return neg.Div(neg.Add(hundred)), nil
}

type Bucket struct {
	Low   int // inclusive
	High  int // exclusive
	Count int
}

func (b Bucket) Label() string {
	return fmt.Sprintf("%+d..%+d", b.Low, b.High)
}

type Summary struct {
	Date      string
	Aggregate bool
	Count     int
	Skipped   int // pairs with an invalid price

	MeanFavorite     decimal.Decimal
	MeanUnderdog     decimal.Decimal
	MeanFavoriteProb decimal.Decimal
	MeanUnderdogProb decimal.Decimal
	MeanHold         decimal.Decimal // overround: pFav + pDog - 1

	MinFavorite, MaxFavorite int
	MinUnderdog, MaxUnderdog int

	Histogram []Bucket
	Pairs     []models.PricePair // sorted by favorite, then underdog
}

// Summarize computes report statistics over (favorite, underdog) price pairs.
func Summarize(pairs []models.PricePair, date string, aggregate bool) Summary {
	s := Summary{Date: date, Aggregate: aggregate}

	var sumFav, sumDog, sumPFav, sumPDog, sumHold decimal.Decimal
	buckets := map[int]int{}
	for _, p := range pairs {
		pFav, err1 := ImpliedProbability(p.Favorite)
		pDog, err2 := ImpliedProbability(p.Underdog)
		if err1 != nil || err2 != nil {
			s.Skipped++
			continue
		}
		if s.Count == 0 {
			s.MinFavorite, s.MaxFavorite = p.Favorite, p.Favorite
			s.MinUnderdog, s.MaxUnderdog = p.Underdog, p.Underdog
		}
		s.Count++
		s.MinFavorite = min(s.MinFavorite, p.Favorite)
		s.MaxFavorite = max(s.MaxFavorite, p.Favorite)
		s.MinUnderdog = min(s.MinUnderdog, p.Underdog)
		s.MaxUnderdog = max(s.MaxUnderdog, p.Underdog)

		sumFav = sumFav.Add(decimal.NewFromInt(int64(p.Favorite)))
		sumDog = sumDog.Add(decimal.NewFromInt(int64(p.Underdog)))
		sumPFav = sumPFav.Add(pFav)
		sumPDog = sumPDog.Add(pDog)
		sumHold = sumHold.Add(pFav.Add(pDog).Sub(decimal.NewFromInt(1)))

		buckets[bucketLow(p.Favorite)]++
		s.Pairs = append(s.Pairs, p)
	}

	if s.Count > 0 {
		n := decimal.NewFromInt(int64(s.Count))
		s.MeanFavorite = sumFav.Div(n).Round(1)
		s.MeanUnderdog = sumDog.Div(n).Round(1)
		s.MeanFavoriteProb = sumPFav.Div(n).Round(4)
		s.MeanUnderdogProb = sumPDog.Div(n).Round(4)
		s.MeanHold = sumHold.Div(n).Round(4)
	}

	lows := make([]int, 0, len(buckets))
	for low := range buckets {
		lows = append(lows, low)
	}
	sort.Ints(lows)
	for _, low := range lows {
		s.Histogram = append(s.Histogram, Bucket{Low: low, High: low + BucketWidth, Count: buckets[low]})
	}

	sort.SliceStable(s.Pairs, func(i, j int) bool {
		if s.Pairs[i].Favorite != s.Pairs[j].Favorite {
			return s.Pairs[i].Favorite < s.Pairs[j].Favorite
		}
		return s.Pairs[i].Underdog < s.Pairs[j].Underdog
	})
	return s
}

// bucketLow floors v to a multiple of BucketWidth (toward negative infinity).
func bucketLow(v int) int {
	q := v / BucketWidth
	if v%BucketWidth != 0 && v < 0 {
		q--
	}
	return q * BucketWidth
}
