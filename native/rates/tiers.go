package rates

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ratePlaces is the precision rates are reported at. Downstream records store
// rates as 0-100 percentages rounded to four decimal places.
const ratePlaces = 4

// Tier is one rung of a piecewise-linear rate schedule: deposits at exactly
// Threshold earn Rate percent.
type Tier struct {
	Threshold decimal.Decimal
	Rate      decimal.Decimal
}

// Table is a rate schedule sorted ascending by threshold.
type Table []Tier

// Normalize builds a Table from the raw threshold-to-rate mapping of a rate
// configuration document. Entries whose threshold does not parse to a finite
// non-negative number, or whose rate is not a finite non-negative value, are
// dropped rather than treated as fatal: a partially damaged schedule still
// quotes from its healthy rungs.
func Normalize(raw map[string]float64) Table {
	table := make(Table, 0, len(raw))
	for key, rate := range raw {
		threshold, err := strconv.ParseFloat(strings.TrimSpace(key), 64)
		if err != nil || math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold < 0 {
			continue
		}
		if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
			continue
		}
		table = append(table, Tier{
			Threshold: decimal.NewFromFloat(threshold),
			Rate:      decimal.NewFromFloat(rate),
		})
	}
	sort.Slice(table, func(i, j int) bool {
		return table[i].Threshold.LessThan(table[j].Threshold)
	})
	return table
}

// Interpolate maps an investment amount to a rate. Amounts at or below the
// lowest threshold earn that tier's rate and amounts at or beyond the highest
// threshold earn the top tier's rate; schedules cap, they never extrapolate.
// Between two adjacent rungs the rate is linearly interpolated. An empty
// table or a negative amount yields zero, meaning "no data" rather than an
// error. The result carries at most four decimal places.
func Interpolate(table Table, amount decimal.Decimal) decimal.Decimal {
	if len(table) == 0 || amount.IsNegative() {
		return decimal.Zero
	}
	lowest := table[0]
	if amount.LessThanOrEqual(lowest.Threshold) {
		return lowest.Rate.Round(ratePlaces)
	}
	highest := table[len(table)-1]
	if amount.GreaterThanOrEqual(highest.Threshold) {
		return highest.Rate.Round(ratePlaces)
	}
	for i := 1; i < len(table); i++ {
		high := table[i]
		if amount.GreaterThanOrEqual(high.Threshold) {
			continue
		}
		low := table[i-1]
		span := high.Threshold.Sub(low.Threshold)
		if span.IsZero() {
			return low.Rate.Round(ratePlaces)
		}
		fraction := amount.Sub(low.Threshold).Div(span)
		rate := low.Rate.Add(fraction.Mul(high.Rate.Sub(low.Rate)))
		return rate.Round(ratePlaces)
	}
	return highest.Rate.Round(ratePlaces)
}
