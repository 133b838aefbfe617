package deposit

import "github.com/shopspring/decimal"

// moneyPlaces is the precision money amounts are reported at.
const moneyPlaces = 2

// DefaultTaxRate is the flat withholding applied to interest and commission
// earnings, expressed as a 0-1 fraction.
var DefaultTaxRate = decimal.RequireFromString("0.2")

var oneHundred = decimal.NewFromInt(100)

// Earnings summarises the interest outcome of holding a deposit to term.
// Amounts are rounded to two decimal places at this reporting boundary only;
// the per-cycle values feeding them stay unrounded so rounding error cannot
// compound across cycles.
type Earnings struct {
	Cycles            int
	AnnualNetInterest decimal.Decimal
	TotalNetInterest  decimal.Decimal
	TotalReturn       decimal.Decimal
}

// ComputeEarnings converts a principal, a 0-100 rate and a term into net
// interest and total return after the flat tax haircut per compounding cycle.
// Non-positive principals, negative rates and unknown terms yield the
// all-zero result; these are defined degenerate cases, not failures.
func ComputeEarnings(principal, ratePercent decimal.Decimal, term Term, taxRate decimal.Decimal) Earnings {
	cycles := term.Cycles()
	if principal.Sign() <= 0 || ratePercent.Sign() < 0 || cycles == 0 {
		return Earnings{}
	}
	grossPerCycle := principal.Mul(ratePercent).Div(oneHundred)
	netPerCycle := grossPerCycle.Mul(decimal.NewFromInt(1).Sub(taxRate))
	totalNet := netPerCycle.Mul(decimal.NewFromInt(int64(cycles)))
	return Earnings{
		Cycles:            cycles,
		AnnualNetInterest: netPerCycle.Round(moneyPlaces),
		TotalNetInterest:  totalNet.Round(moneyPlaces),
		TotalReturn:       principal.Add(totalNet).Round(moneyPlaces),
	}
}
