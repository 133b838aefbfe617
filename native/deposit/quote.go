package deposit

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"depositcore/native/rates"
)

// ErrInvalidAmount is returned when a quoted amount is negative.
var ErrInvalidAmount = errors.New("deposit: invalid amount")

// ReferralPreview shows the commission economics of an optional referral
// alongside a quote. It is display-only; the authoritative figures are
// recomputed by the commission resolver at creation time under the same
// rounding and tax rules, so the two always agree.
type ReferralPreview struct {
	Percent decimal.Decimal `json:"commissionPercentage"`
	Gross   decimal.Decimal `json:"grossCommission"`
	Tax     decimal.Decimal `json:"taxWithheld"`
	Net     decimal.Decimal `json:"netCommission"`
}

// Quote is the derived, immutable result of pricing a prospective deposit.
// It is never persisted on its own; deposit creation embeds its fields.
type Quote struct {
	Term               Term             `json:"term"`
	Cycles             int              `json:"cycles"`
	Amount             decimal.Decimal  `json:"amount"`
	EstimatedRate      decimal.Decimal  `json:"estimatedRate"`
	FinalRate          decimal.Decimal  `json:"finalRate"`
	AnnualNetInterest  decimal.Decimal  `json:"annualNetInterest"`
	TotalNetInterest   decimal.Decimal  `json:"totalNetInterest"`
	TotalReturn        decimal.Decimal  `json:"totalReturnAmount"`
	EstimatedAgentRate *decimal.Decimal `json:"estimatedAgentRate,omitempty"`
	ReferralPreview    *ReferralPreview `json:"referralPreview,omitempty"`
}

// QuoteInput carries everything BuildQuote needs. OverrideRate, AgentTiers
// and ReferralPercent are optional.
type QuoteInput struct {
	Amount decimal.Decimal
	Term   Term
	Tiers  rates.Table
	// OverrideRate replaces the tier-estimated rate when supplied.
	OverrideRate *decimal.Decimal
	// AgentTiers, when present, previews the agent commission rate for the
	// amount using the same interpolation as the principal rate.
	AgentTiers rates.Table
	// ReferralPercent, when present together with a positive amount,
	// produces a net-commission preview.
	ReferralPercent *decimal.Decimal
	TaxRate         decimal.Decimal
}

// BuildQuote composes tier interpolation and earnings computation into a
// single quote. It is pure: same inputs, same quote, which keeps audits
// reproducible.
func BuildQuote(in QuoteInput) (*Quote, error) {
	if in.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, in.Amount)
	}
	estimated := rates.Interpolate(in.Tiers, in.Amount)
	final := estimated
	if in.OverrideRate != nil {
		final = *in.OverrideRate
	}
	earnings := ComputeEarnings(in.Amount, final, in.Term, in.TaxRate)
	quote := &Quote{
		Term:              in.Term,
		Cycles:            in.Term.Cycles(),
		Amount:            in.Amount,
		EstimatedRate:     estimated,
		FinalRate:         final,
		AnnualNetInterest: earnings.AnnualNetInterest,
		TotalNetInterest:  earnings.TotalNetInterest,
		TotalReturn:       earnings.TotalReturn,
	}
	if len(in.AgentTiers) > 0 {
		agentRate := rates.Interpolate(in.AgentTiers, in.Amount)
		quote.EstimatedAgentRate = &agentRate
	}
	if in.ReferralPercent != nil && in.Amount.Sign() > 0 {
		quote.ReferralPreview = previewReferral(in.Amount, *in.ReferralPercent, in.TaxRate)
	}
	return quote, nil
}

func previewReferral(amount, percent, taxRate decimal.Decimal) *ReferralPreview {
	gross := amount.Mul(percent).Div(oneHundred)
	tax := gross.Mul(taxRate)
	return &ReferralPreview{
		Percent: percent,
		Gross:   gross.Round(moneyPlaces),
		Tax:     tax.Round(moneyPlaces),
		Net:     gross.Sub(tax).Round(moneyPlaces),
	}
}
