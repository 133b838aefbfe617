package deposit

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"depositcore/native/rates"
)

func testTiers() rates.Table {
	return rates.Normalize(map[string]float64{"100000": 4, "500000": 6})
}

func agentTiers() rates.Table {
	return rates.Normalize(map[string]float64{"100000": 1, "500000": 2})
}

func TestBuildQuoteEstimatedRate(t *testing.T) {
	t.Parallel()

	quote, err := BuildQuote(QuoteInput{
		Amount:  decimal.NewFromInt(300000),
		Term:    TermOneYear,
		Tiers:   testTiers(),
		TaxRate: DefaultTaxRate,
	})
	require.NoError(t, err)
	require.Equal(t, "5", quote.EstimatedRate.String())
	require.True(t, quote.FinalRate.Equal(quote.EstimatedRate))
	require.Equal(t, 2, quote.Cycles)
	require.Equal(t, "24000", quote.TotalNetInterest.String()) // 300000*5%*0.8*2
	require.Equal(t, "324000", quote.TotalReturn.String())
	require.Nil(t, quote.EstimatedAgentRate)
	require.Nil(t, quote.ReferralPreview)
}

func TestBuildQuoteOverrideRateWins(t *testing.T) {
	t.Parallel()

	override := decimal.RequireFromString("7.5")
	quote, err := BuildQuote(QuoteInput{
		Amount:       decimal.NewFromInt(300000),
		Term:         TermSixMonths,
		Tiers:        testTiers(),
		OverrideRate: &override,
		TaxRate:      DefaultTaxRate,
	})
	require.NoError(t, err)
	require.Equal(t, "5", quote.EstimatedRate.String(), "estimate still reported")
	require.Equal(t, "7.5", quote.FinalRate.String())
	require.Equal(t, "18000", quote.TotalNetInterest.String()) // 300000*7.5%*0.8
}

func TestBuildQuoteAgentRatePreview(t *testing.T) {
	t.Parallel()

	quote, err := BuildQuote(QuoteInput{
		Amount:     decimal.NewFromInt(300000),
		Term:       TermOneYear,
		Tiers:      testTiers(),
		AgentTiers: agentTiers(),
		TaxRate:    DefaultTaxRate,
	})
	require.NoError(t, err)
	require.NotNil(t, quote.EstimatedAgentRate)
	require.Equal(t, "1.5", quote.EstimatedAgentRate.String())
}

func TestBuildQuoteReferralPreview(t *testing.T) {
	t.Parallel()

	pct := decimal.NewFromInt(10)
	quote, err := BuildQuote(QuoteInput{
		Amount:          decimal.NewFromInt(50000),
		Term:            TermSixMonths,
		Tiers:           testTiers(),
		ReferralPercent: &pct,
		TaxRate:         DefaultTaxRate,
	})
	require.NoError(t, err)
	require.NotNil(t, quote.ReferralPreview)
	require.Equal(t, "5000", quote.ReferralPreview.Gross.String())
	require.Equal(t, "1000", quote.ReferralPreview.Tax.String())
	require.Equal(t, "4000", quote.ReferralPreview.Net.String())
}

func TestBuildQuoteNoPreviewForZeroAmount(t *testing.T) {
	t.Parallel()

	pct := decimal.NewFromInt(10)
	quote, err := BuildQuote(QuoteInput{
		Amount:          decimal.Zero,
		Term:            TermSixMonths,
		Tiers:           testTiers(),
		ReferralPercent: &pct,
		TaxRate:         DefaultTaxRate,
	})
	require.NoError(t, err)
	require.Nil(t, quote.ReferralPreview)
}

func TestBuildQuoteInvalidAmount(t *testing.T) {
	t.Parallel()

	_, err := BuildQuote(QuoteInput{
		Amount:  decimal.NewFromInt(-1),
		Term:    TermSixMonths,
		Tiers:   testTiers(),
		TaxRate: DefaultTaxRate,
	})
	require.ErrorIs(t, err, ErrInvalidAmount)
}
