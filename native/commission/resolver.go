// Package commission resolves how a deposit referral's net commission is
// split across recipients, either as a single manual payout or along the
// agent hierarchy.
package commission

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"depositcore/native/agents"
)

var (
	// ErrInvalidPercentage is returned when the commission percentage is
	// outside [0, 100] or cannot be resolved at all.
	ErrInvalidPercentage = errors.New("commission: invalid commission percentage")
	// ErrInvalidCommission is returned when the computed net commission is
	// negative. The percentage bound makes this unreachable in practice; it
	// is checked because a negative value would corrupt wallet balances.
	ErrInvalidCommission = errors.New("commission: invalid net commission")
	// ErrAgentCodeMissing is returned when hierarchy mode is requested for a
	// referrer without an agent code.
	ErrAgentCodeMissing = errors.New("commission: referrer agent code missing")
	// ErrHierarchyNotFound is returned when the hierarchy walk produces no
	// distribution rows for the referrer.
	ErrHierarchyNotFound = errors.New("commission: hierarchy not found")
)

// Mode selects how the referral pool is distributed.
type Mode string

const (
	ModeManual    Mode = "manual"
	ModeHierarchy Mode = "hierarchy"
)

// AgentDirectory supplies the point-in-time active-agent snapshot consumed by
// hierarchy resolution. Read failures should be surfaced as-is so callers can
// retry; the resolver never falls back to stale data.
type AgentDirectory interface {
	ActiveAgents(ctx context.Context) ([]agents.Agent, error)
}

// Referral is the caller-supplied referral input attached to a deposit
// creation request.
type Referral struct {
	UserID string
	Name   string
	// Percent optionally fixes the commission percentage of the principal;
	// when absent the quote's estimated agent rate applies.
	Percent *decimal.Decimal
	// Hierarchy requests the multi-level agent split instead of a flat
	// payout to the referrer.
	Hierarchy bool
	// AgentCode positions the referrer in the hierarchy; required when
	// Hierarchy is set.
	AgentCode string
}

// Entry is one (recipient, amount) pair of a resolved distribution. Percent
// is the recipient's share of the referral pool as a 0-100 number and Amount
// the share of the net commission, rounded to two decimals independently of
// the other entries.
type Entry struct {
	UserID  string           `json:"userId"`
	Name    string           `json:"name"`
	Type    agents.AgentType `json:"type,omitempty"`
	Percent decimal.Decimal  `json:"percentage"`
	Amount  decimal.Decimal  `json:"amount"`
}

// ReferralContext is the resolved, money-bearing commission split. It is
// built once per creation request and consumed only inside that request's
// transaction.
type ReferralContext struct {
	Mode         Mode            `json:"mode"`
	ReferrerID   string          `json:"referrerId"`
	ReferrerName string          `json:"referrerName"`
	Percent      decimal.Decimal `json:"commissionPercentage"`
	Gross        decimal.Decimal `json:"grossCommission"`
	Tax          decimal.Decimal `json:"taxWithheld"`
	Net          decimal.Decimal `json:"netCommission"`
	Distribution []Entry         `json:"distribution"`
}

var oneHundred = decimal.NewFromInt(100)

const moneyPlaces = 2

// ResolveDistribution turns a referral input into the commission split that
// deposit creation will pay out. It returns (nil, nil) when no referral
// target is supplied. estimatedAgentRate is the quote's agent-rate preview
// used as the fallback percentage.
//
// Entry amounts are rounded per entry and never re-normalized against the
// pool: a residual drift of a few cents between the entry sum and the net
// commission is the accepted cost of keeping each payout independently
// reproducible.
func ResolveDistribution(ctx context.Context, ref *Referral, principal decimal.Decimal, estimatedAgentRate *decimal.Decimal, taxRate decimal.Decimal, dir AgentDirectory) (*ReferralContext, error) {
	if ref == nil || ref.UserID == "" {
		return nil, nil
	}

	percent, err := resolvePercent(ref, estimatedAgentRate)
	if err != nil {
		return nil, err
	}

	gross := principal.Mul(percent).Div(oneHundred)
	tax := gross.Mul(taxRate)
	net := gross.Sub(tax).Round(moneyPlaces)
	if net.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCommission, net)
	}

	rc := &ReferralContext{
		Mode:         ModeManual,
		ReferrerID:   ref.UserID,
		ReferrerName: ref.Name,
		Percent:      percent,
		Gross:        gross.Round(moneyPlaces),
		Tax:          tax.Round(moneyPlaces),
		Net:          net,
	}

	if !ref.Hierarchy {
		rc.Distribution = []Entry{{
			UserID:  ref.UserID,
			Name:    ref.Name,
			Percent: oneHundred,
			Amount:  net,
		}}
		return rc, nil
	}

	if ref.AgentCode == "" {
		return nil, ErrAgentCodeMissing
	}
	snapshot, err := dir.ActiveAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("commission: agent snapshot: %w", err)
	}
	subject, ok := findReferrer(snapshot, ref)
	if !ok {
		return nil, fmt.Errorf("%w: referrer %s", ErrHierarchyNotFound, ref.UserID)
	}
	shares := agents.ResolveShares(subject, snapshot)
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: code %s", ErrHierarchyNotFound, ref.AgentCode)
	}

	rc.Mode = ModeHierarchy
	rc.Distribution = make([]Entry, 0, len(shares))
	for _, share := range shares {
		rc.Distribution = append(rc.Distribution, Entry{
			UserID:  share.UserID,
			Name:    share.Name,
			Type:    share.Type,
			Percent: share.Percent,
			// RoundDown keeps the entry sum at or below the pool: drift is
			// forfeited cents, never an overpayment.
			Amount: net.Mul(share.Percent).Div(oneHundred).RoundDown(moneyPlaces),
		})
	}
	return rc, nil
}

func resolvePercent(ref *Referral, estimatedAgentRate *decimal.Decimal) (decimal.Decimal, error) {
	var percent decimal.Decimal
	switch {
	case ref.Percent != nil:
		percent = *ref.Percent
	case estimatedAgentRate != nil:
		percent = *estimatedAgentRate
	default:
		return decimal.Zero, fmt.Errorf("%w: no percentage supplied and no agent rate available", ErrInvalidPercentage)
	}
	if percent.IsNegative() || percent.GreaterThan(oneHundred) {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidPercentage, percent)
	}
	return percent, nil
}

func findReferrer(snapshot []agents.Agent, ref *Referral) (agents.Agent, bool) {
	for _, candidate := range snapshot {
		if candidate.UserID == ref.UserID {
			return candidate, true
		}
	}
	for _, candidate := range snapshot {
		if candidate.Code == ref.AgentCode {
			return candidate, true
		}
	}
	return agents.Agent{}, false
}
