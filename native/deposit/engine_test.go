package deposit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"depositcore/native/commission"
	"depositcore/storage"
)

func testEngine(t *testing.T) (*Engine, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	engine := NewEngine(store)
	engine.SetNowFunc(func() time.Time {
		return time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	})
	seq := 0
	engine.SetIDFunc(func() string {
		seq++
		return fmt.Sprintf("gen-%04d", seq)
	})

	ctx := context.Background()
	require.NoError(t, engine.SaveAccount(ctx, Account{ID: "u-target", ExternalID: "ext-target", Name: "Target"}))
	require.NoError(t, engine.SaveAccount(ctx, Account{ID: "c1", Name: "Consultant One"}))
	require.NoError(t, engine.SaveAccount(ctx, Account{ID: "a1", Name: "Agent One"}))
	require.NoError(t, engine.SaveAccount(ctx, Account{ID: "m1", Name: "Master One"}))
	return engine, store
}

func testQuote(t *testing.T) *Quote {
	t.Helper()
	quote, err := BuildQuote(QuoteInput{
		Amount:  decimal.NewFromInt(50000),
		Term:    TermOneYear,
		Tiers:   testTiers(),
		TaxRate: DefaultTaxRate,
	})
	require.NoError(t, err)
	return quote
}

func manualReferral() *commission.ReferralContext {
	return &commission.ReferralContext{
		Mode:         commission.ModeManual,
		ReferrerID:   "a1",
		ReferrerName: "Agent One",
		Percent:      decimal.NewFromInt(10),
		Gross:        decimal.NewFromInt(5000),
		Tax:          decimal.NewFromInt(1000),
		Net:          decimal.NewFromInt(4000),
		Distribution: []commission.Entry{
			{UserID: "a1", Name: "Agent One", Percent: decimal.NewFromInt(100), Amount: decimal.NewFromInt(4000)},
		},
	}
}

func hierarchyReferral() *commission.ReferralContext {
	return &commission.ReferralContext{
		Mode:       commission.ModeHierarchy,
		ReferrerID: "c1",
		Percent:    decimal.NewFromInt(10),
		Gross:      decimal.NewFromInt(5000),
		Tax:        decimal.NewFromInt(1000),
		Net:        decimal.NewFromInt(4000),
		Distribution: []commission.Entry{
			{UserID: "c1", Percent: decimal.NewFromInt(70), Amount: decimal.NewFromInt(2800)},
			{UserID: "a1", Percent: decimal.NewFromInt(20), Amount: decimal.NewFromInt(800)},
			{UserID: "m1", Percent: decimal.NewFromInt(10), Amount: decimal.NewFromInt(400)},
		},
	}
}

func countDocs(t *testing.T, store storage.Store, prefix string) int {
	t.Helper()
	count := 0
	require.NoError(t, store.View(context.Background(), func(txn storage.Txn) error {
		return txn.List(prefix, func(string, []byte) error {
			count++
			return nil
		})
	}))
	return count
}

func TestCreateDepositHappyPath(t *testing.T) {
	t.Parallel()

	engine, store := testEngine(t)
	ctx := context.Background()

	res, err := engine.CreateDeposit(ctx, CreateParams{
		AccountID:      "u-target",
		Quote:          testQuote(t),
		Referral:       manualReferral(),
		IdempotencyKey: "req-0001",
		InitialDate:    time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		AdminID:        "admin-7",
	})
	require.NoError(t, err)
	require.False(t, res.Idempotent)
	require.Empty(t, res.Warnings)

	dep := res.Deposit
	require.Equal(t, "req-0001", dep.ID)
	require.Equal(t, "000001", dep.DisplayID)
	require.Equal(t, "u-target", dep.AccountID)
	require.Equal(t, StatusActive, dep.Status)
	require.Equal(t, "2026-03-01", dep.InitialDate)
	require.Equal(t, "2027-03-01", dep.CompletionDate)
	require.Equal(t, "a1", dep.ReferrerID)
	// 50000 clamps to the 4% boundary rate: 50000*4%*0.8 = 1600 per cycle,
	// two cycles for oneYear.
	require.Equal(t, "4", dep.FinalRate.String())
	require.Equal(t, "1600", dep.AnnualNetInterest.String())
	require.Equal(t, "3200", dep.TotalNetInterest.String())
	require.Equal(t, "53200", dep.TotalReturn.String())

	target, err := engine.Account(ctx, "u-target")
	require.NoError(t, err)
	require.Equal(t, "50000", target.DepositBalance.String())

	referrer, err := engine.Account(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, "4000", referrer.CommissionBalance.String())

	require.Equal(t, 1, countDocs(t, store, "walletTxns/"))
	require.Equal(t, 1, countDocs(t, store, "history/u-target/"))
	require.Equal(t, 1, countDocs(t, store, "audit/"))
}

func TestCreateDepositResolvesExternalID(t *testing.T) {
	t.Parallel()

	engine, _ := testEngine(t)
	res, err := engine.CreateDeposit(context.Background(), CreateParams{
		AccountID:      "ext-target",
		Quote:          testQuote(t),
		IdempotencyKey: "req-ext",
		InitialDate:    time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, "u-target", res.Deposit.AccountID)
}

func TestCreateDepositIdempotentReplay(t *testing.T) {
	t.Parallel()

	engine, store := testEngine(t)
	ctx := context.Background()
	params := CreateParams{
		AccountID:      "u-target",
		Quote:          testQuote(t),
		Referral:       manualReferral(),
		IdempotencyKey: "req-0001",
		InitialDate:    time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		AdminID:        "admin-7",
	}

	first, err := engine.CreateDeposit(ctx, params)
	require.NoError(t, err)
	require.False(t, first.Idempotent)

	second, err := engine.CreateDeposit(ctx, params)
	require.NoError(t, err)
	require.True(t, second.Idempotent)
	// The replay is decoded from the store, so decimal exponents may differ
	// from the freshly built record. Compare the wire encodings.
	firstJSON, err := json.Marshal(first.Deposit)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second.Deposit)
	require.NoError(t, err)
	require.JSONEq(t, string(firstJSON), string(secondJSON))

	// The replay performs no additional writes anywhere.
	require.Equal(t, 1, countDocs(t, store, "walletTxns/"))
	require.Equal(t, 1, countDocs(t, store, "audit/"))
	require.Equal(t, 1, countDocs(t, store, "history/u-target/"))

	target, err := engine.Account(ctx, "u-target")
	require.NoError(t, err)
	require.Equal(t, "50000", target.DepositBalance.String())
	referrer, err := engine.Account(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, "4000", referrer.CommissionBalance.String())
}

func TestCreateDepositHierarchyDistribution(t *testing.T) {
	t.Parallel()

	engine, store := testEngine(t)
	ctx := context.Background()

	_, err := engine.CreateDeposit(ctx, CreateParams{
		AccountID:      "u-target",
		Quote:          testQuote(t),
		Referral:       hierarchyReferral(),
		IdempotencyKey: "req-h",
		InitialDate:    time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	for id, want := range map[string]string{"c1": "2800", "a1": "800", "m1": "400"} {
		acct, err := engine.Account(ctx, id)
		require.NoError(t, err)
		require.Equal(t, want, acct.CommissionBalance.String(), "recipient %s", id)
	}
	require.Equal(t, 3, countDocs(t, store, "walletTxns/"))
}

func TestCreateDepositAbortsAtomically(t *testing.T) {
	t.Parallel()

	engine, store := testEngine(t)
	ctx := context.Background()

	referral := manualReferral()
	referral.Distribution[0].UserID = "nobody"
	_, err := engine.CreateDeposit(ctx, CreateParams{
		AccountID:      "u-target",
		Quote:          testQuote(t),
		Referral:       referral,
		IdempotencyKey: "req-bad",
		InitialDate:    time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, ErrAccountNotFound)

	// Nothing was partially applied: no record, no counter bump, no credit.
	_, found, err := engine.Deposit(ctx, "req-bad")
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, 0, countDocs(t, store, "walletTxns/"))

	target, err := engine.Account(ctx, "u-target")
	require.NoError(t, err)
	require.True(t, target.DepositBalance.IsZero())

	res, err := engine.CreateDeposit(ctx, CreateParams{
		AccountID:      "u-target",
		Quote:          testQuote(t),
		IdempotencyKey: "req-after",
		InitialDate:    time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, "000001", res.Deposit.DisplayID, "aborted attempt must not consume a display id")
}

func TestCreateDepositUnknownTermFailsBeforeTransaction(t *testing.T) {
	t.Parallel()

	engine, store := testEngine(t)
	quote := testQuote(t)
	quote.Term = Term("decade")

	_, err := engine.CreateDeposit(context.Background(), CreateParams{
		AccountID:      "u-target",
		Quote:          quote,
		IdempotencyKey: "req-term",
		InitialDate:    time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, ErrInvalidTerm)
	require.Equal(t, 0, countDocs(t, store, "deposits/"))
}

func TestCreateDepositGeneratesKeyWhenAbsent(t *testing.T) {
	t.Parallel()

	engine, _ := testEngine(t)
	res, err := engine.CreateDeposit(context.Background(), CreateParams{
		AccountID:   "u-target",
		Quote:       testQuote(t),
		InitialDate: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Deposit.ID)
}

func TestCreateDepositContractLink(t *testing.T) {
	t.Parallel()

	engine, store := testEngine(t)
	_, err := engine.CreateDeposit(context.Background(), CreateParams{
		AccountID:      "u-target",
		Quote:          testQuote(t),
		IdempotencyKey: "req-c",
		InitialDate:    time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		ContractID:     "contract-42",
		ContractURLs:   []string{"https://contracts.example/42.pdf"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, countDocs(t, store, "contractLinks/"))
}

func TestCreateDepositConcurrentDisplayIDsAreGapFree(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	engine := NewEngine(store)
	ctx := context.Background()
	require.NoError(t, engine.SaveAccount(ctx, Account{ID: "u-target"}))

	quote := testQuote(t)
	const workers = 12
	ids := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := engine.CreateDeposit(ctx, CreateParams{
				AccountID:      "u-target",
				Quote:          quote,
				IdempotencyKey: fmt.Sprintf("req-%03d", i),
				InitialDate:    time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
			})
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = res.Deposit.DisplayID
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}

	sort.Strings(ids)
	for i, id := range ids {
		require.Equal(t, fmt.Sprintf("%06d", i+1), id, "display ids must be strictly increasing and gap-free")
	}
}

func TestCreateDepositSameKeyRaceYieldsOneRecord(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	engine := NewEngine(store)
	ctx := context.Background()
	require.NoError(t, engine.SaveAccount(ctx, Account{ID: "u-target"}))

	quote := testQuote(t)
	const racers = 8
	results := make([]*CreateResult, racers)
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = engine.CreateDeposit(ctx, CreateParams{
				AccountID:      "u-target",
				Quote:          quote,
				IdempotencyKey: "req-shared",
				InitialDate:    time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
			})
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "racer %d", i)
	}

	winners := 0
	for _, res := range results {
		if !res.Idempotent {
			winners++
		}
		require.Equal(t, results[0].Deposit.DisplayID, res.Deposit.DisplayID)
	}
	require.Equal(t, 1, winners, "exactly one racer may perform the write")

	target, err := engine.Account(ctx, "u-target")
	require.NoError(t, err)
	require.Equal(t, "50000", target.DepositBalance.String(), "balance credited exactly once")
}
