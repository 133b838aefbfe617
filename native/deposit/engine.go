package deposit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"depositcore/native/commission"
	"depositcore/storage"
)

var (
	errNilStore = errors.New("deposit engine: store not configured")
	// ErrAccountNotFound is returned when neither the primary id nor the
	// external user id resolves to an account document.
	ErrAccountNotFound = errors.New("deposit engine: account not found")
	// ErrQuoteRequired is returned when creation is attempted without a
	// priced quote.
	ErrQuoteRequired = errors.New("deposit engine: quote required")
)

const (
	prefixAccounts   = "accounts"
	prefixExternal   = "accountsByExternal"
	prefixDeposits   = "deposits"
	prefixWalletTxns = "walletTxns"
	prefixHistory    = "history"
	prefixAudit      = "audit"
	prefixContracts  = "contractLinks"
	counterKey       = "counters/timeDeposits"

	auditActionCreate = "timeDeposit.create"
)

// Engine opens time deposits: one atomic read-modify-write across the target
// account, the display-id counter, every commission recipient's wallet and
// the journal records, with at-most-once semantics per idempotency key.
type Engine struct {
	store storage.Store
	nowFn func() time.Time
	idFn  func() string
}

// NewEngine creates a deposit engine bound to the given store.
func NewEngine(store storage.Store) *Engine {
	return &Engine{
		store: store,
		nowFn: time.Now,
		idFn:  uuid.NewString,
	}
}

// SetNowFunc overrides the time source. Primarily intended for tests to
// produce deterministic records.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = time.Now
		return
	}
	e.nowFn = now
}

// SetIDFunc overrides the generator for journal record identifiers.
func (e *Engine) SetIDFunc(id func() string) {
	if id == nil {
		e.idFn = uuid.NewString
		return
	}
	e.idFn = id
}

// CreateParams carries one deposit creation request.
type CreateParams struct {
	// AccountID is the target account's primary id or its external user id.
	AccountID string
	Quote     *Quote
	// Referral is the resolved commission split, nil when the deposit has no
	// referral attached.
	Referral *commission.ReferralContext
	// IdempotencyKey deduplicates retries. When empty a fresh key is
	// generated, which means the caller opted out of retry safety.
	IdempotencyKey string
	InitialDate    time.Time
	// ContractID and ContractURLs link an externally generated contract
	// document; best-effort metadata.
	ContractID   string
	ContractURLs []string
	// AdminID, when set, attributes the creation to an administrator and
	// produces an audit entry.
	AdminID string
}

// CreateResult reports the stored record and whether it pre-existed under the
// idempotency key.
type CreateResult struct {
	Deposit    *TimeDeposit
	Idempotent bool
	// Warnings carries non-fatal degradations, e.g. a contract link that
	// could not be written.
	Warnings []string
}

// CreateDeposit opens the deposit described by params. Every write commits
// atomically or not at all; a lost transaction race surfaces as
// storage.ErrConflict, and retrying with the same idempotency key then
// returns the winner's record with Idempotent set.
func (e *Engine) CreateDeposit(ctx context.Context, params CreateParams) (*CreateResult, error) {
	if e == nil || e.store == nil {
		return nil, errNilStore
	}
	if params.Quote == nil {
		return nil, ErrQuoteRequired
	}
	if params.Quote.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, params.Quote.Amount)
	}
	completion, err := CompletionDate(params.InitialDate, params.Quote.Term)
	if err != nil {
		return nil, err
	}
	key := params.IdempotencyKey
	if key == "" {
		key = e.idFn()
	}

	var result *CreateResult
	err = e.store.RunInTransaction(ctx, func(txn storage.Txn) error {
		result = nil

		var existing TimeDeposit
		found, err := txn.Get(storage.Key(prefixDeposits, key), &existing)
		if err != nil {
			return err
		}
		if found {
			result = &CreateResult{Deposit: &existing, Idempotent: true}
			return nil
		}

		account, err := e.resolveAccount(txn, params.AccountID)
		if err != nil {
			return err
		}

		var counter counterDoc
		if _, err := txn.Get(counterKey, &counter); err != nil {
			return err
		}
		counter.Next++
		if err := txn.Set(counterKey, counter); err != nil {
			return err
		}
		displayID := fmt.Sprintf("%06d", counter.Next)

		now := e.nowFn().UTC()
		account.DepositBalance = account.DepositBalance.Add(params.Quote.Amount)
		account.UpdatedAt = now
		if err := txn.Set(storage.Key(prefixAccounts, account.ID), account); err != nil {
			return err
		}

		if err := e.payCommissions(txn, params.Referral, displayID, now); err != nil {
			return err
		}

		record := e.buildRecord(key, displayID, account.ID, params, completion, now)
		if err := txn.Set(storage.Key(prefixDeposits, key), record); err != nil {
			return err
		}

		history := HistoryEntry{
			ID:        e.idFn(),
			AccountID: account.ID,
			Description: fmt.Sprintf("Opened time deposit %s: %s for %s at %s%% (total return %s)",
				displayID, record.Amount, record.Term, record.FinalRate, record.TotalReturn),
			Amount:    record.Amount,
			CreatedAt: now,
		}
		if err := txn.Set(storage.Key(prefixHistory, account.ID, history.ID), history); err != nil {
			return err
		}

		result = &CreateResult{Deposit: record}

		if params.ContractID != "" {
			link := ContractLink{
				DepositID:    key,
				ContractID:   params.ContractID,
				DocumentURLs: params.ContractURLs,
				CreatedAt:    now,
			}
			if err := txn.Set(storage.Key(prefixContracts, key), link); err != nil {
				// Contract linkage never blocks the financial write path.
				result.Warnings = append(result.Warnings, fmt.Sprintf("contract link not recorded: %v", err))
			}
		}

		if params.AdminID != "" {
			audit := AuditEntry{
				ID:               e.idFn(),
				AdminID:          params.AdminID,
				Action:           auditActionCreate,
				DepositDisplayID: displayID,
				Amount:           record.Amount,
				Recipients:       0,
				CreatedAt:        now,
			}
			if params.Referral != nil {
				audit.Mode = params.Referral.Mode
				audit.Recipients = len(params.Referral.Distribution)
			}
			if err := txn.Set(storage.Key(prefixAudit, audit.ID), audit); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) buildRecord(key, displayID, accountID string, params CreateParams, completion time.Time, now time.Time) *TimeDeposit {
	q := params.Quote
	record := &TimeDeposit{
		ID:                key,
		DisplayID:         displayID,
		AccountID:         accountID,
		Amount:            q.Amount,
		Term:              q.Term,
		Cycles:            q.Cycles,
		EstimatedRate:     q.EstimatedRate,
		FinalRate:         q.FinalRate,
		AnnualNetInterest: q.AnnualNetInterest,
		TotalNetInterest:  q.TotalNetInterest,
		TotalReturn:       q.TotalReturn,
		InitialDate:       params.InitialDate.Format(DateLayout),
		CompletionDate:    completion.Format(DateLayout),
		Status:            StatusActive,
		ContractID:        params.ContractID,
		CreatedAt:         now,
	}
	if params.Referral != nil {
		record.ReferrerID = params.Referral.ReferrerID
	}
	return record
}

func (e *Engine) payCommissions(txn storage.Txn, referral *commission.ReferralContext, displayID string, now time.Time) error {
	if referral == nil {
		return nil
	}
	for _, entry := range referral.Distribution {
		recipient, err := e.resolveAccount(txn, entry.UserID)
		if err != nil {
			return fmt.Errorf("commission recipient %s: %w", entry.UserID, err)
		}
		// resolveAccount observes staged writes, so a self-referral reads
		// the balance that already absorbed the principal.
		recipient.CommissionBalance = recipient.CommissionBalance.Add(entry.Amount)
		recipient.UpdatedAt = now
		if err := txn.Set(storage.Key(prefixAccounts, recipient.ID), recipient); err != nil {
			return err
		}

		walletTxn := WalletTransaction{
			ID:               e.idFn(),
			AccountID:        recipient.ID,
			Amount:           entry.Amount,
			Mode:             referral.Mode,
			Percent:          referral.Percent,
			Gross:            referral.Gross,
			Tax:              referral.Tax,
			DepositDisplayID: displayID,
			CreatedAt:        now,
		}
		if err := txn.Set(storage.Key(prefixWalletTxns, walletTxn.ID), walletTxn); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) resolveAccount(txn storage.Txn, id string) (Account, error) {
	var account Account
	found, err := txn.Get(storage.Key(prefixAccounts, id), &account)
	if err != nil {
		return Account{}, err
	}
	if found {
		return account, nil
	}
	var ref externalRef
	found, err = txn.Get(storage.Key(prefixExternal, id), &ref)
	if err != nil {
		return Account{}, err
	}
	if !found {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	found, err = txn.Get(storage.Key(prefixAccounts, ref.AccountID), &account)
	if err != nil {
		return Account{}, err
	}
	if !found {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return account, nil
}

// SaveAccount upserts an account document and its external-id index entry.
func (e *Engine) SaveAccount(ctx context.Context, account Account) error {
	if e == nil || e.store == nil {
		return errNilStore
	}
	if account.ID == "" {
		return fmt.Errorf("deposit engine: account id required")
	}
	return e.store.RunInTransaction(ctx, func(txn storage.Txn) error {
		if err := txn.Set(storage.Key(prefixAccounts, account.ID), account); err != nil {
			return err
		}
		if account.ExternalID != "" {
			return txn.Set(storage.Key(prefixExternal, account.ExternalID), externalRef{AccountID: account.ID})
		}
		return nil
	})
}

// Account loads an account by primary or external id.
func (e *Engine) Account(ctx context.Context, id string) (*Account, error) {
	if e == nil || e.store == nil {
		return nil, errNilStore
	}
	var account Account
	err := e.store.View(ctx, func(txn storage.Txn) error {
		resolved, err := e.resolveAccount(txn, id)
		if err != nil {
			return err
		}
		account = resolved
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Deposit loads a stored deposit record by its idempotency key.
func (e *Engine) Deposit(ctx context.Context, key string) (*TimeDeposit, bool, error) {
	if e == nil || e.store == nil {
		return nil, false, errNilStore
	}
	var record TimeDeposit
	var found bool
	err := e.store.View(ctx, func(txn storage.Txn) error {
		ok, err := txn.Get(storage.Key(prefixDeposits, key), &record)
		found = ok
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	return &record, true, nil
}
