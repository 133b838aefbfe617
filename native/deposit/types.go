package deposit

import (
	"time"

	"github.com/shopspring/decimal"

	"depositcore/native/commission"
)

// Status is the lifecycle state of a time deposit. Creation is the only
// transition in scope; maturity and rollover live outside this core.
type Status string

// StatusActive marks a freshly opened deposit.
const StatusActive Status = "active"

// Account is the persisted balance document of one end user. The same
// document carries both the aggregate deposit balance and the commission
// wallet so that a single transactional write settles both sides of a
// creation.
type Account struct {
	ID                string          `json:"id"`
	ExternalID        string          `json:"externalUserId,omitempty"`
	Name              string          `json:"name,omitempty"`
	DepositBalance    decimal.Decimal `json:"depositBalance"`
	CommissionBalance decimal.Decimal `json:"commissionWalletBalance"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// TimeDeposit is the persisted contract record. Its ID doubles as the
// idempotency key, and all quote fields are embedded so the record audits
// independently of later rate-table changes. Rates are 0-100 percentages at
// four decimal places; money is rounded to two.
type TimeDeposit struct {
	ID                string          `json:"id"`
	DisplayID         string          `json:"displayId"`
	AccountID         string          `json:"accountId"`
	Amount            decimal.Decimal `json:"amount"`
	Term              Term            `json:"term"`
	Cycles            int             `json:"cycles"`
	EstimatedRate     decimal.Decimal `json:"estimatedRate"`
	FinalRate         decimal.Decimal `json:"finalRate"`
	AnnualNetInterest decimal.Decimal `json:"annualNetInterest"`
	TotalNetInterest  decimal.Decimal `json:"totalNetInterest"`
	TotalReturn       decimal.Decimal `json:"totalReturnAmount"`
	InitialDate       string          `json:"initialDate"`
	CompletionDate    string          `json:"completionDate"`
	Status            Status          `json:"status"`
	ContractID        string          `json:"contractId,omitempty"`
	ReferrerID        string          `json:"referrerId,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// WalletTransaction is the immutable record appended to a commission
// recipient's wallet for every payout.
type WalletTransaction struct {
	ID               string          `json:"id"`
	AccountID        string          `json:"accountId"`
	Amount           decimal.Decimal `json:"amount"`
	Mode             commission.Mode `json:"referralMode"`
	Percent          decimal.Decimal `json:"commissionPercentage"`
	Gross            decimal.Decimal `json:"grossCommission"`
	Tax              decimal.Decimal `json:"taxWithheld"`
	DepositDisplayID string          `json:"depositDisplayId"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// HistoryEntry mirrors a deposit's terms on the owning account in
// human-readable form.
type HistoryEntry struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"accountId"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// AuditEntry records an administrator-initiated creation.
type AuditEntry struct {
	ID               string          `json:"id"`
	AdminID          string          `json:"adminId"`
	Action           string          `json:"action"`
	DepositDisplayID string          `json:"depositDisplayId"`
	Amount           decimal.Decimal `json:"amount"`
	Mode             commission.Mode `json:"referralMode,omitempty"`
	Recipients       int             `json:"commissionRecipients"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// ContractLink associates an externally generated contract document with a
// deposit. It is best-effort metadata outside the financial write path.
type ContractLink struct {
	DepositID    string    `json:"depositId"`
	ContractID   string    `json:"contractId"`
	DocumentURLs []string  `json:"documentUrls,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type counterDoc struct {
	Next uint64 `json:"next"`
}

type externalRef struct {
	AccountID string `json:"accountId"`
}
