package ledger

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"
	"github.com/shopspring/decimal"
	"github.com/tinoosan/bizledger/internal/meta"
)

// Side represents the accounting position of a journal line.
type Side string

const (
	// SideDebit records a value on the debit side of an account.
	SideDebit Side = "debit"
	// SideCredit records a value on the credit side of an account.
	SideCredit Side = "credit"
)

// AccountType enumerates the broad classification of an account in the chart.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// AccountTypes lists every type in chart order.
var AccountTypes = []AccountType{AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense}

func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// Subtype is the role of a node in the tree. Groups and subgroups are
// synthetic (they aggregate children); accounts and analytic accounts post.
type Subtype string

const (
	SubtypeGroup    Subtype = "group"
	SubtypeSubgroup Subtype = "subgroup"
	SubtypeAccount  Subtype = "account"
	SubtypeAnalytic Subtype = "analytic"
)

// Subtypes lists every subtype from the top of the tree down.
var Subtypes = []Subtype{SubtypeGroup, SubtypeSubgroup, SubtypeAccount, SubtypeAnalytic}

func (s Subtype) Valid() bool {
	switch s {
	case SubtypeGroup, SubtypeSubgroup, SubtypeAccount, SubtypeAnalytic:
		return true
	}
	return false
}

// Synthetic reports whether accounts of this subtype may be parents.
func (s Subtype) Synthetic() bool { return s == SubtypeGroup || s == SubtypeSubgroup }

// Postable reports whether ledger lines may target accounts of this subtype.
func (s Subtype) Postable() bool { return s == SubtypeAccount || s == SubtypeAnalytic }

// Nature is the side on which increases to an account are recorded.
type Nature string

const (
	NatureDebit  Nature = "debit"
	NatureCredit Nature = "credit"
)

func (n Nature) Valid() bool { return n == NatureDebit || n == NatureCredit }

// DefaultNature returns the conventional nature for a type:
// assets and expenses are debit, everything else credit.
func DefaultNature(t AccountType) Nature {
	if t == AccountTypeAsset || t == AccountTypeExpense {
		return NatureDebit
	}
	return NatureCredit
}

// Account is a node of the chart of accounts.
type Account struct {
	ID      uuid.UUID
	Code    string
	Name    string
	Type    AccountType
	Subtype Subtype
	// ParentID is nil for roots.
	ParentID *uuid.UUID
	Nature   Nature
	// Depth is 1 for roots and parent depth + 1 otherwise.
	Depth int
	// Active is false for accounts hidden from posting choices; they are never removed implicitly.
	Active    bool
	Metadata  meta.Metadata
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a Account) IsRoot() bool { return a.ParentID == nil }

// Postable reports whether ledger lines may target the account right now.
func (a Account) Postable() bool { return a.Active && a.Subtype.Postable() }

// InSubtreeOf reports whether a sits strictly below the account coded root.
func (a Account) InSubtreeOf(root string) bool {
	return strings.HasPrefix(a.Code, root+".")
}

// SplitCode parses a dot-delimited code into its numeric segments.
// Non-numeric segments are returned as -1.
func SplitCode(code string) []int {
	if code == "" {
		return nil
	}
	parts := strings.Split(code, ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			n = -1
		}
		out[i] = n
	}
	return out
}

// CompareCodes orders codes segment by segment numerically, so "1.9" < "1.10"
// and a parent sorts before its children.
func CompareCodes(a, b string) int {
	as, bs := SplitCode(a), SplitCode(b)
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] != bs[i] {
			if as[i] < bs[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}
	return strings.Compare(a, b)
}

// Installment is one slot of a payment condition template.
type Installment struct {
	Number     int
	OffsetDays int
	Percentage decimal.Decimal
}

// PaymentCondition is a reusable template turning a total into dated installments.
type PaymentCondition struct {
	ID           uuid.UUID
	Name         string
	Description  string
	Active       bool
	Installments []Installment
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SaleStatus tracks a sale through approval and invoicing.
type SaleStatus string

const (
	SaleStatusDraft     SaleStatus = "draft"
	SaleStatusApproved  SaleStatus = "approved"
	SaleStatusInvoiced  SaleStatus = "invoiced"
	SaleStatusCancelled SaleStatus = "cancelled"
)

// SaleItem is a line of a sale.
type SaleItem struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// Sale is the commercial document the scheduler turns into receivables.
type Sale struct {
	ID           uuid.UUID
	CustomerName string
	Date         time.Time
	ConditionID  uuid.UUID
	Currency     string
	Items        []SaleItem
	Status       SaleStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Total sums quantity * unit price over all items, rounded to cents.
func (s Sale) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.Items {
		total = total.Add(it.Quantity.Mul(it.UnitPrice))
	}
	return total.Round(2)
}

// ReceivableStatus is owned by billing; receivables are born pending.
type ReceivableStatus string

const (
	ReceivableStatusPending   ReceivableStatus = "pending"
	ReceivableStatusPaid      ReceivableStatus = "paid"
	ReceivableStatusOverdue   ReceivableStatus = "overdue"
	ReceivableStatusCancelled ReceivableStatus = "cancelled"
)

// Receivable is one dated partial payment materialized from a sale.
type Receivable struct {
	ID                uuid.UUID
	SourceSaleID      uuid.UUID
	ConditionID       uuid.UUID
	Amount            decimal.Decimal
	Currency          string
	DueDate           time.Time
	InstallmentNumber int
	TotalInstallments int
	Status            ReceivableStatus
	CreatedAt         time.Time
}

// JournalEntry groups lines posted on one date.
type JournalEntry struct {
	ID       uuid.UUID
	Date     time.Time
	Currency string
	Memo     string
	Lines    []JournalLine
}

// JournalLine links a journal entry to a posting account with an amount on a side.
type JournalLine struct {
	ID        uuid.UUID
	EntryID   uuid.UUID
	AccountID uuid.UUID
	Side      Side
	Amount    money.Amount
}
