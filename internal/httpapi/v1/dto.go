package v1

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"
	"github.com/shopspring/decimal"

	"github.com/tinoosan/bizledger/internal/ledger"
	"github.com/tinoosan/bizledger/internal/meta"
	"github.com/tinoosan/bizledger/internal/service/account"
)

const dateLayout = "2006-01-02"

// civilDate accepts "2006-01-02" or a full RFC 3339 timestamp.
type civilDate struct{ time.Time }

func (d *civilDate) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("date %q: want YYYY-MM-DD", s)
	}
	d.Time = t
	return nil
}

// nullableUUID tells an absent key apart from an explicit null.
type nullableUUID struct {
	Set   bool
	Value *uuid.UUID
}

func (n *nullableUUID) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.Value = nil
		return nil
	}
	var id uuid.UUID
	if err := json.Unmarshal(b, &id); err != nil {
		return err
	}
	n.Value = &id
	return nil
}

// Accounts

type postAccountRequest struct {
	Name     string             `json:"name" validate:"required,max=200"`
	Type     ledger.AccountType `json:"type" validate:"omitempty,oneof=asset liability equity revenue expense"`
	Subtype  ledger.Subtype     `json:"subtype" validate:"required,oneof=group subgroup account analytic"`
	ParentID *uuid.UUID         `json:"parent_id"`
	Nature   ledger.Nature      `json:"nature" validate:"omitempty,oneof=debit credit"`
	Metadata map[string]string  `json:"metadata,omitempty"`
}

type patchAccountRequest struct {
	Name     *string           `json:"name" validate:"omitempty,min=1,max=200"`
	Subtype  *ledger.Subtype   `json:"subtype" validate:"omitempty,oneof=group subgroup account analytic"`
	Nature   *ledger.Nature    `json:"nature" validate:"omitempty,oneof=debit credit"`
	Active   *bool             `json:"active"`
	Metadata map[string]string `json:"metadata"`
	ParentID nullableUUID      `json:"parent_id"`
}

type accountResponse struct {
	ID        uuid.UUID          `json:"id"`
	Code      string             `json:"code"`
	Name      string             `json:"name"`
	Type      ledger.AccountType `json:"type"`
	Subtype   ledger.Subtype     `json:"subtype"`
	ParentID  *uuid.UUID         `json:"parent_id"`
	Nature    ledger.Nature      `json:"nature"`
	Depth     int                `json:"depth"`
	Active    bool               `json:"active"`
	Postable  bool               `json:"postable"`
	Metadata  meta.Metadata      `json:"metadata,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type treeNodeResponse struct {
	accountResponse
	Children []treeNodeResponse `json:"children"`
}

type nextCodeResponse struct {
	ParentID *uuid.UUID `json:"parent_id"`
	Code     string     `json:"code"`
	Depth    int        `json:"depth"`
}

type balanceResponse struct {
	AccountID    uuid.UUID  `json:"account_id"`
	AsOf         *time.Time `json:"as_of,omitempty"`
	Currency     string     `json:"currency"`
	Balance      string     `json:"balance"`
	BalanceMinor int64      `json:"balance_minor"`
}

// Payment conditions

type installmentDTO struct {
	Number     int             `json:"number" validate:"min=1"`
	OffsetDays int             `json:"offset_days" validate:"min=0"`
	Percentage decimal.Decimal `json:"percentage"`
}

type conditionRequest struct {
	Name         string           `json:"name" validate:"required,max=200"`
	Description  string           `json:"description" validate:"max=1000"`
	Active       *bool            `json:"active"`
	Installments []installmentDTO `json:"installments" validate:"required,min=1,dive"`
}

type distributeRequest struct {
	Installments int  `json:"installments" validate:"required,min=1,max=360"`
	IntervalDays *int `json:"interval_days" validate:"omitempty,min=0"`
}

type installmentResponse struct {
	Number     int    `json:"number"`
	OffsetDays int    `json:"offset_days"`
	Percentage string `json:"percentage"`
}

type conditionResponse struct {
	ID           uuid.UUID             `json:"id"`
	Name         string                `json:"name"`
	Description  string                `json:"description,omitempty"`
	Active       bool                  `json:"active"`
	Installments []installmentResponse `json:"installments"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// Sales and receivables

type saleItemDTO struct {
	Description string          `json:"description" validate:"required,max=500"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type postSaleRequest struct {
	CustomerName string        `json:"customer_name" validate:"required,max=200"`
	Date         civilDate     `json:"date"`
	ConditionID  uuid.UUID     `json:"condition_id"`
	Currency     string        `json:"currency" validate:"omitempty,len=3,alpha"`
	Items        []saleItemDTO `json:"items" validate:"dive"`
}

type saleItemResponse struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
}

type saleResponse struct {
	ID           uuid.UUID          `json:"id"`
	CustomerName string             `json:"customer_name"`
	Date         string             `json:"date"`
	ConditionID  uuid.UUID          `json:"condition_id"`
	Currency     string             `json:"currency"`
	Items        []saleItemResponse `json:"items"`
	Total        string             `json:"total"`
	TotalMinor   int64              `json:"total_minor"`
	Status       ledger.SaleStatus  `json:"status"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

type previewRequest struct {
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency" validate:"omitempty,len=3,alpha"`
	Date        civilDate       `json:"date"`
	ConditionID uuid.UUID       `json:"condition_id" validate:"required"`
}

type receivableResponse struct {
	ID                uuid.UUID               `json:"id"`
	SaleID            uuid.UUID               `json:"sale_id"`
	ConditionID       uuid.UUID               `json:"condition_id"`
	InstallmentNumber int                     `json:"installment_number"`
	TotalInstallments int                     `json:"total_installments"`
	DueDate           string                  `json:"due_date"`
	Amount            string                  `json:"amount"`
	AmountMinor       int64                   `json:"amount_minor"`
	Currency          string                  `json:"currency"`
	Status            ledger.ReceivableStatus `json:"status"`
	CreatedAt         *time.Time              `json:"created_at,omitempty"`
}

type receivablesResponse struct {
	Items []receivableResponse `json:"items"`
	Total string               `json:"total"`
}

// Journal

type postEntryRequest struct {
	Date     civilDate       `json:"date"`
	Currency string          `json:"currency" validate:"omitempty,len=3,alpha"`
	Memo     string          `json:"memo" validate:"max=500"`
	Lines    []postEntryLine `json:"lines" validate:"dive"`
}

type postEntryLine struct {
	AccountID   uuid.UUID   `json:"account_id"`
	Side        ledger.Side `json:"side" validate:"required,oneof=debit credit"`
	AmountMinor int64       `json:"amount_minor"`
}

type entryResponse struct {
	ID       uuid.UUID      `json:"id"`
	Date     string         `json:"date"`
	Currency string         `json:"currency"`
	Memo     string         `json:"memo,omitempty"`
	Lines    []lineResponse `json:"lines"`
}

type lineResponse struct {
	ID          uuid.UUID   `json:"id"`
	AccountID   uuid.UUID   `json:"account_id"`
	Side        ledger.Side `json:"side"`
	AmountMinor int64       `json:"amount_minor"`
	Amount      string      `json:"amount"`
}

// Conversions

func toAccountResponse(a ledger.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Code:      a.Code,
		Name:      a.Name,
		Type:      a.Type,
		Subtype:   a.Subtype,
		ParentID:  a.ParentID,
		Nature:    a.Nature,
		Depth:     a.Depth,
		Active:    a.Active,
		Postable:  a.Postable(),
		Metadata:  a.Metadata,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func toAccountResponses(list []ledger.Account) []accountResponse {
	out := make([]accountResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAccountResponse(a))
	}
	return out
}

func toTreeResponse(nodes []account.Node) []treeNodeResponse {
	out := make([]treeNodeResponse, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, treeNodeResponse{accountResponse: toAccountResponse(n.Account), Children: toTreeResponse(n.Children)})
	}
	return out
}

func toCreateInput(req postAccountRequest) account.CreateInput {
	return account.CreateInput{
		Name:     req.Name,
		Type:     req.Type,
		Subtype:  req.Subtype,
		ParentID: req.ParentID,
		Nature:   req.Nature,
		Metadata: meta.New(meta.NormalizeKeys(req.Metadata)),
	}
}

func toUpdateInput(req patchAccountRequest) account.UpdateInput {
	return account.UpdateInput{
		Name:      req.Name,
		Subtype:   req.Subtype,
		Nature:    req.Nature,
		Active:    req.Active,
		Metadata:  meta.NormalizeKeys(req.Metadata),
		ParentSet: req.ParentID.Set,
		ParentID:  req.ParentID.Value,
	}
}

func toConditionDomain(req conditionRequest) ledger.PaymentCondition {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	plan := make([]ledger.Installment, 0, len(req.Installments))
	for _, in := range req.Installments {
		plan = append(plan, ledger.Installment{Number: in.Number, OffsetDays: in.OffsetDays, Percentage: in.Percentage})
	}
	return ledger.PaymentCondition{Name: req.Name, Description: req.Description, Active: active, Installments: plan}
}

func toInstallmentResponses(plan []ledger.Installment) []installmentResponse {
	out := make([]installmentResponse, 0, len(plan))
	for _, in := range plan {
		out = append(out, installmentResponse{Number: in.Number, OffsetDays: in.OffsetDays, Percentage: in.Percentage.StringFixed(2)})
	}
	return out
}

func toConditionResponse(c ledger.PaymentCondition) conditionResponse {
	return conditionResponse{
		ID:           c.ID,
		Name:         c.Name,
		Description:  c.Description,
		Active:       c.Active,
		Installments: toInstallmentResponses(c.Installments),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func toSaleDomain(req postSaleRequest) ledger.Sale {
	items := make([]ledger.SaleItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, ledger.SaleItem{Description: it.Description, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return ledger.Sale{
		CustomerName: req.CustomerName,
		Date:         req.Date.Time,
		ConditionID:  req.ConditionID,
		Currency:     req.Currency,
		Items:        items,
	}
}

func toSaleResponse(s ledger.Sale) saleResponse {
	items := make([]saleItemResponse, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, saleItemResponse{Description: it.Description, Quantity: it.Quantity.String(), UnitPrice: it.UnitPrice.StringFixed(2)})
	}
	total := s.Total()
	return saleResponse{
		ID:           s.ID,
		CustomerName: s.CustomerName,
		Date:         s.Date.Format(dateLayout),
		ConditionID:  s.ConditionID,
		Currency:     s.Currency,
		Items:        items,
		Total:        total.StringFixed(2),
		TotalMinor:   minorUnits(s.Currency, total),
		Status:       s.Status,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func toReceivableResponse(r ledger.Receivable) receivableResponse {
	out := receivableResponse{
		ID:                r.ID,
		SaleID:            r.SourceSaleID,
		ConditionID:       r.ConditionID,
		InstallmentNumber: r.InstallmentNumber,
		TotalInstallments: r.TotalInstallments,
		DueDate:           r.DueDate.Format(dateLayout),
		Amount:            r.Amount.StringFixed(2),
		AmountMinor:       minorUnits(r.Currency, r.Amount),
		Currency:          r.Currency,
		Status:            r.Status,
	}
	if !r.CreatedAt.IsZero() {
		at := r.CreatedAt
		out.CreatedAt = &at
	}
	return out
}

func toReceivablesResponse(recs []ledger.Receivable) receivablesResponse {
	out := receivablesResponse{Items: make([]receivableResponse, 0, len(recs))}
	total := decimal.Zero
	for _, r := range recs {
		out.Items = append(out.Items, toReceivableResponse(r))
		total = total.Add(r.Amount)
	}
	out.Total = total.StringFixed(2)
	return out
}

func toEntryDomain(req postEntryRequest, currency string) (ledger.JournalEntry, error) {
	lines := make([]ledger.JournalLine, 0, len(req.Lines))
	for i, ln := range req.Lines {
		amt, err := money.NewAmountFromMinorUnits(currency, ln.AmountMinor)
		if err != nil {
			return ledger.JournalEntry{}, fmt.Errorf("line[%d]: %v", i, err)
		}
		lines = append(lines, ledger.JournalLine{AccountID: ln.AccountID, Side: ln.Side, Amount: amt})
	}
	return ledger.JournalEntry{Date: req.Date.Time, Currency: currency, Memo: req.Memo, Lines: lines}, nil
}

func toEntryResponse(e ledger.JournalEntry) entryResponse {
	lines := make([]lineResponse, 0, len(e.Lines))
	for _, ln := range e.Lines {
		minor, _ := ln.Amount.MinorUnits()
		lines = append(lines, lineResponse{
			ID:          ln.ID,
			AccountID:   ln.AccountID,
			Side:        ln.Side,
			AmountMinor: minor,
			Amount:      ln.Amount.Decimal().String(),
		})
	}
	return entryResponse{ID: e.ID, Date: e.Date.Format(dateLayout), Currency: e.Currency, Memo: e.Memo, Lines: lines}
}

// minorUnits converts a decimal amount to the currency's minor units, or 0
// when the currency is unknown or the amount does not fit.
func minorUnits(currency string, d decimal.Decimal) int64 {
	amt, err := money.ParseAmount(currency, d.String())
	if err != nil {
		return 0
	}
	units, ok := amt.MinorUnits()
	if !ok {
		return 0
	}
	return units
}
