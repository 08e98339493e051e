// Package memory provides an in-memory store used for development and tests.
// It implements every service repo and writer behind one RWMutex.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tinoosan/bizledger/internal/errs"
	"github.com/tinoosan/bizledger/internal/ledger"
)

// Store keeps maps keyed by id plus insertion-order slices for stable listing.
type Store struct {
	mu sync.RWMutex

	accounts     map[uuid.UUID]ledger.Account
	accountOrder []uuid.UUID

	conditions     map[uuid.UUID]ledger.PaymentCondition
	conditionOrder []uuid.UUID

	sales     map[uuid.UUID]ledger.Sale
	saleOrder []uuid.UUID

	receivables []ledger.Receivable

	entries []ledger.JournalEntry
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		accounts:   make(map[uuid.UUID]ledger.Account),
		conditions: make(map[uuid.UUID]ledger.PaymentCondition),
		sales:      make(map[uuid.UUID]ledger.Sale),
	}
}

// Reset drops all data.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = map[uuid.UUID]ledger.Account{}
	s.accountOrder = nil
	s.conditions = map[uuid.UUID]ledger.PaymentCondition{}
	s.conditionOrder = nil
	s.sales = map[uuid.UUID]ledger.Sale{}
	s.saleOrder = nil
	s.receivables = nil
	s.entries = nil
}

// Ready always succeeds for the in-memory store.
func (s *Store) Ready(context.Context) error { return nil }

// --- accounts ---

func (s *Store) ListAccounts(_ context.Context) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Account, 0, len(s.accountOrder))
	for _, id := range s.accountOrder {
		out = append(out, cloneAccount(s.accounts[id]))
	}
	return out, nil
}

func (s *Store) GetAccount(_ context.Context, id uuid.UUID) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return ledger.Account{}, errs.ErrNotFound
	}
	return cloneAccount(a), nil
}

func (s *Store) ChildrenOf(_ context.Context, parentID *uuid.UUID) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ledger.Account
	for _, id := range s.accountOrder {
		a := s.accounts[id]
		switch {
		case parentID == nil && a.ParentID == nil:
		case parentID != nil && a.ParentID != nil && *a.ParentID == *parentID:
		default:
			continue
		}
		out = append(out, cloneAccount(a))
	}
	return out, nil
}

// AccountsByIDs returns the accounts found among ids; unknown ids are skipped.
func (s *Store) AccountsByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]ledger.Account, len(ids))
	for _, id := range ids {
		if a, ok := s.accounts[id]; ok {
			out[id] = cloneAccount(a)
		}
	}
	return out, nil
}

func (s *Store) AccountHasEntries(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		for _, ln := range e.Lines {
			if ln.AccountID == id {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *Store) CreateAccount(_ context.Context, a ledger.Account) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; ok {
		return ledger.Account{}, errs.ErrConflict
	}
	if err := s.codeTaken(a); err != nil {
		return ledger.Account{}, err
	}
	s.accounts[a.ID] = cloneAccount(a)
	s.accountOrder = append(s.accountOrder, a.ID)
	return cloneAccount(a), nil
}

func (s *Store) UpdateAccounts(_ context.Context, accounts []ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range accounts {
		if _, ok := s.accounts[a.ID]; !ok {
			return errs.ErrNotFound
		}
	}
	// Check code uniqueness against the state after the whole batch applies.
	next := make(map[uuid.UUID]ledger.Account, len(s.accounts))
	for id, a := range s.accounts {
		next[id] = a
	}
	for _, a := range accounts {
		next[a.ID] = a
	}
	codes := make(map[string]uuid.UUID, len(next))
	for id, a := range next {
		if other, ok := codes[a.Code]; ok && other != id {
			return errs.ErrConflict
		}
		codes[a.Code] = id
	}
	for _, a := range accounts {
		s.accounts[a.ID] = cloneAccount(a)
	}
	return nil
}

func (s *Store) DeleteAccount(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return errs.ErrNotFound
	}
	for _, a := range s.accounts {
		if a.ParentID != nil && *a.ParentID == id {
			return errs.ErrHasChildren
		}
	}
	delete(s.accounts, id)
	s.accountOrder = removeID(s.accountOrder, id)
	return nil
}

func (s *Store) codeTaken(a ledger.Account) error {
	for _, other := range s.accounts {
		if other.Code == a.Code {
			return errs.ErrConflict
		}
	}
	return nil
}

// --- payment conditions ---

func (s *Store) ListConditions(_ context.Context, activeOnly bool) ([]ledger.PaymentCondition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.PaymentCondition, 0, len(s.conditionOrder))
	for _, id := range s.conditionOrder {
		c := s.conditions[id]
		if activeOnly && !c.Active {
			continue
		}
		out = append(out, cloneCondition(c))
	}
	return out, nil
}

func (s *Store) GetCondition(_ context.Context, id uuid.UUID) (ledger.PaymentCondition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conditions[id]
	if !ok {
		return ledger.PaymentCondition{}, errs.ErrNotFound
	}
	return cloneCondition(c), nil
}

func (s *Store) CreateCondition(_ context.Context, c ledger.PaymentCondition) (ledger.PaymentCondition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conditions[c.ID]; ok {
		return ledger.PaymentCondition{}, errs.ErrConflict
	}
	s.conditions[c.ID] = cloneCondition(c)
	s.conditionOrder = append(s.conditionOrder, c.ID)
	return cloneCondition(c), nil
}

func (s *Store) UpdateCondition(_ context.Context, c ledger.PaymentCondition) (ledger.PaymentCondition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conditions[c.ID]; !ok {
		return ledger.PaymentCondition{}, errs.ErrNotFound
	}
	s.conditions[c.ID] = cloneCondition(c)
	return cloneCondition(c), nil
}

func (s *Store) DeleteCondition(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conditions[id]; !ok {
		return errs.ErrNotFound
	}
	delete(s.conditions, id)
	s.conditionOrder = removeID(s.conditionOrder, id)
	return nil
}

// ConditionInUse reports whether any sale references the condition.
func (s *Store) ConditionInUse(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sale := range s.sales {
		if sale.ConditionID == id {
			return true, nil
		}
	}
	return false, nil
}

// --- sales ---

func (s *Store) CreateSale(_ context.Context, sale ledger.Sale) (ledger.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sales[sale.ID]; ok {
		return ledger.Sale{}, errs.ErrConflict
	}
	s.sales[sale.ID] = cloneSale(sale)
	s.saleOrder = append(s.saleOrder, sale.ID)
	return cloneSale(sale), nil
}

func (s *Store) GetSale(_ context.Context, id uuid.UUID) (ledger.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sale, ok := s.sales[id]
	if !ok {
		return ledger.Sale{}, errs.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) ListSales(_ context.Context) ([]ledger.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Sale, 0, len(s.saleOrder))
	for _, id := range s.saleOrder {
		out = append(out, cloneSale(s.sales[id]))
	}
	return out, nil
}

// UpdateSale replaces the sale only while its stored status still equals from.
func (s *Store) UpdateSale(_ context.Context, sale ledger.Sale, from ledger.SaleStatus) (ledger.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.sales[sale.ID]
	if !ok {
		return ledger.Sale{}, errs.ErrNotFound
	}
	if cur.Status != from {
		return ledger.Sale{}, errs.ErrConflict
	}
	s.sales[sale.ID] = cloneSale(sale)
	return cloneSale(sale), nil
}

// --- receivables ---

// ListReceivables returns receivables in invoicing order, optionally for one sale.
func (s *Store) ListReceivables(_ context.Context, saleID *uuid.UUID) ([]ledger.Receivable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Receivable, 0, len(s.receivables))
	for _, r := range s.receivables {
		if saleID != nil && r.SourceSaleID != *saleID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// InvoiceSale stores the receivables and flips the sale from approved to
// invoiced in one step. A sale no longer approved yields ErrConflict.
func (s *Store) InvoiceSale(_ context.Context, sale ledger.Sale, recs []ledger.Receivable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.sales[sale.ID]
	if !ok {
		return errs.ErrNotFound
	}
	if cur.Status != ledger.SaleStatusApproved {
		return errs.ErrConflict
	}
	cur.Status = ledger.SaleStatusInvoiced
	cur.UpdatedAt = sale.UpdatedAt
	s.sales[sale.ID] = cur
	s.receivables = append(s.receivables, recs...)
	return nil
}

// --- journal ---

func (s *Store) CreateJournalEntry(_ context.Context, e ledger.JournalEntry) (ledger.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ln := range e.Lines {
		if _, ok := s.accounts[ln.AccountID]; !ok {
			return ledger.JournalEntry{}, errs.ErrNotFound
		}
	}
	e = cloneEntry(e)
	s.entries = append(s.entries, e)
	return cloneEntry(e), nil
}

// ListEntries returns entries ordered by date, then insertion.
func (s *Store) ListEntries(_ context.Context) ([]ledger.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.JournalEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, cloneEntry(e))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func cloneAccount(a ledger.Account) ledger.Account {
	if a.ParentID != nil {
		p := *a.ParentID
		a.ParentID = &p
	}
	a.Metadata = a.Metadata.Clone()
	return a
}

func cloneCondition(c ledger.PaymentCondition) ledger.PaymentCondition {
	c.Installments = append([]ledger.Installment(nil), c.Installments...)
	return c
}

func cloneSale(sale ledger.Sale) ledger.Sale {
	sale.Items = append([]ledger.SaleItem(nil), sale.Items...)
	return sale
}

func cloneEntry(e ledger.JournalEntry) ledger.JournalEntry {
	e.Lines = append([]ledger.JournalLine(nil), e.Lines...)
	return e
}

func removeID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}
