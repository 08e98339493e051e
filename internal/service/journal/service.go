// Package journal records ledger entries against posting accounts of the chart.
// Entries are not required to balance.
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/bizledger/internal/errs"
	"github.com/tinoosan/bizledger/internal/ledger"
)

// Repo defines read operations needed by the service.
type Repo interface {
	AccountsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]ledger.Account, error)
	ListEntries(ctx context.Context) ([]ledger.JournalEntry, error)
}

// Writer defines write operations needed by the service.
type Writer interface {
	CreateJournalEntry(ctx context.Context, entry ledger.JournalEntry) (ledger.JournalEntry, error)
}

// Service exposes validation and creation of journal entries and balances.
type Service interface {
	ValidateEntry(ctx context.Context, e ledger.JournalEntry) error
	CreateEntry(ctx context.Context, e ledger.JournalEntry) (ledger.JournalEntry, error)
	ListEntries(ctx context.Context) ([]ledger.JournalEntry, error)
	AccountBalance(ctx context.Context, accountID uuid.UUID, asOf *time.Time) (money.Amount, error)
}

type service struct {
	repo     Repo
	writer   Writer
	currency string
	log      *slog.Logger
}

// New builds the journal service. defaultCurrency is used for balances of accounts without lines.
func New(repo Repo, writer Writer, defaultCurrency string, logger *slog.Logger) Service {
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &service{repo: repo, writer: writer, currency: strings.ToUpper(defaultCurrency), log: logger}
}

func (s *service) ValidateEntry(ctx context.Context, entry ledger.JournalEntry) error {
	if entry.Currency == "" {
		return fmt.Errorf("%w: currency is required", errs.ErrInvalid)
	}
	if entry.Date.IsZero() {
		return fmt.Errorf("%w: date is required", errs.ErrInvalid)
	}
	if len(entry.Lines) == 0 {
		return fmt.Errorf("%w: at least 1 line", errs.ErrInvalid)
	}
	ids := make([]uuid.UUID, 0, len(entry.Lines))
	for i, line := range entry.Lines {
		if line.AccountID == uuid.Nil {
			return fieldErr(i, "account_id required")
		}
		units, ok := line.Amount.MinorUnits()
		if !ok || units <= 0 {
			return fieldErr(i, "amount must be > 0")
		}
		if !strings.EqualFold(line.Amount.Curr().Code(), entry.Currency) {
			return fieldErr(i, "amount currency mismatch")
		}
		if line.Side != ledger.SideDebit && line.Side != ledger.SideCredit {
			return fieldErr(i, "side must be debit or credit")
		}
		ids = append(ids, line.AccountID)
	}

	accMap, err := s.repo.AccountsByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for i, line := range entry.Lines {
		acc, ok := accMap[line.AccountID]
		if !ok {
			return fmt.Errorf("%w: line[%d]: account not found", errs.ErrNotPostable, i)
		}
		if !acc.Postable() {
			return fmt.Errorf("%w: line[%d]: account %s is not a postable account", errs.ErrNotPostable, i, acc.Code)
		}
	}
	return nil
}

func (s *service) CreateEntry(ctx context.Context, entry ledger.JournalEntry) (ledger.JournalEntry, error) {
	entry.Currency = strings.ToUpper(entry.Currency)
	if err := s.ValidateEntry(ctx, entry); err != nil {
		return ledger.JournalEntry{}, err
	}
	entryID := uuid.New()
	lines := make([]ledger.JournalLine, len(entry.Lines))
	for i, ln := range entry.Lines {
		ln.ID = uuid.New()
		ln.EntryID = entryID
		lines[i] = ln
	}
	entry = ledger.JournalEntry{
		ID:       entryID,
		Date:     entry.Date,
		Currency: entry.Currency,
		Memo:     entry.Memo,
		Lines:    lines,
	}
	created, err := s.writer.CreateJournalEntry(ctx, entry)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	s.log.Info("journal entry posted", "entry_id", created.ID, "lines", len(created.Lines))
	return created, nil
}

func (s *service) ListEntries(ctx context.Context) ([]ledger.JournalEntry, error) {
	return s.repo.ListEntries(ctx)
}

// AccountBalance returns debits minus credits for one account up to asOf (inclusive).
func (s *service) AccountBalance(ctx context.Context, accountID uuid.UUID, asOf *time.Time) (money.Amount, error) {
	zero := money.MustNewAmount(s.currency, 0, 0)
	if accountID == uuid.Nil {
		return zero, errs.ErrInvalid
	}
	accs, err := s.repo.AccountsByIDs(ctx, []uuid.UUID{accountID})
	if err != nil {
		return zero, err
	}
	if _, ok := accs[accountID]; !ok {
		return zero, errs.ErrNotFound
	}
	entries, err := s.repo.ListEntries(ctx)
	if err != nil {
		return zero, err
	}
	var net *money.Amount
	for _, e := range entries {
		if asOf != nil && e.Date.After(*asOf) {
			continue
		}
		for _, ln := range e.Lines {
			if ln.AccountID != accountID {
				continue
			}
			if net == nil {
				z, err := money.NewAmountFromMinorUnits(ln.Amount.Curr().Code(), 0)
				if err != nil {
					return zero, err
				}
				net = &z
			}
			var v money.Amount
			if ln.Side == ledger.SideDebit {
				v, err = net.Add(ln.Amount)
			} else {
				v, err = net.Sub(ln.Amount)
			}
			if err != nil {
				return zero, fmt.Errorf("%w: account %s has lines in %s and %s", errs.ErrUnprocessable,
					accountID, net.Curr().Code(), ln.Amount.Curr().Code())
			}
			*net = v
		}
	}
	if net == nil {
		return zero, nil
	}
	return *net, nil
}

func fieldErr(i int, msg string) error {
	return fmt.Errorf("%w: line[%d]: %s", errs.ErrInvalid, i, msg)
}
