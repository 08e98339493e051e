// Package sales keeps the minimal sale lifecycle that feeds invoicing:
// draft, approved, invoiced or cancelled.
package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tinoosan/bizledger/internal/errs"
	"github.com/tinoosan/bizledger/internal/ledger"
)

type Repo interface {
	GetSale(ctx context.Context, id uuid.UUID) (ledger.Sale, error)
	ListSales(ctx context.Context) ([]ledger.Sale, error)
	GetCondition(ctx context.Context, id uuid.UUID) (ledger.PaymentCondition, error)
}

type Writer interface {
	CreateSale(ctx context.Context, s ledger.Sale) (ledger.Sale, error)
	// UpdateSale stores s if the persisted status still equals from, else ErrConflict.
	UpdateSale(ctx context.Context, s ledger.Sale, from ledger.SaleStatus) (ledger.Sale, error)
}

type Service interface {
	Create(ctx context.Context, s ledger.Sale) (ledger.Sale, error)
	Get(ctx context.Context, id uuid.UUID) (ledger.Sale, error)
	List(ctx context.Context, status ledger.SaleStatus) ([]ledger.Sale, error)
	Approve(ctx context.Context, id uuid.UUID) (ledger.Sale, error)
	Cancel(ctx context.Context, id uuid.UUID) (ledger.Sale, error)
}

type service struct {
	repo     Repo
	writer   Writer
	currency string
	log      *slog.Logger
}

// New builds the sales service. Sales without a currency get defaultCurrency.
func New(repo Repo, writer Writer, defaultCurrency string, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}
	return &service{repo: repo, writer: writer, currency: strings.ToUpper(defaultCurrency), log: logger}
}

// transitions lists the statuses each status may move to.
var transitions = map[ledger.SaleStatus][]ledger.SaleStatus{
	ledger.SaleStatusDraft:    {ledger.SaleStatusApproved, ledger.SaleStatusCancelled},
	ledger.SaleStatusApproved: {ledger.SaleStatusInvoiced, ledger.SaleStatusCancelled},
}

// CanTransition reports whether a sale may move from one status to another.
func CanTransition(from, to ledger.SaleStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s *service) Create(ctx context.Context, sale ledger.Sale) (ledger.Sale, error) {
	sale.CustomerName = strings.TrimSpace(sale.CustomerName)
	sale.Currency = strings.ToUpper(strings.TrimSpace(sale.Currency))
	if sale.Currency == "" {
		sale.Currency = s.currency
	}
	if err := validate(sale); err != nil {
		return ledger.Sale{}, err
	}
	c, err := s.repo.GetCondition(ctx, sale.ConditionID)
	if errors.Is(err, errs.ErrNotFound) {
		return ledger.Sale{}, errs.ErrMissingCondition
	}
	if err != nil {
		return ledger.Sale{}, err
	}
	if !c.Active {
		return ledger.Sale{}, fmt.Errorf("%w: condition is inactive", errs.ErrMissingCondition)
	}
	now := time.Now().UTC()
	sale.ID = uuid.New()
	sale.Status = ledger.SaleStatusDraft
	sale.Items = append([]ledger.SaleItem(nil), sale.Items...)
	sale.CreatedAt, sale.UpdatedAt = now, now
	created, err := s.writer.CreateSale(ctx, sale)
	if err != nil {
		return ledger.Sale{}, err
	}
	s.log.Info("sale created", "sale_id", created.ID, "total", created.Total().StringFixed(2), "currency", created.Currency)
	return created, nil
}

func validate(sale ledger.Sale) error {
	if sale.CustomerName == "" {
		return fmt.Errorf("%w: customer_name is required", errs.ErrInvalid)
	}
	if sale.Date.IsZero() {
		return fmt.Errorf("%w: date is required", errs.ErrInvalid)
	}
	if len(sale.Currency) != 3 {
		return fmt.Errorf("%w: currency must be a 3-letter code", errs.ErrInvalid)
	}
	if sale.ConditionID == uuid.Nil {
		return errs.ErrMissingCondition
	}
	if len(sale.Items) == 0 {
		return errs.ErrNoItems
	}
	for i, it := range sale.Items {
		if !it.Quantity.IsPositive() {
			return fmt.Errorf("%w: items[%d]: quantity must be > 0", errs.ErrInvalid, i)
		}
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: items[%d]: unit_price must be >= 0", errs.ErrInvalid, i)
		}
	}
	if !sale.Total().IsPositive() {
		return fmt.Errorf("%w: total must be > 0", errs.ErrNoItems)
	}
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (ledger.Sale, error) {
	if id == uuid.Nil {
		return ledger.Sale{}, errs.ErrInvalid
	}
	return s.repo.GetSale(ctx, id)
}

// List returns all sales, or only those in status when it is non-empty.
func (s *service) List(ctx context.Context, status ledger.SaleStatus) ([]ledger.Sale, error) {
	all, err := s.repo.ListSales(ctx)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return all, nil
	}
	out := make([]ledger.Sale, 0, len(all))
	for _, sale := range all {
		if sale.Status == status {
			out = append(out, sale)
		}
	}
	return out, nil
}

func (s *service) Approve(ctx context.Context, id uuid.UUID) (ledger.Sale, error) {
	return s.move(ctx, id, ledger.SaleStatusApproved)
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID) (ledger.Sale, error) {
	return s.move(ctx, id, ledger.SaleStatusCancelled)
}

func (s *service) move(ctx context.Context, id uuid.UUID, to ledger.SaleStatus) (ledger.Sale, error) {
	sale, err := s.Get(ctx, id)
	if err != nil {
		return ledger.Sale{}, err
	}
	from := sale.Status
	if !CanTransition(from, to) {
		return ledger.Sale{}, fmt.Errorf("%w: %s -> %s", errs.ErrInvalidTransition, from, to)
	}
	sale.Status = to
	sale.UpdatedAt = time.Now().UTC()
	updated, err := s.writer.UpdateSale(ctx, sale, from)
	if err != nil {
		return ledger.Sale{}, err
	}
	s.log.Info("sale status changed", "sale_id", id, "from", from, "to", to)
	return updated, nil
}
