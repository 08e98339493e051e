// Package schedule turns a sale total and a payment condition into dated
// receivables and records them when a sale is invoiced.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tinoosan/bizledger/internal/errs"
	"github.com/tinoosan/bizledger/internal/ledger"
	"github.com/tinoosan/bizledger/internal/service/condition"
)

type Repo interface {
	GetSale(ctx context.Context, id uuid.UUID) (ledger.Sale, error)
	GetCondition(ctx context.Context, id uuid.UUID) (ledger.PaymentCondition, error)
	ListReceivables(ctx context.Context, saleID *uuid.UUID) ([]ledger.Receivable, error)
}

type Writer interface {
	// InvoiceSale stores recs and moves the sale from approved to invoiced atomically.
	InvoiceSale(ctx context.Context, sale ledger.Sale, recs []ledger.Receivable) error
}

type Service interface {
	Preview(ctx context.Context, total decimal.Decimal, currency string, saleDate time.Time, conditionID uuid.UUID) ([]ledger.Receivable, error)
	InvoiceSale(ctx context.Context, saleID uuid.UUID) ([]ledger.Receivable, error)
	ListReceivables(ctx context.Context, saleID *uuid.UUID) ([]ledger.Receivable, error)
}

type service struct {
	repo   Repo
	writer Writer
	log    *slog.Logger
	now    func() time.Time
}

func New(repo Repo, writer Writer, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{repo: repo, writer: writer, log: logger, now: func() time.Time { return time.Now().UTC() }}
}

// GenerateReceivables splits total across the installments of c in
// ascending number. Each amount is total * pct / sum(pct) rounded half-up to
// cents; the last installment takes whatever is left so the amounts add up
// to total exactly. Receivables carry the template's installment numbers. Due dates are saleDate plus the offset in calendar days.
func GenerateReceivables(total decimal.Decimal, currency string, saleDate time.Time, c ledger.PaymentCondition, saleID uuid.UUID) ([]ledger.Receivable, error) {
	if err := condition.ValidateInstallments(c.Installments); err != nil {
		return nil, err
	}
	total = total.Round(2)
	if !total.IsPositive() {
		return nil, fmt.Errorf("%w: total must be > 0", errs.ErrNoItems)
	}
	plan := append([]ledger.Installment(nil), c.Installments...)
	sort.SliceStable(plan, func(i, j int) bool { return plan[i].Number < plan[j].Number })

	day := time.Date(saleDate.Year(), saleDate.Month(), saleDate.Day(), 0, 0, 0, 0, time.UTC)
	currency = strings.ToUpper(strings.TrimSpace(currency))
	weight := decimal.Zero
	for _, in := range plan {
		weight = weight.Add(in.Percentage)
	}
	out := make([]ledger.Receivable, 0, len(plan))
	allocated := decimal.Zero
	for i, in := range plan {
		amount := total.Mul(in.Percentage).Div(weight).Round(2)
		if i == len(plan)-1 {
			amount = total.Sub(allocated)
			if amount.IsNegative() {
				return nil, fmt.Errorf("%w: installment %d would be %s", errs.ErrPercentageMismatch, in.Number, amount.StringFixed(2))
			}
		}
		allocated = allocated.Add(amount)
		out = append(out, ledger.Receivable{
			ID:                uuid.New(),
			SourceSaleID:      saleID,
			ConditionID:       c.ID,
			Amount:            amount,
			Currency:          currency,
			DueDate:           day.AddDate(0, 0, in.OffsetDays),
			InstallmentNumber: in.Number,
			TotalInstallments: len(plan),
			Status:            ledger.ReceivableStatusPending,
		})
	}
	return out, nil
}

func (s *service) Preview(ctx context.Context, total decimal.Decimal, currency string, saleDate time.Time, conditionID uuid.UUID) ([]ledger.Receivable, error) {
	c, err := s.condition(ctx, conditionID)
	if err != nil {
		return nil, err
	}
	return GenerateReceivables(total, currency, saleDate, c, uuid.Nil)
}

// InvoiceSale materializes the receivables of an approved sale using the
// condition as it stands now. Two concurrent calls for the same sale cannot
// both succeed; the loser gets ErrConflict.
func (s *service) InvoiceSale(ctx context.Context, saleID uuid.UUID) ([]ledger.Receivable, error) {
	recs, err := s.invoice(ctx, saleID)
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, errs.ErrConflict):
		outcome = "conflict"
	default:
		outcome = "rejected"
	}
	salesInvoiced.WithLabelValues(outcome).Inc()
	return recs, err
}

func (s *service) invoice(ctx context.Context, saleID uuid.UUID) ([]ledger.Receivable, error) {
	if saleID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.Status != ledger.SaleStatusApproved {
		return nil, fmt.Errorf("%w: sale is %s", errs.ErrInvalidTransition, sale.Status)
	}
	if len(sale.Items) == 0 {
		return nil, fmt.Errorf("%w: sale has no items", errs.ErrNoItems)
	}
	c, err := s.condition(ctx, sale.ConditionID)
	if err != nil {
		return nil, err
	}
	recs, err := GenerateReceivables(sale.Total(), sale.Currency, sale.Date, c, sale.ID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range recs {
		recs[i].CreatedAt = now
	}
	sale.Status = ledger.SaleStatusInvoiced
	sale.UpdatedAt = now
	if err := s.writer.InvoiceSale(ctx, sale, recs); err != nil {
		return nil, err
	}
	receivablesGenerated.Add(float64(len(recs)))
	s.log.Info("sale invoiced", "sale_id", sale.ID, "condition_id", c.ID, "receivables", len(recs), "total", sale.Total().StringFixed(2))
	return recs, nil
}

func (s *service) ListReceivables(ctx context.Context, saleID *uuid.UUID) ([]ledger.Receivable, error) {
	return s.repo.ListReceivables(ctx, saleID)
}

func (s *service) condition(ctx context.Context, id uuid.UUID) (ledger.PaymentCondition, error) {
	if id == uuid.Nil {
		return ledger.PaymentCondition{}, errs.ErrMissingCondition
	}
	c, err := s.repo.GetCondition(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return ledger.PaymentCondition{}, errs.ErrMissingCondition
	}
	return c, err
}
