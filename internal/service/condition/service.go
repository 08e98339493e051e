// Package condition owns payment condition templates: the installment plans
// (offset in days, percentage of the total) that sales refer to.
package condition

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tinoosan/bizledger/internal/errs"
	"github.com/tinoosan/bizledger/internal/ledger"
)

// DefaultInterval is the spacing used by DistributeEvenly.
const DefaultInterval = 30

var (
	hundred   = decimal.NewFromInt(100)
	tolerance = decimal.RequireFromString("0.01")
)

type Repo interface {
	ListConditions(ctx context.Context, activeOnly bool) ([]ledger.PaymentCondition, error)
	GetCondition(ctx context.Context, id uuid.UUID) (ledger.PaymentCondition, error)
	ConditionInUse(ctx context.Context, id uuid.UUID) (bool, error)
}

type Writer interface {
	CreateCondition(ctx context.Context, c ledger.PaymentCondition) (ledger.PaymentCondition, error)
	UpdateCondition(ctx context.Context, c ledger.PaymentCondition) (ledger.PaymentCondition, error)
	DeleteCondition(ctx context.Context, id uuid.UUID) error
}

type Service interface {
	Create(ctx context.Context, c ledger.PaymentCondition) (ledger.PaymentCondition, error)
	Get(ctx context.Context, id uuid.UUID) (ledger.PaymentCondition, error)
	List(ctx context.Context, activeOnly bool) ([]ledger.PaymentCondition, error)
	Update(ctx context.Context, c ledger.PaymentCondition) (ledger.PaymentCondition, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo   Repo
	writer Writer
	log    *slog.Logger
}

func New(repo Repo, writer Writer, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{repo: repo, writer: writer, log: logger}
}

// Validate checks a template: a name plus a well-formed installment plan.
func Validate(c ledger.PaymentCondition) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name is required", errs.ErrInvalid)
	}
	return ValidateInstallments(c.Installments)
}

// ValidateInstallments requires at least one installment, unique numbers
// from 1, non-negative offsets and positive percentages summing to 100
// within 0.01.
func ValidateInstallments(plan []ledger.Installment) error {
	if len(plan) == 0 {
		return fmt.Errorf("%w: at least one installment", errs.ErrInvalid)
	}
	seen := make(map[int]struct{}, len(plan))
	sum := decimal.Zero
	for i, in := range plan {
		if in.Number < 1 {
			return fmt.Errorf("%w: installments[%d]: number must be >= 1", errs.ErrInvalid, i)
		}
		if _, dup := seen[in.Number]; dup {
			return fmt.Errorf("%w: installments[%d]: duplicate number %d", errs.ErrInvalid, i, in.Number)
		}
		seen[in.Number] = struct{}{}
		if in.OffsetDays < 0 {
			return fmt.Errorf("%w: installments[%d]: offset_days must be >= 0", errs.ErrInvalid, i)
		}
		if !in.Percentage.IsPositive() {
			return fmt.Errorf("%w: installments[%d]: percentage must be > 0", errs.ErrInvalid, i)
		}
		sum = sum.Add(in.Percentage)
	}
	if sum.Sub(hundred).Abs().GreaterThan(tolerance) {
		return fmt.Errorf("%w: installments sum to %s%%", errs.ErrPercentageMismatch, sum.String())
	}
	return nil
}

// DistributeEvenly splits 100% over n installments DefaultInterval days apart.
func DistributeEvenly(n int) ([]ledger.Installment, error) {
	return DistributeEvery(n, DefaultInterval)
}

// DistributeEvery splits 100% over n installments intervalDays apart, the
// first due on the sale date. Every installment but the last gets 100/n
// rounded to cents; the last takes the remainder so the sum is exactly 100.
func DistributeEvery(n, intervalDays int) ([]ledger.Installment, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: installment count must be >= 1", errs.ErrInvalid)
	}
	if intervalDays < 0 {
		return nil, fmt.Errorf("%w: interval must be >= 0", errs.ErrInvalid)
	}
	share := hundred.Div(decimal.NewFromInt(int64(n))).Round(2)
	out := make([]ledger.Installment, n)
	given := decimal.Zero
	for i := 0; i < n; i++ {
		pct := share
		if i == n-1 {
			pct = hundred.Sub(given)
			if !pct.IsPositive() {
				return nil, fmt.Errorf("%w: too many installments to split 100%% in cents", errs.ErrInvalid)
			}
		}
		given = given.Add(pct)
		out[i] = ledger.Installment{Number: i + 1, OffsetDays: i * intervalDays, Percentage: pct}
	}
	return out, nil
}

func (s *service) Create(ctx context.Context, c ledger.PaymentCondition) (ledger.PaymentCondition, error) {
	c = normalize(c)
	if err := Validate(c); err != nil {
		return ledger.PaymentCondition{}, err
	}
	now := time.Now().UTC()
	c.ID = uuid.New()
	c.CreatedAt, c.UpdatedAt = now, now
	created, err := s.writer.CreateCondition(ctx, c)
	if err != nil {
		return ledger.PaymentCondition{}, err
	}
	s.log.Info("payment condition created", "condition_id", created.ID, "installments", len(created.Installments))
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (ledger.PaymentCondition, error) {
	if id == uuid.Nil {
		return ledger.PaymentCondition{}, errs.ErrInvalid
	}
	return s.repo.GetCondition(ctx, id)
}

func (s *service) List(ctx context.Context, activeOnly bool) ([]ledger.PaymentCondition, error) {
	return s.repo.ListConditions(ctx, activeOnly)
}

// Update replaces name, description, active flag and installments. Receivables
// already generated from the condition are not touched.
func (s *service) Update(ctx context.Context, c ledger.PaymentCondition) (ledger.PaymentCondition, error) {
	if c.ID == uuid.Nil {
		return ledger.PaymentCondition{}, errs.ErrInvalid
	}
	current, err := s.repo.GetCondition(ctx, c.ID)
	if err != nil {
		return ledger.PaymentCondition{}, err
	}
	c = normalize(c)
	if err := Validate(c); err != nil {
		return ledger.PaymentCondition{}, err
	}
	c.CreatedAt = current.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	return s.writer.UpdateCondition(ctx, c)
}

// Delete removes a condition no sale refers to.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return errs.ErrInvalid
	}
	if _, err := s.repo.GetCondition(ctx, id); err != nil {
		return err
	}
	used, err := s.repo.ConditionInUse(ctx, id)
	if err != nil {
		return err
	}
	if used {
		return errs.ErrInUse
	}
	return s.writer.DeleteCondition(ctx, id)
}

// normalize trims text fields and orders installments by number.
func normalize(c ledger.PaymentCondition) ledger.PaymentCondition {
	c.Name = strings.TrimSpace(c.Name)
	c.Description = strings.TrimSpace(c.Description)
	c.Installments = append([]ledger.Installment(nil), c.Installments...)
	sort.SliceStable(c.Installments, func(i, j int) bool { return c.Installments[i].Number < c.Installments[j].Number })
	return c
}
