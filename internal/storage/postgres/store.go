// Package postgres provides a pgx-backed store that satisfies the repository
// and writer interfaces of every service. The schema lives under db/migrations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tinoosan/bizledger/internal/errs"
	"github.com/tinoosan/bizledger/internal/ledger"
	"github.com/tinoosan/bizledger/internal/meta"
)

// Store holds a pgx connection pool. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// Migrate applies the given schema script.
func (s *Store) Migrate(ctx context.Context, script string) error {
	_, err := s.pool.Exec(ctx, script)
	return err
}

// inTx runs fn inside a transaction, committing on success.
func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	return mapErr(tx.Commit(ctx))
}

// mapErr turns constraint violations into domain errors.
func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", errs.ErrConflict, pgErr.ConstraintName)
		case "23503":
			if strings.HasPrefix(pgErr.ConstraintName, "accounts_parent") {
				return errs.ErrHasChildren
			}
			return fmt.Errorf("%w: %s", errs.ErrInUse, pgErr.ConstraintName)
		}
	}
	return err
}

// --- accounts ---

const accountCols = `id, code, name, type, subtype, parent_id, nature, depth, active, metadata, created_at, updated_at`

func scanAccount(row pgx.Row) (ledger.Account, error) {
	var a ledger.Account
	var md []byte
	if err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.Subtype, &a.ParentID, &a.Nature, &a.Depth, &a.Active, &md, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return ledger.Account{}, err
	}
	a.Metadata = meta.New(nil)
	if len(md) > 0 {
		if err := a.Metadata.UnmarshalJSON(md); err != nil {
			return ledger.Account{}, err
		}
	}
	return a, nil
}

func (s *Store) queryAccounts(ctx context.Context, sql string, args ...any) ([]ledger.Account, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	return s.queryAccounts(ctx, `select `+accountCols+` from accounts order by seq`)
}

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (ledger.Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx, `select `+accountCols+` from accounts where id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Account{}, errs.ErrNotFound
	}
	return a, err
}

func (s *Store) ChildrenOf(ctx context.Context, parentID *uuid.UUID) ([]ledger.Account, error) {
	if parentID == nil {
		return s.queryAccounts(ctx, `select `+accountCols+` from accounts where parent_id is null order by seq`)
	}
	return s.queryAccounts(ctx, `select `+accountCols+` from accounts where parent_id = $1 order by seq`, *parentID)
}

func (s *Store) AccountsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]ledger.Account, error) {
	out := make(map[uuid.UUID]ledger.Account, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	list, err := s.queryAccounts(ctx, `select `+accountCols+` from accounts where id = any($1)`, ids)
	if err != nil {
		return nil, err
	}
	for _, a := range list {
		out[a.ID] = a
	}
	return out, nil
}

func (s *Store) AccountHasEntries(ctx context.Context, id uuid.UUID) (bool, error) {
	var used bool
	err := s.pool.QueryRow(ctx, `select exists (select 1 from entry_lines where account_id = $1)`, id).Scan(&used)
	return used, err
}

func (s *Store) CreateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	md, err := a.Metadata.MarshalJSON()
	if err != nil {
		return ledger.Account{}, err
	}
	_, err = s.pool.Exec(ctx, `
		insert into accounts (id, code, name, type, subtype, parent_id, nature, depth, active, metadata, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, a.ID, a.Code, a.Name, a.Type, a.Subtype, a.ParentID, a.Nature, a.Depth, a.Active, md, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return ledger.Account{}, mapErr(err)
	}
	return a, nil
}

// UpdateAccounts rewrites all given rows in one transaction. The code
// uniqueness constraint is deferred so a moved subtree may pass through
// transient duplicates.
func (s *Store) UpdateAccounts(ctx context.Context, accounts []ledger.Account) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		for _, a := range accounts {
			md, err := a.Metadata.MarshalJSON()
			if err != nil {
				return err
			}
			ct, err := tx.Exec(ctx, `
				update accounts
				set code=$1, name=$2, type=$3, subtype=$4, parent_id=$5, nature=$6, depth=$7, active=$8, metadata=$9, updated_at=$10
				where id=$11
			`, a.Code, a.Name, a.Type, a.Subtype, a.ParentID, a.Nature, a.Depth, a.Active, md, a.UpdatedAt, a.ID)
			if err != nil {
				return mapErr(err)
			}
			if ct.RowsAffected() == 0 {
				return errs.ErrNotFound
			}
		}
		return nil
	})
}

func (s *Store) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	ct, err := s.pool.Exec(ctx, `delete from accounts where id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// --- payment conditions ---

const conditionCols = `id, name, description, active, installments, created_at, updated_at`

func scanCondition(row pgx.Row) (ledger.PaymentCondition, error) {
	var c ledger.PaymentCondition
	var raw []byte
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Active, &raw, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return ledger.PaymentCondition{}, err
	}
	plan, err := decodeInstallments(raw)
	if err != nil {
		return ledger.PaymentCondition{}, err
	}
	c.Installments = plan
	return c, nil
}

func (s *Store) ListConditions(ctx context.Context, activeOnly bool) ([]ledger.PaymentCondition, error) {
	rows, err := s.pool.Query(ctx, `select `+conditionCols+` from payment_conditions where active or not $1 order by seq`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.PaymentCondition, 0)
	for rows.Next() {
		c, err := scanCondition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetCondition(ctx context.Context, id uuid.UUID) (ledger.PaymentCondition, error) {
	c, err := scanCondition(s.pool.QueryRow(ctx, `select `+conditionCols+` from payment_conditions where id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.PaymentCondition{}, errs.ErrNotFound
	}
	return c, err
}

func (s *Store) ConditionInUse(ctx context.Context, id uuid.UUID) (bool, error) {
	var used bool
	err := s.pool.QueryRow(ctx, `select exists (select 1 from sales where condition_id = $1)`, id).Scan(&used)
	return used, err
}

func (s *Store) CreateCondition(ctx context.Context, c ledger.PaymentCondition) (ledger.PaymentCondition, error) {
	raw, err := encodeInstallments(c.Installments)
	if err != nil {
		return ledger.PaymentCondition{}, err
	}
	_, err = s.pool.Exec(ctx, `
		insert into payment_conditions (id, name, description, active, installments, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, c.ID, c.Name, c.Description, c.Active, raw, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return ledger.PaymentCondition{}, mapErr(err)
	}
	return c, nil
}

func (s *Store) UpdateCondition(ctx context.Context, c ledger.PaymentCondition) (ledger.PaymentCondition, error) {
	raw, err := encodeInstallments(c.Installments)
	if err != nil {
		return ledger.PaymentCondition{}, err
	}
	ct, err := s.pool.Exec(ctx, `
		update payment_conditions
		set name=$1, description=$2, active=$3, installments=$4, updated_at=$5
		where id=$6
	`, c.Name, c.Description, c.Active, raw, c.UpdatedAt, c.ID)
	if err != nil {
		return ledger.PaymentCondition{}, mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return ledger.PaymentCondition{}, errs.ErrNotFound
	}
	return c, nil
}

func (s *Store) DeleteCondition(ctx context.Context, id uuid.UUID) error {
	ct, err := s.pool.Exec(ctx, `delete from payment_conditions where id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// --- sales ---

const saleCols = `id, customer_name, sale_date, condition_id, currency, items, status, created_at, updated_at`

func scanSale(row pgx.Row) (ledger.Sale, error) {
	var sale ledger.Sale
	var raw []byte
	if err := row.Scan(&sale.ID, &sale.CustomerName, &sale.Date, &sale.ConditionID, &sale.Currency, &raw, &sale.Status, &sale.CreatedAt, &sale.UpdatedAt); err != nil {
		return ledger.Sale{}, err
	}
	items, err := decodeItems(raw)
	if err != nil {
		return ledger.Sale{}, err
	}
	sale.Items = items
	return sale, nil
}

func (s *Store) CreateSale(ctx context.Context, sale ledger.Sale) (ledger.Sale, error) {
	raw, err := encodeItems(sale.Items)
	if err != nil {
		return ledger.Sale{}, err
	}
	_, err = s.pool.Exec(ctx, `
		insert into sales (id, customer_name, sale_date, condition_id, currency, items, status, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, sale.ID, sale.CustomerName, sale.Date, sale.ConditionID, sale.Currency, raw, sale.Status, sale.CreatedAt, sale.UpdatedAt)
	if err != nil {
		return ledger.Sale{}, mapErr(err)
	}
	return sale, nil
}

func (s *Store) GetSale(ctx context.Context, id uuid.UUID) (ledger.Sale, error) {
	sale, err := scanSale(s.pool.QueryRow(ctx, `select `+saleCols+` from sales where id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Sale{}, errs.ErrNotFound
	}
	return sale, err
}

func (s *Store) ListSales(ctx context.Context) ([]ledger.Sale, error) {
	rows, err := s.pool.Query(ctx, `select `+saleCols+` from sales order by seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Sale, 0)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sale)
	}
	return out, rows.Err()
}

// UpdateSale replaces the sale only while its stored status still equals from.
func (s *Store) UpdateSale(ctx context.Context, sale ledger.Sale, from ledger.SaleStatus) (ledger.Sale, error) {
	raw, err := encodeItems(sale.Items)
	if err != nil {
		return ledger.Sale{}, err
	}
	ct, err := s.pool.Exec(ctx, `
		update sales
		set customer_name=$1, sale_date=$2, condition_id=$3, currency=$4, items=$5, status=$6, updated_at=$7
		where id=$8 and status=$9
	`, sale.CustomerName, sale.Date, sale.ConditionID, sale.Currency, raw, sale.Status, sale.UpdatedAt, sale.ID, from)
	if err != nil {
		return ledger.Sale{}, mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		if _, err := s.GetSale(ctx, sale.ID); err != nil {
			return ledger.Sale{}, err
		}
		return ledger.Sale{}, errs.ErrConflict
	}
	return sale, nil
}

// --- receivables ---

// ListReceivables returns receivables in invoicing order, optionally for one sale.
func (s *Store) ListReceivables(ctx context.Context, saleID *uuid.UUID) ([]ledger.Receivable, error) {
	rows, err := s.pool.Query(ctx, `
		select id, sale_id, condition_id, amount::text, currency, due_date, installment_number, total_installments, status, created_at
		from receivables
		where $1::uuid is null or sale_id = $1
		order by seq
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Receivable, 0)
	for rows.Next() {
		var r ledger.Receivable
		var amount string
		if err := rows.Scan(&r.ID, &r.SourceSaleID, &r.ConditionID, &amount, &r.Currency, &r.DueDate, &r.InstallmentNumber, &r.TotalInstallments, &r.Status, &r.CreatedAt); err != nil {
			return nil, err
		}
		if r.Amount, err = parseDecimal(amount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InvoiceSale flips the sale from approved to invoiced and inserts the
// receivables in one transaction. The conditional update makes concurrent
// invoicing of the same sale fail with ErrConflict.
func (s *Store) InvoiceSale(ctx context.Context, sale ledger.Sale, recs []ledger.Receivable) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `
			update sales set status=$1, updated_at=$2
			where id=$3 and status=$4
		`, ledger.SaleStatusInvoiced, sale.UpdatedAt, sale.ID, ledger.SaleStatusApproved)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return errs.ErrConflict
		}
		batch := &pgx.Batch{}
		for _, r := range recs {
			batch.Queue(`
				insert into receivables (id, sale_id, condition_id, amount, currency, due_date, installment_number, total_installments, status, created_at)
				values ($1,$2,$3,$4::text::numeric,$5,$6,$7,$8,$9,$10)
			`, r.ID, r.SourceSaleID, r.ConditionID, r.Amount.StringFixed(2), r.Currency, r.DueDate, r.InstallmentNumber, r.TotalInstallments, r.Status, r.CreatedAt)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return mapErr(err)
		}
		return nil
	})
}

// --- journal ---

func (s *Store) CreateJournalEntry(ctx context.Context, e ledger.JournalEntry) (ledger.JournalEntry, error) {
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			insert into entries (id, date, currency, memo) values ($1,$2,$3,$4)
		`, e.ID, e.Date, strings.ToUpper(e.Currency), e.Memo); err != nil {
			return err
		}
		for _, ln := range e.Lines {
			minor, _ := ln.Amount.MinorUnits()
			if _, err := tx.Exec(ctx, `
				insert into entry_lines (id, entry_id, account_id, side, amount_minor)
				values ($1,$2,$3,$4,$5)
			`, ln.ID, e.ID, ln.AccountID, ln.Side, minor); err != nil {
				if errors.Is(mapErr(err), errs.ErrInUse) {
					return errs.ErrNotFound
				}
				return fmt.Errorf("insert line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	return e, nil
}

// ListEntries returns entries ordered by date with lines populated.
func (s *Store) ListEntries(ctx context.Context) ([]ledger.JournalEntry, error) {
	rows, err := s.pool.Query(ctx, `select id, date, currency, memo from entries order by date, seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]ledger.JournalEntry, 0)
	for rows.Next() {
		var e ledger.JournalEntry
		if err := rows.Scan(&e.ID, &e.Date, &e.Currency, &e.Memo); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return entries, nil
	}
	idx := make(map[uuid.UUID]*ledger.JournalEntry, len(entries))
	ids := make([]uuid.UUID, 0, len(entries))
	for i := range entries {
		idx[entries[i].ID] = &entries[i]
		ids = append(ids, entries[i].ID)
	}
	lineRows, err := s.pool.Query(ctx, `
		select id, entry_id, account_id, side, amount_minor
		from entry_lines
		where entry_id = any($1)
		order by seq
	`, ids)
	if err != nil {
		return nil, err
	}
	defer lineRows.Close()
	for lineRows.Next() {
		var ln ledger.JournalLine
		var minor int64
		if err := lineRows.Scan(&ln.ID, &ln.EntryID, &ln.AccountID, &ln.Side, &minor); err != nil {
			return nil, err
		}
		e := idx[ln.EntryID]
		if e == nil {
			continue
		}
		if ln.Amount, err = newAmount(e.Currency, minor); err != nil {
			return nil, err
		}
		e.Lines = append(e.Lines, ln)
	}
	return entries, lineRows.Err()
}

// --- JSON columns ---

type installmentJSON struct {
	Number     int    `json:"number"`
	OffsetDays int    `json:"offset_days"`
	Percentage string `json:"percentage"`
}

func encodeInstallments(plan []ledger.Installment) ([]byte, error) {
	out := make([]installmentJSON, len(plan))
	for i, in := range plan {
		out[i] = installmentJSON{Number: in.Number, OffsetDays: in.OffsetDays, Percentage: in.Percentage.String()}
	}
	return json.Marshal(out)
}

func decodeInstallments(raw []byte) ([]ledger.Installment, error) {
	var in []installmentJSON
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	out := make([]ledger.Installment, len(in))
	for i, v := range in {
		pct, err := parseDecimal(v.Percentage)
		if err != nil {
			return nil, err
		}
		out[i] = ledger.Installment{Number: v.Number, OffsetDays: v.OffsetDays, Percentage: pct}
	}
	return out, nil
}

type itemJSON struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
}

func encodeItems(items []ledger.SaleItem) ([]byte, error) {
	out := make([]itemJSON, len(items))
	for i, it := range items {
		out[i] = itemJSON{Description: it.Description, Quantity: it.Quantity.String(), UnitPrice: it.UnitPrice.String()}
	}
	return json.Marshal(out)
}

func decodeItems(raw []byte) ([]ledger.SaleItem, error) {
	var in []itemJSON
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	out := make([]ledger.SaleItem, len(in))
	for i, v := range in {
		qty, err := parseDecimal(v.Quantity)
		if err != nil {
			return nil, err
		}
		price, err := parseDecimal(v.UnitPrice)
		if err != nil {
			return nil, err
		}
		out[i] = ledger.SaleItem{Description: v.Description, Quantity: qty, UnitPrice: price}
	}
	return out, nil
}
