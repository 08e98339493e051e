package journal_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/bizledger/internal/errs"
	"github.com/tinoosan/bizledger/internal/ledger"
	"github.com/tinoosan/bizledger/internal/service/account"
	"github.com/tinoosan/bizledger/internal/service/journal"
	"github.com/tinoosan/bizledger/internal/storage/memory"
)

type chart struct {
	root, bank, revenue ledger.Account
}

func setup(t *testing.T) (journal.Service, chart) {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	accs := account.New(st, st, nil, nil)
	var c chart
	var err error
	c.root, err = accs.Create(ctx, account.CreateInput{Name: "Assets", Type: ledger.AccountTypeAsset, Subtype: ledger.SubtypeGroup})
	require.NoError(t, err)
	c.bank, err = accs.Create(ctx, account.CreateInput{Name: "Bank", Type: ledger.AccountTypeAsset, Subtype: ledger.SubtypeAccount, ParentID: &c.root.ID})
	require.NoError(t, err)
	rev, err := accs.Create(ctx, account.CreateInput{Name: "Revenue", Type: ledger.AccountTypeRevenue, Subtype: ledger.SubtypeGroup})
	require.NoError(t, err)
	c.revenue, err = accs.Create(ctx, account.CreateInput{Name: "Services", Type: ledger.AccountTypeRevenue, Subtype: ledger.SubtypeAnalytic, ParentID: &rev.ID})
	require.NoError(t, err)
	return journal.New(st, st, "USD", nil), c
}

func usd(t *testing.T, cents int64) money.Amount {
	t.Helper()
	a, err := money.NewAmountFromMinorUnits("USD", cents)
	require.NoError(t, err)
	return a
}

func TestCreateEntryAndBalance(t *testing.T) {
	svc, c := setup(t)
	ctx := context.Background()
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	_, err := svc.CreateEntry(ctx, ledger.JournalEntry{Date: day, Currency: "usd", Memo: "invoice", Lines: []ledger.JournalLine{
		{AccountID: c.bank.ID, Side: ledger.SideDebit, Amount: usd(t, 10000)},
		{AccountID: c.revenue.ID, Side: ledger.SideCredit, Amount: usd(t, 10000)},
	}})
	require.NoError(t, err)
	_, err = svc.CreateEntry(ctx, ledger.JournalEntry{Date: day.AddDate(0, 0, 5), Currency: "USD", Lines: []ledger.JournalLine{
		{AccountID: c.bank.ID, Side: ledger.SideCredit, Amount: usd(t, 2500)},
	}})
	require.NoError(t, err, "unbalanced entries are accepted")

	bal, err := svc.AccountBalance(ctx, c.bank.ID, nil)
	require.NoError(t, err)
	units, _ := bal.MinorUnits()
	require.Equal(t, int64(7500), units)

	asOf := day
	bal, err = svc.AccountBalance(ctx, c.bank.ID, &asOf)
	require.NoError(t, err)
	units, _ = bal.MinorUnits()
	require.Equal(t, int64(10000), units)

	bal, err = svc.AccountBalance(ctx, c.revenue.ID, nil)
	require.NoError(t, err)
	units, _ = bal.MinorUnits()
	require.Equal(t, int64(-10000), units)

	entries, err := svc.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "invoice", entries[0].Memo)
}

func TestEntryRejectsSyntheticAccounts(t *testing.T) {
	svc, c := setup(t)
	err := svc.ValidateEntry(context.Background(), ledger.JournalEntry{Date: time.Now(), Currency: "USD", Lines: []ledger.JournalLine{
		{AccountID: c.root.ID, Side: ledger.SideDebit, Amount: usd(t, 100)},
	}})
	require.ErrorIs(t, err, errs.ErrNotPostable)
}

func TestEntryValidation(t *testing.T) {
	svc, c := setup(t)
	ctx := context.Background()
	now := time.Now()
	cases := map[string]ledger.JournalEntry{
		"no lines":      {Date: now, Currency: "USD"},
		"no currency":   {Date: now, Lines: []ledger.JournalLine{{AccountID: c.bank.ID, Side: ledger.SideDebit, Amount: usd(t, 1)}}},
		"zero amount":   {Date: now, Currency: "USD", Lines: []ledger.JournalLine{{AccountID: c.bank.ID, Side: ledger.SideDebit, Amount: usd(t, 0)}}},
		"bad side":      {Date: now, Currency: "USD", Lines: []ledger.JournalLine{{AccountID: c.bank.ID, Side: "both", Amount: usd(t, 1)}}},
		"currency diff": {Date: now, Currency: "EUR", Lines: []ledger.JournalLine{{AccountID: c.bank.ID, Side: ledger.SideDebit, Amount: usd(t, 1)}}},
	}
	for name, e := range cases {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, svc.ValidateEntry(ctx, e), errs.ErrInvalid)
		})
	}
}

func TestBalanceUnknownAccount(t *testing.T) {
	svc, c := setup(t)
	_, err := svc.AccountBalance(context.Background(), c.root.ID, nil)
	require.NoError(t, err)
	_, err = svc.AccountBalance(context.Background(), uuid.New(), nil)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestBalanceRejectsMixedCurrencies(t *testing.T) {
	svc, c := setup(t)
	ctx := context.Background()
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	_, err := svc.CreateEntry(ctx, ledger.JournalEntry{Date: day, Currency: "USD", Lines: []ledger.JournalLine{
		{AccountID: c.bank.ID, Side: ledger.SideDebit, Amount: usd(t, 1000)},
	}})
	require.NoError(t, err)
	eur, err := money.NewAmountFromMinorUnits("EUR", 500)
	require.NoError(t, err)
	_, err = svc.CreateEntry(ctx, ledger.JournalEntry{Date: day, Currency: "EUR", Lines: []ledger.JournalLine{
		{AccountID: c.bank.ID, Side: ledger.SideCredit, Amount: eur},
	}})
	require.NoError(t, err)

	_, err = svc.AccountBalance(ctx, c.bank.ID, nil)
	require.ErrorIs(t, err, errs.ErrUnprocessable)
}
