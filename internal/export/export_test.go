package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tinoosan/bizledger/internal/ledger"
)

func TestChartWorkbook(t *testing.T) {
	root := ledger.Account{ID: uuid.New(), Code: "1", Name: "Assets", Type: ledger.AccountTypeAsset, Subtype: ledger.SubtypeGroup, Nature: ledger.NatureDebit, Depth: 1, Active: true}
	pid := root.ID
	bank := ledger.Account{ID: uuid.New(), Code: "1.1", Name: "Bank", Type: ledger.AccountTypeAsset, Subtype: ledger.SubtypeAccount, ParentID: &pid, Nature: ledger.NatureDebit, Depth: 2}

	var buf bytes.Buffer
	require.NoError(t, Chart(&buf, []ledger.Account{root, bank}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue(ChartSheet, "A1")
	require.NoError(t, err)
	require.Equal(t, "Code", v)
	v, err = f.GetCellValue(ChartSheet, "A3")
	require.NoError(t, err)
	require.Equal(t, "1.1", v)
	v, err = f.GetCellValue(ChartSheet, "B3")
	require.NoError(t, err)
	require.Equal(t, "  Bank", v)
	v, err = f.GetCellValue(ChartSheet, "G3")
	require.NoError(t, err)
	require.Equal(t, "no", v)
}

func TestReceivablesWorkbook(t *testing.T) {
	sale := uuid.New()
	recs := []ledger.Receivable{
		{ID: uuid.New(), SourceSaleID: sale, Amount: decimal.RequireFromString("2999.70"), Currency: "USD", DueDate: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), InstallmentNumber: 2, TotalInstallments: 3, Status: ledger.ReceivableStatusPending},
	}
	var buf bytes.Buffer
	require.NoError(t, Receivables(&buf, recs))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ReceivablesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, sale.String(), rows[1][0])
	require.Equal(t, "2/3", rows[1][1])
	require.Equal(t, "2024-01-31", rows[1][2])
	require.Equal(t, "pending", rows[1][5])
}
