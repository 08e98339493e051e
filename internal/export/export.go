// Package export renders the chart of accounts and receivables as xlsx workbooks.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/tinoosan/bizledger/internal/ledger"
)

const (
	ChartSheet       = "Chart"
	ReceivablesSheet = "Receivables"

	// ContentType is the media type of the workbooks written here.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// number format 4 is "#,##0.00"
	moneyFormat = 4
)

var (
	chartHeader       = []interface{}{"Code", "Name", "Type", "Subtype", "Nature", "Depth", "Active"}
	receivablesHeader = []interface{}{"Sale", "Installment", "Due date", "Amount", "Currency", "Status"}
)

// Chart writes accounts, already ordered by code, one per row. Names are
// indented by depth so the sheet reads as a tree.
func Chart(w io.Writer, accounts []ledger.Account) error {
	f, err := newWorkbook(ChartSheet, chartHeader)
	if err != nil {
		return err
	}
	defer f.Close()
	for i, a := range accounts {
		active := "yes"
		if !a.Active {
			active = "no"
		}
		row := []interface{}{a.Code, strings.Repeat("  ", max(a.Depth-1, 0)) + a.Name, string(a.Type), string(a.Subtype), string(a.Nature), a.Depth, active}
		if err := setRow(f, ChartSheet, i+2, row); err != nil {
			return err
		}
	}
	return f.Write(w)
}

// Receivables writes one row per receivable with its installment as n/N.
func Receivables(w io.Writer, recs []ledger.Receivable) error {
	f, err := newWorkbook(ReceivablesSheet, receivablesHeader)
	if err != nil {
		return err
	}
	defer f.Close()
	style, err := f.NewStyle(&excelize.Style{NumFmt: moneyFormat})
	if err != nil {
		return err
	}
	for i, r := range recs {
		row := []interface{}{
			r.SourceSaleID.String(),
			fmt.Sprintf("%d/%d", r.InstallmentNumber, r.TotalInstallments),
			r.DueDate.Format("2006-01-02"),
			r.Amount.InexactFloat64(),
			r.Currency,
			string(r.Status),
		}
		if err := setRow(f, ReceivablesSheet, i+2, row); err != nil {
			return err
		}
		cell, err := excelize.CoordinatesToCellName(4, i+2)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(ReceivablesSheet, cell, cell, style); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func newWorkbook(sheet string, header []interface{}) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := setRow(f, sheet, 1, header); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
