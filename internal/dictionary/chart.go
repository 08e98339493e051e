// Package dictionary holds the fixed vocabularies of the chart (account
// types, subtypes and their defaults) and the starter chart used to seed
// empty installations.
package dictionary

import (
	"context"

	"github.com/tinoosan/bizledger/internal/ledger"
	"github.com/tinoosan/bizledger/internal/service/account"
)

type TypeDef struct {
	Type          ledger.AccountType `json:"type"`
	Label         string             `json:"label"`
	DefaultNature ledger.Nature      `json:"default_nature"`
}

type SubtypeDef struct {
	Subtype   ledger.Subtype `json:"subtype"`
	Label     string         `json:"label"`
	Synthetic bool           `json:"synthetic"`
	Postable  bool           `json:"postable"`
}

var typeLabels = map[ledger.AccountType]string{
	ledger.AccountTypeAsset:     "Assets",
	ledger.AccountTypeLiability: "Liabilities",
	ledger.AccountTypeEquity:    "Equity",
	ledger.AccountTypeRevenue:   "Revenue",
	ledger.AccountTypeExpense:   "Expenses",
}

var subtypeLabels = map[ledger.Subtype]string{
	ledger.SubtypeGroup:    "Group",
	ledger.SubtypeSubgroup: "Subgroup",
	ledger.SubtypeAccount:  "Account",
	ledger.SubtypeAnalytic: "Analytic",
}

// Types returns every account type in chart order.
func Types() []TypeDef {
	out := make([]TypeDef, 0, len(ledger.AccountTypes))
	for _, t := range ledger.AccountTypes {
		out = append(out, TypeDef{Type: t, Label: typeLabels[t], DefaultNature: ledger.DefaultNature(t)})
	}
	return out
}

// Subtypes returns every subtype from the top of the tree down.
func Subtypes() []SubtypeDef {
	out := make([]SubtypeDef, 0, len(ledger.Subtypes))
	for _, s := range ledger.Subtypes {
		out = append(out, SubtypeDef{Subtype: s, Label: subtypeLabels[s], Synthetic: s.Synthetic(), Postable: s.Postable()})
	}
	return out
}

// Node is one account of the starter chart.
type Node struct {
	Name     string         `json:"name"`
	Subtype  ledger.Subtype `json:"subtype"`
	Children []Node         `json:"children,omitempty"`
}

var starter = map[ledger.AccountType][]Node{
	ledger.AccountTypeAsset: {
		{Name: "Current Assets", Subtype: ledger.SubtypeSubgroup, Children: []Node{
			{Name: "Cash", Subtype: ledger.SubtypeAccount},
			{Name: "Bank", Subtype: ledger.SubtypeAccount},
			{Name: "Accounts Receivable", Subtype: ledger.SubtypeAccount},
		}},
		{Name: "Fixed Assets", Subtype: ledger.SubtypeSubgroup, Children: []Node{
			{Name: "Equipment", Subtype: ledger.SubtypeAccount},
		}},
	},
	ledger.AccountTypeLiability: {
		{Name: "Current Liabilities", Subtype: ledger.SubtypeSubgroup, Children: []Node{
			{Name: "Suppliers", Subtype: ledger.SubtypeAccount},
			{Name: "Taxes Payable", Subtype: ledger.SubtypeAccount},
		}},
	},
	ledger.AccountTypeEquity: {
		{Name: "Share Capital", Subtype: ledger.SubtypeAccount},
		{Name: "Retained Earnings", Subtype: ledger.SubtypeAccount},
	},
	ledger.AccountTypeRevenue: {
		{Name: "Sales", Subtype: ledger.SubtypeSubgroup, Children: []Node{
			{Name: "Services", Subtype: ledger.SubtypeAnalytic},
			{Name: "Products", Subtype: ledger.SubtypeAnalytic},
		}},
	},
	ledger.AccountTypeExpense: {
		{Name: "Operating Expenses", Subtype: ledger.SubtypeSubgroup, Children: []Node{
			{Name: "Rent", Subtype: ledger.SubtypeAccount},
			{Name: "Utilities", Subtype: ledger.SubtypeAccount},
			{Name: "Payroll", Subtype: ledger.SubtypeAccount},
		}},
	},
}

// StarterChart returns the starter subtree for a type, without its root group.
func StarterChart(t ledger.AccountType) []Node { return starter[t] }

// Creator is the part of the account service seeding needs.
type Creator interface {
	Create(ctx context.Context, in account.CreateInput) (ledger.Account, error)
}

// SeedChart creates one root group per type with the starter chart under it
// and returns every account created, roots first within each type.
func SeedChart(ctx context.Context, accounts Creator) ([]ledger.Account, error) {
	var out []ledger.Account
	for _, def := range Types() {
		root, err := accounts.Create(ctx, account.CreateInput{Name: def.Label, Type: def.Type, Subtype: ledger.SubtypeGroup})
		if err != nil {
			return out, err
		}
		out = append(out, root)
		created, err := seedNodes(ctx, accounts, root, starter[def.Type])
		out = append(out, created...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func seedNodes(ctx context.Context, accounts Creator, parent ledger.Account, nodes []Node) ([]ledger.Account, error) {
	var out []ledger.Account
	for _, n := range nodes {
		pid := parent.ID
		a, err := accounts.Create(ctx, account.CreateInput{Name: n.Name, Type: parent.Type, Subtype: n.Subtype, ParentID: &pid})
		if err != nil {
			return out, err
		}
		out = append(out, a)
		children, err := seedNodes(ctx, accounts, a, n.Children)
		out = append(out, children...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}
