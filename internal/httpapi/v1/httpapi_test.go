package v1

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/tinoosan/bizledger/internal/export"
	"github.com/tinoosan/bizledger/internal/service/account"
	"github.com/tinoosan/bizledger/internal/service/condition"
	"github.com/tinoosan/bizledger/internal/service/journal"
	"github.com/tinoosan/bizledger/internal/service/sales"
	"github.com/tinoosan/bizledger/internal/service/schedule"
	"github.com/tinoosan/bizledger/internal/storage/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type acctResp struct {
	ID       string  `json:"id"`
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Subtype  string  `json:"subtype"`
	ParentID *string `json:"parent_id"`
	Nature   string  `json:"nature"`
	Depth    int     `json:"depth"`
	Active   bool    `json:"active"`
	Postable bool    `json:"postable"`
}

type treeResp struct {
	acctResp
	Children []treeResp `json:"children"`
}

type condResp struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Active       bool   `json:"active"`
	Installments []struct {
		Number     int    `json:"number"`
		OffsetDays int    `json:"offset_days"`
		Percentage string `json:"percentage"`
	} `json:"installments"`
}

type saleResp struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  string `json:"total"`
}

type recsResp struct {
	Items []struct {
		SaleID            string `json:"sale_id"`
		InstallmentNumber int    `json:"installment_number"`
		TotalInstallments int    `json:"total_installments"`
		DueDate           string `json:"due_date"`
		Amount            string `json:"amount"`
		AmountMinor       int64  `json:"amount_minor"`
		Status            string `json:"status"`
	} `json:"items"`
	Total string `json:"total"`
}

type errResp struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func setup(t *testing.T) (*memory.Store, http.Handler) {
	t.Helper()
	store := memory.New()
	log := testLogger()
	svc := Services{
		Accounts:   account.New(store, store, nil, log),
		Conditions: condition.New(store, store, log),
		Sales:      sales.New(store, store, "USD", log),
		Schedule:   schedule.New(store, store, log),
		Journal:    journal.New(store, store, "USD", log),
	}
	h := New(svc, store, log, Options{Currency: "USD"}).Handler()
	return store, h
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func expectErrCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	expectStatus(t, rec, status)
	var er errResp
	decode(t, rec, &er)
	if er.Code != code {
		t.Fatalf("expected code %q, got %+v", code, er)
	}
}

func createAccount(t *testing.T, h http.Handler, body map[string]any) acctResp {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/v1/accounts", body)
	expectStatus(t, rec, http.StatusCreated)
	var a acctResp
	decode(t, rec, &a)
	return a
}

func TestAccounts_CreateCodesAndTree(t *testing.T) {
	_, h := setup(t)

	assets := createAccount(t, h, map[string]any{"name": "Assets", "type": "asset", "subtype": "group"})
	if assets.Code != "1" || assets.Depth != 1 || assets.Nature != "debit" || assets.Postable {
		t.Fatalf("unexpected root: %+v", assets)
	}
	current := createAccount(t, h, map[string]any{"name": "Current", "subtype": "subgroup", "parent_id": assets.ID})
	if current.Code != "1.1" || current.Depth != 2 || current.Type != "asset" {
		t.Fatalf("unexpected child: %+v", current)
	}
	cash := createAccount(t, h, map[string]any{"name": "Cash", "subtype": "account", "parent_id": current.ID})
	if cash.Code != "1.1.1" || !cash.Postable {
		t.Fatalf("unexpected leaf: %+v", cash)
	}

	rec := do(t, h, http.MethodGet, "/v1/accounts/next-code?parent_id="+assets.ID, nil)
	expectStatus(t, rec, http.StatusOK)
	var nc struct {
		Code  string `json:"code"`
		Depth int    `json:"depth"`
	}
	decode(t, rec, &nc)
	if nc.Code != "1.2" || nc.Depth != 2 {
		t.Fatalf("unexpected next code: %+v", nc)
	}

	rec = do(t, h, http.MethodGet, "/v1/accounts/next-code", nil)
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &nc)
	if nc.Code != "2" || nc.Depth != 1 {
		t.Fatalf("unexpected root code: %+v", nc)
	}

	rec = do(t, h, http.MethodGet, "/v1/accounts/tree", nil)
	expectStatus(t, rec, http.StatusOK)
	var tree []treeResp
	decode(t, rec, &tree)
	if len(tree) != 1 || len(tree[0].Children) != 1 || len(tree[0].Children[0].Children) != 1 {
		t.Fatalf("unexpected tree: %+v", tree)
	}
	if tree[0].Children[0].Children[0].Code != "1.1.1" {
		t.Fatalf("unexpected leaf in tree: %+v", tree[0].Children[0].Children[0])
	}

	rec = do(t, h, http.MethodGet, "/v1/accounts/posting", nil)
	expectStatus(t, rec, http.StatusOK)
	var posting []acctResp
	decode(t, rec, &posting)
	if len(posting) != 1 || posting[0].ID != cash.ID {
		t.Fatalf("unexpected posting accounts: %+v", posting)
	}
}

func TestAccounts_Validation(t *testing.T) {
	_, h := setup(t)
	root := createAccount(t, h, map[string]any{"name": "Assets", "type": "asset", "subtype": "group"})
	leaf := createAccount(t, h, map[string]any{"name": "Cash", "subtype": "account", "parent_id": root.ID})

	// unknown field
	rec := do(t, h, http.MethodPost, "/v1/accounts", map[string]any{"name": "x", "type": "asset", "subtype": "group", "colour": "red"})
	expectStatus(t, rec, http.StatusBadRequest)

	// missing subtype
	rec = do(t, h, http.MethodPost, "/v1/accounts", map[string]any{"name": "x", "type": "asset"})
	expectStatus(t, rec, http.StatusBadRequest)

	// root without type
	rec = do(t, h, http.MethodPost, "/v1/accounts", map[string]any{"name": "x", "subtype": "group"})
	expectStatus(t, rec, http.StatusBadRequest)

	// posting accounts cannot have children
	rec = do(t, h, http.MethodPost, "/v1/accounts", map[string]any{"name": "x", "subtype": "analytic", "parent_id": leaf.ID})
	expectErrCode(t, rec, http.StatusUnprocessableEntity, "parent_not_synthetic")

	// unknown parent
	rec = do(t, h, http.MethodPost, "/v1/accounts", map[string]any{"name": "x", "subtype": "account", "parent_id": "2b1e0a4e-5d1f-4f8e-9a51-3a0c3c9f0b11"})
	expectErrCode(t, rec, http.StatusUnprocessableEntity, "parent_not_found")

	// content type
	req := httptest.NewRequest(http.MethodPost, "/v1/accounts", bytes.NewReader([]byte(`{"name":"x"}`)))
	req.Header.Set("Content-Type", "text/plain")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	expectStatus(t, rr, http.StatusUnsupportedMediaType)

	// bad id
	rec = do(t, h, http.MethodGet, "/v1/accounts/not-a-uuid", nil)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestAccounts_MoveRecodesSubtree(t *testing.T) {
	_, h := setup(t)
	first := createAccount(t, h, map[string]any{"name": "Assets", "type": "asset", "subtype": "group"})
	second := createAccount(t, h, map[string]any{"name": "Other", "type": "asset", "subtype": "group"})
	sub := createAccount(t, h, map[string]any{"name": "Current", "subtype": "subgroup", "parent_id": first.ID})
	leaf := createAccount(t, h, map[string]any{"name": "Cash", "subtype": "account", "parent_id": sub.ID})

	rec := do(t, h, http.MethodPatch, "/v1/accounts/"+sub.ID, map[string]any{"parent_id": second.ID})
	expectStatus(t, rec, http.StatusOK)
	var moved acctResp
	decode(t, rec, &moved)
	if moved.Code != "2.1" || moved.Depth != 2 {
		t.Fatalf("unexpected moved account: %+v", moved)
	}

	rec = do(t, h, http.MethodGet, "/v1/accounts/"+leaf.ID, nil)
	expectStatus(t, rec, http.StatusOK)
	var got acctResp
	decode(t, rec, &got)
	if got.Code != "2.1.1" || got.Depth != 3 {
		t.Fatalf("descendant not re-coded: %+v", got)
	}

	// cycle
	rec = do(t, h, http.MethodPatch, "/v1/accounts/"+second.ID, map[string]any{"parent_id": sub.ID})
	expectErrCode(t, rec, http.StatusUnprocessableEntity, "cycle")

	// eligible parents for the subgroup exclude itself
	rec = do(t, h, http.MethodGet, "/v1/accounts/eligible-parents?for="+sub.ID, nil)
	expectStatus(t, rec, http.StatusOK)
	var eligible []acctResp
	decode(t, rec, &eligible)
	for _, a := range eligible {
		if a.ID == sub.ID || a.ID == leaf.ID {
			t.Fatalf("subtree offered as parent: %+v", eligible)
		}
	}

	// explicit null moves to the top level
	rec = do(t, h, http.MethodPatch, "/v1/accounts/"+sub.ID, map[string]any{"parent_id": nil})
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &moved)
	if moved.ParentID != nil || moved.Code != "3" || moved.Depth != 1 {
		t.Fatalf("unexpected top-level move: %+v", moved)
	}

	// rename leaves the code alone
	rec = do(t, h, http.MethodPatch, "/v1/accounts/"+leaf.ID, map[string]any{"name": "Petty cash"})
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &got)
	if got.Name != "Petty cash" || got.Code != "3.1" {
		t.Fatalf("unexpected rename: %+v", got)
	}
}

func TestAccounts_Delete(t *testing.T) {
	_, h := setup(t)
	root := createAccount(t, h, map[string]any{"name": "Assets", "type": "asset", "subtype": "group"})
	leaf := createAccount(t, h, map[string]any{"name": "Cash", "subtype": "account", "parent_id": root.ID})

	rec := do(t, h, http.MethodDelete, "/v1/accounts/"+root.ID, nil)
	expectErrCode(t, rec, http.StatusConflict, "has_children")

	rec = do(t, h, http.MethodDelete, "/v1/accounts/"+leaf.ID, nil)
	expectStatus(t, rec, http.StatusNoContent)

	rec = do(t, h, http.MethodGet, "/v1/accounts/"+leaf.ID, nil)
	expectErrCode(t, rec, http.StatusNotFound, "not_found")
}

func createCondition(t *testing.T, h http.Handler, pcts ...string) condResp {
	t.Helper()
	plan := make([]map[string]any, 0, len(pcts))
	for i, p := range pcts {
		plan = append(plan, map[string]any{"number": i + 1, "offset_days": i * 30, "percentage": p})
	}
	rec := do(t, h, http.MethodPost, "/v1/payment-conditions", map[string]any{"name": "plan", "installments": plan})
	expectStatus(t, rec, http.StatusCreated)
	var c condResp
	decode(t, rec, &c)
	return c
}

func TestConditions_CRUDAndPercentages(t *testing.T) {
	_, h := setup(t)

	c := createCondition(t, h, "60", "40")
	if !c.Active || len(c.Installments) != 2 || c.Installments[1].Percentage != "40.00" {
		t.Fatalf("unexpected condition: %+v", c)
	}

	rec := do(t, h, http.MethodPost, "/v1/payment-conditions", map[string]any{
		"name": "short",
		"installments": []map[string]any{
			{"number": 1, "offset_days": 0, "percentage": "60"},
			{"number": 2, "offset_days": 30, "percentage": "30"},
		},
	})
	expectErrCode(t, rec, http.StatusUnprocessableEntity, "percentage_mismatch")

	rec = do(t, h, http.MethodPost, "/v1/payment-conditions", map[string]any{"name": "empty", "installments": []map[string]any{}})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = do(t, h, http.MethodPut, "/v1/payment-conditions/"+c.ID, map[string]any{
		"name":   "cash",
		"active": false,
		"installments": []map[string]any{
			{"number": 1, "offset_days": 0, "percentage": 100},
		},
	})
	expectStatus(t, rec, http.StatusOK)

	rec = do(t, h, http.MethodGet, "/v1/payment-conditions?active=true", nil)
	expectStatus(t, rec, http.StatusOK)
	var active []condResp
	decode(t, rec, &active)
	if len(active) != 0 {
		t.Fatalf("inactive condition listed: %+v", active)
	}

	rec = do(t, h, http.MethodDelete, "/v1/payment-conditions/"+c.ID, nil)
	expectStatus(t, rec, http.StatusNoContent)
	rec = do(t, h, http.MethodGet, "/v1/payment-conditions/"+c.ID, nil)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestConditions_Distribute(t *testing.T) {
	_, h := setup(t)
	rec := do(t, h, http.MethodPost, "/v1/payment-conditions/distribute", map[string]any{"installments": 3})
	expectStatus(t, rec, http.StatusOK)
	var plan []struct {
		Number     int    `json:"number"`
		OffsetDays int    `json:"offset_days"`
		Percentage string `json:"percentage"`
	}
	decode(t, rec, &plan)
	want := []string{"33.33", "33.33", "33.34"}
	if len(plan) != 3 {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	for i, p := range plan {
		if p.Percentage != want[i] || p.OffsetDays != i*30 {
			t.Fatalf("installment %d: %+v", i+1, p)
		}
	}

	rec = do(t, h, http.MethodPost, "/v1/payment-conditions/distribute", map[string]any{"installments": 0})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestSales_InvoiceFlow(t *testing.T) {
	_, h := setup(t)
	c := createCondition(t, h, "33.33", "33.33", "33.34")

	rec := do(t, h, http.MethodPost, "/v1/sales", map[string]any{
		"customer_name": "ACME",
		"date":          "2024-01-01",
		"condition_id":  c.ID,
		"items":         []map[string]any{{"description": "Consulting", "quantity": "1", "unit_price": "9000"}},
	})
	expectStatus(t, rec, http.StatusCreated)
	var sale saleResp
	decode(t, rec, &sale)
	if sale.Status != "draft" || sale.Total != "9000.00" {
		t.Fatalf("unexpected sale: %+v", sale)
	}

	rec = do(t, h, http.MethodPost, "/v1/sales/"+sale.ID+"/invoice", nil)
	expectErrCode(t, rec, http.StatusUnprocessableEntity, "invalid_transition")

	rec = do(t, h, http.MethodPost, "/v1/sales/"+sale.ID+"/approve", nil)
	expectStatus(t, rec, http.StatusOK)

	rec = do(t, h, http.MethodPost, "/v1/sales/"+sale.ID+"/invoice", nil)
	expectStatus(t, rec, http.StatusCreated)
	var recs recsResp
	decode(t, rec, &recs)
	wantAmounts := []string{"2999.70", "2999.70", "3000.60"}
	wantMinor := []int64{299970, 299970, 300060}
	wantDates := []string{"2024-01-01", "2024-01-31", "2024-03-01"}
	if len(recs.Items) != 3 || recs.Total != "9000.00" {
		t.Fatalf("unexpected receivables: %+v", recs)
	}
	for i, r := range recs.Items {
		if r.Amount != wantAmounts[i] || r.AmountMinor != wantMinor[i] || r.DueDate != wantDates[i] {
			t.Fatalf("receivable %d: %+v", i+1, r)
		}
		if r.InstallmentNumber != i+1 || r.TotalInstallments != 3 || r.Status != "pending" || r.SaleID != sale.ID {
			t.Fatalf("receivable %d: %+v", i+1, r)
		}
	}

	// a second invoice is rejected and nothing is duplicated
	rec = do(t, h, http.MethodPost, "/v1/sales/"+sale.ID+"/invoice", nil)
	expectErrCode(t, rec, http.StatusUnprocessableEntity, "invalid_transition")
	rec = do(t, h, http.MethodGet, "/v1/receivables?sale_id="+sale.ID, nil)
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &recs)
	if len(recs.Items) != 3 {
		t.Fatalf("expected 3 receivables, got %d", len(recs.Items))
	}

	rec = do(t, h, http.MethodGet, "/v1/sales?status=invoiced", nil)
	expectStatus(t, rec, http.StatusOK)
	var listed []saleResp
	decode(t, rec, &listed)
	if len(listed) != 1 || listed[0].ID != sale.ID {
		t.Fatalf("unexpected invoiced sales: %+v", listed)
	}

	rec = do(t, h, http.MethodGet, "/v1/receivables/export.xlsx", nil)
	expectStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != export.ContentType {
		t.Fatalf("unexpected content type %q", ct)
	}
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	rows, err := f.GetRows(export.ReceivablesSheet)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(rows))
	}
}

func TestSales_Validation(t *testing.T) {
	_, h := setup(t)
	c := createCondition(t, h, "100")

	rec := do(t, h, http.MethodPost, "/v1/sales", map[string]any{
		"customer_name": "ACME", "date": "2024-01-01", "condition_id": c.ID, "items": []map[string]any{},
	})
	expectErrCode(t, rec, http.StatusUnprocessableEntity, "no_items")

	rec = do(t, h, http.MethodPost, "/v1/sales", map[string]any{
		"customer_name": "ACME", "date": "2024-01-01", "condition_id": "2b1e0a4e-5d1f-4f8e-9a51-3a0c3c9f0b11",
		"items": []map[string]any{{"description": "x", "quantity": "1", "unit_price": "10"}},
	})
	expectErrCode(t, rec, http.StatusUnprocessableEntity, "missing_condition")

	rec = do(t, h, http.MethodPost, "/v1/sales", map[string]any{
		"customer_name": "ACME", "date": "01/02/2024", "condition_id": c.ID,
		"items": []map[string]any{{"description": "x", "quantity": "1", "unit_price": "10"}},
	})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = do(t, h, http.MethodGet, "/v1/sales?status=shipped", nil)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestSchedule_Preview(t *testing.T) {
	_, h := setup(t)
	c := createCondition(t, h, "50", "50")

	rec := do(t, h, http.MethodPost, "/v1/schedule/preview", map[string]any{
		"total": "100.01", "date": "2024-02-15", "condition_id": c.ID,
	})
	expectStatus(t, rec, http.StatusOK)
	var recs recsResp
	decode(t, rec, &recs)
	if len(recs.Items) != 2 || recs.Items[0].Amount != "50.01" || recs.Items[1].Amount != "50.00" {
		t.Fatalf("unexpected preview: %+v", recs)
	}
	if recs.Items[1].DueDate != "2024-03-16" {
		t.Fatalf("unexpected due date: %s", recs.Items[1].DueDate)
	}

	rec = do(t, h, http.MethodPost, "/v1/schedule/preview", map[string]any{
		"total": "0", "date": "2024-02-15", "condition_id": c.ID,
	})
	expectErrCode(t, rec, http.StatusUnprocessableEntity, "no_items")

	// nothing was stored
	rec = do(t, h, http.MethodGet, "/v1/receivables", nil)
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &recs)
	if len(recs.Items) != 0 {
		t.Fatalf("preview persisted receivables: %+v", recs)
	}
}

func TestEntries_PostingRulesAndBalance(t *testing.T) {
	_, h := setup(t)
	root := createAccount(t, h, map[string]any{"name": "Assets", "type": "asset", "subtype": "group"})
	cash := createAccount(t, h, map[string]any{"name": "Cash", "subtype": "account", "parent_id": root.ID})

	rec := do(t, h, http.MethodPost, "/v1/entries", map[string]any{
		"date": "2024-01-05", "memo": "deposit",
		"lines": []map[string]any{{"account_id": root.ID, "side": "debit", "amount_minor": 1500}},
	})
	expectErrCode(t, rec, http.StatusUnprocessableEntity, "not_postable")

	rec = do(t, h, http.MethodPost, "/v1/entries", map[string]any{
		"date": "2024-01-05", "memo": "deposit",
		"lines": []map[string]any{{"account_id": cash.ID, "side": "debit", "amount_minor": 1500}},
	})
	expectStatus(t, rec, http.StatusCreated)

	rec = do(t, h, http.MethodPost, "/v1/entries", map[string]any{
		"date":  "2024-01-05",
		"lines": []map[string]any{{"account_id": cash.ID, "side": "sideways", "amount_minor": 1500}},
	})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = do(t, h, http.MethodGet, "/v1/accounts/"+cash.ID+"/balance", nil)
	expectStatus(t, rec, http.StatusOK)
	var bal struct {
		Currency     string `json:"currency"`
		BalanceMinor int64  `json:"balance_minor"`
	}
	decode(t, rec, &bal)
	if bal.Currency != "USD" || bal.BalanceMinor != 1500 {
		t.Fatalf("unexpected balance: %+v", bal)
	}

	// referenced accounts cannot be deleted
	rec = do(t, h, http.MethodDelete, "/v1/accounts/"+cash.ID, nil)
	expectErrCode(t, rec, http.StatusConflict, "in_use")
}

func TestDictionaryAndOps(t *testing.T) {
	_, h := setup(t)

	rec := do(t, h, http.MethodGet, "/v1/dictionary/account-types", nil)
	expectStatus(t, rec, http.StatusOK)
	var dict struct {
		Types []struct {
			Type          string `json:"type"`
			DefaultNature string `json:"default_nature"`
		} `json:"types"`
		Subtypes []struct {
			Subtype  string `json:"subtype"`
			Postable bool   `json:"postable"`
		} `json:"subtypes"`
	}
	decode(t, rec, &dict)
	if len(dict.Types) != 5 || len(dict.Subtypes) != 4 {
		t.Fatalf("unexpected dictionary: %+v", dict)
	}

	rec = do(t, h, http.MethodGet, "/v1/dictionary/account-types?type=revenue", nil)
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &dict)
	if len(dict.Types) != 1 || dict.Types[0].DefaultNature != "credit" {
		t.Fatalf("unexpected filtered dictionary: %+v", dict.Types)
	}

	rec = do(t, h, http.MethodGet, "/healthz", nil)
	expectStatus(t, rec, http.StatusOK)
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("missing security headers: %v", rec.Header())
	}
	rec = do(t, h, http.MethodGet, "/readyz", nil)
	expectStatus(t, rec, http.StatusOK)
	rec = do(t, h, http.MethodGet, "/metrics", nil)
	expectStatus(t, rec, http.StatusOK)
	if !bytes.Contains(rec.Body.Bytes(), []byte("bizledger_http_requests_total")) {
		t.Fatalf("http metrics not exported")
	}
}

func TestChartExport(t *testing.T) {
	_, h := setup(t)
	root := createAccount(t, h, map[string]any{"name": "Assets", "type": "asset", "subtype": "group"})
	createAccount(t, h, map[string]any{"name": "Cash", "subtype": "account", "parent_id": root.ID})

	rec := do(t, h, http.MethodGet, "/v1/accounts/export.xlsx", nil)
	expectStatus(t, rec, http.StatusOK)
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	v, err := f.GetCellValue(export.ChartSheet, "A3")
	if err != nil || v != "1.1" {
		t.Fatalf("expected 1.1 in A3, got %q (%v)", v, err)
	}
}

func TestRateLimit(t *testing.T) {
	store := memory.New()
	log := testLogger()
	svc := Services{
		Accounts:   account.New(store, store, nil, log),
		Conditions: condition.New(store, store, log),
		Sales:      sales.New(store, store, "USD", log),
		Schedule:   schedule.New(store, store, log),
		Journal:    journal.New(store, store, "USD", log),
	}
	h := New(svc, store, log, Options{RateLimitPerMinute: 2}).Handler()
	for i := 0; i < 2; i++ {
		expectStatus(t, do(t, h, http.MethodGet, "/healthz", nil), http.StatusOK)
	}
	expectStatus(t, do(t, h, http.MethodGet, "/healthz", nil), http.StatusTooManyRequests)
}
