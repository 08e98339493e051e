// Sales, schedule preview and receivables handlers.
package v1

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/tinoosan/bizledger/internal/export"
	"github.com/tinoosan/bizledger/internal/ledger"
)

func (s *Server) postSale(w http.ResponseWriter, r *http.Request) {
	in, ok := saleFrom(r)
	if !ok {
		writeErr(w, http.StatusInternalServerError, "validated request missing", "internal")
		return
	}
	sale, err := s.sales.Create(r.Context(), in)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, toSaleResponse(sale))
}

// listSales handles GET /sales?status=
func (s *Server) listSales(w http.ResponseWriter, r *http.Request) {
	status := ledger.SaleStatus(r.URL.Query().Get("status"))
	switch status {
	case "", ledger.SaleStatusDraft, ledger.SaleStatusApproved, ledger.SaleStatusInvoiced, ledger.SaleStatusCancelled:
	default:
		badRequest(w, "invalid status")
		return
	}
	list, err := s.sales.List(r.Context(), status)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	out := make([]saleResponse, 0, len(list))
	for _, sale := range list {
		out = append(out, toSaleResponse(sale))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) getSale(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sale, err := s.sales.Get(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toSaleResponse(sale))
}

func (s *Server) approveSale(w http.ResponseWriter, r *http.Request) {
	s.moveSale(w, r, s.sales.Approve)
}

func (s *Server) cancelSale(w http.ResponseWriter, r *http.Request) {
	s.moveSale(w, r, s.sales.Cancel)
}

func (s *Server) moveSale(w http.ResponseWriter, r *http.Request, move func(context.Context, uuid.UUID) (ledger.Sale, error)) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sale, err := move(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toSaleResponse(sale))
}

// invoiceSale handles POST /sales/{id}/invoice and returns the receivables
// created for the sale.
func (s *Server) invoiceSale(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	recs, err := s.schedule.InvoiceSale(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, toReceivablesResponse(recs))
}

// previewSchedule computes receivables for a hypothetical sale without storing anything.
func (s *Server) previewSchedule(w http.ResponseWriter, r *http.Request) {
	req, ok := r.Context().Value(ctxKeyPreview).(previewRequest)
	if !ok {
		writeErr(w, http.StatusInternalServerError, "validated request missing", "internal")
		return
	}
	recs, err := s.schedule.Preview(r.Context(), req.Total, req.Currency, req.Date.Time, req.ConditionID)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toReceivablesResponse(recs))
}

// listReceivables handles GET /receivables?sale_id=
func (s *Server) listReceivables(w http.ResponseWriter, r *http.Request) {
	recs, ok := s.receivables(w, r)
	if !ok {
		return
	}
	toJSON(w, http.StatusOK, toReceivablesResponse(recs))
}

func (s *Server) exportReceivables(w http.ResponseWriter, r *http.Request) {
	recs, ok := s.receivables(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="receivables.xlsx"`)
	if err := export.Receivables(w, recs); err != nil {
		s.log.Error("receivables export failed", "err", err)
	}
}

func (s *Server) receivables(w http.ResponseWriter, r *http.Request) ([]ledger.Receivable, bool) {
	saleID, ok := optionalUUIDQuery(w, r, "sale_id")
	if !ok {
		return nil, false
	}
	recs, err := s.schedule.ListReceivables(r.Context(), saleID)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return nil, false
	}
	return recs, true
}
