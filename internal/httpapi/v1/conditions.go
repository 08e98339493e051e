// Payment condition handlers.
package v1

import (
	"net/http"

	"github.com/tinoosan/bizledger/internal/service/condition"
)

func (s *Server) postCondition(w http.ResponseWriter, r *http.Request) {
	in, ok := conditionFrom(r)
	if !ok {
		writeErr(w, http.StatusInternalServerError, "validated request missing", "internal")
		return
	}
	c, err := s.conditions.Create(r.Context(), in)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, toConditionResponse(c))
}

// listConditions handles GET /payment-conditions?active=true
func (s *Server) listConditions(w http.ResponseWriter, r *http.Request) {
	activeOnly, ok := boolQuery(w, r, "active")
	if !ok {
		return
	}
	list, err := s.conditions.List(r.Context(), activeOnly)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	out := make([]conditionResponse, 0, len(list))
	for _, c := range list {
		out = append(out, toConditionResponse(c))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) getCondition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := s.conditions.Get(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toConditionResponse(c))
}

// putCondition replaces a condition. Sales already invoiced keep their receivables.
func (s *Server) putCondition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	in, ok := conditionFrom(r)
	if !ok {
		writeErr(w, http.StatusInternalServerError, "validated request missing", "internal")
		return
	}
	in.ID = id
	c, err := s.conditions.Update(r.Context(), in)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toConditionResponse(c))
}

func (s *Server) deleteCondition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.conditions.Delete(r.Context(), id); err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// distribute previews an evenly split installment plan without storing it.
func (s *Server) distribute(w http.ResponseWriter, r *http.Request) {
	req, ok := r.Context().Value(ctxKeyDistribute).(distributeRequest)
	if !ok {
		writeErr(w, http.StatusInternalServerError, "validated request missing", "internal")
		return
	}
	interval := condition.DefaultInterval
	if req.IntervalDays != nil {
		interval = *req.IntervalDays
	}
	plan, err := condition.DistributeEvery(req.Installments, interval)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toInstallmentResponses(plan))
}
