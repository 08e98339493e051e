// Chart of accounts handlers.
package v1

import (
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tinoosan/bizledger/internal/export"
)

func (s *Server) postAccount(w http.ResponseWriter, r *http.Request) {
	in, ok := createInputFrom(r)
	if !ok {
		writeErr(w, http.StatusInternalServerError, "validated request missing", "internal")
		return
	}
	acc, err := s.accounts.Create(r.Context(), in)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, toAccountResponse(acc))
}

// listAccounts handles GET /accounts?active=true
func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	activeOnly, ok := boolQuery(w, r, "active")
	if !ok {
		return
	}
	accs, err := s.accounts.List(r.Context(), activeOnly)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponses(accs))
}

func (s *Server) accountTree(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.accounts.Tree(r.Context())
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toTreeResponse(nodes))
}

// nextCode handles GET /accounts/next-code?parent_id=; no parent means a new root.
func (s *Server) nextCode(w http.ResponseWriter, r *http.Request) {
	parentID, ok := optionalUUIDQuery(w, r, "parent_id")
	if !ok {
		return
	}
	code, err := s.accounts.NextCode(r.Context(), parentID)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	depth, err := s.accounts.ComputeDepth(r.Context(), parentID)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, nextCodeResponse{ParentID: parentID, Code: code, Depth: depth})
}

// eligibleParents handles GET /accounts/eligible-parents?for=
func (s *Server) eligibleParents(w http.ResponseWriter, r *http.Request) {
	forID, ok := optionalUUIDQuery(w, r, "for")
	if !ok {
		return
	}
	accs, err := s.accounts.ListEligibleParents(r.Context(), forID)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponses(accs))
}

func (s *Server) postingAccounts(w http.ResponseWriter, r *http.Request) {
	accs, err := s.accounts.PostingAccounts(r.Context())
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponses(accs))
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	acc, err := s.accounts.Get(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponse(acc))
}

// patchAccount handles PATCH /accounts/{id}. Moving an account re-codes its
// whole subtree; the response carries the account's new code.
func (s *Server) patchAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	patch, ok := updateInputFrom(r)
	if !ok {
		writeErr(w, http.StatusInternalServerError, "validated request missing", "internal")
		return
	}
	acc, err := s.accounts.Update(r.Context(), id, patch)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponse(acc))
}

func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.accounts.Delete(r.Context(), id); err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// accountBalance handles GET /accounts/{id}/balance?as_of=YYYY-MM-DD
func (s *Server) accountBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var asOf *time.Time
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			badRequest(w, "as_of: want YYYY-MM-DD")
			return
		}
		asOf = &t
	}
	bal, err := s.journal.AccountBalance(r.Context(), id, asOf)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	minor, _ := bal.MinorUnits()
	toJSON(w, http.StatusOK, balanceResponse{
		AccountID:    id,
		AsOf:         asOf,
		Currency:     bal.Curr().Code(),
		Balance:      bal.Decimal().String(),
		BalanceMinor: minor,
	})
}

// exportChart streams the chart of accounts as an xlsx workbook.
func (s *Server) exportChart(w http.ResponseWriter, r *http.Request) {
	accs, err := s.accounts.List(r.Context(), false)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="chart-of-accounts.xlsx"`)
	if err := export.Chart(w, accs); err != nil {
		s.log.Error("chart export failed", "err", err)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func optionalUUIDQuery(w http.ResponseWriter, r *http.Request, name string) (*uuid.UUID, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		badRequest(w, "invalid "+name)
		return nil, false
	}
	return &id, true
}

func boolQuery(w http.ResponseWriter, r *http.Request, name string) (bool, bool) {
	switch r.URL.Query().Get(name) {
	case "", "false", "0":
		return false, true
	case "true", "1":
		return true, true
	}
	badRequest(w, name+": want true or false")
	return false, false
}
