package v1

import (
	"net/http"

	"github.com/tinoosan/bizledger/internal/dictionary"
	"github.com/tinoosan/bizledger/internal/ledger"
)

// GET /v1/dictionary/account-types?type=
func (s *Server) accountTypesDictionary(w http.ResponseWriter, r *http.Request) {
	var only ledger.AccountType
	if ts := r.URL.Query().Get("type"); ts != "" {
		only = ledger.AccountType(ts)
		if !only.Valid() {
			badRequest(w, "invalid type")
			return
		}
	}
	type typeItem struct {
		dictionary.TypeDef
		Starter []dictionary.Node `json:"starter"`
	}
	out := struct {
		Types    []typeItem              `json:"types"`
		Subtypes []dictionary.SubtypeDef `json:"subtypes"`
	}{Types: []typeItem{}, Subtypes: dictionary.Subtypes()}
	for _, td := range dictionary.Types() {
		if only != "" && td.Type != only {
			continue
		}
		out.Types = append(out.Types, typeItem{TypeDef: td, Starter: dictionary.StarterChart(td.Type)})
	}
	toJSON(w, http.StatusOK, out)
}
