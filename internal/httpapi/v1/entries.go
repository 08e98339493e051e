// Journal entry handlers.
package v1

import "net/http"

func (s *Server) postEntry(w http.ResponseWriter, r *http.Request) {
	in, ok := entryFrom(r)
	if !ok {
		writeErr(w, http.StatusInternalServerError, "validated request missing", "internal")
		return
	}
	entry, err := s.journal.CreateEntry(r.Context(), in)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	list, err := s.journal.ListEntries(r.Context())
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	out := make([]entryResponse, 0, len(list))
	for _, e := range list {
		out = append(out, toEntryResponse(e))
	}
	toJSON(w, http.StatusOK, out)
}
