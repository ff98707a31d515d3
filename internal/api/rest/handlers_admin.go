package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	names, err := s.svc.ListTables(r.Context(), callerFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleTableData(w http.ResponseWriter, r *http.Request) {
	table, err := s.svc.TableData(r.Context(), callerFrom(r), chi.URLParam(r, "table"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, table)
}
