package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/louisbranch/ballotbox/internal/voting/domain/event"
)

func (s *Server) handleCastBallot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rankings []event.Ranking `json:"rankings"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	view, err := s.svc.CastBallot(r.Context(), callerFrom(r), chi.URLParam(r, "name"), req.Rankings)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleListBallots(w http.ResponseWriter, r *http.Request) {
	views, err := s.svc.ListBallots(r.Context(), callerFrom(r), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetBallot(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.GetBallot(r.Context(), callerFrom(r),
		chi.URLParam(r, "name"), chi.URLParam(r, "voter"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetBallotByConfirmation(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.GetBallotByConfirmation(r.Context(), callerFrom(r), chi.URLParam(r, "confirmation"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleTally(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.TallyElection(r.Context(), callerFrom(r), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}
