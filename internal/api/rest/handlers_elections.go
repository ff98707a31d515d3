package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/louisbranch/ballotbox/internal/voting/service"
)

func (s *Server) handleCreateElection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string `json:"name"`
		SecretBallot bool   `json:"secret_ballot"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.svc.CreateElection(r.Context(), callerFrom(r), req.Name, req.SecretBallot); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, nil)
}

func (s *Server) handleListElections(w http.ResponseWriter, r *http.Request) {
	views, err := s.svc.ListElections(r.Context(), callerFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetElection(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.GetElection(r.Context(), callerFrom(r), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpdateElection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SecretBallot   *bool      `json:"secret_ballot"`
		NoVotingBefore *time.Time `json:"no_voting_before"`
		NoVotingAfter  *time.Time `json:"no_voting_after"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	err := s.svc.UpdateElection(r.Context(), callerFrom(r), chi.URLParam(r, "name"), service.ElectionChanges{
		SecretBallot:   req.SecretBallot,
		NoVotingBefore: req.NoVotingBefore,
		NoVotingAfter:  req.NoVotingAfter,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleLaunchElection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AllowEdit bool `json:"allow_edit"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.svc.LaunchElection(r.Context(), callerFrom(r), chi.URLParam(r, "name"), req.AllowEdit); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleFinalizeElection(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.FinalizeElection(r.Context(), callerFrom(r), chi.URLParam(r, "name")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleDeleteElection(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteElection(r.Context(), callerFrom(r), chi.URLParam(r, "name")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	names, err := s.svc.ListCandidates(r.Context(), callerFrom(r), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, names)
}

type namesRequest struct {
	Names []string `json:"names"`
}

func (s *Server) handleAddCandidates(w http.ResponseWriter, r *http.Request) {
	var req namesRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.svc.AddCandidates(r.Context(), callerFrom(r), chi.URLParam(r, "name"), req.Names); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleRemoveCandidates(w http.ResponseWriter, r *http.Request) {
	var req namesRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.svc.RemoveCandidates(r.Context(), callerFrom(r), chi.URLParam(r, "name"), req.Names); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleListVoters(w http.ResponseWriter, r *http.Request) {
	names, err := s.svc.ListVoters(r.Context(), callerFrom(r), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleAddVoters(w http.ResponseWriter, r *http.Request) {
	var req namesRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.svc.AddVoters(r.Context(), callerFrom(r), chi.URLParam(r, "name"), req.Names); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleRemoveVoters(w http.ResponseWriter, r *http.Request) {
	var req namesRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.svc.RemoveVoters(r.Context(), callerFrom(r), chi.URLParam(r, "name"), req.Names); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}
