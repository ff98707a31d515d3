// Package rest exposes the voting service over HTTP.
package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/louisbranch/ballotbox/internal/voting/service"
	"github.com/louisbranch/ballotbox/internal/voting/token"
)

// Server routes HTTP requests into the voting service.
type Server struct {
	svc    *service.Service
	tokens *token.Issuer
	logger *slog.Logger
}

// NewServer wires a REST server over one service.
func NewServer(svc *service.Service, tokens *token.Issuer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{svc: svc, tokens: tokens, logger: logger}
}

// Router builds the HTTP route tree. Everything except registration, login,
// and refresh requires a bearer token.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/refresh", s.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)

		r.Get("/users", s.handleListUsers)
		r.Get("/users/{name}", s.handleGetUser)
		r.Put("/users/{name}/role", s.handleSetRole)
		r.Put("/users/{name}/password", s.handleSetPassword)
		r.Put("/users/{name}/email", s.handleSetEmail)
		r.Put("/users/{name}/name", s.handleSetUserName)
		r.Delete("/users/{name}", s.handleRemoveUser)

		r.Post("/elections", s.handleCreateElection)
		r.Get("/elections", s.handleListElections)
		r.Get("/elections/{name}", s.handleGetElection)
		r.Patch("/elections/{name}", s.handleUpdateElection)
		r.Post("/elections/{name}/launch", s.handleLaunchElection)
		r.Post("/elections/{name}/finalize", s.handleFinalizeElection)
		r.Delete("/elections/{name}", s.handleDeleteElection)

		r.Get("/elections/{name}/candidates", s.handleListCandidates)
		r.Post("/elections/{name}/candidates", s.handleAddCandidates)
		r.Delete("/elections/{name}/candidates", s.handleRemoveCandidates)
		r.Get("/elections/{name}/voters", s.handleListVoters)
		r.Post("/elections/{name}/voters", s.handleAddVoters)
		r.Delete("/elections/{name}/voters", s.handleRemoveVoters)

		r.Put("/elections/{name}/ballot", s.handleCastBallot)
		r.Get("/elections/{name}/ballots", s.handleListBallots)
		r.Get("/elections/{name}/ballots/{voter}", s.handleGetBallot)
		r.Get("/ballots/{confirmation}", s.handleGetBallotByConfirmation)
		r.Get("/elections/{name}/tally", s.handleTally)

		r.Get("/admin/tables", s.handleListTables)
		r.Get("/admin/tables/{table}", s.handleTableData)
	})
	return r
}
