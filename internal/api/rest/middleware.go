package rest

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/louisbranch/ballotbox/internal/platform/errors"
	"github.com/louisbranch/ballotbox/internal/voting/token"
)

type contextKey string

const identityKey contextKey = "identity"

// requireToken decodes the bearer token and stores the caller identity on the
// request context. The service re-resolves the stored role on every call, so
// a stale token claim cannot escalate.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			s.writeError(w, apperrors.New(apperrors.CodeUnauthorized, "authorization header is required"))
			return
		}
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			s.writeError(w, apperrors.New(apperrors.CodeUnauthorized, "authorization header must carry a bearer token"))
			return
		}
		identity, err := s.tokens.Decode(raw)
		if err != nil {
			s.writeError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerFrom(r *http.Request) token.Identity {
	identity, _ := r.Context().Value(identityKey).(token.Identity)
	return identity
}
