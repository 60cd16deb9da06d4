package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/PaulBabatuyi/socialchat/internal/auth"
)

// context key type for storing auth claims in context
type authContextKey struct{}

// getClaimsFromContext extracts auth claims from the context, if present.
func getClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(authContextKey{}).(*auth.Claims)
	return c, ok && c != nil
}

// authenticate wraps next so it only runs with a verified bearer token. A
// missing token is 401, a token that fails verification is 403. The verified
// claims are attached to the request context.
func (s *Server) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, token, _ := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !strings.EqualFold(scheme, "Bearer") || token == "" {
			s.writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		claims, err := s.auth.VerifyToken(token)
		if err != nil {
			s.log.WithError(err).WithField("remote", r.RemoteAddr).Debug("rejected bearer token")
			s.writeError(w, http.StatusForbidden, "Forbidden")
			return
		}

		ctx := context.WithValue(r.Context(), authContextKey{}, claims)
		next(w, r.WithContext(ctx))
	}
}
