package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/cmlabs-hris/hris-sync/internal/domain/auth"
	"github.com/cmlabs-hris/hris-sync/internal/handler/http/response"
	"github.com/cmlabs-hris/hris-sync/internal/pkg/jwt"
	"github.com/go-chi/jwtauth/v5"
)

type principalKey struct{}

// AuthRequired rejects requests without a verified access token and puts the
// caller's Principal in the request context.
func AuthRequired(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			token, claims, err := jwtauth.FromContext(r.Context())

			if err != nil {
				if errors.Is(err, jwtauth.ErrExpired) {
					response.HandleError(w, auth.ErrTokenExpired)
					return
				}
				response.Unauthorized(w, err.Error())
				return
			}

			if token == nil {
				response.HandleError(w, auth.ErrInvalidToken)
				return
			}

			// SSE tokens only open the stream.
			tokenType, ok := claims["type"].(string)
			if !ok || tokenType != jwt.TypeAccess {
				response.HandleError(w, auth.ErrInvalidToken)
				return
			}
			principal, err := auth.PrincipalFromClaims(claims)
			if err != nil {
				response.HandleError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		}
		return http.HandlerFunc(hfn)
	}
}

// PrincipalFromRequest returns the caller of an authenticated request. It
// must run behind AuthRequired.
func PrincipalFromRequest(r *http.Request) (auth.Principal, bool) {
	p, ok := r.Context().Value(principalKey{}).(auth.Principal)
	return p, ok
}
