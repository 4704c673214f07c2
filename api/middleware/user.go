package middleware

import (
	"net/http"
	"strings"

	"github.com/procurehub/webshop-backend/api/responses"
	pkgerrors "github.com/procurehub/webshop-backend/pkg/errors"
	"github.com/procurehub/webshop-backend/pkg/logger"
)

// userHeader carries the authenticated user set by the SSO gateway in
// front of this service.
const userHeader = "X-Webshop-User"

// UserContext copies the gateway-provided user header into the request
// context so handlers can key carts and flows by owner.
func UserContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner := strings.TrimSpace(r.Header.Get(userHeader))
			ctx := r.Context()
			if owner != "" {
				ctx = WithUserID(ctx, owner)
				if logg != nil {
					ctx = logg.WithUserID(ctx, owner)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects requests that arrived without a user identity.
func RequireUser(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if UserIDFromContext(r.Context()) == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
