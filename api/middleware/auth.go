package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/retailpos/retailpos-backend/api/responses"
	pkgauth "github.com/retailpos/retailpos-backend/pkg/auth"
	"github.com/retailpos/retailpos-backend/pkg/config"
	pkgerrors "github.com/retailpos/retailpos-backend/pkg/errors"
	"github.com/retailpos/retailpos-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the
// cashier identity.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgauth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			// shifts and transactions key cashiers by login, not user id
			ctx := context.WithValue(r.Context(), ctxCashierID, claims.Login)
			ctx = context.WithValue(ctx, ctxLogin, claims.Login)
			ctx = context.WithValue(ctx, ctxRole, claims.Role)
			if claims.LocationID != nil {
				ctx = context.WithValue(ctx, ctxLocationID, claims.LocationID.String())
			}

			if logg != nil {
				ctx = logg.WithCashier(ctx, claims.Login)
				if claims.LocationID != nil {
					ctx = logg.WithLocationID(ctx, claims.LocationID.String())
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
