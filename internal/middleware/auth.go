package middleware

import (
	"net/http"

	"gamekeys-be/internal/auth"
	"gamekeys-be/internal/logger"
	"gamekeys-be/internal/utils"

	"go.uber.org/zap"
)

const ServiceAuthHeader = "X-Service-Auth"

type tokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// Auth resolves the caller from the access token. Anonymous requests pass
// through; a token that is present but invalid is rejected.
type Auth struct {
	tokens      tokenParser
	internalKey string
}

func NewAuth(tokens tokenParser, internalKey string) *Auth {
	return &Auth{tokens: tokens, internalKey: internalKey}
}

func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if a.internalKey != "" && r.Header.Get(ServiceAuthHeader) == a.internalKey {
			ctx = utils.WithInternalRequest(ctx)
		}

		tokenStr := auth.ExtractAccessToken(r)
		if tokenStr == "" {
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		claims, err := a.tokens.Parse(tokenStr)
		if err != nil {
			logger.FromCtx(ctx).Debug("rejected access token", zap.Error(err))
			utils.WriteJSONError(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		role := claims.Role
		if role == "" {
			role = utils.RoleUser
		}
		ctx = utils.SetUserContext(ctx, claims.UserID, claims.Email, role)
		ctx = logger.WithFields(ctx, zap.Uint("user_id", claims.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := utils.GetUserIDFromContext(r.Context()); !ok {
			utils.WriteJSONError(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin lets through admins and trusted internal callers.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if utils.IsInternalRequest(ctx) {
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := utils.GetUserIDFromContext(ctx); !ok {
			utils.WriteJSONError(w, "authentication required", http.StatusUnauthorized)
			return
		}
		if !utils.IsAdmin(ctx) {
			utils.WriteJSONError(w, "admin role required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
