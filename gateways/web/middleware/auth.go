package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/json"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/jwt"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/logger"
)

type User struct {
	ID   string
	Name string
}

type userKey struct{}

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey{}).(User)
	return u, ok
}

// Auth rejects requests without a valid bearer token and stores the caller
// in the request context.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := jwt.ParseTokenFromHeader(r)
			if err != nil {
				json.WriteError(w, http.StatusUnauthorized, err)
				return
			}

			claims, err := jwt.Parse(token, secret)
			if err != nil {
				logger.Debug(r.Context(), "rejected token", slog.String("error", err.Error()))
				json.WriteError(w, http.StatusUnauthorized, jwt.ErrInvalidToken)
				return
			}

			ctx := WithUser(r.Context(), User{ID: claims.Subject, Name: claims.Name})
			ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(slog.String("user_id", claims.Subject)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
