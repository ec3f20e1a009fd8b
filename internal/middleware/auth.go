package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/zhouzirui/ai-chat/backend/internal/model/user"
	"github.com/zhouzirui/ai-chat/backend/internal/service/auth"
	"github.com/zhouzirui/ai-chat/backend/pkg/utils"
)

type contextKey struct{}

// Authenticator resolves a bearer token to an active user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (user.User, error)
}

// RequireUser 校验 Bearer token，并把当前用户放入请求上下文
func RequireUser(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				utils.RespondUnauthorized(w, "Could not validate credentials")
				return
			}

			current, err := authn.Authenticate(r.Context(), token)
			switch {
			case errors.Is(err, auth.ErrInactive):
				utils.RespondError(w, http.StatusBadRequest, "Inactive user")
				return
			case err != nil:
				utils.RespondUnauthorized(w, "Could not validate credentials")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), current)))
		})
	}
}

// WithUser 返回携带用户的上下文
func WithUser(ctx context.Context, u user.User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// UserFrom 读取 RequireUser 放入的用户
func UserFrom(ctx context.Context) (user.User, bool) {
	u, ok := ctx.Value(contextKey{}).(user.User)
	return u, ok
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
