package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/dukerupert/messledger/internal/auth"
	"github.com/dukerupert/messledger/internal/model"
)

// UserLookup resolves the member behind a token.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// RequireAuth validates the bearer token and populates AuthContext. The
// role is read from the directory so role changes apply to live tokens, and
// deactivated members are refused.
func RequireAuth(tokens *auth.TokenManager, users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", auth.ErrMissingToken.Error())
				return
			}

			claimed, err := tokens.Validate(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", auth.ErrInvalidToken.Error())
				return
			}

			user, err := users.GetByID(r.Context(), claimed.UserID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal", "failed to load user")
				return
			}
			if user == nil || !user.Active {
				writeError(w, http.StatusUnauthorized, "unauthorized", "account is not active")
				return
			}

			ctx := auth.WithAuth(r.Context(), auth.AuthContext{UserID: user.ID, Role: user.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin checks that the authenticated user has the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			writeError(w, http.StatusForbidden, "forbidden", "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireDepositManager lets admins and managers through.
func RequireDepositManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.CanManageDeposits(r.Context()) {
			writeError(w, http.StatusForbidden, "forbidden", "admin or manager access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
