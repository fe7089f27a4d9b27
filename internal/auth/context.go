package auth

import (
	"context"

	"github.com/dukerupert/messledger/internal/model"
)

type contextKey struct{}

type AuthContext struct {
	UserID int64
	Role   model.Role
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}

func IsAdmin(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role == model.RoleAdmin
}

// CanManageDeposits reports whether the caller may record and approve
// deposits for other members.
func CanManageDeposits(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role.CanManageDeposits()
}

// IsSelfOrAdmin reports whether the caller is userID or an admin.
func IsSelfOrAdmin(ctx context.Context, userID int64) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.UserID == userID || ac.Role == model.RoleAdmin
}
