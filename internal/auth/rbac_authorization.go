package auth

import (
	"context"
	"log/slog"
	"net/http"
)

type PermissionAuthorizer interface {
	HasAnyPermission(ctx context.Context, userPermissions []string, required ...string) (bool, error)
}

type RBACAuthorization struct {
	authorizer PermissionAuthorizer
	logger     *slog.Logger
}

func NewRBACAuthorization(authorizer PermissionAuthorizer, logger *slog.Logger) *RBACAuthorization {
	if logger == nil {
		logger = slog.Default()
	}
	return &RBACAuthorization{
		authorizer: authorizer,
		logger:     logger,
	}
}

// Require lets the request through when the authenticated user holds any of
// the given permissions.
func (ra *RBACAuthorization) Require(permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok || user == nil {
				ra.logger.Warn("authorization check failed: user not found in context")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			hasAccess, err := ra.authorizer.HasAnyPermission(r.Context(), user.Permissions, permissions...)
			if err != nil {
				ra.logger.ErrorContext(r.Context(), "authorization check failed", "error", err, "user_id", user.ID, "permissions", permissions)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			if !hasAccess {
				ra.logger.WarnContext(r.Context(), "access denied: insufficient permissions",
					"user_id", user.ID,
					"required_permissions", permissions,
					"user_permissions", user.Permissions)
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (ra *RBACAuthorization) RequireManageSettlements() func(http.Handler) http.Handler {
	return ra.Require(PermissionManageSettlements)
}

func (ra *RBACAuthorization) RequireApproveSettlements() func(http.Handler) http.Handler {
	return ra.Require(PermissionApproveSettlements)
}

func (ra *RBACAuthorization) RequireApproveExpense() func(http.Handler) http.Handler {
	return ra.Require(PermissionApproveExpenses)
}

func (ra *RBACAuthorization) RequireRejectExpense() func(http.Handler) http.Handler {
	return ra.Require(PermissionRejectExpenses)
}

func (ra *RBACAuthorization) RequireAdmin() func(http.Handler) http.Handler {
	return ra.Require(PermissionAdmin)
}
