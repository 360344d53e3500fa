package auth

import "context"

const (
	PermissionAdmin              = "admin"
	PermissionManageSettlements  = "manage_settlements"
	PermissionApproveSettlements = "approve_settlements"
	PermissionApproveExpenses    = "approve_expenses"
	PermissionRejectExpenses     = "reject_expenses"
)

type PermissionChecker interface {
	HasAnyPermission(ctx context.Context, userPermissions []string, required ...string) (bool, error)
	CanManageSettlements(userPermissions []string) bool
	CanApproveSettlements(userPermissions []string) bool
	CanApproveExpenses(userPermissions []string) bool
	CanRejectExpenses(userPermissions []string) bool
	IsAdmin(userPermissions []string) bool
}

// DefaultPermissionChecker grants admin every permission.
type DefaultPermissionChecker struct{}

func NewPermissionChecker() *DefaultPermissionChecker {
	return &DefaultPermissionChecker{}
}

func (c *DefaultPermissionChecker) HasAnyPermission(_ context.Context, userPermissions []string, required ...string) (bool, error) {
	return c.hasAny(userPermissions, required...), nil
}

func (c *DefaultPermissionChecker) CanManageSettlements(userPermissions []string) bool {
	return c.hasAny(userPermissions, PermissionManageSettlements)
}

func (c *DefaultPermissionChecker) CanApproveSettlements(userPermissions []string) bool {
	return c.hasAny(userPermissions, PermissionApproveSettlements)
}

func (c *DefaultPermissionChecker) CanApproveExpenses(userPermissions []string) bool {
	return c.hasAny(userPermissions, PermissionApproveExpenses)
}

func (c *DefaultPermissionChecker) CanRejectExpenses(userPermissions []string) bool {
	return c.hasAny(userPermissions, PermissionRejectExpenses)
}

func (c *DefaultPermissionChecker) IsAdmin(userPermissions []string) bool {
	for _, p := range userPermissions {
		if p == PermissionAdmin {
			return true
		}
	}
	return false
}

func (c *DefaultPermissionChecker) hasAny(userPermissions []string, required ...string) bool {
	for _, userPerm := range userPermissions {
		if userPerm == PermissionAdmin {
			return true
		}
		for _, requiredPerm := range required {
			if userPerm == requiredPerm {
				return true
			}
		}
	}
	return false
}
