package models

import (
	"context"

	"bitbucket.org/nrsdigital/fieldaudit_backend/utils"
)

// Permission names one guarded action. Transitions check the actor's role
// against the table below instead of comparing role strings inline.
type Permission string

const (
	PermissionManageAssignments Permission = "manage_assignments"
	PermissionGrantQuota        Permission = "grant_quota"
	PermissionSubmitAudits      Permission = "submit_audits"
	PermissionTransitionIssues  Permission = "transition_issues"
	PermissionManageOverrides   Permission = "manage_overrides"
	PermissionViewOverview      Permission = "view_overview"
)

var rolePermissions = map[Role]map[Permission]bool{
	RoleAnalyst: {
		PermissionSubmitAudits: true,
	},
	RoleManager: {
		PermissionManageAssignments: true,
		PermissionGrantQuota:        true,
		PermissionSubmitAudits:      true,
		PermissionTransitionIssues:  true,
		PermissionManageOverrides:   true,
		PermissionViewOverview:      true,
	},
	RoleAdmin: {
		PermissionManageAssignments: true,
		PermissionGrantQuota:        true,
		PermissionSubmitAudits:      true,
		PermissionTransitionIssues:  true,
		PermissionManageOverrides:   true,
		PermissionViewOverview:      true,
	},
}

func HasPermission(role Role, permission Permission) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	return perms[permission]
}

// RequirePermission reads the actor's role from the request context and
// returns PermissionError when the action is not allowed.
func RequirePermission(ctx context.Context, permission Permission) error {
	roleStr, ok := utils.GetUserRoleFromContext(ctx)
	if !ok || roleStr == "" {
		return &PermissionError{Role: "", Action: string(permission)}
	}
	role := Role(roleStr)
	if !HasPermission(role, permission) {
		return &PermissionError{Role: role, Action: string(permission)}
	}
	return nil
}
