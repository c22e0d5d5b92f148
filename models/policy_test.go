package models

import (
	"context"
	"errors"
	"testing"

	"bitbucket.org/nrsdigital/fieldaudit_backend/utils"
)

func TestAnalystPermissions(t *testing.T) {
	if !HasPermission(RoleAnalyst, PermissionSubmitAudits) {
		t.Fatalf("analysts must be able to submit audits")
	}
	denied := []Permission{
		PermissionManageAssignments,
		PermissionGrantQuota,
		PermissionTransitionIssues,
		PermissionManageOverrides,
		PermissionViewOverview,
	}
	for _, p := range denied {
		if HasPermission(RoleAnalyst, p) {
			t.Fatalf("analysts must not hold %s", p)
		}
	}
}

func TestManagerAndAdminHoldAllPermissions(t *testing.T) {
	all := []Permission{
		PermissionManageAssignments,
		PermissionGrantQuota,
		PermissionSubmitAudits,
		PermissionTransitionIssues,
		PermissionManageOverrides,
		PermissionViewOverview,
	}
	for _, role := range []Role{RoleManager, RoleAdmin} {
		for _, p := range all {
			if !HasPermission(role, p) {
				t.Fatalf("%s must hold %s", role, p)
			}
		}
	}
}

func TestUnknownRoleHasNoPermissions(t *testing.T) {
	if HasPermission(Role("intern"), PermissionSubmitAudits) {
		t.Fatalf("unknown roles must hold nothing")
	}
}

func TestRequirePermissionReadsContext(t *testing.T) {
	ctx := utils.SetUserRoleInContext(context.Background(), string(RoleManager))
	if err := RequirePermission(ctx, PermissionGrantQuota); err != nil {
		t.Fatalf("expected manager to pass, got %v", err)
	}

	ctx = utils.SetUserRoleInContext(context.Background(), string(RoleAnalyst))
	var perr *PermissionError
	if err := RequirePermission(ctx, PermissionGrantQuota); !errors.As(err, &perr) {
		t.Fatalf("expected PermissionError for analyst, got %v", err)
	}

	// Missing role in context is denied, not defaulted.
	if err := RequirePermission(context.Background(), PermissionSubmitAudits); !errors.As(err, &perr) {
		t.Fatalf("expected PermissionError with no role, got %v", err)
	}
}
