package models_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bitbucket.org/nrsdigital/fieldaudit_backend/config"
	"bitbucket.org/nrsdigital/fieldaudit_backend/models"
	"bitbucket.org/nrsdigital/fieldaudit_backend/utils"
	"bitbucket.org/nrsdigital/fieldaudit_backend/workflow"
)

func compliantItems() []*models.NewStoreAuditItem {
	return []*models.NewStoreAuditItem{
		{Category: models.ChecklistCategoryCameras, Compliant: utils.NewTrue()},
		{Category: models.ChecklistCategoryCleanliness, Compliant: utils.NewTrue()},
	}
}

// analystContext scopes the context to the given analyst as the acting user.
func analystContext(departmentId int, analyst *models.Analyst) context.Context {
	ctx := context.Background()
	ctx = utils.SetDepartmentIdInContext(ctx, departmentId)
	ctx = utils.SetUserIdInContext(ctx, analyst.ID)
	ctx = utils.SetUserNameInContext(ctx, analyst.Name)
	ctx = utils.SetUserRoleInContext(ctx, string(models.RoleManager))
	return ctx
}

func TestSubmitAuditUpdatesQuotaIssueAndStoreFlags(t *testing.T) {
	skipUnlessIntegration(t)
	setupIntegrationDeps(t)

	mgr := managerContext(1)
	analyst, err := models.CreateAnalyst(mgr, &models.NewAnalyst{Name: "Alice", Role: models.RoleManager})
	if err != nil {
		t.Fatalf("CreateAnalyst: %v", err)
	}
	store, err := models.CreateStore(mgr, &models.NewStore{Code: "LJ-001", Name: "Store 1"})
	if err != nil {
		t.Fatalf("CreateStore: %v", err)
	}
	ctx := analystContext(1, analyst)

	if _, err := models.AssignStore(mgr, &models.NewAssignment{
		AnalystId:    analyst.ID,
		StoreId:      store.ID,
		WeeklyTarget: 10,
	}); err != nil {
		t.Fatalf("AssignStore: %v", err)
	}

	before, err := models.GetDailyQuota(ctx, analyst.ID, time.Time{})
	if err != nil {
		t.Fatalf("GetDailyQuota: %v", err)
	}
	if before.Target < 1 || before.Completed != 0 || before.Blocked {
		t.Fatalf("unexpected initial quota: %+v", before)
	}

	// Fully compliant submission: no issue, store flags refreshed.
	result, err := workflow.SubmitAudit(ctx, &models.NewStoreAudit{
		StoreId: store.ID,
		Items:   compliantItems(),
	})
	if err != nil {
		t.Fatalf("SubmitAudit(compliant): %v", err)
	}
	if result.Audit.Result != models.AuditResultCompliant {
		t.Fatalf("expected compliant result, got %s", result.Audit.Result)
	}
	if result.Issue != nil {
		t.Fatalf("compliant audit must not open an issue")
	}
	if result.Quota.Completed != 1 {
		t.Fatalf("expected completed=1, got %+v", result.Quota)
	}

	refreshed, err := models.GetStore(mgr, store.ID)
	if err != nil {
		t.Fatalf("GetStore: %v", err)
	}
	if refreshed.LastAuditDate == nil || refreshed.LastAuditResult != models.AuditResultCompliant {
		t.Fatalf("store flags not refreshed: %+v", refreshed)
	}

	// Non-compliant camera item: issue opened, item attached, events recorded.
	result, err = workflow.SubmitAudit(ctx, &models.NewStoreAudit{
		StoreId: store.ID,
		Items: []*models.NewStoreAuditItem{
			{
				Category:      models.ChecklistCategoryCameras,
				Compliant:     utils.NewFalse(),
				RecordingMode: models.RecordingModeMotion,
				Notes:         "camera 3 offline",
			},
		},
	})
	if err != nil {
		t.Fatalf("SubmitAudit(irregular): %v", err)
	}
	if result.Audit.Result != models.AuditResultIrregular {
		t.Fatalf("expected irregular result, got %s", result.Audit.Result)
	}
	if result.Issue == nil || result.Issue.Status != models.IssueStatusOpen {
		t.Fatalf("expected an open issue, got %+v", result.Issue)
	}
	if result.Audit.Items[0].IssueId == nil || *result.Audit.Items[0].IssueId != result.Issue.ID {
		t.Fatalf("non-compliant item not attached to the issue")
	}

	events, err := models.GetIssueEvents(ctx, result.Issue.ID)
	if err != nil {
		t.Fatalf("GetIssueEvents: %v", err)
	}
	if len(events) != 2 ||
		events[0].Action != models.IssueActionOpened ||
		events[1].Action != models.IssueActionItemAttached {
		t.Fatalf("unexpected event trail: %+v", events)
	}

	// A further irregular submission reuses the same open issue.
	firstIssueId := result.Issue.ID
	result, err = workflow.SubmitAudit(ctx, &models.NewStoreAudit{
		StoreId: store.ID,
		Items: []*models.NewStoreAuditItem{
			{Category: models.ChecklistCategoryTotem, Compliant: utils.NewFalse()},
		},
	})
	if err != nil {
		t.Fatalf("SubmitAudit(second irregular): %v", err)
	}
	if result.Issue.ID != firstIssueId {
		t.Fatalf("expected issue %d to be reused, got %d", firstIssueId, result.Issue.ID)
	}

	// The dashboard reflects every submission made this week.
	dashboard, err := models.GetAnalystDashboard(ctx, analyst.ID)
	if err != nil {
		t.Fatalf("GetAnalystDashboard: %v", err)
	}
	if dashboard.AuditsThisWeek != 3 {
		t.Fatalf("expected 3 audits this week, got %d", dashboard.AuditsThisWeek)
	}
}

func TestSubmitAuditBlocksWhenQuotaReached(t *testing.T) {
	skipUnlessIntegration(t)
	setupIntegrationDeps(t)

	mgr := managerContext(1)
	analyst, err := models.CreateAnalyst(mgr, &models.NewAnalyst{Name: "Alice", Role: models.RoleManager})
	if err != nil {
		t.Fatalf("CreateAnalyst: %v", err)
	}
	store, err := models.CreateStore(mgr, &models.NewStore{Code: "LJ-001", Name: "Store 1"})
	if err != nil {
		t.Fatalf("CreateStore: %v", err)
	}
	ctx := analystContext(1, analyst)

	if _, err := models.AssignStore(mgr, &models.NewAssignment{
		AnalystId:    analyst.ID,
		StoreId:      store.ID,
		WeeklyTarget: 20,
	}); err != nil {
		t.Fatalf("AssignStore: %v", err)
	}

	// Keep submitting until the daily gate closes. With a backlog of 20 the
	// target always stays ahead of zero, so the gate must trip before the
	// backlog drains.
	var quotaErr *models.QuotaExceededError
	blocked := false
	for i := 0; i < 20; i++ {
		_, err := workflow.SubmitAudit(ctx, &models.NewStoreAudit{
			StoreId: store.ID,
			Items:   compliantItems(),
		})
		if err != nil {
			if !errors.As(err, &quotaErr) {
				t.Fatalf("submission %d: expected QuotaExceededError, got %v", i, err)
			}
			blocked = true
			break
		}
	}
	if !blocked {
		t.Fatalf("the quota gate never closed")
	}
	if quotaErr.Completed < quotaErr.Target {
		t.Fatalf("blocked before the target was met: %+v", quotaErr)
	}

	// Extra quota reopens the gate for exactly that many submissions.
	granted, err := models.GrantExtraQuota(mgr, analyst.ID, 2)
	if err != nil {
		t.Fatalf("GrantExtraQuota: %v", err)
	}
	if granted.Blocked {
		t.Fatalf("expected the gate to reopen after the grant: %+v", granted)
	}
	for i := 0; i < 2; i++ {
		if _, err := workflow.SubmitAudit(ctx, &models.NewStoreAudit{
			StoreId: store.ID,
			Items:   compliantItems(),
		}); err != nil {
			t.Fatalf("post-grant submission %d: %v", i, err)
		}
	}
}

func TestSubmitAuditRejectedWithNoBacklog(t *testing.T) {
	skipUnlessIntegration(t)
	setupIntegrationDeps(t)

	mgr := managerContext(1)
	analyst, err := models.CreateAnalyst(mgr, &models.NewAnalyst{Name: "Alice", Role: models.RoleManager})
	if err != nil {
		t.Fatalf("CreateAnalyst: %v", err)
	}
	store, err := models.CreateStore(mgr, &models.NewStore{Code: "LJ-001", Name: "Store 1"})
	if err != nil {
		t.Fatalf("CreateStore: %v", err)
	}
	ctx := analystContext(1, analyst)

	// Nothing assigned means a zero target, and a zero target admits no
	// submissions at all.
	quota, err := models.GetDailyQuota(ctx, analyst.ID, time.Time{})
	if err != nil {
		t.Fatalf("GetDailyQuota: %v", err)
	}
	if quota.Target != 0 || !quota.Blocked {
		t.Fatalf("expected target 0 and blocked with no assignments, got %+v", quota)
	}

	var quotaErr *models.QuotaExceededError
	_, err = workflow.SubmitAudit(ctx, &models.NewStoreAudit{
		StoreId: store.ID,
		Items:   compliantItems(),
	})
	if !errors.As(err, &quotaErr) {
		t.Fatalf("expected QuotaExceededError, got %v", err)
	}
	if quotaErr.Target != 0 {
		t.Fatalf("expected target 0 in the error, got %+v", quotaErr)
	}
}

func TestReverificationSweepFlagsStaleStores(t *testing.T) {
	skipUnlessIntegration(t)
	setupIntegrationDeps(t)

	mgr := managerContext(1)
	analyst, err := models.CreateAnalyst(mgr, &models.NewAnalyst{Name: "Alice", Role: models.RoleManager})
	if err != nil {
		t.Fatalf("CreateAnalyst: %v", err)
	}
	never, err := models.CreateStore(mgr, &models.NewStore{Code: "LJ-001", Name: "Never Audited"})
	if err != nil {
		t.Fatalf("CreateStore(never): %v", err)
	}
	fresh, err := models.CreateStore(mgr, &models.NewStore{Code: "LJ-002", Name: "Fresh"})
	if err != nil {
		t.Fatalf("CreateStore(fresh): %v", err)
	}
	for _, s := range []*models.Store{never, fresh} {
		if _, err := models.AssignStore(mgr, &models.NewAssignment{
			AnalystId:    analyst.ID,
			StoreId:      s.ID,
			WeeklyTarget: 10,
		}); err != nil {
			t.Fatalf("AssignStore(%s): %v", s.Code, err)
		}
	}

	ctx := analystContext(1, analyst)
	if _, err := workflow.SubmitAudit(ctx, &models.NewStoreAudit{
		StoreId: fresh.ID,
		Items:   compliantItems(),
	}); err != nil {
		t.Fatalf("SubmitAudit: %v", err)
	}

	flagged, err := workflow.MarkStoresForReverification(mgr, workflow.DefaultStalenessWindow)
	if err != nil {
		t.Fatalf("MarkStoresForReverification: %v", err)
	}
	if flagged != 1 {
		t.Fatalf("expected exactly the never-audited store flagged, got %d", flagged)
	}

	pending, err := models.GetReverificationPendingStores(mgr)
	if err != nil {
		t.Fatalf("GetReverificationPendingStores: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != never.ID {
		t.Fatalf("unexpected pending list: %+v", pending)
	}

	// Auditing the flagged store clears the flag.
	if _, err := workflow.SubmitAudit(ctx, &models.NewStoreAudit{
		StoreId: never.ID,
		Items:   compliantItems(),
	}); err != nil {
		t.Fatalf("SubmitAudit(never): %v", err)
	}
	db := config.GetDB()
	var cleared models.Store
	if err := db.First(&cleared, never.ID).Error; err != nil {
		t.Fatalf("reload store: %v", err)
	}
	if cleared.NeedsReverification == nil || *cleared.NeedsReverification {
		t.Fatalf("expected the flag cleared after a new audit")
	}

	// A second sweep right away flags nothing new.
	flagged, err = workflow.MarkStoresForReverification(mgr, workflow.DefaultStalenessWindow)
	if err != nil {
		t.Fatalf("MarkStoresForReverification(second): %v", err)
	}
	if flagged != 0 {
		t.Fatalf("expected no stores flagged on the second sweep, got %d", flagged)
	}
}
