package models_test

import (
	"testing"
	"time"

	"bitbucket.org/nrsdigital/fieldaudit_backend/models"
	"bitbucket.org/nrsdigital/fieldaudit_backend/utils"
)

func TestWeeklyKpiSnapshotFreezesOncePerClosedWeek(t *testing.T) {
	skipUnlessIntegration(t)
	setupIntegrationDeps(t)

	mgr := managerContext(1)
	analyst, err := models.CreateAnalyst(mgr, &models.NewAnalyst{Name: "Alice", Role: models.RoleAnalyst})
	if err != nil {
		t.Fatalf("CreateAnalyst: %v", err)
	}
	store, err := models.CreateStore(mgr, &models.NewStore{Code: "LJ-001", Name: "Store 1"})
	if err != nil {
		t.Fatalf("CreateStore: %v", err)
	}
	if _, err := models.AssignStore(mgr, &models.NewAssignment{
		AnalystId:    analyst.ID,
		StoreId:      store.ID,
		WeeklyTarget: 3,
	}); err != nil {
		t.Fatalf("AssignStore: %v", err)
	}

	// A closed week freezes into a snapshot on first read and every later
	// read returns the same row.
	closedWeek := utils.StartOfWeek(time.Now()).AddDate(0, 0, -14)
	first, err := models.GetWeeklyKpi(mgr, analyst.ID, closedWeek)
	if err != nil {
		t.Fatalf("GetWeeklyKpi(closed week): %v", err)
	}
	if first.ID == 0 {
		t.Fatalf("expected a persisted snapshot for a closed week, got %+v", first)
	}
	if first.AssignedCount != 1 || first.VerifiedCount != 0 {
		t.Fatalf("unexpected snapshot values: %+v", first)
	}

	second, err := models.GetWeeklyKpi(mgr, analyst.ID, closedWeek)
	if err != nil {
		t.Fatalf("GetWeeklyKpi(repeat): %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected snapshot %d to be reused, got %d", first.ID, second.ID)
	}

	// The current week is still open: recomputed on every read, never stored.
	current, err := models.GetWeeklyKpi(mgr, analyst.ID, time.Now())
	if err != nil {
		t.Fatalf("GetWeeklyKpi(current week): %v", err)
	}
	if current.ID != 0 {
		t.Fatalf("the open week must not be persisted, got row %d", current.ID)
	}
}
