package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/nrsdigital/fieldaudit_backend/config"
	"bitbucket.org/nrsdigital/fieldaudit_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// attentionHour is the local hour after which an unmet daily target flags the
// analyst on the manager overview.
const attentionHour = 16

// WeeklyKPI is a persisted completion snapshot, unique per (analyst, ISO
// year, ISO week). Only fully elapsed weeks are snapshotted; the running week
// is always computed fresh.
type WeeklyKPI struct {
	ID                   int             `gorm:"primary_key" json:"id"`
	DepartmentId         int             `gorm:"index;not null" json:"department_id"`
	AnalystId            int             `gorm:"uniqueIndex:idx_kpi_analyst_week;not null" json:"analyst_id"`
	Year                 int             `gorm:"uniqueIndex:idx_kpi_analyst_week;not null" json:"year"`
	Week                 int             `gorm:"uniqueIndex:idx_kpi_analyst_week;not null" json:"week"`
	WeekStart            time.Time       `gorm:"not null" json:"week_start"`
	AssignedCount        int             `gorm:"not null;default:0" json:"assigned_count"`
	VerifiedCount        int             `gorm:"not null;default:0" json:"verified_count"`
	CompletionPercentage decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"completion_percentage"`
	GoalMet              *bool           `gorm:"not null;default:false" json:"goal_met"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// CompletionPercent computes verified/assigned as a percentage, zero when
// nothing is assigned.
func CompletionPercent(verified int, assigned int) decimal.Decimal {
	if assigned <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(verified)).
		Div(decimal.NewFromInt(int64(assigned))).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}

// GoalMet is true only when every assigned store was verified and at least
// one store was assigned.
func GoalMet(verified int, assigned int) bool {
	return assigned > 0 && verified == assigned
}

// computeWeeklyKpi builds the snapshot values from assignments applicable at
// week end and audits within [weekStart, weekStart+6].
func computeWeeklyKpi(ctx context.Context, departmentId int, analystId int, weekStart time.Time) (*WeeklyKPI, error) {
	weekEnd := utils.EndOfWeek(weekStart)

	assignments, err := GetActiveAssignments(ctx, analystId, weekEnd)
	if err != nil {
		return nil, err
	}

	verified := 0
	for _, a := range assignments {
		done, err := CountAuditsForStoreInRange(ctx, analystId, a.StoreId, weekStart, weekEnd)
		if err != nil {
			return nil, err
		}
		if done > 0 {
			verified++
		}
	}

	assigned := len(assignments)
	year, week := weekStart.ISOWeek()
	return &WeeklyKPI{
		DepartmentId:         departmentId,
		AnalystId:            analystId,
		Year:                 year,
		Week:                 week,
		WeekStart:            weekStart,
		AssignedCount:        assigned,
		VerifiedCount:        verified,
		CompletionPercentage: CompletionPercent(verified, assigned),
		GoalMet:              boolPtr(GoalMet(verified, assigned)),
	}, nil
}

func boolPtr(b bool) *bool { return &b }

// GetWeeklyKpi returns the snapshot for the week containing weekStart, or
// computes it on demand. Elapsed weeks are persisted on first computation.
func GetWeeklyKpi(ctx context.Context, analystId int, weekStart time.Time) (*WeeklyKPI, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}
	if err := utils.ValidateResourceId[Analyst](ctx, departmentId, analystId); err != nil {
		return nil, errors.New("analyst not found")
	}

	weekStart = utils.StartOfWeek(weekStart)
	year, week := weekStart.ISOWeek()

	db := config.GetDB()
	var snapshot WeeklyKPI
	err := db.WithContext(ctx).
		Where("analyst_id = ? AND year = ? AND week = ?", analystId, year, week).
		First(&snapshot).Error
	if err == nil {
		return &snapshot, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	kpi, err := computeWeeklyKpi(ctx, departmentId, analystId, weekStart)
	if err != nil {
		return nil, err
	}

	// only elapsed weeks freeze into snapshots
	if utils.EndOfWeek(weekStart).Before(time.Now()) {
		if err := db.WithContext(ctx).Create(kpi).Error; err != nil {
			// Two concurrent first reads of the same closed week race on the
			// unique (analyst_id, year, week) index; the loser returns the
			// winner's snapshot.
			if !isDuplicateKeyErr(err) {
				return nil, err
			}
			err = db.WithContext(ctx).
				Where("analyst_id = ? AND year = ? AND week = ?", analystId, year, week).
				First(&snapshot).Error
			if err != nil {
				return nil, err
			}
			return &snapshot, nil
		}
	}
	return kpi, nil
}

// MonthlyKPI is the multi-week trend view used by the dashboard.
type MonthlyKPI struct {
	AnalystId   int             `json:"analyst_id"`
	Weeks       []*WeeklyKPI    `json:"weeks"`
	SuccessRate decimal.Decimal `json:"success_rate"`
}

// GetMonthlyKpi returns the last 5 weeks (current first) and the success
// rate: the fraction of fully completed past weeks.
func GetMonthlyKpi(ctx context.Context, analystId int, now time.Time) (*MonthlyKPI, error) {
	currentWeek := utils.StartOfWeek(now)

	weeks := make([]*WeeklyKPI, 0, 5)
	pastTotal := 0
	pastMet := 0
	for i := 0; i < 5; i++ {
		weekStart := currentWeek.AddDate(0, 0, -7*i)
		kpi, err := GetWeeklyKpi(ctx, analystId, weekStart)
		if err != nil {
			return nil, err
		}
		weeks = append(weeks, kpi)
		if i > 0 {
			pastTotal++
			if kpi.GoalMet != nil && *kpi.GoalMet {
				pastMet++
			}
		}
	}

	return &MonthlyKPI{
		AnalystId:   analystId,
		Weeks:       weeks,
		SuccessRate: CompletionPercent(pastMet, pastTotal),
	}, nil
}

// StoreWeeklyProgress is the per-assignment progress row on the analyst
// dashboard.
type StoreWeeklyProgress struct {
	AssignmentId int    `json:"assignment_id"`
	StoreId      int    `json:"store_id"`
	StoreCode    string `json:"store_code"`
	StoreName    string `json:"store_name"`
	WeeklyTarget int    `json:"weekly_target"`
	DoneThisWeek int    `json:"done_this_week"`
}

// AnalystDashboard aggregates everything the analyst home screen shows.
type AnalystDashboard struct {
	AnalystId      int                    `json:"analyst_id"`
	Date           time.Time              `json:"date"`
	WorkingToday   bool                   `json:"working_today"`
	Quota          *DailyQuotaStatus      `json:"quota"`
	Stores         []*StoreWeeklyProgress `json:"stores"`
	AuditsThisWeek int                    `json:"audits_this_week"`
	DaysRemaining  int                    `json:"days_remaining"`
	Deadline       time.Time              `json:"deadline"`
	Schedule       []bool                 `json:"schedule"`
	LastAuditAt    *time.Time             `json:"last_audit_at"`
}

// GetAnalystDashboard builds the analyst's daily view: quota status,
// per-store weekly progress, the reconciled deadline and the week schedule.
func GetAnalystDashboard(ctx context.Context, analystId int) (*AnalystDashboard, error) {
	today, err := LocalToday(ctx, analystId)
	if err != nil {
		return nil, err
	}

	quota, err := GetDailyQuota(ctx, analystId, today)
	if err != nil {
		return nil, err
	}

	working, err := IsWorkingDay(ctx, analystId, today)
	if err != nil {
		return nil, err
	}

	assignments, err := GetActiveAssignments(ctx, analystId, today)
	if err != nil {
		return nil, err
	}

	weekStart := utils.StartOfWeek(today)
	weekEnd := utils.EndOfWeek(today)
	stores := make([]*StoreWeeklyProgress, 0, len(assignments))
	for _, a := range assignments {
		done, err := CountAuditsForStoreInRange(ctx, analystId, a.StoreId, weekStart, weekEnd)
		if err != nil {
			return nil, err
		}
		progress := &StoreWeeklyProgress{
			AssignmentId: a.ID,
			StoreId:      a.StoreId,
			WeeklyTarget: a.WeeklyTarget,
			DoneThisWeek: done,
		}
		if a.Store != nil {
			progress.StoreCode = a.Store.Code
			progress.StoreName = a.Store.Name
		}
		stores = append(stores, progress)
	}

	weekTotal, err := CountAuditsForAnalystInRange(ctx, analystId, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}

	deadline := EffectiveDeadline(assignments, today)
	daysRemaining := daysBetween(today, deadline)
	if daysRemaining < 0 {
		daysRemaining = 0
	}

	schedule, err := WeeklySchedule(ctx, analystId, today)
	if err != nil {
		return nil, err
	}

	var lastAuditAt *time.Time
	db := config.GetDB()
	var last StoreAudit
	err = db.WithContext(ctx).
		Where("analyst_id = ?", analystId).
		Order("audited_at DESC").
		First(&last).Error
	if err == nil {
		lastAuditAt = &last.AuditedAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return &AnalystDashboard{
		AnalystId:      analystId,
		Date:           today,
		WorkingToday:   working,
		Quota:          quota,
		Stores:         stores,
		AuditsThisWeek: weekTotal,
		DaysRemaining:  daysRemaining,
		Deadline:       deadline,
		Schedule:       schedule,
		LastAuditAt:    lastAuditAt,
	}, nil
}

// AnalystOverviewRow is one line of the manager overview.
type AnalystOverviewRow struct {
	AnalystId      int               `json:"analyst_id"`
	Name           string            `json:"name"`
	WorkingToday   bool              `json:"working_today"`
	Quota          *DailyQuotaStatus `json:"quota"`
	AssignedStores int               `json:"assigned_stores"`
	VerifiedWeek   int               `json:"verified_week"`
	NeedsAttention bool              `json:"needs_attention"`
}

// GetAnalystOverview builds the manager's all-analysts view. An analyst needs
// attention after 16:00 local time on a working day with the daily target
// still unmet.
func GetAnalystOverview(ctx context.Context) ([]*AnalystOverviewRow, error) {
	if err := RequirePermission(ctx, PermissionViewOverview); err != nil {
		return nil, err
	}

	analysts, err := GetAnalysts(ctx, true)
	if err != nil {
		return nil, err
	}

	rows := make([]*AnalystOverviewRow, 0, len(analysts))
	for _, analyst := range analysts {
		if analyst.Role != RoleAnalyst {
			continue
		}
		dashboard, err := GetAnalystDashboard(ctx, analyst.ID)
		if err != nil {
			return nil, err
		}

		verified := 0
		for _, s := range dashboard.Stores {
			if s.DoneThisWeek > 0 {
				verified++
			}
		}

		localNow := time.Now().In(analyst.Location())
		needsAttention := dashboard.WorkingToday &&
			localNow.Hour() >= attentionHour &&
			dashboard.Quota.Target > 0 &&
			dashboard.Quota.Completed < dashboard.Quota.Target

		rows = append(rows, &AnalystOverviewRow{
			AnalystId:      analyst.ID,
			Name:           analyst.Name,
			WorkingToday:   dashboard.WorkingToday,
			Quota:          dashboard.Quota,
			AssignedStores: len(dashboard.Stores),
			VerifiedWeek:   verified,
			NeedsAttention: needsAttention,
		})
	}
	return rows, nil
}
