package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/nrsdigital/fieldaudit_backend/config"
	"bitbucket.org/nrsdigital/fieldaudit_backend/utils"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// fallbackDailyTarget is the conservative target used when the quota
// calculation hits an unexpected internal error. The failure is logged, the
// caller's dashboard keeps working.
const fallbackDailyTarget = 5

// DailyQuota is the per-(analyst, local date) workload row. Created lazily on
// first access for the day; the target is recomputed on every read, only
// Completed and ExtraQuota are authoritative stored state.
type DailyQuota struct {
	ID           int       `gorm:"primary_key" json:"id"`
	DepartmentId int       `gorm:"index;not null" json:"department_id"`
	AnalystId    int       `gorm:"uniqueIndex:idx_quota_analyst_date;not null" json:"analyst_id"`
	Date         time.Time `gorm:"uniqueIndex:idx_quota_analyst_date;not null" json:"date"`
	Target       int       `gorm:"not null;default:0" json:"target"`
	Completed    int       `gorm:"not null;default:0" json:"completed"`
	ExtraQuota   int       `gorm:"not null;default:0" json:"extra_quota"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// DailyQuotaStatus is the read contract for the quota endpoint and the
// submission gate.
type DailyQuotaStatus struct {
	AnalystId int       `json:"analyst_id"`
	Date      time.Time `json:"date"`
	Target    int       `json:"target"`
	Completed int       `json:"completed"`
	Remaining int       `json:"remaining"`
	Blocked   bool      `json:"blocked"`
	Pending   int       `json:"pending"`
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// QuotaTarget is the pure core of the calculator. pending is the summed
// weekly backlog, workingDaysLeft counts today through Sunday. The divisor
// never drops below 1. Extra quota applies only when there is real backlog on
// a working day.
func QuotaTarget(workingToday bool, pending int, workingDaysLeft int, extraQuota int) int {
	if !workingToday {
		return 0
	}
	if pending <= 0 {
		return 0
	}
	divisor := workingDaysLeft
	if divisor < 1 {
		divisor = 1
	}
	return ceilDiv(pending, divisor) + extraQuota
}

// PendingBacklog sums max(0, weeklyTarget - auditsDoneThisWeek) over the
// analyst's applicable assignments for the week containing date.
func PendingBacklog(ctx context.Context, analystId int, date time.Time) (int, error) {
	assignments, err := GetActiveAssignments(ctx, analystId, date)
	if err != nil {
		return 0, err
	}
	weekStart := utils.StartOfWeek(date)
	weekEnd := utils.EndOfWeek(date)

	pending := 0
	for _, a := range assignments {
		done, err := CountAuditsForStoreInRange(ctx, analystId, a.StoreId, weekStart, weekEnd)
		if err != nil {
			return 0, err
		}
		if remaining := a.WeeklyTarget - done; remaining > 0 {
			pending += remaining
		}
	}
	return pending, nil
}

// WorkingDaysLeft counts the dates from date through the Sunday of the same
// week (inclusive) on which the analyst is on duty.
func WorkingDaysLeft(ctx context.Context, analystId int, date time.Time) (int, error) {
	count := 0
	for i := 0; i <= utils.DaysUntilSunday(date); i++ {
		working, err := IsWorkingDay(ctx, analystId, date.AddDate(0, 0, i))
		if err != nil {
			return 0, err
		}
		if working {
			count++
		}
	}
	return count, nil
}

// CalculateDailyTarget recomputes the analyst's target for date. On internal
// failure it logs and returns the conservative fallback instead of erroring
// out.
func CalculateDailyTarget(ctx context.Context, analystId int, date time.Time, extraQuota int) (target int, pending int) {
	logger := config.GetLogger()

	working, err := IsWorkingDay(ctx, analystId, date)
	if err != nil {
		config.LogError(logger, "models", "CalculateDailyTarget", "working-day check failed; using fallback target", analystId, err)
		return fallbackDailyTarget, 0
	}
	if !working {
		return 0, 0
	}

	pending, err = PendingBacklog(ctx, analystId, date)
	if err != nil {
		config.LogError(logger, "models", "CalculateDailyTarget", "backlog query failed; using fallback target", analystId, err)
		return fallbackDailyTarget, 0
	}

	daysLeft, err := WorkingDaysLeft(ctx, analystId, date)
	if err != nil {
		config.LogError(logger, "models", "CalculateDailyTarget", "working-days-left failed; using fallback target", analystId, err)
		return fallbackDailyTarget, pending
	}

	return QuotaTarget(true, pending, daysLeft, extraQuota), pending
}

// LocalToday resolves "today" on the analyst's local calendar so late-evening
// audits are not miscounted into the following day.
func LocalToday(ctx context.Context, analystId int) (time.Time, error) {
	analyst, err := utils.FetchSingleModel[Analyst](ctx, analystId)
	if err != nil {
		return time.Time{}, err
	}
	tz := analyst.Timezone
	if tz == "" {
		if ctxTz, ok := utils.GetTimezoneFromContext(ctx); ok && ctxTz != "" {
			tz = ctxTz
		} else {
			tz = utils.DefaultTimezone
		}
	}
	return utils.ConvertToDate(time.Now(), tz)
}

// getOrCreateQuotaRow fetches the unique (analyst, date) row, creating it on
// first access for the day.
func getOrCreateQuotaRow(tx *gorm.DB, ctx context.Context, departmentId int, analystId int, date time.Time) (*DailyQuota, error) {
	dateOnly := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	var quota DailyQuota
	err := tx.WithContext(ctx).
		Where("analyst_id = ? AND date = ?", analystId, dateOnly).
		First(&quota).Error
	if err == nil {
		return &quota, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	quota = DailyQuota{
		DepartmentId: departmentId,
		AnalystId:    analystId,
		Date:         dateOnly,
	}
	if err := tx.WithContext(ctx).Create(&quota).Error; err != nil {
		// Two first-accesses of the day can race on the unique
		// (analyst_id, date) index; the loser re-reads the winner's row.
		if !isDuplicateKeyErr(err) {
			return nil, err
		}
		err = tx.WithContext(ctx).
			Where("analyst_id = ? AND date = ?", analystId, dateOnly).
			First(&quota).Error
		if err != nil {
			return nil, err
		}
	}
	return &quota, nil
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// GetDailyQuota returns today's quota status for the analyst, recomputing the
// target (idempotent between submissions). Pass the zero time for "today" in
// the analyst's local calendar.
func GetDailyQuota(ctx context.Context, analystId int, date time.Time) (*DailyQuotaStatus, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}
	if err := utils.ValidateResourceId[Analyst](ctx, departmentId, analystId); err != nil {
		return nil, errors.New("analyst not found")
	}

	if date.IsZero() {
		var err error
		date, err = LocalToday(ctx, analystId)
		if err != nil {
			return nil, err
		}
	}

	db := config.GetDB()
	quota, err := getOrCreateQuotaRow(db, ctx, departmentId, analystId, date)
	if err != nil {
		return nil, err
	}

	target, pending := CalculateDailyTarget(ctx, analystId, date, quota.ExtraQuota)
	if target != quota.Target {
		if err := db.WithContext(ctx).Model(quota).UpdateColumn("Target", target).Error; err != nil {
			return nil, err
		}
		quota.Target = target
	}

	return quotaStatus(quota, pending), nil
}

func quotaStatus(quota *DailyQuota, pending int) *DailyQuotaStatus {
	remaining := quota.Target - quota.Completed
	if remaining < 0 {
		remaining = 0
	}
	return &DailyQuotaStatus{
		AnalystId: quota.AnalystId,
		Date:      quota.Date,
		Target:    quota.Target,
		Completed: quota.Completed,
		Remaining: remaining,
		Blocked:   quota.Completed >= quota.Target,
		Pending:   pending,
	}
}

// GrantExtraQuota raises today's target by count for emergencies. Additive,
// manager-only, and scoped to today's row only.
func GrantExtraQuota(ctx context.Context, analystId int, count int) (*DailyQuotaStatus, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}
	if err := RequirePermission(ctx, PermissionGrantQuota); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, &ValidationError{Field: "count", Message: "extra quota must be positive"}
	}
	if err := utils.ValidateResourceId[Analyst](ctx, departmentId, analystId); err != nil {
		return nil, errors.New("analyst not found")
	}

	today, err := LocalToday(ctx, analystId)
	if err != nil {
		return nil, err
	}

	var status *DailyQuotaStatus
	err = utils.QuotaLock(ctx, analystId, today, "models", "GrantExtraQuota", func() error {
		db := config.GetDB()
		return db.Transaction(func(tx *gorm.DB) error {
			quota, err := getOrCreateQuotaRow(tx, ctx, departmentId, analystId, today)
			if err != nil {
				return err
			}
			quota.ExtraQuota += count
			target, pending := CalculateDailyTarget(ctx, analystId, today, quota.ExtraQuota)
			quota.Target = target
			if err := tx.WithContext(ctx).Model(quota).Updates(map[string]interface{}{
				"ExtraQuota": quota.ExtraQuota,
				"Target":     quota.Target,
			}).Error; err != nil {
				return err
			}
			status = quotaStatus(quota, pending)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}
