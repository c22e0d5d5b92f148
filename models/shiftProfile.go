package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/nrsdigital/fieldaudit_backend/config"
	"bitbucket.org/nrsdigital/fieldaudit_backend/utils"
)

// ShiftProfile anchors an analyst's 6-on/2-off rotation. AnchorDate is the
// first day-off of the cycle; the pattern repeats every 8 days.
type ShiftProfile struct {
	ID           int       `gorm:"primary_key" json:"id"`
	DepartmentId int       `gorm:"index;not null" json:"department_id"`
	AnalystId    int       `gorm:"uniqueIndex;not null" json:"analyst_id" binding:"required"`
	AnchorDate   time.Time `gorm:"not null" json:"anchor_date" binding:"required"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewShiftProfile struct {
	AnalystId  int       `json:"analyst_id" binding:"required" validate:"required"`
	AnchorDate time.Time `json:"anchor_date" binding:"required" validate:"required"`
}

const rotationCycleDays = 8

// RotationIsWorkingDay evaluates the 6-on/2-off pattern for a date, both
// arguments truncated to calendar dates in the same location. Offsets 0 and 1
// from the anchor are the two days off. Dates before the anchor have no
// retroactive off-days.
func RotationIsWorkingDay(anchor time.Time, date time.Time) bool {
	if date.Before(anchor) {
		return true
	}
	days := daysBetween(anchor, date)
	offset := days % rotationCycleDays
	return offset != 0 && offset != 1
}

// daysBetween counts whole calendar days from a to b (a <= b), robust to DST
// shifts between the two dates.
func daysBetween(a, b time.Time) int {
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au) / (24 * time.Hour))
}

// IsWorkingDay decides whether the analyst is on duty on the given date.
// A manual override for that date always wins (forced work puts the analyst
// on duty, every other kind takes them off). With no override, the shift
// profile's rotation applies. An analyst without a profile works every day.
func IsWorkingDay(ctx context.Context, analystId int, date time.Time) (bool, error) {
	override, err := GetDayOverrideForDate(ctx, analystId, date)
	if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
		return false, err
	}
	if override != nil {
		return override.Kind == OverrideKindForcedWork, nil
	}

	profile, err := GetShiftProfileByAnalyst(ctx, analystId)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return true, nil
		}
		return false, err
	}

	anchor := profile.AnchorDate
	return RotationIsWorkingDay(
		time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, date.Location()),
		date,
	), nil
}

func SaveShiftProfile(ctx context.Context, input *NewShiftProfile) (*ShiftProfile, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}
	if err := RequirePermission(ctx, PermissionManageOverrides); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[Analyst](ctx, departmentId, input.AnalystId); err != nil {
		return nil, errors.New("analyst not found")
	}

	db := config.GetDB()

	var existing ShiftProfile
	err := db.WithContext(ctx).
		Where("department_id = ? AND analyst_id = ?", departmentId, input.AnalystId).
		First(&existing).Error
	if err == nil {
		if err := db.WithContext(ctx).Model(&existing).
			UpdateColumn("AnchorDate", input.AnchorDate).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}

	profile := ShiftProfile{
		DepartmentId: departmentId,
		AnalystId:    input.AnalystId,
		AnchorDate:   input.AnchorDate,
	}
	if err := db.WithContext(ctx).Create(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetShiftProfileByAnalyst may return RecordNotFound when the analyst has no
// rotation (unscheduled roles).
func GetShiftProfileByAnalyst(ctx context.Context, analystId int) (*ShiftProfile, error) {
	db := config.GetDB()
	var result ShiftProfile
	err := db.WithContext(ctx).Where("analyst_id = ?", analystId).First(&result).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

// WeeklySchedule returns the 7 working/off flags for the week containing
// date, Monday first.
func WeeklySchedule(ctx context.Context, analystId int, date time.Time) ([]bool, error) {
	monday := utils.StartOfWeek(date)
	schedule := make([]bool, 7)
	for i := 0; i < 7; i++ {
		working, err := IsWorkingDay(ctx, analystId, monday.AddDate(0, 0, i))
		if err != nil {
			return nil, err
		}
		schedule[i] = working
	}
	return schedule, nil
}
