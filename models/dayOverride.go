package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/nrsdigital/fieldaudit_backend/config"
	"bitbucket.org/nrsdigital/fieldaudit_backend/utils"
)

// DayOverride is a manager-entered exception to the rotation for a single
// date. Unique per (analyst, date); the most recent entry wins on re-save.
type DayOverride struct {
	ID           int          `gorm:"primary_key" json:"id"`
	DepartmentId int          `gorm:"index;not null" json:"department_id"`
	AnalystId    int          `gorm:"uniqueIndex:idx_override_analyst_date;not null" json:"analyst_id" binding:"required"`
	Date         time.Time    `gorm:"uniqueIndex:idx_override_analyst_date;not null" json:"date" binding:"required"`
	Kind         OverrideKind `gorm:"size:20;not null" json:"kind" binding:"required"`
	Notes        string       `gorm:"type:text" json:"notes"`
	CreatedBy    int          `gorm:"index" json:"created_by"`
	CreatedAt    time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewDayOverride struct {
	AnalystId int          `json:"analyst_id" binding:"required" validate:"required"`
	Date      time.Time    `json:"date" binding:"required" validate:"required"`
	Kind      OverrideKind `json:"kind" binding:"required" validate:"required"`
	Notes     string       `json:"notes"`
}

func SaveDayOverride(ctx context.Context, input *NewDayOverride) (*DayOverride, error) {
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
	if !input.Kind.IsValid() {
		return nil, &ValidationError{Field: "kind", Message: "invalid override kind"}
	}
	if err := utils.ValidateResourceId[Analyst](ctx, departmentId, input.AnalystId); err != nil {
		return nil, errors.New("analyst not found")
	}

	userId, _ := utils.GetUserIdFromContext(ctx)
	date := time.Date(input.Date.Year(), input.Date.Month(), input.Date.Day(), 0, 0, 0, 0, time.UTC)

	db := config.GetDB()

	var existing DayOverride
	err := db.WithContext(ctx).
		Where("analyst_id = ? AND date = ?", input.AnalystId, date).
		First(&existing).Error
	if err == nil {
		if err := db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
			"Kind":      input.Kind,
			"Notes":     input.Notes,
			"CreatedBy": userId,
		}).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}

	override := DayOverride{
		DepartmentId: departmentId,
		AnalystId:    input.AnalystId,
		Date:         date,
		Kind:         input.Kind,
		Notes:        input.Notes,
		CreatedBy:    userId,
	}
	if err := db.WithContext(ctx).Create(&override).Error; err != nil {
		return nil, err
	}
	return &override, nil
}

func DeleteDayOverride(ctx context.Context, id int) (*DayOverride, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}
	if err := RequirePermission(ctx, PermissionManageOverrides); err != nil {
		return nil, err
	}

	override, err := utils.FetchModel[DayOverride](ctx, departmentId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(&override).Error; err != nil {
		return nil, err
	}
	return override, nil
}

// GetDayOverrideForDate may return RecordNotFound. The lookup compares the
// calendar date only.
func GetDayOverrideForDate(ctx context.Context, analystId int, date time.Time) (*DayOverride, error) {
	db := config.GetDB()
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var result DayOverride
	err := db.WithContext(ctx).
		Where("analyst_id = ? AND date >= ? AND date < ?", analystId, dayStart, dayEnd).
		First(&result).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

func GetDayOverrides(ctx context.Context, analystId int, from time.Time, to time.Time) ([]*DayOverride, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}

	db := config.GetDB()
	var results []*DayOverride
	dbCtx := db.WithContext(ctx).Where("department_id = ?", departmentId)
	if analystId > 0 {
		dbCtx = dbCtx.Where("analyst_id = ?", analystId)
	}
	if !from.IsZero() {
		dbCtx = dbCtx.Where("date >= ?", from)
	}
	if !to.IsZero() {
		dbCtx = dbCtx.Where("date <= ?", to)
	}
	if err := dbCtx.Order("date").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
