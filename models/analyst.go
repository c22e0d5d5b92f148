package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/nrsdigital/fieldaudit_backend/config"
	"bitbucket.org/nrsdigital/fieldaudit_backend/utils"
)

const analystCacheTTL = 10 * time.Minute

func analystCacheKey(departmentId int, id int) string {
	return fmt.Sprintf("%s:%d:%d", utils.GetTypeName[Analyst](), departmentId, id)
}

type Analyst struct {
	ID           int       `gorm:"primary_key" json:"id"`
	DepartmentId int       `gorm:"index;not null" json:"department_id"`
	Name         string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email        string    `gorm:"size:100" json:"email"`
	Phone        string    `gorm:"size:20" json:"phone"`
	Role         Role      `gorm:"size:20;not null;default:'analyst'" json:"role"`
	Timezone     string    `gorm:"size:50" json:"timezone"`
	IsActive     *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAnalyst struct {
	Name     string `json:"name" binding:"required" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone"`
	Role     Role   `json:"role"`
	Timezone string `json:"timezone"`
}

func (input *NewAnalyst) validate(ctx context.Context, departmentId int, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.Role != "" && !input.Role.IsValid() {
		return &ValidationError{Field: "role", Message: "invalid role"}
	}
	if input.Timezone != "" {
		if _, err := time.LoadLocation(input.Timezone); err != nil {
			return &ValidationError{Field: "timezone", Message: "unknown timezone"}
		}
	}
	if err := utils.ValidateUnique[Analyst](ctx, departmentId, "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func CreateAnalyst(ctx context.Context, input *NewAnalyst) (*Analyst, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}

	if err := input.validate(ctx, departmentId, 0); err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = RoleAnalyst
	}

	analyst := Analyst{
		DepartmentId: departmentId,
		Name:         input.Name,
		Email:        input.Email,
		Phone:        input.Phone,
		Role:         role,
		Timezone:     input.Timezone,
		IsActive:     utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&analyst).Error; err != nil {
		return nil, err
	}

	return &analyst, nil
}

func UpdateAnalyst(ctx context.Context, id int, input *NewAnalyst) (*Analyst, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}

	if err := input.validate(ctx, departmentId, id); err != nil {
		return nil, err
	}

	analyst, err := utils.FetchModel[Analyst](ctx, departmentId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&analyst).Updates(map[string]interface{}{
		"Name":     input.Name,
		"Email":    input.Email,
		"Phone":    input.Phone,
		"Role":     input.Role,
		"Timezone": input.Timezone,
	}).Error
	if err != nil {
		return nil, err
	}

	utils.InvalidateRedis(ctx, analystCacheKey(departmentId, id))
	return analyst, nil
}

func GetAnalyst(ctx context.Context, id int) (*Analyst, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}

	key := analystCacheKey(departmentId, id)
	if cached, ok := utils.RetrieveRedis[Analyst](ctx, key); ok {
		return &cached, nil
	}

	analyst, err := utils.FetchModel[Analyst](ctx, departmentId, id)
	if err != nil {
		return nil, err
	}
	utils.StoreRedis(ctx, key, *analyst, analystCacheTTL, "models", "GetAnalyst")
	return analyst, nil
}

func GetAnalysts(ctx context.Context, activeOnly bool) ([]*Analyst, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}

	db := config.GetDB()
	var results []*Analyst
	dbCtx := db.WithContext(ctx).Where("department_id = ?", departmentId)
	if activeOnly {
		dbCtx = dbCtx.Where("is_active = ?", true)
	}
	if err := dbCtx.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func ToggleActiveAnalyst(ctx context.Context, id int, isActive bool) (*Analyst, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}

	analyst, err := utils.FetchModel[Analyst](ctx, departmentId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&analyst).UpdateColumn("IsActive", isActive).Error; err != nil {
		return nil, err
	}
	utils.InvalidateRedis(ctx, analystCacheKey(departmentId, id))
	return analyst, nil
}

// AnalystLocation resolves the analyst's timezone, falling back to the
// department default when unset.
func (a *Analyst) Location() *time.Location {
	tz := a.Timezone
	if tz == "" {
		tz = utils.DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Local
	}
	return loc
}
