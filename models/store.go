package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/nrsdigital/fieldaudit_backend/config"
	"bitbucket.org/nrsdigital/fieldaudit_backend/utils"
)

type Store struct {
	ID                  int         `gorm:"primary_key" json:"id"`
	DepartmentId        int         `gorm:"index;not null" json:"department_id"`
	Code                string      `gorm:"index;size:20;not null" json:"code" binding:"required"`
	Name                string      `gorm:"size:100;not null" json:"name" binding:"required"`
	City                string      `gorm:"size:100" json:"city"`
	State               string      `gorm:"size:50" json:"state"`
	Address             string      `gorm:"type:text" json:"address"`
	IsActive            *bool       `gorm:"not null;default:true" json:"is_active"`
	SuspensionReason    string      `gorm:"type:text" json:"suspension_reason"`
	LastAuditDate       *time.Time  `json:"last_audit_date"`
	LastAuditResult     AuditResult `gorm:"size:20;not null;default:'pending'" json:"last_audit_result"`
	NeedsReverification *bool       `gorm:"not null;default:false" json:"needs_reverification"`
	CreatedAt           time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewStore struct {
	Code    string `json:"code" binding:"required" validate:"required,max=20"`
	Name    string `json:"name" binding:"required" validate:"required,max=100"`
	City    string `json:"city"`
	State   string `json:"state"`
	Address string `json:"address"`
}

func (input *NewStore) validate(ctx context.Context, departmentId int, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	input.Code = utils.NormalizeStoreCode(input.Code)
	if err := utils.ValidateUnique[Store](ctx, departmentId, "code", input.Code, id); err != nil {
		return err
	}
	return nil
}

func CreateStore(ctx context.Context, input *NewStore) (*Store, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}

	if err := input.validate(ctx, departmentId, 0); err != nil {
		return nil, err
	}

	store := Store{
		DepartmentId:        departmentId,
		Code:                input.Code,
		Name:                input.Name,
		City:                input.City,
		State:               input.State,
		Address:             input.Address,
		IsActive:            utils.NewTrue(),
		LastAuditResult:     AuditResultPending,
		NeedsReverification: utils.NewFalse(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&store).Error; err != nil {
		return nil, err
	}

	return &store, nil
}

func UpdateStore(ctx context.Context, id int, input *NewStore) (*Store, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}

	if err := input.validate(ctx, departmentId, id); err != nil {
		return nil, err
	}

	store, err := utils.FetchModel[Store](ctx, departmentId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&store).Updates(map[string]interface{}{
		"Code":    input.Code,
		"Name":    input.Name,
		"City":    input.City,
		"State":   input.State,
		"Address": input.Address,
	}).Error
	if err != nil {
		return nil, err
	}

	return store, nil
}

func GetStore(ctx context.Context, id int) (*Store, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}

	return utils.FetchModel[Store](ctx, departmentId, id)
}

func GetStoreByCode(ctx context.Context, code string) (*Store, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}

	db := config.GetDB()
	var result Store
	err := db.WithContext(ctx).
		Where("department_id = ? AND code = ?", departmentId, utils.NormalizeStoreCode(code)).
		First(&result).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

func GetStores(ctx context.Context, activeOnly bool) ([]*Store, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}

	db := config.GetDB()
	var results []*Store
	dbCtx := db.WithContext(ctx).Where("department_id = ?", departmentId)
	if activeOnly {
		dbCtx = dbCtx.Where("is_active = ?", true)
	}
	if err := dbCtx.Order("code").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// SuspendStore marks a store inactive with a reason. Suspended stores are
// skipped by auto distribution and the reverification sweep.
func SuspendStore(ctx context.Context, id int, reason string) (*Store, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}

	store, err := utils.FetchModel[Store](ctx, departmentId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&store).Updates(map[string]interface{}{
		"IsActive":         false,
		"SuspensionReason": reason,
	}).Error
	if err != nil {
		return nil, err
	}
	return store, nil
}

func ReactivateStore(ctx context.Context, id int) (*Store, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}

	store, err := utils.FetchModel[Store](ctx, departmentId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&store).Updates(map[string]interface{}{
		"IsActive":         true,
		"SuspensionReason": "",
	}).Error
	if err != nil {
		return nil, err
	}
	return store, nil
}

// GetReverificationPendingStores lists active stores flagged by the staleness
// sweep and not yet re-audited.
func GetReverificationPendingStores(ctx context.Context) ([]*Store, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}

	db := config.GetDB()
	var results []*Store
	err := db.WithContext(ctx).
		Where("department_id = ? AND is_active = ? AND needs_reverification = ?", departmentId, true, true).
		Order("last_audit_date").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
