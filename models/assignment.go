package models

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"bitbucket.org/nrsdigital/fieldaudit_backend/config"
	"bitbucket.org/nrsdigital/fieldaudit_backend/utils"
	"gorm.io/gorm"
)

// Assignment binds an analyst to a store with a weekly inspection target.
// Bindings are deactivated, never deleted, so KPI snapshots stay correct.
// At most one active assignment exists per store at any time.
type Assignment struct {
	ID           int        `gorm:"primary_key" json:"id"`
	DepartmentId int        `gorm:"index;not null" json:"department_id"`
	AnalystId    int        `gorm:"index;not null" json:"analyst_id" binding:"required"`
	StoreId      int        `gorm:"index;not null" json:"store_id" binding:"required"`
	WeeklyTarget int        `gorm:"not null;default:1" json:"weekly_target"`
	IsActive     *bool      `gorm:"not null;default:true" json:"is_active"`
	PeriodStart  *time.Time `json:"period_start"`
	PeriodEnd    *time.Time `json:"period_end"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Analyst *Analyst `gorm:"foreignKey:AnalystId" json:"analyst,omitempty"`
	Store   *Store   `gorm:"foreignKey:StoreId" json:"store,omitempty"`
}

type NewAssignment struct {
	AnalystId    int        `json:"analyst_id" binding:"required" validate:"required"`
	StoreId      int        `json:"store_id" binding:"required" validate:"required"`
	WeeklyTarget int        `json:"weekly_target" validate:"gte=0"`
	PeriodStart  *time.Time `json:"period_start"`
	PeriodEnd    *time.Time `json:"period_end"`
}

type NewBulkAssignment struct {
	AnalystId    int        `json:"analyst_id" binding:"required" validate:"required"`
	StoreIds     []int      `json:"store_ids" binding:"required" validate:"required,min=1"`
	WeeklyTarget int        `json:"weekly_target" validate:"gte=0"`
	PeriodStart  *time.Time `json:"period_start"`
	PeriodEnd    *time.Time `json:"period_end"`
}

type NewAutoDistribution struct {
	AnalystIds   []int      `json:"analyst_ids" binding:"required" validate:"required,min=1"`
	WeeklyTarget int        `json:"weekly_target" validate:"gte=0"`
	PeriodStart  *time.Time `json:"period_start"`
	PeriodEnd    *time.Time `json:"period_end"`
}

type BulkAssignmentResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

func (input *NewAssignment) validate(ctx context.Context, departmentId int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.PeriodStart != nil && input.PeriodEnd != nil && input.PeriodEnd.Before(*input.PeriodStart) {
		return &ValidationError{Field: "period_end", Message: "period end precedes period start"}
	}
	if err := utils.ValidateResourceId[Analyst](ctx, departmentId, input.AnalystId); err != nil {
		return errors.New("analyst not found")
	}
	if err := utils.ValidateResourceId[Store](ctx, departmentId, input.StoreId); err != nil {
		return errors.New("store not found")
	}
	return nil
}

// activeAssignmentConflict reports whether the store is actively held by a
// different analyst, with the holder's name for the error message.
func activeAssignmentConflict(tx *gorm.DB, ctx context.Context, storeId int, analystId int) (*ConflictError, error) {
	var holder struct {
		Id        int
		AnalystId int
		Name      string
		StoreCode string
	}
	err := tx.WithContext(ctx).Model(&Assignment{}).
		Select("assignments.id, assignments.analyst_id, analysts.name, stores.code AS store_code").
		Joins("JOIN analysts ON analysts.id = assignments.analyst_id").
		Joins("JOIN stores ON stores.id = assignments.store_id").
		Where("assignments.store_id = ? AND assignments.is_active = ?", storeId, true).
		Limit(1).
		Scan(&holder).Error
	if err != nil {
		return nil, err
	}
	if holder.Id == 0 || holder.AnalystId == analystId {
		return nil, nil
	}
	return &ConflictError{
		StoreCode:  holder.StoreCode,
		HolderId:   holder.AnalystId,
		HolderName: holder.Name,
	}, nil
}

// upsertAssignment creates the binding, or reactivates/updates an existing
// binding between the same pair. Returns whether a row was newly created.
func upsertAssignment(tx *gorm.DB, ctx context.Context, departmentId int, input *NewAssignment) (*Assignment, bool, error) {
	var existing Assignment
	err := tx.WithContext(ctx).
		Where("department_id = ? AND analyst_id = ? AND store_id = ?", departmentId, input.AnalystId, input.StoreId).
		Order("id DESC").
		First(&existing).Error
	if err == nil {
		if err := tx.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
			"WeeklyTarget": input.WeeklyTarget,
			"IsActive":     true,
			"PeriodStart":  input.PeriodStart,
			"PeriodEnd":    input.PeriodEnd,
		}).Error; err != nil {
			return nil, false, err
		}
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	assignment := Assignment{
		DepartmentId: departmentId,
		AnalystId:    input.AnalystId,
		StoreId:      input.StoreId,
		WeeklyTarget: input.WeeklyTarget,
		IsActive:     utils.NewTrue(),
		PeriodStart:  input.PeriodStart,
		PeriodEnd:    input.PeriodEnd,
	}
	if err := tx.WithContext(ctx).Create(&assignment).Error; err != nil {
		return nil, false, err
	}
	return &assignment, true, nil
}

// AssignStore binds a store to an analyst. Fails with ConflictError naming
// the current holder when another analyst already holds the store.
func AssignStore(ctx context.Context, input *NewAssignment) (*Assignment, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}
	if err := RequirePermission(ctx, PermissionManageAssignments); err != nil {
		return nil, err
	}
	if err := input.validate(ctx, departmentId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var assignment *Assignment
	err := db.Transaction(func(tx *gorm.DB) error {
		conflict, err := activeAssignmentConflict(tx, ctx, input.StoreId, input.AnalystId)
		if err != nil {
			return err
		}
		if conflict != nil {
			return conflict
		}
		assignment, _, err = upsertAssignment(tx, ctx, departmentId, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return assignment, nil
}

// BulkAssignStores applies the same semantics per store. If any store is held
// by someone else the whole call aborts with the conflict list, nothing is
// applied.
func BulkAssignStores(ctx context.Context, input *NewBulkAssignment) (*BulkAssignmentResult, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}
	if err := RequirePermission(ctx, PermissionManageAssignments); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	storeIds := utils.UniqueSlice(input.StoreIds)
	if err := utils.ValidateResourceId[Analyst](ctx, departmentId, input.AnalystId); err != nil {
		return nil, errors.New("analyst not found")
	}
	if err := utils.ValidateResourcesId[Store](ctx, departmentId, storeIds); err != nil {
		return nil, errors.New("one or more stores not found")
	}

	db := config.GetDB()
	result := BulkAssignmentResult{}
	err := db.Transaction(func(tx *gorm.DB) error {
		var conflicts []*ConflictError
		for _, storeId := range storeIds {
			conflict, err := activeAssignmentConflict(tx, ctx, storeId, input.AnalystId)
			if err != nil {
				return err
			}
			if conflict != nil {
				conflicts = append(conflicts, conflict)
			}
		}
		if len(conflicts) > 0 {
			return &BulkConflictError{Conflicts: conflicts}
		}

		for _, storeId := range storeIds {
			single := NewAssignment{
				AnalystId:    input.AnalystId,
				StoreId:      storeId,
				WeeklyTarget: input.WeeklyTarget,
				PeriodStart:  input.PeriodStart,
				PeriodEnd:    input.PeriodEnd,
			}
			_, created, err := upsertAssignment(tx, ctx, departmentId, &single)
			if err != nil {
				return err
			}
			if created {
				result.Created++
			} else {
				result.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SplitBatches splits items into count batches as evenly as possible, the
// remainder going to the first batches in order.
func SplitBatches(items []int, count int) [][]int {
	if count <= 0 {
		return nil
	}
	batches := make([][]int, count)
	base := len(items) / count
	remainder := len(items) % count
	pos := 0
	for i := 0; i < count; i++ {
		size := base
		if i < remainder {
			size++
		}
		batches[i] = items[pos : pos+size]
		pos += size
	}
	return batches
}

// AutoDistributeStores shuffles the currently-unassigned active stores and
// splits them evenly across the given analysts. Returns per-analyst counts.
func AutoDistributeStores(ctx context.Context, input *NewAutoDistribution) (map[int]int, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}
	if err := RequirePermission(ctx, PermissionManageAssignments); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	analystIds := utils.UniqueSlice(input.AnalystIds)
	if err := utils.ValidateResourcesId[Analyst](ctx, departmentId, analystIds); err != nil {
		return nil, errors.New("one or more analysts not found")
	}

	db := config.GetDB()
	counts := make(map[int]int, len(analystIds))
	err := db.Transaction(func(tx *gorm.DB) error {
		var storeIds []int
		err := tx.WithContext(ctx).Model(&Store{}).
			Where("department_id = ? AND is_active = ?", departmentId, true).
			Where("id NOT IN (?)",
				tx.Model(&Assignment{}).Select("store_id").Where("is_active = ?", true)).
			Pluck("id", &storeIds).Error
		if err != nil {
			return err
		}

		rand.Shuffle(len(storeIds), func(i, j int) {
			storeIds[i], storeIds[j] = storeIds[j], storeIds[i]
		})

		for i, batch := range SplitBatches(storeIds, len(analystIds)) {
			analystId := analystIds[i]
			for _, storeId := range batch {
				single := NewAssignment{
					AnalystId:    analystId,
					StoreId:      storeId,
					WeeklyTarget: input.WeeklyTarget,
					PeriodStart:  input.PeriodStart,
					PeriodEnd:    input.PeriodEnd,
				}
				if _, _, err := upsertAssignment(tx, ctx, departmentId, &single); err != nil {
					return err
				}
			}
			counts[analystId] = len(batch)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// UnassignStore soft-deactivates one binding; history is retained.
func UnassignStore(ctx context.Context, assignmentId int) (*Assignment, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}
	if err := RequirePermission(ctx, PermissionManageAssignments); err != nil {
		return nil, err
	}

	assignment, err := utils.FetchModel[Assignment](ctx, departmentId, assignmentId)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&assignment).UpdateColumn("IsActive", false).Error; err != nil {
		return nil, err
	}
	return assignment, nil
}

// UnassignAllStores soft-deactivates every active binding in the department.
// Returns the number of bindings deactivated.
func UnassignAllStores(ctx context.Context) (int, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return 0, errors.New("department id is required")
	}
	if err := RequirePermission(ctx, PermissionManageAssignments); err != nil {
		return 0, err
	}

	db := config.GetDB()
	result := db.WithContext(ctx).Model(&Assignment{}).
		Where("department_id = ? AND is_active = ?", departmentId, true).
		UpdateColumn("is_active", false)
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

func GetAssignment(ctx context.Context, id int) (*Assignment, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}
	return utils.FetchModel[Assignment](ctx, departmentId, id, "Analyst", "Store")
}

func GetAssignments(ctx context.Context, analystId int, activeOnly bool) ([]*Assignment, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}

	db := config.GetDB()
	var results []*Assignment
	dbCtx := db.WithContext(ctx).Where("department_id = ?", departmentId)
	if analystId > 0 {
		dbCtx = dbCtx.Where("analyst_id = ?", analystId)
	}
	if activeOnly {
		dbCtx = dbCtx.Where("is_active = ?", true)
	}
	if err := dbCtx.Preload("Store").Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetActiveAssignments lists an analyst's active bindings applicable on date:
// active flag set and date within [period_start, period_end] where given.
func GetActiveAssignments(ctx context.Context, analystId int, date time.Time) ([]*Assignment, error) {
	db := config.GetDB()
	var results []*Assignment
	err := db.WithContext(ctx).
		Where("analyst_id = ? AND is_active = ?", analystId, true).
		Where("period_start IS NULL OR period_start <= ?", date).
		Where("period_end IS NULL OR period_end >= ?", date).
		Preload("Store").
		Order("id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// EffectiveDeadline reconciles dated and undated assignments: the effective
// deadline is the earliest period end, with undated assignments contributing
// the end of the current week (Sunday).
func EffectiveDeadline(assignments []*Assignment, now time.Time) time.Time {
	deadline := utils.EndOfWeek(now)
	for _, a := range assignments {
		if a.PeriodEnd != nil && a.PeriodEnd.Before(deadline) {
			deadline = *a.PeriodEnd
		}
	}
	return deadline
}
