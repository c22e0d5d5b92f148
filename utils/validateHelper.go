package utils

import (
	"context"
	"errors"
	"reflect"

	"bitbucket.org/nrsdigital/fieldaudit_backend/config"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateStruct runs the `validate` tags of an input struct and returns the
// first failure as a plain error for the API layer to surface.
func ValidateStruct(input interface{}) error {
	if err := validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return errors.New("invalid field " + verrs[0].Field() + " (" + verrs[0].Tag() + ")")
		}
		return err
	}
	return nil
}

// check if id exists, using ctx's department_id in WHERE, returns ErrorRecordNotFound
func ValidateResourceId[T any](ctx context.Context, departmentId int, id interface{}) error {
	count, err := ResourceCountWhere[T](ctx, departmentId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

// check if ALL ids exist, using ctx's department_id in WHERE
func ValidateResourcesId[M any, ID comparable](ctx context.Context, departmentId int, ids []ID) error {
	unqIds := UniqueSlice(ids)

	count, err := ResourceCountWhere[M](ctx, departmentId, "id IN ?", unqIds)
	if err != nil {
		return err
	}
	if count != int64(len(unqIds)) {
		return ErrorRecordNotFound
	}

	return nil
}

func ValidateUnique[T any](ctx context.Context, departmentId int, column string, value interface{}, exceptId interface{}) error {
	var count int64
	var err error
	if reflect.ValueOf(exceptId).IsZero() {
		count, err = ResourceCountWhere[T](ctx, departmentId, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, departmentId, column+" = ? AND NOT id = ?", value, exceptId)
	}

	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New("duplicate " + column)
	}
	return nil
}

// count records, using WHERE department_id = ? AND $condition
// department_id can be zero for admin users and department-free tables
func ResourceCountWhere[T any](ctx context.Context, departmentId int, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model)
	var count int64
	if departmentId != 0 {
		dbCtx.Where("department_id = ?", departmentId)
	}
	dbCtx.Where(condition, value...)
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
