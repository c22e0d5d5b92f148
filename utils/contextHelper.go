package utils

import (
	"context"

	"bitbucket.org/nrsdigital/fieldaudit_backend/appctx"
)

// Alias the shared context key type so existing code keeps working.
var (
	ContextKeyDepartmentId  = appctx.ContextKeyDepartmentId
	ContextKeyUserId        = appctx.ContextKeyUserId
	ContextKeyUserName      = appctx.ContextKeyUserName
	ContextKeyUserRole      = appctx.ContextKeyUserRole
	ContextKeyTimezone      = appctx.ContextKeyTimezone
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId

	ContextKeySkipDepartmentScope = appctx.ContextKeySkipDepartmentScope
)

func GetDepartmentIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyDepartmentId)
}

func GetUserIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyUserId)
}

func GetUserNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserName)
}

func GetUserRoleFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserRole)
}

func GetTimezoneFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyTimezone)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetDepartmentIdInContext(ctx context.Context, departmentId int) context.Context {
	return appctx.Set(ctx, ContextKeyDepartmentId, departmentId)
}

func SetUserIdInContext(ctx context.Context, userId int) context.Context {
	return appctx.Set(ctx, ContextKeyUserId, userId)
}

func SetUserNameInContext(ctx context.Context, userName string) context.Context {
	return appctx.Set(ctx, ContextKeyUserName, userName)
}

func SetUserRoleInContext(ctx context.Context, role string) context.Context {
	return appctx.Set(ctx, ContextKeyUserRole, role)
}

func SetTimezoneInContext(ctx context.Context, timezone string) context.Context {
	return appctx.Set(ctx, ContextKeyTimezone, timezone)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func SetSkipDepartmentScopeInContext(ctx context.Context, skip bool) context.Context {
	return appctx.Set(ctx, ContextKeySkipDepartmentScope, skip)
}

func GetSkipDepartmentScopeFromContext(ctx context.Context) bool {
	skip, ok := appctx.GetBool(ctx, ContextKeySkipDepartmentScope)
	return ok && skip
}
