package workflow

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/nrsdigital/fieldaudit_backend/config"
	"bitbucket.org/nrsdigital/fieldaudit_backend/models"
	"bitbucket.org/nrsdigital/fieldaudit_backend/utils"
	"github.com/sirupsen/logrus"
)

// DefaultStalenessWindow is how long a store may go without an audit before
// the sweep flags it for reverification.
const DefaultStalenessWindow = 24 * time.Hour

// MarkStoresForReverification flags active stores whose last audit is older
// than the window (or that were never audited) and are not yet flagged.
// Returns the number of stores flagged. The cron tool runs it across all
// departments via SetSkipDepartmentScopeInContext; request handlers get the
// department scope from the identity middleware.
func MarkStoresForReverification(ctx context.Context, staleAfter time.Duration) (int, error) {
	logger := config.GetLogger()
	if staleAfter <= 0 {
		staleAfter = DefaultStalenessWindow
	}
	cutoff := time.Now().Add(-staleAfter)

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&models.Store{}).
		Where("is_active = ? AND needs_reverification = ?", true, false).
		Where("last_audit_date IS NULL OR last_audit_date < ?", cutoff)
	if !utils.GetSkipDepartmentScopeFromContext(ctx) {
		departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
		if !ok || departmentId == 0 {
			return 0, errors.New("department id is required")
		}
		dbCtx = dbCtx.Where("department_id = ?", departmentId)
	}
	result := dbCtx.UpdateColumn("needs_reverification", true)
	if result.Error != nil {
		config.LogError(logger, "reverificationSweep.go", "MarkStoresForReverification", "flag stale stores", cutoff, result.Error)
		return 0, result.Error
	}

	flagged := int(result.RowsAffected)
	logger.WithFields(logrus.Fields{
		"module":  "reverificationSweep.go",
		"flagged": flagged,
		"cutoff":  cutoff,
	}).Info("reverification sweep completed")
	return flagged, nil
}
